package service

import (
	"context"
	"log/slog"
	"time"
)

// CodeSender delivers a password reset code to the account holder.
type CodeSender interface {
	SendResetCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// LogCodeSender writes reset codes to the log. It stands in for a mail
// gateway in development. Unless revealCode is set the code itself is
// redacted.
type LogCodeSender struct {
	logger     *slog.Logger
	revealCode bool
}

// NewLogCodeSender creates a LogCodeSender. A nil logger means slog.Default.
func NewLogCodeSender(logger *slog.Logger, revealCode bool) *LogCodeSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogCodeSender{logger: logger, revealCode: revealCode}
}

func (s *LogCodeSender) SendResetCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	if !s.revealCode {
		code = "[redacted]"
	}
	s.logger.InfoContext(ctx, "password reset code issued",
		"email", email,
		"code", code,
		"expires_at", expiresAt.Format(time.RFC3339),
	)
	return nil
}
