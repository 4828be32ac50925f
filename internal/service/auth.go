package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/celiaho/HocusFocusToDo/internal/crypto"
	"github.com/celiaho/HocusFocusToDo/internal/metrics"
	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/repository"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 8

// AuthOptions tunes the password reset flow.
type AuthOptions struct {
	ResetCodeTTL     time.Duration
	ResetMaxAttempts int
}

// AuthService handles signup, login and password resets.
type AuthService struct {
	users   *repository.UserRepository
	resets  repository.ResetCodeStore
	codec   *crypto.Codec
	hasher  *crypto.PasswordHasher
	sender  CodeSender
	metrics metrics.Recorder
	opts    AuthOptions
	now     func() time.Time

	hashCode func(code string) (string, error)
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users *repository.UserRepository,
	resets repository.ResetCodeStore,
	codec *crypto.Codec,
	hasher *crypto.PasswordHasher,
	sender CodeSender,
	rec metrics.Recorder,
	opts AuthOptions,
) *AuthService {
	if opts.ResetCodeTTL <= 0 {
		opts.ResetCodeTTL = 15 * time.Minute
	}
	if opts.ResetMaxAttempts <= 0 {
		opts.ResetMaxAttempts = 5
	}
	return &AuthService{
		users:   users,
		resets:  resets,
		codec:   codec,
		hasher:  hasher,
		sender:  sender,
		metrics: rec,
		opts:    opts,
		now:     time.Now,

		hashCode: crypto.HashCode,
	}
}

// Signup creates an account and returns its profile.
func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (resp model.ProfileResponse, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Signup")
	defer func() { finish(span, err) }()

	email := normalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return model.ProfileResponse{}, err
	}
	if err := validatePassword("password", req.Password); err != nil {
		return model.ProfileResponse{}, err
	}
	first, last, err := validateNames(req.FirstName, req.LastName)
	if err != nil {
		return model.ProfileResponse{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.ProfileResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           model.NewID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		Extra:        req.Extra,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if user.Extra == nil {
		user.Extra = map[string]any{}
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return model.ProfileResponse{}, model.ErrDuplicateEmail
		}
		return model.ProfileResponse{}, fmt.Errorf("create user: %w", err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	slog.InfoContext(ctx, "account created", "user_id", user.ID)
	return user.Profile(), nil
}

// Login checks credentials and issues a bearer token. Unknown emails and
// wrong passwords fail identically and cost the same hashing work.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (resp model.LoginResponse, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer func() { finish(span, err) }()

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		s.metrics.RecordLogin("invalid_credentials")
		return model.LoginResponse{}, model.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.Equalize(req.Password)
			s.metrics.RecordLogin("invalid_credentials")
			return model.LoginResponse{}, model.ErrInvalidCredentials
		}
		return model.LoginResponse{}, fmt.Errorf("load user: %w", err)
	}

	match, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return model.LoginResponse{}, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		s.metrics.RecordLogin("invalid_credentials")
		return model.LoginResponse{}, model.ErrInvalidCredentials
	}

	token, _, err := s.codec.WithClock(s.now).Issue(user.ID, user.SessionVersion)
	if err != nil {
		return model.LoginResponse{}, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.RecordLogin("success")
	span.SetAttributes(attribute.String("user.id", user.ID))
	return model.LoginResponse{Token: token}, nil
}

// RequestPasswordReset issues a one-time code for email. It succeeds for
// unknown emails too; only storage or delivery failures are reported.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "AuthService.RequestPasswordReset")
	defer func() { finish(span, err) }()

	email = normalizeEmail(email)
	if email == "" {
		return model.NewValidationError("email", "is required")
	}

	known := true
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.RecordResetRequest("failed")
			return fmt.Errorf("%w: load user: %v", model.ErrTransport, err)
		}
		known = false
	}

	// Unknown emails pay for a code hash too, so timing does not reveal accounts.
	code, err := crypto.GenerateCode(crypto.CodeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := s.hashCode(code)
	if err != nil {
		return err
	}
	if !known {
		s.metrics.RecordResetRequest("unknown_email")
		return nil
	}

	now := s.now().UTC()
	reset := &model.PasswordReset{
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.opts.ResetCodeTTL),
		CreatedAt: now,
	}
	if err := s.resets.Save(ctx, reset); err != nil {
		s.metrics.RecordResetRequest("failed")
		return fmt.Errorf("%w: store reset code: %v", model.ErrTransport, err)
	}

	if err := s.sender.SendResetCode(ctx, email, code, reset.ExpiresAt); err != nil {
		s.metrics.RecordResetRequest("failed")
		return fmt.Errorf("%w: deliver reset code: %v", model.ErrTransport, err)
	}

	s.metrics.RecordResetRequest("sent")
	return nil
}

// ResetPassword redeems a reset code. On success the code is consumed and
// every token issued for the account before now stops working.
func (s *AuthService) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (err error) {
	ctx, span := tracer.Start(ctx, "AuthService.ResetPassword")
	defer func() { finish(span, err) }()

	email := normalizeEmail(req.Email)
	if err := validatePassword("new_password", req.NewPassword); err != nil {
		return err
	}
	code := strings.TrimSpace(req.OTP)
	if email == "" || code == "" {
		s.metrics.RecordResetRedeem("invalid")
		return model.ErrInvalidResetCode
	}

	reset, err := s.resets.Get(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrResetNotFound) {
			s.metrics.RecordResetRedeem("invalid")
			return model.ErrInvalidResetCode
		}
		return fmt.Errorf("%w: load reset code: %v", model.ErrTransport, err)
	}

	if reset.Expired(s.now()) {
		if _, err := s.resets.Delete(ctx, email); err != nil {
			slog.WarnContext(ctx, "failed to discard expired reset code", "error", err)
		}
		s.metrics.RecordResetRedeem("expired")
		return model.ErrInvalidResetCode
	}

	if !crypto.VerifyCode(code, reset.CodeHash) {
		s.recordMismatch(ctx, email)
		s.metrics.RecordResetRedeem("invalid")
		return model.ErrInvalidResetCode
	}

	// Whoever deletes the row owns the redemption.
	deleted, err := s.resets.Delete(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: consume reset code: %v", model.ErrTransport, err)
	}
	if !deleted {
		s.metrics.RecordResetRedeem("invalid")
		return model.ErrInvalidResetCode
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.ErrInvalidResetCode
		}
		return fmt.Errorf("load user: %w", err)
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.users.UpdatePassword(ctx, user.ID, hash, s.now().UTC()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.metrics.RecordResetRedeem("success")
	slog.InfoContext(ctx, "password reset", "user_id", user.ID)
	return nil
}

func (s *AuthService) recordMismatch(ctx context.Context, email string) {
	attempts, err := s.resets.RecordFailure(ctx, email)
	if err != nil {
		slog.WarnContext(ctx, "failed to record reset attempt", "error", err)
		return
	}
	if attempts >= s.opts.ResetMaxAttempts {
		if _, err := s.resets.Delete(ctx, email); err != nil {
			slog.WarnContext(ctx, "failed to discard exhausted reset code", "error", err)
			return
		}
		slog.InfoContext(ctx, "reset code discarded after too many attempts", "attempts", attempts)
	}
}

func validateEmail(email string) error {
	if email == "" {
		return model.NewValidationError("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return model.NewValidationError("email", "is not a valid address")
	}
	return nil
}

func validatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return model.NewValidationError(field, fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	return nil
}

func validateNames(first, last string) (string, string, error) {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)
	if first == "" {
		return "", "", model.NewValidationError("first_name", "is required")
	}
	if last == "" {
		return "", "", model.NewValidationError("last_name", "is required")
	}
	return first, last, nil
}
