// Package session holds the client-side login state: the current bearer
// token, the identity and expiry derived from it, and the draft cache of
// unsaved document edits that belongs to that login.
package session

import (
	"fmt"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/crypto"
)

// Session is the token of the signed-in account plus what was read from it.
type Session struct {
	Token           string `json:"token"`
	SubjectID       string `json:"subject_id"`
	ExpiresAtMillis int64  `json:"expires_at_millis"`
}

// ValidAt reports whether the session can still be used at now. A session
// without a recorded expiry is never valid.
func (s Session) ValidAt(now time.Time) bool {
	return s.Token != "" && s.ExpiresAtMillis > 0 && s.ExpiresAtMillis > now.UnixMilli()
}

// FromToken builds a Session from a token's unverified claims.
func FromToken(token string) (Session, error) {
	claims, err := crypto.PeekClaims(token)
	if err != nil {
		return Session{}, fmt.Errorf("read token claims: %w", err)
	}
	return Session{
		Token:           token,
		SubjectID:       claims.SubjectID,
		ExpiresAtMillis: claims.ExpiresAtMillis(),
	}, nil
}

// Store keeps a single active session and its drafts. Implementations are
// safe for concurrent use.
type Store interface {
	// Save replaces any previous session. Drafts are left alone.
	Save(s Session) error
	Current() (Session, bool)
	IsValid(now time.Time) bool
	// Clear drops the session and every draft in one step.
	Clear() error

	SaveDraft(docID string, content map[string]any) error
	Draft(docID string) (map[string]any, bool)
	DeleteDraft(docID string) error
}
