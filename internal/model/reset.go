package model

import "time"

// PasswordReset is a pending one-time reset code. Only the code hash is kept.
type PasswordReset struct {
	Email     string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the code is no longer redeemable at now.
func (p *PasswordReset) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
