package model

import "time"

// User represents an account in the database.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Extra          map[string]any
	SessionVersion int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SignupRequest represents an account registration request.
type SignupRequest struct {
	Email     string         `json:"email"`
	Password  string         `json:"password"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Extra     map[string]any `json:"extra"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued on login.
type LoginResponse struct {
	Token string `json:"token"`
}

// ForgotPasswordRequest asks for a one-time reset code.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest redeems a one-time code for a new password.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
	OTP         string `json:"otp"`
}

// UpdateProfileRequest replaces the editable profile fields.
// A nil Extra keeps the stored map.
type UpdateProfileRequest struct {
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Extra     map[string]any `json:"extra"`
}

// ProfileResponse represents user data safe for API responses (no credentials).
type ProfileResponse struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	FirstName        string         `json:"first_name"`
	LastName         string         `json:"last_name"`
	CreationDate     time.Time      `json:"creation_date"`
	LastModifiedDate time.Time      `json:"last_modified_date"`
	Extra            map[string]any `json:"extra"`
}

// ProfileSummary is the directory view of another account.
type ProfileSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// ProfileList wraps a profile directory listing.
type ProfileList struct {
	Data []ProfileSummary `json:"data"`
}

// Collaborator is a profile annotated with its share membership on one document.
type Collaborator struct {
	ProfileSummary
	Shared bool `json:"shared"`
}

// CollaboratorList wraps the share picker projection.
type CollaboratorList struct {
	Data []Collaborator `json:"data"`
}

// Profile projects a user into its API representation.
func (u *User) Profile() ProfileResponse {
	extra := u.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	return ProfileResponse{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		CreationDate:     u.CreatedAt,
		LastModifiedDate: u.UpdatedAt,
		Extra:            extra,
	}
}

// Summary projects a user into its directory representation.
func (u *User) Summary() ProfileSummary {
	return ProfileSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}
