package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/celiaho/HocusFocusToDo/internal/crypto"
	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/repository"
)

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID string
}

// Authenticated reports whether the identity names an account.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Action is an operation subject to authorization.
type Action string

const (
	ActionRead       Action = "read"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionListShares Action = "list-shares"
	ActionShare      Action = "share"
)

func requireIdentity(id Identity) error {
	if !id.Authenticated() {
		return model.ErrAuthentication
	}
	return nil
}

// AuthorizeDocument decides whether id may perform action on doc. The owner
// may do anything; a share recipient may only read.
func AuthorizeDocument(id Identity, doc *model.Document, action Action) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	if doc.OwnerID == id.UserID {
		return nil
	}
	if action == ActionRead && doc.IsSharedWith(id.UserID) {
		return nil
	}
	return model.ErrForbidden
}

// AuthorizeProfile allows an account to act only on its own profile.
func AuthorizeProfile(id Identity, profileID string, action Action) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	if profileID != id.UserID {
		return model.ErrForbidden
	}
	return nil
}

// Authenticator turns bearer tokens into identities.
type Authenticator struct {
	codec *crypto.Codec
	users *repository.UserRepository
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(codec *crypto.Codec, users *repository.UserRepository) *Authenticator {
	return &Authenticator{codec: codec, users: users}
}

// Authenticate verifies token and checks that its account still exists and
// that no password reset happened since it was issued.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, model.ErrAuthentication
	}

	claims, err := a.codec.Decode(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", model.ErrAuthentication, err)
	}

	user, err := a.users.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Identity{}, fmt.Errorf("%w: account no longer exists", model.ErrAuthentication)
		}
		return Identity{}, fmt.Errorf("load account: %w", err)
	}
	if user.SessionVersion != claims.SessionVersion {
		return Identity{}, fmt.Errorf("%w: session revoked", model.ErrAuthentication)
	}

	return Identity{UserID: user.ID}, nil
}
