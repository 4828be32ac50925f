package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/repository"
)

// profileSearchLimit caps directory search results.
const profileSearchLimit = 50

// ProfileService handles account profiles.
type ProfileService struct {
	users  *repository.UserRepository
	resets repository.ResetCodeStore
	now    func() time.Time
}

// NewProfileService creates a new ProfileService. resets is cleared of the
// account's pending code on deletion.
func NewProfileService(users *repository.UserRepository, resets repository.ResetCodeStore) *ProfileService {
	return &ProfileService{users: users, resets: resets, now: time.Now}
}

// Me returns the caller's own profile.
func (s *ProfileService) Me(ctx context.Context, id Identity) (resp model.ProfileResponse, err error) {
	ctx, span := tracer.Start(ctx, "ProfileService.Me")
	defer func() { finish(span, err) }()

	user, err := s.self(ctx, id)
	if err != nil {
		return model.ProfileResponse{}, err
	}
	return user.Profile(), nil
}

// Update replaces the caller's names and, when given, the extra map.
func (s *ProfileService) Update(ctx context.Context, id Identity, req model.UpdateProfileRequest) (resp model.ProfileResponse, err error) {
	ctx, span := tracer.Start(ctx, "ProfileService.Update")
	defer func() { finish(span, err) }()

	user, err := s.self(ctx, id)
	if err != nil {
		return model.ProfileResponse{}, err
	}

	first, last, err := validateNames(req.FirstName, req.LastName)
	if err != nil {
		return model.ProfileResponse{}, err
	}
	user.FirstName = first
	user.LastName = last
	if req.Extra != nil {
		user.Extra = req.Extra
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return model.ProfileResponse{}, fmt.Errorf("update profile: %w", err)
	}
	return user.Profile(), nil
}

// Delete removes the caller's account with its documents and shares.
func (s *ProfileService) Delete(ctx context.Context, id Identity) (err error) {
	ctx, span := tracer.Start(ctx, "ProfileService.Delete")
	defer func() { finish(span, err) }()

	user, err := s.self(ctx, id)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound("user", user.ID)
		}
		return fmt.Errorf("delete account: %w", err)
	}

	// The SQL store lost the code with the account; other stores need telling.
	if _, err := s.resets.Delete(ctx, user.Email); err != nil {
		slog.WarnContext(ctx, "failed to discard reset code of deleted account", "user_id", user.ID, "error", err)
	}

	slog.InfoContext(ctx, "account deleted", "user_id", user.ID)
	return nil
}

// Get returns the public profile of any account.
func (s *ProfileService) Get(ctx context.Context, id Identity, profileID string) (resp model.ProfileSummary, err error) {
	ctx, span := tracer.Start(ctx, "ProfileService.Get")
	defer func() { finish(span, err) }()

	if err := requireIdentity(id); err != nil {
		return model.ProfileSummary{}, err
	}

	user, err := s.users.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.ProfileSummary{}, notFound("user", profileID)
		}
		return model.ProfileSummary{}, fmt.Errorf("load user: %w", err)
	}
	return user.Summary(), nil
}

// List searches profiles by email or name. An empty query lists everyone.
func (s *ProfileService) List(ctx context.Context, id Identity, query string) (resp model.ProfileList, err error) {
	ctx, span := tracer.Start(ctx, "ProfileService.List")
	defer func() { finish(span, err) }()

	if err := requireIdentity(id); err != nil {
		return model.ProfileList{}, err
	}

	users, err := s.users.List(ctx, strings.TrimSpace(query), profileSearchLimit)
	if err != nil {
		return model.ProfileList{}, fmt.Errorf("list users: %w", err)
	}

	resp.Data = make([]model.ProfileSummary, 0, len(users))
	for _, u := range users {
		resp.Data = append(resp.Data, u.Summary())
	}
	return resp, nil
}

// self loads the caller's own account. The target is always the caller, so
// only authentication is checked.
func (s *ProfileService) self(ctx context.Context, id Identity) (*model.User, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, notFound("user", id.UserID)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
