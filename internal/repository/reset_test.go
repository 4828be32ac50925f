package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/repository"
	"github.com/celiaho/HocusFocusToDo/internal/repository/repotest"
)

// exerciseResetStore runs the same contract against any ResetCodeStore.
// expiresBySweep is false for stores that expire codes on their own.
func exerciseResetStore(t *testing.T, store repository.ResetCodeStore, email string, expiresBySweep bool) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if _, err := store.Get(ctx, email); !errors.Is(err, repository.ErrResetNotFound) {
		t.Fatalf("Get() before Save = %v, want ErrResetNotFound", err)
	}
	if _, err := store.RecordFailure(ctx, email); !errors.Is(err, repository.ErrResetNotFound) {
		t.Fatalf("RecordFailure() before Save = %v, want ErrResetNotFound", err)
	}

	first := &model.PasswordReset{Email: email, CodeHash: "first", ExpiresAt: now.Add(15 * time.Minute), CreatedAt: now}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	if n, err := store.RecordFailure(ctx, email); err != nil || n != 1 {
		t.Fatalf("RecordFailure() = %d, %v; want 1", n, err)
	}
	if n, err := store.RecordFailure(ctx, email); err != nil || n != 2 {
		t.Fatalf("RecordFailure() = %d, %v; want 2", n, err)
	}

	second := &model.PasswordReset{Email: email, CodeHash: "second", ExpiresAt: now.Add(30 * time.Minute), CreatedAt: now}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save() overwrite unexpected error: %v", err)
	}

	got, err := store.Get(ctx, email)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if got.CodeHash != "second" || got.Attempts != 0 {
		t.Errorf("Get() = %+v, want replaced code with zero attempts", got)
	}
	if !got.ExpiresAt.Equal(second.ExpiresAt) || !got.CreatedAt.Equal(now) {
		t.Errorf("Get() times = %v / %v", got.ExpiresAt, got.CreatedAt)
	}

	deleted, err := store.Delete(ctx, email)
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v; want true", deleted, err)
	}
	deleted, err = store.Delete(ctx, email)
	if err != nil || deleted {
		t.Fatalf("second Delete() = %v, %v; want false", deleted, err)
	}

	if !expiresBySweep {
		return
	}

	expired := &model.PasswordReset{Email: email, CodeHash: "old", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour)}
	if err := store.Save(ctx, expired); err != nil {
		t.Fatalf("Save() expired unexpected error: %v", err)
	}
	n, err := store.DeleteExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpired() = %d, %v; want 1", n, err)
	}
	if _, err := store.Get(ctx, email); !errors.Is(err, repository.ErrResetNotFound) {
		t.Errorf("Get() after sweep = %v, want ErrResetNotFound", err)
	}
}

func TestResetRepository(t *testing.T) {
	store := repository.NewResetRepository(repotest.Open(t))
	exerciseResetStore(t, store, "reset@example.com", true)
}

func TestResetRepositoryDeleteExpiredKeepsLiveCodes(t *testing.T) {
	ctx := context.Background()
	store := repository.NewResetRepository(repotest.Open(t))

	if err := store.Save(ctx, &model.PasswordReset{Email: "live@example.com", CodeHash: "h", ExpiresAt: baseTime.Add(time.Minute), CreatedAt: baseTime}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, &model.PasswordReset{Email: "dead@example.com", CodeHash: "h", ExpiresAt: baseTime, CreatedAt: baseTime}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	n, err := store.DeleteExpired(ctx, baseTime)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpired() = %d, %v; want 1", n, err)
	}
	if _, err := store.Get(ctx, "live@example.com"); err != nil {
		t.Errorf("live code removed: %v", err)
	}
}
