package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/model"
)

var ErrResetNotFound = errors.New("password reset not found")

// ResetCodeStore keeps at most one pending reset code per email.
type ResetCodeStore interface {
	// Save stores reset, replacing any pending code for the same email.
	Save(ctx context.Context, reset *model.PasswordReset) error
	Get(ctx context.Context, email string) (*model.PasswordReset, error)
	// RecordFailure counts a mismatched attempt and returns the new total.
	RecordFailure(ctx context.Context, email string) (int, error)
	// Delete removes the pending code and reports whether one was removed.
	Delete(ctx context.Context, email string) (bool, error)
	// DeleteExpired drops codes that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResetRepository is the SQL ResetCodeStore.
type ResetRepository struct {
	db *DB
}

// NewResetRepository creates a new ResetRepository.
func NewResetRepository(db *DB) *ResetRepository {
	return &ResetRepository{db: db}
}

func (r *ResetRepository) Save(ctx context.Context, reset *model.PasswordReset) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM password_resets WHERE email = ?`), reset.Email); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			r.db.rebind(`INSERT INTO password_resets (email, code_hash, attempts, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`),
			reset.Email, reset.CodeHash, reset.Attempts, toMillis(reset.ExpiresAt), toMillis(reset.CreatedAt),
		)
		return err
	})
}

func (r *ResetRepository) Get(ctx context.Context, email string) (*model.PasswordReset, error) {
	var (
		reset            model.PasswordReset
		expires, created int64
	)
	err := r.db.QueryRowContext(ctx,
		r.db.rebind(`SELECT email, code_hash, attempts, expires_at, created_at FROM password_resets WHERE email = ?`),
		email,
	).Scan(&reset.Email, &reset.CodeHash, &reset.Attempts, &expires, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResetNotFound
		}
		return nil, err
	}

	reset.ExpiresAt = fromMillis(expires)
	reset.CreatedAt = fromMillis(created)
	return &reset, nil
}

func (r *ResetRepository) RecordFailure(ctx context.Context, email string) (int, error) {
	var attempts int
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.db.rebind(`UPDATE password_resets SET attempts = attempts + 1 WHERE email = ?`), email)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrResetNotFound
		}
		return tx.QueryRowContext(ctx, r.db.rebind(`SELECT attempts FROM password_resets WHERE email = ?`), email).Scan(&attempts)
	})
	return attempts, err
}

func (r *ResetRepository) Delete(ctx context.Context, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM password_resets WHERE email = ?`), email)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM password_resets WHERE expires_at <= ?`), toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ ResetCodeStore = (*ResetRepository)(nil)
