package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

const userColumns = `id, email, password_hash, first_name, last_name, extra, session_version, created_at, updated_at`

// UserRepository handles user persistence operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. A missing ID or timestamp is filled in.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = model.NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	extra, err := model.EncodeObject(user.Extra)
	if err != nil {
		return fmt.Errorf("encode extra: %w", err)
	}

	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.db.rebind(query),
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		string(extra), user.SessionVersion, toMillis(user.CreatedAt), toMillis(user.UpdatedAt),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return scanUser(r.db.QueryRowContext(ctx, r.db.rebind(query), email))
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, r.db.rebind(query), id))
}

// Exists reports whether a user with id exists.
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT 1 FROM users WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns users whose email or name contains search, ordered by name.
// An empty search matches everyone; limit <= 0 means no limit.
func (r *UserRepository) List(ctx context.Context, search string, limit int) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if search != "" {
		p := likePattern(search)
		query += ` WHERE LOWER(email) LIKE ? ESCAPE '!' OR LOWER(first_name) LIKE ? ESCAPE '!' OR LOWER(last_name) LIKE ? ESCAPE '!'`
		args = append(args, p, p, p)
	}
	query += ` ORDER BY first_name, last_name, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateProfile stores the editable profile fields of user.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	extra, err := model.EncodeObject(user.Extra)
	if err != nil {
		return fmt.Errorf("encode extra: %w", err)
	}

	query := `UPDATE users SET first_name = ?, last_name = ?, extra = ?, updated_at = ? WHERE id = ?`
	_, err = r.db.ExecContext(ctx, r.db.rebind(query),
		user.FirstName, user.LastName, string(extra), toMillis(user.UpdatedAt), user.ID,
	)
	return err
}

// UpdatePassword replaces the password hash and bumps the session version,
// which invalidates every token issued before. It returns the new version.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string, now time.Time) (int64, error) {
	var version int64
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			r.db.rebind(`UPDATE users SET password_hash = ?, session_version = session_version + 1, updated_at = ? WHERE id = ?`),
			hash, toMillis(now), id,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrUserNotFound
		}
		return tx.QueryRowContext(ctx, r.db.rebind(`SELECT session_version FROM users WHERE id = ?`), id).Scan(&version)
	})
	return version, err
}

// Delete removes the user together with owned documents, every share row
// naming the user or one of those documents, and any pending reset code.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		var email string
		err := tx.QueryRowContext(ctx, r.db.rebind(`SELECT email FROM users WHERE id = ?`), id).Scan(&email)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		steps := []struct {
			query string
			arg   any
		}{
			{`DELETE FROM document_shares WHERE document_id IN (SELECT id FROM documents WHERE owner_id = ?)`, id},
			{`DELETE FROM document_shares WHERE user_id = ?`, id},
			{`DELETE FROM documents WHERE owner_id = ?`, id},
			{`DELETE FROM password_resets WHERE email = ?`, email},
			{`DELETE FROM users WHERE id = ?`, id},
		}
		for _, s := range steps {
			if _, err := tx.ExecContext(ctx, r.db.rebind(s.query), s.arg); err != nil {
				return err
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user              model.User
		extra             string
		created, modified int64
	)
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&extra, &user.SessionVersion, &created, &modified,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user.Extra, err = model.DecodeObject([]byte(extra))
	if err != nil {
		return nil, fmt.Errorf("decode extra for user %s: %w", user.ID, err)
	}
	user.CreatedAt = fromMillis(created)
	user.UpdatedAt = fromMillis(modified)
	return &user, nil
}
