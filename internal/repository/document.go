package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/celiaho/HocusFocusToDo/internal/model"
)

var ErrDocumentNotFound = errors.New("document not found")

// DocumentRepository handles document and share persistence operations.
type DocumentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document. Shares are not written.
func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = model.NewID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	content, err := model.EncodeObject(doc.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}

	query := `INSERT INTO documents (id, owner_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.db.rebind(query),
		doc.ID, doc.OwnerID, string(content), toMillis(doc.CreatedAt), toMillis(doc.UpdatedAt),
	)
	return err
}

// GetByID retrieves a document together with its share recipients.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	query := `SELECT id, owner_id, content, created_at, updated_at FROM documents WHERE id = ?`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, r.db.rebind(query), id))
	if err != nil {
		return nil, err
	}

	doc.SharedWith, err = r.ListShares(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateContent replaces the whole content of a document.
func (r *DocumentRepository) UpdateContent(ctx context.Context, id string, content map[string]any, now time.Time) error {
	data, err := model.EncodeObject(content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		r.db.rebind(`UPDATE documents SET content = ?, updated_at = ? WHERE id = ?`),
		string(data), toMillis(now), id,
	)
	if err != nil {
		return err
	}

	// MySQL reports zero affected rows for an unchanged row, so confirm
	// the document is really gone before reporting it.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, r.db.rebind(`SELECT 1 FROM documents WHERE id = ?`), id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}

// Delete removes a document and its share rows.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM document_shares WHERE document_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM documents WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrDocumentNotFound
		}
		return nil
	})
}

// List returns one page of the documents visible to q.UserID and the total
// number of matching documents. Shares are loaded for every returned row.
func (r *DocumentRepository) List(ctx context.Context, q model.DocumentQuery) ([]*model.Document, int, error) {
	var (
		where string
		args  []any
	)
	switch q.Scope {
	case model.ScopeOwned:
		where = `owner_id = ?`
		args = []any{q.UserID}
	case model.ScopeShared:
		where = `id IN (SELECT document_id FROM document_shares WHERE user_id = ?)`
		args = []any{q.UserID}
	default:
		where = `owner_id = ? OR id IN (SELECT document_id FROM document_shares WHERE user_id = ?)`
		args = []any{q.UserID, q.UserID}
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM documents WHERE ` + where
	if err := r.db.QueryRowContext(ctx, r.db.rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column := "updated_at"
	if q.SortBy == model.SortByCreated {
		column = "created_at"
	}
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	query := fmt.Sprintf(
		`SELECT id, owner_id, content, created_at, updated_at FROM documents WHERE %s ORDER BY %s %s, id %s LIMIT ? OFFSET ?`,
		where, column, direction, direction,
	)
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs := []*model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadShares(ctx, docs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (r *DocumentRepository) loadShares(ctx context.Context, docs []*model.Document) error {
	if len(docs) == 0 {
		return nil
	}

	byID := make(map[string]*model.Document, len(docs))
	args := make([]any, 0, len(docs))
	for _, d := range docs {
		d.SharedWith = []string{}
		byID[d.ID] = d
		args = append(args, d.ID)
	}

	query := `SELECT document_id, user_id FROM document_shares WHERE document_id IN (` +
		strings.TrimSuffix(strings.Repeat("?, ", len(docs)), ", ") +
		`) ORDER BY created_at, user_id`
	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var docID, userID string
		if err := rows.Scan(&docID, &userID); err != nil {
			return err
		}
		if d, ok := byID[docID]; ok {
			d.SharedWith = append(d.SharedWith, userID)
		}
	}
	return rows.Err()
}

// AddShare grants userID read access to a document. It reports false when
// the share already existed.
func (r *DocumentRepository) AddShare(ctx context.Context, docID, userID string, now time.Time) (bool, error) {
	_, err := r.db.ExecContext(ctx,
		r.db.rebind(`INSERT INTO document_shares (document_id, user_id, created_at) VALUES (?, ?, ?)`),
		docID, userID, toMillis(now),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RemoveShare revokes a share. Removing a missing share is not an error.
func (r *DocumentRepository) RemoveShare(ctx context.Context, docID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		r.db.rebind(`DELETE FROM document_shares WHERE document_id = ? AND user_id = ?`),
		docID, userID,
	)
	return err
}

// ListShares returns the recipients of a document, oldest share first.
// A document without shares yields an empty, non-nil slice.
func (r *DocumentRepository) ListShares(ctx context.Context, docID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		r.db.rebind(`SELECT user_id FROM document_shares WHERE document_id = ? ORDER BY created_at, user_id`),
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		doc               model.Document
		content           string
		created, modified int64
	)
	err := row.Scan(&doc.ID, &doc.OwnerID, &content, &created, &modified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	doc.Content, err = model.DecodeObject([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("decode content for document %s: %w", doc.ID, err)
	}
	doc.CreatedAt = fromMillis(created)
	doc.UpdatedAt = fromMillis(modified)
	doc.SharedWith = []string{}
	return &doc, nil
}
