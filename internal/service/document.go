package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/celiaho/HocusFocusToDo/internal/metrics"
	"github.com/celiaho/HocusFocusToDo/internal/model"
	"github.com/celiaho/HocusFocusToDo/internal/repository"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// DocumentService handles documents and their shares.
type DocumentService struct {
	docs    *repository.DocumentRepository
	users   *repository.UserRepository
	metrics metrics.Recorder
	now     func() time.Time
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(docs *repository.DocumentRepository, users *repository.UserRepository, rec metrics.Recorder) *DocumentService {
	return &DocumentService{docs: docs, users: users, metrics: rec, now: time.Now}
}

// Create stores a new document owned by the caller.
func (s *DocumentService) Create(ctx context.Context, id Identity, req model.DocumentRequest) (resp model.DocumentResponse, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Create")
	defer func() { finish(span, err) }()

	if err := requireIdentity(id); err != nil {
		return model.DocumentResponse{}, err
	}

	now := s.now().UTC()
	doc := &model.Document{
		ID:         model.NewID(),
		OwnerID:    id.UserID,
		Content:    req.Content,
		SharedWith: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if doc.Content == nil {
		doc.Content = map[string]any{}
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return model.DocumentResponse{}, fmt.Errorf("create document: %w", err)
	}

	span.SetAttributes(attribute.String("document.id", doc.ID))
	return project(doc, id), nil
}

// Get returns a document the caller owns or was shared.
func (s *DocumentService) Get(ctx context.Context, id Identity, docID string) (resp model.DocumentResponse, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Get", withDocument(docID))
	defer func() { finish(span, err) }()

	doc, err := s.load(ctx, id, docID, ActionRead)
	if err != nil {
		return model.DocumentResponse{}, err
	}
	return project(doc, id), nil
}

// List returns one page of the caller's documents.
func (s *DocumentService) List(ctx context.Context, id Identity, q model.DocumentQuery) (page model.DocumentPage, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.List")
	defer func() { finish(span, err) }()

	if err := requireIdentity(id); err != nil {
		return model.DocumentPage{}, err
	}
	q, err = normalizeQuery(q)
	if err != nil {
		return model.DocumentPage{}, err
	}
	q.UserID = id.UserID

	docs, total, err := s.docs.List(ctx, q)
	if err != nil {
		return model.DocumentPage{}, fmt.Errorf("list documents: %w", err)
	}

	page = model.DocumentPage{
		Data:  make([]model.DocumentResponse, 0, len(docs)),
		Page:  q.Page,
		Limit: q.Limit,
		Total: total,
	}
	for _, d := range docs {
		page.Data = append(page.Data, project(d, id))
	}
	return page, nil
}

// Update replaces the whole content of a document. Concurrent writers
// overwrite each other; the last one wins.
func (s *DocumentService) Update(ctx context.Context, id Identity, docID string, req model.DocumentRequest) (resp model.DocumentResponse, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Update", withDocument(docID))
	defer func() { finish(span, err) }()

	doc, err := s.load(ctx, id, docID, ActionUpdate)
	if err != nil {
		return model.DocumentResponse{}, err
	}
	if req.Content == nil {
		return model.DocumentResponse{}, model.NewValidationError("content", "is required")
	}

	if err := s.save(ctx, doc, req.Content); err != nil {
		return model.DocumentResponse{}, err
	}
	return project(doc, id), nil
}

// Delete removes a document and its shares.
func (s *DocumentService) Delete(ctx context.Context, id Identity, docID string) (err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Delete", withDocument(docID))
	defer func() { finish(span, err) }()

	if _, err := s.load(ctx, id, docID, ActionDelete); err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, docID); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return notFound("document", docID)
		}
		return fmt.Errorf("delete document: %w", err)
	}

	slog.InfoContext(ctx, "document deleted", "document_id", docID, "user_id", id.UserID)
	return nil
}

// Share grants recipientID read access. Sharing twice is a no-op.
func (s *DocumentService) Share(ctx context.Context, id Identity, docID, recipientID string) (resp model.SharesResponse, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Share", withDocument(docID))
	defer func() { finish(span, err) }()

	doc, err := s.load(ctx, id, docID, ActionShare)
	if err != nil {
		return model.SharesResponse{}, err
	}
	if recipientID == doc.OwnerID {
		return model.SharesResponse{}, model.ErrSelfShare
	}

	exists, err := s.users.Exists(ctx, recipientID)
	if err != nil {
		return model.SharesResponse{}, fmt.Errorf("look up recipient: %w", err)
	}
	if !exists {
		return model.SharesResponse{}, notFound("user", recipientID)
	}

	added, err := s.docs.AddShare(ctx, docID, recipientID, s.now().UTC())
	if err != nil {
		return model.SharesResponse{}, fmt.Errorf("add share: %w", err)
	}
	if added {
		slog.InfoContext(ctx, "document shared", "document_id", docID, "recipient_id", recipientID)
	}

	return s.shares(ctx, docID)
}

// Unshare revokes recipientID's access. Revoking a missing share is a no-op.
func (s *DocumentService) Unshare(ctx context.Context, id Identity, docID, recipientID string) (resp model.SharesResponse, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Unshare", withDocument(docID))
	defer func() { finish(span, err) }()

	if _, err := s.load(ctx, id, docID, ActionShare); err != nil {
		return model.SharesResponse{}, err
	}
	if err := s.docs.RemoveShare(ctx, docID, recipientID); err != nil {
		return model.SharesResponse{}, fmt.Errorf("remove share: %w", err)
	}

	return s.shares(ctx, docID)
}

// Shares lists the recipients of a document. Only the owner may ask; a
// document without shares yields an empty list.
func (s *DocumentService) Shares(ctx context.Context, id Identity, docID string) (resp model.SharesResponse, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Shares", withDocument(docID))
	defer func() { finish(span, err) }()

	doc, err := s.load(ctx, id, docID, ActionListShares)
	if err != nil {
		return model.SharesResponse{}, err
	}
	return model.SharesResponse{SharedWith: doc.SharedWith}, nil
}

// Collaborators lists every other account annotated with whether it can
// read the document. It changes nothing.
func (s *DocumentService) Collaborators(ctx context.Context, id Identity, docID string) (resp model.CollaboratorList, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Collaborators", withDocument(docID))
	defer func() { finish(span, err) }()

	doc, err := s.load(ctx, id, docID, ActionListShares)
	if err != nil {
		return model.CollaboratorList{}, err
	}

	users, err := s.users.List(ctx, "", 0)
	if err != nil {
		return model.CollaboratorList{}, fmt.Errorf("list users: %w", err)
	}

	resp.Data = make([]model.Collaborator, 0, len(users))
	for _, u := range users {
		if u.ID == id.UserID {
			continue
		}
		resp.Data = append(resp.Data, model.Collaborator{
			ProfileSummary: u.Summary(),
			Shared:         doc.IsSharedWith(u.ID),
		})
	}
	return resp, nil
}

func (s *DocumentService) shares(ctx context.Context, docID string) (model.SharesResponse, error) {
	ids, err := s.docs.ListShares(ctx, docID)
	if err != nil {
		return model.SharesResponse{}, fmt.Errorf("list shares: %w", err)
	}
	return model.SharesResponse{SharedWith: ids}, nil
}

// Authorize checks that the caller may perform action on docID without
// returning the document.
func (s *DocumentService) Authorize(ctx context.Context, id Identity, docID string, action Action) (err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Authorize", withDocument(docID))
	defer func() { finish(span, err) }()

	_, err = s.load(ctx, id, docID, action)
	return err
}

// load fetches a document and checks that id may perform action on it. The
// identity is checked before the lookup so anonymous callers learn nothing.
func (s *DocumentService) load(ctx context.Context, id Identity, docID string, action Action) (*model.Document, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, notFound("document", docID)
		}
		return nil, fmt.Errorf("load document: %w", err)
	}

	if err := AuthorizeDocument(id, doc, action); err != nil {
		if errors.Is(err, model.ErrForbidden) {
			s.metrics.RecordAccessDenied("document", string(action))
		}
		return nil, err
	}
	return doc, nil
}

// save writes content as the document's new content and updates doc.
func (s *DocumentService) save(ctx context.Context, doc *model.Document, content map[string]any) error {
	now := s.now().UTC()
	if err := s.docs.UpdateContent(ctx, doc.ID, content, now); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return notFound("document", doc.ID)
		}
		return fmt.Errorf("update document: %w", err)
	}
	doc.Content = content
	doc.UpdatedAt = now
	return nil
}

// project renders doc for viewer. Recipients only see themselves in
// shared_with; the full list is for the owner.
func project(doc *model.Document, viewer Identity) model.DocumentResponse {
	shared := []string{}
	switch {
	case doc.OwnerID == viewer.UserID:
		shared = append(shared, doc.SharedWith...)
	case doc.IsSharedWith(viewer.UserID):
		shared = append(shared, viewer.UserID)
	}
	return model.DocumentResponse{
		ID:               doc.ID,
		OwnerID:          doc.OwnerID,
		Content:          doc.Content,
		CreationDate:     doc.CreatedAt,
		LastModifiedDate: doc.UpdatedAt,
		SharedWith:       shared,
	}
}

func normalizeQuery(q model.DocumentQuery) (model.DocumentQuery, error) {
	switch q.Scope {
	case "":
		q.Scope = model.ScopeAll
	case model.ScopeAll, model.ScopeOwned, model.ScopeShared:
	default:
		return q, model.NewValidationError("scope", "must be all, owned or shared")
	}
	switch q.SortBy {
	case "":
		q.SortBy = model.SortByModified
	case model.SortByCreated, model.SortByModified:
	default:
		return q, model.NewValidationError("sort_by", "must be creation_date or last_modified_date")
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Page < 1 {
		return q, model.NewValidationError("page", "must be at least 1")
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit < 1 || q.Limit > MaxPageLimit {
		return q, model.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxPageLimit))
	}
	return q, nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, model.ErrNotFound)
}
