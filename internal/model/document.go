package model

import (
	"slices"
	"time"
)

// Document represents a stored document. Content is an arbitrary JSON object;
// title and body live under the "title" and "body" keys.
type Document struct {
	ID         string
	OwnerID    string
	Content    map[string]any
	SharedWith []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Title returns content.title, or "" when absent or not a string.
func (d *Document) Title() string {
	s, _ := d.Content["title"].(string)
	return s
}

// Body returns content.body, or "" when absent or not a string.
func (d *Document) Body() string {
	s, _ := d.Content["body"].(string)
	return s
}

// IsSharedWith reports whether userID is a share recipient of the document.
func (d *Document) IsSharedWith(userID string) bool {
	return slices.Contains(d.SharedWith, userID)
}

// DocumentRequest is the body of document create and update calls.
type DocumentRequest struct {
	Content map[string]any `json:"content"`
}

// DocumentResponse represents a document in API responses.
type DocumentResponse struct {
	ID               string         `json:"id"`
	OwnerID          string         `json:"owner_id"`
	Content          map[string]any `json:"content"`
	CreationDate     time.Time      `json:"creation_date"`
	LastModifiedDate time.Time      `json:"last_modified_date"`
	SharedWith       []string       `json:"shared_with"`
}

// DocumentScope selects which documents a listing returns.
type DocumentScope string

const (
	ScopeAll    DocumentScope = "all"
	ScopeOwned  DocumentScope = "owned"
	ScopeShared DocumentScope = "shared"
)

// DocumentSort names the sortable document columns.
type DocumentSort string

const (
	SortByCreated  DocumentSort = "creation_date"
	SortByModified DocumentSort = "last_modified_date"
)

// DocumentQuery describes one page of a document listing for a user.
type DocumentQuery struct {
	UserID     string
	Scope      DocumentScope
	SortBy     DocumentSort
	Descending bool
	Page       int
	Limit      int
}

// Offset returns the row offset of the requested page.
func (q DocumentQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// DocumentPage is a paginated document listing.
type DocumentPage struct {
	Data  []DocumentResponse `json:"data"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
}

// SharesResponse lists the recipients of a document.
type SharesResponse struct {
	SharedWith []string `json:"shared_with"`
}
