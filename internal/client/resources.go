package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/celiaho/HocusFocusToDo/internal/model"
)

// Me returns the signed-in profile.
func (c *Client) Me(ctx context.Context) (model.ProfileResponse, error) {
	var resp model.ProfileResponse
	err := c.authed(ctx, http.MethodGet, "/profiles/me", nil, &resp)
	return resp, err
}

// UpdateProfile replaces the signed-in profile's names and extra map.
func (c *Client) UpdateProfile(ctx context.Context, req model.UpdateProfileRequest) (model.ProfileResponse, error) {
	var resp model.ProfileResponse
	err := c.authed(ctx, http.MethodPut, "/profiles/me", req, &resp)
	return resp, err
}

// DeleteAccount deletes the signed-in account and then signs out.
func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.authed(ctx, http.MethodDelete, "/profiles/me", nil, nil); err != nil {
		return err
	}
	if err := c.Logout(); err != nil {
		c.logger.Warn("failed to clear session after account deletion", "error", err)
	}
	return nil
}

// Profiles searches the directory. An empty query lists everyone.
func (c *Client) Profiles(ctx context.Context, query string) (model.ProfileList, error) {
	path := "/profiles"
	if query != "" {
		path += "?" + url.Values{"query": {query}}.Encode()
	}
	var resp model.ProfileList
	err := c.authed(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// Profile returns the public profile of id.
func (c *Client) Profile(ctx context.Context, id string) (model.ProfileSummary, error) {
	var resp model.ProfileSummary
	err := c.authed(ctx, http.MethodGet, "/profiles/"+escape(id), nil, &resp)
	return resp, err
}

// ListOptions selects a page of documents. Zero values use server defaults.
type ListOptions struct {
	Scope     model.DocumentScope
	SortBy    model.DocumentSort
	Ascending bool
	Page      int
	Limit     int
}

func (o ListOptions) encode() string {
	v := url.Values{}
	if o.Scope != "" {
		v.Set("scope", string(o.Scope))
	}
	if o.SortBy != "" {
		v.Set("sort_by", string(o.SortBy))
	}
	if o.Ascending {
		v.Set("order", "asc")
	}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Documents lists one page of documents visible to the signed-in user.
func (c *Client) Documents(ctx context.Context, opts ListOptions) (model.DocumentPage, error) {
	var resp model.DocumentPage
	err := c.authed(ctx, http.MethodGet, "/documents"+opts.encode(), nil, &resp)
	return resp, err
}

// CreateDocument stores a new document.
func (c *Client) CreateDocument(ctx context.Context, content map[string]any) (model.DocumentResponse, error) {
	var resp model.DocumentResponse
	err := c.authed(ctx, http.MethodPost, "/documents", model.DocumentRequest{Content: content}, &resp)
	return resp, err
}

// Document fetches one document.
func (c *Client) Document(ctx context.Context, id string) (model.DocumentResponse, error) {
	var resp model.DocumentResponse
	err := c.authed(ctx, http.MethodGet, "/documents/"+escape(id), nil, &resp)
	return resp, err
}

// UpdateDocument replaces a document's content. Once saved, the local draft
// of the document is dropped; failing to drop it does not fail the update.
func (c *Client) UpdateDocument(ctx context.Context, id string, content map[string]any) (model.DocumentResponse, error) {
	var resp model.DocumentResponse
	if err := c.authed(ctx, http.MethodPut, "/documents/"+escape(id), model.DocumentRequest{Content: content}, &resp); err != nil {
		return model.DocumentResponse{}, err
	}
	c.dropDraft(id)
	return resp, nil
}

// DeleteDocument deletes a document and its local draft.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	if err := c.authed(ctx, http.MethodDelete, "/documents/"+escape(id), nil, nil); err != nil {
		return err
	}
	c.dropDraft(id)
	return nil
}

func (c *Client) dropDraft(id string) {
	if err := c.store.DeleteDraft(id); err != nil {
		c.logger.Warn("failed to clear document draft", "document_id", id, "error", err)
	}
}

// SaveDraft keeps unsaved content for a document until it is saved or the
// session ends.
func (c *Client) SaveDraft(id string, content map[string]any) error {
	return c.store.SaveDraft(id, content)
}

// Draft returns the unsaved content of a document, if any.
func (c *Client) Draft(id string) (map[string]any, bool) {
	return c.store.Draft(id)
}

// Shares lists the recipients of an owned document.
func (c *Client) Shares(ctx context.Context, id string) ([]string, error) {
	var resp model.SharesResponse
	err := c.authed(ctx, http.MethodGet, "/documents/"+escape(id)+"/shares", nil, &resp)
	return resp.SharedWith, err
}

// Share grants userID read access to a document.
func (c *Client) Share(ctx context.Context, id, userID string) ([]string, error) {
	var resp model.SharesResponse
	err := c.authed(ctx, http.MethodPut, "/documents/"+escape(id)+"/shares/"+escape(userID), nil, &resp)
	return resp.SharedWith, err
}

// Unshare revokes userID's access to a document.
func (c *Client) Unshare(ctx context.Context, id, userID string) ([]string, error) {
	var resp model.SharesResponse
	err := c.authed(ctx, http.MethodDelete, "/documents/"+escape(id)+"/shares/"+escape(userID), nil, &resp)
	return resp.SharedWith, err
}

// Collaborators returns the share picker view of a document.
func (c *Client) Collaborators(ctx context.Context, id string) ([]model.Collaborator, error) {
	var resp model.CollaboratorList
	err := c.authed(ctx, http.MethodGet, "/documents/"+escape(id)+"/collaborators", nil, &resp)
	return resp.Data, err
}

// Tasks returns the task board of a document.
func (c *Client) Tasks(ctx context.Context, id string) (model.TaskBoard, error) {
	var resp model.TaskBoard
	err := c.authed(ctx, http.MethodGet, "/documents/"+escape(id)+"/tasks", nil, &resp)
	return resp, err
}

// ReplaceTasks overwrites the whole task board of a document.
func (c *Client) ReplaceTasks(ctx context.Context, id string, board model.TaskBoard) (model.TaskBoard, error) {
	var resp model.TaskBoard
	err := c.authed(ctx, http.MethodPut, "/documents/"+escape(id)+"/tasks", board, &resp)
	return resp, err
}

// AddTask appends a task to a quadrant.
func (c *Client) AddTask(ctx context.Context, id string, req model.TaskRequest) (model.Task, error) {
	return c.taskCall(ctx, http.MethodPost, "/documents/"+escape(id)+"/tasks", req)
}

// UpdateTask patches a task.
func (c *Client) UpdateTask(ctx context.Context, id, taskID string, req model.TaskUpdateRequest) (model.Task, error) {
	return c.taskCall(ctx, http.MethodPatch, "/documents/"+escape(id)+"/tasks/"+escape(taskID), req)
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id, taskID string) error {
	return c.authed(ctx, http.MethodDelete, "/documents/"+escape(id)+"/tasks/"+escape(taskID), nil, nil)
}

func (c *Client) taskCall(ctx context.Context, method, path string, body any) (model.Task, error) {
	var resp struct {
		model.Task
		Quadrant model.Quadrant `json:"quadrant"`
	}
	if err := c.authed(ctx, method, path, body, &resp); err != nil {
		return model.Task{}, err
	}
	task := resp.Task
	task.Quadrant = resp.Quadrant
	return task, nil
}
