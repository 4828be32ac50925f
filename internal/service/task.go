package service

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/celiaho/HocusFocusToDo/internal/model"
)

// TaskService edits the task board stored inside a document's content.
// Reads follow document read access, writes need ownership.
type TaskService struct {
	docs *DocumentService
}

// NewTaskService creates a TaskService on top of the document service.
func NewTaskService(docs *DocumentService) *TaskService {
	return &TaskService{docs: docs}
}

// Board returns the document's tasks grouped by quadrant.
func (s *TaskService) Board(ctx context.Context, id Identity, docID string) (board model.TaskBoard, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.Board", withDocument(docID))
	defer func() { finish(span, err) }()

	doc, err := s.docs.load(ctx, id, docID, ActionRead)
	if err != nil {
		return nil, err
	}
	return model.BoardFromContent(doc.Content)
}

// ReplaceBoard overwrites every quadrant list. Tasks without an id get one.
func (s *TaskService) ReplaceBoard(ctx context.Context, id Identity, docID string, board model.TaskBoard) (result model.TaskBoard, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.ReplaceBoard", withDocument(docID))
	defer func() { finish(span, err) }()

	clean, err := sanitizeBoard(board)
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, id, docID, func(current model.TaskBoard) error {
		maps.Copy(current, clean)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clean, nil
}

// AddTask appends a task to the end of a quadrant.
func (s *TaskService) AddTask(ctx context.Context, id Identity, docID string, req model.TaskRequest) (task model.Task, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.AddTask", withDocument(docID))
	defer func() { finish(span, err) }()

	if !req.Quadrant.Valid() {
		return model.Task{}, model.NewValidationError("quadrant", "must be one of q1_u_i, q2_nu_i, q3_u_ni, q4_nu_ni")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return model.Task{}, model.NewValidationError("text", "is required")
	}

	task = model.Task{
		ID:       model.NewID(),
		Text:     text,
		DueDate:  normalizeDueDate(req.DueDate),
		Quadrant: req.Quadrant,
	}
	err = s.mutate(ctx, id, docID, func(board model.TaskBoard) error {
		board[task.Quadrant] = append(board[task.Quadrant], task)
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// UpdateTask patches a task. Moving it to another quadrant appends it there.
func (s *TaskService) UpdateTask(ctx context.Context, id Identity, docID, taskID string, req model.TaskUpdateRequest) (task model.Task, err error) {
	ctx, span := tracer.Start(ctx, "TaskService.UpdateTask", withDocument(docID))
	defer func() { finish(span, err) }()

	if req.Quadrant != nil && !req.Quadrant.Valid() {
		return model.Task{}, model.NewValidationError("quadrant", "must be one of q1_u_i, q2_nu_i, q3_u_ni, q4_nu_ni")
	}
	if req.Text != nil && strings.TrimSpace(*req.Text) == "" {
		return model.Task{}, model.NewValidationError("text", "must not be blank")
	}

	err = s.mutate(ctx, id, docID, func(board model.TaskBoard) error {
		q, i, ok := board.Find(taskID)
		if !ok {
			return notFound("task", taskID)
		}

		t := board[q][i]
		if req.Text != nil {
			t.Text = strings.TrimSpace(*req.Text)
		}
		if req.IsCompleted != nil {
			t.IsCompleted = *req.IsCompleted
		}
		if req.DueDate != nil {
			t.DueDate = normalizeDueDate(req.DueDate)
		}

		if req.Quadrant != nil && *req.Quadrant != q {
			board.Remove(q, i)
			t.Quadrant = *req.Quadrant
			board[t.Quadrant] = append(board[t.Quadrant], t)
		} else {
			board[q][i] = t
		}
		task = t
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// DeleteTask removes a task from its quadrant.
func (s *TaskService) DeleteTask(ctx context.Context, id Identity, docID, taskID string) (err error) {
	ctx, span := tracer.Start(ctx, "TaskService.DeleteTask", withDocument(docID))
	defer func() { finish(span, err) }()

	return s.mutate(ctx, id, docID, func(board model.TaskBoard) error {
		q, i, ok := board.Find(taskID)
		if !ok {
			return notFound("task", taskID)
		}
		board.Remove(q, i)
		return nil
	})
}

// Authorize checks that the caller may edit the board of docID.
func (s *TaskService) Authorize(ctx context.Context, id Identity, docID string) error {
	return s.docs.Authorize(ctx, id, docID, ActionUpdate)
}

// mutate loads the board of an owned document, applies fn and saves the
// content back with every non-task key untouched.
func (s *TaskService) mutate(ctx context.Context, id Identity, docID string, fn func(model.TaskBoard) error) error {
	doc, err := s.docs.load(ctx, id, docID, ActionUpdate)
	if err != nil {
		return err
	}

	board, err := model.BoardFromContent(doc.Content)
	if err != nil {
		return err
	}
	if err := fn(board); err != nil {
		return err
	}

	content := maps.Clone(doc.Content)
	if content == nil {
		content = map[string]any{}
	}
	board.ApplyTo(content)
	return s.docs.save(ctx, doc, content)
}

func sanitizeBoard(board model.TaskBoard) (model.TaskBoard, error) {
	clean := make(model.TaskBoard, len(model.Quadrants))
	for _, q := range model.Quadrants {
		clean[q] = []model.Task{}
	}

	seen := make(map[string]bool)
	for q, tasks := range board {
		if !q.Valid() {
			return nil, model.NewValidationError(string(q), "is not a quadrant")
		}
		for _, t := range tasks {
			if t.ID == "" {
				t.ID = model.NewID()
			}
			if seen[t.ID] {
				return nil, model.NewValidationError(string(q), fmt.Sprintf("duplicate task id %s", t.ID))
			}
			seen[t.ID] = true
			t.Text = strings.TrimSpace(t.Text)
			if t.Text == "" {
				return nil, model.NewValidationError(string(q), fmt.Sprintf("task %s text is required", t.ID))
			}
			t.DueDate = normalizeDueDate(t.DueDate)
			t.Quadrant = q
			clean[q] = append(clean[q], t)
		}
	}
	return clean, nil
}

// normalizeDueDate trims the date; a blank date clears it.
func normalizeDueDate(d *string) *string {
	if d == nil {
		return nil
	}
	v := strings.TrimSpace(*d)
	if v == "" {
		return nil
	}
	return &v
}
