package model

import (
	"encoding/json"
	"strings"
)

// Quadrant is one of the four urgency/importance buckets of a task board.
type Quadrant string

const (
	QuadrantUrgentImportant       Quadrant = "q1_u_i"
	QuadrantNotUrgentImportant    Quadrant = "q2_nu_i"
	QuadrantUrgentNotImportant    Quadrant = "q3_u_ni"
	QuadrantNotUrgentNotImportant Quadrant = "q4_nu_ni"
)

// Quadrants lists the quadrants in board order.
var Quadrants = []Quadrant{
	QuadrantUrgentImportant,
	QuadrantNotUrgentImportant,
	QuadrantUrgentNotImportant,
	QuadrantNotUrgentNotImportant,
}

// Valid reports whether q names a known quadrant.
func (q Quadrant) Valid() bool {
	for _, known := range Quadrants {
		if q == known {
			return true
		}
	}
	return false
}

// Task is one entry of a quadrant list inside document content. JSON keys
// match what the mobile client writes into the content.
type Task struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	IsCompleted bool     `json:"isCompleted"`
	DueDate     *string  `json:"dueDate,omitempty"`
	Quadrant    Quadrant `json:"-"`
}

// TaskBoard groups tasks by quadrant, each list in display order.
type TaskBoard map[Quadrant][]Task

// TaskRequest creates a task in a quadrant.
type TaskRequest struct {
	Text     string   `json:"text"`
	Quadrant Quadrant `json:"quadrant"`
	DueDate  *string  `json:"dueDate"`
}

// TaskUpdateRequest patches a task. Nil fields are left unchanged; moving a
// task to another quadrant appends it there.
type TaskUpdateRequest struct {
	Text        *string   `json:"text"`
	IsCompleted *bool     `json:"isCompleted"`
	DueDate     *string   `json:"dueDate"`
	Quadrant    *Quadrant `json:"quadrant"`
}

// BoardFromContent extracts the task lists stored under the quadrant keys.
// Missing or null quadrants are empty.
func BoardFromContent(content map[string]any) (TaskBoard, error) {
	board := make(TaskBoard, len(Quadrants))
	for _, q := range Quadrants {
		board[q] = []Task{}

		raw, ok := content[string(q)]
		if !ok || raw == nil {
			continue
		}

		data, err := json.Marshal(raw)
		if err != nil {
			return nil, NewValidationError(string(q), "malformed task list")
		}

		var tasks []Task
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, NewValidationError(string(q), "malformed task list")
		}

		for i := range tasks {
			if strings.TrimSpace(tasks[i].ID) == "" {
				return nil, NewValidationError(string(q), "task id is required")
			}
			tasks[i].Quadrant = q
		}
		board[q] = tasks
	}
	return board, nil
}

// ApplyTo writes every quadrant list into content, leaving other keys alone.
func (b TaskBoard) ApplyTo(content map[string]any) {
	for _, q := range Quadrants {
		tasks := b[q]
		if tasks == nil {
			tasks = []Task{}
		}
		content[string(q)] = tasks
	}
}

// Find locates a task by id.
func (b TaskBoard) Find(taskID string) (Quadrant, int, bool) {
	for _, q := range Quadrants {
		for i, t := range b[q] {
			if t.ID == taskID {
				return q, i, true
			}
		}
	}
	return "", 0, false
}

// Remove deletes the task at index i of quadrant q, keeping order.
func (b TaskBoard) Remove(q Quadrant, i int) Task {
	t := b[q][i]
	b[q] = append(b[q][:i:i], b[q][i+1:]...)
	return t
}
