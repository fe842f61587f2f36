package models

import "time"

// TaskStatus represents the lifecycle stage of a backend task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusUploading  TaskStatus = "uploading"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusTimedOut   TaskStatus = "timed_out"
)

// IsTerminal reports whether no further status transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusTimedOut
}

// UploadTask tracks one file upload from submission to its terminal state.
type UploadTask struct {
	ID               string     `json:"id"`
	Filename         string     `json:"filename"`
	Progress         int        `json:"progress"`
	Status           TaskStatus `json:"status"`
	ResultIdentifier string     `json:"result_identifier,omitempty"`
}

// TaskStatusResponse is the wire shape of GET /tasks/{id}.
type TaskStatusResponse struct {
	ID          string         `json:"id"`
	Status      TaskStatus     `json:"status"`
	Progress    *int           `json:"progress,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
}

// OutputURL extracts the output URL from the response data, if present.
func (r *TaskStatusResponse) OutputURL() string {
	if r.Data == nil {
		return ""
	}
	if u, ok := r.Data["output_url"].(string); ok {
		return u
	}
	return ""
}

// TaskResult is the terminal outcome of polling one task.
type TaskResult struct {
	ID        string         `json:"id"`
	Status    TaskStatus     `json:"status"`
	Progress  int            `json:"progress"`
	OutputURL string         `json:"output_url,omitempty"`
	Data      map[string]any `json:"data,omitempty"`

	// Degraded marks results synthesized because the status endpoint was
	// unavailable (404). Such results are best-effort guesses, not
	// confirmation from the backend.
	Degraded       bool   `json:"degraded,omitempty"`
	DegradedReason string `json:"degraded_reason,omitempty"`
}
