package models

import "fmt"

// validTransitions maps from-status to allowed to-statuses for tasks
// tracked by this client. The backend is the source of truth for its own
// states; this machine guards what the client will accept from a poll
// sequence so a task can never move out of a terminal state.
var validTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusPending: {
		TaskStatusUploading:  true,
		TaskStatusProcessing: true,
		TaskStatusCompleted:  true,
		TaskStatusFailed:     true,
		TaskStatusTimedOut:   true,
	},
	TaskStatusUploading: {
		TaskStatusProcessing: true,
		TaskStatusCompleted:  true,
		TaskStatusFailed:     true,
		TaskStatusTimedOut:   true,
	},
	TaskStatusProcessing: {
		TaskStatusCompleted: true,
		TaskStatusFailed:    true,
		TaskStatusTimedOut:  true,
	},
	// Terminal states (no transitions allowed)
	TaskStatusCompleted: {},
	TaskStatusFailed:    {},
	TaskStatusTimedOut:  {},
}

// ValidateTransition checks if a task status transition is valid.
func ValidateTransition(from, to TaskStatus) error {
	if from == to {
		return nil
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source status: %s", from)
	}

	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}

	return nil
}
