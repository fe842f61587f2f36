package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransitionAllowsForwardProgress(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
	}{
		{TaskStatusPending, TaskStatusUploading},
		{TaskStatusPending, TaskStatusProcessing},
		{TaskStatusUploading, TaskStatusProcessing},
		{TaskStatusProcessing, TaskStatusCompleted},
		{TaskStatusProcessing, TaskStatusFailed},
		{TaskStatusProcessing, TaskStatusTimedOut},
	}
	for _, tc := range cases {
		assert.NoError(t, ValidateTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidateTransitionSameStatusIsNoOp(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted} {
		assert.NoError(t, ValidateTransition(s, s))
	}
}

func TestValidateTransitionTerminalStatesAreFinal(t *testing.T) {
	terminals := []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusTimedOut}
	for _, from := range terminals {
		for _, to := range []TaskStatus{TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted} {
			if from == to {
				continue
			}
			assert.Error(t, ValidateTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestValidateTransitionRejectsRegression(t *testing.T) {
	assert.Error(t, ValidateTransition(TaskStatusProcessing, TaskStatusUploading))
	assert.Error(t, ValidateTransition(TaskStatusUploading, TaskStatusPending))
}

func TestValidateTransitionUnknownSource(t *testing.T) {
	err := ValidateTransition(TaskStatus("bogus"), TaskStatusCompleted)
	assert.ErrorContains(t, err, "unknown source status")
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.True(t, TaskStatusTimedOut.IsTerminal())
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusProcessing.IsTerminal())
}
