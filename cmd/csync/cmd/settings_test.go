package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSettingsSetKeepsLocalSaveWhenPushFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	logger = zap.NewNop()
	backendURL = "http://127.0.0.1:1"
	backendMode = "direct"
	settingsNoPush = false
	outputFormat = "table"

	require.NoError(t, settingsSetCmd.Flags().Set("quality", "80"))

	// The backend is unreachable, so the push fails. The command must
	// still succeed with the merged settings saved locally.
	require.NoError(t, runSettingsSet(settingsSetCmd, nil))

	store, err := loadSettingsStore()
	require.NoError(t, err)
	assert.Equal(t, 80, store.Current().Quality)
}

func TestSettingsSetNoPushSkipsBackend(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	logger = zap.NewNop()
	backendURL = "http://127.0.0.1:1"
	settingsNoPush = true
	outputFormat = "table"

	require.NoError(t, settingsSetCmd.Flags().Set("pad-bottom", "25"))
	require.NoError(t, runSettingsSet(settingsSetCmd, nil))

	store, err := loadSettingsStore()
	require.NoError(t, err)
	assert.Equal(t, 25, store.Current().Pads.Bottom)
}
