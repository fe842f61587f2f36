package script

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReturnsDefaultWhenUnset(t *testing.T) {
	s := NewStore(t.TempDir())

	text, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultText, text)
}

func TestSaveThenLoad(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.Save("Hello, this is my take."))

	text, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "Hello, this is my take.", text)
}

func TestSaveCreatesConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "csync")
	s := NewStore(dir)

	require.NoError(t, s.Save("text"))

	text, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "text", text)
}

func TestSaveEmptyResetsToDefault(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, s.Save("something"))
	require.NoError(t, s.Save("   \n"))

	text, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultText, text)
}
