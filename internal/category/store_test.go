package category

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, defaultJSON string) *Store {
	t.Helper()
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default_command_categories.json")
	if defaultJSON != "" {
		require.NoError(t, os.WriteFile(defaultPath, []byte(defaultJSON), 0o644))
	}
	s, err := NewStore(defaultPath, filepath.Join(dir, "user_command_categories.json"), nil)
	require.NoError(t, err)
	return s
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Category
	}{
		{"1", Simple},
		{"simple", Simple},
		{"2", SemiInteractive},
		{"semi_interactive", SemiInteractive},
		{"3", InteractiveTUI},
		{"interactive_tui", InteractiveTUI},
	} {
		got, err := Parse(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := Parse("fancy")
	assert.Error(t, err)
}

func TestAddThenClassify(t *testing.T) {
	s := newTestStore(t, "")

	already, err := s.Add("ls -la", Simple)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, Simple, s.Classify("ls -la"))

	// Exact string identity: a near-duplicate is still unknown.
	assert.Equal(t, Unknown, s.Classify("ls  -la"))

	// Re-adding to the same category is a reported no-op.
	already, err = s.Add("ls -la", Simple)
	require.NoError(t, err)
	assert.True(t, already)
}

func TestAddEvictsFromOtherCategories(t *testing.T) {
	s := newTestStore(t, "")

	_, err := s.Add("htop", SemiInteractive)
	require.NoError(t, err)
	_, err = s.Add("htop", InteractiveTUI)
	require.NoError(t, err)

	assert.Equal(t, InteractiveTUI, s.Classify("htop"))
	listed := s.List()
	assert.NotContains(t, listed[SemiInteractive], "htop")
	assert.Contains(t, listed[InteractiveTUI], "htop")
}

func TestMoveRoundTrip(t *testing.T) {
	s := newTestStore(t, "")

	_, err := s.Add("make test", SemiInteractive)
	require.NoError(t, err)
	require.NoError(t, s.Move("make test", Simple))

	assert.Equal(t, Simple, s.Classify("make test"))
	listed := s.List()
	assert.NotContains(t, listed[SemiInteractive], "make test")
}

func TestUserLayerOverridesDefault(t *testing.T) {
	s := newTestStore(t, `{"simple": ["date", "uptime"], "interactive_tui": ["vim"]}`)

	assert.Equal(t, Simple, s.Classify("date"))
	assert.Equal(t, InteractiveTUI, s.Classify("vim"))

	// User placement wins over the default layer.
	_, err := s.Add("date", SemiInteractive)
	require.NoError(t, err)
	assert.Equal(t, SemiInteractive, s.Classify("date"))

	// Removing the user entry falls back to the default layer.
	removed, err := s.Remove("date")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, Simple, s.Classify("date"))
}

func TestRemoveUnknownCommand(t *testing.T) {
	s := newTestStore(t, "")
	removed, err := s.Remove("never-stored")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMissingAndMalformedFilesAreEmpty(t *testing.T) {
	t.Run("missing default", func(t *testing.T) {
		s := newTestStore(t, "")
		assert.Equal(t, Unknown, s.Classify("anything"))
	})

	t.Run("malformed default", func(t *testing.T) {
		s := newTestStore(t, `{"simple": "not-a-list"`)
		assert.Equal(t, Unknown, s.Classify("anything"))

		// The store must stay writable despite the bad default layer.
		_, err := s.Add("ls", Simple)
		require.NoError(t, err)
		assert.Equal(t, Simple, s.Classify("ls"))
	})
}

func TestMutationsPersistAcrossReload(t *testing.T) {
	dir := t.TempDir()
	userPath := filepath.Join(dir, "user.json")
	s, err := NewStore(filepath.Join(dir, "default.json"), userPath, nil)
	require.NoError(t, err)

	_, err = s.Add("git status", Simple)
	require.NoError(t, err)

	reopened, err := NewStore(filepath.Join(dir, "default.json"), userPath, nil)
	require.NoError(t, err)
	assert.Equal(t, Simple, reopened.Classify("git status"))
}
