package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(minimalScenario), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0755))

	files, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, files)

	single, err := Discover(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = Discover(t.TempDir())
	assert.ErrorContains(t, err, "no scenario files found")

	_, err = Discover(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1-ok.yaml"), []byte(minimalScenario), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2-broken.yaml"), []byte("name: broken\n"), 0644))

	entries, err := RunSuite(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].Passed())
	assert.Equal(t, "minimal", entries[0].Scenario)
	require.NotNil(t, entries[0].Result)
	assert.Len(t, entries[0].Result.Trace, 1)

	assert.False(t, entries[1].Passed())
	assert.Contains(t, entries[1].Err, "description is required")
}

func TestRunSuite_Scenarios(t *testing.T) {
	entries, err := RunSuite(scenarioDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, e.Passed(), "%s: %s %v", e.Path, e.Err, e.Result)
	}
}
