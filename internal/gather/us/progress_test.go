package us

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTrackerMarkEmpty(t *testing.T) {
	dir := t.TempDir()

	pt, err := newProgressTracker(dir)
	require.NoError(t, err)
	require.NoError(t, pt.MarkEmpty([]string{"AAAA", "BBBB", "CCCC"}))

	// Reload and verify.
	pt2, err := newProgressTracker(dir)
	require.NoError(t, err)
	for _, sym := range []string{"AAAA", "BBBB", "CCCC"} {
		assert.True(t, pt2.IsEmpty(sym), "%s should be empty after reload", sym)
	}
	assert.False(t, pt2.IsEmpty("DDDD"))
}

func TestProgressTrackerCompleted(t *testing.T) {
	dir := t.TempDir()

	pt, err := newProgressTracker(dir)
	require.NoError(t, err)
	assert.False(t, pt.IsCompleted("2017-12-29"))
	require.NoError(t, pt.MarkCompleted("2017-12-29"))
	assert.True(t, pt.IsCompleted("2017-12-29"))
	assert.False(t, pt.IsCompleted("2018-01-02"))

	pt2, err := newProgressTracker(dir)
	require.NoError(t, err)
	assert.Equal(t, "2017-12-29", pt2.LastCompleted())
}

func TestProgressTrackerResume(t *testing.T) {
	dir := t.TempDir()

	// Simulate a previous run's file.
	content := "last_completed: \"\"\nempty:\n  - XXXX\n  - YYYY\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, progressFile), []byte(content), 0o644))

	pt, err := newProgressTracker(dir)
	require.NoError(t, err)
	assert.True(t, pt.IsEmpty("XXXX"))
	assert.True(t, pt.IsEmpty("YYYY"))

	require.NoError(t, pt.MarkEmpty([]string{"WWWW"}))
	data, err := os.ReadFile(filepath.Join(dir, progressFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "WWWW")
	assert.Contains(t, string(data), "XXXX")
}

func TestProgressTrackerReset(t *testing.T) {
	pt, err := newProgressTracker(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, pt.MarkEmpty([]string{"AAAA"}))
	require.NoError(t, pt.MarkCompleted("2017-12-29"))
	require.NoError(t, pt.Reset())

	assert.False(t, pt.IsEmpty("AAAA"))
	assert.Equal(t, "2017-12-29", pt.LastCompleted(), "reset keeps the completed date")
}

func TestProgressTrackerCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, progressFile), []byte("empty: [\n"), 0o644))
	_, err := newProgressTracker(dir)
	assert.Error(t, err)
}
