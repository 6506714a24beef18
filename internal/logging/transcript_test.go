package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptWritesExchanges(t *testing.T) {
	dir := t.TempDir()

	tr, err := StartTranscript(dir, "conv-123")
	require.NoError(t, err)

	tr.LogExchange("you", "hello")
	tr.LogExchange("bot", "hi there")
	require.NoError(t, tr.Close())

	entries, err := filepath.Glob(filepath.Join(dir, "interview_conv-123_*.log"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(entries[0])
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "Conversation: conv-123")
	assert.Contains(t, content, "you: hello")
	assert.Contains(t, content, "bot: hi there")
	assert.Contains(t, content, "Session ended")
}

func TestTranscriptCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "transcripts")

	tr, err := StartTranscript(dir, "conv-1")
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNilTranscriptIsSafe(t *testing.T) {
	var tr *TranscriptLogger
	tr.LogExchange("you", "hello")
	tr.Log("loose %s", "line")
	assert.NoError(t, tr.Close())
}

func TestTranscriptLinesArePrefixed(t *testing.T) {
	dir := t.TempDir()

	tr, err := StartTranscript(dir, "conv-9")
	require.NoError(t, err)
	tr.Log("checkpoint saved")
	require.NoError(t, tr.Close())

	entries, _ := filepath.Glob(filepath.Join(dir, "interview_conv-9_*.log"))
	require.Len(t, entries, 1)
	data, err := os.ReadFile(entries[0])
	require.NoError(t, err)

	found := false
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, "checkpoint saved") {
			assert.True(t, strings.HasPrefix(line, "["))
			found = true
		}
	}
	assert.True(t, found)
}
