package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLog(t *testing.T) {
	ls := NewLogStorage(filepath.Join(t.TempDir(), "logs"))
	ls.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 5, 0, time.UTC) }

	path, err := ls.SaveLog("lint", "shell check!", "SC2086 warning")
	require.NoError(t, err)
	assert.Equal(t, "lint_shellcheck_20260301_123005.log", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SC2086 warning", string(data))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"markdownlint-cli2", "markdownlint-cli2"},
		{"a/b c", "abc"},
		{"***", "step"},
		{"", "step"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "child-pipeline.yml")
	require.NoError(t, WriteFile(path, []byte("---\n")))
	require.NoError(t, WriteFile(path, []byte("---\nstages: []\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "---\nstages: []\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")
}

func TestFormatLines(t *testing.T) {
	assert.Equal(t, "a\nb\n", FormatLines([]string{" a ", "", "b"}))
	assert.Equal(t, "", FormatLines([]string{}))
	assert.False(t, strings.HasSuffix(FormatLines([]string{"x"}), "\n\n"))
}
