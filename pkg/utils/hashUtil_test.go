package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestHashString(t *testing.T) {
	assert.Equal(t, emptySHA, HashString(""))
	assert.Equal(t, HashString("stages: []"), HashBytes([]byte("stages: []")))
	assert.NotEqual(t, HashString("a"), HashString("b"))
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "child-pipeline.yml")
	require.NoError(t, os.WriteFile(path, []byte("---\n"), 0o644))

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashString("---\n"), got)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc", ShortHash(emptySHA))
	assert.Equal(t, "abc", ShortHash("abc"))
}
