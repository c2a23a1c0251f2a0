package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration([]byte(`{"format":{"duration":"599.946667"}}`))
	require.NoError(t, err)
	assert.InDelta(t, 599.946667, d, 0.0001)
}

func TestParseDurationMissingField(t *testing.T) {
	_, err := ParseDuration([]byte(`{"format":{}}`))
	assert.Error(t, err)
}

func TestParseDurationGarbage(t *testing.T) {
	_, err := ParseDuration([]byte(`not json at all`))
	assert.Error(t, err)
}

func TestCollectChunksOrdersBySequence(t *testing.T) {
	dir := t.TempDir()
	// Create out of order; collection must sort lexicographically.
	for _, name := range []string{"vid_part_002.mp4", "vid_part_000.mp4", "vid_part_001.mp4", "other_part_000.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	chunks, err := collectChunks(dir, "vid_part_")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Seq)
	}
	assert.Equal(t, filepath.Join(dir, "vid_part_000.mp4"), chunks[0].Path)
	assert.Equal(t, filepath.Join(dir, "vid_part_002.mp4"), chunks[2].Path)
}

func TestCollectChunksEmptyIsError(t *testing.T) {
	_, err := collectChunks(t.TempDir(), "vid_part_")
	assert.Error(t, err)
}
