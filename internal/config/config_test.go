package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHANNEL_ID", "-1001234567890")
	t.Setenv("YOUTUBE_FEED_URL", "https://www.youtube.com/feeds/videos.xml?channel_id=UC123")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(-1001234567890), c.ChannelID)
	assert.Equal(t, 480, c.QualityMaxHeight)
	assert.Equal(t, 900*time.Second, c.FetchTimeout)
	assert.Equal(t, 600*time.Second, c.ChunkDuration)
	assert.Equal(t, "videos.json", c.LedgerPath)
	assert.Equal(t, 25, c.MaxLedgerEntries)
	assert.Equal(t, 3, c.MaxVideosPerRun)
	assert.Equal(t, 5*time.Second, c.VideoCooldown)
	assert.Equal(t, "temp_videos", c.WorkDir)
	assert.Empty(t, c.ProxyDirectoryURL)
	assert.Equal(t, "@every 1h", c.RunCron)
}

func TestLoadReportsAllMissingRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHANNEL_ID", "")
	t.Setenv("YOUTUBE_FEED_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_TOKEN")
	assert.Contains(t, err.Error(), "TELEGRAM_CHANNEL_ID")
	assert.Contains(t, err.Error(), "YOUTUBE_FEED_URL")
}

func TestLoadClampsChunkDuration(t *testing.T) {
	setRequired(t)

	t.Setenv("CHUNK_DURATION_SEC", "30")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 240*time.Second, c.ChunkDuration)

	t.Setenv("CHUNK_DURATION_SEC", "3600")
	c, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 600*time.Second, c.ChunkDuration)

	t.Setenv("CHUNK_DURATION_SEC", "300")
	c, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, c.ChunkDuration)
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_VIDEOS_PER_RUN", "three")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, c.MaxVideosPerRun)
}
