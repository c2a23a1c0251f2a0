package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the archiver reads from the environment.
// Secrets (bot token, cookies, API keys) come from the scheduler's secret
// store; the rest has working defaults.
type Config struct {
	// Telegram distribution
	BotToken  string
	ChannelID int64

	// Feed source
	FeedURL string

	// Fetcher
	QualityMaxHeight int
	FetchTimeout     time.Duration
	CookiesData      string // raw Netscape cookies text, written to a temp file per run

	// Segmenter
	ChunkDuration time.Duration

	// Ledger / batching
	LedgerPath       string
	MaxLedgerEntries int
	MaxVideosPerRun  int
	VideoCooldown    time.Duration

	// Working area
	WorkDir string

	// Egress provider (off when ProxyDirectoryURL is empty)
	ProxyDirectoryURL string
	ProxyProbeURL     string
	ProxyProbeTimeout time.Duration

	// Spoiler locator (off when OpenAIKey is empty)
	OpenAIKey       string
	SpoilerScanSecs int

	// Daemon only
	RedisAddr string
	RunCron   string
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func mustInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
func mustInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
func mustSeconds(k string, def int) time.Duration {
	return time.Duration(mustInt(k, def)) * time.Second
}

// Load reads the environment. Missing optional settings degrade features
// (no proxies, no spoiler timestamps); missing required ones are reported
// all at once.
func Load() (Config, error) {
	c := Config{
		BotToken:          os.Getenv("BOT_TOKEN"),
		ChannelID:         mustInt64("TELEGRAM_CHANNEL_ID", 0),
		FeedURL:           os.Getenv("YOUTUBE_FEED_URL"),
		QualityMaxHeight:  mustInt("QUALITY_MAX_HEIGHT", 480),
		FetchTimeout:      mustSeconds("FETCH_TIMEOUT_SEC", 900),
		CookiesData:       os.Getenv("YOUTUBE_COOKIES"),
		ChunkDuration:     mustSeconds("CHUNK_DURATION_SEC", 600),
		LedgerPath:        getenv("LEDGER_PATH", "videos.json"),
		MaxLedgerEntries:  mustInt("MAX_LEDGER_ENTRIES", 25),
		MaxVideosPerRun:   mustInt("MAX_VIDEOS_PER_RUN", 3),
		VideoCooldown:     mustSeconds("VIDEO_COOLDOWN_SEC", 5),
		WorkDir:           getenv("WORK_DIR", "temp_videos"),
		ProxyDirectoryURL: os.Getenv("PROXY_DIRECTORY_URL"),
		ProxyProbeURL:     getenv("PROXY_PROBE_URL", "https://www.youtube.com/robots.txt"),
		ProxyProbeTimeout: mustSeconds("PROXY_PROBE_TIMEOUT_SEC", 5),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		SpoilerScanSecs:   mustInt("SPOILER_SCAN_SEC", 45),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		RunCron:           getenv("RUN_CRON_SPEC", "@every 1h"),
	}

	var missing []string
	if c.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}
	if c.ChannelID == 0 {
		missing = append(missing, "TELEGRAM_CHANNEL_ID")
	}
	if strings.TrimSpace(c.FeedURL) == "" {
		missing = append(missing, "YOUTUBE_FEED_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}

	// Chunk durations outside the supported window produce parts Telegram
	// chokes on; clamp rather than fail.
	if c.ChunkDuration < 240*time.Second {
		c.ChunkDuration = 240 * time.Second
	}
	if c.ChunkDuration > 600*time.Second {
		c.ChunkDuration = 600 * time.Second
	}
	return c, nil
}
