// Package fetch wraps yt-dlp. The downloader is a black box: one media
// file appears under the requested template prefix, or the call fails.
package fetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/denlifik/tg-ytarchiver/internal/logx"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// Request describes one download.
type Request struct {
	URL         string
	VideoID     string
	OutputDir   string
	MaxHeight   int
	CookiesPath string // "" = anonymous
	ProxyURL    string // "" = direct
	Timeout     time.Duration
}

type Client struct{}

func NewClient() *Client { return &Client{} }

// Fetch downloads one media file and returns its local path. The output
// name is "<id>_full.<ext>"; the extension is yt-dlp's choice, so the
// result is located by prefix scan afterwards.
func (c *Client) Fetch(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.URL) == "" {
		return "", fmt.Errorf("video URL is required")
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	template := filepath.Join(req.OutputDir, req.VideoID+"_full.%(ext)s")
	args := []string{
		"--user-agent", userAgent,
		"--no-check-certificate",
		"--no-playlist",
		"-f", fmt.Sprintf("best[height<=%d]", req.MaxHeight),
		"--output", template,
	}
	if strings.TrimSpace(req.CookiesPath) != "" {
		args = append(args, "--cookies", req.CookiesPath)
	}
	if strings.TrimSpace(req.ProxyURL) != "" {
		args = append(args, "--proxy", strings.TrimSpace(req.ProxyURL))
	}
	args = append(args, req.URL)

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	lw := logx.NewLineWriter(map[string]string{"tool": "yt-dlp", "video_id": req.VideoID}, zerolog.DebugLevel)
	cmd.Stdout = lw
	cmd.Stderr = lw
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("yt-dlp timed out after %s: %w", req.Timeout, ctx.Err())
		}
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	path, err := findOutput(req.OutputDir, req.VideoID+"_full")
	if err != nil {
		return "", err
	}
	return path, nil
}

// findOutput locates the downloaded file by prefix. yt-dlp exiting zero
// without producing a file is still a failure.
func findOutput(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan output dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			return filepath.Join(dir, name), nil
		}
	}
	return "", fmt.Errorf("yt-dlp produced no output file for prefix %s", prefix)
}

// CheckDependencies verifies the external tools the pipeline shells out to
// are on PATH before the run touches anything.
func CheckDependencies() error {
	for _, bin := range []string{"yt-dlp", "ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing dependency: %s is not installed or not on PATH", bin)
		}
	}
	return nil
}
