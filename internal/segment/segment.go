// Package segment shells out to ffmpeg to split a media file into
// fixed-duration chunks and to ffprobe to validate them.
package segment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/denlifik/tg-ytarchiver/internal/logx"
)

// Chunk is one local segment artifact. Seq is the raw segment index as
// produced by ffmpeg's output numbering; delivery renumbers independently.
type Chunk struct {
	Seq  int
	Path string
}

type Splitter struct{}

func NewSplitter() *Splitter { return &Splitter{} }

// Split cuts input into chunks of chunkDuration in outDir, stream-copying
// all streams and re-basing each chunk's timestamps to zero. Chunks come
// back in lexicographic (= sequence) order. The input file is left in
// place; deleting it is the caller's policy.
func (s *Splitter) Split(ctx context.Context, input, outDir, videoID string, chunkDuration time.Duration) ([]Chunk, error) {
	template := filepath.Join(outDir, videoID+"_part_%03d.mp4")
	secs := int(chunkDuration / time.Second)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", input,
		"-c", "copy",
		"-map", "0",
		"-segment_time", strconv.Itoa(secs),
		"-f", "segment",
		"-reset_timestamps", "1",
		template,
	)
	lw := logx.NewLineWriter(map[string]string{"tool": "ffmpeg", "video_id": videoID}, zerolog.DebugLevel)
	cmd.Stdout = lw
	cmd.Stderr = lw
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg segment failed: %w", err)
	}

	return collectChunks(outDir, videoID+"_part_")
}

func collectChunks(dir, prefix string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan segment dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	chunks := make([]Chunk, 0, len(names))
	for i, name := range names {
		chunks = append(chunks, Chunk{Seq: i, Path: filepath.Join(dir, name)})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no chunks for prefix %s", prefix)
	}
	return chunks, nil
}

type Prober struct{}

func NewProber() *Prober { return &Prober{} }

// Duration probes a chunk's playable duration in seconds. Anything that is
// not a positive number means the chunk is not deliverable.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %q: %w", path, err)
	}
	return parseDuration(out)
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// parseDuration converts raw ffprobe JSON into a duration in seconds.
// Exported path for tests is via ParseDuration below.
func parseDuration(data []byte) (float64, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(raw.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", raw.Format.Duration, err)
	}
	return d, nil
}

// ParseDuration parses ffprobe -show_format JSON without a real ffprobe
// binary. Exported for testing.
func ParseDuration(data []byte) (float64, error) {
	return parseDuration(data)
}
