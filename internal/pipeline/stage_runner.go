// Package pipeline drives the per-video archival state machine and the
// batch run around it.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/denlifik/tg-ytarchiver/internal/feed"
	"github.com/denlifik/tg-ytarchiver/internal/fetch"
	"github.com/denlifik/tg-ytarchiver/internal/ledger"
	"github.com/denlifik/tg-ytarchiver/internal/segment"
)

// Collaborator seams. The production implementations shell out to yt-dlp,
// ffmpeg and ffprobe or call the Telegram API; tests swap in fakes.
type (
	Fetcher interface {
		Fetch(ctx context.Context, req fetch.Request) (string, error)
	}
	Splitter interface {
		Split(ctx context.Context, input, outDir, videoID string, chunkDuration time.Duration) ([]segment.Chunk, error)
	}
	Prober interface {
		Duration(ctx context.Context, path string) (float64, error)
	}
	Uploader interface {
		UploadVideo(ctx context.Context, path, caption string) (string, error)
	}
	EgressProvider interface {
		Acquire(ctx context.Context) (string, error)
	}
	SpoilerLocator interface {
		Locate(ctx context.Context, mediaPath, workDir, videoID string) string
	}
)

// RunEnv carries run-scoped material into each video's processing.
type RunEnv struct {
	RunID       string
	CookiesPath string // "" = anonymous fetch
}

// StageRunner processes one candidate at a time:
// acquire -> segment -> (spoiler locate) -> validate and distribute.
// It owns the working directory for the video's artifacts and drains them
// on every exit path.
type StageRunner struct {
	Fetcher  Fetcher
	Splitter Splitter
	Prober   Prober
	Uploader Uploader
	Egress   EgressProvider // nil = direct network access
	Spoiler  SpoilerLocator // nil = stage disabled

	WorkDir       string
	MaxHeight     int
	FetchTimeout  time.Duration
	ChunkDuration time.Duration
}

// Process returns the archived video, or nil and a reason when nothing was
// delivered. A nil result never touches the ledger, so the candidate stays
// new and is retried on a later run.
func (r *StageRunner) Process(ctx context.Context, env RunEnv, cand feed.Candidate) (result *ledger.ArchivedVideo, err error) {
	defer r.sweep(cand.ID)
	defer func() {
		// The video boundary: a panicking stage loses this video, not the batch.
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("stage panic: %v", rec)
		}
	}()

	l := log.With().Str("run_id", env.RunID).Str("video_id", cand.ID).Str("title", cand.Title).Logger()
	l.Info().Msg("processing video")

	var proxyURL string
	if r.Egress != nil {
		proxyURL, err = r.Egress.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire egress: %w", err)
		}
	}

	l.Info().Msg("downloading")
	mediaPath, err := r.Fetcher.Fetch(ctx, fetch.Request{
		URL:         cand.WatchURL(),
		VideoID:     cand.ID,
		OutputDir:   r.WorkDir,
		MaxHeight:   r.MaxHeight,
		CookiesPath: env.CookiesPath,
		ProxyURL:    proxyURL,
		Timeout:     r.FetchTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}

	l.Info().Msg("segmenting")
	chunks, err := r.Splitter.Split(ctx, mediaPath, r.WorkDir, cand.ID, r.ChunkDuration)
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}

	// Spoiler location reads the original media, so it has to happen here,
	// before the full file is dropped to bound disk usage.
	safeFrom := ""
	if r.Spoiler != nil {
		safeFrom = r.Spoiler.Locate(ctx, mediaPath, r.WorkDir, cand.ID)
		if safeFrom != "" {
			l.Info().Str("safe_from", safeFrom).Msg("spoiler-free point located")
		}
	}
	if err := os.Remove(mediaPath); err != nil {
		l.Warn().Err(err).Msg("could not remove source file")
	}

	l.Info().Int("chunks", len(chunks)).Msg("delivering chunks")
	parts := r.distribute(ctx, l, cand, chunks)
	if len(parts) == 0 {
		return nil, fmt.Errorf("no chunk was delivered")
	}

	return &ledger.ArchivedVideo{
		ID:              cand.ID,
		Title:           cand.Title,
		Parts:           parts,
		SpoilerSafeFrom: safeFrom,
	}, nil
}

// distribute runs the per-chunk quality gate and upload. Invalid chunks
// and failed uploads are skipped; part numbers count delivered chunks
// contiguously from 1 regardless of the raw segment index. Every chunk is
// removed right after its attempt so disk usage never accumulates.
func (r *StageRunner) distribute(ctx context.Context, l zerolog.Logger, cand feed.Candidate, chunks []segment.Chunk) []ledger.ArchivedPart {
	var parts []ledger.ArchivedPart
	for _, chunk := range chunks {
		duration, err := r.Prober.Duration(ctx, chunk.Path)
		if err != nil || duration <= 0 {
			l.Warn().Err(err).Float64("duration", duration).Int("seq", chunk.Seq).Msg("chunk failed quality gate; skipping")
			_ = os.Remove(chunk.Path)
			continue
		}

		partNum := len(parts) + 1
		caption := fmt.Sprintf("%s — Part %d", cand.Title, partNum)
		fileID, err := r.Uploader.UploadVideo(ctx, chunk.Path, caption)
		if err != nil {
			l.Warn().Err(err).Int("seq", chunk.Seq).Msg("chunk upload failed; skipping")
			_ = os.Remove(chunk.Path)
			continue
		}
		parts = append(parts, ledger.ArchivedPart{PartNum: partNum, FileID: fileID})
		_ = os.Remove(chunk.Path)
	}
	return parts
}

// sweep removes every working-area file belonging to the video: the full
// download, chunks, and spoiler frames all carry the video id prefix.
func (r *StageRunner) sweep(videoID string) {
	entries, err := os.ReadDir(r.WorkDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), videoID) {
			continue
		}
		_ = os.Remove(filepath.Join(r.WorkDir, e.Name()))
	}
}
