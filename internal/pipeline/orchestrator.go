package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/denlifik/tg-ytarchiver/internal/feed"
	"github.com/denlifik/tg-ytarchiver/internal/ledger"
)

// LedgerStore is what the orchestrator needs from the persisted ledger.
type LedgerStore interface {
	Load() ([]ledger.ArchivedVideo, error)
	Save([]ledger.ArchivedVideo) error
}

// Processor handles one video end to end. *StageRunner in production.
type Processor interface {
	Process(ctx context.Context, env RunEnv, cand feed.Candidate) (*ledger.ArchivedVideo, error)
}

// Orchestrator drives one batch: poll feed, dedup, process a bounded
// number of unseen videos oldest-first, fold successes into the ledger.
type Orchestrator struct {
	Feed   feed.Source
	Store  LedgerStore
	Runner Processor

	WorkDir          string
	MaxVideosPerRun  int
	MaxLedgerEntries int
	VideoCooldown    time.Duration
	CookiesData      string // raw cookies material, written to a file per run
}

// Summary is what a run reports back for logging.
type Summary struct {
	RunID     string
	FeedSize  int
	New       int
	Processed int
	Archived  int
	Failed    int
}

// Run executes one batch. Errors returned here are run-fatal (unreadable
// feed, corrupt ledger, unwritable ledger); per-video failures are logged
// and absorbed.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	env := RunEnv{RunID: newRunID()}
	l := log.With().Str("run_id", env.RunID).Logger()

	if err := os.MkdirAll(o.WorkDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create work dir: %w", err)
	}

	entries, err := o.Store.Load()
	if err != nil {
		return Summary{}, err
	}

	candidates, err := o.Feed.Fetch(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read feed: %w", err)
	}
	summary := Summary{RunID: env.RunID, FeedSize: len(candidates)}
	if len(candidates) == 0 {
		l.Info().Msg("feed is empty; nothing to do")
		return summary, nil
	}

	fresh := FilterNew(entries, candidates)
	summary.New = len(fresh)
	if len(fresh) == 0 {
		// A no-op run must not rewrite persisted state.
		l.Info().Msg("no new videos")
		return summary, nil
	}
	l.Info().Int("new", len(fresh)).Msg("new videos found")

	if o.CookiesData != "" {
		cookiesPath := filepath.Join(o.WorkDir, "cookies.txt")
		if err := os.WriteFile(cookiesPath, []byte(o.CookiesData), 0o600); err != nil {
			return summary, fmt.Errorf("write cookies file: %w", err)
		}
		defer os.Remove(cookiesPath)
		env.CookiesPath = cookiesPath
	}

	// The feed is newest-first: the batch is the most recent N, processed
	// oldest-first.
	batch := fresh
	if o.MaxVideosPerRun > 0 && len(batch) > o.MaxVideosPerRun {
		batch = batch[:o.MaxVideosPerRun]
	}

	var archived []ledger.ArchivedVideo
	for i := len(batch) - 1; i >= 0; i-- {
		cand := batch[i]
		summary.Processed++
		result, err := o.Runner.Process(ctx, env, cand)
		if err != nil {
			summary.Failed++
			l.Error().Err(err).Str("title", cand.Title).Msg("video failed; will retry on a later run")
		} else {
			summary.Archived++
			archived = append(archived, *result)
			l.Info().Str("title", cand.Title).Int("parts", len(result.Parts)).Msg("video archived")
		}
		if i > 0 {
			// Cooldown between fetches keeps the source's abuse detection quiet.
			select {
			case <-time.After(o.VideoCooldown):
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}
	}

	if len(archived) == 0 {
		l.Warn().Msg("no video archived this run; ledger untouched")
		return summary, nil
	}

	updated := ledger.Trim(append(archived, entries...), o.MaxLedgerEntries)
	if err := o.Store.Save(updated); err != nil {
		return summary, fmt.Errorf("save ledger: %w", err)
	}
	l.Info().Int("archived", summary.Archived).Int("ledger_size", len(updated)).Msg("ledger updated")
	return summary, nil
}

func newRunID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
