// Command archiver performs one archival run: poll the feed, archive
// unseen videos to the Telegram channel, update the ledger. Intended to be
// invoked by an external scheduler (cron, CI) that also serializes runs.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/denlifik/tg-ytarchiver/internal/config"
	"github.com/denlifik/tg-ytarchiver/internal/fetch"
	"github.com/denlifik/tg-ytarchiver/internal/ledger"
	"github.com/denlifik/tg-ytarchiver/internal/logx"
	"github.com/denlifik/tg-ytarchiver/internal/pipeline"
)

func main() {
	_ = godotenv.Load()
	logx.Setup(logx.FromEnv("archiver"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}
	if err := fetch.CheckDependencies(); err != nil {
		log.Fatal().Err(err).Msg("preflight failed")
	}

	orch, err := pipeline.Build(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := orch.Run(ctx)
	if err != nil {
		if errors.Is(err, ledger.ErrCorrupt) {
			log.Fatal().Err(err).Msg("ledger is corrupt; refusing to run (fix or restore the file)")
		}
		log.Fatal().Err(err).Msg("run failed")
	}
	log.Info().
		Str("run_id", summary.RunID).
		Int("feed", summary.FeedSize).
		Int("new", summary.New).
		Int("processed", summary.Processed).
		Int("archived", summary.Archived).
		Int("failed", summary.Failed).
		Msg("run complete")
}
