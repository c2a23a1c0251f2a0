// Command localtest runs the per-video pipeline once for a given video id,
// bypassing the feed and the ledger. Handy for checking the yt-dlp /
// ffmpeg / Telegram plumbing before wiring a schedule.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/denlifik/tg-ytarchiver/internal/config"
	"github.com/denlifik/tg-ytarchiver/internal/feed"
	"github.com/denlifik/tg-ytarchiver/internal/fetch"
	"github.com/denlifik/tg-ytarchiver/internal/logx"
	"github.com/denlifik/tg-ytarchiver/internal/pipeline"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run ./cmd/localtest <video-id> <title>")
		return
	}

	_ = godotenv.Load()
	logx.Setup(logx.FromEnv("localtest"))

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
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create work dir")
	}

	cand := feed.Candidate{ID: os.Args[1], Title: os.Args[2]}
	result, err := orch.Runner.Process(context.Background(), pipeline.RunEnv{RunID: "localtest"}, cand)
	if err != nil {
		log.Fatal().Err(err).Msg("video failed")
	}
	for _, p := range result.Parts {
		fmt.Printf("part %d -> %s\n", p.PartNum, p.FileID)
	}
	if result.SpoilerSafeFrom != "" {
		fmt.Println("spoiler-safe from:", result.SpoilerSafeFrom)
	}
}
