package pipeline

import (
	"github.com/denlifik/tg-ytarchiver/internal/config"
	"github.com/denlifik/tg-ytarchiver/internal/feed"
	"github.com/denlifik/tg-ytarchiver/internal/fetch"
	"github.com/denlifik/tg-ytarchiver/internal/ledger"
	"github.com/denlifik/tg-ytarchiver/internal/proxy"
	"github.com/denlifik/tg-ytarchiver/internal/segment"
	"github.com/denlifik/tg-ytarchiver/internal/spoiler"
	"github.com/denlifik/tg-ytarchiver/internal/telegram"
)

// Build wires the production collaborators from config. Optional pieces
// (egress provider, spoiler locator) stay nil when unconfigured.
func Build(cfg config.Config) (*Orchestrator, error) {
	uploader, err := telegram.NewUploader(cfg.BotToken, cfg.ChannelID)
	if err != nil {
		return nil, err
	}

	runner := &StageRunner{
		Fetcher:       fetch.NewClient(),
		Splitter:      segment.NewSplitter(),
		Prober:        segment.NewProber(),
		Uploader:      uploader,
		WorkDir:       cfg.WorkDir,
		MaxHeight:     cfg.QualityMaxHeight,
		FetchTimeout:  cfg.FetchTimeout,
		ChunkDuration: cfg.ChunkDuration,
	}
	if cfg.ProxyDirectoryURL != "" {
		runner.Egress = proxy.NewProvider(cfg.ProxyDirectoryURL, cfg.ProxyProbeURL, cfg.ProxyProbeTimeout)
	}
	if loc := spoiler.NewLocator(cfg.OpenAIKey, cfg.SpoilerScanSecs); loc != nil {
		runner.Spoiler = loc
	}

	return &Orchestrator{
		Feed:             feed.NewClient(cfg.FeedURL),
		Store:            ledger.NewStore(cfg.LedgerPath),
		Runner:           runner,
		WorkDir:          cfg.WorkDir,
		MaxVideosPerRun:  cfg.MaxVideosPerRun,
		MaxLedgerEntries: cfg.MaxLedgerEntries,
		VideoCooldown:    cfg.VideoCooldown,
		CookiesData:      cfg.CookiesData,
	}, nil
}
