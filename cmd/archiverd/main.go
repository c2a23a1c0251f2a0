// Command archiverd runs the archiver on a schedule. An asynq scheduler
// enqueues archive:run per the cron spec and a single-concurrency worker
// consumes it, so batches never overlap even across daemon replicas (a
// Redis lease covers the multi-replica case).
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/denlifik/tg-ytarchiver/internal/config"
	"github.com/denlifik/tg-ytarchiver/internal/fetch"
	"github.com/denlifik/tg-ytarchiver/internal/jobs"
	"github.com/denlifik/tg-ytarchiver/internal/logx"
	"github.com/denlifik/tg-ytarchiver/internal/pipeline"
)

const (
	runLeaseKey = "archiver:run_lease"
	lastRunKey  = "archiver:last_run"

	// A lease longer than any plausible batch; expires on its own if the
	// daemon dies mid-run.
	runLeaseTTL = 2 * time.Hour
)

func main() {
	_ = godotenv.Load()
	logx.Setup(logx.FromEnv("archiverd"))

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

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	// health endpoint
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
		log.Info().Msg("health on :8080/health")
		log.Error().Err(http.ListenAndServe(":8080", nil)).Msg("health endpoint stopped")
	}()

	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, nil)
	payload, _ := json.Marshal(jobs.ArchiveRunPayload{Scheduled: true})
	if _, err := scheduler.Register(cfg.RunCron, asynq.NewTask(jobs.TaskArchiveRun, payload)); err != nil {
		log.Fatal().Err(err).Str("cron", cfg.RunCron).Msg("register schedule failed")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("scheduler start failed")
	}
	defer scheduler.Shutdown()

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: 1,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TaskArchiveRun, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.ArchiveRunPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return handleArchiveRun(ctx, rdb, orch, p)
	})

	log.Info().Str("cron", cfg.RunCron).Msg("archiverd starting")
	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}

func handleArchiveRun(ctx context.Context, rdb *redis.Client, orch *pipeline.Orchestrator, p jobs.ArchiveRunPayload) error {
	ok, err := rdb.SetNX(ctx, runLeaseKey, time.Now().UTC().Format(time.RFC3339), runLeaseTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Msg("another run holds the lease; skipping")
		return nil
	}
	defer rdb.Del(context.Background(), runLeaseKey)

	summary, runErr := orch.Run(ctx)
	recordLastRun(rdb, summary, runErr)
	if runErr != nil {
		log.Error().Err(runErr).Bool("scheduled", p.Scheduled).Msg("run failed")
		return runErr
	}
	log.Info().
		Str("run_id", summary.RunID).
		Int("new", summary.New).
		Int("archived", summary.Archived).
		Int("failed", summary.Failed).
		Bool("scheduled", p.Scheduled).
		Msg("run complete")
	return nil
}

// recordLastRun keeps a small operator-facing summary in Redis; best effort.
func recordLastRun(rdb *redis.Client, s pipeline.Summary, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fields := map[string]any{
		"run_id":    s.RunID,
		"at":        time.Now().UTC().Format(time.RFC3339),
		"feed":      strconv.Itoa(s.FeedSize),
		"new":       strconv.Itoa(s.New),
		"processed": strconv.Itoa(s.Processed),
		"archived":  strconv.Itoa(s.Archived),
		"failed":    strconv.Itoa(s.Failed),
		"error":     "",
	}
	if runErr != nil {
		fields["error"] = runErr.Error()
	}
	if err := rdb.HSet(ctx, lastRunKey, fields).Err(); err != nil {
		log.Debug().Err(err).Msg("could not record last run summary")
	}
}
