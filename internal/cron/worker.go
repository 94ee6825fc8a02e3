package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wattbuy/planengine/internal/config"
	"github.com/wattbuy/planengine/internal/metrics"
	"github.com/wattbuy/planengine/internal/pipeline"
	"github.com/wattbuy/planengine/internal/storage"
	"github.com/wattbuy/planengine/internal/wiring"
)

// Run starts the cron worker that periodically sweeps every known home
// through the Per-Home Pipeline Orchestrator (spec §4.10), using the
// storage backend's own advisory lock so that in a multi-instance
// deployment only one worker runs a given sweep at a time. Grounded on the
// teacher's ticker-plus-DB-setting-interval loop in this same file, with the
// PostgresPoolStorage type assertion replaced by Storage's own
// AcquireAdvisoryLock/ReleaseAdvisoryLock (every backend carries those now,
// not just the postgres pool).
func Run(ctx context.Context, driver, dsn string) error {
	cfg := config.FromEnv()
	if driver != "" {
		cfg.DBDriver = driver
	}
	if dsn != "" {
		cfg.DBDSN = dsn
	}

	st, err := storage.Open(ctx, storage.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	repos, err := storage.ReposFor(st)
	if err != nil {
		return fmt.Errorf("storage backend does not expose pipeline repositories: %w", err)
	}
	if repos.Homes == nil {
		return fmt.Errorf("storage backend does not support enumerating homes")
	}

	orch := wiring.BuildOrchestrator(cfg, repos)

	intervalSetting := "300"
	if raw := os.Getenv("PLANENGINE_CRON_INTERVAL_SECONDS"); raw != "" {
		intervalSetting = raw
	}
	if val, err := st.GetSetting(ctx, "refresh_interval_seconds"); err == nil && val != "" {
		intervalSetting = val
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	getNextRun := func(setting string, lastRun time.Time) time.Time {
		if v, err := strconv.Atoi(setting); err == nil && v > 0 {
			return lastRun.Add(time.Duration(v) * time.Second)
		}
		if sched, err := cron.ParseStandard(setting); err == nil {
			return sched.Next(lastRun)
		}
		return lastRun.Add(5 * time.Minute)
	}

	nextRun := time.Now()

	jobName := "monthly_home_sweep"
	const lockKey int64 = 42

	log.Printf("cron worker starting, initial setting=%q driver=%s", intervalSetting, cfg.DBDriver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if val, err := st.GetSetting(ctx, "refresh_interval_seconds"); err == nil && val != "" {
				if val != intervalSetting {
					log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
					intervalSetting = val
					nextRun = getNextRun(intervalSetting, time.Now())
				}
			}

			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			ok, err := st.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("cron: acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}
			if !ok {
				log.Printf("cron: advisory lock held by another worker, skipping run")
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}

			var runErr error
			func() {
				defer func() {
					if _, err := st.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Printf("cron: release advisory lock failed: %v", err)
					}
				}()
				runErr = sweepHomes(ctx, orch, repos)
			}()

			metrics.UpdateJobMetrics(jobName, started, runErr)
			dur := time.Since(started)
			errMsg := ""
			success := runErr == nil
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := st.UpdateScheduledJob(ctx, jobName, started, dur, success, errMsg); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (duration=%s)", jobName, runErr, dur)
			} else {
				log.Printf("cron: job %s completed successfully (duration=%s)", jobName, dur)
			}

			nextRun = getNextRun(intervalSetting, time.Now())
		}
	}
}

// sweepHomes runs the orchestrator once per known home (spec §4.10's
// monthly_refresh trigger), logging per-home failures without aborting the
// sweep; it returns the first failing home's error (if any) so the scheduled-job
// record reflects that the run was not clean, without losing later homes'
// results.
func sweepHomes(ctx context.Context, orch *pipeline.Orchestrator, repos storage.PipelineRepos) error {
	homes, err := repos.Homes.List(ctx)
	if err != nil {
		return fmt.Errorf("list homes: %w", err)
	}

	var firstErr error
	for _, home := range homes {
		_, runErr := orch.Run(ctx, pipeline.RunInput{
			HomeID:   home.HomeID,
			Reason:   pipeline.ReasonMonthlyRefresh,
			IsRenter: home.IsRenter,
			Budgets:  pipeline.DefaultBudgets(),
		})
		if runErr != nil {
			log.Printf("cron: pipeline run for home %s failed: %v", home.HomeID, runErr)
			if firstErr == nil {
				firstErr = runErr
			}
		}
	}
	return firstErr
}
