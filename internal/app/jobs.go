package app

import (
	"context"
	"time"

	"api-gateway/internal/common/logging"
	"api-gateway/internal/locks"
	"api-gateway/internal/scheduler"
)

const (
	JobHealthEvaluate = "health.evaluate"
	JobHealthFlush    = "health.flush"
	JobHealthRollup   = "health.rollup"
	JobTokensPurge    = "tokens.purge"
)

func (app *App) initializeScheduler() error {
	if app.RedisClient != nil {
		locker, err := locks.NewRedsyncLocker(app.RedisClient)
		if err != nil {
			return err
		}
		app.Locker = locker
	} else {
		app.Locker = locks.NewMemoryLocker()
	}

	app.Scheduler = scheduler.New(app.Locker)

	// Evaluation and flushing read this instance's in-memory window, so every
	// instance runs them under its own lock. Rollups and purges work on shared
	// storage and run once across the cluster.
	jobs := []struct {
		name    string
		lock    string
		spec    string
		timeout time.Duration
		run     scheduler.Job
	}{
		{JobHealthEvaluate, JobHealthEvaluate + ":" + app.instance, "@every 30s", 20 * time.Second, app.evaluateHealth},
		{JobHealthFlush, JobHealthFlush + ":" + app.instance, "@every 1m", 30 * time.Second, app.flushMetrics},
		{JobHealthRollup, JobHealthRollup, "@every " + app.Config.HealthRollupWindow.String(), 5 * time.Minute, app.rollupMetrics},
		{JobTokensPurge, JobTokensPurge, "@every 15m", time.Minute, app.purgeTokens},
	}
	for _, j := range jobs {
		if err := app.Scheduler.Add(j.lock, j.spec, j.timeout, j.run); err != nil {
			return err
		}
	}
	return nil
}

// RunJob triggers a registered job by its short name.
func (app *App) RunJob(name string) (bool, error) {
	switch name {
	case JobHealthEvaluate, JobHealthFlush:
		name += ":" + app.instance
	}
	return app.Scheduler.RunNow(name)
}

func (app *App) evaluateHealth(ctx context.Context) error {
	app.Monitor.Evaluate(ctx)
	return nil
}

func (app *App) flushMetrics(ctx context.Context) error {
	n, err := app.Monitor.Flush(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		app.Logger.Debug("Flushed metric samples", logging.Field{Key: "samples", Value: n})
	}
	return nil
}

func (app *App) rollupMetrics(ctx context.Context) error {
	rollups, err := app.Monitor.Rollup(ctx, app.Config.HealthRollupWindow)
	if err != nil {
		return err
	}
	app.Logger.Info("Metric rollup complete", logging.Field{Key: "rollups", Value: len(rollups)})
	return nil
}

func (app *App) purgeTokens(ctx context.Context) error {
	n, err := app.Auth.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		app.Logger.Info("Purged expired tokens", logging.Field{Key: "tokens", Value: n})
	}
	return nil
}
