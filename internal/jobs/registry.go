// Package jobs runs scheduled background work on a cron registry. Jobs are
// registered explicitly by name; nothing is scheduled implicitly at import
// time.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"botplatform_backend/internal/logger"
)

// Job is a unit of scheduled work. Returned errors are logged, not retried:
// the next tick runs regardless.
type Job func(ctx context.Context) error

// Registry schedules named jobs with cron expressions in a fixed location.
type Registry struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

func NewRegistry(loc *time.Location) *Registry {
	return &Registry{
		cron:    cron.New(cron.WithLocation(loc)),
		entries: make(map[string]cron.EntryID),
	}
}

// Register schedules a job under a unique name. Registering after Start is
// allowed; the job joins the running schedule.
func (r *Registry) Register(name, spec string, job Job) error {
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	id, err := r.cron.AddFunc(spec, func() {
		started := time.Now()
		if err := job(context.Background()); err != nil {
			logger.Error("job failed", "job", name, "error", err)
			return
		}
		logger.Debug("job finished", "job", name, "took", time.Since(started).String())
	})
	if err != nil {
		return fmt.Errorf("schedule job %q: %w", name, err)
	}

	r.entries[name] = id
	logger.Info("job registered", "job", name, "spec", spec)
	return nil
}

func (r *Registry) Start() {
	r.cron.Start()
	logger.Info("job registry started", "jobs", len(r.entries))
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Registry) Stop() {
	<-r.cron.Stop().Done()
	logger.Info("job registry stopped")
}
