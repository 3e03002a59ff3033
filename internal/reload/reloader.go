// Package reload re-reads the dataset source on a cron schedule.
package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/pathmap/pkg/schema"
)

// Reloadable is the target of a reload. Satisfied by *app.App.
type Reloadable interface {
	Reload(ctx context.Context) (bool, error)
}

// Status is a point-in-time view of the reloader.
type Status struct {
	Schedule   string     `json:"schedule"`
	Running    bool       `json:"running"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	Reloads    int        `json:"reloads"`
}

// Run outcomes recorded in Status.LastStatus.
const (
	StatusReloaded  = "reloaded"
	StatusUnchanged = "unchanged"
	StatusError     = "error"
)

// ErrInProgress is returned by RunOnce when another run has not finished.
var ErrInProgress = errors.New("reload already in progress")

// Parser accepts standard five-field expressions and descriptors such as
// "@hourly" or "@every 10m".
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Reloader calls Reload on its target whenever the schedule fires.
type Reloader struct {
	spec     string
	schedule cron.Schedule
	target   Reloadable
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inflight atomic.Bool

	statusMu   sync.Mutex
	lastRunAt  *time.Time
	nextRunAt  *time.Time
	lastStatus string
	reloads    int
}

// New parses spec and returns a stopped Reloader.
func New(spec string, target Reloadable, logger *slog.Logger) (*Reloader, error) {
	schedule, err := Parser.Parse(spec)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse reload schedule %q: %s", spec, err.Error()).WithCause(err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{spec: spec, schedule: schedule, target: target, logger: logger}, nil
}

// NextRun returns the first fire time after from.
func (r *Reloader) NextRun(from time.Time) time.Time {
	return r.schedule.Next(from)
}

// Start launches the scheduling loop.
func (r *Reloader) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return fmt.Errorf("reloader already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(loopCtx, r.done)
	r.logger.Info("reloader started", slog.String("schedule", r.spec))
	return nil
}

func (r *Reloader) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		next := r.NextRun(time.Now())
		r.setNext(next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, ErrInProgress) {
				r.logger.Error("scheduled reload failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce performs one reload now. An overlapping call is skipped and
// returns ErrInProgress.
func (r *Reloader) RunOnce(ctx context.Context) (bool, error) {
	if !r.inflight.CompareAndSwap(false, true) {
		r.logger.Debug("reload already in progress")
		return false, ErrInProgress
	}
	defer r.inflight.Store(false)

	changed, err := r.target.Reload(ctx)

	now := time.Now().UTC()
	status := StatusUnchanged
	switch {
	case err != nil:
		status = StatusError
	case changed:
		status = StatusReloaded
	}

	r.statusMu.Lock()
	r.lastRunAt = &now
	r.lastStatus = status
	if changed {
		r.reloads++
	}
	r.statusMu.Unlock()

	if changed {
		r.logger.Info("dataset reloaded")
	}
	return changed, err
}

// Status returns the current reloader status.
func (r *Reloader) Status() Status {
	r.mu.Lock()
	running := r.done != nil
	r.mu.Unlock()

	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return Status{
		Schedule:   r.spec,
		Running:    running,
		LastRunAt:  r.lastRunAt,
		NextRunAt:  r.nextRunAt,
		LastStatus: r.lastStatus,
		Reloads:    r.reloads,
	}
}

func (r *Reloader) setNext(t time.Time) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.nextRunAt = &t
}

// Stop cancels the loop and waits for it to exit. Stopping a stopped
// Reloader is a no-op.
func (r *Reloader) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return nil
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil

	r.logger.Info("reloader stopped")
	return nil
}
