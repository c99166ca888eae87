// Package janitor runs periodic housekeeping: expired password resets and
// in-process caches that would otherwise only shrink on read.
package janitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task removes stale state and reports how much it removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

type Config struct {
	Interval    time.Duration
	TaskTimeout time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

type taskState struct {
	failures int
	nextRun  time.Time
}

type Janitor struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	mu    sync.Mutex
	tasks []Task
	state map[string]*taskState
}

func New(cfg Config, log *slog.Logger) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Second
	}

	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}

	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 5 * time.Minute
	}

	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Janitor{
		cfg:   cfg,
		log:   log.With("component", "janitor"),
		now:   time.Now,
		state: make(map[string]*taskState),
	}
}

func (j *Janitor) Add(t Task) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.tasks = append(j.tasks, t)
	j.state[t.Name] = &taskState{}
}

// Run ticks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("janitor stopping")
			return nil

		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce runs every task that is not backing off from a recent failure.
func (j *Janitor) RunOnce(ctx context.Context) {
	j.mu.Lock()
	tasks := append([]Task(nil), j.tasks...)
	j.mu.Unlock()

	for _, t := range tasks {
		if ctx.Err() != nil {
			return
		}

		j.runTask(ctx, t)
	}
}

func (j *Janitor) runTask(ctx context.Context, t Task) {
	now := j.now()

	j.mu.Lock()
	st := j.state[t.Name]
	due := !now.Before(st.nextRun)
	j.mu.Unlock()

	if !due {
		return
	}

	tctx, cancel := context.WithTimeout(ctx, j.cfg.TaskTimeout)
	removed, err := t.Run(tctx)
	cancel()

	j.mu.Lock()
	defer j.mu.Unlock()

	if err != nil {
		delay := backoff(j.cfg.BackoffBase, j.cfg.BackoffMax, st.failures)
		st.failures++
		st.nextRun = now.Add(delay)

		j.log.WarnContext(ctx, "janitor task failed", "task", t.Name, "failures", st.failures, "retry_in", delay.String(), "err", err)
		return
	}

	st.failures = 0
	st.nextRun = time.Time{}

	if removed > 0 {
		j.log.DebugContext(ctx, "janitor task done", "task", t.Name, "removed", removed)
	}
}
