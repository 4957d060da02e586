// internal/app/system/workers/cleanup.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one purge step. It returns how many records it removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Cleanup is a background worker that runs purge tasks on an interval.
type Cleanup struct {
	tasks    []Task
	log      *zap.Logger
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCleanup creates a cleanup worker. Each pass gets timeout to finish all
// tasks.
func NewCleanup(logger *zap.Logger, interval, timeout time.Duration, tasks ...Task) *Cleanup {
	return &Cleanup{
		tasks:    tasks,
		log:      logger,
		interval: interval,
		timeout:  timeout,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background cleanup loop.
func (w *Cleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("cleanup worker started",
		zap.Duration("interval", w.interval),
		zap.Int("tasks", len(w.tasks)))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// more than once.
func (w *Cleanup) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("cleanup worker stopped")
	})
}

func (w *Cleanup) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(context.Background())
		}
	}
}

// RunOnce runs every task once. A failing task is logged and does not stop
// the others.
func (w *Cleanup) RunOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	for _, t := range w.tasks {
		count, err := t.Run(ctx)
		if err != nil {
			w.log.Error("cleanup task failed", zap.String("task", t.Name), zap.Error(err))
			continue
		}
		if count > 0 {
			w.log.Info("cleanup task removed records",
				zap.String("task", t.Name),
				zap.Int64("count", count))
		}
	}
}
