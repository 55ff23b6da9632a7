package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/tasks-api/internal/model"
)

// StatsSource is anything that can count tasks; *service.TaskService in main.
type StatsSource interface {
	GetStats(ctx context.Context) (model.Stats, error)
}

// Reporter logs the task counters on a fixed interval until stopped.
type Reporter struct {
	source   StatsSource
	logger   *zap.Logger
	interval time.Duration
	wg       sync.WaitGroup
	stop     chan struct{}
	once     sync.Once
}

func NewReporter(source StatsSource, logger *zap.Logger, interval time.Duration) *Reporter {
	return &Reporter{
		source:   source,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (r *Reporter) Start(ctx context.Context) {
	r.logger.Info("Starting stats reporter", zap.Duration("interval", r.interval))

	r.wg.Add(1)
	go r.run(ctx)
}

// Stop is safe to call more than once.
func (r *Reporter) Stop() {
	r.once.Do(func() {
		close(r.stop)
		r.wg.Wait()
		r.logger.Info("Stats reporter stopped")
	})
}

func (r *Reporter) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report(ctx)
		}
	}
}

func (r *Reporter) report(ctx context.Context) {
	stats, err := r.source.GetStats(ctx)
	if err != nil {
		r.logger.Error("stats report failed", zap.Error(err))
		return
	}
	r.logger.Info("task stats",
		zap.Int("total", stats.Total),
		zap.Int("done", stats.Done),
		zap.Int("open", stats.Open),
	)
}
