package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/filemill/filemill/internal/logger"
	"github.com/filemill/filemill/pkg/broker"
	"github.com/filemill/filemill/pkg/config"
	"github.com/filemill/filemill/pkg/store"
)

// reapBatchSize caps how many stale jobs one sweep republishes. A huge
// backlog drains over several sweeps instead of flooding the broker.
const reapBatchSize = 100

// sweepTimeout bounds one sweep's database and publish work.
const sweepTimeout = 30 * time.Second

// Reaper republishes envelopes for jobs stuck in QUEUED. The submitter
// publishes only after commit, so a crash or broker outage in that window
// strands committed jobs with no envelope in flight; the reaper closes
// that gap. Workers tolerate the resulting duplicates.
type Reaper struct {
	store  *store.GORMStore
	broker Publisher
	cfg    config.ReaperConfig

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewReaper wires a Reaper. Call Start to begin sweeping.
func NewReaper(st *store.GORMStore, bk Publisher, cfg config.ReaperConfig) *Reaper {
	return &Reaper{
		store:  st,
		broker: bk,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the sweep loop in a goroutine.
func (r *Reaper) Start() {
	logger.Info("Starting stale-job reaper",
		"interval", r.cfg.Interval.String(),
		"requeue_after", r.cfg.RequeueAfter.String(),
	)
	go r.run()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.doneCh
}

func (r *Reaper) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			if n, err := r.Sweep(ctx); err != nil {
				logger.Error("Reaper sweep failed", logger.Err(err))
			} else if n > 0 {
				logger.Info("Reaper republished stale jobs", "count", n)
			}
			cancel()
		}
	}
}

// Sweep republishes every QUEUED job older than the requeue threshold and
// returns how many envelopes went out. Exposed for tests and for a manual
// kick via the CLI.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.cfg.RequeueAfter)
	jobs, err := r.store.ListStaleQueuedJobs(ctx, cutoff, reapBatchSize)
	if err != nil {
		return 0, err
	}

	published := make([]string, 0, len(jobs))
	for _, job := range jobs {
		file, err := r.store.GetFile(ctx, job.FileID)
		if err != nil {
			logger.WarnCtx(ctx, "Stale job references missing file, skipping",
				logger.JobID(job.ID),
				logger.FileID(job.FileID),
				logger.Err(err),
			)
			continue
		}

		env := &broker.Envelope{
			JobID:  job.ID,
			FileID: file.ID,
			Bucket: file.Bucket,
			Key:    file.Key,
			Type:   string(job.Type),
			Params: job.GetParams(),
		}
		if err := r.broker.Publish(ctx, QueueFor(job.Type), env); err != nil {
			// Broker still down; the job stays stale and the next sweep
			// retries it.
			logger.WarnCtx(ctx, "Reaper publish failed",
				logger.JobID(job.ID),
				logger.Err(err),
			)
			continue
		}
		published = append(published, job.ID)
	}

	if err := r.store.TouchJobs(ctx, published); err != nil {
		return len(published), err
	}
	return len(published), nil
}
