package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/couchcryptid/fertigation-mix/internal/observability"
)

// BatchExtractor reads up to batchSize mix requests from the source topic.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer evaluates one mix request into a report event.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader publishes report events to the sink topic.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// TransientError marks a transform failure caused by a dependency such as the
// reference catalog rather than by the message. The message is retried in
// place instead of being skipped.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err contains a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Retry delays between failed extract, transform or load attempts.
const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 5 * time.Second
)

// Pipeline consumes mix requests, evaluates them and publishes mix reports.
// Offsets are committed only once a request has a published report or has
// been rejected as unprocessable.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	batchSize   int
	ready       atomic.Bool
}

// New wires the three stages into a Pipeline.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness reports ready once at least one mix report has been published.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.ready.Load() {
		return nil
	}
	return errors.New("no mix report published yet")
}

// Run processes batches until ctx is cancelled. It only returns nil; every
// failure is logged and retried.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	b := &backoff{delay: minBackoff}
	for ctx.Err() == nil {
		if !p.runBatch(ctx, b) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// runBatch performs one extract, transform and load cycle. It returns false
// when ctx ended mid-cycle.
func (p *Pipeline) runBatch(ctx context.Context, b *backoff) bool {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err, "retry_in", b.delay)
		return b.wait(ctx)
	}
	if len(batch) == 0 {
		return true
	}
	b.reset()

	p.metrics.MessagesConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))

	reports, accepted, ok := p.evaluate(ctx, batch, b)
	if !ok {
		return false
	}
	if len(reports) == 0 {
		return true
	}

	if err := p.loader.LoadBatch(ctx, reports); err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("publish reports failed", "error", err, "reports", len(reports), "retry_in", b.delay)
		return b.wait(ctx)
	}
	p.metrics.MessagesProduced.Add(float64(len(reports)))
	for _, raw := range accepted {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return true
}

// evaluate transforms every request in the batch. Unprocessable requests are
// committed and dropped at once. Transient failures are retried with backoff
// until they succeed or ctx ends. It returns the reports with the requests
// that produced them, and false when ctx ended.
func (p *Pipeline) evaluate(ctx context.Context, batch []domain.RawEvent, b *backoff) ([]domain.OutputEvent, []domain.RawEvent, bool) {
	reports := make([]domain.OutputEvent, 0, len(batch))
	accepted := make([]domain.RawEvent, 0, len(batch))

	for _, raw := range batch {
		for {
			out, err := p.transformer.Transform(ctx, raw)
			if err == nil {
				reports = append(reports, out)
				accepted = append(accepted, raw)
				b.reset()
				break
			}
			if ctx.Err() != nil {
				return nil, nil, false
			}
			if IsTransient(err) {
				p.metrics.TransformRetries.Inc()
				p.logger.Warn("mix request deferred", "error", err, "offset", raw.Offset, "retry_in", b.delay)
				if !b.wait(ctx) {
					return nil, nil, false
				}
				continue
			}

			p.metrics.TransformErrors.Inc()
			p.logger.Warn("mix request rejected",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.commit(ctx, raw)
			break
		}
	}
	return reports, accepted, true
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// backoff doubles its delay after every wait, up to maxBackoff.
type backoff struct {
	delay time.Duration
}

func (b *backoff) reset() { b.delay = minBackoff }

// wait sleeps for the current delay and reports false if ctx ended first.
func (b *backoff) wait(ctx context.Context) bool {
	t := time.NewTimer(b.delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	}
	b.delay = min(b.delay*2, maxBackoff)
	return true
}
