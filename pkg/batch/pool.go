// Package batch provides a bounded worker pool for adjudicating
// independent claims concurrently on behalf of a batch submission.
package batch

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/mark64oswald/healthsim-hello/internal/domain/claim"
	"github.com/mark64oswald/healthsim-hello/internal/domain/member"
)

// Adjudicator is the engine-side contract the pool drives.
type Adjudicator interface {
	Adjudicate(ctx context.Context, c *claim.PharmacyClaim, m *member.Member) (*claim.AdjudicationResponse, error)
}

// Job pairs a claim with its resolved member record.
type Job struct {
	Claim  *claim.PharmacyClaim
	Member *member.Member
}

// Outcome is the per-claim result of a batch run. Exactly one of Response
// and Err is set; business rejections arrive as responses, never as
// errors, so a batch never retries them.
type Outcome struct {
	ClaimID  string
	Response *claim.AdjudicationResponse
	Err      error
}

// Config holds pool configuration
type Config struct {
	// Workers is the number of concurrent workers
	Workers int
}

// DefaultConfig returns defaults sized for interactive batch submissions
func DefaultConfig() Config {
	return Config{Workers: 8}
}

// Pool fans a batch of claims across workers. Per-member serialization is
// the ledger's concern; the pool only bounds concurrency.
type Pool struct {
	config Config
	eng    Adjudicator
	logger *zap.Logger

	submitted metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a batch pool around an adjudicator.
func New(cfg Config, eng Adjudicator, logger *zap.Logger) (*Pool, error) {
	if eng == nil {
		return nil, fmt.Errorf("adjudicator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}

	meter := otel.Meter("batch")
	submitted, err := meter.Int64Counter("batch.claims.submitted",
		metric.WithDescription("Claims submitted to the batch pool"))
	if err != nil {
		return nil, fmt.Errorf("create submitted counter: %w", err)
	}
	completed, err := meter.Int64Counter("batch.claims.completed",
		metric.WithDescription("Claims adjudicated to a business outcome"))
	if err != nil {
		return nil, fmt.Errorf("create completed counter: %w", err)
	}
	failed, err := meter.Int64Counter("batch.claims.failed",
		metric.WithDescription("Claims that failed with an input error"))
	if err != nil {
		return nil, fmt.Errorf("create failed counter: %w", err)
	}

	return &Pool{
		config:    cfg,
		eng:       eng,
		logger:    logger,
		submitted: submitted,
		completed: completed,
		failed:    failed,
	}, nil
}

// Run adjudicates all jobs and returns one outcome per job in submission
// order. A cancelled context stops feeding the workers; jobs never fed
// report the context error as their outcome.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	if len(jobs) == 0 {
		return outcomes
	}

	workers := p.config.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	p.submitted.Add(ctx, int64(len(jobs)))
	p.logger.Debug("batch started",
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", workers))

	type indexed struct {
		idx int
		job Job
	}
	queue := make(chan indexed)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range queue {
				outcomes[it.idx] = p.process(ctx, it.job)
			}
		}()
	}

	queued := 0
	for queued < len(jobs) {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case queue <- indexed{idx: queued, job: jobs[queued]}:
			queued++
			continue
		}
		break
	}
	close(queue)
	wg.Wait()

	for i := queued; i < len(jobs); i++ {
		outcomes[i] = Outcome{ClaimID: jobs[i].Claim.ClaimID, Err: ctx.Err()}
		p.failed.Add(ctx, 1)
	}

	p.logger.Debug("batch finished", zap.Int("completed", queued))
	return outcomes
}

func (p *Pool) process(ctx context.Context, job Job) Outcome {
	out := Outcome{ClaimID: job.Claim.ClaimID}
	resp, err := p.eng.Adjudicate(ctx, job.Claim, job.Member)
	if err != nil {
		p.failed.Add(ctx, 1)
		p.logger.Warn("batch claim failed",
			zap.String("claim_id", out.ClaimID),
			zap.Error(err))
		out.Err = err
		return out
	}
	p.completed.Add(ctx, 1)
	out.Response = resp
	return out
}
