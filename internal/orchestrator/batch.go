package orchestrator

import (
	"context"
	"time"

	"github.com/wnt/memescore/internal/apperr"
	"golang.org/x/sync/errgroup"
)

// Failure is one creator whose recompute failed in a batch
type Failure struct {
	CreatorID uint        `json:"creator_id"`
	Kind      apperr.Kind `json:"kind"`
	Error     string      `json:"error"`
}

// Report is the outcome of a batch recompute, in creator id order
type Report struct {
	Succeeded []uint    `json:"succeeded"`
	Failed    []Failure `json:"failed"`
	Duration  string    `json:"duration"`
}

// RecomputeAll recomputes every creator with bounded concurrency
func (o *Orchestrator) RecomputeAll(ctx context.Context) (Report, error) {
	ids, err := o.creators.ListIDs(ctx)
	if err != nil {
		return Report{}, err
	}
	return o.RecomputeMany(ctx, ids), nil
}

// RecomputeMany recomputes the given creators. A failure is recorded in the
// report and never stops the batch; once ctx is done the remaining creators
// fail with the context error.
func (o *Orchestrator) RecomputeMany(ctx context.Context, ids []uint) Report {
	start := time.Now()
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = classify("orchestrator.RecomputeAll", err)
				return nil
			}
			_, errs[i] = o.RecomputeOne(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Succeeded: make([]uint, 0, len(ids)),
		Failed:    make([]Failure, 0),
	}
	for i, id := range ids {
		if errs[i] == nil {
			report.Succeeded = append(report.Succeeded, id)
			continue
		}
		report.Failed = append(report.Failed, Failure{
			CreatorID: id,
			Kind:      apperr.KindOf(errs[i]),
			Error:     errs[i].Error(),
		})
	}
	report.Duration = time.Since(start).String()

	o.logger.Info().
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Str("duration", report.Duration).
		Msg("Batch recompute finished")

	return report
}
