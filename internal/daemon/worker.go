package daemon

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/queue"
	"github.com/felixgeelhaar/flagpost/internal/recommend"
)

// TrainHandler runs queued training jobs on trainer. Too few samples is
// reported as a skipped job rather than a failure.
func TrainHandler(trainer *recommend.Trainer) queue.JobHandler {
	return func(ctx context.Context, job *queue.TrainJob) (*queue.TrainResult, error) {
		var (
			n   int
			err error
		)
		if job.Synthetic > 0 {
			n, _, err = trainer.RunSynthetic(ctx, job.Synthetic, job.Seed)
		} else {
			n, _, err = trainer.RunOnce(ctx)
		}

		result := &queue.TrainResult{Samples: n}
		switch {
		case errors.Is(err, domain.ErrInsufficientTrainingData):
			result.Status = queue.StatusSkipped
			result.Error = err.Error()
			return result, nil
		case err != nil:
			return result, err
		}

		result.Status = queue.StatusCompleted
		result.Version = trainer.Version()
		return result, nil
	}
}
