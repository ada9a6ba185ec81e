package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/storage"
)

// Trainer rebuilds the model from the ledger, on demand or on a timer
type Trainer struct {
	store  storage.Store
	model  *Model
	logger *slog.Logger
}

// NewTrainer creates a trainer feeding model from store
func NewTrainer(store storage.Store, model *Model) *Trainer {
	return &Trainer{store: store, model: model, logger: slog.Default()}
}

// SetLogger replaces the trainer logger
func (t *Trainer) SetLogger(l *slog.Logger) {
	if l != nil {
		t.logger = l
	}
}

// RunOnce builds the dataset and trains. It returns the sample count used.
func (t *Trainer) RunOnce(ctx context.Context) (int, bool, error) {
	samples, err := BuildDataset(ctx, t.store)
	if err != nil {
		return 0, false, err
	}
	ok, err := t.model.Train(ctx, samples)
	return len(samples), ok, err
}

// RunSynthetic trains on n generated samples seeded by seed
func (t *Trainer) RunSynthetic(ctx context.Context, n int, seed int64) (int, bool, error) {
	if n <= 0 {
		return 0, false, fmt.Errorf("%w: synthetic sample count must be positive", domain.ErrInvalidInput)
	}
	samples := SyntheticSamples(n, rand.New(rand.NewSource(seed)))
	ok, err := t.model.Train(ctx, samples)
	return len(samples), ok, err
}

// Version returns the version of the loaded artifact, or "" for the heuristic
func (t *Trainer) Version() string {
	if a := t.model.Artifact(); a != nil {
		return a.Version
	}
	return ""
}

// StartLoop trains every interval until ctx is done. A dataset below the
// threshold is skipped quietly; the next tick tries again.
func (t *Trainer) StartLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, _, err := t.RunOnce(ctx)
				switch {
				case errors.Is(err, domain.ErrInsufficientTrainingData):
					t.logger.Info("scheduled training skipped", "samples", n)
				case err != nil:
					t.logger.Error("scheduled training failed", "error", err)
				}
			}
		}
	}()
}
