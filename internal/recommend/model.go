package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/flagpost/internal/domain"
	"github.com/felixgeelhaar/flagpost/internal/storage"
	"github.com/google/uuid"
)

// Prediction sources
const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"
)

// DefaultMinSamples is the smallest training set accepted by Train
const DefaultMinSamples = 30

// heuristicConfidence is reported by every heuristic prediction
const heuristicConfidence = 0.5

// Sample is one labelled training example
type Sample struct {
	Features FeatureVector
	Label    domain.Difficulty
}

// Model predicts challenge suitability from player features. The active
// artifact is held behind an atomic pointer and replaced whole after
// training, so concurrent predictions see either the old model or the new.
type Model struct {
	artifacts  ArtifactStore
	current    atomic.Pointer[Artifact]
	predlog    storage.PredictionLog
	events     *domain.EventDispatcher
	logger     *slog.Logger
	now        func() time.Time
	train      TrainConfig
	minSamples int
	trainMu    sync.Mutex
}

// NewModel creates a model backed by artifacts. A nil store keeps the
// model in memory only.
func NewModel(artifacts ArtifactStore) *Model {
	return &Model{
		artifacts:  artifacts,
		events:     domain.NewEventDispatcher(),
		logger:     slog.Default(),
		now:        time.Now,
		train:      DefaultTrainConfig(),
		minSamples: DefaultMinSamples,
	}
}

// SetLogger replaces the model logger
func (m *Model) SetLogger(l *slog.Logger) {
	if l != nil {
		m.logger = l
	}
}

// SetClock replaces the time source
func (m *Model) SetClock(now func() time.Time) {
	m.now = now
}

// SetPredictionLog enables auditing of every prediction
func (m *Model) SetPredictionLog(l storage.PredictionLog) {
	m.predlog = l
}

// SetMinSamples sets the training threshold
func (m *Model) SetMinSamples(n int) {
	if n > 0 {
		m.minSamples = n
	}
}

// SetTrainConfig replaces the gradient descent settings
func (m *Model) SetTrainConfig(cfg TrainConfig) {
	m.train = cfg
}

// Events returns the dispatcher that receives ModelTrainedEvent
func (m *Model) Events() *domain.EventDispatcher {
	return m.events
}

// Artifact returns the active artifact, or nil when running on the heuristic
func (m *Model) Artifact() *Artifact {
	return m.current.Load()
}

// Load installs the stored artifact. A corrupt artifact is reported and
// leaves the model on the heuristic.
func (m *Model) Load(ctx context.Context) error {
	if m.artifacts == nil {
		return nil
	}
	a, err := m.artifacts.Load(ctx)
	if err != nil {
		m.current.Store(nil)
		if errors.Is(err, domain.ErrModelArtifactCorrupt) {
			m.logger.Warn("model artifact rejected, using heuristic", "error", err)
		}
		return err
	}
	m.current.Store(a)
	if a != nil {
		m.logger.Info("model artifact loaded", "version", a.Version, "samples", a.Samples)
	}
	return nil
}

// Predict estimates the player's difficulty level and whether c suits it.
// It never fails: without a usable model the heuristic answers.
func (m *Model) Predict(ctx context.Context, playerID string, v FeatureVector, c *domain.Challenge) domain.Prediction {
	pred := domain.Prediction{
		ID:          uuid.New(),
		PlayerID:    playerID,
		ChallengeID: c.ID,
		Features:    append([]float64(nil), v...),
		CreatedAt:   m.now(),
	}

	difficulty, confidence := heuristic(v)
	pred.Source = SourceHeuristic
	if a := m.current.Load(); a != nil {
		class, conf, err := classify(a, v)
		if err != nil {
			m.logger.Warn("model prediction failed, using heuristic",
				"player_id", playerID,
				"version", a.Version,
				"error", err,
			)
		} else {
			difficulty, confidence = domain.ClampDifficulty(class), conf
			pred.Source = SourceModel
		}
	}

	pred.PredictedDifficulty = difficulty
	pred.Confidence = confidence
	pred.Suitable = suitable(c.Difficulty, difficulty)

	if m.predlog != nil {
		if err := m.predlog.Record(ctx, &pred); err != nil {
			m.logger.Warn("prediction log write failed", "player_id", playerID, "error", err)
		}
	}
	return pred
}

// Train fits a new artifact on samples, persists it and installs it.
// Below the sample threshold it returns false with an error wrapping
// domain.ErrInsufficientTrainingData and leaves the active model alone.
func (m *Model) Train(ctx context.Context, samples []Sample) (bool, error) {
	if len(samples) < m.minSamples {
		return false, fmt.Errorf("%w: have %d samples, need %d",
			domain.ErrInsufficientTrainingData, len(samples), m.minSamples)
	}

	dim := len(FeatureNames)
	x := make([][]float64, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		if len(s.Features) != dim {
			return false, fmt.Errorf("%w: sample %d has %d features, want %d",
				domain.ErrInvalidInput, i, len(s.Features), dim)
		}
		if !s.Label.Valid() {
			return false, fmt.Errorf("%w: sample %d label %d", domain.ErrInvalidInput, i, s.Label)
		}
		x[i] = s.Features
		y[i] = int(s.Label)
	}

	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	start := m.now()
	scaler := FitScaler(x)
	scaled := make([][]float64, len(x))
	for i := range x {
		scaled[i] = scaler.Transform(x[i])
	}
	model := TrainSoftmax(scaled, y, difficultyClasses(), m.train)

	trainedAt := m.now().UTC()
	a := &Artifact{
		Version:      trainedAt.Format("20060102T150405.000000000Z"),
		FeatureNames: append([]string(nil), FeatureNames...),
		Scaler:       scaler,
		Model:        *model,
		TrainedAt:    trainedAt,
		Samples:      len(samples),
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if m.artifacts != nil {
		if err := m.artifacts.Save(ctx, a); err != nil {
			return false, fmt.Errorf("save artifact: %w", err)
		}
	}
	m.current.Store(a)

	m.logger.Info("model trained",
		"version", a.Version,
		"samples", a.Samples,
		"duration_ms", m.now().Sub(start).Milliseconds(),
	)
	if err := m.events.Publish(ctx, domain.NewModelTrainedEvent(a.Version, a.Samples, trainedAt)); err != nil {
		m.logger.Warn("model trained handlers failed", "version", a.Version, "error", err)
	}
	return true, nil
}

func difficultyClasses() []int {
	classes := make([]int, 0, int(domain.DifficultyInsane))
	for d := domain.DifficultyEasy; d <= domain.DifficultyInsane; d++ {
		classes = append(classes, int(d))
	}
	return classes
}

// heuristic estimates level from completed challenges: one step per five
func heuristic(v FeatureVector) (domain.Difficulty, float64) {
	return domain.ClampDifficulty(v.CompletedChallenges()/5 + 1), heuristicConfidence
}

func suitable(challenge, predicted domain.Difficulty) bool {
	diff := int(challenge) - int(predicted)
	return diff >= -1 && diff <= 1
}

// classify runs the artifact on v and turns any fault into an error
func classify(a *Artifact, v FeatureVector) (class int, confidence float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()

	if len(v) != len(a.Scaler.Mean) {
		return 0, 0, fmt.Errorf("feature vector has %d entries, model expects %d", len(v), len(a.Scaler.Mean))
	}
	class, confidence = a.Model.Predict(a.Scaler.Transform(v))
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return 0, 0, fmt.Errorf("confidence %v out of range", confidence)
	}
	return class, confidence, nil
}
