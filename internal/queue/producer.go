package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// defaultTrainTimeout bounds a training job that sets no timeout
const defaultTrainTimeout = 10 * time.Minute

// Publisher sends JSON messages to a named queue
type Publisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// Producer publishes training jobs and their results
type Producer struct {
	conn Publisher
}

// NewProducer creates a new queue producer
func NewProducer(conn Publisher) *Producer {
	return &Producer{conn: conn}
}

// PublishTrainJob publishes a training request
func (p *Producer) PublishTrainJob(ctx context.Context, job *TrainJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, TrainQueueName, job); err != nil {
		return fmt.Errorf("failed to publish train job: %w", err)
	}

	slog.Info("published train job",
		"job_id", job.ID,
		"requested_by", job.RequestedBy,
		"synthetic", job.Synthetic,
	)
	return nil
}

// PublishResult publishes a training result to the results queue
func (p *Producer) PublishResult(ctx context.Context, result *TrainResult) error {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, ResultQueueName, result); err != nil {
		return fmt.Errorf("failed to publish train result: %w", err)
	}

	slog.Info("published train result",
		"job_id", result.JobID,
		"status", result.Status,
		"version", result.Version,
		"duration", result.Duration,
	)
	return nil
}

// NewTrainJob creates a training job for requester
func NewTrainJob(requestedBy string, synthetic int, seed int64) *TrainJob {
	return &TrainJob{
		ID:          uuid.New(),
		RequestedBy: requestedBy,
		Synthetic:   synthetic,
		Seed:        seed,
		Timeout:     int(defaultTrainTimeout / time.Second),
		CreatedAt:   time.Now(),
	}
}
