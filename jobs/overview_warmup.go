package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/qbportal/internal/jobs"
	"github.com/odyssey-erp/qbportal/internal/overview"
	"github.com/odyssey-erp/qbportal/internal/tokens"
)

// OverviewRefresher rebuilds and caches a user's overview.
type OverviewRefresher interface {
	RefreshBusinessOverview(ctx context.Context, userID string) (overview.Bundle, error)
}

// OverviewWarmupJob pre-populates the overview cache right after a company
// is connected.
type OverviewWarmupJob struct {
	Overview OverviewRefresher
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Timeout  time.Duration
}

// NewOverviewWarmupJob wires dependencies for the warmup handler.
func NewOverviewWarmupJob(svc OverviewRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverviewWarmupJob {
	return &OverviewWarmupJob{Overview: svc, Logger: logger, Metrics: metrics, Timeout: 2 * time.Minute}
}

// Handle processes overview warmup tasks.
func (j *OverviewWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Overview == nil {
		return errors.New("overview warmup: handler not configured")
	}
	var payload OverviewWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.UserID == "" {
		return fmt.Errorf("overview warmup: invalid payload: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskOverviewWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("user_id", payload.UserID))
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	bundle, err := j.Overview.RefreshBusinessOverview(ctx, payload.UserID)
	switch {
	case errors.Is(err, tokens.ErrNotConnected), errors.Is(err, tokens.ErrUpstreamRejected):
		logger.Info("skipping warmup for disconnected user", slog.Any("error", err))
		return nil
	case err != nil:
		logger.Error("overview warmup", slog.Any("error", err))
		return err
	}
	logger.Info("completed overview warmup",
		slog.Time("last_updated", bundle.LastUpdated),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *OverviewWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverviewWarmup))
	}
	return slog.Default().With(slog.String("job", TaskOverviewWarmup))
}

func (j *OverviewWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
