package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/qbportal/internal/credentials"
	jobmetrics "github.com/odyssey-erp/qbportal/internal/jobs"
	"github.com/odyssey-erp/qbportal/internal/tokens"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ExpiringCredentials lists credentials whose refresh token expires soon.
type ExpiringCredentials interface {
	ListRefreshExpiring(ctx context.Context, before time.Time) ([]credentials.Credential, error)
}

// Refresher force-refreshes one user's credential.
type Refresher interface {
	Refresh(ctx context.Context, userID string) (credentials.Credential, error)
}

// TokenSweepJob keeps idle connections alive by refreshing credentials before
// their refresh token lapses.
type TokenSweepJob struct {
	Store     ExpiringCredentials
	Refresher Refresher
	Window    time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewTokenSweepJob wires dependencies for the sweep handler.
func NewTokenSweepJob(store ExpiringCredentials, refresher Refresher, window time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *TokenSweepJob {
	return &TokenSweepJob{
		Store:     store,
		Refresher: refresher,
		Window:    window,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes token sweep tasks. Rejected refresh tokens disconnect the
// user and are not retried; transient failures fail the run so it is retried.
func (j *TokenSweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil || j.Refresher == nil {
		return errors.New("token sweep: handler not configured")
	}
	var payload TokenSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("token sweep: decode payload: %w", asynq.SkipRetry)
		}
	}
	window := payload.Window
	if window <= 0 {
		window = j.Window
	}

	tracker := j.metrics().Track(TaskTokenSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Duration("window", window))
	cutoff := j.now().Add(window)
	expiring, err := j.Store.ListRefreshExpiring(ctx, cutoff)
	if err != nil {
		logger.Error("list expiring credentials", slog.Any("error", err))
		return err
	}
	if len(expiring) == 0 {
		logger.Info("no credentials due for refresh")
		return nil
	}

	var refreshed, rejected, failed int
	var errs []error
	for _, cred := range expiring {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, err := j.Refresher.Refresh(ctx, cred.UserID)
		switch {
		case err == nil:
			refreshed++
		case errors.Is(err, tokens.ErrUpstreamRejected), errors.Is(err, tokens.ErrNotConnected):
			rejected++
			logger.Warn("refresh token no longer valid", slog.String("user_id", cred.UserID), slog.Any("error", err))
		default:
			failed++
			errs = append(errs, fmt.Errorf("user %s: %w", cred.UserID, err))
			logger.Error("sweep refresh", slog.String("user_id", cred.UserID), slog.Any("error", err))
		}
	}

	m := j.metrics()
	m.AddSwept("refreshed", refreshed)
	m.AddSwept("rejected", rejected)
	m.AddSwept("failed", failed)
	logger.Info("completed token sweep",
		slog.Int("due", len(expiring)),
		slog.Int("refreshed", refreshed),
		slog.Int("rejected", rejected),
		slog.Int("failed", failed))
	return errors.Join(errs...)
}

func (j *TokenSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTokenSweep))
	}
	return slog.Default().With(slog.String("job", TaskTokenSweep))
}

func (j *TokenSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *TokenSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
