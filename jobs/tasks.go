package jobs

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTokenSweep force-refreshes credentials whose refresh token is about
	// to expire.
	TaskTokenSweep = "qbo:token_sweep"
	// TaskOverviewWarmup rebuilds and caches one user's business overview.
	TaskOverviewWarmup = "qbo:overview_warmup"
)

// TokenSweepPayload configures a sweep run. A zero Window uses the job default.
type TokenSweepPayload struct {
	Window time.Duration `json:"window,omitempty"`
}

// NewTokenSweepTask constructs the sweep task.
func NewTokenSweepTask(window time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(TokenSweepPayload{Window: window})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTokenSweep, data), nil
}

// OverviewWarmupPayload names the user whose overview is rebuilt.
type OverviewWarmupPayload struct {
	UserID string `json:"user_id"`
}

// NewOverviewWarmupTask constructs a warmup task for userID.
func NewOverviewWarmupTask(userID string) (*asynq.Task, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("jobs: overview warmup requires a user id")
	}
	data, err := json.Marshal(OverviewWarmupPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverviewWarmup, data), nil
}
