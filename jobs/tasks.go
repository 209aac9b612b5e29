package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRecordLogin persists a login audit row after a successful login.
	TaskTypeRecordLogin = "auth:record_login"
	// TaskTypePruneTokens removes expired access tokens; scheduled hourly.
	TaskTypePruneTokens = "auth:prune_tokens"
)

// RecordLoginPayload describes a successful login to audit.
type RecordLoginPayload struct {
	UserID    int64     `json:"user_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	At        time.Time `json:"at"`
}

// NewRecordLoginTask constructs the audit task.
func NewRecordLoginTask(payload RecordLoginPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecordLogin, data), nil
}

// NewPruneTokensTask constructs the token prune task. It carries no payload.
func NewPruneTokensTask() *asynq.Task {
	return asynq.NewTask(TaskTypePruneTokens, nil)
}

// LoginStore persists login audit rows.
type LoginStore interface {
	RecordLogin(ctx context.Context, userID int64, ip, userAgent string, at time.Time) error
}

// TokenStore removes expired access tokens.
type TokenStore interface {
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// RecordLoginHandler processes TaskTypeRecordLogin tasks.
func RecordLoginHandler(store LoginStore) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RecordLoginPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return store.RecordLogin(ctx, payload.UserID, payload.IP, payload.UserAgent, payload.At)
	}
}

// PruneTokensHandler processes TaskTypePruneTokens tasks.
func PruneTokensHandler(store TokenStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		removed, err := store.DeleteExpiredTokens(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		if logger != nil && removed > 0 {
			logger.Info("pruned expired tokens", slog.Int64("removed", removed))
		}
		return nil
	}
}
