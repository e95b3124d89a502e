package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// StatusKey is the Redis key holding the latest pass summary.
	StatusKey = "worker:compression:status"
	// statusTTL expires stale summaries when the worker stops publishing.
	statusTTL = 5 * time.Minute
)

// StatusReporter publishes a summary of each pipeline pass to Redis so
// dashboards can see worker liveness. Strictly best-effort: a publish
// failure is logged and never affects the pipeline.
type StatusReporter struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStatusReporter creates a run-status reporter.
func NewStatusReporter(client *redis.Client, logger *zap.Logger) *StatusReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusReporter{client: client, logger: logger}
}

type passStatus struct {
	Stats
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Publish stores the pass summary under StatusKey with a TTL.
func (r *StatusReporter) Publish(ctx context.Context, stats Stats, runErr error) {
	st := passStatus{Stats: stats, FinishedAt: time.Now().UTC()}
	if runErr != nil {
		st.Error = runErr.Error()
	}
	raw, err := json.Marshal(st)
	if err != nil {
		r.logger.Warn("marshal pass status", zap.Error(err))
		return
	}
	if err := r.client.Set(ctx, StatusKey, raw, statusTTL).Err(); err != nil {
		r.logger.Warn("publish pass status", zap.Error(err))
	}
}
