package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/univia-admin/univia/internal/security"
)

// SecurityEventPurgeJob removes security events older than the retention
// horizon.
type SecurityEventPurgeJob struct {
	recorder *security.Recorder
	logger   *slog.Logger
}

// NewSecurityEventPurgeJob wires the purge job.
func NewSecurityEventPurgeJob(recorder *security.Recorder, logger *slog.Logger) *SecurityEventPurgeJob {
	return &SecurityEventPurgeJob{recorder: recorder, logger: logger}
}

// Handle processes TaskSecurityEventPurge tasks.
func (j *SecurityEventPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SecurityEventPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		return asynq.SkipRetry
	}
	horizon := time.Now().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	purged, err := j.recorder.Purge(ctx, horizon)
	if err != nil {
		return err
	}
	remaining, err := j.recorder.RecentCount(ctx, horizon)
	if err != nil {
		j.logger.Warn("count security events", slog.Any("error", err))
		remaining = -1
	}
	j.logger.Info("security events purged",
		slog.Int64("purged", purged),
		slog.Int("remaining", remaining),
	)
	return nil
}
