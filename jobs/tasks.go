package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSecurityEventPurge prunes security events past retention.
	TaskSecurityEventPurge = "security:purge_events"
)

// SecurityEventPurgePayload configures one retention pass.
type SecurityEventPurgePayload struct {
	RetentionHours int `json:"retentionHours"`
}

// NewSecurityEventPurgeTask constructs the purge task.
func NewSecurityEventPurgeTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(SecurityEventPurgePayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSecurityEventPurge, data), nil
}
