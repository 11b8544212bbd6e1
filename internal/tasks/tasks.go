package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypePurgeRevoked   = "maintenance:purge_revoked"
	TypePruneAccessLog = "maintenance:prune_access_log"
)

// QueueMaintenance is the queue all maintenance tasks run on
const QueueMaintenance = "low"

// MaintenancePayload is the common payload for maintenance tasks
type MaintenancePayload struct {
	// Cutoff is the instant before which rows are removed
	Cutoff time.Time `json:"cutoff"`
}

// NewPurgeRevokedTask creates a task that drops revocations expired before cutoff
func NewPurgeRevokedTask(cutoff time.Time) (*asynq.Task, error) {
	return newMaintenanceTask(TypePurgeRevoked, cutoff)
}

// NewPruneAccessLogTask creates a task that drops access events older than cutoff
func NewPruneAccessLogTask(cutoff time.Time) (*asynq.Task, error) {
	return newMaintenanceTask(TypePruneAccessLog, cutoff)
}

func newMaintenanceTask(typename string, cutoff time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(MaintenancePayload{Cutoff: cutoff.UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(typename, payload, asynq.Queue(QueueMaintenance), asynq.MaxRetry(3)), nil
}

// ParseMaintenancePayload parses task payload from Asynq task
func ParseMaintenancePayload(task *asynq.Task) (MaintenancePayload, error) {
	var payload MaintenancePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.Cutoff.IsZero() {
		return payload, fmt.Errorf("payload has no cutoff")
	}
	return payload, nil
}
