package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccessIntegrityScan checks every user's permission data for dangling references.
	TaskAccessIntegrityScan = "access:integrity_scan"
	// TaskAccessCacheWarm pre-computes the effective permission cache for all users.
	TaskAccessCacheWarm = "access:cache_warm"
)

// AccessScanPayload scopes an access scan to a subset of users. Empty means all.
type AccessScanPayload struct {
	UserIDs []int64 `json:"user_ids,omitempty"`
}

// NewAccessIntegrityScanTask constructs an Asynq task.
func NewAccessIntegrityScanTask(payload AccessScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessIntegrityScan, data), nil
}

// NewAccessCacheWarmTask constructs an Asynq task.
func NewAccessCacheWarmTask(payload AccessScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccessCacheWarm, data), nil
}
