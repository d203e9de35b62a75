package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBonusSnapshot computes and archives one month of vendor bonuses.
	TaskBonusSnapshot = "bonus:snapshot"

	periodLayout = "2006-01"
)

// BonusSnapshotPayload selects the month to archive. An empty period means
// the calendar month before the run.
type BonusSnapshotPayload struct {
	Period string `json:"period,omitempty"`
}

// NewBonusSnapshotTask constructs an Asynq task for the snapshot job.
func NewBonusSnapshotTask(period string) (*asynq.Task, error) {
	if period != "" {
		if _, err := time.Parse(periodLayout, period); err != nil {
			return nil, fmt.Errorf("jobs: invalid snapshot period %q: %w", period, err)
		}
	}
	data, err := json.Marshal(BonusSnapshotPayload{Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBonusSnapshot, data), nil
}
