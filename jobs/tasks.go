package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWarehouseSyncReport builds the nightly sync report per owner.
	TaskWarehouseSyncReport = "warehouse:sync_report"
	// TaskWarehouseRecalculate recomputes average costs from purchase history.
	TaskWarehouseRecalculate = "warehouse:recalculate"
)

// SyncReportPayload carries scheduling metadata for the report job.
type SyncReportPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	// OwnerID limits the run to one owner; empty fans out over all owners.
	OwnerID string `json:"owner_id,omitempty"`
}

// NewSyncReportTask constructs an Asynq task for sync report generation.
func NewSyncReportTask(payload SyncReportPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarehouseSyncReport, body, asynq.Queue(QueueDefault)), nil
}

// RecalculatePayload identifies the scope of a recalculation run.
type RecalculatePayload struct {
	OwnerID string `json:"owner_id"`
	ItemID  string `json:"item_id,omitempty"`
}

// NewRecalculateTask constructs an Asynq task for WAC recalculation.
func NewRecalculateTask(payload RecalculatePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarehouseRecalculate, body, asynq.Queue(QueueDefault)), nil
}
