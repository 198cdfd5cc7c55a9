package tasks

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"contentops-backend/apperr"
	"contentops-backend/models"
)

// Dispatcher creates and withdraws durable task rows. It never executes
// work: the external engine is the sole consumer and owns the done/failed
// terminals.
type Dispatcher struct {
	Log *logrus.Logger
}

type EnqueueInput struct {
	ClientID    string
	TaskType    string
	Channel     string
	ItemID      string
	Payload     map[string]any
	DueAt       *time.Time
	MaxAttempts int
}

// Enqueue inserts a new scheduled task. When the task targets an item it
// first cancels any live task of the same type for that item in the same
// statement chain, keeping exactly one active task per publish intent.
// Run inside the caller's transaction whenever a state write rides along.
func (d *Dispatcher) Enqueue(db *gorm.DB, in EnqueueInput) (string, error) {
	if in.ItemID != "" {
		if _, err := d.CancelForItem(db, in.ItemID, in.TaskType); err != nil {
			return "", err
		}
	}

	if in.Payload == nil {
		in.Payload = map[string]any{}
	}
	if in.ItemID != "" {
		in.Payload["item_id"] = in.ItemID
	}
	raw, err := json.Marshal(in.Payload)
	if err != nil {
		return "", apperr.Wrap(apperr.Downstream, "could not encode task payload", err)
	}

	maxAttempts := in.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	task := models.Task{
		ClientID:    in.ClientID,
		TaskType:    in.TaskType,
		Channel:     in.Channel,
		ItemID:      in.ItemID,
		Payload:     raw,
		DueAt:       in.DueAt,
		Status:      models.TaskStatusScheduled,
		MaxAttempts: maxAttempts,
	}
	if err := db.Create(&task).Error; err != nil {
		return "", apperr.Wrap(apperr.Downstream, "could not create task", err)
	}

	d.Log.WithFields(logrus.Fields{
		"task_id":   task.Id,
		"task_type": task.TaskType,
		"client_id": task.ClientID,
		"item_id":   task.ItemID,
	}).Info("task enqueued")
	return task.Id, nil
}

// CancelForItem withdraws every task for the item that the engine has not
// finished yet. taskType narrows the sweep; empty cancels all types.
func (d *Dispatcher) CancelForItem(db *gorm.DB, itemID, taskType string) (int64, error) {
	q := db.Model(&models.Task{}).
		Where("item_id = ? AND status IN ?", itemID,
			[]string{models.TaskStatusScheduled, models.TaskStatusPending})
	if taskType != "" {
		q = q.Where("task_type = ?", taskType)
	}
	res := q.Update("status", models.TaskStatusCancelled)
	if res.Error != nil {
		return 0, apperr.Wrap(apperr.Downstream, "could not cancel tasks", res.Error)
	}
	if res.RowsAffected > 0 {
		d.Log.WithFields(logrus.Fields{
			"item_id":   itemID,
			"cancelled": res.RowsAffected,
		}).Info("tasks cancelled")
	}
	return res.RowsAffected, nil
}

// RescheduleForItem moves the due time of the item's live publish task.
// Called in the same transaction as the item's scheduled_at change so the
// two can never diverge.
func (d *Dispatcher) RescheduleForItem(db *gorm.DB, itemID string, dueAt *time.Time) error {
	res := db.Model(&models.Task{}).
		Where("item_id = ? AND status IN ?", itemID,
			[]string{models.TaskStatusScheduled, models.TaskStatusPending}).
		Update("due_at", dueAt)
	if res.Error != nil {
		return apperr.Wrap(apperr.Downstream, "could not reschedule task", res.Error)
	}
	return nil
}

// Engine-facing phase labels reported through the result callback.
const (
	PhaseStarted = "started"
	PhaseDone    = "done"
	PhaseFailed  = "failed"
)

// ApplyResult records an engine-reported phase transition. Each write is
// guarded on the expected prior status; zero rows affected means the
// transition already happened (or the task was withdrawn) and is reported
// as already processed, never as corruption.
func (d *Dispatcher) ApplyResult(db *gorm.DB, taskID, phase, errMsg string) (*models.Task, error) {
	var task models.Task
	if err := db.Where("id = ?", taskID).First(&task).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.New(apperr.NotFound, "task not found")
		}
		return nil, apperr.Wrap(apperr.Downstream, "could not load task", err)
	}

	var res *gorm.DB
	switch phase {
	case PhaseStarted:
		res = db.Model(&models.Task{}).
			Where("id = ? AND status IN ?", taskID,
				[]string{models.TaskStatusScheduled, models.TaskStatusPending}).
			Updates(map[string]any{
				"status":   models.TaskStatusPending,
				"attempts": gorm.Expr("attempts + 1"),
			})
	case PhaseDone:
		res = db.Model(&models.Task{}).
			Where("id = ? AND status = ?", taskID, models.TaskStatusPending).
			Update("status", models.TaskStatusDone)
	case PhaseFailed:
		next := models.TaskStatusScheduled
		if task.Attempts >= task.MaxAttempts {
			next = models.TaskStatusFailed
		}
		res = db.Model(&models.Task{}).
			Where("id = ? AND status = ?", taskID, models.TaskStatusPending).
			Updates(map[string]any{
				"status":     next,
				"last_error": errMsg,
			})
	default:
		return nil, apperr.Newf(apperr.Validation, "unknown task phase %q", phase)
	}
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.Downstream, "could not update task", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.New(apperr.AlreadyProcessed, "task already transitioned")
	}

	if err := db.Where("id = ?", taskID).First(&task).Error; err != nil {
		return nil, apperr.Wrap(apperr.Downstream, "could not reload task", err)
	}
	return &task, nil
}

// PollDue lists engine-consumable tasks: scheduled or pending, due now or
// earlier (tasks without a due time are due immediately).
func (d *Dispatcher) PollDue(db *gorm.DB, now time.Time, limit int) ([]models.Task, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var out []models.Task
	err := db.Where("status IN ?", []string{models.TaskStatusScheduled, models.TaskStatusPending}).
		Where("due_at IS NULL OR due_at <= ?", now).
		Order("due_at ASC NULLS FIRST").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, "could not list tasks", err)
	}
	return out, nil
}
