package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TaskStatusScheduled = "scheduled"
	TaskStatusPending   = "pending"
	TaskStatusCancelled = "cancelled"
	TaskStatusDone      = "done"
	TaskStatusFailed    = "failed"
)

const (
	TaskTypeGeneratePost = "generate_post"
	TaskTypePublishPost  = "publish_post"
	TaskTypeSendMessage  = "send_message"
)

// Task is a durable unit of work for the external engine. The core only
// creates, cancels and reschedules tasks; the engine owns execution,
// attempts bookkeeping and the done/failed terminals.
type Task struct {
	Id       string `json:"id" gorm:"primaryKey"`
	ClientID string `json:"client_id" gorm:"not null;index"`
	TaskType string `json:"task_type" gorm:"not null;index"`
	Channel  string `json:"channel"`

	// ItemID is denormalized out of the payload so cancel-by-item can be a
	// single guarded UPDATE.
	ItemID  string         `json:"item_id" gorm:"index"`
	Payload datatypes.JSON `json:"payload" gorm:"type:jsonb"`

	DueAt       *time.Time `json:"due_at" gorm:"index"`
	Status      string     `json:"status" gorm:"not null;default:scheduled;index"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts int        `json:"max_attempts" gorm:"not null;default:3"`
	LastError   string     `json:"last_error"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (task *Task) BeforeCreate(tx *gorm.DB) (err error) {
	if task.Id == "" {
		task.Id = uuid.NewString()
	}
	return
}
