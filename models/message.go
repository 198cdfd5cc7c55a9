package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message is an outbound conversational reply drafted by the generation
// pipeline. Its publish dimension is binary: SentAt is set by the engine
// result callback, nothing else.
type Message struct {
	Id        string `json:"id" gorm:"primaryKey"`
	ClientID  string `json:"client_id" gorm:"not null;index"`
	Channel   string `json:"channel" gorm:"not null"`
	Recipient string `json:"recipient" gorm:"not null"`
	BodyText  string `json:"body_text"`

	ConversationContext datatypes.JSON `json:"conversation_context" gorm:"type:jsonb"`

	ApprovalStatus         string     `json:"approval_status" gorm:"not null;default:pending;index"`
	ApprovalToken          string     `json:"-" gorm:"size:64"`
	ApprovalTokenExpiresAt *time.Time `json:"approval_token_expires_at"`
	ApprovedAt             *time.Time `json:"approved_at"`
	ApprovedBy             string     `json:"approved_by"`
	RejectedAt             *time.Time `json:"rejected_at"`
	RejectionReason        string     `json:"rejection_reason"`

	SentAt *time.Time `json:"sent_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (message *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if message.Id == "" {
		message.Id = uuid.NewString()
	}
	return
}
