package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Publish status dimension. Approval is tracked separately: approval says
// whether publishing is permitted, status says what actually happened.
const (
	PostStatusDraft      = "draft"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPosted     = "posted"
	PostStatusFailed     = "failed"
	PostStatusCancelled  = "cancelled"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

const (
	PostTypeSingleImage = "single_image"
	PostTypeSingleVideo = "single_video"
	PostTypeCarousel    = "carousel"
	PostTypeVideo       = "video"
)

type Post struct {
	Id       string         `json:"id" gorm:"primaryKey"`
	ClientID string         `json:"client_id" gorm:"not null;index"`
	Platform string         `json:"platform" gorm:"not null"`
	Caption  string         `json:"caption"`
	Media    datatypes.JSON `json:"media" gorm:"type:jsonb"` // ordered media URLs
	PostType string         `json:"post_type" gorm:"not null;default:single_image"`

	ScheduledAt *time.Time `json:"scheduled_at"`
	Status      string     `json:"status" gorm:"not null;default:draft;index"`

	ApprovalStatus         string     `json:"approval_status" gorm:"not null;default:pending;index"`
	ApprovalToken          string     `json:"-" gorm:"size:64"` // sha256 of the one-time code
	ApprovalTokenExpiresAt *time.Time `json:"approval_token_expires_at"`
	ApprovedAt             *time.Time `json:"approved_at"`
	ApprovedBy             string     `json:"approved_by"`
	RejectedAt             *time.Time `json:"rejected_at"`
	RejectionReason        string     `json:"rejection_reason"`

	BatchID *string `json:"batch_id" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (post *Post) BeforeCreate(tx *gorm.DB) (err error) {
	if post.Id == "" {
		post.Id = uuid.NewString()
	}
	return
}
