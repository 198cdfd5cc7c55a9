package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fallback policies applied by the external expiry sweep when an approval
// window closes without a human response.
const (
	FallbackSendAnyway = "send_anyway"
	FallbackDiscard    = "discard"
	FallbackNotify     = "notify"
)

// Client is a tenant: a business account that scopes content items and
// tasks. Created during onboarding, never from the content APIs.
type Client struct {
	Id             string `json:"id" gorm:"primaryKey"`
	Name           string `json:"name" gorm:"not null;unique"`
	ContactEmail   string `json:"contact_email" gorm:"not null"`
	FallbackPolicy string `json:"fallback_policy" gorm:"not null;default:notify"`
	Active         bool   `json:"active" gorm:"not null;default:true"`
}

func (client *Client) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	client.Id = uuid.NewString()
	return
}
