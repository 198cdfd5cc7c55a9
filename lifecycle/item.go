package lifecycle

import (
	"contentops-backend/apperr"
	"contentops-backend/models"
)

// Kind tags the two content-item variants that share the approval
// lifecycle.
type Kind string

const (
	KindPost    Kind = "post"
	KindMessage Kind = "message"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPost, KindMessage:
		return Kind(s), nil
	default:
		return "", apperr.Newf(apperr.Validation, "unknown item type %q", s)
	}
}

func (k Kind) model() any {
	if k == KindPost {
		return &models.Post{}
	}
	return &models.Message{}
}

// Edits optionally overwrite content at approval time. Post edits use
// Caption/Media; message edits use BodyText.
type Edits struct {
	Caption  *string  `json:"caption"`
	Media    []string `json:"media"`
	BodyText *string  `json:"body_text"`
}

// Outcome labels for a single lifecycle operation.
const (
	OutcomeApproved         = "approved"
	OutcomeRejected         = "rejected"
	OutcomeCancelled        = "cancelled"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeFailed           = "failed"
)

// Result is what a caller gets back from a single-item operation. An
// AlreadyProcessed result is a benign no-op, not an error.
type Result struct {
	Kind   Kind   `json:"type"`
	ID     string `json:"id"`
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ItemRef addresses one item in a bulk request.
type ItemRef struct {
	Type string `json:"type" validate:"required,oneof=post message"`
	ID   string `json:"id" validate:"required"`
}

type BulkResult struct {
	Results      []Result `json:"results"`
	SuccessCount int      `json:"success_count"`
	FailedCount  int      `json:"failed_count"`
	SkippedCount int      `json:"skipped_count"`
}
