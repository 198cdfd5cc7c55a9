package lifecycle

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"contentops-backend/apperr"
	"contentops-backend/auth"
	"contentops-backend/database"
	"contentops-backend/models"
	"contentops-backend/tasks"
)

// Manager owns every state transition of posts and messages. All
// transitions are compare-and-swap writes: the expected prior state and
// the tenant scope sit in the same WHERE clause, and zero rows affected
// means a concurrent transition won, which is reported as a benign
// already-processed outcome. No in-memory locking; the service runs as
// stateless replicas.
type Manager struct {
	Dispatcher *tasks.Dispatcher
	Log        *logrus.Logger
}

func NewManager(log *logrus.Logger) *Manager {
	return &Manager{
		Dispatcher: &tasks.Dispatcher{Log: log},
		Log:        log,
	}
}

// Approve moves an item out of pending exactly once. For posts it also
// flips draft to scheduled and enqueues the publish task in the same
// transaction, so an approved post without a task cannot be produced by
// this path.
func (m *Manager) Approve(db *gorm.DB, kind Kind, id string, actor auth.Actor, edits *Edits) (*Result, error) {
	var result *Result
	err := db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"approval_status": models.ApprovalApproved,
			"approved_at":     time.Now().UTC(),
			"approved_by":     actor.UserID,
		}
		if err := applyEdits(updates, kind, edits); err != nil {
			return err
		}

		res := tx.Model(kind.model()).
			Scopes(database.TenantScope(actor)).
			Where("id = ? AND approval_status = ?", id, models.ApprovalPending).
			Updates(updates)
		if res.Error != nil {
			return apperr.Wrap(apperr.Downstream, "approval write failed", res.Error)
		}
		if res.RowsAffected == 0 {
			r, err := m.classifyMiss(tx, kind, id, actor)
			if err != nil {
				return err
			}
			result = r
			return nil
		}

		taskID, err := m.enqueuePublish(tx, kind, id)
		if err != nil {
			return err
		}

		result = &Result{Kind: kind, ID: id, Status: OutcomeApproved, TaskID: taskID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logOutcome("approve", result)
	return result, nil
}

// Reject stamps rejection metadata under the same pending guard and
// withdraws any live task in the same transaction, so a rejected item can
// never leave a task behind.
func (m *Manager) Reject(db *gorm.DB, kind Kind, id string, actor auth.Actor, reason string) (*Result, error) {
	var result *Result
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(kind.model()).
			Scopes(database.TenantScope(actor)).
			Where("id = ? AND approval_status = ?", id, models.ApprovalPending).
			Updates(map[string]any{
				"approval_status":  models.ApprovalRejected,
				"rejected_at":      time.Now().UTC(),
				"rejection_reason": reason,
			})
		if res.Error != nil {
			return apperr.Wrap(apperr.Downstream, "rejection write failed", res.Error)
		}
		if res.RowsAffected == 0 {
			r, err := m.classifyMiss(tx, kind, id, actor)
			if err != nil {
				return err
			}
			result = r
			return nil
		}

		// Tolerate the reconsidered-after-approval path: any task that was
		// already created for this item is withdrawn with the rejection.
		if _, err := m.Dispatcher.CancelForItem(tx, id, ""); err != nil {
			return err
		}

		result = &Result{Kind: kind, ID: id, Status: OutcomeRejected, Reason: reason}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logOutcome("reject", result)
	return result, nil
}

// Cancel withdraws an item. A cancelled item is defined as effectively
// rejected: publish status becomes cancelled and approval status becomes
// rejected in the same write. Messages have no publish dimension, so
// cancelling one is a rejection.
func (m *Manager) Cancel(db *gorm.DB, kind Kind, id string, actor auth.Actor) (*Result, error) {
	if kind == KindMessage {
		return m.Reject(db, kind, id, actor, "cancelled")
	}

	var result *Result
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Scopes(database.TenantScope(actor)).
			Where("id = ? AND status NOT IN ?", id, []string{
				models.PostStatusPosted, models.PostStatusPublishing, models.PostStatusCancelled,
			}).
			Updates(map[string]any{
				"status":           models.PostStatusCancelled,
				"approval_status":  models.ApprovalRejected,
				"rejected_at":      time.Now().UTC(),
				"rejection_reason": "cancelled",
			})
		if res.Error != nil {
			return apperr.Wrap(apperr.Downstream, "cancel write failed", res.Error)
		}
		if res.RowsAffected == 0 {
			var post models.Post
			err := tx.Scopes(database.TenantScope(actor)).Where("id = ?", id).First(&post).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "item not found")
			}
			if err != nil {
				return apperr.Wrap(apperr.Downstream, "item lookup failed", err)
			}
			if post.Status == models.PostStatusCancelled {
				result = &Result{Kind: kind, ID: id, Status: OutcomeAlreadyProcessed}
				return nil
			}
			return apperr.Newf(apperr.Validation, "a %s post can no longer be cancelled", post.Status)
		}

		if _, err := m.Dispatcher.CancelForItem(tx, id, ""); err != nil {
			return err
		}

		result = &Result{Kind: kind, ID: id, Status: OutcomeCancelled}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logOutcome("cancel", result)
	return result, nil
}

// Update patches a post while it is still mutable. When scheduled_at
// changes, the live publish task moves with it inside the same
// transaction.
func (m *Manager) Update(db *gorm.DB, id string, actor auth.Actor, updates map[string]any) (*models.Post, error) {
	if len(updates) == 0 {
		return nil, apperr.New(apperr.Validation, "no updatable fields provided")
	}

	var post models.Post
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Scopes(database.TenantScope(actor)).
			Where("id = ? AND status NOT IN ?", id, []string{
				models.PostStatusPosted, models.PostStatusPublishing, models.PostStatusCancelled,
			}).
			Updates(updates)
		if res.Error != nil {
			return apperr.Wrap(apperr.Downstream, "update write failed", res.Error)
		}
		if res.RowsAffected == 0 {
			var existing models.Post
			err := tx.Scopes(database.TenantScope(actor)).Where("id = ?", id).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.NotFound, "item not found")
			}
			if err != nil {
				return apperr.Wrap(apperr.Downstream, "item lookup failed", err)
			}
			return apperr.Newf(apperr.Validation, "a %s post can no longer be updated", existing.Status)
		}

		if due, ok := updates["scheduled_at"]; ok {
			dueAt, _ := due.(*time.Time)
			if t, isValue := due.(time.Time); isValue {
				dueAt = &t
			}
			if err := m.Dispatcher.RescheduleForItem(tx, id, dueAt); err != nil {
				return err
			}
		}

		return tx.Where("id = ?", id).First(&post).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Bulk applies one action to up to 50 items, isolating per-item failures.
// Only malformed input escalates to a top-level error; individual misses
// land in the per-item results.
func (m *Manager) Bulk(db *gorm.DB, action string, refs []ItemRef, actor auth.Actor) (*BulkResult, error) {
	if len(refs) == 0 {
		return nil, apperr.New(apperr.Validation, "items must not be empty")
	}
	if len(refs) > 50 {
		return nil, apperr.New(apperr.Validation, "at most 50 items per bulk request")
	}

	out := &BulkResult{Results: make([]Result, 0, len(refs))}
	for _, ref := range refs {
		kind, err := ParseKind(ref.Type)
		if err != nil {
			out.Results = append(out.Results, Result{
				Kind: Kind(ref.Type), ID: ref.ID, Status: OutcomeFailed, Reason: "unknown item type",
			})
			out.FailedCount++
			continue
		}

		var r *Result
		switch action {
		case "approve":
			r, err = m.Approve(db, kind, ref.ID, actor, nil)
		case "reject":
			r, err = m.Reject(db, kind, ref.ID, actor, "bulk rejection")
		case "cancel":
			r, err = m.Cancel(db, kind, ref.ID, actor)
		default:
			return nil, apperr.Newf(apperr.Validation, "unknown bulk action %q", action)
		}

		if err != nil {
			reason := "operation failed"
			if e, ok := apperr.As(err); ok {
				reason = e.Message
			}
			out.Results = append(out.Results, Result{Kind: kind, ID: ref.ID, Status: OutcomeFailed, Reason: reason})
			out.FailedCount++
			continue
		}
		out.Results = append(out.Results, *r)
		if r.Status == OutcomeAlreadyProcessed {
			out.SkippedCount++
		} else {
			out.SuccessCount++
		}
	}
	return out, nil
}

// MarkEngineOutcome is the completion callback: the one mutation path for
// publish state that the core does not initiate. phase comes from the
// engine's task result.
func (m *Manager) MarkEngineOutcome(db *gorm.DB, kind Kind, itemID, phase string) (*Result, error) {
	var res *gorm.DB
	switch kind {
	case KindPost:
		switch phase {
		case tasks.PhaseStarted:
			res = db.Model(&models.Post{}).
				Where("id = ? AND status = ?", itemID, models.PostStatusScheduled).
				Update("status", models.PostStatusPublishing)
		case tasks.PhaseDone:
			res = db.Model(&models.Post{}).
				Where("id = ? AND status IN ?", itemID,
					[]string{models.PostStatusScheduled, models.PostStatusPublishing}).
				Update("status", models.PostStatusPosted)
		case tasks.PhaseFailed:
			res = db.Model(&models.Post{}).
				Where("id = ? AND status IN ?", itemID,
					[]string{models.PostStatusScheduled, models.PostStatusPublishing}).
				Update("status", models.PostStatusFailed)
		default:
			return nil, apperr.Newf(apperr.Validation, "unknown phase %q", phase)
		}
	case KindMessage:
		if phase != tasks.PhaseDone {
			return &Result{Kind: kind, ID: itemID, Status: OutcomeAlreadyProcessed}, nil
		}
		res = db.Model(&models.Message{}).
			Where("id = ? AND sent_at IS NULL", itemID).
			Update("sent_at", time.Now().UTC())
	default:
		return nil, apperr.Newf(apperr.Validation, "unknown item type %q", kind)
	}
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.Downstream, "engine outcome write failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return &Result{Kind: kind, ID: itemID, Status: OutcomeAlreadyProcessed}, nil
	}
	return &Result{Kind: kind, ID: itemID, Status: phase}, nil
}

// RespondByToken handles out-of-band approval links: the one-time code is
// the credential, no session is involved. Missing, mismatched and expired
// codes are all the same unauthorized outcome.
func (m *Manager) RespondByToken(db *gorm.DB, kind Kind, id, code, action, reason string) (*Result, error) {
	stored, expiresAt, err := loadApprovalToken(db, kind, id)
	if err != nil {
		return nil, err
	}
	supplied := auth.HashOTP(code)
	if stored == "" || expiresAt == nil || !expiresAt.After(time.Now()) ||
		subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) != 1 {
		return nil, apperr.New(apperr.Unauthorized, "invalid or expired approval token")
	}

	switch action {
	case "approve":
		return m.Approve(db, kind, id, auth.SystemActor(), nil)
	case "reject":
		return m.Reject(db, kind, id, auth.SystemActor(), reason)
	default:
		return nil, apperr.Newf(apperr.Validation, "unknown action %q", action)
	}
}

// classifyMiss decides what a zero-rows CAS means: a row visible in the
// actor's scope lost the race (benign), anything else is not found. An
// item in a foreign tenant is deliberately indistinguishable from one
// that does not exist.
func (m *Manager) classifyMiss(tx *gorm.DB, kind Kind, id string, actor auth.Actor) (*Result, error) {
	var count int64
	err := tx.Model(kind.model()).
		Scopes(database.TenantScope(actor)).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Downstream, "item lookup failed", err)
	}
	if count == 0 {
		return nil, apperr.New(apperr.NotFound, "item not found")
	}
	return &Result{Kind: kind, ID: id, Status: OutcomeAlreadyProcessed}, nil
}

func (m *Manager) enqueuePublish(tx *gorm.DB, kind Kind, id string) (string, error) {
	switch kind {
	case KindPost:
		var post models.Post
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			return "", apperr.Wrap(apperr.Downstream, "approved post reload failed", err)
		}
		taskID, err := m.Dispatcher.Enqueue(tx, tasks.EnqueueInput{
			ClientID: post.ClientID,
			TaskType: models.TaskTypePublishPost,
			Channel:  post.Platform,
			ItemID:   post.Id,
			Payload:  map[string]any{"platform": post.Platform, "post_type": post.PostType},
			DueAt:    post.ScheduledAt,
		})
		if err != nil {
			return "", err
		}
		// draft -> scheduled rides the same transaction as the task row.
		if err := tx.Model(&models.Post{}).
			Where("id = ? AND status = ?", id, models.PostStatusDraft).
			Update("status", models.PostStatusScheduled).Error; err != nil {
			return "", apperr.Wrap(apperr.Downstream, "status transition failed", err)
		}
		return taskID, nil

	default:
		var msg models.Message
		if err := tx.Where("id = ?", id).First(&msg).Error; err != nil {
			return "", apperr.Wrap(apperr.Downstream, "approved message reload failed", err)
		}
		now := time.Now().UTC()
		return m.Dispatcher.Enqueue(tx, tasks.EnqueueInput{
			ClientID: msg.ClientID,
			TaskType: models.TaskTypeSendMessage,
			Channel:  msg.Channel,
			ItemID:   msg.Id,
			Payload:  map[string]any{"recipient": msg.Recipient},
			DueAt:    &now,
		})
	}
}

func applyEdits(updates map[string]any, kind Kind, edits *Edits) error {
	if edits == nil {
		return nil
	}
	switch kind {
	case KindPost:
		if edits.Caption != nil {
			updates["caption"] = *edits.Caption
		}
		if edits.Media != nil {
			raw, err := json.Marshal(edits.Media)
			if err != nil {
				return apperr.Wrap(apperr.Validation, "invalid media list", err)
			}
			updates["media"] = raw
		}
	case KindMessage:
		if edits.BodyText != nil {
			updates["body_text"] = *edits.BodyText
		}
	}
	return nil
}

func loadApprovalToken(db *gorm.DB, kind Kind, id string) (string, *time.Time, error) {
	switch kind {
	case KindPost:
		var post models.Post
		if err := db.Where("id = ?", id).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", nil, apperr.New(apperr.Unauthorized, "invalid or expired approval token")
			}
			return "", nil, apperr.Wrap(apperr.Downstream, "item lookup failed", err)
		}
		return post.ApprovalToken, post.ApprovalTokenExpiresAt, nil
	default:
		var msg models.Message
		if err := db.Where("id = ?", id).First(&msg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", nil, apperr.New(apperr.Unauthorized, "invalid or expired approval token")
			}
			return "", nil, apperr.Wrap(apperr.Downstream, "item lookup failed", err)
		}
		return msg.ApprovalToken, msg.ApprovalTokenExpiresAt, nil
	}
}

func (m *Manager) logOutcome(op string, r *Result) {
	if r == nil {
		return
	}
	m.Log.WithFields(logrus.Fields{
		"op":      op,
		"type":    r.Kind,
		"item_id": r.ID,
		"status":  r.Status,
	}).Info("lifecycle transition")
}
