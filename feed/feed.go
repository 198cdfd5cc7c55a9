package feed

import (
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"contentops-backend/apperr"
	"contentops-backend/auth"
	"contentops-backend/database"
	"contentops-backend/models"
)

const previewRunes = 120

const (
	SortUrgent = "urgent"
	SortNewest = "newest"
)

type Query struct {
	Actor    auth.Actor
	Type     string // "", "post" or "message"
	Channel  string
	Platform string
	Search   string
	Sort     string
	Limit    int
	Offset   int
}

// Item is the merged review-queue shape shared by both variants. Channel
// carries the platform for posts.
type Item struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Channel   string     `json:"channel"`
	Recipient string     `json:"recipient,omitempty"`
	Preview   string     `json:"content_preview"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

type Stats struct {
	PendingPosts          int64 `json:"pending_posts"`
	PendingMessages       int64 `json:"pending_messages"`
	PostsApprovedToday    int64 `json:"posts_approved_today"`
	MessagesApprovedToday int64 `json:"messages_approved_today"`
}

type Page struct {
	Items []Item `json:"items"`
	Stats Stats  `json:"stats"`
	Total int    `json:"total"`
}

// List merges pending posts and pending messages into one filtered,
// sorted view. Pagination slices the fully materialized set; the pending
// queue is bounded by business volume, so this stays cheap.
func List(db *gorm.DB, q Query) (*Page, error) {
	items := make([]Item, 0, 32)

	if q.Type == "" || q.Type == "post" {
		posts, err := pendingPosts(db, q)
		if err != nil {
			return nil, err
		}
		items = append(items, posts...)
	}
	if q.Type == "" || q.Type == "message" {
		msgs, err := pendingMessages(db, q)
		if err != nil {
			return nil, err
		}
		items = append(items, msgs...)
	}

	sortItems(items, q.Sort)
	total := len(items)

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := items[offset:end]

	stats, err := collectStats(db, q.Actor)
	if err != nil {
		return nil, err
	}

	return &Page{Items: page, Stats: *stats, Total: total}, nil
}

func pendingPosts(db *gorm.DB, q Query) ([]Item, error) {
	tx := db.Model(&models.Post{}).
		Scopes(database.TenantScope(q.Actor)).
		Where("approval_status = ?", models.ApprovalPending)
	if q.Platform != "" {
		tx = tx.Where("platform = ?", q.Platform)
	}
	var posts []models.Post
	if err := tx.Find(&posts).Error; err != nil {
		return nil, apperr.Wrap(apperr.Downstream, "could not list pending posts", err)
	}

	out := make([]Item, 0, len(posts))
	for _, p := range posts {
		if q.Search != "" && !containsFold(p.Caption, q.Search) {
			continue
		}
		out = append(out, Item{
			ID:        p.Id,
			Type:      "post",
			Channel:   p.Platform,
			Preview:   preview(p.Caption),
			ExpiresAt: p.ApprovalTokenExpiresAt,
			CreatedAt: p.CreatedAt,
		})
	}
	return out, nil
}

func pendingMessages(db *gorm.DB, q Query) ([]Item, error) {
	tx := db.Model(&models.Message{}).
		Scopes(database.TenantScope(q.Actor)).
		Where("approval_status = ?", models.ApprovalPending)
	if q.Channel != "" {
		tx = tx.Where("channel = ?", q.Channel)
	}
	var msgs []models.Message
	if err := tx.Find(&msgs).Error; err != nil {
		return nil, apperr.Wrap(apperr.Downstream, "could not list pending messages", err)
	}

	out := make([]Item, 0, len(msgs))
	for _, m := range msgs {
		if q.Search != "" && !containsFold(m.BodyText, q.Search) && !containsFold(m.Recipient, q.Search) {
			continue
		}
		out = append(out, Item{
			ID:        m.Id,
			Type:      "message",
			Channel:   m.Channel,
			Recipient: m.Recipient,
			Preview:   preview(m.BodyText),
			ExpiresAt: m.ApprovalTokenExpiresAt,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

// sortItems orders urgent by expiry ascending with missing expiries last,
// newest by creation descending.
func sortItems(items []Item, mode string) {
	switch mode {
	case SortNewest:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
	default: // urgent
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i].ExpiresAt, items[j].ExpiresAt
			switch {
			case a == nil && b == nil:
				return items[i].CreatedAt.Before(items[j].CreatedAt)
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return a.Before(*b)
			}
		})
	}
}

// collectStats runs independently of the paginated window.
func collectStats(db *gorm.DB, actor auth.Actor) (*Stats, error) {
	var s Stats
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)

	counts := []struct {
		dst   *int64
		model any
		conds func(*gorm.DB) *gorm.DB
	}{
		{&s.PendingPosts, &models.Post{}, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("approval_status = ?", models.ApprovalPending)
		}},
		{&s.PendingMessages, &models.Message{}, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("approval_status = ?", models.ApprovalPending)
		}},
		{&s.PostsApprovedToday, &models.Post{}, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("approval_status = ? AND approved_at >= ?", models.ApprovalApproved, dayStart)
		}},
		{&s.MessagesApprovedToday, &models.Message{}, func(tx *gorm.DB) *gorm.DB {
			return tx.Where("approval_status = ? AND approved_at >= ?", models.ApprovalApproved, dayStart)
		}},
	}
	for _, c := range counts {
		tx := db.Model(c.model).Scopes(database.TenantScope(actor))
		if err := c.conds(tx).Count(c.dst).Error; err != nil {
			return nil, apperr.Wrap(apperr.Downstream, "could not collect stats", err)
		}
	}
	return &s, nil
}

func preview(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= previewRunes {
		return string(runes)
	}
	return string(runes[:previewRunes-1]) + "…"
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
