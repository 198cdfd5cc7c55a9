package feed

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"contentops-backend/auth"
	"contentops-backend/models"
)

var reviewer = auth.Actor{UserID: "editor", ClientID: "client-a", Role: "client"}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Post{}, &models.Message{}))
	return db
}

func addPost(t *testing.T, db *gorm.DB, id, clientID, platform, caption string, createdAt time.Time, expiresAt *time.Time) {
	t.Helper()
	post := &models.Post{
		Id: id, ClientID: clientID, Platform: platform, Caption: caption,
		PostType: models.PostTypeSingleImage, Status: models.PostStatusDraft,
		ApprovalStatus: models.ApprovalPending, ApprovalTokenExpiresAt: expiresAt,
	}
	require.NoError(t, db.Create(post).Error)
	require.NoError(t, db.Model(post).Update("created_at", createdAt).Error)
}

func addMessage(t *testing.T, db *gorm.DB, id, clientID, channel, body string, createdAt time.Time, expiresAt *time.Time) {
	t.Helper()
	msg := &models.Message{
		Id: id, ClientID: clientID, Channel: channel, Recipient: "+43660111",
		BodyText: body, ApprovalStatus: models.ApprovalPending, ApprovalTokenExpiresAt: expiresAt,
	}
	require.NoError(t, db.Create(msg).Error)
	require.NoError(t, db.Model(msg).Update("created_at", createdAt).Error)
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestListMergesAndSortsUrgent(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	soon := now.Add(10 * time.Minute)
	later := now.Add(2 * time.Hour)

	addPost(t, db, "p-later", "client-a", "instagram", "later post", now.Add(-time.Hour), &later)
	addPost(t, db, "p-none", "client-a", "instagram", "no expiry", now, nil)
	addMessage(t, db, "m-soon", "client-a", "whatsapp", "reply soon", now.Add(-2*time.Hour), &soon)

	page, err := List(db, Query{Actor: reviewer, Sort: SortUrgent})
	require.NoError(t, err)

	// nearest expiry first, missing expiry last (treated as +infinity)
	assert.Equal(t, []string{"m-soon", "p-later", "p-none"}, ids(page.Items))
	assert.Equal(t, 3, page.Total)
	assert.EqualValues(t, 2, page.Stats.PendingPosts)
	assert.EqualValues(t, 1, page.Stats.PendingMessages)
}

func TestListNewestSort(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	addPost(t, db, "old", "client-a", "instagram", "old", now.Add(-3*time.Hour), nil)
	addMessage(t, db, "mid", "client-a", "whatsapp", "mid", now.Add(-2*time.Hour), nil)
	addPost(t, db, "new", "client-a", "instagram", "new", now.Add(-time.Hour), nil)

	page, err := List(db, Query{Actor: reviewer, Sort: SortNewest})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(page.Items))
}

func TestListFilters(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	addPost(t, db, "ig", "client-a", "instagram", "summer sale", now, nil)
	addPost(t, db, "fb", "client-a", "facebook", "summer sale", now, nil)
	addMessage(t, db, "wa", "client-a", "whatsapp", "summer enquiry", now, nil)
	addMessage(t, db, "sms", "client-a", "sms", "winter enquiry", now, nil)

	page, err := List(db, Query{Actor: reviewer, Type: "post", Platform: "instagram"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ig"}, ids(page.Items))

	page, err = List(db, Query{Actor: reviewer, Type: "message", Channel: "whatsapp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"wa"}, ids(page.Items))

	page, err = List(db, Query{Actor: reviewer, Search: "summer"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ig", "fb", "wa"}, ids(page.Items))
}

func TestListTenantScoped(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	addPost(t, db, "mine", "client-a", "instagram", "mine", now, nil)
	addPost(t, db, "theirs", "client-b", "instagram", "theirs", now, nil)

	page, err := List(db, Query{Actor: reviewer})
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, ids(page.Items))

	// Admins see everything.
	page, err = List(db, Query{Actor: auth.Actor{UserID: "root", Role: "admin"}})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
}

func TestListPagination(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		addPost(t, db, fmt.Sprintf("p%d", i), "client-a", "instagram", "post", now.Add(time.Duration(-i)*time.Minute), nil)
	}

	page, err := List(db, Query{Actor: reviewer, Sort: SortNewest, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total, "total reflects the filtered set, not the window")
	assert.Equal(t, []string{"p2", "p3"}, ids(page.Items))

	// Offset past the end is an empty page, not an error.
	page, err = List(db, Query{Actor: reviewer, Limit: 2, Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestStatsCountApprovedToday(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	yesterday := now.Add(-36 * time.Hour)

	addPost(t, db, "pending", "client-a", "instagram", "pending", now, nil)

	approvedToday := &models.Post{
		Id: "today", ClientID: "client-a", Platform: "instagram",
		PostType: models.PostTypeSingleImage, Status: models.PostStatusScheduled,
		ApprovalStatus: models.ApprovalApproved, ApprovedAt: &now,
	}
	require.NoError(t, db.Create(approvedToday).Error)

	approvedYesterday := &models.Post{
		Id: "yesterday", ClientID: "client-a", Platform: "instagram",
		PostType: models.PostTypeSingleImage, Status: models.PostStatusPosted,
		ApprovalStatus: models.ApprovalApproved, ApprovedAt: &yesterday,
	}
	require.NoError(t, db.Create(approvedYesterday).Error)

	msgApproved := &models.Message{
		Id: "m-today", ClientID: "client-a", Channel: "whatsapp", Recipient: "x",
		ApprovalStatus: models.ApprovalApproved, ApprovedAt: &now,
	}
	require.NoError(t, db.Create(msgApproved).Error)

	page, err := List(db, Query{Actor: reviewer})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Stats.PostsApprovedToday)
	assert.EqualValues(t, 1, page.Stats.MessagesApprovedToday)
}

func TestPreviewTruncation(t *testing.T) {
	long := strings.Repeat("caption ", 40)
	p := preview(long)
	assert.LessOrEqual(t, len([]rune(p)), previewRunes)
	assert.True(t, strings.HasSuffix(p, "…"))
	assert.Equal(t, "short", preview("  short  "))
}
