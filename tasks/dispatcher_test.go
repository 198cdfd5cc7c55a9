package tasks

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"contentops-backend/apperr"
	"contentops-backend/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Task{}))
	return db
}

func newDispatcher() *Dispatcher {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Dispatcher{Log: log}
}

func TestEnqueueCreatesScheduledTask(t *testing.T) {
	db := newTestDB(t)
	d := newDispatcher()

	due := time.Now().UTC().Add(time.Hour)
	id, err := d.Enqueue(db, EnqueueInput{
		ClientID: "client-1",
		TaskType: models.TaskTypePublishPost,
		Channel:  "instagram",
		ItemID:   "post-1",
		Payload:  map[string]any{"platform": "instagram"},
		DueAt:    &due,
	})
	require.NoError(t, err)

	var task models.Task
	require.NoError(t, db.Where("id = ?", id).First(&task).Error)
	assert.Equal(t, models.TaskStatusScheduled, task.Status)
	assert.Equal(t, "post-1", task.ItemID)
	assert.Equal(t, 3, task.MaxAttempts)
	assert.Contains(t, string(task.Payload), "post-1", "payload carries the item reference")
}

func TestEnqueueReplacesPriorTaskForItem(t *testing.T) {
	db := newTestDB(t)
	d := newDispatcher()

	first, err := d.Enqueue(db, EnqueueInput{
		ClientID: "client-1", TaskType: models.TaskTypePublishPost, ItemID: "post-1",
	})
	require.NoError(t, err)
	second, err := d.Enqueue(db, EnqueueInput{
		ClientID: "client-1", TaskType: models.TaskTypePublishPost, ItemID: "post-1",
	})
	require.NoError(t, err)

	// Exactly one active task per publish intent.
	var active int64
	require.NoError(t, db.Model(&models.Task{}).
		Where("item_id = ? AND status IN ?", "post-1",
			[]string{models.TaskStatusScheduled, models.TaskStatusPending}).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)

	var old models.Task
	require.NoError(t, db.Where("id = ?", first).First(&old).Error)
	assert.Equal(t, models.TaskStatusCancelled, old.Status)

	var live models.Task
	require.NoError(t, db.Where("id = ?", second).First(&live).Error)
	assert.Equal(t, models.TaskStatusScheduled, live.Status)
}

func TestCancelForItemLeavesFinishedTasksAlone(t *testing.T) {
	db := newTestDB(t)
	d := newDispatcher()

	require.NoError(t, db.Create(&models.Task{
		Id: "t-done", ClientID: "c", TaskType: models.TaskTypePublishPost,
		ItemID: "post-1", Status: models.TaskStatusDone, MaxAttempts: 3,
	}).Error)
	require.NoError(t, db.Create(&models.Task{
		Id: "t-live", ClientID: "c", TaskType: models.TaskTypePublishPost,
		ItemID: "post-1", Status: models.TaskStatusScheduled, MaxAttempts: 3,
	}).Error)

	n, err := d.CancelForItem(db, "post-1", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var done models.Task
	require.NoError(t, db.Where("id = ?", "t-done").First(&done).Error)
	assert.Equal(t, models.TaskStatusDone, done.Status, "engine-owned terminals are never touched")
}

func TestApplyResultTransitions(t *testing.T) {
	db := newTestDB(t)
	d := newDispatcher()

	id, err := d.Enqueue(db, EnqueueInput{ClientID: "c", TaskType: models.TaskTypeSendMessage, ItemID: "msg-1"})
	require.NoError(t, err)

	task, err := d.ApplyResult(db, id, PhaseStarted, "")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.Equal(t, 1, task.Attempts)

	task, err = d.ApplyResult(db, id, PhaseDone, "")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, task.Status)

	// A second completion lost the race and is benign.
	_, err = d.ApplyResult(db, id, PhaseDone, "")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.AlreadyProcessed, e.Category)
}

func TestApplyResultRetriesUntilExhausted(t *testing.T) {
	db := newTestDB(t)
	d := newDispatcher()

	id, err := d.Enqueue(db, EnqueueInput{
		ClientID: "c", TaskType: models.TaskTypePublishPost, ItemID: "post-1", MaxAttempts: 2,
	})
	require.NoError(t, err)

	// attempt 1 fails -> back to scheduled
	_, err = d.ApplyResult(db, id, PhaseStarted, "")
	require.NoError(t, err)
	task, err := d.ApplyResult(db, id, PhaseFailed, "network down")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusScheduled, task.Status)
	assert.Equal(t, "network down", task.LastError)

	// attempt 2 fails -> terminal
	_, err = d.ApplyResult(db, id, PhaseStarted, "")
	require.NoError(t, err)
	task, err = d.ApplyResult(db, id, PhaseFailed, "network still down")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
}

func TestApplyResultUnknownTask(t *testing.T) {
	db := newTestDB(t)
	d := newDispatcher()

	_, err := d.ApplyResult(db, "nope", PhaseDone, "")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.NotFound, e.Category)
}

func TestPollDue(t *testing.T) {
	db := newTestDB(t)
	d := newDispatcher()

	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	require.NoError(t, db.Create(&models.Task{Id: "due", ClientID: "c", TaskType: "x", Status: models.TaskStatusScheduled, DueAt: &past, MaxAttempts: 3}).Error)
	require.NoError(t, db.Create(&models.Task{Id: "later", ClientID: "c", TaskType: "x", Status: models.TaskStatusScheduled, DueAt: &future, MaxAttempts: 3}).Error)
	require.NoError(t, db.Create(&models.Task{Id: "immediate", ClientID: "c", TaskType: "x", Status: models.TaskStatusScheduled, MaxAttempts: 3}).Error)
	require.NoError(t, db.Create(&models.Task{Id: "gone", ClientID: "c", TaskType: "x", Status: models.TaskStatusCancelled, DueAt: &past, MaxAttempts: 3}).Error)

	due, err := d.PollDue(db, now, 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(due))
	for _, task := range due {
		ids = append(ids, task.Id)
	}
	assert.ElementsMatch(t, []string{"due", "immediate"}, ids)
}
