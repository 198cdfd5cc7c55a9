package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"contentops-backend/apperr"
	"contentops-backend/database"
	"contentops-backend/lifecycle"
	"contentops-backend/middlewares"
	"contentops-backend/models"
	"contentops-backend/tasks"
	"contentops-backend/utils"
	"contentops-backend/validation"
)

var manager *lifecycle.Manager

// Init wires the lifecycle manager and logger shared by all controllers.
func Init(l *logrus.Logger) {
	manager = lifecycle.NewManager(l)
	SetLogger(l)
}

type createPostInput struct {
	Platform    string     `json:"platform" validate:"required"`
	Caption     string     `json:"caption"`
	Media       []string   `json:"media"`
	PostType    string     `json:"post_type" validate:"required,oneof=single_image single_video carousel video"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	BatchID     *string    `json:"batch_id"`
}

// CreatePost validates constraints and hands the draft to the engine as a
// generation task. The post row itself is materialized by the engine, so
// the response is the task id, not an item.
func CreatePost(c *fiber.Ctx) error {
	var data createPostInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}
	utils.NormalizeDTO(&data)

	actor := middlewares.ActorFromCtx(c)
	if !actor.IsAdmin() && actor.ClientID == "" {
		return apperr.New(apperr.Unauthorized, "invalid or expired token")
	}

	db := database.FromCtx(c)
	if err := validation.Validate(db, data.Platform, data.Caption, data.Media, data.PostType); err != nil {
		return err
	}

	payload := map[string]any{
		"platform":  data.Platform,
		"caption":   data.Caption,
		"media":     data.Media,
		"post_type": data.PostType,
	}
	if data.ScheduledAt != nil {
		payload["scheduled_at"] = data.ScheduledAt.UTC().Format(time.RFC3339)
	}
	if data.BatchID != nil {
		payload["batch_id"] = *data.BatchID
	}

	now := time.Now().UTC()
	taskID, err := manager.Dispatcher.Enqueue(db, tasks.EnqueueInput{
		ClientID: actor.ClientID,
		TaskType: models.TaskTypeGeneratePost,
		Channel:  data.Platform,
		Payload:  payload,
		DueAt:    &now,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id": taskID,
		"status":  "processing",
	})
}

func GetPosts(c *fiber.Ctx) error {
	actor := middlewares.ActorFromCtx(c)
	db := database.FromCtx(c)

	tx := db.Model(&models.Post{}).Scopes(database.TenantScope(actor))
	if status := c.Query("status"); status != "" {
		tx = tx.Where("status = ?", status)
	}
	if platform := c.Query("platform"); platform != "" {
		tx = tx.Where("platform = ?", platform)
	}

	limit := utils.ParseIntDefault(c.Query("limit"), 50)
	offset := utils.ParseIntDefault(c.Query("offset"), 0)

	var posts []models.Post
	if err := tx.Order("created_at DESC").Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return apperr.Wrap(apperr.Downstream, "could not list posts", err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

func GetPost(c *fiber.Ctx) error {
	actor := middlewares.ActorFromCtx(c)
	db := database.FromCtx(c)

	var post models.Post
	err := db.Scopes(database.TenantScope(actor)).Where("id = ?", c.Params("id")).First(&post).Error
	if err != nil {
		return apperr.New(apperr.NotFound, "item not found")
	}
	return c.JSON(post)
}

type updatePostInput struct {
	Caption     *string    `json:"caption"`
	Platform    *string    `json:"platform"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// UpdatePost patches a still-mutable post. A scheduled_at change moves the
// publish task's due time in the same operation.
func UpdatePost(c *fiber.Ctx) error {
	var data updatePostInput
	if err := c.BodyParser(&data); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizePtrDTO(&data)

	updates := utils.UpdatesFromPtrDTO(&data, nil)
	actor := middlewares.ActorFromCtx(c)

	post, err := manager.Update(database.FromCtx(c), c.Params("id"), actor, updates)
	if err != nil {
		return err
	}
	return c.JSON(post)
}

// DeletePost cancels: publish status cancelled, approval status rejected,
// tasks withdrawn. Rows are never physically removed.
func DeletePost(c *fiber.Ctx) error {
	actor := middlewares.ActorFromCtx(c)
	result, err := manager.Cancel(database.FromCtx(c), lifecycle.KindPost, c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
