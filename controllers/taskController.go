package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"contentops-backend/apperr"
	"contentops-backend/database"
	"contentops-backend/lifecycle"
	"contentops-backend/middlewares"
	"contentops-backend/models"
	"contentops-backend/utils"
)

// PollTasks lists due, engine-consumable work. Admin-token only: the
// engine is the sole consumer.
func PollTasks(c *fiber.Ctx) error {
	limit := utils.ParseIntDefault(c.Query("limit"), 50)
	due, err := manager.Dispatcher.PollDue(database.FromCtx(c), time.Now().UTC(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tasks": due})
}

type taskResultInput struct {
	Phase string `json:"phase" validate:"required,oneof=started done failed"`
	Error string `json:"error"`
}

// ReportTaskResult records an engine phase transition on the task and
// mirrors terminal outcomes onto the underlying item, the only path that
// moves posts through publishing/posted/failed and marks messages sent.
func ReportTaskResult(c *fiber.Ctx) error {
	var data taskResultInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}

	db := database.FromCtx(c)
	task, err := manager.Dispatcher.ApplyResult(db, c.Params("id"), data.Phase, data.Error)
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Category == apperr.AlreadyProcessed {
			return c.JSON(fiber.Map{"task_id": c.Params("id"), "status": "already_processed"})
		}
		return err
	}

	// Only item-bound tasks move item state; generation tasks have no item
	// until the engine materializes one.
	if task.ItemID != "" {
		kind := lifecycle.KindPost
		if task.TaskType == models.TaskTypeSendMessage {
			kind = lifecycle.KindMessage
		}
		if data.Phase != "failed" || task.Status == models.TaskStatusFailed {
			// A non-terminal failure means the engine will retry; the item
			// keeps its current publish state until the task is exhausted.
			if _, err := manager.MarkEngineOutcome(db, kind, task.ItemID, data.Phase); err != nil {
				return err
			}
		}
	}

	return c.JSON(fiber.Map{"task_id": task.Id, "status": task.Status, "attempts": task.Attempts})
}
