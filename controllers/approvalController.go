package controllers

import (
	"github.com/gofiber/fiber/v2"

	"contentops-backend/database"
	"contentops-backend/feed"
	"contentops-backend/lifecycle"
	"contentops-backend/middlewares"
	"contentops-backend/utils"
)

// ListApprovals serves the unified review queue for pending posts and
// messages.
func ListApprovals(c *fiber.Ctx) error {
	actor := middlewares.ActorFromCtx(c)

	page, err := feed.List(database.FromCtx(c), feed.Query{
		Actor:    actor,
		Type:     c.Query("type"),
		Channel:  c.Query("channel"),
		Platform: c.Query("platform"),
		Search:   c.Query("search"),
		Sort:     c.Query("sort", feed.SortUrgent),
		Limit:    utils.ParseIntDefault(c.Query("limit"), 20),
		Offset:   utils.ParseIntDefault(c.Query("offset"), 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

type approveInput struct {
	Edits *lifecycle.Edits `json:"edits"`
}

// ApproveItem approves one item. Losing the pending race is answered with
// a success-shaped already_processed result, so retries look identical to
// the first successful call.
func ApproveItem(c *fiber.Ctx) error {
	kind, err := lifecycle.ParseKind(c.Params("type"))
	if err != nil {
		return err
	}
	var data approveInput
	_ = c.BodyParser(&data) // body is optional

	actor := middlewares.ActorFromCtx(c)
	result, err := manager.Approve(database.FromCtx(c), kind, c.Params("id"), actor, data.Edits)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

type rejectInput struct {
	Reason string `json:"reason"`
}

func RejectItem(c *fiber.Ctx) error {
	kind, err := lifecycle.ParseKind(c.Params("type"))
	if err != nil {
		return err
	}
	var data rejectInput
	_ = c.BodyParser(&data)

	actor := middlewares.ActorFromCtx(c)
	result, err := manager.Reject(database.FromCtx(c), kind, c.Params("id"), actor, data.Reason)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

type bulkInput struct {
	Action string              `json:"action" validate:"required,oneof=approve reject cancel"`
	Items  []lifecycle.ItemRef `json:"items" validate:"required"`
}

// BulkAction applies approve/reject/cancel to up to 50 items with
// per-item isolation: one bad item never aborts the rest.
func BulkAction(c *fiber.Ctx) error {
	var data bulkInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}

	actor := middlewares.ActorFromCtx(c)
	result, err := manager.Bulk(database.FromCtx(c), data.Action, data.Items, actor)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

type respondInput struct {
	Type   string `json:"type" validate:"required,oneof=post message"`
	ID     string `json:"id" validate:"required"`
	Token  string `json:"token" validate:"required"`
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason"`
}

// RespondByToken handles email-link approvals: no session, the one-time
// code on the item is the credential. Used by reviewers and by the expiry
// sweep acting on the tenant's fallback policy.
func RespondByToken(c *fiber.Ctx) error {
	var data respondInput
	if err := middlewares.BindAndValidate(c, &data); err != nil {
		return err
	}
	kind, err := lifecycle.ParseKind(data.Type)
	if err != nil {
		return err
	}

	result, err := manager.RespondByToken(database.DB, kind, data.ID, data.Token, data.Action, data.Reason)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
