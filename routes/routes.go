package routes

import (
	"github.com/gofiber/fiber/v2"

	"contentops-backend/controllers"
	"contentops-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	api := app.Group("/api")

	// Public auth endpoints
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Out-of-band approval links: the one-time code is the credential.
	api.Post("/approvals/respond", controllers.RespondByToken)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then the per-request transaction (commits/rolls back around the handler)
	protected.Use(middlewares.RequestTx())

	// Posts
	protected.Post("/posts", controllers.CreatePost)
	protected.Get("/posts", controllers.GetPosts)
	protected.Get("/posts/:id", controllers.GetPost)
	protected.Put("/posts/:id", controllers.UpdatePost)
	protected.Delete("/posts/:id", controllers.DeletePost)

	// Unified approval feed + single/bulk review actions
	protected.Get("/approvals", controllers.ListApprovals)
	protected.Post("/approvals/bulk", controllers.BulkAction)
	protected.Post("/approvals/:type/:id/approve", controllers.ApproveItem)
	protected.Post("/approvals/:type/:id/reject", controllers.RejectItem)

	// Engine-facing task interface (cross-tenant role only)
	engine := protected.Group("/engine", middlewares.RequireAdmin())
	engine.Get("/tasks", controllers.PollTasks)
	engine.Post("/tasks/:id/result", controllers.ReportTaskResult)
}
