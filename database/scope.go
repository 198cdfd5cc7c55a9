package database

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"contentops-backend/auth"
)

// FromCtx returns the DB handle for a request: the per-request transaction
// if middlewares.RequestTx opened one, otherwise the shared connection.
func FromCtx(c *fiber.Ctx) *gorm.DB {
	if v := c.Locals("tx"); v != nil {
		if tx, ok := v.(*gorm.DB); ok && tx != nil {
			return tx
		}
	}
	return DB
}

// TenantScope returns a GORM scope binding a query to the actor's tenant.
// Admin and system actors are unscoped. The scope is applied inside the
// same statement as any state guard, so there is no check-then-act gap.
func TenantScope(actor auth.Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if actor.IsAdmin() {
			return db
		}
		return db.Where("client_id = ?", actor.ClientID)
	}
}
