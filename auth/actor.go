package auth

// Actor identifies who is performing an operation. Every tenant-scoped
// query takes its predicate from the actor so scope and state guards end
// up in the same WHERE clause.
type Actor struct {
	UserID   string
	ClientID string // empty for admin and system actors
	Role     string
}

func (a Actor) IsAdmin() bool { return a.Role == "admin" }

// SystemActor is used by out-of-band flows (approval links, expiry
// sweeps). It is cross-tenant like an admin but identifiable in audit
// fields.
func SystemActor() Actor {
	return Actor{UserID: "system", Role: "admin"}
}

// FromClaims builds the request actor from verified token claims.
func FromClaims(c *Claims) Actor {
	a := Actor{UserID: c.Subject, Role: c.Role}
	if c.ClientID != nil {
		a.ClientID = *c.ClientID
	}
	return a
}
