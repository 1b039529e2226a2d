package services

import "storefront/internal/models"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

func (a Actor) CanSell() bool { return a.Role == models.RoleSeller || a.Role == models.RoleAdmin }
