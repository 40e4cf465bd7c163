package services

import "biblioteca/internal/models"

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID uint
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}
