package models

import "time"

// Roles recognized by the library. Admin is the only elevated role.
const (
	RoleAdmin = "admin"
	RoleUser  = "usuario"
)

// User represents a library patron or staff member.
// PasswordHash is never serialized; responses go through UserView.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"not null;index"`
	CPF          string `gorm:"uniqueIndex;type:varchar(14);not null"` // canonical NNN.NNN.NNN-NN
	Address      string
	PasswordHash string `gorm:"type:varchar(255);not null"`
	Role         string `gorm:"type:varchar(16);not null;default:usuario"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserView is the public shape of a User.
type UserView struct {
	ID      uint   `json:"id_usuario"`
	Name    string `json:"nome"`
	CPF     string `json:"CPF"`
	Address string `json:"endereco"`
	Role    string `json:"papel"`
}

// View returns the public representation of the user.
func (u *User) View() UserView {
	return UserView{
		ID:      u.ID,
		Name:    u.Name,
		CPF:     u.CPF,
		Address: u.Address,
		Role:    u.Role,
	}
}

// Views maps a slice of users to their public representation.
func Views(users []User) []UserView {
	out := make([]UserView, 0, len(users))
	for i := range users {
		out = append(out, users[i].View())
	}
	return out
}
