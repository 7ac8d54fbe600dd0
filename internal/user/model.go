// File: internal/user/model.go
package user

import (
	"time"

	"civicconnect_backend/internal/common"

	"github.com/google/uuid"
)

// User represents a citizen, staff member or administrator.
type User struct {
	common.BaseModel
	Name         string      `gorm:"type:varchar(100);not null"`
	Email        string      `gorm:"type:varchar(255);uniqueIndex;not null"`
	Phone        *string     `gorm:"type:varchar(20)"`
	Role         common.Role `gorm:"type:varchar(20);not null;default:'citizen';index"`
	Address      *string     `gorm:"type:text"`
	PasswordHash string      `gorm:"not null"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}

// GetID satisfies shared.UserDataForToken.
func (u *User) GetID() uuid.UUID { return u.ID }

// GetEmail satisfies shared.UserDataForToken.
func (u *User) GetEmail() string { return u.Email }

// GetRole satisfies shared.UserDataForToken.
func (u *User) GetRole() string { return string(u.Role) }

// Identity returns the access-gate view of the user.
func (u *User) Identity() common.Identity {
	return common.Identity{ID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name}
}

// HasContact reports whether the user can be reached outside the app.
func (u *User) HasContact() bool {
	return u.Email != "" || (u.Phone != nil && *u.Phone != "")
}

// --- Request DTOs ---

// RegisterRequest is the payload for self-registration. Self-registered users are always citizens.
type RegisterRequest struct {
	Name     string  `json:"name" binding:"required,min=2,max=100"`
	Email    string  `json:"email" binding:"required,email,max=255"`
	Password string  `json:"password" binding:"required,min=6,max=72"`
	Phone    *string `json:"phone" binding:"omitempty,e164"`
	Address  *string `json:"address" binding:"omitempty,max=500"`
}

// UpdateUserRequest is a partial update. Only present fields are written.
type UpdateUserRequest struct {
	Name     common.Optional[string]      `json:"name"`
	Phone    common.Optional[*string]     `json:"phone"`
	Address  common.Optional[*string]     `json:"address"`
	Password common.Optional[string]      `json:"password"`
	Role     common.Optional[common.Role] `json:"role"`
}

// IsEmpty reports whether no field was supplied.
func (r UpdateUserRequest) IsEmpty() bool {
	return !r.Name.Set && !r.Phone.Set && !r.Address.Set && !r.Password.Set && !r.Role.Set
}

// --- Response DTOs ---

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     *string     `json:"phone,omitempty"`
	Role      common.Role `json:"role"`
	Address   *string     `json:"address,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ToUserResponse converts a User model to a UserResponse DTO.
func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		Address:   u.Address,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ToUserResponses converts a slice of users.
func ToUserResponses(users []User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, ToUserResponse(&users[i]))
	}
	return out
}
