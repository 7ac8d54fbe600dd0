// File: internal/user/repository.go
package user

import (
	"context"
	"errors"
	"strings"

	"civicconnect_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for user data operations.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByRoles(ctx context.Context, roles ...common.Role) ([]User, error)
	List(ctx context.Context, role *common.Role) ([]User, error)
	Update(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM user repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// Create inserts a new user record into the database.
func (r *gormRepository) Create(ctx context.Context, user *User) error {
	user.Email = normalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return common.ErrConflict.WithDetails("Email already exists.")
		}
		return err
	}
	return nil
}

// FindByID retrieves a user by their ID.
func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this ID.")
		}
		return nil, err
	}
	return &u, nil
}

// FindByEmail retrieves a user by their email address.
func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this email.")
		}
		return nil, err
	}
	return &u, nil
}

// FindByRoles returns every user holding one of the roles, ordered by name.
func (r *gormRepository) FindByRoles(ctx context.Context, roles ...common.Role) ([]User, error) {
	var users []User
	err := r.db.WithContext(ctx).
		Where("role IN ?", roles).
		Order("name ASC").
		Find(&users).Error
	return users, err
}

// List returns all users, optionally filtered by role, newest first.
func (r *gormRepository) List(ctx context.Context, role *common.Role) ([]User, error) {
	var users []User
	query := r.db.WithContext(ctx).Model(&User{})
	if role != nil {
		query = query.Where("role = ?", *role)
	}
	err := query.Order("created_at DESC").Find(&users).Error
	return users, err
}

// Update writes only the supplied columns.
func (r *gormRepository) Update(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(changes)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return common.ErrConflict.WithDetails("Update failed due to a conflict.")
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("User not found with this ID.")
	}
	return nil
}
