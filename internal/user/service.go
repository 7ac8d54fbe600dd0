package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"civicconnect_backend/internal/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service defines the account operations.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	LoadIdentity(ctx context.Context, id uuid.UUID) (common.Identity, error)
	ListUsers(ctx context.Context, role *common.Role) ([]User, error)
	ListStaff(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, caller common.Identity, id uuid.UUID, req UpdateUserRequest) (*User, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo   Repository
	logger *zap.Logger
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new user service.
func NewService(repo Repository, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:   repo,
		logger: logger.Named("UserService"),
	}
}

// Register creates a new citizen account.
func (s *ServiceImplementation) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	_, err := s.repo.FindByEmail(ctx, req.Email)
	if err == nil {
		return nil, common.ErrConflict.WithDetails("Email already exists.")
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user by email: %w", err)
	}

	hashedPassword, err := common.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", zap.Error(err))
		return nil, common.ErrInternalServer
	}

	u := &User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		Phone:        trimmedOrNil(req.Phone),
		Role:         common.RoleCitizen,
		Address:      trimmedOrNil(req.Address),
		PasswordHash: hashedPassword,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("userID", u.ID.String()))
	return u, nil
}

// Authenticate verifies credentials. Unknown emails and wrong passwords are indistinguishable.
func (s *ServiceImplementation) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized.WithDetails("Invalid credentials.")
		}
		return nil, err
	}
	if !common.CheckPasswordHash(password, u.PasswordHash) {
		return nil, common.ErrUnauthorized.WithDetails("Invalid credentials.")
	}
	return u, nil
}

// GetUserByID retrieves a user by ID.
func (s *ServiceImplementation) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// LoadIdentity resolves the caller for the access gate. It always reads from storage.
func (s *ServiceImplementation) LoadIdentity(ctx context.Context, id uuid.UUID) (common.Identity, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return common.Identity{}, err
	}
	return u.Identity(), nil
}

// ListUsers returns users, optionally filtered by role.
func (s *ServiceImplementation) ListUsers(ctx context.Context, role *common.Role) ([]User, error) {
	if role != nil && !role.Valid() {
		return nil, common.NewValidationAPIError(map[string]string{"role": "Unknown role."})
	}
	return s.repo.List(ctx, role)
}

// ListStaff returns staff and admin users ordered by name.
func (s *ServiceImplementation) ListStaff(ctx context.Context) ([]User, error) {
	return s.repo.FindByRoles(ctx, common.RoleStaff, common.RoleAdmin)
}

// UpdateUser applies a partial update. Only admins may change roles.
func (s *ServiceImplementation) UpdateUser(ctx context.Context, caller common.Identity, id uuid.UUID, req UpdateUserRequest) (*User, error) {
	if !common.SelfOrAdmin(caller, id) {
		return nil, common.ErrForbidden
	}
	if req.IsEmpty() {
		return nil, common.NewValidationAPIError("No fields to update.")
	}

	changes := make(map[string]interface{})
	fieldErrs := make(map[string]string)

	if req.Name.Set {
		name := strings.TrimSpace(req.Name.Value)
		if len(name) < 2 || len(name) > 100 {
			fieldErrs["name"] = "The name field must be between 2 and 100 characters."
		}
		changes["name"] = name
	}
	if req.Phone.Set {
		changes["phone"] = trimmedOrNil(req.Phone.Value)
	}
	if req.Address.Set {
		changes["address"] = trimmedOrNil(req.Address.Value)
	}
	if req.Password.Set {
		if len(req.Password.Value) < 6 {
			fieldErrs["password"] = "The password field must be at least 6 characters long."
		} else {
			hashed, err := common.HashPassword(req.Password.Value)
			if err != nil {
				s.logger.Error("Failed to hash password during update", zap.Error(err))
				return nil, common.ErrInternalServer
			}
			changes["password_hash"] = hashed
		}
	}
	if req.Role.Set {
		if caller.Role != common.RoleAdmin {
			return nil, common.ErrForbidden.WithDetails("Only administrators can change roles.")
		}
		if !req.Role.Value.Valid() {
			fieldErrs["role"] = "The role field must be one of citizen, staff, admin."
		}
		changes["role"] = req.Role.Value
	}

	if len(fieldErrs) > 0 {
		return nil, common.NewValidationAPIError(fieldErrs)
	}
	if err := s.repo.Update(ctx, id, changes); err != nil {
		return nil, err
	}

	s.logger.Info("User updated", zap.String("userID", id.String()), zap.String("by", caller.ID.String()))
	return s.repo.FindByID(ctx, id)
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
