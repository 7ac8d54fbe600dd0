package user

import (
	"context"
	"errors"
	"testing"

	"civicconnect_backend/internal/common"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockUserRepository is a mock implementation of Repository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepository) FindByRoles(ctx context.Context, roles ...common.Role) ([]User, error) {
	args := m.Called(ctx, roles)
	return args.Get(0).([]User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, role *common.Role) ([]User, error) {
	args := m.Called(ctx, role)
	return args.Get(0).([]User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error {
	args := m.Called(ctx, id, changes)
	return args.Error(0)
}

func setupUserServiceTest() (*ServiceImplementation, *MockUserRepository) {
	repo := new(MockUserRepository)
	return NewService(repo, zap.NewNop()), repo
}

func TestRegister_CreatesCitizenWithHashedPassword(t *testing.T) {
	svc, repo := setupUserServiceTest()
	ctx := context.Background()
	req := RegisterRequest{Name: " Ada ", Email: "ada@example.com", Password: "secret1"}

	repo.On("FindByEmail", ctx, req.Email).Return(nil, common.ErrNotFound.WithDetails("x"))
	repo.On("Create", ctx, mock.MatchedBy(func(u *User) bool {
		return u.Role == common.RoleCitizen &&
			u.Name == "Ada" &&
			u.PasswordHash != "secret1" &&
			common.CheckPasswordHash("secret1", u.PasswordHash)
	})).Return(nil)

	u, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, common.RoleCitizen, u.Role)
	repo.AssertExpectations(t)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, repo := setupUserServiceTest()
	ctx := context.Background()

	repo.On("FindByEmail", ctx, "ada@example.com").Return(&User{Email: "ada@example.com"}, nil)

	_, err := svc.Register(ctx, RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConflict))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthenticate(t *testing.T) {
	svc, repo := setupUserServiceTest()
	ctx := context.Background()
	hash, err := common.HashPassword("correct-horse")
	require.NoError(t, err)
	stored := &User{Email: "ada@example.com", PasswordHash: hash}

	repo.On("FindByEmail", ctx, "ada@example.com").Return(stored, nil)
	repo.On("FindByEmail", ctx, "ghost@example.com").Return(nil, common.ErrNotFound)

	u, err := svc.Authenticate(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, stored, u)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong")
	assert.True(t, errors.Is(err, common.ErrUnauthorized))

	_, err = svc.Authenticate(ctx, "ghost@example.com", "whatever")
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestUpdateUser_NoFields(t *testing.T) {
	svc, repo := setupUserServiceTest()
	id := uuid.New()

	_, err := svc.UpdateUser(context.Background(), common.Identity{ID: id, Role: common.RoleCitizen}, id, UpdateUserRequest{})
	assert.True(t, common.IsValidationError(err))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateUser_OtherUserForbidden(t *testing.T) {
	svc, _ := setupUserServiceTest()
	caller := common.Identity{ID: uuid.New(), Role: common.RoleStaff}

	_, err := svc.UpdateUser(context.Background(), caller, uuid.New(), UpdateUserRequest{Name: common.Some("Bob")})
	assert.True(t, errors.Is(err, common.ErrForbidden))
}

func TestUpdateUser_RoleChangeRequiresAdmin(t *testing.T) {
	svc, repo := setupUserServiceTest()
	id := uuid.New()
	caller := common.Identity{ID: id, Role: common.RoleCitizen}

	_, err := svc.UpdateUser(context.Background(), caller, id, UpdateUserRequest{Role: common.Some(common.RoleAdmin)})
	assert.True(t, errors.Is(err, common.ErrForbidden))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateUser_WritesOnlyPresentFields(t *testing.T) {
	svc, repo := setupUserServiceTest()
	ctx := context.Background()
	id := uuid.New()
	admin := common.Identity{ID: uuid.New(), Role: common.RoleAdmin}

	repo.On("Update", ctx, id, mock.MatchedBy(func(changes map[string]interface{}) bool {
		_, hasAddress := changes["address"]
		_, hasPhone := changes["phone"]
		return len(changes) == 2 &&
			changes["name"] == "Grace" &&
			changes["role"] == common.RoleStaff &&
			!hasAddress && !hasPhone
	})).Return(nil)
	repo.On("FindByID", ctx, id).Return(&User{Name: "Grace", Role: common.RoleStaff}, nil)

	u, err := svc.UpdateUser(ctx, admin, id, UpdateUserRequest{
		Name: common.Some(" Grace "),
		Role: common.Some(common.RoleStaff),
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", u.Name)
	repo.AssertExpectations(t)
}

func TestListUsers_UnknownRole(t *testing.T) {
	svc, _ := setupUserServiceTest()
	bogus := common.Role("mayor")

	_, err := svc.ListUsers(context.Background(), &bogus)
	assert.True(t, common.IsValidationError(err))
}
