package user

import (
	"context"
	"errors"
	"testing"

	"civicconnect_backend/internal/common"
	"civicconnect_backend/internal/platform/database/dbtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, repo Repository, name, email string, role common.Role) *User {
	t.Helper()
	u := &User{Name: name, Email: email, Role: role, PasswordHash: "x"}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestGORMRepository_CreateAndFind(t *testing.T) {
	repo := NewGORMRepository(dbtest.New(t, &User{}))
	ctx := context.Background()

	u := seedUser(t, repo, "Ada", "  ADA@Example.com ", common.RoleCitizen)
	assert.NotEqual(t, uuid.Nil, u.ID)

	byEmail, err := repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestGORMRepository_DuplicateEmail(t *testing.T) {
	repo := NewGORMRepository(dbtest.New(t, &User{}))
	seedUser(t, repo, "Ada", "ada@example.com", common.RoleCitizen)

	err := repo.Create(context.Background(), &User{Name: "Other", Email: "ada@example.com", PasswordHash: "x"})
	assert.True(t, errors.Is(err, common.ErrConflict))
}

func TestGORMRepository_FindByRolesAndList(t *testing.T) {
	repo := NewGORMRepository(dbtest.New(t, &User{}))
	ctx := context.Background()
	seedUser(t, repo, "Zed", "zed@example.com", common.RoleStaff)
	seedUser(t, repo, "Amy", "amy@example.com", common.RoleAdmin)
	seedUser(t, repo, "Carl", "carl@example.com", common.RoleCitizen)

	staff, err := repo.FindByRoles(ctx, common.RoleStaff, common.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "Amy", staff[0].Name)
	assert.Equal(t, "Zed", staff[1].Name)

	citizen := common.RoleCitizen
	citizens, err := repo.List(ctx, &citizen)
	require.NoError(t, err)
	require.Len(t, citizens, 1)
	assert.Equal(t, "Carl", citizens[0].Name)

	all, err := repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGORMRepository_Update(t *testing.T) {
	repo := NewGORMRepository(dbtest.New(t, &User{}))
	ctx := context.Background()
	u := seedUser(t, repo, "Ada", "ada@example.com", common.RoleCitizen)

	require.NoError(t, repo.Update(ctx, u.ID, map[string]interface{}{"name": "Ada L."}))
	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)
	assert.Equal(t, common.RoleCitizen, got.Role)

	err = repo.Update(ctx, uuid.New(), map[string]interface{}{"name": "Nobody"})
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
