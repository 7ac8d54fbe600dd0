package notification

import (
	"context"
	"testing"
	"time"

	"civicconnect_backend/internal/platform/database/dbtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// issueRow is the minimal issues table ListByUser joins against.
type issueRow struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title string
}

func (issueRow) TableName() string { return "issues" }

func setupNotificationRepo(t *testing.T) (Repository, func(n *Notification)) {
	t.Helper()
	db := dbtest.New(t, &Notification{}, &issueRow{})
	repo := NewGORMRepository(db)
	seed := func(n *Notification) {
		require.NoError(t, repo.Create(context.Background(), n))
	}
	require.NoError(t, db.Create(&issueRow{ID: seededIssueID, Title: "Pothole on 5th"}).Error)
	return repo, seed
}

var seededIssueID = uuid.MustParse("7d6f5a2e-1b2c-4d3e-8f90-0a1b2c3d4e5f")

func TestGORMRepository_ListByUser(t *testing.T) {
	repo, seed := setupNotificationRepo(t)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()
	issueID := seededIssueID
	base := time.Now().Add(-time.Hour)

	seed(&Notification{UserID: owner, IssueID: &issueID, Type: TypeStatusUpdate, Title: "old", Message: "m", CreatedAt: base})
	seed(&Notification{UserID: owner, Type: TypeComment, Title: "new", Message: "m", CreatedAt: base.Add(time.Minute), IsRead: true})
	seed(&Notification{UserID: other, Type: TypeComment, Title: "foreign", Message: "m", CreatedAt: base})

	all, err := repo.ListByUser(ctx, owner, ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].Title)
	assert.Nil(t, all[0].IssueTitle)
	require.NotNil(t, all[1].IssueTitle)
	assert.Equal(t, "Pothole on 5th", *all[1].IssueTitle)

	unread, err := repo.ListByUser(ctx, owner, ListOptions{Limit: 10, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "old", unread[0].Title)

	limited, err := repo.ListByUser(ctx, owner, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGORMRepository_MarkReadScopedToOwner(t *testing.T) {
	repo, seed := setupNotificationRepo(t)
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()
	n := &Notification{UserID: owner, Type: TypeAssignment, Title: "t", Message: "m"}
	seed(n)

	got, err := repo.MarkRead(ctx, n.ID, stranger)
	require.NoError(t, err)
	assert.Nil(t, got)

	count, err := repo.CountUnread(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err = repo.MarkRead(ctx, n.ID, owner)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsRead)

	count, err = repo.CountUnread(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGORMRepository_MarkAllRead(t *testing.T) {
	repo, seed := setupNotificationRepo(t)
	ctx := context.Background()
	owner := uuid.New()
	for i := 0; i < 3; i++ {
		seed(&Notification{UserID: owner, Type: TypeNewIssue, Title: "t", Message: "m"})
	}

	updated, err := repo.MarkAllRead(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)

	updated, err = repo.MarkAllRead(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, updated)
}
