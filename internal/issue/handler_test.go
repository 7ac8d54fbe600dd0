package issue

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"civicconnect_backend/internal/common"
	"civicconnect_backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockIssueService struct {
	mock.Mock
}

func (m *MockIssueService) CreateIssue(ctx context.Context, reporterID uuid.UUID, req CreateIssueRequest, photo *multipart.FileHeader) (*Issue, error) {
	args := m.Called(ctx, reporterID, req, photo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Issue), args.Error(1)
}

func (m *MockIssueService) ListIssues(ctx context.Context, filter ListIssuesFilter) ([]Issue, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]Issue), args.Error(1)
}

func (m *MockIssueService) GetIssueByID(ctx context.Context, id uuid.UUID, includeInternal bool) (*Issue, error) {
	args := m.Called(ctx, id, includeInternal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Issue), args.Error(1)
}

func (m *MockIssueService) UpdateIssue(ctx context.Context, id uuid.UUID, req UpdateIssueRequest) (*Issue, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Issue), args.Error(1)
}

func (m *MockIssueService) DeleteIssue(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockIssueService) AddComment(ctx context.Context, issueID, authorID uuid.UUID, body string, isInternal bool) (*Comment, error) {
	args := m.Called(ctx, issueID, authorID, body, isInternal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Comment), args.Error(1)
}

func (m *MockIssueService) GetStats(ctx context.Context) (*Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Stats), args.Error(1)
}

func (m *MockIssueService) SearchIssues(ctx context.Context, query string, limit int) ([]Issue, error) {
	args := m.Called(ctx, query, limit)
	return args.Get(0).([]Issue), args.Error(1)
}

// withIdentity stands in for the authenticator in handler tests.
func withIdentity(identity *common.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity != nil {
			common.SetIdentity(c, *identity)
		}
		c.Next()
	}
}

func setupIssueRouter(svc Service, identity *common.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(svc, zap.NewNop(), &config.Config{UploadsURLPrefix: "/uploads"})
	pass := func(c *gin.Context) { c.Next() }
	h.RegisterRoutes(router.Group("/api/v1"), withIdentity(identity), withIdentity(identity), pass, pass, pass)
	return router
}

func perform(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_CitizenCannotPostInternalComment(t *testing.T) {
	svc := new(MockIssueService)
	citizen := &common.Identity{ID: uuid.New(), Role: common.RoleCitizen}
	router := setupIssueRouter(svc, citizen)
	issueID := uuid.New()

	svc.On("AddComment", mock.Anything, issueID, citizen.ID, "hello", false).
		Return(&Comment{IssueID: issueID, UserID: citizen.ID, Body: "hello"}, nil).Once()

	w := perform(router, http.MethodPost, "/api/v1/issues/"+issueID.String()+"/comments", `{"body":"hello","is_internal":true}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_StaffMayPostInternalComment(t *testing.T) {
	svc := new(MockIssueService)
	staff := &common.Identity{ID: uuid.New(), Role: common.RoleStaff}
	router := setupIssueRouter(svc, staff)
	issueID := uuid.New()

	svc.On("AddComment", mock.Anything, issueID, staff.ID, "crew booked", true).
		Return(&Comment{IssueID: issueID, UserID: staff.ID, Body: "crew booked", IsInternal: true}, nil).Once()

	w := perform(router, http.MethodPost, "/api/v1/issues/"+issueID.String()+"/comments", `{"body":"crew booked","is_internal":true}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_GetIssueIncludesInternalOnlyForStaff(t *testing.T) {
	issueID := uuid.New()
	photo := "issues/a.jpg"
	issue := &Issue{Title: "Pothole", PhotoURL: &photo, Comments: []Comment{}}
	issue.ID = issueID

	tests := []struct {
		name     string
		identity *common.Identity
		internal bool
	}{
		{"anonymous", nil, false},
		{"citizen", &common.Identity{ID: uuid.New(), Role: common.RoleCitizen}, false},
		{"admin", &common.Identity{ID: uuid.New(), Role: common.RoleAdmin}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockIssueService)
			svc.On("GetIssueByID", mock.Anything, issueID, tc.internal).Return(issue, nil).Once()

			w := perform(setupIssueRouter(svc, tc.identity), http.MethodGet, "/api/v1/issues/"+issueID.String(), "")
			require.Equal(t, http.StatusOK, w.Code)

			var body struct {
				Data IssueResponse `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.NotNil(t, body.Data.PhotoURL)
			assert.Equal(t, "/uploads/issues/a.jpg", *body.Data.PhotoURL)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_ListMineRequiresAuthentication(t *testing.T) {
	svc := new(MockIssueService)
	w := perform(setupIssueRouter(svc, nil), http.MethodGet, "/api/v1/issues?mine=true", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	citizen := &common.Identity{ID: uuid.New(), Role: common.RoleCitizen}
	svc.On("ListIssues", mock.Anything, ListIssuesFilter{Status: StatusPending, ReporterID: &citizen.ID}).Return([]Issue{}, nil).Once()
	w = perform(setupIssueRouter(svc, citizen), http.MethodGet, "/api/v1/issues?mine=true&status=pending", "")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_ListRejectsUnknownFilter(t *testing.T) {
	svc := new(MockIssueService)
	w := perform(setupIssueRouter(svc, nil), http.MethodGet, "/api/v1/issues?status=done", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ListIssues", mock.Anything, mock.Anything)
}

func TestHandler_UpdateBindsPresentFieldsOnly(t *testing.T) {
	svc := new(MockIssueService)
	staff := &common.Identity{ID: uuid.New(), Role: common.RoleStaff}
	issueID := uuid.New()
	updated := &Issue{Status: StatusInProgress}
	updated.ID = issueID

	svc.On("UpdateIssue", mock.Anything, issueID, mock.MatchedBy(func(req UpdateIssueRequest) bool {
		return req.Status.Set && req.Status.Value == StatusInProgress &&
			req.AssignedTo.Set && req.AssignedTo.Value == nil &&
			!req.Priority.Set && !req.ResolutionNotes.Set
	})).Return(updated, nil).Once()

	w := perform(setupIssueRouter(svc, staff), http.MethodPut, "/api/v1/issues/"+issueID.String(), `{"status":"in_progress","assigned_to":null}`)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_ServiceErrorsUseEnvelope(t *testing.T) {
	svc := new(MockIssueService)
	issueID := uuid.New()
	svc.On("DeleteIssue", mock.Anything, issueID).Return(common.ErrNotFound.WithDetails("Issue not found.")).Once()

	w := perform(setupIssueRouter(svc, &common.Identity{ID: uuid.New(), Role: common.RoleAdmin}), http.MethodDelete, "/api/v1/issues/"+issueID.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)
}
