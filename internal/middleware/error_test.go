package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"civicconnect_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop()))
	r.GET("/api-error", func(c *gin.Context) { _ = c.Error(common.ErrConflict) })
	r.GET("/plain-error", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })
	r.GET("/already-written", func(c *gin.Context) { common.RespondWithError(c, common.ErrNotFound) })

	cases := map[string]int{
		"/api-error":       http.StatusConflict,
		"/plain-error":     http.StatusInternalServerError,
		"/already-written": http.StatusNotFound,
		"/missing":         http.StatusNotFound,
	}
	for path, want := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
		assert.Contains(t, w.Body.String(), `"code"`, path)
	}
}
