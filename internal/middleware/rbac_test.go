package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/paylog/timecard-api/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func metricsRouter(claims *models.JWTClaims) *gin.Engine {
	r := gin.New()
	if claims != nil {
		r.Use(func(c *gin.Context) { c.Set(ContextUserKey, claims) })
	}
	r.GET("/metrics", RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleAccountant, models.RoleProjectManager), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireRolesBlocksAnonymous(t *testing.T) {
	r := metricsRouter(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRolesRejectsNonStaff(t *testing.T) {
	r := metricsRouter(&models.JWTClaims{UserID: "u1", Role: models.RoleUser})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesAllowsStaff(t *testing.T) {
	r := metricsRouter(&models.JWTClaims{UserID: "acct-1", Role: models.RoleAccountant})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	r := gin.New()
	r.GET("/metrics", JWT(nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
