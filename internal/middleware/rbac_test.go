package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/credassure/credassure-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, allowed ...models.UserRole) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	RBAC(allowed...)(c)
	if !c.IsAborted() {
		c.Status(http.StatusOK)
	}
	return w
}

func TestRBACAllowsListedRole(t *testing.T) {
	w := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleAgent}, models.RoleAdmin, models.RoleAgent)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsOtherRole(t *testing.T) {
	w := performRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleMember}, models.RoleAdmin)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACRequiresClaims(t *testing.T) {
	w := performRBAC(t, nil, models.RoleAdmin)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
