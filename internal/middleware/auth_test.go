package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s4li/talamala-v4-sub000/internal/utils"
)

func authTestRouter(handler gin.HandlerFunc, mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", append(mw, handler)...)
	return r
}

func okHandler(c *gin.Context) {
	userID, _ := utils.GetUserIDFromContext(c)
	c.JSON(http.StatusOK, gin.H{"user_id": userID})
}

func TestAuthRequired(t *testing.T) {
	utils.SetJWTSecret("test-secret")
	userID := uuid.New()
	token, err := utils.GenerateJWT(userID, "tester", []string{utils.RoleCustomer}, 1)
	require.NoError(t, err)

	r := authTestRouter(okHandler, AuthRequired())

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), userID.String())
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRoleRequired(t *testing.T) {
	utils.SetJWTSecret("test-secret")

	customerToken, err := utils.GenerateJWT(uuid.New(), "customer", []string{utils.RoleCustomer}, 1)
	require.NoError(t, err)
	dealerToken, err := utils.GenerateJWT(uuid.New(), "dealer", []string{utils.RoleCustomer, utils.RoleDealer}, 1)
	require.NoError(t, err)

	r := authTestRouter(okHandler, AuthRequired(), DealerRequired())

	t.Run("dealer passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+dealerToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("customer forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+customerToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	utils.SetJWTSecret("test-secret")

	r := authTestRouter(func(c *gin.Context) {
		_, authed := utils.GetUserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"authed": authed})
	}, OptionalAuth())

	t.Run("anonymous passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "false")
	})

	t.Run("valid token sets identity", func(t *testing.T) {
		token, err := utils.GenerateJWT(uuid.New(), "tester", []string{utils.RoleCustomer}, 1)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "true")
	})
}
