package middleware_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"clinsight/internal/middleware"
	"clinsight/internal/service"
	"clinsight/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &resp)
	return resp.Error.Code
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tokens := new(mocks.MockTokenService)
	claims := &service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42"},
		Email:            "doc@example.com",
	}
	tokens.On("ValidateToken", "valid-token").Return(claims, nil)

	r := gin.New()
	r.Use(middleware.AuthMiddleware(tokens))
	r.GET("/test", func(c *gin.Context) {
		uid, _ := middleware.GetUserID(c)
		email, _ := c.Get(middleware.ContextKeyEmail)
		c.JSON(http.StatusOK, gin.H{"user_id": uid, "email": email})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer valid-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "user-42", resp["user_id"])
	assert.Equal(t, "doc@example.com", resp["email"])
	tokens.AssertExpectations(t)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"invalid token", "Bearer bad-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := new(mocks.MockTokenService)
			tokens.On("ValidateToken", "bad-token").Return(nil, errors.New("bad signature"))

			r := gin.New()
			r.Use(middleware.AuthMiddleware(tokens))
			r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, w.Body.Bytes()))
		})
	}
}

func adminRouter(credits service.CreditsService, userID string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.ContextKeyUserID, userID)
		}
		c.Next()
	})
	r.Use(middleware.RequireAdmin(credits))
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		isAdmin  bool
		err      error
		wantCode int
	}{
		{"admin passes", "admin-1", true, nil, http.StatusOK},
		{"non-admin forbidden", "user-1", false, nil, http.StatusForbidden},
		{"lookup failure", "user-1", false, errors.New("db down"), http.StatusInternalServerError},
		{"no user context", "", false, nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credits := new(mocks.MockCreditsService)
			credits.On("IsAdmin", mock.Anything, tt.userID).Return(tt.isAdmin, tt.err)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/admin", http.NoBody)
			adminRouter(credits, tt.userID).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.userID == "" {
				credits.AssertNotCalled(t, "IsAdmin", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestGetUserID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := middleware.GetUserID(c)
	assert.Error(t, err)

	c.Set(middleware.ContextKeyUserID, "")
	_, err = middleware.GetUserID(c)
	assert.Error(t, err)
}
