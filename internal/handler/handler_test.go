package handler_test

import (
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"clinsight/internal/middleware"
)

const testUser = "user-1"

func init() {
	gin.SetMode(gin.TestMode)
}

func setAuthContext(c *gin.Context, userID string) {
	c.Set(middleware.ContextKeyUserID, userID)
	c.Set(middleware.ContextKeyEmail, "doc@test.com")
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Count int    `json:"count"`
		Limit int    `json:"limit"`
		Query string `json:"query"`
	} `json:"meta"`
}

func parseEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}
