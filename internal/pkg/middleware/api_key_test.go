package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startunnel/StarTunnel/internal/pkg/env"
)

func newProtectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/stats", APIKeyAuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	env.Env = map[string]string{"ADMIN_API_KEY": "secret"}
	defer func() { env.Env = nil }()

	app := newProtectedApp()

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{"missing key", "", "", fiber.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", fiber.StatusUnauthorized},
		{"valid key", "X-API-Key", "secret", fiber.StatusOK},
		{"valid bearer", "Authorization", "Bearer secret", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/stats", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestAPIKeyAuthMiddlewareUnconfigured(t *testing.T) {
	env.Env = map[string]string{}
	defer func() { env.Env = nil }()

	resp, err := newProtectedApp().Test(httptest.NewRequest("GET", "/stats", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
