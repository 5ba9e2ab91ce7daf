package apiv1

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/startunnel/StarTunnel/app/models"
	"github.com/startunnel/StarTunnel/app/repository"
)

func newTestApp(t *testing.T) (*fiber.App, repository.UserAccountRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserAccount{}))
	repo := repository.NewUserAccountRepository(db)

	app := fiber.New()
	server := NewAPIServer(repo)
	app.Get("/api/v1/health", server.GetHealth)
	app.Get("/api/v1/stats", server.GetStats)
	return app, repo
}

func TestGetHealth(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetStats(t *testing.T) {
	app, repo := newTestApp(t)

	require.NoError(t, repo.CreateIfAbsent(1, "a"))
	require.NoError(t, repo.CreateIfAbsent(2, "b"))
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, repo.SetExpiry(1, &future))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/stats", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]int64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 2, body["users"])
	assert.EqualValues(t, 1, body["active_subscriptions"])
}
