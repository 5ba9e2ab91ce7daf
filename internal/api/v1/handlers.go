package apiv1

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/startunnel/StarTunnel/app/repository"
)

// APIServer serves the operations endpoints
type APIServer struct {
	repo repository.UserAccountRepository
}

// NewAPIServer creates a new API server instance
func NewAPIServer(repo repository.UserAccountRepository) *APIServer {
	return &APIServer{repo: repo}
}

// GetHealth reports process liveness
func (s *APIServer) GetHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
	})
}

// GetStats returns ledger totals for monitoring dashboards
func (s *APIServer) GetStats(c *fiber.Ctx) error {
	total, err := s.repo.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Ledger unavailable"})
	}
	active, err := s.repo.CountActive(time.Now().UTC())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Ledger unavailable"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"users":                total,
		"active_subscriptions": active,
	})
}
