package router

import (
	apiv1 "github.com/startunnel/StarTunnel/internal/api/v1"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/startunnel/StarTunnel/app/repository"
	"github.com/startunnel/StarTunnel/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())

	v1 := api.Group("/v1")
	apiServer := apiv1.NewAPIServer(repository.GetGlobalFactory().GetUserAccountRepository())
	v1.Get("/health", apiServer.GetHealth)
	v1.Get("/stats", middleware.APIKeyAuthMiddleware(), apiServer.GetStats)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
