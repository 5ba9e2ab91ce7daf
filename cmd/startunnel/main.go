package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/startunnel/StarTunnel/app/repository"
	"github.com/startunnel/StarTunnel/internal/pkg/bot"
	"github.com/startunnel/StarTunnel/internal/pkg/database"
	"github.com/startunnel/StarTunnel/internal/pkg/env"
	"github.com/startunnel/StarTunnel/internal/pkg/outline"
	"github.com/startunnel/StarTunnel/internal/pkg/payment"
	"github.com/startunnel/StarTunnel/internal/pkg/router"
	"github.com/startunnel/StarTunnel/internal/pkg/subscription"
	"github.com/startunnel/StarTunnel/internal/pkg/sweeper"
)

func main() {
	env.SetupEnvFile()

	token, err := env.RequireEnv("TG_API_KEY")
	if err != nil {
		log.Fatal(err)
	}
	providerToken, err := env.RequireEnv("PROVIDER_TOKEN")
	if err != nil {
		log.Fatal(err)
	}
	adminIDs, err := env.GetAdminIDs()
	if err != nil {
		log.Fatal(err)
	}
	outlineClient, err := outline.NewClientFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	database.SetupDatabase()
	factory := repository.NewFactory(database.GetDB())
	repository.SetGlobalFactory(factory)
	repo := factory.GetUserAccountRepository()

	engine := subscription.NewEngine(repo, outlineClient)
	intake := payment.NewIntake(engine, payment.NewPendingInvoices())

	tgBot, err := bot.New(bot.Config{
		Token:         token,
		ProviderToken: providerToken,
		AdminIDs:      adminIDs,
	}, repo, engine, intake)
	if err != nil {
		log.Fatal(err)
	}

	interval := time.Duration(env.GetEnvInt("SWEEP_INTERVAL_HOURS", 24)) * time.Hour
	sw := sweeper.New(repo, engine, tgBot, interval)
	sw.Start()
	defer sw.Stop()

	go tgBot.Run()

	app := NewApplication()
	err = app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	app := fiber.New()

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
