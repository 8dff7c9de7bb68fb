package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"supportportal/internal/auth"
	"supportportal/internal/config"
	"supportportal/internal/database"
	"supportportal/internal/handlers"
	applog "supportportal/internal/logger"
	"supportportal/internal/mail"
	"supportportal/internal/platform/loginattempt"
	"supportportal/internal/platform/storage"
	"supportportal/internal/platform/user"
)

func newTracker(cfg *config.Config, scheduler *cron.Cron) (loginattempt.Tracker, error) {
	switch cfg.LoginAttemptBackend {
	case config.LoginAttemptBackendRedis:
		client, err := loginattempt.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return loginattempt.NewRedisTracker(client, cfg.LoginMaxAttempts, cfg.LoginAttemptTTL), nil
	default:
		tracker := loginattempt.NewMemoryTracker(cfg.LoginMaxAttempts, cfg.LoginAttemptTTL, cfg.LoginAttemptCapacity)
		if _, err := tracker.Schedule(scheduler, cfg.LoginAttemptSweep); err != nil {
			return nil, fmt.Errorf("schedule login attempt sweep: %w", err)
		}
		return tracker, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	applog.Init(cfg.LogLevel, !cfg.IsProduction())

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	scheduler := cron.New()

	tracker, err := newTracker(cfg, scheduler)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up login attempt tracker")
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiration)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up token issuer")
	}
	log.Info().Str("issuer", cfg.JWTIssuer).Dur("token_validity", issuer.Validity()).Msg("Token issuer ready")

	avatars := storage.NewAvatarStore(cfg.Storage(), cfg.BaseURL)
	mailer := mail.NewMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunAPIBase)
	users := user.NewService(database.NewUserStore(db, cfg.DatabaseTimeout), tracker, mailer, avatars)

	app := fiber.New(fiber.Config{
		BodyLimit: storage.MaxAvatarSize + 1<<20,
	})

	app.Use(compress.New())
	app.Use(helmet.New())
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New())
	app.Use(healthcheck.New())

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("users", users)
		c.Locals("issuer", issuer)
		c.Locals("avatars", avatars)
		return c.Next()
	})

	handlers.RegisterRoutes(app)

	app.Use(func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	scheduler.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		log.Info().Msg("Shutting down")
		<-scheduler.Stop().Done()
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Failed to shut down server")
		}
	}()

	log.Info().Int("port", cfg.ServerPort).Msg("Starting server")
	if err := app.Listen(fmt.Sprintf(":%d", cfg.ServerPort)); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
