package bootstrap

import (
	"strings"

	"bizops_server/adapter/in/http"
	"bizops_server/config"
	"bizops_server/infra/middleware"
	"bizops_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// NewAPI builds the fiber app with the full middleware chain and routes.
func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	logLevel := logger.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = logger.LevelDebug
	}
	logger.Init(logger.Config{
		Level:   logLevel,
		Service: "bizops-api",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             5 * 1024 * 1024,
		ServerHeader:          "",
		DisableDefaultDate:    true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders: "X-Request-ID",
		MaxAge:        86400,
	}))

	// Health check (no auth required)
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis, deps.Metrics)
	healthHandler.Register(app)

	// API routes behind service auth
	api := app.Group("/api/v1")
	api.Use(middleware.ServiceAuth(cfg.JWTSecret))

	http.NewProcessorHandler(deps.ClassifyService, cfg.BatchSize).RegisterRoutes(api)
	http.NewOverrideHandler(deps.OverrideService).RegisterRoutes(api)
	http.NewSyncHandler(deps.SyncService).RegisterRoutes(api)
	http.NewRemediationHandler(deps.RemediationService).RegisterRoutes(api)
	http.NewWorkItemHandler(deps.WorkItemService).RegisterRoutes(api)
	http.NewRetainerHandler(deps.RetainerService).RegisterRoutes(api)
	http.NewNotifyHandler(deps.Notifier, deps.AuditRepo).RegisterRoutes(api)
	http.NewMailboxHandler(deps.Mailbox, deps.BodyArchive).RegisterRoutes(api)

	logger.Info("API routes registered")

	return app, cleanup, nil
}
