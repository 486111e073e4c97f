package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hashicorp/go-hclog"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/reelcut/api/internal/auth"
	"github.com/reelcut/api/internal/client"
	"github.com/reelcut/api/internal/config"
	"github.com/reelcut/api/internal/handler"
	"github.com/reelcut/api/internal/middleware"
	"github.com/reelcut/api/internal/render"
	"github.com/reelcut/api/internal/service"
	ws "github.com/reelcut/api/internal/websocket"
	"github.com/reelcut/api/internal/worker"
	"github.com/reelcut/api/pkg/response"
)

// @title          Reelcut API
// @version        1.0
// @description    Backend API for Reelcut, a browser video editor: timeline edits, playback sessions and renders.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	cfg, err := config.Load()
	if err != nil {
		hclog.Default().Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available", "addr", cfg.Redis.Addr, "error", err)
	}

	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	validate := validator.New()

	hub := ws.NewHub(log.Named("hub"))
	go hub.Run(ctx)

	// Object storage is optional; local renders then stay on disk
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Warn("R2 client not initialized", "error", err)
		}
	} else {
		log.Info("R2 storage not configured")
	}
	var storage client.StorageClient
	if r2Client != nil {
		storage = r2Client
	}

	var tokenVerifier auth.TokenVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(ctx, &cfg.Zitadel)
		if err != nil {
			log.Warn("JWKS verifier not initialized", "error", err)
		} else {
			defer jwksVerifier.Close()
			tokenVerifier = jwksVerifier
		}
	}
	authenticator := auth.NewAuthenticator(tokenVerifier, cfg.JWT.Secret)

	backend := render.NewBackend(cfg, storage, log.Named("render"))
	orchestrator := render.NewOrchestrator(backend, log.Named("render"))
	log.Info("render backend selected", "backend", orchestrator.BackendName())

	projectService := service.NewProjectService(redisClient, cfg.Render.DefaultFPS, log.Named("projects"))
	renderService := service.NewRenderService(redisClient, asynqClient, inspector, projectService, service.RenderServiceOptions{
		Backend:    backend.Name(),
		JobTimeout: cfg.Render.JobTimeout,
		Logger:     log.Named("jobs"),
	})
	exportService := service.NewExportService(projectService, storage)
	uploadService := service.NewUploadService(storage)

	projectHandler := handler.NewProjectHandler(projectService, validate, cfg.Editor.DragCoalesce, log.Named("session"))
	renderHandler := handler.NewRenderHandler(renderService, validate)
	exportHandler := handler.NewExportHandler(exportService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService, validate)
	authHandler := handler.NewAuthHandler(authenticator)

	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: ForwardAuth sets X-User-* headers
		log.Info("gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(authenticator).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient, log.Named("ratelimit"))

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body} ${reqHeaders}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":  redisClient.Ping(c.UserContext()).Err() == nil,
				"r2":     client.Configured(storage),
				"render": backend.Name(),
				"auth":   authenticator.Configured() || cfg.Gateway.Enabled,
			},
		})
	})

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", apiAuthMiddleware)

	projects := api.Group("/projects")
	projects.Post("/", projectHandler.Create)
	projects.Post("/import", projectHandler.Import)
	projects.Get("/:projectId", projectHandler.Get)
	projects.Get("/:projectId/composition", projectHandler.Composition)

	editLimit := rateLimiter.EditLimit(cfg.RateLimit.EditPerMin)
	projects.Patch("/:projectId", editLimit, projectHandler.Update)
	projects.Post("/:projectId/media", editLimit, projectHandler.AddMedia)
	projects.Post("/:projectId/texts", editLimit, projectHandler.AddText)
	projects.Patch("/:projectId/media/:elementId", editLimit, projectHandler.UpdateMedia)
	projects.Patch("/:projectId/texts/:elementId", editLimit, projectHandler.UpdateText)
	projects.Delete("/:projectId/elements/:elementId", editLimit, projectHandler.DeleteElement)
	projects.Post("/:projectId/split", editLimit, projectHandler.Split)
	projects.Post("/:projectId/duplicate", editLimit, projectHandler.Duplicate)
	projects.Post("/:projectId/drag", editLimit, projectHandler.Drag)
	projects.Post("/:projectId/resize", editLimit, projectHandler.Resize)

	export := projects.Group("/:projectId/export", rateLimiter.ExportLimit(cfg.RateLimit.ExportPerHour))
	export.Get("/edl", exportHandler.EDL)
	export.Post("/snapshot", exportHandler.Snapshot)

	renders := api.Group("/render")
	renders.Post("/start", rateLimiter.RenderLimit(cfg.RateLimit.RenderPerHour), renderHandler.Start)
	renders.Get("/status/:jobId", renderHandler.Status)
	renders.Get("/result/:jobId", renderHandler.Result)
	renders.Get("/active/:projectId", renderHandler.Active)
	renders.Post("/cancel/:jobId", renderHandler.Cancel)

	upload := api.Group("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour))
	upload.Post("/media", uploadHandler.Media)
	upload.Delete("/media/:projectId/:fileName", uploadHandler.DeleteMedia)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, apiAuthMiddleware)

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))
	app.Get("/ws/projects/:projectId/session", websocket.New(projectHandler.Session))

	workerServer := newWorkerServer(cfg, redisOpt, log)
	renderWorker := worker.NewRenderWorker(renderService, orchestrator, hub, log.Named("worker"))
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeRender, renderWorker.ProcessTask)
	if err := workerServer.Start(mux); err != nil {
		log.Error("asynq worker failed to start", "error", err)
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		workerServer.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info("server starting", "addr", addr, "env", cfg.Server.Env)
	if err := app.Listen(addr); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "reelcut",
		Level:      hclog.LevelFromString(cfg.Server.LogLevel),
		JSONFormat: cfg.Server.Env == "production",
	})
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, log hclog.Logger) *asynq.Server {
	concurrency := cfg.Render.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			service.QueueRender: 1,
		},
		Logger:   worker.NewAsynqLogger(log.Named("asynq")),
		LogLevel: worker.AsynqLevel(cfg.Server.LogLevel),
	})
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    response.CodeServiceError,
			"message": message,
		},
	})
}
