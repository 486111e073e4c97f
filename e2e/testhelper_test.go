package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/reelcut/api/internal/auth"
	"github.com/reelcut/api/internal/handler"
	"github.com/reelcut/api/internal/middleware"
	"github.com/reelcut/api/internal/render"
	"github.com/reelcut/api/internal/service"
	"github.com/reelcut/api/internal/websocket"
	"github.com/reelcut/api/internal/worker"
)

const (
	testJWTSecret = "test-secret-for-e2e"
	testRedisAddr = "localhost:6379"
	testRedisDB   = 15 // use DB 15 for tests to avoid collision
)

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	redis    *redis.Client
	projects *service.ProjectService
}

// setupApp creates a Fiber app wired like main.go, without object storage
// and without a worker, so queued renders stay queued.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	ta, _ := newTestApp(t, true)
	return ta
}

// reopenApp builds a second app over the same redis db without flushing it,
// as a restarted server would see it.
func reopenApp(t *testing.T) *testApp {
	t.Helper()
	ta, _ := newTestApp(t, false)
	return ta
}

// setupWorkerApp additionally runs an asynq worker that renders on backend.
func setupWorkerApp(t *testing.T, backend render.Backend) *testApp {
	t.Helper()
	ta, renderService := newTestApp(t, true)

	redisOpt := asynq.RedisClientOpt{Addr: testRedisAddr, DB: testRedisDB}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues:      map[string]int{service.QueueRender: 1},
		LogLevel:    asynq.WarnLevel,
	})

	hub := websocket.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	renderWorker := worker.NewRenderWorker(renderService, render.NewOrchestrator(backend, nil), hub, nil)
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeRender, renderWorker.ProcessTask)
	if err := srv.Start(mux); err != nil {
		cancel()
		t.Fatalf("failed to start asynq worker: %v", err)
	}
	t.Cleanup(func() {
		srv.Shutdown()
		cancel()
	})

	return ta
}

func newTestApp(t *testing.T, flush bool) (*testApp, *service.RenderService) {
	t.Helper()

	// Redis (localhost, must be running)
	redisClient := redis.NewClient(&redis.Options{
		Addr: testRedisAddr,
		DB:   testRedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		t.Skipf("skipping: redis not reachable at %s: %v", testRedisAddr, err)
	}
	if flush {
		if err := redisClient.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("failed to flush test db: %v", err)
		}
	}
	t.Cleanup(func() { redisClient.Close() })

	redisOpt := asynq.RedisClientOpt{Addr: testRedisAddr, DB: testRedisDB}
	asynqClient := asynq.NewClient(redisOpt)
	inspector := asynq.NewInspector(redisOpt)
	t.Cleanup(func() {
		asynqClient.Close()
		inspector.Close()
	})

	validate := validator.New()
	logger := hclog.NewNullLogger()

	// Services; no storage client, so exports return inline and uploads fail
	projectService := service.NewProjectService(redisClient, 30, logger)
	renderService := service.NewRenderService(redisClient, asynqClient, inspector, projectService, service.RenderServiceOptions{
		Backend:    "stub",
		JobTimeout: time.Minute,
		Logger:     logger,
	})
	exportService := service.NewExportService(projectService, nil)
	uploadService := service.NewUploadService(nil)

	// Handlers
	projectHandler := handler.NewProjectHandler(projectService, validate, 0, logger)
	renderHandler := handler.NewRenderHandler(renderService, validate)
	exportHandler := handler.NewExportHandler(exportService, validate)
	uploadHandler := handler.NewUploadHandler(uploadService, validate)

	// Auth: legacy HMAC only
	authenticator := auth.NewAuthenticator(nil, testJWTSecret)
	authHandler := handler.NewAuthHandler(authenticator)
	authMiddleware := middleware.NewAuthMiddleware(authenticator)
	rateLimiter := middleware.NewRateLimiter(redisClient, logger)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":  true,
				"r2":     false,
				"render": "stub",
				"auth":   true,
			},
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	editLimit := rateLimiter.EditLimit(10000)
	projects := api.Group("/projects")
	projects.Post("/", projectHandler.Create)
	projects.Post("/import", projectHandler.Import)
	projects.Get("/:projectId", projectHandler.Get)
	projects.Get("/:projectId/composition", projectHandler.Composition)
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

	export := projects.Group("/:projectId/export", rateLimiter.ExportLimit(10000))
	export.Get("/edl", exportHandler.EDL)
	export.Post("/snapshot", exportHandler.Snapshot)

	renders := api.Group("/render")
	renders.Post("/start", rateLimiter.RenderLimit(10000), renderHandler.Start)
	renders.Get("/status/:jobId", renderHandler.Status)
	renders.Get("/result/:jobId", renderHandler.Result)
	renders.Get("/active/:projectId", renderHandler.Active)
	renders.Post("/cancel/:jobId", renderHandler.Cancel)

	upload := api.Group("/upload", rateLimiter.UploadLimit(10000))
	upload.Post("/media", uploadHandler.Media)
	upload.Delete("/media/:projectId/:fileName", uploadHandler.DeleteMedia)

	return &testApp{app: app, redis: redisClient, projects: projectService}, renderService
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.IssueLegacyToken(testJWTSecret, "test-user-123", "test@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// mustAuthRequest performs an authenticated request and fails on transport errors.
func mustAuthRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doAuthRequest(t, app, method, path, body)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// decodeJSON parses the response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	body := readBody(t, resp)
	if err := json.Unmarshal([]byte(body), v); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts error.code from an error envelope.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", result)
	}
	code, _ := errObj["code"].(string)
	return code
}

// createProject creates an empty project and returns its id.
func createProject(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := mustAuthRequest(t, app, http.MethodPost, "/api/projects", `{"name": "e2e", "fps": 30}`)
	assertStatus(t, resp, http.StatusCreated)
	result := parseJSON(t, resp)
	id, _ := result["id"].(string)
	if id == "" {
		t.Fatalf("expected project id, got %v", result)
	}
	return id
}

// addVideo appends a video clip spanning [start, end) seconds.
func addVideo(t *testing.T, app *fiber.App, projectID string, start, end float64) {
	t.Helper()
	body := fmt.Sprintf(`{
		"type": "video",
		"src": "https://cdn.example.com/clip.mp4",
		"positionStart": %g,
		"positionEnd": %g,
		"startTime": 0,
		"endTime": %g,
		"playbackSpeed": 1,
		"sourceDuration": 60
	}`, start, end, end-start)
	resp := mustAuthRequest(t, app, http.MethodPost, "/api/projects/"+projectID+"/media", body)
	assertStatus(t, resp, http.StatusCreated)
	resp.Body.Close()
}
