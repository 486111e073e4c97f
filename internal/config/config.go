package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	R2        R2Config
	Zitadel   ZitadelConfig
	Gateway   GatewayConfig
	Render    RenderConfig
	Farm      FarmConfig
	Editor    EditorConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	EditPerMin    int
	RenderPerHour int
	ExportPerHour int
	UploadPerHour int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

type GatewayConfig struct {
	Enabled bool
}

// RenderConfig selects and tunes the render backend.
type RenderConfig struct {
	Backend      string // "local" or "remote"
	DefaultFPS   int
	PollInterval time.Duration
	OutputDir    string
	FFmpegPath   string
	Concurrency  int
	JobTimeout   time.Duration
}

// FarmConfig is the remote render service.
type FarmConfig struct {
	BaseURL         string
	APIKey          string
	Region          string
	FunctionTimeout time.Duration
	MemoryMB        int
	SiteName        string
	EntryPoint      string
	CompositionID   string
	Privacy         string
	FramesPerLambda int // 0 keeps the speed preset
	BucketPublicURL string
}

type EditorConfig struct {
	DragCoalesce time.Duration
}

// IsRemote reports whether renders go to the render farm.
func (c RenderConfig) IsRemote() bool {
	return c.Backend == "remote"
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("FARM_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("ratelimit.edit_per_min", "RATELIMIT_EDIT_PER_MIN")
	_ = viper.BindEnv("ratelimit.render_per_hour", "RATELIMIT_RENDER_PER_HOUR")
	_ = viper.BindEnv("ratelimit.export_per_hour", "RATELIMIT_EXPORT_PER_HOUR")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("render.backend", "RENDER_BACKEND")
	_ = viper.BindEnv("render.default_fps", "RENDER_DEFAULT_FPS")
	_ = viper.BindEnv("render.poll_interval", "RENDER_POLL_INTERVAL")
	_ = viper.BindEnv("render.output_dir", "RENDER_OUTPUT_DIR")
	_ = viper.BindEnv("render.ffmpeg_path", "FFMPEG_PATH")
	_ = viper.BindEnv("render.concurrency", "RENDER_CONCURRENCY")
	_ = viper.BindEnv("render.job_timeout", "RENDER_JOB_TIMEOUT")
	_ = viper.BindEnv("farm.base_url", "FARM_BASE_URL")
	_ = viper.BindEnv("farm.api_key", "FARM_API_KEY")
	_ = viper.BindEnv("farm.region", "FARM_REGION")
	_ = viper.BindEnv("farm.function_timeout", "FARM_FUNCTION_TIMEOUT")
	_ = viper.BindEnv("farm.memory_mb", "FARM_MEMORY_MB")
	_ = viper.BindEnv("farm.site_name", "FARM_SITE_NAME")
	_ = viper.BindEnv("farm.entry_point", "FARM_ENTRY_POINT")
	_ = viper.BindEnv("farm.composition_id", "FARM_COMPOSITION_ID")
	_ = viper.BindEnv("farm.privacy", "FARM_PRIVACY")
	_ = viper.BindEnv("farm.frames_per_lambda", "FARM_FRAMES_PER_LAMBDA")
	_ = viper.BindEnv("farm.bucket_public_url", "FARM_BUCKET_PUBLIC_URL")
	_ = viper.BindEnv("editor.drag_coalesce", "EDITOR_DRAG_COALESCE")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.edit_per_min", 600)
	viper.SetDefault("ratelimit.render_per_hour", 10)
	viper.SetDefault("ratelimit.export_per_hour", 30)
	viper.SetDefault("ratelimit.upload_per_hour", 100)

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Render defaults
	viper.SetDefault("render.backend", "local")
	viper.SetDefault("render.default_fps", 30)
	viper.SetDefault("render.poll_interval", "2s")
	viper.SetDefault("render.output_dir", os.TempDir())
	viper.SetDefault("render.ffmpeg_path", "ffmpeg")
	viper.SetDefault("render.concurrency", 2)
	viper.SetDefault("render.job_timeout", "30m")

	// Render farm defaults
	viper.SetDefault("farm.region", "us-east-1")
	viper.SetDefault("farm.function_timeout", "240s")
	viper.SetDefault("farm.memory_mb", 2048)
	viper.SetDefault("farm.site_name", "reelcut-editor")
	viper.SetDefault("farm.entry_point", "src/index.ts")
	viper.SetDefault("farm.composition_id", "Editor")
	viper.SetDefault("farm.privacy", "public")
	viper.SetDefault("farm.frames_per_lambda", 0)

	// Editor defaults
	viper.SetDefault("editor.drag_coalesce", "50ms")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			EditPerMin:    viper.GetInt("ratelimit.edit_per_min"),
			RenderPerHour: viper.GetInt("ratelimit.render_per_hour"),
			ExportPerHour: viper.GetInt("ratelimit.export_per_hour"),
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Zitadel: ZitadelConfig{
			Domain:   viper.GetString("zitadel.domain"),
			ClientID: viper.GetString("zitadel.client_id"),
			Issuer:   viper.GetString("zitadel.issuer"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
		Render: RenderConfig{
			Backend:      strings.ToLower(viper.GetString("render.backend")),
			DefaultFPS:   viper.GetInt("render.default_fps"),
			PollInterval: viper.GetDuration("render.poll_interval"),
			OutputDir:    viper.GetString("render.output_dir"),
			FFmpegPath:   viper.GetString("render.ffmpeg_path"),
			Concurrency:  viper.GetInt("render.concurrency"),
			JobTimeout:   viper.GetDuration("render.job_timeout"),
		},
		Farm: FarmConfig{
			BaseURL:         viper.GetString("farm.base_url"),
			APIKey:          viper.GetString("farm.api_key"),
			Region:          viper.GetString("farm.region"),
			FunctionTimeout: viper.GetDuration("farm.function_timeout"),
			MemoryMB:        viper.GetInt("farm.memory_mb"),
			SiteName:        viper.GetString("farm.site_name"),
			EntryPoint:      viper.GetString("farm.entry_point"),
			CompositionID:   viper.GetString("farm.composition_id"),
			Privacy:         viper.GetString("farm.privacy"),
			FramesPerLambda: viper.GetInt("farm.frames_per_lambda"),
			BucketPublicURL: viper.GetString("farm.bucket_public_url"),
		},
		Editor: EditorConfig{
			DragCoalesce: viper.GetDuration("editor.drag_coalesce"),
		},
	}

	return cfg, nil
}
