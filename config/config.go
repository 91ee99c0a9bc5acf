package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort        string   `env:"APP_PORT,overwrite,default=8080"`
	JWTSecret      string   `env:"JWT_SECRET,overwrite"`
	CronSecret     string   `env:"CRON_SECRET,overwrite"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,overwrite,default=*"`
	// Public base of this API; OAuth redirect URIs are built from it.
	OAuthRedirectBase string `env:"OAUTH_REDIRECT_BASE_URL,overwrite,default=http://localhost:8080"`
	// Dashboard origin; OAuth callbacks redirect back here.
	FrontendURL        string `env:"FRONTEND_URL,overwrite,default=http://localhost:3000"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE,overwrite,default=60"`
	// Gin framework configuration
	GinMode string `env:"GIN_MODE,overwrite,default=release"`
	GinPath string `env:"GIN_PATH,overwrite,default=logs/go_gin.log"`
	// Database
	DBDriver    string `env:"DB_DRIVER,overwrite,default=mysql"`
	DatabaseURI string `env:"DATABASE_URI,overwrite"`
	DBHost      string `env:"DB_HOST,overwrite,default=127.0.0.1"`
	DBPort      string `env:"DB_PORT,overwrite,default=3306"`
	DBUser      string `env:"DB_USER,overwrite,default=root"`
	DBPassword  string `env:"DB_PASSWORD,overwrite"`
	DBName      string `env:"DB_NAME,overwrite,default=postflow"`
	// Redis for OAuth state
	RedisHost     string `env:"REDIS_HOST,overwrite"`
	RedisPort     int    `env:"REDIS_PORT,overwrite,default=6379"`
	RedisDB       int    `env:"REDIS_DB,overwrite"`
	RedisPassword string `env:"REDIS_PASSWORD,overwrite"`
	// Logging configuration
	LogLevel      string `env:"LOG_LEVEL,overwrite,default=info"`
	LogPath       string `env:"LOG_PATH,overwrite"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB,overwrite,default=100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS,overwrite,default=3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS,overwrite,default=7"`
	LogCompress   bool   `env:"LOG_COMPRESS,overwrite"`
	// Publishing pipeline
	SchedulerSpec      string        `env:"SCHEDULER_SPEC,overwrite"`
	SweepBatchSize     int           `env:"SWEEP_BATCH_SIZE,overwrite,default=100"`
	SweepConcurrency   int           `env:"SWEEP_CONCURRENCY,overwrite,default=1"`
	PublishTimeout     time.Duration `env:"PUBLISH_TIMEOUT,overwrite,default=60s"`
	PublishMaxAttempts int           `env:"PUBLISH_MAX_ATTEMPTS,overwrite,default=3"`
	PublishRetryDelay  time.Duration `env:"PUBLISH_RETRY_DELAY,overwrite,default=2s"`
	// Media storage (Supabase)
	StorageURL    string `env:"SUPABASE_URL,overwrite"`
	StorageKey    string `env:"SUPABASE_KEY,overwrite"`
	StorageBucket string `env:"BUCKET_NAME,overwrite,default=media"`
	// Platform OAuth apps
	InstagramClientID     string `env:"INSTAGRAM_CLIENT_ID,overwrite"`
	InstagramClientSecret string `env:"INSTAGRAM_CLIENT_SECRET,overwrite"`
	FacebookClientID      string `env:"FACEBOOK_CLIENT_ID,overwrite"`
	FacebookClientSecret  string `env:"FACEBOOK_CLIENT_SECRET,overwrite"`
	TwitterClientID       string `env:"TWITTER_CLIENT_ID,overwrite"`
	TwitterClientSecret   string `env:"TWITTER_CLIENT_SECRET,overwrite"`
	LinkedInClientID      string `env:"LINKEDIN_CLIENT_ID,overwrite"`
	LinkedInClientSecret  string `env:"LINKEDIN_CLIENT_SECRET,overwrite"`
	TikTokClientKey       string `env:"TIKTOK_CLIENT_KEY,overwrite"`
	TikTokClientSecret    string `env:"TIKTOK_CLIENT_SECRET,overwrite"`
	YouTubeClientID       string `env:"YOUTUBE_CLIENT_ID,overwrite"`
	YouTubeClientSecret   string `env:"YOUTUBE_CLIENT_SECRET,overwrite"`
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.Mutex
)

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> environment variables -> tag defaults for anything still empty.
func Load() (AppConfig, error) {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg, nil
	}

	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load(".env")

	c, err := loadFrom(filepath.Join("config", "config.json"), envconfig.OsLookuper())
	if err != nil {
		return AppConfig{}, err
	}

	cfg = c
	loaded = true
	return cfg, nil
}

func loadFrom(path string, lookuper envconfig.Lookuper) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return AppConfig{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := envconfig.ProcessWith(context.Background(), &c, lookuper); err != nil {
		return AppConfig{}, fmt.Errorf("parsing env vars: %w", err)
	}
	if err := c.Validate(); err != nil {
		return AppConfig{}, err
	}
	return c, nil
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.Lock()
	ok := loaded
	mu.Unlock()
	if !ok {
		c, err := Load()
		if err != nil {
			panic(err)
		}
		return c
	}
	return cfg
}

// Validate reports missing or inconsistent settings.
func (c AppConfig) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set in environment variables")
	}
	switch strings.ToLower(c.DBDriver) {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.PublishMaxAttempts < 1 {
		return errors.New("PUBLISH_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// StorageConfigured reports whether media uploads can be served.
func (c AppConfig) StorageConfigured() bool {
	return c.StorageURL != "" && c.StorageKey != "" && c.StorageBucket != ""
}

type jsonConfig struct {
	App struct {
		AppPort            string
		JWTSecret          string
		CronSecret         string
		AllowedOrigins     []string
		OAuthRedirectBase  string
		FrontendURL        string
		RateLimitPerMinute int
	} `json:"app"`
	Gin struct {
		Mode    string
		LogPath string
	} `json:"gin"`
	Database struct {
		Driver      string
		DatabaseURI string
		DBHost      string
		DBPort      string
		DBUser      string
		DBPassword  string
		DBName      string
	} `json:"database"`
	Redis struct {
		RedisHost     string
		RedisPort     int
		RedisDB       int
		RedisPassword string
	} `json:"redis"`
	Log struct {
		Level      string
		Path       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	} `json:"log"`
	Scheduler struct {
		Spec               string
		BatchSize          int
		Concurrency        int
		PublishTimeout     string
		PublishMaxAttempts int
		PublishRetryDelay  string
	} `json:"scheduler"`
	Storage struct {
		URL    string
		Key    string
		Bucket string
	} `json:"storage"`
	OAuth map[string]struct {
		ClientID     string
		ClientSecret string
	} `json:"oauth"`
}

// loadJSONConfig reads the grouped JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw jsonConfig
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	out.AppPort = raw.App.AppPort
	out.JWTSecret = raw.App.JWTSecret
	out.CronSecret = raw.App.CronSecret
	out.AllowedOrigins = raw.App.AllowedOrigins
	out.OAuthRedirectBase = raw.App.OAuthRedirectBase
	out.FrontendURL = raw.App.FrontendURL
	out.RateLimitPerMinute = raw.App.RateLimitPerMinute

	out.GinMode = raw.Gin.Mode
	out.GinPath = raw.Gin.LogPath

	out.DBDriver = raw.Database.Driver
	out.DatabaseURI = raw.Database.DatabaseURI
	out.DBHost = raw.Database.DBHost
	out.DBPort = raw.Database.DBPort
	out.DBUser = raw.Database.DBUser
	out.DBPassword = raw.Database.DBPassword
	out.DBName = raw.Database.DBName

	out.RedisHost = raw.Redis.RedisHost
	out.RedisPort = raw.Redis.RedisPort
	out.RedisDB = raw.Redis.RedisDB
	out.RedisPassword = raw.Redis.RedisPassword

	out.LogLevel = raw.Log.Level
	out.LogPath = raw.Log.Path
	out.LogMaxSizeMB = raw.Log.MaxSizeMB
	out.LogMaxBackups = raw.Log.MaxBackups
	out.LogMaxAgeDays = raw.Log.MaxAgeDays
	out.LogCompress = raw.Log.Compress

	out.SchedulerSpec = raw.Scheduler.Spec
	out.SweepBatchSize = raw.Scheduler.BatchSize
	out.SweepConcurrency = raw.Scheduler.Concurrency
	out.PublishMaxAttempts = raw.Scheduler.PublishMaxAttempts
	if out.PublishTimeout, err = parseDuration(raw.Scheduler.PublishTimeout); err != nil {
		return err
	}
	if out.PublishRetryDelay, err = parseDuration(raw.Scheduler.PublishRetryDelay); err != nil {
		return err
	}

	out.StorageURL = raw.Storage.URL
	out.StorageKey = raw.Storage.Key
	out.StorageBucket = raw.Storage.Bucket

	for name, app := range raw.OAuth {
		switch strings.ToLower(name) {
		case "instagram":
			out.InstagramClientID, out.InstagramClientSecret = app.ClientID, app.ClientSecret
		case "facebook":
			out.FacebookClientID, out.FacebookClientSecret = app.ClientID, app.ClientSecret
		case "twitter":
			out.TwitterClientID, out.TwitterClientSecret = app.ClientID, app.ClientSecret
		case "linkedin":
			out.LinkedInClientID, out.LinkedInClientSecret = app.ClientID, app.ClientSecret
		case "tiktok":
			out.TikTokClientKey, out.TikTokClientSecret = app.ClientID, app.ClientSecret
		case "youtube":
			out.YouTubeClientID, out.YouTubeClientSecret = app.ClientID, app.ClientSecret
		}
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
