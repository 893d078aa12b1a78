// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendS3    = "s3"
	BackendMinio = "minio"

	DiagramRemote  = "remote"
	DiagramBrowser = "browser"

	CodeAuto    = "auto"
	CodeBrowser = "browser"
	CodeRaster  = "raster"
)

type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	// Object storage
	StorageBackend    string
	Bucket            string
	Region            string
	StorageEndpoint   string // S3 base endpoint override or MinIO host:port
	StorageAccessKey  string
	StorageSecretKey  string
	StorageUseSSL     bool
	StoragePublicBase string // e.g. "http://localhost:9000/media"; empty means virtual-hosted S3 URL

	// Artifact catalog, disabled when MongoURI is empty
	MongoURI      string
	MongoDatabase string

	// Renderers
	CodeRenderer    string
	DiagramRenderer string
	MermaidInkURL   string
	ChromePath      string

	FetchTimeout        time.Duration
	RemoteRenderTimeout time.Duration
	RenderWaitTimeout   time.Duration
	StoreTimeout        time.Duration

	MaxUploadBytes int64
}

// Load reads a .env file when present and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading from environment")
	}

	bucket := getEnv("AWS_BUCKET_NAME", "")
	if bucket == "" {
		bucket = getEnv("BUCKET_NAME", "")
	}

	return &Config{
		Port:     getEnv("PORT", "8001"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", BackendS3)),
		Bucket:            bucket,
		Region:            getEnv("AWS_REGION", ""),
		StorageEndpoint:   getEnv("STORAGE_ENDPOINT", ""),
		StorageAccessKey:  getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey:  getEnv("STORAGE_SECRET_KEY", ""),
		StorageUseSSL:     getBool("STORAGE_USE_SSL", true),
		StoragePublicBase: getEnv("STORAGE_PUBLIC_BASE", ""),

		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "mediastore"),

		CodeRenderer:    strings.ToLower(getEnv("CODE_RENDERER", CodeAuto)),
		DiagramRenderer: strings.ToLower(getEnv("DIAGRAM_RENDERER", DiagramRemote)),
		MermaidInkURL:   getEnv("MERMAID_INK_URL", "https://mermaid.ink"),
		ChromePath:      getEnv("CHROME_PATH", ""),

		FetchTimeout:        getDuration("FETCH_TIMEOUT", 30*time.Second),
		RemoteRenderTimeout: getDuration("REMOTE_RENDER_TIMEOUT", 30*time.Second),
		RenderWaitTimeout:   getDuration("RENDER_WAIT_TIMEOUT", 10*time.Second),
		StoreTimeout:        getDuration("STORE_TIMEOUT", 60*time.Second),

		MaxUploadBytes: getInt64("MAX_UPLOAD_BYTES", 50<<20),
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("AWS_BUCKET_NAME is required")
	}
	switch c.StorageBackend {
	case BackendS3:
		if c.Region == "" {
			return errors.New("AWS_REGION is required")
		}
	case BackendMinio:
		if c.StorageEndpoint == "" {
			return errors.New("STORAGE_ENDPOINT is required for the minio backend")
		}
	default:
		return errors.New("STORAGE_BACKEND must be s3 or minio")
	}
	switch c.DiagramRenderer {
	case DiagramRemote, DiagramBrowser:
	default:
		return errors.New("DIAGRAM_RENDERER must be remote or browser")
	}
	switch c.CodeRenderer {
	case "", CodeAuto, CodeBrowser, CodeRaster:
	default:
		return errors.New("CODE_RENDERER must be auto, browser or raster")
	}
	return nil
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getInt64(key string, fallback int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// getDuration accepts Go durations ("30s") or plain seconds ("30").
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
