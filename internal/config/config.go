// Package config loads engine configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage modes.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Config holds all configuration for the story engine.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	OpenAI   OpenAIConfig
	Eleven   ElevenConfig
	Pipeline PipelineConfig
	Frontend FrontendConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	// Mode selects the artifact-store backend: "minio" or "local".
	Mode  string
	Local LocalStorageConfig
	Minio MinioConfig
}

type LocalStorageConfig struct {
	Dir string
	// BaseURL prefixes returned URLs; origin-relative by default.
	BaseURL string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the externally reachable base for stored objects.
	PublicURL string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// TextModel serves completions up to the token ceiling;
	// LongContextModel substitutes when a request exceeds it.
	TextModel        string
	LongContextModel string
	ImageModel       string
	Timeout          time.Duration
}

type ElevenConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type PipelineConfig struct {
	// SpeechConcurrency bounds in-flight speech calls within one audio stage.
	SpeechConcurrency int
	// LengthTokens maps length codes to max_tokens for the text call.
	LengthTokens map[string]int
	// DefaultMaxTokens applies to unknown length codes.
	DefaultMaxTokens int
	// WorkerConcurrency sizes the pipeline worker pool.
	WorkerConcurrency int
	// WatermarkText is overlaid on covers for creator-plan owners.
	WatermarkText string
	// CatalogFile optionally overlays the built-in catalogue.
	CatalogFile string
}

type FrontendConfig struct {
	BaseURL string
}

// Load reads configuration from environment variables and returns a
// validated Config. Returns an error with a descriptive message if any
// required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("ENGINE_PORT", 8080),
			Env:  envString("ENGINE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			Mode: envString("STORAGE_MODE", StorageLocal),
			Local: LocalStorageConfig{
				Dir:     envString("STORAGE_LOCAL_DIR", "data/media"),
				BaseURL: envString("STORAGE_LOCAL_BASE_URL", "/media"),
			},
			Minio: MinioConfig{
				Endpoint:  os.Getenv("MINIO_ENDPOINT"),
				AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
				SecretKey: os.Getenv("MINIO_SECRET_KEY"),
				Bucket:    envString("MINIO_BUCKET", "stories"),
				UseSSL:    envBool("MINIO_USE_SSL", false),
				PublicURL: os.Getenv("MINIO_PUBLIC_URL"),
			},
		},
		OpenAI: OpenAIConfig{
			APIKey:           os.Getenv("OPENAI_API_KEY"),
			BaseURL:          envString("OPENAI_BASE_URL", "https://api.openai.com"),
			TextModel:        envString("OPENAI_TEXT_MODEL", "gpt-4o-mini"),
			LongContextModel: envString("OPENAI_LONG_CONTEXT_MODEL", "gpt-4o"),
			ImageModel:       envString("OPENAI_IMAGE_MODEL", "dall-e-3"),
			Timeout:          envDuration("OPENAI_TIMEOUT", 120*time.Second),
		},
		Eleven: ElevenConfig{
			APIKey:  os.Getenv("ELEVEN_API_KEY"),
			BaseURL: envString("ELEVEN_BASE_URL", "https://api.elevenlabs.io"),
			Model:   envString("ELEVEN_MODEL", "eleven_multilingual_v2"),
			Timeout: envDuration("ELEVEN_TIMEOUT", 120*time.Second),
		},
		Pipeline: PipelineConfig{
			SpeechConcurrency: envInt("PIPELINE_SPEECH_CONCURRENCY", 2),
			LengthTokens: map[string]int{
				"short":  envInt("PIPELINE_TOKENS_SHORT", 100),
				"medium": envInt("PIPELINE_TOKENS_MEDIUM", 300),
				"long":   envInt("PIPELINE_TOKENS_LONG", 500),
			},
			DefaultMaxTokens:  envInt("PIPELINE_TOKENS_DEFAULT", 4000),
			WorkerConcurrency: envInt("PIPELINE_WORKER_CONCURRENCY", 10),
			WatermarkText:     envString("PIPELINE_WATERMARK_TEXT", "tellatale"),
			CatalogFile:       os.Getenv("PIPELINE_CATALOG_FILE"),
		},
		Frontend: FrontendConfig{
			BaseURL: envString("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	switch c.Storage.Mode {
	case StorageLocal:
	case StorageMinio:
		if c.Storage.Minio.Endpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required when STORAGE_MODE is minio")
		}
		if c.Storage.Minio.AccessKey == "" || c.Storage.Minio.SecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when STORAGE_MODE is minio")
		}
	default:
		return fmt.Errorf("STORAGE_MODE must be local or minio; got %q", c.Storage.Mode)
	}

	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if !strings.HasPrefix(c.OpenAI.BaseURL, "http://") && !strings.HasPrefix(c.OpenAI.BaseURL, "https://") {
		return fmt.Errorf("OPENAI_BASE_URL must start with http:// or https://, got %q", c.OpenAI.BaseURL)
	}
	if c.Eleven.APIKey == "" {
		return fmt.Errorf("ELEVEN_API_KEY is required")
	}

	if c.Pipeline.SpeechConcurrency < 1 {
		return fmt.Errorf("PIPELINE_SPEECH_CONCURRENCY must be at least 1")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
