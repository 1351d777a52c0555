package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort            string
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Directories
	TempDir   string // per-job scratch directories are created under this root
	OutputDir string // finished videos and sidecar files, served by the download endpoint

	// Output retention
	RetentionHours float64 // output files older than this are swept (0 = no sweeping)

	// Database (optional — job history persistence)
	DatabaseURL string

	// Redis (optional — async scheduled jobs)
	RedisURL string

	// Worker
	WorkerEnabled     bool
	MaxConcurrentJobs int

	// Server-side collaborator keys. The dashboard may also send keys per
	// request; request keys take precedence over these.
	OpenAIKey     string
	GeminiKey     string
	ElevenLabsKey string

	// Audio
	BackgroundMusicPath string // Path to background music file (empty = no music)
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:             getEnv("API_PORT", "3001"),
		BackendAPIKey:       getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", ""),
		TempDir:             getEnv("TEMP_DIR", "temp"),
		OutputDir:           getEnv("OUTPUT_DIR", "output"),
		RetentionHours:      getEnvFloat("OUTPUT_RETENTION_HOURS", 24),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		WorkerEnabled:       getEnvBool("WORKER_ENABLED", true),
		MaxConcurrentJobs:   getEnvInt("MAX_CONCURRENT_JOBS", 2),
		OpenAIKey:           getEnv("OPENAI_API_KEY", ""),
		GeminiKey:           getEnv("GEMINI_API_KEY", ""),
		ElevenLabsKey:       getEnv("ELEVENLABS_API_KEY", ""),
		BackgroundMusicPath: getEnv("BACKGROUND_MUSIC_PATH", "assets/music/music.mp3"),
	}

	// Scratch and output roots must be usable before any job runs
	for _, dir := range []string{cfg.TempDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	abs, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}
	cfg.OutputDir = abs

	abs, err = filepath.Abs(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve temp dir: %w", err)
	}
	cfg.TempDir = abs

	if cfg.RetentionHours < 0 {
		return nil, fmt.Errorf("OUTPUT_RETENTION_HOURS must not be negative")
	}

	// Worker needs a queue to consume from
	if cfg.WorkerEnabled && cfg.RedisURL == "" {
		cfg.WorkerEnabled = false
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
