package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds worker configuration loaded from environment.
type Config struct {
	Database    DatabaseConfig
	Storage     StorageConfig
	FFmpeg      FFmpegConfig
	Compression CompressionConfig
	Redis       RedisConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/hirexpert?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// StorageConfig holds S3 credentials and the raw media bucket name.
type StorageConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RawBucket       string
}

// FFmpegConfig holds the transcoding binary locations. Both are resolved
// with LookPath at startup; a missing binary is a fatal error.
type FFmpegConfig struct {
	FFmpegPath  string
	FFprobePath string
}

// CompressionConfig holds the compression pipeline settings.
type CompressionConfig struct {
	RetentionFraction   float64       // fraction of the original bitrate to keep
	BatchLimit          int           // max answers per tick
	PollInterval        time.Duration // timer period between passes
	MinBitrateKbps      int           // floor clamp for the computed target
	FallbackBitrateKbps int           // used when probing fails
	AudioBitrateKbps    int
	ScratchDir          string // local dir for in-flight media files
	DownloadTimeout     time.Duration
	UploadTimeout       time.Duration
	ProbeTimeout        time.Duration
	TranscodeTimeout    time.Duration
}

// RedisConfig holds Redis connection settings for the run-status heartbeat.
// Leave Addr empty to disable the heartbeat.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	retention := getEnvFloat("RETENTION_FRACTION", 0.40)
	if retention <= 0 || retention > 1 {
		return nil, fmt.Errorf("RETENTION_FRACTION must be in (0, 1], got %v", retention)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "hirexpert"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			RawBucket:       getEnv("AWS_S3_RAW_BUCKET", "raw"),
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
			FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),
		},
		Compression: CompressionConfig{
			RetentionFraction:   retention,
			BatchLimit:          getEnvInt("BATCH_LIMIT", 30),
			PollInterval:        time.Duration(getEnvInt("POLL_INTERVAL_MS", 20000)) * time.Millisecond,
			MinBitrateKbps:      getEnvInt("MIN_BITRATE_KBPS", 300),
			FallbackBitrateKbps: getEnvInt("FALLBACK_BITRATE_KBPS", 2000),
			AudioBitrateKbps:    getEnvInt("AUDIO_BITRATE_KBPS", 64),
			ScratchDir:          getEnv("SCRATCH_DIR", "./temp"),
			DownloadTimeout:     time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SEC", 120)) * time.Second,
			UploadTimeout:       time.Duration(getEnvInt("UPLOAD_TIMEOUT_SEC", 120)) * time.Second,
			ProbeTimeout:        time.Duration(getEnvInt("PROBE_TIMEOUT_SEC", 30)) * time.Second,
			TranscodeTimeout:    time.Duration(getEnvInt("TRANSCODE_TIMEOUT_SEC", 600)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
