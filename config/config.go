package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Transcribe TranscribeConfig
	Summary    SummaryConfig
	Upload     UploadConfig
	AWS        AWSConfig
	Database   DatabaseConfig
	Redis      RedisConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// TranscribeConfig holds live transcription session settings.
// WSEndpoint empty means no streaming credentials are configured and every
// session runs on the demo backend.
type TranscribeConfig struct {
	WSEndpoint         string // wss:// endpoint of the streaming STT service
	APIKey             string
	SessionIdleTimeout time.Duration // reaper evicts sessions idle longer than this
	ReaperInterval     time.Duration
	MaxChunkBytes      int64         // per-call audio chunk limit
	PollIdleTimeout    time.Duration // long-poll returns an empty batch after this
	DemoSegmentBytes   int64         // demo backend emits one segment per this many bytes (~2s of audio)
	DialTimeout        time.Duration
}

// SummaryConfig holds OpenAI-compatible summarization settings.
type SummaryConfig struct {
	APIKey  string
	BaseURL string
	Model   string // optional override; empty uses the built-in fallback list
}

// UploadConfig holds audio upload settings.
type UploadConfig struct {
	AudioDir    string
	MaxUploadMB int64
}

// AWSConfig holds AWS credentials and the audio archive bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	AudioBucket          string
	PresignExpireMinutes int
}

// DatabaseConfig holds the optional PostgreSQL visit archive connection.
// Empty URL disables the archive.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds the optional Redis connection for the summary job queue.
// Empty Addr disables the queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "60"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Transcribe: TranscribeConfig{
			WSEndpoint:         getEnv("TRANSCRIBE_WS_URL", ""),
			APIKey:             getEnv("TRANSCRIBE_API_KEY", ""),
			SessionIdleTimeout: time.Duration(getEnvInt("SESSION_IDLE_TIMEOUT_SEC", 120)) * time.Second,
			ReaperInterval:     time.Duration(getEnvInt("REAPER_INTERVAL_SEC", 30)) * time.Second,
			MaxChunkBytes:      int64(getEnvInt("MAX_CHUNK_BYTES", 1<<20)),
			PollIdleTimeout:    time.Duration(getEnvInt("POLL_IDLE_TIMEOUT_SEC", 25)) * time.Second,
			DemoSegmentBytes:   int64(getEnvInt("DEMO_SEGMENT_BYTES", 32*1024)),
			DialTimeout:        time.Duration(getEnvInt("TRANSCRIBE_DIAL_TIMEOUT_SEC", 10)) * time.Second,
		},
		Summary: SummaryConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("OPENAI_MODEL", ""),
		},
		Upload: UploadConfig{
			AudioDir:    getEnv("AUDIO_UPLOAD_DIR", "uploads_audio"),
			MaxUploadMB: int64(getEnvInt("MAX_UPLOAD_MB", 100)),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AudioBucket:          getEnv("AWS_S3_AUDIO_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
	}
	return cfg, nil
}

// StreamingConfigured reports whether a streaming STT endpoint is set up.
// Absence selects the demo backend for every session.
func (c TranscribeConfig) StreamingConfigured() bool {
	return strings.TrimSpace(c.WSEndpoint) != ""
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
