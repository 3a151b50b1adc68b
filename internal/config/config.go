package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	Server  ServerConfig
	Model   ModelConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            string
	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ModelConfig holds model artifact locations and loader settings.
type ModelConfig struct {
	ModelPath              string // full model, ONNX
	OpenCVModelPath        string // full model, TF frozen graph (gocv builds only)
	BackbonePath           string // trained backbone, ONNX
	HeadWeightsPath        string // head weights, safetensors
	PretrainedBackbonePath string // generic ImageNet backbone, last resort
	RuntimeLibPath         string
	IntraOpThreads         int
	SmokeTest              bool
	SmokeSeed              uint64
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
}

// Load reads an optional .env file, then environment variables with defaults.
func Load() Config {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	return Config{
		Server: ServerConfig{
			Port:            getenv("PORT", "8000"),
			MaxUploadBytes:  getenvInt64("MAX_UPLOAD_BYTES", 10<<20),
			ReadTimeout:     getenvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getenvDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getenvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Model: ModelConfig{
			ModelPath:              getenv("MALARIA_MODEL_PATH", "models/malaria_mobilenetv2.onnx"),
			OpenCVModelPath:        os.Getenv("MALARIA_OPENCV_MODEL_PATH"),
			BackbonePath:           getenv("MALARIA_BACKBONE_PATH", "models/mobilenetv2_backbone.onnx"),
			HeadWeightsPath:        getenv("MALARIA_HEAD_WEIGHTS_PATH", "models/malaria_head.safetensors"),
			PretrainedBackbonePath: os.Getenv("MALARIA_PRETRAINED_BACKBONE_PATH"),
			RuntimeLibPath:         getenv("ORT_LIB_PATH", "models/libonnxruntime.so"),
			IntraOpThreads:         getenvInt("ORT_INTRA_OP_THREADS", 4),
			SmokeTest:              getenvBool("MALARIA_SMOKE_TEST", true),
			SmokeSeed:              uint64(getenvInt64("MALARIA_SMOKE_SEED", 42)),
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getenvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
