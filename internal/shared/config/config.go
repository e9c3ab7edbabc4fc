package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	DatabaseURL     string
	RedisURL        string
	CORSAllowOrigin []string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	LLMProvider         string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAITimeout       time.Duration
	VisionPrimaryModel  string
	VisionFallbackModel string
	VisionMaxTokens     int
	VisionTemperature   float64

	QueueBackend    string
	SQSQueueURL     string
	LmstfyHost      string
	LmstfyPort      int
	LmstfyNamespace string
	LmstfyToken     string
	LmstfyQueue     string

	WorkerConcurrency       int
	WorkerVisibilityTimeout time.Duration
	WorkerShutdownTimeout   time.Duration

	StatusChannel  string
	RateLimitRPS   float64
	RateLimitBurst int
}

var defaults = map[string]any{
	"ENV":                               "dev",
	"PORT":                              "8080",
	"CORS_ALLOW_ORIGINS":                "http://localhost:5173",
	"OBJECT_STORE":                      "local",
	"LOCAL_STORE_DIR":                   "./data",
	"LLM_PROVIDER":                      "openai",
	"OPENAI_BASE_URL":                   "https://api.openai.com/v1/",
	"OPENAI_TIMEOUT_SECONDS":            60,
	"VISION_PRIMARY_MODEL":              "gpt-4o-mini",
	"VISION_FALLBACK_MODEL":             "gpt-4o",
	"VISION_MAX_TOKENS":                 400,
	"VISION_TEMPERATURE":                0.3,
	"QUEUE_BACKEND":                     "",
	"LMSTFY_PORT":                       7777,
	"LMSTFY_QUEUE":                      "skin-consultations",
	"WORKER_CONCURRENCY":                5,
	"WORKER_VISIBILITY_TIMEOUT_SECONDS": 300,
	"WORKER_SHUTDOWN_TIMEOUT_SECONDS":   30,
	"STATUS_CHANNEL":                    "consultations:status",
	"RATE_LIMIT_RPS":                    2.0,
	"RATE_LIMIT_BURST":                  10,
}

var envOnly = []string{
	"DATABASE_URL", "REDIS_URL", "AWS_REGION", "S3_BUCKET", "S3_PREFIX", "SSE_KMS_KEY_ID",
	"OPENAI_API_KEY", "SQS_QUEUE_URL", "LMSTFY_HOST", "LMSTFY_NAMESPACE", "LMSTFY_TOKEN",
}

// Load reads configuration from .env files, the environment and an optional
// YAML file named by CONFIG_FILE.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	for _, k := range envOnly {
		_ = v.BindEnv(k)
	}
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			log.Printf("config file %s not loaded: %v", path, err)
		}
	}
	return v
}

// FromViper builds a Config from an already-populated viper instance.
func FromViper(v *viper.Viper) Config {
	env := normalizeEnv(v.GetString("ENV"))
	dbURL := v.GetString("DATABASE_URL")
	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Env:             env,
		Port:            v.GetString("PORT"),
		DatabaseURL:     dbURL,
		RedisURL:        v.GetString("REDIS_URL"),
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),

		ObjectStoreType: normalizeStoreType(v.GetString("OBJECT_STORE")),
		LocalStoreDir:   v.GetString("LOCAL_STORE_DIR"),
		AWSRegion:       v.GetString("AWS_REGION"),
		S3Bucket:        v.GetString("S3_BUCKET"),
		S3Prefix:        v.GetString("S3_PREFIX"),
		SSEKMSKeyID:     v.GetString("SSE_KMS_KEY_ID"),

		LLMProvider:         strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER"))),
		OpenAIAPIKey:        v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:       v.GetString("OPENAI_BASE_URL"),
		OpenAITimeout:       seconds(v.GetInt("OPENAI_TIMEOUT_SECONDS"), 60),
		VisionPrimaryModel:  v.GetString("VISION_PRIMARY_MODEL"),
		VisionFallbackModel: v.GetString("VISION_FALLBACK_MODEL"),
		VisionMaxTokens:     positive(v.GetInt("VISION_MAX_TOKENS"), 400),
		VisionTemperature:   v.GetFloat64("VISION_TEMPERATURE"),

		QueueBackend:    normalizeQueueBackend(v.GetString("QUEUE_BACKEND"), v.GetString("SQS_QUEUE_URL")),
		SQSQueueURL:     v.GetString("SQS_QUEUE_URL"),
		LmstfyHost:      v.GetString("LMSTFY_HOST"),
		LmstfyPort:      v.GetInt("LMSTFY_PORT"),
		LmstfyNamespace: v.GetString("LMSTFY_NAMESPACE"),
		LmstfyToken:     v.GetString("LMSTFY_TOKEN"),
		LmstfyQueue:     v.GetString("LMSTFY_QUEUE"),

		WorkerConcurrency:       positive(v.GetInt("WORKER_CONCURRENCY"), 5),
		WorkerVisibilityTimeout: seconds(v.GetInt("WORKER_VISIBILITY_TIMEOUT_SECONDS"), 300),
		WorkerShutdownTimeout:   seconds(v.GetInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS"), 30),

		StatusChannel:  v.GetString("STATUS_CHANNEL"),
		RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
	}
}

func seconds(n, def int) time.Duration {
	return time.Duration(positive(n, def)) * time.Second
}

func positive(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeQueueBackend(raw, sqsURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	case "lmstfy":
		return "lmstfy"
	case "none", "inprocess", "in-process":
		return ""
	}
	if strings.TrimSpace(sqsURL) != "" {
		return "sqs"
	}
	return ""
}
