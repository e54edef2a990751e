package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MongoURI      string
	MongoDatabase string
	AmqpURL       string
	AuditDSN      string // MySQL DSN for the job audit store; empty disables auditing

	GoogleMapsAPIKey string
	OpenAIAPIKey     string

	WorkerCount int // 0 = use default per queue
	RetryBudget int // max delivery attempts before dead-lettering
	QueuesFile  string

	// Mongo client settings
	DBMaxPoolSize  uint64
	DBReadTimeout  time.Duration
	DBWriteTimeout time.Duration

	// OpenAI client settings
	OpenAITimeout time.Duration

	// Monitoring and logging settings
	LogLevel          string
	LogFormat         string // "json" or "text"
	LogFile           string
	EnableFileLogging bool

	// Ops HTTP surface (health, metrics, stats, audit)
	OpsPort         string
	HealthCheckPath string
	MetricsPath     string

	// Environment
	Env            string // development, staging, production
	MetricsEnabled bool

	// Prompts templates overrides
	PromptDir string // path to external templates dir; empty = use embedded only

	// AI knobs
	OpenAIModel                 string
	OpenAIEmbeddingModel        string
	EmbeddingDimensions         int
	OpenAITemperature           float64
	OpenAIMaxTokens             int
	OpenAIRequestTimeoutSeconds int
	ConfigReloadIntervalSeconds int

	// Provider search defaults
	SearchMinScore float64
	SearchRadiusKm float64
	SearchLimit    int
}

func Load() *Config {
	workerCount, _ := strconv.Atoi(getEnv("WORKER_COUNT", "0")) // 0 = use default
	retryBudget, _ := strconv.Atoi(getEnv("RETRY_BUDGET", "3"))

	dbMaxPool, _ := strconv.ParseUint(getEnv("DB_MAX_POOL_SIZE", "100"), 10, 64)

	enableFileLogging, _ := strconv.ParseBool(getEnv("ENABLE_FILE_LOGGING", "true"))

	env := strings.ToLower(getEnv("ENV", "development"))
	metricsPath := getEnv("METRICS_PATH", "/metrics")
	metricsDefault := env == "development" || env == "staging"
	metricsEnabled, _ := strconv.ParseBool(getEnv("METRICS_ENABLED", strconv.FormatBool(metricsDefault)))

	// Timeouts
	dbReadTO, _ := time.ParseDuration(getEnv("DB_READ_TIMEOUT", "8s"))
	dbWriteTO, _ := time.ParseDuration(getEnv("DB_WRITE_TIMEOUT", "6s"))

	// OpenAI config
	openAIModel := getEnv("OPENAI_MODEL", "gpt-4o-mini")
	openAIEmbModel := getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small")
	embDims, _ := strconv.Atoi(getEnv("EMBEDDING_DIMENSIONS", "1536"))
	openAITemp, _ := strconv.ParseFloat(getEnv("OPENAI_TEMPERATURE", "0.1"), 64)
	openAIMaxTokens, _ := strconv.Atoi(getEnv("OPENAI_MAX_TOKENS", "400"))
	openAIReqTimeoutSec, _ := strconv.Atoi(getEnv("OPENAI_REQUEST_TIMEOUT_SECONDS", "60"))

	promptDir := getEnv("PROMPT_DIR", "./prompts")
	reloadIntSec, _ := strconv.Atoi(getEnv("CONFIG_RELOAD_INTERVAL_SECONDS", "2"))

	// Search defaults
	searchMinScore, _ := strconv.ParseFloat(getEnv("SEARCH_MIN_SCORE", "0.5"), 64)
	searchRadiusKm, _ := strconv.ParseFloat(getEnv("SEARCH_RADIUS_KM", "50"), 64)
	searchLimit, _ := strconv.Atoi(getEnv("SEARCH_LIMIT", "20"))

	if retryBudget < 1 {
		log.Printf("[Warning] RETRY_BUDGET must be at least 1, got %d; using 1", retryBudget)
		retryBudget = 1
	}

	cfg := &Config{
		MongoURI:         getEnv("MONGO_URI", ""),
		MongoDatabase:    getEnv("MONGO_DATABASE", "marketplace"),
		AmqpURL:          getEnv("AMQP_URL", ""),
		AuditDSN:         getEnv("AUDIT_DSN", ""),
		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		WorkerCount:      workerCount,
		RetryBudget:      retryBudget,
		QueuesFile:       getEnv("QUEUES_FILE", ""),
		DBMaxPoolSize:    dbMaxPool,
		DBReadTimeout:    dbReadTO,
		DBWriteTimeout:   dbWriteTO,
		OpenAITimeout:    time.Duration(openAIReqTimeoutSec) * time.Second,

		// Monitoring and logging settings
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		LogFile:           getEnv("LOG_FILE", "/var/log/service-marketplace/app.log"),
		EnableFileLogging: enableFileLogging,

		// Ops surface
		OpsPort:         getEnv("OPS_PORT", "8081"),
		HealthCheckPath: getEnv("HEALTH_CHECK_PATH", "/health"),
		MetricsPath:     metricsPath,

		Env:            env,
		MetricsEnabled: metricsEnabled,

		PromptDir:                   promptDir,
		OpenAIModel:                 openAIModel,
		OpenAIEmbeddingModel:        openAIEmbModel,
		EmbeddingDimensions:         embDims,
		OpenAITemperature:           openAITemp,
		OpenAIMaxTokens:             openAIMaxTokens,
		OpenAIRequestTimeoutSeconds: openAIReqTimeoutSec,
		ConfigReloadIntervalSeconds: reloadIntSec,

		SearchMinScore: searchMinScore,
		SearchRadiusKm: searchRadiusKm,
		SearchLimit:    searchLimit,
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
