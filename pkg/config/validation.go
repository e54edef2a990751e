package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	errs "service-marketplace/pkg/errors"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error for field '%s' with value '%s': %s", e.Field, e.Value, e.Message)
}

// ConfigValidator handles configuration validation
type ConfigValidator struct {
	errors []ValidationError
}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ValidationError, 0),
	}
}

// AddError adds a validation error
func (cv *ConfigValidator) AddError(field, value, message string) {
	cv.errors = append(cv.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors
func (cv *ConfigValidator) HasErrors() bool {
	return len(cv.errors) > 0
}

// GetErrors returns all validation errors
func (cv *ConfigValidator) GetErrors() []ValidationError {
	return cv.errors
}

// GetErrorsAsString returns all validation errors as a formatted string
func (cv *ConfigValidator) GetErrorsAsString() string {
	var errorStrings []string
	for _, err := range cv.errors {
		errorStrings = append(errorStrings, err.Error())
	}
	return strings.Join(errorStrings, "\n")
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	validator := NewConfigValidator()

	c.validateRequired(validator)
	c.validateFormats(validator)
	c.validateRanges(validator)
	c.validateEnvironment(validator)

	if validator.HasErrors() {
		return errs.NewValidation("config.Validate", fmt.Sprintf("configuration validation failed:\n%s", validator.GetErrorsAsString()), nil)
	}

	return nil
}

// validateRequired checks required configuration fields
func (c *Config) validateRequired(validator *ConfigValidator) {
	if c.MongoURI == "" {
		validator.AddError("MONGO_URI", c.MongoURI, "MongoDB URI is required")
	}

	if c.AmqpURL == "" {
		validator.AddError("AMQP_URL", c.AmqpURL, "AMQP broker URL is required")
	}

	if c.OpenAIAPIKey == "" {
		validator.AddError("OPENAI_API_KEY", c.OpenAIAPIKey, "OpenAI API key is required")
	}

	if c.OpsPort == "" {
		validator.AddError("OPS_PORT", c.OpsPort, "ops port is required")
	}
}

// validateFormats checks format validity of configuration values
func (c *Config) validateFormats(validator *ConfigValidator) {
	if c.MongoURI != "" && !strings.HasPrefix(c.MongoURI, "mongodb://") && !strings.HasPrefix(c.MongoURI, "mongodb+srv://") {
		validator.AddError("MONGO_URI", c.MongoURI, "must start with mongodb:// or mongodb+srv://")
	}

	if c.AmqpURL != "" && !strings.HasPrefix(c.AmqpURL, "amqp://") && !strings.HasPrefix(c.AmqpURL, "amqps://") {
		validator.AddError("AMQP_URL", c.AmqpURL, "must start with amqp:// or amqps://")
	}

	if c.OpsPort != "" {
		if port, err := strconv.Atoi(c.OpsPort); err != nil || port < 1 || port > 65535 {
			validator.AddError("OPS_PORT", c.OpsPort, "invalid port number (must be 1-65535)")
		}
	}

	validLogLevels := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	if c.LogLevel != "" && !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		validator.AddError("LOG_LEVEL", c.LogLevel, "invalid log level (must be one of: trace, debug, info, warn, error, fatal)")
	}

	if c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "text" {
		validator.AddError("LOG_FORMAT", c.LogFormat, "invalid log format (must be 'json' or 'text')")
	}
}

// validateRanges checks value ranges
func (c *Config) validateRanges(validator *ConfigValidator) {
	if c.WorkerCount < 0 || c.WorkerCount > 100 {
		validator.AddError("WORKER_COUNT", strconv.Itoa(c.WorkerCount), "worker count must be between 0 and 100")
	}

	if c.RetryBudget < 1 || c.RetryBudget > 20 {
		validator.AddError("RETRY_BUDGET", strconv.Itoa(c.RetryBudget), "retry budget must be between 1 and 20")
	}

	if c.DBMaxPoolSize < 1 || c.DBMaxPoolSize > 1000 {
		validator.AddError("DB_MAX_POOL_SIZE", strconv.FormatUint(c.DBMaxPoolSize, 10), "max pool size must be between 1 and 1000")
	}

	if c.EmbeddingDimensions < 1 || c.EmbeddingDimensions > 4096 {
		validator.AddError("EMBEDDING_DIMENSIONS", strconv.Itoa(c.EmbeddingDimensions), "embedding dimensions must be between 1 and 4096")
	}

	if c.SearchMinScore < 0 || c.SearchMinScore > 1 {
		validator.AddError("SEARCH_MIN_SCORE", strconv.FormatFloat(c.SearchMinScore, 'g', -1, 64), "min score must be between 0 and 1")
	}

	if c.SearchLimit < 1 || c.SearchLimit > 200 {
		validator.AddError("SEARCH_LIMIT", strconv.Itoa(c.SearchLimit), "search limit must be between 1 and 200")
	}
}

// validateEnvironment performs environment-specific validation
func (c *Config) validateEnvironment(validator *ConfigValidator) {
	// Check if log directory is writable if file logging is enabled
	if c.EnableFileLogging && c.LogFile != "" {
		if err := checkDirectoryWritable(c.LogFile); err != nil {
			validator.AddError("LOG_FILE", c.LogFile, fmt.Sprintf("log directory is not writable: %v", err))
		}
	}

	if c.QueuesFile != "" {
		if _, err := os.Stat(c.QueuesFile); err != nil {
			validator.AddError("QUEUES_FILE", c.QueuesFile, fmt.Sprintf("queues file not readable: %v", err))
		}
	}
}

// checkDirectoryWritable checks if a directory is writable
func checkDirectoryWritable(filePath string) error {
	// Extract directory from file path
	dir := filePath
	if !strings.HasSuffix(filePath, "/") {
		// It's a file path, get the directory
		lastSlash := strings.LastIndex(filePath, "/")
		if lastSlash > 0 {
			dir = filePath[:lastSlash]
		} else {
			dir = "."
		}
	}

	// Check if directory exists
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		// Try to create directory
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errs.NewValidation("config.checkDirectoryWritable", "cannot create directory", err)
		}
	}

	// Test write permission by creating a temporary file
	tempFile := fmt.Sprintf("%s/.write_test_%d", dir, os.Getpid())
	file, err := os.Create(tempFile)
	if err != nil {
		return errs.NewValidation("config.checkDirectoryWritable", "directory is not writable", err)
	}
	file.Close()
	os.Remove(tempFile)

	return nil
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GetConfigSummary returns a summary of the configuration (excluding sensitive data)
func (c *Config) GetConfigSummary() map[string]interface{} {
	return map[string]interface{}{
		"mongo_uri":           maskString(c.MongoURI, 15),
		"mongo_database":      c.MongoDatabase,
		"amqp_url":            maskString(c.AmqpURL, 10),
		"audit_dsn":           maskString(c.AuditDSN, 8),
		"google_maps_api_key": maskString(c.GoogleMapsAPIKey, 10),
		"openai_api_key":      maskString(c.OpenAIAPIKey, 10),
		"worker_count":        c.WorkerCount,
		"retry_budget":        c.RetryBudget,
		"queues_file":         c.QueuesFile,
		"log_level":           c.LogLevel,
		"log_format":          c.LogFormat,
		"log_file":            c.LogFile,
		"enable_file_logging": c.EnableFileLogging,
		"ops_port":            c.OpsPort,
	}
}

// maskString masks sensitive strings for logging/display
func maskString(s string, keepFirst int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepFirst {
		return strings.Repeat("*", len(s))
	}
	return s[:keepFirst] + strings.Repeat("*", len(s)-keepFirst)
}
