package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// UnboundedLimit is the result limit used when the user did not ask for a count.
const UnboundedLimit = 20000

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Completion CompletionConfig
	Query      QueryConfig
	Logging    LoggingConfig
	Vocabulary *Vocabulary
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // 完整的数据库连接字符串（优先使用）
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// CompletionConfig holds the text-completion service configuration
type CompletionConfig struct {
	Provider     string // ollama or openai
	BaseURL      string
	APIKey       string // only used by the openai provider
	Model        string
	Temperature  float64
	Timeout      time.Duration
	ProbeTimeout time.Duration

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

// QueryConfig holds query execution configuration
type QueryConfig struct {
	DefaultLimit         int
	StoreTimeout         time.Duration
	// ECEFPrefilter needs a location_ecef vector(3) column. Rows whose vector is NULL never
	// reach nearest-N results until `nlqctl backfill-ecef` fills them; the server warns at startup.
	ECEFPrefilter        bool
	ECEFPrefilterPadding int
	VocabularyFile       string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Supported completion providers
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "elder"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8000),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Completion: CompletionConfig{
			Provider:            strings.ToLower(getEnv("COMPLETION_PROVIDER", ProviderOllama)),
			BaseURL:             getEnv("COMPLETION_BASE_URL", "http://localhost:11434"),
			APIKey:              getEnv("COMPLETION_API_KEY", ""),
			Model:               getEnv("COMPLETION_MODEL", "Qwen2.5:latest"),
			Temperature:         getEnvAsFloat("COMPLETION_TEMPERATURE", 0.1),
			Timeout:             getEnvAsDuration("COMPLETION_TIMEOUT", 30*time.Second),
			ProbeTimeout:        getEnvAsDuration("COMPLETION_PROBE_TIMEOUT", 5*time.Second),
			BreakerEnabled:      getEnvAsBool("COMPLETION_BREAKER_ENABLED", true),
			BreakerMinRequests:  uint32(getEnvAsInt("COMPLETION_BREAKER_MIN_REQUESTS", 5)),
			BreakerFailureRatio: getEnvAsFloat("COMPLETION_BREAKER_FAILURE_RATIO", 0.6),
			BreakerOpenTimeout:  getEnvAsDuration("COMPLETION_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Query: QueryConfig{
			DefaultLimit:         getEnvAsInt("NLQ_DEFAULT_LIMIT", UnboundedLimit),
			StoreTimeout:         getEnvAsDuration("STORE_QUERY_TIMEOUT", 10*time.Second),
			ECEFPrefilter:        getEnvAsBool("STORE_ECEF_PREFILTER", false),
			ECEFPrefilterPadding: getEnvAsInt("STORE_ECEF_PREFILTER_PADDING", 16),
			VocabularyFile:       getEnv("NLQ_VOCABULARY_FILE", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	vocab, err := LoadVocabulary(cfg.Query.VocabularyFile)
	if err != nil {
		return nil, err
	}
	cfg.Vocabulary = vocab

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail late at request time
func (c *Config) Validate() error {
	switch c.Completion.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported COMPLETION_PROVIDER %q (want %s or %s)", c.Completion.Provider, ProviderOllama, ProviderOpenAI)
	}
	if strings.TrimSpace(c.Completion.Model) == "" {
		return fmt.Errorf("COMPLETION_MODEL must not be empty")
	}
	if strings.TrimSpace(c.Completion.BaseURL) == "" {
		return fmt.Errorf("COMPLETION_BASE_URL must not be empty")
	}
	if c.Completion.Timeout <= 0 || c.Completion.ProbeTimeout <= 0 {
		return fmt.Errorf("completion timeouts must be positive")
	}
	if c.Query.DefaultLimit <= 0 {
		return fmt.Errorf("NLQ_DEFAULT_LIMIT must be positive, got %d", c.Query.DefaultLimit)
	}
	if c.Query.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_QUERY_TIMEOUT must be positive")
	}
	if c.Vocabulary == nil || len(c.Vocabulary.Districts) == 0 {
		return fmt.Errorf("district vocabulary must not be empty")
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	// 优先使用完整的 DSN
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("30s") or plain seconds ("30")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}
