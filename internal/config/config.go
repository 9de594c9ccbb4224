package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Search     SearchConfig
	Executor   ExecutorConfig
	Retrieval  RetrievalConfig
	Ranking    RankingConfig
	Negation   NegationConfig
	Lexicon    LexiconConfig
	Logging    LoggingConfig
	OpenAI     OpenAIConfig
	Resilience ResilienceConfig

	// Warnings lists malformed values that were replaced by defaults.
	Warnings []string
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, preferred when set
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	Host            string
	GinMode         string
	AllowedOrigins  []string
	AllowedMethods  []string
	AllowedHeaders  []string
	ShutdownTimeout time.Duration
}

// SearchConfig bounds the limit a caller may request over HTTP.
type SearchConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// ExecutorConfig bounds every dynamically assembled statement.
type ExecutorConfig struct {
	DefaultMaxRows int
	MaxRowsCeiling int
	DefaultTimeout time.Duration
	TimeoutCeiling time.Duration
}

// RetrievalConfig holds per-strategy defaults.
type RetrievalConfig struct {
	FilterDefaultLimit      int
	FilterMaxLimit          int
	UnfilteredSampleLimit   int
	SemanticDefaultLimit    int
	SemanticDistanceCeiling float64
	HybridDefaultLimit      int
	CallBudget              time.Duration
	VectorDimensions        int
}

// RankingConfig holds reranker weights
type RankingConfig struct {
	VectorWeight  float64
	KeywordWeight float64
	DistanceRange float64
}

// NegationConfig tunes the keyword negation guard. Empty Markers means the
// lexicon's markers are used.
type NegationConfig struct {
	Window  int
	Markers []string
}

// LexiconConfig points at an optional YAML lexicon override.
type LexiconConfig struct {
	Path string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey              string
	APIBase             string
	ChatModel           string // model for query parsing
	ChatTemperature     float64
	ChatTopP            float64
	ChatMaxTokens       int
	ChatExtraBody       string // JSON merged into chat requests, e.g. {"chat_template_kwargs":{"thinking":false}}
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingExtraBody  string // JSON merged into embedding requests, e.g. {"truncate":"NONE"}
	BatchSize           int
	Timeout             time.Duration
	RequestsPerSecond   float64
	Burst               int
	Enabled             bool
}

// ResilienceConfig controls retries and circuit breaking for model calls.
type ResilienceConfig struct {
	RetryMaxAttempts int
	RetryBackoff     time.Duration
	BreakerEnabled   bool
	BreakerTripAfter int
	BreakerCooldown  time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	env := &envReader{}
	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                env.str("DATABASE_URL", env.str("POSTGRESQL_URI", env.str("PG_DSN", ""))),
			Host:               env.str("PG_HOST", "localhost"),
			Port:               env.int("PG_PORT", 5432),
			User:               env.str("PG_USER", "postgres"),
			Password:           env.str("PG_PASSWORD", ""),
			Database:           env.str("PG_DATABASE", "survey"),
			SSLMode:            env.str("PG_SSLMODE", "disable"),
			MaxConnections:     env.int("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: env.int("PG_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    env.duration("PG_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime:    env.duration("PG_CONN_MAX_IDLE_TIME", 2*time.Minute),
		},
		Server: ServerConfig{
			Port:            env.int("SERVER_PORT", 8080),
			Host:            env.str("SERVER_HOST", "0.0.0.0"),
			GinMode:         env.str("GIN_MODE", "release"),
			AllowedOrigins:  env.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods:  env.list("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:  env.list("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
			ShutdownTimeout: env.duration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Search: SearchConfig{
			DefaultLimit: env.int("SEARCH_DEFAULT_LIMIT", 0),
			MaxLimit:     env.int("SEARCH_MAX_LIMIT", 2000),
		},
		Executor: ExecutorConfig{
			DefaultMaxRows: env.int("EXECUTOR_DEFAULT_MAX_ROWS", 200),
			MaxRowsCeiling: env.int("EXECUTOR_MAX_ROWS_CEILING", 10000),
			DefaultTimeout: env.millis("EXECUTOR_DEFAULT_TIMEOUT_MS", 5000),
			TimeoutCeiling: env.millis("EXECUTOR_TIMEOUT_CEILING_MS", 20000),
		},
		Retrieval: RetrievalConfig{
			FilterDefaultLimit:      env.int("FILTER_DEFAULT_LIMIT", 300),
			FilterMaxLimit:          env.int("FILTER_MAX_LIMIT", 1000),
			UnfilteredSampleLimit:   env.int("FILTER_UNFILTERED_SAMPLE_LIMIT", 50),
			SemanticDefaultLimit:    env.int("SEMANTIC_DEFAULT_LIMIT", 50),
			SemanticDistanceCeiling: env.float("SEMANTIC_DISTANCE_CEILING", 0.9),
			HybridDefaultLimit:      env.int("HYBRID_DEFAULT_LIMIT", 2000),
			CallBudget:              env.duration("RETRIEVAL_CALL_BUDGET", 15*time.Second),
			VectorDimensions:        env.int("STORE_VECTOR_DIMENSIONS", 1024),
		},
		Ranking: RankingConfig{
			VectorWeight:  env.float("RANK_WEIGHT_VECTOR", 0.6),
			KeywordWeight: env.float("RANK_WEIGHT_KEYWORD", 0.4),
			DistanceRange: env.float("RANK_DISTANCE_RANGE", 2.0),
		},
		Negation: NegationConfig{
			Window:  env.int("NEGATION_WINDOW", 15),
			Markers: env.rawList("NEGATION_MARKERS"),
		},
		Lexicon: LexiconConfig{
			Path: env.str("LEXICON_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  env.str("LOG_LEVEL", "info"),
			Format: env.str("LOG_FORMAT", "json"),
		},
		OpenAI: OpenAIConfig{
			APIKey:              env.str("OPENAI_API_KEY", ""),
			APIBase:             strings.TrimRight(env.str("OPENAI_API_BASE", "https://integrate.api.nvidia.com/v1"), "/"),
			ChatModel:           env.str("OPENAI_CHAT_MODEL", "deepseek-ai/deepseek-v3.1-terminus"),
			ChatTemperature:     env.float("OPENAI_CHAT_TEMPERATURE", 0.1),
			ChatTopP:            env.float("OPENAI_CHAT_TOP_P", 0.7),
			ChatMaxTokens:       env.int("OPENAI_CHAT_MAX_TOKENS", 1024),
			ChatExtraBody:       env.str("OPENAI_CHAT_EXTRA_BODY", ""),
			EmbeddingModel:      env.str("OPENAI_EMBEDDING_MODEL", "baai/bge-m3"),
			EmbeddingDimensions: env.int("OPENAI_EMBEDDING_DIMENSIONS", 1024),
			EmbeddingExtraBody:  env.str("OPENAI_EMBEDDING_EXTRA_BODY", `{"truncate":"NONE"}`),
			BatchSize:           env.int("OPENAI_BATCH_SIZE", 100),
			Timeout:             env.duration("OPENAI_TIMEOUT", 30*time.Second),
			RequestsPerSecond:   env.float("OPENAI_REQUESTS_PER_SECOND", 5),
			Burst:               env.int("OPENAI_BURST", 5),
			Enabled:             env.str("OPENAI_API_KEY", "") != "",
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts: env.int("RESILIENCE_RETRY_MAX_ATTEMPTS", 2),
			RetryBackoff:     env.duration("RESILIENCE_RETRY_BACKOFF", 100*time.Millisecond),
			BreakerEnabled:   env.bool("RESILIENCE_BREAKER_ENABLED", true),
			BreakerTripAfter: env.int("RESILIENCE_BREAKER_TRIP_AFTER", 5),
			BreakerCooldown:  env.duration("RESILIENCE_BREAKER_COOLDOWN", 30*time.Second),
		},
	}
	cfg.Warnings = env.warnings

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the retrieval core cannot run with.
func (c *Config) Validate() error {
	if c.Retrieval.VectorDimensions <= 0 {
		return fmt.Errorf("STORE_VECTOR_DIMENSIONS must be positive, got %d", c.Retrieval.VectorDimensions)
	}
	if c.Ranking.VectorWeight < 0 || c.Ranking.KeywordWeight < 0 {
		return fmt.Errorf("rank weights must be non-negative")
	}
	if c.Ranking.VectorWeight+c.Ranking.KeywordWeight == 0 {
		return fmt.Errorf("rank weights must not both be zero")
	}
	if c.Ranking.DistanceRange <= 0 {
		return fmt.Errorf("RANK_DISTANCE_RANGE must be positive")
	}
	if c.Retrieval.SemanticDistanceCeiling <= 0 {
		return fmt.Errorf("SEMANTIC_DISTANCE_CEILING must be positive")
	}
	if c.Negation.Window < 0 {
		return fmt.Errorf("NEGATION_WINDOW must not be negative")
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
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

// envReader reads typed values and remembers malformed ones.
type envReader struct {
	warnings []string
}

func (e *envReader) warnf(format string, args ...any) {
	e.warnings = append(e.warnings, fmt.Sprintf(format, args...))
}

func (e *envReader) str(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func (e *envReader) int(key string, defaultValue int) int {
	valueStr := e.str(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		e.warnf("invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func (e *envReader) float(key string, defaultValue float64) float64 {
	valueStr := e.str(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		e.warnf("invalid float value for %s, using default %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func (e *envReader) bool(key string, defaultValue bool) bool {
	valueStr := e.str(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		e.warnf("invalid boolean value for %s, using default %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// duration accepts Go duration strings ("750ms", "15s") or bare seconds.
func (e *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	valueStr := e.str(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	e.warnf("invalid duration value for %s, using default %s", key, defaultValue)
	return defaultValue
}

func (e *envReader) millis(key string, defaultMillis int) time.Duration {
	return time.Duration(e.int(key, defaultMillis)) * time.Millisecond
}

// list splits a comma separated value and trims each entry.
func (e *envReader) list(key string, defaultValue []string) []string {
	valueStr := e.str(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// rawList splits on "|" and keeps inner whitespace, since some negation
// markers end in a space.
func (e *envReader) rawList(key string) []string {
	valueStr := os.Getenv(key)
	if strings.TrimSpace(valueStr) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(valueStr, "|") {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}
