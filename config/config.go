package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: when nil, employees come from the built-in directory
	Model         ModelConfig
	Embedding     EmbeddingConfig
	Rerank        RerankConfig
	Retrieval     RetrievalConfig
	Conversation  ConversationConfig
	Index         IndexConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnectRetries   uint64
	ConnectBackoff   time.Duration
}

// ModelConfig holds the chat model endpoint and generation defaults
type ModelConfig struct {
	BaseURL         string
	DefaultModel    string
	Timeout         time.Duration
	KeepAlive       string
	Temperature     float64
	MaxOutputTokens int
	ContextLength   int
}

// EmbeddingConfig holds the embedding endpoint used for queries and indexing
type EmbeddingConfig struct {
	BaseURL   string
	Model     string
	Timeout   time.Duration
	BatchSize int
	CacheSize int
}

// RerankConfig selects the reranker. An empty URL uses the built-in lexical reranker.
type RerankConfig struct {
	URL     string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// RetrievalConfig tunes the policy retrieval pipeline
type RetrievalConfig struct {
	FullK    int
	Sections int
	SectionK int
	TopN     int
	MinScore float64
	Timeout  time.Duration
}

// ConversationConfig bounds the model/tool exchange
type ConversationConfig struct {
	MaxRounds int
}

// IndexConfig locates the policy vector index file
type IndexConfig struct {
	Path string
}

// AuthConfig holds bearer token verification settings. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
	MetricsPort    int
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	ollamaURL := getEnv("OLLAMA_BASE_URL", "http://localhost:11434")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Model: ModelConfig{
			BaseURL:         ollamaURL,
			DefaultModel:    getEnv("MODEL_NAME", "llama3.1:8b"),
			Timeout:         getEnvAsDuration("MODEL_TIMEOUT", 120*time.Second),
			KeepAlive:       getEnv("MODEL_KEEP_ALIVE", "5m"),
			Temperature:     getEnvAsFloat("MODEL_TEMPERATURE", 0.8),
			MaxOutputTokens: getEnvAsInt("MODEL_NUM_PREDICT", 4096),
			ContextLength:   getEnvAsInt("MODEL_NUM_CTX", 8192),
		},
		Embedding: EmbeddingConfig{
			BaseURL:   getEnv("EMBEDDING_BASE_URL", ollamaURL),
			Model:     getEnv("EMBEDDING_MODEL", "all-minilm"),
			Timeout:   getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			BatchSize: getEnvAsInt("EMBEDDING_BATCH_SIZE", 32),
			CacheSize: getEnvAsInt("EMBEDDING_CACHE_SIZE", 512),
		},
		Rerank: RerankConfig{
			URL:     getEnv("RERANK_URL", ""),
			Model:   getEnv("RERANK_MODEL", ""),
			APIKey:  getEnv("RERANK_API_KEY", ""),
			Timeout: getEnvAsDuration("RERANK_TIMEOUT", 10*time.Second),
		},
		Retrieval: RetrievalConfig{
			FullK:    getEnvAsInt("RETRIEVAL_FULL_K", 10),
			Sections: getEnvAsInt("RETRIEVAL_SECTIONS", 2),
			SectionK: getEnvAsInt("RETRIEVAL_SECTION_K", 10),
			TopN:     getEnvAsInt("RETRIEVAL_TOP_N", 3),
			MinScore: getEnvAsFloat("RETRIEVAL_MIN_SCORE", 0),
			Timeout:  getEnvAsDuration("RETRIEVAL_TIMEOUT", 30*time.Second),
		},
		Conversation: ConversationConfig{
			MaxRounds: getEnvAsInt("CONVERSATION_MAX_ROUNDS", 5),
		},
		Index: IndexConfig{
			Path: getEnv("INDEX_PATH", "data/policies.db"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (only when configured)
	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Model.BaseURL == "" {
		return fmt.Errorf("model endpoint is required: set OLLAMA_BASE_URL")
	}
	if c.Index.Path == "" {
		return fmt.Errorf("index path is required")
	}

	if c.Conversation.MaxRounds < 0 {
		return fmt.Errorf("conversation max rounds must not be negative")
	}
	if c.Retrieval.FullK <= 0 || c.Retrieval.SectionK <= 0 {
		return fmt.Errorf("retrieval search sizes must be positive")
	}
	if c.Retrieval.Sections <= 0 {
		return fmt.Errorf("retrieval sections must be positive")
	}
	if c.Retrieval.TopN <= 0 {
		return fmt.Errorf("retrieval top n must be positive")
	}

	// Token verification is required in production
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret is required in production")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// AuthEnabled reports whether bearer tokens are verified
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither DATABASE_URL nor DB_HOST is set.
func loadDatabaseConfig() *DatabaseConfig {
	retries := getEnvAsInt("DB_CONNECT_RETRIES", 5)
	if retries < 0 {
		retries = 0
	}
	cfg := &DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnectRetries:  uint64(retries),
		ConnectBackoff:  getEnvAsDuration("DB_CONNECT_BACKOFF", 500*time.Millisecond),
	}

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}

	host := getEnv("DB_HOST", "")
	if host == "" {
		return nil
	}
	cfg.Host = host
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "hr")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "hr")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
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
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping blank entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
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
