// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.kubesage/config.yaml or ./config.yaml)
//  3. Default values
//
// Categories:
//   - LLM: chat provider and model selection
//   - Embedding: embedding provider, model, output dimensions
//   - Vector store: backend selection (pinecone, chroma, pgvector) plus
//     backend-specific connection settings
//   - Chunking: default chunk length and overlap for document ingestion
//   - Serve: HTTP listen address and CORS origins
//   - Tracing: OTLP trace export
//   - MCP: external tool server definitions
//
// Sensitive fields (API keys, passwords) are masked in MarshalJSON and
// String; validation fails fast at load time with sentinel errors usable
// via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the LLM or embedding provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidVectorStore indicates the vector store backend is not supported.
	ErrInvalidVectorStore = errors.New("invalid vector store")

	// ErrInvalidChunkSettings indicates the default chunk settings are inconsistent.
	ErrInvalidChunkSettings = errors.New("invalid chunk settings")

	// ErrInvalidDimensions indicates the embedding dimensions are out of range.
	ErrInvalidDimensions = errors.New("invalid embedding dimensions")

	// ErrMissingPineconeIndex indicates the Pinecone index host is not set.
	ErrMissingPineconeIndex = errors.New("missing Pinecone index host")

	// ErrMissingChromaURL indicates the Chroma base URL is not set.
	ErrMissingChromaURL = errors.New("missing Chroma base URL")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")
)

// Provider identifiers used for Config.Provider and Config.EmbeddingProvider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Vector store backend identifiers used for Config.VectorStore.
const (
	StorePinecone = "pinecone"
	StoreChroma   = "chroma"
	StorePgvector = "pgvector"
)

// DefaultEmbeddingDimensions is the vector width shared by all store
// backends. gemini-embedding-001 natively outputs 3072 dimensions but
// supports truncation via OutputDimensionality; text-embedding-3-small
// outputs 1536 and is likewise truncatable.
const DefaultEmbeddingDimensions = 768

// PineconeConfig holds settings for the Pinecone backend.
type PineconeConfig struct {
	APIKey    string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	IndexHost string `mapstructure:"index_host" json:"index_host"`
}

// MarshalJSON masks the API key.
func (p PineconeConfig) MarshalJSON() ([]byte, error) {
	type alias PineconeConfig
	a := alias(p)
	a.APIKey = maskSecret(a.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal pinecone config: %w", err)
	}
	return data, nil
}

// ChromaConfig holds settings for the Chroma backend.
type ChromaConfig struct {
	BaseURL    string `mapstructure:"base_url" json:"base_url"`
	Collection string `mapstructure:"collection" json:"collection"`
}

// MCPServerConfig describes one external MCP tool server started as a
// stdio subprocess.
type MCPServerConfig struct {
	Name    string   `mapstructure:"name" json:"name"`
	Command string   `mapstructure:"command" json:"command"`
	Args    []string `mapstructure:"args" json:"args"`
}

// TracingConfig holds OTLP trace export settings.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// LLM provider and model
	Provider    string  `mapstructure:"provider" json:"provider"`     // "openai" (default) or "gemini"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // e.g. "gpt-4o", "gemini-2.5-flash"
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Provider credentials, bound from OPENAI_API_KEY / GEMINI_API_KEY
	OpenAIAPIKey string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE: masked in MarshalJSON
	GeminiAPIKey string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON

	// Embedding configuration
	EmbeddingProvider   string `mapstructure:"embedding_provider" json:"embedding_provider"`
	EmbeddingModel      string `mapstructure:"embedding_model" json:"embedding_model"`
	EmbeddingDimensions int    `mapstructure:"embedding_dimensions" json:"embedding_dimensions"`

	// Vector store backend
	VectorStore string         `mapstructure:"vector_store" json:"vector_store"` // "pinecone", "chroma", "pgvector"
	Namespace   string         `mapstructure:"namespace" json:"namespace"`
	Pinecone    PineconeConfig `mapstructure:"pinecone" json:"pinecone"`
	Chroma      ChromaConfig   `mapstructure:"chroma" json:"chroma"`

	// PostgreSQL connection (pgvector backend only)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Default chunk settings for document ingestion
	MaxChunkLength int `mapstructure:"max_chunk_length" json:"max_chunk_length"`
	ChunkOverlap   int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Serve mode
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Observability
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`

	// External MCP tool servers
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers" json:"mcp_servers"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".kubesage")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// LLM defaults
	viper.SetDefault("provider", ProviderOpenAI)
	viper.SetDefault("model_name", "gpt-4o")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)

	// Embedding defaults
	viper.SetDefault("embedding_provider", ProviderOpenAI)
	viper.SetDefault("embedding_model", "text-embedding-3-small")
	viper.SetDefault("embedding_dimensions", DefaultEmbeddingDimensions)

	// Vector store defaults
	viper.SetDefault("vector_store", StorePgvector)
	viper.SetDefault("namespace", "")
	viper.SetDefault("chroma.base_url", "http://localhost:8000")
	viper.SetDefault("chroma.collection", "kubesage")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "kubesage")
	viper.SetDefault("postgres_password", "kubesage_dev_password")
	viper.SetDefault("postgres_db_name", "kubesage")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Chunking defaults
	viper.SetDefault("max_chunk_length", 1000)
	viper.SetDefault("chunk_overlap", 100)

	// Serve defaults
	viper.SetDefault("listen_addr", "127.0.0.1:7700")
	viper.SetDefault("cors_origins", []string{"http://localhost:3000"})

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "kubesage")
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Provider credentials
	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("pinecone.api_key", "PINECONE_API_KEY")

	// Provider and store selection
	mustBind("provider", "KUBESAGE_PROVIDER")
	mustBind("model_name", "KUBESAGE_MODEL_NAME")
	mustBind("embedding_provider", "KUBESAGE_EMBEDDING_PROVIDER")
	mustBind("embedding_model", "KUBESAGE_EMBEDDING_MODEL")
	mustBind("vector_store", "KUBESAGE_VECTOR_STORE")
	mustBind("namespace", "KUBESAGE_NAMESPACE")

	// Backend endpoints
	mustBind("pinecone.index_host", "PINECONE_INDEX_HOST")
	mustBind("chroma.base_url", "KUBESAGE_CHROMA_URL")

	// Serve mode
	mustBind("listen_addr", "KUBESAGE_LISTEN_ADDR")
	mustBind("cors_origins", "KUBESAGE_CORS_ORIGINS")
}

// Validate checks the configuration for consistency and required values.
// Returns sentinel errors wrapped with detail; fails on the first problem.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY required for provider %q", ErrMissingAPIKey, c.Provider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY required for provider %q", ErrMissingAPIKey, c.Provider)
		}
	default:
		return fmt.Errorf("%w: %q (supported: openai, gemini)", ErrInvalidProvider, c.Provider)
	}

	switch c.EmbeddingProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY required for embedding provider %q", ErrMissingAPIKey, c.EmbeddingProvider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY required for embedding provider %q", ErrMissingAPIKey, c.EmbeddingProvider)
		}
	default:
		return fmt.Errorf("%w: embedding provider %q (supported: openai, gemini)", ErrInvalidProvider, c.EmbeddingProvider)
	}

	if c.EmbeddingDimensions < 1 || c.EmbeddingDimensions > 4096 {
		return fmt.Errorf("%w: %d (must be 1-4096)", ErrInvalidDimensions, c.EmbeddingDimensions)
	}

	switch c.VectorStore {
	case StorePinecone:
		if c.Pinecone.APIKey == "" {
			return fmt.Errorf("%w: PINECONE_API_KEY required for vector store %q", ErrMissingAPIKey, c.VectorStore)
		}
		if c.Pinecone.IndexHost == "" {
			return ErrMissingPineconeIndex
		}
	case StoreChroma:
		if c.Chroma.BaseURL == "" {
			return ErrMissingChromaURL
		}
	case StorePgvector:
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
	default:
		return fmt.Errorf("%w: %q (supported: pinecone, chroma, pgvector)", ErrInvalidVectorStore, c.VectorStore)
	}

	if c.MaxChunkLength < 1 {
		return fmt.Errorf("%w: max_chunk_length must be positive, got %d", ErrInvalidChunkSettings, c.MaxChunkLength)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkLength {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, max_chunk_length)", ErrInvalidChunkSettings, c.ChunkOverlap)
	}

	return nil
}

// PostgresURL returns the pgvector backend connection string in URL form,
// suitable for both pgxpool and golang-migrate.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 chars or
// fewer are fully masked; longer secrets keep the first and last 2 chars
// for debug utility. This defends against accidental logging, nothing more.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Masked fields: OpenAIAPIKey, GeminiAPIKey, PostgresPassword, and
// Pinecone.APIKey (via PineconeConfig.MarshalJSON).
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// APIKeyFor returns the credential for the given provider identifier.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return ""
	}
}
