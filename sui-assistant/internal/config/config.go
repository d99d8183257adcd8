package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration of the assistant service.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Retriever RetrieverConfig `mapstructure:"retriever"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	FallbackDelay   time.Duration `mapstructure:"fallback_delay"` // pause between streamed fallback words
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LLMConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"` // 0 leaves requests bounded by their context
}

type EmbeddingConfig struct {
	Provider    string `mapstructure:"provider"` // "openai" or "ollama"
	Endpoint    string `mapstructure:"endpoint"`
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	Dims        int    `mapstructure:"dims"`
	Concurrency int    `mapstructure:"concurrency"`
}

type RetrieverConfig struct {
	DatabaseURL   string        `mapstructure:"database_url"`
	RedisURL      string        `mapstructure:"redis_url"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

type WorkflowConfig struct {
	RecursionLimit int  `mapstructure:"recursion_limit"`
	Debug          bool `mapstructure:"debug"`
	SkipGrading    bool `mapstructure:"skip_grading"`
}

type IngestionConfig struct {
	ChunkSize            int    `mapstructure:"chunk_size"`
	ChunkOverlap         int    `mapstructure:"chunk_overlap"`
	BatchSize            int    `mapstructure:"batch_size"`
	OCRLanguage          string `mapstructure:"ocr_language"`
	DriveFolderID        string `mapstructure:"drive_folder_id"`
	DriveCredentialsFile string `mapstructure:"drive_credentials_file"`
	DriveAccessToken     string `mapstructure:"drive_access_token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DefaultEnvFiles are loaded into the environment before configuration is read.
var DefaultEnvFiles = []string{".env.local", ".env"}

// envAliases maps config keys to the environment names deployments already use.
var envAliases = map[string][]string{
	"server.port":                      {"PORT"},
	"llm.api_key":                      {"OPENAI_API_KEY"},
	"llm.endpoint":                     {"OPENAI_BASE_URL"},
	"embedding.api_key":                {"OPENAI_API_KEY"},
	"retriever.database_url":           {"SUPABASE_DB_URL", "DATABASE_URL"},
	"retriever.redis_url":              {"REDIS_URL"},
	"retriever.redis_password":         {"REDIS_PASSWORD"},
	"workflow.debug":                   {"DEBUG"},
	"ingestion.drive_folder_id":        {"GDRIVE_FOLDER_ID"},
	"ingestion.drive_credentials_file": {"GOOGLE_APPLICATION_CREDENTIALS"},
}

// setDefaults registers every key of Config. Unmarshal ignores keys viper has
// never seen, so a key without a default cannot be set from the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.fallback_delay", "20ms")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("llm.endpoint", "https://api.openai.com")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", "0s")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dims", 1536)
	v.SetDefault("embedding.concurrency", 4)

	v.SetDefault("retriever.database_url", "")
	v.SetDefault("retriever.redis_url", "")
	v.SetDefault("retriever.redis_password", "")
	v.SetDefault("retriever.redis_db", 0)
	v.SetDefault("retriever.cache_ttl", "10m")

	v.SetDefault("workflow.recursion_limit", 10)
	v.SetDefault("workflow.debug", false)
	v.SetDefault("workflow.skip_grading", false)

	v.SetDefault("ingestion.chunk_size", 4000)
	v.SetDefault("ingestion.chunk_overlap", 400)
	v.SetDefault("ingestion.batch_size", 100)
	v.SetDefault("ingestion.ocr_language", "eng")
	v.SetDefault("ingestion.drive_folder_id", "")
	v.SetDefault("ingestion.drive_credentials_file", "")
	v.SetDefault("ingestion.drive_access_token", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads configuration from the optional file at configPath, the
// environment and the given dotenv files. Missing dotenv files are skipped;
// variables already set in the environment win over dotenv values.
func Load(configPath string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. workflow.recursion_limit becomes WORKFLOW_RECURSION_LIMIT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, names := range envAliases {
		args := append([]string{key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.Workflow.RecursionLimit <= 0 {
		return fmt.Errorf("workflow.recursion_limit must be positive, got %d", c.Workflow.RecursionLimit)
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return fmt.Errorf("ingestion.chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Ingestion.ChunkOverlap, c.Ingestion.ChunkSize)
	}
	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("ingestion.batch_size must be positive, got %d", c.Ingestion.BatchSize)
	}
	return nil
}

// HasCredentials reports whether both the LLM key and the document store are
// configured. Without them the assistants answer from the fallback generator.
func (c *Config) HasCredentials() bool {
	return c.LLM.APIKey != "" && c.Retriever.DatabaseURL != ""
}

// Mode is "production" with credentials and "development" without.
func (c *Config) Mode() string {
	if c.HasCredentials() {
		return "production"
	}
	return "development"
}
