package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for photosearch.
type Config struct {
	Blob      BlobConfig      `yaml:"blob"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vision    VisionConfig    `yaml:"vision"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BlobConfig selects and configures the blob store backend.
type BlobConfig struct {
	Backend      string `yaml:"backend"`   // "local", "memory", "minio", "s3"
	Dir          string `yaml:"dir"`       // local backend root, relative to the data dir
	Namespace    string `yaml:"namespace"` // key prefix for photo bytes
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"` // root prefix inside the bucket
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	UseSSL       bool   `yaml:"use_ssl"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Backend    string `yaml:"backend"` // "bolt", "sqlite"
	Path       string `yaml:"path"`    // relative to the data dir when not absolute
	Collection string `yaml:"collection"`
	Metric     string `yaml:"metric"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`    // "openai", "deepseek", "jina", "ollama", "mock"
	Model     string        `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv string        `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string        `yaml:"base_url"`
	Dimension int           `yaml:"dimension"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"` // query embedding cache entries, 0 disables
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// VisionConfig holds description generator configuration.
type VisionConfig struct {
	Provider  string        `yaml:"provider"` // "openai", "ollama", "mock"
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	BaseURL   string        `yaml:"base_url"`
	Prompt    string        `yaml:"prompt"`
	MaxTokens int           `yaml:"max_tokens"`
	RateLimit float64       `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK              int     `yaml:"top_k"`
	MinScoreThreshold float64 `yaml:"min_score_threshold"` // Filter results below this score (0 = disabled)
}

// IngestConfig holds batch ingestion configuration.
type IngestConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Workers  int      `yaml:"workers"`
	MaxBytes int64    `yaml:"max_bytes"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Mode string `yaml:"mode"` // gin mode: "release", "debug", "test"
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text", "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Blob: BlobConfig{
			Backend:      "local",
			Dir:          "blobs",
			Namespace:    "img/",
			Region:       "us-east-1",
			AccessKeyEnv: "PHOTOSEARCH_ACCESS_KEY",
			SecretKeyEnv: "PHOTOSEARCH_SECRET_KEY",
		},
		Index: IndexConfig{
			Backend:    "bolt",
			Path:       "index.db",
			Collection: "photos",
			Metric:     "cosine",
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			Timeout:   60 * time.Second,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		Vision: VisionConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			Prompt:    "Describe this photo in one or two plain sentences. Mention the main subjects, setting, colors and activity.",
			MaxTokens: 300,
			Timeout:   120 * time.Second,
		},
		Retrieve: RetrieveConfig{
			TopK: 5,
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.png", "**/*.jpg", "**/*.jpeg", "**/*.PNG", "**/*.JPG", "**/*.JPEG"},
			Excludes: []string{"**/.git/**", "**/.photosearch/**"},
			Workers:  4,
			MaxBytes: 20 << 20,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
			Mode: "release",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks values that would otherwise fail deep inside an adapter.
func (c *Config) Validate() error {
	switch c.Blob.Backend {
	case "local", "memory", "minio", "s3":
	default:
		return fmt.Errorf("unsupported blob backend: %s", c.Blob.Backend)
	}
	if (c.Blob.Backend == "minio" || c.Blob.Backend == "s3") && c.Blob.Bucket == "" {
		return fmt.Errorf("blob backend %s requires a bucket", c.Blob.Backend)
	}
	switch c.Index.Backend {
	case "bolt", "sqlite":
	default:
		return fmt.Errorf("unsupported index backend: %s", c.Index.Backend)
	}
	if c.Index.Collection == "" {
		return fmt.Errorf("index collection name is empty")
	}
	if c.Index.Metric != "cosine" {
		return fmt.Errorf("unsupported distance metric: %s", c.Index.Metric)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for photosearch.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "photosearch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, dataDirName, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

const dataDirName = ".photosearch"

// DataDir returns the directory holding local state for root.
func DataDir(dir string) string {
	return filepath.Join(dir, dataDirName)
}

// EnsureDataDir ensures the data directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}

// IndexDBPath returns the path to the index database.
func (c *Config) IndexDBPath(dir string) string {
	if filepath.IsAbs(c.Index.Path) {
		return c.Index.Path
	}
	return filepath.Join(DataDir(dir), c.Index.Path)
}

// BlobDir returns the root of the local blob backend.
func (c *Config) BlobDir(dir string) string {
	if filepath.IsAbs(c.Blob.Dir) {
		return c.Blob.Dir
	}
	return filepath.Join(DataDir(dir), c.Blob.Dir)
}
