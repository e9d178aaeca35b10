package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Persistence PersistenceConfig
	RAG         RAGConfig
	Cache       CacheConfig
	Logging     LoggingConfig
	Client      ClientConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host           string
	Port           int
	MaxConnections int
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	AutoEmbeddingEnabled bool
	QueryDefaultDepth    int
	QueryMaxDepth        int
}

// PersistenceConfig holds snapshot and AOF configuration
type PersistenceConfig struct {
	SnapshotFile        string
	AOFFile             string
	AutoSaveInterval    int // minutes
	SnapshotCompression string
	AOFQueueSize        int
}

// RAGConfig holds embedding collaborator configuration
type RAGConfig struct {
	EmbeddingModel      string
	EmbeddingHost       string
	EmbeddingPort       int
	SimilarityThreshold float64
	SearchDefaultTopK   int
	SearchMaxTopK       int
}

// CacheConfig holds query cache configuration
type CacheConfig struct {
	MaxSize int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ClientConfig holds line-protocol client configuration
type ClientConfig struct {
	WelcomeMessage string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           9090,
			MaxConnections: 100,
		},
		Database: DatabaseConfig{
			AutoEmbeddingEnabled: true,
			QueryDefaultDepth:    1,
			QueryMaxDepth:        100,
		},
		Persistence: PersistenceConfig{
			SnapshotFile:        "database.snapshot",
			AOFFile:             "commands.aof",
			AutoSaveInterval:    5,
			SnapshotCompression: "gzip",
			AOFQueueSize:        10000,
		},
		RAG: RAGConfig{
			EmbeddingModel:      "all-minilm:22m",
			EmbeddingHost:       "localhost",
			EmbeddingPort:       11434,
			SimilarityThreshold: 0.85,
			SearchDefaultTopK:   10,
			SearchMaxTopK:       50,
		},
		Cache: CacheConfig{
			MaxSize: 10000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Client: ClientConfig{
			WelcomeMessage: "Welcome to MUMPS-like Database Server",
		},
	}
}

// LoadFile loads configuration from a flat dotted-key file. The file is a
// YAML mapping of dotted keys to scalar values, one per line:
//
//	server.port: 9090
//	persistence.snapshot.file: database.snapshot
//
// A missing file is not an error; defaults apply. Unknown keys are ignored
// so that files written for newer versions still load.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for key, value := range raw {
		if err := cfg.apply(key, fmt.Sprintf("%v", value)); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	return cfg, nil
}

// apply sets a single dotted-key property on the config
func (c *Config) apply(key, value string) error {
	var err error
	switch key {
	case "server.host":
		c.Server.Host = value
	case "server.port":
		c.Server.Port, err = strconv.Atoi(value)
	case "server.max.connections":
		c.Server.MaxConnections, err = strconv.Atoi(value)
	case "database.auto.embedding.enabled":
		c.Database.AutoEmbeddingEnabled = parseBool(value)
	case "database.query.default.depth":
		c.Database.QueryDefaultDepth, err = strconv.Atoi(value)
	case "database.query.max.depth":
		c.Database.QueryMaxDepth, err = strconv.Atoi(value)
	case "persistence.snapshot.file":
		c.Persistence.SnapshotFile = value
	case "persistence.aof.file":
		c.Persistence.AOFFile = value
	case "persistence.auto.save.interval":
		c.Persistence.AutoSaveInterval, err = strconv.Atoi(value)
	case "persistence.snapshot.compression":
		c.Persistence.SnapshotCompression = strings.ToLower(value)
	case "persistence.aof.queue.size":
		c.Persistence.AOFQueueSize, err = strconv.Atoi(value)
	case "rag.embedding.model":
		c.RAG.EmbeddingModel = value
	case "rag.embedding.host":
		c.RAG.EmbeddingHost = value
	case "rag.embedding.server.port":
		c.RAG.EmbeddingPort, err = strconv.Atoi(value)
	case "rag.similarity.threshold":
		c.RAG.SimilarityThreshold, err = strconv.ParseFloat(value, 64)
	case "rag.search.default.topk":
		c.RAG.SearchDefaultTopK, err = strconv.Atoi(value)
	case "rag.search.max.topk":
		c.RAG.SearchMaxTopK, err = strconv.Atoi(value)
	case "cache.max.size":
		c.Cache.MaxSize, err = strconv.Atoi(value)
	case "logging.level":
		c.Logging.Level = value
	case "client.welcome.message":
		c.Client.WelcomeMessage = value
	default:
		// Unknown keys are ignored
	}
	return err
}

func parseBool(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Persistence.SnapshotFile == "" {
		return fmt.Errorf("snapshot file cannot be empty")
	}
	if c.Persistence.AOFFile == "" {
		return fmt.Errorf("AOF file cannot be empty")
	}
	if c.Persistence.AutoSaveInterval <= 0 {
		return fmt.Errorf("auto save interval must be positive")
	}
	switch c.Persistence.SnapshotCompression {
	case "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("unknown snapshot compression: %s", c.Persistence.SnapshotCompression)
	}
	if c.Database.QueryMaxDepth <= 0 {
		return fmt.Errorf("query max depth must be positive")
	}
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache max size must be positive")
	}
	if c.RAG.SearchDefaultTopK <= 0 || c.RAG.SearchMaxTopK < c.RAG.SearchDefaultTopK {
		return fmt.Errorf("invalid topK bounds: default=%d max=%d", c.RAG.SearchDefaultTopK, c.RAG.SearchMaxTopK)
	}
	return nil
}

// ListenAddr returns the socket listener address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// EmbeddingURL returns the base URL of the embedding service
func (c *Config) EmbeddingURL() string {
	return fmt.Sprintf("http://%s:%d", c.RAG.EmbeddingHost, c.RAG.EmbeddingPort)
}
