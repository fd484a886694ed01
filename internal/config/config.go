// Package config loads FinChat settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig configures the OpenAI-compatible API used for chat and embeddings.
type OpenAIConfig struct {
	APIKey             string        `yaml:"-"`
	APIKeyEnv          string        `yaml:"api_key_env"`
	BaseURL            string        `yaml:"base_url"`
	ChatModel          string        `yaml:"chat_model"`
	EmbeddingModel     string        `yaml:"embedding_model"`
	EmbeddingDimension int           `yaml:"embedding_dimension"`
	Timeout            time.Duration `yaml:"timeout"`
	RequestsPerSecond  float64       `yaml:"requests_per_second"`
	// Retries counts chat completion retries after the first attempt.
	Retries            int           `yaml:"retries"`
}

// ExtractionConfig configures the document partition service.
type ExtractionConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"-"`
	Timeout time.Duration `yaml:"timeout"`
	Workers int           `yaml:"workers"`
	Retries int           `yaml:"retries"`
}

// ClassifierConfig configures the hosted question classifier.
// An empty Endpoint selects the keyword classifier.
type ClassifierConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SummarizerConfig configures element summarization.
type SummarizerConfig struct {
	Concurrency int `yaml:"concurrency"`
	MaxTokens   int `yaml:"max_tokens"`
}

// RetrievalConfig configures the multi-vector retriever.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// AnswerConfig configures the answering engines.
type AnswerConfig struct {
	MinWords    int     `yaml:"min_words"`
	MaxWords    int     `yaml:"max_words"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"-"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// VectorStoreConfig selects the vector index backend: "memory" or "qdrant".
type VectorStoreConfig struct {
	Type   string       `yaml:"type"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// ServerConfig configures the MCP server binary.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ServerMode   bool   `yaml:"server_mode"`
	// DocumentsDir is the only directory MCP clients may ingest local paths
	// from. Empty disables local paths.
	DocumentsDir string `yaml:"documents_dir"`
}

// GitHubConfig configures the report source.
type GitHubConfig struct {
	Token string `yaml:"-"`
}

// Config is the root FinChat configuration.
type Config struct {
	OpenAI         OpenAIConfig      `yaml:"openai"`
	Extraction     ExtractionConfig  `yaml:"extraction"`
	Classifier     ClassifierConfig  `yaml:"classifier"`
	Summarizer     SummarizerConfig  `yaml:"summarizer"`
	Retrieval      RetrievalConfig   `yaml:"retrieval"`
	Answer         AnswerConfig      `yaml:"answer"`
	VectorStore    VectorStoreConfig `yaml:"vector_store"`
	Server         ServerConfig      `yaml:"server"`
	GitHub         GitHubConfig      `yaml:"-"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			APIKeyEnv:          "OPENAI_API_KEY",
			ChatModel:          "gpt-4o-mini",
			EmbeddingModel:     "text-embedding-3-small",
			EmbeddingDimension: 1536,
			Timeout:            60 * time.Second,
			RequestsPerSecond:  5,
			Retries:            1,
		},
		Extraction: ExtractionConfig{
			Timeout: 120 * time.Second,
			Workers: 4,
			Retries: 1,
		},
		Classifier: ClassifierConfig{
			Timeout: 10 * time.Second,
		},
		Summarizer: SummarizerConfig{
			Concurrency: 4,
			MaxTokens:   4000,
		},
		Retrieval: RetrievalConfig{
			TopK: 4,
		},
		Answer: AnswerConfig{
			MinWords:  10,
			MaxWords:  200,
			MaxTokens: 600,
		},
		VectorStore: VectorStoreConfig{
			Type: "memory",
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "finchat",
			},
		},
		Server: ServerConfig{
			Port: "8080",
		},
		RequestTimeout: 5 * time.Minute,
	}
}

// Load reads the YAML file at path (if any), fills defaults, and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	switch c.VectorStore.Type {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("unknown vector store: %q", c.VectorStore.Type)
	}
	if c.Answer.MinWords > c.Answer.MaxWords {
		return fmt.Errorf("answer.min_words (%d) exceeds answer.max_words (%d)", c.Answer.MinWords, c.Answer.MaxWords)
	}
	return nil
}

// applyDefaults fills zero values left by a partial YAML file.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = def.OpenAI.APIKeyEnv
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = def.OpenAI.ChatModel
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = def.OpenAI.EmbeddingModel
	}
	if cfg.OpenAI.EmbeddingDimension <= 0 {
		cfg.OpenAI.EmbeddingDimension = def.OpenAI.EmbeddingDimension
	}
	if cfg.OpenAI.Timeout <= 0 {
		cfg.OpenAI.Timeout = def.OpenAI.Timeout
	}
	if cfg.Extraction.Timeout <= 0 {
		cfg.Extraction.Timeout = def.Extraction.Timeout
	}
	if cfg.Extraction.Workers <= 0 {
		cfg.Extraction.Workers = def.Extraction.Workers
	}
	if cfg.OpenAI.Retries < 0 {
		cfg.OpenAI.Retries = 0
	}
	if cfg.Extraction.Retries < 0 {
		cfg.Extraction.Retries = 0
	}
	if cfg.Classifier.Timeout <= 0 {
		cfg.Classifier.Timeout = def.Classifier.Timeout
	}
	if cfg.Summarizer.Concurrency <= 0 {
		cfg.Summarizer.Concurrency = def.Summarizer.Concurrency
	}
	if cfg.Summarizer.MaxTokens <= 0 {
		cfg.Summarizer.MaxTokens = def.Summarizer.MaxTokens
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Answer.MaxWords <= 0 {
		cfg.Answer.MaxWords = def.Answer.MaxWords
	}
	if cfg.Answer.MinWords <= 0 {
		cfg.Answer.MinWords = def.Answer.MinWords
	}
	if cfg.Answer.MaxTokens <= 0 {
		cfg.Answer.MaxTokens = def.Answer.MaxTokens
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = def.VectorStore.Qdrant.Host
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = def.VectorStore.Qdrant.Port
	}
	if cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = def.VectorStore.Qdrant.Collection
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
}

// applyEnv overrides file values with environment variables.
func applyEnv(cfg *Config) {
	cfg.OpenAI.APIKey = os.Getenv(cfg.OpenAI.APIKeyEnv)
	cfg.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.ChatModel = getEnv("CHAT_MODEL", cfg.OpenAI.ChatModel)
	cfg.OpenAI.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.OpenAI.EmbeddingModel)

	cfg.Extraction.URL = getEnv("UNSTRUCTURED_API_URL", cfg.Extraction.URL)
	cfg.Extraction.APIKey = os.Getenv("UNSTRUCTURED_API_KEY")

	cfg.Classifier.Endpoint = getEnv("CLASSIFIER_URL", cfg.Classifier.Endpoint)

	cfg.Retrieval.TopK = getEnvInt("TOP_K", cfg.Retrieval.TopK)

	cfg.VectorStore.Type = getEnv("VECTOR_STORE", cfg.VectorStore.Type)
	cfg.VectorStore.Qdrant.Host = getEnv("QDRANT_HOST", cfg.VectorStore.Qdrant.Host)
	cfg.VectorStore.Qdrant.Port = getEnvInt("QDRANT_PORT", cfg.VectorStore.Qdrant.Port)
	cfg.VectorStore.Qdrant.APIKey = os.Getenv("QDRANT_API_KEY")

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.DocumentsDir = getEnv("DOCUMENTS_DIR", cfg.Server.DocumentsDir)
	if v := os.Getenv("SERVER_MODE"); v != "" {
		cfg.Server.ServerMode = v == "true"
	}

	cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}
