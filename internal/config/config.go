package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultChunkSize       = 1000
	defaultChunkOverlap    = 200
	defaultMinChunkLength  = 50
	defaultVectorStorePath = "data/vector_store"
	defaultUploadDir       = "data/uploads"
	defaultStoreName       = "study_materials"
	defaultOllamaURL       = "http://localhost:11434"
	defaultTimeoutSeconds  = 120
)

// LLMConfig describes one model endpoint, either the generative model or the embedder.
type LLMConfig struct {
	Provider       string  `yaml:"provider"`
	BaseURL        string  `yaml:"base_url"`
	Key            string  `yaml:"key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Retries        uint64  `yaml:"retries"`
}

// Timeout returns the per-call deadline for requests against this endpoint.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type QuizConfig struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type RAGConfig struct {
	ChunkSize       int    `yaml:"chunk_size"`
	ChunkOverlap    int    `yaml:"chunk_overlap"`
	MinChunkLength  int    `yaml:"min_chunk_length"`
	VectorStorePath string `yaml:"vector_store_path"`
	UploadDir       string `yaml:"upload_dir"`
	StoreName       string `yaml:"store_name"`
	EncryptionKey   string `yaml:"encryption_key"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type Config struct {
	LLM      LLMConfig    `yaml:"llm"`
	EmbedLLM LLMConfig    `yaml:"embed_llm"`
	Quiz     QuizConfig   `yaml:"quiz"`
	RAG      RAGConfig    `yaml:"rag"`
	Server   ServerConfig `yaml:"server"`
	Log      LogConfig    `yaml:"log"`
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
// Environment overrides are applied after the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		LLM: LLMConfig{
			Provider:    "ollama",
			BaseURL:     defaultOllamaURL,
			Model:       "llama3.2",
			Temperature: 0.3,
			MaxTokens:   512,
		},
		EmbedLLM: LLMConfig{
			Provider: "ollama",
			BaseURL:  defaultOllamaURL,
			Model:    "nomic-embed-text",
		},
		Quiz: QuizConfig{
			Temperature: 0.7,
			MaxTokens:   2048,
		},
		Server: ServerConfig{Host: "0.0.0.0", Port: 8000},
		Log:    LogConfig{Level: "info", Console: true},
	}
	applyDefaults(cfg)
	return cfg
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.EncryptionKey != "" && len(c.RAG.EncryptionKey) != 32 {
		return fmt.Errorf("encryption_key must be 32 bytes, got %d", len(c.RAG.EncryptionKey))
	}
	for name, p := range map[string]string{"llm": c.LLM.Provider, "embed_llm": c.EmbedLLM.Provider} {
		if p != "ollama" && p != "openai" {
			return fmt.Errorf("%s.provider must be ollama or openai, got %q", name, p)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"STUDY_LLM_URL", &cfg.LLM.BaseURL},
		{"STUDY_LLM_MODEL", &cfg.LLM.Model},
		{"STUDY_LLM_KEY", &cfg.LLM.Key},
		{"STUDY_EMBED_URL", &cfg.EmbedLLM.BaseURL},
		{"STUDY_EMBED_MODEL", &cfg.EmbedLLM.Model},
		{"STUDY_ENCRYPTION_KEY", &cfg.RAG.EncryptionKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
	if dir := os.Getenv("STUDY_DATA_DIR"); dir != "" {
		cfg.RAG.VectorStorePath = filepath.Join(dir, "vector_store")
		cfg.RAG.UploadDir = filepath.Join(dir, "uploads")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if cfg.RAG.MinChunkLength == 0 {
		cfg.RAG.MinChunkLength = defaultMinChunkLength
	}
	if cfg.RAG.VectorStorePath == "" {
		cfg.RAG.VectorStorePath = defaultVectorStorePath
	}
	if cfg.RAG.UploadDir == "" {
		cfg.RAG.UploadDir = defaultUploadDir
	}
	if cfg.RAG.StoreName == "" {
		cfg.RAG.StoreName = defaultStoreName
	}
	for _, l := range []*LLMConfig{&cfg.LLM, &cfg.EmbedLLM} {
		if l.Provider == "" {
			l.Provider = "ollama"
		}
		if l.BaseURL == "" && l.Provider == "ollama" {
			l.BaseURL = defaultOllamaURL
		}
		if l.TimeoutSeconds == 0 {
			l.TimeoutSeconds = defaultTimeoutSeconds
		}
	}
	if cfg.Quiz.MaxTokens == 0 {
		cfg.Quiz.MaxTokens = 2048
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
