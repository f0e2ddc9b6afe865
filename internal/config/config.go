// Package config loads the application configuration from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"legalrag/internal/domain"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url" toml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env" toml:"api_key_env"`
	Model             string  `yaml:"model" toml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs" toml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries" toml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type" toml:"type"`
	Dimension int                   `yaml:"dimension" toml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty" toml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Policy           string `yaml:"policy" toml:"policy"`
	MaxCharacters    int    `yaml:"max_characters" toml:"max_characters"`
	OverlapSize      int    `yaml:"overlap_size" toml:"overlap_size"`
	Title            string `yaml:"title,omitempty" toml:"title,omitempty"`
	MaxWords         int    `yaml:"max_words" toml:"max_words"`
	OverlapSentences int    `yaml:"overlap_sentences" toml:"overlap_sentences"`
	Separator        string `yaml:"separator" toml:"separator"`
}

// MilvusConfig contains connection details for a Milvus vector store.
type MilvusConfig struct {
	Address      string `yaml:"address" toml:"address"`
	Username     string `yaml:"username,omitempty" toml:"username,omitempty"`
	PasswordEnv  string `yaml:"password_env,omitempty" toml:"password_env,omitempty"`
	Database     string `yaml:"database,omitempty" toml:"database,omitempty"`
	Collection   string `yaml:"collection" toml:"collection"`
	NList        int    `yaml:"nlist" toml:"nlist"`
	NProbe       int    `yaml:"nprobe" toml:"nprobe"`
	DropExisting bool   `yaml:"drop_existing" toml:"drop_existing"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host         string `yaml:"host" toml:"host"`
	Port         int    `yaml:"port" toml:"port"`
	APIKeyEnv    string `yaml:"api_key_env,omitempty" toml:"api_key_env,omitempty"`
	UseTLS       bool   `yaml:"use_tls" toml:"use_tls"`
	Collection   string `yaml:"collection" toml:"collection"`
	DropExisting bool   `yaml:"drop_existing" toml:"drop_existing"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type" toml:"type"`
	Metric string        `yaml:"metric" toml:"metric"`
	Milvus *MilvusConfig `yaml:"milvus,omitempty" toml:"milvus,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty" toml:"qdrant,omitempty"`
}

// OpenAISynthesizerConfig configures the chat-completions synthesizer.
type OpenAISynthesizerConfig struct {
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	Model       string `yaml:"model" toml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
	MaxTokens   int    `yaml:"max_tokens,omitempty" toml:"max_tokens,omitempty"`
	Referer     string `yaml:"referer,omitempty" toml:"referer,omitempty"`
	Title       string `yaml:"title,omitempty" toml:"title,omitempty"`
}

// SynthesizerConfig selects and configures the answer synthesizer.
type SynthesizerConfig struct {
	Type            string                   `yaml:"type" toml:"type"`
	MaxSentences    int                      `yaml:"max_sentences" toml:"max_sentences"`
	ContextTokens   int                      `yaml:"context_tokens" toml:"context_tokens"`
	MaxPromptTokens int                      `yaml:"max_prompt_tokens" toml:"max_prompt_tokens"`
	OpenAI          *OpenAISynthesizerConfig `yaml:"openai,omitempty" toml:"openai,omitempty"`
}

// RetrievalConfig tunes query handling.
type RetrievalConfig struct {
	TopK           int  `yaml:"top_k" toml:"top_k"`
	IncludeText    bool `yaml:"include_text" toml:"include_text"`
	NormalizeQuery bool `yaml:"normalize_query" toml:"normalize_query"`
}

// IngestConfig tunes the ingestion pipeline and the source loader.
type IngestConfig struct {
	MinScore    float64 `yaml:"min_score" toml:"min_score"`
	Concurrency int     `yaml:"concurrency" toml:"concurrency"`
	TimeoutSecs int     `yaml:"timeout_secs" toml:"timeout_secs"`
	MaxBytes    int64   `yaml:"max_bytes" toml:"max_bytes"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder" toml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker" toml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store" toml:"vector_store"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer" toml:"synthesizer"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" toml:"retrieval"`
	Ingest      IngestConfig      `yaml:"ingest" toml:"ingest"`
	Verbose     bool              `yaml:"verbose" toml:"verbose"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidConfig, path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/legalrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/legalrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects unknown adapter types and out-of-range sizes.
func (c *AppConfig) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	check(oneOf(c.Embedder.Type, "hashing", "openai"), "embedder.type %q", c.Embedder.Type)
	check(c.Embedder.Dimension > 0, "embedder.dimension must be positive")
	check(oneOf(c.Chunker.Policy, "order_overlap", "title_overlap", "sentence", "separator"), "chunker.policy %q", c.Chunker.Policy)
	check(c.Chunker.MaxCharacters > 0 && c.Chunker.MaxWords > 0, "chunker sizes must be positive")
	check(c.Chunker.OverlapSize >= 0 && c.Chunker.OverlapSentences >= 0, "chunker overlaps must not be negative")
	check(oneOf(c.VectorStore.Type, "memory", "milvus", "qdrant"), "vector_store.type %q", c.VectorStore.Type)
	if _, err := domain.ParseMetric(c.VectorStore.Metric); err != nil {
		problems = append(problems, fmt.Sprintf("vector_store.metric %q", c.VectorStore.Metric))
	}
	check(oneOf(c.Synthesizer.Type, "extractive", "openai"), "synthesizer.type %q", c.Synthesizer.Type)
	check(c.Retrieval.TopK > 0, "retrieval.top_k must be positive")
	check(c.Ingest.MinScore >= 0 && c.Ingest.MinScore <= 1, "ingest.min_score must be within [0, 1]")
	check(c.Ingest.Concurrency > 0, "ingest.concurrency must be positive")
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "legalrag", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return defaultConfig()
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder: EmbedderConfig{Type: "hashing", Dimension: 384},
		Chunker: ChunkerConfig{
			Policy:           "sentence",
			MaxCharacters:    1000,
			OverlapSize:      50,
			MaxWords:         100,
			OverlapSentences: 1,
			Separator:        "***",
		},
		VectorStore: VectorStoreConfig{Type: "memory", Metric: "L2"},
		Synthesizer: SynthesizerConfig{Type: "extractive", MaxSentences: 3, ContextTokens: 700, MaxPromptTokens: 1024},
		Retrieval:   RetrievalConfig{TopK: 3, IncludeText: true, NormalizeQuery: true},
		Ingest:      IngestConfig{Concurrency: 4, TimeoutSecs: 30, MaxBytes: 20 << 20},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	cfg.Embedder.Type = strings.ToLower(strings.TrimSpace(cfg.Embedder.Type))
	cfg.Chunker.Policy = strings.ToLower(strings.TrimSpace(cfg.Chunker.Policy))
	cfg.VectorStore.Type = strings.ToLower(strings.TrimSpace(cfg.VectorStore.Type))
	cfg.Synthesizer.Type = strings.ToLower(strings.TrimSpace(cfg.Synthesizer.Type))

	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}

	switch cfg.VectorStore.Type {
	case "milvus":
		if cfg.VectorStore.Milvus == nil {
			cfg.VectorStore.Milvus = &MilvusConfig{}
		}
		m := cfg.VectorStore.Milvus
		if m.Address == "" {
			m.Address = "localhost:19530"
		}
		if m.Collection == "" {
			m.Collection = "legal_docs"
		}
		if m.NList == 0 {
			m.NList = 128
		}
		if m.NProbe == 0 {
			m.NProbe = 10
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		if q.Host == "" {
			q.Host = "localhost"
		}
		if q.Port == 0 {
			q.Port = 6334
		}
		if q.Collection == "" {
			q.Collection = "legal_docs"
		}
	}

	if cfg.Synthesizer.Type == "openai" {
		if cfg.Synthesizer.OpenAI == nil {
			cfg.Synthesizer.OpenAI = &OpenAISynthesizerConfig{}
		}
		o := cfg.Synthesizer.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://openrouter.ai/api/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENROUTER_API_KEY"
		}
		if o.Model == "" {
			o.Model = "deepseek/deepseek-r1-0528:free"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 120
		}
	}
}
