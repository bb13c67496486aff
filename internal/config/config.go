package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete mojify configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// SearchConfig configures hybrid retrieval.
// The RRF constant and similarity threshold are tunable via:
//  1. User config (~/.config/mojify/config.yaml)
//  2. Project config (.mojify.yaml)
//  3. Env vars (MOJIFY_RRF_CONSTANT, MOJIFY_SIMILARITY_THRESHOLD)
type SearchConfig struct {
	// RRFConstant is the k in 1/(k+rank+1). Default: 60.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// SimilarityThreshold is the exclusive lower bound on cosine similarity
	// for a stored vector to enter the semantic ranking. Default: 0.1.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// MaxLexicalTerms caps the OR-terms sent to the lexical index. Default: 5.
	MaxLexicalTerms int `yaml:"max_lexical_terms" json:"max_lexical_terms"`

	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`

	// FetchMultiplier sizes each candidate list as limit*FetchMultiplier.
	FetchMultiplier int `yaml:"fetch_multiplier" json:"fetch_multiplier"`

	// TitleExcerptLen is the rune length of titles built from vector-only hits.
	TitleExcerptLen int `yaml:"title_excerpt_len" json:"title_excerpt_len"`

	// SnippetTokens is the number of content tokens in a lexical snippet.
	SnippetTokens int `yaml:"snippet_tokens" json:"snippet_tokens"`

	// Workers sizes the search worker pool.
	Workers int `yaml:"workers" json:"workers"`
}

// EmbeddingsConfig configures the embedding capability.
type EmbeddingsConfig struct {
	// Provider is one of fastembed, ollama, static or none.
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`

	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// CacheDir holds downloaded model files for the fastembed provider.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// CacheSize is the number of query embeddings kept in memory.
	// Negative disables the cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// Timeout bounds a single remote embedding request (e.g. "30s").
	Timeout string `yaml:"timeout" json:"timeout"`

	// IndexWorkers sizes the pool that embeds entities during a rebuild.
	IndexWorkers int `yaml:"index_workers" json:"index_workers"`
}

// StorageConfig locates the catalog and the search index.
type StorageConfig struct {
	// CatalogPath is the voting backend database (DATABASE_URL).
	CatalogPath string `yaml:"catalog_path" json:"catalog_path"`

	// DataDir holds index.db, the bleve index and the rebuild lock.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// LexicalBackend selects "sqlite" (FTS5, default) or "bleve".
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend"`
}

// ServerConfig configures the HTTP API and MCP server.
type ServerConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Watch rebuilds the index after the catalog file changes.
	Watch         bool   `yaml:"watch" json:"watch"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`

	// ReindexOnStart runs a background rebuild when the server starts.
	ReindexOnStart bool `yaml:"reindex_on_start" json:"reindex_on_start"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			RRFConstant:         60,
			SimilarityThreshold: 0.1,
			MaxLexicalTerms:     5,
			DefaultLimit:        20,
			MaxLimit:            50,
			FetchMultiplier:     2,
			TitleExcerptLen:     80,
			SnippetTokens:       4,
			Workers:             runtime.NumCPU(),
		},
		Embeddings: EmbeddingsConfig{
			Provider:     "fastembed",
			Model:        "all-MiniLM-L6-v2",
			OllamaHost:   "",
			CacheDir:     defaultModelCacheDir(),
			CacheSize:    1000,
			Timeout:      "30s",
			IndexWorkers: runtime.NumCPU(),
		},
		Storage: StorageConfig{
			CatalogPath:    "mojify.db",
			DataDir:        ".mojify",
			LexicalBackend: "sqlite",
		},
		Server: ServerConfig{
			Addr:          ":8000",
			LogLevel:      "info",
			Watch:         false,
			WatchDebounce: "2s",
		},
	}
}

func defaultModelCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mojify", "models")
	}
	return filepath.Join(home, ".mojify", "models")
}

// GetUserConfigPath returns the user configuration file path:
//   - $XDG_CONFIG_HOME/mojify/config.yaml when XDG_CONFIG_HOME is set
//   - ~/.config/mojify/config.yaml otherwise
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mojify", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "mojify", "config.yaml")
	}
	return filepath.Join(home, ".config", "mojify", "config.yaml")
}

// Load loads configuration for the project in dir, in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/mojify/config.yaml)
//  3. Project config (.mojify.yaml or .mojify.yml in dir)
//  4. Environment variables (MOJIFY_*, DATABASE_URL)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromDir loads .mojify.yaml, falling back to .mojify.yml.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{".mojify.yaml", ".mojify.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies the non-zero values of other into c.
// Zero values mean "not set"; a threshold of exactly 0 must come from the env.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	s, o := &c.Search, other.Search
	if o.RRFConstant != 0 {
		s.RRFConstant = o.RRFConstant
	}
	if o.SimilarityThreshold != 0 {
		s.SimilarityThreshold = o.SimilarityThreshold
	}
	if o.MaxLexicalTerms != 0 {
		s.MaxLexicalTerms = o.MaxLexicalTerms
	}
	if o.DefaultLimit != 0 {
		s.DefaultLimit = o.DefaultLimit
	}
	if o.MaxLimit != 0 {
		s.MaxLimit = o.MaxLimit
	}
	if o.FetchMultiplier != 0 {
		s.FetchMultiplier = o.FetchMultiplier
	}
	if o.TitleExcerptLen != 0 {
		s.TitleExcerptLen = o.TitleExcerptLen
	}
	if o.SnippetTokens != 0 {
		s.SnippetTokens = o.SnippetTokens
	}
	if o.Workers != 0 {
		s.Workers = o.Workers
	}

	e, oe := &c.Embeddings, other.Embeddings
	if oe.Provider != "" {
		e.Provider = oe.Provider
	}
	if oe.Model != "" {
		e.Model = oe.Model
	}
	if oe.OllamaHost != "" {
		e.OllamaHost = oe.OllamaHost
	}
	if oe.CacheDir != "" {
		e.CacheDir = oe.CacheDir
	}
	if oe.CacheSize != 0 {
		e.CacheSize = oe.CacheSize
	}
	if oe.Timeout != "" {
		e.Timeout = oe.Timeout
	}
	if oe.IndexWorkers != 0 {
		e.IndexWorkers = oe.IndexWorkers
	}

	st, os_ := &c.Storage, other.Storage
	if os_.CatalogPath != "" {
		st.CatalogPath = os_.CatalogPath
	}
	if os_.DataDir != "" {
		st.DataDir = os_.DataDir
	}
	if os_.LexicalBackend != "" {
		st.LexicalBackend = os_.LexicalBackend
	}

	sv, osv := &c.Server, other.Server
	if osv.Addr != "" {
		sv.Addr = osv.Addr
	}
	if osv.LogLevel != "" {
		sv.LogLevel = osv.LogLevel
	}
	if osv.Watch {
		sv.Watch = true
	}
	if osv.WatchDebounce != "" {
		sv.WatchDebounce = osv.WatchDebounce
	}
	if osv.ReindexOnStart {
		sv.ReindexOnStart = true
	}
}

// applyEnvOverrides applies environment variables (highest precedence).
// Unparseable numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MOJIFY_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("MOJIFY_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.Search.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("MOJIFY_SEARCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.Workers = n
		}
	}
	if v := os.Getenv("MOJIFY_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("MOJIFY_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("MOJIFY_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	// DATABASE_URL is shared with the rest of the voting backend.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.CatalogPath = v
	}
	if v := os.Getenv("MOJIFY_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("MOJIFY_LEXICAL_BACKEND"); v != "" {
		c.Storage.LexicalBackend = v
	}
	if v := os.Getenv("MOJIFY_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MOJIFY_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("MOJIFY_WATCH"); v != "" {
		c.Server.Watch = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	s := c.Search
	if s.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", s.RRFConstant)
	}
	if s.SimilarityThreshold < -1 || s.SimilarityThreshold >= 1 {
		return fmt.Errorf("search.similarity_threshold must be in [-1, 1), got %f", s.SimilarityThreshold)
	}
	if s.MaxLexicalTerms < 1 {
		return fmt.Errorf("search.max_lexical_terms must be at least 1, got %d", s.MaxLexicalTerms)
	}
	if s.MaxLimit < 1 {
		return fmt.Errorf("search.max_limit must be at least 1, got %d", s.MaxLimit)
	}
	if s.DefaultLimit < 1 || s.DefaultLimit > s.MaxLimit {
		return fmt.Errorf("search.default_limit must be between 1 and %d, got %d", s.MaxLimit, s.DefaultLimit)
	}
	if s.FetchMultiplier < 1 {
		return fmt.Errorf("search.fetch_multiplier must be at least 1, got %d", s.FetchMultiplier)
	}
	if s.TitleExcerptLen < 1 {
		return fmt.Errorf("search.title_excerpt_len must be at least 1, got %d", s.TitleExcerptLen)
	}
	if s.SnippetTokens < 1 || s.SnippetTokens > 64 {
		return fmt.Errorf("search.snippet_tokens must be between 1 and 64, got %d", s.SnippetTokens)
	}
	if s.Workers < 1 {
		return fmt.Errorf("search.workers must be at least 1, got %d", s.Workers)
	}

	validProviders := map[string]bool{"fastembed": true, "ollama": true, "static": true, "none": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'fastembed', 'ollama', 'static' or 'none', got %s", c.Embeddings.Provider)
	}
	if _, err := time.ParseDuration(c.Embeddings.Timeout); err != nil {
		return fmt.Errorf("embeddings.timeout: %w", err)
	}
	if c.Embeddings.IndexWorkers < 1 {
		return fmt.Errorf("embeddings.index_workers must be at least 1, got %d", c.Embeddings.IndexWorkers)
	}

	if c.Storage.CatalogPath == "" {
		return fmt.Errorf("storage.catalog_path is required")
	}
	backend := strings.ToLower(c.Storage.LexicalBackend)
	if backend != "sqlite" && backend != "bleve" {
		return fmt.Errorf("storage.lexical_backend must be 'sqlite' or 'bleve', got %s", c.Storage.LexicalBackend)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	if _, err := time.ParseDuration(c.Server.WatchDebounce); err != nil {
		return fmt.Errorf("server.watch_debounce: %w", err)
	}

	return nil
}

// EmbedTimeout returns Embeddings.Timeout as a duration.
func (c *Config) EmbedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embeddings.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Debounce returns Server.WatchDebounce as a duration.
func (c *Config) Debounce() time.Duration {
	d, err := time.ParseDuration(c.Server.WatchDebounce)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// IndexDBPath is the SQLite file holding the FTS table and embeddings.
func (c *Config) IndexDBPath() string {
	return filepath.Join(c.Storage.DataDir, "index.db")
}

// BlevePath is the directory of the bleve lexical index.
func (c *Config) BlevePath() string {
	return filepath.Join(c.Storage.DataDir, "lexical.bleve")
}

// RebuildLockPath is the cross-process rebuild lock file.
func (c *Config) RebuildLockPath() string {
	return filepath.Join(c.Storage.DataDir, "rebuild.lock")
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
