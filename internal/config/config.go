package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Search    SearchConfig    `yaml:"search"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// GeminiConfig holds model names and the API key for the hosted
// chat/embedding provider. The key is never written to the config file;
// it comes from the environment only.
type GeminiConfig struct {
	BaseURL      string `yaml:"base_url"`
	ChatModel    string `yaml:"chat_model"`
	ExtractModel string `yaml:"extract_model"`
	EmbedModel   string `yaml:"embed_model"`
	APIKey       string `yaml:"-"`
}

// SearchConfig holds Google Custom Search credentials and limits.
// Credentials come from the environment only.
type SearchConfig struct {
	ResultCount int    `yaml:"result_count"`
	APIKey      string `yaml:"-"`
	EngineID    string `yaml:"-"`
}

type RetrievalConfig struct {
	TopK          int `yaml:"top_k"`
	MaxChunkChars int `yaml:"max_chunk_chars"`
	HistoryTurns  int `yaml:"history_turns"`
}

// FetchConfig controls the optional full-page fetch step. When a search
// snippet is shorter than MinSnippetChars and Enabled is true, the result
// URL is fetched and its visible text is indexed instead of the snippet.
type FetchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	TimeoutSecs     int    `yaml:"timeout_secs"`
	MinSnippetChars int    `yaml:"min_snippet_chars"`
	MaxPageChars    int    `yaml:"max_page_chars"`
	UserAgent       string `yaml:"user_agent"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{Port: 4600},
		Gemini: GeminiConfig{
			BaseURL:      "https://generativelanguage.googleapis.com/v1beta",
			ChatModel:    "gemini-1.5-flash",
			ExtractModel: "gemini-1.5-flash",
			EmbedModel:   "text-embedding-004",
		},
		Search: SearchConfig{ResultCount: 5},
		Retrieval: RetrievalConfig{
			TopK:          3,
			MaxChunkChars: 500,
			HistoryTurns:  10,
		},
		Fetch: FetchConfig{
			Enabled:         false,
			TimeoutSecs:     10,
			MinSnippetChars: 80,
			MaxPageChars:    8000,
			UserAgent:       "askfirm/1.0",
		},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Log:     LogConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".askfirm"
	}
	return filepath.Join(home, ".local", "share", "askfirm")
}

// DefaultConfigPath returns the config file location, honoring
// ASKFIRM_CONFIG and XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	if p := os.Getenv("ASKFIRM_CONFIG"); p != "" {
		return p
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "askfirm", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "askfirm", "config.yaml")
}

// Load reads configuration from the YAML config file (if present), then
// applies ASKFIRM_* environment overrides and validates that all required
// API credentials are set. A missing credential is a fatal configuration
// error: the caller must not start serving without it.
func Load() (Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom is Load with an explicit config file path, used by tests.
func LoadFrom(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// No config file is fine; defaults + env apply.
	default:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if missing := missingCredentials(cfg); len(missing) > 0 {
		return Config{}, fmt.Errorf(
			"missing required configuration: %s (set them in the environment or a .env file)",
			strings.Join(missing, ", "))
	}

	return cfg, nil
}

// applyEnvOverrides applies ASKFIRM_* variables on top of file values.
// Credentials additionally accept the provider's conventional names so a
// shared .env keeps working.
func applyEnvOverrides(cfg *Config) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse int from %s=%q: %v. Using default value.\n", key, v, err)
			return
		}
		*dst = n
	}
	setBool := func(dst *bool, key string) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from %s=%q: %v. Using default value.\n", key, v, err)
			return
		}
		*dst = b
	}

	setInt(&cfg.Server.Port, "ASKFIRM_SERVER_PORT")
	setString(&cfg.Gemini.BaseURL, "ASKFIRM_GEMINI_BASE_URL")
	setString(&cfg.Gemini.ChatModel, "ASKFIRM_GEMINI_CHAT_MODEL")
	setString(&cfg.Gemini.ExtractModel, "ASKFIRM_GEMINI_EXTRACT_MODEL")
	setString(&cfg.Gemini.EmbedModel, "ASKFIRM_GEMINI_EMBED_MODEL")
	setString(&cfg.Gemini.APIKey, "ASKFIRM_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	setString(&cfg.Search.APIKey, "ASKFIRM_SEARCH_API_KEY", "GOOGLE_API_KEY_FOR_SEARCH")
	setString(&cfg.Search.EngineID, "ASKFIRM_SEARCH_ENGINE_ID", "GOOGLE_CSE_ID")
	setInt(&cfg.Search.ResultCount, "ASKFIRM_SEARCH_RESULT_COUNT")
	setInt(&cfg.Retrieval.TopK, "ASKFIRM_RETRIEVAL_TOP_K")
	setInt(&cfg.Retrieval.MaxChunkChars, "ASKFIRM_RETRIEVAL_MAX_CHUNK_CHARS")
	setInt(&cfg.Retrieval.HistoryTurns, "ASKFIRM_RETRIEVAL_HISTORY_TURNS")
	setBool(&cfg.Fetch.Enabled, "ASKFIRM_FETCH_ENABLED")
	setInt(&cfg.Fetch.TimeoutSecs, "ASKFIRM_FETCH_TIMEOUT_SECS")
	setString(&cfg.Storage.DataDir, "ASKFIRM_STORAGE_DATA_DIR")
	setString(&cfg.Log.Level, "ASKFIRM_LOG_LEVEL")
}

func missingCredentials(cfg Config) []string {
	var missing []string
	if cfg.Gemini.APIKey == "" {
		missing = append(missing, "ASKFIRM_GEMINI_API_KEY")
	}
	if cfg.Search.APIKey == "" {
		missing = append(missing, "ASKFIRM_SEARCH_API_KEY")
	}
	if cfg.Search.EngineID == "" {
		missing = append(missing, "ASKFIRM_SEARCH_ENGINE_ID")
	}
	return missing
}

// Save writes the non-secret parts of the config to path, creating
// directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Setting is a key/value pair for `config show`.
type Setting struct {
	Key   string
	Value string
}

// ShowAll returns the resolved configuration as displayable key/value
// pairs. Secrets are redacted.
func ShowAll(cfg Config) []Setting {
	redact := func(s string) string {
		if s == "" {
			return "(not set)"
		}
		return "********"
	}
	return []Setting{
		{"server.port", strconv.Itoa(cfg.Server.Port)},
		{"gemini.base_url", cfg.Gemini.BaseURL},
		{"gemini.chat_model", cfg.Gemini.ChatModel},
		{"gemini.extract_model", cfg.Gemini.ExtractModel},
		{"gemini.embed_model", cfg.Gemini.EmbedModel},
		{"gemini.api_key", redact(cfg.Gemini.APIKey)},
		{"search.api_key", redact(cfg.Search.APIKey)},
		{"search.engine_id", redact(cfg.Search.EngineID)},
		{"search.result_count", strconv.Itoa(cfg.Search.ResultCount)},
		{"retrieval.top_k", strconv.Itoa(cfg.Retrieval.TopK)},
		{"retrieval.max_chunk_chars", strconv.Itoa(cfg.Retrieval.MaxChunkChars)},
		{"retrieval.history_turns", strconv.Itoa(cfg.Retrieval.HistoryTurns)},
		{"fetch.enabled", strconv.FormatBool(cfg.Fetch.Enabled)},
		{"storage.data_dir", cfg.Storage.DataDir},
		{"log.level", cfg.Log.Level},
	}
}

// SetKey updates a single settable key in the config file. Secrets are
// rejected: they live in the environment, not on disk.
func SetKey(path, key, value string) error {
	cfg := defaults()
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	atoi := func(v string) (int, error) {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s requires an integer, got %q", key, v)
		}
		return n, nil
	}

	switch key {
	case "server.port":
		n, err := atoi(value)
		if err != nil {
			return err
		}
		cfg.Server.Port = n
	case "gemini.base_url":
		cfg.Gemini.BaseURL = value
	case "gemini.chat_model":
		cfg.Gemini.ChatModel = value
	case "gemini.extract_model":
		cfg.Gemini.ExtractModel = value
	case "gemini.embed_model":
		cfg.Gemini.EmbedModel = value
	case "search.result_count":
		n, err := atoi(value)
		if err != nil {
			return err
		}
		cfg.Search.ResultCount = n
	case "retrieval.top_k":
		n, err := atoi(value)
		if err != nil {
			return err
		}
		cfg.Retrieval.TopK = n
	case "retrieval.max_chunk_chars":
		n, err := atoi(value)
		if err != nil {
			return err
		}
		cfg.Retrieval.MaxChunkChars = n
	case "retrieval.history_turns":
		n, err := atoi(value)
		if err != nil {
			return err
		}
		cfg.Retrieval.HistoryTurns = n
	case "fetch.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s requires a boolean, got %q", key, value)
		}
		cfg.Fetch.Enabled = b
	case "storage.data_dir":
		cfg.Storage.DataDir = value
	case "log.level":
		cfg.Log.Level = value
	case "gemini.api_key", "search.api_key", "search.engine_id":
		return fmt.Errorf("%s is a secret; set it via the environment or a .env file", key)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}

	return Save(path, cfg)
}
