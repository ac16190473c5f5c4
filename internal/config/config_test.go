package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("ASKFIRM_GEMINI_API_KEY", "test-gemini-key")
	t.Setenv("ASKFIRM_SEARCH_API_KEY", "test-search-key")
	t.Setenv("ASKFIRM_SEARCH_ENGINE_ID", "test-engine-id")
}

func TestLoadFrom_DefaultsWhenNoFile(t *testing.T) {
	setCredentials(t)

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4600 {
		t.Errorf("Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.Retrieval.TopK)
	}
	if cfg.Search.ResultCount != 5 {
		t.Errorf("ResultCount = %d, want 5", cfg.Search.ResultCount)
	}
	if cfg.Gemini.APIKey != "test-gemini-key" {
		t.Errorf("APIKey = %q, want env value", cfg.Gemini.APIKey)
	}
}

func TestLoadFrom_FileValues(t *testing.T) {
	setCredentials(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: 9900\nretrieval:\n  top_k: 7\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9900 {
		t.Errorf("Port = %d, want 9900", cfg.Server.Port)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Errorf("TopK = %d, want 7", cfg.Retrieval.TopK)
	}
	// Untouched fields keep defaults.
	if cfg.Retrieval.MaxChunkChars != 500 {
		t.Errorf("MaxChunkChars = %d, want default 500", cfg.Retrieval.MaxChunkChars)
	}
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	setCredentials(t)
	t.Setenv("ASKFIRM_SERVER_PORT", "7777")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9900\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Port = %d, want env override 7777", cfg.Server.Port)
	}
}

func TestLoadFrom_MissingCredentialsFatal(t *testing.T) {
	t.Setenv("ASKFIRM_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("ASKFIRM_SEARCH_API_KEY", "key")
	t.Setenv("GOOGLE_API_KEY_FOR_SEARCH", "")
	t.Setenv("ASKFIRM_SEARCH_ENGINE_ID", "id")
	t.Setenv("GOOGLE_CSE_ID", "")

	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing Gemini key")
	}
	if !strings.Contains(err.Error(), "ASKFIRM_GEMINI_API_KEY") {
		t.Errorf("error should name the missing variable: %v", err)
	}
}

func TestLoadFrom_ProviderEnvFallbacks(t *testing.T) {
	t.Setenv("ASKFIRM_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "fallback-gemini")
	t.Setenv("ASKFIRM_SEARCH_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY_FOR_SEARCH", "fallback-search")
	t.Setenv("ASKFIRM_SEARCH_ENGINE_ID", "")
	t.Setenv("GOOGLE_CSE_ID", "fallback-cse")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "fallback-gemini" {
		t.Errorf("APIKey = %q, want GEMINI_API_KEY fallback", cfg.Gemini.APIKey)
	}
	if cfg.Search.EngineID != "fallback-cse" {
		t.Errorf("EngineID = %q, want GOOGLE_CSE_ID fallback", cfg.Search.EngineID)
	}
}

func TestSetKey_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := SetKey(path, "retrieval.top_k", "6"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}

	setCredentials(t)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Retrieval.TopK != 6 {
		t.Errorf("TopK = %d, want 6", cfg.Retrieval.TopK)
	}
}

func TestSetKey_RejectsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SetKey(path, "gemini.api_key", "secret"); err == nil {
		t.Fatal("expected error when setting a secret key")
	}
}

func TestSetKey_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SetKey(path, "does.not.exist", "x"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestShowAll_RedactsSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Gemini.APIKey = "very-secret"

	for _, s := range ShowAll(cfg) {
		if strings.Contains(s.Value, "very-secret") {
			t.Errorf("secret leaked in %s = %s", s.Key, s.Value)
		}
	}
}
