package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, `{"site": {"sitemap_url": "https://example.com/post-sitemap.xml"}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Site.MaxConcurrentFetches != 5 {
		t.Errorf("expected default max_concurrent_fetches 5, got %d", cfg.Site.MaxConcurrentFetches)
	}
	if cfg.Search.TopK != 10 || cfg.Search.FinalSuggestions != 5 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Search.MinSimilarity != 0.5 {
		t.Errorf("expected default min_similarity 0.5, got %f", cfg.Search.MinSimilarity)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("expected default provider openai, got %s", cfg.Embedding.Provider)
	}
	if cfg.Generation.Model != "gpt-4o" {
		t.Errorf("expected default generation model gpt-4o, got %s", cfg.Generation.Model)
	}
}

func TestLoadConfigRejectsBadThreshold(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, `{"search": {"min_similarity": 1.5}}`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for min_similarity > 1")
	}
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, `{"embedding": {"provider": "cohere"}}`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown embedding provider")
	}
}

func TestLoadConfigRejectsTopKBelowFinal(t *testing.T) {
	viper.Reset()
	path := writeConfig(t, `{"search": {"top_k": 3, "final_suggestions": 5}}`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error when top_k < final_suggestions")
	}
}
