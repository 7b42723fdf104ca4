package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestSecret_NeverLeaks(t *testing.T) {
	s := Secret("hunter2")

	if got := fmt.Sprintf("%s %v %#v", s, s, s); strings.Contains(got, "hunter2") {
		t.Errorf("formatted secret leaked: %q", got)
	}

	data, err := json.Marshal(struct{ Password Secret }{Password: s})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Errorf("marshalled secret leaked: %s", data)
	}

	if s.Value() != "hunter2" {
		t.Errorf("Value() = %q, want the raw secret", s.Value())
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.TopK != 10 {
		t.Errorf("TopK = %d, want 10", cfg.TopK)
	}
	if cfg.RelevanceThreshold != 0.5 {
		t.Errorf("RelevanceThreshold = %v, want 0.5", cfg.RelevanceThreshold)
	}
	if cfg.MinQuality != 0.6 {
		t.Errorf("MinQuality = %v, want 0.6", cfg.MinQuality)
	}
	if cfg.MaxPerType != 2 {
		t.Errorf("MaxPerType = %d, want 2", cfg.MaxPerType)
	}
	if cfg.QdrantAddr != "localhost:6334" {
		t.Errorf("QdrantAddr = %q, want localhost:6334", cfg.QdrantAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("RETRIEVAL_TOP_K", "25")
	t.Setenv("RELEVANCE_THRESHOLD", "0.35")
	t.Setenv("MIN_QUALITY", "0")
	t.Setenv("MAX_PER_TYPE", "5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.TopK != 25 || cfg.RelevanceThreshold != 0.35 || cfg.MinQuality != 0 || cfg.MaxPerType != 5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "top k not a number", key: "RETRIEVAL_TOP_K", value: "many"},
		{name: "top k out of range", key: "RETRIEVAL_TOP_K", value: "0"},
		{name: "threshold out of range", key: "RELEVANCE_THRESHOLD", value: "1.5"},
		{name: "min quality negative", key: "MIN_QUALITY", value: "-0.1"},
		{name: "max per type out of range", key: "MAX_PER_TYPE", value: "500"},
		{name: "bad log level", key: "LOG_LEVEL", value: "verbose"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "test-key")
			t.Setenv(tc.key, tc.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q succeeded, want error", tc.key, tc.value)
			}
		})
	}
}

func TestValidate_RequiresEmbeddingProvider(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	if err := cfg.validate(); err == nil {
		t.Error("validate() without any embedding provider succeeded, want error")
	}
}
