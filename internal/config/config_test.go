package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Match.Threshold != 0.40 {
		t.Errorf("expected threshold 0.40, got %v", cfg.Match.Threshold)
	}
	if cfg.Normalizer.MinSide != 320 {
		t.Errorf("expected min side 320, got %d", cfg.Normalizer.MinSide)
	}
	if cfg.Normalizer.LongSide != 1080 {
		t.Errorf("expected long side 1080, got %d", cfg.Normalizer.LongSide)
	}
	if cfg.Normalizer.JPEGQuality != 90 {
		t.Errorf("expected JPEG quality 90, got %d", cfg.Normalizer.JPEGQuality)
	}
	if cfg.Normalizer.BlurThreshold != 80 {
		t.Errorf("expected blur threshold 80, got %v", cfg.Normalizer.BlurThreshold)
	}
	if got := cfg.Scan.FetchTimeout(); got != 5*time.Second {
		t.Errorf("expected fetch timeout 5s, got %v", got)
	}
	if cfg.Scan.InferenceParallelism != 1 {
		t.Errorf("expected inference parallelism 1, got %d", cfg.Scan.InferenceParallelism)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("unexpected database pool defaults: %+v", cfg.Database)
	}
}

func TestUploadsTemplate(t *testing.T) {
	cfg := Defaults()

	tests := []struct {
		postType string
		expected string
	}{
		{"missing", "missing_posts/{author}/{uuid}.jpg"},
		{"found", "found_posts/{uuid}.jpg"},
		{"other", ""},
	}

	for _, tt := range tests {
		t.Run(tt.postType, func(t *testing.T) {
			if got := cfg.Uploads.Template(tt.postType); got != tt.expected {
				t.Errorf("Template(%q) = %q, want %q", tt.postType, got, tt.expected)
			}
		})
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		defaultVal int
		expected   int
	}{
		{"unset", "", 7, 7},
		{"valid", "12", 7, 12},
		{"zero falls back", "0", 7, 7},
		{"negative falls back", "-3", 7, 7},
		{"garbage falls back", "abc", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tt.value)
			if got := envInt("TEST_ENV_INT", tt.defaultVal); got != tt.expected {
				t.Errorf("envInt() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestEnvFloat(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected float64
	}{
		{"unset", "", 0.4},
		{"valid", "0.35", 0.35},
		{"zero falls back", "0", 0.4},
		{"garbage falls back", "x", 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_FLOAT", tt.value)
			if got := envFloat("TEST_ENV_FLOAT", 0.4); got != tt.expected {
				t.Errorf("envFloat() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.3")
	t.Setenv("SCAN_WORKERS", "3")
	t.Setenv("FETCH_TIMEOUT_SECONDS", "2")
	t.Setenv("EMBEDDING_URL", "http://faces:8000")
	t.Setenv("EMBEDDING_CACHE", "true")
	t.Setenv("DATABASE_URL", "postgres://localhost/safefind")
	t.Setenv("S3_BUCKET", "posts")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg := Load()

	if cfg.Match.Threshold != 0.3 {
		t.Errorf("expected threshold 0.3, got %v", cfg.Match.Threshold)
	}
	if cfg.Scan.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Scan.Workers)
	}
	if cfg.Scan.FetchTimeout() != 2*time.Second {
		t.Errorf("expected 2s timeout, got %v", cfg.Scan.FetchTimeout())
	}
	if cfg.Embedding.URL != "http://faces:8000" || !cfg.Embedding.Cache {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if cfg.Database.URL != "postgres://localhost/safefind" {
		t.Errorf("unexpected database URL: %s", cfg.Database.URL)
	}
	if !cfg.Storage.Enabled() {
		t.Error("expected storage to be enabled")
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if len(cfg.Web.AllowedOrigins) != 2 {
		t.Errorf("expected 2 allowed origins, got %v", cfg.Web.AllowedOrigins)
	}
	if cfg.Web.Host != "0.0.0.0" {
		t.Errorf("expected default host, got %s", cfg.Web.Host)
	}
}
