package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when DATABASE_URL missing")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/studio")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.PollInterval != 3*time.Second {
		t.Errorf("poll interval = %v, want 3s", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 40 {
		t.Errorf("max attempts = %d, want 40", cfg.PollMaxAttempts)
	}
	if cfg.KlingModel != "kling-v1-6" {
		t.Errorf("kling model = %q", cfg.KlingModel)
	}
}

func TestLoadConfigParsesHostLists(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/studio")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RESTRICTED_CORS_HOSTS", "cdn.klingai.com, delivery.bfl.ai ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := []string{"cdn.klingai.com", "delivery.bfl.ai"}
	if len(cfg.RestrictedHosts) != len(want) {
		t.Fatalf("restricted hosts = %v", cfg.RestrictedHosts)
	}
	for i := range want {
		if cfg.RestrictedHosts[i] != want[i] {
			t.Errorf("host[%d] = %q, want %q", i, cfg.RestrictedHosts[i], want[i])
		}
	}
}
