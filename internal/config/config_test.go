package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http addr = %q, want :8080", cfg.HTTP.Addr)
	}
	if cfg.Dispatch != DefaultDispatch() {
		t.Errorf("dispatch = %+v, want defaults", cfg.Dispatch)
	}
	if cfg.Notifier != "fcm" {
		t.Errorf("notifier = %q, want fcm", cfg.Notifier)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISPATCH_TOP_N", "3")
	t.Setenv("DISPATCH_CLAIM_WINDOW", "90s")
	t.Setenv("DISPATCH_MAX_RADIUS_KM", "7.5")
	t.Setenv("DISPATCH_NOTIFIER", "MQTT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.TopN != 3 {
		t.Errorf("top n = %d, want 3", cfg.Dispatch.TopN)
	}
	if cfg.Dispatch.ClaimWindow != 90*time.Second {
		t.Errorf("claim window = %s, want 90s", cfg.Dispatch.ClaimWindow)
	}
	if cfg.Dispatch.MaxRadiusKm != 7.5 {
		t.Errorf("radius = %v, want 7.5", cfg.Dispatch.MaxRadiusKm)
	}
	if cfg.Notifier != "mqtt" {
		t.Errorf("notifier = %q, want mqtt", cfg.Notifier)
	}
}

func TestLoadRejectsInvalidDispatch(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISPATCH_MAX_ATTEMPTS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero max attempts")
	}
}

func TestLoadRejectsUnknownNotifier(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISPATCH_NOTIFIER", "pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown notifier")
	}
}
