package config

import "testing"

func TestSettings_UsesFileKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.EncryptionKey = "hunter2"
	settings := cfg.Redacted(nil).Settings()

	store, ok := settings["store"].(map[string]any)
	if !ok {
		t.Fatalf("expected store section, got %v", settings)
	}
	if store["collection"] != "default" {
		t.Errorf("collection = %v", store["collection"])
	}
	if store["cache_ttl"] != "1m0s" {
		t.Errorf("cache_ttl = %v, want 1m0s", store["cache_ttl"])
	}
	if store["encryption_key"] != "***" {
		t.Errorf("encryption key not redacted: %v", store["encryption_key"])
	}
	rest := settings["transport"].(map[string]any)["rest"].(map[string]any)
	if rest["burst"] != 5 {
		t.Errorf("burst = %v", rest["burst"])
	}
}
