package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadBrokerRegistry_Defaults(t *testing.T) {
	registry, err := LoadBrokerRegistry("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alpaca, ok := registry.Lookup("alpaca")
	if !ok {
		t.Fatal("expected built-in alpaca broker")
	}
	if alpaca.BaseURL != "https://api.alpaca.markets" {
		t.Errorf("unexpected alpaca base URL: %s", alpaca.BaseURL)
	}

	if _, ok := registry.Lookup("alpaca_paper"); !ok {
		t.Error("expected built-in alpaca_paper broker")
	}

	if _, ok := registry.Lookup("nonexistent"); ok {
		t.Error("lookup of unknown broker must fail")
	}
}

func TestLoadBrokerRegistry_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brokers.yml")
	content := `
alpaca:
  base_url: https://proxy.internal/alpaca
  display_name: Alpaca via proxy
custom_broker:
  base_url: https://api.custom.test
  display_name: Custom
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	registry, err := LoadBrokerRegistry(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alpaca, _ := registry.Lookup("alpaca")
	if alpaca.BaseURL != "https://proxy.internal/alpaca" {
		t.Errorf("override not applied: %s", alpaca.BaseURL)
	}

	if _, ok := registry.Lookup("custom_broker"); !ok {
		t.Error("expected custom broker from override file")
	}

	// Defaults not named in the file survive the merge
	if _, ok := registry.Lookup("alpaca_paper"); !ok {
		t.Error("expected alpaca_paper to survive override")
	}
}

func TestLoadBrokerRegistry_Invalid(t *testing.T) {
	if _, err := LoadBrokerRegistry("/nonexistent/path.yml"); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.yml")
	if err := os.WriteFile(path, []byte("not: [valid"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadBrokerRegistry(path); err == nil {
		t.Error("expected error for malformed YAML")
	}

	path = filepath.Join(t.TempDir(), "nourl.yml")
	if err := os.WriteFile(path, []byte("broker_x:\n  display_name: X\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadBrokerRegistry(path); err == nil {
		t.Error("expected error for broker without base_url")
	}
}
