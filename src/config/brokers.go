package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Broker describes how to reach one brokerage API
type Broker struct {
	BaseURL     string `yaml:"base_url"`
	DisplayName string `yaml:"display_name"`
}

// BrokerRegistry maps a credential's broker_type to its API endpoint
type BrokerRegistry map[string]Broker

// defaultBrokers covers the brokerages supported out of the box
var defaultBrokers = BrokerRegistry{
	"alpaca": {
		BaseURL:     "https://api.alpaca.markets",
		DisplayName: "Alpaca Live",
	},
	"alpaca_paper": {
		BaseURL:     "https://paper-api.alpaca.markets",
		DisplayName: "Alpaca Paper",
	},
}

// LoadBrokerRegistry returns the broker registry, merged with an optional
// YAML override file. Entries in the file replace or extend the defaults.
func LoadBrokerRegistry(path string) (BrokerRegistry, error) {
	registry := make(BrokerRegistry, len(defaultBrokers))
	for name, b := range defaultBrokers {
		registry[name] = b
	}

	if path == "" {
		return registry, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied config
	if err != nil {
		return nil, fmt.Errorf("failed to read broker config %s: %w", path, err)
	}

	var overrides BrokerRegistry
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse broker config %s: %w", path, err)
	}

	for name, b := range overrides {
		if b.BaseURL == "" {
			return nil, fmt.Errorf("broker %q in %s has no base_url", name, path)
		}
		registry[name] = b
	}

	return registry, nil
}

// Lookup returns the broker entry for a credential type
func (r BrokerRegistry) Lookup(brokerType string) (Broker, bool) {
	b, ok := r[brokerType]
	return b, ok
}
