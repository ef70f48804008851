package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ProviderConfig selects a directory backend and carries its raw settings
type ProviderConfig struct {
	Type   string          `yaml:"type" json:"type"`
	Config json.RawMessage `yaml:"config" json:"config"`
}

// PluginConfig provides initialization parameters to directory plugins
type PluginConfig struct {
	// Config contains plugin-specific configuration
	Config json.RawMessage

	Logger *slog.Logger
}

// PluginFactory creates a directory from configuration
type PluginFactory func(config PluginConfig) (Directory, error)

var (
	registry = make(map[string]PluginFactory)
	mu       sync.RWMutex
)

// RegisterProvider registers a directory factory for a provider type
func RegisterProvider(providerType string, factory PluginFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[providerType] = factory
}

// NewDirectory creates a directory from provider configuration
func NewDirectory(providerConfig ProviderConfig, pluginConfig PluginConfig) (Directory, error) {
	mu.RLock()
	factory, ok := registry[providerConfig.Type]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown directory provider type: %s", providerConfig.Type)
	}

	pluginConfig.Config = providerConfig.Config
	if len(pluginConfig.Config) == 0 {
		pluginConfig.Config = json.RawMessage("{}")
	}
	if pluginConfig.Logger == nil {
		pluginConfig.Logger = slog.Default()
	}
	return factory(pluginConfig)
}

// ListProviders returns registered provider types, sorted
func ListProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}
