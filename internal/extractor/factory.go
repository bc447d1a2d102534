package extractor

import (
	"fmt"

	"customsdesk/internal/config"
	"customsdesk/internal/port"
)

// ProviderFactory creates an Extractor from a provider config.
type ProviderFactory func(cfg *config.ExtractorProviderConfig) (port.Extractor, error)

// registry of extraction providers, populated via RegisterProvider at startup.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers an extraction provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewExtractor creates an Extractor from a provider config using the registered factory.
func NewExtractor(cfg *config.ExtractorProviderConfig) (port.Extractor, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown extractor provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// Build creates the configured primary extractor, wrapped in a FallbackExtractor
// when a secondary provider is configured.
func Build(cfg *config.ExtractorConfig) (port.Extractor, error) {
	primary, err := NewExtractor(&cfg.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary extractor: %w", err)
	}
	secondaryCfg := cfg.SecondaryConfig()
	if secondaryCfg == nil {
		return primary, nil
	}
	secondary, err := NewExtractor(secondaryCfg)
	if err != nil {
		return nil, fmt.Errorf("secondary extractor: %w", err)
	}
	return NewFallbackExtractor(
		[]port.Extractor{primary, secondary},
		[]string{cfg.Primary.Provider, secondaryCfg.Provider},
	), nil
}
