// Package providerfactory builds the upstream inference API client named in
// the provider configuration.
package providerfactory

import (
	"fmt"
	"log/slog"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/providers"
	"mercator-hq/tollgate/pkg/providers/openai"
)

// NewProvider creates the provider selected by cfg.Type.
//
// Supported provider types:
//   - "openai": the OpenAI API, or any OpenAI-compatible server when
//     BaseURL is set (Ollama, vLLM, LM Studio)
//
// Example:
//
//	provider, err := providerfactory.NewProvider(cfg.Provider, logger)
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
func NewProvider(cfg config.ProviderConfig, logger *slog.Logger) (providers.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	providerType := cfg.Type
	if providerType == "" {
		providerType = "openai"
	}

	logger.Debug("creating provider",
		"type", providerType,
		"base_url", cfg.BaseURL,
	)

	var provider providers.Provider
	var err error

	switch providerType {
	case "openai":
		provider, err = openai.NewClient(openai.Config{
			Name:         providerType,
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Organization: cfg.Organization,
			Timeout:      cfg.Timeout,
		})

	default:
		return nil, &providers.ValidationError{
			Field:   "provider.type",
			Message: fmt.Sprintf("unsupported provider type: %q (supported: openai)", providerType),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", providerType, err)
	}

	logger.Info("provider created", "name", provider.Name(), "type", providerType)
	return provider, nil
}
