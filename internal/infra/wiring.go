package infra

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"studio/internal/lifecycle"
	"studio/internal/providers/flux"
	"studio/internal/providers/kling"
	"studio/internal/providers/prompt"
	"studio/internal/providers/suno"
	"studio/internal/storage"
)

// BuildAdapters constructs the provider adapters for every configured
// upstream. Providers without credentials are skipped so a deployment can
// run with any subset of them.
func BuildAdapters(cfg *Config, logger zerolog.Logger) (map[string]lifecycle.Adapter, error) {
	adapters := make(map[string]lifecycle.Adapter)

	if cfg.KlingAccessKey != "" && cfg.KlingSecretKey != "" {
		signer, err := kling.NewHMACSigner(cfg.KlingAccessKey, cfg.KlingSecretKey)
		if err != nil {
			return nil, fmt.Errorf("kling signer: %w", err)
		}
		client, err := kling.NewClient(kling.Options{
			BaseURL: cfg.KlingBaseURL,
			Signer:  signer,
			Model:   cfg.KlingModel,
			Logger:  &logger,
		})
		if err != nil {
			return nil, fmt.Errorf("kling client: %w", err)
		}
		for _, adapter := range []lifecycle.Adapter{client.Text2Video(), client.Image2Video()} {
			adapters[adapter.Provider()] = adapter
		}
	}

	if cfg.FluxAPIKey != "" {
		client, err := flux.NewClient(flux.Options{
			BaseURL: cfg.FluxBaseURL,
			APIKey:  cfg.FluxAPIKey,
			Logger:  &logger,
		})
		if err != nil {
			return nil, fmt.Errorf("flux client: %w", err)
		}
		for _, adapter := range []lifecycle.Adapter{client.Inpaint(), client.Kontext()} {
			adapters[adapter.Provider()] = adapter
		}
	}

	if cfg.SunoAPIKey != "" {
		client, err := suno.NewClient(suno.Options{
			BaseURL: cfg.SunoBaseURL,
			APIKey:  cfg.SunoAPIKey,
			Model:   cfg.SunoModel,
			Logger:  &logger,
		})
		if err != nil {
			return nil, fmt.Errorf("suno client: %w", err)
		}
		adapters[client.Provider()] = client
	}

	return adapters, nil
}

// NewRefiner builds the prompt assistant. Without an OpenAI key the static
// template refiner serves alone.
func NewRefiner(cfg *Config, logger zerolog.Logger) (prompt.Refiner, error) {
	static := prompt.NewStaticRefiner()
	if cfg.OpenAIAPIKey == "" {
		return static, nil
	}
	return prompt.NewOpenAIRefiner(prompt.OpenAIOptions{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		Fallback:     static,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("prompt refiner fell back to templates")
		},
	})
}

// NewStore selects object storage when MinIO is configured, the local
// filesystem otherwise.
func NewStore(ctx context.Context, cfg *Config) (storage.Store, error) {
	if cfg.MinioEndpoint != "" {
		return storage.NewObjectStore(ctx, storage.ObjectStoreOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}
