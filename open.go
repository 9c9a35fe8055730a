package chatstate

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goliatone/go-chatstate/layering"
	"github.com/goliatone/go-chatstate/pkg/activity"
	"github.com/goliatone/go-chatstate/pkg/config"
	"github.com/goliatone/go-chatstate/pkg/storage"
)

// Open builds the storage backend described by cfg and a registry on top of
// it. Options given by the caller are applied after the configured ones.
// With activity enabled, events are logged as text to stderr at the
// configured level. Close the registry to release the backend.
func Open(cfg config.Config, opts ...Option) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	adapter, closer, err := openBackend(cfg.Storage)
	if err != nil {
		return nil, err
	}

	configured := []Option{
		WithStorage(adapter),
		WithOrigin(cfg.Storage.Origin),
		WithEngine(cfg.Rules.Engine),
		withCloser(closer),
	}
	if !cfg.Rules.Defaults {
		configured = append(configured, WithoutDefaultRules())
	}
	for key, exprs := range cfg.Rules.Custom {
		configured = append(configured, WithRules(key, exprs...))
	}
	if cfg.Activity.Enabled {
		level, _ := cfg.Activity.SlogLevel()
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		configured = append(configured,
			WithActivityChannel(cfg.Activity.Channel),
			WithActivityHooks(activity.SlogHook{Logger: logger}),
		)
		if level <= slog.LevelDebug {
			configured = append(configured, WithEvaluatorLogger(SlogEvaluatorLogger(logger)))
		}
	}
	if cfg.Model.Code != "" {
		model, err := modelFromConfig(cfg.Model)
		if err != nil {
			closeQuietly(closer)
			return nil, err
		}
		configured = append(configured, WithDefaultModel(model))
	}

	registry, err := New(append(configured, opts...)...)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}
	return registry, nil
}

func openBackend(cfg config.StorageConfig) (storage.Adapter, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendFile:
		store, err := storage.OpenFileStore(cfg.Path, storage.WithFileQuota(cfg.QuotaBytes))
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.BackendSQLite:
		store, err := storage.OpenSQLiteStore(cfg.Path, storage.WithSQLiteQuota(cfg.QuotaBytes))
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return storage.NewMemoryStore(storage.WithMemoryQuota(cfg.QuotaBytes)), nil, nil
	}
}

// modelFromConfig fills fields missing from the configured model with the
// catalog entry sharing its code. Codes outside the catalog must be complete.
func modelFromConfig(cfg config.ModelConfig) (GptModel, error) {
	model := GptModel{
		Code:       cfg.Code,
		Name:       cfg.Name,
		InputCost:  cfg.InputCost,
		OutputCost: cfg.OutputCost,
		TokenLimit: cfg.TokenLimit,
	}
	if base, ok := LookupModel(cfg.Code); ok {
		model = layering.Merge([]GptModel{model, base}, layering.WithZeroAsMissing())
	}
	if err := model.Validate(); err != nil {
		return GptModel{}, fmt.Errorf("%w: model: %w", config.ErrInvalidConfig, err)
	}
	return model, nil
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
