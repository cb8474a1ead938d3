// Package app wires the compiler, generation pipeline and warehouse from
// configuration so that the server and the CLI build them the same way.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"semsql/internal/cache"
	"semsql/internal/config"
	"semsql/internal/domain"
	"semsql/internal/ratelimit"
	"semsql/internal/service/generator"
	"semsql/internal/service/semantic"
	"semsql/internal/warehouse"
)

// Deps holds what main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger

	// Generator overrides the model client built from Cfg.LLM. Tests use it
	// to avoid network calls.
	Generator domain.Generator
}

// App holds the fully wired services.
type App struct {
	Semantic  *semantic.Service
	Pipeline  *generator.Pipeline
	Cache     *cache.Store
	Pacer     *ratelimit.Pacer
	Warehouse *warehouse.DuckDB // nil when no DSN is configured
}

// New opens the response cache and, when configured, the model client and
// the warehouse.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// === Compiler ===
	semanticSvc := semantic.NewService(logger.With("component", "semantic"))

	// === Warehouse (optional) ===
	var wh *warehouse.DuckDB
	if cfg.WarehouseDSN != "" {
		var err error
		wh, err = warehouse.Open(ctx, cfg.WarehouseDSN, logger.With("component", "warehouse"))
		if err != nil {
			return nil, fmt.Errorf("open warehouse: %w", err)
		}
		semanticSvc.SetWarehouse(wh)
	}

	// === Response cache ===
	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		closeWarehouse(wh)
		return nil, fmt.Errorf("open cache: %w", err)
	}
	logger.Info("response cache loaded", "path", store.Path(), "entries", store.Len())

	// === Generator (optional) ===
	schema, err := loadSchema(cfg.SchemaFile)
	if err != nil {
		closeWarehouse(wh)
		return nil, err
	}
	gen := deps.Generator
	if gen == nil && cfg.LLM.Enabled() {
		gen = generator.NewOpenAIClient(generator.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Schema:  schema,
		}, logger.With("component", "openai"))
	}

	pacerCfg := ratelimit.DefaultConfig()
	pacerCfg.Timeout = cfg.LLM.Timeout
	pacerCfg.MaxAttempts = cfg.LLM.MaxAttempts
	pacer := ratelimit.NewPacer(pacerCfg, logger.With("component", "pacer"))

	pipeline := generator.NewPipeline(gen, store, pacer, semanticSvc, logger.With("component", "pipeline"),
		generator.WithCandidateModels(cfg.LLM.CandidateModels()...),
		generator.WithDefaultModel(cfg.LLM.Model),
	)

	return &App{
		Semantic:  semanticSvc,
		Pipeline:  pipeline,
		Cache:     store,
		Pacer:     pacer,
		Warehouse: wh,
	}, nil
}

// Close releases the warehouse connection, if any.
func (a *App) Close() error {
	if a.Warehouse == nil {
		return nil
	}
	return a.Warehouse.Close()
}

func closeWarehouse(wh *warehouse.DuckDB) {
	if wh != nil {
		_ = wh.Close()
	}
}

// loadSchema reads the table description given to the model. An empty path
// selects the built-in description.
func loadSchema(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		return "", fmt.Errorf("read schema file: %w", err)
	}
	return string(data), nil
}
