package main

import (
	"context"

	"github.com/Zhanna110/worldsmith-v3/internal/budget"
	"github.com/Zhanna110/worldsmith-v3/internal/config"
	"github.com/Zhanna110/worldsmith-v3/internal/embedder"
	"github.com/Zhanna110/worldsmith-v3/internal/ingest"
	"github.com/Zhanna110/worldsmith-v3/internal/llm"
	"github.com/Zhanna110/worldsmith-v3/internal/registry"
	"github.com/Zhanna110/worldsmith-v3/internal/retrieval"
	"github.com/Zhanna110/worldsmith-v3/internal/vault"
)

// app wires the shared services commands operate on. Commands construct only
// what they need via the with* options.
type app struct {
	cfg *config.Config

	store     retrieval.Store
	embedder  embedder.Embedder
	retriever *retrieval.Service
	ingester  *ingest.Ingester
	vault     *vault.Vault
	registry  *registry.Registry
	ledger    *budget.Ledger
	guard     *budget.Guard
	provider  llm.Provider
}

// newApp builds the service graph from loaded configuration.
func newApp(ctx context.Context, needLLM, needBudget bool) (*app, error) {
	a := &app{cfg: cfg}

	var err error
	a.vault, err = vault.New(cfg.Vault.Root)
	if err != nil {
		return nil, err
	}

	a.registry, err = registry.Open(cfg.Vault.RegistryPath, registry.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	a.embedder, err = embedder.New(ctx, embedder.Config{
		Provider:   cfg.Embedder.Provider,
		Model:      cfg.Embedder.Model,
		APIKey:     cfg.Embedder.APIKey,
		Dimensions: cfg.Embedder.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	a.store, err = retrieval.NewStore(retrieval.StoreConfig{
		Backend:    cfg.Retrieval.Backend,
		Path:       cfg.Retrieval.Path,
		Dimensions: a.embedder.Dimensions(),
	})
	if err != nil {
		return nil, err
	}

	a.retriever = retrieval.NewService(a.store, a.embedder, retrieval.WithLogger(logger))
	a.ingester = ingest.New(a.store, a.embedder, ingest.WithLogger(logger))

	if needLLM {
		a.provider, err = llm.NewProvider(ctx, llm.ProviderConfig{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	if needBudget {
		a.ledger, err = budget.OpenLedger(cfg.Budget.LedgerPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.guard, err = budget.NewGuard(cfg.Budget.DailyTokenCeiling, a.ledger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

// Close releases held resources, tolerating partially built apps.
func (a *app) Close() {
	if a.registry != nil {
		if err := a.registry.Save(); err != nil {
			logger.Error("failed to save registry", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Error("failed to close retrieval store", "error", err)
		}
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			logger.Error("failed to close budget ledger", "error", err)
		}
	}
}
