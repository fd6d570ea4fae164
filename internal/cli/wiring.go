package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CareClaw/CareClaw/internal/agent"
	"github.com/CareClaw/CareClaw/internal/bus"
	"github.com/CareClaw/CareClaw/internal/config"
	"github.com/CareClaw/CareClaw/internal/geo"
	"github.com/CareClaw/CareClaw/internal/memory"
	"github.com/CareClaw/CareClaw/internal/provider"
	"github.com/CareClaw/CareClaw/internal/tokens"
	"github.com/CareClaw/CareClaw/internal/tools"
	"github.com/CareClaw/CareClaw/internal/transcript"
)

// runtimeParts holds the wired components shared by serve, chat and the
// knowledge commands.
type runtimeParts struct {
	cfg        *config.Config
	bus        *bus.MessageBus
	provider   *provider.OpenAIProvider
	transcript *transcript.Store
	retriever  *memory.Retriever
	loop       *agent.Loop
}

func buildRuntime(cfg *config.Config) (*runtimeParts, error) {
	if cfg.Providers.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("API key not found: set CARECLAW_OPENAI_API_KEY or OPENAI_API_KEY, or use config.json")
	}

	msgBus := bus.NewMessageBus()
	prov := provider.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, cfg.Model.Name)

	os.MkdirAll(filepath.Dir(cfg.Paths.TranscriptDB), 0755)
	store, err := transcript.Open(cfg.Paths.TranscriptDB)
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}

	retriever, err := buildRetriever(cfg, prov, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewSearchTool(cfg.Tools.Search.APIKey, cfg.Tools.Search.APIBase))
	registry.Register(tools.NewAlertTool(cfg.Tools.Alert.SlackWebhookURL))

	loop := agent.NewLoop(agent.LoopOptions{
		Bus:        msgBus,
		Provider:   prov,
		Transcript: store,
		Retriever:  retriever,
		Geo:        geo.NewResolver(cfg.Geo.BaseURL, cfg.Geo.UserAgent),
		Registry:   registry,
		Budget: tokens.Budget{
			TotalTokens:           cfg.Budget.TotalTokens,
			SystemReserve:         cfg.Budget.SystemReserve,
			KnowledgeCap:          cfg.Budget.KnowledgeCap,
			CurrentMessageReserve: cfg.Budget.CurrentMessageReserve,
		},
		Model:      cfg.Model.Name,
		MaxRounds:  cfg.Model.MaxRounds,
		MinHistory: cfg.Budget.MinHistoryEntries,
	})

	return &runtimeParts{
		cfg:        cfg,
		bus:        msgBus,
		provider:   prov,
		transcript: store,
		retriever:  retriever,
		loop:       loop,
	}, nil
}

// buildRetriever wires the configured vector backend. The sqlite backend
// shares the transcript database file's connection.
func buildRetriever(cfg *config.Config, prov *provider.OpenAIProvider, store *transcript.Store) (*memory.Retriever, error) {
	var vectors memory.VectorStore
	switch cfg.Memory.Backend {
	case "qdrant":
		vectors = memory.NewQdrantStore(cfg.Memory.QdrantURL, cfg.Memory.Collection, cfg.Memory.Dimension)
	case "sqlite", "":
		vectors = memory.NewSQLiteVecStore(store.DB(), cfg.Memory.Dimension)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
	if err := vectors.EnsureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("prepare knowledge store: %w", err)
	}
	return memory.NewRetriever(vectors, prov, cfg.Memory.TopK, cfg.Budget.KnowledgeCap, cfg.Memory.Dimension), nil
}

func (r *runtimeParts) Close() {
	if r.transcript != nil {
		r.transcript.Close()
	}
}
