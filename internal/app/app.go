// Package app wires configuration into a ready chat.Manager. Both binaries
// share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/finchat/internal/answer"
	"github.com/bull/finchat/internal/chat"
	"github.com/bull/finchat/internal/classify"
	"github.com/bull/finchat/internal/config"
	"github.com/bull/finchat/internal/embedding"
	"github.com/bull/finchat/internal/extraction"
	ghclient "github.com/bull/finchat/internal/github"
	"github.com/bull/finchat/internal/index"
	"github.com/bull/finchat/internal/indexer"
	"github.com/bull/finchat/internal/llm"
	"github.com/bull/finchat/internal/markdown"
	"github.com/bull/finchat/internal/storage"
	"github.com/bull/finchat/internal/summarize"
)

// App holds the wired components.
type App struct {
	Sessions   *chat.Manager
	Loader     *indexer.Loader
	Classifier classify.Classifier
	// Storage is nil for the in-memory vector store.
	Storage *storage.QdrantStorage
}

// New connects to the configured services and builds the session manager.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	chatClient, err := llm.NewClient(llmConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}

	// Embeddings share the chat client's connection settings.
	embedder := embedding.NewEmbedder(embedding.NewClientFrom(chatClient.OpenAI()), embedding.Options{
		Model:     cfg.OpenAI.EmbeddingModel,
		Dimension: cfg.OpenAI.EmbeddingDimension,
	})

	var extractor indexer.Extractor
	if cfg.Extraction.URL != "" {
		extractor = extraction.NewClient(extraction.Config{
			URL:     cfg.Extraction.URL,
			APIKey:  cfg.Extraction.APIKey,
			Timeout: cfg.Extraction.Timeout,
			Workers: cfg.Extraction.Workers,
			Retries: cfg.Extraction.Retries,
		}, logger)
	} else {
		logger.Warn("UNSTRUCTURED_API_URL not set, only Markdown documents can be ingested")
	}

	indexOpts := []index.Option{
		index.WithTopK(cfg.Retrieval.TopK),
		index.WithLogger(logger),
	}
	if cfg.Retrieval.MinScore > 0 {
		indexOpts = append(indexOpts, index.WithMinScore(float32(cfg.Retrieval.MinScore)))
	}
	pipeline := indexer.NewPipeline(
		extractor,
		markdown.NewPartitioner(),
		summarize.New(chatClient, summarize.Options{
			Concurrency: cfg.Summarizer.Concurrency,
			MaxTokens:   cfg.Summarizer.MaxTokens,
		}, logger),
		embedder,
		logger,
		indexOpts...,
	)

	a := &App{
		Classifier: classify.New(cfg.Classifier.Endpoint,
			classify.WithTimeout(cfg.Classifier.Timeout),
			classify.WithLogger(logger)),
	}

	var backend chat.Backend = chat.MemoryBackend{}
	if cfg.VectorStore.Type == "qdrant" {
		q := cfg.VectorStore.Qdrant
		store, err := storage.NewQdrantStorage(ctx, storage.Config{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     q.APIKey,
			UseTLS:     q.UseTLS,
			Collection: q.Collection,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to Qdrant: %w", err)
		}
		if err := store.EnsureCollection(ctx, embedder.Dimension()); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure collection: %w", err)
		}
		a.Storage = store
		backend = chat.QdrantBackend{Storage: store, Dimension: embedder.Dimension()}
	}

	gh, err := ghclient.NewClient(cfg.GitHub.Token)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create GitHub client: %w", err)
	}
	a.Loader = &indexer.Loader{GitHub: ghclient.NewFetcher(gh), Dir: cfg.Server.DocumentsDir}

	a.Sessions, err = chat.NewManager(chat.Deps{
		Pipeline:   pipeline,
		Backend:    backend,
		Classifier: a.Classifier,
		Span: answer.NewSpanEngine(chatClient, answer.SpanOptions{
			MinWords:    cfg.Answer.MinWords,
			MaxWords:    cfg.Answer.MaxWords,
			Temperature: cfg.Answer.Temperature,
			MaxTokens:   cfg.Answer.MaxTokens,
		}),
		Arithmetic: answer.NewArithmeticEngine(chatClient, logger),
		Timeout:    cfg.RequestTimeout,
		Logger:     logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func llmConfig(cfg *config.Config) llm.Config {
	return llm.Config{
		APIKey:            cfg.OpenAI.APIKey,
		BaseURL:           cfg.OpenAI.BaseURL,
		Model:             cfg.OpenAI.ChatModel,
		Timeout:           cfg.OpenAI.Timeout,
		RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		Retries:           cfg.OpenAI.Retries,
	}
}

// Close releases the vector store connection.
func (a *App) Close() error {
	if a.Storage == nil {
		return nil
	}
	return a.Storage.Close()
}
