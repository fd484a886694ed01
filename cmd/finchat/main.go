// Package main provides the finchat CLI: ask questions about financial reports
// from the terminal.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/finchat/internal/app"
	"github.com/bull/finchat/internal/chat"
	"github.com/bull/finchat/internal/classify"
	"github.com/bull/finchat/internal/config"
	"github.com/bull/finchat/internal/github"
	"github.com/bull/finchat/internal/indexer"
)

var (
	configPath string
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "finchat",
	Short: "Question answering over financial reports",
	Long: `Index PDF or Markdown financial reports and ask questions about them.

Narrative questions are answered from the retrieved report sections.
Calculation questions (growth, margins, ratios) are computed from the
figures found in the report.

Documents are given as local paths or github:owner/repo/path[@branch]
references.

Environment variables:
  OPENAI_API_KEY        OpenAI API key (required)
  UNSTRUCTURED_API_URL  PDF partition service (required for PDFs)
  UNSTRUCTURED_API_KEY  Partition service key (optional)
  CLASSIFIER_URL        Hosted question classifier (optional)
  VECTOR_STORE          memory or qdrant (default: memory)
  QDRANT_HOST           Qdrant hostname (default: localhost)
  QDRANT_PORT           Qdrant gRPC port (default: 6334)
  GITHUB_TOKEN          GitHub token for higher rate limits (optional)`,
	SilenceUsage: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest DOCUMENT...",
	Short: "Extract, summarize and index documents, then print indexing statistics",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask DOCUMENT QUESTION",
	Short: "Index a document and answer one question about it",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat DOCUMENT...",
	Short: "Index documents and start an interactive conversation",
	Long: `Index the documents, then read questions from stdin until EOF.

Commands inside the conversation:
  /load PATH   index another document into the session
  /history     print the conversation so far
  /quit        exit`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

var classifyCmd = &cobra.Command{
	Use:   "classify QUESTION",
	Short: "Print whether a question is routed to arithmetic or span answering",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "finchat.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")
	askCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the reply as JSON")

	rootCmd.AddCommand(ingestCmd, askCmd, chatCmd, classifyCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger()
	slog.SetDefault(logger)
	return app.New(ctx, cfg, logger)
}

func loadAll(ctx context.Context, loader *indexer.Loader, refs []string) ([]indexer.Source, error) {
	var sources []indexer.Source
	for _, ref := range refs {
		if !github.IsRef(ref) {
			src, err := indexer.LoadFile(ref)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
			continue
		}
		loaded, err := loader.Load(ctx, ref)
		if err != nil {
			return nil, err
		}
		sources = append(sources, loaded...)
	}
	return sources, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sources, err := loadAll(ctx, a.Loader, args)
	if err != nil {
		return err
	}

	session := a.Sessions.Create()
	defer a.Sessions.Close(context.Background(), session.ID())

	result, err := session.Ingest(ctx, sources)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Ingest complete!")
	fmt.Fprintf(out, "  Documents: %d\n", result.TotalDocs)
	fmt.Fprintf(out, "  Tables: %d\n", result.Tables)
	fmt.Fprintf(out, "  Texts: %d\n", result.Texts)
	fmt.Fprintf(out, "  Indexed: %d (%d tables)\n", result.Indexed(), result.Build.TablesIndexed)
	fmt.Fprintf(out, "  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.SummaryFailures) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Elements without a summary:")
		for _, f := range result.SummaryFailures {
			fmt.Fprintf(out, "  - %s %d: %s\n", f.Kind, f.Index, f.Reason)
		}
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sources, err := loadAll(ctx, a.Loader, args[:1])
	if err != nil {
		return err
	}

	session := a.Sessions.Create()
	defer a.Sessions.Close(context.Background(), session.ID())

	result, reply, err := session.IngestAndAsk(ctx, sources, args[1])
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}
	printIndexed(cmd.ErrOrStderr(), result)
	fmt.Fprintln(out, reply.Text)
	if reply.Kind == chat.ReplyError {
		return errors.New("question failed")
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	session := a.Sessions.Create()
	defer a.Sessions.Close(context.Background(), session.ID())

	out := cmd.OutOrStdout()
	if err := ingest(ctx, cmd, a.Loader, session, args); err != nil {
		return err
	}

	fmt.Fprintln(out, "Ask a question about the document (/quit to exit).")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/history":
			for i, turn := range session.History() {
				fmt.Fprintf(out, "%d. Q: %s\n   A: %s\n", i+1, turn.Question, turn.Answer)
			}
			continue
		case strings.HasPrefix(line, "/load "):
			ref := strings.TrimSpace(strings.TrimPrefix(line, "/load "))
			if err := ingest(ctx, cmd, a.Loader, session, []string{ref}); err != nil {
				fmt.Fprintf(out, "Could not load %s: %v\n", ref, err)
			}
			continue
		}

		start := time.Now()
		reply := session.Ask(ctx, line)
		fmt.Fprintln(out, reply.Text)
		if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "(%s, %s)\n", reply.Route, time.Since(start).Round(time.Millisecond))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func ingest(ctx context.Context, cmd *cobra.Command, loader *indexer.Loader, session *chat.Session, refs []string) error {
	sources, err := loadAll(ctx, loader, refs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Indexing %d document(s)...\n", len(sources))
	result, err := session.Ingest(ctx, sources)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	printIndexed(cmd.ErrOrStderr(), result)
	return nil
}

func printIndexed(w io.Writer, result *indexer.IndexResult) {
	fmt.Fprintf(w, "Indexed %d elements (%d tables, %d texts) in %s\n",
		result.Indexed(), result.Tables, result.Texts, result.Duration.Round(time.Second))
	if n := result.Skipped(); n > 0 {
		fmt.Fprintf(w, "  Skipped: %d\n", n)
	}
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c := classify.New(cfg.Classifier.Endpoint,
		classify.WithTimeout(cfg.Classifier.Timeout),
		classify.WithLogger(newLogger()))

	label, err := c.Classify(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), label)
	return nil
}
