package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fabfab/doc-analyzer/api"
	"github.com/fabfab/doc-analyzer/config"
	"github.com/fabfab/doc-analyzer/database"
	"github.com/fabfab/doc-analyzer/embeddings"
	"github.com/fabfab/doc-analyzer/llm"
	"github.com/fabfab/doc-analyzer/rag"
	"github.com/fabfab/doc-analyzer/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "add":
		addCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "list":
		listCmd(cfg, logger, os.Args[2:])
	case "remove":
		removeCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	case "models":
		modelsCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// buildService assembles the full pipeline behind a rag.Service. The
// returned cleanup releases the Postgres pool when the persistent index is
// in use.
func buildService(ctx context.Context, cfg config.Config, logger *log.Logger) (*rag.Service, func(), error) {
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder setup: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("llm setup: %w", err)
	}

	var index store.Index
	cleanup := func() {}

	if cfg.PersistIndex {
		var pool *pgxpool.Pool
		pool, err = database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection: %w", err)
		}
		if err := database.EnsureContextSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		index = store.NewPostgresIndex(pool)
		cleanup = pool.Close
	} else {
		index = store.NewMemoryIndex()
	}

	contextStore, err := store.New(ctx, index, embedder, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("context store: %w", err)
	}

	svc := rag.NewService(contextStore, llmClient, logger, rag.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		DefaultModel: cfg.LLM.DefaultModel,
	})
	return svc, cleanup, nil
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.HTTPAddr, "address to listen on")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("service setup: %v", err)
	}
	defer cleanup()

	server := &http.Server{
		Addr:    *addr,
		Handler: api.New(svc, logger),
	}

	go func() {
		<-ctx.Done()
		logger.Println("shutting down")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s (persist=%t, llm=%s/%s)", *addr, cfg.PersistIndex, cfg.LLM.Provider, cfg.LLM.DefaultModel)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("serve: %v", err)
	}
}

func addCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("add", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse add flags: %v", err)
	}
	if flags.NArg() == 0 {
		logger.Fatal("add requires at least one file path")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("service setup: %v", err)
	}
	defer cleanup()

	for _, path := range flags.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Fatalf("read %s: %v", path, err)
		}

		summary, err := svc.AddDocument(ctx, filepath.Base(path), data)
		if err != nil {
			logger.Fatalf("add %s: %v", path, err)
		}
		fmt.Printf("%s  %s  %s  %d chunks\n", summary.ID, summary.Name, summary.Format, summary.ChunkCount)
	}
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	role := flags.String("role", "", "analysis role (default, legal, financial, travel, technical)")
	model := flags.String("model", "", "model to answer with, falls back to the configured default")
	showEvidence := flags.Bool("evidence", false, "print the retrieved excerpts behind the answer")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}

	question := strings.TrimSpace(strings.Join(flags.Args(), " "))
	if question == "" {
		logger.Fatal("ask requires a question")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("service setup: %v", err)
	}
	defer cleanup()

	result, err := svc.Ask(ctx, question, *role, *model)
	if err != nil {
		logger.Fatalf("ask failed: %v", err)
	}

	fmt.Println(result.Answer)
	if result.RoleFellBack {
		fmt.Printf("\n(role %q is not known, answered as %s)\n", *role, result.Role)
	}
	if result.ModelFellBack {
		fmt.Printf("(model %q is not available, answered with %s)\n", *model, result.Model)
	}
	if *showEvidence && len(result.Evidence) > 0 {
		fmt.Println("\nEvidence:")
		for i, item := range result.Evidence {
			fmt.Printf("%d. %s chunk %d (score %.3f)\n", i+1, item.DocumentID, item.ChunkIndex, item.Score)
		}
	}
}

func listCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("list", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse list flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("service setup: %v", err)
	}
	defer cleanup()

	summaries := svc.ListContext()
	if len(summaries) == 0 {
		fmt.Println("context is empty")
		return
	}
	for _, summary := range summaries {
		fmt.Printf("%s  %s  %s  %d chunks  %s\n", summary.ID, summary.Name, summary.Format, summary.ChunkCount, summary.AddedAt.Format("2006-01-02 15:04"))
	}
}

func removeCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("remove", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse remove flags: %v", err)
	}
	if flags.NArg() != 1 {
		logger.Fatal("remove requires exactly one document id")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("service setup: %v", err)
	}
	defer cleanup()

	if err := svc.RemoveDocument(ctx, flags.Arg(0)); err != nil {
		logger.Fatalf("remove failed: %v", err)
	}
	fmt.Println("document removed")
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will remove every document from the context. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("service setup: %v", err)
	}
	defer cleanup()

	if err := svc.ClearContext(ctx); err != nil {
		logger.Fatalf("clear failed: %v", err)
	}
	fmt.Println("context cleared")
}

func modelsCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("models", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse models flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	models, err := llmClient.ListModels(ctx)
	if err != nil {
		logger.Fatalf("list models: %v", err)
	}
	for _, model := range models {
		marker := " "
		if model == cfg.LLM.DefaultModel {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, model)
	}
}

func printUsage() {
	fmt.Println("Usage: doc-analyzer <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the HTTP API")
	fmt.Println("  add      Add one or more files to the document context")
	fmt.Println("  ask      Ask a question over the current context (use --role and --model)")
	fmt.Println("  list     List documents in the context")
	fmt.Println("  remove   Remove a document from the context by id")
	fmt.Println("  clear    Remove every document from the context")
	fmt.Println("  models   List models served by the configured backend")
}
