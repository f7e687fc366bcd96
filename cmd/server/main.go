package main

import (
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"docsift/internal/config"
	"docsift/internal/extract"
	"docsift/internal/extractcfg"
	"docsift/internal/handler"
	"docsift/internal/llm"
	"docsift/internal/llm/openai"
	"docsift/internal/repository/postgres"
	"docsift/internal/retrieval"
	"docsift/internal/router"
	"docsift/internal/split"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Initialize repositories
	docRepo := postgres.NewDocumentRepo(db)
	pageRepo := postgres.NewPageRepo(db)
	caseRepo := postgres.NewCaseRepo(db)
	fieldResultRepo := postgres.NewFieldResultRepo(db)

	// Initialize LLM stack
	llmClient := openai.NewClient(&cfg.LLM)
	invoker := llm.NewInvoker(llmClient, llm.NewRegistry(), cfg.Extracting.ValidationRetries)

	// Initialize extraction pipeline
	loader := extractcfg.NewLoader(cfg.Extracting.ConfigRoot)
	enricher := extract.NewEnricher(docRepo, pageRepo)
	retrievers := retrieval.NewRegistry(retrieval.Deps{
		Pages:    pageRepo,
		Embedder: llmClient,
		Redis:    redisClient,
	})
	extractSvc := extract.NewService(
		loader, invoker, enricher, retrievers,
		docRepo, caseRepo, fieldResultRepo,
		cfg.Extracting.GroupConcurrency,
	)
	splitSvc := split.NewService(loader, invoker, docRepo, pageRepo, cfg.Extracting.BatchConcurrency)

	// Initialize handlers
	documentH := handler.NewDocumentHandler(docRepo, pageRepo, fieldResultRepo)
	caseH := handler.NewCaseHandler(caseRepo)
	extractH := handler.NewExtractHandler(extractSvc)
	splitH := handler.NewSplitHandler(splitSvc)
	exportH := handler.NewExportHandler(docRepo, fieldResultRepo)
	healthH := handler.NewHealthHandler(db, redisClient)

	// Setup router
	r := router.Setup(cfg.CORS.AllowedOrigins, documentH, caseH, extractH, splitH, exportH, healthH)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
