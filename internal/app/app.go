package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anla-124/pdf-searcher/features/document"
	"github.com/anla-124/pdf-searcher/features/search"
	"github.com/anla-124/pdf-searcher/features/stats"
	wstore "github.com/anla-124/pdf-searcher/internal/adapter/weaviate"
	"github.com/anla-124/pdf-searcher/internal/cleanup"
	"github.com/anla-124/pdf-searcher/internal/config"
	"github.com/anla-124/pdf-searcher/internal/metrics"
	"github.com/anla-124/pdf-searcher/internal/middleware"
	"github.com/anla-124/pdf-searcher/internal/similarity"
	"github.com/anla-124/pdf-searcher/internal/worker"
)

type App struct {
	Handler          http.Handler
	CleanupWorker    *cleanup.Worker
	DeleteConsumer   *worker.DeleteConsumer
	EmbedderConsumer *worker.EmbedderConsumer

	port int
}

// New wires repositories, services and handlers. embedder may be nil when
// the embedder worker is disabled; the embed consumer is then not built.
func New(
	cfg *config.Config,
	db *sql.DB,
	vecStore *wstore.Store,
	taskPub document.EventPublisher,
	embedder worker.Embedder,
	prom *metrics.Metrics,
) (*App, error) {

	// Feature: Document
	docRepo := document.NewPostgresRepo(db)

	// Vector cleanup worker
	cleanupWorker := cleanup.NewWorker(vecStore, cleanup.RetryConfig{
		MaxAttempts: cfg.CleanupMaxAttempts,
		BaseDelay:   time.Duration(cfg.CleanupBaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.CleanupMaxDelaySeconds) * time.Second,
		HistorySize: cfg.CleanupFailureHistory,
	}, nil, prom)

	docService := document.NewService(docRepo, taskPub, cleanupWorker)
	docHandler := document.NewHandler(docService)

	// Feature: Search
	simService := similarity.NewService(docRepo, vecStore, prom)
	searchHandler := search.NewHandler(simService, similarity.Options{
		Stage0TopK:       cfg.Stage0TopK,
		Stage1TopK:       cfg.Stage1TopK,
		Stage2Workers:    cfg.Stage2Workers,
		MinScore:         cfg.MinScore,
		CosineThreshold:  cfg.CosineThreshold,
		JaccardThreshold: cfg.JaccardThreshold,
		Timeout:          time.Duration(cfg.SearchTimeoutSeconds) * time.Second,
	})

	// Feature: Stats
	statsHandler := stats.NewHandler(docRepo, vecStore, cleanupWorker)

	// NSQ consumers
	deleteConsumer := worker.NewDeleteConsumer(cleanupWorker)
	var embedderConsumer *worker.EmbedderConsumer
	if embedder != nil {
		embedderConsumer = worker.NewEmbedderConsumer(embedder, vecStore, docRepo)
	}

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /documents", middleware.CorrelationID(enableCORS(docHandler.Create)))
	mux.Handle("GET /documents", middleware.CorrelationID(enableCORS(docHandler.List)))
	mux.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Get)))
	mux.Handle("DELETE /documents/{id}", middleware.CorrelationID(enableCORS(docHandler.Delete)))

	mux.Handle("POST /search/similarity", middleware.CorrelationID(enableCORS(searchHandler.Search)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))
	mux.Handle("GET /metrics", prom.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:          mux,
		CleanupWorker:    cleanupWorker,
		DeleteConsumer:   deleteConsumer,
		EmbedderConsumer: embedderConsumer,
		port:             cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
