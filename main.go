package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"github.com/anla-124/pdf-searcher/internal/adapter/gemini"
	"github.com/anla-124/pdf-searcher/internal/app"
	"github.com/anla-124/pdf-searcher/internal/config"
	"github.com/anla-124/pdf-searcher/internal/logger"
	"github.com/anla-124/pdf-searcher/internal/metrics"
	"github.com/anla-124/pdf-searcher/internal/worker"
)

func main() {
	// Structured logger with correlation id propagation
	base := slog.NewJSONHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(logger.NewContextHandler(base)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.DB.Close()

	prom := metrics.New()

	var embedder worker.Embedder
	if cfg.EnableEmbedderWorker {
		e, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey)
		if err != nil {
			slog.Error("failed to create gemini embedder", "error", err)
			os.Exit(1)
		}
		embedder = e
	}

	a, err := app.New(cfg, deps.DB, deps.VectorStore, deps.NSQProducer, embedder, prom)
	if err != nil {
		slog.Error("failed to wire application", "error", err)
		os.Exit(1)
	}

	a.CleanupWorker.Start()

	var consumers []*nsq.Consumer

	deleteConsumer, err := startConsumer(cfg, config.TopicDocumentDelete, "backend", a.DeleteConsumer.HandleMessage)
	if err != nil {
		slog.Error("failed to start delete consumer", "error", err)
		os.Exit(1)
	}
	consumers = append(consumers, deleteConsumer)

	if a.EmbedderConsumer != nil {
		embedConsumer, err := startConsumer(cfg, config.TopicDocumentEmbed, "backend", a.EmbedderConsumer.HandleMessage)
		if err != nil {
			slog.Error("failed to start embedder consumer", "error", err)
			os.Exit(1)
		}
		consumers = append(consumers, embedConsumer)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Info("shutdown signal received")
		cancel()
	}()

	if cfg.EnableAPI {
		if err := a.Run(ctx); err != nil {
			slog.Error("server failed", "error", err)
		}
	} else {
		<-ctx.Done()
	}

	for _, c := range consumers {
		c.Stop()
		<-c.StopChan
	}
	a.CleanupWorker.Stop()
	slog.Info("shutdown complete")
}

func startConsumer(cfg *config.Config, topic, channel string, handler func(*nsq.Message) error) (*nsq.Consumer, error) {
	consumer, err := nsq.NewConsumer(topic, channel, nsq.NewConfig())
	if err != nil {
		return nil, err
	}
	consumer.AddHandler(nsq.HandlerFunc(handler))
	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		return nil, err
	}
	slog.Info("NSQ consumer connected", "topic", topic, "channel", channel)
	return consumer, nil
}
