package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/assistant"
	"finledger/internal/auth"
	"finledger/internal/cache"
	"finledger/internal/cli"
	"finledger/internal/core"
	apphttp "finledger/internal/http"
	applog "finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/session"
)

const tokenIssuer = "finledger"

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	logger.Info("Starting ledger server", "port", cfg.Port)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := session.NewStore(repo)

	stats := cache.NewLRUCache[core.CategoryReport](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	caches := cache.NewManager()
	caches.Register("stats", stats)
	caches.StartCleanup(cfg.StatsCacheTTL)
	defer caches.Stop()

	reports := services.NewReportService(store, stats, cfg.MaxSeriesDays)

	notifier := services.NewNotifier(nil, store.OnChange, reports.Invalidate)
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		notifier = services.NewNotifier(amqpClient, store.OnChange, reports.Invalidate)

		// Changes made by other processes refresh open sessions.
		go func() {
			err := amqpClient.ConsumeEvents(ctx, func(ctx context.Context, event *amqp.LedgerEvent) error {
				if event.ChangesLedger() {
					reports.Invalidate(ctx, event.UserID)
				}
				return store.HandleEvent(ctx, event)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption stopped", "error", err)
			}
		}()
	} else {
		logger.Info("AMQP disabled - change events stay in process")
	}

	var gen assistant.Generator = assistant.Unconfigured{}
	if cfg.GeminiAPIKey != "" {
		gemini, err := assistant.NewGeminiGenerator(ctx, assistant.GeminiConfig{
			APIKey:           cfg.GeminiAPIKey,
			Model:            cfg.GeminiModel,
			Endpoint:         cfg.GeminiEndpoint,
			GenerationConfig: cfg.GeminiGenerationConfig,
		})
		if err != nil {
			logger.Error("Failed to initialize assistant", "error", err)
			os.Exit(1)
		}
		gen = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set - assistant replies with a configuration error")
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:              ":" + cfg.Port,
		Logger:            logger,
		RequestsPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Services{
		Transactions: services.NewTransactionService(repo, notifier),
		Scheduled:    services.NewScheduledService(repo, notifier),
		Reports:      reports,
		Chat:         services.NewChatService(repo, assistant.New(gen), store, cfg.AssistantTimeout),
		Sessions:     store,
		Verifier:     auth.NewVerifier(cfg.JWTSecret, tokenIssuer),
		Ready:        repo.Ping,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
		cancel()
	}

	m := srv.Metrics()
	logger.Info("Final metrics",
		"requests", m.Requests.TotalRequests,
		"server_errors", m.Requests.ServerErrors,
		"avg_latency_ms", m.Requests.AverageLatencyMs(),
		"rate_limited", m.RateLimit.Rejected,
		"blocked", m.Security.BlockedRequests,
		"sessions", m.Sessions)

	cli.Shutdown(logger, 30*time.Second, srv.Shutdown)
}
