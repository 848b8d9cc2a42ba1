package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dreschagin/quality-history/internal/application/usecase"
	natsInfra "github.com/dreschagin/quality-history/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/quality-history/internal/infrastructure/notification/websocket"
	httpInterface "github.com/dreschagin/quality-history/internal/interfaces/http"
	"github.com/dreschagin/quality-history/internal/interfaces/http/handler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only history API",
	Long: `Serve the history over HTTP:

  GET /health
  GET /metrics
  GET /api/v1/metrics/{id}/history?recent=N&segments=true
  GET /api/v1/trend?from=2013-02-01&to=2013-03-01
  GET /api/v1/statuses/{status}?limit=N   (requires DYNAMODB_ENABLED)
  GET /ws/events?type=quality.status.changed (requires NATS_ENABLED)`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, serve)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, a *app) error {
	repo, err := a.historyRepository(ctx, "")
	if err != nil {
		return err
	}
	cache := a.cache()
	metrics := a.prometheusMetrics()

	router := httpInterface.NewRouter(
		handler.NewHealthHandler(repo.Location(), a.log),
		handler.NewHistoryAPIHandler(
			usecase.NewGetMetricHistoryUseCase(repo, cache, a.log),
			usecase.NewGetStatusTrendUseCase(repo, cache, a.log),
			a.log,
		),
		handler.NewStatusAPIHandler(a.statusIndex(ctx), a.log),
		metrics,
		a.cfg.Server,
		a.cfg.Security,
		a.log,
	)
	defer router.Close()

	if events := a.eventsHandler(ctx); events != nil {
		router.WithEvents(events)
	}

	server := &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server starting", "port", a.cfg.Server.Port, "history", repo.Location())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.log.Error("HTTP server failed", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("Shutdown signal received, starting graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Server shutdown error", err)
		return err
	}
	a.log.Info("Server stopped gracefully")
	return nil
}

// eventsHandler пересылает события NATS клиентам WebSocket; nil, если NATS выключен или недоступен
func (a *app) eventsHandler(ctx context.Context) *handler.EventsHandler {
	if !a.cfg.NATS.Enabled {
		return nil
	}

	subscriber, err := natsInfra.NewNATSSubscriber(a.cfg.NATS.URL, a.log)
	if err != nil {
		a.log.Warn("Live events are disabled", "error", err.Error())
		return nil
	}

	hub := wsInfra.NewHub(a.log)
	if err := subscriber.Subscribe(natsInfra.AllEvents, hub.Broadcast); err != nil {
		a.log.Warn("Live events are disabled", "error", err.Error())
		_ = subscriber.Close()
		return nil
	}
	a.onClose(func(context.Context) error { return subscriber.Close() })

	go hub.Run(ctx)
	return handler.NewEventsHandler(hub, a.cfg.Security.AllowedOrigins, a.log)
}
