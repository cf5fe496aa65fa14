package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/fungame/internal/adapters/frontend/console"
	"github.com/bnema/fungame/internal/adapters/frontend/websocket"
	prommetrics "github.com/bnema/fungame/internal/adapters/metrics/prometheus"
	"github.com/bnema/fungame/internal/application"
	"github.com/bnema/fungame/internal/config"
	"github.com/bnema/fungame/internal/domain"
	"github.com/bnema/fungame/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(app *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game master on the configured frontend",
		Long:  "Run the game master on the configured frontend. The websocket frontend serves /ws?channel=<id>&player=<id>, /healthz and, unless server.metrics_listen is set, /metrics.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				app.cfg.Server.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics := prommetrics.New(prometheus.NewRegistry())
			if app.cfg.Frontend == config.FrontendConsole {
				return serveConsole(ctx, cmd, app, metrics)
			}
			return serveWebsocket(ctx, app, metrics)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Override server.listen")
	return cmd
}

func serveWebsocket(ctx context.Context, app *app, metrics *prommetrics.Metrics) error {
	logger := app.logger

	var controller *application.SessionController
	hub := websocket.NewHub(func(ctx context.Context, msg domain.InboundMessage) {
		controller.OnMessage(ctx, msg)
	}, ports.SystemClock{}, logger.Named("websocket"))

	controller, err := app.controller(ctx, hub, metrics)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", hub.Handler())
	servers := []*http.Server{}
	if app.cfg.Server.MetricsListen == "" {
		mux.Handle("/metrics", metrics.Handler())
	} else {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		servers = append(servers, &http.Server{Addr: app.cfg.Server.MetricsListen, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second})
	}
	servers = append([]*http.Server{{Addr: app.cfg.Server.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}, servers...)

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return controller.RunIdleReaper(gctx, app.cfg.Session.ReapInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		hub.Close()
		if err := controller.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func serveConsole(ctx context.Context, cmd *cobra.Command, app *app, metrics *prommetrics.Metrics) error {
	var controller *application.SessionController
	term := console.New(console.Config{
		Channel: domain.ChannelID(app.cfg.Channel.ID),
	}, cmd.InOrStdin(), cmd.OutOrStdout(), func(ctx context.Context, msg domain.InboundMessage) error {
		return controller.HandleMessage(ctx, msg)
	}, ports.SystemClock{}, app.logger.Named("console"))

	controller, err := app.controller(ctx, term, metrics)
	if err != nil {
		return err
	}

	reaperCtx, stopReaper := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(reaperCtx)
	g.Go(func() error {
		return controller.RunIdleReaper(gctx, app.cfg.Session.ReapInterval)
	})
	if app.cfg.Server.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: app.cfg.Server.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	runErr := runConsole(ctx, term, controller, shutdownTimeout, app.logger)
	stopReaper()
	return errors.Join(runErr, g.Wait())
}
