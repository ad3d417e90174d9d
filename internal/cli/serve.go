package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-lifecycle/internal/api/http"
	"github.com/spec-kit/ticket-lifecycle/internal/api/http/handlers"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *globalOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return withApplication(ctx, opts, func(a *application) error {
		server := httptransport.NewApp(httptransport.ServerConfig{
			AppName:        a.cfg.App.Name,
			Logger:         a.logger,
			Metrics:        a.metrics,
			RequestTimeout: a.cfg.App.RequestTimeout(),
			Routes: httptransport.RouteConfig{
				Health:  handlers.NewHealthHandler(a.cfg.App.Name, a.cfg.App.Version, a.checks, a.metrics),
				Tickets: handlers.NewTicketsHandler(a.tickets, handlers.NewRequestValidator()),
			},
		})

		listenErr := make(chan error, 1)
		go func() {
			a.logger.Info("http server listening", zap.String("addr", a.cfg.App.Addr()))
			listenErr <- server.Listen(a.cfg.App.Addr())
		}()

		select {
		case err := <-listenErr:
			return err
		case sig := <-shutdownSignal():
			a.logger.Info("shutting down", zap.String("signal", sig.String()))
		}
		return server.Shutdown()
	})
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
