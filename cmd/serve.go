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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naka-gawa/repo-insights/internal/config"
	"github.com/naka-gawa/repo-insights/internal/gateway"
	"github.com/naka-gawa/repo-insights/internal/logger"
	"github.com/naka-gawa/repo-insights/internal/summarizer"
	httptransport "github.com/naka-gawa/repo-insights/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Runs the JSON API used by the dashboard. Settings come from the environment,
an optional .env file and the YAML file named by CONFIG_PATH.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logg, err := logger.New(level, cfg.Log.Development)
		if err != nil {
			return err
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		handler, err := buildHandler(ctx, cfg, logg)
		if err != nil {
			return err
		}

		if cfg.Metrics.Enabled {
			metricsSrv := newMetricsServer(cfg.Metrics.Port, cfg.HTTP.ReadHeaderTimeout)
			go func() {
				if err := runServer(ctx, metricsSrv, cfg.HTTP.ShutdownTimeout, logg); err != nil {
					logg.Error("metrics server stopped", zap.Error(err))
				}
			}()
		}

		apiSrv := &http.Server{
			Addr:              cfg.HTTP.Addr(),
			Handler:           handler.Router(),
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		}
		return runServer(ctx, apiSrv, cfg.HTTP.ShutdownTimeout, logg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func buildHandler(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*httptransport.Handler, error) {
	gatewayOpts := []gateway.Option{gateway.WithTimeout(cfg.GitHub.Timeout)}
	if cfg.GitHub.APIURL != "" {
		gatewayOpts = append(gatewayOpts, gateway.WithBaseURL(cfg.GitHub.APIURL))
	}
	factory := gateway.NewFactory(logg, gatewayOpts...)

	opts := []httptransport.Option{httptransport.WithAllowedOrigins(cfg.HTTP.AllowedOrigins)}
	if cfg.Gemini.APIKey == "" {
		logg.Warn("GEMINI_API_KEY is not set, repository analysis is disabled")
	} else {
		generator, err := summarizer.NewGeminiGenerator(ctx, summarizer.GeminiConfig{
			APIKey: cfg.Gemini.APIKey,
			Model:  cfg.Gemini.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		opts = append(opts, httptransport.WithSummarizer(summarizer.New(generator, logg)))
		logg.Info("repository analysis enabled", zap.String("model", cfg.Gemini.Model))
	}

	return httptransport.NewHandler(factory, logg, opts...), nil
}

// runServer serves until ctx is done, then shuts srv down within shutdownTimeout.
func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logg *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logg.Info("starting server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logg.Info("shutting down server", zap.String("addr", srv.Addr), zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func newMetricsServer(port string, readHeaderTimeout time.Duration) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
