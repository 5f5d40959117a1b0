package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"go-llmops/config"
	"go-llmops/logging"
	"go-llmops/mockapi"
)

// configPath is the resolved llmops.json location.
type configPath string

func main() {
	var path string

	cmd := &cobra.Command{
		Use:          "llmops-mock",
		Short:        "Serve a local stand-in for the LLMOps API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(appOptions(configPath(config.Path(path))))
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "config file (default: llmops.json in the project root)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func appOptions(path configPath) fx.Option {
	return fx.Options(
		fx.Supply(path),
		fx.Provide(
			loadConfig,
			newLogger,
			newMockServer,
			newHTTPServer,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Invoke(registerHTTPServer, watchConfig),
	)
}

func loadConfig(path configPath) (*config.Config, error) {
	boot, err := logging.New(config.Default().Log)
	if err != nil {
		return nil, err
	}
	return config.Load(string(path), boot), nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log)
}

func newMockServer(cfg *config.Config, logger *zap.Logger) *mockapi.Server {
	gin.SetMode(gin.ReleaseMode)
	return mockapi.New(mockapi.Options{
		ChunkSize:     cfg.Mock.ChunkSize,
		TokenDelay:    time.Duration(cfg.Mock.TokenDelayMs) * time.Millisecond,
		JWTSecret:     []byte(cfg.Mock.JWTSecret),
		SessionCookie: cfg.Mock.SessionCookie,
		Logger:        logger,
	})
}

func newHTTPServer(cfg *config.Config, srv *mockapi.Server) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", srv.Handler())

	return &http.Server{
		Addr:              cfg.Mock.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func registerHTTPServer(lc fx.Lifecycle, hs *http.Server, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// bind synchronously so a busy port fails startup
			ln, err := net.Listen("tcp", hs.Addr)
			if err != nil {
				return err
			}

			logger.Info("[server] mock API listening",
				zap.String("addr", ln.Addr().String()),
				zap.Int("chunk_size", cfg.Mock.ChunkSize),
				zap.Int("token_delay_ms", cfg.Mock.TokenDelayMs),
				zap.Bool("auth", cfg.Mock.JWTSecret != ""),
			)

			go func() {
				if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("[server] serve failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("[shutdown] draining connections")

			stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := hs.Shutdown(stopCtx); err != nil {
				logger.Warn("[shutdown] http server shutdown error", zap.Error(err))
				return err
			}
			logger.Info("[shutdown] http server shut down cleanly")
			return nil
		},
	})
}

// watchConfig applies stream settings from llmops.json without a restart.
// Other fields need a restart.
func watchConfig(lc fx.Lifecycle, path configPath, srv *mockapi.Server, logger *zap.Logger) {
	var w *config.Watcher

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var err error
			w, err = config.Watch(string(path), logger, func(cfg *config.Config) {
				srv.Reconfigure(cfg.Mock.ChunkSize, time.Duration(cfg.Mock.TokenDelayMs)*time.Millisecond)
				logger.Info("[config] stream settings reloaded",
					zap.Int("chunk_size", cfg.Mock.ChunkSize),
					zap.Int("token_delay_ms", cfg.Mock.TokenDelayMs),
				)
			})
			if err != nil {
				logger.Warn("[config] hot reload disabled", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			if w == nil {
				return nil
			}
			return w.Close()
		},
	})
}
