package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/larkrelay/larkrelay/internal/config"
	"github.com/larkrelay/larkrelay/internal/handlers"
	"github.com/larkrelay/larkrelay/internal/lark"
	"github.com/larkrelay/larkrelay/internal/logger"
	"github.com/larkrelay/larkrelay/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			handlers.NewStatusRegistry,
			provideAccounts,
			provideProviders,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewStatusHandler),
			provideServer,
		),
		fx.Invoke(
			startProviders,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideAccounts(cfg config.Config) []lark.ResolvedAccount {
	return lark.ListEnabledAccounts(cfg.Channels.Lark)
}

func provideProviders(log *slog.Logger, accounts []lark.ResolvedAccount, registry *handlers.StatusRegistry) []*lark.Provider {
	providers := make([]*lark.Provider, 0, len(accounts))
	for _, account := range accounts {
		if !account.Configured() {
			log.Warn("skipping account without credentials", slog.String("account_id", account.AccountID))
			continue
		}
		providers = append(providers, lark.NewProvider(lark.ProviderOptions{
			Account:    account,
			Logger:     log,
			StatusSink: registry.Sink(account.AccountID),
		}))
	}
	return providers
}

type serverParams struct {
	fx.In
	Logger    *slog.Logger
	Config    config.Config
	Handlers  []server.Handler `group:"server_handlers"`
	Providers []*lark.Provider
}

func provideServer(params serverParams) *server.Server {
	all := make([]server.Handler, 0, len(params.Handlers)+len(params.Providers))
	all = append(all, params.Handlers...)
	for _, p := range params.Providers {
		all = append(all, p)
	}
	return server.New(params.Logger, params.Config.Server.Addr, all)
}

func startProviders(lc fx.Lifecycle, providers []*lark.Provider) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			for _, p := range providers {
				if err := p.Start(ctx); err != nil {
					cancel()
					return err
				}
			}
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			for _, p := range providers {
				p.Stop()
			}
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
