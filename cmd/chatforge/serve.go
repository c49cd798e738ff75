package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/chatforge/chatforge/internal/accounts"
	"github.com/chatforge/chatforge/internal/chat"
	"github.com/chatforge/chatforge/internal/config"
	"github.com/chatforge/chatforge/internal/db"
	"github.com/chatforge/chatforge/internal/handlers"
	"github.com/chatforge/chatforge/internal/healthcheck"
	dbchecker "github.com/chatforge/chatforge/internal/healthcheck/checkers/db"
	mcpchecker "github.com/chatforge/chatforge/internal/healthcheck/checkers/mcp"
	"github.com/chatforge/chatforge/internal/history"
	"github.com/chatforge/chatforge/internal/logger"
	"github.com/chatforge/chatforge/internal/mcp"
	"github.com/chatforge/chatforge/internal/media"
	"github.com/chatforge/chatforge/internal/models"
	"github.com/chatforge/chatforge/internal/outputformats"
	"github.com/chatforge/chatforge/internal/personas"
	"github.com/chatforge/chatforge/internal/server"
	"github.com/chatforge/chatforge/internal/storage/providers/localfs"
	"github.com/chatforge/chatforge/internal/tools"
	"github.com/chatforge/chatforge/internal/usage"
	"github.com/chatforge/chatforge/internal/vendors"
	"github.com/chatforge/chatforge/internal/vendors/anthropic"
	"github.com/chatforge/chatforge/internal/vendors/google"
	"github.com/chatforge/chatforge/internal/vendors/openai"
	"github.com/chatforge/chatforge/internal/vendors/openrouter"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(serveOptions())
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

func serveOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideDBTX,
			accounts.NewService,
			personas.NewService,
			outputformats.NewService,
			models.NewService,
			tools.NewService,
			history.NewService,
			provideUsageService,
			provideMediaService,
			provideMCPConnector,
			provideVendorRegistry,
			provideChatService,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(provideChatHandler),
			provideServerHandler(providePersonasHandler),
			provideServerHandler(provideOutputFormatsHandler),
			provideServerHandler(provideModelsHandler),
			provideServerHandler(provideToolsHandler),
			provideServerHandler(provideHistoryHandler),
			provideServerHandler(provideUsersHandler),
			provideServerHandler(provideMediaHandler),
			provideServerHandler(provideHealthHandler),
			provideServer,
		),
		fx.Invoke(startUsageScheduler, startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideDBTX(conn *pgxpool.Pool) db.DBTX { return conn }

func provideUsageService(log *slog.Logger, conn db.DBTX, cfg config.Config) *usage.Service {
	return usage.NewService(log, conn, cfg.Usage.PeriodDuration())
}

func startUsageScheduler(lc fx.Lifecycle, log *slog.Logger, svc *usage.Service, cfg config.Config) error {
	retention, err := cfg.Usage.Retention()
	if err != nil {
		return err
	}
	scheduler, err := usage.NewScheduler(log, svc, cfg.Usage.MaintenanceSchedule, retention)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { scheduler.Start(); return nil },
		OnStop:  func(ctx context.Context) error { scheduler.Stop(ctx); return nil },
	})
	return nil
}

func provideMediaService(log *slog.Logger, cfg config.Config) (*media.Service, error) {
	provider, err := localfs.New(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("media storage: %w", err)
	}
	return media.NewService(log, provider, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadBytes), nil
}

func provideMCPConnector(log *slog.Logger, cfg config.Config) mcp.Connector {
	return mcp.NewStdioConnector(log, cfg.MCP.ConnectTimeout())
}

// provideVendorRegistry registers an adapter for every vendor with an API key.
func provideVendorRegistry(log *slog.Logger, cfg config.Config, connector mcp.Connector) *vendors.Registry {
	registry := vendors.NewRegistry()
	register := func(vendor models.Vendor, section config.VendorConfig, build func(vendors.Config) vendors.Generator) {
		if strings.TrimSpace(section.APIKey) == "" {
			log.Warn("vendor not configured", slog.String("vendor", string(vendor)))
			return
		}
		registry.Register(vendor, build(vendors.ConfigFrom(section)))
	}

	register(models.VendorOpenAI, cfg.Vendors.OpenAI, func(c vendors.Config) vendors.Generator {
		return openai.New(log, c)
	})
	register(models.VendorAnthropic, cfg.Vendors.Anthropic, func(c vendors.Config) vendors.Generator {
		return anthropic.New(log, c, connector, cfg.MCP.MaxToolRounds)
	})
	register(models.VendorGoogle, cfg.Vendors.Google, func(c vendors.Config) vendors.Generator {
		return google.New(log, c)
	})
	register(models.VendorOpenRouter, cfg.Vendors.OpenRouter, func(c vendors.Config) vendors.Generator {
		return openrouter.New(log, c)
	})
	return registry
}

type chatParams struct {
	fx.In

	Logger        *slog.Logger
	Models        *models.Service
	Personas      *personas.Service
	OutputFormats *outputformats.Service
	Tools         *tools.Service
	Media         *media.Service
	Usage         *usage.Service
	History       *history.Service
	Registry      *vendors.Registry
}

func provideChatService(p chatParams) *chat.Service {
	return chat.NewService(p.Logger, chat.Deps{
		Models:        p.Models,
		Personas:      p.Personas,
		OutputFormats: p.OutputFormats,
		Tools:         p.Tools,
		Uploader:      p.Media,
		Quota:         p.Usage,
		History:       p.History,
		Adapters:      p.Registry,
	})
}

func provideAuthHandler(log *slog.Logger, svc *accounts.Service, cfg config.Config) (*handlers.AuthHandler, error) {
	expiresIn, err := cfg.Auth.ExpiresIn()
	if err != nil {
		return nil, err
	}
	return handlers.NewAuthHandler(log, svc, cfg.Auth.JWTSecret, expiresIn), nil
}

func provideChatHandler(log *slog.Logger, svc *chat.Service) *handlers.ChatHandler {
	return handlers.NewChatHandler(log, svc)
}

func providePersonasHandler(log *slog.Logger, svc *personas.Service) *handlers.PersonasHandler {
	return handlers.NewPersonasHandler(log, svc)
}

func provideOutputFormatsHandler(log *slog.Logger, svc *outputformats.Service) *handlers.OutputFormatsHandler {
	return handlers.NewOutputFormatsHandler(log, svc)
}

func provideModelsHandler(log *slog.Logger, svc *models.Service, registry *vendors.Registry) *handlers.ModelsHandler {
	return handlers.NewModelsHandler(log, svc, registry)
}

func provideToolsHandler(log *slog.Logger, svc *tools.Service) *handlers.ToolsHandler {
	return handlers.NewToolsHandler(log, svc)
}

func provideHistoryHandler(log *slog.Logger, svc *history.Service) *handlers.HistoryHandler {
	return handlers.NewHistoryHandler(log, svc)
}

func provideUsersHandler(log *slog.Logger, svc *accounts.Service, quota *usage.Service) *handlers.UsersHandler {
	return handlers.NewUsersHandler(log, svc, quota)
}

func provideMediaHandler(log *slog.Logger, svc *media.Service) *handlers.MediaHandler {
	return handlers.NewMediaHandler(log, svc)
}

func provideHealthHandler(log *slog.Logger, conn *pgxpool.Pool, toolsService *tools.Service, connector mcp.Connector) *handlers.HealthHandler {
	return handlers.NewHealthHandler(log, []healthcheck.Checker{
		dbchecker.NewChecker(log, conn),
		mcpchecker.NewChecker(log, toolsService, connector),
	})
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) (*server.Server, error) {
	if strings.TrimSpace(params.Config.Auth.JWTSecret) == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...), nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config, accountsService *accounts.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := accountsService.EnsureAdmin(ctx, cfg.Admin); err != nil {
				return fmt.Errorf("ensure admin: %w", err)
			}
			go func() {
				log.Info("http server listening", slog.String("addr", cfg.Server.Addr))
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", slog.Any("error", err))
					if stopErr := shutdowner.Shutdown(); stopErr != nil {
						log.Error("shutdown failed", slog.Any("error", stopErr))
					}
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

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}
