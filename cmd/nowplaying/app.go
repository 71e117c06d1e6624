package main

import (
	"context"

	"github.com/genricoloni/nowplaying/internal/backend"
	"github.com/genricoloni/nowplaying/internal/config"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/executor"
	"github.com/genricoloni/nowplaying/internal/fetcher"
	"github.com/genricoloni/nowplaying/internal/processor"
	"github.com/genricoloni/nowplaying/internal/sessions"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// AppOptions wires the whole object graph. The caller supplies the parsed *pflag.FlagSet.
var AppOptions = fx.Options(
	// Logger configuration
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	// Provide dependencies
	fx.Provide(
		newLogger,
		loadConfig,
		newSettings,
		newRunner,
		newFetcher,
		newProcessor,
		newBackend,
		newSessions,
	),
)

// newLogger creates a quiet production logger, or a development one when verbose is configured
func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Verbose {
		return zap.NewDevelopment()
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

func loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	return config.Load(flags)
}

func newSettings(logger *zap.Logger, cfg config.Config) (domain.Settings, error) {
	logger.Info("Configuration loaded", cfg.Fields()...)
	return cfg.Settings()
}

func newRunner(logger *zap.Logger) domain.Runner {
	return executor.NewRunner(logger)
}

func newFetcher(logger *zap.Logger) domain.Fetcher {
	return fetcher.New(logger)
}

func newProcessor(logger *zap.Logger, settings domain.Settings) domain.ImageProcessor {
	return processor.NewArtworkProcessor(logger, settings)
}

func newBackend(logger *zap.Logger, runner domain.Runner, f domain.Fetcher) (domain.Backend, error) {
	return backend.New(backend.Deps{
		Logger:  logger,
		Runner:  runner,
		Fetcher: f,
	})
}

// newSessions builds the facade and closes it when the app stops
func newSessions(lc fx.Lifecycle, logger *zap.Logger, settings domain.Settings, b domain.Backend, p domain.ImageProcessor) *sessions.Sessions {
	s := sessions.New(logger, settings, b, p)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Debug("Media sessions ready", zap.String("platform", s.Platform()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Debug("Shutting down")
			return s.Close()
		},
	})
	return s
}
