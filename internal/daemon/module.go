package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"github.com/matheus3301/pimsync/internal/bus"
	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/handheld"
	"github.com/matheus3301/pimsync/internal/lock"
	"github.com/matheus3301/pimsync/internal/logging"
	"github.com/matheus3301/pimsync/internal/paths"
	"github.com/matheus3301/pimsync/internal/pilot"
)

// Params holds the resolved daemon settings passed to the fx module.
type Params struct {
	ConfigPath   string // empty = paths.ConfigPath()
	HandheldPath string // empty = config value, then paths.HandheldPath()
	SocketPath   string // optional override for testing; empty = use default
	LogLevel     string // overrides the config file when set
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideHandheld,
			provideDatabase,
			provideHealth,
			NewScheduler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = paths.ConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if p.LogLevel != "" {
		cfg.LogLevel = p.LogLevel
	}
	if p.HandheldPath != "" {
		cfg.Handheld = p.HandheldPath
	}
	if cfg.Handheld == "" {
		cfg.Handheld = paths.HandheldPath()
	}
	return cfg, cfg.Validate()
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(paths.LogPath("pilotsyncd"), "pilotsyncd", cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	if err := paths.EnsureDir(); err != nil {
		return nil, err
	}
	logger.Info("acquiring daemon lock", zap.String("dir", paths.DaemonDir()))
	l, err := lock.Acquire(paths.DaemonDir())
	if err != nil {
		return nil, err
	}
	logger.Info("daemon lock acquired")
	return l, nil
}

func provideHandheld(cfg *config.Config, logger *zap.Logger) (*handheld.Image, error) {
	img, err := handheld.Open(cfg.Handheld, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("handheld image opened", zap.String("path", cfg.Handheld))
	return img, nil
}

func provideDatabase(img *handheld.Image) pilot.Database {
	return img
}

func provideHealth() *health.Server {
	return health.NewServer()
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, img *handheld.Image, sched *Scheduler, hs *health.Server, b *bus.Bus, logger *zap.Logger) {
	w := NewWatcher(b, hs, logger)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Health follows conduit state events.
			w.Start(context.Background())

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			sched.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sched.Stop()
			w.Stop()
			hs.Shutdown()
			srv.Stop(ctx)
			if err := img.Close(); err != nil {
				logger.Warn("error closing handheld image", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
