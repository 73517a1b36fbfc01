package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/bus"
	"github.com/matheus3301/pimsync/internal/conduit"
	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/pilot"
	"github.com/matheus3301/pimsync/internal/syncabs"
)

// Scheduler runs every configured conduit against the handheld image,
// once at start and then every sync interval.
type Scheduler struct {
	cfg    *config.Config
	db     pilot.Database
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}

	// OpenStore overrides the desktop store of every session when set.
	OpenStore conduit.StoreOpener

	mu      sync.Mutex
	results map[string]*syncabs.Result
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg *config.Config, db pilot.Database, b *bus.Bus, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		db:      db,
		bus:     b,
		logger:  logger,
		results: make(map[string]*syncabs.Result),
	}
}

// Start begins the sync loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	s.SyncOnce(ctx)
	if s.cfg.SyncInterval <= 0 {
		s.logger.Info("sync interval disabled, ran once")
		return
	}

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SyncOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// SyncOnce runs each configured conduit in order. A failing conduit does
// not stop the others.
func (s *Scheduler) SyncOnce(ctx context.Context) {
	for _, ref := range s.cfg.Conduits {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.SyncConduit(ctx, ref); err != nil {
			s.logger.Error("conduit sync failed",
				zap.String("kind", string(ref.Kind)),
				zap.Uint32("pilot_id", ref.PilotID),
				zap.Error(err))
		}
	}
}

// SyncConduit runs a single sync session for ref.
func (s *Scheduler) SyncConduit(ctx context.Context, ref config.ConduitRef) (*syncabs.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := conduit.New(ref.Kind, conduit.Options{
		PilotID:   ref.PilotID,
		Timezone:  s.cfg.Timezone,
		OpenStore: s.OpenStore,
		Bus:       s.bus,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := syncabs.Run(ctx, sess, s.db, s.logger)
	if err != nil {
		return nil, err
	}
	s.results[sess.Name()] = res
	s.logger.Info("conduit synced",
		zap.String("conduit", sess.Name()),
		zap.Bool("slow", res.Slow),
		zap.Int("desktop_added", res.DesktopAdded),
		zap.Int("device_written", res.DeviceWritten),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

// LastResult returns the outcome of the last successful run of a conduit,
// named as "todo/1".
func (s *Scheduler) LastResult(name string) (*syncabs.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[name]
	return res, ok
}
