package daemon

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/pimsync/internal/bus"
	"github.com/matheus3301/pimsync/internal/status"
)

// Watcher mirrors conduit session outcomes into the health service: a
// conduit is SERVING after a session reaches DONE and NOT_SERVING after
// one aborts.
type Watcher struct {
	bus    *bus.Bus
	health *health.Server
	logger *zap.Logger
	cancel context.CancelFunc
	done   <-chan struct{}
}

// NewWatcher creates a watcher.
func NewWatcher(b *bus.Bus, hs *health.Server, logger *zap.Logger) *Watcher {
	return &Watcher{bus: b, health: hs, logger: logger}
}

// Start subscribes to sync events.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = w.bus.Handle(ctx, "sync.", 64, w.handle)
}

// Stop unsubscribes.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

func (w *Watcher) handle(evt bus.Event) {
	change, ok := evt.Payload.(status.StatusChange)
	if !ok || evt.Kind != bus.SyncStateChanged {
		return
	}
	switch change.To {
	case status.Done:
		w.health.SetServingStatus(change.Conduit, healthpb.HealthCheckResponse_SERVING)
	case status.Abort:
		w.logger.Warn("conduit aborted", zap.String("conduit", change.Conduit), zap.String("from", string(change.From)))
		w.health.SetServingStatus(change.Conduit, healthpb.HealthCheckResponse_NOT_SERVING)
	}
}
