package conduit

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks github.com/matheus3301/pimsync/internal/conduit Store

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/calstore"
	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/paths"
)

// Store is the desktop side of a conduit.
type Store interface {
	URI() string
	DefaultObject(ctx context.Context) (*calstore.Component, error)
	List(ctx context.Context) ([]*calstore.Component, error)
	Get(ctx context.Context, uid string) (*calstore.Component, error)
	Create(ctx context.Context, c *calstore.Component) (string, error)
	Modify(ctx context.Context, c *calstore.Component) error
	Remove(ctx context.Context, uid string) error
	GetChanges(ctx context.Context, changeID string) ([]calstore.Change, error)
	Close() error
}

// StoreOpener connects a session to its desktop store.
type StoreOpener func(ctx context.Context, kind config.Kind, cfg *config.ConduitConfig) (Store, error)

// OpenCalStore opens the SQLite store of the configured source.
func OpenCalStore(logger *zap.Logger) StoreOpener {
	return func(_ context.Context, kind config.Kind, cfg *config.ConduitConfig) (Store, error) {
		source := paths.ResolveSource("", cfg.Source)
		if err := paths.ValidateSource(source); err != nil {
			return nil, err
		}
		return calstore.Open(paths.StorePath(kind, source), componentKind(kind), logger)
	}
}

func componentKind(kind config.Kind) calstore.Kind {
	if kind == config.KindMemo {
		return calstore.KindJournal
	}
	return calstore.KindTodo
}
