// Package calstore is the desktop task and memo store the conduits sync
// against. Components are kept as JSON documents in SQLite together with
// per-client snapshots that turn the table into a change log.
package calstore

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/calstore/migrations"
	"github.com/matheus3301/pimsync/internal/db"
)

// ErrNotFound is returned when no component has the requested UID.
var ErrNotFound = errors.New("calstore: component not found")

// ChangeType classifies an entry of the change log.
type ChangeType int

const (
	ChangeAdded ChangeType = iota + 1
	ChangeModified
	ChangeDeleted
)

func (t ChangeType) String() string {
	switch t {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is one component changed since the previous GetChanges call with
// the same change ID.
type Change struct {
	UID  string
	Type ChangeType
}

// Store holds the components of one kind.
type Store struct {
	db     *db.DB
	uri    string
	kind   Kind
	logger *zap.Logger
}

// Open opens (creating if needed) the store database at path.
func Open(path string, kind Kind, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	d, _, err := db.OpenMigrated(abs, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return New(d, "sqlite://"+abs, kind, logger), nil
}

// New wraps an already migrated database.
func New(d *db.DB, uri string, kind Kind, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: d, uri: uri, kind: kind, logger: logger}
}

// URI identifies the backing database. A different URI between two syncs
// means the store was replaced.
func (s *Store) URI() string {
	return s.uri
}

// Kind returns the component kind held by the store.
func (s *Store) Kind() Kind {
	return s.kind
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DefaultObject returns the template new components are seeded from, with
// a fresh UID.
func (s *Store) DefaultObject(ctx context.Context) (*Component, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM defaults WHERE kind = ?`, s.kind).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		c := NewComponent(s.kind, GenUID())
		c.Classification = ClassPublic
		if s.kind == KindTodo {
			c.Status = StatusNeedsAction
		}
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get default object: %w", err)
	}
	c, err := decode(data)
	if err != nil {
		return nil, err
	}
	c.UID = GenUID()
	c.Kind = s.kind
	return c, nil
}

// SetDefaultObject replaces the template returned by DefaultObject.
func (s *Store) SetDefaultObject(ctx context.Context, c *Component) error {
	data, err := encode(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO defaults (kind, data) VALUES (?, ?)
		ON CONFLICT(kind) DO UPDATE SET data = excluded.data`, s.kind, data)
	if err != nil {
		return fmt.Errorf("set default object: %w", err)
	}
	return nil
}

// List returns every component of the store ordered by UID.
func (s *Store) List(ctx context.Context) ([]*Component, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM components WHERE kind = ? ORDER BY uid`, s.kind)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comps []*Component
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("list components: %w", err)
		}
		c, err := decode(data)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

// Get returns the component with uid.
func (s *Store) Get(ctx context.Context, uid string) (*Component, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM components WHERE kind = ? AND uid = ?`, s.kind, uid).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get component %s: %w", uid, err)
	}
	return decode(data)
}

// Create stores a new component and returns its UID, generating one when
// c.UID is empty.
func (s *Store) Create(ctx context.Context, c *Component) (string, error) {
	if c.UID == "" {
		c.UID = GenUID()
	}
	c.Kind = s.kind
	data, err := encode(c)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO components (uid, kind, data, updated_at) VALUES (?, ?, ?, ?)`,
		c.UID, s.kind, data, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("create component %s: %w", c.UID, err)
	}
	s.logger.Debug("component created", zap.String("uid", c.UID))
	return c.UID, nil
}

// Modify replaces every field of the stored component with c's.
func (s *Store) Modify(ctx context.Context, c *Component) error {
	c.Kind = s.kind
	data, err := encode(c)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE components SET data = ?, updated_at = ? WHERE kind = ? AND uid = ?`,
		data, time.Now().UnixMilli(), s.kind, c.UID)
	if err != nil {
		return fmt.Errorf("modify component %s: %w", c.UID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.logger.Debug("component modified", zap.String("uid", c.UID))
	return nil
}

// Remove deletes the component with uid.
func (s *Store) Remove(ctx context.Context, uid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM components WHERE kind = ? AND uid = ?`, s.kind, uid)
	if err != nil {
		return fmt.Errorf("remove component %s: %w", uid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.logger.Debug("component removed", zap.String("uid", uid))
	return nil
}

// GetChanges returns what changed since the last call with the same
// changeID and moves that client's checkpoint to now. The first call for a
// changeID reports every component as added.
func (s *Store) GetChanges(ctx context.Context, changeID string) ([]Change, error) {
	var changes []Change
	err := s.db.WithTx(func(tx *sql.Tx) error {
		current, err := hashes(ctx, tx, `SELECT uid, data FROM components WHERE kind = ?`, s.kind)
		if err != nil {
			return err
		}
		previous, err := snapshot(ctx, tx, changeID)
		if err != nil {
			return err
		}

		for uid, h := range current {
			old, seen := previous[uid]
			switch {
			case !seen:
				changes = append(changes, Change{UID: uid, Type: ChangeAdded})
			case old != h:
				changes = append(changes, Change{UID: uid, Type: ChangeModified})
			}
		}
		for uid := range previous {
			if _, ok := current[uid]; !ok {
				changes = append(changes, Change{UID: uid, Type: ChangeDeleted})
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM change_snapshots WHERE change_id = ?`, changeID); err != nil {
			return fmt.Errorf("reset snapshot: %w", err)
		}
		for uid, h := range current {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO change_snapshots (change_id, uid, hash) VALUES (?, ?, ?)`,
				changeID, uid, h); err != nil {
				return fmt.Errorf("write snapshot: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get changes %s: %w", changeID, err)
	}
	slices.SortFunc(changes, func(a, b Change) int {
		return cmp.Compare(a.UID, b.UID)
	})
	return changes, nil
}

func hashes(ctx context.Context, tx *sql.Tx, query string, args ...any) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read components: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var uid, data string
		if err := rows.Scan(&uid, &data); err != nil {
			return nil, err
		}
		sum := sha256.Sum256([]byte(data))
		out[uid] = hex.EncodeToString(sum[:])
	}
	return out, rows.Err()
}

func snapshot(ctx context.Context, tx *sql.Tx, changeID string) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT uid, hash FROM change_snapshots WHERE change_id = ?`, changeID)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var uid, h string
		if err := rows.Scan(&uid, &h); err != nil {
			return nil, err
		}
		out[uid] = h
	}
	return out, rows.Err()
}

func encode(c *Component) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode component %s: %w", c.UID, err)
	}
	return string(data), nil
}

func decode(data string) (*Component, error) {
	var c Component
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("decode component: %w", err)
	}
	return &c, nil
}
