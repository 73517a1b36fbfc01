package mail

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/db"
	"github.com/matheus3301/pimsync/internal/mail/migrations"
)

// SummaryFile is the summary database name inside a folder.
const SummaryFile = ".summary.db"

// Summary is the per-folder index of message metadata. A uid, once added,
// is never accepted again, even after Remove.
type Summary struct {
	db     *db.DB
	logger *zap.Logger
}

// OpenSummary opens (creating if needed) the summary database at path.
func OpenSummary(path string, logger *zap.Logger) (*Summary, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create summary dir: %w", err)
	}
	d, _, err := db.OpenMigrated(path, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("open summary: %w", err)
	}
	return NewSummary(d, logger), nil
}

// NewSummary wraps an already migrated database.
func NewSummary(d *db.DB, logger *zap.Logger) *Summary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summary{db: d, logger: logger}
}

// Close closes the database.
func (s *Summary) Close() error {
	return s.db.Close()
}

// NextUID returns a fresh value of the folder's uid counter.
func (s *Summary) NextUID(ctx context.Context) (uint64, error) {
	var next uint64
	err := s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO summary_meta (key, value) VALUES ('next_uid', 1)
			ON CONFLICT(key) DO UPDATE SET value = value + 1`); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT value FROM summary_meta WHERE key = 'next_uid'`).Scan(&next)
	})
	if err != nil {
		return 0, fmt.Errorf("next uid: %w", err)
	}
	return next, nil
}

// Add registers info. It fails with ErrUIDExists when the uid is in use or
// was used before.
func (s *Summary) Add(ctx context.Context, info *MessageInfo) error {
	err := s.db.WithTx(func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM messages WHERE uid = ?) + (SELECT COUNT(*) FROM retired_uids WHERE uid = ?)`,
			info.UID, info.UID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrUIDExists
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (uid, flags, subject, sender, date, size) VALUES (?, ?, ?, ?, ?, ?)`,
			info.UID, info.Flags, info.Subject, info.From, unixMilli(info.Date), info.Size)
		return err
	})
	if errors.Is(err, ErrUIDExists) {
		return &Error{Kind: ErrUIDExists, Op: "summary add", Err: errors.New(info.UID)}
	}
	if err != nil {
		return fmt.Errorf("summary add %s: %w", info.UID, err)
	}
	s.logger.Debug("summary add", zap.String("uid", info.UID), zap.String("flags", info.Flags.String()))
	return nil
}

// Update rewrites the metadata of an existing entry.
func (s *Summary) Update(ctx context.Context, info *MessageInfo) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET flags = ?, subject = ?, sender = ?, date = ?, size = ? WHERE uid = ?`,
		info.Flags, info.Subject, info.From, unixMilli(info.Date), info.Size, info.UID)
	return affected("summary update", info.UID, res, err)
}

// Get returns the entry for uid, or an ErrInvalidUID error.
func (s *Summary) Get(ctx context.Context, uid string) (*MessageInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+infoColumns+` FROM messages WHERE uid = ?`, uid)
	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, InvalidUID("summary get", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("summary get %s: %w", uid, err)
	}
	return info, nil
}

// List returns every entry in the order they were added.
func (s *Summary) List(ctx context.Context) ([]*MessageInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+infoColumns+` FROM messages ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("summary list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*MessageInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("summary list: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Count returns the number of entries.
func (s *Summary) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("summary count: %w", err)
	}
	return n, nil
}

// SetFlags replaces the flags of uid.
func (s *Summary) SetFlags(ctx context.Context, uid string, flags Flags) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET flags = ? WHERE uid = ?`, flags, uid)
	return affected("summary set flags", uid, res, err)
}

// Remove drops uid and retires it.
func (s *Summary) Remove(ctx context.Context, uid string) error {
	err := s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE uid = ?`, uid); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO retired_uids (uid) VALUES (?)`, uid)
		return err
	})
	if err != nil {
		return fmt.Errorf("summary remove %s: %w", uid, err)
	}
	s.logger.Debug("summary remove", zap.String("uid", uid))
	return nil
}

// Forget drops uid without retiring it, so the same uid may be added
// again. Caches keyed by a server identifier use it.
func (s *Summary) Forget(ctx context.Context, uid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("summary forget %s: %w", uid, err)
	}
	return nil
}

const infoColumns = `uid, flags, subject, sender, date, size`

type scanner interface {
	Scan(dest ...any) error
}

func scanInfo(s scanner) (*MessageInfo, error) {
	var (
		info  MessageInfo
		flags int
		date  int64
	)
	if err := s.Scan(&info.UID, &flags, &info.Subject, &info.From, &date, &info.Size); err != nil {
		return nil, err
	}
	info.Flags = Flags(flags)
	if date != 0 {
		info.Date = time.UnixMilli(date).UTC()
	}
	return &info, nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func affected(op, uid string, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, uid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return InvalidUID(op, uid)
	}
	return nil
}
