// Package handheld stores a handheld's databases in a local SQLite image.
// The image stands in for a device connection: conduits read and write it
// through pilot.Database, and the simulation helpers play the user editing
// records on the device between syncs.
package handheld

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/category"
	"github.com/matheus3301/pimsync/internal/db"
	"github.com/matheus3301/pimsync/internal/handheld/migrations"
	"github.com/matheus3301/pimsync/internal/pilot"
)

const (
	ToDoDB = "ToDoDB"
	MemoDB = "MemoDB"
)

// firstRecordID is the lowest ID the image hands out.
const firstRecordID = 0x100001

// Image is a handheld database image.
type Image struct {
	db     *db.DB
	logger *zap.Logger
}

var _ pilot.Database = (*Image)(nil)

// Open opens (creating if needed) the image at path. Fresh images get
// empty ToDoDB and MemoDB application blocks.
func Open(path string, logger *zap.Logger) (*Image, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	d, _, err := db.OpenMigrated(path, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("open handheld image: %w", err)
	}
	img := New(d, logger)
	if err := img.seed(context.Background()); err != nil {
		_ = d.Close()
		return nil, err
	}
	return img, nil
}

// New wraps an already migrated database.
func New(d *db.DB, logger *zap.Logger) *Image {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Image{db: d, logger: logger}
}

func (img *Image) seed(ctx context.Context) error {
	blocks := map[string][]byte{
		ToDoDB: (&pilot.ToDoAppInfo{Category: category.NewTable()}).Pack(),
		MemoDB: (&pilot.MemoAppInfo{Category: category.NewTable()}).Pack(),
	}
	for name, data := range blocks {
		if _, err := img.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO app_blocks (db_name, data) VALUES (?, ?)`, name, data); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the image.
func (img *Image) Close() error {
	return img.db.Close()
}

func (img *Image) ReadAppBlock(ctx context.Context, dbName string) ([]byte, error) {
	var data []byte
	err := img.db.QueryRowContext(ctx, `SELECT data FROM app_blocks WHERE db_name = ?`, dbName).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read app block %s: %w", dbName, pilot.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read app block %s: %w", dbName, err)
	}
	return data, nil
}

func (img *Image) WriteAppBlock(ctx context.Context, dbName string, data []byte) error {
	if len(data) > pilot.MaxAppBlockSize {
		return fmt.Errorf("write app block %s: %d bytes exceeds limit", dbName, len(data))
	}
	_, err := img.db.ExecContext(ctx, `
		INSERT INTO app_blocks (db_name, data) VALUES (?, ?)
		ON CONFLICT(db_name) DO UPDATE SET data = excluded.data`, dbName, data)
	if err != nil {
		return fmt.Errorf("write app block %s: %w", dbName, err)
	}
	return nil
}

const recordColumns = `id, category, attr, archived, secret, data`

func (img *Image) ReadRecordByID(ctx context.Context, dbName string, id uint32) (*pilot.Record, error) {
	row := img.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE db_name = ? AND id = ?`, dbName, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pilot.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %d: %w", id, err)
	}
	return rec, nil
}

func (img *Image) Records(ctx context.Context, dbName string) ([]*pilot.Record, error) {
	return img.query(ctx, `SELECT `+recordColumns+` FROM records WHERE db_name = ? ORDER BY id`, dbName)
}

func (img *Image) ModifiedRecords(ctx context.Context, dbName string) ([]*pilot.Record, error) {
	return img.query(ctx, `SELECT `+recordColumns+` FROM records WHERE db_name = ? AND attr != 0 ORDER BY id`, dbName)
}

// WriteRecord stores rec as a clean record, as a desktop write does.
func (img *Image) WriteRecord(ctx context.Context, dbName string, rec *pilot.Record) (uint32, error) {
	return img.put(ctx, dbName, rec, pilot.AttrNothing)
}

func (img *Image) DeleteRecord(ctx context.Context, dbName string, id uint32) error {
	res, err := img.db.ExecContext(ctx, `DELETE FROM records WHERE db_name = ? AND id = ?`, dbName, id)
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pilot.ErrNotFound
	}
	return nil
}

func (img *Image) ResetSyncFlags(ctx context.Context, dbName string) error {
	if _, err := img.db.ExecContext(ctx, `UPDATE records SET attr = 0 WHERE db_name = ?`, dbName); err != nil {
		return fmt.Errorf("reset sync flags: %w", err)
	}
	return nil
}

func (img *Image) CleanUp(ctx context.Context, dbName string) error {
	res, err := img.db.ExecContext(ctx,
		`DELETE FROM records WHERE db_name = ? AND (attr = ? OR archived = 1)`, dbName, pilot.AttrDeleted)
	if err != nil {
		return fmt.Errorf("clean up: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		img.logger.Debug("purged records", zap.String("db", dbName), zap.Int64("count", n))
	}
	return nil
}

// Edit stores rec the way a user editing on the device would: new records
// are flagged new, existing ones modified.
func (img *Image) Edit(ctx context.Context, dbName string, rec *pilot.Record) (uint32, error) {
	attr := pilot.AttrModified
	if rec.ID == 0 {
		attr = pilot.AttrNew
	}
	return img.put(ctx, dbName, rec, attr)
}

// MarkDeleted flags a record deleted on the device.
func (img *Image) MarkDeleted(ctx context.Context, dbName string, id uint32) error {
	return img.mark(ctx, `UPDATE records SET attr = ? WHERE db_name = ? AND id = ?`, pilot.AttrDeleted, dbName, id)
}

// MarkArchived flags a record deleted with archive on the device.
func (img *Image) MarkArchived(ctx context.Context, dbName string, id uint32) error {
	return img.mark(ctx, `UPDATE records SET attr = ?, archived = 1 WHERE db_name = ? AND id = ?`, pilot.AttrDeleted, dbName, id)
}

func (img *Image) mark(ctx context.Context, query string, attr pilot.Attr, dbName string, id uint32) error {
	res, err := img.db.ExecContext(ctx, query, attr, dbName, id)
	if err != nil {
		return fmt.Errorf("mark record %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pilot.ErrNotFound
	}
	return nil
}

func (img *Image) put(ctx context.Context, dbName string, rec *pilot.Record, attr pilot.Attr) (uint32, error) {
	id := rec.ID
	err := img.db.WithTx(func(tx *sql.Tx) error {
		if id == 0 {
			var maxID sql.NullInt64
			if err := tx.QueryRowContext(ctx,
				`SELECT MAX(id) FROM records WHERE db_name = ?`, dbName).Scan(&maxID); err != nil {
				return err
			}
			id = firstRecordID
			if maxID.Valid && uint32(maxID.Int64) >= id {
				id = uint32(maxID.Int64) + 1
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (db_name, id, category, attr, archived, secret, data)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(db_name, id) DO UPDATE SET
				category = excluded.category,
				attr = excluded.attr,
				archived = excluded.archived,
				secret = excluded.secret,
				data = excluded.data`,
			dbName, id, rec.Category, attr, rec.Archived, rec.Secret, rec.Data)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("write record: %w", err)
	}
	return id, nil
}

func (img *Image) query(ctx context.Context, query string, args ...any) ([]*pilot.Record, error) {
	rows, err := img.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []*pilot.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*pilot.Record, error) {
	var (
		rec  pilot.Record
		id   int64
		attr int
	)
	if err := s.Scan(&id, &rec.Category, &attr, &rec.Archived, &rec.Secret, &rec.Data); err != nil {
		return nil, err
	}
	rec.ID = uint32(id)
	rec.Attr = pilot.Attr(attr)
	return &rec, nil
}
