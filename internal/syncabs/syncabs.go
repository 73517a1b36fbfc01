// Package syncabs drives a conduit through one sync session against a
// handheld database: device changes flow to the desktop, then desktop
// changes flow back to the device.
package syncabs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/conduit"
	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/pilot"
)

// Driver is the callback set of one conduit. *conduit.Session implements it.
type Driver interface {
	Name() string
	DBName() string
	SyncType() config.SyncType
	Slow() bool

	PreSync(ctx context.Context, db pilot.Database) error
	PostSync(ctx context.Context) error
	Close() error

	ForEach(ctx context.Context) (*conduit.LocalRecord, error)
	ForEachModified(ctx context.Context) (*conduit.LocalRecord, error)
	Match(ctx context.Context, remote *pilot.Record) (*conduit.LocalRecord, error)
	FreeMatch(local *conduit.LocalRecord)
	Prepare(local *conduit.LocalRecord) (*pilot.Record, error)
	Compare(local *conduit.LocalRecord, remote *pilot.Record) (int, error)
	AddRecord(ctx context.Context, remote *pilot.Record) error
	ReplaceRecord(ctx context.Context, local *conduit.LocalRecord, remote *pilot.Record) error
	DeleteRecord(ctx context.Context, local *conduit.LocalRecord) error
	ArchiveRecord(local *conduit.LocalRecord, archive bool) error
	SetPilotID(local *conduit.LocalRecord, id uint32) error
	SetStatusCleared(local *conduit.LocalRecord) error
}

var _ Driver = (*conduit.Session)(nil)

// Result counts what a session did.
type Result struct {
	Slow            bool `json:"slow"`
	DesktopAdded    int  `json:"desktop_added"`
	DesktopReplaced int  `json:"desktop_replaced"`
	DesktopDeleted  int  `json:"desktop_deleted"`
	Archived        int  `json:"archived"`
	DeviceWritten   int  `json:"device_written"`
	DeviceDeleted   int  `json:"device_deleted"`
	Failed          int  `json:"failed"`
}

type run struct {
	drv    Driver
	db     pilot.Database
	dbName string
	logger *zap.Logger
	res    *Result
	// seen holds device IDs known to both sides after the session.
	seen map[uint32]bool
}

// Run syncs one conduit against db. Failures confined to one record are
// counted and skipped; any other failure ends the session and is returned.
func Run(ctx context.Context, drv Driver, db pilot.Database, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &run{
		drv:    drv,
		db:     db,
		dbName: drv.DBName(),
		logger: logger.With(zap.String("conduit", drv.Name())),
		res:    &Result{},
		seen:   make(map[uint32]bool),
	}
	if err := r.exec(ctx); err != nil {
		if cerr := drv.Close(); cerr != nil {
			r.logger.Warn("close after abort", zap.Error(cerr))
		}
		return r.res, err
	}
	return r.res, nil
}

func (r *run) exec(ctx context.Context) error {
	if err := r.drv.PreSync(ctx, r.db); err != nil {
		return err
	}
	r.res.Slow = r.drv.Slow()

	st := r.drv.SyncType()
	toDesktop := st != config.SyncTypeCopyToPilot && st != config.SyncTypeMergeToPilot
	toDevice := st != config.SyncTypeCopyFromPilot && st != config.SyncTypeMergeFromPilot
	r.logger.Info("sync started",
		zap.String("sync_type", string(st)),
		zap.Bool("slow", r.res.Slow))

	if toDesktop {
		if err := r.deviceToDesktop(ctx); err != nil {
			return err
		}
	}
	if st == config.SyncTypeCopyFromPilot {
		if err := r.pruneDesktop(ctx); err != nil {
			return err
		}
	}
	if toDevice {
		if err := r.desktopToDevice(ctx); err != nil {
			return err
		}
	}
	if st == config.SyncTypeCopyToPilot {
		if err := r.pruneDevice(ctx); err != nil {
			return err
		}
	}

	if err := r.db.CleanUp(ctx, r.dbName); err != nil {
		return deviceError("clean up", err)
	}
	if err := r.db.ResetSyncFlags(ctx, r.dbName); err != nil {
		return deviceError("reset sync flags", err)
	}
	if err := r.drv.PostSync(ctx); err != nil {
		return err
	}
	r.logger.Info("sync finished", zap.Any("result", r.res))
	return nil
}

// everything reports whether each record is visited, not only changed ones.
func (r *run) everything() bool {
	return r.res.Slow || r.drv.SyncType().IsCopy()
}

// skip absorbs a per-record failure. Anything else is returned.
func (r *run) skip(err error) error {
	if err == nil {
		return nil
	}
	if conduit.Code(err) == conduit.CodeRecord {
		r.res.Failed++
		r.logger.Warn("record skipped", zap.Error(err))
		return nil
	}
	return err
}

func deviceError(op string, err error) error {
	return &conduit.SyncError{Code: conduit.CodeAbort, Msg: "device " + op, Err: err}
}

func (r *run) deviceToDesktop(ctx context.Context) error {
	var (
		recs []*pilot.Record
		err  error
	)
	if r.everything() {
		recs, err = r.db.Records(ctx, r.dbName)
	} else {
		recs, err = r.db.ModifiedRecords(ctx, r.dbName)
	}
	if err != nil {
		return deviceError("list records", err)
	}
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.skip(r.syncRemote(ctx, rec)); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) syncRemote(ctx context.Context, rec *pilot.Record) error {
	local, err := r.drv.Match(ctx, rec)
	if err != nil {
		return err
	}
	if local == nil {
		if rec.Attr == pilot.AttrDeleted || rec.Archived {
			return nil
		}
		if err := r.drv.AddRecord(ctx, rec); err != nil {
			return err
		}
		r.res.DesktopAdded++
		r.seen[rec.ID] = true
		return nil
	}
	defer r.drv.FreeMatch(local)

	remoteChanged := rec.Attr != pilot.AttrNothing
	switch {
	case rec.Archived:
		if err := r.drv.ArchiveRecord(local, true); err != nil {
			return err
		}
		r.res.Archived++
		return r.drv.SetStatusCleared(local)

	case rec.Attr == pilot.AttrDeleted:
		if err := r.drv.DeleteRecord(ctx, local); err != nil {
			return err
		}
		r.res.DesktopDeleted++
		return r.drv.SetStatusCleared(local)

	case local.Attr == pilot.AttrDeleted:
		if !remoteChanged {
			return nil
		}
		// Edited on the device after the desktop deleted it: restore.
		if err := r.drv.AddRecord(ctx, rec); err != nil {
			return err
		}
		r.res.DesktopAdded++
		r.seen[rec.ID] = true
		return r.drv.SetStatusCleared(local)
	}

	r.seen[rec.ID] = true
	cmp, err := r.drv.Compare(local, rec)
	if err != nil {
		return err
	}
	localChanged := local.Attr != pilot.AttrNothing

	switch {
	case localChanged && remoteChanged:
		if cmp == 0 {
			return r.drv.SetStatusCleared(local)
		}
		// Both sides edited: keep the device copy as a separate record.
		if err := r.drv.AddRecord(ctx, rec); err != nil {
			return err
		}
		r.res.DesktopAdded++
		return nil
	case remoteChanged || (r.everything() && cmp != 0):
		if err := r.drv.ReplaceRecord(ctx, local, rec); err != nil {
			return err
		}
		r.res.DesktopReplaced++
		return r.drv.SetStatusCleared(local)
	}
	return nil
}

// pruneDesktop removes desktop records the device does not hold.
func (r *run) pruneDesktop(ctx context.Context) error {
	var stale []*conduit.LocalRecord
	for {
		local, err := r.drv.ForEach(ctx)
		if err != nil {
			return err
		}
		if local == nil {
			break
		}
		if local.ID == 0 || !r.seen[local.ID] {
			stale = append(stale, local)
			continue
		}
		r.drv.FreeMatch(local)
	}
	for _, local := range stale {
		err := r.drv.DeleteRecord(ctx, local)
		r.drv.FreeMatch(local)
		if err := r.skip(err); err != nil {
			return err
		}
		if err == nil {
			r.res.DesktopDeleted++
		}
	}
	return nil
}

func (r *run) desktopToDevice(ctx context.Context) error {
	next := r.drv.ForEachModified
	if r.everything() {
		next = r.drv.ForEach
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		local, err := next(ctx)
		if err != nil {
			return err
		}
		if local == nil {
			return nil
		}
		err = r.syncLocal(ctx, local)
		r.drv.FreeMatch(local)
		if err := r.skip(err); err != nil {
			return err
		}
	}
}

func (r *run) syncLocal(ctx context.Context, local *conduit.LocalRecord) error {
	if local.Archived {
		return nil
	}

	if local.Attr == pilot.AttrDeleted {
		if local.ID != 0 {
			err := r.db.DeleteRecord(ctx, r.dbName, local.ID)
			if err != nil && !errors.Is(err, pilot.ErrNotFound) {
				return deviceError("delete record", err)
			}
			r.res.DeviceDeleted++
		}
		if err := r.drv.DeleteRecord(ctx, local); err != nil {
			return err
		}
		return r.drv.SetStatusCleared(local)
	}

	switch {
	case local.ID == 0:
		if err := r.writeNew(ctx, local); err != nil {
			return err
		}
	case r.everything() && local.Attr == pilot.AttrNothing:
		remote, err := r.db.ReadRecordByID(ctx, r.dbName, local.ID)
		switch {
		case errors.Is(err, pilot.ErrNotFound):
			if err := r.writeNew(ctx, local); err != nil {
				return err
			}
		case err != nil:
			return deviceError(fmt.Sprintf("read record %d", local.ID), err)
		default:
			cmp, err := r.drv.Compare(local, remote)
			if err != nil {
				return err
			}
			if cmp != 0 {
				if err := r.write(ctx, local); err != nil {
					return err
				}
			}
		}
	case local.Attr == pilot.AttrNew || local.Attr == pilot.AttrModified:
		if err := r.write(ctx, local); err != nil {
			return err
		}
	}
	r.seen[local.ID] = true
	return r.drv.SetStatusCleared(local)
}

// writeNew writes local under a device-assigned ID and maps it.
func (r *run) writeNew(ctx context.Context, local *conduit.LocalRecord) error {
	rec, err := r.drv.Prepare(local)
	if err != nil {
		return err
	}
	rec.ID = 0
	id, err := r.db.WriteRecord(ctx, r.dbName, rec)
	if err != nil {
		return deviceError("write record", err)
	}
	r.res.DeviceWritten++
	return r.drv.SetPilotID(local, id)
}

func (r *run) write(ctx context.Context, local *conduit.LocalRecord) error {
	rec, err := r.drv.Prepare(local)
	if err != nil {
		return err
	}
	id, err := r.db.WriteRecord(ctx, r.dbName, rec)
	if err != nil {
		return deviceError("write record", err)
	}
	r.res.DeviceWritten++
	if id != local.ID {
		return r.drv.SetPilotID(local, id)
	}
	return nil
}

// pruneDevice removes device records the desktop does not hold.
func (r *run) pruneDevice(ctx context.Context) error {
	recs, err := r.db.Records(ctx, r.dbName)
	if err != nil {
		return deviceError("list records", err)
	}
	for _, rec := range recs {
		if r.seen[rec.ID] {
			continue
		}
		if err := r.db.DeleteRecord(ctx, r.dbName, rec.ID); err != nil && !errors.Is(err, pilot.ErrNotFound) {
			return deviceError("delete record", err)
		}
		r.res.DeviceDeleted++
	}
	return nil
}
