// Package conduit implements the ToDo and Memo conduits: the callback set
// a device sync orchestrator drives to reconcile a handheld database with
// the desktop task or memo store.
package conduit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/bus"
	"github.com/matheus3301/pimsync/internal/calstore"
	"github.com/matheus3301/pimsync/internal/category"
	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/lock"
	"github.com/matheus3301/pimsync/internal/paths"
	"github.com/matheus3301/pimsync/internal/pilot"
	"github.com/matheus3301/pimsync/internal/pilotmap"
	"github.com/matheus3301/pimsync/internal/status"
)

// Version is logged at the start of every session.
const Version = "0.3.0"

// LocalRecord is a desktop component wrapped for the orchestrator, with
// its packed device form precomputed.
type LocalRecord struct {
	pilot.Record
	Comp *calstore.Component
}

// UID returns the desktop UID of the record.
func (l *LocalRecord) UID() string {
	return l.Comp.UID
}

// Counts summarizes the desktop side at the start of a session.
type Counts struct {
	Local    int
	Added    int
	Modified int
	Deleted  int
}

// Options configures a Session. Zero values fall back to the standard
// ~/.evolution layout and the SQLite desktop store.
type Options struct {
	PilotID    uint32
	Timezone   string
	ConfigPath string
	MapPath    string
	LockDir    string
	OpenStore  StoreOpener
	Reporter   Reporter
	Bus        *bus.Bus
	Logger     *zap.Logger
	Now        func() time.Time
}

// Session is the state of one conduit for one device. A Session is not
// safe for concurrent use; the orchestrator invokes one callback at a time.
type Session struct {
	codec    codec
	opts     Options
	cfg      *config.ConduitConfig
	logger   *zap.Logger
	bus      *bus.Bus
	machine  *status.Machine
	reporter Reporter

	lock        *lock.Lock
	db          pilot.Database
	store       Store
	tz          *time.Location
	defaultComp *calstore.Component
	pmap        *pilotmap.Map
	comps       []*calstore.Component
	byUID       map[string]*calstore.Component
	changes     []calstore.Change
	changed     map[string]calstore.ChangeType
	appInfo     pilot.AppInfo
	alloc       *category.Allocator
	slow        bool
	counts      Counts
	locals      map[*LocalRecord]struct{}
	eachPos     int
	modPos      int
}

// NewToDo returns the ToDo conduit for a device.
func NewToDo(opts Options) (*Session, error) {
	return newSession(todoCodec{}, opts)
}

// NewMemo returns the Memo conduit for a device.
func NewMemo(opts Options) (*Session, error) {
	return newSession(memoCodec{}, opts)
}

// New returns the conduit of kind for a device.
func New(kind config.Kind, opts Options) (*Session, error) {
	switch kind {
	case config.KindToDo:
		return NewToDo(opts)
	case config.KindMemo:
		return NewMemo(opts)
	default:
		return nil, fmt.Errorf("unknown conduit kind %q", kind)
	}
}

func newSession(c codec, opts Options) (*Session, error) {
	kind := c.kind()
	if opts.ConfigPath == "" {
		opts.ConfigPath = paths.ConduitConfigPath(kind, opts.PilotID)
	}
	if opts.MapPath == "" {
		opts.MapPath = paths.MapPath(kind, opts.PilotID)
	}
	if opts.LockDir == "" {
		opts.LockDir = paths.ConduitDir(kind, opts.PilotID)
	}
	if opts.Timezone == "" {
		opts.Timezone = "UTC"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OpenStore == nil {
		opts.OpenStore = OpenCalStore(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cfg, err := config.LoadConduit(opts.ConfigPath, opts.PilotID)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s/%d", kind, opts.PilotID)
	logger := opts.Logger.With(zap.String("conduit", name))
	reporter := opts.Reporter
	if reporter == nil {
		reporter = LogReporter(logger)
	}
	return &Session{
		codec:    c,
		opts:     opts,
		cfg:      cfg,
		logger:   logger,
		bus:      opts.Bus,
		machine:  status.NewMachine(name, opts.Bus),
		reporter: reporter,
		locals:   make(map[*LocalRecord]struct{}),
	}, nil
}

// Name identifies the conduit and device, e.g. "todo/1".
func (s *Session) Name() string { return s.machine.Name() }

// DBName is the handheld database the conduit syncs.
func (s *Session) DBName() string { return s.codec.dbName() }

// Config returns the conduit preferences in use.
func (s *Session) Config() *config.ConduitConfig { return s.cfg }

// State returns the current session phase.
func (s *Session) State() status.State { return s.machine.Current() }

// Slow reports whether this session re-evaluates every record.
func (s *Session) Slow() bool { return s.slow }

// SyncType returns the configured sync direction.
func (s *Session) SyncType() config.SyncType { return s.cfg.SyncType }

// Counts returns the desktop record counts gathered by PreSync.
func (s *Session) Counts() Counts { return s.counts }

// Map returns the UID map of the running session.
func (s *Session) Map() *pilotmap.Map { return s.pmap }

// PreSync opens the desktop store, loads the UID map and change log, reads
// the device application block and decides between slow and fast sync.
func (s *Session) PreSync(ctx context.Context, db pilot.Database) error {
	if err := s.machine.Enter(status.PreSync); err != nil {
		return abortError("start session", err)
	}
	s.reset()
	s.db = db

	s.logger.Info(fmt.Sprintf("%s Conduit v.%s", s.codec.label(), Version))

	l, err := lock.Acquire(s.opts.LockDir)
	if err != nil {
		return s.abort("Could not lock the conduit for this device", err)
	}
	s.lock = l

	tz, err := time.LoadLocation(s.opts.Timezone)
	if err != nil {
		return s.abort("Could not resolve the display timezone", err)
	}
	s.tz = tz
	s.logger.Debug("using timezone", zap.String("tz", tz.String()))

	store, err := s.opts.OpenStore(ctx, s.codec.kind(), s.cfg)
	if err != nil {
		return s.abort(fmt.Sprintf("Could not start the %s store", s.codec.label()), err)
	}
	s.store = store

	s.defaultComp, err = store.DefaultObject(ctx)
	if err != nil {
		return s.abort("Could not get the default component", err)
	}

	s.pmap, err = pilotmap.Read(s.opts.MapPath)
	if err != nil {
		s.logger.Warn("unreadable pilot map, starting from scratch", zap.Error(err))
	}

	s.comps, err = store.List(ctx)
	if err != nil {
		return s.abort("Could not list desktop records", err)
	}
	s.byUID = make(map[string]*calstore.Component, len(s.comps))
	for _, c := range s.comps {
		s.byUID[c.UID] = c
	}

	s.changes, err = store.GetChanges(ctx, s.changeID())
	if err != nil {
		return s.abort("Could not get desktop changes", err)
	}
	s.changed = make(map[string]calstore.ChangeType, len(s.changes))
	for _, ch := range s.changes {
		if s.pmap.UIDIsArchived(ch.UID) {
			if ch.Type == calstore.ChangeDeleted {
				s.pmap.RemoveByUID(ch.UID)
			}
			continue
		}
		s.changed[ch.UID] = ch.Type
		switch ch.Type {
		case calstore.ChangeAdded:
			s.counts.Added++
		case calstore.ChangeModified:
			s.counts.Modified++
		case calstore.ChangeDeleted:
			s.counts.Deleted++
		}
	}
	s.counts.Local = len(s.comps)
	s.logger.Info("record counts",
		zap.Int("num_records", s.counts.Local),
		zap.Int("add_records", s.counts.Added),
		zap.Int("mod_records", s.counts.Modified),
		zap.Int("del_records", s.counts.Deleted))

	block, err := db.ReadAppBlock(ctx, s.codec.dbName())
	if err != nil {
		return s.abort(fmt.Sprintf("Could not read pilot's %s application block", s.codec.label()), err)
	}
	s.appInfo, err = s.codec.unpackAppInfo(block)
	if err != nil {
		return s.abort(fmt.Sprintf("Could not read pilot's %s application block", s.codec.label()), err)
	}
	if s.alloc == nil {
		s.alloc = category.NewAllocator(s.appInfo.Categories(), s.logger)
	} else {
		s.alloc.Reset(s.appInfo.Categories())
	}

	s.checkForSlowSetting()
	if s.cfg.SyncType.IsCopy() {
		s.pmap.WriteTouchedOnly = true
	}

	next := status.FastSync
	if s.slow {
		next = status.SlowSync
	}
	if err := s.machine.Transition(next); err != nil {
		return s.abort("start session", err)
	}
	return nil
}

// checkForSlowSetting forces a slow sync when there is no map yet or the
// desktop store is not the one the map was built against.
func (s *Session) checkForSlowSetting() {
	if s.pmap.Len() == 0 {
		s.slow = true
	}
	uri := s.store.URI()
	s.logger.Debug("store uri", zap.String("current", uri), zap.String("last", s.cfg.LastURI))
	if s.cfg.LastURI != "" && s.cfg.LastURI != uri {
		s.slow = true
		s.pmap.Clear()
	}
	if s.slow {
		s.pmap.WriteTouchedOnly = true
		s.logger.Info("doing slow sync")
	} else {
		s.logger.Info("doing fast sync")
	}
}

func (s *Session) changeID() string {
	return fmt.Sprintf("pilot-sync-evolution-%s-%d", s.codec.kind(), s.opts.PilotID)
}

func (s *Session) reset() {
	_ = s.Close()
	s.slow = false
	s.counts = Counts{}
	s.eachPos = 0
	s.modPos = 0
	clear(s.locals)
}

// PostSync writes the category table back to the device, remembers the
// store URI, persists the UID map and checkpoints the change log.
func (s *Session) PostSync(ctx context.Context) error {
	if err := s.started(); err != nil {
		return err
	}
	if err := s.machine.Enter(status.PostSync); err != nil {
		return abortError("finish session", err)
	}

	if err := s.db.WriteAppBlock(ctx, s.codec.dbName(), s.appInfo.Pack()); err != nil {
		return s.abort(fmt.Sprintf("Could not write pilot's %s application block", s.codec.label()), err)
	}

	s.cfg.LastURI = s.store.URI()
	if err := config.SaveConduit(s.opts.ConfigPath, s.cfg); err != nil {
		s.logger.Error("save conduit config", zap.Error(err))
	}

	if err := s.pmap.Write(s.opts.MapPath); err != nil {
		s.logger.Error("write pilot map", zap.Error(err))
	}

	// Our own writes must not show up as pending next time. Anything
	// another client changes while the session runs is lost the same way.
	if _, err := s.store.GetChanges(ctx, s.changeID()); err != nil {
		s.logger.Warn("checkpoint change log", zap.Error(err))
	}

	if err := s.machine.Transition(status.Done); err != nil {
		s.logger.Warn("finish session", zap.Error(err))
	}
	s.bus.Emit(bus.SyncCompleted, s.counts)
	return s.Close()
}

// Close releases the store and the device lock. It is safe to call after
// PostSync or an abort.
func (s *Session) Close() error {
	var err error
	if s.store != nil {
		err = s.store.Close()
		s.store = nil
	}
	if rerr := s.lock.Release(); rerr != nil && err == nil {
		err = rerr
	}
	s.lock = nil
	return err
}

func (s *Session) abort(msg string, err error) error {
	s.logger.Error(msg, zap.Error(err))
	s.reporter.ReportError(msg)
	s.machine.Fail()
	return abortError(msg, err)
}

func (s *Session) started() error {
	if s.store == nil || s.pmap == nil || s.appInfo == nil {
		return ErrNotStarted
	}
	return nil
}

func (s *Session) env() *codecEnv {
	return &codecEnv{
		tz:       s.tz,
		priority: s.cfg.Priority,
		table:    s.alloc.Table(),
		now:      s.opts.Now().UTC(),
		logger:   s.logger,
	}
}

// ForEach returns the next desktop record, or nil once every record was
// returned. The following call starts over.
func (s *Session) ForEach(ctx context.Context) (*LocalRecord, error) {
	if err := s.started(); err != nil {
		return nil, err
	}
	if err := s.machine.Enter(status.IterateLocal); err != nil {
		return nil, err
	}
	if s.eachPos == 0 {
		s.logger.Debug("beginning for_each", zap.Int("records", len(s.comps)))
	}
	if s.eachPos >= len(s.comps) {
		s.logger.Debug("for_each ending")
		s.eachPos = 0
		return nil, nil
	}
	c := s.comps[s.eachPos]
	s.eachPos++
	return s.localFromComp(ctx, c), nil
}

// ForEachModified returns the next desktop record changed since the last
// sync, or nil at the end. The following call starts over.
func (s *Session) ForEachModified(ctx context.Context) (*LocalRecord, error) {
	if err := s.started(); err != nil {
		return nil, err
	}
	if err := s.machine.Enter(status.IterateModified); err != nil {
		return nil, err
	}
	if s.modPos == 0 {
		s.logger.Debug("beginning for_each_modified", zap.Int("records", len(s.changed)))
	}
	for s.modPos < len(s.changes) {
		ch := s.changes[s.modPos]
		s.modPos++
		if _, ok := s.changed[ch.UID]; !ok {
			continue
		}
		c, ok := s.byUID[ch.UID]
		if !ok {
			c = calstore.NewComponent(componentKind(s.codec.kind()), ch.UID)
		}
		return s.localFromComp(ctx, c), nil
	}
	s.logger.Debug("for_each_modified ending")
	s.modPos = 0
	return nil, nil
}

// localFromComp wraps c for the orchestrator and registers it with the
// session.
func (s *Session) localFromComp(ctx context.Context, c *calstore.Component) *LocalRecord {
	uid := c.UID
	local := &LocalRecord{Comp: c}
	local.ID = s.pmap.LookupPID(uid, false)
	local.Attr = s.computeStatus(uid)
	local.Archived = s.pmap.UIDIsArchived(uid)
	local.Secret = c.Classification == calstore.ClassPrivate

	if local.ID != 0 {
		rec, err := s.db.ReadRecordByID(ctx, s.codec.dbName(), local.ID)
		switch {
		case err == nil:
			local.Category = rec.Category
		case !errors.Is(err, pilot.ErrNotFound):
			s.logger.Warn("read device category", zap.Uint32("id", local.ID), zap.Error(err))
		}
	}
	if len(c.Categories) > 0 || local.ID == 0 {
		local.Category = s.alloc.ToRemote(c.Categories)
	}

	local.Data = s.codec.toDevice(c, s.env())
	s.locals[local] = struct{}{}
	return local
}

func (s *Session) computeStatus(uid string) pilot.Attr {
	switch s.changed[uid] {
	case calstore.ChangeAdded:
		return pilot.AttrNew
	case calstore.ChangeModified:
		return pilot.AttrModified
	case calstore.ChangeDeleted:
		return pilot.AttrDeleted
	default:
		return pilot.AttrNothing
	}
}

func (s *Session) enterRecord() error {
	if err := s.started(); err != nil {
		return err
	}
	return s.machine.Enter(status.Record)
}

// Compare returns 0 when local packs to exactly remote's bytes, else 1.
func (s *Session) Compare(local *LocalRecord, remote *pilot.Record) (int, error) {
	if err := s.enterRecord(); err != nil {
		return 0, err
	}
	if bytes.Equal(local.Data, remote.Data) {
		s.logger.Debug("compare: equal", zap.String("uid", local.UID()))
		return 0, nil
	}
	s.logger.Debug("compare: not equal", zap.String("uid", local.UID()))
	return 1, nil
}

// AddRecord creates a desktop component for a device record the desktop
// has never seen.
func (s *Session) AddRecord(ctx context.Context, remote *pilot.Record) error {
	if err := s.enterRecord(); err != nil {
		return err
	}
	s.logger.Debug("add_record: adding to desktop", zap.Uint32("id", remote.ID))

	comp, err := s.codec.fromDevice(remote, s.defaultComp, s.env())
	if err != nil {
		return recordError("unpack device record", err)
	}
	comp.UID = calstore.GenUID()
	if _, err := s.store.Create(ctx, comp); err != nil {
		return recordError("create desktop record", err)
	}
	s.pmap.Insert(remote.ID, comp.UID, false)
	return nil
}

// ReplaceRecord overwrites local with the contents of remote.
func (s *Session) ReplaceRecord(ctx context.Context, local *LocalRecord, remote *pilot.Record) error {
	if err := s.enterRecord(); err != nil {
		return err
	}
	s.logger.Debug("replace_record", zap.String("uid", local.UID()), zap.Uint32("id", remote.ID))

	comp, err := s.codec.fromDevice(remote, local.Comp, s.env())
	if err != nil {
		return recordError("unpack device record", err)
	}
	local.Comp = comp

	err = s.store.Modify(ctx, comp)
	if errors.Is(err, calstore.ErrNotFound) {
		_, err = s.store.Create(ctx, comp)
	}
	if err != nil {
		return recordError("modify desktop record", err)
	}
	return nil
}

// DeleteRecord forgets the mapping of local and deletes it from the desktop.
func (s *Session) DeleteRecord(ctx context.Context, local *LocalRecord) error {
	if err := s.enterRecord(); err != nil {
		return err
	}
	uid := local.UID()
	s.logger.Debug("delete_record", zap.String("uid", uid))

	s.pmap.RemoveByUID(uid)
	if err := s.store.Remove(ctx, uid); err != nil && !errors.Is(err, calstore.ErrNotFound) {
		return recordError("remove desktop record", err)
	}
	return nil
}

// ArchiveRecord flags the mapping of local archived, or live again.
func (s *Session) ArchiveRecord(local *LocalRecord, archive bool) error {
	if err := s.enterRecord(); err != nil {
		return err
	}
	s.logger.Debug("archive_record", zap.String("uid", local.UID()), zap.Bool("archive", archive))

	s.pmap.Insert(local.ID, local.UID(), archive)
	local.Archived = archive
	return nil
}

// Match returns the desktop record mapped to remote, or nil when the device
// record is unknown or archived.
func (s *Session) Match(ctx context.Context, remote *pilot.Record) (*LocalRecord, error) {
	if err := s.enterRecord(); err != nil {
		return nil, err
	}
	if s.pmap.PIDIsArchived(remote.ID) {
		s.logger.Debug("match: archived on desktop", zap.Uint32("id", remote.ID))
		return nil, nil
	}
	uid, ok := s.pmap.LookupUID(remote.ID, false)
	if !ok {
		return nil, nil
	}
	s.logger.Debug("match: matched", zap.Uint32("id", remote.ID), zap.String("uid", uid))

	comp, err := s.store.Get(ctx, uid)
	if errors.Is(err, calstore.ErrNotFound) {
		comp = calstore.NewComponent(componentKind(s.codec.kind()), uid)
	} else if err != nil {
		return nil, recordError("get desktop record", err)
	}
	return s.localFromComp(ctx, comp), nil
}

// FreeMatch releases a record returned by an iterator or Match.
func (s *Session) FreeMatch(local *LocalRecord) {
	delete(s.locals, local)
}

// Prepare returns the device form of local.
func (s *Session) Prepare(local *LocalRecord) (*pilot.Record, error) {
	if err := s.enterRecord(); err != nil {
		return nil, err
	}
	return local.Record.Clone(), nil
}

// SetPilotID records the device ID assigned to local.
func (s *Session) SetPilotID(local *LocalRecord, id uint32) error {
	if err := s.enterRecord(); err != nil {
		return err
	}
	s.logger.Debug("set_pilot_id", zap.String("uid", local.UID()), zap.Uint32("id", id))
	s.pmap.Insert(id, local.UID(), false)
	local.ID = id
	return nil
}

// SetStatusCleared marks local as synced.
func (s *Session) SetStatusCleared(local *LocalRecord) error {
	if err := s.enterRecord(); err != nil {
		return err
	}
	delete(s.changed, local.UID())
	return nil
}

// Pending returns how many records the session still holds.
func (s *Session) Pending() int {
	return len(s.locals)
}
