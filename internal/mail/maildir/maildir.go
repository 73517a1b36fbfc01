// Package maildir stores a mail folder in maildir layout: messages are
// written under tmp/ and renamed into cur/ with their flags encoded after
// the info separator.
package maildir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/bus"
	"github.com/matheus3301/pimsync/internal/mail"
)

const (
	dirTmp = "tmp"
	dirNew = "new"
	dirCur = "cur"

	// DefaultSeparator starts the info part of a file name.
	DefaultSeparator = ':'

	uidAttempts = 10
)

// Options configures a Folder.
type Options struct {
	// Separator replaces ':' on filesystems that reject it.
	Separator rune
	Bus       *bus.Bus
	Logger    *zap.Logger
}

// Folder is one maildir.
type Folder struct {
	name    string
	path    string
	sep     string
	summary *mail.Summary
	bus     *bus.Bus
	logger  *zap.Logger
	changes *mail.ChangeInfo

	mu       sync.Mutex
	lastTime int64
	lastSeq  uint32
	host     string

	// beforeRename runs between closing the tmp file and renaming it.
	beforeRename func()
}

// Open opens the maildir at path, creating its subdirectories and summary
// when missing.
func Open(path string, opts Options) (*Folder, error) {
	for _, d := range []string{dirTmp, dirNew, dirCur} {
		if err := os.MkdirAll(filepath.Join(path, d), 0700); err != nil {
			return nil, mail.SystemError("open maildir", err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	summary, err := mail.OpenSummary(filepath.Join(path, mail.SummaryFile), logger)
	if err != nil {
		return nil, err
	}
	sep := opts.Separator
	if sep == 0 {
		sep = DefaultSeparator
	}
	name := filepath.Base(path)
	host, _ := os.Hostname()
	return &Folder{
		name:    name,
		path:    path,
		sep:     string(sep),
		summary: summary,
		bus:     opts.Bus,
		logger:  logger.With(zap.String("maildir", name)),
		changes: mail.NewChangeInfo(name),
		host:    sanitizeHost(host),
	}, nil
}

// Close closes the summary.
func (f *Folder) Close() error {
	return f.summary.Close()
}

// Name is the folder name, the last element of its path.
func (f *Folder) Name() string { return f.name }

// Path is the folder directory.
func (f *Folder) Path() string { return f.path }

// Summary exposes the folder index.
func (f *Folder) Summary() *mail.Summary { return f.summary }

// NewUID returns a uid unique to this host and process:
// <unix time>_<sequence>.<pid>.<hostname>.
func (f *Folder) NewUID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().Unix()
	if now == f.lastTime {
		f.lastSeq++
	} else {
		f.lastTime = now
		f.lastSeq = 0
	}
	return fmt.Sprintf("%d_%d.%d.%s", now, f.lastSeq, os.Getpid(), f.host)
}

func sanitizeHost(host string) string {
	if host == "" {
		host = "localhost"
	}
	return strings.NewReplacer("/", `\057`, ":", `\072`).Replace(host)
}

// filename is the cur/ name of a message.
func (f *Folder) filename(uid string, flags mail.Flags) string {
	return uid + f.sep + "2," + flags.String()
}

// splitName returns the uid and flags encoded in a file name. Names without
// an info part carry no flags.
func (f *Folder) splitName(name string) (string, mail.Flags) {
	i := strings.LastIndex(name, f.sep+"2,")
	if i < 0 {
		return name, 0
	}
	return name[:i], mail.ParseFlags(name[i+len(f.sep)+2:])
}

// Append stores the message read from r under a fresh uid and returns it.
func (f *Folder) Append(ctx context.Context, r io.Reader, flags mail.Flags) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", mail.IOError(ctx, "append", err)
	}
	for range uidAttempts {
		uid := f.NewUID()
		err := f.append(ctx, uid, raw, flags)
		if errors.Is(err, mail.ErrUIDExists) {
			continue
		}
		return uid, err
	}
	return "", mail.SystemError("append", errors.New("no free uid"))
}

// AppendUID stores raw under uid. The uid must never have been used in
// this folder.
func (f *Folder) AppendUID(ctx context.Context, uid string, raw []byte, flags mail.Flags) error {
	if uid == "" || strings.ContainsAny(uid, "/"+f.sep) {
		return mail.InvalidUID("append", uid)
	}
	return f.append(ctx, uid, raw, flags)
}

func (f *Folder) append(ctx context.Context, uid string, raw []byte, flags mail.Flags) error {
	msg, err := mail.ParseMessage(raw)
	if err != nil {
		return mail.SystemError("append", err)
	}
	info := msg.Info
	info.UID = uid
	info.Flags = flags
	if err := f.summary.Add(ctx, &info); err != nil {
		return err
	}

	tmp := filepath.Join(f.path, dirTmp, uid)
	dst := filepath.Join(f.path, dirCur, f.filename(uid, flags))
	if err := f.write(ctx, tmp, raw); err != nil {
		return f.rollback(ctx, uid, tmp, err)
	}
	if f.beforeRename != nil {
		f.beforeRename()
	}
	if err := ctx.Err(); err != nil {
		return f.rollback(ctx, uid, tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return f.rollback(ctx, uid, tmp, err)
	}

	f.logger.Debug("message appended", zap.String("uid", uid), zap.String("flags", flags.String()))
	f.changes.Add(uid)
	f.changes.Notify(f.bus)
	return nil
}

func (f *Folder) write(ctx context.Context, path string, raw []byte) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := out.Write(raw); err != nil {
		_ = out.Close()
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// rollback undoes a failed append so the summary and the directory agree.
func (f *Folder) rollback(ctx context.Context, uid, tmp string, cause error) error {
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warn("remove partial message", zap.String("path", tmp), zap.Error(err))
	}
	if err := f.summary.Remove(context.WithoutCancel(ctx), uid); err != nil {
		f.logger.Error("drop summary entry", zap.String("uid", uid), zap.Error(err))
	}
	return mail.IOError(ctx, "append", cause)
}

// Info returns the summary entry of uid.
func (f *Folder) Info(ctx context.Context, uid string) (*mail.MessageInfo, error) {
	return f.summary.Get(ctx, uid)
}

// List returns the summary entries in append order.
func (f *Folder) List(ctx context.Context) ([]*mail.MessageInfo, error) {
	return f.summary.List(ctx)
}

// Get reads and parses the message stored under uid.
func (f *Folder) Get(ctx context.Context, uid string) (*mail.Message, error) {
	info, err := f.summary.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	path, err := f.locate(info)
	if err != nil {
		return nil, mail.IOError(ctx, "get", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, mail.IOError(ctx, "get", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, mail.IOError(ctx, "get", err)
	}
	msg, err := mail.ParseMessage(raw)
	if err != nil {
		return nil, mail.SystemError("get", err)
	}
	msg.Info = *info
	return msg, nil
}

// locate finds the file of info. The summary name is tried first; another
// client may have moved or renamed it since.
func (f *Folder) locate(info *mail.MessageInfo) (string, error) {
	path := filepath.Join(f.path, dirCur, f.filename(info.UID, info.Flags))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	for _, d := range []string{dirCur, dirNew} {
		entries, err := os.ReadDir(filepath.Join(f.path, d))
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			if uid, _ := f.splitName(e.Name()); uid == info.UID {
				return filepath.Join(f.path, d, e.Name()), nil
			}
		}
	}
	return "", fmt.Errorf("message %s: %w", info.UID, os.ErrNotExist)
}

// SetFlags replaces the flags of uid and renames its file to match.
func (f *Folder) SetFlags(ctx context.Context, uid string, flags mail.Flags) error {
	info, err := f.summary.Get(ctx, uid)
	if err != nil {
		return err
	}
	src, err := f.locate(info)
	if err != nil {
		return mail.SystemError("set flags", err)
	}
	dst := filepath.Join(f.path, dirCur, f.filename(uid, flags))
	if src != dst {
		if err := os.Rename(src, dst); err != nil {
			return mail.SystemError("set flags", err)
		}
	}
	if err := f.summary.SetFlags(ctx, uid, flags); err != nil {
		return err
	}
	f.changes.Change(uid)
	f.changes.Notify(f.bus)
	return nil
}

// Expunge removes every message flagged deleted and returns their uids.
func (f *Folder) Expunge(ctx context.Context) ([]string, error) {
	infos, err := f.summary.List(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, info := range infos {
		if !info.Flags.Has(mail.FlagDeleted) {
			continue
		}
		if path, err := f.locate(info); err == nil {
			if err := os.Remove(path); err != nil {
				return removed, mail.SystemError("expunge", err)
			}
		}
		if err := f.summary.Remove(ctx, info.UID); err != nil {
			return removed, err
		}
		removed = append(removed, info.UID)
		f.changes.Remove(info.UID)
	}
	f.changes.Notify(f.bus)
	return removed, nil
}
