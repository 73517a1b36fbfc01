// Package mh stores a mail folder in MH layout: one file per message,
// named by its decimal number.
package mh

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/bus"
	"github.com/matheus3301/pimsync/internal/mail"
)

// Options configures a Folder.
type Options struct {
	Bus    *bus.Bus
	Logger *zap.Logger
}

// Folder is one MH folder.
type Folder struct {
	name    string
	path    string
	summary *mail.Summary
	bus     *bus.Bus
	logger  *zap.Logger
	changes *mail.ChangeInfo
}

// Open opens the MH folder at path, creating it when missing.
func Open(path string, opts Options) (*Folder, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, mail.SystemError("open mh", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	summary, err := mail.OpenSummary(filepath.Join(path, mail.SummaryFile), logger)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	return &Folder{
		name:    name,
		path:    path,
		summary: summary,
		bus:     opts.Bus,
		logger:  logger.With(zap.String("mh", name)),
		changes: mail.NewChangeInfo(name),
	}, nil
}

// Close closes the summary.
func (f *Folder) Close() error {
	return f.summary.Close()
}

// Path is the folder directory.
func (f *Folder) Path() string { return f.path }

// Append stores the message read from r under the next free number.
func (f *Folder) Append(ctx context.Context, r io.Reader, flags mail.Flags) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", mail.IOError(ctx, "append", err)
	}
	msg, err := mail.ParseMessage(raw)
	if err != nil {
		return "", mail.SystemError("append", err)
	}
	info := msg.Info
	info.Flags = flags

	for {
		n, err := f.summary.NextUID(ctx)
		if err != nil {
			return "", mail.SystemError("append", err)
		}
		info.UID = strconv.FormatUint(n, 10)
		if _, err := os.Lstat(f.file(info.UID)); err == nil {
			continue
		}
		err = f.summary.Add(ctx, &info)
		if errors.Is(err, mail.ErrUIDExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		break
	}

	if err := f.write(ctx, f.file(info.UID), raw); err != nil {
		_ = os.Remove(f.file(info.UID))
		if rerr := f.summary.Remove(context.WithoutCancel(ctx), info.UID); rerr != nil {
			f.logger.Error("drop summary entry", zap.String("uid", info.UID), zap.Error(rerr))
		}
		return "", mail.IOError(ctx, "append", err)
	}

	f.changes.Add(info.UID)
	f.changes.Notify(f.bus)
	return info.UID, nil
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
	if err := out.Close(); err != nil {
		return err
	}
	return ctx.Err()
}

func (f *Folder) file(uid string) string {
	return filepath.Join(f.path, uid)
}

// Get reads and parses message uid.
func (f *Folder) Get(ctx context.Context, uid string) (*mail.Message, error) {
	info, err := f.summary.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.file(uid))
	if err != nil {
		return nil, mail.IOError(ctx, "get", err)
	}
	msg, err := mail.ParseMessage(raw)
	if err != nil {
		return nil, mail.SystemError("get", err)
	}
	msg.Info = *info
	return msg, nil
}

// List returns the summary entries in append order.
func (f *Folder) List(ctx context.Context) ([]*mail.MessageInfo, error) {
	return f.summary.List(ctx)
}

// SetFlags replaces the flags of uid. MH keeps them in the summary only.
func (f *Folder) SetFlags(ctx context.Context, uid string, flags mail.Flags) error {
	if err := f.summary.SetFlags(ctx, uid, flags); err != nil {
		return err
	}
	f.changes.Change(uid)
	f.changes.Notify(f.bus)
	return nil
}

// Remove deletes message uid. Its number is not handed out again.
func (f *Folder) Remove(ctx context.Context, uid string) error {
	if _, err := f.summary.Get(ctx, uid); err != nil {
		return err
	}
	if err := os.Remove(f.file(uid)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return mail.SystemError("remove", err)
	}
	if err := f.summary.Remove(ctx, uid); err != nil {
		return err
	}
	f.changes.Remove(uid)
	f.changes.Notify(f.bus)
	return nil
}

// Rescan registers numbered files the summary does not know and drops
// entries whose file is gone.
func (f *Folder) Rescan(ctx context.Context) error {
	entries, err := os.ReadDir(f.path)
	if err != nil {
		return mail.SystemError("rescan", err)
	}
	known, err := f.summary.List(ctx)
	if err != nil {
		return err
	}
	byUID := make(map[string]bool, len(known))
	for _, info := range known {
		byUID[info.UID] = true
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if n, err := strconv.ParseUint(name, 10, 64); err != nil || strconv.FormatUint(n, 10) != name {
			continue
		}
		seen[name] = true
		if byUID[name] {
			continue
		}
		raw, err := os.ReadFile(f.file(name))
		if err != nil {
			return mail.IOError(ctx, "rescan", err)
		}
		msg, err := mail.ParseMessage(raw)
		if err != nil {
			f.logger.Warn("parse message", zap.String("uid", name), zap.Error(err))
			continue
		}
		info := msg.Info
		info.UID = name
		if err := f.summary.Add(ctx, &info); err != nil {
			f.logger.Warn("register message", zap.String("uid", name), zap.Error(err))
			continue
		}
		f.changes.Add(name)
	}

	for uid := range byUID {
		if seen[uid] {
			continue
		}
		if err := f.summary.Remove(ctx, uid); err != nil {
			return err
		}
		f.changes.Remove(uid)
	}
	f.changes.Notify(f.bus)
	return nil
}
