package maildir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/mail"
)

// Rescan brings the summary in line with the directories. Messages
// delivered to new/ move to cur/, unknown files are registered and
// rewritten ones re-parsed. Vanished ones are dropped and flags re-read
// from file names.
func (f *Folder) Rescan(ctx context.Context) error {
	if err := f.deliverNew(ctx); err != nil {
		return err
	}

	entries, err := os.ReadDir(filepath.Join(f.path, dirCur))
	if err != nil {
		return mail.SystemError("rescan", err)
	}
	known, err := f.summary.List(ctx)
	if err != nil {
		return err
	}
	byUID := make(map[string]*mail.MessageInfo, len(known))
	for _, info := range known {
		byUID[info.UID] = info
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return mail.IOError(ctx, "rescan", err)
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		uid, flags := f.splitName(e.Name())
		seen[uid] = true

		path := filepath.Join(f.path, dirCur, e.Name())
		info, ok := byUID[uid]
		if !ok {
			f.register(ctx, path, uid, flags)
			continue
		}
		if fi, err := e.Info(); err == nil && fi.Size() != info.Size {
			if err := f.refresh(ctx, path, uid, flags); err != nil {
				return err
			}
			continue
		}
		if info.Flags != flags {
			if err := f.summary.SetFlags(ctx, uid, flags); err != nil {
				return err
			}
			f.changes.Change(uid)
		}
	}

	for uid := range byUID {
		if seen[uid] {
			continue
		}
		if err := f.summary.Remove(ctx, uid); err != nil {
			return err
		}
		f.logger.Debug("message vanished", zap.String("uid", uid))
		f.changes.Remove(uid)
	}

	f.changes.Notify(f.bus)
	return nil
}

// deliverNew moves every message in new/ into cur/ without flags.
func (f *Folder) deliverNew(ctx context.Context) error {
	entries, err := os.ReadDir(filepath.Join(f.path, dirNew))
	if err != nil {
		return mail.SystemError("rescan", err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		uid, flags := f.splitName(e.Name())
		src := filepath.Join(f.path, dirNew, e.Name())
		dst := filepath.Join(f.path, dirCur, f.filename(uid, flags))
		if err := os.Rename(src, dst); err != nil {
			return mail.IOError(ctx, "rescan", err)
		}
	}
	return nil
}

// register adds a file another client put in cur/. Files that cannot be
// parsed or reuse a retired uid are left alone.
func (f *Folder) register(ctx context.Context, path, uid string, flags mail.Flags) {
	raw, err := os.ReadFile(path)
	if err != nil {
		f.logger.Warn("read new message", zap.String("path", path), zap.Error(err))
		return
	}
	msg, err := mail.ParseMessage(raw)
	if err != nil {
		f.logger.Warn("parse new message", zap.String("path", path), zap.Error(err))
		return
	}
	info := msg.Info
	info.UID = uid
	info.Flags = flags
	if err := f.summary.Add(ctx, &info); err != nil {
		if errors.Is(err, mail.ErrUIDExists) {
			f.logger.Warn("ignoring message with a retired uid", zap.String("uid", uid))
		} else {
			f.logger.Error("register message", zap.String("uid", uid), zap.Error(err))
		}
		return
	}
	f.changes.Add(uid)
}

// refresh re-reads a known message whose file was rewritten in place.
func (f *Folder) refresh(ctx context.Context, path, uid string, flags mail.Flags) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		f.logger.Warn("read rewritten message", zap.String("path", path), zap.Error(err))
		return nil
	}
	msg, err := mail.ParseMessage(raw)
	if err != nil {
		f.logger.Warn("parse rewritten message", zap.String("path", path), zap.Error(err))
		return nil
	}
	info := msg.Info
	info.UID = uid
	info.Flags = flags
	if err := f.summary.Update(ctx, &info); err != nil {
		return err
	}
	f.logger.Debug("message rewritten", zap.String("uid", uid))
	f.changes.Change(uid)
	return nil
}
