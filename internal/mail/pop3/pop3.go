// Package pop3 keeps a local cache of messages downloaded from a POP3
// server, keyed by the server's UIDL.
package pop3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/bus"
	"github.com/matheus3301/pimsync/internal/mail"
)

const tmpDir = "tmp"

// Options configures a Cache.
type Options struct {
	Bus    *bus.Bus
	Logger *zap.Logger
}

// Cache is the on-disk message cache of one POP3 account.
type Cache struct {
	path    string
	summary *mail.Summary
	bus     *bus.Bus
	logger  *zap.Logger
	changes *mail.ChangeInfo
}

// Open opens the cache rooted at path.
func Open(path string, opts Options) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(path, tmpDir), 0700); err != nil {
		return nil, mail.SystemError("open pop3 cache", err)
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
	return &Cache{
		path:    path,
		summary: summary,
		bus:     opts.Bus,
		logger:  logger.With(zap.String("pop3", name)),
		changes: mail.NewChangeInfo(name),
	}, nil
}

// Close closes the summary.
func (c *Cache) Close() error {
	return c.summary.Close()
}

// EscapeUIDL turns a server UIDL into a safe file name. Bytes outside
// [A-Za-z0-9-.] become %XX.
func EscapeUIDL(uidl string) string {
	var b strings.Builder
	for i := 0; i < len(uidl); i++ {
		ch := uidl[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-':
			b.WriteByte(ch)
		case ch == '.' && i > 0:
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}

func (c *Cache) file(uidl string) string {
	return filepath.Join(c.path, EscapeUIDL(uidl))
}

// Has reports whether uidl is cached.
func (c *Cache) Has(ctx context.Context, uidl string) (bool, error) {
	_, err := c.summary.Get(ctx, uidl)
	if errors.Is(err, mail.ErrInvalidUID) {
		return false, nil
	}
	return err == nil, err
}

// Append caches the message read from r under uidl.
func (c *Cache) Append(ctx context.Context, uidl string, r io.Reader) error {
	if uidl == "" {
		return mail.InvalidUID("append", uidl)
	}
	if err := ctx.Err(); err != nil {
		return mail.IOError(ctx, "append", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return mail.IOError(ctx, "append", err)
	}
	msg, err := mail.ParseMessage(raw)
	if err != nil {
		return mail.SystemError("append", err)
	}
	info := msg.Info
	info.UID = uidl
	if err := c.summary.Add(ctx, &info); err != nil {
		return err
	}

	tmp := filepath.Join(c.path, tmpDir, EscapeUIDL(uidl))
	if err := c.write(ctx, tmp, c.file(uidl), raw); err != nil {
		_ = os.Remove(tmp)
		if ferr := c.summary.Forget(context.WithoutCancel(ctx), uidl); ferr != nil {
			c.logger.Error("drop summary entry", zap.String("uidl", uidl), zap.Error(ferr))
		}
		return mail.IOError(ctx, "append", err)
	}

	c.changes.Add(uidl)
	c.changes.Notify(c.bus)
	return nil
}

func (c *Cache) write(ctx context.Context, tmp, dst string, raw []byte) error {
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

// Get returns the cached message for uidl.
func (c *Cache) Get(ctx context.Context, uidl string) (*mail.Message, error) {
	info, err := c.summary.Get(ctx, uidl)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(c.file(uidl))
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

// List returns the cached entries in download order.
func (c *Cache) List(ctx context.Context) ([]*mail.MessageInfo, error) {
	return c.summary.List(ctx)
}

// Delete drops uidl from the cache. A later download may cache it again.
func (c *Cache) Delete(ctx context.Context, uidl string) error {
	if _, err := c.summary.Get(ctx, uidl); err != nil {
		return err
	}
	if err := os.Remove(c.file(uidl)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return mail.SystemError("delete", err)
	}
	if err := c.summary.Forget(ctx, uidl); err != nil {
		return err
	}
	c.changes.Remove(uidl)
	c.changes.Notify(c.bus)
	return nil
}

// Expire drops every cached message whose UIDL is not in keep, the list
// the server currently reports. It returns the dropped UIDLs.
func (c *Cache) Expire(ctx context.Context, keep []string) ([]string, error) {
	live := make(map[string]bool, len(keep))
	for _, uidl := range keep {
		live[uidl] = true
	}
	infos, err := c.summary.List(ctx)
	if err != nil {
		return nil, err
	}
	var dropped []string
	for _, info := range infos {
		if live[info.UID] {
			continue
		}
		if err := os.Remove(c.file(info.UID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return dropped, mail.SystemError("expire", err)
		}
		if err := c.summary.Forget(ctx, info.UID); err != nil {
			return dropped, err
		}
		c.changes.Remove(info.UID)
		dropped = append(dropped, info.UID)
	}
	c.changes.Notify(c.bus)
	if len(dropped) > 0 {
		c.logger.Info("expired cached messages", zap.Int("count", len(dropped)))
	}
	return dropped, nil
}
