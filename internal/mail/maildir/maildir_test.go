package maildir

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/pimsync/internal/bus"
	"github.com/matheus3301/pimsync/internal/mail"
)

const testMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Test\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
	"\r\n" +
	"Hello Bob.\r\n"

func openFolder(t *testing.T, opts Options) *Folder {
	t.Helper()
	f, err := Open(filepath.Join(t.TempDir(), "INBOX"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestAppendUIDLayout(t *testing.T) {
	ctx := context.Background()
	f := openFolder(t, Options{})

	require.NoError(t, f.AppendUID(ctx, "abc123", []byte(testMessage), 0))

	assert.FileExists(t, filepath.Join(f.Path(), "cur", "abc123:2,"))
	assert.NoFileExists(t, filepath.Join(f.Path(), "tmp", "abc123"))

	info, err := f.Info(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, mail.Flags(0), info.Flags)
	assert.Equal(t, "Test", info.Subject)
	assert.Equal(t, int64(len(testMessage)), info.Size)
}

func TestAppendGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := openFolder(t, Options{})

	uid, err := f.Append(ctx, strings.NewReader(testMessage), mail.FlagSeen)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.Path(), "cur", uid+":2,S"))

	msg, err := f.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "Test", msg.Subject())
	assert.Equal(t, []byte(testMessage), msg.Raw)
	assert.Equal(t, mail.FlagSeen, msg.Info.Flags)
	assert.Equal(t, `"Alice" <alice@example.com>`, msg.Info.From)
	assert.Equal(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), msg.Info.Date)
}

func TestNewUIDsAreDistinct(t *testing.T) {
	f := openFolder(t, Options{})
	seen := make(map[string]bool)
	for range 100 {
		uid := f.NewUID()
		require.False(t, seen[uid], "duplicate uid %s", uid)
		seen[uid] = true
	}
}

func TestGetUnknownUID(t *testing.T) {
	f := openFolder(t, Options{})
	_, err := f.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, mail.ErrInvalidUID)
}

func TestAppendInterruptedBeforeRename(t *testing.T) {
	f := openFolder(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	f.beforeRename = cancel

	err := f.AppendUID(ctx, "abc123", []byte(testMessage), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, mail.ErrUserCancel)

	assert.NoFileExists(t, filepath.Join(f.Path(), "tmp", "abc123"))
	entries, err := os.ReadDir(filepath.Join(f.Path(), "cur"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = f.Info(context.Background(), "abc123")
	assert.ErrorIs(t, err, mail.ErrInvalidUID)

	f.beforeRename = nil
	err = f.AppendUID(context.Background(), "abc123", []byte(testMessage), 0)
	assert.ErrorIs(t, err, mail.ErrUIDExists, "uids are never reused")
}

func TestAppendRejectsBadUID(t *testing.T) {
	f := openFolder(t, Options{})
	for _, uid := range []string{"", "a/b", "a:b"} {
		err := f.AppendUID(context.Background(), uid, []byte(testMessage), 0)
		assert.ErrorIs(t, err, mail.ErrInvalidUID, "uid %q", uid)
	}
}

func TestAppendNotifies(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("folder.", 4)
	defer unsub()
	f := openFolder(t, Options{Bus: b})

	require.NoError(t, f.AppendUID(context.Background(), "m1", []byte(testMessage), 0))

	select {
	case evt := <-ch:
		assert.Equal(t, bus.FolderChanged, evt.Kind)
		info, ok := evt.Payload.(mail.ChangeInfo)
		require.True(t, ok)
		assert.Equal(t, "INBOX", info.Folder)
		assert.Equal(t, []string{"m1"}, info.Added)
	case <-time.After(time.Second):
		t.Fatal("no folder change event")
	}
}

func TestSetFlagsRenames(t *testing.T) {
	ctx := context.Background()
	f := openFolder(t, Options{})
	require.NoError(t, f.AppendUID(ctx, "m1", []byte(testMessage), 0))

	require.NoError(t, f.SetFlags(ctx, "m1", mail.FlagSeen|mail.FlagAnswered))
	assert.FileExists(t, filepath.Join(f.Path(), "cur", "m1:2,RS"))
	assert.NoFileExists(t, filepath.Join(f.Path(), "cur", "m1:2,"))

	info, err := f.Info(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, mail.FlagSeen|mail.FlagAnswered, info.Flags)
}

func TestExpunge(t *testing.T) {
	ctx := context.Background()
	f := openFolder(t, Options{})
	require.NoError(t, f.AppendUID(ctx, "keep", []byte(testMessage), mail.FlagSeen))
	require.NoError(t, f.AppendUID(ctx, "drop", []byte(testMessage), mail.FlagDeleted))

	removed, err := f.Expunge(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"drop"}, removed)
	assert.NoFileExists(t, filepath.Join(f.Path(), "cur", "drop:2,T"))

	infos, err := f.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "keep", infos[0].UID)
}

func TestRescanPicksUpExternalChanges(t *testing.T) {
	ctx := context.Background()
	f := openFolder(t, Options{})
	require.NoError(t, f.AppendUID(ctx, "gone", []byte(testMessage), 0))
	require.NoError(t, f.AppendUID(ctx, "flagged", []byte(testMessage), 0))

	// Another client delivers one message, removes one and flags one.
	delivered := strings.Replace(testMessage, "Subject: Test", "Subject: Delivered", 1)
	require.NoError(t, os.WriteFile(filepath.Join(f.Path(), "new", "1700000000.M1P2.host"), []byte(delivered), 0600))
	require.NoError(t, os.Remove(filepath.Join(f.Path(), "cur", "gone:2,")))
	require.NoError(t, os.Rename(
		filepath.Join(f.Path(), "cur", "flagged:2,"),
		filepath.Join(f.Path(), "cur", "flagged:2,F")))

	require.NoError(t, f.Rescan(ctx))

	assert.NoFileExists(t, filepath.Join(f.Path(), "new", "1700000000.M1P2.host"))
	assert.FileExists(t, filepath.Join(f.Path(), "cur", "1700000000.M1P2.host:2,"))

	msg, err := f.Get(ctx, "1700000000.M1P2.host")
	require.NoError(t, err)
	assert.Equal(t, "Delivered", msg.Subject())

	_, err = f.Info(ctx, "gone")
	assert.ErrorIs(t, err, mail.ErrInvalidUID)

	info, err := f.Info(ctx, "flagged")
	require.NoError(t, err)
	assert.Equal(t, mail.FlagFlagged, info.Flags)
}

func TestRescanRereadsRewrittenMessage(t *testing.T) {
	ctx := context.Background()
	f := openFolder(t, Options{})
	require.NoError(t, f.AppendUID(ctx, "m1", []byte(testMessage), mail.FlagSeen))

	rewritten := strings.Replace(testMessage, "Subject: Test", "Subject: Rewritten by hand", 1)
	require.NoError(t, os.WriteFile(filepath.Join(f.Path(), "cur", "m1:2,S"), []byte(rewritten), 0600))

	require.NoError(t, f.Rescan(ctx))

	info, err := f.Info(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Rewritten by hand", info.Subject)
	assert.Equal(t, int64(len(rewritten)), info.Size)
	assert.Equal(t, mail.FlagSeen, info.Flags)
}

func TestCustomSeparator(t *testing.T) {
	ctx := context.Background()
	f := openFolder(t, Options{Separator: '!'})
	require.NoError(t, f.AppendUID(ctx, "m1", []byte(testMessage), mail.FlagDraft))
	assert.FileExists(t, filepath.Join(f.Path(), "cur", "m1!2,D"))

	msg, err := f.Get(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte(testMessage), msg.Raw))
}
