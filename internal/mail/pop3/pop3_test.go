package pop3

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/pimsync/internal/mail"
)

const testMessage = "From: dave@example.com\r\nSubject: Cached\r\n\r\nbody\r\n"

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "acct"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEscapeUIDL(t *testing.T) {
	assert.Equal(t, "abc-123", EscapeUIDL("abc-123"))
	assert.Equal(t, "a%2Fb", EscapeUIDL("a/b"))
	assert.Equal(t, "%2E.x", EscapeUIDL("..x"))
	assert.Equal(t, "%2B%25", EscapeUIDL("+%"))
}

func TestAppendHasGet(t *testing.T) {
	ctx := context.Background()
	c := openCache(t)

	ok, err := c.Has(ctx, "uidl/1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Append(ctx, "uidl/1", strings.NewReader(testMessage)))

	ok, err = c.Has(ctx, "uidl/1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(c.path, "uidl%2F1"))

	msg, err := c.Get(ctx, "uidl/1")
	require.NoError(t, err)
	assert.Equal(t, "Cached", msg.Subject())
	assert.Equal(t, "uidl/1", msg.Info.UID)

	err = c.Append(ctx, "uidl/1", strings.NewReader(testMessage))
	assert.ErrorIs(t, err, mail.ErrUIDExists)
}

func TestExpire(t *testing.T) {
	ctx := context.Background()
	c := openCache(t)
	for _, uidl := range []string{"a", "b", "c"} {
		require.NoError(t, c.Append(ctx, uidl, strings.NewReader(testMessage)))
	}

	dropped, err := c.Expire(ctx, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, dropped)

	infos, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "b", infos[0].UID)
	_, err = os.Stat(filepath.Join(c.path, "a"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// The server may hand the same UIDL out again after expiry.
	require.NoError(t, c.Append(ctx, "a", strings.NewReader(testMessage)))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := openCache(t)
	require.NoError(t, c.Append(ctx, "x", strings.NewReader(testMessage)))
	require.NoError(t, c.Delete(ctx, "x"))

	_, err := c.Get(ctx, "x")
	assert.ErrorIs(t, err, mail.ErrInvalidUID)
	assert.ErrorIs(t, c.Delete(ctx, "x"), mail.ErrInvalidUID)
}

func TestAppendCancelled(t *testing.T) {
	c := openCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Append(ctx, "y", strings.NewReader(testMessage))
	assert.ErrorIs(t, err, mail.ErrUserCancel)

	ok, err := c.Has(context.Background(), "y")
	require.NoError(t, err)
	assert.False(t, ok)
}
