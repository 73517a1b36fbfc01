package mail

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/pimsync/internal/bus"
)

func TestFlagsString(t *testing.T) {
	tests := []struct {
		flags Flags
		want  string
	}{
		{0, ""},
		{FlagSeen, "S"},
		{FlagSeen | FlagFlagged, "FS"},
		{FlagDeleted | FlagDraft | FlagAnswered, "DRT"},
		{FlagDraft | FlagFlagged | FlagPassed | FlagAnswered | FlagSeen | FlagDeleted, "DFPRST"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.flags.String())
		assert.Equal(t, tt.flags, ParseFlags(tt.want))
	}
}

func TestParseFlagsIgnoresUnknown(t *testing.T) {
	assert.Equal(t, FlagSeen|FlagFlagged, ParseFlags("SxFa"))
	assert.True(t, ParseFlags("FS").Has(FlagSeen))
	assert.False(t, ParseFlags("FS").Has(FlagSeen|FlagDeleted))
}

func TestErrorMatchesKind(t *testing.T) {
	cause := errors.New("disk full")
	err := SystemError("append", cause)
	assert.ErrorIs(t, err, ErrSystem)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUserCancel)
	assert.Equal(t, "append: system error: disk full", err.Error())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, IOError(ctx, "append", cause), ErrUserCancel)
	assert.ErrorIs(t, IOError(context.Background(), "append", cause), ErrSystem)

	assert.ErrorIs(t, InvalidUID("get", "42"), ErrInvalidUID)
}

func TestParseMessage(t *testing.T) {
	raw := []byte("From: =?utf-8?q?Jos=C3=A9?= <jose@example.com>\r\n" +
		"Subject: =?utf-8?q?Caf=C3=A9?=\r\n" +
		"Date: Tue, 10 Oct 2023 08:00:00 +0200\r\n" +
		"\r\n" +
		"body\r\n")
	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "Café", msg.Subject())
	assert.Equal(t, "Café", msg.Info.Subject)
	assert.Contains(t, msg.Info.From, "jose@example.com")
	assert.Equal(t, time.Date(2023, 10, 10, 6, 0, 0, 0, time.UTC), msg.Info.Date)
	assert.Equal(t, int64(len(raw)), msg.Info.Size)
}

func TestParseMessageUnknownCharset(t *testing.T) {
	raw := []byte("Subject: plain\r\nContent-Type: text/plain; charset=x-unknown\r\n\r\nbody\r\n")
	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "plain", msg.Subject())
}

func testSummary(t *testing.T) *Summary {
	t.Helper()
	s, err := OpenSummary(filepath.Join(t.TempDir(), SummaryFile), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSummaryAddGetList(t *testing.T) {
	ctx := context.Background()
	s := testSummary(t)
	date := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, s.Add(ctx, &MessageInfo{UID: "b", Flags: FlagSeen, Subject: "second?", Date: date, Size: 10}))
	require.NoError(t, s.Add(ctx, &MessageInfo{UID: "a", Subject: "first?"}))

	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, &MessageInfo{UID: "b", Flags: FlagSeen, Subject: "second?", Date: date, Size: 10}, got)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].UID, "append order")
	assert.Equal(t, "a", list[1].UID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Get(ctx, "zzz")
	assert.ErrorIs(t, err, ErrInvalidUID)
}

func TestSummaryUIDsNeverReused(t *testing.T) {
	ctx := context.Background()
	s := testSummary(t)

	require.NoError(t, s.Add(ctx, &MessageInfo{UID: "x"}))
	assert.ErrorIs(t, s.Add(ctx, &MessageInfo{UID: "x"}), ErrUIDExists)

	require.NoError(t, s.Remove(ctx, "x"))
	assert.ErrorIs(t, s.Add(ctx, &MessageInfo{UID: "x"}), ErrUIDExists)

	require.NoError(t, s.Add(ctx, &MessageInfo{UID: "y"}))
	require.NoError(t, s.Forget(ctx, "y"))
	assert.NoError(t, s.Add(ctx, &MessageInfo{UID: "y"}), "forgotten uids may come back")
}

func TestSummarySetFlags(t *testing.T) {
	ctx := context.Background()
	s := testSummary(t)
	require.NoError(t, s.Add(ctx, &MessageInfo{UID: "m"}))

	require.NoError(t, s.SetFlags(ctx, "m", FlagFlagged))
	got, err := s.Get(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, FlagFlagged, got.Flags)

	assert.ErrorIs(t, s.SetFlags(ctx, "nope", FlagSeen), ErrInvalidUID)
}

func TestSummaryNextUID(t *testing.T) {
	ctx := context.Background()
	s := testSummary(t)
	for want := uint64(1); want <= 3; want++ {
		got, err := s.NextUID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestChangeInfoNotify(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("folder.", 1)
	defer unsub()

	c := NewChangeInfo("INBOX")
	c.Notify(b)
	select {
	case <-ch:
		t.Fatal("empty change published")
	default:
	}

	c.Add("1")
	c.Change("2")
	c.Notify(b)
	assert.True(t, c.Empty())

	evt := <-ch
	info := evt.Payload.(ChangeInfo)
	assert.Equal(t, []string{"1"}, info.Added)
	assert.Equal(t, []string{"2"}, info.Changed)
	assert.Nil(t, info.Removed)
}
