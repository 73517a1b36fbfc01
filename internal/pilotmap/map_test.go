package pilotmap

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndLookup(t *testing.T) {
	m := New()
	m.Insert(500, "todo-1", false)

	uid, ok := m.LookupUID(500, true)
	require.True(t, ok)
	assert.Equal(t, "todo-1", uid)
	assert.Equal(t, uint32(500), m.LookupPID("todo-1", false))
}

func TestInsertReplacesBothSides(t *testing.T) {
	m := New()
	m.Insert(500, "a", false)
	m.Insert(501, "b", false)

	m.Insert(500, "b", false)

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, uint32(500), m.LookupPID("b", false))
	assert.Equal(t, uint32(0), m.LookupPID("a", false))
	_, ok := m.LookupUID(501, false)
	assert.False(t, ok)
}

func TestLookupPIDCreate(t *testing.T) {
	m := New()
	assert.Equal(t, uint32(0), m.LookupPID("x", false))
	assert.Equal(t, 0, m.Len())

	m.Insert(129, "taken", false)
	pid := m.LookupPID("x", true)
	assert.Equal(t, uint32(130), pid)
	assert.Equal(t, pid, m.LookupPID("x", true), "second lookup must not allocate again")
}

func TestArchiveHidesButKeeps(t *testing.T) {
	m := New()
	m.Insert(42, "memo-1", false)
	m.Insert(42, "memo-1", true)

	_, ok := m.LookupUID(42, true)
	assert.False(t, ok, "archived entry must be hidden from matching")

	uid, ok := m.LookupUID(42, false)
	require.True(t, ok)
	assert.Equal(t, "memo-1", uid)
	assert.True(t, m.UIDIsArchived("memo-1"))
	assert.True(t, m.PIDIsArchived(42))
}

func TestRemoveByUIDAndClear(t *testing.T) {
	m := New()
	m.Insert(1, "a", false)
	m.Insert(2, "b", true)

	m.RemoveByUID("a")
	assert.Equal(t, 1, m.Len())
	m.RemoveByUID("missing")
	assert.Equal(t, 1, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestBijectivity(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	m := New()
	for range 2000 {
		pid := uint32(rng.IntN(40) + 1)
		uid := fmt.Sprintf("uid-%d", rng.IntN(40))
		switch rng.IntN(3) {
		case 0, 1:
			m.Insert(pid, uid, rng.IntN(4) == 0)
		case 2:
			m.RemoveByUID(uid)
		}

		for _, e := range m.Entries() {
			if e.Archived {
				continue
			}
			got, ok := m.LookupUID(e.PilotID, true)
			require.True(t, ok)
			require.Equal(t, e.PilotID, m.LookupPID(got, false))
			require.Equal(t, e.UID, got)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks", "local", "system", "pilot-map-todo-1.xml")

	m := New()
	m.Insert(500, "todo-1", false)
	m.Insert(501, "todo-2", true)
	require.NoError(t, m.Write(path))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.False(t, got.Since.IsZero())
	assert.True(t, got.UIDIsArchived("todo-2"))
	assert.Equal(t, uint32(500), got.LookupPID("todo-1", false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWriteFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.xml")
	m := New()
	m.Insert(7, "a", true)
	m.Insert(8, "b", false)
	require.NoError(t, m.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<map uid="a" pilot_id="7" archived="1"></map>`)
	assert.Contains(t, string(data), `<map uid="b" pilot_id="8"></map>`)
}

func TestWriteTouchedOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.xml")
	m := New()
	m.Insert(1, "kept", false)
	m.Insert(2, "stale", true)
	require.NoError(t, m.Write(path))

	reread, err := Read(path)
	require.NoError(t, err)
	reread.WriteTouchedOnly = true
	reread.LookupPID("kept", false)
	require.NoError(t, reread.Write(path))

	final, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 1, final.Len())
	assert.Equal(t, uint32(1), final.LookupPID("kept", false))
}

func TestReadMissingIsEmpty(t *testing.T) {
	m, err := Read(filepath.Join(t.TempDir(), "none.xml"))
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestReadCorruptFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.xml")
	require.NoError(t, os.WriteFile(path, []byte("<PilotMap><map uid="), 0600))

	m, err := Read(path)
	assert.Error(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 0, m.Len())
}
