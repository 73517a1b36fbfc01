package handheld

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/matheus3301/pimsync/internal/pilot"
)

func testImage(t *testing.T) *Image {
	t.Helper()
	img, err := Open(filepath.Join(t.TempDir(), "handheld.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = img.Close() })
	return img
}

func TestFreshImageHasAppBlocks(t *testing.T) {
	ctx := context.Background()
	img := testImage(t)

	for _, name := range []string{ToDoDB, MemoDB} {
		data, err := img.ReadAppBlock(ctx, name)
		if err != nil {
			t.Fatalf("ReadAppBlock(%s): %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s app block is empty", name)
		}
	}
	ai, err := img.ReadAppBlock(ctx, ToDoDB)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := pilot.UnpackToDoAppInfo(ai)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Category.Names[0] != "Unfiled" {
		t.Errorf("slot 0 = %q, want Unfiled", parsed.Category.Names[0])
	}

	if _, err := img.ReadAppBlock(ctx, "AddressDB"); !errors.Is(err, pilot.ErrNotFound) {
		t.Errorf("unknown db error = %v, want ErrNotFound", err)
	}
}

func TestWriteAppBlock(t *testing.T) {
	ctx := context.Background()
	img := testImage(t)

	if err := img.WriteAppBlock(ctx, ToDoDB, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	got, _ := img.ReadAppBlock(ctx, ToDoDB)
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("app block = %v", got)
	}
	if err := img.WriteAppBlock(ctx, ToDoDB, make([]byte, pilot.MaxAppBlockSize+1)); err == nil {
		t.Error("oversized app block should be rejected")
	}
}

func TestWriteRecordAssignsIDs(t *testing.T) {
	ctx := context.Background()
	img := testImage(t)

	first, err := img.WriteRecord(ctx, ToDoDB, &pilot.Record{Data: []byte("a")})
	if err != nil {
		t.Fatal(err)
	}
	second, _ := img.WriteRecord(ctx, ToDoDB, &pilot.Record{Data: []byte("b")})
	if first != firstRecordID || second != firstRecordID+1 {
		t.Errorf("ids = %#x %#x", first, second)
	}

	memo, _ := img.WriteRecord(ctx, MemoDB, &pilot.Record{Data: []byte("m")})
	if memo != firstRecordID {
		t.Errorf("ids are per database, got %#x", memo)
	}

	rec, err := img.ReadRecordByID(ctx, ToDoDB, first)
	if err != nil {
		t.Fatal(err)
	}
	if string(rec.Data) != "a" || rec.Attr != pilot.AttrNothing {
		t.Errorf("record = %+v", rec)
	}

	if _, err := img.ReadRecordByID(ctx, ToDoDB, 42); !errors.Is(err, pilot.ErrNotFound) {
		t.Errorf("missing record error = %v", err)
	}
}

func TestEditAndModifiedRecords(t *testing.T) {
	ctx := context.Background()
	img := testImage(t)

	clean, _ := img.WriteRecord(ctx, ToDoDB, &pilot.Record{Data: []byte("clean")})
	added, err := img.Edit(ctx, ToDoDB, &pilot.Record{Category: 2, Data: []byte("new")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := img.Edit(ctx, ToDoDB, &pilot.Record{ID: clean, Data: []byte("edited")}); err != nil {
		t.Fatal(err)
	}

	mods, err := img.ModifiedRecords(ctx, ToDoDB)
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 2 {
		t.Fatalf("modified = %d records, want 2", len(mods))
	}
	if mods[0].ID != clean || mods[0].Attr != pilot.AttrModified {
		t.Errorf("mods[0] = %+v", mods[0])
	}
	if mods[1].ID != added || mods[1].Attr != pilot.AttrNew || mods[1].Category != 2 {
		t.Errorf("mods[1] = %+v", mods[1])
	}

	if err := img.ResetSyncFlags(ctx, ToDoDB); err != nil {
		t.Fatal(err)
	}
	mods, _ = img.ModifiedRecords(ctx, ToDoDB)
	if len(mods) != 0 {
		t.Errorf("after reset %d modified records", len(mods))
	}
}

func TestCleanUpPurgesDeletedAndArchived(t *testing.T) {
	ctx := context.Background()
	img := testImage(t)

	keep, _ := img.WriteRecord(ctx, MemoDB, &pilot.Record{Data: []byte("keep")})
	del, _ := img.WriteRecord(ctx, MemoDB, &pilot.Record{Data: []byte("del")})
	arch, _ := img.WriteRecord(ctx, MemoDB, &pilot.Record{Data: []byte("arch")})

	if err := img.MarkDeleted(ctx, MemoDB, del); err != nil {
		t.Fatal(err)
	}
	if err := img.MarkArchived(ctx, MemoDB, arch); err != nil {
		t.Fatal(err)
	}
	if err := img.MarkDeleted(ctx, MemoDB, 7); !errors.Is(err, pilot.ErrNotFound) {
		t.Errorf("MarkDeleted(missing) = %v", err)
	}

	rec, _ := img.ReadRecordByID(ctx, MemoDB, arch)
	if !rec.Archived || rec.Attr != pilot.AttrDeleted {
		t.Errorf("archived record = %+v", rec)
	}

	if err := img.CleanUp(ctx, MemoDB); err != nil {
		t.Fatal(err)
	}
	all, _ := img.Records(ctx, MemoDB)
	if len(all) != 1 || all[0].ID != keep {
		t.Errorf("records after cleanup = %+v", all)
	}
}

func TestDeleteRecord(t *testing.T) {
	ctx := context.Background()
	img := testImage(t)

	id, _ := img.WriteRecord(ctx, ToDoDB, &pilot.Record{Data: []byte("x")})
	if err := img.DeleteRecord(ctx, ToDoDB, id); err != nil {
		t.Fatal(err)
	}
	if err := img.DeleteRecord(ctx, ToDoDB, id); !errors.Is(err, pilot.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}
