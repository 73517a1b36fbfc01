package pilot

import (
	"bytes"
	"testing"
	"time"

	"github.com/matheus3301/pimsync/internal/category"
)

func TestToDoRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		todo ToDo
	}{
		{"indefinite", ToDo{Indefinite: true, Priority: 1, Description: "Buy milk"}},
		{"due complete", ToDo{
			Due:         time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC),
			Priority:    4,
			Complete:    true,
			Description: "File taxes",
			Note:        "Receipts in the blue folder",
		}},
		{"latin1", ToDo{Indefinite: true, Priority: 5, Description: "Café", Note: "crème brûlée"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnpackToDo(tt.todo.Pack())
			if err != nil {
				t.Fatalf("UnpackToDo: %v", err)
			}
			if *got != tt.todo {
				t.Errorf("round trip = %+v, want %+v", *got, tt.todo)
			}
		})
	}
}

func TestToDoPackLayout(t *testing.T) {
	todo := ToDo{
		Due:         time.Date(2005, time.January, 2, 0, 0, 0, 0, time.UTC),
		Priority:    1,
		Complete:    true,
		Description: "a",
		Note:        "b",
	}
	// (2005-1904)<<9 | 1<<5 | 2 = 0xca22
	want := []byte{0xca, 0x22, 0x81, 'a', 0, 'b', 0}
	if got := todo.Pack(); !bytes.Equal(got, want) {
		t.Errorf("Pack = % x, want % x", got, want)
	}

	indefinite := ToDo{Indefinite: true, Priority: 1}
	if got := indefinite.Pack(); !bytes.Equal(got[:3], []byte{0xff, 0xff, 0x01}) {
		t.Errorf("indefinite header = % x", got[:3])
	}
}

func TestToDoPackDueYearRange(t *testing.T) {
	tests := []struct {
		name       string
		due        time.Time
		indefinite bool
	}{
		{"first year", time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC), false},
		{"last year", time.Date(2031, time.December, 31, 0, 0, 0, 0, time.UTC), false},
		{"after last year", time.Date(2032, time.March, 4, 0, 0, 0, 0, time.UTC), true},
		{"before first year", time.Date(1903, time.December, 31, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnpackToDo((&ToDo{Due: tt.due, Priority: 1}).Pack())
			if err != nil {
				t.Fatalf("UnpackToDo: %v", err)
			}
			if got.Indefinite != tt.indefinite {
				t.Fatalf("Indefinite = %v, want %v", got.Indefinite, tt.indefinite)
			}
			if !tt.indefinite && !got.Due.Equal(tt.due) {
				t.Errorf("Due = %v, want %v", got.Due, tt.due)
			}
		})
	}
}

func TestUnpackToDoShort(t *testing.T) {
	if _, err := UnpackToDo([]byte{0xff, 0xff}); err == nil {
		t.Error("UnpackToDo(2 bytes) should fail")
	}
}

func TestUnpackToDoMissingStrings(t *testing.T) {
	got, err := UnpackToDo([]byte{0, 0, 3})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Due.IsZero() || got.Indefinite {
		t.Errorf("due = %v indefinite = %v, want empty date", got.Due, got.Indefinite)
	}
	if got.Description != "" || got.Note != "" || got.Priority != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestMemoRoundTrip(t *testing.T) {
	m := Memo{Text: "Shopping\nbread\neggs"}
	b := m.Pack()
	if b[len(b)-1] != 0 {
		t.Error("packed memo should be NUL terminated")
	}
	got, err := UnpackMemo(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != m.Text {
		t.Errorf("Text = %q, want %q", got.Text, m.Text)
	}
}

func TestToDoAppInfoRoundTrip(t *testing.T) {
	table := category.NewTable()
	table.Names[1] = "Business"
	table.IDs[1] = 1
	ai := &ToDoAppInfo{Category: table, Dirty: 1, SortByPriority: true}

	b := ai.Pack()
	if len(b) != category.PackedSize+4 {
		t.Fatalf("len = %d, want %d", len(b), category.PackedSize+4)
	}
	got, err := UnpackToDoAppInfo(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Dirty != 1 || !got.SortByPriority || got.Category.Names[1] != "Business" {
		t.Errorf("got %+v", got)
	}
}

func TestMemoAppInfoShortBlock(t *testing.T) {
	table := category.NewTable()
	got, err := UnpackMemoAppInfo(table.Pack())
	if err != nil {
		t.Fatalf("UnpackMemoAppInfo: %v", err)
	}
	if got.SortByAlpha {
		t.Error("SortByAlpha should default to false")
	}

	full := (&MemoAppInfo{Category: table, SortByAlpha: true}).Pack()
	got, err = UnpackMemoAppInfo(full)
	if err != nil {
		t.Fatal(err)
	}
	if !got.SortByAlpha {
		t.Error("SortByAlpha lost in round trip")
	}
}

func TestRecordClone(t *testing.T) {
	r := &Record{ID: 7, Data: []byte{1, 2}}
	c := r.Clone()
	c.Data[0] = 9
	if r.Data[0] != 1 {
		t.Error("Clone shares Data")
	}
}
