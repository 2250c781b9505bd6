package filemeta

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cxerrors "cxref/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestEncodeDecode(t *testing.T) {
	entries := []Entry{
		{Path: "/src/b.cpp", Size: 20, ModTime: 2, Digest: "bb"},
		{Path: "/src/a.cpp", Size: 10, ModTime: 1, Digest: "aa"},
	}
	blob, err := Encode(entries)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 2 || got[0].Path != "/src/a.cpp" || got[1].Path != "/src/b.cpp" {
		t.Errorf("Decode = %+v, want entries sorted by path", got)
	}
	if got[1] != entries[0] {
		t.Errorf("entry = %+v, want %+v", got[1], entries[0])
	}
}

func TestDecode_Empty(t *testing.T) {
	got, err := Decode(nil)
	if err != nil || got != nil {
		t.Errorf("Decode(nil) = %v, %v", got, err)
	}
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("not zstd"))
	if cxerrors.CodeOf(err) != cxerrors.CorruptHeader {
		t.Errorf("Decode(garbage) error = %v, want CORRUPT_HEADER", err)
	}
}

func TestDigest(t *testing.T) {
	a, err := Digest(strings.NewReader("int x;"))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Digest(strings.NewReader("int y;"))
	if len(a) != 64 {
		t.Errorf("len(Digest) = %d, want 64", len(a))
	}
	if a == b {
		t.Error("different inputs produced the same digest")
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	b := writeFile(t, dir, "b.c", "int b;\n")
	a := writeFile(t, dir, "a.c", "int a;\n")

	entries, err := Collect([]string{b, a, b})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Path != a || entries[0].Size != 7 {
		t.Errorf("entries[0] = %+v", entries[0])
	}

	if _, err := Collect([]string{filepath.Join(dir, "missing.c")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestChanged(t *testing.T) {
	dir := t.TempDir()
	same := writeFile(t, dir, "same.c", "int s;\n")
	edited := writeFile(t, dir, "edited.c", "int e;\n")
	touched := writeFile(t, dir, "touched.c", "int t;\n")
	gone := writeFile(t, dir, "gone.c", "int g;\n")

	recorded, err := Collect([]string{same, edited, touched, gone})
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "edited.c", "int e = 1;\n")
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(touched, later, later); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}
	added := writeFile(t, dir, "added.c", "int n;\n")

	changes, err := Changed(recorded, []string{same, edited, touched, added})
	if err != nil {
		t.Fatalf("Changed: %v", err)
	}
	want := map[string]ChangeType{
		added:  ChangeAdded,
		edited: ChangeModified,
		gone:   ChangeDeleted,
	}
	if len(changes) != len(want) {
		t.Fatalf("Changed = %+v, want %d changes", changes, len(want))
	}
	for _, c := range changes {
		if want[c.Path] != c.ChangeType {
			t.Errorf("change %s = %s, want %s", c.Path, c.ChangeType, want[c.Path])
		}
	}
}
