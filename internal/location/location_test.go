package location

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cxerrors "cxref/internal/errors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	locs := []Location{
		{"/a", 1},
		{"/src/main.c", 42},
		{"/dir,with,commas/file.cpp", 7},
		{"/x", 4294967295},
	}
	for _, l := range locs {
		key, err := Encode(l)
		if err != nil {
			t.Fatalf("Encode(%v) error: %v", l, err)
		}
		got, err := Decode(key)
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", key, err)
		}
		if got != l {
			t.Errorf("Decode(Encode(%v)) = %v", l, got)
		}
	}
}

func TestEncode_Null(t *testing.T) {
	if _, err := Encode(Location{Path: "/a"}); !errors.Is(err, ErrNullLocation) {
		t.Errorf("Encode(null) error = %v, want ErrNullLocation", err)
	}
	if key := (Location{Path: "/a"}).Key(); key != "" {
		t.Errorf("Key() of null = %q, want empty", key)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, key := range []string{
		"",
		"/a/b.c",
		",12",
		"/a/b.c,",
		"/a/b.c,0",
		"/a/b.c,-3",
		"/a/b.c,12x",
		"/a/b.c, 12",
		"/a/b.c,99999999999",
	} {
		_, err := Decode(key)
		if !errors.Is(err, cxerrors.ErrMalformedKey) {
			t.Errorf("Decode(%q) error = %v, want MALFORMED_KEY", key, err)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Location
		want int
	}{
		{Location{"/a", 1}, Location{"/b", 1}, -1},
		{Location{"/a", 1}, Location{"/a", 2}, -1},
		{Location{"/a", 2}, Location{"/a", 2}, 0},
		{Location{"/b", 1}, Location{"/a", 9}, 1},
		{Location{"/a/b", 1}, Location{"/a/c", 1}, -1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
	if !(Location{"/a", 1}).Less(Location{"/b", 1}) {
		t.Error("expected /a,1 < /b,1")
	}
}

func TestSort(t *testing.T) {
	locs := []Location{{"/b", 1}, {"/a", 2}, {"/a", 1}}
	Sort(locs)
	want := []Location{{"/a", 1}, {"/a", 2}, {"/b", 1}}
	for i := range want {
		if locs[i] != want[i] {
			t.Errorf("locs[%d] = %v, want %v", i, locs[i], want[i])
		}
	}
}

func TestResolve(t *testing.T) {
	l, err := Resolve("src/../lib/a.c,10", "/proj")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if l != (Location{"/proj/lib/a.c", 10}) {
		t.Errorf("Resolve = %v", l)
	}

	key, err := ResolveKey("a.c,010", "/proj")
	if err != nil {
		t.Fatalf("ResolveKey error: %v", err)
	}
	if key != "/proj/a.c,010" {
		t.Errorf("ResolveKey = %q, want %q", key, "/proj/a.c,010")
	}

	if _, err := Resolve("a.c,0", "/proj"); !errors.Is(err, cxerrors.ErrMalformedKey) {
		t.Errorf("Resolve zero offset error = %v", err)
	}
	if _, err := Resolve("a.c,3", "not/absolute"); !errors.Is(err, cxerrors.ErrPreconditionViolation) {
		t.Errorf("Resolve relative cwd error = %v", err)
	}
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.c")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestContext(t *testing.T) {
	src := "int a;\nint foo(void) {\n  return 1;\n}\n"
	path := writeSource(t, src)

	tests := []struct {
		name   string
		offset uint32
		want   string
	}{
		{"first byte", 1, "int a;"},
		{"mid first line", 5, "int a;"},
		{"start of second line", 8, "int foo(void) {"},
		{"mid second line", uint32(strings.Index(src, "foo") + 1), "int foo(void) {"},
		{"on newline", 7, "int a;"},
		{"on newline ending third line", uint32(strings.Index(src, "1;\n") + 3), "  return 1;"},
		{"third line", uint32(strings.Index(src, "return") + 1), "  return 1;"},
		{"last byte", uint32(len(src)), "}"},
		{"past end", uint32(len(src) + 1), ""},
		{"zero", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Context(path, tt.offset); got != tt.want {
				t.Errorf("Context(%d) = %q, want %q", tt.offset, got, tt.want)
			}
		})
	}
}

func TestContext_MissingFile(t *testing.T) {
	if got := Context(filepath.Join(t.TempDir(), "nope.c"), 1); got != "" {
		t.Errorf("Context(missing) = %q, want empty", got)
	}
}

func TestContext_LongLines(t *testing.T) {
	long := strings.Repeat("x", 3000)
	path := writeSource(t, "a\n"+long+"\nb\n")

	got := Context(path, 2000)
	if len(got) != MaxContextBytes {
		t.Errorf("len(Context) = %d, want %d", len(got), MaxContextBytes)
	}
	if strings.Trim(got, "x") != "" {
		t.Errorf("Context crossed a line boundary")
	}
}

func TestContextCtx_Cancelled(t *testing.T) {
	path := writeSource(t, "int a;\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := ContextCtx(ctx, path, 1); got != "" {
		t.Errorf("ContextCtx(cancelled) = %q, want empty", got)
	}
	if got := ContextCtx(context.Background(), path, 1); got != "int a;" {
		t.Errorf("ContextCtx = %q", got)
	}
}

func TestDisplay(t *testing.T) {
	path := writeSource(t, "int a;\nint b;\n")
	dir, name := filepath.Split(path)

	if got := Display(name+",9", dir); got != name+",9\tint b;" {
		t.Errorf("Display = %q", got)
	}
	if got := Display("garbage", dir); got != "garbage" {
		t.Errorf("Display(garbage) = %q", got)
	}
}
