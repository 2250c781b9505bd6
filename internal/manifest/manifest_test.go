package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	cxerrors "cxref/internal/errors"
)

func touch(t *testing.T, root, rel string, size int) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Missing(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(m.Sources, []string{"."}) || m.Version != CurrentVersion {
		t.Errorf("Load(missing) = %+v, want defaults", m)
	}
}

func TestSaveLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".cxref", FileName)
	m := Default()
	m.Sources = []string{"src", "lib"}
	m.Args = []string{"-std=c++17", "-Iinclude"}
	m.Units = []Unit{{Path: "tools/gen.c", Args: []string{"-std=c11"}}}
	if err := m.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Sources, m.Sources) {
		t.Errorf("Sources = %v, want %v", got.Sources, m.Sources)
	}
	if !reflect.DeepEqual(got.Args, m.Args) {
		t.Errorf("Args = %v, want %v", got.Args, m.Args)
	}
	if len(got.Units) != 1 || got.Units[0].Path != "tools/gen.c" || got.Units[0].Args[0] != "-std=c11" {
		t.Errorf("Units = %+v", got.Units)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		code    cxerrors.ErrorCode
	}{
		{"syntax", "version = [", cxerrors.PreconditionViolation},
		{"future", "version = 9\n", cxerrors.VersionMismatch},
		{"unit without path", "version = 1\n[[unit]]\nargs = [\"-O2\"]\n", cxerrors.PreconditionViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, tt.name+".toml")
			if err := os.WriteFile(p, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(p)
			if cxerrors.CodeOf(err) != tt.code {
				t.Errorf("Load error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestLoad_Undecoded(t *testing.T) {
	p := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(p, []byte("version = 1\nsourcs = [\"src\"]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Undecoded) != 1 || m.Undecoded[0] != "sourcs" {
		t.Errorf("Undecoded = %v, want [sourcs]", m.Undecoded)
	}
}

func TestUnits(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/a.cpp", 10)
	touch(t, root, "src/a.h", 10)
	touch(t, root, "src/notes.txt", 10)
	touch(t, root, "src/gen/big.cpp", 5000)
	touch(t, root, "src/third_party/x.cpp", 10)
	touch(t, root, ".git/hooks/h.c", 10)
	touch(t, root, "tools/gen.c", 10)

	m := Default()
	m.Sources = []string{"src", "."}
	m.Args = []string{"-std=c++17"}
	m.Units = []Unit{{Path: "tools/gen.c", Args: []string{"-std=c11"}}}

	units, err := m.ResolveUnits(root, ScanOptions{
		Extensions:       []string{".cpp", ".h", ".c"},
		Ignore:           []string{"third_party"},
		MaxFileSizeBytes: 1000,
	})
	if err != nil {
		t.Fatalf("Units: %v", err)
	}

	want := map[string]string{
		filepath.ToSlash(filepath.Join(root, "src/a.cpp")):   "-std=c++17",
		filepath.ToSlash(filepath.Join(root, "src/a.h")):     "-std=c++17",
		filepath.ToSlash(filepath.Join(root, "tools/gen.c")): "-std=c11",
	}
	if len(units) != len(want) {
		t.Fatalf("Units = %+v, want %d units", units, len(want))
	}
	for i, u := range units {
		if i > 0 && units[i-1].Path >= u.Path {
			t.Errorf("units not sorted at %d", i)
		}
		if arg, ok := want[u.Path]; !ok || len(u.Args) != 1 || u.Args[0] != arg {
			t.Errorf("unit %+v unexpected", u)
		}
	}
}

func TestUnits_RelativeRootRejected(t *testing.T) {
	_, err := Default().ResolveUnits("relative/root", ScanOptions{})
	if !errors.Is(err, cxerrors.ErrPreconditionViolation) {
		t.Errorf("Units(relative) error = %v, want PRECONDITION_VIOLATION", err)
	}
}
