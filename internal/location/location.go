// Package location maps (path, offset) pairs to sortable text keys and back,
// and extracts the source line around a location for display.
package location

import (
	"sort"
	"strconv"
	"strings"

	cxerrors "cxref/internal/errors"
	"cxref/internal/paths"
)

// ErrNullLocation is returned when encoding a location whose offset is 0.
var ErrNullLocation = cxerrors.Newf(cxerrors.PreconditionViolation, "null location has no key")

// Location identifies a byte in a source file. Offset is 1-indexed; 0 means null.
type Location struct {
	Path   string `json:"path" yaml:"path"`
	Offset uint32 `json:"offset" yaml:"offset"`
}

// New returns a Location for an already canonical absolute path.
func New(path string, offset uint32) Location {
	return Location{Path: path, Offset: offset}
}

// IsNull reports whether l carries no location.
func (l Location) IsNull() bool {
	return l.Offset == 0
}

// Key returns "<path>,<offset>", or "" for a null location.
func (l Location) Key() string {
	if l.Offset == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(l.Path) + 11)
	b.WriteString(l.Path)
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(uint64(l.Offset), 10))
	return b.String()
}

func (l Location) String() string {
	if l.IsNull() {
		return "Location()"
	}
	return "Location(" + l.Key() + ")"
}

// Compare orders by path bytes first, then offset.
func Compare(a, b Location) int {
	if c := strings.Compare(a.Path, b.Path); c != 0 {
		return c
	}
	switch {
	case a.Offset < b.Offset:
		return -1
	case a.Offset > b.Offset:
		return 1
	}
	return 0
}

// Less reports whether a sorts before b.
func (l Location) Less(other Location) bool {
	return Compare(l, other) < 0
}

// Sort sorts locs in place by Compare.
func Sort(locs []Location) {
	sort.Slice(locs, func(i, j int) bool { return Compare(locs[i], locs[j]) < 0 })
}

// Encode returns the text key of l. A null location has no key.
func Encode(l Location) (string, error) {
	if l.IsNull() {
		return "", ErrNullLocation
	}
	return l.Key(), nil
}

// Decode parses "<path>,<offset>". The split is on the last comma, so paths may
// contain commas. The offset must be a positive decimal that fits in 32 bits.
func Decode(key string) (Location, error) {
	if key == "" {
		return Location{}, cxerrors.Newf(cxerrors.MalformedKey, "empty location key")
	}
	comma := strings.LastIndexByte(key, ',')
	if comma < 0 {
		return Location{}, cxerrors.Newf(cxerrors.MalformedKey, "location key %q has no comma", key)
	}
	if comma == 0 {
		return Location{}, cxerrors.Newf(cxerrors.MalformedKey, "location key %q has no path", key)
	}
	suffix := key[comma+1:]
	if suffix == "" {
		return Location{}, cxerrors.Newf(cxerrors.MalformedKey, "location key %q has no offset", key)
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return Location{}, cxerrors.Newf(cxerrors.MalformedKey, "location key %q has a non-numeric offset", key)
		}
	}
	off, err := strconv.ParseUint(suffix, 10, 32)
	if err != nil {
		return Location{}, cxerrors.New(cxerrors.MalformedKey, "location key "+strconv.Quote(key)+" has an out-of-range offset", err)
	}
	if off == 0 {
		return Location{}, cxerrors.Newf(cxerrors.MalformedKey, "location key %q has offset 0", key)
	}
	return Location{Path: key[:comma], Offset: uint32(off)}, nil
}

// Resolve decodes arg and makes its path absolute and canonical against cwd.
func Resolve(arg, cwd string) (Location, error) {
	l, err := Decode(arg)
	if err != nil {
		return Location{}, err
	}
	p, err := paths.Resolve(l.Path, cwd)
	if err != nil {
		return Location{}, err
	}
	l.Path = p
	return l, nil
}

// ResolveKey is Resolve returning the key text: the resolved path followed by
// the offset suffix exactly as it appeared in arg.
func ResolveKey(arg, cwd string) (string, error) {
	l, err := Resolve(arg, cwd)
	if err != nil {
		return "", err
	}
	return l.Path + arg[strings.LastIndexByte(arg, ','):], nil
}
