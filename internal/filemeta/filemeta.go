// Package filemeta records the source files a store was built from, so a
// later run can tell whether the store is stale. The record is stored as the
// store's file-metadata payload: JSON compressed with zstd.
package filemeta

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	cxerrors "cxref/internal/errors"
)

// SchemaVersion is bumped when Entry changes shape.
const SchemaVersion = 1

// Entry describes one indexed file at build time.
type Entry struct {
	Path    string `json:"path" yaml:"path"`
	Size    int64  `json:"size" yaml:"size"`
	ModTime int64  `json:"mtime" yaml:"mtime"` // unix nanoseconds
	Digest  string `json:"digest" yaml:"digest"`
}

type payload struct {
	Version int     `json:"version"`
	Files   []Entry `json:"files"`
}

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

// Encode serializes entries, sorted by path, into a compressed payload.
func Encode(entries []Entry) ([]byte, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	raw, err := json.Marshal(payload{Version: SchemaVersion, Files: sorted})
	if err != nil {
		return nil, cxerrors.New(cxerrors.InternalError, "encoding file metadata", err)
	}
	enc, _, err := codec()
	if err != nil {
		return nil, cxerrors.New(cxerrors.InternalError, "creating zstd codec", err)
	}
	return enc.EncodeAll(raw, nil), nil
}

// Decode parses a payload written by Encode. An empty payload has no entries.
func Decode(b []byte) ([]Entry, error) {
	if len(b) == 0 {
		return nil, nil
	}
	_, dec, err := codec()
	if err != nil {
		return nil, cxerrors.New(cxerrors.InternalError, "creating zstd codec", err)
	}
	raw, err := dec.DecodeAll(b, nil)
	if err != nil {
		return nil, cxerrors.New(cxerrors.CorruptHeader, "decompressing file metadata", err)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, cxerrors.New(cxerrors.CorruptHeader, "decoding file metadata", err)
	}
	if p.Version != SchemaVersion {
		return nil, cxerrors.Newf(cxerrors.VersionMismatch, "file metadata schema %d, want %d", p.Version, SchemaVersion)
	}
	return p.Files, nil
}

// Digest returns the hex BLAKE2b-256 of r.
func Digest(r io.Reader) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Stat describes the file at path as it is now.
func Stat(path string) (Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Entry{}, err
	}
	digest, err := Digest(f)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
		Digest:  digest,
	}, nil
}

// Collect stats every path. Duplicates are collapsed.
func Collect(paths []string) ([]Entry, error) {
	seen := make(map[string]bool, len(paths))
	out := make([]Entry, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		e, err := Stat(p)
		if err != nil {
			return nil, cxerrors.New(cxerrors.InternalError, "reading "+p, err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
