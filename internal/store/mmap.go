package store

import (
	"os"

	"github.com/edsrzf/mmap-go"

	cxerrors "cxref/internal/errors"
)

// OpenFile maps the blob at path read-only and opens it. Close unmaps it.
func OpenFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cxerrors.New(cxerrors.IndexMissing, "no store at "+path, err)
		}
		return nil, cxerrors.New(cxerrors.Unavailable, "opening store", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, cxerrors.New(cxerrors.Unavailable, "reading store size", err)
	}
	if info.Size() < HeaderSize {
		f.Close()
		return nil, corruptf("%s is %d bytes, shorter than the %d-byte header", path, info.Size(), HeaderSize)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, cxerrors.New(cxerrors.Unavailable, "mapping store", err)
	}
	s, err := Open(m)
	if err != nil {
		_ = m.Unmap()
		f.Close()
		return nil, err
	}
	s.closer = func() error {
		uerr := m.Unmap()
		cerr := f.Close()
		if uerr != nil {
			return uerr
		}
		return cerr
	}
	return s, nil
}

// Load reads the blob at path into memory and opens it. Use it where the
// blob must outlive the file, for example across a rebuild.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cxerrors.New(cxerrors.IndexMissing, "no store at "+path, err)
		}
		return nil, cxerrors.New(cxerrors.Unavailable, "reading store", err)
	}
	return Open(data)
}
