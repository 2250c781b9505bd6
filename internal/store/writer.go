package store

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	cxerrors "cxref/internal/errors"
	"cxref/internal/location"
	"cxref/internal/symbols"
)

// Options configure a Writer.
type Options struct {
	// IDWidth is the node-index slot width in bytes (4 or 8). Zero means 4.
	IDWidth int
	// Format defaults to DefaultFormat when its ByteOrder is nil.
	Format Format
}

func (o Options) withDefaults() Options {
	if o.IDWidth == 0 {
		o.IDWidth = Int32Length
	}
	if o.Format.ByteOrder == nil {
		o.Format = DefaultFormat
	}
	return o
}

type locEntry struct {
	loc  location.Location
	key  string
	node int32
}

type dictEntry struct {
	name  string
	nodes []int32
}

// Writer lays out a forest as a store blob. All offsets are computed by
// NewWriter; emission only copies bytes into place.
type Writer struct {
	opts     Options
	nodes    []symbols.Node
	fileData []byte

	header     Header
	trailer    Trailer
	recordOffs []int64
	locIndex   []int32
	locs       []locEntry
	dict       []dictEntry
	size       int64
}

// NewWriter validates forest and computes the blob layout. fileData is an
// opaque payload stored in the file-metadata section.
func NewWriter(forest *symbols.Forest, fileData []byte, opts Options) (*Writer, error) {
	opts = opts.withDefaults()
	if !opts.Format.SupportsIDWidth(opts.IDWidth) {
		return nil, cxerrors.Newf(cxerrors.PreconditionViolation, "unsupported node id width %d", opts.IDWidth)
	}
	if forest == nil {
		return nil, cxerrors.Newf(cxerrors.PreconditionViolation, "nil forest")
	}
	if err := forest.Validate(); err != nil {
		return nil, err
	}

	w := &Writer{opts: opts, nodes: forest.Nodes(), fileData: fileData}
	if err := w.layout(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) layout() error {
	n := len(w.nodes)
	idWidth := int64(w.opts.IDWidth)

	// Node records follow the node-index table, in index order.
	off := int64(RootPosition(n, 0)) + int64(n)*idWidth
	w.recordOffs = make([]int64, n)
	for i, node := range w.nodes {
		w.recordOffs[i] = off
		off += NodeRecordFixedSize + int64(len(node.Name)) + 1
	}

	// Location table, sorted by location then node index.
	w.locIndex = make([]int32, n)
	for i, node := range w.nodes {
		w.locIndex[i] = -1
		if !node.Location.IsNull() {
			w.locs = append(w.locs, locEntry{loc: node.Location, key: node.Location.Key(), node: int32(i)})
		}
	}
	sort.Slice(w.locs, func(a, b int) bool {
		if c := location.Compare(w.locs[a].loc, w.locs[b].loc); c != 0 {
			return c < 0
		}
		return w.locs[a].node < w.locs[b].node
	})
	for i, e := range w.locs {
		w.locIndex[e.node] = int32(i)
	}
	locOffset := off
	off += int64(len(w.locs)) * Int32Length
	for _, e := range w.locs {
		off += int64(len(e.key)) + 1 + Int32Length
	}

	// Dictionary: unnamed nodes are not indexed.
	byName := make(map[string][]int32)
	for i, node := range w.nodes {
		if node.Name != "" {
			byName[node.Name] = append(byName[node.Name], int32(i))
		}
	}
	w.dict = make([]dictEntry, 0, len(byName))
	for name, idx := range byName {
		w.dict = append(w.dict, dictEntry{name: name, nodes: idx})
	}
	sort.Slice(w.dict, func(a, b int) bool { return w.dict[a].name < w.dict[b].name })
	dictOffset := off
	off += int64(len(w.dict)) * Int32Length
	for _, e := range w.dict {
		off += int64(len(e.name)) + 1 + Int32Length + int64(len(e.nodes))*Int32Length
	}

	fileDataOffset := off
	off += TrailerPrefixSize + int64(len(w.fileData))
	if off > math.MaxInt32 {
		return cxerrors.Newf(cxerrors.InternalError, "store would be %d bytes, over the 32-bit offset limit", off)
	}
	w.size = off

	w.header = Header{
		Magic:            w.opts.Format.Magic,
		NodeCount:        int32(n),
		IDWidth:          int32(w.opts.IDWidth),
		DictionaryOffset: int32(dictOffset),
		DictionaryCount:  int32(len(w.dict)),
		FileDataOffset:   int32(fileDataOffset),
	}
	w.trailer = Trailer{
		Version:        w.opts.Format.Version,
		LocationOffset: int32(locOffset),
		LocationCount:  int32(len(w.locs)),
		PayloadLength:  int32(len(w.fileData)),
	}
	return nil
}

// Size returns the blob length in bytes.
func (w *Writer) Size() int {
	return int(w.size)
}

// Header returns the header the blob will carry.
func (w *Writer) Header() Header {
	return w.header
}

// Bytes renders the blob.
func (w *Writer) Bytes() []byte {
	f := w.opts.Format
	b := make([]byte, w.size)
	f.EncodeHeader(b, w.header)

	idWidth := w.opts.IDWidth
	for i, node := range w.nodes {
		f.putID(b, HeaderSize+i*idWidth, idWidth, w.recordOffs[i])

		p := int(w.recordOffs[i])
		f.putI32(b, p, int32(node.Type))
		f.putI32(b, p+Int32Length, w.locIndex[i])
		f.putI32(b, p+2*Int32Length, int32(node.Parent))
		f.putI32(b, p+3*Int32Length, int32(node.NextSibling))
		f.putI32(b, p+4*Int32Length, int32(node.FirstChild))
		p += NodeRecordFixedSize
		p += copy(b[p:], node.Name)
		b[p] = 0
	}

	table := int(w.trailer.LocationOffset)
	p := table + len(w.locs)*Int32Length
	for i, e := range w.locs {
		f.putI32(b, table+i*Int32Length, int32(p))
		p += copy(b[p:], e.key)
		b[p] = 0
		p++
		f.putI32(b, p, e.node)
		p += Int32Length
	}

	table = int(w.header.DictionaryOffset)
	p = table + len(w.dict)*Int32Length
	for i, e := range w.dict {
		f.putI32(b, table+i*Int32Length, int32(p))
		p += copy(b[p:], e.name)
		b[p] = 0
		p++
		f.putI32(b, p, int32(len(e.nodes)))
		p += Int32Length
		for _, idx := range e.nodes {
			f.putI32(b, p, idx)
			p += Int32Length
		}
	}

	fd := int(w.header.FileDataOffset)
	f.EncodeTrailer(b, fd, w.trailer)
	copy(b[fd+TrailerPrefixSize:], w.fileData)
	return b
}

// WriteTo implements io.WriterTo.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	n, err := out.Write(w.Bytes())
	return int64(n), err
}

// WriteFile writes the blob next to path under a temporary name, syncs it and
// renames it over path, so readers see either the old blob or the new one.
func (w *Writer) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return cxerrors.New(cxerrors.InternalError, "creating store directory", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return cxerrors.New(cxerrors.InternalError, "creating temporary store file", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := w.WriteTo(tmp); err != nil {
		return cxerrors.New(cxerrors.InternalError, "writing store", err)
	}
	if err := tmp.Sync(); err != nil {
		return cxerrors.New(cxerrors.InternalError, "syncing store", err)
	}
	if err := tmp.Close(); err != nil {
		return cxerrors.New(cxerrors.InternalError, "closing store", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return cxerrors.New(cxerrors.InternalError, "setting store permissions", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return cxerrors.New(cxerrors.InternalError, "replacing store", err)
	}
	committed = true

	// Persist the rename itself; failure here leaves a valid blob behind.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Write lays out forest and returns the blob.
func Write(forest *symbols.Forest, fileData []byte, opts Options) ([]byte, error) {
	w, err := NewWriter(forest, fileData, opts)
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// WriteFile lays out forest and atomically replaces the blob at path.
func WriteFile(path string, forest *symbols.Forest, fileData []byte, opts Options) error {
	w, err := NewWriter(forest, fileData, opts)
	if err != nil {
		return err
	}
	return w.WriteFile(path)
}
