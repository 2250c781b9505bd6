// Package store reads and writes the single-file binary symbol store: a
// fixed header, a node-index table, node records, a sorted location table,
// a sorted name dictionary and an opaque file-metadata payload.
package store

import (
	"bytes"
	"sort"

	cxerrors "cxref/internal/errors"
	"cxref/internal/location"
	"cxref/internal/symbols"
)

// NodeView is a decoded node record.
type NodeView struct {
	Index symbols.Index `json:"index" yaml:"index"`
	symbols.Node `yaml:",inline"`
}

// Store is a read-only view over a blob. It never copies the blob and keeps
// no caches, so it is safe for concurrent use as long as the blob is not
// mutated.
type Store struct {
	data    []byte
	format  Format
	header  Header
	trailer Trailer
	closer  func() error
}

// Open validates the header of data and returns a view over it.
func Open(data []byte) (*Store, error) {
	return OpenFormat(data, DefaultFormat)
}

// OpenFormat is Open with an explicit layout.
func OpenFormat(data []byte, f Format) (*Store, error) {
	h, err := f.DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	size := int64(len(data))

	fd := int64(h.FileDataOffset)
	if fd < HeaderSize || fd+TrailerPrefixSize > size {
		return nil, corruptf("file data offset %d outside blob of %d bytes", fd, size)
	}
	t := f.DecodeTrailer(data, int(fd))
	if t.Version != f.Version {
		return nil, cxerrors.Newf(cxerrors.VersionMismatch, "store version %d, want %d", t.Version, f.Version)
	}

	if h.NodeCount < 1 {
		return nil, corruptf("node count %d, want at least the root", h.NodeCount)
	}
	if !f.SupportsIDWidth(int(h.IDWidth)) {
		return nil, corruptf("unsupported node id width %d", h.IDWidth)
	}
	recordsStart := int64(RootPosition(int(h.NodeCount), int(h.IDWidth)))
	if recordsStart+NodeRecordFixedSize > fd {
		return nil, corruptf("node table of %d entries overruns file data at %d", h.NodeCount, fd)
	}
	if err := checkTable("location", int64(t.LocationOffset), int64(t.LocationCount), recordsStart, fd); err != nil {
		return nil, err
	}
	if err := checkTable("dictionary", int64(h.DictionaryOffset), int64(h.DictionaryCount), recordsStart, fd); err != nil {
		return nil, err
	}
	if t.PayloadLength < 0 || fd+TrailerPrefixSize+int64(t.PayloadLength) > size {
		return nil, corruptf("file data payload of %d bytes overruns blob of %d bytes", t.PayloadLength, size)
	}

	return &Store{data: data, format: f, header: h, trailer: t}, nil
}

func checkTable(what string, off, count, lo, hi int64) error {
	if count < 0 {
		return corruptf("%s count %d is negative", what, count)
	}
	if off < lo || off+count*Int32Length > hi {
		return corruptf("%s table at %d with %d entries outside [%d,%d)", what, off, count, lo, hi)
	}
	return nil
}

// Close releases the mapping behind a store opened with OpenFile. It is a
// no-op for stores opened over a byte slice. A closed store reports no nodes.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	s.data = nil
	s.header = Header{}
	s.trailer = Trailer{}
	return c()
}

// Header returns the decoded header.
func (s *Store) Header() Header {
	return s.header
}

// Version returns the layout version recorded in the blob.
func (s *Store) Version() uint32 {
	return s.trailer.Version
}

// Size returns the blob length in bytes.
func (s *Store) Size() int {
	return len(s.data)
}

// NodeCount implements symbols.Tree.
func (s *Store) NodeCount() int {
	return int(s.header.NodeCount)
}

// Root returns the root node, which is always index 0.
func (s *Store) Root() (NodeView, error) {
	return s.Node(0)
}

// Node decodes node i.
func (s *Store) Node(i symbols.Index) (NodeView, error) {
	if i < 0 || int32(i) >= s.header.NodeCount {
		return NodeView{}, cxerrors.Newf(cxerrors.OutOfRange, "node index %d out of range [0,%d)", i, s.header.NodeCount)
	}
	f := s.format
	width := int(s.header.IDWidth)
	pos := f.readID(s.data, HeaderSize+int(i)*width, width)
	end := int64(s.header.FileDataOffset)
	if pos < int64(RootPosition(s.NodeCount(), width)) || pos+NodeRecordFixedSize >= end {
		return NodeView{}, corruptf("node %d record offset %d out of bounds", i, pos)
	}
	p := int(pos)

	v := NodeView{Index: i}
	v.Type = symbols.NodeType(f.readI32(s.data, p))
	locIdx := f.readI32(s.data, p+Int32Length)
	v.Parent = symbols.Index(f.readI32(s.data, p+2*Int32Length))
	v.NextSibling = symbols.Index(f.readI32(s.data, p+3*Int32Length))
	v.FirstChild = symbols.Index(f.readI32(s.data, p+4*Int32Length))

	name, _, err := s.cstring(p+NodeRecordFixedSize, int(end))
	if err != nil {
		return NodeView{}, err
	}
	v.Name = name

	if locIdx >= 0 {
		key, _, err := s.locationEntry(int(locIdx))
		if err != nil {
			return NodeView{}, err
		}
		loc, err := location.Decode(key)
		if err != nil {
			return NodeView{}, corruptf("node %d location %q: %v", i, key, err)
		}
		v.Location = loc
	}
	return v, nil
}

// cstring reads a NUL-terminated string at p that must end before limit. It
// returns the string and the offset just past the terminator.
func (s *Store) cstring(p, limit int) (string, int, error) {
	if p < 0 || p >= limit {
		return "", 0, corruptf("string offset %d out of bounds", p)
	}
	n := bytes.IndexByte(s.data[p:limit], 0)
	if n < 0 {
		return "", 0, corruptf("unterminated string at %d", p)
	}
	return string(s.data[p : p+n]), p + n + 1, nil
}

// entryPos reads slot i of an offset table.
func (s *Store) entryPos(table int32, i int) int {
	return int(s.format.readI32(s.data, int(table)+i*Int32Length))
}

func (s *Store) locationEntry(i int) (string, symbols.Index, error) {
	if i >= int(s.trailer.LocationCount) {
		return "", symbols.NoIndex, corruptf("location index %d out of range [0,%d)", i, s.trailer.LocationCount)
	}
	end := int(s.header.DictionaryOffset)
	if int(s.trailer.LocationOffset) > end {
		end = int(s.header.FileDataOffset)
	}
	key, p, err := s.cstring(s.entryPos(s.trailer.LocationOffset, i), end)
	if err != nil {
		return "", symbols.NoIndex, err
	}
	if p+Int32Length > end {
		return "", symbols.NoIndex, corruptf("location entry %d overruns its section", i)
	}
	node := symbols.Index(s.format.readI32(s.data, p))
	if node < 0 || int32(node) >= s.header.NodeCount {
		return "", symbols.NoIndex, corruptf("location entry %d names node %d", i, node)
	}
	return key, node, nil
}

// FindByLocation returns the node recorded at loc. When several nodes share
// a location the lowest index wins.
func (s *Store) FindByLocation(loc location.Location) (symbols.Index, bool, error) {
	if loc.IsNull() {
		return symbols.NoIndex, false, nil
	}
	count := int(s.trailer.LocationCount)
	var firstErr error
	i := sort.Search(count, func(i int) bool {
		key, _, err := s.locationEntry(i)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		at, err := location.Decode(key)
		if err != nil {
			if firstErr == nil {
				firstErr = corruptf("location entry %d key %q: %v", i, key, err)
			}
			return true
		}
		return location.Compare(at, loc) >= 0
	})
	if firstErr != nil {
		return symbols.NoIndex, false, firstErr
	}
	if i == count {
		return symbols.NoIndex, false, nil
	}
	key, node, err := s.locationEntry(i)
	if err != nil {
		return symbols.NoIndex, false, err
	}
	if key != loc.Key() {
		return symbols.NoIndex, false, nil
	}
	return node, true, nil
}

// dictEntry decodes dictionary entry i: its name and the offset of its
// index list.
func (s *Store) dictEntry(i int) (string, int, error) {
	end := int(s.header.FileDataOffset)
	if int(s.header.DictionaryOffset) < int(s.trailer.LocationOffset) {
		end = int(s.trailer.LocationOffset)
	}
	return s.cstring(s.entryPos(s.header.DictionaryOffset, i), end)
}

// FindByName returns the nodes named name in ascending index order.
func (s *Store) FindByName(name string) ([]symbols.Index, error) {
	count := int(s.header.DictionaryCount)
	var firstErr error
	i := sort.Search(count, func(i int) bool {
		n, _, err := s.dictEntry(i)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		return n >= name
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if i == count {
		return nil, nil
	}
	n, p, err := s.dictEntry(i)
	if err != nil {
		return nil, err
	}
	if n != name {
		return nil, nil
	}
	return s.indexList(i, p)
}

func (s *Store) indexList(entry, p int) ([]symbols.Index, error) {
	end := int64(s.header.FileDataOffset)
	if p+Int32Length > int(end) {
		return nil, corruptf("dictionary entry %d overruns its section", entry)
	}
	n := int64(s.format.readI32(s.data, p))
	if n < 0 || n > int64(s.header.NodeCount) || int64(p)+Int32Length+n*Int32Length > end {
		return nil, corruptf("dictionary entry %d has bad index count %d", entry, n)
	}
	out := make([]symbols.Index, n)
	p += Int32Length
	for k := range out {
		idx := symbols.Index(s.format.readI32(s.data, p))
		if idx < 0 || int32(idx) >= s.header.NodeCount {
			return nil, corruptf("dictionary entry %d names node %d", entry, idx)
		}
		out[k] = idx
		p += Int32Length
	}
	return out, nil
}

// Names returns every distinct node name in sorted order.
func (s *Store) Names() ([]string, error) {
	out := make([]string, 0, s.header.DictionaryCount)
	for i := 0; i < int(s.header.DictionaryCount); i++ {
		n, _, err := s.dictEntry(i)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// FileData returns the opaque file-metadata payload. The slice aliases the
// blob and must not be modified.
func (s *Store) FileData() []byte {
	if s.data == nil {
		return nil
	}
	start := int(s.header.FileDataOffset) + TrailerPrefixSize
	return s.data[start : start+int(s.trailer.PayloadLength)]
}

// Children implements symbols.Tree. A sibling chain longer than the node
// count means the blob is corrupt.
func (s *Store) Children(i symbols.Index) ([]symbols.Index, error) {
	n, err := s.Node(i)
	if err != nil {
		return nil, err
	}
	var out []symbols.Index
	for c := n.FirstChild; c != symbols.NoIndex; {
		if len(out) >= s.NodeCount() {
			return nil, corruptf("sibling chain under node %d does not terminate", i)
		}
		out = append(out, c)
		child, err := s.Node(c)
		if err != nil {
			return nil, err
		}
		c = child.NextSibling
	}
	return out, nil
}

// Field implements symbols.Tree.
func (s *Store) Field(i symbols.Index, name string) (interface{}, error) {
	n, err := s.Node(i)
	if err != nil {
		return nil, err
	}
	return symbols.FieldOf(n.Node, name)
}

// Forest decodes every node into an in-memory forest.
func (s *Store) Forest() (*symbols.Forest, error) {
	nodes := make([]symbols.Node, s.NodeCount())
	for i := range nodes {
		v, err := s.Node(symbols.Index(i))
		if err != nil {
			return nil, err
		}
		nodes[i] = v.Node
	}
	return symbols.FromNodes(nodes)
}

var _ symbols.Tree = (*Store)(nil)
