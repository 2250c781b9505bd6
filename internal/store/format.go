package store

import (
	"encoding/binary"

	cxerrors "cxref/internal/errors"
)

// Header layout. Every field after the magic is a 32-bit integer in the
// format's byte order.
const (
	Int32Length         = 4
	Int64Length         = 8
	MagicPos            = 0
	MagicLength         = 3
	NodeCountPos        = MagicPos + MagicLength
	IDWidthPos          = NodeCountPos + Int32Length
	DictionaryOffsetPos = IDWidthPos + Int32Length
	DictionaryCountPos  = DictionaryOffsetPos + Int32Length
	FileDataOffsetPos   = DictionaryCountPos + Int32Length
	HeaderSize          = FileDataOffsetPos + Int32Length
)

// Trailer prefix layout, found at Header.FileDataOffset.
const (
	VersionPos         = 0
	LocationOffsetPos  = VersionPos + Int32Length
	LocationCountPos   = LocationOffsetPos + Int32Length
	PayloadLengthPos   = LocationCountPos + Int32Length
	TrailerPrefixSize  = PayloadLengthPos + Int32Length
	nodeRecordIntCount = 5
	// NodeRecordFixedSize is the size of a node record before its name.
	NodeRecordFixedSize = nodeRecordIntCount * Int32Length
)

// Format describes one version of the blob layout. Writer and reader must use
// the same Format: the blob does not record its byte order, so a blob written
// on one byte order is only portable to readers configured with the same one.
type Format struct {
	Magic     [MagicLength]byte
	Version   uint32
	ByteOrder binary.ByteOrder
	// IDWidths lists the node-index slot widths this format accepts.
	IDWidths []int
}

// DefaultFormat is the layout this build writes and reads.
var DefaultFormat = Format{
	Magic:     [MagicLength]byte{'C', 'X', 'R'},
	Version:   2,
	ByteOrder: binary.LittleEndian,
	IDWidths:  []int{Int32Length, Int64Length},
}

// Header is the fixed record at the start of every blob.
type Header struct {
	Magic            [MagicLength]byte
	NodeCount        int32
	IDWidth          int32
	DictionaryOffset int32
	DictionaryCount  int32
	FileDataOffset   int32
}

// Trailer is the fixed prefix of the file-metadata section.
type Trailer struct {
	Version        uint32
	LocationOffset int32
	LocationCount  int32
	PayloadLength  int32
}

// RootPosition is the byte offset of the first node record, which is always
// the root node's.
func RootPosition(nodeCount, idWidth int) int {
	return HeaderSize + nodeCount*idWidth
}

// SupportsIDWidth reports whether w is an accepted node-index slot width.
func (f Format) SupportsIDWidth(w int) bool {
	for _, ok := range f.IDWidths {
		if w == ok {
			return true
		}
	}
	return false
}

// EncodeHeader writes h into b[:HeaderSize] with the format's magic.
func (f Format) EncodeHeader(b []byte, h Header) {
	copy(b[MagicPos:MagicPos+MagicLength], f.Magic[:])
	f.putI32(b, NodeCountPos, h.NodeCount)
	f.putI32(b, IDWidthPos, h.IDWidth)
	f.putI32(b, DictionaryOffsetPos, h.DictionaryOffset)
	f.putI32(b, DictionaryCountPos, h.DictionaryCount)
	f.putI32(b, FileDataOffsetPos, h.FileDataOffset)
}

// DecodeHeader reads and checks the magic of the header at the start of b.
// Field bounds are checked by Open, which knows the blob length.
func (f Format) DecodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, corruptf("blob is %d bytes, shorter than the %d-byte header", len(b), HeaderSize)
	}
	copy(h.Magic[:], b[MagicPos:MagicPos+MagicLength])
	if h.Magic != f.Magic {
		return h, corruptf("bad magic %q, want %q", h.Magic[:], f.Magic[:])
	}
	h.NodeCount = f.readI32(b, NodeCountPos)
	h.IDWidth = f.readI32(b, IDWidthPos)
	h.DictionaryOffset = f.readI32(b, DictionaryOffsetPos)
	h.DictionaryCount = f.readI32(b, DictionaryCountPos)
	h.FileDataOffset = f.readI32(b, FileDataOffsetPos)
	return h, nil
}

// EncodeTrailer writes t at b[off:].
func (f Format) EncodeTrailer(b []byte, off int, t Trailer) {
	f.ByteOrder.PutUint32(b[off+VersionPos:], t.Version)
	f.putI32(b, off+LocationOffsetPos, t.LocationOffset)
	f.putI32(b, off+LocationCountPos, t.LocationCount)
	f.putI32(b, off+PayloadLengthPos, t.PayloadLength)
}

// DecodeTrailer reads the trailer prefix at b[off:]. The caller bounds-checks off.
func (f Format) DecodeTrailer(b []byte, off int) Trailer {
	return Trailer{
		Version:        f.ByteOrder.Uint32(b[off+VersionPos:]),
		LocationOffset: f.readI32(b, off+LocationOffsetPos),
		LocationCount:  f.readI32(b, off+LocationCountPos),
		PayloadLength:  f.readI32(b, off+PayloadLengthPos),
	}
}

func (f Format) putI32(b []byte, off int, v int32) {
	f.ByteOrder.PutUint32(b[off:off+Int32Length], uint32(v))
}

func (f Format) readI32(b []byte, off int) int32 {
	return int32(f.ByteOrder.Uint32(b[off : off+Int32Length]))
}

// putID writes a node-index slot of the given width.
func (f Format) putID(b []byte, off, width int, v int64) {
	if width == Int64Length {
		f.ByteOrder.PutUint64(b[off:off+Int64Length], uint64(v))
		return
	}
	f.ByteOrder.PutUint32(b[off:off+Int32Length], uint32(v))
}

// readID reads a node-index slot of the given width.
func (f Format) readID(b []byte, off, width int) int64 {
	if width == Int64Length {
		return int64(f.ByteOrder.Uint64(b[off : off+Int64Length]))
	}
	return int64(int32(f.ByteOrder.Uint32(b[off : off+Int32Length])))
}

func corruptf(format string, args ...interface{}) error {
	return cxerrors.Newf(cxerrors.CorruptHeader, "corrupt store: "+format, args...)
}
