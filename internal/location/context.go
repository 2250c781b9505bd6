package location

import (
	"bytes"
	"context"
	"io"
	"os"
)

// MaxContextBytes caps the length of a line returned by Context.
const MaxContextBytes = 1023

const scanChunk = 512

// Context returns the source line containing the 1-indexed byte offset in path.
// An offset on a '\n' belongs to the line that newline ends.
// The result is best effort: any I/O failure, a zero offset or an offset past
// the end of the file yields "".
func Context(path string, offset uint32) string {
	if offset == 0 {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	pos := int64(offset) - 1
	if pos >= info.Size() {
		return ""
	}

	start, err := lineStart(f, pos)
	if err != nil {
		return ""
	}

	buf := make([]byte, MaxContextBytes)
	n, err := f.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return ""
	}
	buf = buf[:n]
	if nl := bytes.IndexByte(buf, '\n'); nl >= 0 {
		buf = buf[:nl]
	}
	return string(buf)
}

// ContextCtx is Context that gives up before touching the file if ctx is done.
// The read itself is synchronous and not interruptible.
func ContextCtx(ctx context.Context, path string, offset uint32) string {
	if ctx.Err() != nil {
		return ""
	}
	return Context(path, offset)
}

// lineStart returns the offset just past the last '\n' before pos, or 0.
func lineStart(r io.ReaderAt, pos int64) (int64, error) {
	chunk := make([]byte, scanChunk)
	end := pos
	for end > 0 {
		begin := end - scanChunk
		if begin < 0 {
			begin = 0
		}
		n, err := r.ReadAt(chunk[:end-begin], begin)
		if err != nil && err != io.EOF {
			return 0, err
		}
		if nl := bytes.LastIndexByte(chunk[:n], '\n'); nl >= 0 {
			return begin + int64(nl) + 1, nil
		}
		end = begin
	}
	return 0, nil
}

// Display renders key for humans: "<key>\t<line>". When key does not resolve
// against cwd it is returned unchanged.
func Display(key, cwd string) string {
	l, err := Resolve(key, cwd)
	if err != nil {
		return key
	}
	return key + "\t" + Context(l.Path, l.Offset)
}
