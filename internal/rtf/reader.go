package rtf

// byteReader walks an in-memory RTF document one byte at a time.
type byteReader struct {
	data []byte
	off  int
}

func newByteReader(data []byte) *byteReader {
	return &byteReader{data: data}
}

// next returns the next byte and advances. ok is false at end of input.
func (r *byteReader) next() (b byte, ok bool) {
	if r.off >= len(r.data) {
		return 0, false
	}
	b = r.data[r.off]
	r.off++
	return b, true
}

// peek returns the next byte without consuming it.
func (r *byteReader) peek() (b byte, ok bool) {
	if r.off >= len(r.data) {
		return 0, false
	}
	return r.data[r.off], true
}

// unread steps back over the byte returned by the last next call.
func (r *byteReader) unread() {
	if r.off > 0 {
		r.off--
	}
}

// skip discards up to n bytes and returns how many were actually skipped.
func (r *byteReader) skip(n int) int {
	if n <= 0 {
		return 0
	}
	remaining := len(r.data) - r.off
	if n > remaining {
		n = remaining
	}
	r.off += n
	return n
}

// pos is the offset of the next unread byte.
func (r *byteReader) pos() int {
	return r.off
}
