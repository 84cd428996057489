package heif

import (
	"math"
	"slices"
)

// Writer serializes boxes into a growing byte slice. Box sizes are
// backpatched when a box is closed.
type Writer struct {
	buf   []byte
	boxes []openBox
}

type openBox struct {
	start int
	large bool
}

// NewWriter returns a Writer appending to buf[:0].
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf[:0]}
}

// Bytes returns the written data.
func (w *Writer) Bytes() []byte { return w.buf }

// Pos returns the current write offset.
func (w *Writer) Pos() int { return len(w.buf) }

func (w *Writer) Write8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Write16(v uint16) { w.buf = be.AppendUint16(w.buf, v) }

func (w *Writer) Write24(v uint32) {
	w.buf = append(w.buf, byte(v>>16), byte(v>>8), byte(v))
}

func (w *Writer) Write32(v uint32) { w.buf = be.AppendUint32(w.buf, v) }

func (w *Writer) Write64(v uint64) { w.buf = be.AppendUint64(w.buf, v) }

// WriteUint writes the low n bytes of v big-endian. n may be 0.
func (w *Writer) WriteUint(n int, v uint64) {
	for i := n - 1; i >= 0; i-- {
		w.buf = append(w.buf, byte(v>>(8*i)))
	}
}

func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

// WriteString writes s followed by a NUL byte.
func (w *Writer) WriteString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

func (w *Writer) WriteType(t BoxType) { w.buf = append(w.buf, t[:]...) }

// Reserve writes n zero bytes and returns their offset for PatchUint.
func (w *Writer) Reserve(n int) int {
	pos := len(w.buf)
	w.buf = append(w.buf, make([]byte, n)...)
	return pos
}

// PatchUint overwrites n bytes at pos with v big-endian.
func (w *Writer) PatchUint(pos, n int, v uint64) {
	for i := n - 1; i >= 0; i-- {
		w.buf[pos+n-1-i] = byte(v >> (8 * i))
	}
}

// StartBox opens a box of type t. Its size is written by EndBox.
func (w *Writer) StartBox(t BoxType) {
	w.startBox(&BoxHeader{Type: t})
}

// StartFullBox opens a box with a version and flags header.
func (w *Writer) StartFullBox(t BoxType, version uint8, flags uint32) {
	w.StartBox(t)
	w.writeFullHeader(version, flags)
}

func (w *Writer) writeFullHeader(version uint8, flags uint32) {
	w.Write32(uint32(version)<<24 | flags&0xFFFFFF)
}

// startBox writes a box header keeping the size form and user type of h.
func (w *Writer) startBox(h *BoxHeader) {
	w.boxes = append(w.boxes, openBox{start: len(w.buf), large: h.largeSize})
	if h.largeSize {
		w.Write32(1)
		w.WriteType(h.Type)
		w.Write64(0)
	} else {
		w.Write32(0)
		w.WriteType(h.Type)
	}
	if h.Type == TypeUUID {
		w.WriteBytes(h.UserType[:])
	}
}

func (w *Writer) startFullBox(h *BoxHeader) {
	w.startBox(h)
	w.writeFullHeader(h.Version, h.Flags)
}

// EndBox closes the innermost open box and patches its size. A compact
// header whose box outgrew 32 bits is widened in place.
func (w *Writer) EndBox() {
	b := w.boxes[len(w.boxes)-1]
	w.boxes = w.boxes[:len(w.boxes)-1]
	size := uint64(len(w.buf) - b.start)
	switch {
	case b.large:
		w.PatchUint(b.start+8, 8, size)
	case size > math.MaxUint32:
		w.buf = slices.Insert(w.buf, b.start+8, make([]byte, 8)...)
		w.PatchUint(b.start, 4, 1)
		w.PatchUint(b.start+8, 8, size+8)
	default:
		w.PatchUint(b.start, 4, size)
	}
}
