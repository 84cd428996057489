package heif

import (
	"math"

	"github.com/tetsuo/heif/heiferr"
)

// Range is a bounded read cursor over a file. A read that runs past the end
// of the range records a sticky error on the range and all its parents;
// later reads return zero values. Box parsers check Err once at the end.
type Range struct {
	src    *source
	pos    int64
	end    int64
	parent *Range
	depth  int
	err    error
}

// NewRange returns a range over data.
func NewRange(data []byte) *Range {
	return &Range{src: memorySource(data), end: int64(len(data))}
}

func newSourceRange(src *source) *Range {
	return &Range{src: src, end: src.size()}
}

// sub returns a child range covering the next n bytes of r. The caller
// advances r past it with r.skipTo(child.end).
func (r *Range) sub(n int64) *Range {
	return &Range{src: r.src, pos: r.pos, end: r.pos + n, parent: r, depth: r.depth + 1}
}

func (r *Range) skipTo(off int64) {
	if off > r.pos {
		r.pos = off
	}
}

func (r *Range) setError(err error) {
	for p := r; p != nil; p = p.parent {
		if p.err == nil {
			p.err = err
		}
	}
}

// Err returns the first error recorded on r.
func (r *Range) Err() error { return r.err }

// Pos returns the absolute file offset of the cursor.
func (r *Range) Pos() int64 { return r.pos }

// Depth returns the box nesting level of r.
func (r *Range) Depth() int { return r.depth }

// Remaining returns the bytes left before the end of r.
func (r *Range) Remaining() int64 {
	if r.err != nil {
		return 0
	}
	return r.end - r.pos
}

// EOF reports whether r is exhausted or failed.
func (r *Range) EOF() bool { return r.Remaining() <= 0 }

func (r *Range) read(n int) []byte {
	if r.err != nil {
		return nil
	}
	if int64(n) > r.end-r.pos {
		r.setError(heiferr.Newf(heiferr.InvalidInput, heiferr.EndOfData,
			"heif: read of %d bytes at offset %d overruns box end %d", n, r.pos, r.end))
		r.pos = r.end
		return nil
	}
	b, err := r.src.bytes(r.pos, n)
	if err != nil {
		r.setError(err)
		return nil
	}
	r.pos += int64(n)
	return b
}

func (r *Range) Read8() uint8 {
	b := r.read(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Range) Read16() uint16 {
	b := r.read(2)
	if b == nil {
		return 0
	}
	return be.Uint16(b)
}

func (r *Range) Read24() uint32 {
	b := r.read(3)
	if b == nil {
		return 0
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func (r *Range) Read32() uint32 {
	b := r.read(4)
	if b == nil {
		return 0
	}
	return be.Uint32(b)
}

func (r *Range) Read64() uint64 {
	b := r.read(8)
	if b == nil {
		return 0
	}
	return be.Uint64(b)
}

// ReadUint reads an n-byte big-endian unsigned integer. n may be 0.
func (r *Range) ReadUint(n int) uint64 {
	if n == 0 {
		return 0
	}
	if n > 8 {
		r.setError(heiferr.Newf(heiferr.InvalidInput, heiferr.Unspecified, "heif: %d-byte integer", n))
		return 0
	}
	var v uint64
	for _, c := range r.read(n) {
		v = v<<8 | uint64(c)
	}
	return v
}

// ReadFloat32 reads a big-endian IEEE-754 single.
func (r *Range) ReadFloat32() float32 {
	return math.Float32frombits(r.Read32())
}

// ReadString reads a NUL-terminated string. A missing terminator is an
// error.
func (r *Range) ReadString() string {
	var s []byte
	for {
		if r.err != nil {
			return ""
		}
		if r.pos >= r.end {
			r.setError(heiferr.New(heiferr.InvalidInput, heiferr.EndOfData, "heif: unterminated string"))
			return ""
		}
		c := r.Read8()
		if c == 0 {
			return string(s)
		}
		s = append(s, c)
	}
}

// ReadBytes returns a copy of the next n bytes.
func (r *Range) ReadBytes(n int) []byte {
	if n < 0 {
		r.setError(heiferr.New(heiferr.InvalidInput, heiferr.InvalidBoxSize, "heif: negative length"))
		return nil
	}
	b := r.read(n)
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, n), b...)
}

// ReadRest returns a copy of all remaining bytes.
func (r *Range) ReadRest() []byte {
	return r.ReadBytes(int(r.Remaining()))
}

// Skip advances over n bytes without reading them.
func (r *Range) Skip(n int64) {
	if r.err != nil {
		return
	}
	if n > r.end-r.pos {
		r.setError(heiferr.Newf(heiferr.InvalidInput, heiferr.EndOfData, "heif: skip of %d bytes overruns box end", n))
		r.pos = r.end
		return
	}
	r.pos += n
}

// BitReader reads MSB-first bit fields from a byte slice.
type BitReader struct {
	data []byte
	bit  int
	err  error
}

// NewBitReader returns a reader positioned at the first bit of data.
func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// Err returns the first error recorded by the reader.
func (b *BitReader) Err() error { return b.err }

// Remaining returns the number of unread bits.
func (b *BitReader) Remaining() int { return len(b.data)*8 - b.bit }

// Bits reads n bits, n <= 64.
func (b *BitReader) Bits(n int) uint64 {
	if n > 32 {
		hi := b.window(n - 32)
		return hi<<32 | b.window(32)
	}
	return b.window(n)
}

// window reads up to 32 bits from a 40-bit window starting at the current
// byte.
func (b *BitReader) window(n int) uint64 {
	if n <= 0 || b.err != nil {
		return 0
	}
	if n > b.Remaining() {
		b.err = heiferr.New(heiferr.InvalidInput, heiferr.EndOfData, "heif: bitstream exhausted")
		b.bit = len(b.data) * 8
		return 0
	}
	idx := b.bit >> 3
	var w uint64
	for i := 0; i < 5 && idx+i < len(b.data); i++ {
		w |= uint64(b.data[idx+i]) << (32 - 8*i)
	}
	shift := 40 - b.bit&7 - n
	b.bit += n
	return w >> shift & (1<<n - 1)
}

func (b *BitReader) Flag() bool { return b.Bits(1) == 1 }

func (b *BitReader) Skip(n int) { b.Bits(n) }

// UVLC reads an unsigned exp-Golomb code.
func (b *BitReader) UVLC() uint64 {
	zeros := 0
	for !b.Flag() {
		if b.err != nil {
			return 0
		}
		zeros++
		if zeros > 32 {
			b.err = heiferr.New(heiferr.InvalidInput, heiferr.Unspecified, "heif: exp-Golomb code too long")
			return 0
		}
	}
	return 1<<zeros - 1 + b.Bits(zeros)
}

// Align skips to the next byte boundary.
func (b *BitReader) Align() {
	if r := b.bit & 7; r != 0 {
		b.Skip(8 - r)
	}
}

// ReadBytes returns a copy of the next n bytes. The reader must be byte
// aligned.
func (b *BitReader) ReadBytes(n int) []byte {
	if b.err != nil {
		return nil
	}
	if b.bit&7 != 0 || n < 0 || n*8 > b.Remaining() {
		b.err = heiferr.New(heiferr.InvalidInput, heiferr.EndOfData, "heif: bitstream exhausted")
		b.bit = len(b.data) * 8
		return nil
	}
	start := b.bit >> 3
	b.bit += n * 8
	return append([]byte(nil), b.data[start:start+n]...)
}
