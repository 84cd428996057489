package heif

import (
	"errors"
	"io"
	"math"
	"slices"
	"sync"

	"github.com/tetsuo/heif/heiferr"
)

// StreamReader is a byte source that may grow while it is being read, such
// as a file still being downloaded.
type StreamReader interface {
	// WaitForFileSize blocks until at least size bytes can be read. It
	// reports false when the stream ends or fails first.
	WaitForFileSize(size int64) bool

	// ReadAt reads len(p) bytes at off. Callers only ask for bytes that
	// WaitForFileSize has confirmed.
	ReadAt(p []byte, off int64) (int, error)
}

// unbounded is the end of a range over a stream of unknown length.
const unbounded = math.MaxInt64

// source is the byte origin shared by all ranges of one file. It buffers
// the file prefix read so far; item data beyond it is read on demand.
type source struct {
	stream StreamReader // nil when data holds the whole file
	data   []byte
	// limit caps the bytes requested from a stream in one read or buffered
	// as the prefix. Zero disables it.
	limit int64
}

func memorySource(data []byte) *source {
	return &source{data: data}
}

func streamSource(s StreamReader) *source {
	return &source{stream: s}
}

// size returns the length of the file, or unbounded for streams.
func (s *source) size() int64 {
	if s.stream == nil {
		return int64(len(s.data))
	}
	return unbounded
}

// setLimits applies the memory limit of limits to stream reads.
func (s *source) setLimits(limits *SecurityLimits) {
	if limits != nil {
		s.limit = limits.MaxMemoryBlockBytes
	}
}

// checkRequest rejects stream reads that end out of range or would buffer
// more than the memory limit.
func (s *source) checkRequest(end, n int64) error {
	if end < 0 || n < 0 {
		return heiferr.Newf(heiferr.InvalidInput, heiferr.InvalidBoxSize, "heif: read up to offset %d out of range", end)
	}
	if s.limit > 0 && n > s.limit {
		return heiferr.Newf(heiferr.InvalidInput, heiferr.SecurityLimitExceeded,
			"heif: read of %d bytes exceeds limit %d", n, s.limit)
	}
	return nil
}

func errNoBytes(end int64) error {
	return heiferr.Newf(heiferr.InvalidInput, heiferr.Unspecified, "heif: cannot read up to offset %d", end)
}

// ensure grows the buffered prefix to end bytes.
func (s *source) ensure(end int64) error {
	if end <= int64(len(s.data)) {
		return nil
	}
	if s.stream == nil {
		return errNoBytes(end)
	}
	if err := s.checkRequest(end, end); err != nil {
		return err
	}
	if !s.stream.WaitForFileSize(end) {
		return errNoBytes(end)
	}
	start := int64(len(s.data))
	s.data = slices.Grow(s.data, int(end-start))[:end]
	if _, err := s.stream.ReadAt(s.data[start:end], start); err != nil {
		s.data = s.data[:start]
		return heiferr.Wrap(heiferr.InvalidInput, heiferr.Unspecified, err, "heif: stream read")
	}
	return nil
}

// bytes returns n buffered bytes at off, growing the prefix if needed.
func (s *source) bytes(off int64, n int) ([]byte, error) {
	end := off + int64(n)
	if off < 0 || end < off {
		return nil, errNoBytes(end)
	}
	if err := s.ensure(end); err != nil {
		return nil, err
	}
	return s.data[off:end], nil
}

// readAt copies n bytes at off without adding them to the buffered prefix.
func (s *source) readAt(off int64, n int) ([]byte, error) {
	end := off + int64(n)
	if off < 0 || end < off {
		return nil, errNoBytes(end)
	}
	if end <= int64(len(s.data)) {
		return append([]byte(nil), s.data[off:end]...), nil
	}
	if s.stream == nil {
		return nil, errNoBytes(end)
	}
	if err := s.checkRequest(end, int64(n)); err != nil {
		return nil, err
	}
	if !s.stream.WaitForFileSize(end) {
		return nil, errNoBytes(end)
	}
	p := make([]byte, n)
	if _, err := s.stream.ReadAt(p, off); err != nil {
		return nil, heiferr.Wrap(heiferr.InvalidInput, heiferr.Unspecified, err, "heif: stream read")
	}
	return p, nil
}

// readChunk is the size of one Read issued by readerStream.
const readChunk = 32 << 10

// readerStream adapts an io.Reader into a StreamReader by reading forward as
// far as requested.
type readerStream struct {
	mu  sync.Mutex
	r   io.Reader
	buf []byte
	err error
}

// NewReaderStream returns a StreamReader pulling from r on demand.
func NewReaderStream(r io.Reader) StreamReader {
	return &readerStream{r: r}
}

func (s *readerStream) WaitForFileSize(size int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for int64(len(s.buf)) < size && s.err == nil {
		s.buf = slices.Grow(s.buf, readChunk)
		n, err := s.r.Read(s.buf[len(s.buf):cap(s.buf)])
		s.buf = s.buf[:len(s.buf)+n]
		if err != nil {
			s.err = err
		}
	}
	return int64(len(s.buf)) >= size
}

func (s *readerStream) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(s.buf)) {
		if s.err != nil && !errors.Is(s.err, io.EOF) {
			return 0, s.err
		}
		return 0, io.ErrUnexpectedEOF
	}
	return copy(p, s.buf[off:]), nil
}
