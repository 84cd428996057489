package heif

import (
	"log/slog"

	"github.com/tetsuo/heif/heiferr"
)

// InitialFtypRequest is the size of the first read; ftyp must fit in it.
const InitialFtypRequest = 1024

// boxHeaderSize is the size of a compact box header.
const boxHeaderSize = 8

// FileLayout locates the ftyp and meta boxes of a file. It buffers only
// the file prefix up to the end of meta; item data is read later by offset.
type FileLayout struct {
	src  *source
	Ftyp *FtypBox
	Meta *MetaBox
	// MetaOffset is the file offset of the meta box.
	MetaOffset int64
}

// ReadLayout reads the ftyp and meta boxes of a file held in memory.
func ReadLayout(data []byte, limits *SecurityLimits) (*FileLayout, error) {
	return readLayout(memorySource(data), limits, slog.Default())
}

func readLayout(src *source, limits *SecurityLimits, logger *slog.Logger) (*FileLayout, error) {
	src.setLimits(limits)
	if err := src.ensure(boxHeaderSize); err != nil {
		return nil, heiferr.Wrap(heiferr.InvalidInput, heiferr.EndOfData, err, "heif: file too small for a box header")
	}
	// Buffer the initial window as far as the file allows.
	for n := int64(InitialFtypRequest); n > boxHeaderSize; n /= 2 {
		if src.ensure(n) == nil {
			break
		}
	}

	l := &FileLayout{src: src}
	r := newSourceRange(src)
	h, err := readHeader(&Range{src: src, end: src.size()})
	if err != nil {
		return nil, err
	}
	switch {
	case h.Type != TypeFtyp:
		return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.NoFtypBox, "heif: first box is %q, not ftyp", h.Type)
	case h.Size == 0:
		return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoFtypBox, "heif: ftyp box of unbounded size")
	case h.Size > InitialFtypRequest:
		return nil, heiferr.Newf(heiferr.UnsupportedFeature, heiferr.Unspecified,
			"heif: ftyp box of %d bytes exceeds the %d byte window", h.Size, InitialFtypRequest)
	}
	box, err := ParseBox(r, limits)
	if err != nil {
		return nil, err
	}
	l.Ftyp = box.(*FtypBox)

	for {
		pos := r.Pos()
		if err := src.ensure(pos + boxHeaderSize); err != nil {
			if heiferr.SubCodeOf(err) == heiferr.SecurityLimitExceeded {
				return nil, err
			}
			return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoMetaBox, "heif: no meta box")
		}
		h, err := readHeader(&Range{src: src, pos: pos, end: src.size()})
		if err != nil {
			return nil, heiferr.Wrap(heiferr.InvalidInput, heiferr.NoMetaBox, err, "heif: no meta box")
		}
		if h.Type == TypeMeta {
			l.MetaOffset = pos
			if err := ensureBox(src, pos, h.Size); err != nil {
				return nil, err
			}
			box, err := ParseBox(r, limits)
			if err != nil {
				return nil, err
			}
			l.Meta = box.(*MetaBox)
			return l, nil
		}
		if h.Size == 0 {
			return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.NoMetaBox,
				"heif: %s box of unbounded size before meta", h.Type)
		}
		if h.Size < uint64(h.HeaderSize) {
			return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.InvalidBoxSize, "heif: %s box size %d", h.Type, h.Size)
		}
		logger.Debug("heif: skipping top-level box", "type", h.Type.String(), "size", h.Size)
		// The header was validated but its body is never requested.
		r.pos = pos + int64(h.Size)
		if r.pos < pos || (src.stream == nil && r.pos > src.size()) {
			return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoMetaBox, "heif: no meta box")
		}
	}
}

// ensureBox buffers the whole box of the given declared size at pos, so
// its children are parsed without further stream reads.
func ensureBox(src *source, pos int64, size uint64) error {
	if size == 0 {
		return nil
	}
	end := pos + int64(size)
	if size > unbounded || end < pos {
		return heiferr.Newf(heiferr.InvalidInput, heiferr.InvalidBoxSize, "heif: box size %d at offset %d", size, pos)
	}
	if err := src.ensure(end); err != nil {
		if heiferr.SubCodeOf(err) == heiferr.SecurityLimitExceeded {
			return err
		}
		return heiferr.Wrap(heiferr.InvalidInput, heiferr.EndOfData, err, "heif: meta box truncated")
	}
	return nil
}

// ParseAll parses every top-level box of a file held in memory.
func ParseAll(data []byte, limits *SecurityLimits) ([]Box, error) {
	return parseChildren(NewRange(data), limits, -1)
}
