// Package heif reads and writes HEIF and AVIF image files and dispatches
// their coded images to codec plugins.
package heif

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/tetsuo/heif/heiferr"
)

var be = binary.BigEndian

// MaxBoxNestingLevel bounds the depth of box trees.
const MaxBoxNestingLevel = 20

// BoxType is a 4-byte box type identifier.
type BoxType [4]byte

func (t BoxType) String() string {
	return string(t[:])
}

// newBoxType creates a BoxType from a 4-character string.
func newBoxType(s string) BoxType {
	var t BoxType
	copy(t[:], s)
	return t
}

// Known box types.
var (
	TypeFtyp = newBoxType("ftyp")
	TypeMeta = newBoxType("meta")
	TypeHdlr = newBoxType("hdlr")
	TypePitm = newBoxType("pitm")
	TypeIloc = newBoxType("iloc")
	TypeIinf = newBoxType("iinf")
	TypeInfe = newBoxType("infe")
	TypeIref = newBoxType("iref")
	TypeIdat = newBoxType("idat")
	TypeDinf = newBoxType("dinf")
	TypeDref = newBoxType("dref")
	TypeURL  = newBoxType("url ")
	TypeIprp = newBoxType("iprp")
	TypeIpco = newBoxType("ipco")
	TypeIpma = newBoxType("ipma")
	TypeIspe = newBoxType("ispe")
	TypePixi = newBoxType("pixi")
	TypeIrot = newBoxType("irot")
	TypeImir = newBoxType("imir")
	TypeClap = newBoxType("clap")
	TypeAuxC = newBoxType("auxC")
	TypeColr = newBoxType("colr")
	TypeHvcC = newBoxType("hvcC")
	TypeAv1C = newBoxType("av1C")
	TypeMdat = newBoxType("mdat")
	TypeUUID = newBoxType("uuid")
)

// BoxHeader is the common part of every box.
type BoxHeader struct {
	Type BoxType
	// UserType is set for boxes of type "uuid".
	UserType uuid.UUID
	// Size is the declared size including the header. A size-0 box is
	// resolved to its actual extent when parsed.
	Size       uint64
	HeaderSize int

	// Version and Flags are only meaningful for full boxes.
	Version uint8
	Flags   uint32

	largeSize bool
}

// Header returns h. Concrete boxes embed BoxHeader to satisfy Box.
func (h *BoxHeader) Header() *BoxHeader { return h }

func (h *BoxHeader) parseFullHeader(r *Range) {
	vf := r.Read32()
	h.Version = uint8(vf >> 24)
	h.Flags = vf & 0xFFFFFF
}

func (h *BoxHeader) dumpHeader(d *dumper) {
	if h.Type == TypeUUID {
		d.line("[%s %s] size=%d", h.Type, h.UserType, h.Size)
	} else {
		d.line("[%s] size=%d", h.Type, h.Size)
	}
}

func (h *BoxHeader) dumpFullHeader(d *dumper) {
	d.line("[%s] size=%d v=%d flags=0x%x", h.Type, h.Size, h.Version, h.Flags)
}

// Box is a parsed box.
type Box interface {
	Header() *BoxHeader
	parse(r *Range, limits *SecurityLimits) error
	write(w *Writer) error
	dump(d *dumper)
}

// boxRegistry maps box types to constructors. Unlisted types become RawBox.
var boxRegistry = map[BoxType]func() Box{
	TypeFtyp: func() Box { return &FtypBox{} },
	TypeMeta: func() Box { return &MetaBox{} },
	TypeHdlr: func() Box { return &HdlrBox{} },
	TypeDinf: func() Box { return &DinfBox{} },
	TypeDref: func() Box { return &DrefBox{} },
	TypeURL:  func() Box { return &URLBox{} },
	TypeMdat: func() Box { return &MdatBox{} },
	TypePitm: func() Box { return &PitmBox{} },
	TypeIloc: func() Box { return &IlocBox{} },
	TypeIinf: func() Box { return &IinfBox{} },
	TypeInfe: func() Box { return &InfeBox{} },
	TypeIref: func() Box { return &IrefBox{} },
	TypeIdat: func() Box { return &IdatBox{} },
	TypeIprp: func() Box { return &IprpBox{} },
	TypeIpco: func() Box { return &IpcoBox{} },
	TypeIpma: func() Box { return &IpmaBox{} },
	TypeIspe: func() Box { return &IspeBox{} },
	TypePixi: func() Box { return &PixiBox{} },
	TypeIrot: func() Box { return &IrotBox{} },
	TypeImir: func() Box { return &ImirBox{} },
	TypeClap: func() Box { return &ClapBox{} },
	TypeAuxC: func() Box { return &AuxCBox{} },
	TypeColr: func() Box { return &ColrBox{} },
	TypeHvcC: func() Box { return &HvcCBox{} },
	TypeAv1C: func() Box { return &Av1CBox{} },
}

func newBox(t BoxType) Box {
	if ctor, ok := boxRegistry[t]; ok {
		return ctor()
	}
	return &RawBox{}
}

// readHeader reads a box header at the cursor of r.
func readHeader(r *Range) (BoxHeader, error) {
	start := r.Pos()
	var h BoxHeader
	h.Size = uint64(r.Read32())
	copy(h.Type[:], r.read(4))
	if h.Size == 1 {
		h.Size = r.Read64()
		h.largeSize = true
	}
	if h.Type == TypeUUID {
		copy(h.UserType[:], r.read(16))
	}
	if err := r.Err(); err != nil {
		return h, err
	}
	h.HeaderSize = int(r.Pos() - start)
	return h, nil
}

// ParseBox parses the box at the cursor of r and advances r past it.
func ParseBox(r *Range, limits *SecurityLimits) (Box, error) {
	if r.Depth() >= MaxBoxNestingLevel {
		return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.SecurityLimitExceeded,
			"heif: boxes nested deeper than %d levels", MaxBoxNestingLevel)
	}
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	hs := uint64(h.HeaderSize)
	var content int64
	switch {
	case h.Size == 0:
		if r.end == unbounded {
			return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.InvalidBoxSize, "heif: %s box of unbounded size", h.Type)
		}
		content = r.Remaining()
		h.Size = hs + uint64(content)
	case h.Size < hs:
		return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.InvalidBoxSize,
			"heif: %s box size %d is smaller than its header", h.Type, h.Size)
	case h.Size-hs > uint64(r.Remaining()):
		return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.InvalidBoxSize,
			"heif: %s box declares %d bytes, parent holds %d", h.Type, h.Size, uint64(r.Remaining())+hs)
	default:
		content = int64(h.Size - hs)
	}

	sub := r.sub(content)
	box := newBox(h.Type)
	*box.Header() = h
	if err := box.parse(sub, limits); err != nil {
		return nil, err
	}
	if err := sub.Err(); err != nil {
		return nil, err
	}
	r.skipTo(sub.end)
	return box, nil
}

// parseChildren parses boxes until r is exhausted, or count boxes when
// count >= 0.
func parseChildren(r *Range, limits *SecurityLimits, count int) ([]Box, error) {
	var children []Box
	for (count < 0 && !r.EOF()) || len(children) < count {
		if n := limits.maxChildren(); n > 0 && len(children) >= n {
			return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.SecurityLimitExceeded,
				"heif: more than %d child boxes", n)
		}
		child, err := ParseBox(r, limits)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func writeChildren(w *Writer, children []Box) error {
	for _, c := range children {
		if err := c.write(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteBox serializes b into w.
func WriteBox(w *Writer, b Box) error {
	return b.write(w)
}

// Marshal returns the serialized form of b.
func Marshal(b Box) ([]byte, error) {
	w := NewWriter(nil)
	if err := b.write(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Equal reports whether a and b are boxes of the same concrete type with
// identical serialization. A nil box is equal to nothing, including nil.
func Equal(a, b Box) bool {
	if isNil(a) || isNil(b) {
		return false
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if a.Header().Type != b.Header().Type {
		return false
	}
	ab, err := Marshal(a)
	if err != nil {
		return false
	}
	bb, err := Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func isNil(b Box) bool {
	if b == nil {
		return true
	}
	v := reflect.ValueOf(b)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// container holds the child boxes of a box.
type container struct {
	Children []Box
}

// Child returns the first child box of the given type, or nil.
func (c *container) Child(t BoxType) Box {
	for _, b := range c.Children {
		if b.Header().Type == t {
			return b
		}
	}
	return nil
}

// ChildList returns all child boxes of the given type.
func (c *container) ChildList(t BoxType) []Box {
	var out []Box
	for _, b := range c.Children {
		if b.Header().Type == t {
			out = append(out, b)
		}
	}
	return out
}

// AddChild appends b.
func (c *container) AddChild(b Box) {
	c.Children = append(c.Children, b)
}

func (c *container) dumpChildren(d *dumper) {
	d.indent++
	for _, b := range c.Children {
		b.dump(d)
	}
	d.indent--
}

// Boxes returns the child boxes.
func (c *container) Boxes() []Box { return c.Children }

// Children returns the child boxes of b, or nil if b holds none.
func Children(b Box) []Box {
	if c, ok := b.(interface{ Boxes() []Box }); ok {
		return c.Boxes()
	}
	return nil
}

var fullBoxTypes = map[BoxType]bool{
	TypeMeta: true, TypeHdlr: true, TypeDref: true, TypeURL: true,
	TypePitm: true, TypeIloc: true, TypeIinf: true, TypeInfe: true,
	TypeIref: true, TypeIpma: true, TypeIspe: true, TypePixi: true,
	TypeAuxC: true,
}

// IsFullBox reports whether boxes of type t carry a version and flags.
func IsFullBox(t BoxType) bool { return fullBoxTypes[t] }

// childOf returns the first child of concrete type T.
func childOf[T Box](children []Box) T {
	for _, b := range children {
		if t, ok := b.(T); ok {
			return t
		}
	}
	var zero T
	return zero
}

// RawBox holds a box of a type this package does not interpret.
type RawBox struct {
	BoxHeader
	Data []byte
}

func (b *RawBox) parse(r *Range, _ *SecurityLimits) error {
	b.Data = r.ReadRest()
	return r.Err()
}

func (b *RawBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	w.WriteBytes(b.Data)
	w.EndBox()
	return nil
}

func (b *RawBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.field("data", "%d bytes", len(b.Data))
}

// dumper renders box trees as indented text.
type dumper struct {
	w      io.Writer
	indent int
	err    error
}

func (d *dumper) line(format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", d.indent), fmt.Sprintf(format, args...))
}

func (d *dumper) field(name, format string, args ...any) {
	d.line("  "+name+": "+format, args...)
}

// Dump writes a human-readable description of b and its children to w.
func Dump(w io.Writer, b Box) error {
	d := &dumper{w: w}
	b.dump(d)
	return d.err
}
