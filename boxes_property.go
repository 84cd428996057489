package heif

import (
	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
)

// --- iprp ---

// IprpBox groups the property container and its associations.
type IprpBox struct {
	BoxHeader
	container
}

func (b *IprpBox) parse(r *Range, limits *SecurityLimits) error {
	children, err := parseChildren(r, limits, -1)
	b.Children = children
	return err
}

func (b *IprpBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	if err := writeChildren(w, b.Children); err != nil {
		return err
	}
	w.EndBox()
	return nil
}

func (b *IprpBox) dump(d *dumper) {
	b.dumpHeader(d)
	b.dumpChildren(d)
}

// Ipco returns the property container, or nil.
func (b *IprpBox) Ipco() *IpcoBox { return childOf[*IpcoBox](b.Children) }

// Ipmas returns all property association boxes.
func (b *IprpBox) Ipmas() []*IpmaBox {
	var out []*IpmaBox
	for _, c := range b.Children {
		if m, ok := c.(*IpmaBox); ok {
			out = append(out, m)
		}
	}
	return out
}

// --- ipco ---

// IpcoBox holds the properties, referenced by 1-based index.
type IpcoBox struct {
	BoxHeader
	container
}

func (b *IpcoBox) parse(r *Range, limits *SecurityLimits) error {
	children, err := parseChildren(r, limits, -1)
	b.Children = children
	return err
}

func (b *IpcoBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	if err := writeChildren(w, b.Children); err != nil {
		return err
	}
	w.EndBox()
	return nil
}

func (b *IpcoBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.indent++
	for i, c := range b.Children {
		d.line("index: %d", i+1)
		c.dump(d)
	}
	d.indent--
}

// FindOrAppend returns the 0-based index of a child equal to box, appending
// box first if there is none.
func (b *IpcoBox) FindOrAppend(box Box) int {
	for i, c := range b.Children {
		if Equal(c, box) {
			return i
		}
	}
	b.Children = append(b.Children, box)
	return len(b.Children) - 1
}

// --- ipma ---

// PropertyAssociation points at a property by 1-based index; 0 means none.
type PropertyAssociation struct {
	Essential bool
	Index     uint16
}

// IpmaEntry lists the properties of one item.
type IpmaEntry struct {
	ItemID       uint32
	Associations []PropertyAssociation
}

// IpmaBox associates items with properties.
type IpmaBox struct {
	BoxHeader
	Entries []*IpmaEntry
}

func (b *IpmaBox) parse(r *Range, limits *SecurityLimits) error {
	b.parseFullHeader(r)
	count := r.Read32()
	if err := r.Err(); err != nil {
		return err
	}
	if n := limits.maxIlocItems(); n > 0 && int64(count) > int64(n) {
		return limitError("ipma entries", int(count), n)
	}
	b.Entries = make([]*IpmaEntry, 0, min(count, 1024))
	for range count {
		e := &IpmaEntry{}
		if b.Version < 1 {
			e.ItemID = uint32(r.Read16())
		} else {
			e.ItemID = r.Read32()
		}
		n := int(r.Read8())
		for range n {
			var a PropertyAssociation
			if b.Flags&1 != 0 {
				v := r.Read16()
				a.Essential, a.Index = v&0x8000 != 0, v&0x7FFF
			} else {
				v := r.Read8()
				a.Essential, a.Index = v&0x80 != 0, uint16(v&0x7F)
			}
			e.Associations = append(e.Associations, a)
		}
		if err := r.Err(); err != nil {
			return err
		}
		b.Entries = append(b.Entries, e)
	}
	return r.Err()
}

func (b *IpmaBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	w.Write32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		if b.Version < 1 {
			w.Write16(uint16(e.ItemID))
		} else {
			w.Write32(e.ItemID)
		}
		w.Write8(uint8(len(e.Associations)))
		for _, a := range e.Associations {
			if b.Flags&1 != 0 {
				v := a.Index & 0x7FFF
				if a.Essential {
					v |= 0x8000
				}
				w.Write16(v)
			} else {
				v := uint8(a.Index & 0x7F)
				if a.Essential {
					v |= 0x80
				}
				w.Write8(v)
			}
		}
	}
	w.EndBox()
	return nil
}

func (b *IpmaBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	for _, e := range b.Entries {
		d.field("item", "ID=%d properties=%v", e.ItemID, e.Associations)
	}
}

// Entry returns the associations of item id, or nil.
func (b *IpmaBox) Entry(id uint32) *IpmaEntry {
	for _, e := range b.Entries {
		if e.ItemID == id {
			return e
		}
	}
	return nil
}

// Add associates item id with the property at 1-based index, widening the
// box encoding when needed.
func (b *IpmaBox) Add(id uint32, a PropertyAssociation) {
	if a.Index > 0x7F {
		b.Flags |= 1
	}
	if id > 0xFFFF {
		b.Version = 1
	}
	e := b.Entry(id)
	if e == nil {
		e = &IpmaEntry{ItemID: id}
		b.Entries = append(b.Entries, e)
	}
	e.Associations = append(e.Associations, a)
}

// --- ispe ---

// IspeBox holds the image size.
type IspeBox struct {
	BoxHeader
	Width  uint32
	Height uint32
}

func (b *IspeBox) parse(r *Range, _ *SecurityLimits) error {
	b.parseFullHeader(r)
	b.Width = r.Read32()
	b.Height = r.Read32()
	return r.Err()
}

func (b *IspeBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	w.Write32(b.Width)
	w.Write32(b.Height)
	w.EndBox()
	return nil
}

func (b *IspeBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	d.field("image width", "%d", b.Width)
	d.field("image height", "%d", b.Height)
}

// --- pixi ---

// PixiBox holds the bit depth of each channel.
type PixiBox struct {
	BoxHeader
	BitsPerChannel []uint8
}

func (b *PixiBox) parse(r *Range, _ *SecurityLimits) error {
	b.parseFullHeader(r)
	n := int(r.Read8())
	for range n {
		b.BitsPerChannel = append(b.BitsPerChannel, r.Read8())
	}
	if err := r.Err(); err != nil {
		return heiferr.Wrap(heiferr.InvalidInput, heiferr.InvalidPixiBox, err, "heif: pixi")
	}
	return nil
}

func (b *PixiBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	w.Write8(uint8(len(b.BitsPerChannel)))
	w.WriteBytes(b.BitsPerChannel)
	w.EndBox()
	return nil
}

func (b *PixiBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	d.field("bits_per_channel", "%v", b.BitsPerChannel)
}

// --- irot ---

// IrotBox rotates the image counter-clockwise.
type IrotBox struct {
	BoxHeader
	// Rotation is 0, 90, 180 or 270 degrees.
	Rotation int
}

func (b *IrotBox) parse(r *Range, _ *SecurityLimits) error {
	b.Rotation = int(r.Read8()&3) * 90
	return r.Err()
}

func (b *IrotBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	w.Write8(uint8(b.Rotation/90) & 3)
	w.EndBox()
	return nil
}

func (b *IrotBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.field("rotation", "%d degrees (CCW)", b.Rotation)
}

// --- imir ---

// ImirBox mirrors the image. Axis 0 flips rows, axis 1 flips columns.
type ImirBox struct {
	BoxHeader
	Axis uint8
}

// Direction returns the mirror operation for the box.
func (b *ImirBox) Direction() pixels.MirrorDirection {
	if b.Axis == 0 {
		return pixels.MirrorVertical
	}
	return pixels.MirrorHorizontal
}

func (b *ImirBox) parse(r *Range, _ *SecurityLimits) error {
	b.Axis = r.Read8() & 1
	return r.Err()
}

func (b *ImirBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	w.Write8(b.Axis & 1)
	w.EndBox()
	return nil
}

func (b *ImirBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.field("axis", "%d", b.Axis)
}

// --- clap ---

// ClapBox is the clean aperture, given as fractions.
type ClapBox struct {
	BoxHeader
	WidthN, WidthD   uint32
	HeightN, HeightD uint32
	HorizOffN        int32
	HorizOffD        uint32
	VertOffN         int32
	VertOffD         uint32
}

func (b *ClapBox) parse(r *Range, _ *SecurityLimits) error {
	b.WidthN, b.WidthD = r.Read32(), r.Read32()
	b.HeightN, b.HeightD = r.Read32(), r.Read32()
	b.HorizOffN, b.HorizOffD = int32(r.Read32()), r.Read32()
	b.VertOffN, b.VertOffD = int32(r.Read32()), r.Read32()
	if err := r.Err(); err != nil {
		return err
	}
	if b.WidthD == 0 || b.HeightD == 0 || b.HorizOffD == 0 || b.VertOffD == 0 {
		return heiferr.New(heiferr.InvalidInput, heiferr.Unspecified, "heif: clap with zero denominator")
	}
	return nil
}

func (b *ClapBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	w.Write32(b.WidthN)
	w.Write32(b.WidthD)
	w.Write32(b.HeightN)
	w.Write32(b.HeightD)
	w.Write32(uint32(b.HorizOffN))
	w.Write32(b.HorizOffD)
	w.Write32(uint32(b.VertOffN))
	w.Write32(b.VertOffD)
	w.EndBox()
	return nil
}

func (b *ClapBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.field("clean_aperture", "%d/%d x %d/%d", b.WidthN, b.WidthD, b.HeightN, b.HeightD)
	d.field("offset", "%d/%d, %d/%d", b.HorizOffN, b.HorizOffD, b.VertOffN, b.VertOffD)
}

// --- auxC ---

// Auxiliary image type URNs.
const (
	AuxTypeAlphaHEVC = "urn:mpeg:hevc:2015:auxid:1"
	AuxTypeAlphaMPEG = "urn:mpeg:mpegB:cicp:systems:auxiliary:alpha"
	AuxTypeDepthHEVC = "urn:mpeg:hevc:2015:auxid:2"
)

// AuxCBox names the type of an auxiliary image.
type AuxCBox struct {
	BoxHeader
	AuxType string
	Subtype []byte
}

// IsAlpha reports whether the auxiliary image is an alpha plane.
func (b *AuxCBox) IsAlpha() bool {
	return b.AuxType == AuxTypeAlphaHEVC || b.AuxType == AuxTypeAlphaMPEG
}

func (b *AuxCBox) parse(r *Range, _ *SecurityLimits) error {
	b.parseFullHeader(r)
	b.AuxType = r.ReadString()
	if !r.EOF() {
		b.Subtype = r.ReadRest()
	}
	return r.Err()
}

func (b *AuxCBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	w.WriteString(b.AuxType)
	w.WriteBytes(b.Subtype)
	w.EndBox()
	return nil
}

func (b *AuxCBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	d.field("aux type", "%s", b.AuxType)
}

// --- colr ---

// Colour types of colr boxes.
var (
	ColourNCLX = newBoxType("nclx")
	ColourProf = newBoxType("prof")
	ColourRICC = newBoxType("rICC")
)

// ColrBox carries a color profile: NCLX code points, an ICC profile, or an
// opaque payload of another colour type.
type ColrBox struct {
	BoxHeader
	ColourType BoxType
	NCLX       *pixels.NCLX
	// Profile is the ICC profile or the raw payload.
	Profile []byte
}

func (b *ColrBox) parse(r *Range, _ *SecurityLimits) error {
	copy(b.ColourType[:], r.read(4))
	if b.ColourType == ColourNCLX {
		n := &pixels.NCLX{}
		n.ColourPrimaries = r.Read16()
		n.TransferCharacteristics = r.Read16()
		n.MatrixCoefficients = r.Read16()
		n.FullRange = r.Read8()&0x80 != 0
		b.NCLX = n
	} else {
		b.Profile = r.ReadRest()
	}
	return r.Err()
}

func (b *ColrBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	w.WriteType(b.ColourType)
	if b.ColourType == ColourNCLX {
		n := b.NCLX
		if n == nil {
			n = pixels.DefaultNCLX()
		}
		w.Write16(n.ColourPrimaries)
		w.Write16(n.TransferCharacteristics)
		w.Write16(n.MatrixCoefficients)
		var full uint8
		if n.FullRange {
			full = 0x80
		}
		w.Write8(full)
	} else {
		w.WriteBytes(b.Profile)
	}
	w.EndBox()
	return nil
}

func (b *ColrBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.field("colour_type", "%s", b.ColourType)
	if b.NCLX != nil {
		d.field("colour_primaries", "%d", b.NCLX.ColourPrimaries)
		d.field("transfer_characteristics", "%d", b.NCLX.TransferCharacteristics)
		d.field("matrix_coefficients", "%d", b.NCLX.MatrixCoefficients)
		d.field("full_range_flag", "%t", b.NCLX.FullRange)
	} else {
		d.field("profile", "%d bytes", len(b.Profile))
	}
}
