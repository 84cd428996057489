package heif

import "slices"

// --- ftyp ---

// FtypBox is the file type box.
type FtypBox struct {
	BoxHeader
	MajorBrand       BoxType
	MinorVersion     uint32
	CompatibleBrands []BoxType
}

// Brands used by HEIF and AVIF files.
var (
	BrandHeic = newBoxType("heic")
	BrandHeix = newBoxType("heix")
	BrandMif1 = newBoxType("mif1")
	BrandAvif = newBoxType("avif")
	BrandJpeg = newBoxType("jpeg")
)

// HasBrand reports whether b is the major brand or a compatible brand.
func (b *FtypBox) HasBrand(brand BoxType) bool {
	return b.MajorBrand == brand || slices.Contains(b.CompatibleBrands, brand)
}

func (b *FtypBox) parse(r *Range, _ *SecurityLimits) error {
	copy(b.MajorBrand[:], r.read(4))
	b.MinorVersion = r.Read32()
	for r.Remaining() >= 4 {
		var brand BoxType
		copy(brand[:], r.read(4))
		b.CompatibleBrands = append(b.CompatibleBrands, brand)
	}
	return r.Err()
}

func (b *FtypBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	w.WriteType(b.MajorBrand)
	w.Write32(b.MinorVersion)
	for _, brand := range b.CompatibleBrands {
		w.WriteType(brand)
	}
	w.EndBox()
	return nil
}

func (b *FtypBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.field("major brand", "%s", b.MajorBrand)
	d.field("minor version", "%d", b.MinorVersion)
	d.field("compatible brands", "%v", b.CompatibleBrands)
}

// --- meta ---

// MetaBox holds the item structure of the file.
type MetaBox struct {
	BoxHeader
	container
}

func (b *MetaBox) parse(r *Range, limits *SecurityLimits) error {
	b.parseFullHeader(r)
	if err := r.Err(); err != nil {
		return err
	}
	children, err := parseChildren(r, limits, -1)
	b.Children = children
	return err
}

func (b *MetaBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	if err := writeChildren(w, b.Children); err != nil {
		return err
	}
	w.EndBox()
	return nil
}

func (b *MetaBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	b.dumpChildren(d)
}

// --- hdlr ---

// HandlerPict is the handler of image collections.
var HandlerPict = newBoxType("pict")

// HdlrBox declares the handler of its meta box.
type HdlrBox struct {
	BoxHeader
	PreDefined  uint32
	HandlerType BoxType
	Reserved    [3]uint32
	Name        string
}

func (b *HdlrBox) parse(r *Range, _ *SecurityLimits) error {
	b.parseFullHeader(r)
	b.PreDefined = r.Read32()
	copy(b.HandlerType[:], r.read(4))
	for i := range b.Reserved {
		b.Reserved[i] = r.Read32()
	}
	b.Name = r.ReadString()
	return r.Err()
}

func (b *HdlrBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	w.Write32(b.PreDefined)
	w.WriteType(b.HandlerType)
	for _, v := range b.Reserved {
		w.Write32(v)
	}
	w.WriteString(b.Name)
	w.EndBox()
	return nil
}

func (b *HdlrBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	d.field("handler type", "%s", b.HandlerType)
	d.field("name", "%q", b.Name)
}

// --- dinf ---

type DinfBox struct {
	BoxHeader
	container
}

func (b *DinfBox) parse(r *Range, limits *SecurityLimits) error {
	children, err := parseChildren(r, limits, -1)
	b.Children = children
	return err
}

func (b *DinfBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	if err := writeChildren(w, b.Children); err != nil {
		return err
	}
	w.EndBox()
	return nil
}

func (b *DinfBox) dump(d *dumper) {
	b.dumpHeader(d)
	b.dumpChildren(d)
}

// --- dref ---

type DrefBox struct {
	BoxHeader
	container
}

func (b *DrefBox) parse(r *Range, limits *SecurityLimits) error {
	b.parseFullHeader(r)
	n := r.Read32()
	if err := r.Err(); err != nil {
		return err
	}
	if m := limits.maxChildren(); m > 0 && int64(n) > int64(m) {
		return limitError("dref entries", int(n), m)
	}
	children, err := parseChildren(r, limits, int(n))
	b.Children = children
	return err
}

func (b *DrefBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	w.Write32(uint32(len(b.Children)))
	if err := writeChildren(w, b.Children); err != nil {
		return err
	}
	w.EndBox()
	return nil
}

func (b *DrefBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	b.dumpChildren(d)
}

// --- url ---

// URLBox is a data reference. Flag 1 marks data in the same file.
type URLBox struct {
	BoxHeader
	Location string

	hasLocation bool
}

func (b *URLBox) parse(r *Range, _ *SecurityLimits) error {
	b.parseFullHeader(r)
	if !r.EOF() {
		b.Location = r.ReadString()
		b.hasLocation = true
	}
	return r.Err()
}

func (b *URLBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	if b.hasLocation || b.Location != "" || b.Flags&1 == 0 {
		w.WriteString(b.Location)
	}
	w.EndBox()
	return nil
}

func (b *URLBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	d.field("location", "%q", b.Location)
}

// --- mdat ---

// MdatBox carries item payloads.
type MdatBox struct {
	BoxHeader
	Data []byte
}

func (b *MdatBox) parse(r *Range, _ *SecurityLimits) error {
	b.Data = r.ReadRest()
	return r.Err()
}

func (b *MdatBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	w.WriteBytes(b.Data)
	w.EndBox()
	return nil
}

func (b *MdatBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.field("data", "%d bytes", len(b.Data))
}
