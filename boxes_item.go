package heif

import (
	"github.com/tetsuo/heif/heiferr"
)

// Item types.
var (
	ItemTypeHvc1 = newBoxType("hvc1")
	ItemTypeAv01 = newBoxType("av01")
	ItemTypeJpeg = newBoxType("jpeg")
	ItemTypeGrid = newBoxType("grid")
	ItemTypeIovl = newBoxType("iovl")
	ItemTypeIden = newBoxType("iden")
	ItemTypeExif = newBoxType("Exif")
	ItemTypeMime = newBoxType("mime")
	ItemTypeURI  = newBoxType("uri ")
)

// Item reference types.
var (
	RefThumbnail   = newBoxType("thmb")
	RefAuxiliary   = newBoxType("auxl")
	RefDescription = newBoxType("cdsc")
	RefDerived     = newBoxType("dimg")
	RefBase        = newBoxType("base")
)

// --- pitm ---

// PitmBox names the primary item.
type PitmBox struct {
	BoxHeader
	ItemID uint32
}

func (b *PitmBox) parse(r *Range, _ *SecurityLimits) error {
	b.parseFullHeader(r)
	if b.Version == 0 {
		b.ItemID = uint32(r.Read16())
	} else {
		b.ItemID = r.Read32()
	}
	return r.Err()
}

func (b *PitmBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	if b.Version == 0 {
		w.Write16(uint16(b.ItemID))
	} else {
		w.Write32(b.ItemID)
	}
	w.EndBox()
	return nil
}

func (b *PitmBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	d.field("item_ID", "%d", b.ItemID)
}

// --- iloc ---

// Construction methods of iloc items.
const (
	ConstructionFileOffset = 0
	ConstructionIdatOffset = 1
	ConstructionItemOffset = 2
)

// IlocExtent is one contiguous piece of an item.
type IlocExtent struct {
	Index  uint64
	Offset uint64
	Length uint64
}

// IlocItem locates the data of one item.
type IlocItem struct {
	ID                 uint32
	ConstructionMethod uint8
	DataReferenceIndex uint16
	BaseOffset         uint64
	Extents            []IlocExtent

	// pending is written into mdat by File.Write, which then patches the
	// offset of the single extent.
	pending   []byte
	offsetPos int
}

// IlocBox is the item location box.
type IlocBox struct {
	BoxHeader
	OffsetSize     int
	LengthSize     int
	BaseOffsetSize int
	IndexSize      int
	Items          []*IlocItem
}

func validFieldSize(n int) bool { return n == 0 || n == 4 || n == 8 }

// Item returns the location of item id, or nil.
func (b *IlocBox) Item(id uint32) *IlocItem {
	for _, it := range b.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func (b *IlocBox) parse(r *Range, limits *SecurityLimits) error {
	b.parseFullHeader(r)
	if b.Version > 2 {
		return heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedDataVersion, "heif: iloc version %d", b.Version)
	}
	v := r.Read8()
	b.OffsetSize, b.LengthSize = int(v>>4), int(v&15)
	v = r.Read8()
	b.BaseOffsetSize, b.IndexSize = int(v>>4), int(v&15)
	if !validFieldSize(b.OffsetSize) || !validFieldSize(b.LengthSize) || !validFieldSize(b.BaseOffsetSize) {
		return heiferr.Newf(heiferr.InvalidInput, heiferr.Unspecified,
			"heif: iloc field sizes %d/%d/%d", b.OffsetSize, b.LengthSize, b.BaseOffsetSize)
	}
	if b.Version > 0 && !validFieldSize(b.IndexSize) {
		return heiferr.Newf(heiferr.InvalidInput, heiferr.Unspecified, "heif: iloc index size %d", b.IndexSize)
	}

	var count uint32
	if b.Version < 2 {
		count = uint32(r.Read16())
	} else {
		count = r.Read32()
	}
	if err := r.Err(); err != nil {
		return err
	}
	if n := limits.maxIlocItems(); n > 0 && int64(count) > int64(n) {
		return limitError("iloc items", int(count), n)
	}

	b.Items = make([]*IlocItem, 0, count)
	for range count {
		it := &IlocItem{}
		if b.Version < 2 {
			it.ID = uint32(r.Read16())
		} else {
			it.ID = r.Read32()
		}
		if b.Version > 0 {
			it.ConstructionMethod = uint8(r.Read16() & 15)
		}
		it.DataReferenceIndex = r.Read16()
		it.BaseOffset = r.ReadUint(b.BaseOffsetSize)
		extents := int(r.Read16())
		if err := r.Err(); err != nil {
			return err
		}
		if n := limits.maxIlocExtents(); n > 0 && extents > n {
			return limitError("iloc extents per item", extents, n)
		}
		it.Extents = make([]IlocExtent, extents)
		for i := range it.Extents {
			e := &it.Extents[i]
			if b.Version > 0 && b.IndexSize > 0 {
				e.Index = r.ReadUint(b.IndexSize)
			}
			e.Offset = r.ReadUint(b.OffsetSize)
			e.Length = r.ReadUint(b.LengthSize)
		}
		b.Items = append(b.Items, it)
	}
	return r.Err()
}

func (b *IlocBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	w.Write8(uint8(b.OffsetSize<<4 | b.LengthSize))
	w.Write8(uint8(b.BaseOffsetSize<<4 | b.IndexSize))
	if b.Version < 2 {
		w.Write16(uint16(len(b.Items)))
	} else {
		w.Write32(uint32(len(b.Items)))
	}
	for _, it := range b.Items {
		if b.Version < 2 {
			w.Write16(uint16(it.ID))
		} else {
			w.Write32(it.ID)
		}
		if b.Version > 0 {
			w.Write16(uint16(it.ConstructionMethod & 15))
		}
		w.Write16(it.DataReferenceIndex)
		w.WriteUint(b.BaseOffsetSize, it.BaseOffset)
		w.Write16(uint16(len(it.Extents)))
		for i, e := range it.Extents {
			if b.Version > 0 && b.IndexSize > 0 {
				w.WriteUint(b.IndexSize, e.Index)
			}
			if i == 0 {
				it.offsetPos = w.Pos()
			}
			w.WriteUint(b.OffsetSize, e.Offset)
			w.WriteUint(b.LengthSize, e.Length)
		}
	}
	w.EndBox()
	return nil
}

// writePending appends the pending item payloads at the cursor of w and
// patches their offsets into the iloc written earlier to w.
func (b *IlocBox) writePending(w *Writer) {
	for _, it := range b.Items {
		if it.pending == nil {
			continue
		}
		off := uint64(w.Pos()) - it.BaseOffset
		w.WriteBytes(it.pending)
		it.Extents[0].Offset = off
		w.PatchUint(it.offsetPos, b.OffsetSize, off)
	}
}

func (b *IlocBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	for _, it := range b.Items {
		d.field("item", "ID=%d method=%d base=%d", it.ID, it.ConstructionMethod, it.BaseOffset)
		for _, e := range it.Extents {
			d.field("  extent", "offset=%d length=%d index=%d", e.Offset, e.Length, e.Index)
		}
	}
}

// --- iinf ---

// IinfBox lists the item infos.
type IinfBox struct {
	BoxHeader
	container
}

func (b *IinfBox) parse(r *Range, limits *SecurityLimits) error {
	b.parseFullHeader(r)
	var count uint32
	if b.Version == 0 {
		count = uint32(r.Read16())
	} else {
		count = r.Read32()
	}
	if err := r.Err(); err != nil {
		return err
	}
	if n := limits.maxChildren(); n > 0 && int64(count) > int64(n) {
		return limitError("iinf entries", int(count), n)
	}
	children, err := parseChildren(r, limits, int(count))
	b.Children = children
	return err
}

func (b *IinfBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	if b.Version == 0 {
		w.Write16(uint16(len(b.Children)))
	} else {
		w.Write32(uint32(len(b.Children)))
	}
	if err := writeChildren(w, b.Children); err != nil {
		return err
	}
	w.EndBox()
	return nil
}

func (b *IinfBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	b.dumpChildren(d)
}

// Entries returns the item info entries.
func (b *IinfBox) Entries() []*InfeBox {
	var out []*InfeBox
	for _, c := range b.Children {
		if e, ok := c.(*InfeBox); ok {
			out = append(out, e)
		}
	}
	return out
}

// --- infe ---

// InfeBox describes one item.
type InfeBox struct {
	BoxHeader
	ItemID          uint32
	ProtectionIndex uint16
	ItemType        BoxType
	Name            string
	ContentType     string
	ContentEncoding string
	URIType         string
	// Extension is the raw item info extension of version 1 entries.
	Extension []byte

	hasEncoding bool
}

// Hidden reports whether the item is marked as not for display.
func (b *InfeBox) Hidden() bool { return b.Flags&1 != 0 }

// SetHidden sets the hidden flag.
func (b *InfeBox) SetHidden(hidden bool) {
	if hidden {
		b.Flags |= 1
	} else {
		b.Flags &^= 1
	}
}

func (b *InfeBox) parse(r *Range, _ *SecurityLimits) error {
	b.parseFullHeader(r)
	if b.Version <= 1 {
		b.ItemID = uint32(r.Read16())
		b.ProtectionIndex = r.Read16()
		b.Name = r.ReadString()
		b.ContentType = r.ReadString()
		if !r.EOF() {
			b.ContentEncoding = r.ReadString()
			b.hasEncoding = true
		}
		if b.Version == 1 && !r.EOF() {
			b.Extension = r.ReadRest()
		}
		return r.Err()
	}

	if b.Version == 2 {
		b.ItemID = uint32(r.Read16())
	} else {
		b.ItemID = r.Read32()
	}
	b.ProtectionIndex = r.Read16()
	copy(b.ItemType[:], r.read(4))
	b.Name = r.ReadString()
	switch b.ItemType {
	case ItemTypeMime:
		b.ContentType = r.ReadString()
		if !r.EOF() {
			b.ContentEncoding = r.ReadString()
			b.hasEncoding = true
		}
	case ItemTypeURI:
		b.URIType = r.ReadString()
	}
	return r.Err()
}

func (b *InfeBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	if b.Version <= 1 {
		w.Write16(uint16(b.ItemID))
		w.Write16(b.ProtectionIndex)
		w.WriteString(b.Name)
		w.WriteString(b.ContentType)
		if b.hasEncoding || b.ContentEncoding != "" || b.Extension != nil {
			w.WriteString(b.ContentEncoding)
		}
		w.WriteBytes(b.Extension)
		w.EndBox()
		return nil
	}

	if b.Version == 2 {
		w.Write16(uint16(b.ItemID))
	} else {
		w.Write32(b.ItemID)
	}
	w.Write16(b.ProtectionIndex)
	w.WriteType(b.ItemType)
	w.WriteString(b.Name)
	switch b.ItemType {
	case ItemTypeMime:
		w.WriteString(b.ContentType)
		if b.hasEncoding || b.ContentEncoding != "" {
			w.WriteString(b.ContentEncoding)
		}
	case ItemTypeURI:
		w.WriteString(b.URIType)
	}
	w.EndBox()
	return nil
}

func (b *InfeBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	d.field("item_ID", "%d", b.ItemID)
	d.field("item_type", "%s", b.ItemType)
	d.field("item_name", "%q", b.Name)
	if b.ContentType != "" {
		d.field("content_type", "%q", b.ContentType)
	}
	d.field("hidden", "%t", b.Hidden())
}

// --- iref ---

// ItemReference links one item to others with a typed reference.
type ItemReference struct {
	Type   BoxType
	FromID uint32
	ToIDs  []uint32
}

// IrefBox holds the item references.
type IrefBox struct {
	BoxHeader
	References []*ItemReference
}

func (b *IrefBox) idSize() int {
	if b.Version == 0 {
		return 2
	}
	return 4
}

func (b *IrefBox) parse(r *Range, limits *SecurityLimits) error {
	b.parseFullHeader(r)
	for !r.EOF() {
		if n := limits.maxChildren(); n > 0 && len(b.References) >= n {
			return limitError("item references", len(b.References)+1, n)
		}
		h, err := readHeader(r)
		if err != nil {
			return err
		}
		if h.Size < uint64(h.HeaderSize) || h.Size-uint64(h.HeaderSize) > uint64(r.Remaining()) {
			return heiferr.Newf(heiferr.InvalidInput, heiferr.InvalidBoxSize, "heif: %s reference of size %d", h.Type, h.Size)
		}
		sub := r.sub(int64(h.Size) - int64(h.HeaderSize))
		ref := &ItemReference{Type: h.Type, FromID: uint32(sub.ReadUint(b.idSize()))}
		n := int(sub.Read16())
		ref.ToIDs = make([]uint32, 0, n)
		for range n {
			ref.ToIDs = append(ref.ToIDs, uint32(sub.ReadUint(b.idSize())))
		}
		if err := sub.Err(); err != nil {
			return err
		}
		r.skipTo(sub.end)
		b.References = append(b.References, ref)
	}
	return r.Err()
}

func (b *IrefBox) write(w *Writer) error {
	w.startFullBox(&b.BoxHeader)
	for _, ref := range b.References {
		w.StartBox(ref.Type)
		w.WriteUint(b.idSize(), uint64(ref.FromID))
		w.Write16(uint16(len(ref.ToIDs)))
		for _, id := range ref.ToIDs {
			w.WriteUint(b.idSize(), uint64(id))
		}
		w.EndBox()
	}
	w.EndBox()
	return nil
}

func (b *IrefBox) dump(d *dumper) {
	b.dumpFullHeader(d)
	for _, ref := range b.References {
		d.field("reference", "%s from=%d to=%v", ref.Type, ref.FromID, ref.ToIDs)
	}
}

// From returns the items referenced by id with reference type t.
func (b *IrefBox) From(id uint32, t BoxType) []uint32 {
	var out []uint32
	for _, ref := range b.References {
		if ref.FromID == id && ref.Type == t {
			out = append(out, ref.ToIDs...)
		}
	}
	return out
}

// HasReferences reports whether id references any item.
func (b *IrefBox) HasReferences(id uint32) bool {
	for _, ref := range b.References {
		if ref.FromID == id {
			return true
		}
	}
	return false
}

// Add records a reference from one item to others.
func (b *IrefBox) Add(t BoxType, from uint32, to ...uint32) {
	b.References = append(b.References, &ItemReference{Type: t, FromID: from, ToIDs: to})
}

// --- idat ---

// IdatBox holds item data stored inside meta.
type IdatBox struct {
	BoxHeader
	Data []byte
}

func (b *IdatBox) parse(r *Range, _ *SecurityLimits) error {
	b.Data = r.ReadRest()
	return r.Err()
}

func (b *IdatBox) write(w *Writer) error {
	w.startBox(&b.BoxHeader)
	w.WriteBytes(b.Data)
	w.EndBox()
	return nil
}

func (b *IdatBox) dump(d *dumper) {
	b.dumpHeader(d)
	d.field("data", "%d bytes", len(b.Data))
}
