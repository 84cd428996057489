package heif

import (
	"io"
	"math"
	"slices"

	"github.com/tetsuo/heif/heiferr"
)

// File is the item structure of a HEIF file: item infos, locations,
// properties and references, backed by the file's byte source.
type File struct {
	src    *source
	limits *SecurityLimits

	ftyp  *FtypBox
	meta  *MetaBox
	hdlr  *HdlrBox
	pitm  *PitmBox
	iloc  *IlocBox
	iinf  *IinfBox
	iprp  *IprpBox
	ipco  *IpcoBox
	ipmas []*IpmaBox
	iref  *IrefBox
	idat  *IdatBox

	infes map[uint32]*InfeBox
}

// supportedBrands are the ftyp brands of image files this package reads.
var supportedBrands = []BoxType{BrandHeic, BrandHeix, BrandMif1, BrandAvif}

func openFile(l *FileLayout, limits *SecurityLimits) (*File, error) {
	f := &File{src: l.src, limits: limits, ftyp: l.Ftyp, meta: l.Meta}

	supported := false
	for _, b := range supportedBrands {
		supported = supported || f.ftyp.HasBrand(b)
	}
	if !supported {
		return nil, heiferr.Newf(heiferr.UnsupportedFiletype, heiferr.Unspecified,
			"heif: brand %s is not an image file brand", f.ftyp.MajorBrand)
	}

	f.hdlr = childOf[*HdlrBox](f.meta.Children)
	if f.hdlr == nil {
		return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoHdlrBox, "heif: meta has no hdlr box")
	}
	if f.hdlr.HandlerType != HandlerPict {
		return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.NoPictHandler, "heif: handler is %q, not pict", f.hdlr.HandlerType)
	}
	if f.pitm = childOf[*PitmBox](f.meta.Children); f.pitm == nil {
		return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoPitmBox, "heif: meta has no pitm box")
	}
	if f.iloc = childOf[*IlocBox](f.meta.Children); f.iloc == nil {
		return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoIlocBox, "heif: meta has no iloc box")
	}
	if f.iinf = childOf[*IinfBox](f.meta.Children); f.iinf == nil {
		return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoIinfBox, "heif: meta has no iinf box")
	}
	if f.iprp = childOf[*IprpBox](f.meta.Children); f.iprp == nil {
		return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoIprpBox, "heif: meta has no iprp box")
	}
	if f.ipco = f.iprp.Ipco(); f.ipco == nil {
		return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoIpcoBox, "heif: iprp has no ipco box")
	}
	if f.ipmas = f.iprp.Ipmas(); len(f.ipmas) == 0 {
		return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoIpmaBox, "heif: iprp has no ipma box")
	}
	f.iref = childOf[*IrefBox](f.meta.Children)
	f.idat = childOf[*IdatBox](f.meta.Children)

	f.infes = make(map[uint32]*InfeBox)
	for _, e := range f.iinf.Entries() {
		f.infes[e.ItemID] = e
	}
	return f, nil
}

// NewFile returns an empty image file ready for items to be added.
func NewFile() *File {
	f := &File{
		ftyp: &FtypBox{
			BoxHeader:        BoxHeader{Type: TypeFtyp},
			MajorBrand:       BrandMif1,
			CompatibleBrands: []BoxType{BrandMif1},
		},
		hdlr:  &HdlrBox{BoxHeader: BoxHeader{Type: TypeHdlr}, HandlerType: HandlerPict},
		pitm:  &PitmBox{BoxHeader: BoxHeader{Type: TypePitm}},
		iloc:  &IlocBox{BoxHeader: BoxHeader{Type: TypeIloc}, OffsetSize: 4, LengthSize: 4},
		iinf:  &IinfBox{BoxHeader: BoxHeader{Type: TypeIinf}},
		ipco:  &IpcoBox{BoxHeader: BoxHeader{Type: TypeIpco}},
		ipmas: []*IpmaBox{{BoxHeader: BoxHeader{Type: TypeIpma}}},
		infes: make(map[uint32]*InfeBox),
	}
	f.iprp = &IprpBox{BoxHeader: BoxHeader{Type: TypeIprp}}
	f.iprp.Children = []Box{f.ipco, f.ipmas[0]}
	f.meta = &MetaBox{BoxHeader: BoxHeader{Type: TypeMeta}}
	f.meta.Children = []Box{f.hdlr, f.pitm, f.iloc, f.iinf, f.iprp}
	return f
}

// Ftyp returns the file type box.
func (f *File) Ftyp() *FtypBox { return f.ftyp }

// Meta returns the meta box.
func (f *File) Meta() *MetaBox { return f.meta }

// PrimaryID returns the ID of the primary item.
func (f *File) PrimaryID() uint32 { return f.pitm.ItemID }

// ItemIDs returns the IDs of all items in iinf order.
func (f *File) ItemIDs() []uint32 {
	entries := f.iinf.Entries()
	ids := make([]uint32, len(entries))
	for i, e := range entries {
		ids[i] = e.ItemID
	}
	return ids
}

// Infe returns the item info of id, or nil.
func (f *File) Infe(id uint32) *InfeBox { return f.infes[id] }

// ItemType returns the type of item id.
func (f *File) ItemType(id uint32) BoxType {
	if e := f.infes[id]; e != nil {
		return e.ItemType
	}
	return BoxType{}
}

// Properties returns the properties associated with item id, in
// association order.
func (f *File) Properties(id uint32) ([]Box, error) {
	var out []Box
	found := false
	for _, ipma := range f.ipmas {
		e := ipma.Entry(id)
		if e == nil {
			continue
		}
		found = true
		for _, a := range e.Associations {
			if a.Index == 0 {
				continue
			}
			if int(a.Index) > len(f.ipco.Children) {
				return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.IpmaBoxReferencesNonexistingProperty,
					"heif: item %d references property %d of %d", id, a.Index, len(f.ipco.Children))
			}
			out = append(out, f.ipco.Children[a.Index-1])
		}
	}
	if !found {
		return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.NoPropertiesAssignedToItem, "heif: item %d has no properties", id)
	}
	return out, nil
}

// itemProperty returns the first property of type T associated with id.
func itemProperty[T Box](f *File, id uint32) (T, error) {
	var zero T
	props, err := f.Properties(id)
	if err != nil {
		return zero, err
	}
	return childOf[T](props), nil
}

// References returns the items id references with type t.
func (f *File) References(id uint32, t BoxType) []uint32 {
	if f.iref == nil {
		return nil
	}
	return f.iref.From(id, t)
}

// ReferencingItems returns the items referencing id with type t.
func (f *File) ReferencingItems(id uint32, t BoxType) []uint32 {
	if f.iref == nil {
		return nil
	}
	var out []uint32
	for _, ref := range f.iref.References {
		if ref.Type != t {
			continue
		}
		for _, to := range ref.ToIDs {
			if to == id {
				out = append(out, ref.FromID)
				break
			}
		}
	}
	return out
}

// ItemData returns the stored payload of item id.
func (f *File) ItemData(id uint32) ([]byte, error) {
	if f.infes[id] == nil {
		return nil, heiferr.Newf(heiferr.UsageError, heiferr.NonexistingItemReferenced, "heif: no item %d", id)
	}
	it := f.iloc.Item(id)
	if it == nil {
		return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.NoItemData, "heif: item %d has no location", id)
	}
	if it.pending != nil {
		return append([]byte(nil), it.pending...), nil
	}

	var total uint64
	for _, e := range it.Extents {
		total += e.Length
	}
	if err := f.limits.checkMemoryBlock(total); err != nil {
		return nil, err
	}

	data := make([]byte, 0, min(total, 16<<20))
	switch it.ConstructionMethod {
	case ConstructionFileOffset:
		if f.src == nil {
			return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.NoItemData, "heif: item %d has no data", id)
		}
		for _, e := range it.Extents {
			off := it.BaseOffset + e.Offset
			n := e.Length
			if n == 0 && f.src.stream == nil {
				// Zero length extends to the end of the file.
				n = uint64(f.src.size()) - min(off, uint64(f.src.size()))
			}
			if off > math.MaxInt64-n || n > math.MaxInt32 {
				return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.EndOfData, "heif: item %d extent out of range", id)
			}
			b, err := f.src.readAt(int64(off), int(n))
			if err != nil {
				return nil, err
			}
			data = append(data, b...)
		}
	case ConstructionIdatOffset:
		if f.idat == nil {
			return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.NoIdatBox, "heif: item %d is stored in a missing idat", id)
		}
		for _, e := range it.Extents {
			off := it.BaseOffset + e.Offset
			if off > uint64(len(f.idat.Data)) || e.Length > uint64(len(f.idat.Data))-off {
				return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.EndOfData, "heif: item %d overruns idat", id)
			}
			data = append(data, f.idat.Data[off:off+e.Length]...)
		}
	default:
		return nil, heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedItemConstructionMethod,
			"heif: item %d uses construction method %d", id, it.ConstructionMethod)
	}
	return data, nil
}

// AddItem adds an item of type t and returns its ID.
func (f *File) AddItem(t BoxType, name string) uint32 {
	var id uint32 = 1
	for existing := range f.infes {
		id = max(id, existing+1)
	}
	e := &InfeBox{BoxHeader: BoxHeader{Type: TypeInfe, Version: 2}, ItemID: id, ItemType: t, Name: name}
	if id > 0xFFFF {
		e.Version = 3
	}
	f.infes[id] = e
	f.iinf.Children = append(f.iinf.Children, e)
	return id
}

// SetItemData stores data as the payload of item id, to be written to mdat.
func (f *File) SetItemData(id uint32, data []byte) {
	it := f.iloc.Item(id)
	if it == nil {
		it = &IlocItem{ID: id}
		f.iloc.Items = append(f.iloc.Items, it)
	}
	it.ConstructionMethod = ConstructionFileOffset
	it.BaseOffset = 0
	it.Extents = []IlocExtent{{Length: uint64(len(data))}}
	it.pending = append([]byte(nil), data...)
}

// AddProperty associates box with item id, reusing an equal property.
func (f *File) AddProperty(id uint32, box Box, essential bool) {
	idx := f.ipco.FindOrAppend(box)
	f.ipmas[0].Add(id, PropertyAssociation{Essential: essential, Index: uint16(idx + 1)})
}

// AddReference records a reference of type t from one item to others.
func (f *File) AddReference(t BoxType, from uint32, to ...uint32) {
	if f.iref == nil {
		f.iref = &IrefBox{BoxHeader: BoxHeader{Type: TypeIref}}
		f.meta.Children = append(f.meta.Children, f.iref)
	}
	f.iref.Add(t, from, to...)
}

// SetPrimary makes id the primary item.
func (f *File) SetPrimary(id uint32) { f.pitm.ItemID = id }

// SetBrand sets the major brand and adds it to the compatible brands.
func (f *File) SetBrand(brand BoxType) {
	f.ftyp.MajorBrand = brand
	if !slices.Contains(f.ftyp.CompatibleBrands, brand) {
		f.ftyp.CompatibleBrands = append(f.ftyp.CompatibleBrands, brand)
	}
}

// prepareWrite picks the smallest box versions and field sizes that can
// hold the file's IDs and offsets.
func (f *File) prepareWrite() (large bool) {
	var maxID uint32
	var pending uint64
	method := false
	for id := range f.infes {
		maxID = max(maxID, id)
	}
	for _, it := range f.iloc.Items {
		pending += uint64(len(it.pending))
		method = method || it.ConstructionMethod != ConstructionFileOffset
	}
	wide := maxID > 0xFFFF
	switch {
	case wide:
		f.iloc.Version = 2
	case method:
		f.iloc.Version = max(f.iloc.Version, 1)
	}
	if wide {
		f.pitm.Version, f.iinf.Version = 1, 1
		if f.iref != nil {
			f.iref.Version = 1
		}
	}
	large = pending > math.MaxUint32-64
	if large {
		f.iloc.OffsetSize, f.iloc.LengthSize = 8, 8
	}
	return large
}

// Write serializes the file as ftyp, meta and mdat, patching the item
// offsets in iloc once mdat is laid out.
func (f *File) Write(out io.Writer) error {
	large := f.prepareWrite()
	w := NewWriter(nil)
	if err := WriteBox(w, f.ftyp); err != nil {
		return err
	}
	if err := WriteBox(w, f.meta); err != nil {
		return err
	}
	w.startBox(&BoxHeader{Type: TypeMdat, largeSize: large})
	f.iloc.writePending(w)
	w.EndBox()
	_, err := out.Write(w.Bytes())
	return err
}
