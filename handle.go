package heif

import (
	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
	"github.com/tetsuo/heif/plugin"
)

// ImageHandle holds the metadata of one image item. Pixels are produced on
// demand by Decode.
type ImageHandle struct {
	ctx *Context

	ID      uint32
	Type    BoxType
	Format  plugin.CompressionFormat
	Primary bool

	// Width and Height are the displayed size, after rotation.
	Width  int
	Height int

	LumaBitDepth   int
	ChromaBitDepth int
	Chroma         pixels.Chroma

	NCLX *pixels.NCLX
	ICC  []byte

	// AuxType is the auxC type of auxiliary images.
	AuxType string

	thumbnails []*ImageHandle
	auxiliary  []*ImageHandle
	alpha      *ImageHandle
	depth      *ImageHandle
	metadata   []*Metadata

	ispeWidth  int
	ispeHeight int
	props      []Box
	hidden     bool
}

// Metadata is a metadata item describing an image, such as an Exif block.
type Metadata struct {
	ID          uint32
	Type        BoxType
	ContentType string

	file *File
}

// Data returns the metadata payload.
func (m *Metadata) Data() ([]byte, error) { return m.file.ItemData(m.ID) }

// HasAlpha reports whether an alpha plane is stored for the image.
func (h *ImageHandle) HasAlpha() bool { return h.alpha != nil }

// Alpha returns the alpha auxiliary image, or nil.
func (h *ImageHandle) Alpha() *ImageHandle { return h.alpha }

// Depth returns the depth auxiliary image, or nil.
func (h *ImageHandle) Depth() *ImageHandle { return h.depth }

// Thumbnails returns the thumbnails of the image.
func (h *ImageHandle) Thumbnails() []*ImageHandle { return h.thumbnails }

// Auxiliary returns the auxiliary images other than alpha and depth.
func (h *ImageHandle) Auxiliary() []*ImageHandle { return h.auxiliary }

// Metadata returns the metadata items describing the image.
func (h *ImageHandle) Metadata() []*Metadata { return h.metadata }

// Hidden reports whether the item is marked as not for display.
func (h *ImageHandle) Hidden() bool { return h.hidden }

// Properties returns the item properties of the image.
func (h *ImageHandle) Properties() []Box { return h.props }

// ExifBlocks returns the Exif metadata of the image.
func (h *ImageHandle) ExifBlocks() []*Metadata {
	var out []*Metadata
	for _, m := range h.metadata {
		if m.Type == ItemTypeExif {
			out = append(out, m)
		}
	}
	return out
}

// FindImage returns the handle with the given ID, or nil.
func FindImage(handles []*ImageHandle, id uint32) *ImageHandle {
	for _, h := range handles {
		if h.ID == id {
			return h
		}
	}
	return nil
}

func formatOf(t BoxType) plugin.CompressionFormat {
	switch t {
	case ItemTypeHvc1:
		return plugin.FormatHEVC
	case ItemTypeAv01:
		return plugin.FormatAV1
	case ItemTypeJpeg:
		return plugin.FormatJPEG
	}
	return plugin.FormatUndefined
}

func isImageType(t BoxType) bool {
	switch t {
	case ItemTypeHvc1, ItemTypeAv01, ItemTypeJpeg, ItemTypeGrid, ItemTypeIovl, ItemTypeIden:
		return true
	}
	return false
}

// newImageHandle reads the properties of item id.
func newImageHandle(c *Context, f *File, id uint32) (*ImageHandle, error) {
	infe := f.Infe(id)
	h := &ImageHandle{
		ctx:    c,
		ID:     id,
		Type:   infe.ItemType,
		Format: formatOf(infe.ItemType),
		hidden: infe.Hidden(),
	}
	props, err := f.Properties(id)
	if err != nil {
		return nil, err
	}
	h.props = props

	if ispe := childOf[*IspeBox](props); ispe != nil {
		h.ispeWidth, h.ispeHeight = int(ispe.Width), int(ispe.Height)
		if err := c.limits.checkImageSize(h.ispeWidth, h.ispeHeight); err != nil {
			return nil, err
		}
	}
	h.Width, h.Height = h.ispeWidth, h.ispeHeight
	if irot := childOf[*IrotBox](props); irot != nil && (irot.Rotation == 90 || irot.Rotation == 270) {
		h.Width, h.Height = h.Height, h.Width
	}

	switch {
	case childOf[*HvcCBox](props) != nil:
		hvcc := childOf[*HvcCBox](props)
		h.LumaBitDepth, h.ChromaBitDepth = int(hvcc.BitDepthLuma), int(hvcc.BitDepthChroma)
		h.Chroma = hvcc.Chroma()
	case childOf[*Av1CBox](props) != nil:
		av1c := childOf[*Av1CBox](props)
		h.LumaBitDepth = av1c.BitDepth()
		h.ChromaBitDepth = h.LumaBitDepth
		h.Chroma = av1c.Chroma()
	default:
		h.LumaBitDepth, h.ChromaBitDepth = 8, 8
	}
	if pixi := childOf[*PixiBox](props); pixi != nil && len(pixi.BitsPerChannel) > 0 {
		h.LumaBitDepth = int(pixi.BitsPerChannel[0])
		h.ChromaBitDepth = h.LumaBitDepth
		if len(pixi.BitsPerChannel) > 1 {
			h.ChromaBitDepth = int(pixi.BitsPerChannel[1])
		}
	}

	for _, p := range props {
		colr, ok := p.(*ColrBox)
		if !ok {
			continue
		}
		switch colr.ColourType {
		case ColourNCLX:
			if h.NCLX == nil {
				h.NCLX = colr.NCLX
			}
		case ColourProf, ColourRICC:
			if h.ICC == nil {
				h.ICC = colr.Profile
			}
		}
	}
	if auxc := childOf[*AuxCBox](props); auxc != nil {
		h.AuxType = auxc.AuxType
	}
	return h, nil
}

// interpretFile builds the image handles of f: top-level images with their
// thumbnails, auxiliary images and metadata attached.
func (c *Context) interpretFile(f *File) error {
	all := make(map[uint32]*ImageHandle)
	var order []*ImageHandle
	for _, id := range f.ItemIDs() {
		if !isImageType(f.ItemType(id)) {
			continue
		}
		h, err := newImageHandle(c, f, id)
		if err != nil {
			return err
		}
		all[id] = h
		order = append(order, h)
	}

	attached := make(map[uint32]bool)
	for _, h := range order {
		if to := f.References(h.ID, RefThumbnail); len(to) > 0 {
			master := all[to[0]]
			if master == nil {
				return heiferr.Newf(heiferr.InvalidInput, heiferr.NonexistingItemReferenced,
					"heif: thumbnail %d references missing image %d", h.ID, to[0])
			}
			master.thumbnails = append(master.thumbnails, h)
			attached[h.ID] = true
			continue
		}
		if to := f.References(h.ID, RefAuxiliary); len(to) > 0 {
			master := all[to[0]]
			if master == nil {
				return heiferr.Newf(heiferr.InvalidInput, heiferr.NonexistingItemReferenced,
					"heif: auxiliary image %d references missing image %d", h.ID, to[0])
			}
			auxc := childOf[*AuxCBox](h.props)
			switch {
			case auxc == nil:
				return heiferr.Newf(heiferr.InvalidInput, heiferr.AuxiliaryImageTypeUnspecified,
					"heif: auxiliary image %d has no auxC property", h.ID)
			case auxc.IsAlpha():
				master.alpha = h
			case auxc.AuxType == AuxTypeDepthHEVC:
				master.depth = h
			default:
				master.auxiliary = append(master.auxiliary, h)
			}
			attached[h.ID] = true
		}
	}

	for _, id := range f.ItemIDs() {
		if isImageType(f.ItemType(id)) {
			continue
		}
		infe := f.Infe(id)
		for _, target := range f.References(id, RefDescription) {
			if master := all[target]; master != nil {
				master.metadata = append(master.metadata, &Metadata{
					ID: id, Type: infe.ItemType, ContentType: infe.ContentType, file: f,
				})
			}
		}
	}

	c.file = f
	c.all = all
	c.images = c.images[:0]
	c.primary = nil
	for _, h := range order {
		if attached[h.ID] || h.hidden {
			continue
		}
		c.images = append(c.images, h)
	}
	primary := all[f.PrimaryID()]
	if primary == nil {
		return heiferr.Newf(heiferr.InvalidInput, heiferr.NonexistingItemReferenced,
			"heif: primary item %d is not an image", f.PrimaryID())
	}
	primary.Primary = true
	c.primary = primary
	return nil
}
