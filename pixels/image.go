package pixels

import (
	"encoding/binary"
	"sort"

	"github.com/tetsuo/heif/heiferr"
)

// MaxPlaneBytes bounds a single plane allocation.
const MaxPlaneBytes = 1 << 31

// Plane is a rectangular array of samples.
//
// Planar samples wider than 8 bits take two bytes, little endian. Interleaved
// planes store whole pixels; their byte order follows the image chroma.
type Plane struct {
	Width    int
	Height   int
	BitDepth int
	Stride   int
	Data     []byte

	pixelBytes int
}

// PixelBytes returns the number of bytes of one pixel in this plane.
func (p *Plane) PixelBytes() int { return p.pixelBytes }

// At returns the planar sample at (x, y).
func (p *Plane) At(x, y int) uint16 {
	off := y*p.Stride + x*p.pixelBytes
	if p.pixelBytes == 1 {
		return uint16(p.Data[off])
	}
	return binary.LittleEndian.Uint16(p.Data[off:])
}

// Set stores the planar sample at (x, y).
func (p *Plane) Set(x, y int, v uint16) {
	off := y*p.Stride + x*p.pixelBytes
	if p.pixelBytes == 1 {
		p.Data[off] = uint8(v)
		return
	}
	binary.LittleEndian.PutUint16(p.Data[off:], v)
}

// Row returns the bytes of row y.
func (p *Plane) Row(y int) []byte {
	return p.Data[y*p.Stride : y*p.Stride+p.Width*p.pixelBytes]
}

// MaxValue returns the largest sample value at the plane's bit depth.
func (p *Plane) MaxValue() uint16 {
	return uint16(1<<p.BitDepth - 1)
}

func newPlane(w, h, bitDepth, pixelBytes int) (*Plane, error) {
	if w <= 0 || h <= 0 {
		return nil, heiferr.Newf(heiferr.UsageError, heiferr.InvalidImageSize, "invalid plane size %dx%d", w, h)
	}
	if bitDepth < 1 || bitDepth > 16 {
		return nil, heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedBitDepth, "bit depth %d", bitDepth)
	}
	stride := w * pixelBytes
	if uint64(stride)*uint64(h) > MaxPlaneBytes {
		return nil, heiferr.Newf(heiferr.MemoryAllocationError, heiferr.SecurityLimitExceeded,
			"plane of %dx%d exceeds allocation limit", w, h)
	}
	return &Plane{
		Width:      w,
		Height:     h,
		BitDepth:   bitDepth,
		Stride:     stride,
		Data:       make([]byte, stride*h),
		pixelBytes: pixelBytes,
	}, nil
}

// Image is a decoded image.
type Image struct {
	width      int
	height     int
	colorspace Colorspace
	chroma     Chroma
	planes     map[Channel]*Plane

	// PremultipliedAlpha is set when color values are premultiplied by alpha.
	PremultipliedAlpha bool
	// NCLX is the color profile of the image, nil if unknown.
	NCLX *NCLX
}

// NewImage creates an image without planes.
func NewImage(width, height int, cs Colorspace, chroma Chroma) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, heiferr.Newf(heiferr.UsageError, heiferr.InvalidImageSize, "invalid image size %dx%d", width, height)
	}
	return &Image{
		width:      width,
		height:     height,
		colorspace: cs,
		chroma:     chroma,
		planes:     make(map[Channel]*Plane),
	}, nil
}

func (img *Image) Width() int             { return img.width }
func (img *Image) Height() int            { return img.height }
func (img *Image) Colorspace() Colorspace { return img.colorspace }
func (img *Image) Chroma() Chroma         { return img.chroma }

// AddPlane allocates a plane for channel c. For ChannelInterleaved the pixel
// size follows the image chroma.
func (img *Image) AddPlane(c Channel, width, height, bitDepth int) (*Plane, error) {
	pb := 1
	if bitDepth > 8 {
		pb = 2
	}
	if c == ChannelInterleaved {
		n := img.chroma.InterleavedComponents()
		if n == 0 {
			return nil, heiferr.Newf(heiferr.UsageError, heiferr.InvalidParameterValue,
				"interleaved plane on %v image", img.chroma)
		}
		if img.chroma.IsHDRInterleaved() {
			pb = 2 * n
		} else {
			pb = n
		}
	}
	p, err := newPlane(width, height, bitDepth, pb)
	if err != nil {
		return nil, err
	}
	img.planes[c] = p
	return p, nil
}

// SetPlane installs p as channel c, replacing any existing plane.
func (img *Image) SetPlane(c Channel, p *Plane) {
	img.planes[c] = p
}

// RemovePlane drops channel c.
func (img *Image) RemovePlane(c Channel) {
	delete(img.planes, c)
}

// Plane returns the plane of channel c, or nil.
func (img *Image) Plane(c Channel) *Plane {
	return img.planes[c]
}

// HasChannel reports whether the image has a plane for c.
func (img *Image) HasChannel(c Channel) bool {
	_, ok := img.planes[c]
	return ok
}

// HasAlpha reports whether the image has an alpha plane or interleaved alpha.
func (img *Image) HasAlpha() bool {
	return img.HasChannel(ChannelAlpha) || img.chroma.InterleavedHasAlpha()
}

// BitDepth returns the bit depth of channel c, or -1 if missing.
func (img *Image) BitDepth(c Channel) int {
	p := img.planes[c]
	if p == nil {
		return -1
	}
	return p.BitDepth
}

// Channels returns the channels present, in channel order.
func (img *Image) Channels() []Channel {
	cs := make([]Channel, 0, len(img.planes))
	for c := range img.planes {
		cs = append(cs, c)
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i] < cs[j] })
	return cs
}

// LumaBitDepth returns the bit depth of the main channel (Y, R or the
// interleaved plane).
func (img *Image) LumaBitDepth() int {
	for _, c := range []Channel{ChannelY, ChannelG, ChannelInterleaved} {
		if p := img.planes[c]; p != nil {
			return p.BitDepth
		}
	}
	return -1
}

// NewSibling creates an empty image of the given layout carrying img's
// metadata.
func (img *Image) NewSibling(width, height int, cs Colorspace, chroma Chroma) (*Image, error) {
	out, err := NewImage(width, height, cs, chroma)
	if err != nil {
		return nil, err
	}
	out.PremultipliedAlpha = img.PremultipliedAlpha
	out.NCLX = img.NCLX
	return out, nil
}

// CopyPlane duplicates a plane.
func CopyPlane(p *Plane) *Plane {
	q := *p
	q.Data = append([]byte(nil), p.Data...)
	return &q
}
