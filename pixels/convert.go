package pixels

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/tetsuo/heif/heiferr"
)

// ToImage exports an 8-bit image as an image.Image. Supported layouts are
// monochrome, YCbCr 4:2:0/4:2:2/4:4:4 without alpha, and interleaved RGB(A).
// Other layouts must be converted first.
func (img *Image) ToImage() (image.Image, error) {
	rect := image.Rect(0, 0, img.width, img.height)
	switch {
	case img.chroma == ChromaMonochrome && img.BitDepth(ChannelY) == 8:
		g := image.NewGray(rect)
		copyRows(g.Pix, g.Stride, img.planes[ChannelY])
		return g, nil

	case img.colorspace == ColorspaceYCbCr && img.BitDepth(ChannelY) == 8 && !img.HasAlpha():
		ratio, ok := subsampleRatios[img.chroma]
		if !ok {
			break
		}
		y := image.NewYCbCr(rect, ratio)
		copyRows(y.Y, y.YStride, img.planes[ChannelY])
		copyRows(y.Cb, y.CStride, img.planes[ChannelCb])
		copyRows(y.Cr, y.CStride, img.planes[ChannelCr])
		return y, nil

	case img.chroma == ChromaInterleavedRGBA:
		n := image.NewNRGBA(rect)
		copyRows(n.Pix, n.Stride, img.planes[ChannelInterleaved])
		return n, nil

	case img.chroma == ChromaInterleavedRGB:
		n := image.NewNRGBA(rect)
		p := img.planes[ChannelInterleaved]
		for y := 0; y < img.height; y++ {
			src := p.Row(y)
			dst := n.Pix[y*n.Stride:]
			for x := 0; x < img.width; x++ {
				dst[x*4+0] = src[x*3+0]
				dst[x*4+1] = src[x*3+1]
				dst[x*4+2] = src[x*3+2]
				dst[x*4+3] = 0xff
			}
		}
		return n, nil
	}
	return nil, heiferr.Newf(heiferr.UsageError, heiferr.UnsupportedColorConversion,
		"cannot export %v %v image", img.colorspace, img.chroma)
}

var subsampleRatios = map[Chroma]image.YCbCrSubsampleRatio{
	Chroma420: image.YCbCrSubsampleRatio420,
	Chroma422: image.YCbCrSubsampleRatio422,
	Chroma444: image.YCbCrSubsampleRatio444,
}

func copyRows(dst []byte, dstStride int, p *Plane) {
	for y := 0; y < p.Height; y++ {
		copy(dst[y*dstStride:], p.Row(y))
	}
}

// FromImage imports src as an 8-bit image. YCbCr and gray images keep their
// layout; everything else becomes interleaved RGBA.
func FromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	switch s := src.(type) {
	case *image.Gray:
		img, err := NewImage(w, h, ColorspaceMonochrome, ChromaMonochrome)
		if err != nil {
			return nil, err
		}
		p, err := img.AddPlane(ChannelY, w, h, 8)
		if err != nil {
			return nil, err
		}
		for y := 0; y < h; y++ {
			copy(p.Row(y), s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return img, nil

	case *image.YCbCr:
		for chroma, ratio := range subsampleRatios {
			if s.SubsampleRatio == ratio && b.Min.X%2 == 0 && b.Min.Y%2 == 0 {
				return fromYCbCr(s, chroma)
			}
		}
	}

	n := imaging.Clone(src)
	img, err := NewImage(w, h, ColorspaceRGB, ChromaInterleavedRGBA)
	if err != nil {
		return nil, err
	}
	p, err := img.AddPlane(ChannelInterleaved, w, h, 8)
	if err != nil {
		return nil, err
	}
	copyRowsFrom(p, n.Pix, n.Stride)
	return img, nil
}

func fromYCbCr(s *image.YCbCr, chroma Chroma) (*Image, error) {
	b := s.Bounds()
	w, h := b.Dx(), b.Dy()
	img, err := NewImage(w, h, ColorspaceYCbCr, chroma)
	if err != nil {
		return nil, err
	}
	img.NCLX = DefaultNCLX()
	yp, err := img.AddPlane(ChannelY, w, h, 8)
	if err != nil {
		return nil, err
	}
	copyRowsFrom(yp, s.Y[s.YOffset(b.Min.X, b.Min.Y):], s.YStride)

	cw, ch := ChromaPlaneSize(chroma, w, h)
	co := s.COffset(b.Min.X, b.Min.Y)
	for _, c := range []struct {
		ch  Channel
		pix []byte
	}{{ChannelCb, s.Cb}, {ChannelCr, s.Cr}} {
		p, err := img.AddPlane(c.ch, cw, ch, 8)
		if err != nil {
			return nil, err
		}
		copyRowsFrom(p, c.pix[co:], s.CStride)
	}
	return img, nil
}

func copyRowsFrom(p *Plane, src []byte, stride int) {
	for y := 0; y < p.Height; y++ {
		copy(p.Row(y), src[y*stride:])
	}
}
