package pixels

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/tetsuo/heif/heiferr"
)

// MirrorDirection selects the flip applied by Mirror.
type MirrorDirection int

const (
	// MirrorVertical flips rows (top becomes bottom).
	MirrorVertical MirrorDirection = iota
	// MirrorHorizontal flips columns (left becomes right).
	MirrorHorizontal
)

// RotateCCW returns the image rotated counter-clockwise by angle degrees
// (0, 90, 180 or 270).
func (img *Image) RotateCCW(angle int) (*Image, error) {
	switch angle {
	case 0:
		return img, nil
	case 90, 180, 270:
	default:
		return nil, heiferr.Newf(heiferr.UsageError, heiferr.InvalidParameterValue, "rotation by %d degrees", angle)
	}
	if angle != 180 && img.chroma == Chroma422 {
		return nil, heiferr.New(heiferr.UnsupportedFeature, heiferr.UnsupportedColorConversion,
			"cannot rotate 4:2:2 image by 90 degrees")
	}

	w, h := img.width, img.height
	if angle != 180 {
		w, h = h, w
	}
	out, err := img.NewSibling(w, h, img.colorspace, img.chroma)
	if err != nil {
		return nil, err
	}
	for _, c := range img.Channels() {
		src := img.planes[c]
		pw, ph := src.Width, src.Height
		if angle != 180 {
			pw, ph = ph, pw
		}
		dst, err := newPlane(pw, ph, src.BitDepth, src.pixelBytes)
		if err != nil {
			return nil, err
		}
		rotatePlane(dst, src, angle)
		out.planes[c] = dst
	}
	return out, nil
}

func rotatePlane(dst, src *Plane, angle int) {
	pb := src.pixelBytes
	for y := 0; y < dst.Height; y++ {
		row := dst.Data[y*dst.Stride:]
		for x := 0; x < dst.Width; x++ {
			var sx, sy int
			switch angle {
			case 90:
				sx, sy = src.Width-1-y, x
			case 180:
				sx, sy = src.Width-1-x, src.Height-1-y
			case 270:
				sx, sy = y, src.Height-1-x
			}
			copy(row[x*pb:x*pb+pb], src.Data[sy*src.Stride+sx*pb:])
		}
	}
}

// Mirror flips the image in place.
func (img *Image) Mirror(dir MirrorDirection) {
	for _, p := range img.planes {
		pb := p.pixelBytes
		switch dir {
		case MirrorVertical:
			tmp := make([]byte, p.Width*pb)
			for y := 0; y < p.Height/2; y++ {
				a, b := p.Row(y), p.Row(p.Height-1-y)
				copy(tmp, a)
				copy(a, b)
				copy(b, tmp)
			}
		case MirrorHorizontal:
			tmp := make([]byte, pb)
			for y := 0; y < p.Height; y++ {
				row := p.Row(y)
				for x := 0; x < p.Width/2; x++ {
					l := row[x*pb : x*pb+pb]
					r := row[(p.Width-1-x)*pb : (p.Width-x)*pb]
					copy(tmp, l)
					copy(l, r)
					copy(r, tmp)
				}
			}
		}
	}
}

// Scale resamples every plane to fit an image of width x height.
//
// 8-bit planes are resampled with imaging's Lanczos filter; wider samples use
// nearest neighbour since imaging works on 8-bit channels.
func (img *Image) Scale(width, height int) (*Image, error) {
	out, err := img.NewSibling(width, height, img.colorspace, img.chroma)
	if err != nil {
		return nil, err
	}
	for _, c := range img.Channels() {
		src := img.planes[c]
		pw, ph := width, height
		if c == ChannelCb || c == ChannelCr {
			pw, ph = ChromaPlaneSize(img.chroma, width, height)
		}
		dst, err := newPlane(pw, ph, src.BitDepth, src.pixelBytes)
		if err != nil {
			return nil, err
		}
		switch {
		case src.pixelBytes == 1:
			scaleGray(dst, src)
		case c == ChannelInterleaved && img.chroma == ChromaInterleavedRGBA:
			scaleNRGBA(dst, src)
		default:
			scaleNearest(dst, src)
		}
		out.planes[c] = dst
	}
	return out, nil
}

func scaleGray(dst, src *Plane) {
	g := &image.Gray{Pix: src.Data, Stride: src.Stride, Rect: image.Rect(0, 0, src.Width, src.Height)}
	r := imaging.Resize(g, dst.Width, dst.Height, imaging.Lanczos)
	for y := 0; y < dst.Height; y++ {
		row := dst.Data[y*dst.Stride:]
		for x := 0; x < dst.Width; x++ {
			row[x] = r.Pix[y*r.Stride+x*4]
		}
	}
}

func scaleNRGBA(dst, src *Plane) {
	n := &image.NRGBA{Pix: src.Data, Stride: src.Stride, Rect: image.Rect(0, 0, src.Width, src.Height)}
	r := imaging.Resize(n, dst.Width, dst.Height, imaging.Lanczos)
	for y := 0; y < dst.Height; y++ {
		copy(dst.Data[y*dst.Stride:y*dst.Stride+dst.Width*4], r.Pix[y*r.Stride:])
	}
}

func scaleNearest(dst, src *Plane) {
	pb := src.pixelBytes
	for y := 0; y < dst.Height; y++ {
		sy := y * src.Height / dst.Height
		row := dst.Data[y*dst.Stride:]
		for x := 0; x < dst.Width; x++ {
			sx := x * src.Width / dst.Width
			copy(row[x*pb:x*pb+pb], src.Data[sy*src.Stride+sx*pb:])
		}
	}
}
