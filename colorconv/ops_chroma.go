package colorconv

import (
	"fmt"

	"github.com/tetsuo/heif/pixels"
)

func algorithmCost(preferred bool, opts *Options) (Cost, bool) {
	if preferred {
		return CostUnoptimized, true
	}
	if opts.OnlyUsePreferredChromaAlgorithm {
		return 0, false
	}
	return CostUnoptimized + costNotPreferred, true
}

// opChromaUpsample turns 4:2:0 and 4:2:2 YCbCr into 4:4:4.
type opChromaUpsample struct {
	alg ChromaUpsampling
}

func (o opChromaUpsample) Name() string {
	if o.alg == UpsamplingBilinear {
		return "chroma upsampling (bilinear)"
	}
	return "chroma upsampling (nearest neighbour)"
}

func (o opChromaUpsample) StatesAfterConversion(in ColorState, t Target, opts *Options) []StateWithCost {
	if in.Colorspace != pixels.ColorspaceYCbCr || (in.Chroma != pixels.Chroma420 && in.Chroma != pixels.Chroma422) {
		return nil
	}
	needed := t.wantsRGB() ||
		(t.Chroma != pixels.ChromaUndefined && t.Chroma != in.Chroma && t.Chroma != pixels.ChromaMonochrome)
	if !needed {
		return nil
	}
	cost, ok := algorithmCost(o.alg == opts.PreferredChromaUpsampling, opts)
	if !ok {
		return nil
	}
	out := in
	out.Chroma = pixels.Chroma444
	return []StateWithCost{{out, cost}}
}

func (o opChromaUpsample) Convert(img *pixels.Image, in, out ColorState, _ *Options) (*pixels.Image, error) {
	res, err := copyPlanes(img, out, pixels.ChannelCb, pixels.ChannelCr)
	if err != nil {
		return nil, err
	}
	sh, sv := in.Chroma.Subsampling()
	for _, c := range []pixels.Channel{pixels.ChannelCb, pixels.ChannelCr} {
		src := img.Plane(c)
		if src == nil {
			return nil, fmt.Errorf("colorconv: missing %v plane", c)
		}
		dst, err := res.AddPlane(c, img.Width(), img.Height(), src.BitDepth)
		if err != nil {
			return nil, err
		}
		if o.alg == UpsamplingBilinear {
			upsampleBilinear(dst, src, sh, sv)
		} else {
			upsampleNearest(dst, src, sh, sv)
		}
	}
	return res, nil
}

func upsampleNearest(dst, src *pixels.Plane, sh, sv int) {
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			dst.Set(x, y, src.At(x>>sh, y>>sv))
		}
	}
}

// neighbour returns the chroma sample index closest to luma position p after
// the co-located sample c, clamped to the plane.
func neighbour(p, c, shift, size int) int {
	if shift == 0 {
		return c
	}
	n := c + 1
	if p&1 == 0 {
		n = c - 1
	}
	if n < 0 {
		n = 0
	}
	if n >= size {
		n = size - 1
	}
	return n
}

// upsampleBilinear weights the co-located chroma sample 3/4 and its nearest
// neighbour 1/4 along each subsampled axis.
func upsampleBilinear(dst, src *pixels.Plane, sh, sv int) {
	for y := 0; y < dst.Height; y++ {
		cy := y >> sv
		ny := neighbour(y, cy, sv, src.Height)
		for x := 0; x < dst.Width; x++ {
			cx := x >> sh
			nx := neighbour(x, cx, sh, src.Width)
			var v uint32
			switch {
			case sh == 1 && sv == 1:
				v = (9*uint32(src.At(cx, cy)) + 3*uint32(src.At(nx, cy)) +
					3*uint32(src.At(cx, ny)) + uint32(src.At(nx, ny)) + 8) / 16
			case sh == 1:
				v = (3*uint32(src.At(cx, cy)) + uint32(src.At(nx, cy)) + 2) / 4
			default:
				v = uint32(src.At(cx, cy))
			}
			dst.Set(x, y, uint16(v))
		}
	}
}

// opChromaDownsample turns 4:4:4 YCbCr into 4:2:0 or 4:2:2.
type opChromaDownsample struct {
	alg ChromaDownsampling
}

func (o opChromaDownsample) Name() string {
	if o.alg == DownsamplingAverage {
		return "chroma downsampling (average)"
	}
	return "chroma downsampling (nearest neighbour)"
}

func (o opChromaDownsample) StatesAfterConversion(in ColorState, t Target, opts *Options) []StateWithCost {
	if in.Colorspace != pixels.ColorspaceYCbCr || in.Chroma != pixels.Chroma444 {
		return nil
	}
	if t.Chroma != pixels.Chroma420 && t.Chroma != pixels.Chroma422 {
		return nil
	}
	cost, ok := algorithmCost(o.alg == opts.PreferredChromaDownsampling, opts)
	if !ok {
		return nil
	}
	out := in
	out.Chroma = t.Chroma
	return []StateWithCost{{out, cost}}
}

func (o opChromaDownsample) Convert(img *pixels.Image, _, out ColorState, _ *Options) (*pixels.Image, error) {
	res, err := copyPlanes(img, out, pixels.ChannelCb, pixels.ChannelCr)
	if err != nil {
		return nil, err
	}
	sh, sv := out.Chroma.Subsampling()
	cw, ch := pixels.ChromaPlaneSize(out.Chroma, img.Width(), img.Height())
	for _, c := range []pixels.Channel{pixels.ChannelCb, pixels.ChannelCr} {
		src := img.Plane(c)
		if src == nil {
			return nil, fmt.Errorf("colorconv: missing %v plane", c)
		}
		dst, err := res.AddPlane(c, cw, ch, src.BitDepth)
		if err != nil {
			return nil, err
		}
		for y := 0; y < ch; y++ {
			for x := 0; x < cw; x++ {
				sx, sy := x<<sh, y<<sv
				if o.alg == DownsamplingNearestNeighbor {
					dst.Set(x, y, src.At(sx, sy))
					continue
				}
				var sum, n uint32
				for dy := 0; dy <= sv; dy++ {
					for dx := 0; dx <= sh; dx++ {
						if sx+dx < src.Width && sy+dy < src.Height {
							sum += uint32(src.At(sx+dx, sy+dy))
							n++
						}
					}
				}
				dst.Set(x, y, uint16((sum+n/2)/n))
			}
		}
	}
	return res, nil
}
