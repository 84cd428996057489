package colorconv

import "github.com/tetsuo/heif/pixels"

// PromoteSample widens an 8-bit sample to bits by bit replication, so 0 and
// 255 map to 0 and the new maximum.
func PromoteSample(v uint8, bits int) uint16 {
	return promote(uint16(v), 8, bits)
}

// DemoteSample narrows a sample of bits to 8 bits by truncation.
func DemoteSample(v uint16, bits int) uint8 {
	return uint8(demote(v, bits, 8))
}

// promote replicates the top bits of v into the new low bits.
func promote(v uint16, from, to int) uint16 {
	r := v << (to - from)
	for have := from; have < to; have *= 2 {
		r |= r >> have
	}
	return r
}

func demote(v uint16, from, to int) uint16 {
	return v >> (from - to)
}

// opToHDR raises the bit depth of all planes to the target bit depth.
type opToHDR struct{}

func (opToHDR) Name() string { return "increase bit depth" }

func (opToHDR) StatesAfterConversion(in ColorState, t Target, _ *Options) []StateWithCost {
	if in.Chroma.IsInterleaved() || in.BitsPerPixel < 8 || t.BitsPerPixel <= in.BitsPerPixel || t.BitsPerPixel > 16 {
		return nil
	}
	out := in
	out.BitsPerPixel = t.BitsPerPixel
	return []StateWithCost{{out, CostUnoptimized}}
}

func (opToHDR) Convert(img *pixels.Image, _, out ColorState, _ *Options) (*pixels.Image, error) {
	return changeBitDepth(img, out, func(p *pixels.Plane) bool { return p.BitDepth < out.BitsPerPixel })
}

// opToSDR lowers the bit depth of all planes, truncating.
type opToSDR struct{}

func (opToSDR) Name() string { return "decrease bit depth" }

func (opToSDR) StatesAfterConversion(in ColorState, t Target, _ *Options) []StateWithCost {
	if in.Chroma.IsInterleaved() || in.BitsPerPixel <= 8 {
		return nil
	}
	bits := t.BitsPerPixel
	if bits == 0 && (t.Chroma == pixels.ChromaInterleavedRGB || t.Chroma == pixels.ChromaInterleavedRGBA) {
		bits = 8
	}
	if bits < 8 || bits >= in.BitsPerPixel {
		return nil
	}
	out := in
	out.BitsPerPixel = bits
	return []StateWithCost{{out, CostOptimized}}
}

func (opToSDR) Convert(img *pixels.Image, _, out ColorState, _ *Options) (*pixels.Image, error) {
	return changeBitDepth(img, out, func(p *pixels.Plane) bool { return p.BitDepth > out.BitsPerPixel })
}

func changeBitDepth(img *pixels.Image, out ColorState, applies func(*pixels.Plane) bool) (*pixels.Image, error) {
	res, err := img.NewSibling(img.Width(), img.Height(), out.Colorspace, out.Chroma)
	if err != nil {
		return nil, err
	}
	to := out.BitsPerPixel
	for _, c := range img.Channels() {
		src := img.Plane(c)
		if !applies(src) {
			res.SetPlane(c, pixels.CopyPlane(src))
			continue
		}
		dst, err := res.AddPlane(c, src.Width, src.Height, to)
		if err != nil {
			return nil, err
		}
		from := src.BitDepth
		for y := 0; y < src.Height; y++ {
			for x := 0; x < src.Width; x++ {
				v := src.At(x, y)
				if from < to {
					v = promote(v, from, to)
				} else {
					v = demote(v, from, to)
				}
				dst.Set(x, y, v)
			}
		}
	}
	return res, nil
}
