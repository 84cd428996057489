package colorconv

import "github.com/tetsuo/heif/pixels"

type matrix struct {
	kr, kg, kb float32
	full       bool
	gbr        bool
	maxV       float32
	half       float32
	scale      float32
}

func newMatrix(nclx *pixels.NCLX, bits int) matrix {
	if nclx == nil {
		nclx = pixels.DefaultNCLX()
	}
	kr, kb := nclx.KrKb()
	return matrix{
		kr:    kr,
		kg:    1 - kr - kb,
		kb:    kb,
		full:  nclx.FullRange,
		gbr:   nclx.MatrixCoefficients == pixels.MatrixRGB,
		maxV:  float32(int(1)<<bits - 1),
		half:  float32(int(1) << (bits - 1)),
		scale: float32(int(1) << (bits - 8)),
	}
}

func (m matrix) toRGB(y, cb, cr float32) (r, g, b float32) {
	if m.gbr {
		return cr, y, cb
	}
	if m.full {
		cb -= m.half
		cr -= m.half
	} else {
		y = (y - 16*m.scale) * m.maxV / (219 * m.scale)
		cb = (cb - m.half) * m.maxV / (224 * m.scale)
		cr = (cr - m.half) * m.maxV / (224 * m.scale)
	}
	r = y + 2*(1-m.kr)*cr
	b = y + 2*(1-m.kb)*cb
	g = y - (2*m.kb*(1-m.kb)*cb+2*m.kr*(1-m.kr)*cr)/m.kg
	return r, g, b
}

func (m matrix) toYCbCr(r, g, b float32) (y, cb, cr float32) {
	if m.gbr {
		return g, b, r
	}
	y = m.kr*r + m.kg*g + m.kb*b
	cb = (b - y) / (2 * (1 - m.kb))
	cr = (r - y) / (2 * (1 - m.kr))
	if m.full {
		return y, cb + m.half, cr + m.half
	}
	return 16*m.scale + y*219*m.scale/m.maxV,
		m.half + cb*224*m.scale/m.maxV,
		m.half + cr*224*m.scale/m.maxV
}

func clampSample(v float32, limit uint16) uint16 {
	v += 0.5
	if v < 0 {
		return 0
	}
	if v >= float32(limit) {
		return limit
	}
	return uint16(v)
}

type opYCbCrToRGB struct{}

func (opYCbCrToRGB) Name() string { return "YCbCr to RGB" }

func (opYCbCrToRGB) StatesAfterConversion(in ColorState, t Target, _ *Options) []StateWithCost {
	if in.Colorspace != pixels.ColorspaceYCbCr || in.Chroma != pixels.Chroma444 || !t.wantsRGB() {
		return nil
	}
	out := in
	out.Colorspace = pixels.ColorspaceRGB
	return []StateWithCost{{out, CostUnoptimized}}
}

func (opYCbCrToRGB) Convert(img *pixels.Image, in, out ColorState, _ *Options) (*pixels.Image, error) {
	res, err := copyPlanes(img, out, pixels.ChannelY, pixels.ChannelCb, pixels.ChannelCr)
	if err != nil {
		return nil, err
	}
	yp, cbp, crp := img.Plane(pixels.ChannelY), img.Plane(pixels.ChannelCb), img.Plane(pixels.ChannelCr)
	w, h, bits := img.Width(), img.Height(), in.BitsPerPixel
	var rgb [3]*pixels.Plane
	for i, c := range []pixels.Channel{pixels.ChannelR, pixels.ChannelG, pixels.ChannelB} {
		if rgb[i], err = res.AddPlane(c, w, h, bits); err != nil {
			return nil, err
		}
	}
	m := newMatrix(img.NCLX, bits)
	top := rgb[0].MaxValue()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := m.toRGB(float32(yp.At(x, y)), float32(cbp.At(x, y)), float32(crp.At(x, y)))
			rgb[0].Set(x, y, clampSample(r, top))
			rgb[1].Set(x, y, clampSample(g, top))
			rgb[2].Set(x, y, clampSample(b, top))
		}
	}
	return res, nil
}

type opRGBToYCbCr struct{}

func (opRGBToYCbCr) Name() string { return "RGB to YCbCr" }

func (opRGBToYCbCr) StatesAfterConversion(in ColorState, t Target, _ *Options) []StateWithCost {
	if in.Colorspace != pixels.ColorspaceRGB || in.Chroma != pixels.Chroma444 {
		return nil
	}
	if t.Colorspace != pixels.ColorspaceYCbCr && t.Colorspace != pixels.ColorspaceMonochrome {
		return nil
	}
	out := in
	out.Colorspace = pixels.ColorspaceYCbCr
	return []StateWithCost{{out, CostUnoptimized}}
}

func (opRGBToYCbCr) Convert(img *pixels.Image, in, out ColorState, _ *Options) (*pixels.Image, error) {
	res, err := copyPlanes(img, out, pixels.ChannelR, pixels.ChannelG, pixels.ChannelB)
	if err != nil {
		return nil, err
	}
	rp, gp, bp := img.Plane(pixels.ChannelR), img.Plane(pixels.ChannelG), img.Plane(pixels.ChannelB)
	w, h, bits := img.Width(), img.Height(), in.BitsPerPixel
	var ycc [3]*pixels.Plane
	for i, c := range []pixels.Channel{pixels.ChannelY, pixels.ChannelCb, pixels.ChannelCr} {
		if ycc[i], err = res.AddPlane(c, w, h, bits); err != nil {
			return nil, err
		}
	}
	if res.NCLX == nil {
		res.NCLX = pixels.DefaultNCLX()
	}
	m := newMatrix(res.NCLX, bits)
	top := ycc[0].MaxValue()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			yv, cb, cr := m.toYCbCr(float32(rp.At(x, y)), float32(gp.At(x, y)), float32(bp.At(x, y)))
			ycc[0].Set(x, y, clampSample(yv, top))
			ycc[1].Set(x, y, clampSample(cb, top))
			ycc[2].Set(x, y, clampSample(cr, top))
		}
	}
	return res, nil
}

type opYCbCrToMono struct{}

func (opYCbCrToMono) Name() string { return "YCbCr to monochrome" }

func (opYCbCrToMono) StatesAfterConversion(in ColorState, t Target, _ *Options) []StateWithCost {
	if in.Colorspace != pixels.ColorspaceYCbCr {
		return nil
	}
	if t.Colorspace != pixels.ColorspaceMonochrome && t.Chroma != pixels.ChromaMonochrome {
		return nil
	}
	out := in
	out.Colorspace = pixels.ColorspaceMonochrome
	out.Chroma = pixels.ChromaMonochrome
	return []StateWithCost{{out, CostTrivial}}
}

func (opYCbCrToMono) Convert(img *pixels.Image, _, out ColorState, _ *Options) (*pixels.Image, error) {
	return copyPlanes(img, out, pixels.ChannelCb, pixels.ChannelCr)
}

type opMonoToYCbCr struct{}

func (opMonoToYCbCr) Name() string { return "monochrome to YCbCr" }

func (opMonoToYCbCr) StatesAfterConversion(in ColorState, t Target, _ *Options) []StateWithCost {
	if in.Colorspace != pixels.ColorspaceMonochrome {
		return nil
	}
	out := in
	out.Colorspace = pixels.ColorspaceYCbCr
	switch {
	case t.Chroma == pixels.Chroma420 || t.Chroma == pixels.Chroma422 || t.Chroma == pixels.Chroma444:
		out.Chroma = t.Chroma
	case t.Colorspace == pixels.ColorspaceYCbCr || t.wantsRGB():
		out.Chroma = pixels.Chroma444
	default:
		return nil
	}
	return []StateWithCost{{out, CostOptimized}}
}

func (opMonoToYCbCr) Convert(img *pixels.Image, in, out ColorState, _ *Options) (*pixels.Image, error) {
	res, err := copyPlanes(img, out)
	if err != nil {
		return nil, err
	}
	cw, ch := pixels.ChromaPlaneSize(out.Chroma, img.Width(), img.Height())
	neutral := uint16(1) << (in.BitsPerPixel - 1)
	for _, c := range []pixels.Channel{pixels.ChannelCb, pixels.ChannelCr} {
		p, err := res.AddPlane(c, cw, ch, in.BitsPerPixel)
		if err != nil {
			return nil, err
		}
		for y := 0; y < ch; y++ {
			for x := 0; x < cw; x++ {
				p.Set(x, y, neutral)
			}
		}
	}
	return res, nil
}
