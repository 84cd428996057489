package colorconv

import "github.com/tetsuo/heif/pixels"

// copyPlanes builds an image in state out carrying copies of img's planes,
// skipping the channels in drop.
func copyPlanes(img *pixels.Image, out ColorState, drop ...pixels.Channel) (*pixels.Image, error) {
	res, err := img.NewSibling(img.Width(), img.Height(), out.Colorspace, out.Chroma)
	if err != nil {
		return nil, err
	}
next:
	for _, c := range img.Channels() {
		for _, d := range drop {
			if c == d {
				continue next
			}
		}
		res.SetPlane(c, pixels.CopyPlane(img.Plane(c)))
	}
	return res, nil
}

type opDropAlpha struct{}

func (opDropAlpha) Name() string { return "drop alpha" }

func (opDropAlpha) StatesAfterConversion(in ColorState, t Target, _ *Options) []StateWithCost {
	if !in.HasAlpha || in.Chroma.IsInterleaved() || !t.excludesAlpha() {
		return nil
	}
	out := in
	out.HasAlpha = false
	return []StateWithCost{{out, CostTrivial}}
}

func (opDropAlpha) Convert(img *pixels.Image, _, out ColorState, _ *Options) (*pixels.Image, error) {
	res, err := copyPlanes(img, out, pixels.ChannelAlpha)
	if err != nil {
		return nil, err
	}
	res.PremultipliedAlpha = false
	return res, nil
}

type opAddAlpha struct{}

func (opAddAlpha) Name() string { return "add opaque alpha" }

func (opAddAlpha) StatesAfterConversion(in ColorState, t Target, _ *Options) []StateWithCost {
	if in.HasAlpha || in.Chroma.IsInterleaved() || !t.requiresAlpha() {
		return nil
	}
	out := in
	out.HasAlpha = true
	return []StateWithCost{{out, CostUnoptimized}}
}

func (opAddAlpha) Convert(img *pixels.Image, in, out ColorState, _ *Options) (*pixels.Image, error) {
	res, err := copyPlanes(img, out)
	if err != nil {
		return nil, err
	}
	a, err := res.AddPlane(pixels.ChannelAlpha, img.Width(), img.Height(), in.BitsPerPixel)
	if err != nil {
		return nil, err
	}
	opaque := a.MaxValue()
	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			a.Set(x, y, opaque)
		}
	}
	return res, nil
}
