package colorconv

import (
	"encoding/binary"
	"fmt"

	"github.com/tetsuo/heif/pixels"
)

func interleavedChroma(alpha, hdr, bigEndian bool) pixels.Chroma {
	switch {
	case !hdr && !alpha:
		return pixels.ChromaInterleavedRGB
	case !hdr:
		return pixels.ChromaInterleavedRGBA
	case bigEndian && alpha:
		return pixels.ChromaInterleavedRRGGBBAABE
	case bigEndian:
		return pixels.ChromaInterleavedRRGGBBBE
	case alpha:
		return pixels.ChromaInterleavedRRGGBBAALE
	}
	return pixels.ChromaInterleavedRRGGBBLE
}

type opPlanarToInterleaved struct{}

func (opPlanarToInterleaved) Name() string { return "planar RGB to interleaved" }

func (opPlanarToInterleaved) StatesAfterConversion(in ColorState, t Target, _ *Options) []StateWithCost {
	if in.Colorspace != pixels.ColorspaceRGB || in.Chroma != pixels.Chroma444 || !t.Chroma.IsInterleaved() {
		return nil
	}
	hdr := in.BitsPerPixel > 8
	if hdr != t.Chroma.IsHDRInterleaved() {
		return nil
	}
	out := in
	out.Chroma = interleavedChroma(in.HasAlpha, hdr, t.Chroma.IsBigEndian())
	return []StateWithCost{{out, CostOptimized}}
}

func (opPlanarToInterleaved) Convert(img *pixels.Image, in, out ColorState, _ *Options) (*pixels.Image, error) {
	res, err := img.NewSibling(img.Width(), img.Height(), out.Colorspace, out.Chroma)
	if err != nil {
		return nil, err
	}
	dst, err := res.AddPlane(pixels.ChannelInterleaved, img.Width(), img.Height(), in.BitsPerPixel)
	if err != nil {
		return nil, err
	}
	channels := []pixels.Channel{pixels.ChannelR, pixels.ChannelG, pixels.ChannelB}
	if out.HasAlpha {
		channels = append(channels, pixels.ChannelAlpha)
	}
	srcs := make([]*pixels.Plane, len(channels))
	for i, c := range channels {
		if srcs[i] = img.Plane(c); srcs[i] == nil {
			return nil, fmt.Errorf("colorconv: missing %v plane", c)
		}
	}

	n := len(channels)
	hdr := out.Chroma.IsHDRInterleaved()
	var order binary.ByteOrder = binary.LittleEndian
	if out.Chroma.IsBigEndian() {
		order = binary.BigEndian
	}
	for y := 0; y < dst.Height; y++ {
		row := dst.Row(y)
		for x := 0; x < dst.Width; x++ {
			for i, p := range srcs {
				if hdr {
					order.PutUint16(row[(x*n+i)*2:], p.At(x, y))
				} else {
					row[x*n+i] = uint8(p.At(x, y))
				}
			}
		}
	}
	return res, nil
}

type opInterleavedToPlanar struct{}

func (opInterleavedToPlanar) Name() string { return "interleaved to planar RGB" }

func (opInterleavedToPlanar) StatesAfterConversion(in ColorState, _ Target, _ *Options) []StateWithCost {
	if !in.Chroma.IsInterleaved() {
		return nil
	}
	out := in
	out.Chroma = pixels.Chroma444
	return []StateWithCost{{out, CostOptimized}}
}

func (opInterleavedToPlanar) Convert(img *pixels.Image, in, out ColorState, _ *Options) (*pixels.Image, error) {
	src := img.Plane(pixels.ChannelInterleaved)
	if src == nil {
		return nil, fmt.Errorf("colorconv: missing interleaved plane")
	}
	res, err := img.NewSibling(img.Width(), img.Height(), out.Colorspace, out.Chroma)
	if err != nil {
		return nil, err
	}
	channels := []pixels.Channel{pixels.ChannelR, pixels.ChannelG, pixels.ChannelB}
	if in.HasAlpha {
		channels = append(channels, pixels.ChannelAlpha)
	}
	dsts := make([]*pixels.Plane, len(channels))
	for i, c := range channels {
		if dsts[i], err = res.AddPlane(c, src.Width, src.Height, src.BitDepth); err != nil {
			return nil, err
		}
	}

	n := len(channels)
	hdr := in.Chroma.IsHDRInterleaved()
	var order binary.ByteOrder = binary.LittleEndian
	if in.Chroma.IsBigEndian() {
		order = binary.BigEndian
	}
	for y := 0; y < src.Height; y++ {
		row := src.Row(y)
		for x := 0; x < src.Width; x++ {
			for i, p := range dsts {
				if hdr {
					p.Set(x, y, order.Uint16(row[(x*n+i)*2:]))
				} else {
					p.Set(x, y, uint16(row[x*n+i]))
				}
			}
		}
	}
	return res, nil
}
