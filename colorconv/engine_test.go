package colorconv

import (
	"errors"
	"testing"

	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
)

func newYCbCr(t *testing.T, w, h int, chroma pixels.Chroma, bits int, y, cb, cr uint16, alpha bool) *pixels.Image {
	t.Helper()
	img, err := pixels.NewImage(w, h, pixels.ColorspaceYCbCr, chroma)
	if err != nil {
		t.Fatal(err)
	}
	fill := func(c pixels.Channel, pw, ph int, v uint16) {
		p, err := img.AddPlane(c, pw, ph, bits)
		if err != nil {
			t.Fatal(err)
		}
		for yy := 0; yy < ph; yy++ {
			for xx := 0; xx < pw; xx++ {
				p.Set(xx, yy, v)
			}
		}
	}
	cw, ch := pixels.ChromaPlaneSize(chroma, w, h)
	fill(pixels.ChannelY, w, h, y)
	fill(pixels.ChannelCb, cw, ch, cb)
	fill(pixels.ChannelCr, cw, ch, cr)
	if alpha {
		fill(pixels.ChannelAlpha, w, h, uint16(1)<<bits-1)
	}
	return img
}

func TestBitDepthSamples(t *testing.T) {
	tests := []struct {
		v    uint8
		bits int
		want uint16
	}{
		{0, 10, 0},
		{255, 10, 1023},
		{128, 10, 514},
		{255, 12, 4095},
		{255, 16, 65535},
		{1, 16, 257},
	}
	for _, tt := range tests {
		if got := PromoteSample(tt.v, tt.bits); got != tt.want {
			t.Errorf("PromoteSample(%d, %d) = %d, want %d", tt.v, tt.bits, got, tt.want)
		}
	}
	if got := DemoteSample(1023, 10); got != 255 {
		t.Errorf("DemoteSample(1023, 10) = %d", got)
	}
	if got := DemoteSample(515, 10); got != 128 {
		t.Errorf("DemoteSample(515, 10) = %d, want truncation to 128", got)
	}
}

func TestPromoteThenDemoteRestores(t *testing.T) {
	for bits := 9; bits <= 16; bits++ {
		for v := 0; v < 256; v++ {
			if got := DemoteSample(PromoteSample(uint8(v), bits), bits); got != uint8(v) {
				t.Fatalf("bits %d: %d -> %d", bits, v, got)
			}
		}
	}
}

func TestDemoteThenPromoteIsLossy(t *testing.T) {
	const orig = 513
	back := PromoteSample(DemoteSample(orig, 10), 10)
	if back == orig {
		t.Fatalf("demote then promote restored %d", orig)
	}
}

func TestPlanBitDepthRoundTrip(t *testing.T) {
	img := newYCbCr(t, 4, 4, pixels.Chroma444, 8, 200, 100, 50, false)
	hdr, err := Convert(img, Target{BitsPerPixel: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.BitDepth(pixels.ChannelY) != 10 || hdr.Plane(pixels.ChannelY).At(0, 0) != PromoteSample(200, 10) {
		t.Fatalf("promoted sample %d", hdr.Plane(pixels.ChannelY).At(0, 0))
	}
	sdr, err := Convert(hdr, Target{BitsPerPixel: 8}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []pixels.Channel{pixels.ChannelY, pixels.ChannelCb, pixels.ChannelCr} {
		if sdr.Plane(c).At(3, 3) != img.Plane(c).At(3, 3) {
			t.Errorf("%v: %d != %d", c, sdr.Plane(c).At(3, 3), img.Plane(c).At(3, 3))
		}
	}
}

func TestConvertToInterleavedRGBA(t *testing.T) {
	img := newYCbCr(t, 5, 3, pixels.Chroma420, 8, 128, 128, 128, false)
	target := Target{Colorspace: pixels.ColorspaceRGB, Chroma: pixels.ChromaInterleavedRGBA}

	out, err := Convert(img, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := StateOf(out); !target.Satisfied(got) {
		t.Fatalf("state %v does not satisfy target", got)
	}
	p := out.Plane(pixels.ChannelInterleaved)
	row := p.Row(2)
	want := []byte{128, 128, 128, 255}
	for i, v := range want {
		if row[16+i] != v {
			t.Fatalf("pixel (4,2) = %v, want %v", row[16:20], want)
		}
	}
}

func TestReachableTargetsMatchExactly(t *testing.T) {
	inputs := []ColorState{
		{pixels.ColorspaceYCbCr, pixels.Chroma420, false, 8},
		{pixels.ColorspaceYCbCr, pixels.Chroma422, true, 10},
		{pixels.ColorspaceMonochrome, pixels.ChromaMonochrome, false, 8},
		{pixels.ColorspaceRGB, pixels.ChromaInterleavedRGBA, true, 8},
	}
	targets := []Target{
		{Colorspace: pixels.ColorspaceRGB, Chroma: pixels.ChromaInterleavedRGB},
		{Colorspace: pixels.ColorspaceRGB, Chroma: pixels.ChromaInterleavedRGBA},
		{Colorspace: pixels.ColorspaceYCbCr, Chroma: pixels.Chroma420, BitsPerPixel: 8, Alpha: AlphaNone},
		{Colorspace: pixels.ColorspaceRGB, Chroma: pixels.Chroma444, BitsPerPixel: 12},
		{Colorspace: pixels.ColorspaceMonochrome, Chroma: pixels.ChromaMonochrome},
	}
	for _, in := range inputs {
		for _, target := range targets {
			p, err := DefaultEngine().Plan(in, target, nil)
			if err != nil {
				t.Errorf("%v -> %s: %v", in, targetString(target), err)
				continue
			}
			if p.Len() > 0 && !target.Satisfied(p.steps[len(p.steps)-1].out) {
				t.Errorf("%v -> %s: plan ends in %v", in, targetString(target), p.steps[len(p.steps)-1].out)
			}
		}
	}
}

func TestPlanDeterministic(t *testing.T) {
	in := ColorState{pixels.ColorspaceYCbCr, pixels.Chroma420, true, 10}
	target := Target{Colorspace: pixels.ColorspaceRGB, Chroma: pixels.ChromaInterleavedRGB}
	first, err := DefaultEngine().Plan(in, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	for range 20 {
		p, err := DefaultEngine().Plan(in, target, nil)
		if err != nil {
			t.Fatal(err)
		}
		if p.String() != first.String() {
			t.Fatalf("plan changed: %q vs %q", p, first)
		}
	}
}

func TestDropAlphaOnlyWhenExcluded(t *testing.T) {
	op := opDropAlpha{}
	withAlpha := ColorState{pixels.ColorspaceYCbCr, pixels.Chroma444, true, 8}
	noAlpha := withAlpha
	noAlpha.HasAlpha = false

	if got := op.StatesAfterConversion(withAlpha, Target{Alpha: AlphaAny}, DefaultOptions()); got != nil {
		t.Errorf("dropped alpha for an indifferent target: %v", got)
	}
	if got := op.StatesAfterConversion(withAlpha, Target{Alpha: AlphaRequired}, DefaultOptions()); got != nil {
		t.Errorf("dropped alpha for a target requiring it: %v", got)
	}
	if got := op.StatesAfterConversion(noAlpha, Target{Alpha: AlphaNone}, DefaultOptions()); got != nil {
		t.Errorf("dropped alpha from a source without it: %v", got)
	}
	got := op.StatesAfterConversion(withAlpha, Target{Alpha: AlphaNone}, DefaultOptions())
	if len(got) != 1 || got[0].State != noAlpha || got[0].Cost != CostTrivial {
		t.Errorf("got %v", got)
	}

	img := newYCbCr(t, 2, 2, pixels.Chroma444, 8, 10, 20, 30, true)
	out, err := Convert(img, Target{Alpha: AlphaAny}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.HasAlpha() {
		t.Error("alpha lost without being excluded")
	}
}

func TestPreferredChromaAlgorithm(t *testing.T) {
	in := ColorState{pixels.ColorspaceYCbCr, pixels.Chroma420, false, 8}
	target := Target{Colorspace: pixels.ColorspaceYCbCr, Chroma: pixels.Chroma444}

	opts := DefaultOptions()
	opts.PreferredChromaUpsampling = UpsamplingNearestNeighbor
	p, err := DefaultEngine().Plan(in, target, opts)
	if err != nil {
		t.Fatal(err)
	}
	if p.String() != "chroma upsampling (nearest neighbour)" {
		t.Errorf("plan %q", p)
	}

	engine := NewEngine(opChromaUpsample{alg: UpsamplingBilinear})
	opts.OnlyUsePreferredChromaAlgorithm = true
	if _, err := engine.Plan(in, target, opts); !errors.Is(err, heiferr.ErrUnsupportedColorConversion) {
		t.Errorf("expected no path, got %v", err)
	}
	opts.OnlyUsePreferredChromaAlgorithm = false
	if _, err := engine.Plan(in, target, opts); err != nil {
		t.Errorf("soft preference should fall back: %v", err)
	}
}

func TestNoPath(t *testing.T) {
	in := ColorState{pixels.ColorspaceYCbCr, pixels.Chroma420, false, 8}
	_, err := DefaultEngine().Plan(in, Target{Colorspace: pixels.ColorspaceRGB, Chroma: pixels.Chroma420}, nil)
	if !errors.Is(err, heiferr.ErrUnsupportedColorConversion) {
		t.Fatalf("got %v", err)
	}
}

func TestChromaRoundTrip(t *testing.T) {
	img := newYCbCr(t, 6, 4, pixels.Chroma420, 8, 90, 60, 200, false)
	full, err := Convert(img, Target{Colorspace: pixels.ColorspaceYCbCr, Chroma: pixels.Chroma444}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p := full.Plane(pixels.ChannelCb); p.Width != 6 || p.At(5, 3) != 60 {
		t.Fatalf("upsampled plane %dx%d sample %d", p.Width, p.Height, p.At(5, 3))
	}
	sub, err := Convert(full, Target{Colorspace: pixels.ColorspaceYCbCr, Chroma: pixels.Chroma420}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p := sub.Plane(pixels.ChannelCr); p.Width != 3 || p.Height != 2 || p.At(2, 1) != 200 {
		t.Fatalf("downsampled plane %dx%d sample %d", p.Width, p.Height, p.At(2, 1))
	}
}

func TestRGBYCbCrRoundTrip(t *testing.T) {
	img, _ := pixels.NewImage(1, 1, pixels.ColorspaceRGB, pixels.Chroma444)
	for c, v := range map[pixels.Channel]uint16{pixels.ChannelR: 200, pixels.ChannelG: 30, pixels.ChannelB: 90} {
		p, _ := img.AddPlane(c, 1, 1, 8)
		p.Set(0, 0, v)
	}
	ycc, err := Convert(img, Target{Colorspace: pixels.ColorspaceYCbCr, Chroma: pixels.Chroma444}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rgb, err := Convert(ycc, Target{Colorspace: pixels.ColorspaceRGB, Chroma: pixels.Chroma444}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for c, want := range map[pixels.Channel]int{pixels.ChannelR: 200, pixels.ChannelG: 30, pixels.ChannelB: 90} {
		got := int(rgb.Plane(c).At(0, 0))
		if got < want-1 || got > want+1 {
			t.Errorf("%v = %d, want %d±1", c, got, want)
		}
	}
}

func TestCopyOptions(t *testing.T) {
	dst := DefaultOptions()
	CopyOptions(dst, &Options{Version: 0, OnlyUsePreferredChromaAlgorithm: true})
	if dst.OnlyUsePreferredChromaAlgorithm {
		t.Error("version 0 record overwrote a version 1 field")
	}
	CopyOptions(dst, &Options{Version: 1, PreferredChromaDownsampling: DownsamplingNearestNeighbor})
	if dst.PreferredChromaDownsampling != DownsamplingNearestNeighbor {
		t.Error("version 1 field not copied")
	}
}
