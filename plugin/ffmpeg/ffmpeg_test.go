package ffmpeg

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
	"github.com/tetsuo/heif/plugin"
)

func TestPixelFormat(t *testing.T) {
	tests := []struct {
		chroma pixels.Chroma
		bits   int
		want   string
	}{
		{pixels.Chroma420, 8, "yuv420p"},
		{pixels.Chroma420, 10, "yuv420p10le"},
		{pixels.Chroma444, 12, "yuv444p12le"},
		{pixels.ChromaMonochrome, 10, "gray10le"},
	}
	for _, tt := range tests {
		got, err := pixelFormat(tt.chroma, tt.bits)
		if err != nil || got != tt.want {
			t.Errorf("pixelFormat(%v, %d) = %q, %v; want %q", tt.chroma, tt.bits, got, err, tt.want)
		}
	}
	if _, err := pixelFormat(pixels.Chroma420, 9); !errors.Is(err, &heiferr.Error{Code: heiferr.UnsupportedFeature}) {
		t.Errorf("9 bit: %v", err)
	}
	if _, err := pixelFormat(pixels.ChromaInterleavedRGB, 8); err == nil {
		t.Error("interleaved accepted")
	}
}

func TestArgs(t *testing.T) {
	d := NewDecoder()
	args := d.args("yuv420p", 4)
	if i := slices.Index(args, "-threads"); i < 0 || args[i+1] != "4" {
		t.Errorf("threads missing: %v", args)
	}
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("output not piped: %v", args)
	}
	if slices.Contains(d.args("yuv420p", 0), "-threads") {
		t.Error("threads passed without a hint")
	}
}

func TestUnavailableUntilInit(t *testing.T) {
	d := &Decoder{Binary: "ffmpeg-binary-that-does-not-exist"}
	if d.SupportsFormat(plugin.FormatHEVC) != 0 {
		t.Error("supports HEVC before Init")
	}
	if err := d.Init(); err == nil {
		t.Fatal("Init found a missing binary")
	}
	if d.SupportsFormat(plugin.FormatHEVC) != 0 {
		t.Error("supports HEVC after failed Init")
	}
}

func TestDecodeNeedsParameterSets(t *testing.T) {
	d := NewDecoder()
	_, err := d.Decode(context.Background(), []byte{0, 0, 0, 2, 0x40, 0x01}, plugin.DecodeParams{Width: 8, Height: 8})
	if heiferr.SubCodeOf(err) != heiferr.EndOfData {
		t.Fatalf("got %v", err)
	}
}

func TestUnpackPlanes(t *testing.T) {
	raw := make([]byte, 4*2+2*1*2)
	for i := range raw {
		raw[i] = byte(i)
	}
	img, err := unpackPlanes(raw, 4, 2, pixels.Chroma420, 8)
	if err != nil {
		t.Fatal(err)
	}
	if img.Plane(pixels.ChannelCr).Data[1] != 11 {
		t.Errorf("Cr = %v", img.Plane(pixels.ChannelCr).Data)
	}
	if _, err := unpackPlanes(raw[:5], 4, 2, pixels.Chroma420, 8); err == nil {
		t.Error("short output accepted")
	}
}
