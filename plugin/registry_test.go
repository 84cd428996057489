package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
)

type fakeDecoder struct {
	name     string
	formats  map[CompressionFormat]int
	initErr  error
	initRuns int
}

func (d *fakeDecoder) Name() string { return d.name }
func (d *fakeDecoder) SupportsFormat(f CompressionFormat) int {
	return d.formats[f]
}
func (d *fakeDecoder) Decode(context.Context, []byte, DecodeParams) (*pixels.Image, error) {
	return nil, nil
}
func (d *fakeDecoder) Init() error {
	d.initRuns++
	return d.initErr
}

type fakeEncoder struct {
	name     string
	format   CompressionFormat
	priority int
}

func (e *fakeEncoder) Name() string                         { return e.name }
func (e *fakeEncoder) CompressionFormat() CompressionFormat { return e.format }
func (e *fakeEncoder) Priority() int                        { return e.priority }
func (e *fakeEncoder) InputFormat(*pixels.Image) InputFormat {
	return InputFormat{Colorspace: pixels.ColorspaceYCbCr, Chroma: pixels.Chroma420, BitsPerPixel: 8}
}
func (e *fakeEncoder) Encode(context.Context, *pixels.Image, EncodeParams) (*EncodedImage, error) {
	return &EncodedImage{}, nil
}

func TestDecoderLookup(t *testing.T) {
	low := &fakeDecoder{name: "low", formats: map[CompressionFormat]int{FormatHEVC: 10}}
	high := &fakeDecoder{name: "high", formats: map[CompressionFormat]int{FormatHEVC: 50, FormatAV1: 20}}

	r := NewRegistry()
	for _, d := range []*fakeDecoder{low, high} {
		if err := r.RegisterDecoder(d); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		format CompressionFormat
		lookup string
		want   Decoder
	}{
		{"highest priority", FormatHEVC, "", high},
		{"name overrides priority", FormatHEVC, "low", low},
		{"named decoder lacking format", FormatAV1, "low", high},
		{"unknown name", FormatHEVC, "none", high},
		{"unsupported format", FormatJPEG, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Decoder(tt.format, tt.lookup)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegisterDecoderRunsInit(t *testing.T) {
	r := NewRegistry()
	d := &fakeDecoder{name: "d", formats: map[CompressionFormat]int{FormatJPEG: 1}}
	if err := r.RegisterDecoder(d); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterDecoder(d); err != nil {
		t.Fatal(err)
	}
	if d.initRuns != 1 {
		t.Errorf("Init ran %d times", d.initRuns)
	}
	if n := len(r.Decoders()); n != 1 {
		t.Errorf("%d decoders registered", n)
	}

	broken := &fakeDecoder{name: "broken", formats: map[CompressionFormat]int{FormatJPEG: 99}, initErr: errors.New("no backend")}
	err := r.RegisterDecoder(broken)
	if !errors.Is(err, &heiferr.Error{Code: heiferr.PluginLoadingError}) {
		t.Fatalf("got %v", err)
	}
	if r.Decoder(FormatJPEG, "") != d {
		t.Error("failed plugin became visible")
	}
}

func TestEncoderOrder(t *testing.T) {
	r := NewRegistry()
	encs := []*fakeEncoder{
		{"a", FormatHEVC, 10},
		{"b", FormatJPEG, 50},
		{"c", FormatHEVC, 50},
		{"d", FormatHEVC, 10},
		{"e", FormatAV1, 30},
	}
	for _, e := range encs {
		if err := r.RegisterEncoder(e); err != nil {
			t.Fatal(err)
		}
	}

	names := func(ds []*EncoderDescriptor) string {
		s := ""
		for _, d := range ds {
			s += d.Name
		}
		return s
	}
	if got := names(r.EncoderDescriptors(FormatUndefined, "")); got != "bcead" {
		t.Errorf("all encoders = %q", got)
	}
	if got := names(r.EncoderDescriptors(FormatHEVC, "")); got != "cad" {
		t.Errorf("HEVC encoders = %q", got)
	}
	if got := names(r.EncoderDescriptors(FormatHEVC, "d")); got != "d" {
		t.Errorf("filtered = %q", got)
	}
	if r.Encoder(FormatAVC, "") != nil {
		t.Error("AVC encoder found")
	}
	if r.Encoder(FormatHEVC, "") != encs[2] {
		t.Error("wrong default HEVC encoder")
	}
}

// valueDecoder is a non-comparable decoder registered by value.
type valueDecoder struct {
	formats []CompressionFormat
}

func (valueDecoder) Name() string { return "value" }
func (d valueDecoder) SupportsFormat(f CompressionFormat) int {
	for _, have := range d.formats {
		if have == f {
			return 10
		}
	}
	return 0
}
func (valueDecoder) Decode(context.Context, []byte, DecodeParams) (*pixels.Image, error) {
	return nil, nil
}

func TestRegisterDecoderByName(t *testing.T) {
	r := NewRegistry()
	for range 2 {
		if err := r.RegisterDecoder(valueDecoder{formats: []CompressionFormat{FormatAV1}}); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(r.Decoders()); n != 1 {
		t.Fatalf("decoders = %d, want 1", n)
	}
	if r.Decoder(FormatAV1, "") == nil {
		t.Error("value decoder not found")
	}
}
