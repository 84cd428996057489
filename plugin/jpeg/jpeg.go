// Package jpeg provides a JPEG decoder and encoder plugin on top of the
// standard library codec.
package jpeg

import (
	"bytes"
	"context"
	stdjpeg "image/jpeg"

	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
	"github.com/tetsuo/heif/plugin"
)

// Priority of the built-in JPEG plugins.
const Priority = 100

var (
	_ plugin.Decoder = (*Decoder)(nil)
	_ plugin.Encoder = (*Encoder)(nil)
)

// Decoder decodes JPEG coded items.
type Decoder struct{}

// NewDecoder returns the JPEG decoder.
func NewDecoder() *Decoder { return &Decoder{} }

func (*Decoder) Name() string { return "jpeg" }

func (*Decoder) SupportsFormat(f plugin.CompressionFormat) int {
	if f == plugin.FormatJPEG {
		return Priority
	}
	return 0
}

func (*Decoder) Decode(ctx context.Context, data []byte, p plugin.DecodeParams) (*pixels.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := stdjpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, heiferr.Wrap(heiferr.DecoderPluginError, heiferr.Unspecified, err, "jpeg")
	}
	img, err := pixels.FromImage(src)
	if err != nil {
		return nil, err
	}
	if p.Logger != nil {
		p.Logger.Debug("jpeg: decoded", "width", img.Width(), "height", img.Height(), "chroma", img.Chroma())
	}
	return img, nil
}

// Encoder encodes images as baseline JPEG.
type Encoder struct{}

// NewEncoder returns the JPEG encoder.
func NewEncoder() *Encoder { return &Encoder{} }

func (*Encoder) Name() string                                { return "jpeg" }
func (*Encoder) CompressionFormat() plugin.CompressionFormat { return plugin.FormatJPEG }
func (*Encoder) Priority() int                               { return Priority }

// InputFormat is 8-bit YCbCr 4:2:0, or monochrome for gray images.
func (*Encoder) InputFormat(img *pixels.Image) plugin.InputFormat {
	if img.Colorspace() == pixels.ColorspaceMonochrome {
		return plugin.InputFormat{Colorspace: pixels.ColorspaceMonochrome, Chroma: pixels.ChromaMonochrome, BitsPerPixel: 8}
	}
	return plugin.InputFormat{Colorspace: pixels.ColorspaceYCbCr, Chroma: pixels.Chroma420, BitsPerPixel: 8}
}

func (*Encoder) Encode(ctx context.Context, img *pixels.Image, p plugin.EncodeParams) (*plugin.EncodedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := img.ToImage()
	if err != nil {
		return nil, err
	}
	q := p.Quality
	if p.Lossless {
		q = 100
	}
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	var buf bytes.Buffer
	if err := stdjpeg.Encode(&buf, src, &stdjpeg.Options{Quality: q}); err != nil {
		return nil, heiferr.Wrap(heiferr.EncoderPluginError, heiferr.Unspecified, err, "jpeg")
	}
	return &plugin.EncodedImage{Data: buf.Bytes()}, nil
}
