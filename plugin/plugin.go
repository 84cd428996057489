// Package plugin defines codec plugin interfaces and the registry that picks
// a plugin per compression format.
package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tetsuo/heif/pixels"
)

// CompressionFormat identifies an image coding format.
type CompressionFormat int

const (
	FormatUndefined CompressionFormat = iota
	FormatHEVC
	FormatAVC
	FormatJPEG
	FormatAV1
)

func (f CompressionFormat) String() string {
	switch f {
	case FormatUndefined:
		return "undefined"
	case FormatHEVC:
		return "HEVC"
	case FormatAVC:
		return "AVC"
	case FormatJPEG:
		return "JPEG"
	case FormatAV1:
		return "AV1"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// DecodeParams carries per-call decoder settings.
type DecodeParams struct {
	// Threads bounds the decoder's internal parallelism; 0 lets it choose.
	Threads int
	// Width and Height are the image size announced by the container.
	Width, Height int
	// LumaBitDepth and Chroma come from the codec configuration, when known.
	LumaBitDepth int
	Chroma       pixels.Chroma
	Strict       bool
	Logger       *slog.Logger
}

// Decoder decodes one compressed image.
type Decoder interface {
	Name() string

	// SupportsFormat returns the decoder's priority for f, or 0 if it
	// cannot decode f.
	SupportsFormat(f CompressionFormat) int

	// Decode decodes data, which holds the codec configuration followed by
	// the image payload.
	Decode(ctx context.Context, data []byte, p DecodeParams) (*pixels.Image, error)
}

// EncodeParams carries per-call encoder settings.
type EncodeParams struct {
	// Quality ranges from 0 (worst) to 100 (best).
	Quality  int
	Lossless bool
	Threads  int
	Logger   *slog.Logger
}

// EncodedImage is the output of an encoder.
type EncodedImage struct {
	// Data is the item payload.
	Data []byte
	// Config is the payload of the codec configuration box (hvcC, av1C),
	// nil if the format has none.
	Config []byte
}

// InputFormat is the pixel layout an encoder wants.
type InputFormat struct {
	Colorspace   pixels.Colorspace
	Chroma       pixels.Chroma
	BitsPerPixel int
}

// Encoder encodes one image.
type Encoder interface {
	Name() string
	CompressionFormat() CompressionFormat
	Priority() int

	// InputFormat returns the layout img must be converted to before Encode.
	InputFormat(img *pixels.Image) InputFormat

	Encode(ctx context.Context, img *pixels.Image, p EncodeParams) (*EncodedImage, error)
}

// Initializer is implemented by plugins needing one-time setup. Init runs at
// registration; a failing plugin is not registered.
type Initializer interface {
	Init() error
}
