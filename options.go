package heif

import (
	"github.com/tetsuo/heif/colorconv"
	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
)

// SecurityLimits bounds the resources a file may make the library use.
// A zero field disables that limit.
type SecurityLimits struct {
	MaxImageWidth       int
	MaxImageHeight      int
	MaxPixels           int64
	MaxChildrenPerBox   int
	MaxIlocItems        int
	MaxIlocExtents      int
	MaxMemoryBlockBytes int64
}

// DefaultSecurityLimits returns the limits applied by a new Context.
func DefaultSecurityLimits() SecurityLimits {
	return SecurityLimits{
		MaxImageWidth:       32768,
		MaxImageHeight:      32768,
		MaxPixels:           32768 * 32768,
		MaxChildrenPerBox:   20000,
		MaxIlocItems:        20000,
		MaxIlocExtents:      32,
		MaxMemoryBlockBytes: 512 << 20,
	}
}

func (l *SecurityLimits) maxChildren() int {
	if l == nil {
		return 0
	}
	return l.MaxChildrenPerBox
}

func (l *SecurityLimits) maxIlocItems() int {
	if l == nil {
		return 0
	}
	return l.MaxIlocItems
}

func (l *SecurityLimits) maxIlocExtents() int {
	if l == nil {
		return 0
	}
	return l.MaxIlocExtents
}

// checkImageSize validates image dimensions against the limits.
func (l *SecurityLimits) checkImageSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return heiferr.Newf(heiferr.InvalidInput, heiferr.InvalidImageSize, "heif: image size %dx%d", w, h)
	}
	if l == nil {
		return nil
	}
	if (l.MaxImageWidth > 0 && w > l.MaxImageWidth) || (l.MaxImageHeight > 0 && h > l.MaxImageHeight) {
		return heiferr.Newf(heiferr.InvalidInput, heiferr.SecurityLimitExceeded,
			"heif: image size %dx%d exceeds %dx%d", w, h, l.MaxImageWidth, l.MaxImageHeight)
	}
	if l.MaxPixels > 0 && int64(w)*int64(h) > l.MaxPixels {
		return heiferr.Newf(heiferr.InvalidInput, heiferr.SecurityLimitExceeded,
			"heif: %d pixels exceed %d", int64(w)*int64(h), l.MaxPixels)
	}
	return nil
}

func (l *SecurityLimits) checkMemoryBlock(n uint64) error {
	if l != nil && l.MaxMemoryBlockBytes > 0 && n > uint64(l.MaxMemoryBlockBytes) {
		return heiferr.Newf(heiferr.InvalidInput, heiferr.SecurityLimitExceeded,
			"heif: %d byte block exceeds %d", n, l.MaxMemoryBlockBytes)
	}
	return nil
}

func limitError(what string, n, limit int) error {
	return heiferr.Newf(heiferr.InvalidInput, heiferr.SecurityLimitExceeded, "heif: %d %s exceed limit %d", n, what, limit)
}

// ProgressStep names the phase reported to a ProgressHandler.
type ProgressStep int

const (
	ProgressTotal ProgressStep = iota
	ProgressDecode
	ProgressConvert
)

// ProgressHandler receives decoding progress.
type ProgressHandler interface {
	StartProgress(step ProgressStep, max int)
	OnProgress(step ProgressStep, progress int)
	EndProgress(step ProgressStep)
}

// DecodingOptionsVersion is the current version of DecodingOptions.
const DecodingOptionsVersion = 3

// DecodingOptions controls DecodeImage. Fields are grouped by the version
// that introduced them.
type DecodingOptions struct {
	Version int

	// Version 1.
	IgnoreTransformations bool
	Progress              ProgressHandler

	// Version 2.
	ConvertHDRTo8Bit bool

	// Version 3.
	StrictDecoding  bool
	DecoderID       string
	ColorConversion colorconv.Options
}

// NewDecodingOptions returns options at the current version with defaults.
func NewDecodingOptions() *DecodingOptions {
	return &DecodingOptions{
		Version:         DecodingOptionsVersion,
		ColorConversion: *colorconv.DefaultOptions(),
	}
}

// CopyDecodingOptions copies the fields of src that exist at src.Version
// into dst. Newer fields of dst keep their values.
func CopyDecodingOptions(dst, src *DecodingOptions) {
	if dst == nil || src == nil {
		return
	}
	if src.Version >= 1 {
		dst.IgnoreTransformations = src.IgnoreTransformations
		dst.Progress = src.Progress
	}
	if src.Version >= 2 {
		dst.ConvertHDRTo8Bit = src.ConvertHDRTo8Bit
	}
	if src.Version >= 3 {
		dst.StrictDecoding = src.StrictDecoding
		dst.DecoderID = src.DecoderID
		colorconv.CopyOptions(&dst.ColorConversion, &src.ColorConversion)
	}
}

// normalizeDecodingOptions returns defaults overlaid with opts.
func normalizeDecodingOptions(opts *DecodingOptions) *DecodingOptions {
	out := NewDecodingOptions()
	CopyDecodingOptions(out, opts)
	return out
}

// EncodingOptions controls EncodeImage.
type EncodingOptions struct {
	// Quality ranges from 0 to 100.
	Quality  int
	Lossless bool
	// EncoderID selects an encoder by name; empty picks the highest
	// priority one.
	EncoderID string
	// SaveAlpha stores an alpha plane as an auxiliary image.
	SaveAlpha bool
	// NCLX is stored as the image's colr property; nil stores the default.
	NCLX            *pixels.NCLX
	ColorConversion colorconv.Options
}

// NewEncodingOptions returns the default encoding options.
func NewEncodingOptions() *EncodingOptions {
	return &EncodingOptions{
		Quality:         50,
		SaveAlpha:       true,
		ColorConversion: *colorconv.DefaultOptions(),
	}
}
