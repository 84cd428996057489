// Package pixels holds decoded images: one plane per channel, each plane with
// its own size and bit depth.
package pixels

import "fmt"

// Colorspace of an image.
type Colorspace int

const (
	ColorspaceUndefined Colorspace = iota
	ColorspaceYCbCr
	ColorspaceRGB
	ColorspaceMonochrome
)

func (c Colorspace) String() string {
	switch c {
	case ColorspaceUndefined:
		return "undefined"
	case ColorspaceYCbCr:
		return "YCbCr"
	case ColorspaceRGB:
		return "RGB"
	case ColorspaceMonochrome:
		return "monochrome"
	}
	return fmt.Sprintf("colorspace(%d)", int(c))
}

// Chroma describes the sampling layout of the image planes.
type Chroma int

const (
	ChromaUndefined Chroma = iota
	ChromaMonochrome
	Chroma420
	Chroma422
	Chroma444
	ChromaInterleavedRGB
	ChromaInterleavedRGBA
	ChromaInterleavedRRGGBBBE
	ChromaInterleavedRRGGBBAABE
	ChromaInterleavedRRGGBBLE
	ChromaInterleavedRRGGBBAALE
)

var chromaNames = [...]string{
	ChromaUndefined:             "undefined",
	ChromaMonochrome:            "monochrome",
	Chroma420:                   "4:2:0",
	Chroma422:                   "4:2:2",
	Chroma444:                   "4:4:4",
	ChromaInterleavedRGB:        "RGB",
	ChromaInterleavedRGBA:       "RGBA",
	ChromaInterleavedRRGGBBBE:   "RRGGBB_BE",
	ChromaInterleavedRRGGBBAABE: "RRGGBBAA_BE",
	ChromaInterleavedRRGGBBLE:   "RRGGBB_LE",
	ChromaInterleavedRRGGBBAALE: "RRGGBBAA_LE",
}

func (c Chroma) String() string {
	if c >= 0 && int(c) < len(chromaNames) {
		return chromaNames[c]
	}
	return fmt.Sprintf("chroma(%d)", int(c))
}

// IsInterleaved reports whether all components live in one ChannelInterleaved plane.
func (c Chroma) IsInterleaved() bool {
	return c >= ChromaInterleavedRGB && c <= ChromaInterleavedRRGGBBAALE
}

// InterleavedHasAlpha reports whether an interleaved layout carries an alpha component.
func (c Chroma) InterleavedHasAlpha() bool {
	return c == ChromaInterleavedRGBA || c == ChromaInterleavedRRGGBBAABE || c == ChromaInterleavedRRGGBBAALE
}

// IsHDRInterleaved reports whether components are stored in two bytes.
func (c Chroma) IsHDRInterleaved() bool {
	return c >= ChromaInterleavedRRGGBBBE && c <= ChromaInterleavedRRGGBBAALE
}

// IsBigEndian reports whether two-byte interleaved components are big endian.
func (c Chroma) IsBigEndian() bool {
	return c == ChromaInterleavedRRGGBBBE || c == ChromaInterleavedRRGGBBAABE
}

// InterleavedComponents returns the number of components per interleaved pixel.
func (c Chroma) InterleavedComponents() int {
	switch {
	case !c.IsInterleaved():
		return 0
	case c.InterleavedHasAlpha():
		return 4
	}
	return 3
}

// Subsampling returns the horizontal and vertical chroma shift.
func (c Chroma) Subsampling() (h, v int) {
	switch c {
	case Chroma420:
		return 1, 1
	case Chroma422:
		return 1, 0
	}
	return 0, 0
}

// ChromaPlaneSize returns the size of the Cb and Cr planes for an image of w x h.
func ChromaPlaneSize(c Chroma, w, h int) (int, int) {
	sh, sv := c.Subsampling()
	return (w + (1 << sh) - 1) >> sh, (h + (1 << sv) - 1) >> sv
}

// Channel identifies an image plane.
type Channel int

const (
	ChannelY Channel = iota
	ChannelCb
	ChannelCr
	ChannelR
	ChannelG
	ChannelB
	ChannelAlpha
	ChannelInterleaved
)

var channelNames = [...]string{"Y", "Cb", "Cr", "R", "G", "B", "alpha", "interleaved"}

func (c Channel) String() string {
	if c >= 0 && int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Code points from ISO/IEC 23091-2.
const (
	MatrixRGB         = 0
	MatrixBT709       = 1
	MatrixUnspecified = 2
	MatrixBT470BG     = 5
	MatrixBT601       = 6
	MatrixBT2020NCL   = 9

	PrimariesBT709       = 1
	PrimariesUnspecified = 2

	TransferSRGB = 13
)

// NCLX is an on-screen color profile described by code points.
type NCLX struct {
	ColourPrimaries         uint16
	TransferCharacteristics uint16
	MatrixCoefficients      uint16
	FullRange               bool
}

// DefaultNCLX is the profile assumed when a file carries none: sRGB with
// BT.601 full range YCbCr.
func DefaultNCLX() *NCLX {
	return &NCLX{
		ColourPrimaries:         PrimariesBT709,
		TransferCharacteristics: TransferSRGB,
		MatrixCoefficients:      MatrixBT601,
		FullRange:               true,
	}
}

// KrKb returns the luma weights of the red and blue components for the
// profile's matrix coefficients.
func (n *NCLX) KrKb() (float32, float32) {
	if n == nil {
		return 0.299, 0.114
	}
	switch n.MatrixCoefficients {
	case MatrixBT709:
		return 0.2126, 0.0722
	case MatrixBT2020NCL:
		return 0.2627, 0.0593
	}
	return 0.299, 0.114
}
