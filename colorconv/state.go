// Package colorconv converts images between pixel representations by searching
// the cheapest chain of atomic conversion operations.
package colorconv

import (
	"fmt"

	"github.com/tetsuo/heif/pixels"
)

// ColorState describes the pixel format of an image.
type ColorState struct {
	Colorspace   pixels.Colorspace
	Chroma       pixels.Chroma
	HasAlpha     bool
	BitsPerPixel int
}

func (s ColorState) String() string {
	a := ""
	if s.HasAlpha {
		a = "+alpha"
	}
	return fmt.Sprintf("%v %v%s %dbit", s.Colorspace, s.Chroma, a, s.BitsPerPixel)
}

// StateOf returns the ColorState of img.
func StateOf(img *pixels.Image) ColorState {
	return ColorState{
		Colorspace:   img.Colorspace(),
		Chroma:       img.Chroma(),
		HasAlpha:     img.HasAlpha(),
		BitsPerPixel: img.LumaBitDepth(),
	}
}

// AlphaMode constrains alpha presence in a Target.
type AlphaMode int

const (
	AlphaAny AlphaMode = iota
	AlphaRequired
	AlphaNone
)

// Target is a possibly under-specified ColorState. Zero fields mean "any".
type Target struct {
	Colorspace   pixels.Colorspace
	Chroma       pixels.Chroma
	Alpha        AlphaMode
	BitsPerPixel int
}

// TargetOf returns a target matching exactly s.
func TargetOf(s ColorState) Target {
	t := Target{Colorspace: s.Colorspace, Chroma: s.Chroma, BitsPerPixel: s.BitsPerPixel, Alpha: AlphaNone}
	if s.HasAlpha {
		t.Alpha = AlphaRequired
	}
	return t
}

// Satisfied reports whether s meets every specified field of t.
func (t Target) Satisfied(s ColorState) bool {
	if t.Colorspace != pixels.ColorspaceUndefined && t.Colorspace != s.Colorspace {
		return false
	}
	if t.Chroma != pixels.ChromaUndefined && t.Chroma != s.Chroma {
		return false
	}
	if t.BitsPerPixel != 0 && t.BitsPerPixel != s.BitsPerPixel {
		return false
	}
	switch t.Alpha {
	case AlphaRequired:
		return s.HasAlpha
	case AlphaNone:
		return !s.HasAlpha
	}
	return true
}

// requiresAlpha reports whether the target cannot be met without alpha.
func (t Target) requiresAlpha() bool {
	return t.Alpha == AlphaRequired || t.Chroma.InterleavedHasAlpha()
}

// excludesAlpha reports whether the target explicitly does not want alpha.
func (t Target) excludesAlpha() bool {
	return t.Alpha == AlphaNone || (t.Chroma.IsInterleaved() && !t.Chroma.InterleavedHasAlpha())
}

// wantsRGB reports whether the target needs an RGB colorspace.
func (t Target) wantsRGB() bool {
	return t.Colorspace == pixels.ColorspaceRGB || t.Chroma.IsInterleaved()
}

// Cost is the relative price of one conversion step.
type Cost int

const (
	CostTrivial     Cost = 1
	CostOptimized   Cost = 4
	CostUnoptimized Cost = 10
	CostSlow        Cost = 20

	// costNotPreferred is added to chroma resampling with a non-preferred algorithm.
	costNotPreferred Cost = 1
)

// StateWithCost is a state reachable in one step.
type StateWithCost struct {
	State ColorState
	Cost  Cost
}

// ChromaDownsampling selects the 4:4:4 to 4:2:x algorithm.
type ChromaDownsampling int

const (
	DownsamplingAverage ChromaDownsampling = iota
	DownsamplingNearestNeighbor
)

// ChromaUpsampling selects the 4:2:x to 4:4:4 algorithm.
type ChromaUpsampling int

const (
	UpsamplingBilinear ChromaUpsampling = iota
	UpsamplingNearestNeighbor
)

// OptionsVersion is the current version of Options.
const OptionsVersion = 1

// Options tunes the choice of conversion operations.
type Options struct {
	Version int

	// Version 1.
	PreferredChromaDownsampling     ChromaDownsampling
	PreferredChromaUpsampling       ChromaUpsampling
	OnlyUsePreferredChromaAlgorithm bool
}

// DefaultOptions returns options at the current version.
func DefaultOptions() *Options {
	return &Options{
		Version:                     OptionsVersion,
		PreferredChromaDownsampling: DownsamplingAverage,
		PreferredChromaUpsampling:   UpsamplingBilinear,
	}
}

// CopyOptions copies the fields of src that exist at src.Version into dst.
func CopyOptions(dst, src *Options) {
	if src == nil || dst == nil {
		return
	}
	if src.Version >= 1 {
		dst.PreferredChromaDownsampling = src.PreferredChromaDownsampling
		dst.PreferredChromaUpsampling = src.PreferredChromaUpsampling
		dst.OnlyUsePreferredChromaAlgorithm = src.OnlyUsePreferredChromaAlgorithm
	}
}
