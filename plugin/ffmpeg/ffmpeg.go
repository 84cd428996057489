// Package ffmpeg decodes HEVC images by piping an Annex-B stream through an
// external ffmpeg binary.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/nal"
	"github.com/tetsuo/heif/pixels"
	"github.com/tetsuo/heif/plugin"
)

// Priority of the ffmpeg decoder.
const Priority = 50

var _ plugin.Decoder = (*Decoder)(nil)

// Decoder runs ffmpeg once per image.
type Decoder struct {
	// Binary is the ffmpeg executable name or path.
	Binary string

	path string
}

// NewDecoder returns a decoder invoking "ffmpeg" from PATH.
func NewDecoder() *Decoder {
	return &Decoder{Binary: "ffmpeg"}
}

func (d *Decoder) Name() string { return "ffmpeg" }

// Init locates the ffmpeg binary.
func (d *Decoder) Init() error {
	p, err := exec.LookPath(d.Binary)
	if err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	d.path = p
	return nil
}

func (d *Decoder) SupportsFormat(f plugin.CompressionFormat) int {
	if f == plugin.FormatHEVC && d.path != "" {
		return Priority
	}
	return 0
}

// pixelFormat returns the ffmpeg rawvideo pixel format for a layout.
func pixelFormat(chroma pixels.Chroma, bits int) (string, error) {
	var base string
	switch chroma {
	case pixels.ChromaMonochrome:
		base = "gray"
	case pixels.Chroma420:
		base = "yuv420p"
	case pixels.Chroma422:
		base = "yuv422p"
	case pixels.Chroma444:
		base = "yuv444p"
	default:
		return "", heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedColorConversion, "ffmpeg: chroma %v", chroma)
	}
	switch {
	case bits == 8:
		return base, nil
	case bits == 10 || bits == 12:
		return base + strconv.Itoa(bits) + "le", nil
	}
	return "", heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedBitDepth, "ffmpeg: %d bit", bits)
}

func (d *Decoder) args(pixfmt string, threads int) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if threads > 0 {
		args = append(args, "-threads", strconv.Itoa(threads))
	}
	return append(args,
		"-f", "hevc", "-i", "pipe:0",
		"-frames:v", "1",
		"-f", "rawvideo", "-pix_fmt", pixfmt, "pipe:1")
}

// Decode expects data to hold the hvcC parameter sets followed by the image
// slices, all as 4-byte length prefixed NAL units.
func (d *Decoder) Decode(ctx context.Context, data []byte, p plugin.DecodeParams) (*pixels.Image, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, heiferr.New(heiferr.UsageError, heiferr.InvalidImageSize, "ffmpeg: image size unknown")
	}
	chroma := p.Chroma
	if chroma == pixels.ChromaUndefined {
		chroma = pixels.Chroma420
	}
	bits := p.LumaBitDepth
	if bits == 0 {
		bits = 8
	}
	pixfmt, err := pixelFormat(chroma, bits)
	if err != nil {
		return nil, err
	}

	m := nal.NewMap()
	if err := m.Parse(data); err != nil {
		return nil, err
	}
	stream, err := m.BuildAnnexB(0)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.path, d.args(pixfmt, p.Threads)...)
	cmd.Stdin = bytes.NewReader(stream)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if p.Logger != nil {
		p.Logger.Debug("ffmpeg: decoding", "bytes", len(stream), "pix_fmt", pixfmt)
	}
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, heiferr.Newf(heiferr.DecoderPluginError, heiferr.Unspecified, "ffmpeg: %s", bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, heiferr.Wrap(heiferr.DecoderPluginError, heiferr.Unspecified, err, "ffmpeg")
	}
	return unpackPlanes(stdout.Bytes(), p.Width, p.Height, chroma, bits)
}

// unpackPlanes splits planar rawvideo output into an image.
func unpackPlanes(raw []byte, w, h int, chroma pixels.Chroma, bits int) (*pixels.Image, error) {
	cs := pixels.ColorspaceYCbCr
	channels := []pixels.Channel{pixels.ChannelY, pixels.ChannelCb, pixels.ChannelCr}
	if chroma == pixels.ChromaMonochrome {
		cs = pixels.ColorspaceMonochrome
		channels = channels[:1]
	}
	img, err := pixels.NewImage(w, h, cs, chroma)
	if err != nil {
		return nil, err
	}
	for _, c := range channels {
		pw, ph := w, h
		if c != pixels.ChannelY {
			pw, ph = pixels.ChromaPlaneSize(chroma, w, h)
		}
		plane, err := img.AddPlane(c, pw, ph, bits)
		if err != nil {
			return nil, err
		}
		n := len(plane.Data)
		if len(raw) < n {
			return nil, heiferr.Newf(heiferr.DecoderPluginError, heiferr.EndOfData,
				"ffmpeg: %v plane needs %d bytes, have %d", c, n, len(raw))
		}
		copy(plane.Data, raw[:n])
		raw = raw[n:]
	}
	return img, nil
}
