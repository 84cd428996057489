package heif

import (
	"context"
	"errors"

	"github.com/tetsuo/heif/colorconv"
	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
	"github.com/tetsuo/heif/plugin"
)

// canceled converts a context error into a Canceled error.
func canceled(err error) error {
	return heiferr.Wrap(heiferr.Canceled, heiferr.Unspecified, err, "heif: decoding canceled")
}

// pluginError keeps typed plugin errors and classifies foreign ones.
func pluginError(err error, code heiferr.Code, name string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return canceled(err)
	}
	var he *heiferr.Error
	if errors.As(err, &he) {
		return err
	}
	return heiferr.Wrap(code, heiferr.Unspecified, err, name)
}

// CompressedData returns the coded image with its decoder configuration
// prepended: hvcC parameter sets for HEVC, av1C config OBUs for AV1.
func (h *ImageHandle) CompressedData() ([]byte, error) {
	f := h.ctx.file
	switch h.Type {
	case ItemTypeGrid, ItemTypeIovl, ItemTypeIden:
		return nil, heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedImageType,
			"heif: %s images are not supported", h.Type)
	}
	data, err := f.ItemData(h.ID)
	if err != nil {
		return nil, err
	}
	switch h.Format {
	case plugin.FormatHEVC:
		hvcc := childOf[*HvcCBox](h.props)
		if hvcc == nil {
			return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.NoHvcCBox, "heif: item %d has no hvcC", h.ID)
		}
		return append(hvcc.HeaderNALs(), data...), nil
	case plugin.FormatAV1:
		av1c := childOf[*Av1CBox](h.props)
		if av1c == nil {
			return nil, heiferr.Newf(heiferr.InvalidInput, heiferr.NoAv1CBox, "heif: item %d has no av1C", h.ID)
		}
		return append(append([]byte(nil), av1c.ConfigOBUs...), data...), nil
	case plugin.FormatJPEG:
		return data, nil
	}
	return nil, heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedCodec, "heif: no codec for %s items", h.Type)
}

// decodeRaw runs the decoder plugin without any post-processing.
func (h *ImageHandle) decodeRaw(ctx context.Context, opts *DecodingOptions) (*pixels.Image, error) {
	c := h.ctx
	if err := c.limits.checkImageSize(h.ispeWidth, h.ispeHeight); err != nil && h.ispeWidth != 0 {
		return nil, err
	}
	data, err := h.CompressedData()
	if err != nil {
		return nil, err
	}
	dec := c.registry.Decoder(h.Format, opts.DecoderID)
	if dec == nil {
		return nil, heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedCodec, "heif: no decoder for %v", h.Format)
	}
	c.logger.Debug("heif: decoding image", "item", h.ID, "format", h.Format.String(), "decoder", dec.Name())

	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}
	img, err := dec.Decode(ctx, data, plugin.DecodeParams{
		Threads:      c.threads,
		Width:        h.ispeWidth,
		Height:       h.ispeHeight,
		LumaBitDepth: h.LumaBitDepth,
		Chroma:       h.Chroma,
		Strict:       opts.StrictDecoding,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, pluginError(err, heiferr.DecoderPluginError, dec.Name())
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}
	if img == nil {
		return nil, heiferr.Newf(heiferr.DecoderPluginError, heiferr.Unspecified, "heif: %s returned no image", dec.Name())
	}
	if err := c.limits.checkImageSize(img.Width(), img.Height()); err != nil {
		return nil, err
	}
	return img, nil
}

// mergeAlpha decodes the alpha image of h and attaches it as the alpha plane
// of img, which is made planar first.
func (h *ImageHandle) mergeAlpha(ctx context.Context, img *pixels.Image, opts *DecodingOptions) (*pixels.Image, error) {
	alpha, err := h.alpha.decodeRaw(ctx, opts)
	if err != nil {
		return nil, err
	}
	src := alpha.Plane(pixels.ChannelY)
	if src == nil {
		alpha, err = colorconv.Convert(alpha, colorconv.Target{Colorspace: pixels.ColorspaceMonochrome, Chroma: pixels.ChromaMonochrome}, &opts.ColorConversion)
		if err != nil {
			return nil, err
		}
		src = alpha.Plane(pixels.ChannelY)
	}
	if img.Chroma().IsInterleaved() {
		img, err = colorconv.Convert(img, colorconv.Target{Colorspace: pixels.ColorspaceRGB, Chroma: pixels.Chroma444}, &opts.ColorConversion)
		if err != nil {
			return nil, err
		}
	}
	if alpha.Width() != img.Width() || alpha.Height() != img.Height() {
		alpha, err = alpha.Scale(img.Width(), img.Height())
		if err != nil {
			return nil, err
		}
		src = alpha.Plane(pixels.ChannelY)
	}
	img.SetPlane(pixels.ChannelAlpha, src)
	return img, nil
}

// applyTransforms applies the irot and imir properties in property order.
func (h *ImageHandle) applyTransforms(img *pixels.Image, opts *DecodingOptions) (*pixels.Image, error) {
	var err error
	for _, p := range h.props {
		switch t := p.(type) {
		case *IrotBox:
			if t.Rotation == 0 {
				continue
			}
			if img.Chroma() == pixels.Chroma422 && t.Rotation != 180 {
				img, err = colorconv.Convert(img, colorconv.Target{Colorspace: img.Colorspace(), Chroma: pixels.Chroma444}, &opts.ColorConversion)
				if err != nil {
					return nil, err
				}
			}
			if img, err = img.RotateCCW(t.Rotation); err != nil {
				return nil, err
			}
		case *ImirBox:
			img.Mirror(t.Direction())
		}
	}
	return img, nil
}

// Decode decodes the image into the requested colorspace and chroma.
// Undefined values keep the decoder's output format.
func (h *ImageHandle) Decode(ctx context.Context, cs pixels.Colorspace, chroma pixels.Chroma, opts *DecodingOptions) (*pixels.Image, error) {
	opts = normalizeDecodingOptions(opts)
	progress := opts.Progress
	if progress != nil {
		progress.StartProgress(ProgressTotal, 3)
		defer progress.EndProgress(ProgressTotal)
	}

	img, err := h.decodeRaw(ctx, opts)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress.OnProgress(ProgressTotal, 1)
	}

	if h.alpha != nil {
		if img, err = h.mergeAlpha(ctx, img, opts); err != nil {
			return nil, err
		}
	}
	if !opts.IgnoreTransformations {
		if img, err = h.applyTransforms(img, opts); err != nil {
			return nil, err
		}
	}
	if img.NCLX == nil {
		img.NCLX = h.NCLX
		if img.NCLX == nil {
			img.NCLX = pixels.DefaultNCLX()
		}
	}
	if progress != nil {
		progress.OnProgress(ProgressTotal, 2)
	}

	target := colorconv.Target{Colorspace: cs, Chroma: chroma}
	if opts.ConvertHDRTo8Bit && img.LumaBitDepth() > 8 {
		target.BitsPerPixel = 8
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}
	pipeline, err := colorconv.DefaultEngine().Plan(colorconv.StateOf(img), target, &opts.ColorConversion)
	if err != nil {
		return nil, err
	}
	if pipeline.Len() > 0 {
		h.ctx.logger.Debug("heif: converting colors", "item", h.ID, "path", pipeline.String())
		if img, err = pipeline.Run(img); err != nil {
			return nil, err
		}
	}
	if progress != nil {
		progress.OnProgress(ProgressTotal, 3)
	}
	return img, nil
}
