package heif

import (
	"context"

	"github.com/tetsuo/heif/colorconv"
	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/pixels"
	"github.com/tetsuo/heif/plugin"
)

// configBox parses the codec configuration returned by an encoder.
func configBox(format plugin.CompressionFormat, data []byte) (Box, error) {
	var b Box
	switch format {
	case plugin.FormatHEVC:
		b = &HvcCBox{BoxHeader: BoxHeader{Type: TypeHvcC}}
	case plugin.FormatAV1:
		b = &Av1CBox{BoxHeader: BoxHeader{Type: TypeAv1C}}
	default:
		return nil, nil
	}
	if data == nil {
		return nil, heiferr.Newf(heiferr.EncoderPluginError, heiferr.Unspecified,
			"heif: %v encoder returned no configuration", format)
	}
	r := NewRange(data)
	if err := b.parse(r, nil); err != nil {
		return nil, heiferr.Wrap(heiferr.EncoderPluginError, heiferr.Unspecified, err, "heif: codec configuration")
	}
	if err := r.Err(); err != nil {
		return nil, heiferr.Wrap(heiferr.EncoderPluginError, heiferr.Unspecified, err, "heif: codec configuration")
	}
	return b, nil
}

// itemTypeOf returns the item type and brand used for images of format f.
func itemTypeOf(f plugin.CompressionFormat) (item, brand BoxType, ok bool) {
	switch f {
	case plugin.FormatHEVC:
		return ItemTypeHvc1, BrandHeic, true
	case plugin.FormatAV1:
		return ItemTypeAv01, BrandAvif, true
	case plugin.FormatJPEG:
		return ItemTypeJpeg, BrandMif1, true
	}
	return BoxType{}, BoxType{}, false
}

// splitAlpha separates the alpha plane of img into a monochrome image.
func splitAlpha(img *pixels.Image, opts *colorconv.Options) (color, alpha *pixels.Image, err error) {
	if img.Chroma().IsInterleaved() {
		img, err = colorconv.Convert(img, colorconv.Target{
			Colorspace: pixels.ColorspaceRGB, Chroma: pixels.Chroma444, Alpha: colorconv.AlphaRequired,
		}, opts)
		if err != nil {
			return nil, nil, err
		}
	}
	p := img.Plane(pixels.ChannelAlpha)
	alpha, err = pixels.NewImage(p.Width, p.Height, pixels.ColorspaceMonochrome, pixels.ChromaMonochrome)
	if err != nil {
		return nil, nil, err
	}
	alpha.SetPlane(pixels.ChannelY, pixels.CopyPlane(p))
	return img, alpha, nil
}

// encodeItem encodes img as a new item and attaches its properties.
func (c *Context) encodeItem(ctx context.Context, enc plugin.Encoder, img *pixels.Image, nclx *pixels.NCLX, opts *EncodingOptions) (uint32, error) {
	in := enc.InputFormat(img)
	conv, err := colorconv.Convert(img, colorconv.Target{
		Colorspace:   in.Colorspace,
		Chroma:       in.Chroma,
		Alpha:        colorconv.AlphaNone,
		BitsPerPixel: in.BitsPerPixel,
	}, &opts.ColorConversion)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, canceled(err)
	}
	out, err := enc.Encode(ctx, conv, plugin.EncodeParams{
		Quality:  opts.Quality,
		Lossless: opts.Lossless,
		Threads:  c.threads,
		Logger:   c.logger,
	})
	if err != nil {
		return 0, pluginError(err, heiferr.EncoderPluginError, enc.Name())
	}
	config, err := configBox(enc.CompressionFormat(), out.Config)
	if err != nil {
		return 0, err
	}

	itemType, brand, _ := itemTypeOf(enc.CompressionFormat())
	f := c.file
	id := f.AddItem(itemType, "")
	f.SetItemData(id, out.Data)
	f.SetBrand(brand)
	if config != nil {
		f.AddProperty(id, config, true)
	}
	f.AddProperty(id, &IspeBox{
		BoxHeader: BoxHeader{Type: TypeIspe},
		Width:     uint32(conv.Width()),
		Height:    uint32(conv.Height()),
	}, false)

	pixi := &PixiBox{BoxHeader: BoxHeader{Type: TypePixi}}
	for _, ch := range conv.Channels() {
		pixi.BitsPerChannel = append(pixi.BitsPerChannel, uint8(conv.BitDepth(ch)))
	}
	f.AddProperty(id, pixi, false)
	if nclx != nil {
		f.AddProperty(id, &ColrBox{BoxHeader: BoxHeader{Type: TypeColr}, ColourType: ColourNCLX, NCLX: nclx}, false)
	}
	c.logger.Debug("heif: encoded image", "item", id, "encoder", enc.Name(), "bytes", len(out.Data))
	return id, nil
}

// alphaAuxType is the auxC URN of alpha planes coded in format.
func alphaAuxType(format plugin.CompressionFormat) string {
	if format == plugin.FormatHEVC {
		return AuxTypeAlphaHEVC
	}
	return AuxTypeAlphaMPEG
}

// EncodeImage encodes img with the best encoder for format and adds it to
// the file being built. The first image added becomes the primary image.
func (c *Context) EncodeImage(ctx context.Context, img *pixels.Image, format plugin.CompressionFormat, opts *EncodingOptions) (*ImageHandle, error) {
	if opts == nil {
		opts = NewEncodingOptions()
	}
	if _, _, ok := itemTypeOf(format); !ok {
		return nil, heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedCodec, "heif: cannot store %v images", format)
	}
	enc := c.registry.Encoder(format, opts.EncoderID)
	if enc == nil {
		return nil, heiferr.Newf(heiferr.UnsupportedFeature, heiferr.UnsupportedCodec, "heif: no encoder for %v", format)
	}
	if c.file == nil {
		c.file = NewFile()
		c.all = make(map[uint32]*ImageHandle)
	}

	nclx := opts.NCLX
	if nclx == nil {
		nclx = img.NCLX
	}
	if nclx == nil {
		nclx = pixels.DefaultNCLX()
	}

	var alpha *pixels.Image
	if img.HasAlpha() && opts.SaveAlpha {
		var err error
		if img, alpha, err = splitAlpha(img, &opts.ColorConversion); err != nil {
			return nil, err
		}
	}

	id, err := c.encodeItem(ctx, enc, img, nclx, opts)
	if err != nil {
		return nil, err
	}
	h, err := newImageHandle(c, c.file, id)
	if err != nil {
		return nil, err
	}
	c.all[id] = h
	c.images = append(c.images, h)
	if c.primary == nil {
		if err := c.SetPrimaryImage(h); err != nil {
			return nil, err
		}
	}

	if alpha != nil {
		aid, err := c.encodeItem(ctx, enc, alpha, nil, opts)
		if err != nil {
			return nil, err
		}
		f := c.file
		f.AddProperty(aid, &AuxCBox{BoxHeader: BoxHeader{Type: TypeAuxC}, AuxType: alphaAuxType(format)}, true)
		f.AddReference(RefAuxiliary, aid, id)
		f.Infe(aid).SetHidden(true)
		ah, err := newImageHandle(c, f, aid)
		if err != nil {
			return nil, err
		}
		c.all[aid] = ah
		h.alpha = ah
	}
	return h, nil
}
