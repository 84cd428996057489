// Command heifdump reads a HEIF or AVIF file and prints its box structure
// and images.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	console "github.com/phsym/console-slog"

	"github.com/tetsuo/heif"
	"github.com/tetsuo/heif/internal/config"
	"github.com/tetsuo/heif/pixels"
)

// Format specifies the output format.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// BoxNode is a box in the tree structure.
type BoxNode struct {
	Type     string    `json:"type"`
	Size     uint64    `json:"size"`
	Version  *uint8    `json:"version,omitempty"`
	Flags    *uint32   `json:"flags,omitempty"`
	Children []BoxNode `json:"children,omitempty"`
}

// ImageInfo describes one top-level image.
type ImageInfo struct {
	ID         uint32   `json:"id"`
	Type       string   `json:"type"`
	Codec      string   `json:"codec,omitempty"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	BitDepth   int      `json:"bitDepth"`
	Chroma     string   `json:"chroma"`
	Primary    bool     `json:"primary,omitempty"`
	Alpha      bool     `json:"alpha,omitempty"`
	Depth      bool     `json:"depth,omitempty"`
	Thumbnails []uint32 `json:"thumbnails,omitempty"`
	Exif       int      `json:"exif,omitempty"`
}

// Output is the JSON document printed with --format=json.
type Output struct {
	Boxes  []BoxNode   `json:"boxes"`
	Images []ImageInfo `json:"images,omitempty"`
}

func main() {
	formatFlag := flag.String("format", "text", "output format: text (default), json")
	configFlag := flag.String("config", "", "YAML configuration file")
	imagesFlag := flag.Bool("images", false, "list the top-level images")
	decodeFlag := flag.String("decode", "", "decode the primary image and save it to this file (.png, .jpg)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [--format=text|json] [--images] [--decode=out.png] <file.heic>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	format := FormatText
	switch strings.ToLower(*formatFlag) {
	case "json":
		format = FormatJSON
	case "text":
		format = FormatText
	default:
		fmt.Fprintf(os.Stderr, "unknown format: %s\n", *formatFlag)
		os.Exit(1)
	}

	cfg := config.Default()
	if *configFlag != "" {
		var err error
		if cfg, err = config.Load(*configFlag); err != nil {
			fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	level := cfg.Level()
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(flag.Arg(0), cfg, logger, format, *imagesFlag, *decodeFlag); err != nil {
		logger.Error("heifdump failed", "err", err)
		os.Exit(1)
	}
}

func run(path string, cfg *config.Config, logger *slog.Logger, format Format, images bool, decodeTo string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	limits := cfg.SecurityLimits()
	boxes, err := heif.ParseAll(data, &limits)
	if err != nil {
		return err
	}

	var out Output
	for _, b := range boxes {
		out.Boxes = append(out.Boxes, buildTree(b))
	}

	var ctx *heif.Context
	if images || decodeTo != "" {
		reg := heif.DefaultRegistry()
		if err := heif.LoadPlugins(reg, cfg.PluginPaths...); err != nil {
			logger.Warn("heifdump: plugin loading failed", "err", err)
		}
		ctx = heif.NewContextWithRegistry(reg)
		ctx.SetLogger(logger)
		ctx.SetSecurityLimits(limits)
		ctx.SetMaxDecodingThreads(cfg.Threads)
		if err := ctx.ReadFromBytes(data); err != nil {
			return err
		}
		if images {
			for _, h := range ctx.TopLevelImages() {
				out.Images = append(out.Images, imageInfo(h))
			}
		}
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	case FormatText:
		for _, b := range boxes {
			if err := heif.Dump(os.Stdout, b); err != nil {
				return err
			}
		}
		printImages(os.Stdout, out.Images)
	}

	if decodeTo != "" {
		return decodePrimary(ctx, cfg, decodeTo, logger)
	}
	return nil
}

func buildTree(b heif.Box) BoxNode {
	h := b.Header()
	node := BoxNode{Type: h.Type.String(), Size: h.Size}
	if heif.IsFullBox(h.Type) {
		v, f := h.Version, h.Flags
		node.Version = &v
		node.Flags = &f
	}
	for _, c := range heif.Children(b) {
		node.Children = append(node.Children, buildTree(c))
	}
	return node
}

func imageInfo(h *heif.ImageHandle) ImageInfo {
	info := ImageInfo{
		ID:       h.ID,
		Type:     h.Type.String(),
		Codec:    h.CodecString(),
		Width:    h.Width,
		Height:   h.Height,
		BitDepth: h.LumaBitDepth,
		Chroma:   h.Chroma.String(),
		Primary:  h.Primary,
		Alpha:    h.HasAlpha(),
		Depth:    h.Depth() != nil,
		Exif:     len(h.ExifBlocks()),
	}
	for _, t := range h.Thumbnails() {
		info.Thumbnails = append(info.Thumbnails, t.ID)
	}
	return info
}

func printImages(w io.Writer, images []ImageInfo) {
	for _, im := range images {
		fmt.Fprintf(w, "image %d: %s %dx%d %d-bit %s", im.ID, im.Type, im.Width, im.Height, im.BitDepth, im.Chroma)
		if im.Codec != "" {
			fmt.Fprintf(w, " codec=%s", im.Codec)
		}
		if im.Primary {
			fmt.Fprint(w, " primary")
		}
		if im.Alpha {
			fmt.Fprint(w, " alpha")
		}
		if im.Depth {
			fmt.Fprint(w, " depth")
		}
		if len(im.Thumbnails) > 0 {
			fmt.Fprintf(w, " thumbnails=%v", im.Thumbnails)
		}
		if im.Exif > 0 {
			fmt.Fprintf(w, " exif=%d", im.Exif)
		}
		fmt.Fprintln(w)
	}
}

func decodePrimary(ctx *heif.Context, cfg *config.Config, path string, logger *slog.Logger) error {
	h, err := ctx.PrimaryImageHandle()
	if err != nil {
		return err
	}
	opts := cfg.DecodingOptions()
	opts.ConvertHDRTo8Bit = true
	img, err := h.Decode(context.Background(), pixels.ColorspaceRGB, pixels.ChromaInterleavedRGBA, opts)
	if err != nil {
		return err
	}
	std, err := img.ToImage()
	if err != nil {
		return err
	}
	if err := imaging.Save(std, path); err != nil {
		return err
	}
	logger.Info("heifdump: decoded primary image", "path", path, "width", img.Width(), "height", img.Height())
	return nil
}
