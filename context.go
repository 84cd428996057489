package heif

import (
	"bytes"
	"io"
	"log/slog"
	"os"

	"github.com/tetsuo/heif/exif"
	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/plugin"
)

// Context holds one HEIF file, read from a source or being built, together
// with the plugin registry and limits used to process it.
type Context struct {
	registry *plugin.Registry
	logger   *slog.Logger
	threads  int
	limits   SecurityLimits

	file    *File
	all     map[uint32]*ImageHandle
	images  []*ImageHandle
	primary *ImageHandle
}

// NewContext returns a context using the default plugin registry.
func NewContext() *Context {
	return NewContextWithRegistry(DefaultRegistry())
}

// NewContextWithRegistry returns a context dispatching to the plugins of r.
func NewContextWithRegistry(r *plugin.Registry) *Context {
	return &Context{
		registry: r,
		logger:   slog.Default(),
		limits:   DefaultSecurityLimits(),
	}
}

// SetLogger replaces the logger, slog.Default() by default.
func (c *Context) SetLogger(l *slog.Logger) { c.logger = l }

// SetMaxDecodingThreads sets the thread hint passed to decoder plugins.
func (c *Context) SetMaxDecodingThreads(n int) { c.threads = n }

// SetSecurityLimits replaces the limits applied when reading files.
func (c *Context) SetSecurityLimits(l SecurityLimits) { c.limits = l }

// SecurityLimits returns the limits in effect.
func (c *Context) SecurityLimits() SecurityLimits { return c.limits }

// Registry returns the plugin registry of the context.
func (c *Context) Registry() *plugin.Registry { return c.registry }

// File returns the item structure, or nil before a file is read or built.
func (c *Context) File() *File { return c.file }

// ReadFromBytes reads a file held in memory.
func (c *Context) ReadFromBytes(data []byte) error {
	return c.read(memorySource(data))
}

// ReadFromFile reads the file at path.
func (c *Context) ReadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return heiferr.Wrap(heiferr.InputDoesNotExist, heiferr.Unspecified, err, "heif")
	}
	return c.ReadFromBytes(data)
}

// ReadFromReader reads a file from r, pulling only as much of it as needed.
func (c *Context) ReadFromReader(r io.Reader) error {
	return c.ReadFromStream(NewReaderStream(r))
}

// ReadFromStream reads a file from a growing source.
func (c *Context) ReadFromStream(s StreamReader) error {
	return c.read(streamSource(s))
}

func (c *Context) read(src *source) error {
	l, err := readLayout(src, &c.limits, c.logger)
	if err != nil {
		return err
	}
	f, err := openFile(l, &c.limits)
	if err != nil {
		return err
	}
	if err := c.interpretFile(f); err != nil {
		return err
	}
	c.logger.Debug("heif: file read", "images", len(c.images), "primary", c.primary.ID)
	return nil
}

// PrimaryImageHandle returns the primary image.
func (c *Context) PrimaryImageHandle() (*ImageHandle, error) {
	if c.primary == nil {
		return nil, heiferr.New(heiferr.InvalidInput, heiferr.NoPitmBox, "heif: no primary image")
	}
	return c.primary, nil
}

// TopLevelImages returns the images that are neither thumbnails nor
// auxiliary images.
func (c *Context) TopLevelImages() []*ImageHandle { return c.images }

// ImageHandle returns the image item with the given ID.
func (c *Context) ImageHandle(id uint32) (*ImageHandle, error) {
	if h := c.all[id]; h != nil {
		return h, nil
	}
	return nil, heiferr.Newf(heiferr.UsageError, heiferr.NonexistingItemReferenced, "heif: no image item %d", id)
}

// SetPrimaryImage makes h the primary image of the file being built.
func (c *Context) SetPrimaryImage(h *ImageHandle) error {
	if c.file == nil || c.all[h.ID] != h {
		return heiferr.New(heiferr.UsageError, heiferr.NonexistingItemReferenced, "heif: image does not belong to this context")
	}
	if c.primary != nil {
		c.primary.Primary = false
	}
	h.Primary = true
	c.primary = h
	c.file.SetPrimary(h.ID)
	return nil
}

var exifPrefix = []byte("Exif\x00\x00")

// AddExifMetadata attaches an Exif block to h. The orientation tag is reset
// to 1 because the image transformations are stored as properties.
func (c *Context) AddExifMetadata(h *ImageHandle, data []byte) error {
	if c.file == nil || c.all[h.ID] != h {
		return heiferr.New(heiferr.UsageError, heiferr.NonexistingItemReferenced, "heif: image does not belong to this context")
	}
	var offset uint32
	if bytes.HasPrefix(data, exifPrefix) {
		offset = uint32(len(exifPrefix))
	}
	payload := be.AppendUint32(make([]byte, 0, 4+len(data)), offset)
	payload = append(payload, data...)
	if _, err := exif.TIFFHeaderOffset(payload); err != nil {
		return heiferr.Wrap(heiferr.UsageError, heiferr.InvalidParameterValue, err, "heif: exif")
	}
	exif.SetOrientation(payload, 1)

	id := c.file.AddItem(ItemTypeExif, "")
	c.file.SetItemData(id, payload)
	c.file.AddReference(RefDescription, id, h.ID)
	h.metadata = append(h.metadata, &Metadata{ID: id, Type: ItemTypeExif, file: c.file})
	return nil
}

// Write writes the file to w.
func (c *Context) Write(w io.Writer) error {
	if c.file == nil {
		return heiferr.New(heiferr.UsageError, heiferr.Unspecified, "heif: nothing to write")
	}
	return c.file.Write(w)
}

// WriteToFile writes the file to path.
func (c *Context) WriteToFile(path string) error {
	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
