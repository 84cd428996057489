package plugin

import (
	"sort"

	"github.com/tetsuo/heif/heiferr"
)

// EncoderDescriptor describes a registered encoder.
type EncoderDescriptor struct {
	Name     string
	Format   CompressionFormat
	Priority int
	Encoder  Encoder
}

// Registry holds the available decoders and encoders.
//
// Lookups may run concurrently. Registration is not synchronized: populate
// the registry before sharing it, or serialize registration externally.
type Registry struct {
	decoders []Decoder
	encoders []*EncoderDescriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func initialize(p any) error {
	in, ok := p.(Initializer)
	if !ok {
		return nil
	}
	if err := in.Init(); err != nil {
		return heiferr.Wrap(heiferr.PluginLoadingError, heiferr.PluginLoadingFailed, err, "plugin initialization")
	}
	return nil
}

// RegisterDecoder adds d. Decoders are identified by name; registering a
// second decoder with a known name is a no-op.
func (r *Registry) RegisterDecoder(d Decoder) error {
	for _, have := range r.decoders {
		if have.Name() == d.Name() {
			return nil
		}
	}
	if err := initialize(d); err != nil {
		return err
	}
	r.decoders = append(r.decoders, d)
	return nil
}

// RegisterEncoder adds e, keeping encoders ordered by descending priority.
// Encoders of equal priority keep registration order.
func (r *Registry) RegisterEncoder(e Encoder) error {
	if err := initialize(e); err != nil {
		return err
	}
	desc := &EncoderDescriptor{
		Name:     e.Name(),
		Format:   e.CompressionFormat(),
		Priority: e.Priority(),
		Encoder:  e,
	}
	i := sort.Search(len(r.encoders), func(i int) bool {
		return r.encoders[i].Priority < desc.Priority
	})
	r.encoders = append(r.encoders, nil)
	copy(r.encoders[i+1:], r.encoders[i:])
	r.encoders[i] = desc
	return nil
}

// Decoders returns the registered decoders.
func (r *Registry) Decoders() []Decoder {
	return append([]Decoder(nil), r.decoders...)
}

// Decoder returns the decoder for f. A decoder named name that supports f
// wins regardless of priority; otherwise the highest priority decoder is
// returned. It returns nil if none supports f.
func (r *Registry) Decoder(f CompressionFormat, name string) Decoder {
	if name != "" {
		for _, d := range r.decoders {
			if d.Name() == name && d.SupportsFormat(f) > 0 {
				return d
			}
		}
	}
	var best Decoder
	bestPriority := 0
	for _, d := range r.decoders {
		if p := d.SupportsFormat(f); p > bestPriority {
			best, bestPriority = d, p
		}
	}
	return best
}

// EncoderDescriptors returns the encoders for f in descending priority.
// FormatUndefined matches every encoder; a non-empty name filters by name.
func (r *Registry) EncoderDescriptors(f CompressionFormat, name string) []*EncoderDescriptor {
	var out []*EncoderDescriptor
	for _, d := range r.encoders {
		if f != FormatUndefined && d.Format != f {
			continue
		}
		if name != "" && d.Name != name {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Encoder returns the highest priority encoder for f, or nil.
func (r *Registry) Encoder(f CompressionFormat, name string) Encoder {
	ds := r.EncoderDescriptors(f, name)
	if len(ds) == 0 {
		return nil
	}
	return ds[0].Encoder
}
