//go:build !heif_nojpeg

package heif

import (
	"github.com/tetsuo/heif/plugin"
	"github.com/tetsuo/heif/plugin/jpeg"
)

func init() {
	builtinPlugins = append(builtinPlugins, func(r *plugin.Registry) error {
		if err := r.RegisterDecoder(jpeg.NewDecoder()); err != nil {
			return err
		}
		return r.RegisterEncoder(jpeg.NewEncoder())
	})
}
