//go:build !heif_noffmpeg

package heif

import (
	"github.com/tetsuo/heif/plugin"
	"github.com/tetsuo/heif/plugin/ffmpeg"
)

func init() {
	builtinPlugins = append(builtinPlugins, func(r *plugin.Registry) error {
		return r.RegisterDecoder(ffmpeg.NewDecoder())
	})
}
