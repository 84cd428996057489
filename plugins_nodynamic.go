//go:build !((linux || darwin) && cgo)

package heif

import (
	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/plugin"
)

func loadPluginFile(_ *plugin.Registry, path string) error {
	return heiferr.Newf(heiferr.PluginLoadingError, heiferr.PluginLoadingFailed,
		"heif: %s: dynamic plugins are not supported on this platform", path)
}
