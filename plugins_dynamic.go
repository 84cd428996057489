//go:build (linux || darwin) && cgo

package heif

import (
	goplugin "plugin"

	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/plugin"
)

func loadPluginFile(r *plugin.Registry, path string) error {
	p, err := goplugin.Open(path)
	if err != nil {
		return heiferr.Wrap(heiferr.PluginLoadingError, heiferr.PluginLoadingFailed, err, path)
	}
	sym, err := p.Lookup(PluginRegisterSymbol)
	if err != nil {
		return heiferr.Wrap(heiferr.PluginLoadingError, heiferr.PluginLoadingFailed, err, path)
	}
	register, ok := sym.(func(*plugin.Registry) error)
	if !ok {
		return heiferr.Newf(heiferr.PluginLoadingError, heiferr.UnsupportedPluginVersion,
			"heif: %s: %s has type %T", path, PluginRegisterSymbol, sym)
	}
	return register(r)
}
