package heif

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tetsuo/heif/heiferr"
	"github.com/tetsuo/heif/plugin"
)

// PluginPathEnv names the environment variable holding a colon-separated
// list of directories to load plugins from.
const PluginPathEnv = "HEIF_PLUGIN_PATH"

// PluginRegisterSymbol is the function a dynamic plugin exports. It has
// the type func(*plugin.Registry) error.
const PluginRegisterSymbol = "RegisterHeifPlugins"

// builtinPlugins is filled by build-tag-conditional files.
var builtinPlugins []func(*plugin.Registry) error

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *plugin.Registry
)

// DefaultRegistry returns the registry with the built-in plugins and the
// plugins found in PluginPathEnv. It is built on first use.
func DefaultRegistry() *plugin.Registry {
	defaultRegistryOnce.Do(func() {
		r := plugin.NewRegistry()
		for _, register := range builtinPlugins {
			if err := register(r); err != nil {
				slog.Debug("heif: built-in plugin unavailable", "err", err)
			}
		}
		if err := LoadPlugins(r, PluginDirsFromEnv()...); err != nil {
			slog.Warn("heif: loading plugins", "err", err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// PluginDirsFromEnv splits PluginPathEnv into directories.
func PluginDirsFromEnv() []string {
	var dirs []string
	for _, d := range strings.Split(os.Getenv(PluginPathEnv), ":") {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// LoadPlugins loads every *.so file of dirs into r. Failing files do not
// stop the others; their errors are joined.
func LoadPlugins(r *plugin.Registry, dirs ...string) error {
	var errs []error
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			errs = append(errs, heiferr.Wrap(heiferr.PluginLoadingError, heiferr.CannotReadPluginDirectory, err, dir))
			continue
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".so" {
				continue
			}
			if err := loadPluginFile(r, filepath.Join(dir, e.Name())); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
