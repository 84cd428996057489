package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tetsuo/heif"
	"github.com/tetsuo/heif/colorconv"
)

const sample = `
log_level: DEBUG
plugin_paths: [/opt/heif/plugins]
threads: 4
decoding:
  ignore_transformations: true
  convert_hdr_to_8bit: true
  decoder: ffmpeg
  chroma_upsampling: nearest
encoding:
  quality: 90
  skip_alpha: true
limits:
  max_image_width: 4096
  max_iloc_extents: 8
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heif.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(heif.PluginPathEnv, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", cfg.Level())
	}
	if diff := cmp.Diff([]string{"/opt/heif/plugins"}, cfg.PluginDirs()); diff != "" {
		t.Errorf("plugin dirs (-want +got):\n%s", diff)
	}

	dec := cfg.DecodingOptions()
	if !dec.IgnoreTransformations || !dec.ConvertHDRTo8Bit || dec.DecoderID != "ffmpeg" {
		t.Errorf("decoding options = %+v", dec)
	}
	if dec.ColorConversion.PreferredChromaUpsampling != colorconv.UpsamplingNearestNeighbor {
		t.Errorf("upsampling = %v", dec.ColorConversion.PreferredChromaUpsampling)
	}
	if dec.ColorConversion.PreferredChromaDownsampling != colorconv.DownsamplingAverage {
		t.Errorf("downsampling = %v", dec.ColorConversion.PreferredChromaDownsampling)
	}

	enc := cfg.EncodingOptions()
	if enc.Quality != 90 || enc.SaveAlpha {
		t.Errorf("encoding options = %+v", enc)
	}

	want := heif.DefaultSecurityLimits()
	want.MaxImageWidth = 4096
	want.MaxIlocExtents = 8
	if diff := cmp.Diff(want, cfg.SecurityLimits()); diff != "" {
		t.Errorf("limits (-want +got):\n%s", diff)
	}
}

func TestPluginDirsFromEnv(t *testing.T) {
	t.Setenv(heif.PluginPathEnv, "/a:/b")
	cfg := Default()
	cfg.PluginPaths = []string{"/c"}
	if diff := cmp.Diff([]string{"/c", "/a", "/b"}, cfg.PluginDirs()); diff != "" {
		t.Errorf("plugin dirs (-want +got):\n%s", diff)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("level = %v", cfg.Level())
	}
	if q := cfg.EncodingOptions().Quality; q != 50 {
		t.Errorf("quality = %d, want 50", q)
	}
	if !cfg.EncodingOptions().SaveAlpha {
		t.Error("alpha not saved by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad level", "log_level: loud"},
		{"negative threads", "threads: -1"},
		{"bad downsampling", "decoding: {chroma_downsampling: cubic}"},
		{"bad upsampling", "decoding: {chroma_upsampling: cubic}"},
		{"quality range", "encoding: {quality: 101}"},
		{"negative limit", "limits: {max_pixels: -5}"},
		{"not yaml", "log_level: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
