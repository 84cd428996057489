// Package config loads heifdump settings from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tetsuo/heif"
	"github.com/tetsuo/heif/colorconv"
)

// Config is the complete tool configuration.
type Config struct {
	LogLevel    string         `yaml:"log_level"` // debug, info, warn, error
	PluginPaths []string       `yaml:"plugin_paths"`
	Threads     int            `yaml:"threads"`
	Decoding    DecodingConfig `yaml:"decoding"`
	Encoding    EncodingConfig `yaml:"encoding"`
	Limits      LimitsConfig   `yaml:"limits"`
}

// DecodingConfig mirrors heif.DecodingOptions.
type DecodingConfig struct {
	IgnoreTransformations bool   `yaml:"ignore_transformations"`
	ConvertHDRTo8Bit      bool   `yaml:"convert_hdr_to_8bit"`
	Strict                bool   `yaml:"strict"`
	Decoder               string `yaml:"decoder"`
	// ChromaDownsampling is "average" or "nearest".
	ChromaDownsampling string `yaml:"chroma_downsampling"`
	// ChromaUpsampling is "bilinear" or "nearest".
	ChromaUpsampling       string `yaml:"chroma_upsampling"`
	OnlyPreferredAlgorithm bool   `yaml:"only_preferred_algorithm"`
}

// EncodingConfig mirrors heif.EncodingOptions.
type EncodingConfig struct {
	Quality   *int   `yaml:"quality,omitempty"`
	Lossless  bool   `yaml:"lossless"`
	Encoder   string `yaml:"encoder"`
	SkipAlpha bool   `yaml:"skip_alpha"`
}

// LimitsConfig overrides security limits; zero keeps the default.
type LimitsConfig struct {
	MaxImageWidth       int   `yaml:"max_image_width"`
	MaxImageHeight      int   `yaml:"max_image_height"`
	MaxPixels           int64 `yaml:"max_pixels"`
	MaxChildrenPerBox   int   `yaml:"max_children_per_box"`
	MaxIlocItems        int   `yaml:"max_iloc_items"`
	MaxIlocExtents      int   `yaml:"max_iloc_extents"`
	MaxMemoryBlockBytes int64 `yaml:"max_memory_block_bytes"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	_ = Validate(cfg)
	return cfg
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// PluginDirs returns the configured plugin directories followed by those
// of the HEIF_PLUGIN_PATH environment variable.
func (c *Config) PluginDirs() []string {
	dirs := append([]string(nil), c.PluginPaths...)
	return append(dirs, heif.PluginDirsFromEnv()...)
}

// ColorConversion returns the color conversion options.
func (c *Config) ColorConversion() colorconv.Options {
	o := *colorconv.DefaultOptions()
	if c.Decoding.ChromaDownsampling == "nearest" {
		o.PreferredChromaDownsampling = colorconv.DownsamplingNearestNeighbor
	}
	if c.Decoding.ChromaUpsampling == "nearest" {
		o.PreferredChromaUpsampling = colorconv.UpsamplingNearestNeighbor
	}
	o.OnlyUsePreferredChromaAlgorithm = c.Decoding.OnlyPreferredAlgorithm
	return o
}

// DecodingOptions returns the decoding options.
func (c *Config) DecodingOptions() *heif.DecodingOptions {
	opts := heif.NewDecodingOptions()
	opts.IgnoreTransformations = c.Decoding.IgnoreTransformations
	opts.ConvertHDRTo8Bit = c.Decoding.ConvertHDRTo8Bit
	opts.StrictDecoding = c.Decoding.Strict
	opts.DecoderID = c.Decoding.Decoder
	opts.ColorConversion = c.ColorConversion()
	return opts
}

// EncodingOptions returns the encoding options.
func (c *Config) EncodingOptions() *heif.EncodingOptions {
	opts := heif.NewEncodingOptions()
	if c.Encoding.Quality != nil {
		opts.Quality = *c.Encoding.Quality
	}
	opts.Lossless = c.Encoding.Lossless
	opts.EncoderID = c.Encoding.Encoder
	opts.SaveAlpha = !c.Encoding.SkipAlpha
	opts.ColorConversion = c.ColorConversion()
	return opts
}

// SecurityLimits returns the default limits with the configured overrides.
func (c *Config) SecurityLimits() heif.SecurityLimits {
	l := heif.DefaultSecurityLimits()
	if c.Limits.MaxImageWidth > 0 {
		l.MaxImageWidth = c.Limits.MaxImageWidth
	}
	if c.Limits.MaxImageHeight > 0 {
		l.MaxImageHeight = c.Limits.MaxImageHeight
	}
	if c.Limits.MaxPixels > 0 {
		l.MaxPixels = c.Limits.MaxPixels
	}
	if c.Limits.MaxMemoryBlockBytes > 0 {
		l.MaxMemoryBlockBytes = c.Limits.MaxMemoryBlockBytes
	}
	if c.Limits.MaxChildrenPerBox > 0 {
		l.MaxChildrenPerBox = c.Limits.MaxChildrenPerBox
	}
	if c.Limits.MaxIlocItems > 0 {
		l.MaxIlocItems = c.Limits.MaxIlocItems
	}
	if c.Limits.MaxIlocExtents > 0 {
		l.MaxIlocExtents = c.Limits.MaxIlocExtents
	}
	return l
}

var (
	downsampling = []string{"", "average", "nearest"}
	upsampling   = []string{"", "bilinear", "nearest"}
	levels       = []string{"debug", "info", "warn", "error"}
)

// Validate checks the configuration and fills defaults.
func Validate(cfg *Config) error {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if !slices.Contains(levels, cfg.LogLevel) {
		return fmt.Errorf("log_level must be one of %s", strings.Join(levels, ", "))
	}
	if cfg.Threads < 0 {
		return fmt.Errorf("threads must be >= 0")
	}
	if !slices.Contains(downsampling, cfg.Decoding.ChromaDownsampling) {
		return fmt.Errorf("decoding.chroma_downsampling must be average or nearest")
	}
	if !slices.Contains(upsampling, cfg.Decoding.ChromaUpsampling) {
		return fmt.Errorf("decoding.chroma_upsampling must be bilinear or nearest")
	}
	if q := cfg.Encoding.Quality; q != nil && (*q < 0 || *q > 100) {
		return fmt.Errorf("encoding.quality must be within 0..100")
	}
	l := cfg.Limits
	if l.MaxImageWidth < 0 || l.MaxImageHeight < 0 || l.MaxPixels < 0 || l.MaxMemoryBlockBytes < 0 ||
		l.MaxChildrenPerBox < 0 || l.MaxIlocItems < 0 || l.MaxIlocExtents < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}
