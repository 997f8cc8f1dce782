// Package config handles meshtool configuration loading and management.
package config

import (
	"fmt"
	"time"

	"github.com/Faultbox/axmesh/pkg/axmesh"
)

// Config holds all meshtool settings.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Export  ExportConfig  `yaml:"export"`
	Import  ImportConfig  `yaml:"import"`
	Watch   WatchConfig   `yaml:"watch"`
	Debug   DebugConfig   `yaml:"debug"`
}

// ExportConfig holds settings for writing mesh assets.
type ExportConfig struct {
	OutputDir string  `yaml:"output_dir"` // Empty means next to the source file
	Overwrite bool    `yaml:"overwrite"`
	Scale     float32 `yaml:"scale"` // Uniform scale applied to source geometry
	ZUp       bool    `yaml:"z_up"`  // Source is Z-up; rotate to Y-up on export

	// Streams partitions the exported attributes. Each entry lists the
	// attributes of one stream; concatenated they form the declaration.
	Streams [][]axmesh.AttributeType `yaml:"streams"`
}

// ImportConfig holds settings for reading mesh assets.
type ImportConfig struct {
	Strict bool `yaml:"strict"` // Reject trailing bytes
}

// WatchConfig holds settings for watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// DebugConfig holds profiling settings.
type DebugConfig struct {
	Profile    string `yaml:"profile"`     // "", "cpu" or "mem"
	ProfileDir string `yaml:"profile_dir"` // Where profiles are written
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Export: ExportConfig{
			OutputDir: "",
			Overwrite: false,
			Scale:     1,
			ZUp:       false,
			Streams: [][]axmesh.AttributeType{
				{axmesh.Position, axmesh.Normal, axmesh.TexCoord0},
			},
		},
		Import: ImportConfig{
			Strict: false,
		},
		Watch: WatchConfig{
			Debounce: 250 * time.Millisecond,
		},
		Debug: DebugConfig{
			Profile:    "",
			ProfileDir: ".",
		},
	}
}

// Layout builds the stream layout described by the export settings.
func (e ExportConfig) Layout() (*axmesh.Layout, error) {
	if len(e.Streams) == 0 {
		return nil, fmt.Errorf("export layout: no streams configured")
	}
	for i, s := range e.Streams {
		if len(s) == 0 {
			return nil, fmt.Errorf("export layout: stream %d is empty", i)
		}
	}
	if e.Scale <= 0 {
		return nil, fmt.Errorf("export layout: scale must be positive, got %g", e.Scale)
	}
	layout, err := axmesh.PartitionedLayout(e.Streams...)
	if err != nil {
		return nil, fmt.Errorf("export layout: %w", err)
	}
	return layout, nil
}

// DecodeOptions returns the codec options for the import settings.
func (i ImportConfig) DecodeOptions() axmesh.DecodeOptions {
	return axmesh.DecodeOptions{Strict: i.Strict}
}
