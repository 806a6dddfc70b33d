// Package config loads and validates the engine's run configuration and
// hands out immutable snapshots via a global config owner:
// callers never mutate a *Config in place, they load a new one and
// atomically swap the pointer.
package config

import (
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Detector describes the flat-panel detector geometry.
type Detector struct {
	NH     int     `yaml:"n_h" json:"n_h"`
	NV     int     `yaml:"n_v" json:"n_v"`
	PitchH float64 `yaml:"pitch_h" json:"pitch_h"`
	PitchV float64 `yaml:"pitch_v" json:"pitch_v"`
	DSO    float64 `yaml:"d_so" json:"d_so"`
	DSD    float64 `yaml:"d_sd" json:"d_sd"`
}

// ROI is an optional axis-aligned clip in volume space.
type ROI struct {
	Enabled            bool    `yaml:"enabled" json:"enabled"`
	X1, X2             float64 `yaml:"x1,omitempty" json:"x1,omitempty"`
	Y1, Y2             float64 `yaml:"y1,omitempty" json:"y1,omitempty"`
	Z1, Z2             float64 `yaml:"z1,omitempty" json:"z1,omitempty"`
}

// Scan describes the acquisition sweep: angular step and projection count.
type Scan struct {
	DeltaPhi    float64 `yaml:"delta_phi" json:"delta_phi"`
	NumProj     int     `yaml:"num_projections" json:"num_projections"`
}

// Config is the fully-resolved, validated run configuration.
type Config struct {
	Input        string   `yaml:"input" json:"input"`
	Output       string   `yaml:"output" json:"output"`
	OutputPrefix string   `yaml:"output_prefix" json:"output_prefix"`
	EnableIO     bool     `yaml:"enable_io" json:"enable_io"`
	Detector     Detector `yaml:"detector" json:"detector"`
	Scan         Scan     `yaml:"scan" json:"scan"`
	ROI          ROI      `yaml:"roi" json:"roi"`

	// Resource knobs
	DeviceMemoryBudget int64   `yaml:"device_memory_budget_bytes" json:"device_memory_budget_bytes"`
	DeviceFraction     float64 `yaml:"device_fraction" json:"device_fraction"`
	InputLimit         int     `yaml:"input_limit" json:"input_limit"`
	PoolLimit          int     `yaml:"pool_limit" json:"pool_limit"`

	// Durability / transport knobs (ambient, optional)
	Compression  bool `yaml:"compression" json:"compression"`
	ParityShards int  `yaml:"parity_shards" json:"parity_shards"`

	Verbosity map[string]int `yaml:"verbosity" json:"verbosity"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %q", path)
	}
	c := Default()
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, errors.Wrapf(err, "config: parse %q", path)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns a Config populated with the engine's baseline resource
// knobs; callers still must supply detector geometry and I/O paths.
func Default() *Config {
	return &Config{
		DeviceFraction: 0.75,
		InputLimit:     3,
		PoolLimit:      4,
	}
}

// Validate enforces geometry and resource invariants before any task is
// allowed to run; construction failures must surface before any task runs.
func (c *Config) Validate() error {
	d := c.Detector
	switch {
	case d.NH <= 0 || d.NV <= 0:
		return errors.New("config: detector pixel counts must be positive")
	case d.PitchH <= 0 || d.PitchV <= 0:
		return errors.New("config: detector pixel pitch must be positive")
	case d.DSO <= 0 || d.DSD <= 0 || d.DSO > d.DSD:
		return errors.New("config: require 0 < d_so <= d_sd")
	case c.Scan.NumProj <= 0:
		return errors.New("config: num_projections must be positive")
	case c.Input == "":
		return errors.New("config: input path is required")
	case c.Output == "":
		return errors.New("config: output path is required")
	}
	if c.ROI.Enabled {
		if c.ROI.X1 >= c.ROI.X2 || c.ROI.Y1 >= c.ROI.Y2 || c.ROI.Z1 >= c.ROI.Z2 {
			return errors.New("config: roi bounds must satisfy lo < hi on every axis")
		}
	}
	if c.InputLimit <= 0 {
		return errors.New("config: input_limit must be positive")
	}
	if c.DeviceFraction <= 0 || c.DeviceFraction > 1 {
		return errors.New("config: device_fraction must be in (0, 1]")
	}
	return nil
}

// ToJSON renders the config as indented JSON using the fast
// json-iterator codec.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// owner is the atomically-swapped current config snapshot.
type owner struct {
	ptr atomic.Pointer[Config]
}

var global owner

// Put installs c as the current global snapshot.
func Put(c *Config) { global.ptr.Store(c) }

// Get returns the current global snapshot, or nil if none has been
// installed yet.
func Get() *Config { return global.ptr.Load() }
