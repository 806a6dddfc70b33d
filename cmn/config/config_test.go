package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validYAML() string {
	return `
input: /data/projections
output: /data/volume
output_prefix: slice
enable_io: true
detector:
  n_h: 512
  n_v: 512
  pitch_h: 0.4
  pitch_v: 0.4
  d_so: 500
  d_sd: 1000
scan:
  delta_phi: 0.01
  num_projections: 360
`
}

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTemp(t, validYAML())
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Detector.NH)
	assert.Equal(t, 512, cfg.Detector.NV)
	assert.Equal(t, 3, cfg.InputLimit, "expected default to survive unset field")
	assert.Equal(t, 4, cfg.PoolLimit, "expected default to survive unset field")
}

func TestLoadRejectsBadGeometry(t *testing.T) {
	path := writeTemp(t, `
input: /data/projections
output: /data/volume
detector:
  n_h: 0
  n_v: 512
  pitch_h: 0.4
  pitch_v: 0.4
  d_so: 500
  d_sd: 1000
scan:
  delta_phi: 0.01
  num_projections: 360
`)
	_, err := Load(path)
	assert.Error(t, err, "expected validation error for zero n_h")
}

func TestValidateRejectsInvertedROI(t *testing.T) {
	cfg := Default()
	cfg.Input, cfg.Output = "in", "out"
	cfg.Detector = Detector{NH: 8, NV: 8, PitchH: 1, PitchV: 1, DSO: 10, DSD: 20}
	cfg.Scan = Scan{DeltaPhi: 0.1, NumProj: 10}
	cfg.ROI = ROI{Enabled: true, X1: 4, X2: 1, Y1: 0, Y2: 1, Z1: 0, Z2: 1}
	assert.Error(t, cfg.Validate(), "expected error for inverted ROI bounds")
}
