// Package projio implements the projection and volume I/O layer,
// external to the reconstruction core: reading single-precision
// projection images keyed by index, and writing reconstructed volume
// slices, across a handful of storage backends selected by a
// scheme-prefixed path (s3://, az://, gs://, hdfs://, https://, or a
// bare filesystem path).
package projio

import (
	"context"
	"fmt"
	"strings"
)

// ProjectionReader reads the n_h x n_v single-precision projection at
// the given index: one file per rotation angle, angle derived from
// file index times Δφ.
type ProjectionReader interface {
	ReadProjection(ctx context.Context, index int) ([]float32, error)
	// Count reports how many projections are available, used by the
	// Source stage to bound the index range it streams.
	Count(ctx context.Context) (int, error)
	Close() error
}

// VolumeWriter writes one reconstructed z-slice, n_x x n_y
// single-precision values, at the given absolute z index: one file per
// slice, filenames {prefix}_{index:06d}.{ext}.
type VolumeWriter interface {
	WriteSlice(ctx context.Context, zIndex int, data []float32) error
	Close() error
}

// Backend bundles a matched reader/writer pair for one storage scheme.
type Backend interface {
	OpenReader(ctx context.Context, path string) (ProjectionReader, error)
	OpenWriter(ctx context.Context, path, prefix string) (VolumeWriter, error)
}

var registry = map[string]Backend{}

// Register installs a backend under a URI scheme (e.g. "s3", "az",
// "gs", "hdfs", "https"); the empty string is the bare-path local
// filesystem backend. Called from each backend's init().
func Register(scheme string, b Backend) {
	registry[scheme] = b
}

// Scheme extracts the "scheme://" prefix from path, or "" for a bare
// filesystem path.
func Scheme(path string) string {
	i := strings.Index(path, "://")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// OpenReader dispatches path to the backend registered for its scheme.
func OpenReader(ctx context.Context, path string) (ProjectionReader, error) {
	b, ok := registry[Scheme(path)]
	if !ok {
		return nil, fmt.Errorf("projio: no backend registered for scheme %q (path %q)", Scheme(path), path)
	}
	return b.OpenReader(ctx, path)
}

// OpenWriter dispatches path to the backend registered for its scheme.
func OpenWriter(ctx context.Context, path, prefix string) (VolumeWriter, error) {
	b, ok := registry[Scheme(path)]
	if !ok {
		return nil, fmt.Errorf("projio: no backend registered for scheme %q (path %q)", Scheme(path), path)
	}
	return b.OpenWriter(ctx, path, prefix)
}
