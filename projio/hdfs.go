package projio

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/colinmarc/hdfs/v2"
)

func init() { Register("hdfs", &hdfsBackend{}) }

type hdfsBackend struct{}

// splitNamenodePath turns "hdfs://namenode:port/path" into its parts.
func splitNamenodePath(path string) (namenode, dir string) {
	trimmed := strings.TrimPrefix(path, "hdfs://")
	parts := strings.SplitN(trimmed, "/", 2)
	namenode = parts[0]
	if len(parts) > 1 {
		dir = "/" + parts[1]
	} else {
		dir = "/"
	}
	return
}

func (hdfsBackend) OpenReader(_ context.Context, path string) (ProjectionReader, error) {
	namenode, dir := splitNamenodePath(path)
	client, err := hdfs.New(namenode)
	if err != nil {
		return nil, fmt.Errorf("projio: connecting to hdfs namenode %s: %w", namenode, err)
	}
	entries, err := client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("projio: listing hdfs dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return &hdfsReader{client: client, dir: dir, names: names}, nil
}

func (hdfsBackend) OpenWriter(_ context.Context, path, prefix string) (VolumeWriter, error) {
	namenode, dir := splitNamenodePath(path)
	client, err := hdfs.New(namenode)
	if err != nil {
		return nil, fmt.Errorf("projio: connecting to hdfs namenode %s: %w", namenode, err)
	}
	if err := client.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("projio: creating hdfs dir %s: %w", dir, err)
	}
	return &hdfsWriter{client: client, dir: dir, prefix: prefix}, nil
}

type hdfsReader struct {
	client *hdfs.Client
	dir    string
	names  []string
}

func (r *hdfsReader) Count(context.Context) (int, error) { return len(r.names), nil }

func (r *hdfsReader) ReadProjection(_ context.Context, index int) ([]float32, error) {
	if index < 0 || index >= len(r.names) {
		return nil, fmt.Errorf("projio: projection index %d out of range [0,%d)", index, len(r.names))
	}
	path := r.dir + "/" + r.names[index]
	f, err := r.client.Open(path)
	if err != nil {
		return nil, fmt.Errorf("projio: opening hdfs file %s: %w", path, err)
	}
	defer f.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, err
	}
	return bytesToFloat32(buf.Bytes())
}

func (r *hdfsReader) Close() error { return r.client.Close() }

type hdfsWriter struct {
	client *hdfs.Client
	dir    string
	prefix string
}

func (w *hdfsWriter) WriteSlice(_ context.Context, zIndex int, data []float32) error {
	path := fmt.Sprintf("%s/%s_%06d.bin", w.dir, w.prefix, zIndex)
	f, err := w.client.Create(path)
	if err != nil {
		return fmt.Errorf("projio: creating hdfs file %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(float32ToBytes(data)); err != nil {
		return fmt.Errorf("projio: writing hdfs file %s: %w", path, err)
	}
	return f.Close()
}

func (w *hdfsWriter) Close() error { return w.client.Close() }
