package projio

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/karrick/godirwalk"
)

func init() { Register("", &localBackend{}) }

type localBackend struct{}

func (localBackend) OpenReader(_ context.Context, dir string) (ProjectionReader, error) {
	entries, err := scanSorted(dir)
	if err != nil {
		return nil, err
	}
	return &localReader{dir: dir, files: entries}, nil
}

func (localBackend) OpenWriter(_ context.Context, dir, prefix string) (VolumeWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &localWriter{dir: dir, prefix: prefix}, nil
}

// scanSorted walks dir with godirwalk (faster than filepath.Walk: it
// avoids a Lstat per entry on most platforms) and returns file paths
// sorted lexically, which for zero-padded projection filenames is also
// the projection-index order.
func scanSorted(dir string) ([]string, error) {
	var files []string
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			files = append(files, path)
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("projio: scanning %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

type localReader struct {
	dir   string
	files []string
	mu    sync.Mutex
}

func (r *localReader) Count(context.Context) (int, error) {
	return len(r.files), nil
}

func (r *localReader) ReadProjection(_ context.Context, index int) ([]float32, error) {
	r.mu.Lock()
	if index < 0 || index >= len(r.files) {
		r.mu.Unlock()
		return nil, fmt.Errorf("projio: projection index %d out of range [0,%d)", index, len(r.files))
	}
	path := r.files[index]
	r.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("projio: opening %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	n := stat.Size() / 4
	out := make([]float32, n)
	var buf [4]byte
	for i := range out {
		if _, err := br.Read(buf[:]); err != nil {
			return nil, fmt.Errorf("projio: reading %s: %w", path, err)
		}
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))
	}
	return out, nil
}

func (r *localReader) Close() error { return nil }

type localWriter struct {
	dir, prefix string
}

func (w *localWriter) WriteSlice(_ context.Context, zIndex int, data []float32) error {
	path := filepath.Join(w.dir, fmt.Sprintf("%s_%06d.bin", w.prefix, zIndex))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("projio: creating %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var buf [4]byte
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("projio: writing %s: %w", path, err)
		}
	}
	return bw.Flush()
}

func (w *localWriter) Close() error { return nil }
