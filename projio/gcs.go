package projio

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

func init() { Register("gs", &gcsBackend{}) }

type gcsBackend struct{}

func splitBucketPrefix(path, scheme string) (bucket, prefix string) {
	trimmed := strings.TrimPrefix(path, scheme+"://")
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return
}

func (gcsBackend) OpenReader(ctx context.Context, path string) (ProjectionReader, error) {
	bucket, prefix := splitBucketPrefix(path, "gs")
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("projio: creating gcs client: %w", err)
	}
	bkt := client.Bucket(bucket)

	var keys []string
	it := bkt.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("projio: listing gs://%s/%s: %w", bucket, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	sort.Strings(keys)
	return &gcsReader{bucket: bkt, keys: keys}, nil
}

func (gcsBackend) OpenWriter(ctx context.Context, path, prefix string) (VolumeWriter, error) {
	bucket, dirKey := splitBucketPrefix(path, "gs")
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("projio: creating gcs client: %w", err)
	}
	return &gcsWriter{bucket: client.Bucket(bucket), dirKey: strings.TrimSuffix(dirKey, "/"), prefix: prefix}, nil
}

type gcsReader struct {
	bucket *storage.BucketHandle
	keys   []string
}

func (r *gcsReader) Count(context.Context) (int, error) { return len(r.keys), nil }

func (r *gcsReader) ReadProjection(ctx context.Context, index int) ([]float32, error) {
	if index < 0 || index >= len(r.keys) {
		return nil, fmt.Errorf("projio: projection index %d out of range [0,%d)", index, len(r.keys))
	}
	rc, err := r.bucket.Object(r.keys[index]).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("projio: opening gcs object %s: %w", r.keys[index], err)
	}
	defer rc.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return bytesToFloat32(buf.Bytes())
}

func (r *gcsReader) Close() error { return nil }

type gcsWriter struct {
	bucket *storage.BucketHandle
	dirKey string
	prefix string
}

func (w *gcsWriter) WriteSlice(ctx context.Context, zIndex int, data []float32) error {
	name := fmt.Sprintf("%s/%s_%06d.bin", w.dirKey, w.prefix, zIndex)
	wc := w.bucket.Object(name).NewWriter(ctx)
	if _, err := wc.Write(float32ToBytes(data)); err != nil {
		wc.Close()
		return fmt.Errorf("projio: writing gcs object %s: %w", name, err)
	}
	return wc.Close()
}

func (w *gcsWriter) Close() error { return nil }
