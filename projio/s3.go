package projio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func init() { Register("s3", &s3Backend{}) }

type s3Backend struct{}

// splitBucketKey turns "s3://bucket/prefix" into ("bucket", "prefix").
func splitBucketKey(path string) (bucket, key string) {
	trimmed := strings.TrimPrefix(path, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		key = parts[1]
	}
	return
}

func (s3Backend) OpenReader(ctx context.Context, path string) (ProjectionReader, error) {
	bucket, prefix := splitBucketKey(path)
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("projio: loading aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	var keys []string
	var token *string
	for {
		out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("projio: listing s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Strings(keys)

	return &s3Reader{client: client, downloader: manager.NewDownloader(client), bucket: bucket, keys: keys}, nil
}

func (s3Backend) OpenWriter(ctx context.Context, path, prefix string) (VolumeWriter, error) {
	bucket, dirKey := splitBucketKey(path)
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("projio: loading aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &s3Writer{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		dirKey:   strings.TrimSuffix(dirKey, "/"),
		prefix:   prefix,
	}, nil
}

type s3Reader struct {
	client     *s3.Client
	downloader *manager.Downloader
	bucket     string
	keys       []string
	mu         sync.Mutex
}

func (r *s3Reader) Count(context.Context) (int, error) { return len(r.keys), nil }

func (r *s3Reader) ReadProjection(ctx context.Context, index int) ([]float32, error) {
	r.mu.Lock()
	if index < 0 || index >= len(r.keys) {
		r.mu.Unlock()
		return nil, fmt.Errorf("projio: projection index %d out of range [0,%d)", index, len(r.keys))
	}
	key := r.keys[index]
	r.mu.Unlock()

	buf := manager.NewWriteAtBuffer(nil)
	if _, err := r.downloader.Download(ctx, buf, &s3.GetObjectInput{Bucket: aws.String(r.bucket), Key: aws.String(key)}); err != nil {
		return nil, fmt.Errorf("projio: downloading s3://%s/%s: %w", r.bucket, key, err)
	}
	return bytesToFloat32(buf.Bytes())
}

func (r *s3Reader) Close() error { return nil }

type s3Writer struct {
	uploader *manager.Uploader
	bucket   string
	dirKey   string
	prefix   string
}

func (w *s3Writer) WriteSlice(ctx context.Context, zIndex int, data []float32) error {
	key := fmt.Sprintf("%s/%s_%06d.bin", w.dirKey, w.prefix, zIndex)
	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(float32ToBytes(data)),
	})
	if err != nil {
		return fmt.Errorf("projio: uploading s3://%s/%s: %w", w.bucket, key, err)
	}
	return nil
}

func (w *s3Writer) Close() error { return nil }

func bytesToFloat32(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("projio: object size %d is not a multiple of 4 bytes", len(raw))
	}
	out := make([]float32, len(raw)/4)
	r := bytes.NewReader(raw)
	for i := range out {
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))
	}
	return out, nil
}

func float32ToBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
