package projio

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

func init() { Register("az", &azBackend{}) }

type azBackend struct{}

// splitAccountContainer turns "az://account/container/prefix" into
// its three parts.
func splitAccountContainer(path string) (account, container, prefix string) {
	trimmed := strings.TrimPrefix(path, "az://")
	parts := strings.SplitN(trimmed, "/", 3)
	account = parts[0]
	if len(parts) > 1 {
		container = parts[1]
	}
	if len(parts) > 2 {
		prefix = parts[2]
	}
	return
}

// newClient creates a client with no credential attached: requests are
// sent unauthenticated, and no account key, managed identity,
// environment or CLI login is consulted.
func newClient(account string) (*azblob.Client, error) {
	url := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClientWithNoCredential(url, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{},
	})
	if err != nil {
		return nil, fmt.Errorf("projio: creating azure blob client: %w", err)
	}
	return client, nil
}

func (azBackend) OpenReader(ctx context.Context, path string) (ProjectionReader, error) {
	account, container, prefix := splitAccountContainer(path)
	client, err := newClient(account)
	if err != nil {
		return nil, err
	}

	var keys []string
	pager := client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("projio: listing az://%s/%s: %w", account, container, err)
		}
		for _, item := range page.Segment.BlobItems {
			keys = append(keys, *item.Name)
		}
	}
	sort.Strings(keys)
	return &azReader{client: client, container: container, keys: keys}, nil
}

func (azBackend) OpenWriter(ctx context.Context, path, prefix string) (VolumeWriter, error) {
	account, container, dirKey := splitAccountContainer(path)
	client, err := newClient(account)
	if err != nil {
		return nil, err
	}
	return &azWriter{client: client, container: container, dirKey: strings.TrimSuffix(dirKey, "/"), prefix: prefix}, nil
}

type azReader struct {
	client    *azblob.Client
	container string
	keys      []string
}

func (r *azReader) Count(context.Context) (int, error) { return len(r.keys), nil }

func (r *azReader) ReadProjection(ctx context.Context, index int) ([]float32, error) {
	if index < 0 || index >= len(r.keys) {
		return nil, fmt.Errorf("projio: projection index %d out of range [0,%d)", index, len(r.keys))
	}
	resp, err := r.client.DownloadStream(ctx, r.container, r.keys[index], nil)
	if err != nil {
		return nil, fmt.Errorf("projio: downloading az blob %s: %w", r.keys[index], err)
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return bytesToFloat32(buf.Bytes())
}

func (r *azReader) Close() error { return nil }

type azWriter struct {
	client    *azblob.Client
	container string
	dirKey    string
	prefix    string
}

func (w *azWriter) WriteSlice(ctx context.Context, zIndex int, data []float32) error {
	name := fmt.Sprintf("%s/%s_%06d.bin", w.dirKey, w.prefix, zIndex)
	_, err := w.client.UploadBuffer(ctx, w.container, name, float32ToBytes(data), nil)
	if err != nil {
		return fmt.Errorf("projio: uploading az blob %s: %w", name, err)
	}
	return nil
}

func (w *azWriter) Close() error { return nil }
