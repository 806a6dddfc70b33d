package projio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func init() { Register("https", &httpBackend{}) }

type httpBackend struct{}

// signedToken builds a short-lived bearer token from the HMAC secret in
// PROJIO_HTTP_SECRET, signing the service name as the subject. A real
// deployment would instead fetch this from an auth service; here it
// exists so the projection-service backend has something to attach as
// Authorization without depending on an external token issuer.
func signedToken() (string, error) {
	secret := os.Getenv("PROJIO_HTTP_SECRET")
	if secret == "" {
		return "", nil
	}
	claims := jwt.RegisteredClaims{
		Subject:   "fdkrecon",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}

func (httpBackend) OpenReader(ctx context.Context, base string) (ProjectionReader, error) {
	count, err := fetchCount(ctx, base)
	if err != nil {
		return nil, err
	}
	return &httpReader{base: strings.TrimSuffix(base, "/"), count: count}, nil
}

func (httpBackend) OpenWriter(_ context.Context, base, prefix string) (VolumeWriter, error) {
	return &httpWriter{base: strings.TrimSuffix(base, "/"), prefix: prefix}, nil
}

func fetchCount(ctx context.Context, base string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/count", nil)
	if err != nil {
		return 0, err
	}
	if err := attachAuth(req); err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("projio: fetching projection count from %s: %w", base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("projio: count endpoint returned status %d", resp.StatusCode)
	}
	var n int
	if _, err := fmt.Fscan(resp.Body, &n); err != nil {
		return 0, fmt.Errorf("projio: parsing projection count: %w", err)
	}
	return n, nil
}

func attachAuth(req *http.Request) error {
	tok, err := signedToken()
	if err != nil {
		return fmt.Errorf("projio: signing auth token: %w", err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return nil
}

type httpReader struct {
	base  string
	count int
}

func (r *httpReader) Count(context.Context) (int, error) { return r.count, nil }

func (r *httpReader) ReadProjection(ctx context.Context, index int) ([]float32, error) {
	if index < 0 || index >= r.count {
		return nil, fmt.Errorf("projio: projection index %d out of range [0,%d)", index, r.count)
	}
	url := fmt.Sprintf("%s/projections/%d", r.base, index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if err := attachAuth(req); err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("projio: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("projio: %s returned status %d", url, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return bytesToFloat32(raw)
}

func (r *httpReader) Close() error { return nil }

type httpWriter struct {
	base, prefix string
}

func (w *httpWriter) WriteSlice(ctx context.Context, zIndex int, data []float32) error {
	url := fmt.Sprintf("%s/volumes/%s_%06d", w.base, w.prefix, zIndex)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(float32ToBytes(data)))
	if err != nil {
		return err
	}
	if err := attachAuth(req); err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("projio: putting %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("projio: %s returned status %d", url, resp.StatusCode)
	}
	return nil
}

func (w *httpWriter) Close() error { return nil }
