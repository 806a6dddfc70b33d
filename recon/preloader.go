package recon

import (
	"context"
	"fmt"

	"github.com/lumenct/fdkrecon/device"
	"github.com/lumenct/fdkrecon/devmem"
)

// Preloader uploads a host projection into a pooled device buffer,
// zero-filling the destination first so any padding
// introduced by the pool's pitch alignment reads as zero rather than
// stale memory. The copy runs on a fresh stream attached to the
// projection; the stream is synchronized exactly once here, before the
// host buffer is dropped, so every later stage can stay asynchronous.
type Preloader struct {
	Pool  *devmem.Pool[float32]
	Accel device.Accelerator
}

func NewPreloader(pool *devmem.Pool[float32], accel device.Accelerator) *Preloader {
	return &Preloader{Pool: pool, Accel: accel}
}

func (p *Preloader) Transform(ctx context.Context, proj *Projection) (*Projection, error) {
	handle, err := p.Pool.AllocateSmart(proj.Width, proj.Height)
	if err != nil {
		return nil, fmt.Errorf("recon: preloader: allocating device buffer: %w", err)
	}
	buf := handle.Buffer()
	for i := range buf.Data {
		buf.Data[i] = 0
	}

	stream := p.Accel.NewStream()
	stream.Launch(func(context.Context) error {
		for row := 0; row < proj.Height; row++ {
			src := proj.Host[row*proj.Width : (row+1)*proj.Width]
			dst := buf.Data[row*buf.Pitch : row*buf.Pitch+proj.Width]
			copy(dst, src)
		}
		return nil
	})
	if err := stream.Synchronize(ctx); err != nil {
		handle.Release()
		return nil, fmt.Errorf("recon: preloader: synchronizing upload for projection %d: %w", proj.Index, err)
	}

	proj.Host = nil
	proj.Data = handle
	proj.Pitch = buf.Pitch
	proj.Stream = stream
	return proj, nil
}
