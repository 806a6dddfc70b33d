package recon

import (
	"context"
	"fmt"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/lumenct/fdkrecon/cmn/nlog"
	"github.com/lumenct/fdkrecon/geometry"
	"github.com/lumenct/fdkrecon/pipeline"
	"github.com/lumenct/fdkrecon/projio"
)

// Source pulls one task's projection range from the external I/O
// collaborator, tags each with its rotation angle, and emits it on
// host. It is the producer end of a per-device
// pipeline; the shared task queue feeds it one Task at a time.
type Source struct {
	Reader   projio.ProjectionReader
	DeltaPhi float64
	Detector geometry.Detector

	seen *cuckoo.Filter // guards against a backend listing the same index twice
}

// NewSource constructs a Source bound to a reader and the scan's
// angular step.
func NewSource(reader projio.ProjectionReader, det geometry.Detector, deltaPhi float64) *Source {
	return &Source{Reader: reader, DeltaPhi: deltaPhi, Detector: det, seen: cuckoo.NewFilter(4096)}
}

// Stream reads every projection index in [task.ProjStart, task.ProjEnd)
// and sends it to out, finishing with a clean sentinel. Errors from the
// reader poison the stream instead.
func (s *Source) Stream(ctx context.Context, task geometry.Task, out chan<- pipeline.Item[*Projection]) {
	// Every task streams the full projection range, so duplicates are
	// only tracked within one task.
	s.seen = cuckoo.NewFilter(4096)
	for idx := task.ProjStart; idx < task.ProjEnd; idx++ {
		key := []byte(fmt.Sprintf("%d", idx))
		if s.seen.Lookup(key) {
			nlog.Warningf("recon: duplicate projection index %d reported by backend, skipping", idx)
			continue
		}

		data, err := s.Reader.ReadProjection(ctx, idx)
		if err != nil {
			s.poison(ctx, out, fmt.Errorf("recon: source: reading projection %d: %w", idx, err))
			return
		}
		if len(data) != s.Detector.NH*s.Detector.NV {
			s.poison(ctx, out, fmt.Errorf("recon: source: projection %d has %d samples, want %d", idx, len(data), s.Detector.NH*s.Detector.NV))
			return
		}
		s.seen.Insert(key)
		projio.VerifyProjection(idx, data)

		proj := &Projection{
			Host:   data,
			Width:  s.Detector.NH,
			Height: s.Detector.NV,
			Pitch:  s.Detector.NH,
			Index:  idx,
			Phi:    float64(idx) * s.DeltaPhi,
		}
		select {
		case out <- pipeline.Data(proj):
		case <-ctx.Done():
			return
		}
	}
	select {
	case out <- pipeline.Sentinel[*Projection]():
	case <-ctx.Done():
	}
}

func (s *Source) poison(ctx context.Context, out chan<- pipeline.Item[*Projection], err error) {
	nlog.Errorln(err)
	select {
	case out <- pipeline.Poison[*Projection](err):
	case <-ctx.Done():
	}
}
