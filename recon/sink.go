package recon

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/reedsolomon"
	"github.com/pierrec/lz4/v3"

	"github.com/lumenct/fdkrecon/cmn/nlog"
	"github.com/lumenct/fdkrecon/projio"
	"github.com/lumenct/fdkrecon/recon/ledger"
)

var sinkJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// manifestEntry records one written slice's checksum for the optional
// compressed, parity-protected run manifest (noting that
// the legacy hard-coded output path must not survive the port: the
// manifest lives wherever the caller points ManifestDir, same as the
// primary volume output).
type manifestEntry struct {
	ZIndex   int    `json:"z"`
	Checksum string `json:"checksum"`
}

// Sink accumulates finished subvolumes from every device pipeline,
// downloads them to host, writes slices through the external I/O
// collaborator, and records a ledger entry per subvolume
// §4.3). It is shared by every pipeline and serializes writes under
// its own lock while accepting concurrent submissions.
type Sink struct {
	Writer projio.VolumeWriter
	Ledger *ledger.Ledger
	RunID  string

	// ManifestDir, if non-empty, enables an optionally compressed and
	// optionally parity-protected manifest of every slice checksum, written once
	// at Finalize.
	ManifestDir  string
	Compression  bool
	ParityShards int

	mu       sync.Mutex
	manifest []manifestEntry
}

// Submit downloads a finished slab, writes each of its z-slices, and
// records completion in the ledger together with a blake2b-256 digest
// of the subvolume's slices in z order.
func (s *Sink) Submit(ctx context.Context, slab *Slab) error {
	if err := slab.Stream.Synchronize(ctx); err != nil {
		slab.Release()
		return fmt.Errorf("recon: sink: synchronizing subvolume %d: %w", slab.Task.SubvolumeID, err)
	}
	buf := slab.Data.Buffer()
	sliceLen := slab.NX() * slab.NY()

	s.mu.Lock()
	defer s.mu.Unlock()

	subvolume := make([]float32, 0, sliceLen*slab.NZ())
	for z := 0; z < slab.NZ(); z++ {
		slice := make([]float32, sliceLen)
		copy(slice, buf.Data[z*buf.Pitch:z*buf.Pitch+sliceLen])
		absZ := slab.Task.ZStart + z

		if err := s.Writer.WriteSlice(ctx, absZ, slice); err != nil {
			slab.Release()
			return fmt.Errorf("recon: sink: writing slice %d: %w", absZ, err)
		}
		checksum := projio.ChecksumSlice(slice)
		s.manifest = append(s.manifest, manifestEntry{ZIndex: absZ, Checksum: checksum})
		subvolume = append(subvolume, slice...)
	}

	if s.Ledger != nil {
		if err := s.Ledger.RecordSubvolume(s.RunID, slab.Task.SubvolumeID, projio.ChecksumSlice(subvolume), time.Now()); err != nil {
			nlog.Errorf("recon: sink: ledger write for subvolume %d: %v", slab.Task.SubvolumeID, err)
		}
	}
	slab.Release()
	return nil
}

// Finalize serializes the accumulated manifest, optionally lz4
// compresses it, and optionally reed-solomon encodes it into data and
// parity shard files, so a corrupted single shard doesn't lose the
// forensic record of a completed run.
func (s *Sink) Finalize() error {
	if s.ManifestDir == "" {
		return nil
	}
	s.mu.Lock()
	raw, err := sinkJSON.Marshal(s.manifest)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("recon: sink: marshaling manifest: %w", err)
	}

	if s.Compression {
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return fmt.Errorf("recon: sink: compressing manifest: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("recon: sink: closing lz4 writer: %w", err)
		}
		raw = buf.Bytes()
	}

	if err := os.MkdirAll(s.ManifestDir, 0o755); err != nil {
		return fmt.Errorf("recon: sink: creating manifest dir: %w", err)
	}

	if s.ParityShards <= 0 {
		path := filepath.Join(s.ManifestDir, s.RunID+"_manifest.bin")
		return os.WriteFile(path, raw, 0o644)
	}
	return s.writeShardedManifest(raw)
}

func (s *Sink) writeShardedManifest(raw []byte) error {
	const dataShards = 4
	enc, err := reedsolomon.New(dataShards, s.ParityShards)
	if err != nil {
		return fmt.Errorf("recon: sink: constructing reed-solomon encoder: %w", err)
	}
	shards, err := enc.Split(raw)
	if err != nil {
		return fmt.Errorf("recon: sink: splitting manifest into shards: %w", err)
	}
	if err := enc.Encode(shards); err != nil {
		return fmt.Errorf("recon: sink: encoding parity shards: %w", err)
	}
	for i, shard := range shards {
		path := filepath.Join(s.ManifestDir, fmt.Sprintf("%s_manifest.shard%02d", s.RunID, i))
		if err := os.WriteFile(path, shard, 0o644); err != nil {
			return fmt.Errorf("recon: sink: writing shard %d: %w", i, err)
		}
	}
	return nil
}
