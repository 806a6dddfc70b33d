package projio

import (
	"fmt"

	"github.com/lumenct/fdkrecon/cmn/cos"
	"github.com/lumenct/fdkrecon/cmn/nlog"
)

// VerifyProjection logs (at verbose level) the xxhash checksum of a
// projection as it enters the pipeline from any backend, giving a
// cheap forensic trail without the cost of the full blake2b digest
// used for completed volume slices.
func VerifyProjection(index int, data []float32) {
	if !nlog.FastV(4, "projio") {
		return
	}
	nlog.Infof("projection %d: xxhash=%x", index, cos.ChecksumProjection(data))
}

// ChecksumSlice returns the blake2b-256 digest of a finished volume
// slice. The Sink stage records each slice's digest in the run manifest
// and the digest of each whole subvolume in the run ledger.
func ChecksumSlice(data []float32) string {
	sum := cos.ChecksumVolumeSlice(data)
	return fmt.Sprintf("%x", sum)
}
