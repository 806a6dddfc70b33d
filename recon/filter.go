package recon

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/lumenct/fdkrecon/geometry"
)

// Filter applies the 1-D ramp filter to every row of a projection via
// FFT -> magnitude multiply -> inverse FFT. One Filter
// is built per device at startup; its FFT plan and kernel spectrum are
// reused across every projection and task on that device.
//
// filter_length is derived from n_h, the horizontal (detector-column)
// pixel count — the axis the rows are actually padded and transformed
// along — rather than n_v, which a legacy implementation used by
// mistake. See the design notes for why that mistake is not
// reproduced here.
type Filter struct {
	fft      *fourier.FFT
	length   int
	width    int // n_h, the unpadded row length
	spectrum []float64
}

// NewFilter builds the ramp-filter kernel once for a detector geometry.
func NewFilter(det geometry.Detector) *Filter {
	length := 2 * nextPow2(det.NH)
	tau := det.PitchH

	r := make([]float64, length)
	half := (length - 2) / 2
	for j := -half; j <= length/2; j++ {
		idx := wrapIndex(j, length)
		switch {
		case j == 0:
			r[idx] = 1 / (8 * tau * tau)
		case j%2 == 0:
			r[idx] = 0
		default:
			r[idx] = -1 / (2 * float64(j*j) * math.Pi * math.Pi * tau * tau)
		}
	}

	fft := fourier.NewFFT(length)
	coeffs := fft.Coefficients(nil, r)
	spectrum := make([]float64, len(coeffs))
	for i, c := range coeffs {
		spectrum[i] = tau * cmplxAbs(c)
	}

	return &Filter{fft: fft, length: length, width: det.NH, spectrum: spectrum}
}

func (f *Filter) Transform(_ context.Context, proj *Projection) (*Projection, error) {
	if proj.Data == nil {
		return nil, fmt.Errorf("recon: filter: projection %d has no device buffer", proj.Index)
	}
	buf := proj.Data.Buffer()
	padded := make([]float64, f.length)

	for v := 0; v < proj.Height; v++ {
		row := buf.Data[v*buf.Pitch : v*buf.Pitch+proj.Width]

		for i := range padded {
			padded[i] = 0
		}
		for i := 0; i < f.width && i < len(row); i++ {
			padded[i] = float64(row[i])
		}

		spectrum := f.fft.Coefficients(nil, padded)
		for k := range spectrum {
			// Scaling a complex coefficient by a real, zero-phase
			// magnitude is identical whether expressed as a true
			// complex multiply by (m, 0) or as the source's
			// elementwise (real*m, imag*m): both yield (a*m, b*m).
			m := f.spectrum[k]
			spectrum[k] = complex(real(spectrum[k])*m, imag(spectrum[k])*m)
		}

		filtered := f.fft.Sequence(padded, spectrum)
		for i := 0; i < f.width && i < len(row); i++ {
			row[i] = float32(filtered[i] / float64(f.length))
		}
	}
	return proj, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func wrapIndex(j, length int) int {
	if j < 0 {
		j += length
	}
	return j % length
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
