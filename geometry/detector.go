// Package geometry implements the geometry and task planner: closed-form
// derivation of volume extent and subvolume decomposition from detector
// geometry plus an optional ROI, and emission of the immutable task list
// the pipeline's shared queue drains.
package geometry

// Detector holds the immutable flat-panel detector geometry.
// Zero value is invalid; construct via NewDetector so the derived fields
// are always consistent with the inputs.
type Detector struct {
	NH, NV         int
	PitchH, PitchV float64
	DSO, DSD       float64

	// Derived
	HMin, VMin float64
}

// NewDetector validates inputs and computes the derived half-extent
// offsets used by every kernel that maps a pixel index to a physical
// coordinate (weighting, back-projection).
func NewDetector(nh, nv int, pitchH, pitchV, dso, dsd float64) (Detector, error) {
	d := Detector{NH: nh, NV: nv, PitchH: pitchH, PitchV: pitchV, DSO: dso, DSD: dsd}
	if err := d.validate(); err != nil {
		return Detector{}, err
	}
	d.HMin = -(float64(nh-1) / 2) * pitchH
	d.VMin = -(float64(nv-1) / 2) * pitchV
	return d, nil
}

func (d Detector) validate() error {
	switch {
	case d.NH <= 0 || d.NV <= 0:
		return errConstruction("detector pixel counts must be positive")
	case d.PitchH <= 0 || d.PitchV <= 0:
		return errConstruction("detector pixel pitch must be positive")
	case d.DSO <= 0 || d.DSD <= 0:
		return errConstruction("source distances must be positive")
	case d.DSO > d.DSD:
		return errConstruction("source-to-isocenter distance must not exceed source-to-detector distance")
	}
	return nil
}

// Magnification is d_sd / d_so, the standard FDK magnification factor at
// isocenter, the standard FDK magnification formula.
func (d Detector) Magnification() float64 { return d.DSD / d.DSO }
