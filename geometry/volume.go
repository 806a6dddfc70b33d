package geometry

import "math"

// ROI is an optional axis-aligned clip of the reconstructed volume,
// expressed in volume (physical) coordinates.
type ROI struct {
	Enabled    bool
	X1, X2     float64
	Y1, Y2     float64
	Z1, Z2     float64
}

// Volume holds the immutable reconstructed-volume geometry,
// derived from a Detector by the standard FDK magnification formula
// unless an ROI override narrows the extent.
type Volume struct {
	NX, NY, NZ int
	Voxel      float64 // isotropic voxel size vx
	XMin, YMin, ZMin float64
}

// DeriveVolume computes the full-field volume geometry for a detector,
// centered at isocenter. If roi is
// enabled, the volume is instead clipped (and re-gridded) to the ROI
// bounds at the same voxel size.
func DeriveVolume(det Detector, roi ROI) (Volume, error) {
	vx := det.PitchH * det.DSO / det.DSD // standard FDK magnification formula
	if vx <= 0 || math.IsNaN(vx) || math.IsInf(vx, 0) {
		return Volume{}, errConstruction("derived voxel size is not a positive finite number")
	}

	// Full field of view, centered at isocenter: the detector's horizontal
	// extent maps back through the magnification to the transaxial field,
	// and the vertical extent maps directly (cone angle aside) to z.
	fovXY := float64(det.NH) * det.PitchH / det.Magnification()
	fovZ := float64(det.NV) * det.PitchV / det.Magnification()

	nx := int(math.Round(fovXY / vx))
	ny := nx
	nz := int(math.Round(fovZ / vx))
	xmin := -float64(nx) / 2 * vx
	ymin := -float64(ny) / 2 * vx
	zmin := -float64(nz) / 2 * vx

	v := Volume{NX: nx, NY: ny, NZ: nz, Voxel: vx, XMin: xmin, YMin: ymin, ZMin: zmin}
	if !roi.Enabled {
		return v, v.validate()
	}
	return clipToROI(v, roi)
}

func clipToROI(full Volume, roi ROI) (Volume, error) {
	if roi.X1 >= roi.X2 || roi.Y1 >= roi.Y2 || roi.Z1 >= roi.Z2 {
		return Volume{}, errConstruction("roi bounds must satisfy lo < hi on every axis")
	}
	vx := full.Voxel
	nx := int(math.Round((roi.X2 - roi.X1) / vx))
	ny := int(math.Round((roi.Y2 - roi.Y1) / vx))
	nz := int(math.Round((roi.Z2 - roi.Z1) / vx))
	v := Volume{NX: nx, NY: ny, NZ: nz, Voxel: vx, XMin: roi.X1, YMin: roi.Y1, ZMin: roi.Z1}
	if err := v.validate(); err != nil {
		return Volume{}, err
	}
	// ROI must lie within the full field of view; outside it the
	// detector never illuminates the requested voxels.
	if v.XMin < full.XMin || v.YMin < full.YMin || v.ZMin < full.ZMin ||
		v.XMin+float64(v.NX)*vx > full.XMin+float64(full.NX)*vx ||
		v.YMin+float64(v.NY)*vx > full.YMin+float64(full.NY)*vx ||
		v.ZMin+float64(v.NZ)*vx > full.ZMin+float64(full.NZ)*vx {
		return Volume{}, errConstruction("roi extends beyond the detector's field of view")
	}
	return v, nil
}

func (v Volume) validate() error {
	if v.NX <= 0 || v.NY <= 0 || v.NZ <= 0 {
		return errConstruction("derived volume has a non-positive voxel count on some axis")
	}
	return nil
}

// VoxelCenter returns the physical (X, Y, Z) coordinate at the center of
// voxel (x, y, z), the first step of back-projection.
func (v Volume) VoxelCenter(x, y, z int) (X, Y, Z float64) {
	X = float64(x)*v.Voxel + v.XMin + v.Voxel/2
	Y = float64(y)*v.Voxel + v.YMin + v.Voxel/2
	Z = float64(z)*v.Voxel + v.ZMin + v.Voxel/2
	return
}
