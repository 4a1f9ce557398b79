// Public domain.

// Package stamp defines the observed-data structures the inference core
// consumes: calibrated image stamps, their world coordinate transforms and
// point spread function models.  Stamps are produced by external loaders
// and are read-only to the core.
package stamp

import "github.com/pkg/errors"

// GaussComp is one bivariate Gaussian component of a rendering kernel.
// DX, DY offset the component from the nominal center; Cxx, Cxy, Cyy are
// the covariance in pixel units.
type GaussComp struct {
	Weight        float64
	DX, DY        float64
	Cxx, Cxy, Cyy float64
}

// PSF evaluates the point spread function at a pixel location, returning
// the local rendering kernel as a mixture of Gaussians.  Component weights
// of a calibrated PSF sum to one.
type PSF interface {
	Kernel(x, y float64) []GaussComp
}

// ConstPSF is a PSF that does not vary across the stamp.
type ConstPSF []GaussComp

func (p ConstPSF) Kernel(x, y float64) []GaussComp { return p }

// DefaultPSF is a two-component circular Gaussian mixture with a compact
// core and a wide halo, a serviceable stand-in where no calibrated PSF is
// available (synthetic fields, tests).
func DefaultPSF() ConstPSF {
	return ConstPSF{
		{Weight: .8, Cxx: 1.2, Cyy: 1.2},
		{Weight: .2, Cxx: 4.0, Cyy: 4.0},
	}
}

// Stamp is one band's observed data for a field: a grid of calibrated
// electron-count pixel values with per-pixel noise variance, an optional
// per-pixel sky background and bad-pixel mask, a world coordinate transform
// and a PSF model.  Stamps of one field are registered to a common pixel
// grid.  Immutable once loaded.
type Stamp struct {
	Band     int
	W, H     int
	Pixels   []float64 // electron counts, row-major
	Variance []float64 // per-pixel noise variance
	Sky      []float64 // per-pixel background, nil for zero
	Mask     []bool    // true marks a bad pixel, nil for none
	WCS      *WCS
	PSF      PSF
}

// New allocates a stamp with zero pixels and unit variance.
func New(band, w, h int, wcs *WCS, psf PSF) *Stamp {
	s := &Stamp{
		Band:     band,
		W:        w,
		H:        h,
		Pixels:   make([]float64, w*h),
		Variance: make([]float64, w*h),
		WCS:      wcs,
		PSF:      psf,
	}
	for i := range s.Variance {
		s.Variance[i] = 1
	}
	return s
}

// Idx maps pixel coordinates to the row-major index.
func (s *Stamp) Idx(x, y int) int { return y*s.W + x }

// At returns the pixel value at x, y.
func (s *Stamp) At(x, y int) float64 { return s.Pixels[y*s.W+x] }

// SkyAt returns the background at x, y, zero if no sky plane is attached.
func (s *Stamp) SkyAt(x, y int) float64 {
	if s.Sky == nil {
		return 0
	}
	return s.Sky[y*s.W+x]
}

// Bad reports whether the pixel is masked.
func (s *Stamp) Bad(x, y int) bool {
	return s.Mask != nil && s.Mask[y*s.W+x]
}

// Check validates plane dimensions against W and H and rejects
// non-positive noise variances, which would divide to NaN downstream.
func (s *Stamp) Check() error {
	n := s.W * s.H
	if len(s.Pixels) != n || len(s.Variance) != n {
		return errors.Errorf("stamp: band %d planes sized %d/%d, want %d",
			s.Band, len(s.Pixels), len(s.Variance), n)
	}
	for i, t := range s.Variance {
		if !(t > 0) {
			return errors.Errorf("stamp: band %d variance %g at pixel %d",
				s.Band, t, i)
		}
	}
	if s.Sky != nil && len(s.Sky) != n {
		return errors.Errorf("stamp: band %d sky plane sized %d, want %d",
			s.Band, len(s.Sky), n)
	}
	if s.Mask != nil && len(s.Mask) != n {
		return errors.Errorf("stamp: band %d mask sized %d, want %d",
			s.Band, len(s.Mask), n)
	}
	if s.PSF == nil {
		return errors.Errorf("stamp: band %d has no PSF model", s.Band)
	}
	return nil
}
