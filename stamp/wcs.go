// Public domain.

package stamp

import (
	"math"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/unit"
)

// SkyCoord is an equatorial sky position.
type SkyCoord struct {
	RA, Dec unit.Angle
}

// WCS is a gnomonic tangent-plane world coordinate transform mapping the
// field's common pixel grid to the sky.  Scale is the angular size of one
// pixel; Rot rotates the pixel axes within the tangent plane.
type WCS struct {
	Ref    SkyCoord   // sky position of the reference pixel
	RefPix [2]float64 // reference pixel coordinates
	Scale  unit.Angle // one pixel, on the sky
	Rot    unit.Angle // grid rotation, east of north
}

// cart converts a sky position to an equatorial unit vector.
func cart(s SkyCoord) coord.Cart {
	sd, cd := math.Sincos(s.Dec.Rad())
	sr, cr := math.Sincos(s.RA.Rad())
	return coord.Cart{X: cd * cr, Y: cd * sr, Z: sd}
}

// basis returns the reference unit vector and the local east and north
// tangent vectors at the reference point.
func (w *WCS) basis() (r, e, n coord.Cart) {
	r = cart(w.Ref)
	sd, cd := math.Sincos(w.Ref.Dec.Rad())
	sr, cr := math.Sincos(w.Ref.RA.Rad())
	e = coord.Cart{X: -sr, Y: cr, Z: 0}
	n = coord.Cart{X: -sd * cr, Y: -sd * sr, Z: cd}
	return
}

// ToPixel projects a sky position onto the pixel grid.
func (w *WCS) ToPixel(s SkyCoord) (x, y float64) {
	r, e, n := w.basis()
	v := cart(s)
	d := v.Dot(&r)
	// standard gnomonic coordinates, radians
	xi := v.Dot(&e) / d
	eta := v.Dot(&n) / d
	sr, cr := math.Sincos(w.Rot.Rad())
	inv := 1 / w.Scale.Rad()
	x = w.RefPix[0] + (xi*cr+eta*sr)*inv
	y = w.RefPix[1] + (-xi*sr+eta*cr)*inv
	return
}

// ToSky deprojects pixel coordinates to the sky.
func (w *WCS) ToSky(x, y float64) SkyCoord {
	sr, cr := math.Sincos(w.Rot.Rad())
	px := (x - w.RefPix[0]) * w.Scale.Rad()
	py := (y - w.RefPix[1]) * w.Scale.Rad()
	xi := px*cr - py*sr
	eta := px*sr + py*cr

	r, e, n := w.basis()
	var v, t coord.Cart
	t = e
	t.MulScalar(&t, xi)
	v.Add(&r, &t)
	t = n
	t.MulScalar(&t, eta)
	v.Add(&v, &t)
	m := 1 / math.Sqrt(v.Square())
	v.MulScalar(&v, m)

	ra := math.Atan2(v.Y, v.X)
	if ra < 0 {
		ra += 2 * math.Pi
	}
	return SkyCoord{RA: unit.Angle(ra), Dec: unit.Angle(math.Asin(v.Z))}
}
