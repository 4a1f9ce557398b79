// Public domain.

package seed

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/stamp"
)

// PeakOpts tunes peak detection.
type PeakOpts struct {
	Threshold  float64 // detection level in units of local noise sigma
	MinSep     float64 // minimum peak separation, pixels
	Aperture   int     // half-width of the flux seeding aperture
	MaxSources int     // 0 for no cap
}

// DefaultPeakOpts suits high signal-to-noise stamps.
func DefaultPeakOpts() PeakOpts {
	return PeakOpts{Threshold: 5, MinSep: 4, Aperture: 6}
}

type peak struct {
	x, y int
	v    float64
}

// FromPeaks seeds a model from local maxima of the reference-band stamp.
// A pixel is a peak when it exceeds its eight neighbors and rises at least
// Threshold noise sigmas above the background.  Brightness is seeded from
// aperture sums over every band.
func FromPeaks(l *param.Layout, pr *param.Priors, stamps []*stamp.Stamp,
	opts PeakOpts) (*param.Model, error) {

	if len(stamps) == 0 {
		return nil, errors.New("seed: no stamps")
	}
	ref := stamps[0]
	for _, st := range stamps {
		if st.Band == l.Ref {
			ref = st
		}
	}

	var peaks []peak
	for y := 1; y < ref.H-1; y++ {
	pixel:
		for x := 1; x < ref.W-1; x++ {
			if ref.Bad(x, y) {
				continue
			}
			v := ref.At(x, y) - ref.SkyAt(x, y)
			if v < opts.Threshold*math.Sqrt(ref.Variance[ref.Idx(x, y)]) {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if ref.At(x+dx, y+dy)-ref.SkyAt(x+dx, y+dy) > v {
						continue pixel
					}
				}
			}
			peaks = append(peaks, peak{x, y, v})
		}
	}
	if len(peaks) == 0 {
		return nil, errors.New("seed: no peaks above threshold")
	}

	// brightest first, then enforce separation
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].v > peaks[j].v })
	var kept []peak
	for _, p := range peaks {
		near := false
		for _, q := range kept {
			if math.Hypot(float64(p.x-q.x), float64(p.y-q.y)) < opts.MinSep {
				near = true
				break
			}
		}
		if near {
			continue
		}
		kept = append(kept, p)
		if opts.MaxSources > 0 && len(kept) == opts.MaxSources {
			break
		}
	}

	m := param.NewModel(l, pr, len(kept))
	flux := make([]float64, l.Bands)
	for i, p := range kept {
		for b := range flux {
			flux[b] = 1
		}
		for _, st := range stamps {
			flux[st.Band] = math.Max(aperture(st, p.x, p.y, opts.Aperture), 1)
		}
		// undetermined type: equal indicator
		seedSource(l, m.Sources[i], float64(p.x), float64(p.y), flux, .5)
	}
	return m, nil
}

// aperture sums background-subtracted counts in a square box.
func aperture(st *stamp.Stamp, cx, cy, half int) float64 {
	var sum float64
	for y := cy - half; y <= cy+half; y++ {
		for x := cx - half; x <= cx+half; x++ {
			if x < 0 || y < 0 || x >= st.W || y >= st.H || st.Bad(x, y) {
				continue
			}
			sum += st.At(x, y) - st.SkyAt(x, y)
		}
	}
	return sum
}
