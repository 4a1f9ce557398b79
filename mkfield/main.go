// Public domain.

// Command mkfield writes a synthetic field file for skyvi.  The field
// holds one star and one galaxy rendered through the same forward model
// skyvi fits, plus Gaussian noise, so fitted parameters can be compared
// against known truth.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/soniakeys/unit"

	"github.com/asterhaus/skyvi/fieldio"
	"github.com/asterhaus/skyvi/param"
	"github.com/asterhaus/skyvi/seed"
	"github.com/asterhaus/skyvi/stamp"
	"github.com/asterhaus/skyvi/synth"
)

const versionString = "mkfield version 0.1 Go source."
const copyrightString = "Public domain."

func main() {
	fnOut := flag.String("o", fieldio.Ffn, "output field file")
	bands := flag.Int("b", 5, "observation bands")
	size := flag.Int("s", 64, "stamp width and height, pixels")
	noise := flag.Float64("n", 1, "pixel noise standard deviation")
	rseed := flag.Uint64("seed", 42, "noise generator seed")
	v := flag.Bool("v", false, "display version and copyright")
	flag.Parse()
	if *v {
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		return
	}

	lay := param.New(*bands, 2)
	pri := param.DefaultPriors(lay)

	wcs := &stamp.WCS{
		Ref:    stamp.SkyCoord{RA: unit.AngleFromDeg(150), Dec: unit.AngleFromDeg(2.2)},
		RefPix: [2]float64{float64(*size) / 2, float64(*size) / 2},
		Scale:  unit.AngleFromSec(.4),
	}
	base := make([]*stamp.Stamp, *bands)
	for b := range base {
		st := stamp.New(b, *size, *size, wcs, stamp.DefaultPSF())
		st.Sky = make([]float64, st.W*st.H)
		for i := range st.Sky {
			st.Sky[i] = 10
		}
		for i := range st.Variance {
			st.Variance[i] = *noise * *noise
		}
		base[b] = st
	}

	flux := func(ref float64) []float64 {
		f := make([]float64, *bands)
		for b := range f {
			// mild color slope across bands
			f[b] = ref * math.Pow(1.15, float64(b-lay.Ref))
		}
		return f
	}
	entries := []seed.CatalogEntry{
		{
			Pos:      wcs.ToSky(10.1, 12.2),
			Star:     true,
			StarFlux: flux(10000),
			GalFlux:  flux(10000),
		},
		{
			Pos:      wcs.ToSky(40.5, 38.9),
			GalFlux:  flux(8000),
			StarFlux: flux(8000),
			Axis:     .7,
			Angle:    unit.Angle(math.Pi / 4),
			Scale:    4,
			DevFrac:  .1,
		},
	}

	truth, err := synth.Truth(lay, pri, entries, base)
	if err != nil {
		log.Fatal(err)
	}
	obs := synth.Observe(synth.Render(lay, truth, base), *rseed)

	err = fieldio.WriteFile(*fnOut, []fieldio.Field{
		{Name: "demo", Stamps: obs, Entries: entries},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("wrote", *fnOut)
}
