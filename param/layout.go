// Public domain.

// Package param defines the variational parameter layout used by skyvi and
// the model objects built on it.
package param

// Group identifies one semantic block of a source's parameter vector.
// Groups partition the vector exactly: no overlap, no gap.  The constrained
// and unconstrained representations share cardinality and group order,
// differing only in the per-group transform applied.
type Group int

const (
	GIndicator Group = iota // [pStar, pGal], simplex
	GPosition               // [muX, muY, posVar], field pixel coordinates
	GBrightRef              // [log-flux mean, log-flux variance], reference band
	GBrightRatio            // band/reference multiplicative flux ratios
	GColor                  // per pair, per type: means then variances
	GColorWeight            // per-type simplex over color prior components
	GShapeAxis              // [axis ratio, uncertainty]
	GShapeAngle             // [position angle, uncertainty]
	GShapeScale             // [effective radius, uncertainty]
	GShapeDev               // [de Vaucouleurs fraction, uncertainty]
	numGroups
)

var groupNames = [numGroups]string{
	"indicator", "position", "brightref", "brightratio", "color",
	"colorweight", "shapeaxis", "shapeangle", "shapescale", "shapedev",
}

func (g Group) String() string {
	if g < 0 || g >= numGroups {
		return "invalid"
	}
	return groupNames[g]
}

// NTypes is the number of source type hypotheses: star and galaxy.
const NTypes = 2

// Type indexes within the indicator group and per-type parameter blocks.
const (
	Star = 0
	Gal  = 1
)

// Layout holds the index tables mapping semantic parameter slots to flat
// vector positions.  It is built once per field and is read-only afterward.
type Layout struct {
	Bands int // number of observed bands
	Ref   int // reference band index
	Comps int // color prior mixture components per type

	off [numGroups]int
	ln  [numGroups]int
	n   int
}

// New builds a layout for the given number of bands and color prior
// components.  Bands must be at least 2 so at least one band pair exists.
func New(bands, comps int) *Layout {
	if bands < 2 {
		panic("param: layout needs at least 2 bands")
	}
	if comps < 1 {
		panic("param: layout needs at least 1 color component")
	}
	l := &Layout{Bands: bands, Ref: bands / 2, Comps: comps}
	pairs := bands - 1
	l.ln[GIndicator] = NTypes
	l.ln[GPosition] = 3
	l.ln[GBrightRef] = 2
	l.ln[GBrightRatio] = pairs
	l.ln[GColor] = 2 * pairs * NTypes
	l.ln[GColorWeight] = comps * NTypes
	l.ln[GShapeAxis] = 2
	l.ln[GShapeAngle] = 2
	l.ln[GShapeScale] = 2
	l.ln[GShapeDev] = 2
	for g := Group(1); g < numGroups; g++ {
		l.off[g] = l.off[g-1] + l.ln[g-1]
	}
	l.n = l.off[numGroups-1] + l.ln[numGroups-1]
	return l
}

// Pairs is the number of band pairs: one ratio/color slot per non-reference
// band, ordered by band index with the reference band skipped.
func (l *Layout) Pairs() int { return l.Bands - 1 }

// Len is the length of one source's parameter vector.
func (l *Layout) Len() int { return l.n }

// Dim is the flat dimension of a model of nsrc sources.
func (l *Layout) Dim(nsrc int) int { return nsrc * l.n }

// Off returns the offset of a group within a source vector.
func (l *Layout) Off(g Group) int { return l.off[g] }

// Span returns the offset and length of a group within a source vector.
func (l *Layout) Span(g Group) (off, n int) { return l.off[g], l.ln[g] }

// Group maps a flat index within a source vector to its semantic group.
func (l *Layout) Group(i int) Group {
	for g := Group(1); g < numGroups; g++ {
		if i < l.off[g] {
			return g - 1
		}
	}
	return numGroups - 1
}

// PairBand returns the band of pair j: bands in order, reference skipped.
func (l *Layout) PairBand(j int) int {
	if j >= l.Ref {
		return j + 1
	}
	return j
}

// BandPair is the inverse of PairBand.  ok is false for the reference band.
func (l *Layout) BandPair(b int) (j int, ok bool) {
	if b == l.Ref {
		return 0, false
	}
	if b > l.Ref {
		return b - 1, true
	}
	return b, true
}

// Named slot indexes, all within a single source vector.

func (l *Layout) Ind(t int) int   { return l.off[GIndicator] + t }
func (l *Layout) PosX() int       { return l.off[GPosition] }
func (l *Layout) PosY() int       { return l.off[GPosition] + 1 }
func (l *Layout) PosVar() int     { return l.off[GPosition] + 2 }
func (l *Layout) BrightMean() int { return l.off[GBrightRef] }
func (l *Layout) BrightVar() int  { return l.off[GBrightRef] + 1 }
func (l *Layout) Ratio(j int) int { return l.off[GBrightRatio] + j }

// ColorMean indexes the variational mean of color pair j for type t;
// ColorVar the corresponding variance.
func (l *Layout) ColorMean(j, t int) int { return l.off[GColor] + j*NTypes + t }
func (l *Layout) ColorVar(j, t int) int {
	return l.off[GColor] + l.Pairs()*NTypes + j*NTypes + t
}

// Weight indexes the variational weight of prior component d for type t.
func (l *Layout) Weight(d, t int) int { return l.off[GColorWeight] + d*NTypes + t }

func (l *Layout) AxisMean() int  { return l.off[GShapeAxis] }
func (l *Layout) AxisVar() int   { return l.off[GShapeAxis] + 1 }
func (l *Layout) AngleMean() int { return l.off[GShapeAngle] }
func (l *Layout) AngleVar() int  { return l.off[GShapeAngle] + 1 }
func (l *Layout) ScaleMean() int { return l.off[GShapeScale] }
func (l *Layout) ScaleVar() int  { return l.off[GShapeScale] + 1 }
func (l *Layout) DevMean() int   { return l.off[GShapeDev] }
func (l *Layout) DevVar() int    { return l.off[GShapeDev] + 1 }
