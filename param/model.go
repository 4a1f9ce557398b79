// Public domain.

package param

import "github.com/pkg/errors"

// Vector is one source's variational parameters in constrained space.
// Slot order and meaning are fixed by Layout.
type Vector []float64

// Model is the full variational state for one field: an ordered list of
// per-source vectors plus the shared prior configuration.  A Model is
// exclusively owned by the call stack optimizing one field.
type Model struct {
	Sources []Vector
	Priors  *Priors
}

// NewModel allocates a model of nsrc sources with all-zero vectors.
func NewModel(l *Layout, priors *Priors, nsrc int) *Model {
	m := &Model{Sources: make([]Vector, nsrc), Priors: priors}
	for i := range m.Sources {
		m.Sources[i] = make(Vector, l.Len())
	}
	return m
}

// Clone deep-copies source vectors.  Priors are shared: they are immutable.
func (m *Model) Clone() *Model {
	c := &Model{Sources: make([]Vector, len(m.Sources)), Priors: m.Priors}
	for i, v := range m.Sources {
		c.Sources[i] = append(Vector{}, v...)
	}
	return c
}

// Check validates vector dimensions against the layout.  A mismatch is
// malformed input and is surfaced immediately, not recovered.
func (m *Model) Check(l *Layout) error {
	if m.Priors == nil {
		return errors.New("param: model has no priors")
	}
	if err := m.Priors.check(l); err != nil {
		return err
	}
	for i, v := range m.Sources {
		if len(v) != l.Len() {
			return errors.Errorf("param: source %d has %d parameters, layout wants %d",
				i, len(v), l.Len())
		}
	}
	return nil
}

// Flatten appends all source vectors into one flat slice of length Dim.
func (m *Model) Flatten(l *Layout, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, 0, l.Dim(len(m.Sources)))
	}
	for _, v := range m.Sources {
		dst = append(dst, v...)
	}
	return dst
}
