// Public domain.

// Package fieldio reads and writes field files: gob-encoded bundles of a
// field's image stamps and the catalog entries that seed its sources.
package fieldio

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"

	"github.com/asterhaus/skyvi/seed"
	"github.com/asterhaus/skyvi/stamp"
)

// Ffn is the conventional field file name.
const Ffn = "skyvi.field"

// Field is one field's observed data and initial catalog.
type Field struct {
	Name    string
	Stamps  []*stamp.Stamp
	Entries []seed.CatalogEntry
}

func init() {
	// concrete PSF implementations crossing the gob boundary
	gob.Register(stamp.ConstPSF{})
}

// WriteFile writes fields to a gob field file.
func WriteFile(fn string, fields []Field) error {
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrap(err, "fieldio: create")
	}
	defer f.Close()
	enc := gob.NewEncoder(f)
	if err = enc.Encode(len(fields)); err != nil {
		return errors.Wrap(err, "fieldio: encode count")
	}
	for i := range fields {
		if err = enc.Encode(&fields[i]); err != nil {
			return errors.Wrapf(err, "fieldio: encode field %q", fields[i].Name)
		}
	}
	return nil
}

// ReadFile reads a gob field file.
func ReadFile(fn string) ([]Field, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "fieldio: open")
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	var n int
	if err = dec.Decode(&n); err != nil {
		return nil, errors.Wrap(err, "fieldio: decode count")
	}
	fields := make([]Field, n)
	for i := range fields {
		if err = dec.Decode(&fields[i]); err != nil {
			return nil, errors.Wrapf(err, "fieldio: decode field %d", i)
		}
		for _, st := range fields[i].Stamps {
			if err = st.Check(); err != nil {
				return nil, err
			}
		}
	}
	return fields, nil
}
