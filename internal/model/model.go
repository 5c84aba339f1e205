// Package model holds the in-memory representation of a parsed DCM file:
// the document header, the function registry and the ordered record
// collection. Values that may be either numeric or textual (scalar
// parameters and variant overrides) are represented as cty.Value so the
// two cases stay distinguishable without an untyped interface.
package model

import "github.com/zclconf/go-cty/cty"

// Document is a fully parsed DCM file.
//
// Records keep their source order; the writer applies its own deterministic
// ordering on output. Header comment lines are kept verbatim, including the
// comment prefix, so a round trip reproduces them unchanged.
type Document struct {
	HeaderComments []string
	Format         string // version token from the KONSERVIERUNG_FORMAT line
	Funcs          []Function
	Records        []*Record
}

// Function is one entry of the FUNKTIONEN registry.
type Function struct {
	Name        string
	Version     string
	Description string
}

// Function looks up a registry entry by name.
func (d *Document) Function(name string) (Function, bool) {
	for _, f := range d.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// Record looks up a record by its internal name. When duplicate names exist
// the later definition wins, matching the format's last-write semantics.
func (d *Document) Record(name string) *Record {
	var found *Record
	for _, r := range d.Records {
		if r.Name == name {
			found = r
		}
	}
	return found
}

// RecordsOfKind returns all records of one kind, in document order.
func (d *Document) RecordsOfKind(kind Kind) []*Record {
	var out []*Record
	for _, r := range d.Records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// RecordsOfFunction returns all records referencing the named function, in
// document order.
func (d *Document) RecordsOfFunction(name string) []*Record {
	var out []*Record
	for _, r := range d.Records {
		if r.Function == name {
			out = append(out, r)
		}
	}
	return out
}

// Variant is a named value override. Overrides are kept in insertion order;
// duplicate names are legal and all occurrences survive a round trip.
type Variant struct {
	Name  string
	Value cty.Value // cty.Number or cty.String
}
