package model

import "github.com/zclconf/go-cty/cty"

// Kind identifies which of the nine DCM block shapes a record is. The set is
// closed: the parser's dispatch and the writer's emission both switch
// exhaustively over it, so adding a kind without handling it everywhere is a
// compile-visible gap rather than a silent no-op.
type Kind int

const (
	// Parameter is a FESTWERT block: a single numeric or text value.
	Parameter Kind = iota
	// BlockParameter is a FESTWERTEBLOCK block: a 1D or 2D numeric matrix.
	BlockParameter
	// CharacteristicLine is a KENNLINIE block: X breakpoints with values.
	CharacteristicLine
	// FixedCharacteristicLine is a FESTKENNLINIE block: same shape as
	// CharacteristicLine with a runtime-fixed axis.
	FixedCharacteristicLine
	// GroupCharacteristicLine is a GRUPPENKENNLINIE block: a curve grouped
	// under a parent characteristic.
	GroupCharacteristicLine
	// CharacteristicMap is a KENNFELD block: an X×Y lookup matrix.
	CharacteristicMap
	// FixedCharacteristicMap is a FESTKENNFELD block with fixed axes.
	FixedCharacteristicMap
	// GroupCharacteristicMap is a GRUPPENKENNFELD block, grouped.
	GroupCharacteristicMap
	// Distribution is a STUETZSTELLENVERTEILUNG block: bare X support points.
	Distribution
)

var kindKeywords = map[Kind]string{
	Parameter:               "FESTWERT",
	BlockParameter:          "FESTWERTEBLOCK",
	CharacteristicLine:      "KENNLINIE",
	FixedCharacteristicLine: "FESTKENNLINIE",
	GroupCharacteristicLine: "GRUPPENKENNLINIE",
	CharacteristicMap:       "KENNFELD",
	FixedCharacteristicMap:  "FESTKENNFELD",
	GroupCharacteristicMap:  "GRUPPENKENNFELD",
	Distribution:            "STUETZSTELLENVERTEILUNG",
}

// Keyword returns the block-start keyword for the kind.
func (k Kind) Keyword() string {
	return kindKeywords[k]
}

// String implements fmt.Stringer via the block keyword.
func (k Kind) String() string {
	return kindKeywords[k]
}

// KindForKeyword maps a block-start keyword back to its kind.
func KindForKeyword(keyword string) (Kind, bool) {
	for k, kw := range kindKeywords {
		if kw == keyword {
			return k, true
		}
	}
	return 0, false
}

// IsMap reports whether the kind carries a Y axis and a row-per-Y matrix.
func (k Kind) IsMap() bool {
	switch k {
	case CharacteristicMap, FixedCharacteristicMap, GroupCharacteristicMap:
		return true
	}
	return false
}

// IsLine reports whether the kind is one of the curve shapes: X breakpoints
// plus an equal-length value vector.
func (k Kind) IsLine() bool {
	switch k {
	case CharacteristicLine, FixedCharacteristicLine, GroupCharacteristicLine:
		return true
	}
	return false
}

// Record is one named data block of a DCM document. A record is assembled
// field by field during parsing and treated as immutable afterwards; the
// writer only reads it.
//
// Which fields are populated depends on Kind:
//
//   - Parameter: Value (number or text), no axes.
//   - BlockParameter: DimX/DimY and Values (DimY rows of DimX).
//   - curve kinds: DimX, X and Values (one row of DimX).
//   - map kinds: DimX/DimY, X, Y and Values (DimY rows of DimX).
//   - Distribution: DimX and X only.
type Record struct {
	Kind Kind
	Name string
	Line int // 1-based line of the block-start keyword

	LongName    string // LANGNAME
	DisplayName string // DISPLAYNAME
	Function    string // FUNKTION
	UnitX       string // EINHEIT_X
	UnitY       string // EINHEIT_Y
	UnitValues  string // EINHEIT_W

	Comments []string // block comments, prefix stripped, in order
	XMapping string   // *SSTX distribution reference
	YMapping string   // *SSTY distribution reference

	DimX, DimY int
	Value      cty.Value // Parameter only
	X, Y       []float64
	Values     [][]float64

	Variants []Variant
}

// Variant returns the override value for a variant name. With duplicate
// names the later occurrence shadows the earlier ones.
func (r *Record) Variant(name string) (cty.Value, bool) {
	var value cty.Value
	found := false
	for _, v := range r.Variants {
		if v.Name == name {
			value = v.Value
			found = true
		}
	}
	return value, found
}
