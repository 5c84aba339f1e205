package parser

import (
	"strconv"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/dcmkit/internal/model"
)

// builder is the mutable in-progress form of one record. It owns the
// growable axis and value buffers and converts to an immutable model.Record
// only at END, which is the single point where the shape invariants are
// enforced.
type builder struct {
	rec *model.Record

	x    []float64
	y    []float64
	flat []float64   // WERT buffer for scalar, block and curve shapes
	rows [][]float64 // one row per ST/Y entry, map shapes only

	text     string
	haveText bool
}

func newBuilder(kind model.Kind, name string, dimX, dimY, line int) *builder {
	return &builder{
		rec: &model.Record{
			Kind: kind,
			Name: name,
			DimX: dimX,
			DimY: dimY,
			Line: line,
		},
	}
}

// parseFloat converts one token to a float64, attributing failures to the
// record and source line.
func parseFloat(token string, line int, record string) (float64, error) {
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, &ValueFormatError{Line: line, Record: record, Token: token}
	}
	return f, nil
}

func (b *builder) parseFloats(tokens []string, line int) ([]float64, error) {
	out := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		f, err := parseFloat(tok, line, b.rec.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// addX appends support points to the X axis. Consecutive ST/X lines
// concatenate, which is how long axes wrap across physical lines.
func (b *builder) addX(tokens []string, line int) error {
	vals, err := b.parseFloats(tokens, line)
	if err != nil {
		return err
	}
	b.x = append(b.x, vals...)
	return nil
}

// addY appends Y support points. Each point opens a new matrix row; the
// WERT tokens that follow accumulate into that row.
func (b *builder) addY(tokens []string, line int) error {
	vals, err := b.parseFloats(tokens, line)
	if err != nil {
		return err
	}
	for _, v := range vals {
		b.y = append(b.y, v)
		b.rows = append(b.rows, nil)
	}
	return nil
}

// addValues appends WERT tokens: to the current map row for map shapes, to
// the flat buffer otherwise. Consecutive WERT lines continue the same
// logical row.
func (b *builder) addValues(tokens []string, line int) error {
	vals, err := b.parseFloats(tokens, line)
	if err != nil {
		return err
	}
	if b.rec.Kind.IsMap() {
		if len(b.rows) == 0 {
			return &ShapeError{Line: line, Record: b.rec.Name, What: "WERT before any ST/Y row"}
		}
		i := len(b.rows) - 1
		b.rows[i] = append(b.rows[i], vals...)
		return nil
	}
	b.flat = append(b.flat, vals...)
	return nil
}

// setText records a TEXT value for a scalar parameter.
func (b *builder) setText(value string) {
	b.text = value
	b.haveText = true
}

func strictlyIncreasing(vals []float64) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i] <= vals[i-1] {
			return false
		}
	}
	return true
}

// finish validates the accumulated data against the declared dimensions and
// produces the immutable record.
func (b *builder) finish() (*model.Record, error) {
	r := b.rec
	switch r.Kind {
	case model.Parameter:
		if b.haveText && len(b.flat) > 0 {
			return nil, &ShapeError{Line: r.Line, Record: r.Name, What: "has both WERT and TEXT"}
		}
		if b.haveText {
			r.Value = cty.StringVal(b.text)
			break
		}
		if len(b.flat) != 1 {
			return nil, &ShapeError{Line: r.Line, Record: r.Name, What: "scalar value", Want: 1, Got: len(b.flat)}
		}
		r.Value = cty.NumberFloatVal(b.flat[0])

	case model.BlockParameter:
		rows := r.DimY
		if rows < 1 {
			rows = 1
			r.DimY = 1
		}
		total := r.DimX * rows
		if len(b.flat) != total {
			return nil, &ShapeError{Line: r.Line, Record: r.Name, What: "values", Want: total, Got: len(b.flat)}
		}
		r.Values = make([][]float64, rows)
		for i := range r.Values {
			r.Values[i] = b.flat[i*r.DimX : (i+1)*r.DimX]
		}

	case model.CharacteristicLine, model.FixedCharacteristicLine, model.GroupCharacteristicLine:
		if len(b.x) != r.DimX {
			return nil, &ShapeError{Line: r.Line, Record: r.Name, What: "X axis", Want: r.DimX, Got: len(b.x)}
		}
		if len(b.flat) != r.DimX {
			return nil, &ShapeError{Line: r.Line, Record: r.Name, What: "values", Want: r.DimX, Got: len(b.flat)}
		}
		if !strictlyIncreasing(b.x) {
			return nil, &AxisOrderError{Line: r.Line, Record: r.Name, Axis: "X"}
		}
		r.X = b.x
		r.Values = [][]float64{b.flat}

	case model.CharacteristicMap, model.FixedCharacteristicMap, model.GroupCharacteristicMap:
		if len(b.x) != r.DimX {
			return nil, &ShapeError{Line: r.Line, Record: r.Name, What: "X axis", Want: r.DimX, Got: len(b.x)}
		}
		if len(b.rows) != r.DimY {
			return nil, &ShapeError{Line: r.Line, Record: r.Name, What: "rows", Want: r.DimY, Got: len(b.rows)}
		}
		for _, row := range b.rows {
			if len(row) != r.DimX {
				return nil, &ShapeError{Line: r.Line, Record: r.Name, What: "row values", Want: r.DimX, Got: len(row)}
			}
		}
		if !strictlyIncreasing(b.x) {
			return nil, &AxisOrderError{Line: r.Line, Record: r.Name, Axis: "X"}
		}
		if !strictlyIncreasing(b.y) {
			return nil, &AxisOrderError{Line: r.Line, Record: r.Name, Axis: "Y"}
		}
		r.X = b.x
		r.Y = b.y
		r.Values = b.rows

	case model.Distribution:
		if len(b.x) != r.DimX {
			return nil, &ShapeError{Line: r.Line, Record: r.Name, What: "X axis", Want: r.DimX, Got: len(b.x)}
		}
		r.X = b.x
	}
	return r, nil
}
