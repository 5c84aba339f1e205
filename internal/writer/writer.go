// Package writer serializes a model.Document back to DCM text.
//
// The output is canonical rather than byte-identical to the source: header
// comments are reproduced verbatim, the function registry keeps its
// original order, and records are sorted by (function reference, internal
// name) under a case-sensitive ordinal comparison, records without a
// function first. Numbers are written in plain decimal, never scientific
// notation, and long axis or value rows are wrapped at six numbers per
// physical line, which the parser's continuation rule reassembles.
package writer

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/dcmkit/internal/model"
)

// valuesPerLine is where axis and value rows wrap to a continuation line.
const valuesPerLine = 6

// Write serializes the document to w.
func Write(w io.Writer, doc *model.Document) error {
	for _, line := range Lines(doc) {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Lines produces the document's canonical DCM line sequence.
func Lines(doc *model.Document) []string {
	var out []string

	out = append(out, doc.HeaderComments...)
	if len(out) > 0 {
		out = append(out, "")
	}

	format := doc.Format
	if format == "" {
		format = "2.0"
	}
	out = append(out, "KONSERVIERUNG_FORMAT "+format, "")

	if len(doc.Funcs) > 0 {
		out = append(out, "FUNKTIONEN")
		for _, fn := range doc.Funcs {
			out = append(out, fmt.Sprintf("  FKT %s %s %s", fn.Name, quote(fn.Version), quote(fn.Description)))
		}
		out = append(out, "END")
	}

	for _, rec := range sortedRecords(doc.Records) {
		out = append(out, "")
		out = append(out, recordLines(rec)...)
	}
	return out
}

// sortedRecords orders records by (function reference, internal name) with
// a stable ordinal comparison. Records with no function reference sort
// before all others.
func sortedRecords(records []*model.Record) []*model.Record {
	sorted := make([]*model.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Function != sorted[j].Function {
			return sorted[i].Function < sorted[j].Function
		}
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// quote wraps a value in the format's plain double quotes. DCM has no
// escape sequences, so Go-style quoting must not be used here.
func quote(s string) string {
	return `"` + s + `"`
}

// field emits one `  KEYWORD value` line with the keyword padded the way
// calibration tools lay DCM files out.
func field(keyword, value string) string {
	return fmt.Sprintf("  %-13s %s", keyword, value)
}

// numberRows emits a keyword followed by a number vector, wrapped at
// valuesPerLine numbers per physical line.
func numberRows(keyword string, vals []float64) []string {
	var out []string
	for start := 0; start < len(vals); start += valuesPerLine {
		end := start + valuesPerLine
		if end > len(vals) {
			end = len(vals)
		}
		tokens := make([]string, 0, end-start)
		for _, v := range vals[start:end] {
			tokens = append(tokens, formatFloat(v))
		}
		out = append(out, field(keyword, strings.Join(tokens, " ")))
	}
	return out
}

func variantValue(v cty.Value) string {
	if v.Type() == cty.String {
		return quote(v.AsString())
	}
	f, _ := v.AsBigFloat().Float64()
	return formatFloat(f)
}

// recordLines emits one record block in canonical field order: comments,
// LANGNAME, FUNKTION, DISPLAYNAME, units, axis and value data, VAR lines,
// END.
func recordLines(r *model.Record) []string {
	out := []string{startLine(r)}

	for _, c := range r.Comments {
		out = append(out, "* "+c)
	}
	if r.LongName != "" {
		out = append(out, field("LANGNAME", quote(r.LongName)))
	}
	if r.Function != "" {
		out = append(out, field("FUNKTION", quote(r.Function)))
	}
	if r.DisplayName != "" {
		out = append(out, field("DISPLAYNAME", r.DisplayName))
	}
	if r.UnitX != "" {
		out = append(out, field("EINHEIT_X", quote(r.UnitX)))
	}
	if r.UnitY != "" {
		out = append(out, field("EINHEIT_Y", quote(r.UnitY)))
	}
	if r.UnitValues != "" {
		out = append(out, field("EINHEIT_W", quote(r.UnitValues)))
	}
	if r.XMapping != "" {
		out = append(out, "*SSTX   "+r.XMapping)
	}
	if r.YMapping != "" {
		out = append(out, "*SSTY   "+r.YMapping)
	}

	out = append(out, dataLines(r)...)

	for _, v := range r.Variants {
		out = append(out, field("VAR", v.Name+"="+variantValue(v.Value)))
	}
	return append(out, "END")
}

// startLine emits the block-start keyword, name and declared dimensions.
func startLine(r *model.Record) string {
	switch r.Kind {
	case model.Parameter:
		return fmt.Sprintf("%s %s", r.Kind.Keyword(), r.Name)
	case model.BlockParameter:
		if r.DimY > 1 {
			return fmt.Sprintf("%s %s %d @ %d", r.Kind.Keyword(), r.Name, r.DimX, r.DimY)
		}
		return fmt.Sprintf("%s %s %d", r.Kind.Keyword(), r.Name, r.DimX)
	case model.CharacteristicLine, model.FixedCharacteristicLine,
		model.GroupCharacteristicLine, model.Distribution:
		return fmt.Sprintf("%s %s %d", r.Kind.Keyword(), r.Name, r.DimX)
	case model.CharacteristicMap, model.FixedCharacteristicMap, model.GroupCharacteristicMap:
		return fmt.Sprintf("%s %s %d %d", r.Kind.Keyword(), r.Name, r.DimX, r.DimY)
	}
	panic(fmt.Sprintf("writer: unhandled record kind %d", r.Kind))
}

// dataLines emits the shape-specific payload of the record.
func dataLines(r *model.Record) []string {
	var out []string
	switch r.Kind {
	case model.Parameter:
		if r.Value == cty.NilVal {
			return nil
		}
		if r.Value.Type() == cty.String {
			return []string{field("TEXT", quote(r.Value.AsString()))}
		}
		f, _ := r.Value.AsBigFloat().Float64()
		return []string{field("WERT", formatFloat(f))}

	case model.BlockParameter:
		for _, row := range r.Values {
			out = append(out, numberRows("WERT", row)...)
		}

	case model.CharacteristicLine, model.FixedCharacteristicLine, model.GroupCharacteristicLine:
		out = append(out, numberRows("ST/X", r.X)...)
		for _, row := range r.Values {
			out = append(out, numberRows("WERT", row)...)
		}

	case model.CharacteristicMap, model.FixedCharacteristicMap, model.GroupCharacteristicMap:
		out = append(out, numberRows("ST/X", r.X)...)
		for i, row := range r.Values {
			out = append(out, field("ST/Y", formatFloat(r.Y[i])))
			out = append(out, numberRows("WERT", row)...)
		}

	case model.Distribution:
		out = append(out, numberRows("ST/X", r.X)...)
	}
	return out
}
