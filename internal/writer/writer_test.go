package writer

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/dcmkit/internal/model"
	"github.com/vk/dcmkit/internal/parser"
)

// reparse runs a document through the writer and back through the parser.
func reparse(t *testing.T, doc *model.Document) *model.Document {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, Write(&sb, doc))
	back, err := parser.Parse(context.Background(), strings.NewReader(sb.String()))
	require.NoError(t, err, "writer output failed to parse:\n%s", sb.String())
	return back
}

// docEqual compares two documents structurally, ignoring source line
// numbers, which legitimately move between original and rewritten text.
func docEqual(t *testing.T, want, got *model.Document) {
	t.Helper()
	opts := []cmp.Option{
		cmp.Comparer(func(a, b cty.Value) bool { return a.RawEquals(b) }),
		cmp.FilterPath(func(p cmp.Path) bool {
			return p.Last().String() == ".Line"
		}, cmp.Ignore()),
	}
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Fatalf("document mismatch after round trip (-want +got):\n%s", diff)
	}
}

func TestRoundTripSample(t *testing.T) {
	f, err := os.Open("../parser/testdata/sample.dcm")
	require.NoError(t, err)
	defer f.Close()

	doc, err := parser.Parse(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, doc.Records, 9)
	require.Len(t, doc.Funcs, 9)

	back := reparse(t, doc)
	require.Len(t, back.Records, 9)
	require.Len(t, back.Funcs, 9)

	// Record order changes to the canonical sort, so compare per record.
	assert.Equal(t, doc.HeaderComments, back.HeaderComments)
	assert.Equal(t, doc.Format, back.Format)
	assert.Equal(t, doc.Funcs, back.Funcs)
	for _, want := range doc.Records {
		got := back.Record(want.Name)
		require.NotNil(t, got, "record %s lost in round trip", want.Name)
		opts := []cmp.Option{
			cmp.Comparer(func(a, b cty.Value) bool { return a.RawEquals(b) }),
			cmp.FilterPath(func(p cmp.Path) bool {
				return p.Last().String() == ".Line"
			}, cmp.Ignore()),
		}
		if diff := cmp.Diff(want, got, opts...); diff != "" {
			t.Errorf("record %s mismatch (-want +got):\n%s", want.Name, diff)
		}
	}

	// A second round trip must be a fixed point.
	docEqual(t, back, reparse(t, back))
}

func TestSortDeterminism(t *testing.T) {
	doc := &model.Document{
		Format: "2.0",
		Records: []*model.Record{
			{Kind: model.Parameter, Name: "b", Function: "Fn", Value: cty.NumberFloatVal(1)},
			{Kind: model.Parameter, Name: "a", Function: "Fn", Value: cty.NumberFloatVal(2)},
			{Kind: model.Parameter, Name: "z", Value: cty.NumberFloatVal(3)},
			{Kind: model.Parameter, Name: "c", Function: "AnotherFn", Value: cty.NumberFloatVal(4)},
		},
	}

	var starts []string
	for _, line := range Lines(doc) {
		if strings.HasPrefix(line, "FESTWERT ") {
			starts = append(starts, strings.TrimPrefix(line, "FESTWERT "))
		}
	}
	// No function reference sorts first, then grouped by function, then name.
	assert.Equal(t, []string{"z", "c", "a", "b"}, starts)
}

func TestVariantQuoting(t *testing.T) {
	doc := &model.Document{
		Format: "2.0",
		Records: []*model.Record{{
			Kind:  model.Parameter,
			Name:  "p",
			Value: cty.NumberFloatVal(25),
			Variants: []model.Variant{
				{Name: "VariantA", Value: cty.NumberFloatVal(27.5)},
				{Name: "VariantB", Value: cty.StringVal("Some text value")},
			},
		}},
	}

	lines := Lines(doc)
	assert.Contains(t, lines, "  VAR           VariantA=27.5")
	assert.Contains(t, lines, `  VAR           VariantB="Some text value"`)

	back := reparse(t, doc)
	r := back.Record("p")
	require.NotNil(t, r)
	v, ok := r.Variant("VariantA")
	require.True(t, ok)
	assert.True(t, cty.NumberFloatVal(27.5).RawEquals(v))
	v, ok = r.Variant("VariantB")
	require.True(t, ok)
	assert.True(t, cty.StringVal("Some text value").RawEquals(v))
	// Primary value stays distinct from the overrides.
	assert.True(t, cty.NumberFloatVal(25).RawEquals(r.Value))
}

func TestLongAxisWrapsAndReassembles(t *testing.T) {
	x := make([]float64, 14)
	vals := make([]float64, 14)
	for i := range x {
		x[i] = float64(i)
		vals[i] = float64(i * 10)
	}
	doc := &model.Document{
		Format: "2.0",
		Records: []*model.Record{{
			Kind:   model.CharacteristicLine,
			Name:   "wide",
			DimX:   14,
			X:      x,
			Values: [][]float64{vals},
		}},
	}

	stx := 0
	for _, line := range Lines(doc) {
		if strings.Contains(line, "ST/X") {
			stx++
		}
	}
	assert.Equal(t, 3, stx, "14 support points wrap into 3 physical lines")

	back := reparse(t, doc)
	r := back.Record("wide")
	require.NotNil(t, r)
	assert.Equal(t, x, r.X)
	assert.Equal(t, [][]float64{vals}, r.Values)
}

func TestTextParameterRoundTrip(t *testing.T) {
	doc := &model.Document{
		Format: "2.0",
		Records: []*model.Record{{
			Kind:     model.Parameter,
			Name:     "textParameter",
			LongName: "Sample text parameter",
			Value:    cty.StringVal("ParameterA"),
		}},
	}

	lines := Lines(doc)
	assert.Contains(t, lines, `  TEXT          "ParameterA"`)

	back := reparse(t, doc)
	assert.True(t, cty.StringVal("ParameterA").RawEquals(back.Record("textParameter").Value))
}

func TestHeaderCommentsVerbatim(t *testing.T) {
	doc := &model.Document{
		HeaderComments: []string{"! first line", ". second line"},
		Format:         "2.0",
	}
	lines := Lines(doc)
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "! first line", lines[0])
	assert.Equal(t, ". second line", lines[1])

	back := reparse(t, doc)
	assert.Equal(t, doc.HeaderComments, back.HeaderComments)
}

func TestNoScientificNotation(t *testing.T) {
	doc := &model.Document{
		Format: "2.0",
		Records: []*model.Record{{
			Kind:  model.Parameter,
			Name:  "p",
			Value: cty.NumberFloatVal(1e7),
		}},
	}
	for _, line := range Lines(doc) {
		assert.NotContains(t, line, "e+")
		assert.NotContains(t, line, "E+")
	}
	assert.Contains(t, Lines(doc), "  WERT          10000000")
}

func TestDistributionMarkersRoundTrip(t *testing.T) {
	src := `KONSERVIERUNG_FORMAT 2.0

KENNFELD m 2 1
*SSTX   DISTRIBUTION X
*SSTY   DISTRIBUTION Y
  ST/X          1.0 2.0
  ST/Y          0.0
  WERT          3.0 4.0
END
`
	doc, err := parser.Parse(context.Background(), strings.NewReader(src))
	require.NoError(t, err)

	back := reparse(t, doc)
	r := back.Record("m")
	require.NotNil(t, r)
	assert.Equal(t, "DISTRIBUTION X", r.XMapping)
	assert.Equal(t, "DISTRIBUTION Y", r.YMapping)
}
