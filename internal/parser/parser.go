// Package parser assembles a model.Document from the line stream of a DCM
// file.
//
// The parser is a single forward pass with two states: between blocks, and
// inside a block accumulating one record through a builder. It owns no
// shared state; every Parse call is independent, so concurrent parses of
// different inputs need no locking. Structural errors abort the document by
// default because the format has no reliable resynchronization point;
// ParseLenient instead skips to the next block-start keyword and collects
// every error it meets.
package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/dcmkit/internal/ctxlog"
	"github.com/vk/dcmkit/internal/model"
	"github.com/vk/dcmkit/internal/scan"
)

// Field keywords recognized inside a record block.
const (
	kwFormat      = "KONSERVIERUNG_FORMAT"
	kwFunctions   = "FUNKTIONEN"
	kwFunction    = "FKT"
	kwEnd         = "END"
	kwLongName    = "LANGNAME"
	kwFuncRef     = "FUNKTION"
	kwDisplayName = "DISPLAYNAME"
	kwUnitX       = "EINHEIT_X"
	kwUnitY       = "EINHEIT_Y"
	kwUnitW       = "EINHEIT_W"
	kwText        = "TEXT"
	kwValue       = "WERT"
	kwAxisX       = "ST/X"
	kwAxisY       = "ST/Y"
	kwVariant     = "VAR"
)

// Parse reads a complete DCM document. The first structural error aborts
// parsing and is returned; diagnostics that the format tolerates (duplicate
// record names, unresolved function references, unknown field keywords) are
// logged through the context logger instead.
func Parse(ctx context.Context, r io.Reader) (*model.Document, error) {
	p := &parser{ctx: ctx}
	doc, errs := p.run(r)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return doc, nil
}

// ParseLenient reads a DCM document, skipping past structurally broken
// blocks instead of aborting. It returns the records it could assemble
// together with every error encountered, in source order.
func ParseLenient(ctx context.Context, r io.Reader) (*model.Document, []error) {
	p := &parser{ctx: ctx, lenient: true}
	return p.run(r)
}

type parser struct {
	ctx     context.Context
	lenient bool

	sc      *bufio.Scanner
	lineno  int
	pending *scan.Line // one line of pushback for lenient resync

	errs []error
}

// next returns the next classified line, honoring pushback.
func (p *parser) next() (scan.Line, bool) {
	if p.pending != nil {
		ln := *p.pending
		p.pending = nil
		return ln, true
	}
	if !p.sc.Scan() {
		return scan.Line{}, false
	}
	p.lineno++
	return scan.Classify(p.sc.Text(), p.lineno), true
}

func (p *parser) pushback(ln scan.Line) {
	p.pending = &ln
}

// fail records an error. It reports whether parsing must stop: always in
// strict mode, never in lenient mode.
func (p *parser) fail(err error) bool {
	p.errs = append(p.errs, err)
	return !p.lenient
}

// resync consumes lines until the next block-start or FUNKTIONEN keyword
// and pushes it back, giving lenient mode a place to continue from.
func (p *parser) resync() {
	for {
		ln, ok := p.next()
		if !ok {
			return
		}
		if ln.Kind != scan.LineKeyword {
			continue
		}
		if _, isBlock := model.KindForKeyword(ln.Keyword); isBlock || ln.Keyword == kwFunctions {
			p.pushback(ln)
			return
		}
	}
}

func (p *parser) run(r io.Reader) (*model.Document, []error) {
	log := ctxlog.FromContext(p.ctx)
	p.sc = bufio.NewScanner(r)
	p.sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &model.Document{}
	formatSeen := false

	for {
		ln, ok := p.next()
		if !ok {
			break
		}
		switch ln.Kind {
		case scan.LineBlank:
			continue

		case scan.LineComment:
			if !formatSeen {
				doc.HeaderComments = append(doc.HeaderComments, ln.Text)
			}
			// Comments between blocks carry no structure and are dropped,
			// matching the format's lossy round-trip contract.
			continue

		case scan.LineKeyword:
			if !formatSeen {
				if ln.Keyword == kwFormat {
					doc.Format = ln.Rest
					formatSeen = true
					continue
				}
				if p.fail(fmt.Errorf("line %d: %s must be the first entry, found %q", ln.Number, kwFormat, ln.Keyword)) {
					return nil, p.errs
				}
				// Keep going as if the format line had been seen, so a
				// lenient parse can still recover the blocks.
				formatSeen = true
			}

			switch {
			case ln.Keyword == kwFunctions:
				if err := p.parseFunctions(doc); err != nil {
					if p.fail(err) {
						return nil, p.errs
					}
					p.resync()
				}

			default:
				kind, isBlock := model.KindForKeyword(ln.Keyword)
				if !isBlock {
					if p.fail(&UnknownKeywordError{Line: ln.Number, Keyword: ln.Keyword}) {
						return nil, p.errs
					}
					p.resync()
					continue
				}
				b, err := p.startBlock(kind, ln)
				if err != nil {
					// The block header itself is broken, so its body cannot
					// be consumed; resynchronize at the next block start.
					if p.fail(err) {
						return nil, p.errs
					}
					p.resync()
					continue
				}
				rec, err := p.parseBlock(b, ln)
				if err != nil {
					// parseBlock consumed through END (or EOF), so the
					// stream is already at a block boundary.
					if p.fail(err) {
						return nil, p.errs
					}
					continue
				}
				doc.Records = append(doc.Records, rec)
			}
		}
	}

	p.checkDocument(doc, log)
	return doc, p.errs
}

// checkDocument runs the non-fatal cross-record invariants: unique record
// names and resolvable function references.
func (p *parser) checkDocument(doc *model.Document, log *slog.Logger) {
	seen := make(map[string]bool, len(doc.Records))
	for _, r := range doc.Records {
		if seen[r.Name] {
			dup := &DuplicateRecordNameError{Line: r.Line, Name: r.Name}
			log.Warn("Duplicate record name.", "record", r.Name, "line", r.Line)
			if p.lenient {
				p.errs = append(p.errs, dup)
			}
			continue
		}
		seen[r.Name] = true
	}
	for _, r := range doc.Records {
		if r.Function == "" {
			continue
		}
		if _, ok := doc.Function(r.Function); !ok {
			log.Warn("Record references an unknown function.",
				"record", r.Name, "function", r.Function, "line", r.Line)
		}
	}
}

// parseFunctions consumes the FUNKTIONEN block. Duplicate function names
// replace the earlier definition silently, last write wins.
func (p *parser) parseFunctions(doc *model.Document) error {
	log := ctxlog.FromContext(p.ctx)
	start := p.lineno
	for {
		ln, ok := p.next()
		if !ok {
			return &TruncatedBlockError{Line: start, Record: kwFunctions}
		}
		switch ln.Kind {
		case scan.LineBlank, scan.LineComment:
			continue
		case scan.LineKeyword:
			switch ln.Keyword {
			case kwEnd:
				return nil
			case kwFunction:
				tokens, err := scan.Fields(ln.Rest, ln.Number)
				if err != nil {
					return err
				}
				if len(tokens) == 0 {
					return &ShapeError{Line: ln.Number, Record: kwFunctions, What: "FKT line without a name"}
				}
				fn := model.Function{Name: tokens[0]}
				if len(tokens) > 1 {
					fn.Version = tokens[1]
				}
				if len(tokens) > 2 {
					fn.Description = tokens[2]
				}
				replaced := false
				for i, existing := range doc.Funcs {
					if existing.Name == fn.Name {
						doc.Funcs[i] = fn
						replaced = true
						break
					}
				}
				if !replaced {
					doc.Funcs = append(doc.Funcs, fn)
				}
			default:
				log.Warn("Unknown keyword in function registry.", "keyword", ln.Keyword, "line", ln.Number)
			}
		}
	}
}

// parseBlock consumes one record block from its start line through END. In
// strict mode the first error returns immediately; in lenient mode the body
// is still consumed to the END boundary and the first error is returned
// afterwards, so the caller can continue with the next block.
func (p *parser) parseBlock(b *builder, start scan.Line) (*model.Record, error) {
	log := ctxlog.FromContext(p.ctx)
	rec := b.rec
	kind := rec.Kind

	var deferred error
	// keep reports whether parsing the block body should continue after err.
	keep := func(err error) bool {
		if !p.lenient {
			return false
		}
		if deferred == nil {
			deferred = err
		}
		return true
	}

	for {
		ln, ok := p.next()
		if !ok {
			err := &TruncatedBlockError{Line: start.Number, Record: rec.Name}
			if deferred != nil {
				return nil, deferred
			}
			return nil, err
		}
		switch ln.Kind {
		case scan.LineBlank:
			continue

		case scan.LineComment:
			p.blockComment(rec, ln)

		case scan.LineKeyword:
			tokens, err := scan.Fields(ln.Rest, ln.Number)
			if err != nil {
				if keep(err) {
					continue
				}
				return nil, err
			}
			switch ln.Keyword {
			case kwEnd:
				if deferred != nil {
					return nil, deferred
				}
				return b.finish()
			case kwLongName:
				rec.LongName = strings.Join(tokens, " ")
			case kwFuncRef:
				rec.Function = strings.Join(tokens, " ")
			case kwDisplayName:
				rec.DisplayName = strings.Join(tokens, " ")
			case kwUnitX:
				rec.UnitX = strings.Join(tokens, " ")
			case kwUnitY:
				rec.UnitY = strings.Join(tokens, " ")
			case kwUnitW:
				rec.UnitValues = strings.Join(tokens, " ")
			case kwText:
				if kind != model.Parameter {
					log.Warn("TEXT outside a scalar parameter.", "record", rec.Name, "line", ln.Number)
					continue
				}
				b.setText(strings.Join(tokens, " "))
			case kwValue:
				if err := b.addValues(tokens, ln.Number); err != nil {
					if keep(err) {
						continue
					}
					return nil, err
				}
			case kwAxisX:
				if err := b.addX(tokens, ln.Number); err != nil {
					if keep(err) {
						continue
					}
					return nil, err
				}
			case kwAxisY:
				if !kind.IsMap() {
					log.Warn("ST/Y outside a map block.", "record", rec.Name, "line", ln.Number)
					continue
				}
				if err := b.addY(tokens, ln.Number); err != nil {
					if keep(err) {
						continue
					}
					return nil, err
				}
			case kwVariant:
				v, err := parseVariant(ln.Rest, ln.Number, rec.Name)
				if err != nil {
					if keep(err) {
						continue
					}
					return nil, err
				}
				rec.Variants = append(rec.Variants, v)
			default:
				log.Warn("Unknown field keyword in block.",
					"record", rec.Name, "keyword", ln.Keyword, "line", ln.Number)
			}
		}
	}
}

// startBlock parses the block-start line: internal name plus the declared
// dimensions the kind requires.
func (p *parser) startBlock(kind model.Kind, start scan.Line) (*builder, error) {
	tokens, err := scan.Fields(start.Rest, start.Number)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, &ShapeError{Line: start.Number, Record: kind.Keyword(), What: "block start without a name"}
	}
	name := tokens[0]
	dims := tokens[1:]

	parseDim := func(tok string) (int, error) {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			return 0, &ValueFormatError{Line: start.Number, Record: name, Token: tok}
		}
		return n, nil
	}

	var dimX, dimY int
	switch kind {
	case model.Parameter:
		// No declared dimensions.

	case model.BlockParameter:
		// `name x` or `name x @ y`.
		switch {
		case len(dims) == 1:
			if dimX, err = parseDim(dims[0]); err != nil {
				return nil, err
			}
			dimY = 1
		case len(dims) == 3 && dims[1] == "@":
			if dimX, err = parseDim(dims[0]); err != nil {
				return nil, err
			}
			if dimY, err = parseDim(dims[2]); err != nil {
				return nil, err
			}
		default:
			return nil, &ShapeError{Line: start.Number, Record: name, What: "block header dimensions", Want: 1, Got: len(dims)}
		}

	case model.CharacteristicLine, model.FixedCharacteristicLine,
		model.GroupCharacteristicLine, model.Distribution:
		if len(dims) != 1 {
			return nil, &ShapeError{Line: start.Number, Record: name, What: "block header dimensions", Want: 1, Got: len(dims)}
		}
		if dimX, err = parseDim(dims[0]); err != nil {
			return nil, err
		}

	case model.CharacteristicMap, model.FixedCharacteristicMap, model.GroupCharacteristicMap:
		if len(dims) != 2 {
			return nil, &ShapeError{Line: start.Number, Record: name, What: "block header dimensions", Want: 2, Got: len(dims)}
		}
		if dimX, err = parseDim(dims[0]); err != nil {
			return nil, err
		}
		if dimY, err = parseDim(dims[1]); err != nil {
			return nil, err
		}
	}

	return newBuilder(kind, name, dimX, dimY, start.Number), nil
}

// blockComment attaches a comment line to the record, routing the vendor
// `*SSTX`/`*SSTY` distribution markers to their mapping fields. The markers
// never influence parsed values.
func (p *parser) blockComment(rec *model.Record, ln scan.Line) {
	trimmed := strings.TrimSpace(ln.Text)
	if rest, ok := strings.CutPrefix(trimmed, "*SSTX"); ok && rest != "" && rest[0] == ' ' {
		rec.XMapping = strings.TrimSpace(rest)
		return
	}
	if rest, ok := strings.CutPrefix(trimmed, "*SSTY"); ok && rest != "" && rest[0] == ' ' {
		rec.YMapping = strings.TrimSpace(rest)
		return
	}
	rec.Comments = append(rec.Comments, ln.Comment())
}

// parseVariant splits a `VAR name=value` line. The value is resolved
// numeric-first; quoted or otherwise non-numeric values become text.
func parseVariant(rest string, line int, record string) (model.Variant, error) {
	name, raw, found := strings.Cut(rest, "=")
	if !found {
		return model.Variant{}, &ShapeError{Line: line, Record: record, What: "VAR line without '='"}
	}
	name = strings.TrimSpace(name)
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, `"`) {
		tokens, err := scan.Fields(raw, line)
		if err != nil {
			return model.Variant{}, err
		}
		value := ""
		if len(tokens) > 0 {
			value = strings.Join(tokens, " ")
		}
		return model.Variant{Name: name, Value: cty.StringVal(value)}, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return model.Variant{Name: name, Value: cty.NumberFloatVal(f)}, nil
	}
	return model.Variant{Name: name, Value: cty.StringVal(raw)}, nil
}
