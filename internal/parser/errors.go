package parser

import "fmt"

// ValueFormatError reports a token that failed numeric parsing where a
// number was required.
type ValueFormatError struct {
	Line   int
	Record string
	Token  string
}

func (e *ValueFormatError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("line %d: record %q: cannot parse %q as a number", e.Line, e.Record, e.Token)
	}
	return fmt.Sprintf("line %d: cannot parse %q as a number", e.Line, e.Token)
}

// ShapeError reports a mismatch between a record's declared dimensions and
// the axis or value data it actually accumulated.
type ShapeError struct {
	Line   int
	Record string
	What   string // which part of the record is off, e.g. "X axis" or "rows"
	Want   int
	Got    int
}

func (e *ShapeError) Error() string {
	if e.Want == 0 && e.Got == 0 {
		return fmt.Sprintf("line %d: record %q: %s", e.Line, e.Record, e.What)
	}
	return fmt.Sprintf("line %d: record %q: %s: expected %d entries, got %d",
		e.Line, e.Record, e.What, e.Want, e.Got)
}

// AxisOrderError reports an axis whose support points are not strictly
// monotonically increasing.
type AxisOrderError struct {
	Line   int
	Record string
	Axis   string // "X" or "Y"
}

func (e *AxisOrderError) Error() string {
	return fmt.Sprintf("line %d: record %q: %s axis is not strictly increasing", e.Line, e.Record, e.Axis)
}

// UnknownKeywordError reports an unrecognized block-start keyword at the top
// level of the document.
type UnknownKeywordError struct {
	Line    int
	Keyword string
}

func (e *UnknownKeywordError) Error() string {
	return fmt.Sprintf("line %d: unknown keyword %q", e.Line, e.Keyword)
}

// TruncatedBlockError reports end of input reached while still inside a
// block, before its END line.
type TruncatedBlockError struct {
	Line   int // line where the block started
	Record string
}

func (e *TruncatedBlockError) Error() string {
	return fmt.Sprintf("record %q starting at line %d: input ended before END", e.Record, e.Line)
}

// DuplicateRecordNameError reports two records sharing an internal name.
// This is diagnostic, not fatal: both records are retained for write-back
// and name lookup resolves to the later one.
type DuplicateRecordNameError struct {
	Line int // line of the later record
	Name string
}

func (e *DuplicateRecordNameError) Error() string {
	return fmt.Sprintf("line %d: duplicate record name %q", e.Line, e.Name)
}
