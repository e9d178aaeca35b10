package core

import (
	"strconv"
	"strings"
)

// Subscript is one typed path element addressing a child of a tree node.
// Subscripts are comparable and totally ordered: integers compare
// numerically among themselves, strings compare bytewise, and integers
// order before strings. Non-integral float subscripts order by their
// canonical textual form among the strings.
type Subscript struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// IntSubscript returns an integer subscript
func IntSubscript(i int64) Subscript {
	return Subscript{kind: KindInt, i: i}
}

// FloatSubscript returns a floating subscript. Integral floats collapse to
// integer subscripts on ingest.
func FloatSubscript(f float64) Subscript {
	if isIntegral(f) {
		return Subscript{kind: KindInt, i: int64(f)}
	}
	return Subscript{kind: KindFloat, f: f}
}

// StringSubscript returns a string subscript
func StringSubscript(s string) Subscript {
	return Subscript{kind: KindString, s: s}
}

// ParseSubscript canonicalizes subscript text: integer-looking text becomes
// an integer subscript, decimal text a float, anything else a string.
// Quotes must already be stripped by the caller.
func ParseSubscript(text string) Subscript {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return IntSubscript(i)
	}
	if looksNumeric(text) {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return FloatSubscript(f)
		}
	}
	return StringSubscript(text)
}

// Kind returns the subscript's kind
func (s Subscript) Kind() Kind { return s.kind }

// Int returns the integer payload; valid only for KindInt
func (s Subscript) Int() int64 { return s.i }

// Float returns the floating payload; valid only for KindFloat
func (s Subscript) Float() float64 { return s.f }

// Str returns the string payload; valid only for KindString
func (s Subscript) Str() string { return s.s }

// Text returns the canonical textual form of the subscript
func (s Subscript) Text() string {
	switch s.kind {
	case KindInt:
		return strconv.FormatInt(s.i, 10)
	case KindFloat:
		return strconv.FormatFloat(s.f, 'g', -1, 64)
	default:
		return s.s
	}
}

// ZWrite returns the round-trip form: integer subscripts bare, strings
// double-quoted with embedded quotes doubled.
func (s Subscript) ZWrite() string {
	if s.kind == KindInt {
		return strconv.FormatInt(s.i, 10)
	}
	if s.kind == KindFloat {
		return s.Text()
	}
	return quoteString(s.s)
}

// Compare orders subscripts: negative when s sorts before o, positive when
// after, zero when equal.
func (s Subscript) Compare(o Subscript) int {
	sInt := s.kind == KindInt
	oInt := o.kind == KindInt
	switch {
	case sInt && oInt:
		if s.i < o.i {
			return -1
		}
		if s.i > o.i {
			return 1
		}
		return 0
	case sInt:
		return -1
	case oInt:
		return 1
	default:
		return strings.Compare(s.Text(), o.Text())
	}
}

// Path is a finite ordered sequence of subscripts. The empty path
// addresses a global's root.
type Path []Subscript

// Key returns the canonical path key: element texts joined by ':'
func (p Path) Key() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.Text()
	}
	return strings.Join(parts, ":")
}

// ZWrite returns the parenthesized round-trip form, or "" for the empty
// path.
func (p Path) ZWrite() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.ZWrite()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Clone returns a copy of the path
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Equal reports element-wise equality
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i].Compare(o[i]) != 0 {
			return false
		}
	}
	return true
}

// NormalizePath canonicalizes every element: string subscripts holding
// integer text become integer subscripts, integral floats collapse to
// integers.
func NormalizePath(p Path) Path {
	if len(p) == 0 {
		return p
	}
	out := make(Path, len(p))
	for i, s := range p {
		switch s.kind {
		case KindString:
			out[i] = ParseSubscript(s.s)
		case KindFloat:
			out[i] = FloatSubscript(s.f)
		default:
			out[i] = s
		}
	}
	return out
}
