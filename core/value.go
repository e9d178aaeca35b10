package core

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies the concrete type carried by a Value or Subscript.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindString
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is the scalar stored at a tree node: null, integer, floating or
// string. The zero value is null.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Null is the absent value.
var Null = Value{}

// IntValue returns an integer value
func IntValue(i int64) Value {
	return Value{kind: KindInt, i: i}
}

// FloatValue returns a floating value. Integral floats are canonicalized to
// integer values so that numeric text round-trips without precision loss.
func FloatValue(f float64) Value {
	if isIntegral(f) {
		return Value{kind: KindInt, i: int64(f)}
	}
	return Value{kind: KindFloat, f: f}
}

// StringValue returns a string value
func StringValue(s string) Value {
	return Value{kind: KindString, s: s}
}

// ParseValue interprets scalar text: integers and floats become numeric
// values, anything else stays a string. Quotes must already be stripped by
// the caller.
func ParseValue(text string) Value {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return IntValue(i)
	}
	if looksNumeric(text) {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return FloatValue(f)
		}
	}
	return StringValue(text)
}

// looksNumeric gates float parsing so that identifiers never turn numeric.
// Exponent forms are included so canonical float text round-trips.
func looksNumeric(text string) bool {
	if text == "" {
		return false
	}
	rest := text
	if rest[0] == '+' || rest[0] == '-' {
		rest = rest[1:]
	}
	if rest == "" || rest[0] < '0' || rest[0] > '9' {
		return false
	}
	return strings.ContainsAny(rest, ".eE")
}

// Kind returns the value's kind
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is absent
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the integer payload; valid only for KindInt
func (v Value) Int() int64 { return v.i }

// Float returns the floating payload; valid only for KindFloat
func (v Value) Float() float64 { return v.f }

// Str returns the string payload; valid only for KindString
func (v Value) Str() string { return v.s }

// Text returns the plain textual form used by WRITE output, indexing and
// the AOF. Null renders as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		return ""
	}
}

// ZWrite returns the canonical round-trip form: numbers render bare,
// strings render double-quoted with embedded quotes doubled.
func (v Value) ZWrite() string {
	if v.kind == KindString {
		return quoteString(v.s)
	}
	return v.Text()
}

// Equal reports whether two values are equal. Values of different kinds
// are never equal; numeric canonicalization happens at construction.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	default:
		return true
	}
}

func quoteString(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
}

func isIntegral(f float64) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0) && !math.IsNaN(f) &&
		f >= math.MinInt64 && f <= math.MaxInt64
}
