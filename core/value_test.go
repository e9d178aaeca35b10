package core

import "testing"

func TestParseValueCanonicalization(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
		text  string
	}{
		{"1", KindInt, "1"},
		{"-42", KindInt, "-42"},
		{"3.5", KindFloat, "3.5"},
		{"2.0", KindInt, "2"},
		{"hello", KindString, "hello"},
		{"12abc", KindString, "12abc"},
		{"", KindString, ""},
	}

	for _, tt := range tests {
		v := ParseValue(tt.input)
		if v.Kind() != tt.kind {
			t.Errorf("ParseValue(%q) kind = %v, want %v", tt.input, v.Kind(), tt.kind)
		}
		if v.Text() != tt.text {
			t.Errorf("ParseValue(%q) text = %q, want %q", tt.input, v.Text(), tt.text)
		}
	}
}

func TestValueZWrite(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{IntValue(35), "35"},
		{FloatValue(1.5), "1.5"},
		{StringValue("John"), `"John"`},
		{StringValue(`say "hi"`), `"say ""hi"""`},
		{Null, ""},
	}

	for _, tt := range tests {
		if got := tt.value.ZWrite(); got != tt.want {
			t.Errorf("ZWrite() = %q, want %q", got, tt.want)
		}
	}
}

func TestValueEqual(t *testing.T) {
	if !IntValue(5).Equal(IntValue(5)) {
		t.Error("equal ints should be equal")
	}
	if IntValue(5).Equal(StringValue("5")) {
		t.Error("int and string must not be equal")
	}
	if !FloatValue(2.0).Equal(IntValue(2)) {
		t.Error("integral float should canonicalize to int")
	}
	if Null.Equal(IntValue(0)) {
		t.Error("null must not equal zero")
	}
}

func TestSubscriptOrdering(t *testing.T) {
	tests := []struct {
		a, b Subscript
		want int
	}{
		{IntSubscript(1), IntSubscript(2), -1},
		{IntSubscript(2), IntSubscript(10), -1},
		{IntSubscript(10), IntSubscript(10), 0},
		{StringSubscript("age"), StringSubscript("name"), -1},
		{IntSubscript(99), StringSubscript("a"), -1},
		{StringSubscript("a"), IntSubscript(99), 1},
		{FloatSubscript(1.5), StringSubscript("2"), -1},
	}

	for _, tt := range tests {
		got := tt.a.Compare(tt.b)
		if got < 0 {
			got = -1
		} else if got > 0 {
			got = 1
		}
		if got != tt.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", tt.a.Text(), tt.b.Text(), got, tt.want)
		}
	}
}

func TestSubscriptCanonicalization(t *testing.T) {
	if ParseSubscript("10").Kind() != KindInt {
		t.Error("integer-looking text must become an integer subscript")
	}
	if FloatSubscript(2.0).Kind() != KindInt {
		t.Error("integral float must collapse to integer subscript")
	}
	if ParseSubscript("name").Kind() != KindString {
		t.Error("identifiers stay strings")
	}
}

func TestPathKeyAndZWrite(t *testing.T) {
	p := Path{IntSubscript(1), StringSubscript("name")}
	if p.Key() != "1:name" {
		t.Errorf("Key() = %q, want %q", p.Key(), "1:name")
	}
	if p.ZWrite() != `(1,"name")` {
		t.Errorf("ZWrite() = %q, want %q", p.ZWrite(), `(1,"name")`)
	}
	if (Path{}).ZWrite() != "" {
		t.Error("empty path renders empty")
	}
}

func TestNormalizePath(t *testing.T) {
	p := NormalizePath(Path{StringSubscript("7"), StringSubscript("x")})
	if p[0].Kind() != KindInt || p[0].Int() != 7 {
		t.Errorf("integer-looking string subscript not normalized: %v", p[0])
	}
	if p[1].Kind() != KindString {
		t.Errorf("plain string subscript should stay a string: %v", p[1])
	}
}
