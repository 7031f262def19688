package config

import "testing"

func TestTypify(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantRaw  string
		wantType ValueType
	}{
		{"true", "true", "true", TypeBoolean},
		{"false with spaces", "  false ", "false", TypeBoolean},
		{"capitalized bool is string", "True", "True", TypeString},
		{"integer", "42", "42", TypeInteger},
		{"negative integer", "-7", "-7", TypeInteger},
		{"float", "3.14", "3.14", TypeFloat},
		{"negative float", "-0.5", "-0.5", TypeFloat},
		{"trailing dot is string", "1.", "1.", TypeString},
		{"quoted string", `"hello"`, "hello", TypeString},
		{"quoted number stays string", `"42"`, "42", TypeString},
		{"escaped quote", `"say \"hi\""`, `say "hi"`, TypeString},
		{"escaped backslash", `"C:\\temp"`, `C:\temp`, TypeString},
		{"other escape kept", `"a\nb"`, `a\nb`, TypeString},
		{"empty quoted", `""`, "", TypeString},
		{"array", `["a", "b"]`, `["a", "b"]`, TypeArray},
		{"empty array", "[]", "[]", TypeArray},
		{"inline table", `{ a = 1 }`, `{ a = 1 }`, TypeInlineTable},
		{"bare string", "nginx", "nginx", TypeString},
		{"empty", "", "", TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Typify(tt.raw)
			if got.Raw != tt.wantRaw {
				t.Errorf("Raw = %q, want %q", got.Raw, tt.wantRaw)
			}
			if got.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", got.Type, tt.wantType)
			}
		})
	}
}

func TestUnescapeSinglePass(t *testing.T) {
	// \\" decodes the backslash pair first; the quote that follows is literal.
	got := unescape(`a\\"b`)
	if got != `a\"b` {
		t.Errorf("unescape = %q, want %q", got, `a\"b`)
	}
}

func TestSplitArray(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  []Value
	}{
		{
			name: "strings",
			raw:  `["front", "back"]`,
			want: []Value{{Raw: "front", Type: TypeString}, {Raw: "back", Type: TypeString}},
		},
		{
			name: "mixed",
			raw:  `[1, 2.5, true, bare]`,
			want: []Value{
				{Raw: "1", Type: TypeInteger},
				{Raw: "2.5", Type: TypeFloat},
				{Raw: "true", Type: TypeBoolean},
				{Raw: "bare", Type: TypeString},
			},
		},
		{
			name: "empty",
			raw:  "[]",
			want: []Value{},
		},
		{
			name: "empty elements dropped",
			raw:  "[a, , b,]",
			want: []Value{{Raw: "a", Type: TypeString}, {Raw: "b", Type: TypeString}},
		},
		{
			name: "quoted comma is split",
			raw:  `["a,b"]`,
			want: []Value{{Raw: `"a`, Type: TypeString}, {Raw: `b"`, Type: TypeString}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitArray(tt.raw)
			if got == nil {
				t.Fatal("SplitArray returned nil")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("element %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestValueTypeString(t *testing.T) {
	if TypeInlineTable.String() != "inline_table" {
		t.Errorf("TypeInlineTable.String() = %q", TypeInlineTable.String())
	}
	if ValueType(99).String() != "ValueType(99)" {
		t.Errorf("unknown type rendered as %q", ValueType(99).String())
	}
}
