package lexscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScan_JavaScript(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		last  byte
		depth int
		open  bool
	}{
		{name: "empty", src: "", last: 0},
		{name: "plain terminator", src: "x = 5;", last: ';'},
		{name: "trailing whitespace", src: "x = 5;  \t\n", last: ';'},
		{name: "no terminator", src: "x = 5", last: '5'},
		{name: "terminator in string", src: `"a;"`, last: '"'},
		{name: "terminator in single quotes", src: `'a;'`, last: '\''},
		{name: "terminator in line comment", src: "x = 5 // done;", last: '5'},
		{name: "terminator before comment", src: "x = 5; // done", last: ';'},
		{name: "terminator in block comment", src: "x /* ; */", last: 'x'},
		{name: "open block comment", src: "x /* ;", last: 'x', open: true},
		{name: "escaped quote", src: `"a\";"`, last: '"'},
		{name: "open string", src: `"abc`, last: 0, open: true},
		{name: "multi-line block", src: "function f() {\n  return 1\n};\n", last: ';'},
		{name: "open brace", src: "function f() {\n", last: '{', depth: 1},
		{name: "nested brackets", src: "f([1, {a: (2", last: '2', depth: 4},
		{name: "template literal", src: "`a;${b};`", last: '`'},
		{name: "template interpolation open", src: "`a${b", last: 'b', depth: 1},
		{name: "template nested braces", src: "`${ {a: 1}.a }`;", last: ';'},
		{name: "open template", src: "`abc\n", last: 0, open: true},
		{name: "quote in regex", src: `s = x.replace(/'/g, "");`, last: ';'},
		{name: "regex at start", src: `/"/.test(y);`, last: ';'},
		{name: "slash in regex class", src: "r = /[/]`/;", last: ';'},
		{name: "division", src: "x = a / b / 'c'", last: '\''},
		{name: "division after call", src: "f(1) / 2;", last: ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scan(tt.src, JavaScript)
			assert.Equal(t, string(rune(tt.last)), string(rune(got.Last)))
			assert.Equal(t, tt.depth, got.Depth)
			assert.Equal(t, tt.open, got.Open)
		})
	}
}

func TestScan_Starlark(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		last      byte
		depth     int
		open      bool
		continued bool
	}{
		{name: "terminator", src: "x = 5;", last: ';'},
		{name: "hash comment", src: "x = 5  # ok;", last: '5'},
		{name: "slashes are not comments", src: "x = 4 // 2", last: '2'},
		{name: "triple quoted", src: "s = '''a;\nb;'''", last: '\''},
		{name: "open triple quoted", src: "s = \"\"\"a\n", last: '=', open: true},
		{name: "continuation", src: "x = 1 + \\\n", last: '+', continued: true},
		{name: "continuation resolved", src: "x = 1 + \\\n  2", last: '2'},
		{name: "open call", src: "f(1,\n", last: ',', depth: 1},
		{name: "block header", src: "def f():\n", last: ':'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scan(tt.src, Starlark)
			assert.Equal(t, string(rune(tt.last)), string(rune(got.Last)))
			assert.Equal(t, tt.depth, got.Depth)
			assert.Equal(t, tt.open, got.Open)
			assert.Equal(t, tt.continued, got.Continued)
		})
	}
}

func TestScan_Tengo(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		last  byte
		depth int
		open  bool
	}{
		{name: "terminator", src: "x := 5;", last: ';'},
		{name: "raw string", src: "s := `a;\\b`", last: '`'},
		{name: "open raw string", src: "s := `a\n", last: '=', open: true},
		{name: "block", src: "if x {\n", last: '{', depth: 1},
		{name: "comment", src: "x // ;", last: 'x'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scan(tt.src, Tengo)
			assert.Equal(t, string(rune(tt.last)), string(rune(got.Last)))
			assert.Equal(t, tt.depth, got.Depth)
			assert.Equal(t, tt.open, got.Open)
		})
	}
}
