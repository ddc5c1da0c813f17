package iceberg

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{`"a, b", c`, []string{`"a, b"`, "c"}},
		{`'x'`, []string{`'x'`}},
		{`1, 2.5, sym`, []string{"1", "2.5", "sym"}},
		{` a ,  b `, []string{"a", "b"}},
		{`"it's", 'say "hi"'`, []string{`"it's"`, `'say "hi"'`}},
		{`""`, []string{`""`}},
		{``, nil},
		// characters after a closing quote are dropped up to the next comma
		{`"a"junk, c`, []string{`"a"`, "c"}},
		{`"a" , c`, []string{`"a"`, "c"}},
	}

	for _, tt := range tests {
		c := NewCompiler(NewRegistry())
		got, err := c.parseArgs(tt.input)
		if err != nil {
			t.Errorf("parseArgs(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseArgs(%q) = %#v, want %#v", tt.input, got, tt.want)
		}
	}
}

func TestParseArgsUnterminatedQuote(t *testing.T) {
	for _, input := range []string{`"abc`, `'abc`, `a, "b`} {
		c := NewCompiler(NewRegistry())
		if _, err := c.parseArgs(input); err == nil {
			t.Errorf("parseArgs(%q): expected error, got none", input)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		wantMsg  string
		wantLine int
	}{
		{"unknown opcode", "frobnicate", "unknown instruction", 1},
		{"unknown opcode with args", "frobnicate 1, 2", "unknown instruction", 1},
		{"label with trailing tokens", "@here extra", "expected newline after label", 1},
		{"too few args", "let x", "too few arguments", 1},
		{"too few args bare", "let", "too few arguments", 1},
		{"too many args", "let x, 1, 2", "too many arguments", 1},
		{"unterminated quote", `let x, "abc`, "missing closing", 1},
		{"error line number", "nop\nnop\nbogus", "unknown instruction", 3},
	}

	vm := NewVM()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vm.Compile(tt.source)
			if err == nil {
				t.Fatalf("Compile(%q): expected error, got none", tt.source)
			}
			var icerr *Error
			if !errors.As(err, &icerr) {
				t.Fatalf("Compile(%q): error is %T, want *Error", tt.source, err)
			}
			if icerr.Type != ErrorSyntax {
				t.Errorf("error type = %s, want SyntaxError", icerr.Type)
			}
			if icerr.Line != tt.wantLine {
				t.Errorf("error line = %d, want %d", icerr.Line, tt.wantLine)
			}
			if !strings.Contains(icerr.Msg, tt.wantMsg) {
				t.Errorf("error message %q does not contain %q", icerr.Msg, tt.wantMsg)
			}
		})
	}
}

func TestCompileLabels(t *testing.T) {
	source := "let x, 1\n@start\nadd x, 1, x\n@end"
	vm := NewVM()

	bytecode, err := vm.Compile(source)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	wantLabels := map[string]int{"@start": 1, "@end": 3}
	if !reflect.DeepEqual(bytecode.Labels, wantLabels) {
		t.Errorf("labels = %v, want %v", bytecode.Labels, wantLabels)
	}
	for _, idx := range wantLabels {
		inst := bytecode.Instructions[idx]
		if inst.Opcode != "nop" || len(inst.Args) != 0 {
			t.Errorf("instruction %d = %v, want bare nop", idx, inst)
		}
	}
}

func TestCompileDeterministic(t *testing.T) {
	source := "@a\nnop\n@b\nnop\n@c"
	vm := NewVM()

	first, err := vm.Compile(source)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	second, err := vm.Compile(source)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !reflect.DeepEqual(first.Labels, second.Labels) {
		t.Errorf("label tables differ between compiles: %v vs %v", first.Labels, second.Labels)
	}
}

func TestCompileBlankAndIndentedLines(t *testing.T) {
	source := "\n\t nop\n\n   let x, 1\n"
	vm := NewVM()

	bytecode, err := vm.Compile(source)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(bytecode.Instructions) != 2 {
		t.Fatalf("instruction count = %d, want 2", len(bytecode.Instructions))
	}
	if bytecode.Instructions[0].Opcode != "nop" || bytecode.Instructions[1].Opcode != "let" {
		t.Errorf("instructions = %v", bytecode.Instructions)
	}
}

func TestDisassemble(t *testing.T) {
	vm := NewVM()
	bytecode, err := vm.Compile("let i, 0\n@loop\nadd i, 1, i")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	dis := bytecode.Disassemble()
	for _, want := range []string{"@loop", "0001: nop", "0002: add i, 1, i"} {
		if !strings.Contains(dis, want) {
			t.Errorf("disassembly missing %q:\n%s", want, dis)
		}
	}
}
