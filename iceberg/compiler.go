package iceberg

import (
	"fmt"
	"strings"
)

// LabelSigil prefixes label definitions and label references in scripts.
const LabelSigil = "@"

// Compiler turns script text into Bytecode. It needs the opcode registry only
// for existence and arity checks; handlers are never invoked at compile time.
type Compiler struct {
	registry *Registry
	line     int // 1-based line currently being compiled
}

func NewCompiler(registry *Registry) *Compiler {
	return &Compiler{registry: registry}
}

// Compile parses source line by line, validates opcodes and arity, and runs
// the label pass. It stops at the first malformed line; no partial Bytecode
// is returned.
func (c *Compiler) Compile(source string) (*Bytecode, error) {
	var instructions []Instruction
	for i, line := range strings.Split(source, "\n") {
		c.line = i + 1
		var err error
		instructions, err = c.compileLine(strings.TrimLeft(line, " \t"), instructions)
		if err != nil {
			return nil, err
		}
	}
	return &Bytecode{
		Instructions: instructions,
		Labels:       setLabels(instructions),
	}, nil
}

func (c *Compiler) compileLine(line string, out []Instruction) ([]Instruction, error) {
	if !strings.Contains(line, " ") {
		if line == "" {
			return out, nil
		}
		if desc, ok := c.registry.Lookup(line); ok {
			if err := c.checkArity(line, 0, desc.NArgs); err != nil {
				return nil, err
			}
			return append(out, Instruction{Opcode: line}), nil
		}
		if strings.HasPrefix(line, LabelSigil) {
			// label definitions ride along as instructions until the label pass
			return append(out, Instruction{Opcode: line}), nil
		}
		return nil, c.errorf("unknown instruction %q", line)
	}

	opcode, rest, _ := strings.Cut(line, " ")
	if desc, ok := c.registry.Lookup(opcode); ok {
		args, err := c.parseArgs(rest)
		if err != nil {
			return nil, err
		}
		if err := c.checkArity(opcode, len(args), desc.NArgs); err != nil {
			return nil, err
		}
		return append(out, Instruction{Opcode: opcode, Args: args}), nil
	}
	if strings.HasPrefix(opcode, LabelSigil) {
		return nil, c.errorf("expected newline after label definition")
	}
	return nil, c.errorf("unknown instruction %q", opcode)
}

// parseArgs splits an argument string on commas. Quoted runs keep their quote
// characters so value resolution can tell literals from symbols, whitespace
// outside quotes is dropped, and commas inside quotes do not separate
// arguments. Characters between a closing quote and the next comma are
// silently discarded.
func (c *Compiler) parseArgs(argstr string) ([]string, error) {
	var args []string
	var buf strings.Builder
	var dQuote, sQuote, afterQuote bool

	for _, r := range argstr {
		switch {
		case dQuote:
			if r == '"' {
				args = append(args, `"`+buf.String()+`"`)
				buf.Reset()
				dQuote = false
				afterQuote = true
			} else {
				buf.WriteRune(r)
			}
		case sQuote:
			if r == '\'' {
				args = append(args, "'"+buf.String()+"'")
				buf.Reset()
				sQuote = false
				afterQuote = true
			} else {
				buf.WriteRune(r)
			}
		case afterQuote:
			if r == ',' {
				afterQuote = false
			}
		case r == ',':
			args = append(args, buf.String())
			buf.Reset()
		case r == '"':
			dQuote = true
		case r == '\'':
			sQuote = true
		case r != ' ':
			buf.WriteRune(r)
		}
	}
	if buf.Len() > 0 {
		args = append(args, buf.String())
	}

	if dQuote {
		return nil, c.errorf(`missing closing "`)
	}
	if sQuote {
		return nil, c.errorf("missing closing '")
	}
	return args, nil
}

func (c *Compiler) checkArity(opcode string, given, expected int) error {
	if given < expected {
		return c.errorf("too few arguments to %s (expected %d, got %d)", opcode, expected, given)
	}
	if given > expected {
		return c.errorf("too many arguments to %s (expected %d, got %d)", opcode, expected, given)
	}
	return nil
}

func (c *Compiler) errorf(format string, args ...any) *Error {
	return NewSyntaxError(fmt.Sprintf(format, args...), c.line)
}

// setLabels rewrites every label definition into a nop and records its index,
// so each label occupies exactly one executable slot and jump targets are
// valid instruction indices.
func setLabels(instructions []Instruction) map[string]int {
	labels := make(map[string]int)
	for i := range instructions {
		if strings.HasPrefix(instructions[i].Opcode, LabelSigil) {
			labels[instructions[i].Opcode] = i
			instructions[i] = Instruction{Opcode: "nop"}
		}
	}
	return labels
}
