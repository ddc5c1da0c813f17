package iceberg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// VM executes Bytecode against a type-locked variable store. The opcode
// registry and constant table are configured once at construction and persist
// across runs; the variable table, active label table and program counter are
// reset at the start of every Run. A VM must not be driven by more than one
// goroutine at a time.
type VM struct {
	registry  *Registry
	constants map[string]Value
	vars      map[string]Value
	labels    map[string]int
	pc        int

	// Stdout receives dump output and runtime warnings.
	Stdout io.Writer
}

func NewVM() *VM {
	vm := &VM{
		registry:  NewRegistry(),
		constants: make(map[string]Value),
		vars:      make(map[string]Value),
		labels:    make(map[string]int),
		Stdout:    os.Stdout,
	}
	vm.registerBuiltins()
	return vm
}

// Register adds a host opcode. Call it before compiling any script that uses
// the opcode; arity is checked at compile time only.
func (vm *VM) Register(name string, arity int, handler Handler) error {
	return vm.registry.Register(name, arity, handler)
}

// AddConstant seeds the read-only constant table. Constants shadow variables
// during resolution and can never be assigned to from script code.
func (vm *VM) AddConstant(name string, value Value) error {
	if name == "" {
		return fmt.Errorf("empty constant name")
	}
	if _, err := strconv.ParseFloat(name, 64); err == nil {
		return fmt.Errorf("constant name %q is numeric", name)
	}
	if strings.HasPrefix(name, `"`) || strings.HasPrefix(name, "'") || strings.HasPrefix(name, LabelSigil) {
		return fmt.Errorf("constant name %q starts with a quote or label sigil", name)
	}
	if _, ok := vm.constants[name]; ok {
		return fmt.Errorf("constant %q already defined", name)
	}
	vm.constants[name] = value
	return nil
}

// Var reports a variable's current value, for host inspection after Run.
func (vm *VM) Var(name string) (Value, bool) {
	v, ok := vm.vars[name]
	return v, ok
}

func (vm *VM) Constant(name string) (Value, bool) {
	v, ok := vm.constants[name]
	return v, ok
}

// Opcodes lists every registered opcode name, sorted.
func (vm *VM) Opcodes() []string {
	return vm.registry.Names()
}

// Compile builds Bytecode using this VM's opcode registry.
func (vm *VM) Compile(source string) (*Bytecode, error) {
	return NewCompiler(vm.registry).Compile(source)
}

// Run executes bytecode to completion or to the first runtime error. Running
// off the end of the instruction sequence is successful termination; there is
// no halt opcode. The variable table and program counter are reset per call,
// so the same Bytecode can be re-run without state leaking between runs.
func (vm *VM) Run(bytecode *Bytecode) error {
	vm.vars = make(map[string]Value)
	vm.labels = bytecode.Labels
	vm.pc = 0

	for vm.pc < len(bytecode.Instructions) {
		inst := bytecode.Instructions[vm.pc]
		desc, ok := vm.registry.Lookup(inst.Opcode)
		if !ok {
			return vm.runtimeErrorf("unknown instruction %q", inst.Opcode)
		}
		if err := desc.Handler(inst.Args); err != nil {
			var icerr *Error
			if errors.As(err, &icerr) {
				return err
			}
			// host handlers may return plain errors; pin the instruction index
			return vm.runtimeErrorf("%v", err)
		}
		vm.pc++
	}
	return nil
}

// Resolve classifies a raw argument token and returns its runtime value,
// checking the value's kind against mask. Bound symbols win over literal
// forms, and constants shadow variables.
func (vm *VM) Resolve(arg string, mask TypeFlag) (Value, error) {
	if v, ok := vm.constants[arg]; ok {
		return vm.checkMask(arg, v, mask)
	}
	if v, ok := vm.vars[arg]; ok {
		return vm.checkMask(arg, v, mask)
	}
	if strings.HasPrefix(arg, LabelSigil) {
		return vm.checkMask(arg, NewLabel(arg), mask)
	}
	if strings.HasPrefix(arg, `"`) || strings.HasPrefix(arg, "'") {
		s := arg
		if len(s) >= 2 {
			// strips exactly one character from each end, trusting the
			// tokenizer's quoting
			s = s[1 : len(s)-1]
		}
		return vm.checkMask(arg, NewString(s), mask)
	}
	if arg == "true" {
		return vm.checkMask(arg, NewBool(true), mask)
	}
	if arg == "false" {
		return vm.checkMask(arg, NewBool(false), mask)
	}
	if strings.Contains(arg, ".") {
		if f, err := strconv.ParseFloat(arg, 64); err == nil {
			return vm.checkMask(arg, NewFloat(f), mask)
		}
		// a dotted token that fails to parse falls through, so it could still
		// name a symbol, though assignment never lets one be declared
	}
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return vm.checkMask(arg, NewInt(n), mask)
	}
	return Value{}, vm.runtimeErrorf("unbound symbol %q", arg)
}

func (vm *VM) checkMask(arg string, v Value, mask TypeFlag) (Value, error) {
	if mask&v.Kind.Flag() == 0 {
		return Value{}, vm.runtimeErrorf("type mismatch: %s is %s, expected %s", arg, v.Kind, mask)
	}
	return v, nil
}

// Assign writes value into the variable table, enforcing the type lock: once
// a symbol is bound its kind is fixed for the table's lifetime. A label value
// has no storable runtime kind and lands in the table as its string spelling.
func (vm *VM) Assign(symbol string, value Value) error {
	if value.Kind == KindLabel {
		value = NewString(value.Str)
	}
	if _, ok := vm.constants[symbol]; ok {
		return vm.runtimeErrorf("cannot assign to constant %q", symbol)
	}
	if old, ok := vm.vars[symbol]; ok {
		if old.Kind != value.Kind {
			return vm.runtimeErrorf("cannot change type of %q from %s to %s", symbol, old.Kind, value.Kind)
		}
		vm.vars[symbol] = value
		return nil
	}
	if _, err := strconv.ParseFloat(symbol, 64); err == nil {
		return vm.runtimeErrorf("cannot assign to constant %q", symbol)
	}
	if strings.HasPrefix(symbol, `"`) || strings.HasPrefix(symbol, "'") {
		return vm.runtimeErrorf("cannot assign to constant %q", symbol)
	}
	if strings.HasPrefix(symbol, LabelSigil) {
		return vm.runtimeErrorf("cannot assign to label %q", symbol)
	}
	vm.vars[symbol] = value
	return nil
}

// jump moves the program counter onto the label's nop slot; the run loop's
// increment then lands execution on the instruction right after the label.
func (vm *VM) jump(label string) error {
	idx, ok := vm.labels[label]
	if !ok {
		return vm.runtimeErrorf("unset label %s", label)
	}
	vm.pc = idx
	return nil
}

func (vm *VM) runtimeErrorf(format string, args ...any) *Error {
	return NewRuntimeError(fmt.Sprintf(format, args...), vm.pc)
}

// warnf reports a non-fatal diagnostic; execution continues.
func (vm *VM) warnf(format string, args ...any) {
	fmt.Fprintf(vm.Stdout, "WARNING: instruction %d: %s\n", vm.pc, fmt.Sprintf(format, args...))
}
