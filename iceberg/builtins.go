package iceberg

import (
	"cmp"
	"fmt"
	"math"
)

func (vm *VM) registerBuiltins() {
	builtins := []struct {
		name    string
		arity   int
		handler Handler
	}{
		{"nop", 0, vm.instNop},
		{"let", 2, vm.instLet},
		{"add", 3, vm.instAdd},
		{"sub", 3, vm.instSub},
		{"mul", 3, vm.instMul},
		{"div", 3, vm.instDiv},
		{"div_r", 3, vm.instDivR},
		{"mod", 3, vm.instMod},
		{"pow", 3, vm.instPow},
		{"cmp", 4, vm.instCmp},
		{"and", 3, vm.instAnd},
		{"or", 3, vm.instOr},
		{"xor", 3, vm.instXor},
		{"not", 2, vm.instNot},
		{"int", 2, vm.instInt},
		{"float", 2, vm.instFloat},
		{"bool", 2, vm.instBool},
		{"str", 2, vm.instStr},
		{"cat", 3, vm.instCat},
		{"goto", 1, vm.instGoto},
		{"when", 2, vm.instWhen},
		{"dump", 0, vm.instDump},
	}
	for _, b := range builtins {
		if err := vm.registry.Register(b.name, b.arity, b.handler); err != nil {
			// the built-in table is static; failing here is a programming error
			panic(err)
		}
	}
}

func (vm *VM) instNop(args []string) error {
	return nil
}

func (vm *VM) instLet(args []string) error {
	v, err := vm.Resolve(args[1], TypeAny)
	if err != nil {
		return err
	}
	return vm.Assign(args[0], v)
}

func (vm *VM) instAdd(args []string) error { return vm.calc(args, "+") }
func (vm *VM) instSub(args []string) error { return vm.calc(args, "-") }
func (vm *VM) instMul(args []string) error { return vm.calc(args, "*") }
func (vm *VM) instDiv(args []string) error { return vm.calc(args, "//") }
func (vm *VM) instDivR(args []string) error { return vm.calc(args, "/") }
func (vm *VM) instMod(args []string) error { return vm.calc(args, "%") }
func (vm *VM) instPow(args []string) error { return vm.calc(args, "**") }

// calc implements the arithmetic instructions. Both operands must share one
// concrete numeric kind, so int+float is rejected rather than coerced.
func (vm *VM) calc(args []string, op string) error {
	a, err := vm.Resolve(args[0], TypeInt|TypeFloat)
	if err != nil {
		return err
	}
	b, err := vm.Resolve(args[1], a.Kind.Flag())
	if err != nil {
		return err
	}

	var result Value
	switch {
	case op == "/":
		// true division always yields a float, even on integer operands
		if b.asFloat() == 0 {
			return vm.runtimeErrorf("division by zero")
		}
		result = NewFloat(a.asFloat() / b.asFloat())
	case a.Kind == KindInt:
		n, err := vm.intCalc(a.Int, b.Int, op)
		if err != nil {
			return err
		}
		result = NewInt(n)
	default:
		f, err := vm.floatCalc(a.Float, b.Float, op)
		if err != nil {
			return err
		}
		result = NewFloat(f)
	}
	return vm.Assign(args[2], result)
}

func (vm *VM) intCalc(a, b int64, op string) (int64, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "//":
		if b == 0 {
			return 0, vm.runtimeErrorf("division by zero")
		}
		return floorDiv(a, b), nil
	case "%":
		if b == 0 {
			return 0, vm.runtimeErrorf("division by zero")
		}
		return floorMod(a, b), nil
	case "**":
		if b < 0 {
			return 0, vm.runtimeErrorf("negative exponent in integer pow")
		}
		return intPow(a, b), nil
	}
	return 0, vm.runtimeErrorf("unknown arithmetic operator %q", op)
}

func (vm *VM) floatCalc(a, b float64, op string) (float64, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "//":
		if b == 0 {
			return 0, vm.runtimeErrorf("division by zero")
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return 0, vm.runtimeErrorf("division by zero")
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, nil
	case "**":
		return math.Pow(a, b), nil
	}
	return 0, vm.runtimeErrorf("unknown arithmetic operator %q", op)
}

// floorDiv rounds the quotient toward negative infinity, so -7 // 2 is -4.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// floorMod takes the divisor's sign, pairing with floorDiv.
func floorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for ; exp > 0; exp >>= 1 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
	}
	return result
}

func (vm *VM) instCmp(args []string) error {
	a, err := vm.Resolve(args[0], TypeAny^TypeBool^TypeLabel)
	if err != nil {
		return err
	}
	op, err := vm.Resolve(args[1], TypeStr)
	if err != nil {
		return err
	}
	b, err := vm.Resolve(args[2], a.Kind.Flag())
	if err != nil {
		return err
	}

	switch op.Str {
	case "==", "!=", ">", ">=", "<", "<=":
	default:
		return vm.runtimeErrorf("unknown comparison operator %q", op.Str)
	}

	var result bool
	switch a.Kind {
	case KindInt:
		result = compareOrdered(a.Int, b.Int, op.Str)
	case KindFloat:
		result = compareOrdered(a.Float, b.Float, op.Str)
	default:
		result = compareOrdered(a.Str, b.Str, op.Str)
	}
	return vm.Assign(args[3], NewBool(result))
}

func compareOrdered[T cmp.Ordered](a, b T, op string) bool {
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case ">":
		return a > b
	case ">=":
		return a >= b
	case "<":
		return a < b
	default:
		return a <= b
	}
}

func (vm *VM) instAnd(args []string) error { return vm.logic(args, "and") }
func (vm *VM) instOr(args []string) error  { return vm.logic(args, "or") }
func (vm *VM) instXor(args []string) error { return vm.logic(args, "xor") }

func (vm *VM) logic(args []string, op string) error {
	a, err := vm.Resolve(args[0], TypeBool)
	if err != nil {
		return err
	}
	b, err := vm.Resolve(args[1], TypeBool)
	if err != nil {
		return err
	}

	var result bool
	switch op {
	case "and":
		result = a.Bool && b.Bool
	case "or":
		result = a.Bool || b.Bool
	case "xor":
		result = a.Bool != b.Bool
	default:
		return vm.runtimeErrorf("unknown boolean operator %q", op)
	}
	return vm.Assign(args[2], NewBool(result))
}

func (vm *VM) instNot(args []string) error {
	a, err := vm.Resolve(args[0], TypeBool)
	if err != nil {
		return err
	}
	return vm.Assign(args[1], NewBool(!a.Bool))
}

func (vm *VM) instInt(args []string) error {
	v, err := vm.Resolve(args[1], TypeInt|TypeFloat)
	if err != nil {
		return err
	}
	if v.Kind == KindInt {
		vm.warnf("casting %s to its own type", args[1])
	}
	return vm.Assign(args[0], NewInt(v.asInt()))
}

func (vm *VM) instFloat(args []string) error {
	v, err := vm.Resolve(args[1], TypeInt|TypeFloat)
	if err != nil {
		return err
	}
	if v.Kind == KindFloat {
		vm.warnf("casting %s to its own type", args[1])
	}
	return vm.Assign(args[0], NewFloat(v.asFloat()))
}

func (vm *VM) instBool(args []string) error {
	v, err := vm.Resolve(args[1], TypeAny^TypeLabel)
	if err != nil {
		return err
	}
	if v.Kind == KindBool {
		vm.warnf("casting %s to its own type", args[1])
	}
	return vm.Assign(args[0], NewBool(v.truthy()))
}

func (vm *VM) instStr(args []string) error {
	v, err := vm.Resolve(args[1], TypeAny^TypeLabel)
	if err != nil {
		return err
	}
	if v.Kind == KindString {
		vm.warnf("casting %s to its own type", args[1])
	}
	return vm.Assign(args[0], NewString(v.String()))
}

func (vm *VM) instCat(args []string) error {
	a, err := vm.Resolve(args[0], TypeStr)
	if err != nil {
		return err
	}
	b, err := vm.Resolve(args[1], TypeStr)
	if err != nil {
		return err
	}
	return vm.Assign(args[2], NewString(a.Str+b.Str))
}

func (vm *VM) instGoto(args []string) error {
	target, err := vm.Resolve(args[0], TypeLabel)
	if err != nil {
		return err
	}
	return vm.jump(target.Str)
}

// instWhen resolves both operands up front but only checks the label table
// when the condition holds, so an unset label under a false condition is not
// an error.
func (vm *VM) instWhen(args []string) error {
	cond, err := vm.Resolve(args[0], TypeBool)
	if err != nil {
		return err
	}
	target, err := vm.Resolve(args[1], TypeLabel)
	if err != nil {
		return err
	}
	if !cond.Bool {
		return nil
	}
	return vm.jump(target.Str)
}

func (vm *VM) instDump(args []string) error {
	w := vm.Stdout
	fmt.Fprintln(w, "Dump begin ---")
	fmt.Fprintln(w, "Constant symbol table")
	dumpValues(w, vm.constants)
	fmt.Fprintln(w, "Variable symbol table")
	dumpValues(w, vm.vars)
	fmt.Fprintln(w, "Label table")
	for _, name := range sortedKeys(vm.labels) {
		fmt.Fprintf(w, "  %s = %d\n", name, vm.labels[name])
	}
	fmt.Fprintln(w, "Dump end ---")
	return nil
}
