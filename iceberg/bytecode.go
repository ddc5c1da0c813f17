package iceberg

import (
	"fmt"
	"sort"
	"strings"
)

// Instruction is one compiled operation: an opcode name and its raw argument
// tokens. Arguments stay unparsed until the instruction executes.
type Instruction struct {
	Opcode string
	Args   []string
}

func (i Instruction) String() string {
	if len(i.Args) == 0 {
		return i.Opcode
	}
	return i.Opcode + " " + strings.Join(i.Args, ", ")
}

// Handler executes one instruction against the VM it was registered on.
type Handler func(args []string) error

// InstructionDesc pairs an opcode's handler with its required argument count.
// Arity is enforced by the compiler, not at dispatch time.
type InstructionDesc struct {
	Handler Handler
	NArgs   int
}

// Registry maps opcode names to descriptors. The built-ins are installed at VM
// construction; hosts may add opcodes before any script is compiled.
type Registry struct {
	ops map[string]InstructionDesc
}

func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]InstructionDesc)}
}

func (r *Registry) Register(name string, arity int, handler Handler) error {
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("invalid opcode name %q", name)
	}
	if arity < 0 {
		return fmt.Errorf("negative arity for opcode %q", name)
	}
	if handler == nil {
		return fmt.Errorf("nil handler for opcode %q", name)
	}
	r.ops[name] = InstructionDesc{Handler: handler, NArgs: arity}
	return nil
}

func (r *Registry) Lookup(name string) (InstructionDesc, bool) {
	desc, ok := r.ops[name]
	return desc, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bytecode is the compiled program: the instruction sequence plus the label
// table mapping each label to the index of the nop that replaced its
// definition. It is read-only after compilation and may be run any number of
// times.
type Bytecode struct {
	Instructions []Instruction
	Labels       map[string]int
}

func (b *Bytecode) Disassemble() string {
	var parts []string

	parts = append(parts, "--------- Labels ---------\n")
	if len(b.Labels) > 0 {
		for _, name := range sortedKeys(b.Labels) {
			parts = append(parts, fmt.Sprintf("%04d: %s\n", b.Labels[name], name))
		}
	} else {
		parts = append(parts, "Label table is empty.\n")
	}

	parts = append(parts, "\n--------- Instructions ---------\n")
	if len(b.Instructions) > 0 {
		for i, inst := range b.Instructions {
			parts = append(parts, fmt.Sprintf("%04d: %s\n", i, inst))
		}
	} else {
		parts = append(parts, "Instruction list is empty.\n")
	}

	return strings.Join(parts, "")
}
