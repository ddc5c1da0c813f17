package iceberg

import (
	"fmt"
	"io"
	"sort"
)

// RunScript compiles source with the VM's registry and executes the result.
func RunScript(vm *VM, source string) error {
	bytecode, err := vm.Compile(source)
	if err != nil {
		return err
	}
	return vm.Run(bytecode)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dumpValues(w io.Writer, table map[string]Value) {
	for _, name := range sortedKeys(table) {
		v := table[name]
		fmt.Fprintf(w, "  %s = %s (%s)\n", name, v, v.Kind)
	}
}
