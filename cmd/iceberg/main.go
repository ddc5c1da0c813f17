package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"icebergvm/iceberg"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("iceberg")

type constsFile struct {
	Constants map[string]any `toml:"constants"`
}

func main() {
	constsPath := flag.String("consts", "", "TOML file seeding the constant table")
	dis := flag.Bool("dis", false, "print the disassembly instead of running")
	timed := flag.Bool("time", false, "report compile and run wall time")
	verbosity := flag.Int("v", 0, "log verbosity")
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	srcName := "examples/fizzbuzz.ib"
	if flag.NArg() > 0 {
		srcName = flag.Arg(0)
	}
	source, err := os.ReadFile(srcName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %s\n", err)
		os.Exit(1)
	}

	vm := iceberg.NewVM()
	registerPrint(vm)

	if *constsPath != "" {
		if err := loadConstants(vm, *constsPath); err != nil {
			fmt.Fprintf(os.Stderr, "error loading constants: %s\n", err)
			os.Exit(1)
		}
	}

	log.Infof("compiling %s", srcName)
	compileStart := time.Now()
	bytecode, err := vm.Compile(string(source))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	compileTime := time.Since(compileStart)
	log.Infof("compiled %d instructions, %d labels", len(bytecode.Instructions), len(bytecode.Labels))

	if *dis {
		fmt.Println(bytecode.Disassemble())
		return
	}

	runStart := time.Now()
	if err := vm.Run(bytecode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	runTime := time.Since(runStart)

	if *timed {
		fmt.Printf("Compilation time: %v\n", compileTime)
		fmt.Printf("Execution time: %v\n", runTime)
	}
}

// registerPrint extends the instruction set with the host-side print opcode,
// the same extension the reference benchmark harness installs.
func registerPrint(vm *iceberg.VM) {
	vm.Register("print", 1, func(args []string) error {
		v, err := vm.Resolve(args[0], iceberg.TypeStr)
		if err != nil {
			return err
		}
		fmt.Fprintln(vm.Stdout, v.Str)
		return nil
	})
}

func loadConstants(vm *iceberg.VM, path string) error {
	var file constsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return err
	}
	for name, raw := range file.Constants {
		var value iceberg.Value
		switch v := raw.(type) {
		case int64:
			value = iceberg.NewInt(v)
		case float64:
			value = iceberg.NewFloat(v)
		case bool:
			value = iceberg.NewBool(v)
		case string:
			value = iceberg.NewString(v)
		default:
			return fmt.Errorf("constant %q has unsupported type %T", name, raw)
		}
		if err := vm.AddConstant(name, value); err != nil {
			return err
		}
		log.Debugf("constant %s = %v", name, raw)
	}
	return nil
}
