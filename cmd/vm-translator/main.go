package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teris-io/cli"
	"its-hmny.dev/hack-toolchain/pkg/asm"
	"its-hmny.dev/hack-toolchain/pkg/vm"
)

var Description = strings.ReplaceAll(`
The VM Translator translates programs (composed of one or multiple modules/files)
written in the VM language into Hack assembly code that can be further elaborated.
The VM language is a higher-level (bytecode'like) language tailored for use with the
Hack computer architecture. When translating a whole directory the bootstrap prelude
(SP=256 plus the call to Sys.init) is prepended, unless explicitly disabled.
`, "\n", " ")

var VmTranslator = cli.New(Description).
	WithArg(cli.NewArg("input", "The bytecode (.vm) file or directory to be translated")).
	WithOption(cli.NewOption("no-bootstrap", "Leaves out the bootstrap code from the final .asm file").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	input := args[0]

	info, err := os.Stat(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to access input path: %s\n", err)
		return 1
	}

	// Resolves the translation units and the output location: a directory is a whole
	// program (every .vm inside it, bootstrap included), a single file is translated
	// alone with no bootstrap at all.
	inputs, output, bootstrap := []string{}, "", false

	if info.IsDir() {
		entries, err := filepath.Glob(filepath.Join(input, "*.vm"))
		if err != nil || len(entries) == 0 {
			fmt.Fprintf(os.Stderr, "ERROR: No .vm files found in directory '%s'\n", input)
			return 1
		}
		sort.Strings(entries) // Deterministic translation order across runs

		_, enabled := options["no-bootstrap"]
		inputs, bootstrap = entries, !enabled
		output = filepath.Join(input, path.Base(filepath.Clean(input))+".asm")
	} else {
		inputs = []string{input}
		output = strings.TrimSuffix(input, ".vm") + ".asm"
	}

	asmProgram := asm.Program{}
	if bootstrap {
		asmProgram = append(asmProgram, vm.Bootstrap()...)
	}

	// Each translation unit is parsed and lowered independently, every module gets its
	// own Lowerer so that 'static' symbols stay qualified by their own module name.
	for _, unit := range inputs {
		content, err := os.ReadFile(unit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to open input file: %s\n", err)
			return 1
		}

		// Instantiate a parser for the Vm module
		parser := vm.NewParser(bytes.NewReader(content))
		// Parses the input file content and extract an AST (as a 'vm.Module') from it.
		module, err := parser.Parse()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'parsing' pass on '%s': %s\n", unit, err)
			return 1
		}

		// Instantiate a lowerer to convert the module from Vm to Asm
		basename := strings.TrimSuffix(path.Base(unit), path.Ext(unit))
		lowerer := vm.NewLowerer(basename)
		// Lowers the vm.Module to an in-memory/IR representation of its Asm counterpart 'asm.Program'.
		lowered, err := lowerer.Lower(module)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'lowering' pass on '%s': %s\n", unit, err)
			return 1
		}

		asmProgram = append(asmProgram, lowered...)
	}

	// Now, instantiates a code generator for the Asm (compiled) program
	codegen := asm.NewCodeGenerator(asmProgram)
	// Iterates over each statement and spits out the relative textual representation.
	compiled, err := codegen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return 1
	}

	buffer := bytes.Buffer{}
	for _, line := range compiled {
		buffer.WriteString(line)
		buffer.WriteByte('\n')
	}
	if err := os.WriteFile(output, buffer.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to write output file: %s\n", err)
		return 1
	}

	return 0
}

func main() { os.Exit(VmTranslator.Run(os.Args, os.Stdout)) }
