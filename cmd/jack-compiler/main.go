package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teris-io/cli"
	"its-hmny.dev/hack-toolchain/pkg/jack"
	"its-hmny.dev/hack-toolchain/pkg/vm"
)

var Description = strings.ReplaceAll(`
The Jack Compiler compiles programs (composed of one or multiple classes/files) written
in the Jack language into VM modules that can be further elaborated. The Jack language
is a higher-level OOP language tailored for use with the Hack computer architecture.
Each .jack class compiles to its own .vm module, written in the output directory (by
default next to its source file).
`, "\n", " ")

var JackCompiler = cli.New(Description).
	WithArg(cli.NewArg("input", "The source (.jack) file or directory to be compiled")).
	WithArg(cli.NewArg("outdir", "The directory where the compiled .vm modules are written").
		AsOptional()).
	WithOption(cli.NewOption("tokens", "Dumps the token stream of each translation unit instead of compiling").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	input := args[0]

	// Aggregates all the Translation Units (TUs) found during the input walk: each
	// '.jack' file holds exactly one class and compiles to exactly one '.vm' module.
	TUs := []string{}

	err := filepath.Walk(input, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".jack" {
			return nil // We recurse on dirs and ignore other filetypes
		}

		TUs = append(TUs, path)
		return nil
	})
	if err != nil || len(TUs) == 0 {
		fmt.Fprintf(os.Stderr, "ERROR: No .jack files found at path '%s'\n", input)
		return 1
	}
	sort.Strings(TUs) // Deterministic compilation order across runs

	_, dumpTokens := options["tokens"]

	for _, tu := range TUs {
		content, err := os.ReadFile(tu)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to open input file: %s\n", err)
			return 1
		}

		filename := path.Base(tu)

		// Debug aid: print the typed token stream and skip compilation altogether
		if dumpTokens {
			tokenizer := jack.NewTokenizer(filename, content)
			for {
				token, ok, err := tokenizer.Next()
				if err != nil {
					fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'tokenize' pass: %s\n", err)
					return 1
				}
				if !ok {
					break
				}
				fmt.Println(token)
			}
			continue
		}

		// Instantiate a parser for the Jack class
		parser := jack.NewParser(filename, content)
		// Parses the input file content and extract a typed 'jack.Class' from it.
		class, err := parser.Parse()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'parsing' pass: %s\n", err)
			return 1
		}

		// Instantiate a lowerer to convert the class from Jack to Vm
		lowerer := jack.NewLowerer(class)
		// Lowers the jack.Class to an in-memory/IR representation of its Vm counterpart 'vm.Module'.
		module, err := lowerer.Lower()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'lowering' pass on '%s': %s\n", tu, err)
			return 1
		}

		// Now, instantiates a code generator for the Vm (compiled) module
		codegen := vm.NewCodeGenerator(module)
		// Iterates over each operation and spits out the relative textual representation.
		compiled, err := codegen.Generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'codegen' pass on '%s': %s\n", tu, err)
			return 1
		}

		outdir := filepath.Dir(tu)
		if len(args) > 1 {
			outdir = args[1]
		}

		buffer := bytes.Buffer{}
		for _, line := range compiled {
			buffer.WriteString(line)
			buffer.WriteByte('\n')
		}
		output := filepath.Join(outdir, class.Name+".vm")
		if err := os.WriteFile(output, buffer.Bytes(), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to write output file: %s\n", err)
			return 1
		}
	}

	return 0
}

func main() { os.Exit(JackCompiler.Run(os.Args, os.Stdout)) }
