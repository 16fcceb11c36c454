package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/teris-io/cli"
	"its-hmny.dev/hack-toolchain/pkg/asm"
	"its-hmny.dev/hack-toolchain/pkg/hack"
)

var Description = strings.ReplaceAll(`
The Assembler takes code written in the Hack assembly language and translates it into
machine code that can be executed by the Hack computer. The process involves parsing
the assembly code, resolving symbols, and generating the 16-bit machine words, dumped
both as text ('.hack', one line of sixteen 0/1 chars per instruction) and as raw
big-endian words ('.bin').
`, "\n", " ")

var Assembler = cli.New(Description).
	WithArg(cli.NewArg("input", "The assembly (.asm) file to be translated")).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	input := args[0]

	content, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to open input file: %s\n", err)
		return 1
	}

	// Instantiate a parser for the Asm program
	parser := asm.NewParser(bytes.NewReader(content))
	// Parses the input file content and extract an AST (as an 'asm.Program') from it.
	asmProgram, err := parser.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'parsing' pass: %s\n", err)
		return 1
	}

	// Instantiate a lowerer to convert the program from Asm to Hack
	lowerer := asm.NewLowerer(asmProgram)
	// Lowers the asm.Program to an in-memory/IR representation of its Hack counterpart 'hack.Program'.
	hackProgram, table, err := lowerer.Lower()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'lowering' pass: %s\n", err)
		return 1
	}

	// Now, instantiates a code generator for the Hack (compiled) program
	codegen := hack.NewCodeGenerator(hackProgram, table)
	// Both renditions are produced upfront so that nothing is written on a failed translation.
	text, err := codegen.GenerateText()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return 1
	}
	binary, err := codegen.GenerateBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return 1
	}

	base := strings.TrimSuffix(input, ".asm")

	buffer := bytes.Buffer{}
	for _, line := range text {
		buffer.WriteString(line)
		buffer.WriteByte('\n')
	}
	if err := os.WriteFile(base+".hack", buffer.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to write output file: %s\n", err)
		return 1
	}
	if err := os.WriteFile(base+".bin", binary, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to write output file: %s\n", err)
		return 1
	}

	return 0
}

func main() { os.Exit(Assembler.Run(os.Args, os.Stdout)) }
