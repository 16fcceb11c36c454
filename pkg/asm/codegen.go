package asm

import (
	"fmt"

	"its-hmny.dev/hack-toolchain/pkg/hack"
)

// ----------------------------------------------------------------------------
// Code Generator

// Takes an 'asm.Program' and spits out its source code counterpart.
//
// This is the renderer used by the VM translator to produce the final '.asm' stream:
// each statement becomes exactly one line of text ('@x', 'dest=comp;jump' or '(LABEL)').
// The translation can be done without any additional data structure but the program.
type CodeGenerator struct {
	program Program // The set of statements to convert in Asm source format
}

// Initializes and returns to the caller a brand new 'CodeGenerator' struct.
// Requires that argument Program 'p' (what we want to translate) is non-nil.
func NewCodeGenerator(p Program) CodeGenerator {
	return CodeGenerator{program: p}
}

// Translates each statement in the 'program' to the Asm string format.
//
// Each statement will pass through the following step: evaluation, validation and then
// conversion to its string representation so that it can be further elaborated by the
// function caller (e.g. dumping .asm code to a file, feeding the assembler, ...).
func (cg *CodeGenerator) Generate() ([]string, error) {
	lines := make([]string, 0, len(cg.program))

	for _, statement := range cg.program {
		var generated string
		var err error

		switch tStatement := statement.(type) {
		case AInstruction:
			generated, err = cg.GenerateAInst(tStatement)
		case CInstruction:
			generated, err = cg.GenerateCInst(tStatement)
		case LabelDecl:
			generated, err = cg.GenerateLabelDecl(tStatement)
		default:
			err = fmt.Errorf("unrecognized statement '%T'", statement)
		}

		if err != nil {
			return nil, err
		}
		lines = append(lines, generated)
	}

	return lines, nil
}

// Specialized function to convert an A Instruction to the Asm format.
func (cg *CodeGenerator) GenerateAInst(inst AInstruction) (string, error) {
	if inst.Location == "" {
		return "", fmt.Errorf("unable to produce A instruction with empty location")
	}

	return fmt.Sprintf("@%s", inst.Location), nil
}

// Specialized function to convert a C Instruction to the Asm format.
func (cg *CodeGenerator) GenerateCInst(inst CInstruction) (string, error) {
	if inst.Comp == "" {
		return "", fmt.Errorf("unable to produce C instruction without 'comp' section")
	}

	line := inst.Comp
	if inst.Dest != "" {
		line = fmt.Sprintf("%s=%s", inst.Dest, line)
	}
	if inst.Jump != "" {
		line = fmt.Sprintf("%s;%s", line, inst.Jump)
	}

	return line, nil
}

// Specialized function to convert a Label declaration to the Asm format.
func (cg *CodeGenerator) GenerateLabelDecl(decl LabelDecl) (string, error) {
	if decl.Name == "" {
		return "", fmt.Errorf("unable to produce empty label declaration")
	}
	if _, reserved := hack.BuiltInTable[decl.Name]; reserved {
		return "", fmt.Errorf("unable to produce label '%s', shadows a built-in symbol", decl.Name)
	}

	return fmt.Sprintf("(%s)", decl.Name), nil
}
