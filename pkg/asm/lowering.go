package asm

import (
	"fmt"
	"strconv"
	"strings"

	"its-hmny.dev/hack-toolchain/pkg/hack"
)

// ----------------------------------------------------------------------------
// Asm Lowerer

// The Lowerer takes an 'asm.Program' and produces its 'hack.Program' counterpart.
//
// This is the first of the assembler's two passes: statements are visited in source
// order and assigned sequential instruction addresses, label declarations bind their
// name to the address of the next real instruction without consuming one themselves.
// The produced Symbol Table feeds the codegen phase (the second pass), where still
// unresolved symbols become variables allocated from data register 16 onwards.
type Lowerer struct{ program Program }

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program to be not nil nor empty.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Triggers the lowering process. It iterates instruction by instruction and recursively
// calls the specified helper function based on the instruction type (much like a recursive
// descend parser but for lowering), this means the AST is visited in DFS order.
func (l *Lowerer) Lower() (hack.Program, hack.SymbolTable, error) {
	converted, table := hack.Program{}, hack.SymbolTable{}

	if len(l.program) == 0 {
		return nil, nil, fmt.Errorf("the given 'program' is empty")
	}

	for _, statement := range l.program {
		switch tStatement := statement.(type) {
		case AInstruction: // Converts 'asm.AInstruction' to 'hack.AInstruction'
			hackInst, err := l.HandleAInst(tStatement)
			if hackInst == nil || err != nil {
				return nil, nil, err
			}
			converted = append(converted, hackInst)

		case CInstruction: // Converts 'asm.CInstruction' to 'hack.CInstruction'
			hackInst, err := l.HandleCInst(tStatement)
			if hackInst == nil || err != nil {
				return nil, nil, err
			}
			converted = append(converted, hackInst)

		case LabelDecl: // Adds 'asm.LabelDecl' to the 'hack.SymbolTable'
			label, err := l.HandleLabelDecl(tStatement)
			if label == "" || err != nil {
				return nil, nil, err
			}
			if _, exists := table[label]; exists {
				return nil, nil, fmt.Errorf("label '%s' declared more than once", label)
			}
			// The label binds to the address of the next emitted instruction,
			// the declaration itself does not consume an instruction address.
			table[label] = uint16(len(converted))

		default: // Error case, unrecognized statement type
			return nil, nil, fmt.Errorf("unrecognized statement '%T'", statement)
		}
	}

	return converted, table, nil
}

// Specialized function to convert a 'asm.AInstruction' node to an 'hack.AInstruction'.
func (Lowerer) HandleAInst(inst AInstruction) (hack.Instruction, error) {
	if inst.Location == "" {
		return nil, fmt.Errorf("A instruction with empty location")
	}

	// Based on one of the following cases below (the type of the symbol) we do different things:
	// 1) If it's present in the BuiltInTable we set the 'LocType' to 'BuiltIn' accordingly
	if _, found := hack.BuiltInTable[inst.Location]; found {
		return hack.AInstruction{LocType: hack.BuiltIn, LocName: inst.Location}, nil
	}
	// 2) If it's all digits we set the 'LocType' to 'Raw' accordingly
	if isAllDigits(inst.Location) {
		if _, err := strconv.ParseUint(inst.Location, 10, 16); err != nil {
			return nil, fmt.Errorf("raw location '%s' does not fit in a machine word", inst.Location)
		}
		return hack.AInstruction{LocType: hack.Raw, LocName: inst.Location}, nil
	}
	// 3) Else it's a user defined label and we set 'LocType' to 'Label' accordingly
	return hack.AInstruction{LocType: hack.Label, LocName: inst.Location}, nil
}

// Specialized function to convert a 'asm.CInstruction' node to an 'hack.CInstruction'.
func (Lowerer) HandleCInst(inst CInstruction) (hack.Instruction, error) {
	if inst.Comp == "" { // Pre-check: CInstruction.Comp should always be provided
		return nil, fmt.Errorf("'Comp' sub-instruction should always be provided")
	}

	return hack.CInstruction{Dest: inst.Dest, Comp: inst.Comp, Jump: inst.Jump}, nil
}

// Specialized function to extract from a 'asm.LabelDecl' node the identifier of the label.
func (Lowerer) HandleLabelDecl(inst LabelDecl) (string, error) {
	if inst.Name == "" {
		return "", fmt.Errorf("label declaration with empty name")
	}
	if _, reserved := hack.BuiltInTable[inst.Name]; reserved {
		return "", fmt.Errorf("label '%s' shadows a built-in symbol", inst.Name)
	}

	return inst.Name, nil
}

func isAllDigits(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) == -1
}
