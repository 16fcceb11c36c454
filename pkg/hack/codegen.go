package hack

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// ----------------------------------------------------------------------------
// Translation tables

// This section contains the translation tables cornerstone of the codegen phase.
//
// This table provides a simple yet effective way to resolve the everything built-in and
// in the Hack specification. Notably we have a the following tables defined:
//	- 'BuiltInTable': Specifies how to translate BuiltIn labels in A instructions to their address
//  - 'CompTable': Specifies how to translate the 'Comp' opcode in C instructions
//  - 'DestTable': Specifies how to translate the 'Dest' opcode in C instructions
//  - 'JumpTable': Specifies how to translate the 'Jump' opcode in C instructions

var (
	BuiltInTable = map[string]uint16{
		// Virtual Machine specific aliases (see the VM translator)
		"SP": 0, "LCL": 1, "ARG": 2, "THIS": 3, "THAT": 4,
		// Named general purpose registers
		"R0": 0, "R1": 1, "R2": 2, "R3": 3, "R4": 4, "R5": 5,
		"R6": 6, "R7": 7, "R8": 8, "R9": 9, "R10": 10, "R11": 11,
		"R12": 12, "R13": 13, "R14": 14, "R15": 15,
		// Memory mapped I/O locations
		"SCREEN": 16384, "KBD": 24576,
	}

	// The 7-bit comp field already carries the 'a' bit (the leading digit below):
	// the M variants are the A variants with the ALU input switched to memory.
	CompTable = map[string]uint16{
		// - Constants and identities
		"0": 0b0101010, "1": 0b0111111, "-1": 0b0111010,
		"D": 0b0001100, "A": 0b0110000, "M": 0b1110000,
		// - Binary and numerical negations
		"!D": 0b0001101, "!A": 0b0110001, "!M": 0b1110001,
		"-D": 0b0001111, "-A": 0b0110011, "-M": 0b1110011,
		// - Increment and decrement operations
		"D+1": 0b0011111, "A+1": 0b0110111, "M+1": 0b1110111,
		"D-1": 0b0001110, "A-1": 0b0110010, "M-1": 0b1110010,
		// - Register with register operations
		"D+A": 0b0000010, "D+M": 0b1000010,
		"D-A": 0b0010011, "D-M": 0b1010011,
		"A-D": 0b0000111, "M-D": 0b1000111,
		// - Bitwise register with register operations
		"D&A": 0b0000000, "D&M": 0b1000000,
		"D|A": 0b0010101, "D|M": 0b1010101,
	}

	DestTable = map[string]uint16{
		"": 0b000, "M": 0b001, "D": 0b010, "A": 0b100,
		"MD": 0b011, "AM": 0b101, "AD": 0b110, "AMD": 0b111,
	}

	JumpTable = map[string]uint16{
		"": 0b000, "JGT": 0b001, "JEQ": 0b010, "JGE": 0b011,
		"JLT": 0b100, "JNE": 0b101, "JLE": 0b110, "JMP": 0b111,
	}
)

// ----------------------------------------------------------------------------
// Code Generator

// Takes a set of 'hack.Instruction' and spits out their binary counterparts.
//
// In order to resolve user defined labels in A instructions, during initialization of
// the Code Generator a Symbol Table should be provided (the one built by the lowering
// pass from the '(LABEL)' declarations). Variable symbols, the labels that are still
// unresolved when the codegen reaches them, are allocated sequentially from data
// register 16 onwards and recorded back into the table so that every later reference
// resolves to the same register.
type CodeGenerator struct {
	program    Program     // The set of instructions to convert in Hack binary format
	table      SymbolTable // Mapping to resolve user-defined labels to their underlying address
	nVarOffset uint16      // Internal offset to allocate memory for new variables
}

// Initializes and returns to the caller a brand new 'CodeGenerator' struct.
// Requires both a non-nil Program 'p' (what we want to translate) as well as
// an optionally nullable Symbol Table 'st' used to resolve user defined labels.
func NewCodeGenerator(p Program, st SymbolTable) CodeGenerator {
	if st == nil {
		st = SymbolTable{}
	}
	return CodeGenerator{program: p, table: st}
}

// Translates each instruction in the 'Program' to its 16-bit machine word.
//
// Each instruction will pass through the following step: evaluation, validation and then
// conversion to its binary representation (stored inside a uint16) so that it can be
// further elaborated by the function caller (e.g. dumping .hack code to a file, writing
// the raw words to a .bin, runtime interpretation, ...).
func (cg *CodeGenerator) Generate() ([]uint16, error) {
	words := make([]uint16, 0, len(cg.program))

	for _, instruction := range cg.program {
		var word uint16
		var err error

		switch tInstruction := instruction.(type) {
		case AInstruction:
			word, err = cg.GenerateAInst(tInstruction)
		case CInstruction:
			word, err = cg.GenerateCInst(tInstruction)
		default:
			err = fmt.Errorf("unrecognized instruction '%T'", instruction)
		}

		if err != nil {
			return nil, err
		}
		words = append(words, word)
	}

	return words, nil
}

// Renders the program as '.hack' text lines, sixteen '0'/'1' chars per instruction.
func (cg *CodeGenerator) GenerateText() ([]string, error) {
	words, err := cg.Generate()
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(words))
	for _, word := range words {
		lines = append(lines, fmt.Sprintf("%016b", word))
	}
	return lines, nil
}

// Renders the program as raw '.bin' bytes, each word big-endian, no header nor padding.
func (cg *CodeGenerator) GenerateBinary() ([]byte, error) {
	words, err := cg.Generate()
	if err != nil {
		return nil, err
	}

	buffer := make([]byte, 0, len(words)*2)
	for _, word := range words {
		buffer = binary.BigEndian.AppendUint16(buffer, word)
	}
	return buffer, nil
}

// Specialized function to convert an A Instruction to its machine word.
//
// As part of the conversion (for both built-in and user-defined labels) there's a lookup
// on their respective symbol tables in order to determine the 'real' location address.
// Unresolved labels become new variables allocated from register 16 onwards. The final
// word keeps only the low 15 bits of the address, the high bit of an A instruction is
// always zero.
func (cg *CodeGenerator) GenerateAInst(inst AInstruction) (uint16, error) {
	found, address := false, uint16(0)

	switch inst.LocType {
	case Raw: // Simply translate the raw address from 'string' to 'int'
		num, err := strconv.ParseUint(inst.LocName, 10, 16)
		address, found = uint16(num), err == nil
	case Label: // Lookup the label name in the provided SymbolTable
		address, found = cg.table[inst.LocName]
		// If not found we treat it as a new variable
		if !found {
			// Assign a new memory location starting from 16 onwards
			address, found = FirstVariableAddress+cg.nVarOffset, true
			// And update the SymbolTable so that future references
			// gets resolved/points to the same locations in RAM
			cg.table[inst.LocName] = address
			cg.nVarOffset++
		}
	case BuiltIn: // Lookup the registry name in the WellKnown table
		address, found = BuiltInTable[inst.LocName]
	}

	if !found {
		return 0, fmt.Errorf("unable to resolve address for location '%s'", inst.LocName)
	}

	return address & (MaxAddressableMemory - 1), nil
}

// Specialized function to convert a C Instruction to its machine word.
//
// The 'Comp' bit-codes are the only mandatory ones, 'Dest' and 'Jump' both default to
// their all-zeroes encoding. An unknown mnemonic in any of the three sub-instructions
// is fatal to the translation.
func (cg *CodeGenerator) GenerateCInst(inst CInstruction) (uint16, error) {
	command := uint16(0b111 << 13) // Puts the initial '111' opcode at the start

	if inst.Comp == "" {
		return 0, fmt.Errorf("unable to translate C instruction, 'comp' opcode is required")
	}

	// CInst.Comp: Command translation with bit-a-bit manipulation
	if opcode, found := CompTable[inst.Comp]; found {
		command |= opcode << 6
	} else {
		return 0, fmt.Errorf("unable to translate C instruction, unknown 'comp' opcode '%s'", inst.Comp)
	}
	// CInst.Dest: Command translation with bit-a-bit manipulation
	if opcode, found := DestTable[inst.Dest]; found {
		command |= opcode << 3
	} else {
		return 0, fmt.Errorf("unable to translate C instruction, unknown 'dest' opcode '%s'", inst.Dest)
	}
	// CInst.Jump: Command translation with bit-a-bit manipulation
	if opcode, found := JumpTable[inst.Jump]; found {
		command |= opcode
	} else {
		return 0, fmt.Errorf("unable to translate C instruction, unknown 'jump' opcode '%s'", inst.Jump)
	}

	return command, nil
}
