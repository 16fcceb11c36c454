package hack_test

import (
	"testing"

	"its-hmny.dev/hack-toolchain/pkg/hack"
)

func TestAInstructions(t *testing.T) {
	// Instantiate a shared codegen with some user-defined labels for every test cases
	codegen := hack.NewCodeGenerator(hack.Program{}, hack.SymbolTable{"LOOP": 1, "END": 12})

	test := func(inst hack.AInstruction, expected uint16, fail bool) {
		// Run the translation function on the given A Instruction
		word, err := codegen.GenerateAInst(inst)
		if err == nil && word != expected {
			t.Errorf("expected word %016b for location '%s', got %016b", expected, inst.LocName, word)
		}
		// 'err' should be not nil if 'fail' is passed as true from the caller
		if (err != nil) != fail {
			t.Errorf("unexpected error state for location '%s': %v", inst.LocName, err)
		}
	}

	t.Run("Raw memory access", func(t *testing.T) {
		test(hack.AInstruction{LocType: hack.Raw, LocName: "38"}, 38, false)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "42"}, 42, false)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "1024"}, 1024, false)
		// The high bit of an A instruction is always zero, only 15 bits carry the address
		test(hack.AInstruction{LocType: hack.Raw, LocName: "32767"}, 32767, false)
		// Raw locations that don't parse as 16 bit integers can't be translated
		test(hack.AInstruction{LocType: hack.Raw, LocName: "banana"}, 0, true)
		test(hack.AInstruction{LocType: hack.Raw, LocName: "99999"}, 0, true)
	})

	t.Run("Hack built-in labels", func(t *testing.T) {
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "SP"}, 0, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "LCL"}, 1, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "ARG"}, 2, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "THIS"}, 3, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "THAT"}, 4, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "R0"}, 0, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "R13"}, 13, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "R15"}, 15, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "SCREEN"}, 16384, false)
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "KBD"}, 24576, false)
		// Unknown names are not resolvable as built-ins
		test(hack.AInstruction{LocType: hack.BuiltIn, LocName: "KEYBOARD"}, 0, true)
	})

	t.Run("User-defined labels", func(t *testing.T) {
		// Labels present in the injected Symbol Table resolve to their bound address
		test(hack.AInstruction{LocType: hack.Label, LocName: "LOOP"}, 1, false)
		test(hack.AInstruction{LocType: hack.Label, LocName: "END"}, 12, false)
	})

	t.Run("Variable allocation", func(t *testing.T) {
		// Unresolved labels become variables: the first is bound to address 16,
		// successive new variables get 17, 18, ... and re-references are stable.
		codegen := hack.NewCodeGenerator(hack.Program{}, hack.SymbolTable{})
		test := func(name string, expected uint16) {
			word, err := codegen.GenerateAInst(hack.AInstruction{LocType: hack.Label, LocName: name})
			if err != nil || word != expected {
				t.Errorf("expected variable '%s' at address %d, got %d (err: %v)", name, expected, word, err)
			}
		}

		test("i", 16)
		test("sum", 17)
		test("i", 16)
		test("j", 18)
		test("sum", 17)
	})
}

func TestCInstructions(t *testing.T) {
	// Instantiate a shared codegen instance for every test cases
	codegen := hack.NewCodeGenerator(hack.Program{}, nil)

	test := func(inst hack.CInstruction, expected uint16, fail bool) {
		// Run the translation function on the given C Instruction
		word, err := codegen.GenerateCInst(inst)
		if err == nil && word != expected {
			t.Errorf("expected word %016b for instruction %+v, got %016b", expected, inst, word)
		}
		// 'err' should be not nil if 'fail' is passed as true from the caller
		if (err != nil) != fail {
			t.Errorf("unexpected error state for instruction %+v: %v", inst, err)
		}
	}

	t.Run("Known encodings", func(t *testing.T) {
		// 'M=1' and '0;JMP', straight from the instruction set reference
		test(hack.CInstruction{Dest: "M", Comp: "1"}, 0b1110111111001000, false)
		test(hack.CInstruction{Comp: "0", Jump: "JMP"}, 0b1110101010000111, false)
		// 'D=M+1' exercises the a-bit: comp 'M+1' is 'A+1' with the ALU input switched
		test(hack.CInstruction{Dest: "D", Comp: "M+1"}, 0b1111110111010000, false)
		// 'D;JGT' and 'AM=M-1' from the VM translator's own output
		test(hack.CInstruction{Comp: "D", Jump: "JGT"}, 0b1110001100000001, false)
		test(hack.CInstruction{Dest: "AM", Comp: "M-1"}, 0b1111110010101000, false)
		// Dest and jump can appear together in a single instruction
		test(hack.CInstruction{Dest: "AM", Comp: "M-1", Jump: "JNE"}, 0b1111110010101101, false)
		// A bare comp is a valid (no-op) word
		test(hack.CInstruction{Comp: "D"}, 0b1110001100000000, false)
	})

	t.Run("Opcode bits", func(t *testing.T) {
		// Every emitted C instruction word has bits 13-15 equal to 1
		for _, inst := range []hack.CInstruction{
			{Dest: "M", Comp: "D+M"}, {Comp: "0", Jump: "JEQ"}, {Dest: "AMD", Comp: "-1"},
		} {
			word, err := codegen.GenerateCInst(inst)
			if err != nil || word&0b1110000000000000 != 0b1110000000000000 {
				t.Errorf("expected opcode bits set for %+v, got %016b (err: %v)", inst, word, err)
			}
		}
	})

	t.Run("Malformed Inst", func(t *testing.T) {
		// Missing 'comp' sub-instruction, should fail and return an error
		test(hack.CInstruction{Dest: "AM", Jump: "JNE"}, 0, true)
		test(hack.CInstruction{Dest: "D"}, 0, true)
		test(hack.CInstruction{Jump: "JGT"}, 0, true)
		// Unknown mnemonics in each of the three sub-instructions
		test(hack.CInstruction{Dest: "M", Comp: "M+D"}, 0, true)
		test(hack.CInstruction{Dest: "X", Comp: "D+1"}, 0, true)
		test(hack.CInstruction{Comp: "0", Jump: "JMPP"}, 0, true)
	})
}

func TestProgramGeneration(t *testing.T) {
	// The symbol-resolution scenario: '@i' binds the first variable to address 16,
	// '@LOOP' resolves to instruction 1 (the label itself consumes no address).
	program := hack.Program{
		hack.AInstruction{LocType: hack.Label, LocName: "i"},
		hack.CInstruction{Dest: "M", Comp: "1"},
		hack.AInstruction{LocType: hack.Label, LocName: "i"},
		hack.CInstruction{Dest: "D", Comp: "M"},
		hack.AInstruction{LocType: hack.Label, LocName: "LOOP"},
		hack.CInstruction{Comp: "0", Jump: "JMP"},
	}

	codegen := hack.NewCodeGenerator(program, hack.SymbolTable{"LOOP": 1})
	words, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected error generating program: %v", err)
	}

	expected := []uint16{0x0010, 0xEFC8, 0x0010, 0xFC10, 0x0001, 0xEA87}
	if len(words) != len(expected) {
		t.Fatalf("expected %d words, got %d", len(expected), len(words))
	}
	for i, word := range words {
		if word != expected[i] {
			t.Errorf("word %d: expected %016b, got %016b", i, expected[i], word)
		}
	}

	t.Run("Text rendition", func(t *testing.T) {
		lines, err := codegen.GenerateText()
		if err != nil {
			t.Fatalf("unexpected error generating text: %v", err)
		}
		if len(lines) != len(program) {
			t.Fatalf("expected exactly one line per instruction, got %d", len(lines))
		}
		if lines[0] != "0000000000010000" {
			t.Errorf("expected '@i' to render as 0000000000010000, got %s", lines[0])
		}
		for _, line := range lines {
			if len(line) != 16 {
				t.Errorf("expected 16 chars per line, got %d (%s)", len(line), line)
			}
		}
	})

	t.Run("Binary rendition", func(t *testing.T) {
		buffer, err := codegen.GenerateBinary()
		if err != nil {
			t.Fatalf("unexpected error generating binary: %v", err)
		}
		if len(buffer) != len(program)*2 {
			t.Fatalf("expected two bytes per instruction, got %d", len(buffer))
		}
		// Big-endian words, no header nor padding: 0x0010 -> 0x00 0x10
		if buffer[0] != 0x00 || buffer[1] != 0x10 {
			t.Errorf("expected big-endian 0x0010 prefix, got %x %x", buffer[0], buffer[1])
		}
	})
}
