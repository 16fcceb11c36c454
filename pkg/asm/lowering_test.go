package asm_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"its-hmny.dev/hack-toolchain/pkg/asm"
	"its-hmny.dev/hack-toolchain/pkg/hack"
)

func TestLowerLabelResolution(t *testing.T) {
	program := asm.Program{
		asm.AInstruction{Location: "i"}, // Address 0
		asm.CInstruction{Dest: "M", Comp: "1"},
		asm.LabelDecl{Name: "LOOP"}, // Binds to the next instruction (address 2)
		asm.AInstruction{Location: "i"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LOOP"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: "END"}, // Binds past the last instruction (address 6)
	}

	lowerer := asm.NewLowerer(program)
	lowered, table, err := lowerer.Lower()
	require.NoError(t, err)

	// Label declarations consume no instruction address
	require.Len(t, lowered, 6)
	require.Equal(t, hack.SymbolTable{"LOOP": 2, "END": 6}, table)
}

func TestLowerLocationTypes(t *testing.T) {
	program := asm.Program{
		asm.AInstruction{Location: "1024"},
		asm.AInstruction{Location: "SP"},
		asm.AInstruction{Location: "SCREEN"},
		asm.AInstruction{Location: "counter"},
	}

	lowerer := asm.NewLowerer(program)
	lowered, _, err := lowerer.Lower()
	require.NoError(t, err)

	// All-digits locations are raw, known names are built-ins, the rest are labels
	require.Equal(t, hack.Program{
		hack.AInstruction{LocType: hack.Raw, LocName: "1024"},
		hack.AInstruction{LocType: hack.BuiltIn, LocName: "SP"},
		hack.AInstruction{LocType: hack.BuiltIn, LocName: "SCREEN"},
		hack.AInstruction{LocType: hack.Label, LocName: "counter"},
	}, lowered)
}

func TestLowerFailures(t *testing.T) {
	test := func(program asm.Program) {
		lowerer := asm.NewLowerer(program)
		_, _, err := lowerer.Lower()
		require.Error(t, err)
	}

	// Empty programs have nothing to lower
	test(asm.Program{})
	// A label declared twice is ambiguous
	test(asm.Program{
		asm.LabelDecl{Name: "LOOP"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.LabelDecl{Name: "LOOP"},
		asm.CInstruction{Dest: "D", Comp: "A"},
	})
	// A label shadowing a built-in symbol would silently change its meaning
	test(asm.Program{asm.LabelDecl{Name: "SP"}, asm.CInstruction{Dest: "D", Comp: "A"}})
	// A C instruction without computation cannot be encoded
	test(asm.Program{asm.CInstruction{Dest: "D"}})
	// Raw locations wider than a machine word are out of reach
	test(asm.Program{asm.AInstruction{Location: "99999"}})
}
