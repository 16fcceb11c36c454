package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"its-hmny.dev/hack-toolchain/pkg/asm"
	"its-hmny.dev/hack-toolchain/pkg/vm"
)

// Lowers the module and renders the produced assembly as text lines, the most
// readable form to assert the emitted fragments against.
func lowerAndRender(t *testing.T, module string, ops vm.Module) []string {
	t.Helper()

	lowerer := vm.NewLowerer(module)
	program, err := lowerer.Lower(ops)
	require.NoError(t, err)

	codegen := asm.NewCodeGenerator(program)
	lines, err := codegen.Generate()
	require.NoError(t, err)
	return lines
}

func TestLowerPush(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 7},
		})
		require.Equal(t, []string{
			"@7", "D=A", "@SP", "M=M+1", "A=M-1", "M=D",
		}, lines)
	})

	t.Run("Indirect segments", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 3},
		})
		require.Equal(t, []string{
			"@3", "D=A", "@LCL", "A=D+M", "D=M", "@SP", "M=M+1", "A=M-1", "M=D",
		}, lines)
	})

	t.Run("Temp", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 2},
		})
		// Base register 5 plus the offset
		require.Equal(t, []string{
			"@7", "D=M", "@SP", "M=M+1", "A=M-1", "M=D",
		}, lines)
	})

	t.Run("Static", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Static, Offset: 4},
		})
		// Statics are named variables qualified by the module name
		require.Equal(t, []string{
			"@Main.4", "D=M", "@SP", "M=M+1", "A=M-1", "M=D",
		}, lines)
	})

	t.Run("Pointer", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 1},
		})
		// The pointer itself, not the pointed-to location
		require.Equal(t, []string{
			"@THAT", "D=M", "@SP", "M=M+1", "A=M-1", "M=D",
		}, lines)
	})
}

func TestLowerPop(t *testing.T) {
	t.Run("Indirect segments", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Argument, Offset: 2},
		})
		// The target address is parked in the scratch register before the pop
		require.Equal(t, []string{
			"@2", "D=A", "@ARG", "D=D+M", "@R13", "M=D",
			"@SP", "AM=M-1", "D=M", "@R13", "A=M", "M=D",
		}, lines)
	})

	t.Run("Direct segments", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Static, Offset: 1},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		})
		require.Equal(t, []string{
			"@SP", "AM=M-1", "D=M", "@5", "M=D",
			"@SP", "AM=M-1", "D=M", "@Main.1", "M=D",
			"@SP", "AM=M-1", "D=M", "@THIS", "M=D",
		}, lines)
	})

	t.Run("Failures", func(t *testing.T) {
		test := func(op vm.MemoryOp) {
			lowerer := vm.NewLowerer("Main")
			_, err := lowerer.Lower(vm.Module{op})
			require.Error(t, err)
		}

		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Constant, Offset: 0})
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 2})
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 8})
	})
}

func TestLowerArithmetic(t *testing.T) {
	t.Run("Binary ops", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{vm.ArithmeticOp{Operation: vm.Add}})
		require.Equal(t, []string{
			"@SP", "AM=M-1", "D=M", "A=A-1", "M=D+M",
		}, lines)

		lines = lowerAndRender(t, "Main", vm.Module{vm.ArithmeticOp{Operation: vm.Sub}})
		require.Equal(t, []string{
			"@SP", "AM=M-1", "D=-M", "A=A-1", "M=D+M",
		}, lines)
	})

	t.Run("Unary ops", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{vm.ArithmeticOp{Operation: vm.Not}})
		// SP doesn't move, the stack's top is rewritten in place
		require.Equal(t, []string{"@SP", "A=M-1", "M=!M"}, lines)
	})

	t.Run("Comparisons", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{
			vm.FuncDecl{Name: "Main.main", NLocals: 0},
			vm.ArithmeticOp{Operation: vm.Eq},
		})
		require.Equal(t, []string{
			"(Main.main)", "@LCL", "A=M",
			// x-y on the two topmost values, then the fork on the jump directive
			"@SP", "AM=M-1", "D=-M", "A=A-1", "D=D+M",
			"@Main.main$cmp.1.TRUE", "D;JEQ",
			"D=0", "@Main.main$cmp.1.END", "0;JMP",
			"(Main.main$cmp.1.TRUE)", "D=-1",
			"(Main.main$cmp.1.END)",
			"@SP", "A=M-1", "M=D",
		}, lines)
	})

	t.Run("Comparison jump directives", func(t *testing.T) {
		for op, jump := range map[vm.ArithOpType]string{vm.Eq: "D;JEQ", vm.Lt: "D;JLT", vm.Gt: "D;JGT"} {
			lines := lowerAndRender(t, "Main", vm.Module{vm.ArithmeticOp{Operation: op}})
			require.Contains(t, lines, jump)
		}
	})
}

func TestLowerControlFlow(t *testing.T) {
	lines := lowerAndRender(t, "Main", vm.Module{
		vm.FuncDecl{Name: "Main.main", NLocals: 0},
		vm.LabelDecl{Name: "WHILE"},
		vm.GotoOp{Jump: vm.Conditional, Label: "WHILE"},
		vm.GotoOp{Jump: vm.Unconditional, Label: "WHILE"},
	})

	// Labels live in the enclosing function's namespace
	require.Equal(t, []string{
		"(Main.main)", "@LCL", "A=M",
		"(Main.main$WHILE)",
		"@SP", "AM=M-1", "D=M", "@Main.main$WHILE", "D;JNE",
		"@Main.main$WHILE", "0;JMP",
	}, lines)
}

func TestLowerFunctionDecl(t *testing.T) {
	t.Run("With locals", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{
			vm.FuncDecl{Name: "Main.fibonacci", NLocals: 2},
		})
		// Two zeroed locals, then SP moves past them
		require.Equal(t, []string{
			"(Main.fibonacci)", "@LCL", "A=M",
			"M=0", "A=A+1",
			"M=0", "A=A+1",
			"D=A", "@SP", "M=D",
		}, lines)
	})

	t.Run("Without locals", func(t *testing.T) {
		lines := lowerAndRender(t, "Main", vm.Module{
			vm.FuncDecl{Name: "Main.main", NLocals: 0},
		})
		// No SP adjustment at all when there's nothing to initialize
		require.Equal(t, []string{"(Main.main)", "@LCL", "A=M"}, lines)
	})
}

func TestLowerFunctionCall(t *testing.T) {
	lines := lowerAndRender(t, "Main", vm.Module{
		vm.FuncDecl{Name: "Main.main", NLocals: 0},
		vm.FuncCallOp{Name: "Foo.bar", NArgs: 2},
	})

	require.Equal(t, []string{
		"(Main.main)", "@LCL", "A=M",
		// Return address stored at *SP
		"@Main.main$ret.1", "D=A", "@SP", "A=M", "M=D",
		// The caller frame: LCL, ARG, THIS, THAT in this order
		"@LCL", "D=M", "@SP", "AM=M+1", "M=D",
		"@ARG", "D=M", "@SP", "AM=M+1", "M=D",
		"@THIS", "D=M", "@SP", "AM=M+1", "M=D",
		"@THAT", "D=M", "@SP", "AM=M+1", "M=D",
		// SP and LCL point past the frame, ARG is SP - 5 - nargs
		"D=A+1", "@SP", "M=D", "@LCL", "M=D",
		"@7", "D=D-A", "@ARG", "M=D",
		"@Foo.bar", "0;JMP",
		"(Main.main$ret.1)",
	}, lines)
}

func TestLowerCallCounterPerFunction(t *testing.T) {
	lines := lowerAndRender(t, "Main", vm.Module{
		vm.FuncDecl{Name: "Main.first", NLocals: 0},
		vm.FuncCallOp{Name: "Foo.bar", NArgs: 0},
		vm.FuncCallOp{Name: "Foo.bar", NArgs: 0},
		vm.FuncDecl{Name: "Main.second", NLocals: 0},
		vm.FuncCallOp{Name: "Foo.bar", NArgs: 0},
	})

	// The call counter restarts at each function declaration
	require.Contains(t, lines, "(Main.first$ret.1)")
	require.Contains(t, lines, "(Main.first$ret.2)")
	require.Contains(t, lines, "(Main.second$ret.1)")
}

func TestLowerReturn(t *testing.T) {
	lines := lowerAndRender(t, "Main", vm.Module{vm.ReturnOp{}})

	require.Equal(t, []string{
		// Return address saved from *(LCL - 5) before the frame is clobbered
		"@5", "D=A", "@LCL", "A=M-D", "D=M", "@R14", "M=D",
		// The result lands in the caller-visible *ARG slot, SP collapses to ARG + 1
		"@SP", "A=M-1", "D=M", "@ARG", "A=M", "M=D",
		"D=A+1", "@SP", "M=D",
		// The saved pointers are walked back from the frame, top downwards
		"@LCL", "D=M-1", "@R13", "AM=D",
		"D=M", "@THAT", "M=D", "@R13", "AM=M-1",
		"D=M", "@THIS", "M=D", "@R13", "AM=M-1",
		"D=M", "@ARG", "M=D", "@R13", "AM=M-1",
		"D=M", "@LCL", "M=D", "@R13", "AM=M-1",
		"@R14", "A=M", "0;JMP",
	}, lines)
}

func TestBootstrap(t *testing.T) {
	codegen := asm.NewCodeGenerator(vm.Bootstrap())
	lines, err := codegen.Generate()
	require.NoError(t, err)

	// SP is set to 256 first, then control goes to Sys.init through a regular call
	require.Equal(t, []string{"@256", "D=A", "@SP", "M=D"}, lines[:4])
	require.Contains(t, lines, "@Sys.init")
	require.Contains(t, lines, "(Bootstrap$ret.1)")
}
