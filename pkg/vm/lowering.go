package vm

import (
	"fmt"

	"its-hmny.dev/hack-toolchain/pkg/asm"
)

// ----------------------------------------------------------------------------
// Translation tables

// This section contains the fixed mappings used throughout the lowering phase.
//
// Notably we have the following tables defined:
//	- 'SegmentBases': The RAM register holding the base pointer of each indirect segment
//	- 'PointerBases': The register aliased by each of the two 'pointer' offsets
//	- 'ComparisonJumps': The jump directive implementing each comparison operation
//	- 'ArithmeticTable': The canned assembly fragment for each non-comparison operation

var (
	SegmentBases = map[SegmentType]string{
		Local: "LCL", Argument: "ARG", This: "THIS", That: "THAT",
	}

	PointerBases = map[uint16]string{0: "THIS", 1: "THAT"}

	ComparisonJumps = map[ArithOpType]string{
		Eq: "JEQ", Lt: "JLT", Gt: "JGT",
	}

	ArithmeticTable = map[ArithOpType][]asm.Statement{
		// Unary operations rewrite the stack's top in place, SP doesn't move
		Neg: {
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "-M"},
		},
		Not: {
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "!M"},
		},
		// Binary operations pop the second operand into D and fold it onto the first
		Add: {
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: "D+M"},
		},
		Sub: {
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "-M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: "D+M"},
		},
		And: {
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: "D&M"},
		},
		Or: {
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: "D|M"},
		},
	}
)

// Base register of the 'temp' segment, offsets [0, 7] map to R5..R12.
const TempBase uint16 = 5

// Scratch registers for the pop indirection and the saved return address. The source
// language reserves R13-R15 for the translator, so unlike an assembler-allocated
// variable they can never collide with a user symbol.
const (
	ScratchAddr   = "R13"
	ScratchReturn = "R14"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Module' and produces its 'asm.Program' counterpart.
//
// Operations are visited in source order and each one expands to a short fragment of
// assembly statements (much like a recursive descend parser but for lowering). The
// Lowerer carries the per-module state needed by the expansion: the module name that
// qualifies 'static' symbols, the enclosing function name that scopes labels, and the
// per-function counters that keep generated label names unique.
type Lowerer struct {
	module   string // Basename of the translation unit, qualifies the 'static' segment
	function string // Name of the enclosing function ('' until the first FuncDecl)
	nCalls   uint   // Per-function counter for return-address labels ('F$ret.k')
	nCompare uint   // Per-function counter for comparison labels ('F$cmp.k')
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// The 'module' argument is the basename of the translation unit being lowered,
// it qualifies the addresses of the 'static' segment ('@<Module>.<offset>').
func NewLowerer(module string) *Lowerer {
	return &Lowerer{module: module}
}

// Produces the bootstrap prelude emitted before everything else when translating
// a whole directory: sets the Stack Pointer to 256 and transfers control to
// 'Sys.init' through the standard calling convention.
func Bootstrap() asm.Program {
	boot := &Lowerer{module: "Sys", function: "Bootstrap"}

	program := asm.Program{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	// A call never fails to lower, the error is structurally impossible here.
	call, _ := boot.HandleFuncCallOp(FuncCallOp{Name: "Sys.init", NArgs: 0})
	return append(program, call...)
}

// Triggers the lowering process on the given module. It iterates operation by operation
// and calls the specialized helper function based on the operation type, accumulating
// the produced assembly fragments into a single 'asm.Program'.
func (l *Lowerer) Lower(module Module) (asm.Program, error) {
	program := asm.Program{}

	for _, operation := range module {
		var fragment []asm.Statement
		var err error

		switch tOperation := operation.(type) {
		case MemoryOp:
			fragment, err = l.HandleMemoryOp(tOperation)
		case ArithmeticOp:
			fragment, err = l.HandleArithmeticOp(tOperation)
		case LabelDecl:
			fragment, err = l.HandleLabelDecl(tOperation)
		case GotoOp:
			fragment, err = l.HandleGotoOp(tOperation)
		case FuncDecl:
			fragment, err = l.HandleFuncDecl(tOperation)
		case FuncCallOp:
			fragment, err = l.HandleFuncCallOp(tOperation)
		case ReturnOp:
			fragment, err = l.HandleReturnOp(tOperation)
		default:
			err = fmt.Errorf("unrecognized operation '%T'", operation)
		}

		if err != nil {
			return nil, fmt.Errorf("error lowering module '%s': %w", l.module, err)
		}
		program = append(program, fragment...)
	}

	return program, nil
}

// Resolves a VM label name into the namespace of the enclosing function.
func (l *Lowerer) makeLabel(name string) string {
	return fmt.Sprintf("%s$%s", l.function, name)
}

// Specialized function to convert a 'vm.MemoryOp' to a list of 'asm.Statement'.
func (l *Lowerer) HandleMemoryOp(op MemoryOp) ([]asm.Statement, error) {
	// Bound checking on segments that do have an upperbound to the allowed offsets
	if op.Segment == Pointer && op.Offset > 1 {
		return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
	}
	if op.Segment == Temp && op.Offset > 7 {
		return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
	}

	switch op.Operation {
	case Push:
		return l.handlePush(op)
	case Pop:
		return l.handlePop(op)
	default:
		return nil, fmt.Errorf("unrecognized memory operation '%s'", op.Operation)
	}
}

// Expansion of a 'push' operation: loads the source value into D based on the
// segment addressing mode, then appends the shared 'push D on the stack' tail.
func (l *Lowerer) handlePush(op MemoryOp) ([]asm.Statement, error) {
	var load []asm.Statement

	switch op.Segment {
	case Local, Argument, This, That: // Indirect: base pointer register + offset
		load = []asm.Statement{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: SegmentBases[op.Segment]},
			asm.CInstruction{Dest: "A", Comp: "D+M"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	case Constant: // No memory read at all, the literal itself is the value
		load = []asm.Statement{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}
	case Temp: // Direct: fixed base register plus offset
		load = []asm.Statement{
			asm.AInstruction{Location: fmt.Sprint(TempBase + op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	case Static: // Named variable, the assembler allocates it from address 16 upward
		load = []asm.Statement{
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", l.module, op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	case Pointer: // The THIS/THAT pointer itself, not the pointed-to location
		load = []asm.Statement{
			asm.AInstruction{Location: PointerBases[op.Offset]},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
	default:
		return nil, fmt.Errorf("invalid segment name '%s'", op.Segment)
	}

	return append(load,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	), nil
}

// Expansion of a 'pop' operation: for the indirect segments the target address is
// computed first and parked in a scratch register, the direct segments just pop
// into D and store straight at the resolved location.
func (l *Lowerer) handlePop(op MemoryOp) ([]asm.Statement, error) {
	popIntoD := []asm.Statement{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}

	switch op.Segment {
	case Local, Argument, This, That:
		statements := []asm.Statement{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: SegmentBases[op.Segment]},
			asm.CInstruction{Dest: "D", Comp: "D+M"},
			asm.AInstruction{Location: ScratchAddr},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}
		statements = append(statements, popIntoD...)
		return append(statements,
			asm.AInstruction{Location: ScratchAddr},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Temp:
		return append(popIntoD,
			asm.AInstruction{Location: fmt.Sprint(TempBase + op.Offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Static:
		return append(popIntoD,
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", l.module, op.Offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Pointer:
		return append(popIntoD,
			asm.AInstruction{Location: PointerBases[op.Offset]},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Constant:
		return nil, fmt.Errorf("pop to 'constant' is not valid")

	default:
		return nil, fmt.Errorf("invalid segment name '%s'", op.Segment)
	}
}

// Specialized function to convert a 'vm.ArithmeticOp' to a list of 'asm.Statement'.
func (l *Lowerer) HandleArithmeticOp(op ArithmeticOp) ([]asm.Statement, error) {
	if fragment, found := ArithmeticTable[op.Operation]; found {
		return fragment, nil
	}
	if _, found := ComparisonJumps[op.Operation]; found {
		return l.handleComparison(op.Operation), nil
	}

	return nil, fmt.Errorf("unrecognized arithmetic operation '%s'", op.Operation)
}

// Expansion of a comparison operation ('eq', 'lt', 'gt'): computes x-y on the two
// topmost values and forks on the matching jump directive, pushing the canonical
// truth values -1 (0xFFFF) or 0 in place of the operands.
func (l *Lowerer) handleComparison(op ArithOpType) []asm.Statement {
	l.nCompare++
	label := l.makeLabel(fmt.Sprintf("cmp.%d", l.nCompare))

	return []asm.Statement{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "-M"},
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "D", Comp: "D+M"},
		asm.AInstruction{Location: label + ".TRUE"},
		asm.CInstruction{Comp: "D", Jump: ComparisonJumps[op]},
		asm.CInstruction{Dest: "D", Comp: "0"},
		asm.AInstruction{Location: label + ".END"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: label + ".TRUE"},
		asm.CInstruction{Dest: "D", Comp: "-1"},
		asm.LabelDecl{Name: label + ".END"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
}

// Specialized function to convert a 'vm.LabelDecl' to a list of 'asm.Statement'.
func (l *Lowerer) HandleLabelDecl(op LabelDecl) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("label declaration with empty name")
	}

	return []asm.Statement{asm.LabelDecl{Name: l.makeLabel(op.Name)}}, nil
}

// Specialized function to convert a 'vm.GotoOp' to a list of 'asm.Statement'.
func (l *Lowerer) HandleGotoOp(op GotoOp) ([]asm.Statement, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("jump operation with empty label")
	}

	switch op.Jump {
	case Unconditional:
		return []asm.Statement{
			asm.AInstruction{Location: l.makeLabel(op.Label)},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil

	case Conditional: // Pops the stack's top and branches when it's non-zero
		return []asm.Statement{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: l.makeLabel(op.Label)},
			asm.CInstruction{Comp: "D", Jump: "JNE"},
		}, nil

	default:
		return nil, fmt.Errorf("unrecognized jump type '%s'", op.Jump)
	}
}

// Specialized function to convert a 'vm.FuncDecl' to a list of 'asm.Statement'.
//
// Besides emitting the entrypoint label and the zero-initialization of the locals,
// entering a new function resets the per-function state: labels and generated
// names from now on live in the new function's namespace.
func (l *Lowerer) HandleFuncDecl(op FuncDecl) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("function declaration with empty name")
	}

	l.function, l.nCalls, l.nCompare = op.Name, 0, 0

	statements := []asm.Statement{
		asm.LabelDecl{Name: op.Name},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "A", Comp: "M"},
	}
	// At function entry SP == LCL, so the locals can be zeroed by walking A forward
	for i := uint16(0); i < op.NLocals; i++ {
		statements = append(statements,
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.CInstruction{Dest: "A", Comp: "A+1"},
		)
	}
	// Advance the stack pointer past the freshly initialized locals
	if op.NLocals > 0 {
		statements = append(statements,
			asm.CInstruction{Dest: "D", Comp: "A"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		)
	}

	return statements, nil
}

// Specialized function to convert a 'vm.FuncCallOp' to a list of 'asm.Statement'.
//
// The emitted prelude implements the calling convention: push the return address,
// save the LCL/ARG/THIS/THAT pointers, reposition ARG (SP - 5 - nargs) and LCL (SP)
// for the callee and finally jump to its entrypoint. The return-address label is
// declared right after the jump, execution resumes there once the callee returns.
func (l *Lowerer) HandleFuncCallOp(op FuncCallOp) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("function call with empty name")
	}

	l.nCalls++
	retLabel := l.makeLabel(fmt.Sprintf("ret.%d", l.nCalls))

	statements := []asm.Statement{
		// Store the return address at *SP (SP itself is advanced by the saves below)
		asm.AInstruction{Location: retLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	// Save the current memory segment pointers to the stack
	for _, segment := range []string{"LCL", "ARG", "THIS", "THAT"} {
		statements = append(statements,
			asm.AInstruction{Location: segment},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M+1"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		)
	}
	// Set up the SP, LCL and ARG pointers for the target function
	return append(statements,
		asm.CInstruction{Dest: "D", Comp: "A+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: fmt.Sprint(5 + op.NArgs)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// Jump to the target function definition
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		// Return here when the target function completes
		asm.LabelDecl{Name: retLabel},
	), nil
}

// Specialized function to convert a 'vm.ReturnOp' to a list of 'asm.Statement'.
//
// The return sequence mirrors the call prelude: the return address is parked in a
// scratch register (the caller frame below is about to be overwritten), the result
// lands in the caller-visible *ARG slot, SP collapses to ARG + 1 and the saved
// THAT/THIS/ARG/LCL pointers are walked back from the frame before the final jump.
func (l *Lowerer) HandleReturnOp(ReturnOp) ([]asm.Statement, error) {
	statements := []asm.Statement{
		// Copy the return address (from *(LCL - 5)) to the scratch register
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "A", Comp: "M-D"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: ScratchReturn},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// Copy the top value from the stack to ARG[0]
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// Set the stack pointer to point right after the new return value
		asm.CInstruction{Dest: "D", Comp: "A+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// Walk the frame downwards restoring the caller's segment pointers
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M-1"},
		asm.AInstruction{Location: ScratchAddr},
		asm.CInstruction{Dest: "AM", Comp: "D"},
	}
	for _, segment := range []string{"THAT", "THIS", "ARG", "LCL"} {
		statements = append(statements,
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: segment},
			asm.CInstruction{Dest: "M", Comp: "D"},
			asm.AInstruction{Location: ScratchAddr},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
		)
	}
	// Jump back to the saved return address
	return append(statements,
		asm.AInstruction{Location: ScratchReturn},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	), nil
}
