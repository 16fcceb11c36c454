package vm

import (
	"fmt"
)

// ----------------------------------------------------------------------------
// Code Generator

// Takes a 'vm.Module' and spits out its source code counterpart.
//
// This is the renderer used by the Jack compiler to produce the final '.vm' stream:
// each operation becomes exactly one line of canonical VM text. The translation can
// be done without any additional data structure but the module itself.
type CodeGenerator struct {
	module Module // The set of operations to convert in VM code format
}

// Initializes and returns to the caller a brand new 'CodeGenerator' struct.
// Requires that argument Module 'm' (what we want to translate) is non-nil.
func NewCodeGenerator(m Module) CodeGenerator {
	return CodeGenerator{module: m}
}

// Translates each operation in the 'module' to the VM string format.
//
// Each operation will pass through the following step: evaluation, validation and then
// conversion to its string representation so that it can be further elaborated by the
// function caller (e.g. dumping .vm code to a file, runtime interpretation, ...).
func (cg *CodeGenerator) Generate() ([]string, error) {
	lines := make([]string, 0, len(cg.module))

	for _, operation := range cg.module {
		var generated string
		var err error

		switch tOperation := operation.(type) {
		case MemoryOp:
			generated, err = cg.GenerateMemoryOp(tOperation)
		case ArithmeticOp:
			generated, err = cg.GenerateArithmeticOp(tOperation)
		case LabelDecl:
			generated, err = cg.GenerateLabelDecl(tOperation)
		case GotoOp:
			generated, err = cg.GenerateGotoOp(tOperation)
		case FuncDecl:
			generated, err = cg.GenerateFuncDecl(tOperation)
		case FuncCallOp:
			generated, err = cg.GenerateFuncCallOp(tOperation)
		case ReturnOp:
			generated, err = cg.GenerateReturnOp(tOperation)
		default:
			err = fmt.Errorf("unrecognized operation '%T'", operation)
		}

		if err != nil {
			return nil, err
		}
		lines = append(lines, generated)
	}

	return lines, nil
}

// Specialized function to convert a 'MemoryOp' operation to the VM format.
func (cg *CodeGenerator) GenerateMemoryOp(op MemoryOp) (string, error) {
	// Bound checking on segment that do have an upperbound to the allowed offsets
	if op.Segment == Pointer && op.Offset > 1 {
		return "", fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
	}
	if op.Segment == Temp && op.Offset > 7 {
		return "", fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
	}
	if op.Segment == Constant && op.Operation == Pop {
		return "", fmt.Errorf("pop to 'constant' is not valid")
	}

	return fmt.Sprintf("%s %s %d", string(op.Operation), string(op.Segment), op.Offset), nil
}

// Specialized function to convert a 'ArithmeticOp' operation to the VM format.
func (cg *CodeGenerator) GenerateArithmeticOp(op ArithmeticOp) (string, error) {
	return string(op.Operation), nil
}

// Specialized function to convert a 'LabelDecl' operation to the VM format.
func (cg *CodeGenerator) GenerateLabelDecl(op LabelDecl) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty label declaration")
	}

	return fmt.Sprintf("label %s", op.Name), nil
}

// Specialized function to convert a 'GotoOp' operation to the VM format.
func (cg *CodeGenerator) GenerateGotoOp(op GotoOp) (string, error) {
	if op.Label == "" {
		return "", fmt.Errorf("unable to produce empty jump label")
	}

	return fmt.Sprintf("%s %s", string(op.Jump), op.Label), nil
}

// Specialized function to convert a 'FuncDecl' operation to the VM format.
func (cg *CodeGenerator) GenerateFuncDecl(op FuncDecl) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty function declaration")
	}

	return fmt.Sprintf("function %s %d", op.Name, op.NLocals), nil
}

// Specialized function to convert a 'ReturnOp' operation to the VM format.
func (cg *CodeGenerator) GenerateReturnOp(op ReturnOp) (string, error) {
	return "return", nil
}

// Specialized function to convert a 'FuncCallOp' operation to the VM format.
func (cg *CodeGenerator) GenerateFuncCallOp(op FuncCallOp) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty function call")
	}

	return fmt.Sprintf("call %s %d", op.Name, op.NArgs), nil
}
