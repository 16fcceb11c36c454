package vm_test

import (
	"testing"

	"its-hmny.dev/hack-toolchain/pkg/vm"
)

func TestGenerateMemoryOp(t *testing.T) {
	// Instantiate a shared codegen instance for every test cases
	codegen := vm.NewCodeGenerator(vm.Module{})

	test := func(op vm.MemoryOp, expected string, fail bool) {
		res, err := codegen.GenerateMemoryOp(op)
		if err == nil && res != expected {
			t.Errorf("expected '%s', got '%s'", expected, res)
		}
		// 'err' should be not nil if 'fail' is passed as true from the caller
		if (err != nil) != fail {
			t.Errorf("unexpected error state for %+v: %v", op, err)
		}
	}

	t.Run("Push and pop", func(t *testing.T) {
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 7}, "push constant 7", false)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}, "push pointer 0", false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 2}, "pop local 2", false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Static, Offset: 5}, "pop static 5", false)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0}, "pop that 0", false)
	})

	t.Run("Out of bounds offsets and pop to constant", func(t *testing.T) {
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 2}, "", true)
		test(vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 8}, "", true)
		test(vm.MemoryOp{Operation: vm.Pop, Segment: vm.Constant, Offset: 0}, "", true)
	})
}

func TestGenerateControlFlow(t *testing.T) {
	// Instantiate a shared codegen instance for every test cases
	codegen := vm.NewCodeGenerator(vm.Module{})

	t.Run("Labels and jumps", func(t *testing.T) {
		if res, err := codegen.GenerateLabelDecl(vm.LabelDecl{Name: "Main.L1.WHILE"}); err != nil || res != "label Main.L1.WHILE" {
			t.Errorf("unexpected label rendition '%s' (err: %v)", res, err)
		}
		if res, err := codegen.GenerateGotoOp(vm.GotoOp{Jump: vm.Conditional, Label: "Main.L1.ELSE"}); err != nil || res != "if-goto Main.L1.ELSE" {
			t.Errorf("unexpected if-goto rendition '%s' (err: %v)", res, err)
		}
		if res, err := codegen.GenerateGotoOp(vm.GotoOp{Jump: vm.Unconditional, Label: "Main.L1.ENDIF"}); err != nil || res != "goto Main.L1.ENDIF" {
			t.Errorf("unexpected goto rendition '%s' (err: %v)", res, err)
		}
	})

	t.Run("Empty names", func(t *testing.T) {
		if _, err := codegen.GenerateLabelDecl(vm.LabelDecl{}); err == nil {
			t.Error("expected error on empty label declaration")
		}
		if _, err := codegen.GenerateGotoOp(vm.GotoOp{Jump: vm.Conditional}); err == nil {
			t.Error("expected error on empty jump label")
		}
	})
}

func TestGenerateFunctions(t *testing.T) {
	// Instantiate a shared codegen instance for every test cases
	codegen := vm.NewCodeGenerator(vm.Module{})

	if res, err := codegen.GenerateFuncDecl(vm.FuncDecl{Name: "Main.main", NLocals: 3}); err != nil || res != "function Main.main 3" {
		t.Errorf("unexpected function rendition '%s' (err: %v)", res, err)
	}
	if res, err := codegen.GenerateFuncCallOp(vm.FuncCallOp{Name: "Math.multiply", NArgs: 2}); err != nil || res != "call Math.multiply 2" {
		t.Errorf("unexpected call rendition '%s' (err: %v)", res, err)
	}
	if res, err := codegen.GenerateReturnOp(vm.ReturnOp{}); err != nil || res != "return" {
		t.Errorf("unexpected return rendition '%s' (err: %v)", res, err)
	}
	if _, err := codegen.GenerateFuncDecl(vm.FuncDecl{}); err == nil {
		t.Error("expected error on empty function declaration")
	}
	if _, err := codegen.GenerateFuncCallOp(vm.FuncCallOp{}); err == nil {
		t.Error("expected error on empty function call")
	}
}

func TestGenerateModule(t *testing.T) {
	module := vm.Module{
		vm.FuncDecl{Name: "Main.main", NLocals: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 7},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ReturnOp{},
	}

	codegen := vm.NewCodeGenerator(module)
	lines, err := codegen.Generate()
	if err != nil {
		t.Fatalf("unexpected error generating module: %v", err)
	}

	expected := []string{
		"function Main.main 1",
		"push constant 7",
		"pop local 0",
		"push constant 0",
		"return",
	}
	if len(lines) != len(expected) {
		t.Fatalf("expected %d lines, got %d", len(expected), len(lines))
	}
	for i, line := range lines {
		if line != expected[i] {
			t.Errorf("line %d: expected '%s', got '%s'", i, expected[i], line)
		}
	}
}
