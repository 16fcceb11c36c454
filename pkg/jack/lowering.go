package jack

import (
	"fmt"
	"strconv"

	"its-hmny.dev/hack-toolchain/pkg/vm"
)

// ----------------------------------------------------------------------------
// Jack Lowerer

// The Lowerer takes a 'jack.Class' and produces its 'vm.Module' counterpart.
//
// Since we get a tree-like struct we are able to traverse it using a Depth First Search (DFS)
// algorithm on it. For each construct node visited we produce a list of 'vm.Operation' as
// counterpart as well as validating the input before proceeding. The Lowerer owns the
// symbol tables: the class scope is filled once from the class variable declarations, the
// subroutine scope is replaced at each subroutine entry. A per-class label counter keeps
// the generated 'if'/'while' labels unique, each branch takes a fresh value before
// lowering its nested blocks.
type Lowerer struct {
	class   Class       // The compilation unit being lowered
	scopes  *ScopeTable // Keeps track of the scopes and declared variables inside each one
	nLabels uint        // Per-class counter scoping the generated control-flow labels
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
func NewLowerer(class Class) *Lowerer {
	return &Lowerer{class: class, scopes: NewScopeTable()}
}

// Triggers the lowering process. The class variables are registered first (the class
// scope spans the whole unit), then each subroutine is lowered in declaration order.
func (l *Lowerer) Lower() (vm.Module, error) {
	if l.class.Name == "" {
		return nil, fmt.Errorf("the given 'class' is empty or nil")
	}

	for _, variable := range l.class.Vars {
		if _, err := l.scopes.Register(variable); err != nil {
			return nil, fmt.Errorf("error registering variable in class '%s': %w", l.class.Name, err)
		}
	}

	module := vm.Module{}
	for _, subroutine := range l.class.Subroutines {
		ops, err := l.HandleSubroutine(subroutine)
		if err != nil {
			return nil, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", subroutine.Name, l.class.Name, err)
		}
		module = append(module, ops...)
	}

	return module, nil
}

// Allocates a fresh label counter value for a branching construct. The tag-specific
// names are then derived with 'makeLabel' so that the matched label pairs of a same
// 'if' or 'while' share their counter.
func (l *Lowerer) nextLabel() uint {
	l.nLabels++
	return l.nLabels
}

// Resolves a control-flow label name in the class namespace (e.g. 'Main.L2.ELSE').
func (l *Lowerer) makeLabel(counter uint, tag string) string {
	return fmt.Sprintf("%s.L%d.%s", l.class.Name, counter, tag)
}

// Specialized function to convert a 'jack.Subroutine' node to a list of 'vm.Operation'.
//
// The prologue depends on the subroutine kind: methods receive the object instance as
// an implicit first argument (registered before the declared parameters) and align the
// 'this' pointer with it, constructors allocate one word per field and keep the
// returned base address as the new 'this'.
func (l *Lowerer) HandleSubroutine(subroutine Subroutine) ([]vm.Operation, error) {
	l.scopes.EnterSubroutine()

	if subroutine.Kind == Method {
		implicit := Variable{Name: "this", Kind: Argument, Type: l.class.Name}
		if _, err := l.scopes.Register(implicit); err != nil {
			return nil, err
		}
	}
	for _, param := range subroutine.Params {
		if _, err := l.scopes.Register(param); err != nil {
			return nil, err
		}
	}
	for _, local := range subroutine.Locals {
		if _, err := l.scopes.Register(local); err != nil {
			return nil, err
		}
	}

	operations := []vm.Operation{vm.FuncDecl{
		Name:    fmt.Sprintf("%s.%s", l.class.Name, subroutine.Name),
		NLocals: l.scopes.LocalCount(),
	}}

	switch subroutine.Kind {
	case Constructor:
		// Each field is exactly one word long, so allocating as many words as fields
		// declared in the class reserves the whole object instance.
		operations = append(operations,
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: l.scopes.FieldCount()},
			vm.FuncCallOp{Name: "Memory.alloc", NArgs: 1},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		)
	case Method:
		// The object instance pointer arrives as the implicit first argument, align
		// the 'this' pointer with it before touching any field.
		operations = append(operations,
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		)
	}

	for _, statement := range subroutine.Body {
		ops, err := l.HandleStatement(statement)
		if err != nil {
			return nil, err
		}
		operations = append(operations, ops...)
	}

	return operations, nil
}

// Generalized function to lower multiple statements types returning a 'vm.Operation' list.
func (l *Lowerer) HandleStatement(statement Statement) ([]vm.Operation, error) {
	switch tStatement := statement.(type) {
	case LetStmt:
		return l.HandleLetStmt(tStatement)
	case IfStmt:
		return l.HandleIfStmt(tStatement)
	case WhileStmt:
		return l.HandleWhileStmt(tStatement)
	case DoStmt:
		return l.HandleDoStmt(tStatement)
	case ReturnStmt:
		return l.HandleReturnStmt(tStatement)
	default:
		return nil, fmt.Errorf("unrecognized statement: %T", statement)
	}
}

// Specialized function to convert a 'jack.LetStmt' to a list of 'vm.Operation'.
func (l *Lowerer) HandleLetStmt(statement LetStmt) ([]vm.Operation, error) {
	rhsOps, err := l.HandleExpression(statement.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling RHS expression: %w", err)
	}

	// Plain variable assignment: evaluate the RHS and pop it straight into the slot
	if expr, isVarExpr := statement.Lhs.(VarExpr); isVarExpr {
		symbol, found := l.scopes.Resolve(expr.Var)
		if !found {
			return nil, fmt.Errorf("assignment to undeclared variable '%s'", expr.Var)
		}

		return append(rhsOps, vm.MemoryOp{Operation: vm.Pop, Segment: SegmentOf(symbol.Kind), Offset: symbol.Index}), nil
	}

	// Array element assignment: the target address (base + index) is computed BEFORE
	// the RHS and left on the stack, then the RHS result is parked in temp 0 while the
	// address is loaded into the 'that' pointer. The RHS may itself contain array
	// accesses that clobber 'pointer 1', so this ordering is load-bearing.
	if expr, isArrayExpr := statement.Lhs.(ArrayExpr); isArrayExpr {
		symbol, found := l.scopes.Resolve(expr.Var)
		if !found {
			return nil, fmt.Errorf("assignment to undeclared array '%s'", expr.Var)
		}

		indexOps, err := l.HandleExpression(expr.Index)
		if err != nil {
			return nil, fmt.Errorf("error handling index expression: %w", err)
		}

		refOps := append([]vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: SegmentOf(symbol.Kind), Offset: symbol.Index},
		}, indexOps...)
		refOps = append(refOps, vm.ArithmeticOp{Operation: vm.Add})

		writeOps := []vm.Operation{
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0},
		}

		return append(append(refOps, rhsOps...), writeOps...), nil
	}

	return nil, fmt.Errorf("LHS expression must be either a 'VarExpr' or an 'ArrayExpr', got: %T", statement.Lhs)
}

// Specialized function to convert a 'jack.IfStmt' to a list of 'vm.Operation'.
func (l *Lowerer) HandleIfStmt(statement IfStmt) ([]vm.Operation, error) {
	condOps, err := l.HandleExpression(statement.Condition)
	if err != nil {
		return nil, fmt.Errorf("error handling if condition expression: %w", err)
	}

	// The counter is taken fresh before lowering the nested blocks, statements
	// inside them allocate their own values without tearing the label pair apart.
	counter := l.nextLabel()
	elseLabel, endLabel := l.makeLabel(counter, "ELSE"), l.makeLabel(counter, "ENDIF")

	thenOps := []vm.Operation{}
	for _, stmt := range statement.ThenBlock {
		ops, err := l.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling statement in 'then' block: %w", err)
		}
		thenOps = append(thenOps, ops...)
	}

	elseOps := []vm.Operation{}
	for _, stmt := range statement.ElseBlock {
		ops, err := l.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling statement in 'else' block: %w", err)
		}
		elseOps = append(elseOps, ops...)
	}

	operations := append(condOps,
		vm.ArithmeticOp{Operation: vm.Not},
		vm.GotoOp{Jump: vm.Conditional, Label: elseLabel},
	)
	operations = append(operations, thenOps...)
	operations = append(operations,
		vm.GotoOp{Jump: vm.Unconditional, Label: endLabel},
		vm.LabelDecl{Name: elseLabel},
	)
	operations = append(operations, elseOps...)
	return append(operations, vm.LabelDecl{Name: endLabel}), nil
}

// Specialized function to convert a 'jack.WhileStmt' to a list of 'vm.Operation'.
func (l *Lowerer) HandleWhileStmt(statement WhileStmt) ([]vm.Operation, error) {
	counter := l.nextLabel()
	beginLabel, endLabel := l.makeLabel(counter, "WHILE"), l.makeLabel(counter, "ENDWHILE")

	condOps, err := l.HandleExpression(statement.Condition)
	if err != nil {
		return nil, fmt.Errorf("error handling while condition expression: %w", err)
	}

	blockOps := []vm.Operation{}
	for _, stmt := range statement.Block {
		ops, err := l.HandleStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("error handling statement in while block: %w", err)
		}
		blockOps = append(blockOps, ops...)
	}

	operations := append([]vm.Operation{vm.LabelDecl{Name: beginLabel}}, condOps...)
	operations = append(operations,
		vm.ArithmeticOp{Operation: vm.Not},
		vm.GotoOp{Jump: vm.Conditional, Label: endLabel},
	)
	operations = append(operations, blockOps...)
	return append(operations,
		vm.GotoOp{Jump: vm.Unconditional, Label: beginLabel},
		vm.LabelDecl{Name: endLabel},
	), nil
}

// Specialized function to convert a 'jack.DoStmt' to a list of 'vm.Operation'.
func (l *Lowerer) HandleDoStmt(statement DoStmt) ([]vm.Operation, error) {
	ops, err := l.HandleFuncCallExpr(statement.Call)
	if err != nil {
		return nil, fmt.Errorf("error handling nested function call expression: %w", err)
	}

	// Do statements do not use the return value, so we can just drop whatever has been returned
	return append(ops, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0}), nil
}

// Specialized function to convert a 'jack.ReturnStmt' to a list of 'vm.Operation'.
func (l *Lowerer) HandleReturnStmt(statement ReturnStmt) ([]vm.Operation, error) {
	if statement.Expr == nil { // No expression means just a zero-value return
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ReturnOp{},
		}, nil
	}

	ops, err := l.HandleExpression(statement.Expr)
	if err != nil {
		return nil, fmt.Errorf("error handling return expression: %w", err)
	}

	return append(ops, vm.ReturnOp{}), nil
}

// Generalized function to lower multiple expression types returning a 'vm.Operation' list.
func (l *Lowerer) HandleExpression(expression Expression) ([]vm.Operation, error) {
	switch tExpression := expression.(type) {
	case VarExpr:
		return l.HandleVarExpr(tExpression)
	case LiteralExpr:
		return l.HandleLiteralExpr(tExpression)
	case ArrayExpr:
		return l.HandleArrayExpr(tExpression)
	case UnaryExpr:
		return l.HandleUnaryExpr(tExpression)
	case BinaryExpr:
		return l.HandleBinaryExpr(tExpression)
	case FuncCallExpr:
		return l.HandleFuncCallExpr(tExpression)
	default:
		return nil, fmt.Errorf("unrecognized expression: %T", expression)
	}
}

// Specialized function to convert a 'jack.VarExpr' to a list of 'vm.Operation'.
func (l *Lowerer) HandleVarExpr(expression VarExpr) ([]vm.Operation, error) {
	symbol, found := l.scopes.Resolve(expression.Var)
	if !found {
		return nil, fmt.Errorf("variable '%s' undeclared, not found in any scope", expression.Var)
	}

	return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: SegmentOf(symbol.Kind), Offset: symbol.Index}}, nil
}

// Specialized function to convert a 'jack.LiteralExpr' to a list of 'vm.Operation'.
func (l *Lowerer) HandleLiteralExpr(expression LiteralExpr) ([]vm.Operation, error) {
	switch expression.Kind {
	case IntLiteral:
		value, err := strconv.ParseUint(expression.Value, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("error parsing integer literal '%s': %w", expression.Value, err)
		}

		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(value)}}, nil

	case StrLiteral:
		ops := []vm.Operation{
			// Reserves/Allocates enough space for the entire string literal via the constructor
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(len(expression.Value))},
			vm.FuncCallOp{Name: "String.new", NArgs: 1},
		}

		for _, char := range []byte(expression.Value) {
			// Set each character in the string literal one by one until completion
			ops = append(ops, vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(char)})
			ops = append(ops, vm.FuncCallOp{Name: "String.appendChar", NArgs: 2})
		}

		return ops, nil

	case TrueLiteral: // Canonical truth is -1 (0xFFFF), produced by negating 1
		return []vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1},
			vm.ArithmeticOp{Operation: vm.Neg},
		}, nil

	case FalseLiteral, NullLiteral:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0}}, nil

	case ThisLiteral:
		return []vm.Operation{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}}, nil

	default:
		return nil, fmt.Errorf("unrecognized literal expression kind: %s", expression.Kind)
	}
}

// Specialized function to convert a 'jack.ArrayExpr' to a list of 'vm.Operation'.
func (l *Lowerer) HandleArrayExpr(expression ArrayExpr) ([]vm.Operation, error) {
	symbol, found := l.scopes.Resolve(expression.Var)
	if !found {
		return nil, fmt.Errorf("array '%s' undeclared, not found in any scope", expression.Var)
	}

	indexOps, err := l.HandleExpression(expression.Index)
	if err != nil {
		return nil, fmt.Errorf("error handling index expression: %w", err)
	}

	// Base plus index gives the cell address, the read then goes through the 'that' pointer
	ops := append([]vm.Operation{
		vm.MemoryOp{Operation: vm.Push, Segment: SegmentOf(symbol.Kind), Offset: symbol.Index},
	}, indexOps...)
	return append(ops,
		vm.ArithmeticOp{Operation: vm.Add},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.That, Offset: 0},
	), nil
}

// Specialized function to convert a 'jack.UnaryExpr' to a list of 'vm.Operation'.
func (l *Lowerer) HandleUnaryExpr(expression UnaryExpr) ([]vm.Operation, error) {
	ops, err := l.HandleExpression(expression.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested expression: %w", err)
	}

	switch expression.Op {
	case Negation:
		return append(ops, vm.ArithmeticOp{Operation: vm.Neg}), nil
	case BoolNot:
		return append(ops, vm.ArithmeticOp{Operation: vm.Not}), nil
	default:
		return nil, fmt.Errorf("unrecognized unary expression operator: %s", expression.Op)
	}
}

// Specialized function to convert a 'jack.BinaryExpr' to a list of 'vm.Operation'.
func (l *Lowerer) HandleBinaryExpr(expression BinaryExpr) ([]vm.Operation, error) {
	lhsOps, err := l.HandleExpression(expression.Lhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested LHS expression: %w", err)
	}

	rhsOps, err := l.HandleExpression(expression.Rhs)
	if err != nil {
		return nil, fmt.Errorf("error handling nested RHS expression: %w", err)
	}

	operations := append(lhsOps, rhsOps...)

	switch expression.Op {
	case Plus:
		return append(operations, vm.ArithmeticOp{Operation: vm.Add}), nil
	case Minus:
		return append(operations, vm.ArithmeticOp{Operation: vm.Sub}), nil
	// The Hack ALU has no multiplier nor divider circuit, both operations are
	// delegated to the runtime's Math class through the standard calling convention.
	case Multiply:
		return append(operations, vm.FuncCallOp{Name: "Math.multiply", NArgs: 2}), nil
	case Divide:
		return append(operations, vm.FuncCallOp{Name: "Math.divide", NArgs: 2}), nil
	case BoolAnd:
		return append(operations, vm.ArithmeticOp{Operation: vm.And}), nil
	case BoolOr:
		return append(operations, vm.ArithmeticOp{Operation: vm.Or}), nil
	case Equal:
		return append(operations, vm.ArithmeticOp{Operation: vm.Eq}), nil
	case LessThan:
		return append(operations, vm.ArithmeticOp{Operation: vm.Lt}), nil
	case GreatThan:
		return append(operations, vm.ArithmeticOp{Operation: vm.Gt}), nil
	default:
		return nil, fmt.Errorf("unrecognized binary expression operator: %s", expression.Op)
	}
}

// Specialized function to convert a 'jack.FuncCallExpr' to a list of 'vm.Operation'.
//
// The call shape is resolved through the symbol tables:
//   - A bare call ('bar()') is a method call on the current instance, the 'this'
//     pointer is pushed as the implicit first argument.
//   - A qualified call whose receiver is a declared variable ('obj.bar()') is a
//     method call on that object, the variable's value is the implicit argument and
//     the callee is qualified by the variable's declared type.
//   - Any other receiver is taken as a class name ('Math.divide()'), a plain
//     function call with no implicit argument.
func (l *Lowerer) HandleFuncCallExpr(expression FuncCallExpr) ([]vm.Operation, error) {
	argsOps, nArgs := []vm.Operation{}, uint16(len(expression.Args))

	for _, arg := range expression.Args {
		ops, err := l.HandleExpression(arg)
		if err != nil {
			return nil, fmt.Errorf("error handling argument expression: %w", err)
		}
		argsOps = append(argsOps, ops...)
	}

	if expression.Receiver == "" { // Bare call, a method on the current instance
		operations := append([]vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0},
		}, argsOps...)
		callee := fmt.Sprintf("%s.%s", l.class.Name, expression.Name)
		return append(operations, vm.FuncCallOp{Name: callee, NArgs: nArgs + 1}), nil
	}

	if symbol, found := l.scopes.Resolve(expression.Receiver); found { // Method on another object
		operations := append([]vm.Operation{
			vm.MemoryOp{Operation: vm.Push, Segment: SegmentOf(symbol.Kind), Offset: symbol.Index},
		}, argsOps...)
		callee := fmt.Sprintf("%s.%s", symbol.Type, expression.Name)
		return append(operations, vm.FuncCallOp{Name: callee, NArgs: nArgs + 1}), nil
	}

	// The receiver is not a declared variable, so it names a class (function call)
	callee := fmt.Sprintf("%s.%s", expression.Receiver, expression.Name)
	return append(argsOps, vm.FuncCallOp{Name: callee, NArgs: nArgs}), nil
}
