package jack_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"its-hmny.dev/hack-toolchain/pkg/jack"
)

// Parses the source as a whole translation unit, failing the test on any error.
func parse(t *testing.T, source string) jack.Class {
	t.Helper()

	parser := jack.NewParser("Test.jack", []byte(source))
	class, err := parser.Parse()
	require.NoError(t, err)
	return class
}

func TestParseClassShape(t *testing.T) {
	class := parse(t, `
class Point {
	field int x, y;
	static int count;

	constructor Point new(int ax, int ay) {
		let x = ax;
		let y = ay;
		return this;
	}

	method int getX() { return x; }

	function int getCount() { return count; }
}
`)

	require.Equal(t, "Point", class.Name)
	require.Equal(t, []jack.Variable{
		{Name: "x", Kind: jack.Field, Type: "int"},
		{Name: "y", Kind: jack.Field, Type: "int"},
		{Name: "count", Kind: jack.Static, Type: "int"},
	}, class.Vars)

	require.Len(t, class.Subroutines, 3)
	require.Equal(t, jack.Constructor, class.Subroutines[0].Kind)
	require.Equal(t, "Point", class.Subroutines[0].Return)
	require.Equal(t, []jack.Variable{
		{Name: "ax", Kind: jack.Argument, Type: "int"},
		{Name: "ay", Kind: jack.Argument, Type: "int"},
	}, class.Subroutines[0].Params)
	require.Equal(t, jack.Method, class.Subroutines[1].Kind)
	require.Equal(t, jack.Function, class.Subroutines[2].Kind)
}

func TestParseVarDecs(t *testing.T) {
	class := parse(t, `
class Main {
	function void main() {
		var int i, sum;
		var Array a;
		return;
	}
}
`)

	require.Equal(t, []jack.Variable{
		{Name: "i", Kind: jack.Local, Type: "int"},
		{Name: "sum", Kind: jack.Local, Type: "int"},
		{Name: "a", Kind: jack.Local, Type: "Array"},
	}, class.Subroutines[0].Locals)
}

func TestParseStatements(t *testing.T) {
	class := parse(t, `
class Main {
	function void main() {
		let a[i] = a[j];
		if (x < 10) { do Output.printInt(x); } else { let x = 0; }
		while (~done) { let done = true; }
		do run();
		return x;
	}
}
`)

	body := class.Subroutines[0].Body
	require.Len(t, body, 5)

	// let a[i] = a[j] keeps both sides as array expressions
	let, isLet := body[0].(jack.LetStmt)
	require.True(t, isLet)
	require.Equal(t, jack.ArrayExpr{Var: "a", Index: jack.VarExpr{Var: "i"}}, let.Lhs)
	require.Equal(t, jack.ArrayExpr{Var: "a", Index: jack.VarExpr{Var: "j"}}, let.Rhs)

	ifStmt, isIf := body[1].(jack.IfStmt)
	require.True(t, isIf)
	require.Equal(t, jack.BinaryExpr{Op: jack.LessThan, Lhs: jack.VarExpr{Var: "x"}, Rhs: jack.LiteralExpr{Kind: jack.IntLiteral, Value: "10"}}, ifStmt.Condition)
	require.Len(t, ifStmt.ThenBlock, 1)
	require.Len(t, ifStmt.ElseBlock, 1)

	whileStmt, isWhile := body[2].(jack.WhileStmt)
	require.True(t, isWhile)
	require.Equal(t, jack.UnaryExpr{Op: jack.BoolNot, Rhs: jack.VarExpr{Var: "done"}}, whileStmt.Condition)

	doStmt, isDo := body[3].(jack.DoStmt)
	require.True(t, isDo)
	require.Equal(t, jack.FuncCallExpr{Name: "run"}, doStmt.Call)

	returnStmt, isReturn := body[4].(jack.ReturnStmt)
	require.True(t, isReturn)
	require.Equal(t, jack.VarExpr{Var: "x"}, returnStmt.Expr)
}

func TestParseExpressionAssociativity(t *testing.T) {
	class := parse(t, `
class Main {
	function int main() { return 1 + 2 * 3; }
}
`)

	// No precedence at all: operators associate purely by parse order, so the
	// expression reads ((1 + 2) * 3)
	returnStmt := class.Subroutines[0].Body[0].(jack.ReturnStmt)
	require.Equal(t, jack.BinaryExpr{
		Op: jack.Multiply,
		Lhs: jack.BinaryExpr{
			Op:  jack.Plus,
			Lhs: jack.LiteralExpr{Kind: jack.IntLiteral, Value: "1"},
			Rhs: jack.LiteralExpr{Kind: jack.IntLiteral, Value: "2"},
		},
		Rhs: jack.LiteralExpr{Kind: jack.IntLiteral, Value: "3"},
	}, returnStmt.Expr)
}

func TestParseTermLookahead(t *testing.T) {
	class := parse(t, `
class Main {
	function int main() {
		return foo + bar[1] + baz() + Other.quux(2, 3) - (-x);
	}
}
`)

	// The parser needs two tokens to tell apart the four identifier-led term shapes
	expr := class.Subroutines[0].Body[0].(jack.ReturnStmt).Expr

	minus := expr.(jack.BinaryExpr)
	require.Equal(t, jack.Minus, minus.Op)
	require.Equal(t, jack.UnaryExpr{Op: jack.Negation, Rhs: jack.VarExpr{Var: "x"}}, minus.Rhs)

	quux := minus.Lhs.(jack.BinaryExpr)
	require.Equal(t, jack.FuncCallExpr{
		Receiver: "Other", Name: "quux",
		Args: []jack.Expression{
			jack.LiteralExpr{Kind: jack.IntLiteral, Value: "2"},
			jack.LiteralExpr{Kind: jack.IntLiteral, Value: "3"},
		},
	}, quux.Rhs)

	baz := quux.Lhs.(jack.BinaryExpr)
	require.Equal(t, jack.FuncCallExpr{Name: "baz"}, baz.Rhs)

	bar := baz.Lhs.(jack.BinaryExpr)
	require.Equal(t, jack.ArrayExpr{Var: "bar", Index: jack.LiteralExpr{Kind: jack.IntLiteral, Value: "1"}}, bar.Rhs)
	require.Equal(t, jack.VarExpr{Var: "foo"}, bar.Lhs)
}

func TestParseKeywordConstants(t *testing.T) {
	class := parse(t, `
class Main {
	function boolean main() {
		let a = true;
		let b = false;
		let c = null;
		return this;
	}
}
`)

	body := class.Subroutines[0].Body
	require.Equal(t, jack.LiteralExpr{Kind: jack.TrueLiteral}, body[0].(jack.LetStmt).Rhs)
	require.Equal(t, jack.LiteralExpr{Kind: jack.FalseLiteral}, body[1].(jack.LetStmt).Rhs)
	require.Equal(t, jack.LiteralExpr{Kind: jack.NullLiteral}, body[2].(jack.LetStmt).Rhs)
	require.Equal(t, jack.LiteralExpr{Kind: jack.ThisLiteral}, body[3].(jack.ReturnStmt).Expr)
}

func TestParseFailures(t *testing.T) {
	test := func(source string) *jack.SyntaxError {
		parser := jack.NewParser("Test.jack", []byte(source))
		_, err := parser.Parse()
		require.Error(t, err)

		syntaxErr, isSyntaxErr := err.(*jack.SyntaxError)
		require.True(t, isSyntaxErr)
		return syntaxErr
	}

	// Wrong token kind or literal at a required position
	test("let x = 1;")                                      // No class wrapper at all
	test("class { }")                                       // Missing class name
	test("class Main { function void }")                    // Missing subroutine name
	test("class Main { function void main() { let = 1; }}") // Missing let target
	test("class Main { function void main() { return }}")   // Missing semicolon

	// Truncated input surfaces as a located diagnostic too
	test("class Main {")

	// The diagnostic pinpoints the offending token
	err := test("class Main {\n\tbroken\n}")
	require.Equal(t, 2, err.Line)
	require.Equal(t, 2, err.Column)
}
