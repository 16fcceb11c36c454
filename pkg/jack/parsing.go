package jack

import (
	"fmt"
	"strings"

	"its-hmny.dev/hack-toolchain/pkg/utils"
)

// ----------------------------------------------------------------------------
// Jack Parser

// This section defines the Parser for the Jack language.
//
// It's a classic recursive descent parser over the lazy token stream produced by the
// Tokenizer: one production method per grammar rule, building the typed 'jack.Class'
// IR that the lowering phase then turns into VM operations. A single token of
// look-ahead drives every production except the term rule, where distinguishing
// 'IDENT', 'IDENT[...]' and 'IDENT(...)/IDENT.x(...)' requires peeking two tokens
// deep; the look-ahead window is buffered in a small queue with the tokens consumed
// from its front.

// Maps the binary operator symbols to their IR counterpart.
var binaryOps = map[string]ExprOp{
	"+": Plus, "-": Minus, "*": Multiply, "/": Divide,
	"&": BoolAnd, "|": BoolOr, "<": LessThan, ">": GreatThan, "=": Equal,
}

// Maps the unary operator symbols to their IR counterpart.
var unaryOps = map[string]ExprOp{"-": Negation, "~": BoolNot}

type Parser struct {
	file      string             // Name of the translation unit, used in diagnostics
	tokenizer *Tokenizer         // The lazy token producer
	buffer    utils.Queue[Token] // Look-ahead window (at most two tokens deep)
}

// Initializes and returns to the caller a brand new 'Parser' struct.
// The 'file' argument names the translation unit inside diagnostics.
func NewParser(file string, source []byte) *Parser {
	return &Parser{file: file, tokenizer: NewTokenizer(file, source)}
}

// Parser entrypoint: every Jack source file is expected to contain exactly one
// class and nothing else besides, so we hand control off to 'ParseClass' and then
// make sure no stray token follows the closing brace.
func (p *Parser) Parse() (Class, error) {
	class, err := p.ParseClass()
	if err != nil {
		return Class{}, err
	}

	if token, err := p.peek(0); err == nil {
		return Class{}, p.fail(token, "expected end of input, got %s", token)
	}
	return class, nil
}

// ----------------------------------------------------------------------------
// Look-ahead management

// Returns the token at position 'offset' in the look-ahead window without consuming
// it, pulling tokens from the tokenizer as needed to fill the buffer.
func (p *Parser) peek(offset int) (Token, error) {
	for p.buffer.Count() <= offset {
		token, ok, err := p.tokenizer.Next()
		if err != nil {
			return Token{}, err
		}
		if !ok {
			return Token{}, &SyntaxError{File: p.file, Line: p.tokenizer.line, Column: p.tokenizer.column, Message: "unexpected end of input"}
		}
		p.buffer.Push(token)
	}

	return p.buffer.Peek(offset)
}

// Consumes and returns the next token from the look-ahead window.
func (p *Parser) next() (Token, error) {
	if _, err := p.peek(0); err != nil {
		return Token{}, err
	}
	return p.buffer.Pop()
}

// Reports whether the token at 'offset' matches the given kind and, when provided,
// one of the given literal values. An exhausted stream simply reports false.
func (p *Parser) match(offset int, kind TokenKind, values ...string) bool {
	token, err := p.peek(offset)
	if err != nil || token.Kind != kind {
		return false
	}
	if len(values) == 0 {
		return true
	}

	for _, value := range values {
		if token.Value == value {
			return true
		}
	}
	return false
}

// Consumes the next token, failing with a located diagnostic when it does not
// conform to the required kind and (optional) literal values.
func (p *Parser) expect(kind TokenKind, values ...string) (Token, error) {
	token, err := p.peek(0)
	if err != nil {
		return Token{}, err
	}

	if !p.match(0, kind, values...) {
		label := string(kind)
		if len(values) > 0 {
			label = fmt.Sprintf("%s '%s'", kind, strings.Join(values, "|"))
		}
		return Token{}, p.fail(token, "expected %s, got %s", label, token)
	}

	return p.next()
}

// Builds a SyntaxError anchored at the given token.
func (p *Parser) fail(at Token, format string, args ...any) error {
	return &SyntaxError{File: p.file, Line: at.Line, Column: at.Column, Message: fmt.Sprintf(format, args...)}
}

// ----------------------------------------------------------------------------
// Declarations

// class := 'class' IDENT '{' classVarDec* subroutineDec* '}'
func (p *Parser) ParseClass() (Class, error) {
	if _, err := p.expect(Keyword, "class"); err != nil {
		return Class{}, err
	}
	name, err := p.expect(Identifier)
	if err != nil {
		return Class{}, err
	}
	if _, err := p.expect(SymbolTok, "{"); err != nil {
		return Class{}, err
	}

	class := Class{Name: name.Value}

	for p.match(0, Keyword, "static", "field") {
		vars, err := p.ParseClassVarDec()
		if err != nil {
			return Class{}, err
		}
		class.Vars = append(class.Vars, vars...)
	}

	for p.match(0, Keyword, "constructor", "function", "method") {
		subroutine, err := p.ParseSubroutineDec()
		if err != nil {
			return Class{}, err
		}
		class.Subroutines = append(class.Subroutines, subroutine)
	}

	if _, err := p.expect(SymbolTok, "}"); err != nil {
		return Class{}, err
	}
	return class, nil
}

// classVarDec := ('static'|'field') type IDENT (',' IDENT)* ';'
func (p *Parser) ParseClassVarDec() ([]Variable, error) {
	kind, err := p.expect(Keyword, "static", "field")
	if err != nil {
		return nil, err
	}
	varType, err := p.ParseType()
	if err != nil {
		return nil, err
	}

	vars := []Variable{}
	for {
		name, err := p.expect(Identifier)
		if err != nil {
			return nil, err
		}
		vars = append(vars, Variable{Name: name.Value, Kind: VarKind(kind.Value), Type: varType})

		if !p.match(0, SymbolTok, ",") {
			break
		}
		p.next()
	}

	if _, err := p.expect(SymbolTok, ";"); err != nil {
		return nil, err
	}
	return vars, nil
}

// subroutineDec := ('constructor'|'function'|'method') ('void'|type) IDENT
//                  '(' paramList ')' '{' varDec* statement* '}'
func (p *Parser) ParseSubroutineDec() (Subroutine, error) {
	kind, err := p.expect(Keyword, "constructor", "function", "method")
	if err != nil {
		return Subroutine{}, err
	}

	returns := "void"
	if p.match(0, Keyword, "void") {
		p.next()
	} else if returns, err = p.ParseType(); err != nil {
		return Subroutine{}, err
	}

	name, err := p.expect(Identifier)
	if err != nil {
		return Subroutine{}, err
	}

	subroutine := Subroutine{Name: name.Value, Kind: SubroutineKind(kind.Value), Return: returns}

	if _, err := p.expect(SymbolTok, "("); err != nil {
		return Subroutine{}, err
	}
	if subroutine.Params, err = p.ParseParamList(); err != nil {
		return Subroutine{}, err
	}
	if _, err := p.expect(SymbolTok, ")"); err != nil {
		return Subroutine{}, err
	}

	if _, err := p.expect(SymbolTok, "{"); err != nil {
		return Subroutine{}, err
	}
	for p.match(0, Keyword, "var") {
		locals, err := p.ParseVarDec()
		if err != nil {
			return Subroutine{}, err
		}
		subroutine.Locals = append(subroutine.Locals, locals...)
	}
	if subroutine.Body, err = p.ParseStatements(); err != nil {
		return Subroutine{}, err
	}
	if _, err := p.expect(SymbolTok, "}"); err != nil {
		return Subroutine{}, err
	}

	return subroutine, nil
}

// paramList := ( type IDENT (',' type IDENT)* )?
func (p *Parser) ParseParamList() ([]Variable, error) {
	params := []Variable{}
	if p.match(0, SymbolTok, ")") {
		return params, nil
	}

	for {
		paramType, err := p.ParseType()
		if err != nil {
			return nil, err
		}
		name, err := p.expect(Identifier)
		if err != nil {
			return nil, err
		}
		params = append(params, Variable{Name: name.Value, Kind: Argument, Type: paramType})

		if !p.match(0, SymbolTok, ",") {
			break
		}
		p.next()
	}

	return params, nil
}

// varDec := 'var' type IDENT (',' IDENT)* ';'
func (p *Parser) ParseVarDec() ([]Variable, error) {
	if _, err := p.expect(Keyword, "var"); err != nil {
		return nil, err
	}
	varType, err := p.ParseType()
	if err != nil {
		return nil, err
	}

	vars := []Variable{}
	for {
		name, err := p.expect(Identifier)
		if err != nil {
			return nil, err
		}
		vars = append(vars, Variable{Name: name.Value, Kind: Local, Type: varType})

		if !p.match(0, SymbolTok, ",") {
			break
		}
		p.next()
	}

	if _, err := p.expect(SymbolTok, ";"); err != nil {
		return nil, err
	}
	return vars, nil
}

// type := 'int'|'char'|'boolean'|IDENT
func (p *Parser) ParseType() (string, error) {
	if p.match(0, Keyword, "int", "char", "boolean") || p.match(0, Identifier) {
		token, err := p.next()
		return token.Value, err
	}

	token, err := p.peek(0)
	if err != nil {
		return "", err
	}
	return "", p.fail(token, "expected a primitive type or class name, got %s", token)
}

// ----------------------------------------------------------------------------
// Statements

// statement := let | if | while | do | return
func (p *Parser) ParseStatements() ([]Statement, error) {
	statements := []Statement{}

	for p.match(0, Keyword, "let", "if", "while", "do", "return") {
		token, _ := p.peek(0)

		var statement Statement
		var err error

		switch token.Value {
		case "let":
			statement, err = p.ParseLetStmt()
		case "if":
			statement, err = p.ParseIfStmt()
		case "while":
			statement, err = p.ParseWhileStmt()
		case "do":
			statement, err = p.ParseDoStmt()
		case "return":
			statement, err = p.ParseReturnStmt()
		}

		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)
	}

	return statements, nil
}

// let := 'let' IDENT ('[' expr ']')? '=' expr ';'
func (p *Parser) ParseLetStmt() (Statement, error) {
	if _, err := p.expect(Keyword, "let"); err != nil {
		return nil, err
	}
	name, err := p.expect(Identifier)
	if err != nil {
		return nil, err
	}

	var lhs Expression = VarExpr{Var: name.Value}
	if p.match(0, SymbolTok, "[") {
		p.next()
		index, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SymbolTok, "]"); err != nil {
			return nil, err
		}
		lhs = ArrayExpr{Var: name.Value, Index: index}
	}

	if _, err := p.expect(SymbolTok, "="); err != nil {
		return nil, err
	}
	rhs, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolTok, ";"); err != nil {
		return nil, err
	}

	return LetStmt{Lhs: lhs, Rhs: rhs}, nil
}

// if := 'if' '(' expr ')' '{' stmt* '}' ('else' '{' stmt* '}')?
func (p *Parser) ParseIfStmt() (Statement, error) {
	if _, err := p.expect(Keyword, "if"); err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolTok, "("); err != nil {
		return nil, err
	}
	condition, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolTok, ")"); err != nil {
		return nil, err
	}

	if _, err := p.expect(SymbolTok, "{"); err != nil {
		return nil, err
	}
	thenBlock, err := p.ParseStatements()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolTok, "}"); err != nil {
		return nil, err
	}

	statement := IfStmt{Condition: condition, ThenBlock: thenBlock}

	if p.match(0, Keyword, "else") {
		p.next()
		if _, err := p.expect(SymbolTok, "{"); err != nil {
			return nil, err
		}
		if statement.ElseBlock, err = p.ParseStatements(); err != nil {
			return nil, err
		}
		if _, err := p.expect(SymbolTok, "}"); err != nil {
			return nil, err
		}
	}

	return statement, nil
}

// while := 'while' '(' expr ')' '{' stmt* '}'
func (p *Parser) ParseWhileStmt() (Statement, error) {
	if _, err := p.expect(Keyword, "while"); err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolTok, "("); err != nil {
		return nil, err
	}
	condition, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolTok, ")"); err != nil {
		return nil, err
	}

	if _, err := p.expect(SymbolTok, "{"); err != nil {
		return nil, err
	}
	block, err := p.ParseStatements()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolTok, "}"); err != nil {
		return nil, err
	}

	return WhileStmt{Condition: condition, Block: block}, nil
}

// do := 'do' subroutineCall ';'
func (p *Parser) ParseDoStmt() (Statement, error) {
	if _, err := p.expect(Keyword, "do"); err != nil {
		return nil, err
	}
	call, err := p.ParseSubroutineCall()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SymbolTok, ";"); err != nil {
		return nil, err
	}

	return DoStmt{Call: call}, nil
}

// return := 'return' expr? ';'
func (p *Parser) ParseReturnStmt() (Statement, error) {
	if _, err := p.expect(Keyword, "return"); err != nil {
		return nil, err
	}

	statement := ReturnStmt{}
	if !p.match(0, SymbolTok, ";") {
		expr, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		statement.Expr = expr
	}

	if _, err := p.expect(SymbolTok, ";"); err != nil {
		return nil, err
	}
	return statement, nil
}

// ----------------------------------------------------------------------------
// Expressions

// expr := term (op term)*
//
// Operators have no precedence, they associate purely by parse order (left to right).
func (p *Parser) ParseExpression() (Expression, error) {
	expr, err := p.ParseTerm()
	if err != nil {
		return nil, err
	}

	for p.match(0, SymbolTok, "+", "-", "*", "/", "&", "|", "<", ">", "=") {
		op, _ := p.next()
		rhs, err := p.ParseTerm()
		if err != nil {
			return nil, err
		}
		expr = BinaryExpr{Op: binaryOps[op.Value], Lhs: expr, Rhs: rhs}
	}

	return expr, nil
}

// term := INT | STRING | keywordConst | IDENT | IDENT '[' expr ']' |
//         subroutineCall | '(' expr ')' | unaryOp term
func (p *Parser) ParseTerm() (Expression, error) {
	switch {
	case p.match(0, IntConst):
		token, _ := p.next()
		return LiteralExpr{Kind: IntLiteral, Value: token.Value}, nil

	case p.match(0, StrConst):
		token, _ := p.next()
		return LiteralExpr{Kind: StrLiteral, Value: token.Value}, nil

	case p.match(0, Keyword, "true", "false", "null", "this"):
		token, _ := p.next()
		return LiteralExpr{Kind: LiteralKind(token.Value)}, nil

	case p.match(0, SymbolTok, "("):
		p.next()
		expr, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SymbolTok, ")"); err != nil {
			return nil, err
		}
		return expr, nil

	case p.match(0, SymbolTok, "-", "~"):
		op, _ := p.next()
		rhs, err := p.ParseTerm()
		if err != nil {
			return nil, err
		}
		return UnaryExpr{Op: unaryOps[op.Value], Rhs: rhs}, nil

	case p.match(0, Identifier):
		// The only spot where a single token of look-ahead is not enough: the
		// second token disambiguates an array access and a subroutine call from
		// a plain variable reference.
		if p.match(1, SymbolTok, "[") {
			name, _ := p.next()
			p.next() // Consumes the '['
			index, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(SymbolTok, "]"); err != nil {
				return nil, err
			}
			return ArrayExpr{Var: name.Value, Index: index}, nil
		}

		if p.match(1, SymbolTok, ".", "(") {
			return p.ParseSubroutineCall()
		}

		name, _ := p.next()
		return VarExpr{Var: name.Value}, nil

	default:
		token, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		return nil, p.fail(token, "expected a term, got %s", token)
	}
}

// subroutineCall := IDENT '(' exprList ')' | IDENT '.' IDENT '(' exprList ')'
func (p *Parser) ParseSubroutineCall() (FuncCallExpr, error) {
	first, err := p.expect(Identifier)
	if err != nil {
		return FuncCallExpr{}, err
	}

	call := FuncCallExpr{Name: first.Value}
	if p.match(0, SymbolTok, ".") {
		p.next()
		name, err := p.expect(Identifier)
		if err != nil {
			return FuncCallExpr{}, err
		}
		call.Receiver, call.Name = first.Value, name.Value
	}

	if _, err := p.expect(SymbolTok, "("); err != nil {
		return FuncCallExpr{}, err
	}
	if !p.match(0, SymbolTok, ")") {
		for {
			arg, err := p.ParseExpression()
			if err != nil {
				return FuncCallExpr{}, err
			}
			call.Args = append(call.Args, arg)

			if !p.match(0, SymbolTok, ",") {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(SymbolTok, ")"); err != nil {
		return FuncCallExpr{}, err
	}

	return call, nil
}
