package parser

import (
	"strconv"

	"github.com/xplshn/sgen/pkg/ast"
	"github.com/xplshn/sgen/pkg/symtab"
	"github.com/xplshn/sgen/pkg/token"
)

func (p *Parser) parseStmt() *ast.Node {
	if p.peek().Type == token.Block {
		return p.parseBlock(false)
	}

	p.expect(token.LParen, "Expected '(' to open a statement.")
	tok := p.current
	switch {
	case p.match(token.Assign):
		name, nameTok := p.expectName("variable")
		p.lookupVar(nameTok, name, false)
		expr := p.parseExpr()
		p.expect(token.RParen, "Expected ')' to close the assignment.")
		return ast.NewAssign(tok, p.scope, name, expr)

	case p.match(token.AssignIndex):
		name, nameTok := p.expectName("array")
		p.lookupVar(nameTok, name, true)
		index := p.parseExpr()
		value := p.parseExpr()
		p.expect(token.RParen, "Expected ')' to close the assignment.")
		return ast.NewArrayAssign(tok, p.scope, name, index, value)

	case p.match(token.Call):
		target, targetTok := p.expectName("variable")
		p.lookupVar(targetTok, target, false)
		callee, _ := p.expectName("function")
		args := p.parseArgs()
		p.expect(token.RParen, "Expected ')' to close the call.")
		node := ast.NewCall(tok, p.scope, target, callee, args)
		p.calls = append(p.calls, node)
		return node

	case p.match(token.CallIndex):
		target, targetTok := p.expectName("array")
		p.lookupVar(targetTok, target, true)
		index := p.parseExpr()
		callee, _ := p.expectName("function")
		args := p.parseArgs()
		p.expect(token.RParen, "Expected ')' to close the call.")
		node := ast.NewArrayCall(tok, p.scope, target, index, callee, args)
		p.calls = append(p.calls, node)
		return node

	case p.match(token.Return):
		expr := p.parseExpr()
		p.expect(token.RParen, "Expected ')' to close the return.")
		return ast.NewReturn(tok, p.scope, expr)

	case p.match(token.If):
		cond := p.parseExpr()
		then := p.parseBlock(false)
		var els *ast.Node
		if p.check(token.LParen) {
			els = p.parseBlock(false)
		}
		p.expect(token.RParen, "Expected ')' to close the if.")
		return ast.NewIf(tok, p.scope, cond, then, els)

	case p.match(token.While):
		cond := p.parseExpr()
		body := p.parseBlock(false)
		p.expect(token.RParen, "Expected ')' to close the while.")
		return ast.NewWhile(tok, p.scope, cond, body)
	}

	p.fail(tok, "Expected a statement form. Found %s.", describe(tok))
	return nil
}

func (p *Parser) parseArgs() []*ast.Node {
	p.expect(token.LParen, "Expected '(' to open the argument list.")
	var args []*ast.Node
	for p.check(token.LParen) {
		args = append(args, p.parseExpr())
	}
	p.expect(token.RParen, "Expected ')' to close the argument list.")
	return args
}

// lookupVar resolves a variable reference in the current scope.
func (p *Parser) lookupVar(tok token.Token, name string, wantArray bool) *symtab.Symbol {
	sym, ok := p.st.Lookup(p.scope, name)
	if !ok || sym.Kind == symtab.KindFunc {
		p.fail(tok, "undeclared variable '%s'", name)
	}
	isArray := sym.Kind == symtab.KindIntArray
	if wantArray && !isArray {
		p.fail(tok, "'%s' is not an array", name)
	}
	if !wantArray && isArray {
		p.fail(tok, "array '%s' used as a scalar", name)
	}
	return sym
}

// checkCalls verifies arity for calls to functions defined in the program.
// Unknown callees are external and keep their arguments unchecked.
func (p *Parser) checkCalls() {
	for _, call := range p.calls {
		var callee string
		var nargs int
		switch d := call.Data.(type) {
		case ast.CallNode:
			callee, nargs = d.Callee, len(d.Args)
		case ast.ArrayCallNode:
			callee, nargs = d.Callee, len(d.Args)
		}
		sym, ok := p.st.Lookup(p.st.Global(), callee)
		if !ok {
			continue
		}
		if sym.Params != nargs {
			p.fail(call.Tok, "function '%s' takes %d argument(s), %d given", callee, sym.Params, nargs)
		}
	}
}

// --- Expressions ---

var binaryOps = map[token.Type]ast.Op{
	token.EqEq: ast.OpEq, token.Neq: ast.OpNeq, token.Gt: ast.OpGt, token.Gte: ast.OpGte,
	token.Lt: ast.OpLt, token.Lte: ast.OpLte, token.And: ast.OpAnd, token.Or: ast.OpOr,
	token.Plus: ast.OpPlus, token.Minus: ast.OpMinus, token.Star: ast.OpTimes, token.Slash: ast.OpDiv,
}

var unaryOps = map[token.Type]ast.Op{
	token.Not: ast.OpNot, token.Neg: ast.OpNeg, token.Abs: ast.OpAbs,
}

func (p *Parser) parseExpr() *ast.Node {
	p.expect(token.LParen, "Expected '(' to open an expression.")
	annotation, annotated := p.parseMeta()
	tok := p.current
	p.advance()
	if a, ok := p.parseMeta(); ok {
		annotation, annotated = a, true
	}

	var node *ast.Node
	switch tok.Type {
	case token.Id:
		name, nameTok := p.expectName("variable")
		p.lookupVar(nameTok, name, false)
		node = ast.NewIdent(tok, p.scope, name)

	case token.Int:
		numTok := p.expect(token.Number, "Expected integer literal.")
		node = ast.NewIntLit(tok, p.scope, p.parseWord(numTok))

	case token.Bool:
		switch {
		case p.match(token.True):
			node = ast.NewBoolLit(tok, p.scope, true)
		case p.match(token.False):
			node = ast.NewBoolLit(tok, p.scope, false)
		default:
			p.fail(p.current, "Expected 'true' or 'false'. Found %s.", describe(p.current))
		}

	case token.Index:
		name, nameTok := p.expectName("array")
		p.lookupVar(nameTok, name, true)
		node = ast.NewArrayAccess(tok, p.scope, name, p.parseExpr())

	default:
		if op, ok := binaryOps[tok.Type]; ok {
			left := p.parseExpr()
			right := p.parseExpr()
			node = ast.NewBinaryOp(tok, p.scope, op, left, right)
		} else if op, ok := unaryOps[tok.Type]; ok {
			node = ast.NewUnaryOp(tok, p.scope, op, p.parseExpr())
		} else {
			p.fail(tok, "Expected an expression form. Found %s.", describe(tok))
		}
	}

	p.expect(token.RParen, "Expected ')' to close the expression.")
	if annotated {
		node.Const = annotation
	}
	return node
}

// parseWord parses a decimal literal that must fit in one 32-bit word.
func (p *Parser) parseWord(tok token.Token) int64 {
	v, err := strconv.ParseInt(tok.Value, 10, 32)
	if err != nil {
		p.fail(tok, "integer literal '%s' does not fit in a word", tok.Value)
	}
	return v
}

// parseMeta reads an optional ^{const: v} annotation.
func (p *Parser) parseMeta() (ast.ConstValue, bool) {
	if !p.match(token.Caret) {
		return ast.ConstValue{}, false
	}
	p.expect(token.LBrace, "Expected '{' after '^'.")

	var c ast.ConstValue
	for !p.check(token.RBrace) {
		key, keyTok := p.expectName("metadata key")
		p.expect(token.Colon, "Expected ':' after metadata key.")
		if key != "const" {
			p.fail(keyTok, "unknown metadata key '%s'", key)
		}
		switch {
		case p.check(token.Number):
			p.advance()
			c = ast.Known(p.parseWord(p.previous))
		case p.match(token.True):
			c = ast.Known(1)
		case p.match(token.False):
			c = ast.Known(0)
		case p.match(token.Nac):
			c = ast.NotConstant()
		default:
			p.fail(p.current, "Expected a constant value, 'true', 'false' or 'nac'. Found %s.", describe(p.current))
		}
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, "Expected '}' to close the metadata.")
	return c, true
}
