// Package parser reads the annotated AST handed over by the front end in its
// S-expression interchange form, building the symbol table as it goes.
package parser

import (
	"strconv"

	"github.com/xplshn/sgen/pkg/ast"
	"github.com/xplshn/sgen/pkg/symtab"
	"github.com/xplshn/sgen/pkg/token"
	"github.com/xplshn/sgen/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	st       *symtab.Table
	scope    *symtab.Scope
	calls    []*ast.Node
}

// bailout carries the first diagnostic out of the recursive descent.
type bailout struct{ err error }

// NewParser creates and initializes a new Parser from a token stream
func NewParser(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens, st: symtab.NewTable()}
	if len(tokens) > 0 {
		p.current = p.tokens[0]
	}
	p.scope = p.st.Global()
	return p
}

// Parse reads one program form. The returned table holds every scope the
// AST refers to.
func (p *Parser) Parse() (root *ast.Node, st *symtab.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			root, st, err = nil, nil, b.err
		}
	}()

	if len(p.tokens) == 0 || p.check(token.EOF) {
		p.fail(p.current, "empty input")
	}

	// Several program forms, one per input file, make up one program.
	tok := p.current
	var funcs []*ast.Node
	for !p.check(token.EOF) {
		funcs = append(funcs, p.parseProgram()...)
	}
	p.checkCalls()
	return ast.NewProgram(tok, p.st.Global(), funcs), p.st, nil
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.previous = p.current
		p.pos++
		if p.pos < len(p.tokens) {
			p.current = p.tokens[p.pos]
		}
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) token.Token {
	if p.check(tokType) {
		p.advance()
		return p.previous
	}
	p.fail(p.current, "%s Found %s.", message, describe(p.current))
	return token.Token{}
}

func (p *Parser) fail(tok token.Token, format string, args ...interface{}) {
	panic(bailout{util.Errorf(tok, format, args...)})
}

func describe(tok token.Token) string {
	if tok.Value != "" {
		return "'" + tok.Value + "'"
	}
	return tok.Type.String()
}

// expectName accepts any symbol, keywords included, as a name.
func (p *Parser) expectName(what string) (string, token.Token) {
	if p.check(token.Ident) || p.current.Type.IsKeyword() {
		tok := p.current
		p.advance()
		return tok.Value, tok
	}
	p.fail(p.current, "Expected %s name. Found %s.", what, describe(p.current))
	return "", token.Token{}
}

func (p *Parser) enterScope() { p.scope = p.st.NewScope(p.scope) }
func (p *Parser) exitScope()  { p.scope = p.scope.Parent() }

// --- Structure ---

func (p *Parser) parseProgram() []*ast.Node {
	p.expect(token.LParen, "Expected '(' to open the program.")
	p.expect(token.Program, "Expected 'program' form.")

	// Calls are checked against the function table once every function is known.
	var funcs []*ast.Node
	for p.check(token.LParen) {
		funcs = append(funcs, p.parseFunc())
	}
	p.expect(token.RParen, "Expected ')' to close the program.")
	return funcs
}

func (p *Parser) parseFunc() *ast.Node {
	p.expect(token.LParen, "Expected '('.")
	tok := p.expect(token.Func, "Expected 'func' form.")
	name, nameTok := p.expectName("function")

	fnSym, err := p.st.Declare(p.scope, name, symtab.KindFunc, 0)
	if err != nil {
		p.fail(nameTok, "function %s", err.Error())
	}

	global := p.scope
	p.enterScope()
	p.expect(token.LParen, "Expected '(' to open the parameter list.")
	var params []*ast.Node
	for p.check(token.LParen) {
		params = append(params, p.parseParam())
	}
	p.expect(token.RParen, "Expected ')' to close the parameter list.")
	fnSym.Params = len(params)

	body := p.parseBlock(true)
	p.exitScope()
	p.expect(token.RParen, "Expected ')' to close the function.")
	return ast.NewFunc(tok, global, name, params, body)
}

func (p *Parser) parseParam() *ast.Node {
	p.expect(token.LParen, "Expected '('.")
	tok := p.expect(token.Param, "Expected 'param' form.")
	name, nameTok := p.expectName("parameter")
	typ := p.parseType()
	if typ.Type == ast.TIntArray {
		p.fail(typ.Tok, "parameter '%s' cannot be an array; parameters are passed by value", name)
	}
	p.declare(nameTok, name, typ)
	p.expect(token.RParen, "Expected ')' to close the parameter.")
	return ast.NewParam(tok, p.scope, name, typ)
}

func (p *Parser) parseType() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Int):
		return ast.NewTInt(tok)
	case p.match(token.Bool):
		return ast.NewTBool(tok)
	case p.match(token.LParen):
		p.expect(token.Array, "Expected 'int', 'bool' or '(array N)'.")
		sizeTok := p.expect(token.Number, "Expected array size.")
		size, err := strconv.ParseInt(sizeTok.Value, 10, 32)
		if err != nil || size <= 0 {
			p.fail(sizeTok, "invalid array size '%s'", sizeTok.Value)
		}
		p.expect(token.RParen, "Expected ')' to close the array type.")
		return ast.NewTIntArray(tok, size)
	}
	p.fail(tok, "Expected 'int', 'bool' or '(array N)'. Found %s.", describe(tok))
	return nil
}

func (p *Parser) declare(tok token.Token, name string, typ *ast.Node) {
	kind, words := symtab.KindInt, int64(1)
	switch typ.Type {
	case ast.TBool:
		kind = symtab.KindBool
	case ast.TIntArray:
		kind, words = symtab.KindIntArray, typ.Data.(ast.TIntArrayNode).Size
	}
	if _, err := p.st.Declare(p.scope, name, kind, words); err != nil {
		p.fail(tok, "%s", err.Error())
	}
}

// parseBlock reads a (block ...) form. The function-level block shares the
// parameter scope; nested blocks open their own.
func (p *Parser) parseBlock(funcLevel bool) *ast.Node {
	tok := p.expect(token.LParen, "Expected '(' to open a block.")
	p.expect(token.Block, "Expected 'block' form.")
	if !funcLevel {
		p.enterScope()
	}
	scope := p.scope

	var decls, stmts []*ast.Node
	for p.check(token.LParen) {
		if p.peek().Type == token.Decl {
			decls = append(decls, p.parseDecl())
			continue
		}
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(token.RParen, "Expected ')' to close the block.")

	if funcLevel {
		return ast.NewFuncBlock(tok, scope, decls, stmts)
	}
	p.exitScope()
	return ast.NewNestedBlock(tok, scope, decls, stmts)
}

func (p *Parser) parseDecl() *ast.Node {
	p.expect(token.LParen, "Expected '('.")
	tok := p.expect(token.Decl, "Expected 'decl' form.")
	name, nameTok := p.expectName("variable")
	typ := p.parseType()
	p.declare(nameTok, name, typ)
	p.expect(token.RParen, "Expected ')' to close the declaration.")
	return ast.NewDecl(tok, p.scope, name, typ)
}
