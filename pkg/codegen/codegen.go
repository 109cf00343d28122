package codegen

import (
	"fmt"

	"github.com/xplshn/sgen/pkg/ast"
	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/ir"
	"github.com/xplshn/sgen/pkg/symtab"
	"github.com/xplshn/sgen/pkg/token"
	"github.com/xplshn/sgen/pkg/util"
)

// PreconditionError is the panic value raised when the tree refers to a
// symbol or scope the symbol table cannot resolve. Such trees are rejected
// by earlier stages, so this is never recovered in normal operation.
type PreconditionError struct {
	Tok token.Token
	Msg string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("codegen precondition violated at %d:%d: %s", e.Tok.Line, e.Tok.Column, e.Msg)
}

// Context is a single-use generator. It owns the label counter, so every
// label it hands out is unique across all functions it generates.
type Context struct {
	prog        *ir.Program
	st          *symtab.Table
	cfg         *config.Config
	labelCount  int
	currentFunc *ir.Func
	exitLabel   *ir.Label
	fold        bool
}

func NewContext(cfg *config.Config, st *symtab.Table) *Context {
	return &Context{
		prog: &ir.Program{WordSize: symtab.WordSize},
		st:   st,
		cfg:  cfg,
		fold: cfg.IsFeatureEnabled(config.FeatFold),
	}
}

func (ctx *Context) newLabel() *ir.Label {
	l := &ir.Label{ID: ctx.labelCount}
	ctx.labelCount++
	return l
}

func (ctx *Context) addInstr(op ir.Op, args ...ir.Value) {
	ctx.currentFunc.Body = append(ctx.currentFunc.Body, &ir.Instruction{Op: op, Args: args})
}

func (ctx *Context) precondition(tok token.Token, format string, args ...interface{}) {
	panic(&PreconditionError{Tok: tok, Msg: fmt.Sprintf(format, args...)})
}

// slot resolves name from the scope of node.
func (ctx *Context) slot(node *ast.Node, name string) *ir.Slot {
	if !ctx.st.Contains(node.Scope) {
		ctx.precondition(node.Tok, "node has no resolvable scope")
	}
	sym, ok := ctx.st.Lookup(node.Scope, name)
	if !ok || sym.Kind == symtab.KindFunc {
		ctx.precondition(node.Tok, "unresolved variable '%s'", name)
	}
	return &ir.Slot{Name: name, Offset: sym.Offset}
}

// known returns the folded value of an expression if folding is enabled.
func (ctx *Context) known(node *ast.Node) (int64, bool) {
	if !ctx.fold {
		return 0, false
	}
	return node.Const.Get()
}

// GenerateIR lowers a program. It panics with *PreconditionError on trees
// the symbol table cannot resolve.
func (ctx *Context) GenerateIR(root *ast.Node) *ir.Program {
	if root == nil || root.Type != ast.Program {
		ctx.precondition(token.Token{}, "root is not a program")
	}
	for _, fn := range root.Data.(ast.ProgramNode).Funcs {
		ctx.codegenFunc(fn)
	}
	return ctx.prog
}

func (ctx *Context) codegenFunc(node *ast.Node) {
	d := node.Data.(ast.FuncNode)
	size, ok := ctx.st.ScopeSize(d.Body.Scope)
	if !ok {
		ctx.precondition(node.Tok, "function '%s' has no resolvable scope", d.Name)
	}

	fn := &ir.Func{Name: d.Name, FrameSize: size}
	for _, p := range d.Params {
		name := p.Data.(ast.ParamNode).Name
		s := ctx.slot(p, name)
		fn.Params = append(fn.Params, ir.Param{Name: name, Offset: s.Offset})
	}
	ctx.prog.Funcs = append(ctx.prog.Funcs, fn)

	ctx.currentFunc, ctx.exitLabel = fn, ctx.newLabel()
	ctx.codegenStmt(d.Body)
	ctx.addInstr(ir.OpLabel, ctx.exitLabel)
	ctx.currentFunc, ctx.exitLabel = nil, nil
}

func (ctx *Context) codegenStmt(node *ast.Node) {
	switch node.Type {
	case ast.FuncBlock, ast.NestedBlock:
		stmts := node.Data.(ast.BlockNode).Stmts
		for i, s := range stmts {
			ctx.codegenStmt(s)
			if s.Type == ast.Return && i+1 < len(stmts) {
				util.Warn(ctx.cfg, config.WarnExtra, stmts[i+1].Tok, "statement after return is never executed")
			}
		}
	case ast.Assign:
		ctx.codegenAssign(node)
	case ast.ArrayAssign:
		ctx.codegenArrayAssign(node)
	case ast.Call:
		ctx.codegenCall(node)
	case ast.ArrayCall:
		ctx.codegenArrayCall(node)
	case ast.Return:
		ctx.codegenReturn(node)
	case ast.IfNoElse, ast.IfElse:
		ctx.codegenIf(node)
	case ast.While:
		ctx.codegenWhile(node)
	case ast.Decl, ast.Param, ast.TInt, ast.TBool, ast.TIntArray:
	default:
		ctx.precondition(node.Tok, "unexpected %s node in statement position", node.Type)
	}
}

// codegenExpr emits code that leaves exactly one word on the operand stack.
func (ctx *Context) codegenExpr(node *ast.Node) {
	if v, ok := ctx.known(node); ok {
		ctx.addInstr(ir.OpPush, &ir.Const{Value: v})
		return
	}

	switch d := node.Data.(type) {
	case ast.IntLitNode:
		ctx.addInstr(ir.OpPush, &ir.Const{Value: d.Value})
	case ast.BoolLitNode:
		var v int64
		if d.Value {
			v = 1
		}
		ctx.addInstr(ir.OpPush, &ir.Const{Value: v})
	case ast.IdentNode:
		ctx.addInstr(ir.OpLoad, ctx.slot(node, d.Name))
	case ast.ArrayAccessNode:
		ctx.codegenExpr(d.Index)
		ctx.addInstr(ir.OpLoadElem, ctx.slot(node, d.Name))
	case ast.BinaryOpNode:
		ctx.codegenExpr(d.Left)
		ctx.codegenExpr(d.Right)
		ctx.addInstr(binaryOps[d.Op])
	case ast.UnaryOpNode:
		ctx.codegenExpr(d.Expr)
		ctx.addInstr(unaryOps[d.Op])
	default:
		ctx.precondition(node.Tok, "unexpected %s node in expression position", node.Type)
	}
}
