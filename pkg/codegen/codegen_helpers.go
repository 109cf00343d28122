package codegen

import (
	"github.com/xplshn/sgen/pkg/ast"
	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/ir"
	"github.com/xplshn/sgen/pkg/util"
)

var binaryOps = map[ast.Op]ir.Op{
	ast.OpEq: ir.OpCEq, ast.OpNeq: ir.OpCNeq, ast.OpGt: ir.OpCGt, ast.OpGte: ir.OpCGe,
	ast.OpLt: ir.OpCLt, ast.OpLte: ir.OpCLe, ast.OpAnd: ir.OpAnd, ast.OpOr: ir.OpOr,
	ast.OpPlus: ir.OpAdd, ast.OpMinus: ir.OpSub, ast.OpTimes: ir.OpMul, ast.OpDiv: ir.OpDiv,
}

var unaryOps = map[ast.Op]ir.Op{
	ast.OpNot: ir.OpNot, ast.OpNeg: ir.OpNeg, ast.OpAbs: ir.OpAbs,
}

func (ctx *Context) codegenAssign(node *ast.Node) {
	d := node.Data.(ast.AssignNode)
	slot := ctx.slot(node, d.Name)
	ctx.codegenExpr(d.Expr)
	ctx.addInstr(ir.OpStore, slot)
}

// The value is evaluated before the index, for both element stores.
func (ctx *Context) codegenArrayAssign(node *ast.Node) {
	d := node.Data.(ast.ArrayAssignNode)
	slot := ctx.slot(node, d.Name)
	ctx.codegenExpr(d.Value)
	ctx.codegenExpr(d.Index)
	ctx.addInstr(ir.OpStoreElem, slot)
}

// codegenCallSeq pushes the arguments last to first so the first one ends up
// nearest the return address, then calls.
func (ctx *Context) codegenCallSeq(callee string, args []*ast.Node) {
	for i := len(args) - 1; i >= 0; i-- {
		ctx.codegenExpr(args[i])
	}
	ctx.addInstr(ir.OpCall, &ir.Global{Name: callee}, &ir.Const{Value: int64(len(args))})
}

func (ctx *Context) codegenCall(node *ast.Node) {
	d := node.Data.(ast.CallNode)
	slot := ctx.slot(node, d.Target)
	ctx.codegenCallSeq(d.Callee, d.Args)
	ctx.addInstr(ir.OpStoreResult, slot)
}

func (ctx *Context) codegenArrayCall(node *ast.Node) {
	d := node.Data.(ast.ArrayCallNode)
	slot := ctx.slot(node, d.Target)
	ctx.codegenCallSeq(d.Callee, d.Args)
	ctx.addInstr(ir.OpPushResult)
	ctx.codegenExpr(d.Index)
	ctx.addInstr(ir.OpStoreElem, slot)
}

func (ctx *Context) codegenReturn(node *ast.Node) {
	d := node.Data.(ast.ReturnNode)
	ctx.codegenExpr(d.Expr)
	ctx.addInstr(ir.OpReturn)
	ctx.addInstr(ir.OpJmp, ctx.exitLabel)
}

func (ctx *Context) codegenIf(node *ast.Node) {
	d := node.Data.(ast.IfNode)
	if v, ok := ctx.known(d.Cond); ok {
		switch {
		case v != 0:
			if d.Else != nil {
				util.Warn(ctx.cfg, config.WarnUnreachableCode, d.Else.Tok, "else branch is never taken")
			}
			ctx.codegenStmt(d.Then)
		case d.Else != nil:
			util.Warn(ctx.cfg, config.WarnUnreachableCode, d.Then.Tok, "then branch is never taken")
			ctx.codegenStmt(d.Else)
		default:
			util.Warn(ctx.cfg, config.WarnUnreachableCode, d.Then.Tok, "condition is always false")
		}
		return
	}

	if d.Else == nil {
		endL := ctx.newLabel()
		ctx.codegenExpr(d.Cond)
		ctx.addInstr(ir.OpJz, endL)
		ctx.codegenStmt(d.Then)
		ctx.addInstr(ir.OpLabel, endL)
		return
	}

	elseL, endL := ctx.newLabel(), ctx.newLabel()
	ctx.codegenExpr(d.Cond)
	ctx.addInstr(ir.OpJz, elseL)
	ctx.codegenStmt(d.Then)
	ctx.addInstr(ir.OpJmp, endL)
	ctx.addInstr(ir.OpLabel, elseL)
	ctx.codegenStmt(d.Else)
	ctx.addInstr(ir.OpLabel, endL)
}

func (ctx *Context) codegenWhile(node *ast.Node) {
	d := node.Data.(ast.WhileNode)
	if v, ok := ctx.known(d.Cond); ok {
		if v == 0 {
			util.Warn(ctx.cfg, config.WarnUnreachableCode, d.Body.Tok, "loop body never runs")
			return
		}
		util.Warn(ctx.cfg, config.WarnInfiniteLoop, node.Tok, "loop condition is always true")
		topL := ctx.newLabel()
		ctx.addInstr(ir.OpLabel, topL)
		ctx.codegenStmt(d.Body)
		ctx.addInstr(ir.OpJmp, topL)
		return
	}

	topL, endL := ctx.newLabel(), ctx.newLabel()
	ctx.addInstr(ir.OpLabel, topL)
	ctx.codegenExpr(d.Cond)
	ctx.addInstr(ir.OpJz, endL)
	ctx.codegenStmt(d.Body)
	ctx.addInstr(ir.OpJmp, topL)
	ctx.addInstr(ir.OpLabel, endL)
}
