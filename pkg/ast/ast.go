// Package ast defines the types used to represent the annotated Abstract Syntax Tree (AST)
package ast

import (
	"fmt"

	"github.com/xplshn/sgen/pkg/symtab"
	"github.com/xplshn/sgen/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Structure
	Program NodeType = iota
	Func
	Param
	Decl
	FuncBlock
	NestedBlock

	// Statements
	Assign
	ArrayAssign
	Call
	ArrayCall
	Return
	IfNoElse
	IfElse
	While

	// Expressions
	BinaryOp
	UnaryOp
	Ident
	IntLit
	BoolLit
	ArrayAccess

	// Types
	TInt
	TBool
	TIntArray
)

var nodeTypeNames = [...]string{
	Program: "program", Func: "func", Param: "param", Decl: "decl",
	FuncBlock: "func-block", NestedBlock: "block",
	Assign: "assign", ArrayAssign: "assign-index", Call: "call", ArrayCall: "call-index",
	Return: "return", IfNoElse: "if", IfElse: "if-else", While: "while",
	BinaryOp: "binary", UnaryOp: "unary", Ident: "id", IntLit: "int", BoolLit: "bool",
	ArrayAccess: "index", TInt: "int", TBool: "bool", TIntArray: "array",
}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// IsExpr reports whether nodes of this type produce a value.
func (t NodeType) IsExpr() bool { return t >= BinaryOp && t <= ArrayAccess }

// Op is a binary or unary operator.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpAnd
	OpOr
	OpPlus
	OpMinus
	OpTimes
	OpDiv
	OpNot
	OpNeg
	OpAbs
)

var opNames = [...]string{
	OpEq: "==", OpNeq: "!=", OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<=",
	OpAnd: "and", OpOr: "or", OpPlus: "+", OpMinus: "-", OpTimes: "*", OpDiv: "/",
	OpNot: "not", OpNeg: "neg", OpAbs: "abs",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// ConstState is the lattice position of a constant annotation.
type ConstState int

const (
	ConstUnresolved ConstState = iota
	ConstNotConstant
	ConstKnown
)

// ConstValue is the constant annotation attached to every expression node.
// Booleans are represented as 0 and 1.
type ConstValue struct {
	State ConstState
	Value int64
}

func Known(v int64) ConstValue { return ConstValue{State: ConstKnown, Value: v} }

func NotConstant() ConstValue { return ConstValue{State: ConstNotConstant} }

// Get returns the value and whether it is statically known. Unresolved and
// not-constant are both treated as not foldable.
func (c ConstValue) Get() (int64, bool) { return c.Value, c.State == ConstKnown }

func (c ConstValue) String() string {
	switch c.State {
	case ConstKnown:
		return fmt.Sprintf("%d", c.Value)
	case ConstNotConstant:
		return "nac"
	}
	return "unresolved"
}

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type  NodeType
	Tok   token.Token
	Scope *symtab.Scope
	Const ConstValue // Meaningful for expression nodes only
	Data  interface{}
}

// --- Node Data Structs ---
type ProgramNode struct{ Funcs []*Node }
type FuncNode struct {
	Name   string
	Params []*Node
	Body   *Node
}
type ParamNode struct {
	Name string
	Type *Node
}
type DeclNode struct {
	Name string
	Type *Node
}
type BlockNode struct {
	Decls []*Node
	Stmts []*Node
}
type AssignNode struct {
	Name string
	Expr *Node
}
type ArrayAssignNode struct {
	Name         string
	Index, Value *Node
}
type CallNode struct {
	Target string
	Callee string
	Args   []*Node
}
type ArrayCallNode struct {
	Target string
	Index  *Node
	Callee string
	Args   []*Node
}
type ReturnNode struct{ Expr *Node }
type IfNode struct{ Cond, Then, Else *Node }
type WhileNode struct{ Cond, Body *Node }
type BinaryOpNode struct {
	Op          Op
	Left, Right *Node
}
type UnaryOpNode struct {
	Op   Op
	Expr *Node
}
type IdentNode struct{ Name string }
type IntLitNode struct{ Value int64 }
type BoolLitNode struct{ Value bool }
type ArrayAccessNode struct {
	Name  string
	Index *Node
}
type TIntNode struct{}
type TBoolNode struct{}
type TIntArrayNode struct{ Size int64 }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, scope *symtab.Scope, data interface{}) *Node {
	return &Node{Type: nodeType, Tok: tok, Scope: scope, Data: data}
}

func NewProgram(tok token.Token, scope *symtab.Scope, funcs []*Node) *Node {
	return newNode(tok, Program, scope, ProgramNode{Funcs: funcs})
}
func NewFunc(tok token.Token, scope *symtab.Scope, name string, params []*Node, body *Node) *Node {
	return newNode(tok, Func, scope, FuncNode{Name: name, Params: params, Body: body})
}
func NewParam(tok token.Token, scope *symtab.Scope, name string, typ *Node) *Node {
	return newNode(tok, Param, scope, ParamNode{Name: name, Type: typ})
}
func NewDecl(tok token.Token, scope *symtab.Scope, name string, typ *Node) *Node {
	return newNode(tok, Decl, scope, DeclNode{Name: name, Type: typ})
}
func NewFuncBlock(tok token.Token, scope *symtab.Scope, decls, stmts []*Node) *Node {
	return newNode(tok, FuncBlock, scope, BlockNode{Decls: decls, Stmts: stmts})
}
func NewNestedBlock(tok token.Token, scope *symtab.Scope, decls, stmts []*Node) *Node {
	return newNode(tok, NestedBlock, scope, BlockNode{Decls: decls, Stmts: stmts})
}
func NewAssign(tok token.Token, scope *symtab.Scope, name string, expr *Node) *Node {
	return newNode(tok, Assign, scope, AssignNode{Name: name, Expr: expr})
}
func NewArrayAssign(tok token.Token, scope *symtab.Scope, name string, index, value *Node) *Node {
	return newNode(tok, ArrayAssign, scope, ArrayAssignNode{Name: name, Index: index, Value: value})
}
func NewCall(tok token.Token, scope *symtab.Scope, target, callee string, args []*Node) *Node {
	return newNode(tok, Call, scope, CallNode{Target: target, Callee: callee, Args: args})
}
func NewArrayCall(tok token.Token, scope *symtab.Scope, target string, index *Node, callee string, args []*Node) *Node {
	return newNode(tok, ArrayCall, scope, ArrayCallNode{Target: target, Index: index, Callee: callee, Args: args})
}
func NewReturn(tok token.Token, scope *symtab.Scope, expr *Node) *Node {
	return newNode(tok, Return, scope, ReturnNode{Expr: expr})
}
func NewIf(tok token.Token, scope *symtab.Scope, cond, then, els *Node) *Node {
	if els == nil {
		return newNode(tok, IfNoElse, scope, IfNode{Cond: cond, Then: then})
	}
	return newNode(tok, IfElse, scope, IfNode{Cond: cond, Then: then, Else: els})
}
func NewWhile(tok token.Token, scope *symtab.Scope, cond, body *Node) *Node {
	return newNode(tok, While, scope, WhileNode{Cond: cond, Body: body})
}
func NewBinaryOp(tok token.Token, scope *symtab.Scope, op Op, left, right *Node) *Node {
	return newNode(tok, BinaryOp, scope, BinaryOpNode{Op: op, Left: left, Right: right})
}
func NewUnaryOp(tok token.Token, scope *symtab.Scope, op Op, expr *Node) *Node {
	return newNode(tok, UnaryOp, scope, UnaryOpNode{Op: op, Expr: expr})
}
func NewIdent(tok token.Token, scope *symtab.Scope, name string) *Node {
	return newNode(tok, Ident, scope, IdentNode{Name: name})
}
func NewIntLit(tok token.Token, scope *symtab.Scope, value int64) *Node {
	return newNode(tok, IntLit, scope, IntLitNode{Value: value})
}
func NewBoolLit(tok token.Token, scope *symtab.Scope, value bool) *Node {
	return newNode(tok, BoolLit, scope, BoolLitNode{Value: value})
}
func NewArrayAccess(tok token.Token, scope *symtab.Scope, name string, index *Node) *Node {
	return newNode(tok, ArrayAccess, scope, ArrayAccessNode{Name: name, Index: index})
}
func NewTInt(tok token.Token) *Node  { return newNode(tok, TInt, nil, TIntNode{}) }
func NewTBool(tok token.Token) *Node { return newNode(tok, TBool, nil, TBoolNode{}) }
func NewTIntArray(tok token.Token, size int64) *Node {
	return newNode(tok, TIntArray, nil, TIntArrayNode{Size: size})
}

// Walk visits node and its descendants in pre-order. Returning false from
// visit skips the children of that node.
func Walk(node *Node, visit func(n *Node) bool) {
	if node == nil || !visit(node) {
		return
	}

	switch d := node.Data.(type) {
	case ProgramNode:
		for _, f := range d.Funcs {
			Walk(f, visit)
		}
	case FuncNode:
		for _, p := range d.Params {
			Walk(p, visit)
		}
		Walk(d.Body, visit)
	case ParamNode:
		Walk(d.Type, visit)
	case DeclNode:
		Walk(d.Type, visit)
	case BlockNode:
		for _, decl := range d.Decls {
			Walk(decl, visit)
		}
		for _, s := range d.Stmts {
			Walk(s, visit)
		}
	case AssignNode:
		Walk(d.Expr, visit)
	case ArrayAssignNode:
		Walk(d.Index, visit)
		Walk(d.Value, visit)
	case CallNode:
		for _, a := range d.Args {
			Walk(a, visit)
		}
	case ArrayCallNode:
		Walk(d.Index, visit)
		for _, a := range d.Args {
			Walk(a, visit)
		}
	case ReturnNode:
		Walk(d.Expr, visit)
	case IfNode:
		Walk(d.Cond, visit)
		Walk(d.Then, visit)
		Walk(d.Else, visit)
	case WhileNode:
		Walk(d.Cond, visit)
		Walk(d.Body, visit)
	case BinaryOpNode:
		Walk(d.Left, visit)
		Walk(d.Right, visit)
	case UnaryOpNode:
		Walk(d.Expr, visit)
	case ArrayAccessNode:
		Walk(d.Index, visit)
	}
}
