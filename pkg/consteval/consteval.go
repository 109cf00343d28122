// Package consteval is a conservative constant annotator. It only marks an
// expression known when every leaf below it is a literal, so no elided
// subtree can ever contain a side effect.
package consteval

import (
	"math"

	"github.com/xplshn/sgen/pkg/ast"
)

// Annotate fills unresolved expression annotations below root and returns
// how many nodes it resolved. Existing annotations are left untouched.
func Annotate(root *ast.Node) int {
	count := 0
	ast.Walk(root, func(n *ast.Node) bool {
		if n.Type.IsExpr() {
			count += annotateExpr(n)
			return false
		}
		return true
	})
	return count
}

func annotateExpr(n *ast.Node) int {
	count := 0
	resolve := func(c ast.ConstValue) {
		if n.Const.State == ast.ConstUnresolved && c.State != ast.ConstUnresolved {
			n.Const = c
			count++
		}
	}

	switch d := n.Data.(type) {
	case ast.IntLitNode:
		resolve(ast.Known(d.Value))
	case ast.BoolLitNode:
		if d.Value {
			resolve(ast.Known(1))
		} else {
			resolve(ast.Known(0))
		}
	case ast.ArrayAccessNode:
		count += annotateExpr(d.Index)
	case ast.UnaryOpNode:
		count += annotateExpr(d.Expr)
		resolve(Unary(d.Op, d.Expr.Const))
	case ast.BinaryOpNode:
		count += annotateExpr(d.Left)
		count += annotateExpr(d.Right)
		resolve(Binary(d.Op, d.Left.Const, d.Right.Const))
	}
	return count
}

func combine(a, b ast.ConstValue) (ast.ConstValue, bool) {
	if a.State == ast.ConstNotConstant || b.State == ast.ConstNotConstant {
		return ast.NotConstant(), false
	}
	if a.State == ast.ConstUnresolved || b.State == ast.ConstUnresolved {
		return ast.ConstValue{}, false
	}
	return ast.ConstValue{}, true
}

// Binary folds op over two annotations with 32-bit wrap-around. Division
// by zero and the trapping INT_MIN / -1 are not constants.
func Binary(op ast.Op, left, right ast.ConstValue) ast.ConstValue {
	if c, ok := combine(left, right); !ok {
		return c
	}
	l, r := int32(left.Value), int32(right.Value)
	var res int32
	switch op {
	case ast.OpPlus:
		res = l + r
	case ast.OpMinus:
		res = l - r
	case ast.OpTimes:
		res = l * r
	case ast.OpDiv:
		if r == 0 || (l == math.MinInt32 && r == -1) {
			return ast.NotConstant()
		}
		res = l / r
	case ast.OpAnd:
		res = l & r
	case ast.OpOr:
		res = l | r
	case ast.OpEq:
		res = b2i(l == r)
	case ast.OpNeq:
		res = b2i(l != r)
	case ast.OpGt:
		res = b2i(l > r)
	case ast.OpGte:
		res = b2i(l >= r)
	case ast.OpLt:
		res = b2i(l < r)
	case ast.OpLte:
		res = b2i(l <= r)
	default:
		return ast.NotConstant()
	}
	return ast.Known(int64(res))
}

// Unary folds op over one annotation.
func Unary(op ast.Op, operand ast.ConstValue) ast.ConstValue {
	if c, ok := combine(operand, operand); !ok {
		return c
	}
	v := int32(operand.Value)
	switch op {
	case ast.OpNot:
		return ast.Known(int64(b2i(v == 0)))
	case ast.OpNeg:
		return ast.Known(int64(-v))
	case ast.OpAbs:
		mask := v >> 31
		return ast.Known(int64((v ^ mask) - mask))
	}
	return ast.NotConstant()
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
