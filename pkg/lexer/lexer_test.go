package lexer

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/sgen/pkg/token"
)

func types(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestTokenizeForms(t *testing.T) {
	toks := Tokenize([]rune("(func f ((param a int)) ; comment\n (int -5))"), 0)
	be.Equal(t, types(toks), []token.Type{
		token.LParen, token.Func, token.Ident, token.LParen, token.LParen, token.Param,
		token.Ident, token.Int, token.RParen, token.RParen,
		token.LParen, token.Int, token.Number, token.RParen, token.RParen, token.EOF,
	})
	be.Equal(t, toks[2].Value, "f")
	be.Equal(t, toks[12].Value, "-5")
}

func TestTokenizeOperators(t *testing.T) {
	toks := Tokenize([]rune("== != >= <= > < + - * / and or not neg abs"), 0)
	be.Equal(t, types(toks), []token.Type{
		token.EqEq, token.Neq, token.Gte, token.Lte, token.Gt, token.Lt,
		token.Plus, token.Minus, token.Star, token.Slash,
		token.And, token.Or, token.Not, token.Neg, token.Abs, token.EOF,
	})
}

func TestTokenizeMeta(t *testing.T) {
	toks := Tokenize([]rune("^{const: 7, const: nac}"), 0)
	be.Equal(t, types(toks), []token.Type{
		token.Caret, token.LBrace, token.Ident, token.Colon, token.Number, token.Comma,
		token.Ident, token.Colon, token.Nac, token.RBrace, token.EOF,
	})
	be.Equal(t, toks[2].Value, "const")
}

func TestTokenizeSymbolsThatLookNumeric(t *testing.T) {
	toks := Tokenize([]rune("12abc -x 3"), 0)
	be.Equal(t, types(toks), []token.Type{token.Ident, token.Ident, token.Number, token.EOF})
	be.Equal(t, toks[0].Value, "12abc")
	be.Equal(t, toks[1].Value, "-x")
}

func TestTokenPositions(t *testing.T) {
	toks := Tokenize([]rune("(program\n  (func main"), 3)
	be.Equal(t, toks[0].Line, 1)
	be.Equal(t, toks[0].Column, 1)
	be.Equal(t, toks[2].Line, 2)
	be.Equal(t, toks[2].Column, 3)
	be.Equal(t, toks[4].Value, "main")
	be.Equal(t, toks[4].Len, 4)
	be.Equal(t, toks[4].FileIndex, 3)
}

func TestTokenizeEmpty(t *testing.T) {
	toks := Tokenize([]rune("  ; only a comment"), 0)
	be.Equal(t, len(toks), 1)
	be.Equal(t, toks[0].Type, token.EOF)
}
