// Package token defines the lexical tokens of the annotated-AST interchange format
package token

type Type int

const (
	EOF Type = iota
	Comment
	Ident
	Number

	// Form keywords
	Program
	Func
	Param
	Decl
	Block
	Assign
	AssignIndex
	Call
	CallIndex
	Return
	If
	While
	Id
	Int
	Bool
	Index
	Array
	True
	False
	Nac

	// Operators
	EqEq
	Neq
	Gt
	Gte
	Lt
	Lte
	And
	Or
	Plus
	Minus
	Star
	Slash
	Not
	Neg
	Abs

	// Punctuation
	LParen
	RParen
	LBrace
	RBrace
	Colon
	Comma
	Caret
)

var KeywordMap = map[string]Type{
	"program":      Program,
	"func":         Func,
	"param":        Param,
	"decl":         Decl,
	"block":        Block,
	"assign":       Assign,
	"assign-index": AssignIndex,
	"call":         Call,
	"call-index":   CallIndex,
	"return":       Return,
	"if":           If,
	"while":        While,
	"id":           Id,
	"int":          Int,
	"bool":         Bool,
	"index":        Index,
	"array":        Array,
	"true":         True,
	"false":        False,
	"nac":          Nac,
	"==":           EqEq,
	"!=":           Neq,
	">":            Gt,
	">=":           Gte,
	"<":            Lt,
	"<=":           Lte,
	"and":          And,
	"or":           Or,
	"+":            Plus,
	"-":            Minus,
	"*":            Star,
	"/":            Slash,
	"not":          Not,
	"neg":          Neg,
	"abs":          Abs,
}

// Reverse mapping from Type to the keyword string
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	TypeStrings[EOF] = "end of input"
	TypeStrings[Ident] = "identifier"
	TypeStrings[Number] = "number"
	TypeStrings[LParen] = "'('"
	TypeStrings[RParen] = "')'"
	TypeStrings[LBrace] = "'{'"
	TypeStrings[RBrace] = "'}'"
	TypeStrings[Colon] = "':'"
	TypeStrings[Comma] = "','"
	TypeStrings[Caret] = "'^'"
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return "unknown"
}

// IsKeyword reports whether t names a form, type or operator keyword.
func (t Type) IsKeyword() bool { return t >= Program && t <= Abs }

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
