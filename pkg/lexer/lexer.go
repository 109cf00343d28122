package lexer

import (
	"unicode"

	"github.com/xplshn/sgen/pkg/token"
)

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
}

func NewLexer(source []rune, fileIndex int) *Lexer {
	return &Lexer{source: source, fileIndex: fileIndex, line: 1, column: 1}
}

// Tokenize lexes source to the end, the last token being EOF.
func Tokenize(source []rune, fileIndex int) []token.Token {
	l := NewLexer(source, fileIndex)
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func (l *Lexer) Next() token.Token {
	l.skipWhitespaceAndComments()
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine)
	}

	ch := l.advance()
	switch ch {
	case '(':
		return l.makeToken(token.LParen, "", startPos, startCol, startLine)
	case ')':
		return l.makeToken(token.RParen, "", startPos, startCol, startLine)
	case '{':
		return l.makeToken(token.LBrace, "", startPos, startCol, startLine)
	case '}':
		return l.makeToken(token.RBrace, "", startPos, startCol, startLine)
	case ':':
		return l.makeToken(token.Colon, "", startPos, startCol, startLine)
	case ',':
		return l.makeToken(token.Comma, "", startPos, startCol, startLine)
	case '^':
		return l.makeToken(token.Caret, "", startPos, startCol, startLine)
	}

	if unicode.IsDigit(ch) || (ch == '-' && unicode.IsDigit(l.peek())) {
		for unicode.IsDigit(l.peek()) {
			l.advance()
		}
		if !isDelimiter(l.peek()) {
			return l.symbol(startPos, startCol, startLine)
		}
		return l.makeToken(token.Number, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
	}
	return l.symbol(startPos, startCol, startLine)
}

func (l *Lexer) symbol(startPos, startCol, startLine int) token.Token {
	for !isDelimiter(l.peek()) {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	tok := l.makeToken(token.Ident, value, startPos, startCol, startLine)
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		tok.Type = tokType
	}
	return tok
}

func isDelimiter(ch rune) bool {
	switch ch {
	case 0, '(', ')', '{', '}', ':', ',', '^', ';':
		return true
	}
	return unicode.IsSpace(ch)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

// skipWhitespaceAndComments also drops ';' line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for !l.isAtEnd() {
		ch := l.peek()
		switch {
		case unicode.IsSpace(ch):
			l.advance()
		case ch == ';':
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}
