// Package symtab is the symbol table consulted by the code generator: it
// resolves a name within a lexical scope to its offset in the activation
// record and reports how much local storage a scope needs.
package symtab

import "fmt"

// WordSize is the size in bytes of one storage unit.
const WordSize = 4

type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindIntArray
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindIntArray:
		return "int[]"
	case KindFunc:
		return "func"
	}
	return "unknown"
}

// Symbol is a named entry of a scope. Offset is the byte offset from the
// start of the frame's local region; Words is the storage it occupies.
type Symbol struct {
	Name   string
	Kind   Kind
	Offset int64
	Words  int64
	Params int
}

// Scope is a lexical region. All scopes of one function share a single
// allocation cursor, so offsets are unique within a frame.
type Scope struct {
	id      int
	parent  *Scope
	frame   *Scope
	symbols map[string]*Symbol
	next    int64
	extent  int64
}

func (s *Scope) Parent() *Scope { return s.parent }

// Table owns every scope of one program.
type Table struct {
	global *Scope
	scopes []*Scope
}

func NewTable() *Table {
	t := &Table{}
	t.global = t.NewScope(nil)
	return t
}

// Global is the program scope holding function symbols.
func (t *Table) Global() *Scope { return t.global }

// NewScope opens a scope nested in parent. Functions open a scope whose
// parent is the global scope; their offsets restart at zero.
func (t *Table) NewScope(parent *Scope) *Scope {
	s := &Scope{id: len(t.scopes), parent: parent, symbols: make(map[string]*Symbol)}
	s.frame = s
	if parent != nil && parent != t.global {
		s.frame = parent.frame
	}
	t.scopes = append(t.scopes, s)
	return s
}

// Contains reports whether s belongs to t.
func (t *Table) Contains(s *Scope) bool {
	return s != nil && s.id < len(t.scopes) && t.scopes[s.id] == s
}

// Declare adds name to scope, reserving words storage units.
func (t *Table) Declare(scope *Scope, name string, kind Kind, words int64) (*Symbol, error) {
	if !t.Contains(scope) {
		return nil, fmt.Errorf("scope does not belong to this table")
	}
	if _, exists := scope.symbols[name]; exists {
		return nil, fmt.Errorf("'%s' already declared in this scope", name)
	}
	sym := &Symbol{Name: name, Kind: kind, Words: words}
	if kind != KindFunc && scope != t.global {
		frame := scope.frame
		sym.Offset = frame.next
		frame.next += words * WordSize
		for s := scope; s != nil && s != t.global; s = s.parent {
			s.extent = max(s.extent, frame.next)
		}
	}
	scope.symbols[name] = sym
	return sym, nil
}

// Lookup finds name in scope or its parents; the innermost binding wins.
func (t *Table) Lookup(scope *Scope, name string) (*Symbol, bool) {
	for s := scope; s != nil; s = s.parent {
		if sym, ok := s.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// ScopeSize is the number of bytes of local storage scope and all of its
// descendants need, measured from the start of the frame's local region.
func (t *Table) ScopeSize(scope *Scope) (int64, bool) {
	if !t.Contains(scope) {
		return 0, false
	}
	return scope.extent, true
}
