// Package ir is the instruction sink of the code generator: a flat,
// ordered list of operand-stack instructions per function that the
// backends render as target text.
package ir

import (
	"fmt"
	"strings"
)

type Op int

const (
	OpPush        Op = iota // push Const
	OpLoad                  // push Slot
	OpStore                 // pop into Slot
	OpLoadElem              // pop index, push Slot[index]
	OpStoreElem             // pop index, pop value, Slot[index] = value
	OpPushResult            // push the result register
	OpStoreResult           // Slot = result register
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpCEq
	OpCNeq
	OpCGt
	OpCGe
	OpCLt
	OpCLe
	OpNeg
	OpNot
	OpAbs
	OpCall   // call Global with Const arguments on the stack, caller cleans up
	OpReturn // pop into the result register
	OpLabel
	OpJmp
	OpJz // pop, jump to Label when zero
)

var opNames = [...]string{
	OpPush: "push", OpLoad: "load", OpStore: "store", OpLoadElem: "loadelem", OpStoreElem: "storeelem",
	OpPushResult: "pushres", OpStoreResult: "storeres",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpAnd: "and", OpOr: "or",
	OpCEq: "ceq", OpCNeq: "cne", OpCGt: "cgt", OpCGe: "cge", OpCLt: "clt", OpCLe: "cle",
	OpNeg: "neg", OpNot: "not", OpAbs: "abs",
	OpCall: "call", OpReturn: "ret", OpLabel: "label", OpJmp: "jmp", OpJz: "jz",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsBinary reports whether o pops two operands and pushes one.
func (o Op) IsBinary() bool { return o >= OpAdd && o <= OpCLe }

// IsUnary reports whether o pops one operand and pushes one.
func (o Op) IsUnary() bool { return o >= OpNeg && o <= OpAbs }

// IsComparison reports whether o pushes a canonical 0/1.
func (o Op) IsComparison() bool { return o >= OpCEq && o <= OpCLe }

type Value interface {
	isValue()
	String() string
}

type Const struct{ Value int64 }

// Slot is a frame-local storage unit. Offset is measured from the start of
// the frame's local region, as the symbol table reports it.
type Slot struct {
	Name   string
	Offset int64
}

type Label struct{ ID int }
type Global struct{ Name string }

func (c *Const) isValue()  {}
func (s *Slot) isValue()   {}
func (l *Label) isValue()  {}
func (g *Global) isValue() {}

func (c *Const) String() string  { return fmt.Sprintf("%d", c.Value) }
func (s *Slot) String() string   { return fmt.Sprintf("%s@%d", s.Name, s.Offset) }
func (l *Label) String() string  { return fmt.Sprintf("label%d", l.ID) }
func (g *Global) String() string { return g.Name }

type Instruction struct {
	Op   Op
	Args []Value
}

func (in *Instruction) Const() int64   { return in.Args[0].(*Const).Value }
func (in *Instruction) Slot() *Slot    { return in.Args[0].(*Slot) }
func (in *Instruction) Label() *Label  { return in.Args[0].(*Label) }
func (in *Instruction) Callee() string { return in.Args[0].(*Global).Name }

// NArgs is the argument count of an OpCall.
func (in *Instruction) NArgs() int { return int(in.Args[1].(*Const).Value) }

// Pops is the number of operand-stack words it consumes.
func (in *Instruction) Pops() int {
	switch {
	case in.Op.IsBinary(), in.Op == OpStoreElem:
		return 2
	case in.Op.IsUnary(), in.Op == OpStore, in.Op == OpLoadElem, in.Op == OpReturn, in.Op == OpJz:
		return 1
	case in.Op == OpCall:
		return in.NArgs()
	}
	return 0
}

// Pushes is the number of operand-stack words it leaves.
func (in *Instruction) Pushes() int {
	switch {
	case in.Op.IsBinary(), in.Op.IsUnary():
		return 1
	case in.Op == OpPush, in.Op == OpLoad, in.Op == OpLoadElem, in.Op == OpPushResult:
		return 1
	}
	return 0
}

func (in *Instruction) String() string {
	if len(in.Args) == 0 {
		return in.Op.String()
	}
	args := make([]string, len(in.Args))
	for i, a := range in.Args {
		args[i] = a.String()
	}
	return in.Op.String() + " " + strings.Join(args, ", ")
}

type Param struct {
	Name   string
	Offset int64
}

// Func is one function. Params are listed in declaration order; FrameSize
// is the local storage in bytes reserved by the prologue.
type Func struct {
	Name      string
	Params    []Param
	FrameSize int64
	Body      []*Instruction
}

type Program struct {
	Funcs    []*Func
	WordSize int
}

func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// String renders the program as a listing, one instruction per line.
func (p *Program) String() string {
	var sb strings.Builder
	for i, f := range p.Funcs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		params := make([]string, len(f.Params))
		for j, prm := range f.Params {
			params[j] = fmt.Sprintf("%s@%d", prm.Name, prm.Offset)
		}
		fmt.Fprintf(&sb, "func %s(%s) frame %d\n", f.Name, strings.Join(params, ", "), f.FrameSize)
		for _, in := range f.Body {
			if in.Op == OpLabel {
				fmt.Fprintf(&sb, "%s:\n", in.Label())
				continue
			}
			fmt.Fprintf(&sb, "\t%s\n", in)
		}
	}
	return sb.String()
}
