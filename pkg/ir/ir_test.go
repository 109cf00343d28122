package ir

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestInstructionShape(t *testing.T) {
	slot := &Slot{Name: "x", Offset: 8}
	tests := []struct {
		in           *Instruction
		text         string
		pops, pushes int
	}{
		{&Instruction{Op: OpPush, Args: []Value{&Const{Value: -3}}}, "push -3", 0, 1},
		{&Instruction{Op: OpLoad, Args: []Value{slot}}, "load x@8", 0, 1},
		{&Instruction{Op: OpStore, Args: []Value{slot}}, "store x@8", 1, 0},
		{&Instruction{Op: OpLoadElem, Args: []Value{slot}}, "loadelem x@8", 1, 1},
		{&Instruction{Op: OpStoreElem, Args: []Value{slot}}, "storeelem x@8", 2, 0},
		{&Instruction{Op: OpPushResult}, "pushres", 0, 1},
		{&Instruction{Op: OpStoreResult, Args: []Value{slot}}, "storeres x@8", 0, 0},
		{&Instruction{Op: OpCLe}, "cle", 2, 1},
		{&Instruction{Op: OpAbs}, "abs", 1, 1},
		{&Instruction{Op: OpCall, Args: []Value{&Global{Name: "f"}, &Const{Value: 3}}}, "call f, 3", 3, 0},
		{&Instruction{Op: OpReturn}, "ret", 1, 0},
		{&Instruction{Op: OpJz, Args: []Value{&Label{ID: 4}}}, "jz label4", 1, 0},
		{&Instruction{Op: OpJmp, Args: []Value{&Label{ID: 4}}}, "jmp label4", 0, 0},
	}
	for _, tc := range tests {
		be.Equal(t, tc.in.String(), tc.text)
		be.Equal(t, tc.in.Pops(), tc.pops)
		be.Equal(t, tc.in.Pushes(), tc.pushes)
	}
}

func TestOpClasses(t *testing.T) {
	be.True(t, OpDiv.IsBinary())
	be.True(t, OpCEq.IsComparison())
	be.Equal(t, OpAdd.IsComparison(), false)
	be.True(t, OpNot.IsUnary())
	be.Equal(t, OpCall.IsBinary(), false)
	be.Equal(t, Op(99).String(), "Op(99)")
}

func TestProgramListing(t *testing.T) {
	prog := &Program{WordSize: 4, Funcs: []*Func{
		{Name: "f", Params: []Param{{Name: "a", Offset: 0}}, FrameSize: 4, Body: []*Instruction{
			{Op: OpLoad, Args: []Value{&Slot{Name: "a", Offset: 0}}},
			{Op: OpReturn},
			{Op: OpLabel, Args: []Value{&Label{ID: 0}}},
		}},
		{Name: "g", FrameSize: 0},
	}}
	be.Equal(t, prog.String(), "func f(a@0) frame 4\n\tload a@0\n\tret\nlabel0:\n\nfunc g() frame 0\n")
	be.Equal(t, prog.FindFunc("g"), prog.Funcs[1])
	be.True(t, prog.FindFunc("h") == nil)
}
