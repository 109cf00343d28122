// Package vm executes an ir.Program under the same frame model the i386
// backend emits: a downward-growing word stack addressed through %ebp and
// %esp, the result in %eax, and %ebx/%edx as scratch registers that every
// function saves and restores.
package vm

import (
	"errors"
	"fmt"
	"math"

	"github.com/xplshn/sgen/pkg/ir"
)

var (
	ErrDivideByZero      = errors.New("divide error")
	ErrStepLimit         = errors.New("step limit exceeded")
	ErrUndefinedFunction = errors.New("undefined function")
	ErrStackFault        = errors.New("stack fault")
)

const (
	stackTop         = 1 << 24
	returnSentinel   = int32(-0x21524111)
	DefaultStepLimit = 1_000_000
	maxDepth         = 4096
)

// Native implements an external function. Arguments are in declaration
// order.
type Native func(args []int32) (int32, error)

// Machine is a single-threaded interpreter. The zero value is not usable;
// call New.
type Machine struct {
	prog    *ir.Program
	natives map[string]Native
	labels  map[*ir.Func]map[int]int
	mem     map[int64]int32

	eax, ebx, edx int32
	esp, ebp      int64
	word          int64
	depth         int
	steps         int

	// StepLimit bounds the number of executed instructions per Call.
	StepLimit int
	// OnExit, if set, is called with the frame base of every function just
	// before its epilogue runs.
	OnExit func(fn *ir.Func, ebp int64)
}

func New(prog *ir.Program) *Machine {
	word := int64(prog.WordSize)
	if word == 0 {
		word = 4
	}
	return &Machine{
		prog:      prog,
		natives:   make(map[string]Native),
		labels:    make(map[*ir.Func]map[int]int),
		mem:       make(map[int64]int32),
		esp:       stackTop,
		word:      word,
		StepLimit: DefaultStepLimit,
	}
}

// Register binds name to a native implementation for calls that leave the
// program.
func (m *Machine) Register(name string, fn Native) { m.natives[name] = fn }

// Load reads the word at addr.
func (m *Machine) Load(addr int64) int32 { return m.mem[addr] }

// Local is the value of the frame slot at local offset off (plus element
// index) in the frame based at ebp.
func (m *Machine) Local(ebp, off, index int64) int32 {
	return m.mem[ebp-3*m.word-off-index*m.word]
}

// Call runs name with args the way compiled code would call it and returns
// its result.
func (m *Machine) Call(name string, args ...int32) (int32, error) {
	m.steps = 0
	esp, ebp := m.esp, m.ebp
	for i := len(args) - 1; i >= 0; i-- {
		m.push(args[i])
	}
	if err := m.invoke(name, len(args)); err != nil {
		m.esp, m.ebp, m.depth = esp, ebp, 0
		return 0, err
	}
	m.esp += int64(len(args)) * m.word
	return m.eax, nil
}

func (m *Machine) push(v int32) {
	m.esp -= m.word
	m.mem[m.esp] = v
}

func (m *Machine) pop() int32 {
	v := m.mem[m.esp]
	m.esp += m.word
	return v
}

func (m *Machine) invoke(name string, nargs int) error {
	fn := m.prog.FindFunc(name)
	if fn == nil {
		native, ok := m.natives[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUndefinedFunction, name)
		}
		args := make([]int32, nargs)
		for i := range args {
			args[i] = m.mem[m.esp+int64(i)*m.word]
		}
		v, err := native(args)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		m.eax = v
		return nil
	}
	if len(fn.Params) != nargs {
		return fmt.Errorf("%w: %s takes %d argument(s), called with %d", ErrStackFault, name, len(fn.Params), nargs)
	}
	if m.depth >= maxDepth {
		return fmt.Errorf("%w: call depth exceeds %d in %s", ErrStackFault, maxDepth, name)
	}
	m.depth++
	defer func() { m.depth-- }()

	m.push(returnSentinel)
	m.push(int32(m.ebp))
	m.ebp = m.esp
	m.push(m.ebx)
	m.push(m.edx)
	m.esp -= fn.FrameSize
	for _, p := range fn.Params {
		m.mem[m.ebp-3*m.word-p.Offset] = m.mem[m.ebp+2*m.word+p.Offset]
	}

	if err := m.run(fn); err != nil {
		return fmt.Errorf("%s: %w", fn.Name, err)
	}

	if want := m.ebp - 2*m.word - fn.FrameSize; m.esp != want {
		return fmt.Errorf("%s: %w: %%esp is off by %d at exit", fn.Name, ErrStackFault, want-m.esp)
	}
	if m.OnExit != nil {
		m.OnExit(fn, m.ebp)
	}
	m.esp += fn.FrameSize
	m.edx = m.pop()
	m.ebx = m.pop()
	m.ebp = int64(m.pop())
	if ret := m.pop(); ret != returnSentinel {
		return fmt.Errorf("%s: %w: return address clobbered", fn.Name, ErrStackFault)
	}
	return nil
}

func (m *Machine) labelIndex(fn *ir.Func) map[int]int {
	if idx, ok := m.labels[fn]; ok {
		return idx
	}
	idx := make(map[int]int)
	for pc, in := range fn.Body {
		if in.Op == ir.OpLabel {
			idx[in.Label().ID] = pc
		}
	}
	m.labels[fn] = idx
	return idx
}

func (m *Machine) elem(s *ir.Slot) int64 {
	m.eax = -m.pop()
	return m.ebp - 3*m.word - s.Offset + int64(m.eax)*m.word
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) run(fn *ir.Func) error {
	labels := m.labelIndex(fn)
	for pc := 0; pc < len(fn.Body); pc++ {
		m.steps++
		if m.StepLimit > 0 && m.steps > m.StepLimit {
			return ErrStepLimit
		}
		if m.esp <= 0 {
			return fmt.Errorf("%w: stack exhausted", ErrStackFault)
		}

		in := fn.Body[pc]
		if in.Op.IsBinary() {
			m.ebx = m.pop()
			m.eax = m.pop()
			if err := m.binary(in.Op); err != nil {
				return err
			}
			m.push(m.eax)
			continue
		}

		switch in.Op {
		case ir.OpPush:
			m.push(int32(in.Const()))
		case ir.OpLoad:
			m.push(m.mem[m.ebp-3*m.word-in.Slot().Offset])
		case ir.OpStore:
			m.mem[m.ebp-3*m.word-in.Slot().Offset] = m.pop()
		case ir.OpLoadElem:
			m.push(m.mem[m.elem(in.Slot())])
		case ir.OpStoreElem:
			addr := m.elem(in.Slot())
			m.mem[addr] = m.pop()
		case ir.OpPushResult:
			m.push(m.eax)
		case ir.OpStoreResult:
			m.mem[m.ebp-3*m.word-in.Slot().Offset] = m.eax
		case ir.OpNeg:
			m.eax = -m.pop()
			m.push(m.eax)
		case ir.OpNot:
			m.eax = m.pop() ^ 1
			m.push(m.eax)
		case ir.OpAbs:
			m.eax = m.pop()
			m.edx = m.eax >> 31
			m.eax = (m.eax ^ m.edx) - m.edx
			m.push(m.eax)
		case ir.OpCall:
			if err := m.invoke(in.Callee(), in.NArgs()); err != nil {
				return err
			}
			m.esp += int64(in.NArgs()) * m.word
		case ir.OpReturn:
			m.eax = m.pop()
		case ir.OpLabel:
		case ir.OpJmp:
			pc = labels[in.Label().ID]
		case ir.OpJz:
			m.eax = m.pop()
			if m.eax == 0 {
				pc = labels[in.Label().ID]
			}
		default:
			return fmt.Errorf("unsupported instruction '%s'", in.Op)
		}
	}
	return nil
}

func (m *Machine) binary(op ir.Op) error {
	a, b := m.eax, m.ebx
	switch op {
	case ir.OpAdd:
		m.eax = a + b
	case ir.OpSub:
		m.eax = a - b
	case ir.OpMul:
		m.eax = a * b
		m.edx = int32((int64(a) * int64(b)) >> 32)
	case ir.OpDiv:
		if b == 0 || (a == math.MinInt32 && b == -1) {
			return fmt.Errorf("%w: %d / %d", ErrDivideByZero, a, b)
		}
		m.eax, m.edx = a/b, a%b
	case ir.OpAnd:
		m.eax = a & b
	case ir.OpOr:
		m.eax = a | b
	case ir.OpCEq:
		m.eax = b2i(a == b)
	case ir.OpCNeq:
		m.eax = b2i(a != b)
	case ir.OpCGt:
		m.eax = b2i(a > b)
	case ir.OpCGe:
		m.eax = b2i(a >= b)
	case ir.OpCLt:
		m.eax = b2i(a < b)
	case ir.OpCLe:
		m.eax = b2i(a <= b)
	}
	return nil
}
