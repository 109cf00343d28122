package codegen

import (
	"fmt"
	"strings"

	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/ir"
)

// qbeBackend lowers the operand-stack program to QBE IL. QBE is not a stack
// machine, so the operand stack is tracked at generation time as a stack of
// temporaries and constants.
//
// Every function allocates one frame block. A slot at local offset k lives
// at %frame + size - 4 - k, and array elements grow toward lower addresses
// from there, mirroring the i386 layout.
type qbeBackend struct {
	out        *strings.Builder
	prog       *ir.Program
	ptr        string
	frameSize  int64
	stack      []string
	result     string
	tempCount  int
	blockCount int
	terminated bool
}

func NewQBEBackend() Backend { return &qbeBackend{} }

func (b *qbeBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var qbeIRBuilder strings.Builder
	b.out = &qbeIRBuilder
	b.prog = prog
	b.ptr = cfg.PtrType
	if b.ptr == "" {
		b.ptr = "l"
	}

	for _, fn := range prog.Funcs {
		if err := b.genFunc(fn); err != nil {
			return "", fmt.Errorf("function '%s': %w", fn.Name, err)
		}
	}
	return qbeIRBuilder.String(), nil
}

func (b *qbeBackend) newTemp() string {
	t := fmt.Sprintf("%%t%d", b.tempCount)
	b.tempCount++
	return t
}

// newBlock opens a fresh block, as QBE requires after every jump.
func (b *qbeBackend) newBlock() {
	fmt.Fprintf(b.out, "@b%d\n", b.blockCount)
	b.blockCount++
	b.terminated = false
}

func (b *qbeBackend) push(v string) { b.stack = append(b.stack, v) }

func (b *qbeBackend) pop() string {
	v := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return v
}

func (b *qbeBackend) emit(format string, args ...interface{}) {
	b.out.WriteByte('\t')
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteByte('\n')
}

func (b *qbeBackend) slotAddr(off int64) string {
	addr := b.newTemp()
	b.emit("%s =%s add %%frame, %d", addr, b.ptr, b.frameSize-int64(b.prog.WordSize)-off)
	return addr
}

func (b *qbeBackend) elemAddr(off int64, index string) string {
	base := b.slotAddr(off)
	scaled := b.newTemp()
	b.emit("%s =w mul %s, %d", scaled, index, b.prog.WordSize)
	if b.ptr == "l" {
		wide := b.newTemp()
		b.emit("%s =l extsw %s", wide, scaled)
		scaled = wide
	}
	addr := b.newTemp()
	b.emit("%s =%s sub %s, %s", addr, b.ptr, base, scaled)
	return addr
}

func (b *qbeBackend) genFunc(fn *ir.Func) error {
	b.frameSize = max(fn.FrameSize, int64(b.prog.WordSize))
	b.stack, b.result, b.tempCount, b.blockCount, b.terminated = nil, "", 0, 0, false

	params := make([]string, len(fn.Params))
	for i := range fn.Params {
		params[i] = fmt.Sprintf("w %%p%d", i)
	}
	fmt.Fprintf(b.out, "\nexport function w $%s(%s) {\n@start\n", fn.Name, strings.Join(params, ", "))
	b.emit("%%frame =%s alloc4 %d", b.ptr, b.frameSize)
	b.emit("%%ret =%s alloc4 %d", b.ptr, b.prog.WordSize)
	b.emit("storew 0, %%ret")
	for i, p := range fn.Params {
		b.emit("storew %%p%d, %s", i, b.slotAddr(p.Offset))
	}

	for _, in := range fn.Body {
		if len(b.stack) < in.Pops() {
			return fmt.Errorf("operand stack underflow at '%s'", in)
		}
		if err := b.genInstr(in); err != nil {
			return err
		}
	}
	if len(b.stack) != 0 {
		return fmt.Errorf("%d operand(s) left on the stack", len(b.stack))
	}

	if b.terminated {
		b.newBlock()
	}
	v := b.newTemp()
	b.emit("%s =w loadw %%ret", v)
	b.emit("ret %s", v)
	b.out.WriteString("}\n")
	return nil
}

var qbeOps = map[ir.Op]string{
	ir.OpAdd: "add", ir.OpSub: "sub", ir.OpMul: "mul", ir.OpDiv: "div", ir.OpAnd: "and", ir.OpOr: "or",
	ir.OpCEq: "ceqw", ir.OpCNeq: "cnew", ir.OpCGt: "csgtw", ir.OpCGe: "csgew", ir.OpCLt: "csltw", ir.OpCLe: "cslew",
}

func (b *qbeBackend) genInstr(in *ir.Instruction) error {
	if in.Op == ir.OpLabel {
		if len(b.stack) != 0 {
			return fmt.Errorf("operand stack not empty at %s", in.Label())
		}
		fmt.Fprintf(b.out, "@%s\n", in.Label())
		b.terminated = false
		return nil
	}
	if b.terminated {
		b.newBlock()
	}

	if in.Op.IsBinary() {
		r, l := b.pop(), b.pop()
		t := b.newTemp()
		b.emit("%s =w %s %s, %s", t, qbeOps[in.Op], l, r)
		b.push(t)
		return nil
	}

	switch in.Op {
	case ir.OpPush:
		b.push(fmt.Sprintf("%d", in.Const()))
	case ir.OpLoad:
		addr := b.slotAddr(in.Slot().Offset)
		t := b.newTemp()
		b.emit("%s =w loadw %s", t, addr)
		b.push(t)
	case ir.OpStore:
		v := b.pop()
		b.emit("storew %s, %s", v, b.slotAddr(in.Slot().Offset))
	case ir.OpLoadElem:
		addr := b.elemAddr(in.Slot().Offset, b.pop())
		t := b.newTemp()
		b.emit("%s =w loadw %s", t, addr)
		b.push(t)
	case ir.OpStoreElem:
		index := b.pop()
		v := b.pop()
		b.emit("storew %s, %s", v, b.elemAddr(in.Slot().Offset, index))
	case ir.OpPushResult:
		b.push(b.result)
	case ir.OpStoreResult:
		b.emit("storew %s, %s", b.result, b.slotAddr(in.Slot().Offset))

	case ir.OpNeg:
		t := b.newTemp()
		b.emit("%s =w neg %s", t, b.pop())
		b.push(t)
	case ir.OpNot:
		t := b.newTemp()
		b.emit("%s =w xor %s, 1", t, b.pop())
		b.push(t)
	case ir.OpAbs:
		v := b.pop()
		mask, x, t := b.newTemp(), b.newTemp(), b.newTemp()
		b.emit("%s =w sar %s, 31", mask, v)
		b.emit("%s =w xor %s, %s", x, v, mask)
		b.emit("%s =w sub %s, %s", t, x, mask)
		b.push(t)

	case ir.OpCall:
		args := make([]string, in.NArgs())
		for i := range args {
			args[i] = "w " + b.pop()
		}
		b.result = b.newTemp()
		b.emit("%s =w call $%s(%s)", b.result, in.Callee(), strings.Join(args, ", "))
	case ir.OpReturn:
		b.emit("storew %s, %%ret", b.pop())
	case ir.OpJmp:
		b.emit("jmp @%s", in.Label())
		b.terminated = true
	case ir.OpJz:
		fall := fmt.Sprintf("@b%d", b.blockCount)
		b.emit("jnz %s, %s, @%s", b.pop(), fall, in.Label())
		b.newBlock()
	default:
		return fmt.Errorf("unsupported instruction '%s'", in.Op)
	}
	return nil
}
