package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/ir"
)

// i386Backend renders AT&T syntax for a cdecl, frame-pointer based
// convention. The operand stack is the machine stack.
//
// Frame layout, high to low: arguments, return address, saved %ebp, saved
// %ebx, saved %edx, locals. Parameters are copied into ordinary local slots
// on entry.
type i386Backend struct {
	out      *strings.Builder
	wordSize int64
	comments bool
}

func NewI386Backend() Backend { return &i386Backend{} }

func (b *i386Backend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var sb strings.Builder
	b.out = &sb
	b.wordSize = int64(prog.WordSize)
	b.comments = cfg.IsFeatureEnabled(config.FeatFrameComments)

	sb.WriteString(".text\n")
	for _, fn := range prog.Funcs {
		if err := b.genFunc(fn); err != nil {
			return "", fmt.Errorf("function '%s': %w", fn.Name, err)
		}
	}
	return sb.String(), nil
}

func (b *i386Backend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	text, err := b.GenerateIR(prog, cfg)
	if err != nil {
		return nil, err
	}
	return bytes.NewBufferString(text), nil
}

// local is the %ebp-relative address of a frame slot; arg is that of an
// incoming argument.
func (b *i386Backend) local(off int64) int64 { return -3*b.wordSize - off }
func (b *i386Backend) arg(off int64) int64   { return 2*b.wordSize + off }

func (b *i386Backend) emit(format string, args ...interface{}) {
	b.out.WriteByte('\t')
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteByte('\n')
}

func (b *i386Backend) emitSlot(s *ir.Slot, format string, args ...interface{}) {
	b.out.WriteByte('\t')
	fmt.Fprintf(b.out, format, args...)
	if b.comments {
		fmt.Fprintf(b.out, "\t# %s", s.Name)
	}
	b.out.WriteByte('\n')
}

func (b *i386Backend) genFunc(fn *ir.Func) error {
	fmt.Fprintf(b.out, "\n.globl %s\n%s:\n", fn.Name, fn.Name)
	b.emit("pushl %%ebp")
	b.emit("movl %%esp, %%ebp")
	b.emit("pushl %%ebx")
	b.emit("pushl %%edx")
	b.emit("subl $%d, %%esp", fn.FrameSize)
	for _, p := range fn.Params {
		b.emit("movl %d(%%ebp), %%eax", b.arg(p.Offset))
		b.emitSlot(&ir.Slot{Name: p.Name, Offset: p.Offset}, "movl %%eax, %d(%%ebp)", b.local(p.Offset))
	}

	for _, in := range fn.Body {
		if err := b.genInstr(in); err != nil {
			return err
		}
	}

	b.emit("addl $%d, %%esp", fn.FrameSize)
	b.emit("popl %%edx")
	b.emit("popl %%ebx")
	b.emit("popl %%ebp")
	b.emit("ret")
	return nil
}

var i386Arith = map[ir.Op]string{
	ir.OpAdd: "addl", ir.OpSub: "subl", ir.OpAnd: "andl", ir.OpOr: "orl",
}

var i386SetCC = map[ir.Op]string{
	ir.OpCEq: "sete", ir.OpCNeq: "setne", ir.OpCGt: "setg",
	ir.OpCGe: "setge", ir.OpCLt: "setl", ir.OpCLe: "setle",
}

// i386Label names a branch target. The .L prefix keeps it assembler-local,
// so it cannot clash with a function symbol.
func i386Label(l *ir.Label) string { return fmt.Sprintf(".L%d", l.ID) }

func (b *i386Backend) genInstr(in *ir.Instruction) error {
	if in.Op.IsComparison() {
		b.emit("popl %%ebx")
		b.emit("popl %%eax")
		b.emit("cmpl %%ebx, %%eax")
		b.emit("%s %%al", i386SetCC[in.Op])
		b.emit("andl $255, %%eax")
		b.emit("pushl %%eax")
		return nil
	}

	switch in.Op {
	case ir.OpPush:
		b.emit("pushl $%d", in.Const())
	case ir.OpLoad:
		b.emitSlot(in.Slot(), "pushl %d(%%ebp)", b.local(in.Slot().Offset))
	case ir.OpStore:
		b.emitSlot(in.Slot(), "popl %d(%%ebp)", b.local(in.Slot().Offset))
	case ir.OpLoadElem:
		b.emit("popl %%eax")
		b.emit("negl %%eax")
		b.emitSlot(in.Slot(), "pushl %d(%%ebp, %%eax, %d)", b.local(in.Slot().Offset), b.wordSize)
	case ir.OpStoreElem:
		b.emit("popl %%eax")
		b.emit("negl %%eax")
		b.emitSlot(in.Slot(), "popl %d(%%ebp, %%eax, %d)", b.local(in.Slot().Offset), b.wordSize)
	case ir.OpPushResult:
		b.emit("pushl %%eax")
	case ir.OpStoreResult:
		b.emitSlot(in.Slot(), "movl %%eax, %d(%%ebp)", b.local(in.Slot().Offset))

	case ir.OpAdd, ir.OpSub, ir.OpAnd, ir.OpOr:
		b.emit("popl %%ebx")
		b.emit("popl %%eax")
		b.emit("%s %%ebx, %%eax", i386Arith[in.Op])
		b.emit("pushl %%eax")
	case ir.OpMul:
		b.emit("popl %%ebx")
		b.emit("popl %%eax")
		b.emit("imull %%ebx")
		b.emit("pushl %%eax")
	case ir.OpDiv:
		b.emit("popl %%ebx")
		b.emit("popl %%eax")
		b.emit("cdq")
		b.emit("idivl %%ebx")
		b.emit("pushl %%eax")
	case ir.OpNeg:
		b.emit("popl %%eax")
		b.emit("negl %%eax")
		b.emit("pushl %%eax")
	case ir.OpNot:
		b.emit("popl %%eax")
		b.emit("xorl $1, %%eax")
		b.emit("pushl %%eax")
	case ir.OpAbs:
		b.emit("popl %%eax")
		b.emit("cdq")
		b.emit("xorl %%edx, %%eax")
		b.emit("subl %%edx, %%eax")
		b.emit("pushl %%eax")

	case ir.OpCall:
		b.emit("call %s", in.Callee())
		b.emit("addl $%d, %%esp", int64(in.NArgs())*b.wordSize)
	case ir.OpReturn:
		b.emit("popl %%eax")
	case ir.OpLabel:
		fmt.Fprintf(b.out, "%s:\n", i386Label(in.Label()))
	case ir.OpJmp:
		b.emit("jmp %s", i386Label(in.Label()))
	case ir.OpJz:
		b.emit("popl %%eax")
		b.emit("testl %%eax, %%eax")
		b.emit("jz %s", i386Label(in.Label()))
	default:
		return fmt.Errorf("unsupported instruction '%s'", in.Op)
	}
	return nil
}
