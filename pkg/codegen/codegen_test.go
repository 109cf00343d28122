package codegen

import (
	"os"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/sgen/pkg/ast"
	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/consteval"
	"github.com/xplshn/sgen/pkg/ir"
	"github.com/xplshn/sgen/pkg/lexer"
	"github.com/xplshn/sgen/pkg/parser"
	"github.com/xplshn/sgen/pkg/symtab"
	"github.com/xplshn/sgen/pkg/token"
	"github.com/xplshn/sgen/pkg/util"
)

const subSrc = `
(program
  (func sub ((param a int) (param b int))
    (block
      (return (- (id a) (id b))))))`

func newConfig(t *testing.T, flags string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	be.Err(t, cfg.ProcessFlagString("-Wno-all "+flags), nil)
	return cfg
}

func generate(t *testing.T, src, flags string) (*ir.Program, *config.Config) {
	t.Helper()
	cfg := newConfig(t, flags)
	root, st, err := parser.NewParser(lexer.Tokenize([]rune(src), 0)).Parse()
	be.Err(t, err, nil)
	if cfg.IsFeatureEnabled(config.FeatInferConst) {
		consteval.Annotate(root)
	}
	return NewContext(cfg, st).GenerateIR(root), cfg
}

func wrap(body string) string {
	return "(program (func f () (block (decl x int) " + body + ")))"
}

func TestGenerateSubtract(t *testing.T) {
	prog, _ := generate(t, subSrc, "")
	be.Equal(t, prog.String(), `func sub(a@0, b@4) frame 8
	load a@0
	load b@4
	sub
	ret
	jmp label0
label0:
`)
}

func TestFoldedExpressionIsOnePush(t *testing.T) {
	src := wrap("(return (+ (* (int 2) (int 3)) (abs (neg (int 4)))))")

	prog, _ := generate(t, src, "")
	be.Equal(t, prog.String(), `func f() frame 4
	push 10
	ret
	jmp label0
label0:
`)

	prog, _ = generate(t, src, "-Fno-fold")
	be.Equal(t, prog.String(), `func f() frame 4
	push 2
	push 3
	mul
	push 4
	neg
	abs
	add
	ret
	jmp label0
label0:
`)
}

func TestAnnotationOnVariableIsTrusted(t *testing.T) {
	prog, _ := generate(t, wrap("(assign x (^{const: 3} id x))"), "")
	be.Equal(t, prog.Funcs[0].Body[0].String(), "push 3")

	prog, _ = generate(t, wrap("(assign x (^{const: 3} id x))"), "-Fno-fold")
	be.Equal(t, prog.Funcs[0].Body[0].String(), "load x@0")
}

func TestDeadBranchesEmitNothing(t *testing.T) {
	for _, body := range []string{
		"(if (bool false) (block (assign x (int 1))))",
		"(if (== (int 1) (int 2)) (block (assign x (int 1))))",
		"(while (bool false) (block (assign x (int 1))))",
	} {
		prog, _ := generate(t, wrap(body), "")
		be.Equal(t, prog.String(), "func f() frame 4\nlabel0:\n")
	}
}

func TestKnownIfKeepsLiveBranchOnly(t *testing.T) {
	prog, _ := generate(t, wrap("(if (bool true) (block (assign x (int 1))) (block (assign x (int 2))))"), "")
	be.Equal(t, prog.String(), "func f() frame 4\n\tpush 1\n\tstore x@0\nlabel0:\n")

	prog, _ = generate(t, wrap("(if (bool false) (block (assign x (int 1))) (block (assign x (int 2))))"), "")
	be.Equal(t, prog.String(), "func f() frame 4\n\tpush 2\n\tstore x@0\nlabel0:\n")
}

func TestKnownTrueWhileHasNoTest(t *testing.T) {
	prog, _ := generate(t, wrap("(while (bool true) (block (assign x (+ (id x) (int 1)))))"), "")
	be.Equal(t, prog.String(), `func f() frame 4
label1:
	load x@0
	push 1
	add
	store x@0
	jmp label1
label0:
`)
}

func TestIfElseAndWhileShape(t *testing.T) {
	prog, _ := generate(t, `
(program
  (func f ((param n int))
    (block
      (decl x int)
      (if (< (id n) (int 0))
        (block (assign x (int 1)))
        (block (assign x (int 2))))
      (while (> (id n) (int 0))
        (block (assign n (- (id n) (int 1)))))
      (return (id x)))))`, "")
	be.Equal(t, prog.String(), `func f(n@0) frame 8
	load n@0
	push 0
	clt
	jz label1
	push 1
	store x@4
	jmp label2
label1:
	push 2
	store x@4
label2:
label3:
	load n@0
	push 0
	cgt
	jz label4
	load n@0
	push 1
	sub
	store n@0
	jmp label3
label4:
	load x@4
	ret
	jmp label0
label0:
`)
}

func TestCallsAndElementStores(t *testing.T) {
	prog, _ := generate(t, `
(program
  (func g ((param a int) (param b int)) (block (return (id a))))
  (func f ()
    (block
      (decl x int)
      (decl arr (array 3))
      (call x g ((int 1) (id x)))
      (call-index arr (id x) g ((int 5) (int 6)))
      (assign-index arr (int 2) (index arr (int 1)))
      (call x ext ()))))`, "")
	f := prog.FindFunc("f")
	be.True(t, f != nil)

	var got []string
	for _, in := range f.Body {
		got = append(got, in.String())
	}
	be.Equal(t, strings.Join(got, "\n"), strings.Join([]string{
		"load x@0", "push 1", "call g, 2", "storeres x@0",
		"push 6", "push 5", "call g, 2", "pushres", "load x@0", "storeelem arr@4",
		"push 1", "loadelem arr@4", "push 2", "storeelem arr@4",
		"call ext, 0", "storeres x@0",
		"label label1",
	}, "\n"))
	be.Equal(t, f.FrameSize, int64(16))
}

func TestLabelsAreUniqueAcrossFunctions(t *testing.T) {
	fn := func(name string) string {
		return `(func ` + name + ` ((param n int))
    (block
      (if (id n) (block (assign n (int 0))) (block (assign n (int 1))))
      (while (id n) (block (assign n (int 0))))
      (return (id n))))`
	}
	prog, _ := generate(t, "(program "+fn("a")+fn("b")+fn("c")+")", "")

	seen := make(map[int]bool)
	for _, f := range prog.Funcs {
		defined := make(map[int]bool)
		var targets []int
		for _, in := range f.Body {
			switch in.Op {
			case ir.OpLabel:
				be.Equal(t, seen[in.Label().ID], false)
				seen[in.Label().ID] = true
				defined[in.Label().ID] = true
			case ir.OpJmp, ir.OpJz:
				targets = append(targets, in.Label().ID)
			}
		}
		be.True(t, len(targets) > 0)
		for _, id := range targets {
			be.True(t, defined[id])
		}
	}
	be.Equal(t, len(seen), 15)
}

func TestStatementAfterReturnWarns(t *testing.T) {
	var out strings.Builder
	util.WarnOutput = &out
	t.Cleanup(func() { util.WarnOutput = os.Stderr })

	src := wrap("(if (id x) (block (return (int 1)) (assign x (int 2)))) (return (id x))")
	generate(t, src, "")
	be.Equal(t, out.String(), "")

	generate(t, src, "-Wextra")
	be.True(t, strings.Contains(out.String(), "statement after return is never executed [-Wextra]"))
	be.Equal(t, strings.Count(out.String(), "warning:"), 1)
}

func TestOperandStackBalancesAtStatementBoundaries(t *testing.T) {
	prog, _ := generate(t, `
(program
  (func f ((param a int) (param b int))
    (block
      (decl r (array 2))
      (assign a (or (and (>= (id a) (id b)) (!= (id a) (int 0))) (not (<= (id b) (int 3)))))
      (assign-index r (/ (id a) (int 2)) (* (id b) (index r (int 0))))
      (if (id a) (block (return (abs (id b))))))))`, "-Fno-fold")

	depth := 0
	for _, in := range prog.Funcs[0].Body {
		be.True(t, depth >= in.Pops())
		depth += in.Pushes() - in.Pops()
		switch in.Op {
		case ir.OpStore, ir.OpStoreElem, ir.OpJz, ir.OpLabel, ir.OpReturn:
			be.Equal(t, depth, 0)
		}
	}
	be.Equal(t, depth, 0)
}

func expectPrecondition(t *testing.T, f func()) *PreconditionError {
	t.Helper()
	var pe *PreconditionError
	func() {
		defer func() {
			r := recover()
			var ok bool
			pe, ok = r.(*PreconditionError)
			be.True(t, ok)
		}()
		f()
	}()
	return pe
}

func TestPreconditionViolations(t *testing.T) {
	cfg := newConfig(t, "")
	tok := token.Token{Line: 3, Column: 7}

	t.Run("not a program", func(t *testing.T) {
		pe := expectPrecondition(t, func() { NewContext(cfg, symtab.NewTable()).GenerateIR(nil) })
		be.Err(t, pe, "root is not a program")
	})

	t.Run("foreign scope", func(t *testing.T) {
		st, other := symtab.NewTable(), symtab.NewTable()
		scope := other.NewScope(other.Global())
		body := ast.NewFuncBlock(tok, scope, nil, nil)
		root := ast.NewProgram(tok, st.Global(), []*ast.Node{ast.NewFunc(tok, st.Global(), "f", nil, body)})
		pe := expectPrecondition(t, func() { NewContext(cfg, st).GenerateIR(root) })
		be.Err(t, pe, "function 'f' has no resolvable scope")
	})

	t.Run("unresolved name", func(t *testing.T) {
		st := symtab.NewTable()
		scope := st.NewScope(st.Global())
		assign := ast.NewAssign(tok, scope, "ghost", ast.NewIntLit(tok, scope, 1))
		body := ast.NewFuncBlock(tok, scope, nil, []*ast.Node{assign})
		root := ast.NewProgram(tok, st.Global(), []*ast.Node{ast.NewFunc(tok, st.Global(), "f", nil, body)})
		pe := expectPrecondition(t, func() { NewContext(cfg, st).GenerateIR(root) })
		be.Equal(t, pe.Error(), "codegen precondition violated at 3:7: unresolved variable 'ghost'")
	})
}

func TestFingerprint(t *testing.T) {
	render := func(src string) string {
		prog, cfg := generate(t, src, "")
		text, err := NewI386Backend().GenerateIR(prog, cfg)
		be.Err(t, err, nil)
		return text
	}
	be.Equal(t, Fingerprint(render(subSrc)), Fingerprint(render(subSrc)))
	be.True(t, Fingerprint(render(subSrc)) != Fingerprint(render(wrap("(return (int 1))"))))
}

func TestSelectBackend(t *testing.T) {
	_, err := SelectBackend("i386")
	be.Err(t, err, nil)
	_, err = SelectBackend("qbe")
	be.Err(t, err, nil)
	_, err = SelectBackend("arm")
	be.Err(t, err, "unsupported backend 'arm'")
}
