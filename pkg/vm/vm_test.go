package vm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/sgen/pkg/codegen"
	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/consteval"
	"github.com/xplshn/sgen/pkg/ir"
	"github.com/xplshn/sgen/pkg/lexer"
	"github.com/xplshn/sgen/pkg/parser"
)

func compile(t *testing.T, src, flags string) *ir.Program {
	t.Helper()
	cfg := config.NewConfig()
	be.Err(t, cfg.ProcessFlagString("-Wno-all "+flags), nil)
	root, st, err := parser.NewParser(lexer.Tokenize([]rune(src), 0)).Parse()
	be.Err(t, err, nil)
	if cfg.IsFeatureEnabled(config.FeatInferConst) {
		consteval.Annotate(root)
	}
	return codegen.NewContext(cfg, st).GenerateIR(root)
}

const roundTrip = `
(program
  (func sub ((param a int) (param b int))
    (block (return (- (id a) (id b)))))
  (func main ()
    (block
      (decl x int)
      (call x sub ((int 3) (int 10)))
      (return (id x)))))`

func TestCallResultLandsInTarget(t *testing.T) {
	m := New(compile(t, roundTrip, ""))
	var x int32
	m.OnExit = func(fn *ir.Func, ebp int64) {
		if fn.Name == "main" {
			x = m.Local(ebp, 0, 0)
		}
	}
	v, err := m.Call("main")
	be.Err(t, err, nil)
	be.Equal(t, v, int32(-7))
	be.Equal(t, x, int32(-7))
	be.Equal(t, m.esp, int64(stackTop))
}

func TestArgumentsInDeclarationOrder(t *testing.T) {
	m := New(compile(t, roundTrip, ""))
	v, err := m.Call("sub", 10, 3)
	be.Err(t, err, nil)
	be.Equal(t, v, int32(7))
}

func TestArrayElementsDoNotAlias(t *testing.T) {
	prog := compile(t, `
(program
  (func f ()
    (block
      (decl a (array 5))
      (decl after int)
      (assign after (int 7))
      (assign-index a (int 0) (int 11))
      (assign-index a (int 4) (int 44))
      (assign-index a (int 2) (int 9))
      (return (index a (int 2))))))`, "")
	m := New(prog)
	var elems [5]int32
	var after int32
	m.OnExit = func(fn *ir.Func, ebp int64) {
		for i := range elems {
			elems[i] = m.Local(ebp, 0, int64(i))
		}
		after = m.Local(ebp, 20, 0)
	}
	v, err := m.Call("f")
	be.Err(t, err, nil)
	be.Equal(t, v, int32(9))
	be.Equal(t, elems, [5]int32{11, 0, 9, 0, 44})
	be.Equal(t, after, int32(7))
}

func TestCallIntoElement(t *testing.T) {
	prog := compile(t, `
(program
  (func twice ((param v int)) (block (return (* (id v) (int 2)))))
  (func f ((param i int))
    (block
      (decl a (array 3))
      (call-index a (id i) twice ((int 21)))
      (return (index a (id i))))))`, "")
	v, err := New(prog).Call("f", 2)
	be.Err(t, err, nil)
	be.Equal(t, v, int32(42))
}

func TestComparisonsAreCanonical(t *testing.T) {
	ops := map[string]func(a, b int32) bool{
		"==": func(a, b int32) bool { return a == b },
		"!=": func(a, b int32) bool { return a != b },
		">":  func(a, b int32) bool { return a > b },
		">=": func(a, b int32) bool { return a >= b },
		"<":  func(a, b int32) bool { return a < b },
		"<=": func(a, b int32) bool { return a <= b },
	}
	for op, ref := range ops {
		prog := compile(t, fmt.Sprintf(`(program (func c ((param a int) (param b int)) (block (return (%s (id a) (id b))))))`, op), "")
		for _, args := range [][2]int32{{1, 2}, {2, 1}, {2, 2}, {-5, 3}} {
			v, err := New(prog).Call("c", args[0], args[1])
			be.Err(t, err, nil)
			want := int32(0)
			if ref(args[0], args[1]) {
				want = 1
			}
			be.Equal(t, v, want)
		}
	}
}

func TestLogicAndUnary(t *testing.T) {
	prog := compile(t, `
(program
  (func f ((param a int) (param b int))
    (block
      (decl r int)
      (assign r (and (< (id a) (id b)) (not (== (id a) (int 0)))))
      (return (+ (* (id r) (int 100)) (abs (neg (id b))))))))`, "")
	v, err := New(prog).Call("f", 1, 5)
	be.Err(t, err, nil)
	be.Equal(t, v, int32(105))

	v, err = New(prog).Call("f", 0, -5)
	be.Err(t, err, nil)
	be.Equal(t, v, int32(5))
}

func TestRecursion(t *testing.T) {
	prog := compile(t, `
(program
  (func fact ((param n int))
    (block
      (decl r int)
      (if (<= (id n) (int 1)) (block (return (int 1))))
      (call r fact ((- (id n) (int 1))))
      (return (* (id n) (id r))))))`, "")
	m := New(prog)
	v, err := m.Call("fact", 10)
	be.Err(t, err, nil)
	be.Equal(t, v, int32(3628800))
}

func TestLoop(t *testing.T) {
	prog := compile(t, `
(program
  (func sum ((param n int))
    (block
      (decl acc int)
      (decl i int)
      (assign i (int 1))
      (while (<= (id i) (id n))
        (block
          (assign acc (+ (id acc) (id i)))
          (assign i (+ (id i) (int 1)))))
      (return (id acc)))))`, "")
	v, err := New(prog).Call("sum", 100)
	be.Err(t, err, nil)
	be.Equal(t, v, int32(5050))
}

func TestFoldingDoesNotChangeResults(t *testing.T) {
	src := `
(program
  (func f ((param a int))
    (block
      (decl r int)
      (if (> (* (int 6) (int 7)) (int 40))
        (block (assign r (+ (id a) (- (int 10) (int 3)))))
        (block (assign r (int 0))))
      (while (== (int 1) (int 2)) (block (assign r (int 0))))
      (return (/ (id r) (abs (neg (int 2))))))))`
	for _, a := range []int32{0, 5, -9} {
		folded, err := New(compile(t, src, "")).Call("f", a)
		be.Err(t, err, nil)
		plain, err := New(compile(t, src, "-Fno-fold -Fno-infer-const")).Call("f", a)
		be.Err(t, err, nil)
		be.Equal(t, folded, plain)
		be.Equal(t, folded, (a+7)/2)
	}
}

func TestDivideError(t *testing.T) {
	prog := compile(t, `(program (func d ((param a int) (param b int)) (block (return (/ (id a) (id b))))))`, "")
	v, err := New(prog).Call("d", -7, 2)
	be.Err(t, err, nil)
	be.Equal(t, v, int32(-3))

	_, err = New(prog).Call("d", 1, 0)
	be.Err(t, err, ErrDivideByZero)
	_, err = New(prog).Call("d", -2147483648, -1)
	be.Err(t, err, ErrDivideByZero)
}

func TestStepLimit(t *testing.T) {
	prog := compile(t, `
(program
  (func spin ()
    (block
      (decl x int)
      (while (bool true) (block (assign x (+ (id x) (int 1)))))
      (return (id x)))))`, "")
	m := New(prog)
	m.StepLimit = 1000
	_, err := m.Call("spin")
	be.Err(t, err, ErrStepLimit)
	be.Equal(t, m.esp, int64(stackTop))
}

func TestNatives(t *testing.T) {
	prog := compile(t, `
(program
  (func f ()
    (block
      (decl x int)
      (call x sum ((int 1) (int 20) (int 300)))
      (return (id x)))))`, "")

	_, err := New(prog).Call("f")
	be.Err(t, err, ErrUndefinedFunction)

	var seen []int32
	m := New(prog)
	m.Register("sum", func(args []int32) (int32, error) {
		seen = args
		return args[0] + args[1] + args[2], nil
	})
	v, err := m.Call("f")
	be.Err(t, err, nil)
	be.Equal(t, v, int32(321))
	be.Equal(t, seen, []int32{1, 20, 300})

	boom := errors.New("boom")
	m.Register("sum", func([]int32) (int32, error) { return 0, boom })
	_, err = m.Call("f")
	be.Err(t, err, boom)
}

func TestArityMismatch(t *testing.T) {
	m := New(compile(t, roundTrip, ""))
	_, err := m.Call("sub", 1)
	be.Err(t, err, ErrStackFault)

	v, err := m.Call("sub", 5, 2)
	be.Err(t, err, nil)
	be.Equal(t, v, int32(3))
}

func TestRegistersSurviveCalls(t *testing.T) {
	prog := compile(t, roundTrip, "")
	m := New(prog)
	m.ebx, m.edx = 111, 222
	_, err := m.Call("main")
	be.Err(t, err, nil)
	be.Equal(t, m.ebx, int32(111))
	be.Equal(t, m.edx, int32(222))
}
