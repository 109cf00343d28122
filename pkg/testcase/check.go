package testcase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/sgen/pkg/codegen"
	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/consteval"
	"github.com/xplshn/sgen/pkg/ir"
	"github.com/xplshn/sgen/pkg/lexer"
	"github.com/xplshn/sgen/pkg/parser"
	"github.com/xplshn/sgen/pkg/vm"
)

// QBETarget is the target used for qbe expectations, so golden IL does not
// depend on the host.
const QBETarget = "amd64_sysv"

// Mismatch is a failed expectation. Diff is in cmp.Diff form (-want +got).
type Mismatch struct {
	Assertion Assertion
	Diff      string
}

// Natives are the external functions available to run expectations.
var Natives = map[string]vm.Native{
	"sum": func(args []int32) (int32, error) {
		var s int32
		for _, a := range args {
			s += a
		}
		return s, nil
	},
	"id": func(args []int32) (int32, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("id takes 1 argument, got %d", len(args))
		}
		return args[0], nil
	},
}

// compile runs the interchange reader and generator. Precondition panics of
// the generator are returned as errors.
func compile(tc *TestCase) (prog *ir.Program, cfg *config.Config, err error) {
	cfg = config.NewConfig()
	if err := cfg.ProcessFlagString("-Wno-all " + strings.Join(tc.Flags, " ")); err != nil {
		return nil, nil, err
	}

	root, st, err := parser.NewParser(lexer.Tokenize([]rune(tc.Input), 0)).Parse()
	if err != nil {
		return nil, nil, err
	}
	if cfg.IsFeatureEnabled(config.FeatInferConst) {
		consteval.Annotate(root)
	}

	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*codegen.PreconditionError)
			if !ok {
				panic(r)
			}
			prog, err = nil, pe
		}
	}()
	return codegen.NewContext(cfg, st).GenerateIR(root), cfg, nil
}

// Check runs tc and returns every expectation it fails.
func Check(tc *TestCase) []Mismatch {
	var mismatches []Mismatch
	fail := func(a Assertion, want, got string) {
		if diff := cmp.Diff(want, got); diff != "" {
			mismatches = append(mismatches, Mismatch{Assertion: a, Diff: diff})
		}
	}

	prog, cfg, err := compile(tc)
	for _, a := range tc.Assertions {
		if a.Type == AssertionError {
			got := "<no error>"
			if err != nil {
				got = err.Error()
			}
			fail(a, a.Content, got)
			continue
		}
		if err != nil {
			fail(a, a.Content, "error: "+err.Error())
			continue
		}

		switch a.Type {
		case AssertionIR:
			fail(a, a.Content, strings.TrimRight(prog.String(), "\n"))
		case AssertionI386:
			text, gerr := codegen.NewI386Backend().GenerateIR(prog, cfg)
			fail(a, a.Content, strings.TrimSpace(orError(text, gerr)))
		case AssertionQBE:
			qcfg := *cfg
			if serr := qcfg.SetTarget(cfg.GOOS, cfg.GOARCH, "qbe:"+QBETarget); serr != nil {
				fail(a, a.Content, "error: "+serr.Error())
				continue
			}
			text, gerr := codegen.NewQBEBackend().GenerateIR(prog, &qcfg)
			fail(a, a.Content, strings.TrimSpace(orError(text, gerr)))
		case AssertionRun:
			for _, line := range strings.Split(a.Content, "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				want, got := runLine(prog, line)
				fail(a, want, got)
			}
		}
	}
	return mismatches
}

func orError(text string, err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return text
}

// runLine evaluates one "f(1, 2) = 3" or "f(0) ! error text" expectation
// and returns the expected and actual renderings of it.
func runLine(prog *ir.Program, line string) (want, got string) {
	want = strings.TrimSpace(line)
	call, _, found := strings.Cut(want, " = ")
	if !found {
		call, _, found = strings.Cut(want, " ! ")
	}
	if !found {
		return want, "malformed run line"
	}

	name, rest, ok := strings.Cut(call, "(")
	rest, ok2 := strings.CutSuffix(rest, ")")
	if !ok || !ok2 {
		return want, "malformed call"
	}
	var args []int32
	for _, field := range strings.Split(rest, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return want, fmt.Sprintf("bad argument '%s'", field)
		}
		args = append(args, int32(v))
	}

	m := vm.New(prog)
	for n, fn := range Natives {
		m.Register(n, fn)
	}
	v, err := m.Call(name, args...)
	if err != nil {
		return want, fmt.Sprintf("%s ! %v", call, err)
	}
	return want, fmt.Sprintf("%s = %d", call, v)
}
