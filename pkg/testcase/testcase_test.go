package testcase

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

const doc = "# Cases\n\n" +
	"Some prose that is not a test.\n\n" +
	"## Test: first\n\n" +
	"```sexpr\n(program (func f () (block (return (int 1)))))\n```\n\n" +
	"```flags\n-Fno-fold\n-Wextra\n```\n\n" +
	"```run\nf() = 1\n```\n\n" +
	"## Test: second\n\n" +
	"```sexpr\n(program)\n```\n\n" +
	"```error\nboom\n```\n"

func TestExtract(t *testing.T) {
	cases, err := Extract("doc.md", doc)
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 2)

	first := cases[0]
	be.Equal(t, first.Name, "first")
	be.Equal(t, first.File, "doc.md")
	be.Equal(t, first.Line, 5)
	be.Equal(t, first.Input, "(program (func f () (block (return (int 1)))))")
	be.Equal(t, first.Flags, []string{"-Fno-fold", "-Wextra"})
	be.Equal(t, len(first.Assertions), 1)
	be.Equal(t, first.Assertions[0].Type, AssertionRun)
	be.Equal(t, first.Assertions[0].Content, "f() = 1")

	be.Equal(t, cases[1].Assertions[0].Type, AssertionError)
	be.True(t, first.Source() != cases[1].Source())
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want string
	}{
		{"no input", "## Test: a\n\n```run\nf() = 1\n```\n", "test 'a' has no sexpr fence"},
		{"no expectations", "## Test: a\n\n```sexpr\n(program)\n```\n", "test 'a' has no expectation fences"},
		{"unknown fence", "## Test: a\n\n```sexpr\n(program)\n```\n\n```wasm\n\n```\n", "unknown fence language 'wasm'"},
		{"stray fence", "```sexpr\n(program)\n```\n", "sexpr fence found outside of a test"},
		{"two inputs", "## Test: a\n\n```sexpr\n(program)\n```\n\n```sexpr\n(program)\n```\n", "multiple input fences"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Extract("x.md", tc.md)
			be.Err(t, err, tc.want)
		})
	}
}

func TestCheckReportsMismatches(t *testing.T) {
	tc := &TestCase{
		Name:  "wrong",
		Input: "(program (func f ((param a int)) (block (return (neg (id a))))))",
		Assertions: []Assertion{
			{Type: AssertionRun, Content: "f(3) = -3\nf(4) = 4"},
			{Type: AssertionError, Content: "something"},
		},
	}
	mismatches := Check(tc)
	be.Equal(t, len(mismatches), 2)
	be.Equal(t, mismatches[0].Assertion.Type, AssertionRun)
	be.True(t, strings.Contains(mismatches[0].Diff, "f(4) = -4"))
	be.Equal(t, mismatches[1].Assertion.Type, AssertionError)
}

func TestCheckCompileErrorFailsOtherExpectations(t *testing.T) {
	tc := &TestCase{
		Input:      "(program (func f () (block (return (id nope)))))",
		Assertions: []Assertion{{Type: AssertionIR, Content: "func f() frame 0"}},
	}
	mismatches := Check(tc)
	be.Equal(t, len(mismatches), 1)
	be.True(t, strings.Contains(mismatches[0].Diff, "undeclared variable 'nope'"))
}

func TestGoldenCases(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.md"))
	be.Err(t, err, nil)
	be.True(t, len(files) > 0)

	for _, file := range files {
		content, err := os.ReadFile(file)
		be.Err(t, err, nil)
		cases, err := Extract(file, string(content))
		be.Err(t, err, nil)

		for i := range cases {
			tc := &cases[i]
			t.Run(filepath.Base(file)+"/"+tc.Name, func(t *testing.T) {
				for _, m := range Check(tc) {
					t.Errorf("%s:%d: %s expectation mismatch (-want +got):\n%s", tc.File, m.Assertion.Line, m.Assertion.Type, m.Diff)
				}
			})
		}
	}
}
