// Package testcase extracts golden code generation cases from Markdown.
//
// A case starts at a "Test: <name>" heading and holds one sexpr input fence,
// an optional flags fence, and one or more expectation fences.
package testcase

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// AssertionType names the expectation a fence carries.
type AssertionType string

const (
	AssertionIR    AssertionType = "ir"
	AssertionI386  AssertionType = "i386"
	AssertionQBE   AssertionType = "qbe"
	AssertionRun   AssertionType = "run"
	AssertionError AssertionType = "error"
)

const (
	inputFence = "sexpr"
	flagsFence = "flags"
)

type Assertion struct {
	Type    AssertionType
	Content string
	Line    int
}

type TestCase struct {
	Name       string
	File       string
	Line       int
	Input      string
	Flags      []string
	Assertions []Assertion
}

// Source is the text the case is keyed by in caches.
func (tc *TestCase) Source() string {
	var sb strings.Builder
	sb.WriteString(tc.Input)
	for _, f := range tc.Flags {
		sb.WriteString("\x00" + f)
	}
	for _, a := range tc.Assertions {
		sb.WriteString("\x00" + string(a.Type) + "\x00" + a.Content)
	}
	return sb.String()
}

func isAssertionFence(language string) bool {
	switch AssertionType(language) {
	case AssertionIR, AssertionI386, AssertionQBE, AssertionRun, AssertionError:
		return true
	}
	return false
}

// Extract parses a Markdown document and returns its test cases in order.
func Extract(file, markdownContent string) ([]TestCase, error) {
	source := []byte(markdownContent)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var cases []TestCase
	var current *TestCase
	flush := func() error {
		if current == nil {
			return nil
		}
		if current.Input == "" {
			return fmt.Errorf("%s:%d: test '%s' has no %s fence", file, current.Line, current.Name, inputFence)
		}
		if len(current.Assertions) == 0 {
			return fmt.Errorf("%s:%d: test '%s' has no expectation fences", file, current.Line, current.Name)
		}
		cases = append(cases, *current)
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := extractText(n, source)
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkContinue, nil
			}
			if err := flush(); err != nil {
				return ast.WalkStop, err
			}
			current = &TestCase{
				Name: strings.TrimPrefix(heading, "Test: "),
				File: file,
				Line: lineOf(n, source),
			}

		case *ast.FencedCodeBlock:
			language := string(n.Language(source))
			content := strings.TrimRight(extractCodeBlock(n, source), "\n")
			line := lineOf(n, source)

			if current == nil {
				if language != "" {
					return ast.WalkStop, fmt.Errorf("%s:%d: %s fence found outside of a test", file, line, language)
				}
				return ast.WalkContinue, nil
			}

			switch {
			case language == inputFence:
				if current.Input != "" {
					return ast.WalkStop, fmt.Errorf("%s:%d: multiple input fences in test '%s'", file, line, current.Name)
				}
				current.Input = content
			case language == flagsFence:
				current.Flags = append(current.Flags, strings.Fields(content)...)
			case isAssertionFence(language):
				current.Assertions = append(current.Assertions, Assertion{Type: AssertionType(language), Content: content, Line: line})
			case language != "":
				return ast.WalkStop, fmt.Errorf("%s:%d: unknown fence language '%s' in test '%s'", file, line, language, current.Name)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return cases, nil
}

func extractText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func extractCodeBlock(codeBlock *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < codeBlock.Lines().Len(); i++ {
		line := codeBlock.Lines().At(i)
		buf.Write(line.Value(source))
	}
	return buf.String()
}

func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	return bytes.Count(source[:min(start, len(source))], []byte{'\n'}) + 1
}
