package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/token"
)

// SourceFileRecord tracks the name and content of a single input file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFiles []SourceFileRecord

// Verbose enables Info output.
var Verbose bool

// WarnOutput receives warnings and Info lines.
var WarnOutput io.Writer = os.Stderr

// SetSourceFiles stores the source of all input files for rich error messages
func SetSourceFiles(files []SourceFileRecord) {
	sourceFiles = files
}

// Diagnostic is a positioned error produced while reading input.
type Diagnostic struct {
	Tok token.Token
	Msg string
}

func (d *Diagnostic) Error() string {
	filename, line, col := findFileAndLine(d.Tok)
	return fmt.Sprintf("%s:%d:%d: %s", filename, line, col, d.Msg)
}

// Errorf builds a Diagnostic anchored at tok.
func Errorf(tok token.Token, format string, args ...interface{}) error {
	return &Diagnostic{Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// findFileAndLine converts a token to a file-specific location
func findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return "<input>", tok.Line, tok.Column
	}
	return sourceFiles[tok.FileIndex].Name, tok.Line, tok.Column
}

// printErrorLine prints the source line and a caret indicating the error position
func printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) || tok.Line == 0 {
		return
	}

	content := sourceFiles[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))
	col := tok.Column
	if col < 1 {
		col = 1
	}
	fmt.Fprintf(w, "  %s\033[32m^", strings.Repeat(" ", col-1))
	if tok.Len > 1 {
		fmt.Fprintf(w, "%s", strings.Repeat("~", tok.Len-1))
	}
	fmt.Fprintln(w, "\033[0m")
}

// Error prints a formatted error message and exits the program
func Error(tok token.Token, format string, args ...interface{}) {
	if tok.Line == 0 {
		fmt.Fprint(os.Stderr, "sgen: \033[31merror:\033[0m ")
	} else {
		filename, line, col := findFileAndLine(tok)
		fmt.Fprintf(os.Stderr, "%s:%d:%d: \033[31merror:\033[0m ", filename, line, col)
	}
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	printErrorLine(os.Stderr, tok)
	os.Exit(1)
}

// Fatal reports err and exits. Diagnostics keep their source position.
func Fatal(err error) {
	var d *Diagnostic
	if errors.As(err, &d) {
		Error(d.Tok, "%s", d.Msg)
	}
	fmt.Fprintf(os.Stderr, "sgen: \033[31merror:\033[0m %v\n", err)
	os.Exit(1)
}

// Warn prints a formatted warning if the corresponding warning is enabled
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	filename, line, col := findFileAndLine(tok)
	fmt.Fprintf(WarnOutput, "%s:%d:%d: \033[33mwarning:\033[0m ", filename, line, col)
	fmt.Fprintf(WarnOutput, format, args...)
	fmt.Fprintf(WarnOutput, " [-W%s]\n", cfg.Warnings[wt].Name)
	printErrorLine(WarnOutput, tok)
}

// Info prints a progress line when Verbose is set
func Info(format string, args ...interface{}) {
	if !Verbose {
		return
	}
	fmt.Fprintf(WarnOutput, "sgen: info: "+format+"\n", args...)
}
