package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/xplshn/sgen/pkg/codegen"
	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/ir"
	"github.com/xplshn/sgen/pkg/lexer"
	"github.com/xplshn/sgen/pkg/parser"
	"github.com/xplshn/sgen/pkg/token"
	"github.com/xplshn/sgen/pkg/vm"
	"golang.org/x/term"
)

const (
	historyFile = ".sgen_history"
	promptMain  = "sgen> "
	promptCont  = "..... "
)

const replHelp = `Enter a (program ...) form to compile it with the current target.
  :ir              show the IR of the last program
  :run f [args]    execute f from the last program
  :target name     switch backend (i386, qbe, qbe:<target>)
  :quit            leave`

func repl(cfg *config.Config) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("interactive mode needs a terminal on standard input")
	}
	fmt.Println("sgen interactive mode. Type :help for commands.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	var last *ir.Program
	for {
		code, ok := readBalanced(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(code, ":") {
			if quit := replCommand(cfg, last, code); quit {
				return nil
			}
			continue
		}

		prog, text, err := compileSource(cfg, code)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		last = prog
		fmt.Print(text)
	}
}

func replCommand(cfg *config.Config, last *ir.Program, code string) (quit bool) {
	fields := strings.Fields(code)
	switch fields[0] {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Println(replHelp)
	case ":target":
		if len(fields) != 2 {
			fmt.Fprintln(os.Stderr, "usage: :target <backend[:target]>")
			break
		}
		if err := cfg.SetTarget(cfg.GOOS, cfg.GOARCH, fields[1]); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	case ":ir", ":run":
		if last == nil {
			fmt.Fprintln(os.Stderr, "no program compiled yet")
			break
		}
		if fields[0] == ":ir" {
			fmt.Print(last.String())
			break
		}
		if len(fields) < 2 {
			fmt.Fprintln(os.Stderr, "usage: :run <function> [args...]")
			break
		}
		args, err := parseArgs(fields[2:])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			break
		}
		v, err := vm.New(last).Call(fields[1], args...)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			break
		}
		fmt.Println(v)
	default:
		fmt.Println("unknown command. Type :help for commands.")
	}
	return false
}

// compileSource runs one REPL entry through the whole pipeline. Generator
// preconditions are reported instead of ending the session.
func compileSource(cfg *config.Config, code string) (prog *ir.Program, text string, err error) {
	root, st, err := parser.NewParser(lexer.Tokenize([]rune(code), -1)).Parse()
	if err != nil {
		return nil, "", err
	}
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*codegen.PreconditionError)
			if !ok {
				panic(r)
			}
			prog, text, err = nil, "", pe
		}
	}()
	prog = generate(cfg, root, st)
	backend, err := codegen.SelectBackend(cfg.BackendName)
	if err != nil {
		return nil, "", err
	}
	text, err = backend.GenerateIR(prog, cfg)
	return prog, text, err
}

// readBalanced reads lines until parentheses balance or a command is given.
func readBalanced(ln *liner.State) (string, bool) {
	var b strings.Builder
	depth := 0
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() == 0 && strings.HasPrefix(strings.TrimSpace(line), ":") {
			return line, true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		for _, tok := range lexer.Tokenize([]rune(line), -1) {
			switch tok.Type {
			case token.LParen:
				depth++
			case token.RParen:
				depth--
			}
		}
		if depth <= 0 {
			return b.String(), true
		}
	}
}
