package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/parser"
	"github.com/xplshn/sgen/pkg/token"
	"github.com/xplshn/sgen/pkg/vm"
)

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"3", "-10", "2147483647"})
	be.Err(t, err, nil)
	be.Equal(t, args, []int32{3, -10, 2147483647})

	_, err = parseArgs([]string{"2147483648"})
	be.Err(t, err, "not a 32-bit integer")
}

func TestFilesFormOneProgram(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sx")
	b := filepath.Join(dir, "b.sx")
	be.Err(t, os.WriteFile(a, []byte("(program (func one () (block (return (int 1)))))\n"), 0o644), nil)
	be.Err(t, os.WriteFile(b, []byte("(program (func two () (block (decl x int) (call x one ()) (return (+ (id x) (id x))))))\n"), 0o644), nil)

	records, toks := readAndTokenizeFiles([]string{a, b})
	be.Equal(t, len(records), 2)
	be.Equal(t, toks[len(toks)-1].Type, token.EOF)

	root, st, err := parser.NewParser(toks).Parse()
	be.Err(t, err, nil)

	cfg := config.NewConfig()
	be.Err(t, cfg.ProcessFlagString("-Wno-all"), nil)
	v, err := vm.New(generate(cfg, root, st)).Call("two")
	be.Err(t, err, nil)
	be.Equal(t, v, int32(2))
}

func TestCompileSource(t *testing.T) {
	cfg := config.NewConfig()
	be.Err(t, cfg.ProcessFlagString("-Wno-all"), nil)

	prog, text, err := compileSource(cfg, "(program (func one () (block (return (int 1)))))")
	be.Err(t, err, nil)
	be.True(t, prog.FindFunc("one") != nil)
	be.True(t, len(text) > 0)

	_, _, err = compileSource(cfg, "(program (func one () (block (return (id x)))))")
	be.Err(t, err, "undeclared variable 'x'")
}
