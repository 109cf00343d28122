package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/xplshn/sgen/pkg/ast"
	"github.com/xplshn/sgen/pkg/cli"
	"github.com/xplshn/sgen/pkg/codegen"
	"github.com/xplshn/sgen/pkg/config"
	"github.com/xplshn/sgen/pkg/consteval"
	"github.com/xplshn/sgen/pkg/ir"
	"github.com/xplshn/sgen/pkg/lexer"
	"github.com/xplshn/sgen/pkg/parser"
	"github.com/xplshn/sgen/pkg/symtab"
	"github.com/xplshn/sgen/pkg/token"
	"github.com/xplshn/sgen/pkg/util"
	"github.com/xplshn/sgen/pkg/vm"
)

func main() {
	app := cli.NewApp("sgen")
	app.Synopsis = "[options] <input.sx> ..."
	app.Description = "A stack-machine code generator. Reads an annotated, type-checked AST in S-expression form and emits i386 assembly or QBE-compiled native assembly."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/sgen>"
	app.Since = 2025

	var (
		outFile     string
		target      string
		runFunc     string
		runArgs     []string
		dumpIR      bool
		verbose     bool
		interactive bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file> instead of standard output.", "file")
	fs.String(&target, "target", "t", "i386", "Set the backend and target ABI (i386, qbe, qbe:<target>).", "backend/target")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Dump the stack-machine IR and exit.")
	fs.String(&runFunc, "run", "", "", "Execute <function> on the built-in machine and print its result.", "function")
	fs.List(&runArgs, "arg", "", []string{}, "Pass an integer argument to the --run function.", "int")
	fs.Bool(&verbose, "verbose", "v", false, "Report each compilation stage.")
	fs.Bool(&interactive, "interactive", "i", false, "Start an interactive session.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		util.Verbose = verbose
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			util.Error(token.Token{FileIndex: -1}, "%v", err)
		}

		if interactive {
			return repl(cfg)
		}
		if len(inputFiles) == 0 {
			util.Error(token.Token{FileIndex: -1}, "no input files specified.")
		}

		util.Info("tokenizing %d source file(s)", len(inputFiles))
		records, tokens := readAndTokenizeFiles(inputFiles)
		util.SetSourceFiles(records)

		util.Info("reading annotated AST")
		root, st, err := parser.NewParser(tokens).Parse()
		if err != nil {
			util.Fatal(err)
		}

		irProg := generate(cfg, root, st)

		if runFunc != "" {
			args, err := parseArgs(runArgs)
			if err != nil {
				util.Error(token.Token{FileIndex: -1}, "%v", err)
			}
			v, err := vm.New(irProg).Call(runFunc, args...)
			if err != nil {
				util.Error(token.Token{FileIndex: -1}, "%s: %v", runFunc, err)
			}
			fmt.Println(v)
			return nil
		}

		if dumpIR {
			fmt.Print(irProg.String())
			return nil
		}

		util.Info("generating code with '%s' backend (target %s)", cfg.BackendName, cfg.BackendTarget)
		backend, err := codegen.SelectBackend(cfg.BackendName)
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "%v", err)
		}
		backendOutput, err := backend.Generate(irProg, cfg)
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "backend code generation failed: %v", err)
		}
		util.Info("output fingerprint %016x", codegen.Fingerprint(backendOutput.String()))

		if outFile == "" || outFile == "-" {
			_, err = os.Stdout.Write(backendOutput.Bytes())
			return err
		}
		if err := os.WriteFile(outFile, backendOutput.Bytes(), 0o644); err != nil {
			util.Error(token.Token{FileIndex: -1}, "could not write '%s': %v", outFile, err)
		}
		util.Info("wrote '%s'", outFile)
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// generate annotates what the front end left unresolved, when enabled, and
// lowers the program.
func generate(cfg *config.Config, root *ast.Node, st *symtab.Table) *ir.Program {
	if cfg.IsFeatureEnabled(config.FeatInferConst) {
		n := consteval.Annotate(root)
		util.Info("inferred %d constant expression(s)", n)
	}
	util.Info("creating stack-machine IR")
	return codegen.NewContext(cfg, st).GenerateIR(root)
}

func parseArgs(raw []string) ([]int32, error) {
	args := make([]int32, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid --arg '%s': not a 32-bit integer", s)
		}
		args[i] = int32(v)
	}
	return args, nil
}

func readAndTokenizeFiles(paths []string) ([]util.SourceFileRecord, []token.Token) {
	var records []util.SourceFileRecord
	var allTokens []token.Token

	for i, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "could not read file '%s': %v", path, err)
		}
		runeContent := []rune(string(content))
		records = append(records, util.SourceFileRecord{Name: path, Content: runeContent})
		toks := lexer.Tokenize(runeContent, i)
		allTokens = append(allTokens, toks[:len(toks)-1]...)
	}
	allTokens = append(allTokens, token.Token{Type: token.EOF, FileIndex: max(len(paths)-1, 0)})
	return records, allTokens
}
