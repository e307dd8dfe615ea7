// Command mir9cc compiles a preprocessed C-subset source file to x86-64
// assembly (Intel syntax, System V AMD64 calling convention) on stdout.
// See spec.md §6 for the CLI contract this file implements.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mir9cc/pkg/compiler"
	"mir9cc/pkg/emit"
	"mir9cc/pkg/ir"
	"mir9cc/pkg/irgen"
	"mir9cc/pkg/lexer"
	"mir9cc/pkg/parser"
	"mir9cc/pkg/regalloc"
	"mir9cc/pkg/sema"
)

var version = "0.1.0"

var (
	dumpIR1 bool
	dumpIR2 bool
)

// errUsage signals the "any other shape" case of spec.md §6: a one-line
// Usage message has already been written to stdout, and main should exit 1
// without cobra printing anything further.
var errUsage = fmt.Errorf("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(errOut, "mir9cc: %v\n", r)
			code = 1
		}
	}()
	rootCmd := newRootCmd(out, errOut)
	rootCmd.SetArgs(normalizeFlags(args))
	if err := rootCmd.Execute(); err != nil {
		if err != errUsage {
			fmt.Fprintf(errOut, "mir9cc: %s\n", err)
		}
		return 1
	}
	return 0
}

// dumpFlagNames lists the single-dash long flags spec.md §6 specifies
// (`-dump-ir1`, `-dump-ir2`), normalized to cobra/pflag's double-dash form
// the same way the teacher's normalizeFlags handles `-dparse` et al.
var dumpFlagNames = []string{"dump-ir1", "dump-ir2"}

func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = arg
		for _, name := range dumpFlagNames {
			if arg == "-"+name {
				result[i] = "--" + name
				break
			}
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mir9cc [-dump-ir1] [-dump-ir2] <source-file>",
		Short:         "mir9cc compiles a C subset to x86-64 assembly",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				fmt.Fprintln(out, "Usage: mir9cc [-dump-ir1] [-dump-ir2] <source-file>")
				return errUsage
			}
			return compileFile(args[0], out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetFlagErrorFunc(func(*cobra.Command, error) error {
		fmt.Fprintln(out, "Usage: mir9cc [-dump-ir1] [-dump-ir2] <source-file>")
		return errUsage
	})
	rootCmd.Flags().BoolVar(&dumpIR1, "dump-ir1", false, "dump IR after IR generation")
	rootCmd.Flags().BoolVar(&dumpIR2, "dump-ir2", false, "dump IR after register allocation")
	return rootCmd
}

// compileFile runs the full pipeline — lex, parse, sema, IRGen, (optional
// dump-ir1), RegAlloc, (optional dump-ir2), Emit — on filename, writing
// assembly (and any requested IR dumps) to out. Every phase failure is a
// *compiler.Fatal; the first one aborts the pipeline per spec.md §7.
func compileFile(filename string, out, errOut io.Writer) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	toks, err := lexer.Tokenize(filename, string(src))
	if err != nil {
		return err
	}

	ctx := compiler.New(filename)

	prog, err := parser.Parse(ctx, toks)
	if err != nil {
		return err
	}

	if err := sema.New(ctx).Run(prog); err != nil {
		return err
	}

	fns := irgen.New(ctx).Gen(prog)

	if dumpIR1 {
		writeDump(out, "-dump-ir1:", fns)
	}

	for _, fn := range fns {
		if err := regalloc.Allocate(ctx, fn); err != nil {
			return err
		}
	}

	if dumpIR2 {
		writeDump(out, "-dump-ir2:", fns)
	}

	return emit.Program(out, prog.Globals, fns)
}

func writeDump(out io.Writer, header string, fns []*ir.Function) {
	fmt.Fprintln(out, header)
	for _, fn := range fns {
		io.WriteString(out, fn.Dump())
	}
}
