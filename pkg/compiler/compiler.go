// Package compiler holds the single mutable context threaded through every
// pipeline stage (the fresh label counter, the per-function virtual
// register counter, and the current source file name) and the fatal error
// type every stage reports failure through.
package compiler

import "fmt"

// Phase identifies which pipeline stage raised a Fatal error.
type Phase int

const (
	Lexical Phase = iota
	Parse
	Sema
	IRGen
	RegAlloc
	Emit
)

func (p Phase) String() string {
	switch p {
	case Lexical:
		return "lexical error"
	case Parse:
		return "parse error"
	case Sema:
		return "semantic error"
	case IRGen:
		return "codegen error"
	case RegAlloc:
		return "register allocation error"
	case Emit:
		return "emit error"
	}
	return "error"
}

// Fatal is the one error type every phase returns. Every failure mode in
// spec.md §7 — lexical, parse, semantic, and code-generation errors — is
// fatal: the pipeline never attempts to recover or continue past the
// first one.
type Fatal struct {
	Phase Phase
	File  string
	Line  int
	Msg   string
}

func (e *Fatal) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s: %s", e.Phase, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Phase, e.Msg)
}

// Errf constructs a *Fatal for the given phase and source line.
func Errf(phase Phase, file string, line int, format string, args ...any) *Fatal {
	return &Fatal{Phase: phase, File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Context is the single owner of process-wide pipeline state: the label
// counter (shared across all functions, used for if/loop/short-circuit
// labels and anonymous string-literal globals) and the virtual register
// counter (reset to 1 at each function boundary). Every phase takes a
// *Context by reference instead of reaching for package-level mutable
// state, so re-entrance is never a concern and there is exactly one owner
// per compilation.
type Context struct {
	File string

	label int
	vreg  int
}

// New returns a Context for compiling the named source file.
func New(file string) *Context {
	return &Context{File: file, label: 0, vreg: 1}
}

// NextLabel returns a fresh, process-wide-unique label number.
func (c *Context) NextLabel() int {
	c.label++
	return c.label
}

// NextVReg returns a fresh virtual register number, monotonically
// increasing within the current function.
func (c *Context) NextVReg() int {
	c.vreg++
	return c.vreg - 1
}

// ResetVRegs resets the virtual register counter to 1, done at each
// function boundary so register numbering restarts per function.
func (c *Context) ResetVRegs() {
	c.vreg = 1
}
