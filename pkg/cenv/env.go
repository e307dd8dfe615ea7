// Package cenv implements the lexically-scoped environment the parser
// threads through declarations and references: a stack of frames, each
// holding typedefs, struct tags, variables, and enum constants, searched
// innermost-first.
package cenv

import "mir9cc/pkg/ctypes"

// Var is a named storage binding: its type, its storage location (a stack
// offset for locals, a symbol label for globals/externs/string literals),
// and whether it is local.
type Var struct {
	Name     string
	Type     *ctypes.Type
	IsLocal  bool
	Offset   int    // valid when IsLocal
	Label    string // valid when !IsLocal
	IsGlobal bool

	// Init holds, for a non-extern global, the assembler directive
	// strings (".quad N", ".long N", a symbol reference) that initialize
	// it. StrData holds, for an anonymous string-literal global (IsStr),
	// the raw payload.
	Init    []string
	StrData []byte
	IsStr   bool
}

// frame is one scope's set of innermost-only declarations.
type frame struct {
	typedefs map[string]*ctypes.Type
	tags     map[string]*ctypes.Type
	vars     map[string]*Var
	enums    map[string]int64
}

func newFrame() *frame {
	return &frame{
		typedefs: make(map[string]*ctypes.Type),
		tags:     make(map[string]*ctypes.Type),
		vars:     make(map[string]*Var),
		enums:    make(map[string]int64),
	}
}

// Env is the scope-frame stack. A declaration inserts into the top frame
// only; a lookup walks frames innermost (top) first.
type Env struct {
	frames []*frame
}

// New returns an Env with a single (global) frame already pushed.
func New() *Env {
	return &Env{frames: []*frame{newFrame()}}
}

// Push opens a new, innermost scope. Called at function entry,
// compound-statement entry, and for-statement entry.
func (e *Env) Push() {
	e.frames = append(e.frames, newFrame())
}

// Pop closes the innermost scope, discarding every declaration made in it.
func (e *Env) Pop() {
	e.frames = e.frames[:len(e.frames)-1]
}

func (e *Env) top() *frame {
	return e.frames[len(e.frames)-1]
}

// DeclareVar inserts v into the innermost frame.
func (e *Env) DeclareVar(v *Var) {
	e.top().vars[v.Name] = v
}

// DeclareTypedef inserts a typedef name into the innermost frame.
func (e *Env) DeclareTypedef(name string, t *ctypes.Type) {
	e.top().typedefs[name] = t
}

// DeclareTag inserts a struct tag into the innermost frame.
func (e *Env) DeclareTag(name string, t *ctypes.Type) {
	e.top().tags[name] = t
}

// DeclareEnumConst inserts an enum constant into the innermost frame.
func (e *Env) DeclareEnumConst(name string, val int64) {
	e.top().enums[name] = val
}

// LookupVar walks frames innermost-first.
func (e *Env) LookupVar(name string) (*Var, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if v, ok := e.frames[i].vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// LookupTypedef walks frames innermost-first.
func (e *Env) LookupTypedef(name string) (*ctypes.Type, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if t, ok := e.frames[i].typedefs[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// LookupTag walks frames innermost-first.
func (e *Env) LookupTag(name string) (*ctypes.Type, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if t, ok := e.frames[i].tags[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// LookupEnumConst walks frames innermost-first.
func (e *Env) LookupEnumConst(name string) (int64, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if v, ok := e.frames[i].enums[name]; ok {
			return v, true
		}
	}
	return 0, false
}

// Depth returns the number of frames currently on the stack; a Push
// followed by a Pop leaves it unchanged.
func (e *Env) Depth() int {
	return len(e.frames)
}
