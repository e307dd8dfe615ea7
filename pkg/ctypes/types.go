// Package ctypes defines the type system of the C subset mir9cc compiles:
// Int, Char, Bool, Void, Ptr, Array, and Struct, each carrying size and
// alignment, and struct members additionally carrying a resolved offset.
package ctypes

import "github.com/samber/lo"

// Kind identifies which variant of Type a value holds.
type Kind int

const (
	KInt Kind = iota
	KChar
	KBool
	KVoid
	KPtr
	KArray
	KStruct
)

func (k Kind) String() string {
	switch k {
	case KInt:
		return "int"
	case KChar:
		return "char"
	case KBool:
		return "_Bool"
	case KVoid:
		return "void"
	case KPtr:
		return "ptr"
	case KArray:
		return "array"
	case KStruct:
		return "struct"
	}
	return "?"
}

// Member is one named field of a Struct type, at a resolved byte offset.
type Member struct {
	Name   string
	Type   *Type
	Offset int
}

// Type is a tagged variant over the subset's type universe. Every Type
// carries Size and Align; Ptr/Array additionally carry Elem, Array
// additionally carries Len, and Struct carries an ordered Members list.
type Type struct {
	Kind    Kind
	Size    int
	Align   int
	Elem    *Type    // Ptr, Array
	Len     int      // Array
	Tag     string   // Struct, optional
	Members []Member // Struct, ordered
}

// Roundup rounds n up to the next multiple of align. Align of 0 is treated
// as 1 (no-op rounding), which happens for Void.
func Roundup(n, align int) int {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}

func Int() *Type  { return &Type{Kind: KInt, Size: 4, Align: 4} }
func Char() *Type { return &Type{Kind: KChar, Size: 1, Align: 1} }
func Bool() *Type { return &Type{Kind: KBool, Size: 1, Align: 1} }
func Void() *Type { return &Type{Kind: KVoid, Size: 0, Align: 0} }

func Ptr(to *Type) *Type {
	return &Type{Kind: KPtr, Size: 8, Align: 8, Elem: to}
}

func Array(of *Type, length int) *Type {
	return &Type{Kind: KArray, Size: length * of.Size, Align: of.Align, Elem: of, Len: length}
}

// NewStruct lays out members in the order given, computing each member's
// offset: the running offset is rounded up to the member's own alignment
// before the member is placed, then advanced by the member's size. The
// struct's own size is the final running offset rounded up to the max
// member alignment (the struct's alignment); a struct with no members has
// size 0 and align 1.
func NewStruct(tag string, fields []Member) *Type {
	offset := 0
	align := 1
	laidOut := make([]Member, len(fields))
	for i, f := range fields {
		offset = Roundup(offset, f.Type.Align)
		laidOut[i] = Member{Name: f.Name, Type: f.Type, Offset: offset}
		offset += f.Type.Size
		if f.Type.Align > align {
			align = f.Type.Align
		}
	}
	size := Roundup(offset, align)
	return &Type{Kind: KStruct, Size: size, Align: align, Tag: tag, Members: laidOut}
}

// Member looks up a struct member by name.
func (t *Type) Member(name string) (Member, bool) {
	return lo.Find(t.Members, func(m Member) bool { return m.Name == name })
}

// IsInteger reports whether t is an arithmetic integer-like scalar
// (int, char, or _Bool — the subset's promotable integer types).
func (t *Type) IsInteger() bool {
	switch t.Kind {
	case KInt, KChar, KBool:
		return true
	}
	return false
}

func (t *Type) IsPtr() bool    { return t.Kind == KPtr }
func (t *Type) IsArray() bool  { return t.Kind == KArray }
func (t *Type) IsStruct() bool { return t.Kind == KStruct }

// Base returns the pointee/element type of a Ptr or Array, or nil.
func (t *Type) Base() *Type {
	if t.Kind == KPtr || t.Kind == KArray {
		return t.Elem
	}
	return nil
}

// Equal compares two types structurally.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KPtr, KArray:
		return Equal(a.Elem, b.Elem) && a.Len == b.Len
	case KStruct:
		return a.Tag == b.Tag
	default:
		return true
	}
}

func (t *Type) String() string {
	switch t.Kind {
	case KPtr:
		return t.Elem.String() + "*"
	case KArray:
		return t.Elem.String() + "[]"
	case KStruct:
		if t.Tag == "" {
			return "struct <anon>"
		}
		return "struct " + t.Tag
	default:
		return t.Kind.String()
	}
}
