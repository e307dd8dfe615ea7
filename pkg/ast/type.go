package ast

import "mir9cc/pkg/ctypes"

// TypeOf returns the result type sema attached to an expression node, or
// nil if n is not an expression node or sema has not yet visited it.
func TypeOf(n Node) *ctypes.Type {
	switch v := n.(type) {
	case *Num:
		return v.Typ
	case *Binary:
		return v.Typ
	case *Unary:
		return v.Typ
	case *IncDec:
		return v.Typ
	case *VarRef:
		return v.Typ
	case *Member:
		return v.Typ
	case *Call:
		return v.RetType
	case *Assign:
		return v.Typ
	case *Ternary:
		return v.Typ
	case *Comma:
		return v.Typ
	case *StmtExpr:
		return v.Typ
	case *Addr:
		return v.Typ
	case *StrLit:
		return v.Typ
	case *Sizeof:
		return v.Typ
	}
	return nil
}

// SetType attaches t as the result type of an expression node.
func SetType(n Node, t *ctypes.Type) {
	switch v := n.(type) {
	case *Num:
		v.Typ = t
	case *Binary:
		v.Typ = t
	case *Unary:
		v.Typ = t
	case *IncDec:
		v.Typ = t
	case *VarRef:
		v.Typ = t
	case *Member:
		v.Typ = t
	case *Call:
		v.RetType = t
	case *Assign:
		v.Typ = t
	case *Ternary:
		v.Typ = t
	case *Comma:
		v.Typ = t
	case *StmtExpr:
		v.Typ = t
	case *Addr:
		v.Typ = t
	case *StrLit:
		v.Typ = t
	case *Sizeof:
		v.Typ = t
	}
}

// IsLvalue reports whether n designates an object with an address:
// a variable reference, a dereference, or a struct-member access.
// Sema rejects &-of and assignment-to anything else (spec.md §4.2).
func IsLvalue(n Node) bool {
	switch v := n.(type) {
	case *VarRef:
		return true
	case *Member:
		return true
	case *Unary:
		return v.Op == OpDeref
	}
	return false
}
