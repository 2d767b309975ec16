// Package types implements the narval inference type term (spec §3 "Type")
// and its Hindley–Milner unification machinery (spec §4.3).
package types

import (
	"fmt"
	"strings"
)

// TagCustomBase is the numeric id threshold at and above which a type is a
// user-defined nominal (struct-like) type, mirroring the runtime Value tag
// space reserved for custom types (spec §3 "IR Value").
const TagCustomBase = 100

// Type is implemented by every member of the closed type-term set.
type Type interface {
	String() string
	Equals(Type) bool
}

// Basic is one of the primitive nullary types.
type Basic struct{ Name string }

func (t *Basic) String() string { return t.Name }
func (t *Basic) Equals(o Type) bool {
	b, ok := o.(*Basic)
	return ok && b.Name == t.Name
}

var (
	Int    = &Basic{"int"}
	Float  = &Basic{"float"}
	Bool   = &Basic{"bool"}
	String = &Basic{"string"}
	Void   = &Basic{"void"}
	ErrorT = &Basic{"error"}
)

// Array is a homogeneous sequence.
type Array struct{ Elem Type }

func (t *Array) String() string { return "array<" + t.Elem.String() + ">" }
func (t *Array) Equals(o Type) bool {
	a, ok := o.(*Array)
	return ok && t.Elem.Equals(a.Elem)
}

// Vector is heterogeneous; its element is represented on use by a fresh
// type variable rather than a fixed element type.
type Vector struct{ Elem Type }

func (t *Vector) String() string { return "vector" }
func (t *Vector) Equals(o Type) bool {
	_, ok := o.(*Vector)
	return ok
}

// Tuple is a fixed-arity heterogeneous product.
type Tuple struct{ Elems []Type }

func (t *Tuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (t *Tuple) Equals(o Type) bool {
	tt, ok := o.(*Tuple)
	if !ok || len(tt.Elems) != len(t.Elems) {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equals(tt.Elems[i]) {
			return false
		}
	}
	return true
}

// Map is a homogeneous key/value dictionary.
type Map struct {
	Key   Type
	Value Type
}

func (t *Map) String() string { return fmt.Sprintf("map<%s, %s>", t.Key, t.Value) }
func (t *Map) Equals(o Type) bool {
	m, ok := o.(*Map)
	return ok && t.Key.Equals(m.Key) && t.Value.Equals(m.Value)
}

// Def is a callable type. Return may itself be a *PolyType scheme.
type Def struct {
	Params []Type
	Return Type
}

func (t *Def) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("def(%s): %s", strings.Join(parts, ", "), t.Return)
}
func (t *Def) Equals(o Type) bool {
	d, ok := o.(*Def)
	if !ok || len(d.Params) != len(t.Params) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equals(d.Params[i]) {
			return false
		}
	}
	return t.Return.Equals(d.Return)
}

// TypeVar is an inference variable, identified by a unique id minted by a
// single UnificationContext (spec invariant: ids never collide across
// contexts because there is exactly one context per Checker).
type TypeVar struct{ ID int }

func (t *TypeVar) String() string { return fmt.Sprintf("t%d", t.ID) }
func (t *TypeVar) Equals(o Type) bool {
	v, ok := o.(*TypeVar)
	return ok && v.ID == t.ID
}

// PolyType is a let-polymorphic scheme: forall ForallIDs. Body.
type PolyType struct {
	ForallIDs []int
	Body      Type
}

func (t *PolyType) String() string {
	ids := make([]string, len(t.ForallIDs))
	for i, id := range t.ForallIDs {
		ids[i] = fmt.Sprintf("t%d", id)
	}
	return fmt.Sprintf("forall %s. %s", strings.Join(ids, " "), t.Body)
}
func (t *PolyType) Equals(o Type) bool {
	p, ok := o.(*PolyType)
	return ok && t.Body.Equals(p.Body)
}

// Custom is a nominal struct-like type with single-ancestor subtyping.
type Custom struct {
	ID     int // >= TagCustomBase
	Name   string
	Fields []CustomField
	Base   *Custom // nil if no ancestor
	Size   int     // bytes, for the IR lowering layer
}

type CustomField struct {
	Name string
	Type Type
}

func (t *Custom) String() string { return t.Name }
func (t *Custom) Equals(o Type) bool {
	c, ok := o.(*Custom)
	return ok && c.ID == t.ID
}

// IsNumeric reports whether t (after resolution) is Int or Float.
func IsNumeric(t Type) bool {
	b, ok := t.(*Basic)
	return ok && (b == Int || b == Float)
}
