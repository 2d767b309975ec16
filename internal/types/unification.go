package types

import "fmt"

// Substitution maps a TypeVar id to its resolved Type.
type Substitution map[int]Type

// UnificationContext owns the single substitution and id counter for one
// Checker. Spec invariant: a TypeVar's id is only ever meaningful relative
// to the UnificationContext that minted it, and there is exactly one
// context per Checker (never shared across threads, spec §5).
type UnificationContext struct {
	Substitution Substitution
	NextVarID    int
}

// NewUnificationContext creates an empty context.
func NewUnificationContext() *UnificationContext {
	return &UnificationContext{Substitution: make(Substitution)}
}

// Fresh mints a new, unbound TypeVar.
func (c *UnificationContext) Fresh() *TypeVar {
	id := c.NextVarID
	c.NextVarID++
	return &TypeVar{ID: id}
}

// Resolve walks the substitution chain to the representative type. Calling
// Resolve twice on any type is idempotent: resolve(resolve(t)) == resolve(t)
// (spec §8 testable property 3), because Resolve always walks all the way
// to a fixed point before returning.
func (c *UnificationContext) Resolve(t Type) Type {
	for {
		tv, ok := t.(*TypeVar)
		if !ok {
			return t
		}
		next, bound := c.Substitution[tv.ID]
		if !bound {
			return t
		}
		t = next
	}
}

// UnifyError reports two types that could not be unified.
type UnifyError struct {
	A, B Type
	Msg  string
}

func (e *UnifyError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("cannot unify %s with %s: %s", e.A, e.B, e.Msg)
	}
	return fmt.Sprintf("cannot unify %s with %s", e.A, e.B)
}

// allowPromotion controls whether int<->float promotion is permitted at
// this unification site. Per spec §4.3, promotion is allowed at call sites
// and assignments but not inside deep structural unifies (container
// element/field unification), so Unify threads it explicitly rather than
// making it global.
func (c *UnificationContext) Unify(a, b Type, allowPromotion bool) error {
	a = c.Resolve(a)
	b = c.Resolve(b)

	if a.Equals(b) {
		return nil
	}

	if av, ok := a.(*TypeVar); ok {
		return c.bind(av, b)
	}
	if bv, ok := b.(*TypeVar); ok {
		return c.bind(bv, a)
	}

	if allowPromotion && IsNumeric(a) && IsNumeric(b) {
		return nil // mixed int/float promoted at this site; caller picks widened type
	}

	switch at := a.(type) {
	case *Array:
		bt, ok := b.(*Array)
		if !ok {
			return &UnifyError{A: a, B: b}
		}
		return c.Unify(at.Elem, bt.Elem, false)
	case *Vector:
		if _, ok := b.(*Vector); ok {
			return nil
		}
		return &UnifyError{A: a, B: b}
	case *Tuple:
		bt, ok := b.(*Tuple)
		if !ok || len(bt.Elems) != len(at.Elems) {
			return &UnifyError{A: a, B: b, Msg: "tuple arity mismatch"}
		}
		for i := range at.Elems {
			if err := c.Unify(at.Elems[i], bt.Elems[i], false); err != nil {
				return err
			}
		}
		return nil
	case *Map:
		bt, ok := b.(*Map)
		if !ok {
			return &UnifyError{A: a, B: b}
		}
		if err := c.Unify(at.Key, bt.Key, false); err != nil {
			return err
		}
		return c.Unify(at.Value, bt.Value, false)
	case *Def:
		bt, ok := b.(*Def)
		if !ok || len(bt.Params) != len(at.Params) {
			return &UnifyError{A: a, B: b, Msg: "arity mismatch"}
		}
		for i := range at.Params {
			if err := c.Unify(at.Params[i], bt.Params[i], allowPromotion); err != nil {
				return err
			}
		}
		aret := Instantiate(c, at.Return)
		bret := Instantiate(c, bt.Return)
		return c.Unify(aret, bret, allowPromotion)
	case *Custom:
		bt, ok := b.(*Custom)
		if !ok {
			return &UnifyError{A: a, B: b}
		}
		for anc := bt; anc != nil; anc = anc.Base {
			if anc.ID == at.ID {
				return nil
			}
		}
		for anc := at; anc != nil; anc = anc.Base {
			if anc.ID == bt.ID {
				return nil
			}
		}
		return &UnifyError{A: a, B: b}
	}

	return &UnifyError{A: a, B: b}
}

func (c *UnificationContext) bind(v *TypeVar, t Type) error {
	t = c.Resolve(t)
	if tv, ok := t.(*TypeVar); ok && tv.ID == v.ID {
		return nil
	}
	if c.occurs(v.ID, t) {
		return &UnifyError{A: v, B: t, Msg: "occurs check failed"}
	}
	c.Substitution[v.ID] = t
	return nil
}

func (c *UnificationContext) occurs(id int, t Type) bool {
	t = c.Resolve(t)
	switch tt := t.(type) {
	case *TypeVar:
		return tt.ID == id
	case *Array:
		return c.occurs(id, tt.Elem)
	case *Tuple:
		for _, e := range tt.Elems {
			if c.occurs(id, e) {
				return true
			}
		}
		return false
	case *Map:
		return c.occurs(id, tt.Key) || c.occurs(id, tt.Value)
	case *Def:
		for _, p := range tt.Params {
			if c.occurs(id, p) {
				return true
			}
		}
		return c.occurs(id, tt.Return)
	default:
		return false
	}
}

// Instantiate replaces a PolyType's bound variables with fresh ones. Any
// other type is returned unchanged. Spec §8 property 4: the result is
// alpha-equivalent to Body with ForallIDs replaced by fresh ids, and
// captures no variable free in the instantiating context.
func Instantiate(c *UnificationContext, t Type) Type {
	poly, ok := t.(*PolyType)
	if !ok {
		return t
	}
	mapping := make(map[int]Type, len(poly.ForallIDs))
	for _, id := range poly.ForallIDs {
		mapping[id] = c.Fresh()
	}
	return substituteVars(poly.Body, mapping)
}

func substituteVars(t Type, mapping map[int]Type) Type {
	switch tt := t.(type) {
	case *TypeVar:
		if r, ok := mapping[tt.ID]; ok {
			return r
		}
		return tt
	case *Array:
		return &Array{Elem: substituteVars(tt.Elem, mapping)}
	case *Tuple:
		elems := make([]Type, len(tt.Elems))
		for i, e := range tt.Elems {
			elems[i] = substituteVars(e, mapping)
		}
		return &Tuple{Elems: elems}
	case *Map:
		return &Map{Key: substituteVars(tt.Key, mapping), Value: substituteVars(tt.Value, mapping)}
	case *Def:
		params := make([]Type, len(tt.Params))
		for i, p := range tt.Params {
			params[i] = substituteVars(p, mapping)
		}
		return &Def{Params: params, Return: substituteVars(tt.Return, mapping)}
	case *PolyType:
		return &PolyType{ForallIDs: tt.ForallIDs, Body: substituteVars(tt.Body, mapping)}
	default:
		return tt
	}
}

// FreeVars collects the free TypeVar ids occurring in t, after resolution.
func FreeVars(c *UnificationContext, t Type) map[int]bool {
	out := make(map[int]bool)
	var walk func(Type)
	walk = func(t Type) {
		t = c.Resolve(t)
		switch tt := t.(type) {
		case *TypeVar:
			out[tt.ID] = true
		case *Array:
			walk(tt.Elem)
		case *Tuple:
			for _, e := range tt.Elems {
				walk(e)
			}
		case *Map:
			walk(tt.Key)
			walk(tt.Value)
		case *Def:
			for _, p := range tt.Params {
				walk(p)
			}
			walk(tt.Return)
		case *PolyType:
			walk(tt.Body)
		}
	}
	walk(t)
	return out
}

// Generalize produces a PolyType quantifying over the variables free in t
// but not free in env (spec §4.3 "Generalization").
func Generalize(c *UnificationContext, t Type, envFree map[int]bool) Type {
	tFree := FreeVars(c, t)
	var ids []int
	for id := range tFree {
		if !envFree[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return t
	}
	return &PolyType{ForallIDs: ids, Body: t}
}
