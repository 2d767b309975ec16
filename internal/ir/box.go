package ir

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	narvaltypes "github.com/narval-lang/narval/internal/types"
)

// allocaSlot emits an alloca for t in the function's entry block convention
// (here: at the current insertion point, matching the teacher's
// single-pass builder style rather than a separate entry-block hoist pass).
func (gc *GenContext) allocaSlot(t types.Type, name string) *ir.InstAlloca {
	return gc.Block.NewAlloca(t)
}

// boxValue converts a producer's raw (unboxed) value of source type srcType
// into a Value aggregate, per spec §4.6 "Boxing rules". If v is already a
// Value (srcType resolves to a container/dynamic type already represented as
// ValueType), this degenerates to a store-load.
func (gc *GenContext) boxValue(v value.Value, srcType narvaltypes.Type) value.Value {
	out := gc.allocaSlot(ValueType, "box")
	switch v.Type() {
	case types.I1:
		ext := gc.Block.NewZExt(v, types.I32)
		gc.Block.NewCall(gc.runtime.createBool, out, ext)
	case types.Double:
		gc.Block.NewCall(gc.runtime.createFloat, out, v)
	case types.I8Ptr:
		gc.Block.NewCall(gc.runtime.createStr, out, v)
	default:
		if it, ok := v.Type().(*types.IntType); ok {
			iv := v
			if it.BitSize != 32 {
				iv = sextOrTrunc(gc.Block, v, types.I32)
			}
			gc.Block.NewCall(gc.runtime.createInt, out, iv)
		} else if v.Type().Equal(ValueType) {
			gc.Block.NewStore(v, out)
		} else {
			gc.Block.NewStore(constant.NewUndef(ValueType), out)
		}
	}
	return gc.Block.NewLoad(ValueType, out)
}

// sextOrTrunc is a tiny convenience the teacher's own builder style
// favors (one call site instead of branching at every caller): sign-extend
// or truncate v to t depending on relative width.
func sextOrTrunc(b *ir.Block, v value.Value, t *types.IntType) value.Value {
	vt := v.Type().(*types.IntType)
	if vt.BitSize < t.BitSize {
		return b.NewSExt(v, t)
	}
	if vt.BitSize > t.BitSize {
		return b.NewTrunc(v, t)
	}
	return v
}

// unboxInt extracts an i32 from the produced value's final return path
// (spec §4.6 "Unboxing at the final return"): if v is a Value, spill it,
// call ensure_value_type, and load+truncate the payload field; otherwise
// truncate/extend v directly if it's already an integer.
func (gc *GenContext) unboxInt(v value.Value) value.Value {
	if v.Type().Equal(ValueType) {
		slot := gc.allocaSlot(ValueType, "spill")
		gc.Block.NewStore(v, slot)
		gc.Block.NewCall(gc.runtime.ensureValueType, slot)
		payloadPtr := gc.Block.NewGetElementPtr(ValueType, slot,
			constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 1))
		payload := gc.Block.NewLoad(types.I64, payloadPtr)
		return gc.Block.NewTrunc(payload, types.I32)
	}
	if _, ok := v.Type().(*types.IntType); ok {
		return sextOrTrunc(gc.Block, v, types.I32)
	}
	return v
}
