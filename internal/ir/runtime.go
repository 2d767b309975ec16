package ir

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// runtimeDecls holds every declared runtime helper (spec §4.6
// "Runtime declarations"). All of these are declared once, up front, into
// the target module with the fixed out-parameter-style signatures the
// narval runtime ABI expects: a Value* output pointer, no sret attribute.
type runtimeDecls struct {
	createStr, createInt, createFloat, createBool *ir.Func
	createMap, createArray, createVector, createTuple *ir.Func

	rphWrite, rphWriteNoNl, rphRead *ir.Func
	jsonLoad                       *ir.Func

	stringToUpperCase, stringReplace, stringIncludes *ir.Func
	stringRepeat, stringConcat                       *ir.Func

	arrayPush, arrayPop, arrayGetIndex, arraySetIndex, arrayLength *ir.Func
	vectorPush, vectorPop, vectorGet, vectorSet, vectorLength      *ir.Func
	mapGet, mapSet                                                 *ir.Func
	tupleSet, tupleGet                                             *ir.Func

	stringLength *ir.Func
	ipow, fpow   *ir.Func

	ensureValueType *ir.Func
}

func declareRuntime(m *ir.Module) *runtimeDecls {
	fn := func(name string, ret types.Type, params ...*ir.Param) *ir.Func {
		return m.NewFunc(name, ret, params...)
	}
	p := func(name string, t types.Type) *ir.Param { return ir.NewParam(name, t) }

	r := &runtimeDecls{}
	r.createStr = fn("create_str", types.Void, p("out", ValuePtr), p("s", types.I8Ptr))
	r.createInt = fn("create_int", types.Void, p("out", ValuePtr), p("v", types.I32))
	r.createFloat = fn("create_float", types.Void, p("out", ValuePtr), p("v", types.Double))
	r.createBool = fn("create_bool", types.Void, p("out", ValuePtr), p("v", types.I32))
	r.createMap = fn("create_map", types.Void, p("out", ValuePtr))
	r.createArray = fn("create_array", types.Void, p("out", ValuePtr), p("n", types.I32))
	r.createVector = fn("create_vector", types.Void, p("out", ValuePtr), p("n", types.I32))
	r.createTuple = fn("create_tuple", types.Void, p("out", ValuePtr), p("n", types.I32))

	r.rphWrite = fn("rph_write", types.Void, p("v", ValuePtr))
	r.rphWriteNoNl = fn("rph_write_no_nl", types.Void, p("v", ValuePtr))
	r.rphRead = fn("rph_read", types.I8Ptr)
	r.jsonLoad = fn("json_load", types.Void, p("out", ValuePtr), p("path", types.I8Ptr))

	r.stringToUpperCase = fn("string_to_upper_case", types.Void, p("out", ValuePtr), p("self", ValuePtr))
	r.stringReplace = fn("string_replace", types.Void, p("out", ValuePtr), p("self", ValuePtr), p("old", ValuePtr), p("new", ValuePtr))
	r.stringIncludes = fn("string_includes", types.Void, p("out", ValuePtr), p("self", ValuePtr), p("substr", ValueType))
	r.stringRepeat = fn("string_repeat", types.I8Ptr, p("s", types.I8Ptr), p("n", types.I32))
	r.stringConcat = fn("string_concat", types.I8Ptr, p("a", types.I8Ptr), p("b", types.I8Ptr))

	r.arrayPush = fn("array_push_method", types.Void, p("out", ValuePtr), p("self", ValuePtr), p("elem", ValuePtr))
	r.arrayPop = fn("array_pop_method", types.Void, p("out", ValuePtr), p("self", ValuePtr))
	r.arrayGetIndex = fn("array_get_index_v", types.Void, p("out", ValuePtr), p("self", ValuePtr), p("i", types.I32))
	r.arraySetIndex = fn("array_set_index_v", types.Void, p("self", ValuePtr), p("i", types.I32), p("elem", ValuePtr))
	r.arrayLength = fn("array_length", types.I32, p("self", ValuePtr))

	r.vectorPush = fn("vector_push_method", types.Void, p("out", ValuePtr), p("self", ValuePtr), p("elem", ValuePtr))
	r.vectorPop = fn("vector_pop_method", types.Void, p("out", ValuePtr), p("self", ValuePtr))
	r.vectorGet = fn("vector_get_method", types.Void, p("out", ValuePtr), p("self", ValuePtr), p("i", types.I32))
	r.vectorSet = fn("vector_set_method", types.Void, p("self", ValuePtr), p("i", types.I32), p("elem", ValuePtr))
	r.vectorLength = fn("vector_length", types.I32, p("self", ValuePtr))

	r.mapGet = fn("map_get_method", types.Void, p("out", ValuePtr), p("self", ValuePtr), p("key", types.I8Ptr))
	r.mapSet = fn("map_set_method", types.Void, p("self", ValuePtr), p("key", types.I8Ptr), p("v", ValueType))

	r.tupleSet = fn("tuple_set_impl", types.Void, p("self", ValuePtr), p("i", types.I32), p("elem", ValuePtr))
	r.tupleGet = fn("tuple_get_impl", types.Void, p("out", ValuePtr), p("self", ValuePtr), p("i", types.I32))

	r.stringLength = fn("string_length", types.I32, p("s", types.I8Ptr))
	r.ipow = fn("ipow", types.I32, p("base", types.I32), p("exp", types.I32))
	r.fpow = fn("fpow", types.Double, p("base", types.Double), p("exp", types.Double))

	r.ensureValueType = fn("ensure_value_type", types.Void, p("v", ValuePtr))

	return r
}
