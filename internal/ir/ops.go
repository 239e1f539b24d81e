package ir

// Op enumerates the WebAssembly operations the lowering emits. Unary and
// binary ops share the space; the node kind decides the arity.
type Op uint8

const (
	OpInvalid Op = iota

	// Unary, i32
	OpClzI32
	OpCtzI32
	OpPopcntI32
	OpEqzI32
	OpExtendI8ToI32
	OpExtendI16ToI32

	// Unary, i64
	OpClzI64
	OpCtzI64
	OpPopcntI64
	OpEqzI64
	OpExtendI8ToI64
	OpExtendI16ToI64
	OpExtendI32ToI64

	// Unary, conversions
	OpWrapI64
	OpExtendI32
	OpExtendU32
	OpTruncF32ToI32
	OpTruncF32ToU32
	OpTruncF32ToI64
	OpTruncF32ToU64
	OpTruncF64ToI32
	OpTruncF64ToU32
	OpTruncF64ToI64
	OpTruncF64ToU64
	OpConvertI32ToF32
	OpConvertU32ToF32
	OpConvertI32ToF64
	OpConvertU32ToF64
	OpConvertI64ToF32
	OpConvertU64ToF32
	OpConvertI64ToF64
	OpConvertU64ToF64
	OpPromoteF32
	OpDemoteF64
	OpReinterpretF32
	OpReinterpretF64
	OpReinterpretI32
	OpReinterpretI64

	// Unary, float
	OpNegF32
	OpAbsF32
	OpCeilF32
	OpFloorF32
	OpTruncF32
	OpNearestF32
	OpSqrtF32
	OpNegF64
	OpAbsF64
	OpCeilF64
	OpFloorF64
	OpTruncF64
	OpNearestF64
	OpSqrtF64

	// Binary, i32
	OpAddI32
	OpSubI32
	OpMulI32
	OpDivI32
	OpDivU32
	OpRemI32
	OpRemU32
	OpAndI32
	OpOrI32
	OpXorI32
	OpShlI32
	OpShrI32
	OpShrU32
	OpRotlI32
	OpRotrI32
	OpEqI32
	OpNeI32
	OpLtI32
	OpLtU32
	OpLeI32
	OpLeU32
	OpGtI32
	OpGtU32
	OpGeI32
	OpGeU32

	// Binary, i64
	OpAddI64
	OpSubI64
	OpMulI64
	OpDivI64
	OpDivU64
	OpRemI64
	OpRemU64
	OpAndI64
	OpOrI64
	OpXorI64
	OpShlI64
	OpShrI64
	OpShrU64
	OpRotlI64
	OpRotrI64
	OpEqI64
	OpNeI64
	OpLtI64
	OpLtU64
	OpLeI64
	OpLeU64
	OpGtI64
	OpGtU64
	OpGeI64
	OpGeU64

	// Binary, f32
	OpAddF32
	OpSubF32
	OpMulF32
	OpDivF32
	OpMinF32
	OpMaxF32
	OpCopysignF32
	OpEqF32
	OpNeF32
	OpLtF32
	OpLeF32
	OpGtF32
	OpGeF32

	// Binary, f64
	OpAddF64
	OpSubF64
	OpMulF64
	OpDivF64
	OpMinF64
	OpMaxF64
	OpCopysignF64
	OpEqF64
	OpNeF64
	OpLtF64
	OpLeF64
	OpGtF64
	OpGeF64
)

var opNames = map[Op]string{
	OpClzI32:          "i32.clz",
	OpCtzI32:          "i32.ctz",
	OpPopcntI32:       "i32.popcnt",
	OpEqzI32:          "i32.eqz",
	OpExtendI8ToI32:   "i32.extend8_s",
	OpExtendI16ToI32:  "i32.extend16_s",
	OpClzI64:          "i64.clz",
	OpCtzI64:          "i64.ctz",
	OpPopcntI64:       "i64.popcnt",
	OpEqzI64:          "i64.eqz",
	OpExtendI8ToI64:   "i64.extend8_s",
	OpExtendI16ToI64:  "i64.extend16_s",
	OpExtendI32ToI64:  "i64.extend32_s",
	OpWrapI64:         "i32.wrap_i64",
	OpExtendI32:       "i64.extend_i32_s",
	OpExtendU32:       "i64.extend_i32_u",
	OpTruncF32ToI32:   "i32.trunc_f32_s",
	OpTruncF32ToU32:   "i32.trunc_f32_u",
	OpTruncF32ToI64:   "i64.trunc_f32_s",
	OpTruncF32ToU64:   "i64.trunc_f32_u",
	OpTruncF64ToI32:   "i32.trunc_f64_s",
	OpTruncF64ToU32:   "i32.trunc_f64_u",
	OpTruncF64ToI64:   "i64.trunc_f64_s",
	OpTruncF64ToU64:   "i64.trunc_f64_u",
	OpConvertI32ToF32: "f32.convert_i32_s",
	OpConvertU32ToF32: "f32.convert_i32_u",
	OpConvertI32ToF64: "f64.convert_i32_s",
	OpConvertU32ToF64: "f64.convert_i32_u",
	OpConvertI64ToF32: "f32.convert_i64_s",
	OpConvertU64ToF32: "f32.convert_i64_u",
	OpConvertI64ToF64: "f64.convert_i64_s",
	OpConvertU64ToF64: "f64.convert_i64_u",
	OpPromoteF32:      "f64.promote_f32",
	OpDemoteF64:       "f32.demote_f64",
	OpReinterpretF32:  "i32.reinterpret_f32",
	OpReinterpretF64:  "i64.reinterpret_f64",
	OpReinterpretI32:  "f32.reinterpret_i32",
	OpReinterpretI64:  "f64.reinterpret_i64",
	OpNegF32:          "f32.neg",
	OpAbsF32:          "f32.abs",
	OpCeilF32:         "f32.ceil",
	OpFloorF32:        "f32.floor",
	OpTruncF32:        "f32.trunc",
	OpNearestF32:      "f32.nearest",
	OpSqrtF32:         "f32.sqrt",
	OpNegF64:          "f64.neg",
	OpAbsF64:          "f64.abs",
	OpCeilF64:         "f64.ceil",
	OpFloorF64:        "f64.floor",
	OpTruncF64:        "f64.trunc",
	OpNearestF64:      "f64.nearest",
	OpSqrtF64:         "f64.sqrt",
	OpAddI32:          "i32.add",
	OpSubI32:          "i32.sub",
	OpMulI32:          "i32.mul",
	OpDivI32:          "i32.div_s",
	OpDivU32:          "i32.div_u",
	OpRemI32:          "i32.rem_s",
	OpRemU32:          "i32.rem_u",
	OpAndI32:          "i32.and",
	OpOrI32:           "i32.or",
	OpXorI32:          "i32.xor",
	OpShlI32:          "i32.shl",
	OpShrI32:          "i32.shr_s",
	OpShrU32:          "i32.shr_u",
	OpRotlI32:         "i32.rotl",
	OpRotrI32:         "i32.rotr",
	OpEqI32:           "i32.eq",
	OpNeI32:           "i32.ne",
	OpLtI32:           "i32.lt_s",
	OpLtU32:           "i32.lt_u",
	OpLeI32:           "i32.le_s",
	OpLeU32:           "i32.le_u",
	OpGtI32:           "i32.gt_s",
	OpGtU32:           "i32.gt_u",
	OpGeI32:           "i32.ge_s",
	OpGeU32:           "i32.ge_u",
	OpAddI64:          "i64.add",
	OpSubI64:          "i64.sub",
	OpMulI64:          "i64.mul",
	OpDivI64:          "i64.div_s",
	OpDivU64:          "i64.div_u",
	OpRemI64:          "i64.rem_s",
	OpRemU64:          "i64.rem_u",
	OpAndI64:          "i64.and",
	OpOrI64:           "i64.or",
	OpXorI64:          "i64.xor",
	OpShlI64:          "i64.shl",
	OpShrI64:          "i64.shr_s",
	OpShrU64:          "i64.shr_u",
	OpRotlI64:         "i64.rotl",
	OpRotrI64:         "i64.rotr",
	OpEqI64:           "i64.eq",
	OpNeI64:           "i64.ne",
	OpLtI64:           "i64.lt_s",
	OpLtU64:           "i64.lt_u",
	OpLeI64:           "i64.le_s",
	OpLeU64:           "i64.le_u",
	OpGtI64:           "i64.gt_s",
	OpGtU64:           "i64.gt_u",
	OpGeI64:           "i64.ge_s",
	OpGeU64:           "i64.ge_u",
	OpAddF32:          "f32.add",
	OpSubF32:          "f32.sub",
	OpMulF32:          "f32.mul",
	OpDivF32:          "f32.div",
	OpMinF32:          "f32.min",
	OpMaxF32:          "f32.max",
	OpCopysignF32:     "f32.copysign",
	OpEqF32:           "f32.eq",
	OpNeF32:           "f32.ne",
	OpLtF32:           "f32.lt",
	OpLeF32:           "f32.le",
	OpGtF32:           "f32.gt",
	OpGeF32:           "f32.ge",
	OpAddF64:          "f64.add",
	OpSubF64:          "f64.sub",
	OpMulF64:          "f64.mul",
	OpDivF64:          "f64.div",
	OpMinF64:          "f64.min",
	OpMaxF64:          "f64.max",
	OpCopysignF64:     "f64.copysign",
	OpEqF64:           "f64.eq",
	OpNeF64:           "f64.ne",
	OpLtF64:           "f64.lt",
	OpLeF64:           "f64.le",
	OpGtF64:           "f64.gt",
	OpGeF64:           "f64.ge",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "op(?)"
}
