package codegen

import (
	"fmt"

	"fortio.org/safecast"

	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/types"
)

// ensureFunctionTableEntry indexes a function for indirect calls and
// returns its stable table slot. Functions with optional parameters are
// entered through their trampoline so an indirect caller can rely on
// ~argc being honoured.
func (c *Compiler) ensureFunctionTableEntry(f *program.Function) int32 {
	if f.TableIndex >= 0 {
		return f.TableIndex
	}
	c.compileFunction(f)
	target := f
	if f.Signature.RequiredParameters < len(f.Signature.ParameterTypes) && !f.Is(program.FlagTrampoline) {
		target = c.ensureTrampoline(f)
	}
	idx, err := safecast.Conv[int32](len(c.functionTable))
	if err != nil {
		panic(fmt.Errorf("codegen: function table overflow: %w", err))
	}
	c.functionTable = append(c.functionTable, target)
	f.TableIndex = idx
	return idx
}

// ensureArgcVar lazily creates the ~argc global the trampolines read.
func (c *Compiler) ensureArgcVar() {
	if c.argcVarDone {
		return
	}
	c.argcVarDone = true
	c.mod.AddGlobal(argcGlobalName, types.NativeI32, true, ir.ConstI32(0))
}

// ensureArgcSet lazily exports ~setargc for host-side indirect calls.
func (c *Compiler) ensureArgcSet() {
	if c.argcSetDone {
		return
	}
	c.argcSetDone = true
	c.ensureArgcVar()
	ft := c.mod.AddFunctionType(types.NativeNone, []types.NativeType{types.NativeI32})
	body := ir.SetGlobal(argcGlobalName, ir.GetLocal(0, types.NativeI32))
	c.mod.AddFunction(setargcExportName, ft, nil, body)
	c.mod.AddExport(ir.ExportFunction, setargcExportName, setargcExportName)
}

// ensureTrampoline builds the synthetic wrapper that fills in omitted
// optional arguments according to ~argc before dispatching to the
// original.
func (c *Compiler) ensureTrampoline(original *program.Function) *program.Function {
	if original.Trampoline != nil {
		return original.Trampoline
	}
	sig := original.Signature
	minArgs := sig.RequiredParameters
	maxArgs := len(sig.ParameterTypes)
	numOptional := maxArgs - minArgs

	tramp := &program.Function{
		ElementBase: program.ElementBase{
			SimpleName: original.SimpleName,
			Internal:   original.Internal + "|trampoline",
			ElemFlags:  original.Flags() | program.FlagTrampoline | program.FlagCompiled,
			ParentElem: original.Prototype,
		},
		Prototype:       original.Prototype,
		Span:            original.Span,
		Signature:       sig,
		TypeArgs:        original.TypeArgs,
		ContextualTypes: original.ContextualTypes,
		Class:           original.Class,
		TableIndex:      -1,
	}
	// The trampoline shares the original's operand layout: this (if any)
	// followed by every parameter.
	if sig.HasThis() {
		tramp.AddLocal(*sig.This, "this")
	}
	for i, name := range sig.ParameterNames {
		tramp.AddLocal(sig.ParameterTypes[i], name)
	}
	original.Trampoline = tramp
	c.ensureArgcVar()

	prevFn, prevFlow := c.currentFn, c.currentFlow
	c.currentFn = tramp
	c.currentFlow = c.newFlow(tramp)
	defer func() { c.currentFn, c.currentFlow = prevFn, prevFlow }()

	// Innermost: dispatch on the caller-supplied count. Each wrapper
	// block appends one initializer; breaking to label k lands on the
	// k-th initializer so every later one still runs.
	labels := make([]string, numOptional+1)
	for i := range labels {
		labels[i] = fmt.Sprintf("%dof%d", i, numOptional)
	}
	argcExpr := ir.Binary(ir.OpSubI32,
		ir.GetGlobal(argcGlobalName, types.NativeI32),
		ir.ConstI32(int32(minArgs)), types.NativeI32)
	body := ir.Block(labels[0], []*ir.Node{
		ir.Block("outOfRange", []*ir.Node{
			ir.Switch(labels, "outOfRange", argcExpr),
		}, types.NativeNone),
		ir.Unreachable(),
	}, types.NativeNone)

	thisOffset := 0
	if sig.HasThis() {
		thisOffset = 1
	}
	proto := original.Prototype
	for i := 0; i < numOptional; i++ {
		paramIndex := minArgs + i
		var init *ir.Node
		if proto != nil && paramIndex < len(proto.Params) && proto.Params[paramIndex].Init != nil {
			init = c.compileExpression(proto.Params[paramIndex].Init, sig.ParameterTypes[paramIndex], ConversionImplicit, true)
		} else {
			init = c.makeZero(sig.ParameterTypes[paramIndex])
		}
		body = ir.Block(labels[i+1], []*ir.Node{
			body,
			ir.SetLocal(uint32(thisOffset+paramIndex), init),
		}, types.NativeNone)
	}

	operands := make([]*ir.Node, 0, maxArgs+thisOffset)
	for i := 0; i < thisOffset+maxArgs; i++ {
		var t types.Type
		if sig.HasThis() && i == 0 {
			t = *sig.This
		} else {
			t = sig.ParameterTypes[i-thisOffset]
		}
		operands = append(operands, ir.GetLocal(uint32(i), t.NativeType()))
	}
	retNative := sig.ReturnType.NativeType()
	call := c.makeCallNode(original, operands, retNative)
	result := ir.Block("", []*ir.Node{body, call}, retNative)

	ft := c.functionTypeOf(sig)
	c.mod.AddFunction(tramp.Internal, ft, c.additionalLocalTypes(tramp), result)
	return tramp
}

// functionTypeOf pools the IR type of a signature, receiver included.
func (c *Compiler) functionTypeOf(sig *program.Signature) *ir.FunctionType {
	params := make([]types.NativeType, 0, sig.OperandCount())
	if sig.HasThis() {
		params = append(params, sig.This.NativeType())
	}
	for _, p := range sig.ParameterTypes {
		params = append(params, p.NativeType())
	}
	return c.mod.AddFunctionType(sig.ReturnType.NativeType(), params)
}

// makeCallNode emits call or call_import depending on where the target
// lives.
func (c *Compiler) makeCallNode(f *program.Function, operands []*ir.Node, result types.NativeType) *ir.Node {
	if f.Is(program.FlagModuleImport) {
		return ir.CallImport(f.Internal, operands, result)
	}
	return ir.Call(f.Internal, operands, result)
}
