package codegen

import (
	"fmt"

	"swell/internal/ast"
	"swell/internal/diag"
	"swell/internal/ir"
	"swell/internal/program"
	"swell/internal/types"
)

// compileStatementList flattens a body (block or single statement) into
// IR statements.
func (c *Compiler) compileStatementList(body *ast.Stmt) []*ir.Node {
	if body == nil {
		return nil
	}
	var stmts []*ast.Stmt
	if body.Kind == ast.StmtBlock {
		stmts = body.Data.(ast.BlockData).Stmts
	} else {
		stmts = []*ast.Stmt{body}
	}
	out := make([]*ir.Node, 0, len(stmts))
	for _, s := range stmts {
		node := c.compileStatement(s)
		if node != nil && node.Kind != ir.KindNop {
			out = append(out, node)
		}
	}
	return out
}

// compileStatement lowers one statement to an IR node.
func (c *Compiler) compileStatement(stmt *ast.Stmt) *ir.Node {
	node := c.compileStatementKind(stmt)
	c.recordDebugLocation(node, stmt.Span)
	return node
}

func (c *Compiler) compileStatementKind(stmt *ast.Stmt) *ir.Node {
	switch stmt.Kind {
	case ast.StmtBlock:
		return c.compileBlockStatement(stmt)
	case ast.StmtIf:
		return c.compileIfStatement(stmt)
	case ast.StmtWhile:
		return c.compileWhileStatement(stmt)
	case ast.StmtDo:
		return c.compileDoStatement(stmt)
	case ast.StmtFor:
		return c.compileForStatement(stmt)
	case ast.StmtSwitch:
		return c.compileSwitchStatement(stmt)
	case ast.StmtReturn:
		return c.compileReturnStatement(stmt)
	case ast.StmtBreak:
		return c.compileBreakStatement(stmt)
	case ast.StmtContinue:
		return c.compileContinueStatement(stmt)
	case ast.StmtThrow:
		return c.compileThrowStatement(stmt)
	case ast.StmtTry:
		c.error(diag.NotSupportedTry, stmt.Span, "try statements are not supported")
		return ir.Unreachable()
	case ast.StmtVariable:
		return c.compileVariableStatement(stmt)
	case ast.StmtExpr:
		data := stmt.Data.(ast.ExprStmtData)
		expr := c.compileExpression(data.Expr, types.Void, ConversionNone, false)
		if c.currentType.IsVoid() {
			return expr
		}
		return ir.Drop(expr)
	case ast.StmtEmpty:
		return ir.Nop()
	default:
		c.error(diag.NotSupported, stmt.Span, "statement kind not supported")
		return ir.Unreachable()
	}
}

func (c *Compiler) compileBlockStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.BlockData)
	parent := c.currentFlow
	c.currentFlow = parent.Fork()
	nodes := make([]*ir.Node, 0, len(data.Stmts))
	for _, s := range data.Stmts {
		node := c.compileStatement(s)
		if node != nil && node.Kind != ir.KindNop {
			nodes = append(nodes, node)
		}
	}
	child := c.currentFlow
	c.currentFlow = child.Free()
	c.currentFlow.Inherit(child)
	switch len(nodes) {
	case 0:
		return ir.Nop()
	case 1:
		return nodes[0]
	default:
		return ir.Block("", nodes, types.NativeNone)
	}
}

func (c *Compiler) compileIfStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.IfData)
	condExpr := c.compileExpression(data.Cond, types.Bool, ConversionNone, false)
	cond := c.makeIsTrueish(condExpr, c.currentType)

	// A constant condition elides the dead arm unless the enclosing
	// function is generic-context-sensitive.
	folded := ir.Precompute(cond)
	if folded.IsConst() && len(c.currentFn.TypeArgs) == 0 {
		var live *ast.Stmt
		if folded.IsConstNonZero() {
			live = data.Then
		} else {
			live = data.Else
		}
		if live == nil {
			return ir.Nop()
		}
		return c.compileStatement(live)
	}

	parent := c.currentFlow
	c.currentFlow = parent.Fork()
	thenNode := c.compileStatement(data.Then)
	thenFlow := c.currentFlow
	c.currentFlow = thenFlow.Free()

	if data.Else != nil {
		c.currentFlow = parent.Fork()
		elseNode := c.compileStatement(data.Else)
		elseFlow := c.currentFlow
		c.currentFlow = elseFlow.Free()
		parent.InheritMutual(thenFlow, elseFlow)
		return ir.If(cond, thenNode, elseNode, types.NativeNone)
	}
	parent.InheritConditional(thenFlow)
	return ir.If(cond, thenNode, nil, types.NativeNone)
}

func (c *Compiler) compileWhileStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.WhileData)
	id := c.enterBreakContext()
	defer c.leaveBreakContext()
	breakLabel := fmt.Sprintf("break|%d", id)
	continueLabel := fmt.Sprintf("continue|%d", id)

	condExpr := c.compileExpression(data.Cond, types.Bool, ConversionNone, false)
	cond := c.makeIsTrueish(condExpr, c.currentType)
	alwaysTrue := ir.Precompute(cond).IsConstNonZero()

	parent := c.currentFlow
	child := parent.Fork()
	child.BreakLabel = breakLabel
	child.ContinueLabel = continueLabel
	c.currentFlow = child
	bodyNode := c.compileStatement(data.Body)
	c.currentFlow = child.Free()

	terminates := child.IsAny(FlowReturns | FlowThrows | FlowBreaks | FlowContinues)
	var loopChildren []*ir.Node
	loopChildren = append(loopChildren, bodyNode)
	if !terminates {
		loopChildren = append(loopChildren, ir.Break(continueLabel, nil, nil))
	}
	loopBody := ir.If(cond, ir.Block("", loopChildren, types.NativeNone), nil, types.NativeNone)

	if alwaysTrue && !child.IsAny(FlowConditionallyBreaks|FlowBreaks) {
		// The loop can only be left by returning or throwing.
		parent.Inherit(child)
	} else {
		parent.InheritConditional(child)
	}
	return ir.Block(breakLabel, []*ir.Node{
		ir.Loop(continueLabel, loopBody),
	}, types.NativeNone)
}

func (c *Compiler) compileDoStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.DoData)
	id := c.enterBreakContext()
	defer c.leaveBreakContext()
	breakLabel := fmt.Sprintf("break|%d", id)
	continueLabel := fmt.Sprintf("continue|%d", id)

	parent := c.currentFlow
	child := parent.Fork()
	child.BreakLabel = breakLabel
	child.ContinueLabel = continueLabel
	c.currentFlow = child
	bodyNode := c.compileStatement(data.Body)
	terminates := child.IsAny(FlowReturns | FlowThrows | FlowBreaks | FlowContinues)

	children := []*ir.Node{bodyNode}
	if !terminates {
		// Only a falling-through body re-tests the condition.
		condExpr := c.compileExpression(data.Cond, types.Bool, ConversionNone, false)
		cond := c.makeIsTrueish(condExpr, c.currentType)
		children = append(children, ir.Break(continueLabel, cond, nil))
	}
	c.currentFlow = child.Free()

	// The body executes at least once.
	if !child.IsAny(FlowConditionallyBreaks | FlowBreaks) {
		parent.Inherit(child)
	} else {
		parent.InheritConditional(child)
	}
	loopBody := ir.Block("", children, types.NativeNone)
	if len(children) == 1 {
		loopBody = children[0]
	}
	return ir.Block(breakLabel, []*ir.Node{
		ir.Loop(continueLabel, loopBody),
	}, types.NativeNone)
}

func (c *Compiler) compileForStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.ForData)
	id := c.enterBreakContext()
	defer c.leaveBreakContext()
	breakLabel := fmt.Sprintf("break|%d", id)
	continueLabel := fmt.Sprintf("continue|%d", id)
	repeatLabel := fmt.Sprintf("repeat|%d", id)

	parent := c.currentFlow
	child := parent.Fork()
	child.BreakLabel = breakLabel
	child.ContinueLabel = continueLabel
	c.currentFlow = child

	var initNode *ir.Node
	if data.Init != nil {
		initNode = c.compileStatement(data.Init)
	}

	var cond *ir.Node
	alwaysTrue := true
	if data.Cond != nil {
		condExpr := c.compileExpression(data.Cond, types.Bool, ConversionNone, false)
		cond = c.makeIsTrueish(condExpr, c.currentType)
		alwaysTrue = ir.Precompute(cond).IsConstNonZero()
	}

	bodyNode := c.compileStatement(data.Body)
	bodyTerminates := child.IsAny(FlowReturns | FlowThrows | FlowBreaks)
	continues := child.IsAny(FlowContinues | FlowConditionallyContinues)

	var loopChildren []*ir.Node
	if cond != nil && !alwaysTrue {
		loopChildren = append(loopChildren, ir.Break(breakLabel, ir.Unary(ir.OpEqzI32, cond, types.NativeI32), nil))
	}
	if continues {
		loopChildren = append(loopChildren, ir.Block(continueLabel, []*ir.Node{bodyNode}, types.NativeNone))
	} else {
		loopChildren = append(loopChildren, bodyNode)
	}
	if !bodyTerminates || continues {
		if data.Incr != nil {
			incr := c.compileExpression(data.Incr, types.Void, ConversionNone, false)
			if !c.currentType.IsVoid() {
				incr = ir.Drop(incr)
			}
			loopChildren = append(loopChildren, incr)
		}
		loopChildren = append(loopChildren, ir.Break(repeatLabel, nil, nil))
	}

	c.currentFlow = child.Free()
	if alwaysTrue && !child.IsAny(FlowConditionallyBreaks|FlowBreaks) {
		parent.Inherit(child)
	} else {
		parent.InheritConditional(child)
	}

	var outer []*ir.Node
	if initNode != nil && initNode.Kind != ir.KindNop {
		outer = append(outer, initNode)
	}
	outer = append(outer, ir.Loop(repeatLabel, ir.Block("", loopChildren, types.NativeNone)))
	return ir.Block(breakLabel, outer, types.NativeNone)
}

func (c *Compiler) compileSwitchStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.SwitchData)
	id := c.enterBreakContext()
	defer c.leaveBreakContext()
	breakLabel := fmt.Sprintf("break|%d", id)

	condExpr := c.compileExpression(data.Cond, types.I32, ConversionImplicit, true)
	condLocal := c.getTempLocal(types.I32)
	defer c.freeTempLocal(condLocal)

	caseLabel := func(i int) string { return fmt.Sprintf("case%d|%d", i, id) }

	// One br_if per labelled case, then a br to the default (or out).
	inner := []*ir.Node{ir.SetLocal(uint32(condLocal.Index), condExpr)}
	defaultIndex := -1
	for i, cs := range data.Cases {
		if cs.Label == nil {
			defaultIndex = i
			continue
		}
		label := c.compileExpression(cs.Label, types.I32, ConversionImplicit, true)
		inner = append(inner, ir.Break(caseLabel(i),
			ir.Binary(ir.OpEqI32, ir.GetLocal(uint32(condLocal.Index), types.NativeI32), label, types.NativeI32),
			nil))
	}
	if defaultIndex >= 0 {
		inner = append(inner, ir.Break(caseLabel(defaultIndex), nil, nil))
	} else {
		inner = append(inner, ir.Break(breakLabel, nil, nil))
	}

	// Nest cases in chained labelled blocks so fall-through works.
	parent := c.currentFlow
	current := ir.Block(caseLabel(0), inner, types.NativeNone)
	allTerminate := len(data.Cases) > 0
	const unanimous = terminatingFlags | FlowAllocates
	commonFlags := unanimous
	for i, cs := range data.Cases {
		child := parent.Fork()
		child.BreakLabel = breakLabel
		c.currentFlow = child
		caseStmts := []*ir.Node{current}
		for _, s := range cs.Stmts {
			node := c.compileStatement(s)
			if node != nil && node.Kind != ir.KindNop {
				caseStmts = append(caseStmts, node)
			}
		}
		c.currentFlow = child.Free()
		if !child.IsAny(FlowReturns | FlowThrows | FlowBreaks) {
			allTerminate = false
		}
		commonFlags &= child.flags | ^unanimous
		parent.InheritConditional(child)

		nextLabel := breakLabel
		if i+1 < len(data.Cases) {
			nextLabel = caseLabel(i + 1)
		}
		current = ir.Block(nextLabel, caseStmts, types.NativeNone)
	}

	// With a default every path is covered; unanimous bits upgrade.
	if defaultIndex >= 0 && allTerminate {
		parent.Set(commonFlags & (FlowReturns | FlowReturnsWrapped | FlowThrows | FlowAllocates))
	}
	return current
}

func (c *Compiler) compileReturnStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.ReturnData)
	flow := c.currentFlow
	retType := flow.ReturnType

	var value *ir.Node
	if data.Value != nil {
		if retType.IsVoid() {
			value = c.compileExpression(data.Value, types.Void, ConversionNone, false)
			if !c.currentType.IsVoid() {
				value = ir.Drop(value)
			}
			flow.Set(FlowReturns)
			if flow.Is(FlowInlineContext) {
				return ir.Block("", []*ir.Node{value, ir.Break(flow.ReturnLabel, nil, nil)}, types.NativeNone)
			}
			return ir.Block("", []*ir.Node{value, ir.Return(nil)}, types.NativeNone)
		}
		value = c.compileExpression(data.Value, retType, ConversionImplicit, true)
	} else if !retType.IsVoid() {
		c.error(diag.TypeMustReturnValue, stmt.Span, "return needs a value of type %s", retType)
		return ir.Unreachable()
	}

	flow.Set(FlowReturns)
	if value != nil && retType.IsShortInteger() && !flow.CanOverflow(value, retType) {
		flow.Set(FlowReturnsWrapped)
	}
	if flow.Is(FlowInlineContext) {
		return ir.Break(flow.ReturnLabel, nil, value)
	}
	return ir.Return(value)
}

func (c *Compiler) compileBreakStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.BreakData)
	if data.Label != "" {
		c.error(diag.NotSupportedLabels, stmt.Span, "labelled break is not supported")
		return ir.Unreachable()
	}
	flow := c.currentFlow
	if flow.BreakLabel == "" {
		c.error(diag.SemaBreakOutsideLoop, stmt.Span, "break outside a loop or switch")
		return ir.Unreachable()
	}
	flow.Set(FlowBreaks)
	return ir.Break(flow.BreakLabel, nil, nil)
}

func (c *Compiler) compileContinueStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.ContinueData)
	if data.Label != "" {
		c.error(diag.NotSupportedLabels, stmt.Span, "labelled continue is not supported")
		return ir.Unreachable()
	}
	flow := c.currentFlow
	if flow.ContinueLabel == "" {
		c.error(diag.SemaContinueOutsideLoop, stmt.Span, "continue outside a loop")
		return ir.Unreachable()
	}
	flow.Set(FlowContinues)
	return ir.Break(flow.ContinueLabel, nil, nil)
}

func (c *Compiler) compileThrowStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.ThrowData)
	flow := c.currentFlow
	// Pending an exception ABI a throw aborts, so it also terminates.
	flow.Set(FlowThrows | FlowReturns)
	return c.makeAbort(data.Value, stmt.Span)
}

func (c *Compiler) compileVariableStatement(stmt *ast.Stmt) *ir.Node {
	data := stmt.Data.(ast.VariableData)
	var nodes []*ir.Node
	isStartScope := c.currentFn == c.startFn && !c.currentFlow.Is(FlowInlineContext)
	for i := range data.Decls {
		decl := &data.Decls[i]
		if isStartScope {
			if node := c.compileGlobalDeclarator(decl); node != nil {
				nodes = append(nodes, node)
			}
			continue
		}
		if node := c.compileLocalDeclarator(decl); node != nil {
			nodes = append(nodes, node)
		}
	}
	switch len(nodes) {
	case 0:
		return ir.Nop()
	case 1:
		return nodes[0]
	default:
		return ir.Block("", nodes, types.NativeNone)
	}
}

// compileGlobalDeclarator turns a start-scope variable into a module
// global.
func (c *Compiler) compileGlobalDeclarator(decl *ast.VarDeclarator) *ir.Node {
	g := &program.Global{
		ElementBase: program.ElementBase{SimpleName: decl.Name, Internal: decl.Name},
		Span:        decl.Span,
		TypeName:    decl.Type,
		Init:        decl.Init,
	}
	if decl.Const {
		g.SetFlags(program.FlagConst)
	}
	if !c.prog.Register(decl.Name, g) {
		c.error(diag.SemaDuplicateIdentifier, decl.Span, "duplicate identifier %s", decl.Name)
		return nil
	}
	c.compileGlobal(g)
	return nil
}

// compileLocalDeclarator lowers one local declaration. Constant
// declarations whose initializer precomputes become virtual locals.
func (c *Compiler) compileLocalDeclarator(decl *ast.VarDeclarator) *ir.Node {
	flow := c.currentFlow
	var t types.Type
	var init *ir.Node
	if decl.Type != "" {
		resolved, ok := c.prog.ResolveTypeName(decl.Type, c.currentFn.ContextualTypes)
		if !ok {
			c.error(diag.SemaUnresolvedIdentifier, decl.Span, "cannot resolve type %q", decl.Type)
			return ir.Unreachable()
		}
		t = resolved
		if decl.Init != nil {
			init = c.compileExpression(decl.Init, t, ConversionImplicit, true)
		}
	} else if decl.Init != nil {
		init = c.compileExpression(decl.Init, types.Void, ConversionNone, true)
		t = c.currentType
	} else {
		c.error(diag.SemaUnresolvedIdentifier, decl.Span, "local %s needs a type or an initializer", decl.Name)
		return ir.Unreachable()
	}
	if decl.Const && decl.Init == nil {
		c.error(diag.SemaConstWithoutInitializer, decl.Span, "constant %s lacks an initializer", decl.Name)
		return ir.Unreachable()
	}

	if decl.Const && init != nil {
		if folded := ir.Precompute(init); folded.IsConst() {
			virtual := &program.Local{
				ElementBase: program.ElementBase{
					SimpleName: decl.Name,
					ElemFlags:  program.FlagConst | program.FlagInlined | program.FlagScoped,
				},
				Index:    -1,
				Type:     t,
				Constant: constantFromNode(folded),
			}
			if !flow.AddScopedLocal(decl.Name, virtual) {
				c.error(diag.SemaDuplicateIdentifier, decl.Span, "duplicate identifier %s", decl.Name)
			}
			return nil
		}
	}

	local := c.currentFn.AddLocal(t, decl.Name)
	local.SetFlags(program.FlagScoped)
	if decl.Const {
		local.SetFlags(program.FlagConst)
	}
	if !flow.AddScopedLocal(decl.Name, local) {
		c.error(diag.SemaDuplicateIdentifier, decl.Span, "duplicate identifier %s", decl.Name)
		return nil
	}
	if init == nil {
		return nil
	}
	if t.IsShortInteger() {
		flow.SetLocalWrapped(local.Index, !flow.CanOverflow(init, t))
	}
	return ir.SetLocal(uint32(local.Index), init)
}
