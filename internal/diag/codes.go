package diag

import "fmt"

// Code identifies a diagnostic condition. The numeric space is banded:
// 1xxx type errors, 2xxx semantic errors, 3xxx unsupported constructs,
// 4xxx warnings. Codes are stable; new conditions get new numbers.
type Code uint16

const (
	UnknownCode Code = 0

	// Type errors
	TypeNotAssignable         Code = 1001
	TypeConvertImpossible     Code = 1002
	TypeOperatorNotApplicable Code = 1003
	TypeArithmeticOperands    Code = 1004
	TypeExpectedArguments     Code = 1005
	TypeSignatureMismatch     Code = 1006
	TypeVoidValue             Code = 1007
	TypeNotCallable           Code = 1008
	TypeNotIndexable          Code = 1009
	TypeLiteralOverflow       Code = 1010
	TypeExpectedTypeArguments Code = 1011
	TypeMustReturnValue       Code = 1012

	// Semantic errors
	SemaBreakOutsideLoop        Code = 2001
	SemaContinueOutsideLoop     Code = 2002
	SemaSuperOutsideDerived     Code = 2003
	SemaConstWithoutInitializer Code = 2004
	SemaConstAssignment         Code = 2005
	SemaReadonlyAssignment      Code = 2006
	SemaDuplicateIdentifier     Code = 2007
	SemaUnresolvedIdentifier    Code = 2008
	SemaUnresolvedMember        Code = 2009
	SemaAmbientWithBody         Code = 2010
	SemaConcreteWithoutBody     Code = 2011
	SemaThisOutsideInstance     Code = 2012
	SemaConstEnumNonConstant    Code = 2013
	SemaMutableGlobalExport     Code = 2014
	SemaMissingIndexedSet       Code = 2015
	SemaMissingIndexedGet       Code = 2016

	// Unsupported constructs
	NotSupported           Code = 3001
	NotSupportedTry        Code = 3002
	NotSupportedLabels     Code = 3003
	NotSupportedRest       Code = 3004
	NotSupportedInterfaces Code = 3005

	// Warnings
	WarnNonConstantInitializer Code = 4001
	WarnInlineRecursion        Code = 4002
	WarnImplicitWrap           Code = 4003
)

func (c Code) String() string {
	return fmt.Sprintf("SW%04d", uint16(c))
}

// Explain returns the catalogue entry for a code, used by `swell explain`.
func Explain(c Code) (string, bool) {
	s, ok := catalogue[c]
	return s, ok
}

var catalogue = map[Code]string{
	TypeNotAssignable:         "A value of one type was used where an incompatible type is required and no implicit conversion exists.",
	TypeConvertImpossible:     "No conversion exists between the source and target types, not even an explicit one.",
	TypeOperatorNotApplicable: "The operator is not defined for the operand type; classes may provide one with an @operator method.",
	TypeArithmeticOperands:    "Both operands of an arithmetic operator must share a common numeric type.",
	TypeExpectedArguments:     "The call supplies fewer arguments than the callee requires, or more than it accepts.",
	TypeSignatureMismatch:     "The call target's signature does not match the call shape (this binding or arity).",
	TypeVoidValue:             "An expression of type void was used where a value is required.",
	TypeNotCallable:           "The expression does not name a function or a value with a function signature.",
	TypeNotIndexable:          "The expression's type defines no indexed access.",
	TypeLiteralOverflow:       "The literal does not fit the contextual type.",
	TypeExpectedTypeArguments: "The generic callee needs explicit type arguments because inference found none.",
	TypeMustReturnValue:       "A function whose return type is not void must return a value on every path.",

	SemaBreakOutsideLoop:        "break is only valid inside a loop or switch.",
	SemaContinueOutsideLoop:     "continue is only valid inside a loop.",
	SemaSuperOutsideDerived:     "super requires an enclosing class with a base class.",
	SemaConstWithoutInitializer: "A constant declaration must be initialized.",
	SemaConstAssignment:         "Constants cannot be reassigned.",
	SemaReadonlyAssignment:      "Readonly fields can only be assigned inside the constructor.",
	SemaDuplicateIdentifier:     "The name is already declared in this scope.",
	SemaUnresolvedIdentifier:    "The name does not resolve to any declaration.",
	SemaUnresolvedMember:        "The type has no member with this name.",
	SemaAmbientWithBody:         "Ambient (declared) functions cannot have a body.",
	SemaConcreteWithoutBody:     "Non-ambient functions must have a body.",
	SemaThisOutsideInstance:     "this is only valid inside instance members.",
	SemaConstEnumNonConstant:    "Members of a const enum must evaluate to compile-time constants.",
	SemaMutableGlobalExport:     "Exporting a mutable global requires the mutable-global feature.",
	SemaMissingIndexedSet:       "Assigning through [] requires an @operator(\"[]=\") method.",
	SemaMissingIndexedGet:       "Reading through [] requires an @operator(\"[]\") method.",

	NotSupported:           "The construct is recognised but not supported by the backend.",
	NotSupportedTry:        "try/catch/finally awaits a defined exception ABI and is not supported.",
	NotSupportedLabels:     "Labelled break and continue are not supported.",
	NotSupportedRest:       "Rest parameters are not supported.",
	NotSupportedInterfaces: "Interface declarations are not supported.",

	WarnNonConstantInitializer: "The constant's initializer is not compile-time constant; it degrades to a mutable global initialized at start.",
	WarnInlineRecursion:        "An inline function calls itself; the recursive call is compiled as a normal call.",
	WarnImplicitWrap:           "The value is implicitly wrapped to the target's bit width.",
}
