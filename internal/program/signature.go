package program

import (
	"strings"

	"swell/internal/ast"
	"swell/internal/types"
)

// ParamDecl is a parameter as declared on a prototype, its type still
// textual so generic prototypes can resolve it per instantiation.
type ParamDecl struct {
	Name string
	Type string
	// Init is the optional-parameter initializer; nil means required.
	Init *ast.Expr
}

// Signature is the resolved shape of a callable.
type Signature struct {
	ParameterTypes []types.Type
	ParameterNames []string
	// RequiredParameters counts leading parameters without initializers.
	RequiredParameters int
	ReturnType         types.Type
	// This is the receiver type of instance callables; nil for free
	// functions and statics.
	This *types.Type
	// HasRest is carried for diagnostics; rest parameters never compile.
	HasRest bool
}

func (sig *Signature) HasThis() bool { return sig.This != nil }

// OperandCount returns the full operand count including the receiver.
func (sig *Signature) OperandCount() int {
	n := len(sig.ParameterTypes)
	if sig.HasThis() {
		n++
	}
	return n
}

// String renders a deduplication key of the form "(params)=>ret", receiver
// first. The module's function-type pool does not use it; that pool is
// keyed by native types.
func (sig *Signature) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	if sig.This != nil {
		sb.WriteString("this: ")
		sb.WriteString(sig.This.String())
		if len(sig.ParameterTypes) > 0 {
			sb.WriteString(", ")
		}
	}
	for i, p := range sig.ParameterTypes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(")=>")
	sb.WriteString(sig.ReturnType.String())
	return sb.String()
}
