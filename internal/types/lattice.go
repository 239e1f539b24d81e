package types

// ClassSet reports subtype relations between class handles. The program
// model implements it; a nil ClassSet means only identical classes relate.
type ClassSet interface {
	// Extends reports whether sub inherits (directly or transitively)
	// from base.
	Extends(sub, base ClassID) bool
}

// IsAssignableTo reports whether a value of type t can be used where
// target is expected without an explicit conversion. When
// signednessMatters is set (relational operators), same-width integers of
// different signedness are incompatible.
func (t Type) IsAssignableTo(target Type, signednessMatters bool, classes ClassSet) bool {
	if t == target {
		return true
	}
	switch {
	case t.IsReference() && target.IsReference():
		if t.Is(FlagNullable) && !target.Is(FlagNullable) {
			return false
		}
		if t.Class == target.Class {
			return true
		}
		return classes != nil && classes.Extends(t.Class, target.Class)
	case t.IsIntegerValue() && target.IsIntegerValue():
		if t.Bits > target.Bits {
			return false
		}
		if t.Bits == target.Bits {
			if signednessMatters {
				return t.Is(FlagSigned) == target.Is(FlagSigned)
			}
			return t.Kind == KindBool || target.Kind != KindBool
		}
		// Narrower-to-wider: an unsigned source always fits; a signed
		// source needs a signed destination.
		if t.Is(FlagSigned) && !target.Is(FlagSigned) {
			return false
		}
		return true
	case t.IsFloatValue() && target.IsFloatValue():
		return t.Bits <= target.Bits
	default:
		return false
	}
}

// CommonCompatible returns the smallest type both a and b are assignable
// to, used at every binary operator to pick the arithmetic type.
func CommonCompatible(a, b Type, signednessMatters bool, classes ClassSet) (Type, bool) {
	if a == b {
		return a, true
	}
	if a.IsAssignableTo(b, signednessMatters, classes) {
		return b, true
	}
	if b.IsAssignableTo(a, signednessMatters, classes) {
		return a, true
	}
	// Nullability differences between the same class meet at nullable.
	if a.IsReference() && b.IsReference() && a.Class == b.Class {
		return a.AsNullable(), true
	}
	return Void, false
}
