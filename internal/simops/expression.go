// Package simops implements the engine's closed operation set: the
// stream-mutating statements (Set, Change, Cap, Floor, Recharge, Retire,
// Recover, Replace, Enable, InitialCharge) a parsed program issues against
// a substance's streams, built from a small expression language
// (literals, variable and stream reads, arithmetic/comparison/logical
// composition, conditionals, unit conversion, and clamping) evaluated
// against a push-down Machine.
package simops

import (
	"github.com/example/refrigerantsim/internal/simeval"
	"github.com/example/refrigerantsim/internal/simnum"
)

// Expression is a compiled value expression: given a machine, it produces
// an EngineNumber or fails. Expressions compose the same way the
// push-down evaluator's instructions do, but are represented as closures
// here rather than an instruction slice, since every expression this
// engine evaluates is a short-lived tree built fresh from the currently
// parsed operation.
type Expression func(m *simeval.Machine) (simnum.EngineNumber, error)

// Literal returns an expression that always evaluates to value.
func Literal(value simnum.EngineNumber) Expression {
	return func(m *simeval.Machine) (simnum.EngineNumber, error) {
		return value, nil
	}
}

// GetVariable returns an expression that resolves name through the
// machine's variable chain.
func GetVariable(name string) Expression {
	return func(m *simeval.Machine) (simnum.EngineNumber, error) {
		if err := m.PushVariable(name); err != nil {
			return simnum.EngineNumber{}, err
		}
		return m.Pop()
	}
}

// DefineVariable returns an expression that evaluates value, binds it to
// name at the machine's current scope level, and yields the bound value
// (so a define can appear mid-expression and still contribute its
// result).
func DefineVariable(name string, value Expression) Expression {
	return func(m *simeval.Machine) (simnum.EngineNumber, error) {
		v, err := value(m)
		if err != nil {
			return simnum.EngineNumber{}, err
		}
		m.PushLiteral(v)
		if err := m.DefineVariable(name); err != nil {
			return simnum.EngineNumber{}, err
		}
		return v, nil
	}
}

// GetStream returns an expression that reads the current value of stream.
func GetStream(stream string) Expression {
	return func(m *simeval.Machine) (simnum.EngineNumber, error) {
		if err := m.PushStream(stream); err != nil {
			return simnum.EngineNumber{}, err
		}
		return m.Pop()
	}
}

func binary(left, right Expression, apply func(m *simeval.Machine) error) Expression {
	return func(m *simeval.Machine) (simnum.EngineNumber, error) {
		l, err := left(m)
		if err != nil {
			return simnum.EngineNumber{}, err
		}
		r, err := right(m)
		if err != nil {
			return simnum.EngineNumber{}, err
		}
		m.PushLiteral(l)
		m.PushLiteral(r)
		if err := apply(m); err != nil {
			return simnum.EngineNumber{}, err
		}
		return m.Pop()
	}
}

// Add returns an expression evaluating left + right.
func Add(left, right Expression) Expression {
	return binary(left, right, (*simeval.Machine).Add)
}

// Subtract returns an expression evaluating left - right.
func Subtract(left, right Expression) Expression {
	return binary(left, right, (*simeval.Machine).Subtract)
}

// Multiply returns an expression evaluating left * right.
func Multiply(left, right Expression) Expression {
	return binary(left, right, (*simeval.Machine).Multiply)
}

// Divide returns an expression evaluating left / right.
func Divide(left, right Expression) Expression {
	return binary(left, right, (*simeval.Machine).Divide)
}

// Equals returns an expression evaluating to dimensionless 1 when left and
// right carry equal numeric values, 0 otherwise.
func Equals(left, right Expression) Expression {
	return binary(left, right, func(m *simeval.Machine) error { return m.Compare(simeval.CompareEquals) })
}

// Compare returns an expression applying a named comparison primitive.
func Compare(op simeval.CompareOp, left, right Expression) Expression {
	return binary(left, right, func(m *simeval.Machine) error { return m.Compare(op) })
}

// Logical returns an expression applying a named logical primitive.
func Logical(op simeval.LogicalOp, left, right Expression) Expression {
	return binary(left, right, func(m *simeval.Machine) error { return m.Logical(op) })
}

// Conditional returns an expression evaluating ifTrue when condition is
// truthy, ifFalse otherwise. Only the taken branch is evaluated.
func Conditional(condition, ifTrue, ifFalse Expression) Expression {
	return func(m *simeval.Machine) (simnum.EngineNumber, error) {
		c, err := condition(m)
		if err != nil {
			return simnum.EngineNumber{}, err
		}
		if c.IsTruthy() {
			return ifTrue(m)
		}
		return ifFalse(m)
	}
}

// ChangeUnits returns an expression that reconciles value into targetUnits,
// taking context as the percentage base when one is needed.
func ChangeUnits(value Expression, targetUnits string, context Expression) Expression {
	return func(m *simeval.Machine) (simnum.EngineNumber, error) {
		v, err := value(m)
		if err != nil {
			return simnum.EngineNumber{}, err
		}
		var ctxValue simnum.EngineNumber
		if context != nil {
			ctxValue, err = context(m)
			if err != nil {
				return simnum.EngineNumber{}, err
			}
		}
		m.PushLiteral(v)
		if err := m.Convert(targetUnits, ctxValue); err != nil {
			return simnum.EngineNumber{}, err
		}
		return m.Pop()
	}
}

// Limit returns an expression clamping value to [lower, upper]; either
// bound may be nil to disable that side.
func Limit(value Expression, lower, upper Expression) Expression {
	return func(m *simeval.Machine) (simnum.EngineNumber, error) {
		v, err := value(m)
		if err != nil {
			return simnum.EngineNumber{}, err
		}
		var lowerValue, upperValue *simnum.EngineNumber
		if lower != nil {
			lv, err := lower(m)
			if err != nil {
				return simnum.EngineNumber{}, err
			}
			lowerValue = &lv
		}
		if upper != nil {
			uv, err := upper(m)
			if err != nil {
				return simnum.EngineNumber{}, err
			}
			upperValue = &uv
		}
		m.PushLiteral(v)
		if err := m.ClampToBounds(lowerValue, upperValue); err != nil {
			return simnum.EngineNumber{}, err
		}
		return m.Pop()
	}
}

// PreCalculated returns an expression wrapping a value the host already
// computed outside the expression language (for example, a trial-level
// Monte Carlo draw sampled once and reused across several operations).
func PreCalculated(value simnum.EngineNumber) Expression {
	return Literal(value)
}
