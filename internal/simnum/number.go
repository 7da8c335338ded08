// Package simnum provides the engine's exact-decimal number type.
//
// EngineNumber pairs a decimal value with a unit label drawn from the
// closed vocabulary the simulation engine understands: mass ({kg, mt}),
// count ({unit, units}), time ({year, years}), intensity ({tCO2e, kwh}),
// percentage (%), and composite rates such as "kg / unit" or the
// synthesized "<unit>eachyear" annual-delta form. An empty unit string
// denotes a dimensionless quantity.
//
// Arithmetic uses github.com/shopspring/decimal rather than binary
// floating point: the engine's tests assert equality at tight
// tolerances, and repeated addition/subtraction of user-entered values
// must not accumulate representation error.
package simnum

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrDivideByZero is returned by Divide when the right operand is zero.
var ErrDivideByZero = errors.New("simnum: division by zero")

// EngineNumber is a decimal value carrying a unit label.
type EngineNumber struct {
	Value decimal.Decimal
	Units string
}

// New builds an EngineNumber from a float64 convenience value. Hosts that
// already hold exact decimals should use NewFromDecimal instead.
func New(value float64, units string) EngineNumber {
	return EngineNumber{Value: decimal.NewFromFloat(value), Units: units}
}

// NewFromDecimal builds an EngineNumber from an existing decimal.Decimal.
func NewFromDecimal(value decimal.Decimal, units string) EngineNumber {
	return EngineNumber{Value: value, Units: units}
}

// Zero returns a zero-valued EngineNumber with the given units.
func Zero(units string) EngineNumber {
	return EngineNumber{Value: decimal.Zero, Units: units}
}

// Float64 returns the value as a float64, for use at result-emission
// boundaries only; the arithmetic core never uses this representation.
func (n EngineNumber) Float64() float64 {
	f, _ := n.Value.Float64()
	return f
}

// IsZero reports whether the decimal value is exactly zero.
func (n EngineNumber) IsZero() bool {
	return n.Value.IsZero()
}

// IsTruthy reports whether the value is non-zero, the convention the
// push-down evaluator uses for logical primitives.
func (n EngineNumber) IsTruthy() bool {
	return !n.Value.IsZero()
}

// String renders "<value> <units>", omitting the unit when dimensionless.
func (n EngineNumber) String() string {
	if n.Units == "" {
		return n.Value.String()
	}
	return fmt.Sprintf("%s %s", n.Value.String(), n.Units)
}

// HasMass reports whether units is a mass unit (kg or mt).
func HasMass(units string) bool {
	return units == "kg" || units == "mt"
}

// HasCount reports whether units is a count unit (unit or units).
func HasCount(units string) bool {
	return units == "unit" || units == "units"
}

// HasPercent reports whether units contains the percentage marker.
func HasPercent(units string) bool {
	return strings.Contains(units, "%")
}

// IsEachYear reports whether units carries the synthesized annual-delta
// suffix, and returns the base unit with the suffix stripped.
func IsEachYear(units string) (base string, ok bool) {
	const suffix = "eachyear"
	if strings.HasSuffix(units, suffix) && units != suffix {
		return strings.TrimSuffix(units, suffix), true
	}
	return units, false
}

// EachYear synthesizes the "<unit>eachyear" composite for an annual delta.
func EachYear(units string) string {
	return units + "eachyear"
}

// combineUnits implements the arithmetic layer's unit-composition rule: two
// identical units collapse to that unit; a dimensionless operand adopts the
// other side's unit; disagreeing units form a composite "A / B" rate.
func combineUnits(op byte, left, right string) string {
	switch {
	case left == right:
		return left
	case right == "":
		return left
	case left == "":
		return right
	default:
		if op == '*' {
			return left + " * " + right
		}
		return left + " / " + right
	}
}

// Add returns left + right. Same-unit operands preserve the unit; a
// dimensionless operand adopts the other side's unit. The arithmetic layer
// does not reconcile genuinely different units — callers needing a
// specific target unit must convert first via the unit converter.
func Add(left, right EngineNumber) EngineNumber {
	units := left.Units
	if units == "" {
		units = right.Units
	}
	return EngineNumber{Value: left.Value.Add(right.Value), Units: units}
}

// Subtract returns left - right, following Add's unit rule.
func Subtract(left, right EngineNumber) EngineNumber {
	units := left.Units
	if units == "" {
		units = right.Units
	}
	return EngineNumber{Value: left.Value.Sub(right.Value), Units: units}
}

// Multiply returns left * right. Matching units or one dimensionless
// operand preserve the non-empty unit; otherwise a composite "A * B" label
// is synthesized. No algebraic simplification is attempted.
func Multiply(left, right EngineNumber) EngineNumber {
	return EngineNumber{
		Value: left.Value.Mul(right.Value),
		Units: combineUnits('*', left.Units, right.Units),
	}
}

// Divide returns left / right, synthesizing an "A / B" composite unit when
// the operand units disagree. Returns ErrDivideByZero when right is zero.
func Divide(left, right EngineNumber) (EngineNumber, error) {
	if right.Value.IsZero() {
		return EngineNumber{}, ErrDivideByZero
	}
	return EngineNumber{
		Value: left.Value.Div(right.Value),
		Units: combineUnits('/', left.Units, right.Units),
	}, nil
}

// boolNumber renders a boolean as a dimensionless 0/1 EngineNumber, the
// convention every comparison and logical primitive returns.
func boolNumber(b bool) EngineNumber {
	if b {
		return EngineNumber{Value: decimal.New(1, 0)}
	}
	return EngineNumber{Value: decimal.Zero}
}

// Equals compares decimal values for equality; units are ignored, matching
// the evaluator's contract that comparisons act on the numeric value alone.
func Equals(left, right EngineNumber) EngineNumber {
	return boolNumber(left.Value.Equal(right.Value))
}

// NotEquals is the complement of Equals.
func NotEquals(left, right EngineNumber) EngineNumber {
	return boolNumber(!left.Value.Equal(right.Value))
}

// GreaterThan compares left > right.
func GreaterThan(left, right EngineNumber) EngineNumber {
	return boolNumber(left.Value.GreaterThan(right.Value))
}

// LessThan compares left < right.
func LessThan(left, right EngineNumber) EngineNumber {
	return boolNumber(left.Value.LessThan(right.Value))
}

// GreaterThanOrEqual compares left >= right.
func GreaterThanOrEqual(left, right EngineNumber) EngineNumber {
	return boolNumber(left.Value.GreaterThanOrEqual(right.Value))
}

// LessThanOrEqual compares left <= right.
func LessThanOrEqual(left, right EngineNumber) EngineNumber {
	return boolNumber(left.Value.LessThanOrEqual(right.Value))
}

// And implements logical AND over truthiness (non-zero = true).
func And(left, right EngineNumber) EngineNumber {
	return boolNumber(left.IsTruthy() && right.IsTruthy())
}

// Or implements logical OR over truthiness.
func Or(left, right EngineNumber) EngineNumber {
	return boolNumber(left.IsTruthy() || right.IsTruthy())
}

// Xor implements logical XOR over truthiness.
func Xor(left, right EngineNumber) EngineNumber {
	return boolNumber(left.IsTruthy() != right.IsTruthy())
}

// Clamp returns value bounded to [lower, upper]. Either bound may be nil to
// disable that side, matching the Limit operation's contract.
func Clamp(value EngineNumber, lower, upper *EngineNumber) EngineNumber {
	result := value
	if lower != nil && result.Value.LessThan(lower.Value) {
		result = EngineNumber{Value: lower.Value, Units: result.Units}
	}
	if upper != nil && result.Value.GreaterThan(upper.Value) {
		result = EngineNumber{Value: upper.Value, Units: result.Units}
	}
	return result
}
