// Package simeval implements the push-down evaluator operations compile
// their value expressions against: a small stack machine with arithmetic,
// comparison, and logical primitives, plus access to the current
// variable scope and stream state so an expression can reference "the
// current recycle rate" or "the prior year's equipment population" as
// readily as a literal.
package simeval

import (
	"errors"
	"fmt"

	"github.com/example/refrigerantsim/internal/simconvert"
	"github.com/example/refrigerantsim/internal/simnum"
	"github.com/example/refrigerantsim/internal/simscope"
)

// ErrStackUnderflow is returned when an instruction needs more operands
// than the stack currently holds.
var ErrStackUnderflow = errors.New("simeval: stack underflow")

// StreamAccess is the narrow read/write surface a Machine needs against
// whatever is holding live stream state for the substance currently in
// scope. internal/simstream's StreamKeeper (via a bound SubstanceView)
// satisfies this by method set.
type StreamAccess interface {
	GetStream(stream string) (simnum.EngineNumber, error)
	SetStream(stream string, value simnum.EngineNumber) error
}

// Machine is a push-down evaluator: a value stack plus the variable
// manager and stream access needed to resolve names, bound to the
// converter that reconciles units between instructions.
type Machine struct {
	stack     []simnum.EngineNumber
	vars      *simscope.VariableManager
	streams   StreamAccess
	converter *simconvert.UnitConverter
}

// NewMachine returns a machine with an empty stack, bound to vars for
// variable resolution, streams for stream reads/writes, and converter for
// unit reconciliation.
func NewMachine(vars *simscope.VariableManager, streams StreamAccess, converter *simconvert.UnitConverter) *Machine {
	return &Machine{vars: vars, streams: streams, converter: converter}
}

// Push places value on top of the stack.
func (m *Machine) Push(value simnum.EngineNumber) {
	m.stack = append(m.stack, value)
}

// Pop removes and returns the top of the stack, failing with
// ErrStackUnderflow if empty.
func (m *Machine) Pop() (simnum.EngineNumber, error) {
	if len(m.stack) == 0 {
		return simnum.EngineNumber{}, ErrStackUnderflow
	}
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return top, nil
}

// Peek returns the top of the stack without removing it.
func (m *Machine) Peek() (simnum.EngineNumber, error) {
	if len(m.stack) == 0 {
		return simnum.EngineNumber{}, ErrStackUnderflow
	}
	return m.stack[len(m.stack)-1], nil
}

// Depth reports how many values are currently on the stack.
func (m *Machine) Depth() int {
	return len(m.stack)
}

// popPair pops the two most recent operands in left, right order
// (right was pushed last, matching conventional infix evaluation: push
// left, push right, apply).
func (m *Machine) popPair() (left, right simnum.EngineNumber, err error) {
	right, err = m.Pop()
	if err != nil {
		return simnum.EngineNumber{}, simnum.EngineNumber{}, err
	}
	left, err = m.Pop()
	if err != nil {
		return simnum.EngineNumber{}, simnum.EngineNumber{}, err
	}
	return left, right, nil
}

// Add pops two operands and pushes their sum.
func (m *Machine) Add() error {
	left, right, err := m.popPair()
	if err != nil {
		return err
	}
	m.Push(simnum.Add(left, right))
	return nil
}

// Subtract pops two operands and pushes left - right.
func (m *Machine) Subtract() error {
	left, right, err := m.popPair()
	if err != nil {
		return err
	}
	m.Push(simnum.Subtract(left, right))
	return nil
}

// Multiply pops two operands and pushes their product.
func (m *Machine) Multiply() error {
	left, right, err := m.popPair()
	if err != nil {
		return err
	}
	m.Push(simnum.Multiply(left, right))
	return nil
}

// Divide pops two operands and pushes left / right.
func (m *Machine) Divide() error {
	left, right, err := m.popPair()
	if err != nil {
		return err
	}
	result, err := simnum.Divide(left, right)
	if err != nil {
		return err
	}
	m.Push(result)
	return nil
}

// CompareOp identifies a comparison primitive.
type CompareOp int

const (
	CompareEquals CompareOp = iota
	CompareNotEquals
	CompareGreaterThan
	CompareLessThan
	CompareGreaterThanOrEqual
	CompareLessThanOrEqual
)

// Compare pops two operands and pushes the dimensionless 0/1 result of op.
func (m *Machine) Compare(op CompareOp) error {
	left, right, err := m.popPair()
	if err != nil {
		return err
	}
	var result simnum.EngineNumber
	switch op {
	case CompareEquals:
		result = simnum.Equals(left, right)
	case CompareNotEquals:
		result = simnum.NotEquals(left, right)
	case CompareGreaterThan:
		result = simnum.GreaterThan(left, right)
	case CompareLessThan:
		result = simnum.LessThan(left, right)
	case CompareGreaterThanOrEqual:
		result = simnum.GreaterThanOrEqual(left, right)
	case CompareLessThanOrEqual:
		result = simnum.LessThanOrEqual(left, right)
	default:
		return fmt.Errorf("simeval: unrecognized comparison op %d", op)
	}
	m.Push(result)
	return nil
}

// LogicalOp identifies a logical primitive.
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
	LogicalXor
)

// Logical pops two operands and pushes the dimensionless 0/1 result of op.
func (m *Machine) Logical(op LogicalOp) error {
	left, right, err := m.popPair()
	if err != nil {
		return err
	}
	var result simnum.EngineNumber
	switch op {
	case LogicalAnd:
		result = simnum.And(left, right)
	case LogicalOr:
		result = simnum.Or(left, right)
	case LogicalXor:
		result = simnum.Xor(left, right)
	default:
		return fmt.Errorf("simeval: unrecognized logical op %d", op)
	}
	m.Push(result)
	return nil
}

// Convert pops a value and pushes it reconciled to targetUnits, taking
// contextValue as the percentage base when one is needed.
func (m *Machine) Convert(targetUnits string, contextValue simnum.EngineNumber) error {
	value, err := m.Pop()
	if err != nil {
		return err
	}
	result, err := m.converter.Convert(value, targetUnits, contextValue)
	if err != nil {
		return err
	}
	m.Push(result)
	return nil
}

// ClampToBounds pops a value and pushes it bounded to [lower, upper],
// either of which may be nil to disable that side.
func (m *Machine) ClampToBounds(lower, upper *simnum.EngineNumber) error {
	value, err := m.Pop()
	if err != nil {
		return err
	}
	m.Push(simnum.Clamp(value, lower, upper))
	return nil
}

// DefineVariable pops a value and binds name to it at the current scope
// level.
func (m *Machine) DefineVariable(name string) error {
	value, err := m.Pop()
	if err != nil {
		return err
	}
	return m.vars.DefineVariable(name, value)
}

// SetVariable pops a value and writes it to the nearest enclosing frame
// that already defines name.
func (m *Machine) SetVariable(name string) error {
	value, err := m.Pop()
	if err != nil {
		return err
	}
	return m.vars.SetVariable(name, value)
}

// PushVariable resolves name through the variable chain and pushes it.
func (m *Machine) PushVariable(name string) error {
	value, err := m.vars.GetVariable(name)
	if err != nil {
		return err
	}
	m.Push(value)
	return nil
}

// PushLiteral pushes a literal value directly.
func (m *Machine) PushLiteral(value simnum.EngineNumber) {
	m.Push(value)
}

// PushStream resolves a stream name against the bound stream access and
// pushes its current value.
func (m *Machine) PushStream(stream string) error {
	value, err := m.streams.GetStream(stream)
	if err != nil {
		return err
	}
	m.Push(value)
	return nil
}

// StoreStream pops a value and writes it to stream.
func (m *Machine) StoreStream(stream string) error {
	value, err := m.Pop()
	if err != nil {
		return err
	}
	return m.streams.SetStream(stream, value)
}

// Variables exposes the bound variable manager for callers (operations)
// that need to traverse scope levels directly.
func (m *Machine) Variables() *simscope.VariableManager {
	return m.vars
}

// Converter exposes the bound unit converter.
func (m *Machine) Converter() *simconvert.UnitConverter {
	return m.converter
}
