package simeval

import (
	"errors"
	"testing"

	"github.com/example/refrigerantsim/internal/simconvert"
	"github.com/example/refrigerantsim/internal/simnum"
	"github.com/example/refrigerantsim/internal/simscope"
)

type fakeStreams struct {
	values map[string]simnum.EngineNumber
}

func (f *fakeStreams) GetStream(stream string) (simnum.EngineNumber, error) {
	v, ok := f.values[stream]
	if !ok {
		return simnum.EngineNumber{}, errors.New("unknown stream")
	}
	return v, nil
}

func (f *fakeStreams) SetStream(stream string, value simnum.EngineNumber) error {
	f.values[stream] = value
	return nil
}

type fakeState struct {
	ghg, energy, volume simnum.EngineNumber
	streams             *fakeStreams
}

func (f *fakeState) GetStream(stream string) (simnum.EngineNumber, error) { return f.streams.GetStream(stream) }
func (f *fakeState) GetGhgIntensity() simnum.EngineNumber                 { return f.ghg }
func (f *fakeState) GetEnergyIntensity() simnum.EngineNumber              { return f.energy }
func (f *fakeState) GetAmortizedUnitVolume() (simnum.EngineNumber, error) { return f.volume, nil }

func newTestMachine() (*Machine, *fakeStreams) {
	streams := &fakeStreams{values: map[string]simnum.EngineNumber{
		"manufacture": simnum.New(100, "kg"),
	}}
	state := &fakeState{
		ghg:     simnum.New(5, "tCO2e / kg"),
		energy:  simnum.New(1, "kwh / kg"),
		volume:  simnum.New(0.5, "kg / unit"),
		streams: streams,
	}
	converter := simconvert.NewUnitConverter(state)
	return NewMachine(simscope.NewVariableManager(), streams, converter), streams
}

func TestMachine_ArithmeticPrimitives(t *testing.T) {
	m, _ := newTestMachine()
	m.PushLiteral(simnum.New(10, "kg"))
	m.PushLiteral(simnum.New(5, "kg"))
	if err := m.Add(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := m.Pop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Value.Equal(simnum.New(15, "kg").Value) {
		t.Fatalf("expected 15, got %s", result)
	}
}

func TestMachine_StackUnderflow(t *testing.T) {
	m, _ := newTestMachine()
	if err := m.Add(); !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("expected ErrStackUnderflow, got %v", err)
	}
}

func TestMachine_VariableDefineAndResolve(t *testing.T) {
	m, _ := newTestMachine()
	m.PushLiteral(simnum.New(42, "kg"))
	if err := m.DefineVariable("x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.PushVariable("x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := m.Pop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Value.Equal(simnum.New(42, "kg").Value) {
		t.Fatalf("expected 42, got %s", result)
	}
}

func TestMachine_StreamReadAndWrite(t *testing.T) {
	m, streams := newTestMachine()
	if err := m.PushStream("manufacture"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.StoreStream("import"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !streams.values["import"].Value.Equal(simnum.New(100, "kg").Value) {
		t.Fatalf("expected import to mirror manufacture, got %s", streams.values["import"])
	}
}

func TestMachine_ConvertUsesBoundConverter(t *testing.T) {
	m, _ := newTestMachine()
	m.PushLiteral(simnum.New(2000, "kg"))
	if err := m.Convert("mt", simnum.EngineNumber{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := m.Pop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Value.Equal(simnum.New(2, "mt").Value) {
		t.Fatalf("expected 2 mt, got %s", result)
	}
}

func TestMachine_CompareEquals(t *testing.T) {
	m, _ := newTestMachine()
	m.PushLiteral(simnum.New(5, "kg"))
	m.PushLiteral(simnum.New(5, "kg"))
	if err := m.Compare(CompareEquals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := m.Pop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsTruthy() {
		t.Fatal("expected equal comparison to be truthy")
	}
}

func TestMachine_ClampToBounds(t *testing.T) {
	m, _ := newTestMachine()
	lower := simnum.New(0, "kg")
	upper := simnum.New(10, "kg")
	m.PushLiteral(simnum.New(500, "kg"))
	if err := m.ClampToBounds(&lower, &upper); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, _ := m.Pop()
	if !result.Value.Equal(upper.Value) {
		t.Fatalf("expected clamp to upper bound, got %s", result)
	}
}
