package nn

import (
	"fmt"
	"math/rand"
)

// Architecture fixes the network shape. The stack is one LSTM per entry in
// LSTMUnits (all but the last return sequences), each followed by Dropout,
// then an optional hidden Dense of DenseUnits and a Dense(1) output.
type Architecture struct {
	SequenceLength int     `json:"sequence_length"`
	Features       int     `json:"features"`
	LSTMUnits      []int   `json:"lstm_units"`
	Dropout        float64 `json:"dropout"`
	DenseUnits     int     `json:"dense_units"`
}

// DefaultArchitecture is three LSTM(50) layers with 0.2 dropout, Dense(25)
// and a scalar output.
func DefaultArchitecture(sequenceLength int) Architecture {
	return Architecture{
		SequenceLength: sequenceLength,
		Features:       1,
		LSTMUnits:      []int{50, 50, 50},
		Dropout:        0.2,
		DenseUnits:     25,
	}
}

func (a Architecture) Validate() error {
	if a.SequenceLength <= 0 {
		return fmt.Errorf("nn: sequence_length must be positive, got %d", a.SequenceLength)
	}
	if a.Features != 1 {
		return fmt.Errorf("nn: only single-feature input is supported, got %d", a.Features)
	}
	if len(a.LSTMUnits) == 0 {
		return fmt.Errorf("nn: at least one LSTM layer is required")
	}
	for i, u := range a.LSTMUnits {
		if u <= 0 {
			return fmt.Errorf("nn: lstm layer %d has %d units", i, u)
		}
	}
	if a.Dropout < 0 || a.Dropout >= 1 {
		return fmt.Errorf("nn: dropout must be in [0,1), got %v", a.Dropout)
	}
	if a.DenseUnits < 0 {
		return fmt.Errorf("nn: dense_units must not be negative")
	}
	return nil
}

// Model is a sequential regression network mapping one window of scaled
// observations to the next value. Weights are read-only outside Fit, so a
// loaded Model may serve concurrent Predict calls.
type Model struct {
	arch   Architecture
	layers []Layer
	params []*Param
}

// NewModel builds a network with freshly initialised weights.
func NewModel(arch Architecture, rng *rand.Rand) (*Model, error) {
	m, err := build(arch)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	for _, l := range m.layers {
		switch v := l.(type) {
		case *LSTM:
			v.init(rng)
		case *Dense:
			v.init(rng)
		}
	}
	return m, nil
}

// build lays out layers with zeroed weights.
func build(arch Architecture) (*Model, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}

	m := &Model{arch: arch}
	in := arch.Features
	last := len(arch.LSTMUnits) - 1
	for i, units := range arch.LSTMUnits {
		m.layers = append(m.layers,
			newLSTM(fmt.Sprintf("lstm_%d", i), in, units, i < last),
			&Dropout{Rate: arch.Dropout, size: units},
		)
		in = units
	}

	denseIdx := 0
	if arch.DenseUnits > 0 {
		m.layers = append(m.layers, newDense(fmt.Sprintf("dense_%d", denseIdx), in, arch.DenseUnits))
		in = arch.DenseUnits
		denseIdx++
	}
	m.layers = append(m.layers, newDense(fmt.Sprintf("dense_%d", denseIdx), in, 1))

	for _, l := range m.layers {
		m.params = append(m.params, l.Params()...)
	}
	return m, nil
}

func (m *Model) Architecture() Architecture { return m.arch }

// WindowSize is the number of observations Predict expects.
func (m *Model) WindowSize() int { return m.arch.SequenceLength }

// Params returns every trainable parameter in layer order.
func (m *Model) Params() []*Param { return m.params }

// Predict runs inference on one window of exactly WindowSize values.
func (m *Model) Predict(window []float64) (float64, error) {
	if len(window) != m.arch.SequenceLength {
		return 0, fmt.Errorf("nn: window has %d values, model expects %d", len(window), m.arch.SequenceLength)
	}
	out, _ := m.forward(window, false, nil)
	return out, nil
}

func (m *Model) forward(window []float64, train bool, rng *rand.Rand) (float64, []any) {
	x := make([][]float64, len(window))
	for t, v := range window {
		x[t] = []float64{v}
	}

	caches := make([]any, len(m.layers))
	for i, l := range m.layers {
		x, caches[i] = l.Forward(x, train, rng)
	}
	return x[0][0], caches
}

// backward propagates dOut (dL/dprediction) and accumulates gradients.
func (m *Model) backward(caches []any, dOut float64) {
	dy := [][]float64{{dOut}}
	for i := len(m.layers) - 1; i >= 0; i-- {
		dy = m.layers[i].Backward(caches[i], dy)
	}
}

func (m *Model) zeroGrad() {
	for _, p := range m.params {
		p.zeroGrad()
	}
}

// snapshot copies all weights.
func (m *Model) snapshot() [][]float64 {
	out := make([][]float64, len(m.params))
	for i, p := range m.params {
		out[i] = append([]float64(nil), p.Values...)
	}
	return out
}

func (m *Model) restore(s [][]float64) {
	for i, p := range m.params {
		copy(p.Values, s[i])
	}
}
