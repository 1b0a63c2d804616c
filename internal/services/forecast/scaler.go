package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// MinMaxScaler maps a single feature into [0, 1] with
// x' = x*Scale + Offset, where Scale = 1/(max-min) and Offset = -min*Scale.
// A zero range keeps Scale at 1.
type MinMaxScaler struct {
	DataMin  float64 `json:"data_min"`
	DataMax  float64 `json:"data_max"`
	Scale    float64 `json:"scale"`
	Offset   float64 `json:"offset"`
	Features int     `json:"n_features"`
}

// FitScaler fits a scaler on values.
func FitScaler(values []float64) (*MinMaxScaler, error) {
	if len(values) == 0 {
		return nil, errors.New("scaler: cannot fit on an empty series")
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("scaler: non-finite value %v", v)
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	rng := hi - lo
	scale := 1.0
	if rng != 0 {
		scale = 1 / rng
	}
	return &MinMaxScaler{
		DataMin:  lo,
		DataMax:  hi,
		Scale:    scale,
		Offset:   -lo * scale,
		Features: 1,
	}, nil
}

func (s *MinMaxScaler) TransformValue(v float64) float64 {
	return v*s.Scale + s.Offset
}

func (s *MinMaxScaler) InverseValue(v float64) float64 {
	return (v - s.Offset) / s.Scale
}

// Transform returns a scaled copy of values.
func (s *MinMaxScaler) Transform(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.TransformValue(v)
	}
	return out
}

// Inverse maps scaled values back to price units.
func (s *MinMaxScaler) Inverse(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.InverseValue(v)
	}
	return out
}

func (s *MinMaxScaler) Validate() error {
	if s.Features != 1 {
		return fmt.Errorf("scaler: fitted on %d features, expected 1", s.Features)
	}
	if s.Scale == 0 || math.IsNaN(s.Scale) || math.IsInf(s.Scale, 0) {
		return fmt.Errorf("scaler: invalid scale %v", s.Scale)
	}
	return nil
}

// Save writes the scaler as JSON.
func (s *MinMaxScaler) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// LoadScaler reads and validates a scaler written by Save.
func LoadScaler(r io.Reader) (*MinMaxScaler, error) {
	var s MinMaxScaler
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("scaler: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
