package nn

import (
	"encoding/json"
	"fmt"
	"io"
)

const fileFormat = "pricecast-lstm/1"

type modelFile struct {
	Format       string       `json:"format"`
	Architecture Architecture `json:"architecture"`
	Params       []*Param     `json:"params"`
}

// Save writes the architecture and weights as JSON.
func (m *Model) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(modelFile{Format: fileFormat, Architecture: m.arch, Params: m.params}); err != nil {
		return fmt.Errorf("nn: encode model: %w", err)
	}
	return nil
}

// Load reads a model written by Save. Every parameter must be present with
// the shape the architecture implies.
func Load(r io.Reader) (*Model, error) {
	var f modelFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("nn: decode model: %w", err)
	}
	if f.Format != fileFormat {
		return nil, fmt.Errorf("nn: unsupported model format %q", f.Format)
	}

	m, err := build(f.Architecture)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Param, len(f.Params))
	for _, p := range f.Params {
		byName[p.Name] = p
	}
	for _, p := range m.params {
		src, ok := byName[p.Name]
		if !ok {
			return nil, fmt.Errorf("nn: model file is missing %s", p.Name)
		}
		if src.Rows != p.Rows || src.Cols != p.Cols || len(src.Values) != len(p.Values) {
			return nil, fmt.Errorf("nn: %s has shape %dx%d (%d values), want %dx%d",
				p.Name, src.Rows, src.Cols, len(src.Values), p.Rows, p.Cols)
		}
		copy(p.Values, src.Values)
	}
	return m, nil
}
