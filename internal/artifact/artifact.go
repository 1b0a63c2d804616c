// Package artifact persists and loads the trained model bundle: network
// weights, the fitted scaler and run metadata.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/services/nn"
)

const (
	ModelFile    = "stock_model.json"
	ScalerFile   = "scaler.json"
	MetadataFile = "metadata.json"
)

// Bundle is everything serving needs from a training run.
type Bundle struct {
	Model    *nn.Model
	Scaler   *forecast.MinMaxScaler
	Metadata models.ModelMetadata
}

func (b *Bundle) validate() error {
	if b.Model == nil || b.Scaler == nil {
		return errors.New("artifact: bundle is incomplete")
	}
	if err := b.Scaler.Validate(); err != nil {
		return err
	}
	if b.Metadata.SequenceLength != b.Model.WindowSize() {
		return fmt.Errorf("artifact: metadata sequence_length %d does not match model window %d",
			b.Metadata.SequenceLength, b.Model.WindowSize())
	}
	return nil
}

// Save writes the bundle into dir. Files are first written to a staging
// directory inside dir and renamed into place only after all three were
// written and synced. Publishing moves the previous artifacts aside first;
// if any rename fails the new files are removed and the previous ones put
// back, so dir never holds a mix of two runs.
func Save(dir string, b *Bundle) (err error) {
	if err := b.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact: create %s: %w", dir, err)
	}

	staging, err := os.MkdirTemp(dir, ".staging-")
	if err != nil {
		return fmt.Errorf("artifact: staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{ModelFile, b.Model.Save},
		{ScalerFile, b.Scaler.Save},
		{MetadataFile, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(b.Metadata)
		}},
	}

	for _, wr := range writers {
		if err := writeFile(filepath.Join(staging, wr.name), wr.write); err != nil {
			return err
		}
	}
	names := make([]string, len(writers))
	for i, wr := range writers {
		names[i] = wr.name
	}
	return publish(dir, staging, names)
}

// rename is swapped in tests to simulate a failing filesystem.
var rename = os.Rename

// publish moves names from staging into dir as a unit.
func publish(dir, staging string, names []string) error {
	backup, err := os.MkdirTemp(dir, ".previous-")
	if err != nil {
		return fmt.Errorf("artifact: backup dir: %w", err)
	}
	defer os.RemoveAll(backup)

	var saved, published []string
	rollback := func() {
		for _, name := range published {
			_ = os.Remove(filepath.Join(dir, name))
		}
		for _, name := range saved {
			_ = rename(filepath.Join(backup, name), filepath.Join(dir, name))
		}
	}

	for _, name := range names {
		cur := filepath.Join(dir, name)
		if _, err := os.Stat(cur); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := rename(cur, filepath.Join(backup, name)); err != nil {
			rollback()
			return fmt.Errorf("artifact: back up %s: %w", name, err)
		}
		saved = append(saved, name)
	}
	for _, name := range names {
		if err := rename(filepath.Join(staging, name), filepath.Join(dir, name)); err != nil {
			rollback()
			return fmt.Errorf("artifact: publish %s: %w", name, err)
		}
		published = append(published, name)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifact: create %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("artifact: write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("artifact: sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// Load reads a bundle from dir.
func Load(dir string) (*Bundle, error) {
	b := &Bundle{}

	if err := readFile(filepath.Join(dir, ModelFile), func(r io.Reader) (err error) {
		b.Model, err = nn.Load(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, ScalerFile), func(r io.Reader) (err error) {
		b.Scaler, err = forecast.LoadScaler(r)
		return err
	}); err != nil {
		return nil, err
	}
	if err := readFile(filepath.Join(dir, MetadataFile), func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&b.Metadata)
	}); err != nil {
		return nil, err
	}

	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func readFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("artifact: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if err := read(f); err != nil {
		return fmt.Errorf("artifact: read %s: %w", filepath.Base(path), err)
	}
	return nil
}
