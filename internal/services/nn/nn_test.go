package nn

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyArch() Architecture {
	return Architecture{
		SequenceLength: 5,
		Features:       1,
		LSTMUnits:      []int{4, 3},
		Dropout:        0,
		DenseUnits:     2,
	}
}

func sampleWindows(n, L int, rng *rand.Rand) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		w := make([]float64, L)
		var sum float64
		for t := range w {
			w[t] = rng.Float64()
			sum += w[t]
		}
		X[i] = w
		y[i] = sum / float64(L)
	}
	return X, y
}

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m, err := NewModel(tinyArch(), rng)
	require.NoError(t, err)

	window := []float64{0.1, 0.4, 0.35, 0.8, 0.6}
	target := 0.5

	loss := func() float64 {
		p, _ := m.forward(window, false, nil)
		return (p - target) * (p - target)
	}

	m.zeroGrad()
	pred, caches := m.forward(window, false, nil)
	m.backward(caches, 2*(pred-target))

	const eps = 1e-6
	for _, p := range m.Params() {
		for i := range p.Values {
			orig := p.Values[i]
			p.Values[i] = orig + eps
			up := loss()
			p.Values[i] = orig - eps
			down := loss()
			p.Values[i] = orig

			numeric := (up - down) / (2 * eps)
			analytic := p.Grad[i]
			tol := 1e-6 * math.Max(1, math.Abs(numeric)+math.Abs(analytic))
			if math.Abs(numeric-analytic) > tol {
				t.Fatalf("%s[%d]: analytic %.10g numeric %.10g", p.Name, i, analytic, numeric)
			}
		}
	}
}

func TestDropoutIsIdentityAtInference(t *testing.T) {
	d := &Dropout{Rate: 0.5}
	x := [][]float64{{1, 2, 3}}
	out, cache := d.Forward(x, false, nil)
	assert.Nil(t, cache)
	assert.Equal(t, x, out)
}

func TestDropoutScalesSurvivors(t *testing.T) {
	d := &Dropout{Rate: 0.2}
	x := [][]float64{make([]float64, 1000)}
	for i := range x[0] {
		x[0][i] = 1
	}
	out, cache := d.Forward(x, true, rand.New(rand.NewSource(3)))
	require.NotNil(t, cache)

	zeros := 0
	for _, v := range out[0] {
		if v == 0 {
			zeros++
			continue
		}
		assert.InDelta(t, 1.25, v, 1e-12)
	}
	assert.InDelta(t, 200, zeros, 60)

	dx := d.Backward(cache, out)
	for i, v := range dx[0] {
		if out[0][i] == 0 {
			assert.Zero(t, v)
		}
	}
}

func TestPredictRejectsWrongWindow(t *testing.T) {
	m, err := NewModel(tinyArch(), nil)
	require.NoError(t, err)

	_, err = m.Predict([]float64{1, 2})
	assert.Error(t, err)

	_, err = m.Predict(make([]float64, 5))
	assert.NoError(t, err)
	assert.Equal(t, 5, m.WindowSize())
}

func TestForgetBiasStartsAtOne(t *testing.T) {
	m, err := NewModel(tinyArch(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	l := m.layers[0].(*LSTM)
	for j := 0; j < l.Units; j++ {
		assert.Equal(t, 0.0, l.B.Values[j])
		assert.Equal(t, 1.0, l.B.Values[l.Units+j])
	}
}

func TestRecurrentKernelIsOrthonormal(t *testing.T) {
	m, err := NewModel(tinyArch(), rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	u := m.layers[0].(*LSTM).U
	for a := 0; a < u.Cols; a++ {
		for b := 0; b < u.Cols; b++ {
			var dot float64
			for i := 0; i < u.Rows; i++ {
				dot += u.Values[i*u.Cols+a] * u.Values[i*u.Cols+b]
			}
			want := 0.0
			if a == b {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-9)
		}
	}
}

func TestFitReducesLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	arch := tinyArch()
	m, err := NewModel(arch, rng)
	require.NoError(t, err)

	X, y := sampleWindows(200, arch.SequenceLength, rng)
	before, _ := Evaluate(m, X, y)

	hist, err := Fit(context.Background(), m, X, y, FitConfig{
		Epochs:          30,
		BatchSize:       16,
		ValidationSplit: 0.1,
		Patience:        30,
		LearningRate:    0.01,
		Seed:            1,
	})
	require.NoError(t, err)

	after, _ := Evaluate(m, X, y)
	assert.Less(t, after, before)
	assert.Greater(t, hist.EpochsRun(), 0)
}

func TestFitStopsEarlyWithoutImprovement(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	arch := tinyArch()
	m, err := NewModel(arch, rng)
	require.NoError(t, err)
	X, y := sampleWindows(40, arch.SequenceLength, rng)

	var seen int
	hist, err := Fit(context.Background(), m, X, y, FitConfig{
		Epochs:          50,
		BatchSize:       8,
		ValidationSplit: 0.25,
		Patience:        3,
		LearningRate:    0, // weights never move, so validation loss never improves
		Seed:            1,
		OnEpoch:         func(EpochStats) { seen++ },
	})
	require.NoError(t, err)

	assert.True(t, hist.StoppedEarly)
	assert.Equal(t, 4, hist.EpochsRun())
	assert.Equal(t, 4, seen)
	assert.Equal(t, 1, hist.BestEpoch)
}

func TestFitRestoresBestWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	arch := tinyArch()
	arch.Dropout = 0.2
	m, err := NewModel(arch, rng)
	require.NoError(t, err)
	X, y := sampleWindows(120, arch.SequenceLength, rng)

	hist, err := Fit(context.Background(), m, X, y, FitConfig{
		Epochs:          15,
		BatchSize:       16,
		ValidationSplit: 0.2,
		Patience:        4,
		LearningRate:    0.05,
		Seed:            3,
	})
	require.NoError(t, err)

	split := int(float64(len(X)) * 0.8)
	valLoss, _ := Evaluate(m, X[split:], y[split:])
	assert.InDelta(t, hist.BestLoss, valLoss, 1e-12)

	for _, e := range hist.Epochs {
		assert.GreaterOrEqual(t, e.ValLoss, hist.BestLoss)
	}
}

func TestEarlyStopper(t *testing.T) {
	s := newEarlyStopper(3)
	losses := []float64{0.5, 0.3, 0.4, 0.35, 0.6}
	var stoppedAt = -1
	for i, l := range losses {
		if _, stop := s.observe(i, l); stop {
			stoppedAt = i
			break
		}
	}
	assert.Equal(t, 4, stoppedAt)
	assert.Equal(t, 1, s.bestEpoch)
	assert.Equal(t, 0.3, s.best)
}

func TestFitHonoursCancellation(t *testing.T) {
	m, err := NewModel(tinyArch(), nil)
	require.NoError(t, err)
	X, y := sampleWindows(10, 5, rand.New(rand.NewSource(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Fit(ctx, m, X, y, FitConfig{Epochs: 5, LearningRate: 0.001})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, err := NewModel(tinyArch(), rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Architecture(), loaded.Architecture())

	w := []float64{0.2, 0.3, 0.1, 0.9, 0.4}
	a, _ := m.Predict(w)
	b, _ := loaded.Predict(w)
	assert.Equal(t, a, b)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	_, err := Load(strings.NewReader(`{"format":"other"}`))
	assert.Error(t, err)

	_, err = Load(strings.NewReader(`{"format":"pricecast-lstm/1","architecture":{"sequence_length":3,"features":1,"lstm_units":[2]},"params":[]}`))
	assert.ErrorContains(t, err, "missing")
}

func TestArchitectureValidate(t *testing.T) {
	assert.NoError(t, DefaultArchitecture(60).Validate())

	bad := DefaultArchitecture(60)
	bad.Features = 2
	assert.Error(t, bad.Validate())

	bad = DefaultArchitecture(0)
	assert.Error(t, bad.Validate())

	bad = DefaultArchitecture(60)
	bad.Dropout = 1
	assert.Error(t, bad.Validate())
}
