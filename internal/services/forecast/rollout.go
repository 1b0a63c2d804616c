package forecast

import (
	"context"
	"fmt"

	"PriceCast/internal/domain/service"
)

// window is a fixed-capacity ring over the last n values. Every value is
// written twice (at i and i+n) so the chronological view is always one
// contiguous slice and sliding never allocates.
type window struct {
	buf  []float64
	head int
	n    int
}

func newWindow(seed []float64) *window {
	n := len(seed)
	buf := make([]float64, 2*n)
	copy(buf, seed)
	copy(buf[n:], seed)
	return &window{buf: buf, n: n}
}

// view returns the window oldest-first. It is only valid until the next push.
func (w *window) view() []float64 {
	return w.buf[w.head : w.head+w.n]
}

// push drops the oldest value and appends v.
func (w *window) push(v float64) {
	w.buf[w.head] = v
	w.buf[w.head+w.n] = v
	w.head++
	if w.head == w.n {
		w.head = 0
	}
}

// Forecaster runs autoregressive multi-step prediction: each step's output
// becomes the newest input of the next step.
type Forecaster struct {
	model      service.Predictor
	maxHorizon int
}

func NewForecaster(model service.Predictor, maxHorizon int) *Forecaster {
	return &Forecaster{model: model, maxHorizon: maxHorizon}
}

// ClampHorizon caps days at the maximum horizon. Non-positive values are
// rejected.
func (f *Forecaster) ClampHorizon(days int) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: got %d", service.ErrInvalidHorizon, days)
	}
	if f.maxHorizon > 0 && days > f.maxHorizon {
		return f.maxHorizon, nil
	}
	return days, nil
}

// Rollout predicts horizon scaled values from the trailing window of
// scaledHistory. The model is called exactly horizon times and step i only
// sees the input window plus predictions 1..i-1.
func (f *Forecaster) Rollout(ctx context.Context, scaledHistory []float64, horizon int) ([]float64, error) {
	if f == nil || f.model == nil {
		return nil, service.ErrModelUnavailable
	}
	horizon, err := f.ClampHorizon(horizon)
	if err != nil {
		return nil, err
	}

	L := f.model.WindowSize()
	if len(scaledHistory) < L {
		return nil, &service.InsufficientHistoryError{Need: L, Have: len(scaledHistory)}
	}

	w := newWindow(scaledHistory[len(scaledHistory)-L:])
	out := make([]float64, 0, horizon)
	for step := 0; step < horizon; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := f.model.Predict(w.view())
		if err != nil {
			return nil, fmt.Errorf("predict step %d: %w", step+1, err)
		}
		out = append(out, next)
		w.push(next)
	}
	return out, nil
}
