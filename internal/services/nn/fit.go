package nn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// FitConfig controls training.
type FitConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64 // fraction taken from the tail of X before shuffling
	Patience        int     // epochs without improvement before stopping; 0 disables
	LearningRate    float64
	Seed            int64
	OnEpoch         func(EpochStats)
}

// EpochStats reports one epoch. ValLoss and ValMAE are NaN without a
// validation set.
type EpochStats struct {
	Epoch   int
	Loss    float64
	MAE     float64
	ValLoss float64
	ValMAE  float64
}

// History summarises a Fit call.
type History struct {
	Epochs       []EpochStats
	BestEpoch    int
	BestLoss     float64 // monitored loss at BestEpoch
	StoppedEarly bool
}

// EpochsRun is the number of completed epochs.
func (h *History) EpochsRun() int { return len(h.Epochs) }

// earlyStopper tracks the best monitored loss and how long it has been
// since it improved.
type earlyStopper struct {
	patience  int
	best      float64
	bestEpoch int
	wait      int
}

func newEarlyStopper(patience int) *earlyStopper {
	return &earlyStopper{patience: patience, best: math.Inf(1), bestEpoch: -1}
}

// observe records loss for epoch and reports whether it improved and
// whether training should stop.
func (s *earlyStopper) observe(epoch int, loss float64) (improved, stop bool) {
	if loss < s.best {
		s.best = loss
		s.bestEpoch = epoch
		s.wait = 0
		return true, false
	}
	s.wait++
	return false, s.patience > 0 && s.wait >= s.patience
}

// Fit trains m on windows X and targets y with MSE loss and Adam. The
// validation tail is held out before shuffling; the remaining samples are
// reshuffled every epoch. The best weights by validation loss (training
// loss when there is no validation set) are restored before returning.
func Fit(ctx context.Context, m *Model, X [][]float64, y []float64, cfg FitConfig) (*History, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("nn: %d inputs but %d targets", len(X), len(y))
	}
	if len(X) == 0 {
		return nil, errors.New("nn: no training samples")
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("nn: epochs must be positive, got %d", cfg.Epochs)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.ValidationSplit < 0 || cfg.ValidationSplit >= 1 {
		return nil, fmt.Errorf("nn: validation split must be in [0,1), got %v", cfg.ValidationSplit)
	}
	for i, w := range X {
		if len(w) != m.arch.SequenceLength {
			return nil, fmt.Errorf("nn: sample %d has %d steps, model expects %d", i, len(w), m.arch.SequenceLength)
		}
	}

	split := len(X)
	if cfg.ValidationSplit > 0 {
		split = int(float64(len(X)) * (1 - cfg.ValidationSplit))
	}
	if split == 0 {
		return nil, errors.New("nn: validation split leaves no training samples")
	}
	trainX, trainY := X[:split], y[:split]
	valX, valY := X[split:], y[split:]

	rng := rand.New(rand.NewSource(cfg.Seed))
	opt := NewAdam(cfg.LearningRate)
	stopper := newEarlyStopper(cfg.Patience)
	hist := &History{}

	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	var best [][]float64
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sumSq, sumAbs float64
		for start := 0; start < len(order); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]
			scale := 2 / float64(len(batch))

			m.zeroGrad()
			for _, idx := range batch {
				pred, caches := m.forward(trainX[idx], true, rng)
				diff := pred - trainY[idx]
				sumSq += diff * diff
				sumAbs += math.Abs(diff)
				m.backward(caches, scale*diff)
			}
			opt.Step(m.params)
		}

		stats := EpochStats{
			Epoch:   epoch + 1,
			Loss:    sumSq / float64(len(order)),
			MAE:     sumAbs / float64(len(order)),
			ValLoss: math.NaN(),
			ValMAE:  math.NaN(),
		}
		monitored := stats.Loss
		if len(valX) > 0 {
			stats.ValLoss, stats.ValMAE = Evaluate(m, valX, valY)
			monitored = stats.ValLoss
		}
		hist.Epochs = append(hist.Epochs, stats)
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(stats)
		}

		improved, stop := stopper.observe(epoch, monitored)
		if improved {
			best = m.snapshot()
		}
		if stop {
			hist.StoppedEarly = true
			break
		}
	}

	if best != nil {
		m.restore(best)
	}
	hist.BestEpoch = stopper.bestEpoch + 1
	hist.BestLoss = stopper.best
	return hist, nil
}

// Evaluate returns mean squared error and mean absolute error of m on
// (X, y) with dropout disabled.
func Evaluate(m *Model, X [][]float64, y []float64) (mse, mae float64) {
	if len(X) == 0 {
		return math.NaN(), math.NaN()
	}
	for i, w := range X {
		pred, _ := m.forward(w, false, nil)
		d := pred - y[i]
		mse += d * d
		mae += math.Abs(d)
	}
	n := float64(len(X))
	return mse / n, mae / n
}
