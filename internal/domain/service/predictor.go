package service

// Predictor maps one window of scaled observations to the next scaled value.
// Implementations must be safe for concurrent use.
type Predictor interface {
	Predict(window []float64) (float64, error)
	WindowSize() int
}

// Scaler maps raw prices to model space and back.
type Scaler interface {
	Transform(values []float64) []float64
	Inverse(values []float64) []float64
}
