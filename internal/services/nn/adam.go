package nn

import "math"

// Adam implements the Adam optimiser with bias correction folded into the
// step size.
type Adam struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64

	t    int
	m, v map[*Param][]float64
}

// NewAdam returns Adam with beta1 0.9, beta2 0.999 and epsilon 1e-7.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LR:      lr,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-7,
		m:       make(map[*Param][]float64),
		v:       make(map[*Param][]float64),
	}
}

// Step applies one update from the gradients currently held in params.
func (a *Adam) Step(params []*Param) {
	a.t++
	lr := a.LR * math.Sqrt(1-math.Pow(a.Beta2, float64(a.t))) / (1 - math.Pow(a.Beta1, float64(a.t)))

	for _, p := range params {
		m, ok := a.m[p]
		if !ok {
			m = make([]float64, len(p.Values))
			a.m[p] = m
			a.v[p] = make([]float64, len(p.Values))
		}
		v := a.v[p]

		for i, g := range p.Grad {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*g
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*g*g
			p.Values[i] -= lr * m[i] / (math.Sqrt(v[i]) + a.Epsilon)
		}
	}
}
