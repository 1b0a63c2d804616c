package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable weight matrix stored row-major with its gradient.
type Param struct {
	Name   string    `json:"name"`
	Rows   int       `json:"rows"`
	Cols   int       `json:"cols"`
	Values []float64 `json:"values"`
	Grad   []float64 `json:"-"`
}

func newParam(name string, rows, cols int) *Param {
	return &Param{
		Name:   name,
		Rows:   rows,
		Cols:   cols,
		Values: make([]float64, rows*cols),
		Grad:   make([]float64, rows*cols),
	}
}

// Row returns row i of the weights as a view.
func (p *Param) Row(i int) []float64 {
	return p.Values[i*p.Cols : (i+1)*p.Cols]
}

// GradRow returns row i of the gradient as a view.
func (p *Param) GradRow(i int) []float64 {
	return p.Grad[i*p.Cols : (i+1)*p.Cols]
}

func (p *Param) zeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// glorotUniform fills p from U(-l, l) with l = sqrt(6 / (fanIn + fanOut)).
func glorotUniform(p *Param, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.Values {
		p.Values[i] = (rng.Float64()*2 - 1) * limit
	}
}

// orthogonal fills a tall matrix (Rows >= Cols) with orthonormal columns
// taken from the QR decomposition of a Gaussian matrix.
func orthogonal(p *Param, rng *rand.Rand) {
	if p.Rows < p.Cols {
		glorotUniform(p, p.Cols, p.Rows, rng)
		return
	}
	a := mat.NewDense(p.Rows, p.Cols, nil)
	for i := 0; i < p.Rows; i++ {
		for j := 0; j < p.Cols; j++ {
			a.Set(i, j, rng.NormFloat64())
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	for j := 0; j < p.Cols; j++ {
		sign := 1.0
		if r.At(j, j) < 0 {
			sign = -1
		}
		for i := 0; i < p.Rows; i++ {
			p.Values[i*p.Cols+j] = sign * q.At(i, j)
		}
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
