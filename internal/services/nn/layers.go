package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Layer transforms a sequence of vectors (time steps x features).
// Forward returns an opaque cache that Backward consumes; layers hold no
// per-call state so inference is safe from many goroutines.
type Layer interface {
	Forward(x [][]float64, train bool, rng *rand.Rand) ([][]float64, any)
	// Backward accumulates parameter gradients and returns dL/dx.
	Backward(cache any, dy [][]float64) [][]float64
	Params() []*Param
	OutputSize() int
}

// LSTM is a long short-term memory layer with gate order input, forget,
// cell, output. W is 4U x In, U is 4U x U, B is 1 x 4U.
type LSTM struct {
	In              int
	Units           int
	ReturnSequences bool
	W, U, B         *Param
}

func newLSTM(name string, in, units int, returnSeq bool) *LSTM {
	return &LSTM{
		In:              in,
		Units:           units,
		ReturnSequences: returnSeq,
		W:               newParam(name+"/kernel", 4*units, in),
		U:               newParam(name+"/recurrent_kernel", 4*units, units),
		B:               newParam(name+"/bias", 1, 4*units),
	}
}

func (l *LSTM) init(rng *rand.Rand) {
	glorotUniform(l.W, l.In, 4*l.Units, rng)
	orthogonal(l.U, rng)
	for k := range l.B.Values {
		l.B.Values[k] = 0
	}
	// forget gate starts open
	for j := 0; j < l.Units; j++ {
		l.B.Values[l.Units+j] = 1
	}
}

func (l *LSTM) Params() []*Param { return []*Param{l.W, l.U, l.B} }

func (l *LSTM) OutputSize() int { return l.Units }

type lstmStep struct {
	x, hPrev, cPrev []float64
	i, f, g, o, tc  []float64
}

func (l *LSTM) Forward(x [][]float64, _ bool, _ *rand.Rand) ([][]float64, any) {
	n := l.Units
	h := make([]float64, n)
	c := make([]float64, n)
	z := make([]float64, 4*n)
	steps := make([]lstmStep, len(x))

	var out [][]float64
	if l.ReturnSequences {
		out = make([][]float64, 0, len(x))
	}

	for t, xt := range x {
		for k := range z {
			z[k] = floats.Dot(l.W.Row(k), xt) + floats.Dot(l.U.Row(k), h) + l.B.Values[k]
		}

		st := lstmStep{
			x: xt, hPrev: h, cPrev: c,
			i: make([]float64, n), f: make([]float64, n),
			g: make([]float64, n), o: make([]float64, n),
			tc: make([]float64, n),
		}
		hNext := make([]float64, n)
		cNext := make([]float64, n)
		for j := 0; j < n; j++ {
			ig := sigmoid(z[j])
			fg := sigmoid(z[n+j])
			gg := math.Tanh(z[2*n+j])
			og := sigmoid(z[3*n+j])

			cNext[j] = fg*c[j] + ig*gg
			tc := math.Tanh(cNext[j])
			hNext[j] = og * tc

			st.i[j], st.f[j], st.g[j], st.o[j], st.tc[j] = ig, fg, gg, og, tc
		}
		steps[t] = st
		h, c = hNext, cNext

		if l.ReturnSequences {
			out = append(out, h)
		}
	}

	if !l.ReturnSequences {
		out = [][]float64{h}
	}
	return out, steps
}

func (l *LSTM) Backward(cache any, dy [][]float64) [][]float64 {
	steps := cache.([]lstmStep)
	n := l.Units
	T := len(steps)

	dx := make([][]float64, T)
	dhNext := make([]float64, n)
	dcNext := make([]float64, n)
	dz := make([]float64, 4*n)
	dh := make([]float64, n)

	for t := T - 1; t >= 0; t-- {
		st := steps[t]

		copy(dh, dhNext)
		switch {
		case l.ReturnSequences:
			floats.Add(dh, dy[t])
		case t == T-1:
			floats.Add(dh, dy[0])
		}

		for j := 0; j < n; j++ {
			do := dh[j] * st.tc[j]
			dc := dh[j]*st.o[j]*(1-st.tc[j]*st.tc[j]) + dcNext[j]

			dz[j] = dc * st.g[j] * st.i[j] * (1 - st.i[j])
			dz[n+j] = dc * st.cPrev[j] * st.f[j] * (1 - st.f[j])
			dz[2*n+j] = dc * st.i[j] * (1 - st.g[j]*st.g[j])
			dz[3*n+j] = do * st.o[j] * (1 - st.o[j])

			dcNext[j] = dc * st.f[j]
		}

		dxt := make([]float64, l.In)
		dhPrev := make([]float64, n)
		for k, g := range dz {
			if g == 0 {
				continue
			}
			floats.AddScaled(l.W.GradRow(k), g, st.x)
			floats.AddScaled(l.U.GradRow(k), g, st.hPrev)
			l.B.Grad[k] += g
			floats.AddScaled(dxt, g, l.W.Row(k))
			floats.AddScaled(dhPrev, g, l.U.Row(k))
		}
		dx[t] = dxt
		dhNext = dhPrev
	}
	return dx
}

// Dense is a linear layer applied independently at every time step.
type Dense struct {
	In, Out int
	W, B    *Param
}

func newDense(name string, in, out int) *Dense {
	return &Dense{
		In:  in,
		Out: out,
		W:   newParam(name+"/kernel", out, in),
		B:   newParam(name+"/bias", 1, out),
	}
}

func (d *Dense) init(rng *rand.Rand) {
	glorotUniform(d.W, d.In, d.Out, rng)
	for k := range d.B.Values {
		d.B.Values[k] = 0
	}
}

func (d *Dense) Params() []*Param { return []*Param{d.W, d.B} }

func (d *Dense) OutputSize() int { return d.Out }

func (d *Dense) Forward(x [][]float64, _ bool, _ *rand.Rand) ([][]float64, any) {
	out := make([][]float64, len(x))
	for t, xt := range x {
		yt := make([]float64, d.Out)
		for k := range yt {
			yt[k] = floats.Dot(d.W.Row(k), xt) + d.B.Values[k]
		}
		out[t] = yt
	}
	return out, x
}

func (d *Dense) Backward(cache any, dy [][]float64) [][]float64 {
	x := cache.([][]float64)
	dx := make([][]float64, len(x))
	for t, xt := range x {
		dxt := make([]float64, d.In)
		for k, g := range dy[t] {
			floats.AddScaled(d.W.GradRow(k), g, xt)
			d.B.Grad[k] += g
			floats.AddScaled(dxt, g, d.W.Row(k))
		}
		dx[t] = dxt
	}
	return dx
}

// Dropout zeroes each activation with probability Rate during training and
// scales survivors by 1/(1-Rate). It is the identity at inference.
type Dropout struct {
	Rate float64
	size int
}

func (d *Dropout) Params() []*Param { return nil }

func (d *Dropout) OutputSize() int { return d.size }

func (d *Dropout) Forward(x [][]float64, train bool, rng *rand.Rand) ([][]float64, any) {
	if !train || d.Rate <= 0 {
		return x, nil
	}
	if rng == nil {
		panic(fmt.Sprintf("nn: dropout(%.2f) in training mode needs a random source", d.Rate))
	}
	keep := 1 - d.Rate
	masks := make([][]float64, len(x))
	out := make([][]float64, len(x))
	for t, xt := range x {
		m := make([]float64, len(xt))
		yt := make([]float64, len(xt))
		for j := range xt {
			if rng.Float64() >= d.Rate {
				m[j] = 1 / keep
			}
			yt[j] = xt[j] * m[j]
		}
		masks[t] = m
		out[t] = yt
	}
	return out, masks
}

func (d *Dropout) Backward(cache any, dy [][]float64) [][]float64 {
	if cache == nil {
		return dy
	}
	masks := cache.([][]float64)
	dx := make([][]float64, len(dy))
	for t := range dy {
		dxt := make([]float64, len(dy[t]))
		floats.MulTo(dxt, dy[t], masks[t])
		dx[t] = dxt
	}
	return dx
}
