package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"brainnet/optim"
)

// xavierDense draws a [r, c] matrix from the Xavier/Glorot uniform
// initializer.
func xavierDense(r, c int) *mat.Dense {
	backing := gorgonia.GlorotU(1.0)(tensor.Float64, r, c).([]float64)
	return mat.NewDense(r, c, backing)
}

// kaimingDense draws a [r, c] matrix from a Kaiming-style normal
// initializer (std = sqrt(2/fanIn)).
func kaimingDense(r, c int) *mat.Dense {
	std := math.Sqrt(2.0 / float64(r))
	backing := gorgonia.Gaussian(0, std)(tensor.Float64, r, c).([]float64)
	return mat.NewDense(r, c, backing)
}

// Linear is a dense layer: y = x*W + b. Weights are Xavier-initialized,
// bias starts at zero.
type Linear struct {
	W *optim.Parameter // [in, out]
	B *optim.Parameter // [1, out]
}

// NewLinear builds a dense layer mapping in features to out features.
func NewLinear(name string, in, out int) *Linear {
	return &Linear{
		W: optim.NewParameter(name+".weight", xavierDense(in, out), true),
		B: optim.NewParameter(name+".bias", mat.NewDense(1, out, nil), true),
	}
}

// Apply computes x*W + b for x of shape [rows, in].
func (l *Linear) Apply(x *mat.Dense) *mat.Dense {
	var y mat.Dense
	y.Mul(x, l.W.Value)
	bias := l.B.Value.RawRowView(0)
	rows, _ := y.Dims()
	for i := 0; i < rows; i++ {
		floats.Add(y.RawRowView(i), bias)
	}
	return &y
}

// Parameters lists the layer's weights.
func (l *Linear) Parameters() []*optim.Parameter {
	return []*optim.Parameter{l.W, l.B}
}

// leakyReLU applies the element-wise leaky rectifier with slope 0.01 and
// returns a fresh matrix.
func leakyReLU(x *mat.Dense) *mat.Dense {
	var y mat.Dense
	y.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0.01 * v
		}
		return v
	}, x)
	return &y
}

// relu applies the element-wise rectifier and returns a fresh matrix.
func relu(x *mat.Dense) *mat.Dense {
	var y mat.Dense
	y.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}, x)
	return &y
}

// MLP is a stack of dense layers with an activation between consecutive
// layers and none after the last, the layout every feed-forward block in
// this model uses.
type MLP struct {
	layers []*Linear
	act    func(*mat.Dense) *mat.Dense
}

// NewMLP builds a dense stack with the given layer widths. sizes lists the
// input width followed by each layer's output width.
func NewMLP(name string, act func(*mat.Dense) *mat.Dense, sizes ...int) *MLP {
	if len(sizes) < 2 {
		panic("model: NewMLP needs an input and at least one output width")
	}
	m := &MLP{act: act}
	for i := 0; i < len(sizes)-1; i++ {
		m.layers = append(m.layers, NewLinear(fmt.Sprintf("%s.%d", name, i), sizes[i], sizes[i+1]))
	}
	return m
}

// Apply runs x through the stack.
func (m *MLP) Apply(x *mat.Dense) *mat.Dense {
	y := x
	for i, l := range m.layers {
		y = l.Apply(y)
		if i < len(m.layers)-1 {
			y = m.act(y)
		}
	}
	return y
}

// Parameters lists every layer's weights in order.
func (m *MLP) Parameters() []*optim.Parameter {
	var out []*optim.Parameter
	for _, l := range m.layers {
		out = append(out, l.Parameters()...)
	}
	return out
}
