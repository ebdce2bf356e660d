package optim

import "gonum.org/v1/gonum/mat"

// Parameter is a named weight matrix with an optional gradient buffer.
// A frozen parameter (RequiresGrad false) is never moved by the optimizer,
// whatever its gradient says.
type Parameter struct {
	Name         string
	Value        *mat.Dense
	Grad         *mat.Dense
	RequiresGrad bool
}

// NewParameter wraps value. The gradient buffer is allocated lazily by
// whoever computes gradients.
func NewParameter(name string, value *mat.Dense, requiresGrad bool) *Parameter {
	return &Parameter{Name: name, Value: value, RequiresGrad: requiresGrad}
}

// EnsureGrad returns the gradient buffer, allocating a zeroed one with the
// value's shape on first use.
func (p *Parameter) EnsureGrad() *mat.Dense {
	if p.Grad == nil {
		r, c := p.Value.Dims()
		p.Grad = mat.NewDense(r, c, nil)
	}
	return p.Grad
}

// ZeroGrad clears the gradient buffer if one exists.
func (p *Parameter) ZeroGrad() {
	if p.Grad == nil {
		return
	}
	p.Grad.Zero()
}
