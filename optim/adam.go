package optim

import (
	"math"

	"github.com/pkg/errors"
)

// Group is a set of parameters sharing a learning rate and weight decay.
// LR is deliberately a plain mutable field: the learning-rate scheduler
// writes into it once per training step.
type Group struct {
	Params      []*Parameter
	LR          float64
	WeightDecay float64
}

// Adam implements the Adam update with decoupled weight decay over one or
// more parameter groups.
type Adam struct {
	Beta1 float64
	Beta2 float64
	Eps   float64

	groups []*Group
	m      map[*Parameter][]float64 // first-moment estimate per parameter
	v      map[*Parameter][]float64 // second-moment estimate per parameter
	t      int
}

// NewAdam builds an optimizer over groups with the default moment constants.
func NewAdam(groups ...*Group) (*Adam, error) {
	if len(groups) == 0 {
		return nil, errors.New("optim: adam needs at least one parameter group")
	}
	for i, g := range groups {
		if g == nil || len(g.Params) == 0 {
			return nil, errors.Errorf("optim: parameter group %d is empty", i)
		}
		if g.LR <= 0 {
			return nil, errors.Errorf("optim: parameter group %d has non-positive lr %g", i, g.LR)
		}
	}
	return &Adam{
		Beta1:  0.9,
		Beta2:  0.999,
		Eps:    1e-8,
		groups: groups,
		m:      make(map[*Parameter][]float64),
		v:      make(map[*Parameter][]float64),
	}, nil
}

// Groups exposes the parameter groups for the scheduler to mutate.
func (a *Adam) Groups() []*Group {
	return a.groups
}

// ZeroGrad clears every parameter's gradient buffer.
func (a *Adam) ZeroGrad() {
	for _, g := range a.groups {
		for _, p := range g.Params {
			p.ZeroGrad()
		}
	}
}

// Step applies one Adam update to every trainable parameter that has a
// gradient. Frozen parameters and parameters whose gradient was never filled
// are skipped.
func (a *Adam) Step() {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for _, g := range a.groups {
		for _, p := range g.Params {
			if !p.RequiresGrad || p.Grad == nil {
				continue
			}
			w := p.Value.RawMatrix().Data
			grad := p.Grad.RawMatrix().Data

			m, ok := a.m[p]
			if !ok {
				m = make([]float64, len(w))
				a.m[p] = m
			}
			v, ok := a.v[p]
			if !ok {
				v = make([]float64, len(w))
				a.v[p] = v
			}

			for i := range w {
				gi := grad[i]
				m[i] = a.Beta1*m[i] + (1-a.Beta1)*gi
				v[i] = a.Beta2*v[i] + (1-a.Beta2)*gi*gi
				mHat := m[i] / c1
				vHat := v[i] / c2
				w[i] -= g.LR * (mHat/(math.Sqrt(vHat)+a.Eps) + g.WeightDecay*w[i])
			}
		}
	}
}

// Parameters flattens every group into one list.
func (a *Adam) Parameters() []*Parameter {
	var out []*Parameter
	for _, g := range a.groups {
		out = append(out, g.Params...)
	}
	return out
}
