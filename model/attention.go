package model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"brainnet/optim"
)

// softmaxRows applies a numerically stable softmax to each row of x and
// returns a fresh matrix.
func softmaxRows(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := x.RawRowView(i)
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		out := y.RawRowView(i)
		total := 0.0
		for j, v := range row {
			out[j] = math.Exp(v - max)
			total += out[j]
		}
		for j := range out {
			out[j] /= total
		}
	}
	return y
}

// SelfAttention is a multi-head scaled dot-product self-attention block.
// Apply returns both the projected output and the attention-weight matrix,
// so callers that need the weights get them by contract instead of reaching
// into internals.
type SelfAttention struct {
	heads int
	dim   int
	wq    *optim.Parameter // [d, d]
	wk    *optim.Parameter // [d, d]
	wv    *optim.Parameter // [d, d]
	wo    *optim.Parameter // [d, d]
}

// NewSelfAttention builds a block over dim features with the given head
// count. Divisibility of dim by heads is the data-postprocessing layer's
// contract, not checked here.
func NewSelfAttention(name string, dim, heads int) *SelfAttention {
	return &SelfAttention{
		heads: heads,
		dim:   dim,
		wq:    optim.NewParameter(name+".wq", xavierDense(dim, dim), true),
		wk:    optim.NewParameter(name+".wk", xavierDense(dim, dim), true),
		wv:    optim.NewParameter(name+".wv", xavierDense(dim, dim), true),
		wo:    optim.NewParameter(name+".wo", xavierDense(dim, dim), true),
	}
}

// Apply attends x ([nodes, dim]) to itself. The returned weights are the
// [nodes, nodes] attention matrix averaged over heads.
func (sa *SelfAttention) Apply(x *mat.Dense) (out, weights *mat.Dense) {
	n, _ := x.Dims()
	dh := sa.dim / sa.heads
	scale := 1.0 / math.Sqrt(float64(dh))

	var q, k, v mat.Dense
	q.Mul(x, sa.wq.Value)
	k.Mul(x, sa.wk.Value)
	v.Mul(x, sa.wv.Value)

	concat := mat.NewDense(n, sa.dim, nil)
	avg := mat.NewDense(n, n, nil)

	for h := 0; h < sa.heads; h++ {
		lo, hi := h*dh, (h+1)*dh
		qh := q.Slice(0, n, lo, hi)
		kh := k.Slice(0, n, lo, hi)
		vh := v.Slice(0, n, lo, hi)

		var scores mat.Dense
		scores.Mul(qh, kh.T())
		scores.Scale(scale, &scores)
		probs := softmaxRows(&scores)
		avg.Add(avg, probs)

		var oh mat.Dense
		oh.Mul(probs, vh)
		concat.Slice(0, n, lo, hi).(*mat.Dense).Copy(&oh)
	}
	avg.Scale(1.0/float64(sa.heads), avg)

	var projected mat.Dense
	projected.Mul(concat, sa.wo.Value)
	return &projected, avg
}

// Parameters lists the projection weights.
func (sa *SelfAttention) Parameters() []*optim.Parameter {
	return []*optim.Parameter{sa.wq, sa.wk, sa.wv, sa.wo}
}

// layerNorm normalizes each row over the feature axis with a learned scale
// and shift.
type layerNorm struct {
	gamma *optim.Parameter // [1, d]
	beta  *optim.Parameter // [1, d]
	eps   float64
}

func newLayerNorm(name string, dim int) *layerNorm {
	ones := make([]float64, dim)
	for i := range ones {
		ones[i] = 1
	}
	return &layerNorm{
		gamma: optim.NewParameter(name+".gamma", mat.NewDense(1, dim, ones), true),
		beta:  optim.NewParameter(name+".beta", mat.NewDense(1, dim, nil), true),
		eps:   1e-5,
	}
}

func (ln *layerNorm) apply(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	y := mat.NewDense(rows, cols, nil)
	g := ln.gamma.Value.RawRowView(0)
	b := ln.beta.Value.RawRowView(0)
	for i := 0; i < rows; i++ {
		row := x.RawRowView(i)
		mean := 0.0
		for _, v := range row {
			mean += v
		}
		mean /= float64(cols)
		variance := 0.0
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= float64(cols)
		inv := 1.0 / math.Sqrt(variance+ln.eps)
		out := y.RawRowView(i)
		for j, v := range row {
			out[j] = g[j]*(v-mean)*inv + b[j]
		}
	}
	return y
}

func (ln *layerNorm) parameters() []*optim.Parameter {
	return []*optim.Parameter{ln.gamma, ln.beta}
}

// EncoderLayer is a transformer encoder layer built by composing a
// SelfAttention block with a feed-forward sub-layer: attention, residual,
// layer norm, feed-forward, residual, layer norm. It records the attention
// weights of the most recent forward pass, one matrix per batch element,
// overwritten on every call.
type EncoderLayer struct {
	attn        *SelfAttention
	ff          *MLP
	norm1       *layerNorm
	norm2       *layerNorm
	lastWeights []*mat.Dense
}

// NewEncoderLayer builds an encoder layer over dim features with the given
// feed-forward hidden width.
func NewEncoderLayer(name string, dim, heads, hidden int) *EncoderLayer {
	return &EncoderLayer{
		attn:  NewSelfAttention(name+".attn", dim, heads),
		ff:    NewMLP(name+".ff", relu, dim, hidden, dim),
		norm1: newLayerNorm(name+".norm1", dim),
		norm2: newLayerNorm(name+".norm2", dim),
	}
}

// Apply transforms every batch element, keeping node count and feature width.
func (e *EncoderLayer) Apply(batch []*mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(batch))
	e.lastWeights = make([]*mat.Dense, len(batch))
	for i, x := range batch {
		attended, weights := e.attn.Apply(x)
		e.lastWeights[i] = weights

		var sum mat.Dense
		sum.Add(x, attended)
		normed := e.norm1.apply(&sum)

		fed := e.ff.Apply(normed)
		var sum2 mat.Dense
		sum2.Add(normed, fed)
		out[i] = e.norm2.apply(&sum2)
	}
	return out
}

// AttentionWeights returns the per-batch-element attention matrices recorded
// by the last Apply. Read-only introspection; the slice is replaced on the
// next forward pass.
func (e *EncoderLayer) AttentionWeights() []*mat.Dense {
	return e.lastWeights
}

// Parameters lists every weight in the layer.
func (e *EncoderLayer) Parameters() []*optim.Parameter {
	var out []*optim.Parameter
	out = append(out, e.attn.Parameters()...)
	out = append(out, e.ff.Parameters()...)
	out = append(out, e.norm1.parameters()...)
	out = append(out, e.norm2.parameters()...)
	return out
}
