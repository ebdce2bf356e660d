package model

import (
	"gonum.org/v1/gonum/mat"

	"brainnet/optim"
)

const (
	// attentionHeads is the head count of every encoder stage. The data
	// postprocessor pads feature widths to a multiple of this.
	attentionHeads = 4

	// decEncoderHidden is the hidden width of the DEC encoder MLP.
	decEncoderHidden = 32
)

// TransPoolingEncoder is one stage of the stack: a transformer encoder
// layer, then (optionally) a DEC pooling step that reduces the node count
// from inputNodes to outputNodes while keeping the feature width.
type TransPoolingEncoder struct {
	transformer *EncoderLayer
	pooling     bool
	dec         *DEC
}

// NewTransPoolingEncoder builds a stage. hiddenSize is the transformer
// feed-forward width; the clustering flags are forwarded to the DEC when
// pooling is on.
func NewTransPoolingEncoder(name string, featureSize, inputNodes, hiddenSize, outputNodes int, pooling, orthogonal, freezeCenter, projectAssignment bool) (*TransPoolingEncoder, error) {
	t := &TransPoolingEncoder{
		transformer: NewEncoderLayer(name+".transformer", featureSize, attentionHeads, hiddenSize),
		pooling:     pooling,
	}
	if pooling {
		width := featureSize * inputNodes
		encoder := NewMLP(name+".encoder", leakyReLU, width, decEncoderHidden, decEncoderHidden, width)
		dec, err := NewDEC(outputNodes, featureSize, encoder, 1.0, orthogonal, freezeCenter, projectAssignment)
		if err != nil {
			return nil, err
		}
		t.dec = dec
	}
	return t, nil
}

// PoolingEnabled reports whether this stage contributes to the clustering
// loss.
func (t *TransPoolingEncoder) PoolingEnabled() bool {
	return t.pooling
}

// Forward transforms the batch. Pooling stages return the per-element
// assignment matrices; pass-through stages return nil assignments.
func (t *TransPoolingEncoder) Forward(batch []*mat.Dense) (out, assignments []*mat.Dense) {
	out = t.transformer.Apply(batch)
	if t.pooling {
		return t.dec.Forward(out)
	}
	return out, nil
}

// AttentionWeights returns the stage's most recent attention matrices.
func (t *TransPoolingEncoder) AttentionWeights() []*mat.Dense {
	return t.transformer.AttentionWeights()
}

// Loss forwards to the stage's DEC. Only valid on pooling stages.
func (t *TransPoolingEncoder) Loss(assignments []*mat.Dense) float64 {
	return t.dec.Loss(assignments)
}

// Centers returns the stage's cluster centers, or nil for pass-through
// stages.
func (t *TransPoolingEncoder) Centers() *mat.Dense {
	if t.dec == nil {
		return nil
	}
	return t.dec.Centers()
}

// Parameters lists the stage's weights.
func (t *TransPoolingEncoder) Parameters() []*optim.Parameter {
	out := t.transformer.Parameters()
	if t.dec != nil {
		out = append(out, t.dec.Parameters()...)
	}
	return out
}
