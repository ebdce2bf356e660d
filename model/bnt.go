package model

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"brainnet"
	"brainnet/optim"
)

const (
	reducedFeatureSize = 8
	headHidden1        = 256
	headHidden2        = 32
)

// BrainNetworkTransformer chains TransPoolingEncoder stages over connectivity
// node features, reduces the surviving nodes to a narrow feature width, and
// classifies the flattened result. The per-stage cluster assignments come
// back from Forward so the caller can form the auxiliary clustering loss.
type BrainNetworkTransformer struct {
	posEncoding  string
	nodeIdentity *optim.Parameter // [nodes, posEmbedDim] in identity mode
	stages       []*TransPoolingEncoder
	dimReduction *Linear
	fc           *MLP
	finalNodes   int
	outputSize   int
}

// NewBrainNetworkTransformer builds the network for the given processed-data
// shape. Stage i consumes the previous stage's node count and produces
// cfg.Sizes[i] nodes; the first entry of cfg.Sizes is overridden by the
// data's node count, as the stage before any pooling keeps the node axis.
func NewBrainNetworkTransformer(cfg brainnet.ModelConfig, info brainnet.DataInfo) (*BrainNetworkTransformer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nodeSize := info.NodeSize()
	featureSize := info.FeatureSize()
	if nodeSize <= 0 || featureSize <= 0 {
		return nil, errors.Errorf("model: data info has degenerate shape %v", info.DataShape)
	}
	if info.NClasses < 2 {
		return nil, errors.Errorf("model: need at least 2 classes, got %d", info.NClasses)
	}

	forwardDim := featureSize
	b := &BrainNetworkTransformer{
		posEncoding: cfg.PosEncoding,
		outputSize:  info.NClasses,
	}
	if cfg.PosEncoding == "identity" {
		b.nodeIdentity = optim.NewParameter("node_identity", kaimingDense(nodeSize, cfg.PosEmbedDim), true)
		forwardDim += cfg.PosEmbedDim
	}

	sizes := append([]int(nil), cfg.Sizes...)
	sizes[0] = nodeSize
	inSizes := append([]int{nodeSize}, sizes[:len(sizes)-1]...)

	for i, size := range sizes {
		stage, err := NewTransPoolingEncoder(
			fmt.Sprintf("stage%d", i),
			forwardDim, inSizes[i], cfg.HiddenSize, size,
			cfg.Pooling[i], cfg.Orthogonal, cfg.FreezeCenter, cfg.ProjectAssignment,
		)
		if err != nil {
			return nil, errors.Wrapf(err, "model: stage %d", i)
		}
		b.stages = append(b.stages, stage)
	}

	b.finalNodes = sizes[len(sizes)-1]
	b.dimReduction = NewLinear("dim_reduction", forwardDim, reducedFeatureSize)
	b.fc = NewMLP("fc", leakyReLU,
		reducedFeatureSize*b.finalNodes, headHidden1, headHidden2, info.NClasses)
	return b, nil
}

// Forward maps a batch of [nodes, features] matrices to [batch, classes]
// logits. The second result holds each stage's assignment matrices (nil for
// stages without pooling), in stage order.
func (b *BrainNetworkTransformer) Forward(batch []*mat.Dense) (*mat.Dense, [][]*mat.Dense) {
	x := batch
	if b.posEncoding == "identity" {
		withPos := make([]*mat.Dense, len(x))
		for i, m := range x {
			var aug mat.Dense
			aug.Augment(m, b.nodeIdentity.Value)
			withPos[i] = &aug
		}
		x = withPos
	}

	assignments := make([][]*mat.Dense, 0, len(b.stages))
	for _, stage := range b.stages {
		var assignment []*mat.Dense
		x, assignment = stage.Forward(x)
		assignments = append(assignments, assignment)
	}

	logits := mat.NewDense(len(x), b.outputSize, nil)
	flat := mat.NewDense(1, b.finalNodes*reducedFeatureSize, nil)
	for i, m := range x {
		reduced := leakyReLU(b.dimReduction.Apply(m))
		row := flat.RawRowView(0)
		for n := 0; n < b.finalNodes; n++ {
			copy(row[n*reducedFeatureSize:(n+1)*reducedFeatureSize], reduced.RawRowView(n))
		}
		logits.SetRow(i, b.fc.Apply(flat).RawRowView(0))
	}
	return logits, assignments
}

// Loss sums the DEC loss of every pooling-enabled stage over its (non-nil)
// assignments. A stack with no pooling stage contributes nothing and the
// loss is exactly 0.
func (b *BrainNetworkTransformer) Loss(assignments [][]*mat.Dense) float64 {
	var decs []*TransPoolingEncoder
	for _, s := range b.stages {
		if s.PoolingEnabled() {
			decs = append(decs, s)
		}
	}
	var kept [][]*mat.Dense
	for _, a := range assignments {
		if a != nil {
			kept = append(kept, a)
		}
	}
	total := 0.0
	for i, a := range kept {
		if i >= len(decs) {
			break
		}
		total += decs[i].Loss(a)
	}
	return total
}

// AttentionWeights returns the last forward pass's attention matrices, one
// entry per stage regardless of pooling configuration.
func (b *BrainNetworkTransformer) AttentionWeights() [][]*mat.Dense {
	out := make([][]*mat.Dense, len(b.stages))
	for i, s := range b.stages {
		out[i] = s.AttentionWeights()
	}
	return out
}

// ClusterCenters returns the final pooling stage's cluster-center matrix, or
// nil when no stage pools.
func (b *BrainNetworkTransformer) ClusterCenters() *mat.Dense {
	for i := len(b.stages) - 1; i >= 0; i-- {
		if b.stages[i].PoolingEnabled() {
			return b.stages[i].Centers()
		}
	}
	return nil
}

// Parameters lists every weight in the network.
func (b *BrainNetworkTransformer) Parameters() []*optim.Parameter {
	var out []*optim.Parameter
	if b.nodeIdentity != nil {
		out = append(out, b.nodeIdentity)
	}
	for _, s := range b.stages {
		out = append(out, s.Parameters()...)
	}
	out = append(out, b.dimReduction.Parameters()...)
	out = append(out, b.fc.Parameters()...)
	return out
}
