package model

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"brainnet"
	"brainnet/optim"
)

// Network is what the experiment driver needs from a model: a forward pass
// producing logits plus per-stage assignments, the auxiliary clustering
// loss over those assignments, and the parameter list for the optimizer.
type Network interface {
	Forward(batch []*mat.Dense) (*mat.Dense, [][]*mat.Dense)
	Loss(assignments [][]*mat.Dense) float64
	Parameters() []*optim.Parameter
}

// Builder constructs a network for a model config and a processed-data
// shape.
type Builder func(cfg brainnet.ModelConfig, info brainnet.DataInfo) (Network, error)

var builders = map[string]Builder{}

// Register adds a named model builder. Registering a nil builder or reusing
// a name is a programming error.
func Register(name string, b Builder) error {
	if name == "" {
		return errors.New("model: builder name must be non-empty")
	}
	if b == nil {
		return errors.Errorf("model: builder %q is nil", name)
	}
	if _, ok := builders[name]; ok {
		return errors.Errorf("model: builder %q already registered", name)
	}
	builders[name] = b
	return nil
}

// Build looks up cfg.Name and constructs the network.
func Build(cfg brainnet.ModelConfig, info brainnet.DataInfo) (Network, error) {
	b, ok := builders[cfg.Name]
	if !ok {
		names := make([]string, 0, len(builders))
		for n := range builders {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, errors.Errorf("model: unknown model %q (registered: %v)", cfg.Name, names)
	}
	return b(cfg, info)
}

func init() {
	if err := Register("bnt", func(cfg brainnet.ModelConfig, info brainnet.DataInfo) (Network, error) {
		return NewBrainNetworkTransformer(cfg, info)
	}); err != nil {
		panic(err)
	}
}
