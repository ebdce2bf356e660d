package dataset

import (
	"gorgonia.org/tensor"

	"brainnet"
)

// AttentionHeadPad zero-pads the feature axis of 3-axis FNC matrices to a
// multiple of heads, so the attention block's per-head slicing works out.
// Returns fresh data and info when padding was needed, the inputs unchanged
// otherwise.
func AttentionHeadPad(heads int) PostprocessFunc {
	return func(data *Data, info brainnet.DataInfo) (*Data, brainnet.DataInfo, error) {
		if data.FNC == nil {
			return data, info, nil
		}
		shape := data.FNC.Shape()
		if len(shape) != 3 || shape[2]%heads == 0 {
			return data, info, nil
		}
		pad := heads - shape[2]%heads
		subjects, nodes, feats := shape[0], shape[1], shape[2]

		src := data.FNC.Data().([]float64)
		widened := feats + pad
		out := make([]float64, subjects*nodes*widened)
		for s := 0; s < subjects; s++ {
			for n := 0; n < nodes; n++ {
				copy(out[(s*nodes+n)*widened:], src[(s*nodes+n)*feats:(s*nodes+n+1)*feats])
			}
		}

		padded := &Data{
			TS:     data.TS,
			FNC:    tensor.New(tensor.WithShape(subjects, nodes, widened), tensor.WithBacking(out)),
			Labels: data.Labels,
		}
		newInfo := info
		newInfo.DataShape = []int{subjects, nodes, widened}
		newInfo.FNCShape = newInfo.DataShape
		return padded, newInfo, nil
	}
}
