package dataset

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"

	"brainnet"
)

// Data bundles the tensors a processed dataset hands to the model layer.
// TS is [subjects, time, components]; FNC is [subjects, components,
// components] (or [subjects, triangle] for the flattened variant).
type Data struct {
	TS     *tensor.Dense
	FNC    *tensor.Dense
	Labels []int
}

// CommonProcessor is the generic feature-derivation step: optional z-score
// of the time series over the time axis, then Pearson-correlation FNC
// derivation as selected by dataType ("TS", "FNC", "tri-FNC" or "TS-FNC").
// The returned DataInfo carries the shape of the tensor the model will see
// and the class count; nothing is written back into the config.
func CommonProcessor(ts *tensor.Dense, labels []int, cfg brainnet.DatasetConfig, dataType string) (*Data, brainnet.DataInfo, error) {
	shape := ts.Shape()
	if len(shape) != 3 {
		return nil, brainnet.DataInfo{}, errors.Errorf("dataset: time series must be 3-axis [subjects, time, components], got %v", shape)
	}
	if shape[0] != len(labels) {
		return nil, brainnet.DataInfo{}, errors.Errorf("dataset: %d subjects but %d labels", shape[0], len(labels))
	}

	nClasses := countClasses(labels)

	if cfg.ZScore {
		ts = ZScore(ts)
	}

	info := brainnet.DataInfo{NClasses: nClasses}
	data := &Data{Labels: labels}

	switch dataType {
	case "", "TS":
		data.TS = ts
		info.DataShape = append([]int(nil), ts.Shape()...)
		info.TSShape = info.DataShape
	case "FNC":
		data.FNC = Pearson(ts)
		info.DataShape = append([]int(nil), data.FNC.Shape()...)
		info.FNCShape = info.DataShape
	case "tri-FNC":
		data.FNC = lowerTriangle(Pearson(ts))
		info.DataShape = append([]int(nil), data.FNC.Shape()...)
		info.FNCShape = info.DataShape
	case "TS-FNC":
		data.TS = ts
		data.FNC = Pearson(ts)
		info.TSShape = append([]int(nil), ts.Shape()...)
		info.FNCShape = append([]int(nil), data.FNC.Shape()...)
		info.DataShape = info.FNCShape
	default:
		return nil, brainnet.DataInfo{}, errors.Errorf("dataset: unknown data_type %q", dataType)
	}

	return data, info, nil
}

// ZScore standardizes each subject's component series over the time axis
// (population standard deviation) and returns a fresh tensor.
func ZScore(ts *tensor.Dense) *tensor.Dense {
	shape := ts.Shape()
	subjects, steps, comps := shape[0], shape[1], shape[2]
	src := ts.Data().([]float64)
	out := make([]float64, len(src))

	series := make([]float64, steps)
	for s := 0; s < subjects; s++ {
		for c := 0; c < comps; c++ {
			for t := 0; t < steps; t++ {
				series[t] = src[(s*steps+t)*comps+c]
			}
			mean := stat.Mean(series, nil)
			std := math.Sqrt(stat.PopVariance(series, nil))
			for t := 0; t < steps; t++ {
				out[(s*steps+t)*comps+c] = (series[t] - mean) / std
			}
		}
	}
	return tensor.New(tensor.WithShape(subjects, steps, comps), tensor.WithBacking(out))
}

// Pearson derives the [subjects, components, components] functional network
// connectivity matrices: per subject, the Pearson correlation between each
// pair of component time series.
func Pearson(ts *tensor.Dense) *tensor.Dense {
	shape := ts.Shape()
	subjects, steps, comps := shape[0], shape[1], shape[2]
	src := ts.Data().([]float64)
	out := make([]float64, subjects*comps*comps)

	cols := make([][]float64, comps)
	for c := range cols {
		cols[c] = make([]float64, steps)
	}
	for s := 0; s < subjects; s++ {
		for c := 0; c < comps; c++ {
			for t := 0; t < steps; t++ {
				cols[c][t] = src[(s*steps+t)*comps+c]
			}
		}
		base := s * comps * comps
		for i := 0; i < comps; i++ {
			out[base+i*comps+i] = 1
			for j := 0; j < i; j++ {
				r := stat.Correlation(cols[i], cols[j], nil)
				out[base+i*comps+j] = r
				out[base+j*comps+i] = r
			}
		}
	}
	return tensor.New(tensor.WithShape(subjects, comps, comps), tensor.WithBacking(out))
}

// lowerTriangle flattens each subject's FNC matrix to its lower triangle,
// diagonal included.
func lowerTriangle(fnc *tensor.Dense) *tensor.Dense {
	shape := fnc.Shape()
	subjects, comps := shape[0], shape[1]
	src := fnc.Data().([]float64)
	triLen := comps * (comps + 1) / 2
	out := make([]float64, subjects*triLen)

	for s := 0; s < subjects; s++ {
		at := s * triLen
		for i := 0; i < comps; i++ {
			for j := 0; j <= i; j++ {
				out[at] = src[(s*comps+i)*comps+j]
				at++
			}
		}
	}
	return tensor.New(tensor.WithShape(subjects, triLen), tensor.WithBacking(out))
}

func countClasses(labels []int) int {
	seen := map[int]struct{}{}
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}

// Batch extracts the model-input matrices (FNC when present, otherwise the
// [time, components] series) for the selected subjects as per-subject gonum
// matrices. It is the seam between the tensor containers of the data layer
// and the matrix math of the model.
func (d *Data) Batch(indices []int) ([]*mat.Dense, []int, error) {
	src := d.FNC
	if src == nil {
		src = d.TS
	}
	if src == nil {
		return nil, nil, errors.New("dataset: no tensor to batch")
	}
	shape := src.Shape()
	if len(shape) != 3 {
		return nil, nil, errors.Errorf("dataset: batching needs a 3-axis tensor, got %v", shape)
	}
	rows, cols := shape[1], shape[2]
	backing := src.Data().([]float64)
	stride := rows * cols

	out := make([]*mat.Dense, len(indices))
	labels := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= shape[0] {
			return nil, nil, errors.Errorf("dataset: subject index %d out of range [0, %d)", idx, shape[0])
		}
		out[i] = mat.NewDense(rows, cols, append([]float64(nil), backing[idx*stride:(idx+1)*stride]...))
		labels[i] = d.Labels[idx]
	}
	return out, labels, nil
}
