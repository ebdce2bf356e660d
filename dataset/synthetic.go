package dataset

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"brainnet"
)

// LoadSynthetic generates a deterministic [subjects, time, components] time
// series with a weak class-dependent oscillation on top of per-subject
// noise. Each subject's generator is seeded from an md5 hash of its name,
// so the same config always yields the same data. It stands in for a real
// neuroimaging archive in tests and demos.
func LoadSynthetic(cfg brainnet.DatasetConfig) (*tensor.Dense, []int, error) {
	subjects := cfg.Subjects
	steps := cfg.TimePoints
	comps := cfg.Components
	classes := cfg.Classes
	if subjects <= 0 || steps <= 0 || comps <= 0 {
		return nil, nil, errors.Errorf("dataset: synthetic needs positive subjects/time_points/components, got %d/%d/%d",
			subjects, steps, comps)
	}
	if classes < 2 {
		classes = 2
	}

	data := make([]float64, subjects*steps*comps)
	labels := make([]int, subjects)

	for s := 0; s < subjects; s++ {
		label := s % classes
		labels[s] = label

		hash := md5.Sum([]byte(fmt.Sprintf("%s-subject-%d", cfg.Name, s)))
		seed := int64(binary.BigEndian.Uint64(hash[:8]))
		r := rand.New(rand.NewSource(seed))

		freq := 0.05 * float64(label+1)
		for t := 0; t < steps; t++ {
			phase := 2 * math.Pi * freq * float64(t)
			for c := 0; c < comps; c++ {
				signal := math.Sin(phase + float64(c))
				noise := r.Float64()*2 - 1
				data[(s*steps+t)*comps+c] = 0.5*signal + noise
			}
		}
	}

	return tensor.New(tensor.WithShape(subjects, steps, comps), tensor.WithBacking(data)), labels, nil
}

func init() {
	if err := Register("synthetic", Loader{Load: LoadSynthetic}); err != nil {
		panic(err)
	}
}
