package dataset

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Fold is one cross-validation split: disjoint train and test index lists
// covering every subject.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold partitions subject indices into k folds with per-class
// balance: each class's subjects are shuffled with the given seed and dealt
// round-robin into the fold test sets. Every class must have at least k
// members.
func StratifiedKFold(labels []int, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, errors.Errorf("dataset: k-fold needs k >= 2, got %d", k)
	}

	byClass := map[int][]int{}
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))
	testSets := make([][]int, k)
	for _, c := range classes {
		idx := byClass[c]
		if len(idx) < k {
			return nil, errors.Errorf("dataset: class %d has %d subjects, fewer than %d folds", c, len(idx), k)
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for i, subject := range idx {
			testSets[i%k] = append(testSets[i%k], subject)
		}
	}

	folds := make([]Fold, k)
	for f := 0; f < k; f++ {
		inTest := map[int]struct{}{}
		for _, i := range testSets[f] {
			inTest[i] = struct{}{}
		}
		sort.Ints(testSets[f])
		folds[f].Test = testSets[f]
		for i := range labels {
			if _, ok := inTest[i]; !ok {
				folds[f].Train = append(folds[f].Train, i)
			}
		}
	}
	return folds, nil
}

// SelectSubjects copies the chosen subjects out of a tensor whose leading
// axis indexes subjects, along with their labels.
func SelectSubjects(ts *tensor.Dense, labels []int, indices []int) (*tensor.Dense, []int, error) {
	shape := ts.Shape()
	if len(shape) < 2 {
		return nil, nil, errors.Errorf("dataset: cannot select subjects from shape %v", shape)
	}
	stride := 1
	for _, d := range shape[1:] {
		stride *= d
	}
	src := ts.Data().([]float64)

	out := make([]float64, len(indices)*stride)
	kept := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= shape[0] {
			return nil, nil, errors.Errorf("dataset: subject index %d out of range [0, %d)", idx, shape[0])
		}
		copy(out[i*stride:(i+1)*stride], src[idx*stride:(idx+1)*stride])
		kept[i] = labels[idx]
	}

	newShape := append([]int{len(indices)}, shape[1:]...)
	return tensor.New(tensor.WithShape(newShape...), tensor.WithBacking(out)), kept, nil
}

// TuningHoldout splits the subjects once and returns the tuning portion
// (the first fold's test set) when tune is set, the experiment portion
// otherwise.
func TuningHoldout(labels []int, splits int, seed int64, tune bool) ([]int, error) {
	folds, err := StratifiedKFold(labels, splits, seed)
	if err != nil {
		return nil, err
	}
	if tune {
		return folds[0].Test, nil
	}
	return folds[0].Train, nil
}
