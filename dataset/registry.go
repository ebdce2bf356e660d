// Package dataset loads and processes neuroimaging time-series data into
// the tensors the model consumes. Datasets are looked up through an
// explicit registry of function references rather than by runtime import.
package dataset

import (
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"brainnet"
)

// LoadFunc produces the raw [subjects, time, components] time series and
// per-subject integer labels.
type LoadFunc func(cfg brainnet.DatasetConfig) (*tensor.Dense, []int, error)

// ProcessFunc turns raw time series into model-ready data plus its
// DataInfo.
type ProcessFunc func(ts *tensor.Dense, labels []int, cfg brainnet.DatasetConfig, dataType string) (*Data, brainnet.DataInfo, error)

// PostprocessFunc adjusts processed data for a particular model family and
// returns the (possibly updated) data and info. It never mutates the config.
type PostprocessFunc func(data *Data, info brainnet.DataInfo) (*Data, brainnet.DataInfo, error)

// Loader is a registered dataset: a required Load plus optional Process and
// Postprocess overrides. Nil Process means the common processor; nil
// Postprocess means no adjustment.
type Loader struct {
	Load        LoadFunc
	Process     ProcessFunc
	Postprocess PostprocessFunc
}

var registry = map[string]Loader{}

// Register adds a named loader. The Load function is mandatory and names
// cannot be reused.
func Register(name string, l Loader) error {
	if name == "" {
		return errors.New("dataset: loader name must be non-empty")
	}
	if l.Load == nil {
		return errors.Errorf("dataset: loader %q has no Load function", name)
	}
	if _, ok := registry[name]; ok {
		return errors.Errorf("dataset: loader %q already registered", name)
	}
	registry[name] = l
	return nil
}

// Lookup returns the loader for name with nil hooks replaced by defaults.
func Lookup(name string) (Loader, error) {
	l, ok := registry[name]
	if !ok {
		names := make([]string, 0, len(registry))
		for n := range registry {
			names = append(names, n)
		}
		sort.Strings(names)
		return Loader{}, errors.Errorf("dataset: unknown dataset %q (registered: %v)", name, names)
	}
	if l.Process == nil {
		l.Process = CommonProcessor
	}
	if l.Postprocess == nil {
		l.Postprocess = func(data *Data, info brainnet.DataInfo) (*Data, brainnet.DataInfo, error) {
			return data, info, nil
		}
	}
	return l, nil
}
