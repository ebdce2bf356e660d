package brainnet

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Config is the experiment configuration tree. It is assembled once, before
// any component is built, and never mutated afterwards: values computed
// during the pipeline (data shapes, class counts) travel forward as DataInfo
// results instead of being written back here.
type Config struct {
	Project string           `json:"project"`
	Seed    int64            `json:"seed"`
	Dataset DatasetConfig    `json:"dataset"`
	Model   ModelConfig      `json:"model"`
	Exp     ExperimentConfig `json:"exp"`
}

// DatasetConfig selects and parameterizes the dataset loader.
type DatasetConfig struct {
	Name          string `json:"name"`
	ZScore        bool   `json:"zscore"`
	TuningHoldout bool   `json:"tuning_holdout"`
	TuningSplit   int    `json:"tuning_split"`

	// Synthetic loader knobs; real loaders ignore them.
	Subjects   int `json:"subjects"`
	TimePoints int `json:"time_points"`
	Components int `json:"components"`
	Classes    int `json:"classes"`
}

// ModelConfig holds the network hyperparameters. Sizes and Pooling are
// parallel: Sizes[i] is the output node count of stage i, Pooling[i] whether
// that stage carries a clustering pool.
type ModelConfig struct {
	Name              string          `json:"name"`
	DataType          string          `json:"data_type"`
	Sizes             []int           `json:"sizes"`
	Pooling           []bool          `json:"pooling"`
	PosEncoding       string          `json:"pos_encoding"` // "identity" or "none"
	Orthogonal        bool            `json:"orthogonal"`
	FreezeCenter      bool            `json:"freeze_center"`
	ProjectAssignment bool            `json:"project_assignment"`
	PosEmbedDim       int             `json:"pos_embed_dim"`
	HiddenSize        int             `json:"hidden_size"`
	Optimizer         OptimizerConfig `json:"optimizer"`
	Scheduler         SchedulerConfig `json:"scheduler"`
}

// OptimizerConfig holds the optimizer hyperparameters.
type OptimizerConfig struct {
	LR          float64 `json:"lr"`
	WeightDecay float64 `json:"weight_decay"`
}

// SchedulerConfig holds the learning-rate schedule hyperparameters. Mode is
// one of "step", "poly", "cos", "linear", "decay"; mode-specific fields are
// validated when the scheduler is constructed.
type SchedulerConfig struct {
	Mode          string    `json:"mode"`
	BaseLR        float64   `json:"base_lr"`
	TargetLR      float64   `json:"target_lr"`
	DecayFactor   float64   `json:"decay_factor"` // step mode
	Milestones    []float64 `json:"milestones"`   // step mode, ascending fractions of [0,1]
	PolyPower     float64   `json:"poly_power"`   // poly mode
	LRDecay       float64   `json:"lr_decay"`     // decay mode
	StepsPerEpoch int       `json:"steps_per_epoch"` // decay mode, required there
	WarmUpFrom    float64   `json:"warm_up_from"`
	WarmUpSteps   int       `json:"warm_up_steps"`
}

// ExperimentConfig drives the outer run.
type ExperimentConfig struct {
	Mode      string `json:"mode"` // "experiment" or "tune"
	MaxEpochs int    `json:"max_epochs"`
}

// DataInfo describes a processed dataset. It is the explicit return value
// the data layer threads forward to model construction.
type DataInfo struct {
	DataShape []int `json:"data_shape"` // shape of the tensor fed to the model
	TSShape   []int `json:"ts_shape,omitempty"`
	FNCShape  []int `json:"fnc_shape,omitempty"`
	NClasses  int   `json:"n_classes"`
}

// NodeSize returns the node-axis length of the model input.
func (d DataInfo) NodeSize() int {
	if len(d.DataShape) < 2 {
		return 0
	}
	return d.DataShape[1]
}

// FeatureSize returns the feature-axis length of the model input.
func (d DataInfo) FeatureSize() int {
	if len(d.DataShape) < 3 {
		return 0
	}
	return d.DataShape[2]
}

// Default returns the configuration used by the reference experiments.
func Default() Config {
	return Config{
		Project: "brainnet",
		Seed:    42,
		Dataset: DatasetConfig{
			Name:        "synthetic",
			ZScore:      true,
			TuningSplit: 5,
			Subjects:    64,
			TimePoints:  120,
			Components:  36,
			Classes:     2,
		},
		Model: ModelConfig{
			Name:              "bnt",
			DataType:          "FNC",
			Sizes:             []int{360, 100},
			Pooling:           []bool{false, true},
			PosEncoding:       "none",
			Orthogonal:        true,
			FreezeCenter:      true,
			ProjectAssignment: true,
			PosEmbedDim:       360,
			HiddenSize:        1024,
			Optimizer:         OptimizerConfig{LR: 1e-4, WeightDecay: 1e-4},
			Scheduler: SchedulerConfig{
				Mode:        "cos",
				BaseLR:      1e-4,
				TargetLR:    1e-5,
				DecayFactor: 0.1,
				Milestones:  []float64{0.3, 0.6, 0.9},
				PolyPower:   2.0,
				LRDecay:     0.98,
				WarmUpFrom:  0.0,
				WarmUpSteps: 0,
			},
		},
		Exp: ExperimentConfig{Mode: "experiment", MaxEpochs: 200},
	}
}

// Load reads a JSON config file. Unknown fields are an error so that typos
// in hyperparameter names fail instead of silently falling back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "open config %q", path)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "decode config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the structural invariants of the tree. Mode-specific
// scheduler parameters are checked by the scheduler constructor, which owns
// the closed set of modes.
func (c Config) Validate() error {
	if c.Dataset.Name == "" {
		return errors.New("config: dataset.name is required")
	}
	if c.Dataset.TuningHoldout && c.Dataset.TuningSplit < 2 {
		return errors.Errorf("config: tuning_holdout requires tuning_split >= 2, got %d", c.Dataset.TuningSplit)
	}
	if c.Exp.MaxEpochs <= 0 {
		return errors.Errorf("config: exp.max_epochs must be positive, got %d", c.Exp.MaxEpochs)
	}
	return c.Model.Validate()
}

// Validate checks the model subtree.
func (m ModelConfig) Validate() error {
	if m.Name == "" {
		return errors.New("config: model.name is required")
	}
	if len(m.Sizes) == 0 {
		return errors.New("config: model.sizes must name at least one stage")
	}
	if len(m.Sizes) != len(m.Pooling) {
		return errors.Errorf("config: model.sizes and model.pooling disagree: %d vs %d",
			len(m.Sizes), len(m.Pooling))
	}
	for i, sz := range m.Sizes {
		if sz <= 0 {
			return errors.Errorf("config: model.sizes[%d] must be positive, got %d", i, sz)
		}
	}
	switch m.PosEncoding {
	case "", "none":
	case "identity":
		if m.PosEmbedDim <= 0 {
			return errors.Errorf("config: identity pos_encoding requires pos_embed_dim > 0, got %d", m.PosEmbedDim)
		}
	default:
		return errors.Errorf("config: unknown pos_encoding %q (want \"identity\" or \"none\")", m.PosEncoding)
	}
	if m.Optimizer.LR <= 0 {
		return errors.Errorf("config: optimizer.lr must be positive, got %g", m.Optimizer.LR)
	}
	if m.Scheduler.Mode == "" {
		return errors.New("config: scheduler.mode is required")
	}
	return nil
}
