// Package schedule implements the per-step learning-rate state machine that
// drives training dynamics: a linear warm-up phase followed by one of five
// steady-state schedules.
package schedule

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"

	"brainnet"
	"brainnet/optim"
)

// Mode is the closed set of steady-state schedules.
type Mode int

const (
	// ModeStep multiplies the base rate by a decay factor once per crossed
	// milestone.
	ModeStep Mode = iota
	// ModePoly interpolates from base to target along (1-ratio)^power.
	ModePoly
	// ModeCos interpolates from base to target along a half cosine.
	ModeCos
	// ModeLinear interpolates from base to target linearly.
	ModeLinear
	// ModeDecay multiplies the base rate by lr_decay once per epoch.
	ModeDecay
)

// ParseMode maps a config string to a Mode. Unrecognized strings are an
// error; there is no default mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "step":
		return ModeStep, nil
	case "poly":
		return ModePoly, nil
	case "cos":
		return ModeCos, nil
	case "linear":
		return ModeLinear, nil
	case "decay":
		return ModeDecay, nil
	}
	return 0, errors.Errorf("schedule: unknown mode %q (want step, poly, cos, linear or decay)", s)
}

func (m Mode) String() string {
	switch m {
	case ModeStep:
		return "step"
	case ModePoly:
		return "poly"
	case ModeCos:
		return "cos"
	case ModeLinear:
		return "linear"
	case ModeDecay:
		return "decay"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Optimizer is the bound optimizer's surface: parameter groups whose LR
// field the scheduler overwrites each step.
type Optimizer interface {
	Groups() []*optim.Group
}

// LRScheduler computes the learning rate for each training step and writes
// it into every parameter group of the bound optimizer. Exactly one Step
// call per training iteration; the step counter only ever advances.
type LRScheduler struct {
	opt Optimizer

	mode        Mode
	baseLR      float64
	targetLR    float64
	warmUpFrom  float64
	warmUpSteps int
	totalSteps  int

	milestones    []float64 // step mode
	decayFactor   float64   // step mode
	polyPower     float64   // poly mode
	lrDecay       float64   // decay mode
	stepsPerEpoch int       // decay mode

	currentStep int
	lr          float64
}

// New validates the config against the chosen mode and binds the scheduler
// to opt. totalSteps is the run length the ratios are computed against
// (the caller's max epoch count in the reference setup).
func New(cfg brainnet.SchedulerConfig, totalSteps int, opt Optimizer) (*LRScheduler, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	if opt == nil {
		return nil, errors.New("schedule: optimizer is required")
	}
	if cfg.BaseLR <= 0 {
		return nil, errors.Errorf("schedule: base_lr must be positive, got %g", cfg.BaseLR)
	}
	if cfg.WarmUpSteps < 0 {
		return nil, errors.Errorf("schedule: warm_up_steps must be non-negative, got %d", cfg.WarmUpSteps)
	}
	if totalSteps <= cfg.WarmUpSteps {
		return nil, errors.Errorf("schedule: total steps (%d) must exceed warm_up_steps (%d)", totalSteps, cfg.WarmUpSteps)
	}
	switch mode {
	case ModeStep:
		if !sort.Float64sAreSorted(cfg.Milestones) {
			return nil, errors.Errorf("schedule: step milestones must ascend, got %v", cfg.Milestones)
		}
	case ModeDecay:
		// steps_per_epoch is only meaningful here and is required here.
		if cfg.StepsPerEpoch < 1 {
			return nil, errors.Errorf("schedule: decay mode requires steps_per_epoch >= 1, got %d", cfg.StepsPerEpoch)
		}
	}

	return &LRScheduler{
		opt:           opt,
		mode:          mode,
		baseLR:        cfg.BaseLR,
		targetLR:      cfg.TargetLR,
		warmUpFrom:    cfg.WarmUpFrom,
		warmUpSteps:   cfg.WarmUpSteps,
		totalSteps:    totalSteps,
		milestones:    append([]float64(nil), cfg.Milestones...),
		decayFactor:   cfg.DecayFactor,
		polyPower:     cfg.PolyPower,
		lrDecay:       cfg.LRDecay,
		stepsPerEpoch: cfg.StepsPerEpoch,
	}, nil
}

// Step computes the rate for the current step, writes it into every
// parameter group, and advances the counter. The metric argument exists for
// signature parity with metric-driven schedulers and is unused by the five
// modes here. Calling Step after the counter has passed totalSteps breaks
// the scheduler's invariant and panics.
func (s *LRScheduler) Step(metric float64) {
	_ = metric
	if s.currentStep < 0 || s.currentStep > s.totalSteps {
		panic(fmt.Sprintf("schedule: step counter %d outside [0, %d]", s.currentStep, s.totalSteps))
	}

	if s.currentStep < s.warmUpSteps {
		ratio := float64(s.currentStep) / float64(s.warmUpSteps)
		s.lr = s.warmUpFrom + (s.baseLR-s.warmUpFrom)*ratio
	} else {
		ratio := float64(s.currentStep-s.warmUpSteps) / float64(s.totalSteps-s.warmUpSteps)
		switch s.mode {
		case ModeStep:
			count := sort.SearchFloat64s(s.milestones, ratio)
			s.lr = s.baseLR * math.Pow(s.decayFactor, float64(count))
		case ModePoly:
			s.lr = s.targetLR + (s.baseLR-s.targetLR)*math.Pow(1-ratio, s.polyPower)
		case ModeCos:
			s.lr = s.targetLR + (s.baseLR-s.targetLR)*(1+math.Cos(math.Pi*ratio))/2
		case ModeLinear:
			s.lr = s.targetLR + (s.baseLR-s.targetLR)*(1-ratio)
		case ModeDecay:
			epoch := s.currentStep / s.stepsPerEpoch
			s.lr = s.baseLR * math.Pow(s.lrDecay, float64(epoch))
		}
	}

	for _, g := range s.opt.Groups() {
		g.LR = s.lr
	}
	s.currentStep++
}

// LR returns the most recently computed learning rate.
func (s *LRScheduler) LR() float64 {
	return s.lr
}

// CurrentStep returns the number of completed Step calls.
func (s *LRScheduler) CurrentStep() int {
	return s.currentStep
}

// Mode returns the steady-state schedule variant.
func (s *LRScheduler) Mode() Mode {
	return s.mode
}
