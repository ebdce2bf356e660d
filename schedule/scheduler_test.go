package schedule

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"brainnet"
	"brainnet/optim"
)

func newTestOptimizer(t *testing.T, groups int) *optim.Adam {
	t.Helper()
	gs := make([]*optim.Group, groups)
	for i := range gs {
		gs[i] = &optim.Group{
			Params: []*optim.Parameter{
				optim.NewParameter("w", mat.NewDense(2, 2, nil), true),
			},
			LR: 1e-4,
		}
	}
	opt, err := optim.NewAdam(gs...)
	if err != nil {
		t.Fatal(err)
	}
	return opt
}

func cosConfig() brainnet.SchedulerConfig {
	return brainnet.SchedulerConfig{
		Mode:     "cos",
		BaseLR:   1e-4,
		TargetLR: 1e-5,
	}
}

// runTo advances the scheduler until the rate for step wanted has been
// computed, and returns it.
func runTo(s *LRScheduler, step int) float64 {
	for s.CurrentStep() <= step {
		s.Step(0)
	}
	return s.LR()
}

func TestCosScheduleEndpoints(t *testing.T) {
	opt := newTestOptimizer(t, 1)
	s, err := New(cosConfig(), 100, opt)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		step int
		want float64
	}{
		{0, 1e-4},    // ratio 0: full base rate
		{50, 5.5e-5}, // ratio 0.5: midpoint of base and target
		{100, 1e-5},  // ratio 1: target rate
	}
	for _, c := range cases {
		got := runTo(s, c.step)
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("step %d: lr = %g, want %g", c.step, got, c.want)
		}
	}
}

func TestStepScheduleMilestones(t *testing.T) {
	opt := newTestOptimizer(t, 1)
	s, err := New(brainnet.SchedulerConfig{
		Mode:        "step",
		BaseLR:      1e-4,
		DecayFactor: 0.1,
		Milestones:  []float64{0.3, 0.6, 0.9},
	}, 100, opt)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		step int
		want float64
	}{
		{20, 1e-4}, // ratio 0.2, no milestone crossed
		{40, 1e-5}, // ratio 0.4, one milestone crossed
		{95, 1e-7}, // ratio 0.95, all three crossed
	}
	for _, c := range cases {
		got := runTo(s, c.step)
		if math.Abs(got-c.want) > 1e-15 {
			t.Errorf("step %d: lr = %g, want %g", c.step, got, c.want)
		}
	}
}

func TestLinearAndPolySchedules(t *testing.T) {
	opt := newTestOptimizer(t, 1)
	cfg := cosConfig()
	cfg.Mode = "linear"
	s, err := New(cfg, 100, opt)
	if err != nil {
		t.Fatal(err)
	}
	if got := runTo(s, 50); math.Abs(got-5.5e-5) > 1e-12 {
		t.Errorf("linear at ratio 0.5: lr = %g, want 5.5e-5", got)
	}

	opt = newTestOptimizer(t, 1)
	cfg.Mode = "poly"
	cfg.PolyPower = 2.0
	s, err = New(cfg, 100, opt)
	if err != nil {
		t.Fatal(err)
	}
	// target + (base-target) * 0.5^2
	want := 1e-5 + 9e-5*0.25
	if got := runTo(s, 50); math.Abs(got-want) > 1e-12 {
		t.Errorf("poly at ratio 0.5: lr = %g, want %g", got, want)
	}
}

func TestWarmUpInterpolation(t *testing.T) {
	opt := newTestOptimizer(t, 1)
	cfg := cosConfig()
	cfg.WarmUpFrom = 0
	cfg.WarmUpSteps = 10
	s, err := New(cfg, 20, opt)
	if err != nil {
		t.Fatal(err)
	}
	if got := runTo(s, 0); got != 0 {
		t.Errorf("warm-up start: lr = %g, want 0", got)
	}
	if got := runTo(s, 5); math.Abs(got-5e-5) > 1e-12 {
		t.Errorf("warm-up midpoint: lr = %g, want 5e-5", got)
	}
}

func TestDecayScheduleEpochs(t *testing.T) {
	opt := newTestOptimizer(t, 1)
	s, err := New(brainnet.SchedulerConfig{
		Mode:          "decay",
		BaseLR:        1e-4,
		LRDecay:       0.5,
		StepsPerEpoch: 10,
	}, 100, opt)
	if err != nil {
		t.Fatal(err)
	}
	if got := runTo(s, 9); math.Abs(got-1e-4) > 1e-15 {
		t.Errorf("epoch 0: lr = %g, want 1e-4", got)
	}
	if got := runTo(s, 10); math.Abs(got-5e-5) > 1e-15 {
		t.Errorf("epoch 1: lr = %g, want 5e-5", got)
	}
}

func TestDecayRequiresStepsPerEpoch(t *testing.T) {
	opt := newTestOptimizer(t, 1)
	if _, err := New(brainnet.SchedulerConfig{
		Mode:    "decay",
		BaseLR:  1e-4,
		LRDecay: 0.5,
	}, 100, opt); err == nil {
		t.Fatal("expected error for decay mode without steps_per_epoch")
	}
}

func TestUnknownModeRejected(t *testing.T) {
	opt := newTestOptimizer(t, 1)
	if _, err := New(brainnet.SchedulerConfig{Mode: "plateau", BaseLR: 1e-4}, 100, opt); err == nil {
		t.Fatal("expected error for unknown schedule mode")
	}
	if _, err := ParseMode(""); err == nil {
		t.Fatal("expected error for empty mode")
	}
}

func TestUnsortedMilestonesRejected(t *testing.T) {
	opt := newTestOptimizer(t, 1)
	if _, err := New(brainnet.SchedulerConfig{
		Mode:       "step",
		BaseLR:     1e-4,
		Milestones: []float64{0.6, 0.3},
	}, 100, opt); err == nil {
		t.Fatal("expected error for descending milestones")
	}
}

func TestStepWritesEveryGroup(t *testing.T) {
	opt := newTestOptimizer(t, 3)
	s, err := New(cosConfig(), 100, opt)
	if err != nil {
		t.Fatal(err)
	}
	s.Step(0)
	for i, g := range opt.Groups() {
		if g.LR != s.LR() {
			t.Errorf("group %d has lr %g, want %g", i, g.LR, s.LR())
		}
	}
}

func TestStepCounterAdvancesOncePerCall(t *testing.T) {
	opt := newTestOptimizer(t, 1)
	s, err := New(cosConfig(), 100, opt)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if s.CurrentStep() != i {
			t.Fatalf("before call %d counter is %d", i, s.CurrentStep())
		}
		s.Step(0)
	}
}

func TestStepPastTotalPanics(t *testing.T) {
	opt := newTestOptimizer(t, 1)
	s, err := New(cosConfig(), 2, opt)
	if err != nil {
		t.Fatal(err)
	}
	// Steps 0, 1 and 2 are inside the invariant.
	s.Step(0)
	s.Step(0)
	s.Step(0)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when stepping past total_steps")
		}
	}()
	s.Step(0)
}
