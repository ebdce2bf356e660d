package dataset

import (
	"math"
	"math/rand"
	"testing"

	"gorgonia.org/tensor"

	"brainnet"
)

func randomSeries(subjects, steps, comps int, seed int64) *tensor.Dense {
	r := rand.New(rand.NewSource(seed))
	data := make([]float64, subjects*steps*comps)
	for i := range data {
		data[i] = r.NormFloat64()*3 + 5
	}
	return tensor.New(tensor.WithShape(subjects, steps, comps), tensor.WithBacking(data))
}

func TestZScoreNormalizesOverTime(t *testing.T) {
	const subjects, steps, comps = 3, 50, 4
	z := ZScore(randomSeries(subjects, steps, comps, 1))
	data := z.Data().([]float64)

	for s := 0; s < subjects; s++ {
		for c := 0; c < comps; c++ {
			mean, sq := 0.0, 0.0
			for ts := 0; ts < steps; ts++ {
				v := data[(s*steps+ts)*comps+c]
				mean += v
				sq += v * v
			}
			mean /= steps
			variance := sq/steps - mean*mean
			if math.Abs(mean) > 1e-9 {
				t.Errorf("subject %d component %d: mean %g, want 0", s, c, mean)
			}
			if math.Abs(variance-1) > 1e-9 {
				t.Errorf("subject %d component %d: variance %g, want 1", s, c, variance)
			}
		}
	}
}

func TestPearsonIsSymmetricWithUnitDiagonal(t *testing.T) {
	const subjects, steps, comps = 2, 40, 5
	fnc := Pearson(randomSeries(subjects, steps, comps, 2))

	shape := fnc.Shape()
	if shape[0] != subjects || shape[1] != comps || shape[2] != comps {
		t.Fatalf("FNC shape %v, want [%d %d %d]", shape, subjects, comps, comps)
	}
	data := fnc.Data().([]float64)
	for s := 0; s < subjects; s++ {
		base := s * comps * comps
		for i := 0; i < comps; i++ {
			if math.Abs(data[base+i*comps+i]-1) > 1e-9 {
				t.Errorf("diagonal [%d,%d] = %g, want 1", s, i, data[base+i*comps+i])
			}
			for j := 0; j < comps; j++ {
				v := data[base+i*comps+j]
				if v < -1-1e-9 || v > 1+1e-9 {
					t.Errorf("correlation out of range: %g", v)
				}
				if math.Abs(v-data[base+j*comps+i]) > 1e-12 {
					t.Errorf("FNC not symmetric at [%d,%d]", i, j)
				}
			}
		}
	}
}

func TestCommonProcessorFNC(t *testing.T) {
	const subjects, steps, comps = 4, 30, 6
	labels := []int{0, 1, 0, 1}
	ts := randomSeries(subjects, steps, comps, 3)

	data, info, err := CommonProcessor(ts, labels, brainnet.DatasetConfig{ZScore: true}, "FNC")
	if err != nil {
		t.Fatal(err)
	}
	if data.FNC == nil || data.TS != nil {
		t.Fatal("FNC data type must produce only the FNC tensor")
	}
	wantShape := []int{subjects, comps, comps}
	for i, d := range info.DataShape {
		if d != wantShape[i] {
			t.Fatalf("data shape %v, want %v", info.DataShape, wantShape)
		}
	}
	if info.NClasses != 2 {
		t.Fatalf("n_classes = %d, want 2", info.NClasses)
	}
	if info.NodeSize() != comps || info.FeatureSize() != comps {
		t.Fatalf("node/feature sizes %d/%d, want %d/%d", info.NodeSize(), info.FeatureSize(), comps, comps)
	}
}

func TestCommonProcessorTriFNC(t *testing.T) {
	const subjects, steps, comps = 3, 30, 5
	labels := []int{0, 1, 0}
	data, info, err := CommonProcessor(randomSeries(subjects, steps, comps, 4), labels, brainnet.DatasetConfig{}, "tri-FNC")
	if err != nil {
		t.Fatal(err)
	}
	wantTri := comps * (comps + 1) / 2
	shape := data.FNC.Shape()
	if shape[0] != subjects || shape[1] != wantTri {
		t.Fatalf("triangle shape %v, want [%d %d]", shape, subjects, wantTri)
	}
	if info.DataShape[1] != wantTri {
		t.Fatalf("info shape %v, want triangle length %d", info.DataShape, wantTri)
	}
}

func TestCommonProcessorTSFNC(t *testing.T) {
	const subjects, steps, comps = 3, 20, 4
	labels := []int{0, 1, 0}
	data, info, err := CommonProcessor(randomSeries(subjects, steps, comps, 5), labels, brainnet.DatasetConfig{}, "TS-FNC")
	if err != nil {
		t.Fatal(err)
	}
	if data.TS == nil || data.FNC == nil {
		t.Fatal("TS-FNC must carry both tensors")
	}
	if len(info.TSShape) != 3 || len(info.FNCShape) != 3 {
		t.Fatalf("expected both shapes in info, got TS %v FNC %v", info.TSShape, info.FNCShape)
	}
}

func TestCommonProcessorRejectsUnknownType(t *testing.T) {
	labels := []int{0, 1}
	if _, _, err := CommonProcessor(randomSeries(2, 10, 3, 6), labels, brainnet.DatasetConfig{}, "graph"); err == nil {
		t.Fatal("expected error for unknown data type")
	}
}

func TestCommonProcessorRejectsLabelMismatch(t *testing.T) {
	if _, _, err := CommonProcessor(randomSeries(3, 10, 3, 7), []int{0, 1}, brainnet.DatasetConfig{}, "TS"); err == nil {
		t.Fatal("expected error for label/subject mismatch")
	}
}

func TestBatchExtractsSubjects(t *testing.T) {
	labels := []int{0, 1, 0, 1}
	data, _, err := CommonProcessor(randomSeries(4, 20, 5, 8), labels, brainnet.DatasetConfig{}, "FNC")
	if err != nil {
		t.Fatal(err)
	}
	batch, got, err := data.Batch([]int{1, 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch size %d, want 2", len(batch))
	}
	if got[0] != 1 || got[1] != 1 {
		t.Fatalf("labels %v, want [1 1]", got)
	}
	if r, c := batch[0].Dims(); r != 5 || c != 5 {
		t.Fatalf("batch matrix [%d, %d], want [5, 5]", r, c)
	}
}
