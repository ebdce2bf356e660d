package model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCrossEntropySumUniformLogits(t *testing.T) {
	// Equal logits: every row contributes log(classes).
	const batchSize, classes = 4, 3
	logits := mat.NewDense(batchSize, classes, nil)
	labels := []int{0, 1, 2, 0}

	got := CrossEntropySum(logits, labels)
	want := float64(batchSize) * math.Log(classes)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %g, want %g", got, want)
	}
}

func TestCrossEntropySumPrefersCorrectClass(t *testing.T) {
	logits := mat.NewDense(1, 2, []float64{5, -5})
	right := CrossEntropySum(logits, []int{0})
	wrong := CrossEntropySum(logits, []int{1})
	if right >= wrong {
		t.Fatalf("confident correct prediction should have lower loss: %g vs %g", right, wrong)
	}
	if right < 0 {
		t.Fatalf("cross entropy cannot be negative, got %g", right)
	}
}
