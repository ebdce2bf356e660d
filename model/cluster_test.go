package model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const tol = 1e-5

func checkRowStochastic(t *testing.T, m *mat.Dense) {
	t.Helper()
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if v < 0 {
				t.Fatalf("row %d has negative entry %g", i, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > tol {
			t.Fatalf("row %d sums to %g, want 1", i, sum)
		}
	}
}

func TestAssignProjectedRowsSumToOne(t *testing.T) {
	ca, err := NewClusterAssignment(6, 16, 1.0, nil, true, false, true)
	if err != nil {
		t.Fatal(err)
	}
	batch := xavierDense(40, 16)
	checkRowStochastic(t, ca.Assign(batch))
}

func TestAssignStudentTRowsSumToOne(t *testing.T) {
	ca, err := NewClusterAssignment(6, 16, 1.0, nil, false, false, false)
	if err != nil {
		t.Fatal(err)
	}
	batch := xavierDense(40, 16)
	checkRowStochastic(t, ca.Assign(batch))
}

func TestOrthogonalizedCenters(t *testing.T) {
	ca, err := NewClusterAssignment(5, 12, 1.0, nil, true, false, true)
	if err != nil {
		t.Fatal(err)
	}
	centers := ca.Centers()
	k, _ := centers.Dims()

	for i := 1; i < k; i++ {
		row := centers.RawRowView(i)
		norm := math.Sqrt(floats.Dot(row, row))
		if math.Abs(norm-1) > tol {
			t.Errorf("center %d has norm %g, want 1", i, norm)
		}
		for j := 1; j < i; j++ {
			dot := floats.Dot(row, centers.RawRowView(j))
			if math.Abs(dot) > tol {
				t.Errorf("centers %d and %d have dot product %g, want 0", i, j, dot)
			}
		}
	}
}

func TestOrthogonalizationKeepsFirstCenter(t *testing.T) {
	initial := mat.NewDense(3, 4, []float64{
		2, 0, 0, 0,
		1, 1, 0, 0,
		1, 1, 1, 0,
	})
	ca, err := NewClusterAssignment(3, 4, 1.0, initial, true, false, true)
	if err != nil {
		t.Fatal(err)
	}
	first := ca.Centers().RawRowView(0)
	want := []float64{2, 0, 0, 0}
	for i, v := range first {
		if math.Abs(v-want[i]) > tol {
			t.Fatalf("center 0 changed: got %v, want %v", first, want)
		}
	}
}

func TestFrozenCentersAreNotTrainable(t *testing.T) {
	frozen, err := NewClusterAssignment(4, 8, 1.0, nil, true, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if frozen.Parameters()[0].RequiresGrad {
		t.Error("frozen centers must not require gradients")
	}

	free, err := NewClusterAssignment(4, 8, 1.0, nil, true, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if !free.Parameters()[0].RequiresGrad {
		t.Error("unfrozen centers must require gradients")
	}
}

func TestSuppliedCentersShapeMismatch(t *testing.T) {
	if _, err := NewClusterAssignment(4, 8, 1.0, mat.NewDense(3, 8, nil), false, false, true); err == nil {
		t.Fatal("expected error for mismatched center shape")
	}
}

func TestClusterAssignmentValidation(t *testing.T) {
	if _, err := NewClusterAssignment(0, 8, 1.0, nil, false, false, true); err == nil {
		t.Error("expected error for zero clusters")
	}
	if _, err := NewClusterAssignment(4, 8, 0, nil, false, false, false); err == nil {
		t.Error("expected error for non-positive alpha")
	}
}
