package model

import (
	"math"
	"testing"
)

func TestSelfAttentionShapes(t *testing.T) {
	const nodes, dim = 6, 8
	sa := NewSelfAttention("sa", dim, 4)
	out, weights := sa.Apply(xavierDense(nodes, dim))

	if r, c := out.Dims(); r != nodes || c != dim {
		t.Errorf("output is [%d, %d], want [%d, %d]", r, c, nodes, dim)
	}
	if r, c := weights.Dims(); r != nodes || c != nodes {
		t.Errorf("weights are [%d, %d], want [%d, %d]", r, c, nodes, nodes)
	}
	// Head-averaged attention rows are still probability distributions.
	checkRowStochastic(t, weights)
}

func TestEncoderLayerKeepsShapeAndRecordsWeights(t *testing.T) {
	const batchSize, nodes, dim = 3, 6, 8
	layer := NewEncoderLayer("enc", dim, 4, 16)

	out := layer.Apply(randomBatch(batchSize, nodes, dim))
	if len(out) != batchSize {
		t.Fatalf("got %d outputs, want %d", len(out), batchSize)
	}
	for i, m := range out {
		if r, c := m.Dims(); r != nodes || c != dim {
			t.Errorf("out[%d] is [%d, %d], want [%d, %d]", i, r, c, nodes, dim)
		}
	}
	if got := len(layer.AttentionWeights()); got != batchSize {
		t.Fatalf("recorded %d weight matrices, want %d", got, batchSize)
	}

	// A second forward overwrites, not accumulates.
	layer.Apply(randomBatch(2, nodes, dim))
	if got := len(layer.AttentionWeights()); got != 2 {
		t.Fatalf("after second forward recorded %d weight matrices, want 2", got)
	}
}

func TestLayerNormCentersRows(t *testing.T) {
	ln := newLayerNorm("ln", 8)
	x := xavierDense(5, 8)
	y := ln.apply(x)
	rows, cols := y.Dims()
	for i := 0; i < rows; i++ {
		mean := 0.0
		for j := 0; j < cols; j++ {
			mean += y.At(i, j)
		}
		mean /= float64(cols)
		if math.Abs(mean) > 1e-8 {
			t.Errorf("row %d mean %g, want 0", i, mean)
		}
	}
}
