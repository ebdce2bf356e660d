package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CrossEntropySum computes the cross-entropy between logits ([batch,
// classes]) and integer labels, summed over the batch (no averaging; the
// training loop owns any normalization).
func CrossEntropySum(logits *mat.Dense, labels []int) float64 {
	rows, _ := logits.Dims()
	total := 0.0
	for i := 0; i < rows; i++ {
		row := logits.RawRowView(i)
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		sumExp := 0.0
		for _, v := range row {
			sumExp += math.Exp(v - max)
		}
		total += max + math.Log(sumExp) - row[labels[i]]
	}
	return total
}
