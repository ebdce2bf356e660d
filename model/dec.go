package model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"brainnet/optim"
)

// klFloor keeps log() out of zero territory in the clustering loss. The
// softmax and Student-t kernels produce strictly positive rows on paper, but
// underflow can drive entries to exact zero; clamping here trades bit-exact
// reproduction for a loss that is always finite.
const klFloor = 1e-12

// DEC holds the moving parts of the deep-embedded-clustering pooling stage:
// an encoder that re-embeds node features and a ClusterAssignment that turns
// the embedding into soft memberships. Pooling collapses the node axis onto
// the cluster axis, each output node being the membership-weighted mix of
// all input nodes.
type DEC struct {
	clusters   int
	dim        int
	encoder    *MLP
	assignment *ClusterAssignment
}

// NewDEC wires an encoder (any width-preserving transform over the flattened
// [nodes*dim] features) to a fresh ClusterAssignment.
func NewDEC(clusters, dim int, encoder *MLP, alpha float64, orthogonal, freezeCenter, projectAssignment bool) (*DEC, error) {
	assignment, err := NewClusterAssignment(clusters, dim, alpha, nil, orthogonal, freezeCenter, projectAssignment)
	if err != nil {
		return nil, err
	}
	return &DEC{clusters: clusters, dim: dim, encoder: encoder, assignment: assignment}, nil
}

// Forward pools each batch element from [nodes, dim] down to
// [clusters, dim] and returns the per-element [nodes, clusters] assignment
// matrices alongside.
func (d *DEC) Forward(batch []*mat.Dense) (pooled, assignments []*mat.Dense) {
	pooled = make([]*mat.Dense, len(batch))
	assignments = make([]*mat.Dense, len(batch))
	for b, x := range batch {
		n, dim := x.Dims()

		flat := mat.NewDense(1, n*dim, nil)
		row := flat.RawRowView(0)
		for i := 0; i < n; i++ {
			copy(row[i*dim:(i+1)*dim], x.RawRowView(i))
		}

		encodedFlat := d.encoder.Apply(flat)
		encoded := mat.NewDense(n, dim, append([]float64(nil), encodedFlat.RawRowView(0)...))

		assignment := d.assignment.Assign(encoded)

		var p mat.Dense
		p.Mul(assignment.T(), encoded)
		pooled[b] = &p
		assignments[b] = assignment
	}
	return pooled, assignments
}

// TargetDistribution sharpens a row-stochastic assignment matrix: entries
// are squared, reweighted by inverse cluster frequency (column sums), and
// row-normalized, so every output row is again a probability distribution.
// The result is a fresh matrix with no backward path; it is a detached
// training target.
func TargetDistribution(q *mat.Dense) *mat.Dense {
	rows, clusters := q.Dims()
	colSum := make([]float64, clusters)
	for i := 0; i < rows; i++ {
		row := q.RawRowView(i)
		for k, v := range row {
			colSum[k] += v
		}
	}
	p := mat.NewDense(rows, clusters, nil)
	for i := 0; i < rows; i++ {
		src := q.RawRowView(i)
		dst := p.RawRowView(i)
		total := 0.0
		for k, v := range src {
			dst[k] = v * v / colSum[k]
			total += dst[k]
		}
		for k := range dst {
			dst[k] /= total
		}
	}
	return p
}

// Loss computes the self-supervised clustering loss for the given per-batch
// assignment matrices: KL(target ‖ assignment), summed over entries and
// divided by the total row count. Assignments and targets are clamped to
// klFloor before the logs.
func (d *DEC) Loss(assignments []*mat.Dense) float64 {
	stacked := stackRows(assignments)
	target := TargetDistribution(stacked)

	rows, clusters := stacked.Dims()
	sum := 0.0
	for i := 0; i < rows; i++ {
		q := stacked.RawRowView(i)
		p := target.RawRowView(i)
		for k := 0; k < clusters; k++ {
			pv := math.Max(p[k], klFloor)
			qv := math.Max(q[k], klFloor)
			sum += pv * (math.Log(pv) - math.Log(qv))
		}
	}
	return sum / float64(rows)
}

// Centers returns the cluster-center matrix.
func (d *DEC) Centers() *mat.Dense {
	return d.assignment.Centers()
}

// Parameters lists the encoder and center weights.
func (d *DEC) Parameters() []*optim.Parameter {
	return append(d.encoder.Parameters(), d.assignment.Parameters()...)
}

// stackRows concatenates matrices with equal column counts along the row
// axis.
func stackRows(ms []*mat.Dense) *mat.Dense {
	total := 0
	cols := 0
	for _, m := range ms {
		r, c := m.Dims()
		total += r
		cols = c
	}
	out := mat.NewDense(total, cols, nil)
	at := 0
	for _, m := range ms {
		r, _ := m.Dims()
		for i := 0; i < r; i++ {
			out.SetRow(at, m.RawRowView(i))
			at++
		}
	}
	return out
}
