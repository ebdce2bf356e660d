package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"brainnet/optim"
)

// ClusterAssignment maps feature vectors to soft cluster memberships over a
// learned (or frozen) set of cluster centers. Two similarity kernels are
// supported: a projection kernel (scores = squared projections onto each
// center, scaled by the center norm, softmaxed) and the classical Student's
// t-distribution kernel with alpha degrees of freedom.
type ClusterAssignment struct {
	clusters int
	dim      int
	alpha    float64
	project  bool
	centers  *optim.Parameter // [clusters, dim]
}

// NewClusterAssignment builds the assignment module. When initial is nil the
// centers are drawn from the Xavier uniform initializer. With orthogonal set,
// the centers are orthogonalized before use: center 0 is kept as-is, and each
// later center has its projection onto all earlier centers removed and is
// then unit-normalized, so centers 1..k-1 are pairwise orthonormal. Frozen
// centers (freezeCenter) never move during optimization.
func NewClusterAssignment(clusters, dim int, alpha float64, initial *mat.Dense, orthogonal, freezeCenter, projectAssignment bool) (*ClusterAssignment, error) {
	if clusters <= 0 {
		return nil, errors.Errorf("model: cluster count must be positive, got %d", clusters)
	}
	if dim <= 0 {
		return nil, errors.Errorf("model: embedding dimension must be positive, got %d", dim)
	}
	if alpha <= 0 {
		return nil, errors.Errorf("model: t-distribution alpha must be positive, got %g", alpha)
	}

	var centers *mat.Dense
	if initial == nil {
		centers = xavierDense(clusters, dim)
	} else {
		r, c := initial.Dims()
		if r != clusters || c != dim {
			return nil, errors.Errorf("model: supplied centers are [%d, %d], want [%d, %d]", r, c, clusters, dim)
		}
		centers = mat.DenseCopyOf(initial)
	}
	if orthogonal {
		centers = orthogonalize(centers)
	}

	return &ClusterAssignment{
		clusters: clusters,
		dim:      dim,
		alpha:    alpha,
		project:  projectAssignment,
		centers:  optim.NewParameter("cluster_centers", centers, !freezeCenter),
	}, nil
}

// orthogonalize runs Gram-Schmidt over the rows of centers. Row 0 is copied
// unchanged (and not normalized); each later row has its projections onto
// the already-orthogonalized earlier rows subtracted, then is scaled to unit
// L2 norm.
func orthogonalize(centers *mat.Dense) *mat.Dense {
	k, d := centers.Dims()
	work := mat.DenseCopyOf(centers)
	out := mat.NewDense(k, d, nil)
	out.SetRow(0, work.RawRowView(0))

	proj := make([]float64, d)
	for i := 1; i < k; i++ {
		vi := work.RawRowView(i)
		for c := range proj {
			proj[c] = 0
		}
		for j := 0; j < i; j++ {
			uj := work.RawRowView(j)
			coef := floats.Dot(uj, vi) / floats.Dot(uj, uj)
			floats.AddScaled(proj, coef, uj)
		}
		floats.Sub(vi, proj)
		norm := math.Sqrt(floats.Dot(vi, vi))
		outRow := out.RawRowView(i)
		for c, v := range vi {
			outRow[c] = v / norm
		}
	}
	return out
}

// Assign computes the soft assignment for a batch of feature vectors
// ([rows, dim]) and returns a [rows, clusters] matrix whose rows are
// non-negative and sum to 1.
func (ca *ClusterAssignment) Assign(batch *mat.Dense) *mat.Dense {
	if ca.project {
		return ca.assignProjected(batch)
	}
	return ca.assignStudentT(batch)
}

func (ca *ClusterAssignment) assignProjected(batch *mat.Dense) *mat.Dense {
	var raw mat.Dense
	raw.Mul(batch, ca.centers.Value.T())
	raw.MulElem(&raw, &raw)

	norms := make([]float64, ca.clusters)
	for k := 0; k < ca.clusters; k++ {
		row := ca.centers.Value.RawRowView(k)
		norms[k] = math.Sqrt(floats.Dot(row, row))
	}
	rows, _ := raw.Dims()
	for i := 0; i < rows; i++ {
		out := raw.RawRowView(i)
		for k := range out {
			out[k] /= norms[k]
		}
	}
	return softmaxRows(&raw)
}

func (ca *ClusterAssignment) assignStudentT(batch *mat.Dense) *mat.Dense {
	rows, _ := batch.Dims()
	out := mat.NewDense(rows, ca.clusters, nil)
	power := (ca.alpha + 1) / 2
	for i := 0; i < rows; i++ {
		x := batch.RawRowView(i)
		row := out.RawRowView(i)
		total := 0.0
		for k := 0; k < ca.clusters; k++ {
			center := ca.centers.Value.RawRowView(k)
			dist := 0.0
			for c, v := range x {
				diff := v - center[c]
				dist += diff * diff
			}
			num := math.Pow(1.0/(1.0+dist/ca.alpha), power)
			row[k] = num
			total += num
		}
		for k := range row {
			row[k] /= total
		}
	}
	return out
}

// Centers returns the [clusters, dim] cluster-center matrix.
func (ca *ClusterAssignment) Centers() *mat.Dense {
	return ca.centers.Value
}

// Parameters lists the center parameter (possibly frozen).
func (ca *ClusterAssignment) Parameters() []*optim.Parameter {
	return []*optim.Parameter{ca.centers}
}
