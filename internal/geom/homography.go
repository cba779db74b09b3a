package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// PointPair is one correspondence between an image-space point (pixels)
// and the matching world-space point (court metres).
type PointPair struct {
	Image Vec2
	World Vec2
}

// MinPointPairs is the minimum number of point correspondences required
// for a planar homography solve (8 constraints for 8 degrees of
// freedom). Line correspondences contribute two pairs each.
const MinPointPairs = 4

// rankRatioThreshold is the minimum allowed ratio between the smallest
// retained singular value and the largest. Below it the DLT system is
// rank-deficient and the solve is rejected.
const rankRatioThreshold = 1e-6

// collinearTolerance is the relative offset tolerance used when checking
// whether an input point set is collinear.
const collinearTolerance = 1e-6

// Homography is a planar projective mapping from image pixels to world
// metres, together with its precomputed inverse. Values are row-major
// 3x3. A Homography is immutable after construction.
type Homography struct {
	fwd [9]float64
	inv [9]float64
}

// SolveHomography estimates the image→world homography from point
// correspondences using the normalised direct linear transform: both
// point sets are translated to centroid zero and scaled to average
// distance √2, the 2N×9 system is solved by SVD, and the result is
// denormalised. Returns a DegenerateInputError when the input cannot
// support a unique solution.
func SolveHomography(pairs []PointPair) (*Homography, error) {
	if len(pairs) < MinPointPairs {
		return nil, degenerate("need at least %d point pairs, got %d", MinPointPairs, len(pairs))
	}

	img := make([]Vec2, len(pairs))
	wld := make([]Vec2, len(pairs))
	for i, p := range pairs {
		img[i] = p.Image
		wld[i] = p.World
	}
	if Collinear(img, collinearTolerance) {
		return nil, degenerate("image points are collinear")
	}
	if Collinear(wld, collinearTolerance) {
		return nil, degenerate("world points are collinear")
	}

	imgN, ti, err := normalise(img)
	if err != nil {
		return nil, err
	}
	wldN, tw, err := normalise(wld)
	if err != nil {
		return nil, err
	}

	// Assemble the 2N×9 DLT system A·h = 0 in normalised coordinates.
	a := mat.NewDense(2*len(pairs), 9, nil)
	for i := range pairs {
		x, y := imgN[i].X, imgN[i].Y
		u, v := wldN[i].X, wldN[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y, -u})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y, -v})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, degenerate("SVD factorisation failed")
	}
	vals := svd.Values(nil)
	// Rank 8 is required for a unique (up to scale) solution. vals is
	// sorted in descending order and has min(2N, 9) entries.
	if vals[0] == 0 || vals[7]/vals[0] < rankRatioThreshold {
		return nil, degenerate("linear system is rank deficient (singular value ratio %.2e)", safeRatio(vals[7], vals[0]))
	}

	var v mat.Dense
	svd.VTo(&v)
	// The null-space direction is the right singular vector matching the
	// smallest singular value: the last column of the full V.
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hn.Set(i, j, v.At(3*i+j, 8))
		}
	}

	// Denormalise: H = Tw⁻¹ · Hn · Ti.
	var twInv mat.Dense
	if err := twInv.Inverse(tw); err != nil {
		return nil, degenerate("world normalisation transform is singular")
	}
	var h mat.Dense
	h.Product(&twInv, hn, ti)

	return newHomography(&h)
}

func safeRatio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// normalise translates points to centroid zero and scales so the average
// distance from the origin is √2. Returns the transformed points and the
// 3x3 similarity transform applied.
func normalise(points []Vec2) ([]Vec2, *mat.Dense, error) {
	var cx, cy float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(points))
	cx /= n
	cy /= n

	var avg float64
	for _, p := range points {
		avg += math.Hypot(p.X-cx, p.Y-cy)
	}
	avg /= n
	if avg == 0 {
		return nil, nil, degenerate("all points coincide")
	}
	s := math.Sqrt2 / avg

	out := make([]Vec2, len(points))
	for i, p := range points {
		out[i] = Vec2{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	return out, t, nil
}

func newHomography(h *mat.Dense) (*Homography, error) {
	// Fix the projective scale so the bottom-right entry is 1 when it is
	// numerically meaningful; otherwise keep the SVD scale.
	scale := h.At(2, 2)
	if math.Abs(scale) > 1e-12 {
		h.Scale(1/scale, h)
	}

	var inv mat.Dense
	if err := inv.Inverse(h); err != nil {
		return nil, degenerate("solved homography is not invertible")
	}

	out := &Homography{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.fwd[3*i+j] = h.At(i, j)
			out.inv[3*i+j] = inv.At(i, j)
		}
	}
	return out, nil
}

// apply maps p through a row-major 3x3 projective matrix.
func apply(m *[9]float64, p Vec2) Vec2 {
	w := m[6]*p.X + m[7]*p.Y + m[8]
	if w == 0 {
		// Point at infinity in the target plane; callers treat the
		// result as out of bounds rather than a hard failure.
		return Vec2{X: math.Inf(1), Y: math.Inf(1)}
	}
	return Vec2{
		X: (m[0]*p.X + m[1]*p.Y + m[2]) / w,
		Y: (m[3]*p.X + m[4]*p.Y + m[5]) / w,
	}
}

// Project maps an image-space point (pixels) into world space (metres).
func (h *Homography) Project(image Vec2) Vec2 { return apply(&h.fwd, image) }

// Unproject maps a world-space point (metres) back into image space
// (pixels). It is the exact inverse of Project up to floating point
// error.
func (h *Homography) Unproject(world Vec2) Vec2 { return apply(&h.inv, world) }

// Matrix returns the row-major forward (image→world) matrix. Useful for
// persistence and debugging; mutating the returned array has no effect
// on the Homography.
func (h *Homography) Matrix() [9]float64 { return h.fwd }

// ReprojectionError returns the mean Euclidean distance, in world
// metres, between each pair's projected image point and its known world
// point. Zero (to floating point tolerance) for a noise-free solve.
func ReprojectionError(h *Homography, pairs []PointPair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pairs {
		sum += h.Project(p.Image).Dist(p.World)
	}
	return sum / float64(len(pairs))
}
