// Package geom provides the pure planar geometry used by camera
// calibration and position tracking: 2D vectors, line primitives, and
// the normalised-DLT homography solve between the video image plane and
// the court ground plane. Nothing in this package does I/O or holds
// mutable state.
package geom

import "math"

// Vec2 is a point or direction in a 2D plane. Units depend on context:
// pixels in image space, metres in world (court) space.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the Euclidean distance between v and o.
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Norm() }

// Cross returns the z component of the 2D cross product v × o.
func (v Vec2) Cross(o Vec2) float64 { return v.X*o.Y - v.Y*o.X }

// Dot returns the dot product v · o.
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// Segment is a finite line segment between two endpoints.
type Segment struct {
	A Vec2 `json:"a"`
	B Vec2 `json:"b"`
}

// Dir returns the (unnormalised) direction vector of the segment.
func (s Segment) Dir() Vec2 { return s.B.Sub(s.A) }

// Len returns the segment length.
func (s Segment) Len() float64 { return s.Dir().Norm() }

// parallelSinTolerance is the |sin(angle)| below which two directions
// are treated as parallel for degeneracy checks.
const parallelSinTolerance = 1e-3

// Parallel reports whether the two segments are (numerically) parallel.
// Zero-length segments are considered parallel to everything.
func Parallel(a, b Segment) bool {
	da, db := a.Dir(), b.Dir()
	na, nb := da.Norm(), db.Norm()
	if na == 0 || nb == 0 {
		return true
	}
	sin := math.Abs(da.Cross(db)) / (na * nb)
	return sin < parallelSinTolerance
}

// LineIntersection returns the intersection point of the two infinite
// lines through the given segments. The second return is false when the
// lines are parallel (or a segment is degenerate) and no unique
// intersection exists.
func LineIntersection(a, b Segment) (Vec2, bool) {
	da, db := a.Dir(), b.Dir()
	den := da.Cross(db)
	if math.Abs(den) < 1e-12 {
		return Vec2{}, false
	}
	t := b.A.Sub(a.A).Cross(db) / den
	return a.A.Add(da.Scale(t)), true
}

// Collinear reports whether all points lie on a single line, within a
// relative tolerance. Fewer than three points are trivially collinear.
func Collinear(points []Vec2, tol float64) bool {
	if len(points) < 3 {
		return true
	}
	// Pick the most distant point pair as the baseline to avoid a
	// near-degenerate reference direction.
	var ai, bi int
	var best float64
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if d := points[i].Dist(points[j]); d > best {
				best, ai, bi = d, i, j
			}
		}
	}
	if best == 0 {
		return true
	}
	dir := points[bi].Sub(points[ai]).Scale(1 / best)
	for _, p := range points {
		off := math.Abs(dir.Cross(p.Sub(points[ai])))
		if off > tol*best {
			return false
		}
	}
	return true
}
