// Package heatmap maintains the occupancy grid over the court
// footprint. Each accepted world position deposits weight into its
// containing cell and nearby neighbours with a Gaussian falloff, so a
// single sample represents a stance footprint rather than one sparse
// cell. Accumulation saturates per cell; it never grows without bound.
package heatmap

import (
	"math"
	"sync"

	"github.com/coenhallie/video-annotation-sub003/internal/config"
	"github.com/coenhallie/video-annotation-sub003/internal/court"
	"github.com/coenhallie/video-annotation-sub003/internal/geom"
	"github.com/coenhallie/video-annotation-sub003/internal/track"
)

// kernelTap is one precomputed neighbour offset with its Gaussian
// weight relative to the deposit centre cell.
type kernelTap struct {
	dx, dy int
	w      float64
}

// Accumulator owns the occupancy grid for one tracking session. All
// methods are safe for concurrent use, though the pipeline writes from
// a single goroutine.
type Accumulator struct {
	mu sync.RWMutex

	cellsX, cellsY int
	cellSizeMeters float64
	maxCellWeight  float64
	weights        []float64
	kernel         []kernelTap
	samples        int
}

// NewAccumulator sizes a grid over the court footprint from the
// configured resolution.
func NewAccumulator(model *court.Model, cfg *config.TuningConfig) *Accumulator {
	cpm := cfg.GetCellsPerMeter()
	a := &Accumulator{
		cellsX:         int(math.Ceil(model.LengthMeters * cpm)),
		cellsY:         int(math.Ceil(model.WidthMeters * cpm)),
		cellSizeMeters: 1 / cpm,
		maxCellWeight:  cfg.GetMaxCellWeight(),
		kernel:         buildKernel(cfg.GetKernelRadiusCells(), cfg.GetKernelSigmaCells()),
	}
	a.weights = make([]float64, a.cellsX*a.cellsY)
	return a
}

// buildKernel precomputes the Gaussian deposit taps for the configured
// radius. The centre tap always has weight 1.
func buildKernel(radius int, sigma float64) []kernelTap {
	taps := make([]kernelTap, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			taps = append(taps, kernelTap{dx: dx, dy: dy, w: math.Exp(-d2 / (2 * sigma * sigma))})
		}
	}
	return taps
}

// Dimensions returns the grid size in cells.
func (a *Accumulator) Dimensions() (cellsX, cellsY int) {
	return a.cellsX, a.cellsY
}

// CellSizeMeters returns the edge length of one cell.
func (a *Accumulator) CellSizeMeters() float64 { return a.cellSizeMeters }

// cellIndex maps a world point to grid coordinates. The boolean is
// false when the point falls outside the footprint.
func (a *Accumulator) cellIndex(p geom.Vec2) (int, int, bool) {
	cx := int(math.Floor(p.X / a.cellSizeMeters))
	cy := int(math.Floor(p.Y / a.cellSizeMeters))
	if cx < 0 || cx >= a.cellsX || cy < 0 || cy >= a.cellsY {
		return 0, 0, false
	}
	return cx, cy, true
}

// Accumulate deposits weight for one tracked position. Invalid
// positions are ignored entirely; positions whose centre cell lies
// outside the footprint (possible within the tracker's bounds margin)
// are also skipped.
func (a *Accumulator) Accumulate(pos track.WorldPosition) {
	if !pos.Valid {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cx, cy, ok := a.cellIndex(geom.Vec2{X: pos.X, Y: pos.Y})
	if !ok {
		return
	}
	for _, tap := range a.kernel {
		x, y := cx+tap.dx, cy+tap.dy
		if x < 0 || x >= a.cellsX || y < 0 || y >= a.cellsY {
			continue
		}
		i := y*a.cellsX + x
		w := a.weights[i] + tap.w
		if w > a.maxCellWeight {
			w = a.maxCellWeight
		}
		a.weights[i] = w
	}
	a.samples++
}

// Decay scales every cell by factor in (0,1]; callers drive the decay
// cadence (for example once per second of video time).
func (a *Accumulator) Decay(factor float64) {
	if factor <= 0 || factor > 1 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.weights {
		a.weights[i] *= factor
	}
}

// Reset zeroes the grid, for a new tracking session or a resolution
// change.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.weights {
		a.weights[i] = 0
	}
	a.samples = 0
}

// QueryWorld returns the accumulated weight of the cell containing the
// world point, or 0 when the point is off the footprint.
func (a *Accumulator) QueryWorld(p geom.Vec2) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cx, cy, ok := a.cellIndex(p)
	if !ok {
		return 0
	}
	return a.weights[cy*a.cellsX+cx]
}

// QueryCell returns the weight of the cell at grid coordinates, or 0
// when out of range.
func (a *Accumulator) QueryCell(cx, cy int) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if cx < 0 || cx >= a.cellsX || cy < 0 || cy >= a.cellsY {
		return 0
	}
	return a.weights[cy*a.cellsX+cx]
}

// MostVisitedCell returns the grid coordinates and weight of the
// heaviest cell. The boolean is false when the grid is empty (all
// zero).
func (a *Accumulator) MostVisitedCell() (cx, cy int, weight float64, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	best := -1
	for i, w := range a.weights {
		if w > weight {
			weight = w
			best = i
		}
	}
	if best < 0 {
		return 0, 0, 0, false
	}
	return best % a.cellsX, best / a.cellsX, weight, true
}

// CellCenter returns the world-space centre of a grid cell.
func (a *Accumulator) CellCenter(cx, cy int) geom.Vec2 {
	return geom.Vec2{
		X: (float64(cx) + 0.5) * a.cellSizeMeters,
		Y: (float64(cy) + 0.5) * a.cellSizeMeters,
	}
}
