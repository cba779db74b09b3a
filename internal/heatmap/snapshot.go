package heatmap

import "sort"

// Snapshot is a copy of the occupancy grid for consumers (rendering,
// export). Weights are row-major, row 0 at the near baseline.
// Normalisation values are computed at read time; the grid itself never
// stores normalised state.
type Snapshot struct {
	CellsX         int       `json:"cells_x"`
	CellsY         int       `json:"cells_y"`
	CellSizeMeters float64   `json:"cell_size_meters"`
	Weights        []float64 `json:"weights"`
	MaxWeight      float64   `json:"max_weight"`
	Samples        int       `json:"samples"`
}

// Snapshot copies the current grid state.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	weights := make([]float64, len(a.weights))
	copy(weights, a.weights)
	var max float64
	for _, w := range weights {
		if w > max {
			max = w
		}
	}
	return Snapshot{
		CellsX:         a.cellsX,
		CellsY:         a.cellsY,
		CellSizeMeters: a.cellSizeMeters,
		Weights:        weights,
		MaxWeight:      max,
		Samples:        a.samples,
	}
}

// NormalizedMax returns the weights scaled so the heaviest cell is 1.
// An all-zero grid returns all zeros.
func (s Snapshot) NormalizedMax() []float64 {
	out := make([]float64, len(s.Weights))
	if s.MaxWeight == 0 {
		return out
	}
	for i, w := range s.Weights {
		out[i] = w / s.MaxWeight
	}
	return out
}

// NormalizedPercentile scales weights so the given percentile (for
// example 0.95) maps to 1, clamping heavier cells. This keeps a handful
// of extreme cells from washing out the rest of the display.
func (s Snapshot) NormalizedPercentile(pct float64) []float64 {
	out := make([]float64, len(s.Weights))
	if len(s.Weights) == 0 || pct <= 0 || pct > 1 {
		return out
	}

	nonzero := make([]float64, 0, len(s.Weights))
	for _, w := range s.Weights {
		if w > 0 {
			nonzero = append(nonzero, w)
		}
	}
	if len(nonzero) == 0 {
		return out
	}
	sort.Float64s(nonzero)
	ref := nonzero[int(pct*float64(len(nonzero)-1))]
	if ref == 0 {
		return out
	}
	for i, w := range s.Weights {
		v := w / ref
		if v > 1 {
			v = 1
		}
		out[i] = v
	}
	return out
}
