package heatmap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coenhallie/video-annotation-sub003/internal/config"
	"github.com/coenhallie/video-annotation-sub003/internal/court"
	"github.com/coenhallie/video-annotation-sub003/internal/geom"
	"github.com/coenhallie/video-annotation-sub003/internal/track"
)

func newBadmintonAccumulator(t *testing.T, cfg *config.TuningConfig) *Accumulator {
	t.Helper()
	m, err := court.ModelFor(court.Badminton)
	require.NoError(t, err)
	return NewAccumulator(m, cfg)
}

func validPos(x, y, ts float64) track.WorldPosition {
	return track.WorldPosition{X: x, Y: y, TimestampSeconds: ts, Valid: true}
}

func TestGridDimensionsFromResolution(t *testing.T) {
	a := newBadmintonAccumulator(t, config.EmptyTuningConfig())
	cx, cy := a.Dimensions()
	// 13.4m x 6.1m at 4 cells/m, rounded up.
	assert.Equal(t, 54, cx)
	assert.Equal(t, 25, cy)
	assert.InDelta(t, 0.25, a.CellSizeMeters(), 1e-12)
}

func TestAccumulateDepositsKernelFootprint(t *testing.T) {
	a := newBadmintonAccumulator(t, config.EmptyTuningConfig())

	a.Accumulate(validPos(6.7, 3.05, 1.0))

	center := a.QueryWorld(geom.Vec2{X: 6.7, Y: 3.05})
	assert.InDelta(t, 1.0, center, 1e-12, "centre tap has weight 1")

	// Neighbours within the kernel radius received a smaller deposit.
	cx, cy, _, ok := a.MostVisitedCell()
	require.True(t, ok)
	neighbour := a.QueryCell(cx+1, cy)
	assert.Greater(t, neighbour, 0.0)
	assert.Less(t, neighbour, center)

	// Cells beyond the radius received nothing.
	assert.Zero(t, a.QueryCell(cx+2, cy))
}

func TestAccumulateIgnoresInvalidPositions(t *testing.T) {
	a := newBadmintonAccumulator(t, config.EmptyTuningConfig())

	a.Accumulate(track.WorldPosition{X: 6.7, Y: 3.05, Valid: false})

	snap := a.Snapshot()
	assert.Zero(t, snap.MaxWeight)
	assert.Zero(t, snap.Samples)
}

func TestAccumulateSkipsOffFootprintCenters(t *testing.T) {
	a := newBadmintonAccumulator(t, config.EmptyTuningConfig())

	// The tracker's bounds margin admits positions slightly off the
	// footprint; the grid has no cell for them.
	a.Accumulate(validPos(-0.3, 3.0, 1.0))
	a.Accumulate(validPos(13.6, 3.0, 2.0))

	assert.Zero(t, a.Snapshot().MaxWeight)
}

func TestAccumulationSaturates(t *testing.T) {
	lowCap := 5.0
	cfg := &config.TuningConfig{MaxCellWeight: &lowCap}
	a := newBadmintonAccumulator(t, cfg)

	var prev float64
	for i := 0; i < 100; i++ {
		a.Accumulate(validPos(6.7, 3.05, float64(i)))
		w := a.QueryWorld(geom.Vec2{X: 6.7, Y: 3.05})
		assert.GreaterOrEqual(t, w, prev, "weight must be monotonically non-decreasing")
		assert.LessOrEqual(t, w, lowCap, "weight must saturate at the cap")
		prev = w
	}
	assert.Equal(t, lowCap, a.QueryWorld(geom.Vec2{X: 6.7, Y: 3.05}))
}

func TestDecayScalesWeights(t *testing.T) {
	a := newBadmintonAccumulator(t, config.EmptyTuningConfig())

	a.Accumulate(validPos(6.7, 3.05, 1.0))
	before := a.QueryWorld(geom.Vec2{X: 6.7, Y: 3.05})

	a.Decay(0.5)
	after := a.QueryWorld(geom.Vec2{X: 6.7, Y: 3.05})
	assert.InDelta(t, before*0.5, after, 1e-12)

	// Out-of-range factors are ignored rather than corrupting weights.
	a.Decay(0)
	a.Decay(1.5)
	assert.InDelta(t, after, a.QueryWorld(geom.Vec2{X: 6.7, Y: 3.05}), 1e-12)
}

func TestResetZeroesEverything(t *testing.T) {
	a := newBadmintonAccumulator(t, config.EmptyTuningConfig())

	for i := 0; i < 10; i++ {
		a.Accumulate(validPos(float64(i), 3.0, float64(i)))
	}
	a.Reset()

	snap := a.Snapshot()
	assert.Zero(t, snap.MaxWeight)
	assert.Zero(t, snap.Samples)
	for x := 0; x < snap.CellsX; x++ {
		for y := 0; y < snap.CellsY; y++ {
			assert.Zero(t, a.QueryCell(x, y))
		}
	}
}

func TestMostVisitedCell(t *testing.T) {
	a := newBadmintonAccumulator(t, config.EmptyTuningConfig())

	_, _, _, ok := a.MostVisitedCell()
	assert.False(t, ok, "empty grid has no most-visited cell")

	a.Accumulate(validPos(2.0, 2.0, 1.0))
	a.Accumulate(validPos(10.0, 4.0, 2.0))
	a.Accumulate(validPos(10.0, 4.0, 3.0))

	cx, cy, w, ok := a.MostVisitedCell()
	require.True(t, ok)
	assert.Greater(t, w, 1.0)
	center := a.CellCenter(cx, cy)
	assert.InDelta(t, 10.0, center.X, a.CellSizeMeters())
	assert.InDelta(t, 4.0, center.Y, a.CellSizeMeters())
}

func TestSnapshotIsACopy(t *testing.T) {
	a := newBadmintonAccumulator(t, config.EmptyTuningConfig())
	a.Accumulate(validPos(6.7, 3.05, 1.0))

	snap := a.Snapshot()
	snap.Weights[0] = 999

	again := a.Snapshot()
	assert.NotEqual(t, 999.0, again.Weights[0])

	// Identical state yields identical snapshots.
	if diff := cmp.Diff(snap.CellsX, again.CellsX); diff != "" {
		t.Errorf("snapshot dims differ: %s", diff)
	}
}

func TestNormalizedMax(t *testing.T) {
	a := newBadmintonAccumulator(t, config.EmptyTuningConfig())

	// All-zero grid normalises to all zeros, not NaN.
	zeros := a.Snapshot().NormalizedMax()
	for _, v := range zeros {
		assert.Zero(t, v)
	}

	a.Accumulate(validPos(6.7, 3.05, 1.0))
	norm := a.Snapshot().NormalizedMax()
	var max float64
	for _, v := range norm {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
		if v > max {
			max = v
		}
	}
	assert.Equal(t, 1.0, max)
}

func TestNormalizedPercentileClampsOutliers(t *testing.T) {
	a := newBadmintonAccumulator(t, config.EmptyTuningConfig())

	// One hot cell and a spread of light cells.
	for i := 0; i < 50; i++ {
		a.Accumulate(validPos(6.7, 3.05, float64(i)))
	}
	a.Accumulate(validPos(2.0, 2.0, 100))

	norm := a.Snapshot().NormalizedPercentile(0.5)
	for _, v := range norm {
		assert.LessOrEqual(t, v, 1.0)
	}
}
