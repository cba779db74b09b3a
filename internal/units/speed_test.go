package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		target   string
		want     float64
	}{
		{"mps passthrough", 5.0, MPS, 5.0},
		{"empty defaults to mps", 5.0, "", 5.0},
		{"kmh", 1.0, KMH, 3.6},
		{"mph", 1.0, MPH, 2.2369362920544},
		{"zero", 0.0, KMH, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertSpeed(tt.speedMPS, tt.target)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestConvertSpeedUnknownUnit(t *testing.T) {
	_, err := ConvertSpeed(1.0, "knots")
	assert.Error(t, err)
}
