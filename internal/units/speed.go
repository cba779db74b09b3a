// Package units converts player speeds for display. The engine tracks
// in meters per second; readouts may prefer km/h or mph.
package units

import "fmt"

const (
	MPS = "mps"
	KMH = "kmh"
	MPH = "mph"
)

const (
	mpsToKMH = 3.6
	mpsToMPH = 2.2369362920544
)

// ConvertSpeed converts a speed in meters per second to the target
// unit. Unknown units are an error rather than a silent passthrough.
func ConvertSpeed(speedMPS float64, target string) (float64, error) {
	switch target {
	case MPS, "":
		return speedMPS, nil
	case KMH:
		return speedMPS * mpsToKMH, nil
	case MPH:
		return speedMPS * mpsToMPH, nil
	default:
		return 0, fmt.Errorf("unknown speed unit %q (want mps, kmh, or mph)", target)
	}
}
