package geom

import "fmt"

// DegenerateInputError reports a correspondence set that cannot support
// a homography solve: too few points, collinear points, or a linear
// system that has lost rank (for example all reference lines parallel).
type DegenerateInputError struct {
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("degenerate correspondence set: %s", e.Reason)
}

func degenerate(format string, args ...any) error {
	return &DegenerateInputError{Reason: fmt.Sprintf(format, args...)}
}
