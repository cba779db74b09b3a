package calibration

import "fmt"

// MinCorrespondences is the minimum number of correspondences a session
// must collect before Solve is allowed.
const MinCorrespondences = 3

// InsufficientCorrespondencesError reports a solve attempt with fewer
// than MinCorrespondences collected.
type InsufficientCorrespondencesError struct {
	Got  int
	Need int
}

func (e *InsufficientCorrespondencesError) Error() string {
	return fmt.Sprintf("insufficient correspondences: have %d, need at least %d", e.Got, e.Need)
}

// DuplicateReferenceError reports a correspondence added for a court
// reference that already has one in this session.
type DuplicateReferenceError struct {
	ReferenceID string
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("court reference %q already has a correspondence in this session", e.ReferenceID)
}

// UnknownReferenceError reports a correspondence naming a reference the
// active court model does not define.
type UnknownReferenceError struct {
	ReferenceID string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("court model has no reference %q", e.ReferenceID)
}
