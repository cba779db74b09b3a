// Package court defines the canonical court templates that calibration
// is solved against. World coordinates are metres: X runs along the
// court length from the near baseline, Y across the width from the left
// sideline, origin at the near-left corner.
package court

import (
	"fmt"
	"sort"

	"github.com/coenhallie/video-annotation-sub003/internal/geom"
)

// Type identifies a supported court geometry.
type Type string

const (
	Tennis    Type = "tennis"
	Badminton Type = "badminton"
)

// Official court dimensions in metres.
const (
	TennisLengthMeters    = 23.77
	TennisWidthMeters     = 10.97
	BadmintonLengthMeters = 13.4
	BadmintonWidthMeters  = 6.1
)

// ReferenceKind distinguishes line references (two endpoints) from
// point references (one).
type ReferenceKind string

const (
	ReferenceLine  ReferenceKind = "line"
	ReferencePoint ReferenceKind = "point"
)

// Reference is one named court feature a user can match against the
// video frame during calibration.
type Reference struct {
	ID     string
	Kind   ReferenceKind
	Points []geom.Vec2 // world metres; 2 for lines, 1 for points
}

// Segment returns the reference as a segment. Only meaningful for line
// references.
func (r Reference) Segment() geom.Segment {
	return geom.Segment{A: r.Points[0], B: r.Points[1]}
}

// Model is an immutable court template: overall footprint plus the
// named reference features. Obtain one via ModelFor; never mutate.
type Model struct {
	Type         Type
	LengthMeters float64
	WidthMeters  float64
	refs         map[string]Reference
}

// ModelFor returns the template for the given court type.
func ModelFor(t Type) (*Model, error) {
	switch t {
	case Tennis:
		return tennisModel, nil
	case Badminton:
		return badmintonModel, nil
	default:
		return nil, fmt.Errorf("unknown court type %q", t)
	}
}

// Reference looks up a named reference feature.
func (m *Model) Reference(id string) (Reference, bool) {
	r, ok := m.refs[id]
	return r, ok
}

// ReferenceIDs returns all reference IDs in stable (sorted) order.
func (m *Model) ReferenceIDs() []string {
	ids := make([]string, 0, len(m.refs))
	for id := range m.refs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Center returns the world-space centre of the court footprint.
func (m *Model) Center() geom.Vec2 {
	return geom.Vec2{X: m.LengthMeters / 2, Y: m.WidthMeters / 2}
}

// Contains reports whether p lies within the court footprint expanded
// by margin metres on every side.
func (m *Model) Contains(p geom.Vec2, margin float64) bool {
	return p.X >= -margin && p.X <= m.LengthMeters+margin &&
		p.Y >= -margin && p.Y <= m.WidthMeters+margin
}

func line(id string, ax, ay, bx, by float64) Reference {
	return Reference{ID: id, Kind: ReferenceLine, Points: []geom.Vec2{{X: ax, Y: ay}, {X: bx, Y: by}}}
}

func point(id string, x, y float64) Reference {
	return Reference{ID: id, Kind: ReferencePoint, Points: []geom.Vec2{{X: x, Y: y}}}
}

func buildModel(t Type, length, width float64, refs []Reference) *Model {
	m := &Model{Type: t, LengthMeters: length, WidthMeters: width, refs: make(map[string]Reference, len(refs))}
	for _, r := range refs {
		m.refs[r.ID] = r
	}
	return m
}

var tennisModel = buildModel(Tennis, TennisLengthMeters, TennisWidthMeters, []Reference{
	line("baseline_near", 0, 0, 0, TennisWidthMeters),
	line("baseline_far", TennisLengthMeters, 0, TennisLengthMeters, TennisWidthMeters),
	line("sideline_left", 0, 0, TennisLengthMeters, 0),
	line("sideline_right", 0, TennisWidthMeters, TennisLengthMeters, TennisWidthMeters),
	// Singles sidelines are inset 1.37m from the doubles lines.
	line("singles_sideline_left", 0, 1.37, TennisLengthMeters, 1.37),
	line("singles_sideline_right", 0, TennisWidthMeters-1.37, TennisLengthMeters, TennisWidthMeters-1.37),
	line("net_line", TennisLengthMeters/2, 0, TennisLengthMeters/2, TennisWidthMeters),
	// Service lines sit 6.40m from the net on each side.
	line("service_line_near", TennisLengthMeters/2-6.40, 1.37, TennisLengthMeters/2-6.40, TennisWidthMeters-1.37),
	line("service_line_far", TennisLengthMeters/2+6.40, 1.37, TennisLengthMeters/2+6.40, TennisWidthMeters-1.37),
	line("center_service_line", TennisLengthMeters/2-6.40, TennisWidthMeters/2, TennisLengthMeters/2+6.40, TennisWidthMeters/2),
	point("center_mark_near", 0, TennisWidthMeters/2),
	point("center_mark_far", TennisLengthMeters, TennisWidthMeters/2),
})

var badmintonModel = buildModel(Badminton, BadmintonLengthMeters, BadmintonWidthMeters, []Reference{
	line("baseline_near", 0, 0, 0, BadmintonWidthMeters),
	line("baseline_far", BadmintonLengthMeters, 0, BadmintonLengthMeters, BadmintonWidthMeters),
	line("sideline_left", 0, 0, BadmintonLengthMeters, 0),
	line("sideline_right", 0, BadmintonWidthMeters, BadmintonLengthMeters, BadmintonWidthMeters),
	// Singles sidelines are inset 0.46m.
	line("singles_sideline_left", 0, 0.46, BadmintonLengthMeters, 0.46),
	line("singles_sideline_right", 0, BadmintonWidthMeters-0.46, BadmintonLengthMeters, BadmintonWidthMeters-0.46),
	line("net_line", BadmintonLengthMeters/2, 0, BadmintonLengthMeters/2, BadmintonWidthMeters),
	// Short service lines sit 1.98m from the net.
	line("short_service_line_near", BadmintonLengthMeters/2-1.98, 0, BadmintonLengthMeters/2-1.98, BadmintonWidthMeters),
	line("short_service_line_far", BadmintonLengthMeters/2+1.98, 0, BadmintonLengthMeters/2+1.98, BadmintonWidthMeters),
	// Doubles long service lines are inset 0.76m from the baselines.
	line("long_service_line_near", 0.76, 0, 0.76, BadmintonWidthMeters),
	line("long_service_line_far", BadmintonLengthMeters-0.76, 0, BadmintonLengthMeters-0.76, BadmintonWidthMeters),
	line("center_line_near", 0, BadmintonWidthMeters/2, BadmintonLengthMeters/2-1.98, BadmintonWidthMeters/2),
	line("center_line_far", BadmintonLengthMeters/2+1.98, BadmintonWidthMeters/2, BadmintonLengthMeters, BadmintonWidthMeters/2),
})
