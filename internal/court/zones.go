package court

import "github.com/coenhallie/video-annotation-sub003/internal/geom"

// Zone is a coarse named region of the court, used for human-readable
// "most visited" statistics. The footprint is split into thirds along
// its length and halves across its width.
type Zone string

const (
	ZoneNearLeft  Zone = "near-left"
	ZoneNearRight Zone = "near-right"
	ZoneMidLeft   Zone = "mid-left"
	ZoneMidRight  Zone = "mid-right"
	ZoneFarLeft   Zone = "far-left"
	ZoneFarRight  Zone = "far-right"
	ZoneOffCourt  Zone = "off-court"
)

// ZoneFor returns the coarse zone containing the world point p.
func (m *Model) ZoneFor(p geom.Vec2) Zone {
	if !m.Contains(p, 0) {
		return ZoneOffCourt
	}
	third := m.LengthMeters / 3
	var depth int
	switch {
	case p.X < third:
		depth = 0
	case p.X < 2*third:
		depth = 1
	default:
		depth = 2
	}
	left := p.Y < m.WidthMeters/2
	switch {
	case depth == 0 && left:
		return ZoneNearLeft
	case depth == 0:
		return ZoneNearRight
	case depth == 1 && left:
		return ZoneMidLeft
	case depth == 1:
		return ZoneMidRight
	case left:
		return ZoneFarLeft
	default:
		return ZoneFarRight
	}
}
