// Package artifact remembers where objects of interest were seen.
package artifact

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pTommyed/osgar/internal/units"
)

// DefaultDedupRadius is the distance in metres under which two sightings are
// treated as the same artifact.
const DefaultDedupRadius = 4.0

// Record is one remembered artifact.
type Record struct {
	Label    string
	Position r3.Vec
}

// Memory holds deduplicated artifact records in insertion order.
type Memory struct {
	radius  float64
	records []Record
}

// NewMemory returns an empty memory. A non-positive radius uses
// DefaultDedupRadius.
func NewMemory(dedupRadius float64) *Memory {
	if dedupRadius <= 0 {
		dedupRadius = DefaultDedupRadius
	}
	return &Memory{radius: dedupRadius}
}

// DedupRadius returns the configured radius.
func (m *Memory) DedupRadius() float64 { return m.radius }

// Register stores the sighting unless an existing record lies within the
// dedup radius. The label plays no part in the comparison.
func (m *Memory) Register(label string, pos r3.Vec) bool {
	for _, r := range m.records {
		if r3.Norm(r3.Sub(r.Position, pos)) < m.radius {
			return false
		}
	}
	m.records = append(m.records, Record{Label: label, Position: pos})
	return true
}

// Len returns the number of records.
func (m *Memory) Len() int { return len(m.records) }

// Records returns a copy of the stored records.
func (m *Memory) Records() []Record {
	return append([]Record(nil), m.records...)
}

// Report builds the artf_xyz payload: [[label, x_mm, y_mm, z_mm], ...].
// Coordinates are rounded to whole millimetres.
func (m *Memory) Report() [][]any {
	out := make([][]any, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, []any{
			r.Label,
			units.MetersToMillimeters(r.Position.X),
			units.MetersToMillimeters(r.Position.Y),
			units.MetersToMillimeters(r.Position.Z),
		})
	}
	return out
}
