// pkg/core/trail.go
package core

// Polyline is an ordered sequence of positions accumulated for one entity.
type Polyline []Position

// Clone returns an independent copy of the polyline.
func (p Polyline) Clone() Polyline {
	out := make(Polyline, len(p))
	copy(out, p)
	return out
}

// Last returns the most recent position, if any.
func (p Polyline) Last() (Position, bool) {
	if len(p) == 0 {
		return Position{}, false
	}
	return p[len(p)-1], true
}
