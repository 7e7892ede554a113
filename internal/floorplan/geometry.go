package floorplan

import (
	"math"

	"github.com/HerbHall/taproot/pkg/models"
)

// segEps is the parametric margin around segment endpoints. Two leader
// lines sharing a badge corner or centroid do not count as crossing.
const segEps = 0.01

// Rect is an axis-aligned rectangle with its origin at the top-left.
type Rect struct {
	X, Y, W, H float64
}

// Overlaps reports whether two rectangles share interior area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// LeftCenter is the midpoint of the rectangle's left edge, where leader
// lines attach.
func (r Rect) LeftCenter() models.Point {
	return models.Point{X: r.X, Y: r.Y + r.H/2}
}

// Contains reports whether a point lies inside the rectangle.
func (r Rect) Contains(p models.Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// segmentsCross reports whether two segments properly intersect.
// Touches at or near endpoints are not crossings.
func segmentsCross(a1, a2, b1, b2 models.Point) bool {
	d := (a2.X-a1.X)*(b2.Y-b1.Y) - (a2.Y-a1.Y)*(b2.X-b1.X)
	if math.Abs(d) < 1e-12 {
		return false
	}
	t := ((b1.X-a1.X)*(b2.Y-b1.Y) - (b1.Y-a1.Y)*(b2.X-b1.X)) / d
	u := ((b1.X-a1.X)*(a2.Y-a1.Y) - (b1.Y-a1.Y)*(a2.X-a1.X)) / d
	return t > segEps && t < 1-segEps && u > segEps && u < 1-segEps
}

// segmentIntersectsRect reports whether a segment passes through a
// rectangle.
func segmentIntersectsRect(p1, p2 models.Point, r Rect) bool {
	if r.Contains(p1) || r.Contains(p2) {
		return true
	}
	corners := [4]models.Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.W, Y: r.Y},
		{X: r.X + r.W, Y: r.Y + r.H},
		{X: r.X, Y: r.Y + r.H},
	}
	for i := 0; i < 4; i++ {
		if segmentsCross(p1, p2, corners[i], corners[(i+1)%4]) {
			return true
		}
	}
	return false
}

// circleIntersectsRect reports whether a circle overlaps a rectangle.
func circleIntersectsRect(center models.Point, radius float64, r Rect) bool {
	cx := math.Max(r.X, math.Min(center.X, r.X+r.W))
	cy := math.Max(r.Y, math.Min(center.Y, r.Y+r.H))
	dx, dy := center.X-cx, center.Y-cy
	return dx*dx+dy*dy < radius*radius
}
