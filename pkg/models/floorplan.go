package models

// Point is a 2-D coordinate on a floorplan, in PDF points.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Floorplan is a background page devices are placed on. Source is a
// path to the original PDF (or SVG) file.
type Floorplan struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Source string  `json:"source"`
	PageW  float64 `json:"page_w"`
	PageH  float64 `json:"page_h"`
}

// Location is a named area devices are assigned to. A device inherits
// polygon membership through its location.
type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FloorplanID string `json:"floorplan_id"`
}

// LocationPolygon is an ordered list of points outlining a location on
// a floorplan.
type LocationPolygon struct {
	ID          string  `json:"id"`
	FloorplanID string  `json:"floorplan_id"`
	LocationID  string  `json:"location_id"`
	Points      []Point `json:"points"`
}

// Centroid returns the arithmetic mean of the polygon's vertices.
func (p *LocationPolygon) Centroid() Point {
	if len(p.Points) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, pt := range p.Points {
		sx += pt.X
		sy += pt.Y
	}
	n := float64(len(p.Points))
	return Point{X: sx / n, Y: sy / n}
}

// Bounds returns the polygon's axis-aligned bounding box as
// (minX, minY, maxX, maxY).
func (p *LocationPolygon) Bounds() (minX, minY, maxX, maxY float64) {
	if len(p.Points) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = p.Points[0].X, p.Points[0].Y
	maxX, maxY = minX, minY
	for _, pt := range p.Points[1:] {
		if pt.X < minX {
			minX = pt.X
		}
		if pt.Y < minY {
			minY = pt.Y
		}
		if pt.X > maxX {
			maxX = pt.X
		}
		if pt.Y > maxY {
			maxY = pt.Y
		}
	}
	return minX, minY, maxX, maxY
}
