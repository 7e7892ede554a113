package floorplan

import (
	"testing"

	"github.com/HerbHall/taproot/pkg/models"
)

func TestSegmentsCross(t *testing.T) {
	tests := []struct {
		name           string
		a1, a2, b1, b2 models.Point
		want           bool
	}{
		{
			name: "X crossing",
			a1:   models.Point{X: 0, Y: 0}, a2: models.Point{X: 10, Y: 10},
			b1: models.Point{X: 0, Y: 10}, b2: models.Point{X: 10, Y: 0},
			want: true,
		},
		{
			name: "parallel",
			a1:   models.Point{X: 0, Y: 0}, a2: models.Point{X: 10, Y: 0},
			b1: models.Point{X: 0, Y: 5}, b2: models.Point{X: 10, Y: 5},
			want: false,
		},
		{
			name: "disjoint",
			a1:   models.Point{X: 0, Y: 0}, a2: models.Point{X: 1, Y: 1},
			b1: models.Point{X: 5, Y: 5}, b2: models.Point{X: 6, Y: 4},
			want: false,
		},
		{
			name: "shared endpoint is not a crossing",
			a1:   models.Point{X: 0, Y: 0}, a2: models.Point{X: 10, Y: 10},
			b1: models.Point{X: 10, Y: 10}, b2: models.Point{X: 20, Y: 0},
			want: false,
		},
		{
			name: "touch at interior endpoint is not a crossing",
			a1:   models.Point{X: 0, Y: 0}, a2: models.Point{X: 10, Y: 0},
			b1: models.Point{X: 5, Y: 0}, b2: models.Point{X: 5, Y: 10},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := segmentsCross(tt.a1, tt.a2, tt.b1, tt.b2); got != tt.want {
				t.Errorf("segmentsCross() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectOverlaps(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	if !a.Overlaps(Rect{X: 5, Y: 5, W: 10, H: 10}) {
		t.Error("overlapping rects reported disjoint")
	}
	if a.Overlaps(Rect{X: 20, Y: 0, W: 5, H: 5}) {
		t.Error("disjoint rects reported overlapping")
	}
	// Edge contact only: no shared interior.
	if a.Overlaps(Rect{X: 10, Y: 0, W: 5, H: 5}) {
		t.Error("edge-touching rects reported overlapping")
	}
}

func TestSegmentIntersectsRect(t *testing.T) {
	r := Rect{X: 10, Y: 10, W: 10, H: 10}

	if !segmentIntersectsRect(models.Point{X: 0, Y: 15}, models.Point{X: 30, Y: 15}, r) {
		t.Error("segment through the rect not detected")
	}
	if !segmentIntersectsRect(models.Point{X: 15, Y: 15}, models.Point{X: 50, Y: 50}, r) {
		t.Error("segment starting inside the rect not detected")
	}
	if segmentIntersectsRect(models.Point{X: 0, Y: 0}, models.Point{X: 5, Y: 5}, r) {
		t.Error("distant segment reported intersecting")
	}
}

func TestCircleIntersectsRect(t *testing.T) {
	r := Rect{X: 10, Y: 10, W: 10, H: 10}

	if !circleIntersectsRect(models.Point{X: 8, Y: 15}, 3, r) {
		t.Error("circle touching the left edge not detected")
	}
	if circleIntersectsRect(models.Point{X: 0, Y: 15}, 3, r) {
		t.Error("distant circle reported intersecting")
	}
	if !circleIntersectsRect(models.Point{X: 15, Y: 15}, 1, r) {
		t.Error("circle inside the rect not detected")
	}
}
