package floorplan

import (
	"sort"

	"github.com/HerbHall/taproot/pkg/models"
)

const (
	badgeWidth     = 110.0
	badgeRowHeight = 11.0
	badgeIconRow   = 14.0
	badgeGap       = 4.0

	anchorOffsetX  = 10.0
	centroidRadius = 12.0

	uncrossIterations = 10
	blockerIterations = 5
)

// Badge is one placed device label. Centroid is the leader-line anchor
// of the location the device belongs to.
type Badge struct {
	LocationID string
	Device     models.Device
	Centroid   models.Point
	Rect       Rect

	// stackDown is the displacement direction used whenever this badge
	// has to move out of the way.
	stackDown bool
}

// Leader returns the badge's leader-line segment, centroid to the
// middle of the badge's left edge.
func (b *Badge) Leader() (models.Point, models.Point) {
	return b.Centroid, b.Rect.LeftCenter()
}

// badgeHeight sizes a badge from its populated sections: icon row,
// asset tag, vendor and model, serial.
func badgeHeight(d models.Device) float64 {
	h := badgeIconRow + badgeRowHeight // icon + vendor/model always present
	if d.AssetTag != "" {
		h += badgeRowHeight
	}
	if d.Serial != "" {
		h += badgeRowHeight
	}
	return h
}

// PlaceBadges lays out one badge per device around its location's
// centroid and relaxes the layout until badges neither overlap each
// other nor sit on a centroid, and leader lines are uncrossed where the
// page allows. Output is deterministic for a given input.
func PlaceBadges(polygons []models.LocationPolygon, devicesByLocation map[string][]models.Device, pageW, pageH float64) []Badge {
	ordered := make([]models.LocationPolygon, len(polygons))
	copy(ordered, polygons)
	sort.SliceStable(ordered, func(i, j int) bool {
		ci, cj := ordered[i].Centroid(), ordered[j].Centroid()
		if ci.Y != cj.Y {
			return ci.Y < cj.Y
		}
		return ordered[i].LocationID < ordered[j].LocationID
	})

	var badges []Badge
	centroids := make([]models.Point, 0, len(ordered))
	for i, poly := range ordered {
		c := poly.Centroid()
		centroids = append(centroids, c)
		down := i%2 == 0

		devices := append([]models.Device(nil), devicesByLocation[poly.LocationID]...)
		sort.Slice(devices, func(a, b int) bool {
			return devices[a].PrimaryMAC < devices[b].PrimaryMAC
		})

		offset := 0.0
		for _, d := range devices {
			h := badgeHeight(d)
			y := c.Y - h/2
			if down {
				y += offset
			} else {
				y -= offset
			}
			badges = append(badges, Badge{
				LocationID: poly.LocationID,
				Device:     d,
				Centroid:   c,
				Rect:       Rect{X: c.X + anchorOffsetX, Y: y, W: badgeWidth, H: h},
				stackDown:  down,
			})
			offset += h + badgeGap
		}
	}

	resolveOverlaps(badges)
	avoidCentroids(badges, centroids)
	resolveOverlaps(badges)
	uncrossLeaders(badges)
	clearLeaderBlockers(badges)
	resolveOverlaps(badges)
	clampToPage(badges, pageW, pageH)

	return badges
}

// resolveOverlaps displaces the later of any overlapping pair in its
// stack direction. Displacing a badge can re-collide it with one
// visited earlier, so the sweep repeats until nothing moves.
func resolveOverlaps(badges []Badge) {
	for pass := 0; pass <= len(badges); pass++ {
		moved := false
		for i := range badges {
			for j := i + 1; j < len(badges); j++ {
				if badges[i].Rect.Overlaps(badges[j].Rect) {
					displace(&badges[j], &badges[i])
					moved = true
				}
			}
		}
		if !moved {
			return
		}
	}
}

// displace moves b past blocker in b's stack direction, keeping the
// inter-badge gap.
func displace(b, blocker *Badge) {
	if b.stackDown {
		b.Rect.Y = blocker.Rect.Y + blocker.Rect.H + badgeGap
	} else {
		b.Rect.Y = blocker.Rect.Y - b.Rect.H - badgeGap
	}
}

// avoidCentroids pushes badges off the marker circles so a badge never
// hides the point its leader starts from.
func avoidCentroids(badges []Badge, centroids []models.Point) {
	for i := range badges {
		for _, c := range centroids {
			for circleIntersectsRect(c, centroidRadius, badges[i].Rect) {
				if badges[i].stackDown {
					badges[i].Rect.Y = c.Y + centroidRadius + badgeGap
				} else {
					badges[i].Rect.Y = c.Y - centroidRadius - badges[i].Rect.H - badgeGap
				}
			}
		}
	}
}

// uncrossLeaders swaps the vertical positions of badge pairs whose
// leader lines cross. Swapping two crossing leaders always uncrosses
// that pair; iteration handles the knock-on crossings it can create.
func uncrossLeaders(badges []Badge) {
	for iter := 0; iter < uncrossIterations; iter++ {
		swapped := false
		for i := range badges {
			for j := i + 1; j < len(badges); j++ {
				a1, a2 := badges[i].Leader()
				b1, b2 := badges[j].Leader()
				if !segmentsCross(a1, a2, b1, b2) {
					continue
				}
				badges[i].Rect.Y, badges[j].Rect.Y = badges[j].Rect.Y, badges[i].Rect.Y
				swapped = true
			}
		}
		if !swapped {
			return
		}
	}
}

// clearLeaderBlockers displaces badges that sit on another badge's
// leader line.
func clearLeaderBlockers(badges []Badge) {
	for iter := 0; iter < blockerIterations; iter++ {
		moved := false
		for i := range badges {
			p1, p2 := badges[i].Leader()
			for j := range badges {
				if i == j {
					continue
				}
				if !segmentIntersectsRect(p1, p2, badges[j].Rect) {
					continue
				}
				displace(&badges[j], &badges[i])
				moved = true
			}
		}
		if !moved {
			return
		}
	}
}

// clampToPage pulls badges back inside the page. This runs last: a
// clamped badge may reintroduce a leader crossing, which is accepted.
func clampToPage(badges []Badge, pageW, pageH float64) {
	for i := range badges {
		r := &badges[i].Rect
		if r.X+r.W > pageW {
			r.X = pageW - r.W
		}
		if r.X < 0 {
			r.X = 0
		}
		if r.Y+r.H > pageH {
			r.Y = pageH - r.H
		}
		if r.Y < 0 {
			r.Y = 0
		}
	}
}
