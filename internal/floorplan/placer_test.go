package floorplan

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/HerbHall/taproot/internal/testutil"
	"github.com/HerbHall/taproot/pkg/models"
)

func squarePolygon(locationID string, cx, cy, half float64) models.LocationPolygon {
	return models.LocationPolygon{
		ID:         "poly-" + locationID,
		LocationID: locationID,
		Points: []models.Point{
			{X: cx - half, Y: cy - half},
			{X: cx + half, Y: cy - half},
			{X: cx + half, Y: cy + half},
			{X: cx - half, Y: cy + half},
		},
	}
}

func testDevices(locationID string, n int) []models.Device {
	out := make([]models.Device, n)
	for i := range out {
		out[i] = testutil.NewDevice(
			testutil.WithMAC(fmt.Sprintf("AA:00:00:00:%02d:%02d", i, i)),
			testutil.WithVendorModel("MikroTik", "RB750Gr3"),
			testutil.WithLocation(locationID),
			testutil.WithDeviceType(models.DeviceTypeRouter),
		)
	}
	return out
}

// Crowded layouts must still come out overlap-free.
func TestPlaceBadgesNoOverlap(t *testing.T) {
	polygons := []models.LocationPolygon{
		squarePolygon("loc-a", 150, 150, 60),
		squarePolygon("loc-b", 170, 180, 60), // nearly on top of loc-a
		squarePolygon("loc-c", 400, 500, 80),
	}
	devices := map[string][]models.Device{
		"loc-a": testDevices("loc-a", 4),
		"loc-b": testDevices("loc-b", 3),
		"loc-c": testDevices("loc-c", 2),
	}

	badges := PlaceBadges(polygons, devices, 612, 792)
	if len(badges) != 9 {
		t.Fatalf("placed %d badges, want 9", len(badges))
	}
	for i := range badges {
		for j := i + 1; j < len(badges); j++ {
			if badges[i].Rect.Overlaps(badges[j].Rect) {
				t.Errorf("badges %d (%s) and %d (%s) overlap: %+v vs %+v",
					i, badges[i].Device.PrimaryMAC, j, badges[j].Device.PrimaryMAC,
					badges[i].Rect, badges[j].Rect)
			}
		}
	}
}

// With room to move, no two leader lines may cross.
func TestPlaceBadgesLeadersUncrossed(t *testing.T) {
	polygons := []models.LocationPolygon{
		squarePolygon("loc-a", 150, 100, 50),
		squarePolygon("loc-b", 150, 300, 50),
		squarePolygon("loc-c", 150, 500, 50),
	}
	devices := map[string][]models.Device{
		"loc-a": testDevices("loc-a", 2),
		"loc-b": testDevices("loc-b", 2),
		"loc-c": testDevices("loc-c", 2),
	}

	badges := PlaceBadges(polygons, devices, 612, 792)
	for i := range badges {
		for j := i + 1; j < len(badges); j++ {
			a1, a2 := badges[i].Leader()
			b1, b2 := badges[j].Leader()
			if segmentsCross(a1, a2, b1, b2) {
				t.Errorf("leaders of badges %d and %d cross", i, j)
			}
		}
	}
}

func TestPlaceBadgesInsidePage(t *testing.T) {
	// A polygon at the page edge forces the clamp.
	polygons := []models.LocationPolygon{squarePolygon("loc-a", 600, 780, 20)}
	devices := map[string][]models.Device{"loc-a": testDevices("loc-a", 3)}

	badges := PlaceBadges(polygons, devices, 612, 792)
	for i, b := range badges {
		r := b.Rect
		if r.X < 0 || r.Y < 0 || r.X+r.W > 612 || r.Y+r.H > 792 {
			t.Errorf("badge %d escapes the page: %+v", i, r)
		}
	}
}

func TestPlaceBadgesDeterministic(t *testing.T) {
	polygons := []models.LocationPolygon{
		squarePolygon("loc-b", 200, 150, 40),
		squarePolygon("loc-a", 100, 150, 40), // same centroid Y, tie-break on ID
		squarePolygon("loc-c", 300, 400, 40),
	}
	devices := map[string][]models.Device{
		"loc-a": testDevices("loc-a", 2),
		"loc-b": testDevices("loc-b", 2),
		"loc-c": testDevices("loc-c", 1),
	}

	first := PlaceBadges(polygons, devices, 612, 792)
	second := PlaceBadges(polygons, devices, 612, 792)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different layouts")
	}
	if first[0].LocationID != "loc-a" {
		t.Errorf("first badge belongs to %s, want loc-a (ID tie-break)", first[0].LocationID)
	}
}

func TestBadgeHeightSections(t *testing.T) {
	base := models.Device{Vendor: "Zyxel", Model: "GS1900"}
	full := base
	full.AssetTag = "A-1"
	full.Serial = "S123"

	if got, want := badgeHeight(base), badgeIconRow+badgeRowHeight; got != want {
		t.Errorf("badgeHeight(minimal) = %v, want %v", got, want)
	}
	if got, want := badgeHeight(full), badgeIconRow+3*badgeRowHeight; got != want {
		t.Errorf("badgeHeight(full) = %v, want %v", got, want)
	}
}

func TestBadgeAnchor(t *testing.T) {
	polygons := []models.LocationPolygon{squarePolygon("loc-a", 100, 100, 50)}
	devices := map[string][]models.Device{"loc-a": testDevices("loc-a", 1)}

	badges := PlaceBadges(polygons, devices, 612, 792)
	if len(badges) != 1 {
		t.Fatalf("placed %d badges, want 1", len(badges))
	}
	b := badges[0]
	if b.Rect.X != 100+anchorOffsetX {
		t.Errorf("anchor X = %v, want %v", b.Rect.X, 100+anchorOffsetX)
	}
	// A single badge near its own centroid gets pushed off the marker
	// circle but stays vertically centered otherwise.
	if b.Centroid.X != 100 || b.Centroid.Y != 100 {
		t.Errorf("centroid = %+v, want (100, 100)", b.Centroid)
	}
}
