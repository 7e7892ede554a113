package floorplan

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/phpdave11/gofpdf/contrib/gofpdi"

	"github.com/HerbHall/taproot/pkg/models"
)

const (
	labelMaxFontSize = 24.0
	labelPadding     = 0.10 // fraction of the polygon bounding box

	leaderShadowOffset = 0.75
	leaderShadowAlpha  = 0.2
	centroidDotRadius  = 2.0
)

// polygonColor is #8b5cf6, the outline violet.
var polygonColor = [3]int{0x8b, 0x5c, 0xf6}

// Badge row backgrounds alternate between these two slates.
var (
	slateDark  = [3]int{0x1e, 0x29, 0x3b}
	slateLight = [3]int{0x33, 0x41, 0x55}
)

// iconColors keys badge icon cells by device type.
var iconColors = map[models.DeviceType][3]int{
	models.DeviceTypeRouter:      {0xf5, 0x9e, 0x0b},
	models.DeviceTypeSwitch:      {0x3b, 0x82, 0xf6},
	models.DeviceTypeAccessPoint: {0x10, 0xb9, 0x81},
	models.DeviceTypeEndDevice:   {0x64, 0x74, 0x8b},
}

// iconGlyphs are the single-character markers drawn in the icon cell.
var iconGlyphs = map[models.DeviceType]string{
	models.DeviceTypeRouter:      "R",
	models.DeviceTypeSwitch:      "S",
	models.DeviceTypeAccessPoint: "A",
	models.DeviceTypeEndDevice:   "D",
}

// RenderPDF draws location polygons, labels, device badges and leader
// lines over the floorplan's source page and returns the finished PDF.
func RenderPDF(fp *models.Floorplan, polygons []models.LocationPolygon, locations map[string]models.Location, devicesByLocation map[string][]models.Device) ([]byte, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: fp.PageW, Ht: fp.PageH},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	if fp.Source != "" {
		tpl := gofpdi.ImportPage(pdf, fp.Source, 1, "/MediaBox")
		gofpdi.UseImportedTemplate(pdf, tpl, 0, 0, fp.PageW, fp.PageH)
	}

	for _, poly := range polygons {
		drawPolygon(pdf, poly)
		if loc, ok := locations[poly.LocationID]; ok {
			drawLabel(pdf, poly, loc.Name)
		}
	}

	badges := PlaceBadges(polygons, devicesByLocation, fp.PageW, fp.PageH)
	// Leaders go under badges so a line never strikes through a label.
	for i := range badges {
		drawLeader(pdf, &badges[i])
	}
	for i := range badges {
		drawBadge(pdf, &badges[i])
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render floorplan %s: %w", fp.ID, err)
	}
	return buf.Bytes(), nil
}

func drawPolygon(pdf *gofpdf.Fpdf, poly models.LocationPolygon) {
	if len(poly.Points) < 2 {
		return
	}
	pts := make([]gofpdf.PointType, len(poly.Points))
	for i, p := range poly.Points {
		pts[i] = gofpdf.PointType{X: p.X, Y: p.Y}
	}
	pdf.SetDrawColor(polygonColor[0], polygonColor[1], polygonColor[2])
	pdf.SetLineWidth(1.5)
	pdf.SetAlpha(0.8, "Normal")
	pdf.Polygon(pts, "D")
	pdf.SetAlpha(1, "Normal")
}

// drawLabel centers the location name in the polygon's bounding box,
// sized to fit with padding, stroked white in eight directions so it
// stays readable over any background.
func drawLabel(pdf *gofpdf.Fpdf, poly models.LocationPolygon, name string) {
	if name == "" {
		return
	}
	minX, minY, maxX, maxY := poly.Bounds()
	boxW := (maxX - minX) * (1 - 2*labelPadding)
	boxH := (maxY - minY) * (1 - 2*labelPadding)
	if boxW <= 0 || boxH <= 0 {
		return
	}

	size := labelMaxFontSize
	pdf.SetFont("Helvetica", "B", size)
	for size > 4 && (pdf.GetStringWidth(name) > boxW || size > boxH) {
		size--
		pdf.SetFontSize(size)
	}

	c := poly.Centroid()
	x := c.X - pdf.GetStringWidth(name)/2
	y := c.Y + size*0.35 // optical baseline centering

	pdf.SetTextColor(255, 255, 255)
	for _, dx := range []float64{-0.75, 0, 0.75} {
		for _, dy := range []float64{-0.75, 0, 0.75} {
			if dx == 0 && dy == 0 {
				continue
			}
			pdf.Text(x+dx, y+dy, name)
		}
	}
	pdf.SetTextColor(polygonColor[0], polygonColor[1], polygonColor[2])
	pdf.Text(x, y, name)
}

func drawLeader(pdf *gofpdf.Fpdf, b *Badge) {
	from, to := b.Leader()

	pdf.SetLineWidth(0.75)
	pdf.SetAlpha(leaderShadowAlpha, "Normal")
	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(from.X+leaderShadowOffset, from.Y-leaderShadowOffset,
		to.X+leaderShadowOffset, to.Y-leaderShadowOffset)
	pdf.SetFillColor(0, 0, 0)
	pdf.Circle(from.X+leaderShadowOffset, from.Y-leaderShadowOffset, centroidDotRadius, "F")
	pdf.SetAlpha(1, "Normal")

	pdf.SetDrawColor(slateDark[0], slateDark[1], slateDark[2])
	pdf.Line(from.X, from.Y, to.X, to.Y)
	pdf.SetFillColor(slateDark[0], slateDark[1], slateDark[2])
	pdf.Circle(from.X, from.Y, centroidDotRadius, "F")
}

// drawBadge renders the stacked sections: icon row, then the optional
// asset tag, vendor and model, and optional serial.
func drawBadge(pdf *gofpdf.Fpdf, b *Badge) {
	d := b.Device
	r := b.Rect

	type section struct {
		text string
		h    float64
	}
	sections := []section{{iconTitle(d), badgeIconRow}}
	if d.AssetTag != "" {
		sections = append(sections, section{d.AssetTag, badgeRowHeight})
	}
	sections = append(sections, section{strings.TrimSpace(d.Vendor + " " + d.Model), badgeRowHeight})
	if d.Serial != "" {
		sections = append(sections, section{d.Serial, badgeRowHeight})
	}

	y := r.Y
	for i, sec := range sections {
		bg := slateDark
		if i%2 == 1 {
			bg = slateLight
		}
		pdf.SetFillColor(bg[0], bg[1], bg[2])
		pdf.Rect(r.X, y, r.W, sec.h, "F")

		textX := r.X + 4
		if i == 0 {
			// Icon cell on the left of the first row.
			icon := iconColors[d.DeviceType]
			pdf.SetFillColor(icon[0], icon[1], icon[2])
			pdf.Rect(r.X, y, badgeIconRow, sec.h, "F")
			pdf.SetFont("Helvetica", "B", 8)
			pdf.SetTextColor(255, 255, 255)
			pdf.Text(r.X+badgeIconRow/2-pdf.GetStringWidth(iconGlyphs[d.DeviceType])/2,
				y+sec.h/2+2.8, iconGlyphs[d.DeviceType])
			textX = r.X + badgeIconRow + 4
		}

		pdf.SetFont("Helvetica", "", 7)
		pdf.SetTextColor(0xe2, 0xe8, 0xf0)
		pdf.Text(textX, y+sec.h/2+2.4, sec.text)

		if i > 0 {
			pdf.SetDrawColor(0x0f, 0x17, 0x2a)
			pdf.SetLineWidth(0.5)
			pdf.Line(r.X, y, r.X+r.W, y)
		}
		y += sec.h
	}
}

func iconTitle(d models.Device) string {
	if d.Hostname != "" {
		return d.Hostname
	}
	if d.IP != "" {
		return d.IP
	}
	return d.PrimaryMAC
}
