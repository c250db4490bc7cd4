// Package mapview projects a catalogue's stops onto a flat canvas and
// renders the route network as an SVG document.
package mapview

import (
	"math"
	"sort"

	"github.com/antigravity/transitcat/internal/catalogue"
	"github.com/antigravity/transitcat/internal/geo"
	"github.com/antigravity/transitcat/internal/svg"
)

const projectorEpsilon = 1e-6

func isZero(v float64) bool { return math.Abs(v) < projectorEpsilon }

// Projector maps geographic coordinates onto a padded rectangular
// canvas, fitting the extremes of a fixed point set exactly to its
// edges.
type Projector struct {
	padding float64
	minLng  float64
	maxLat  float64
	zoom    float64
}

// NewProjector builds a Projector that fits every coordinate in
// points into a canvas of the given size and padding. An empty points
// set yields the zero Projector, which maps every coordinate to the
// origin.
func NewProjector(points []geo.Coordinates, width, height, padding float64) Projector {
	if len(points) == 0 {
		return Projector{}
	}

	minLng, maxLng := points[0].Lng, points[0].Lng
	minLat, maxLat := points[0].Lat, points[0].Lat
	for _, p := range points[1:] {
		minLng = math.Min(minLng, p.Lng)
		maxLng = math.Max(maxLng, p.Lng)
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
	}

	var widthZoom, heightZoom float64
	haveWidthZoom, haveHeightZoom := false, false
	if !isZero(maxLng - minLng) {
		widthZoom = (width - 2*padding) / (maxLng - minLng)
		haveWidthZoom = true
	}
	if !isZero(maxLat - minLat) {
		heightZoom = (height - 2*padding) / (maxLat - minLat)
		haveHeightZoom = true
	}

	zoom := 0.0
	switch {
	case haveWidthZoom && haveHeightZoom:
		zoom = math.Min(widthZoom, heightZoom)
	case haveWidthZoom:
		zoom = widthZoom
	case haveHeightZoom:
		zoom = heightZoom
	}

	return Projector{padding: padding, minLng: minLng, maxLat: maxLat, zoom: zoom}
}

// Project maps a single coordinate onto the canvas.
func (p Projector) Project(c geo.Coordinates) svg.Point {
	return svg.Point{
		X: (c.Lng-p.minLng)*p.zoom + p.padding,
		Y: (p.maxLat-c.Lat)*p.zoom + p.padding,
	}
}

// Settings configures the renderer's canvas size and visual style. It
// mirrors the render_settings request object: color_palette, fonts,
// offsets, stroke widths.
type Settings struct {
	Width             float64
	Height            float64
	Padding           float64
	LineWidth         float64
	StopRadius        float64
	BusLabelFontSize  int
	BusLabelOffset    svg.Point
	StopLabelFontSize int
	StopLabelOffset   svg.Point
	UnderlayerColor   svg.Color
	UnderlayerWidth   float64
	ColorPalette      []svg.Color
}

// Renderer draws a catalogue's bus network as an SVG document.
type Renderer struct {
	settings Settings
}

// New returns a Renderer configured with settings.
func New(settings Settings) *Renderer {
	return &Renderer{settings: settings}
}

// paletteCycle advances through settings.ColorPalette, wrapping at the
// end. It is shared between the route-line layer and the route-label
// layer so both stay synchronized, per the renderer's stated
// invariant that the two layers must agree on which color a bus gets.
type paletteCycle struct {
	palette []svg.Color
	idx     int
}

func newPaletteCycle(palette []svg.Color) *paletteCycle {
	return &paletteCycle{palette: palette}
}

func (p *paletteCycle) next() svg.Color {
	if len(p.palette) == 0 {
		return svg.NoneColor()
	}
	c := p.palette[p.idx%len(p.palette)]
	p.idx++
	return c
}

// Render draws the route network for every bus in cat, in the four
// layers described by the renderer design: route lines, route labels,
// stop symbols, stop labels.
func (r *Renderer) Render(cat *catalogue.Catalogue) *svg.Document {
	doc := svg.NewDocument()

	buses := nonEmptyBusesByName(cat)
	stops := stopsOf(cat, buses)

	points := make([]geo.Coordinates, len(stops))
	for i, s := range stops {
		points[i] = s.Coordinates
	}
	projector := NewProjector(points, r.settings.Width, r.settings.Height, r.settings.Padding)

	r.renderLines(doc, cat, buses, projector)
	r.renderBusLabels(doc, cat, buses, projector)
	r.renderStopSymbols(doc, stops, projector)
	r.renderStopLabels(doc, stops, projector)

	return doc
}

func nonEmptyBusesByName(cat *catalogue.Catalogue) []*catalogue.Bus {
	all := cat.AllBuses()
	var result []*catalogue.Bus
	for i := range all {
		if len(all[i].Stops) > 0 {
			result = append(result, &all[i])
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func stopsOf(cat *catalogue.Catalogue, buses []*catalogue.Bus) []catalogue.Stop {
	seen := make(map[string]catalogue.Stop)
	for _, bus := range buses {
		for _, sid := range bus.Stops {
			s := cat.Stop(sid)
			seen[s.Name] = *s
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	result := make([]catalogue.Stop, len(names))
	for i, n := range names {
		result[i] = seen[n]
	}
	return result
}

func (r *Renderer) renderLines(doc *svg.Document, cat *catalogue.Catalogue, buses []*catalogue.Bus, projector Projector) {
	colors := newPaletteCycle(r.settings.ColorPalette)
	for _, bus := range buses {
		color := colors.next()
		line := svg.NewPolyline().
			SetStroke(color).
			SetFill(svg.NoneColor()).
			SetStrokeWidth(r.settings.LineWidth).
			SetStrokeLineCap(svg.StrokeLineCapRound).
			SetStrokeLineJoin(svg.StrokeLineJoinRound)
		for _, sid := range bus.Stops {
			line.AddPoint(projector.Project(cat.Stop(sid).Coordinates))
		}
		doc.Add(line)
	}
}

func (r *Renderer) busLabelBase(name string) *svg.Text {
	return svg.NewText().
		SetOffset(r.settings.BusLabelOffset).
		SetFontSize(uint32(r.settings.BusLabelFontSize)).
		SetFontFamily("Verdana").
		SetFontWeight("bold").
		SetData(name)
}

func (r *Renderer) stopLabelBase(name string) *svg.Text {
	return svg.NewText().
		SetOffset(r.settings.StopLabelOffset).
		SetFontSize(uint32(r.settings.StopLabelFontSize)).
		SetFontFamily("Verdana").
		SetData(name)
}

// addLabel draws an underlay/foreground text pair at point: first the
// underlayer copy (fill and stroke both underlayer_color), then the
// foreground copy in color.
func (r *Renderer) addLabel(doc *svg.Document, base *svg.Text, color svg.Color, point svg.Point) {
	doc.Add(cloneText(base).
		SetPosition(point).
		SetFill(r.settings.UnderlayerColor).
		SetStroke(r.settings.UnderlayerColor).
		SetStrokeWidth(r.settings.UnderlayerWidth).
		SetStrokeLineCap(svg.StrokeLineCapRound).
		SetStrokeLineJoin(svg.StrokeLineJoinRound))
	doc.Add(cloneText(base).
		SetPosition(point).
		SetFill(color))
}

func cloneText(t *svg.Text) *svg.Text {
	clone := *t
	return &clone
}

func (r *Renderer) renderBusLabels(doc *svg.Document, cat *catalogue.Catalogue, buses []*catalogue.Bus, projector Projector) {
	colors := newPaletteCycle(r.settings.ColorPalette)
	for _, bus := range buses {
		color := colors.next()
		base := r.busLabelBase(bus.Name)

		first := cat.Stop(bus.Stops[0])
		r.addLabel(doc, base, color, projector.Project(first.Coordinates))

		if !bus.IsRoundtrip {
			mid := cat.Stop(bus.Stops[len(bus.Stops)/2])
			if mid.Name != first.Name {
				r.addLabel(doc, base, color, projector.Project(mid.Coordinates))
			}
		}
	}
}

func (r *Renderer) renderStopSymbols(doc *svg.Document, stops []catalogue.Stop, projector Projector) {
	for _, s := range stops {
		doc.Add(svg.NewCircle().
			SetCenter(projector.Project(s.Coordinates)).
			SetRadius(r.settings.StopRadius).
			SetFill(svg.NamedColor("white")))
	}
}

func (r *Renderer) renderStopLabels(doc *svg.Document, stops []catalogue.Stop, projector Projector) {
	for _, s := range stops {
		base := r.stopLabelBase(s.Name)
		r.addLabel(doc, base, svg.NamedColor("black"), projector.Project(s.Coordinates))
	}
}
