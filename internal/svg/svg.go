// Package svg is a small, self-contained SVG document builder used by
// the map renderer. It supports exactly the primitives the renderer
// needs (circles, polylines, text) and nothing else.
package svg

import (
	"fmt"
	"io"
	"strings"
)

// Point is a location in the SVG coordinate plane.
type Point struct {
	X, Y float64
}

// StrokeLineCap is the svg stroke-linecap attribute.
type StrokeLineCap int

const (
	StrokeLineCapButt StrokeLineCap = iota
	StrokeLineCapRound
	StrokeLineCapSquare
)

func (c StrokeLineCap) String() string {
	switch c {
	case StrokeLineCapButt:
		return "butt"
	case StrokeLineCapRound:
		return "round"
	case StrokeLineCapSquare:
		return "square"
	default:
		return "butt"
	}
}

// StrokeLineJoin is the svg stroke-linejoin attribute.
type StrokeLineJoin int

const (
	StrokeLineJoinArcs StrokeLineJoin = iota
	StrokeLineJoinBevel
	StrokeLineJoinMiter
	StrokeLineJoinMiterClip
	StrokeLineJoinRound
)

func (j StrokeLineJoin) String() string {
	switch j {
	case StrokeLineJoinArcs:
		return "arcs"
	case StrokeLineJoinBevel:
		return "bevel"
	case StrokeLineJoinMiter:
		return "miter"
	case StrokeLineJoinMiterClip:
		return "miter-clip"
	case StrokeLineJoinRound:
		return "round"
	default:
		return "miter"
	}
}

// colorKind tags which alternative a Color holds.
type colorKind int

const (
	colorNone colorKind = iota
	colorName
	colorRGB
	colorRGBA
)

// Color is a sum type over the four ways a stroke or fill color can be
// expressed: unset, a named CSS color, an opaque RGB triple, or a
// translucent RGBA quad.
type Color struct {
	kind    colorKind
	name    string
	r, g, b uint8
	a       float64
}

// NoneColor returns the "none" color.
func NoneColor() Color { return Color{kind: colorNone} }

// NamedColor wraps a CSS color name (e.g. "red", "black").
func NamedColor(name string) Color { return Color{kind: colorName, name: name} }

// RGB wraps an opaque 8-bit RGB triple.
func RGB(r, g, b uint8) Color { return Color{kind: colorRGB, r: r, g: g, b: b} }

// RGBA wraps an 8-bit RGB triple with an opacity in [0,1].
func RGBA(r, g, b uint8, a float64) Color { return Color{kind: colorRGBA, r: r, g: g, b: b, a: a} }

// IsSet reports whether c is anything other than the unset zero value.
// The zero Color renders as "none", same as NoneColor.
func (c Color) IsSet() bool { return c.kind != colorNone }

func (c Color) String() string {
	switch c.kind {
	case colorNone:
		return "none"
	case colorName:
		return c.name
	case colorRGB:
		return fmt.Sprintf("rgb(%d,%d,%d)", c.r, c.g, c.b)
	case colorRGBA:
		return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.r, c.g, c.b, formatOpacity(c.a))
	default:
		return "none"
	}
}

func formatOpacity(a float64) string {
	s := fmt.Sprintf("%g", a)
	return s
}

// pathProps holds the fill/stroke attributes shared by every drawable
// primitive. Concrete primitives embed it and expose chained setters
// under their own return type.
type pathProps struct {
	fill        Color
	stroke      Color
	strokeWidth float64
	hasWidth    bool
	lineCap     StrokeLineCap
	hasLineCap  bool
	lineJoin    StrokeLineJoin
	hasLineJoin bool
}

func (p *pathProps) renderAttrs(w io.Writer) {
	if p.fill.IsSet() {
		fmt.Fprintf(w, " fill=\"%s\"", p.fill)
	}
	if p.stroke.IsSet() {
		fmt.Fprintf(w, " stroke=\"%s\"", p.stroke)
	}
	if p.hasWidth {
		fmt.Fprintf(w, " stroke-width=\"%g\"", p.strokeWidth)
	}
	if p.hasLineCap {
		fmt.Fprintf(w, " stroke-linecap=\"%s\"", p.lineCap)
	}
	if p.hasLineJoin {
		fmt.Fprintf(w, " stroke-linejoin=\"%s\"", p.lineJoin)
	}
}

// Object is a single element of an SVG document.
type Object interface {
	render(w io.Writer)
}

// Circle is an <circle> element.
type Circle struct {
	pathProps
	center Point
	radius float64
}

// NewCircle returns a circle with radius 0 at the origin.
func NewCircle() *Circle { return &Circle{} }

func (c *Circle) SetCenter(p Point) *Circle      { c.center = p; return c }
func (c *Circle) SetRadius(r float64) *Circle    { c.radius = r; return c }
func (c *Circle) SetFill(col Color) *Circle      { c.fill = col; return c }
func (c *Circle) SetStroke(col Color) *Circle    { c.stroke = col; return c }
func (c *Circle) SetStrokeWidth(w float64) *Circle {
	c.strokeWidth = w
	c.hasWidth = true
	return c
}
func (c *Circle) SetStrokeLineCap(cap StrokeLineCap) *Circle {
	c.lineCap = cap
	c.hasLineCap = true
	return c
}
func (c *Circle) SetStrokeLineJoin(j StrokeLineJoin) *Circle {
	c.lineJoin = j
	c.hasLineJoin = true
	return c
}

func (c *Circle) render(w io.Writer) {
	fmt.Fprintf(w, "<circle cx=\"%g\" cy=\"%g\" r=\"%g\"", c.center.X, c.center.Y, c.radius)
	c.renderAttrs(w)
	io.WriteString(w, "/>")
}

// Polyline is a <polyline> element.
type Polyline struct {
	pathProps
	points []Point
}

// NewPolyline returns an empty polyline.
func NewPolyline() *Polyline { return &Polyline{} }

func (p *Polyline) AddPoint(pt Point) *Polyline { p.points = append(p.points, pt); return p }
func (p *Polyline) SetFill(col Color) *Polyline   { p.fill = col; return p }
func (p *Polyline) SetStroke(col Color) *Polyline { p.stroke = col; return p }
func (p *Polyline) SetStrokeWidth(w float64) *Polyline {
	p.strokeWidth = w
	p.hasWidth = true
	return p
}
func (p *Polyline) SetStrokeLineCap(cap StrokeLineCap) *Polyline {
	p.lineCap = cap
	p.hasLineCap = true
	return p
}
func (p *Polyline) SetStrokeLineJoin(j StrokeLineJoin) *Polyline {
	p.lineJoin = j
	p.hasLineJoin = true
	return p
}

func (p *Polyline) render(w io.Writer) {
	io.WriteString(w, "<polyline points=\"")
	for i, pt := range p.points {
		if i != 0 {
			io.WriteString(w, " ")
		}
		fmt.Fprintf(w, "%g,%g", pt.X, pt.Y)
	}
	io.WriteString(w, "\"")
	p.renderAttrs(w)
	io.WriteString(w, "/>")
}

// Text is a <text> element.
type Text struct {
	pathProps
	pos        Point
	offset     Point
	fontSize   uint32
	fontFamily string
	fontWeight string
	data       string
}

// NewText returns a text element with the default font size of 1.
func NewText() *Text { return &Text{fontSize: 1} }

func (t *Text) SetPosition(p Point) *Text        { t.pos = p; return t }
func (t *Text) SetOffset(p Point) *Text          { t.offset = p; return t }
func (t *Text) SetFontSize(size uint32) *Text    { t.fontSize = size; return t }
func (t *Text) SetFontFamily(family string) *Text { t.fontFamily = family; return t }
func (t *Text) SetFontWeight(weight string) *Text { t.fontWeight = weight; return t }
func (t *Text) SetData(data string) *Text        { t.data = data; return t }
func (t *Text) SetFill(col Color) *Text          { t.fill = col; return t }
func (t *Text) SetStroke(col Color) *Text        { t.stroke = col; return t }
func (t *Text) SetStrokeWidth(w float64) *Text {
	t.strokeWidth = w
	t.hasWidth = true
	return t
}
func (t *Text) SetStrokeLineCap(cap StrokeLineCap) *Text {
	t.lineCap = cap
	t.hasLineCap = true
	return t
}
func (t *Text) SetStrokeLineJoin(j StrokeLineJoin) *Text {
	t.lineJoin = j
	t.hasLineJoin = true
	return t
}

func (t *Text) render(w io.Writer) {
	fmt.Fprintf(w, "<text x=\"%g\" y=\"%g\" dx=\"%g\" dy=\"%g\" font-size=\"%d\"",
		t.pos.X, t.pos.Y, t.offset.X, t.offset.Y, t.fontSize)
	if t.fontFamily != "" {
		fmt.Fprintf(w, " font-family=\"%s\"", t.fontFamily)
	}
	if t.fontWeight != "" {
		fmt.Fprintf(w, " font-weight=\"%s\"", t.fontWeight)
	}
	t.renderAttrs(w)
	io.WriteString(w, ">")
	io.WriteString(w, escapeText(t.data))
	io.WriteString(w, "</text>")
}

func escapeText(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString("&quot;")
		case '\'':
			sb.WriteString("&apos;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '&':
			sb.WriteString("&amp;")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Document is an ordered collection of SVG objects rendered as a
// single <svg> root.
type Document struct {
	objects []Object
}

// NewDocument returns an empty document.
func NewDocument() *Document { return &Document{} }

// Add appends obj to the document's render order.
func (d *Document) Add(obj Object) {
	d.objects = append(d.objects, obj)
}

// Render writes the XML prologue, the svg root, every added object in
// order, and the closing tag.
func (d *Document) Render(w io.Writer) error {
	if _, err := io.WriteString(w, "<?xml version=\"1.0\" encoding=\"UTF-8\" ?>\n"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\">\n"); err != nil {
		return err
	}
	for _, obj := range d.objects {
		obj.render(w)
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</svg>")
	return err
}

// RenderString is a convenience wrapper around Render for callers that
// want the document as an in-memory string (the Map reply embeds the
// rendered SVG as a JSON string field).
func (d *Document) RenderString() string {
	var sb strings.Builder
	_ = d.Render(&sb)
	return sb.String()
}
