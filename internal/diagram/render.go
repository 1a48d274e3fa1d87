// Package diagram renders declarative diagram specs (ERD, UML class, flowchart,
// UI mockup, data table) to PNG.
//
// Rendering is a pure function of the spec and the font: the same inputs always
// produce byte-identical images.
package diagram

import (
	"bytes"
	"fmt"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/pavelanni/examgen/internal/fonts"
)

const (
	titleSize = 18
	textSize  = 13
	margin    = 40.0
)

// Renderer draws diagrams with a fixed font.
type Renderer struct {
	fonts *fonts.Set
	title font.Face
	text  font.Face
}

// NewRenderer returns a Renderer using fs. A nil set selects the embedded fallback font.
func NewRenderer(fs *fonts.Set) *Renderer {
	if fs == nil {
		fs = fonts.Fallback()
	}
	return &Renderer{
		fonts: fs,
		title: fs.Face(titleSize),
		text:  fs.Face(textSize),
	}
}

// Render validates the spec and returns the PNG encoding of the diagram.
func (r *Renderer) Render(s Spec) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var dc *gg.Context
	switch s.Kind {
	case KindERD:
		dc = r.drawERD(s)
	case KindUML:
		dc = r.drawUML(s)
	case KindFlowchart:
		dc = r.drawFlowchart(s)
	case KindUIMockup:
		dc = r.drawMockup(s)
	case KindTable:
		dc = r.drawTable(s)
	}
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode %s png: %w", s.Kind, err)
	}
	return buf.Bytes(), nil
}

// canvas returns a white context with room for the title, if any. The returned
// offset is where diagram content starts.
func (r *Renderer) canvas(w, h float64, title string) (*gg.Context, float64) {
	top := margin
	if title != "" {
		top += titleSize + 16
	}
	dc := gg.NewContext(int(math.Ceil(w)), int(math.Ceil(h+top-margin)))
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	if title != "" {
		dc.SetFontFace(r.title)
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(title, w/2, margin/2+titleSize/2, 0.5, 0.5)
	}
	dc.SetFontFace(r.text)
	dc.SetLineWidth(1.5)
	return dc, top
}

// textWidth measures s with the body face.
func (r *Renderer) textWidth(s string) float64 {
	w := font.MeasureString(r.text, s)
	return float64(w) / 64
}

func (r *Renderer) widest(min float64, lines ...string) float64 {
	w := min
	for _, l := range lines {
		if lw := r.textWidth(l); lw > w {
			w = lw
		}
	}
	return w
}

// box is a placed rectangle.
type box struct {
	x, y, w, h float64
}

func (b box) center() (float64, float64) { return b.x + b.w/2, b.y + b.h/2 }

// edgePoint returns where the segment from the box center towards (tx, ty)
// crosses the box border.
func (b box) edgePoint(tx, ty float64) (float64, float64) {
	cx, cy := b.center()
	dx, dy := tx-cx, ty-cy
	if dx == 0 && dy == 0 {
		return cx, cy
	}
	sx, sy := math.Inf(1), math.Inf(1)
	if dx != 0 {
		sx = (b.w / 2) / math.Abs(dx)
	}
	if dy != 0 {
		sy = (b.h / 2) / math.Abs(dy)
	}
	s := math.Min(sx, sy)
	return cx + dx*s, cy + dy*s
}

// connect draws a line between two boxes, optionally with an arrowhead at the
// target, and returns the midpoint.
func connect(dc *gg.Context, from, to box, arrow bool) (float64, float64) {
	tx, ty := to.center()
	fx, fy := from.center()
	x1, y1 := from.edgePoint(tx, ty)
	x2, y2 := to.edgePoint(fx, fy)
	dc.SetRGB(0.25, 0.25, 0.25)
	dc.DrawLine(x1, y1, x2, y2)
	dc.Stroke()
	if arrow {
		arrowHead(dc, x1, y1, x2, y2)
	}
	return (x1 + x2) / 2, (y1 + y2) / 2
}

func arrowHead(dc *gg.Context, x1, y1, x2, y2 float64) {
	const size = 9.0
	a := math.Atan2(y2-y1, x2-x1)
	dc.MoveTo(x2, y2)
	dc.LineTo(x2-size*math.Cos(a-math.Pi/7), y2-size*math.Sin(a-math.Pi/7))
	dc.LineTo(x2-size*math.Cos(a+math.Pi/7), y2-size*math.Sin(a+math.Pi/7))
	dc.ClosePath()
	dc.Fill()
}

// label draws text on a white backing so it stays readable over lines.
func (r *Renderer) label(dc *gg.Context, s string, x, y float64) {
	if s == "" {
		return
	}
	w := r.textWidth(s) + 8
	h := float64(textSize) + 6
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(x-w/2, y-h/2, w, h)
	dc.Fill()
	dc.SetRGB(0.1, 0.1, 0.5)
	dc.DrawStringAnchored(s, x, y, 0.5, 0.35)
}

// gridColumns picks a near-square layout for n boxes.
func gridColumns(n int) int {
	c := int(math.Ceil(math.Sqrt(float64(n))))
	if c < 1 {
		c = 1
	}
	return c
}
