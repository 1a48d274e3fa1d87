package diagram

import "github.com/fogleman/gg"

// The mockup canvas is a fixed grid; component coordinates are grid units with
// y growing upwards.
const (
	mockupGridW = 10.0
	mockupGridH = 8.0
	mockupUnit  = 100.0
)

func (r *Renderer) drawMockup(s Spec) *gg.Context {
	w := mockupGridW * mockupUnit
	h := mockupGridH * mockupUnit
	dc, top := r.canvas(w, h, s.Title)
	origin := top - margin
	dc.SetRGB(0.96, 0.96, 0.96)
	dc.DrawRectangle(0, origin, w, h)
	dc.Fill()

	for _, c := range s.Components {
		x := c.X * mockupUnit
		y := origin + (mockupGridH-c.Y-c.Height)*mockupUnit
		cw, ch := c.Width*mockupUnit, c.Height*mockupUnit
		r.drawComponent(dc, c, x, y, cw, ch)
	}
	return dc
}

func (r *Renderer) drawComponent(dc *gg.Context, c Component, x, y, w, h float64) {
	midY := y + h/2
	switch c.Type {
	case ComponentLabel:
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(c.Text, x, midY, 0, 0.35)
	case ComponentInput:
		dc.SetRGB(1, 1, 1)
		dc.DrawRectangle(x, y, w, h)
		dc.FillPreserve()
		dc.SetRGB(0.5, 0.5, 0.5)
		dc.Stroke()
		text := c.Text
		dc.SetRGB(0.1, 0.1, 0.1)
		if text == "" {
			text = c.Placeholder
			dc.SetRGB(0.6, 0.6, 0.6)
		}
		dc.DrawStringAnchored(text, x+8, midY, 0, 0.35)
	case ComponentButton:
		dc.SetRGB(0.2, 0.45, 0.85)
		dc.DrawRoundedRectangle(x, y, w, h, 6)
		dc.Fill()
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(c.Text, x+w/2, midY, 0.5, 0.35)
	case ComponentCheckbox:
		side := min(h, 18)
		dc.SetRGB(1, 1, 1)
		dc.DrawRectangle(x, midY-side/2, side, side)
		dc.FillPreserve()
		dc.SetRGB(0.4, 0.4, 0.4)
		dc.Stroke()
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(c.Text, x+side+8, midY, 0, 0.35)
	case ComponentDropdown:
		dc.SetRGB(1, 1, 1)
		dc.DrawRectangle(x, y, w, h)
		dc.FillPreserve()
		dc.SetRGB(0.5, 0.5, 0.5)
		dc.Stroke()
		dc.SetRGB(0.1, 0.1, 0.1)
		text := c.Text
		if text == "" {
			text = c.Placeholder
		}
		dc.DrawStringAnchored(text, x+8, midY, 0, 0.35)
		// Caret.
		ax := x + w - 18
		dc.MoveTo(ax, midY-3)
		dc.LineTo(ax+10, midY-3)
		dc.LineTo(ax+5, midY+4)
		dc.ClosePath()
		dc.Fill()
	}
}
