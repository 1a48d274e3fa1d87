package diagram

import "github.com/fogleman/gg"

const cellH = 30.0

func (r *Renderer) drawTable(s Spec) *gg.Context {
	widths := make([]float64, len(s.Columns))
	for i, col := range s.Columns {
		widths[i] = r.widest(60, col) + 20
		for _, row := range s.Rows {
			widths[i] = max(widths[i], r.textWidth(row[i])+20)
		}
	}
	total := 0.0
	for _, cw := range widths {
		total += cw
	}
	w := total + 2*margin
	h := float64(len(s.Rows)+1)*cellH + 2*margin
	dc, top := r.canvas(w, h, s.Title)

	dc.SetRGB(0.85, 0.92, 1)
	dc.DrawRectangle(margin, top, total, cellH)
	dc.Fill()

	drawRow := func(cells []string, y float64) {
		x := margin
		for i, cell := range cells {
			dc.SetRGB(0.1, 0.1, 0.1)
			dc.DrawStringAnchored(cell, x+10, y+cellH/2, 0, 0.35)
			x += widths[i]
		}
	}
	drawRow(s.Columns, top)
	for i, row := range s.Rows {
		drawRow(row, top+float64(i+1)*cellH)
	}

	// Grid lines.
	dc.SetRGB(0.3, 0.3, 0.3)
	dc.SetLineWidth(1)
	bottom := top + float64(len(s.Rows)+1)*cellH
	for i := 0; i <= len(s.Rows)+1; i++ {
		y := top + float64(i)*cellH
		dc.DrawLine(margin, y, margin+total, y)
	}
	x := margin
	dc.DrawLine(x, top, x, bottom)
	for _, cw := range widths {
		x += cw
		dc.DrawLine(x, top, x, bottom)
	}
	dc.Stroke()
	return dc
}
