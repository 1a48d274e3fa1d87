package diagram

import "github.com/fogleman/gg"

const (
	headerH = 28.0
	lineH   = 20.0
	gapX    = 90.0
	gapY    = 70.0
)

// compartments is a box with a header and zero or more lists of lines below it.
type compartments struct {
	name  string
	parts [][]string
}

func (c compartments) height() float64 {
	h := headerH
	for _, p := range c.parts {
		h += 8 + lineH*float64(max(len(p), 1))
	}
	return h
}

// layoutGrid places the boxes row by row and returns them with the canvas size.
func (r *Renderer) layoutGrid(items []compartments) ([]box, float64, float64) {
	cellW := 140.0
	for _, it := range items {
		lines := []string{it.name}
		for _, p := range it.parts {
			lines = append(lines, p...)
		}
		if w := r.widest(0, lines...) + 24; w > cellW {
			cellW = w
		}
	}
	cols := gridColumns(len(items))
	boxes := make([]box, len(items))
	y := 0.0
	for row := 0; row*cols < len(items); row++ {
		rowH := 0.0
		for col := 0; col < cols && row*cols+col < len(items); col++ {
			i := row*cols + col
			h := items[i].height()
			boxes[i] = box{x: margin + float64(col)*(cellW+gapX), y: y, w: cellW, h: h}
			rowH = max(rowH, h)
		}
		y += rowH + gapY
	}
	w := 2*margin + float64(cols)*cellW + float64(cols-1)*gapX
	h := y - gapY + 2*margin
	return boxes, w, h
}

func (r *Renderer) drawCompartments(dc *gg.Context, b box, c compartments, header [3]float64) {
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(b.x, b.y, b.w, b.h)
	dc.Fill()
	dc.SetRGB(header[0], header[1], header[2])
	dc.DrawRectangle(b.x, b.y, b.w, headerH)
	dc.Fill()
	dc.SetRGB(0.2, 0.2, 0.2)
	dc.DrawRectangle(b.x, b.y, b.w, b.h)
	dc.Stroke()
	dc.DrawStringAnchored(c.name, b.x+b.w/2, b.y+headerH/2, 0.5, 0.35)
	y := b.y + headerH
	for _, part := range c.parts {
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawLine(b.x, y, b.x+b.w, y)
		dc.Stroke()
		y += 4
		for _, line := range part {
			dc.DrawStringAnchored(line, b.x+10, y+lineH/2, 0, 0.35)
			y += lineH
		}
		if len(part) == 0 {
			y += lineH
		}
		y += 4
	}
}

func (r *Renderer) drawERD(s Spec) *gg.Context {
	items := make([]compartments, len(s.Entities))
	index := make(map[string]int, len(s.Entities))
	for i, e := range s.Entities {
		items[i] = compartments{name: e.Name, parts: [][]string{e.Attributes}}
		index[e.Name] = i
	}
	boxes, w, h := r.layoutGrid(items)
	dc, top := r.canvas(w, h, s.Title)
	for i := range boxes {
		boxes[i].y += top
	}
	type mid struct {
		x, y float64
		text string
	}
	var labels []mid
	for _, rel := range s.Relationships {
		x, y := connect(dc, boxes[index[rel.From]], boxes[index[rel.To]], false)
		labels = append(labels, mid{x, y, rel.Cardinality})
	}
	for i, b := range boxes {
		r.drawCompartments(dc, b, items[i], [3]float64{0.85, 0.92, 1})
	}
	for _, l := range labels {
		r.label(dc, l.text, l.x, l.y)
	}
	return dc
}
