package diagram

import "github.com/fogleman/gg"

func (r *Renderer) drawUML(s Spec) *gg.Context {
	items := make([]compartments, len(s.Classes))
	index := make(map[string]int, len(s.Classes))
	for i, c := range s.Classes {
		items[i] = compartments{name: c.Name, parts: [][]string{c.Attributes, c.Methods}}
		index[c.Name] = i
	}
	boxes, w, h := r.layoutGrid(items)
	dc, top := r.canvas(w, h, s.Title)
	for i := range boxes {
		boxes[i].y += top
	}
	var mids [][2]float64
	for _, a := range s.Associations {
		x, y := connect(dc, boxes[index[a.From]], boxes[index[a.To]], true)
		mids = append(mids, [2]float64{x, y})
	}
	for i, b := range boxes {
		r.drawCompartments(dc, b, items[i], [3]float64{1, 0.95, 0.8})
	}
	for i, a := range s.Associations {
		r.label(dc, a.Label, mids[i][0], mids[i][1])
	}
	return dc
}
