package diagram

import "github.com/fogleman/gg"

const (
	stepH    = 50.0
	stepGap  = 45.0
	laneStep = 30.0
)

func (r *Renderer) drawFlowchart(s Spec) *gg.Context {
	nodeW := 160.0
	for _, st := range s.Steps {
		nodeW = max(nodeW, r.textWidth(st.Text)+50)
	}
	lanes := float64(len(s.Branches)) * laneStep
	w := 2*margin + nodeW + 40 + lanes
	h := 2*margin + float64(len(s.Steps))*stepH + float64(len(s.Steps)-1)*stepGap
	dc, top := r.canvas(w, h, s.Title)

	boxes := make([]box, len(s.Steps))
	byID := make(map[string]int)
	for i, st := range s.Steps {
		boxes[i] = box{x: margin, y: top + float64(i)*(stepH+stepGap), w: nodeW, h: stepH}
		if st.ID != "" {
			byID[st.ID] = i
		}
	}

	for i := 1; i < len(boxes); i++ {
		connect(dc, boxes[i-1], boxes[i], true)
	}
	// Branches route around the right side, one lane each.
	for bi, br := range s.Branches {
		from, to := boxes[byID[br.From]], boxes[byID[br.To]]
		_, fy := from.center()
		_, ty := to.center()
		laneX := margin + nodeW + 20 + float64(bi+1)*laneStep
		dc.SetRGB(0.25, 0.25, 0.25)
		dc.MoveTo(from.x+from.w, fy)
		dc.LineTo(laneX, fy)
		dc.LineTo(laneX, ty)
		dc.LineTo(to.x+to.w, ty)
		dc.Stroke()
		arrowHead(dc, laneX, ty, to.x+to.w, ty)
		r.label(dc, br.Label, laneX, (fy+ty)/2)
	}

	for i, st := range s.Steps {
		r.drawStep(dc, boxes[i], st)
	}
	return dc
}

func (r *Renderer) drawStep(dc *gg.Context, b box, st Step) {
	cx, cy := b.center()
	switch st.Type {
	case StepStart, StepEnd:
		dc.DrawRoundedRectangle(b.x, b.y, b.w, b.h, b.h/2)
		dc.SetRGB(0.85, 0.95, 0.85)
	case StepDecision:
		dc.MoveTo(cx, b.y)
		dc.LineTo(b.x+b.w, cy)
		dc.LineTo(cx, b.y+b.h)
		dc.LineTo(b.x, cy)
		dc.ClosePath()
		dc.SetRGB(1, 0.95, 0.8)
	case StepIO:
		const slant = 15.0
		dc.MoveTo(b.x+slant, b.y)
		dc.LineTo(b.x+b.w, b.y)
		dc.LineTo(b.x+b.w-slant, b.y+b.h)
		dc.LineTo(b.x, b.y+b.h)
		dc.ClosePath()
		dc.SetRGB(0.9, 0.9, 1)
	default:
		dc.DrawRectangle(b.x, b.y, b.w, b.h)
		dc.SetRGB(0.85, 0.92, 1)
	}
	dc.FillPreserve()
	dc.SetRGB(0.2, 0.2, 0.2)
	dc.Stroke()
	dc.DrawStringAnchored(st.Text, cx, cy, 0.5, 0.35)
}
