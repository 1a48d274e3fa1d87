package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/pavelanni/examgen/internal/fonts"
	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/model"
)

// Page geometry in millimetres.
const (
	pageMargin     = 25.4
	maxImageHeight = 5 * 25.4
	imageWidthFrac = 0.9
	answersPerPage = 8
	textPerPage    = 3
	fontFamily     = "body"
)

type pdfWriter struct {
	ctx  context.Context
	pdf  *fpdf.Fpdf
	res  model.Result
	cw   float64 // content width
	imgs map[string]string
}

// WritePDF renders the question set as an A4 document: title page, statistics,
// questions and an answer key.
func WritePDF(ctx context.Context, w io.Writer, res model.Result, font *fonts.Set, at time.Time) error {
	if font == nil {
		font = fonts.Fallback()
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddUTF8FontFromBytes(fontFamily, "", font.TTF)
	pdf.SetTitle(i18n.T(ctx, "PDFTitle"), true)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("load pdf font %s: %w", font.Name, err)
	}
	pageW, _ := pdf.GetPageSize()

	pw := &pdfWriter{
		ctx:  ctx,
		pdf:  pdf,
		res:  res,
		cw:   pageW - 2*pageMargin,
		imgs: make(map[string]string),
	}
	pw.titlePage(at)
	pw.statisticsPage(ComputeStatistics(res, at))
	pw.questions()
	pw.answerKey()

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (p *pdfWriter) font(size float64) {
	p.pdf.SetFont(fontFamily, "", size)
}

func (p *pdfWriter) para(size float64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	p.font(size)
	p.pdf.MultiCell(0, size*0.5, text, "", "L", false)
	p.pdf.Ln(1.5)
}

func (p *pdfWriter) heading(text string) {
	p.font(18)
	p.pdf.MultiCell(0, 10, text, "", "C", false)
	p.pdf.Ln(6)
}

func (p *pdfWriter) titlePage(at time.Time) {
	p.pdf.AddPage()
	p.pdf.Ln(60)
	p.font(24)
	p.pdf.MultiCell(0, 12, i18n.T(p.ctx, "PDFTitle"), "", "C", false)
	p.pdf.Ln(10)
	p.font(12)
	p.pdf.MultiCell(0, 7, i18n.Td(p.ctx, "PDFGeneratedAt", map[string]any{"Time": at.Format("2006-01-02 15:04")}), "", "C", false)
	p.pdf.MultiCell(0, 7, i18n.Tp(p.ctx, "PDFTotalQuestions", len(p.res.Questions)), "", "C", false)
}

func (p *pdfWriter) statisticsPage(s Statistics) {
	p.pdf.AddPage()
	p.heading(i18n.T(p.ctx, "StatsHeading"))

	section := func(title string, counts map[string]int, label func(string) string) {
		p.para(13, title)
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p.para(11, fmt.Sprintf("  • %s: %d", label(k), counts[k]))
		}
		p.pdf.Ln(3)
	}
	ident := func(s string) string { return s }
	section(i18n.T(p.ctx, "StatsByType"), s.ByType, func(k string) string { return TypeLabel(p.ctx, model.QuestionType(k)) })
	section(i18n.T(p.ctx, "StatsByDifficulty"), s.ByDifficulty, func(k string) string { return DifficultyLabel(p.ctx, model.Difficulty(k)) })
	section(i18n.T(p.ctx, "StatsBySubject"), s.BySubject, ident)
	p.para(13, i18n.T(p.ctx, "StatsVisuals"))
	p.para(11, "  • "+i18n.Td(p.ctx, "StatsVisualSummary", map[string]any{
		"Visual":  s.Visuals.Visual,
		"Text":    s.Visuals.Text,
		"Percent": strconv.FormatFloat(s.Visuals.Percent, 'f', 1, 64),
	}))
	for _, k := range sortedKeys(s.Visuals.ByKind) {
		p.para(11, fmt.Sprintf("  • %s: %d", strings.ToUpper(k), s.Visuals.ByKind[k]))
	}
	if s.Dropped > 0 {
		p.pdf.Ln(3)
		p.para(11, i18n.Td(p.ctx, "StatsDropped", map[string]any{"Dropped": s.Dropped, "Requested": s.Requested}))
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *pdfWriter) questions() {
	p.pdf.AddPage()
	p.heading(i18n.T(p.ctx, "QuestionsHeading"))
	onPage := 0
	for i, q := range p.res.Questions {
		p.question(i+1, q)
		onPage++
		last := i == len(p.res.Questions)-1
		if !last && (q.HasVisual() || onPage >= textPerPage) {
			p.pdf.AddPage()
			onPage = 0
		}
	}
}

func (p *pdfWriter) question(n int, q model.Question) {
	p.para(13, fmt.Sprintf("%d. %s", n, q.Title))
	info := []string{
		i18n.T(p.ctx, "LabelType") + ": " + TypeLabel(p.ctx, q.Type),
		i18n.T(p.ctx, "LabelDifficulty") + ": " + DifficultyLabel(p.ctx, q.Difficulty),
		i18n.Td(p.ctx, "LabelPoints", map[string]any{"Points": q.Points}),
	}
	if q.HasVisual() {
		info = append(info, i18n.T(p.ctx, "LabelVisual")+": "+strings.ToUpper(string(q.VisualKind)))
	}
	p.para(9, strings.Join(info, " | "))
	if q.SubjectArea != "" {
		p.para(9, i18n.T(p.ctx, "LabelSubject")+": "+q.SubjectArea)
	}
	if q.Scenario != "" {
		p.para(11, "["+i18n.T(p.ctx, "LabelScenario")+"] "+q.Scenario)
	}
	if q.HasVisual() {
		p.image(q)
	}
	p.para(11, q.Prompt)
	for i, c := range q.Choices {
		p.para(11, "   "+ChoiceMarker(i+1)+" "+c)
	}
	p.pdf.Ln(4)
}

func (p *pdfWriter) image(q model.Question) {
	art, ok := p.res.Visual(q.VisualID)
	if !ok {
		p.para(10, "["+i18n.T(p.ctx, "LabelVisual")+": "+strings.ToUpper(string(q.VisualKind))+"]")
		return
	}
	name, ok := p.imgs[art.ID]
	if !ok {
		name = "visual-" + art.ID
		p.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(art.PNG))
		p.imgs[art.ID] = name
	}
	info := p.pdf.GetImageInfo(name)
	if info == nil || info.Width() == 0 {
		return
	}
	w := p.cw * imageWidthFrac
	h := w * info.Height() / info.Width()
	if h > maxImageHeight {
		h = maxImageHeight
		w = h * info.Width() / info.Height()
	}
	_, pageH := p.pdf.GetPageSize()
	if p.pdf.GetY()+h > pageH-pageMargin {
		p.pdf.AddPage()
	}
	x := pageMargin + (p.cw-w)/2
	y := p.pdf.GetY()
	p.pdf.ImageOptions(name, x, y, w, h, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	p.pdf.SetY(y + h + 4)
}

func (p *pdfWriter) answerKey() {
	p.pdf.AddPage()
	p.heading(i18n.T(p.ctx, "AnswerKeyHeading"))
	for i, q := range p.res.Questions {
		if i > 0 && i%answersPerPage == 0 {
			p.pdf.AddPage()
		}
		p.para(12, fmt.Sprintf("%d. %s", i+1, q.Title))
		switch q.Type {
		case model.TypeMultipleChoice:
			answer := q.CorrectAnswer
			if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(q.Choices) {
				answer = ChoiceMarker(n) + " " + q.Choices[n-1]
			}
			p.para(10, i18n.T(p.ctx, "LabelAnswer")+": "+answer)
		case model.TypeShortAnswer:
			p.para(10, i18n.T(p.ctx, "LabelAnswer")+": "+q.CorrectAnswer)
			if len(q.AlternativeAnswers) > 0 {
				p.para(10, i18n.T(p.ctx, "LabelAlternatives")+": "+strings.Join(q.AlternativeAnswers, ", "))
			}
		case model.TypeEssay:
			p.para(10, i18n.T(p.ctx, "LabelModelAnswer")+": "+q.ModelAnswer)
			if len(q.GradingCriteria) > 0 {
				p.para(10, i18n.T(p.ctx, "LabelGradingCriteria")+":")
				for _, c := range q.GradingCriteria {
					p.para(10, "   - "+c)
				}
			}
		}
		if q.Explanation != "" {
			p.para(10, i18n.T(p.ctx, "LabelExplanation")+": "+q.Explanation)
		}
		p.pdf.Ln(3)
	}
}

// ChoiceMarker returns the circled digit for choices 1 to 10 and "n." beyond.
func ChoiceMarker(n int) string {
	if n >= 1 && n <= 10 {
		return string(rune('①' + n - 1))
	}
	return strconv.Itoa(n) + "."
}

// TypeLabel is the localized name of a question type.
func TypeLabel(ctx context.Context, t model.QuestionType) string {
	switch t {
	case model.TypeMultipleChoice:
		return i18n.T(ctx, "TypeMultipleChoice")
	case model.TypeShortAnswer:
		return i18n.T(ctx, "TypeShortAnswer")
	case model.TypeEssay:
		return i18n.T(ctx, "TypeEssay")
	}
	return string(t)
}

// DifficultyLabel is the localized name of a difficulty level.
func DifficultyLabel(ctx context.Context, d model.Difficulty) string {
	switch d {
	case model.DifficultyLow:
		return i18n.T(ctx, "DifficultyLow")
	case model.DifficultyMedium:
		return i18n.T(ctx, "DifficultyMedium")
	case model.DifficultyHigh:
		return i18n.T(ctx, "DifficultyHigh")
	}
	return string(d)
}
