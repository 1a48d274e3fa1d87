// Package pdftext extracts plain text from uploaded PDF files.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"

	rpdf "rsc.io/pdf"
)

// ErrNoText is returned when a PDF parses but contains no extractable text,
// e.g. a scanned document.
var ErrNoText = errors.New("pdf contains no extractable text")

// Document is the extracted text of a PDF.
type Document struct {
	Pages []string
}

// Text joins all pages separated by blank lines.
func (d Document) Text() string {
	return strings.Join(d.Pages, "\n\n")
}

// ExtractBytes parses an in-memory PDF.
func ExtractBytes(data []byte) (Document, error) {
	return Extract(bytes.NewReader(data), int64(len(data)))
}

// Extract reads every page of the PDF. Pages that fail to decode are logged and
// skipped; the call fails only when the document cannot be opened or yields no
// text at all.
func Extract(r io.ReaderAt, size int64) (doc Document, err error) {
	// rsc.io/pdf reports malformed structure by panicking.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("read pdf: %v", p)
		}
	}()
	rd, err := rpdf.NewReader(r, size)
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}
	n := rd.NumPage()
	total := 0
	for i := 1; i <= n; i++ {
		text, perr := pageText(rd.Page(i))
		if perr != nil {
			slog.Warn("skipping unreadable pdf page", "page", i, "error", perr)
			text = ""
		}
		total += len(strings.TrimSpace(text))
		doc.Pages = append(doc.Pages, text)
	}
	if total == 0 {
		return Document{}, ErrNoText
	}
	return doc, nil
}

func pageText(p rpdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode page content: %v", r)
		}
	}()
	if p.V.IsNull() {
		return "", nil
	}
	return layout(p.Content().Text), nil
}

// layout orders glyph runs top to bottom, left to right and joins them into lines.
func layout(runs []rpdf.Text) string {
	if len(runs) == 0 {
		return ""
	}
	sorted := append([]rpdf.Text(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > lineTolerance(sorted[i]) {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var sb strings.Builder
	prev := sorted[0]
	sb.WriteString(prev.S)
	for _, t := range sorted[1:] {
		switch {
		case math.Abs(t.Y-prev.Y) > lineTolerance(prev):
			sb.WriteByte('\n')
		case t.X-(prev.X+prev.W) > prev.FontSize*0.2:
			sb.WriteByte(' ')
		}
		sb.WriteString(t.S)
		prev = t
	}
	return sb.String()
}

func lineTolerance(t rpdf.Text) float64 {
	if t.FontSize > 0 {
		return t.FontSize / 2
	}
	return 2
}

// Excerpt returns at most n runes of text, trimmed of surrounding whitespace.
func Excerpt(text string, n int) string {
	text = strings.TrimSpace(text)
	if n <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}
