// Package views renders the HTML pages of the web UI. The pages are templ
// components; run `templ generate` after editing a .templ file.
package views

import (
	"context"
	"encoding/base64"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/pavelanni/examgen/internal/config"
	"github.com/pavelanni/examgen/internal/diagram/bank"
	"github.com/pavelanni/examgen/internal/export"
	"github.com/pavelanni/examgen/internal/i18n"
	"github.com/pavelanni/examgen/internal/model"
	"github.com/pavelanni/examgen/internal/store"
)

// IndexData is shown on the start page.
type IndexData struct {
	Provider   string
	Model      string
	Configured bool
	Defaults   config.Defaults
	Runs       []store.RunSummary
	Busy       bool
	Error      string
}

// RunData is shown on the run page.
type RunData struct {
	Run      model.Run
	Stats    export.Statistics
	Progress model.Progress
}

// DemoData is shown on the diagram gallery page.
type DemoData struct {
	Templates []bank.Template
	Selected  string
	PNG       []byte
	Question  *model.Question
	Error     string
}

// StatusLabel is the localized name of a run status.
func StatusLabel(ctx context.Context, s model.RunStatus) string {
	switch s {
	case model.RunPending:
		return i18n.T(ctx, "StatusPending")
	case model.RunRunning:
		return i18n.T(ctx, "StatusRunning")
	case model.RunCompleted:
		return i18n.T(ctx, "StatusCompleted")
	case model.RunFailed:
		return i18n.T(ctx, "StatusFailed")
	}
	return string(s)
}

// basePath prefixes p with the base path of the request.
func basePath(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func link(ctx context.Context, p string) templ.SafeURL {
	return templ.URL(basePath(ctx, p))
}

func switchLanguage(ctx context.Context) templ.SafeURL {
	other := "ko"
	if i18n.LanguageFromContext(ctx) == "ko" {
		other = "en"
	}
	return templ.SafeURL("?lang=" + url.QueryEscape(other))
}

type option struct {
	Code string
	Name string
}

var outputLanguages = []option{{"ko", "한국어"}, {"en", "English"}}

type download struct {
	Format export.Format
	Label  string
}

var downloadFormats = []download{
	{export.FormatPDF, "DownloadPDF"},
	{export.FormatJSON, "DownloadJSON"},
	{export.FormatXLSX, "DownloadXLSX"},
	{export.FormatStats, "DownloadStats"},
	{export.FormatZIP, "DownloadZIP"},
}

type countRow struct {
	Label string
	Count int
}

// countRows sorts counts by key and labels each row.
func countRows(counts map[string]int, label func(string) string) []countRow {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]countRow, len(keys))
	for i, k := range keys {
		rows[i] = countRow{Label: label(k), Count: counts[k]}
	}
	return rows
}

func typeRows(ctx context.Context, counts map[string]int) []countRow {
	return countRows(counts, func(k string) string { return export.TypeLabel(ctx, model.QuestionType(k)) })
}

func difficultyRows(ctx context.Context, counts map[string]int) []countRow {
	return countRows(counts, func(k string) string { return export.DifficultyLabel(ctx, model.Difficulty(k)) })
}

func subjectRows(counts map[string]int) []countRow {
	return countRows(counts, func(k string) string { return k })
}

func progressPercent(p model.Progress) int {
	if p.Total <= 0 {
		return 0
	}
	return 100 * p.Done / p.Total
}

func progressLabel(ctx context.Context, p model.Progress) string {
	return i18n.Td(ctx, "ProgressLabel", map[string]any{"Done": p.Done, "Total": p.Total, "Dropped": p.Dropped})
}

func runHeadline(run model.Run) string {
	created := run.CreatedAt.Local().Format("2006-01-02 15:04")
	if run.Request.SourceName == "" {
		return created
	}
	return run.Request.SourceName + " · " + created
}

func droppedLabel(ctx context.Context, s export.Statistics) string {
	return i18n.Td(ctx, "StatsDropped", map[string]any{"Dropped": s.Dropped, "Requested": s.Requested})
}

func visualSummary(ctx context.Context, s export.Statistics) string {
	return i18n.Td(ctx, "StatsVisualSummary", map[string]any{
		"Visual":  s.Visuals.Visual,
		"Text":    s.Visuals.Text,
		"Percent": strconv.FormatFloat(s.Visuals.Percent, 'f', 1, 64),
	})
}

// visualURL is empty for questions without a figure.
func visualURL(ctx context.Context, runID string, q model.Question) templ.SafeURL {
	if !q.HasVisual() {
		return ""
	}
	return link(ctx, "/runs/"+runID+"/visuals/"+q.VisualID+".png")
}

func pngDataURL(png []byte) templ.SafeURL {
	if len(png) == 0 {
		return ""
	}
	return templ.SafeURL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}

func questionInfo(ctx context.Context, q model.Question) string {
	info := []string{
		export.TypeLabel(ctx, q.Type),
		export.DifficultyLabel(ctx, q.Difficulty),
		i18n.Td(ctx, "LabelPoints", map[string]any{"Points": q.Points}),
	}
	if q.SubjectArea != "" {
		info = append(info, q.SubjectArea)
	}
	return strings.Join(info, " | ")
}

// answerText spells out a multiple-choice answer with its marker and text.
func answerText(q model.Question) string {
	answer := q.Answer()
	if q.Type == model.TypeMultipleChoice {
		if i, err := strconv.Atoi(answer); err == nil && i >= 1 && i <= len(q.Choices) {
			return export.ChoiceMarker(i) + " " + q.Choices[i-1]
		}
	}
	return answer
}
