// Package export serializes finished question sets as JSON, PDF, XLSX,
// statistics JSON and a ZIP bundle of all of them.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/examgen/internal/fonts"
	"github.com/pavelanni/examgen/internal/metrics"
	"github.com/pavelanni/examgen/internal/model"
)

// Format names a downloadable export.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatJSON  Format = "json"
	FormatXLSX  Format = "xlsx"
	FormatStats Format = "stats"
	FormatZIP   Format = "zip"
)

// ParseFormat validates a format name from a URL.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatPDF, FormatJSON, FormatXLSX, FormatStats, FormatZIP:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatJSON, FormatStats:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatZIP:
		return "application/zip"
	}
	return "application/octet-stream"
}

// Timestamp formats t the way export file names expect.
func Timestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// FileName returns the timestamped name of an export file.
func FileName(f Format, at time.Time) string {
	ts := Timestamp(at)
	switch f {
	case FormatStats:
		return "BA_question_stats_" + ts + ".json"
	case FormatZIP:
		return "BA_questions_" + ts + ".zip"
	default:
		return "BA_questions_" + ts + "." + string(f)
	}
}

// File is one generated export file.
type File struct {
	Name   string
	Format Format
	Data   []byte
}

// Bundle is the set of export files plus the ZIP that contains them.
type Bundle struct {
	Files    []File
	Warnings []string
	ZIP      []byte
}

// Options configures Build.
type Options struct {
	// Font is used for the PDF. FontErr, if set, is reported as a warning.
	Font    *fonts.Set
	FontErr error
	Metrics *metrics.Metrics
	At      time.Time
}

// Render produces a single format.
func Render(ctx context.Context, f Format, res model.Result, opts Options) ([]byte, error) {
	at := opts.At
	if at.IsZero() {
		at = time.Now()
	}
	var buf bytes.Buffer
	var err error
	switch f {
	case FormatJSON:
		err = WriteJSON(&buf, res, at)
	case FormatPDF:
		err = WritePDF(ctx, &buf, res, opts.Font, at)
	case FormatXLSX:
		err = WriteXLSX(ctx, &buf, res)
	case FormatStats:
		err = WriteStatistics(&buf, ComputeStatistics(res, at))
	case FormatZIP:
		var b *Bundle
		b, err = Build(ctx, res, opts)
		if err == nil {
			return b.ZIP, nil
		}
	default:
		err = fmt.Errorf("unknown export format %q", f)
	}
	if f != FormatZIP {
		opts.Metrics.Export(string(f), err)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Build produces every format and zips them. PDF and XLSX failures become
// warnings so the other formats are still delivered; a JSON, statistics or
// ZIP failure is returned as an error.
func Build(ctx context.Context, res model.Result, opts Options) (*Bundle, error) {
	if opts.At.IsZero() {
		opts.At = time.Now()
	}
	b := &Bundle{}
	if opts.FontErr != nil {
		b.Warnings = append(b.Warnings, fmt.Sprintf("font: %v; using %s", opts.FontErr, fontName(opts.Font)))
	}
	for _, f := range []Format{FormatJSON, FormatPDF, FormatXLSX, FormatStats} {
		data, err := Render(ctx, f, res, opts)
		if err != nil {
			if f == FormatPDF || f == FormatXLSX {
				slog.Warn("export format failed, continuing without it", "format", f, "error", err)
				b.Warnings = append(b.Warnings, fmt.Sprintf("%s: %v", f, err))
				continue
			}
			return nil, fmt.Errorf("export %s: %w", f, err)
		}
		b.Files = append(b.Files, File{Name: FileName(f, opts.At), Format: f, Data: data})
	}

	zipped, err := zipFiles(b.Files)
	opts.Metrics.Export(string(FormatZIP), err)
	if err != nil {
		return nil, err
	}
	b.ZIP = zipped
	return b, nil
}

func fontName(f *fonts.Set) string {
	if f == nil {
		return fonts.FallbackName
	}
	return f.Name
}

func zipFiles(files []File) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("zip %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}
