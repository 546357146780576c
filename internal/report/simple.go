package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nao1215/sitescout/internal/model"
)

// SimpleWriter outputs reports in a human-readable text format for
// terminal display. This is the default output format.
type SimpleWriter struct {
	baseWriter
	showEmpty bool
	verbose   bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty includes sections even when they have no findings.
func WithShowEmpty() SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = true
	}
}

// WithVerboseOutput includes per-page metadata in the page listing.
func WithVerboseOutput() SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = true
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in simple text format.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writePages(&sb, report)
	w.writeDocuments(&sb, report)
	w.writeHiddenResources(&sb, report)
	w.writeLocales(&sb, report)

	return fmt.Fprint(w.output, sb.String())
}

// writeHeader writes the scan summary banner.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ScanReport) {
	fmt.Fprintf(sb, "Scan report for %s\n", report.Target)
	fmt.Fprintf(sb, "%s\n", strings.Repeat("=", len("Scan report for ")+len(report.Target)))
	fmt.Fprintf(sb, "Started:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration: %s\n", report.Duration())
	fmt.Fprintf(sb, "Fetched:  %d page(s), %d failed\n", report.FetchedCount(), report.FailedCount())

	switch {
	case report.TimedOut:
		sb.WriteString("Status:   cancelled, results are partial\n")
	case report.ErrorMessage != "":
		fmt.Fprintf(sb, "Status:   error: %s\n", report.ErrorMessage)
	default:
		sb.WriteString("Status:   complete\n")
	}
	sb.WriteString("\n")
}

// writePages writes the crawled page listing.
func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.ScanReport) {
	if len(report.Pages) == 0 && !w.showEmpty {
		return
	}

	fmt.Fprintf(sb, "Pages (%d):\n", len(report.Pages))
	for _, page := range report.Pages {
		marker := "+"
		if page.Error != "" {
			marker = "!"
		}
		fmt.Fprintf(sb, "  %s [%d] depth=%d %s\n", marker, page.StatusCode, page.Depth, page.URL)
		if page.Error != "" {
			fmt.Fprintf(sb, "      error: %s\n", page.Error)
		}
		if w.verbose {
			if page.Title != "" {
				fmt.Fprintf(sb, "      title: %s\n", page.Title)
			}
			if len(page.Links) > 0 {
				fmt.Fprintf(sb, "      links: %d\n", len(page.Links))
			}
		}
	}
	sb.WriteString("\n")
}

// writeDocuments writes the discovered document listing.
func (w *SimpleWriter) writeDocuments(sb *strings.Builder, report *model.ScanReport) {
	if len(report.Documents) == 0 && !w.showEmpty {
		return
	}

	fmt.Fprintf(sb, "Documents (%d):\n", len(report.Documents))
	for _, doc := range report.Documents {
		fmt.Fprintf(sb, "  %s %s (found on %s)\n", doc.Extension, doc.URL, doc.SourcePage)
	}
	sb.WriteString("\n")
}

// writeHiddenResources writes the brute-forced path listing.
func (w *SimpleWriter) writeHiddenResources(sb *strings.Builder, report *model.ScanReport) {
	if len(report.HiddenResources) == 0 && !w.showEmpty {
		return
	}

	fmt.Fprintf(sb, "Hidden resources (%d):\n", len(report.HiddenResources))
	for _, hr := range report.HiddenResources {
		fmt.Fprintf(sb, "  [%d] %s (%s, %d bytes)\n", hr.StatusCode, hr.URL, hr.ContentType, hr.Size)
	}
	sb.WriteString("\n")
}

// writeLocales writes the locale coverage listing.
func (w *SimpleWriter) writeLocales(sb *strings.Builder, report *model.ScanReport) {
	if len(report.Locales) == 0 && !w.showEmpty {
		return
	}

	locales := make([]string, 0, len(report.Locales))
	for locale := range report.Locales {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	fmt.Fprintf(sb, "Locales (%d):\n", len(locales))
	for _, locale := range locales {
		fmt.Fprintf(sb, "  %s: %d page(s)\n", locale, len(report.Locales[locale]))
	}
	sb.WriteString("\n")
}
