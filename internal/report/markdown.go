package report

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/nao1215/sitescout/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, designed for
// documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent,
// type-safe markdown generation with tables and GitHub-flavored
// markdown support.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writePages(md, report)
	w.writeDocuments(md, report)
	w.writeHiddenResources(md, report)
	w.writeLocales(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("SiteScout Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + report.Target + "`"},
			{"Scan Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().String()},
			{"Pages Fetched", strconv.Itoa(report.FetchedCount())},
			{"Pages Failed", strconv.Itoa(report.FailedCount())},
			{"Status", w.statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText returns the status cell based on report state.
func (w *MarkdownWriter) statusText(report *model.ScanReport) string {
	if report.TimedOut {
		return "⚠️ Cancelled (partial results)"
	}
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writePages writes the per-page crawl table.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.Pages) == 0 {
		return
	}

	md.H2("Crawled Pages")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Pages))
	for _, page := range report.Pages {
		outcome := page.Title
		if page.Error != "" {
			outcome = page.Error
		}
		rows = append(rows, []string{
			"`" + page.URL + "`",
			strconv.Itoa(page.Depth),
			strconv.Itoa(page.StatusCode),
			outcome,
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Status", "Title / Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeDocuments writes the discovered documents table.
func (w *MarkdownWriter) writeDocuments(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.Documents) == 0 {
		return
	}

	md.H2("Documents")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Documents))
	for _, doc := range report.Documents {
		rows = append(rows, []string{
			"`" + doc.URL + "`",
			doc.Extension,
			"`" + doc.SourcePage + "`",
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Type", "Found On"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeHiddenResources writes the brute-forced paths table.
func (w *MarkdownWriter) writeHiddenResources(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.HiddenResources) == 0 {
		return
	}

	md.H2("Hidden Resources")
	md.PlainText("")

	rows := make([][]string, 0, len(report.HiddenResources))
	for _, hr := range report.HiddenResources {
		rows = append(rows, []string{
			"`" + hr.URL + "`",
			strconv.Itoa(hr.StatusCode),
			hr.ContentType,
			strconv.FormatInt(hr.Size, 10),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Content Type", "Size"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeLocales writes the locale coverage table.
func (w *MarkdownWriter) writeLocales(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.Locales) == 0 {
		return
	}

	md.H2("Locales")
	md.PlainText("")

	locales := make([]string, 0, len(report.Locales))
	for locale := range report.Locales {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	rows := make([][]string, 0, len(locales))
	for _, locale := range locales {
		rows = append(rows, []string{
			locale,
			strconv.Itoa(len(report.Locales[locale])),
			"`" + strings.Join(report.Locales[locale], "`, `") + "`",
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Locale", "Pages", "URLs"},
		Rows:   rows,
	})
	md.PlainText("")
}
