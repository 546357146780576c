package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitescout/internal/model"
)

// sampleReport returns a finished report exercising every section.
func sampleReport() *model.ScanReport {
	report := model.NewScanReport("https://example.com/")
	report.StartedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(42 * time.Second)
	report.Pages = []model.PageInfo{
		{URL: "https://example.com/", Depth: 0, StatusCode: 200, Title: "Home"},
		{URL: "https://example.com/en/about", Depth: 1, StatusCode: 200, Title: "About"},
		{URL: "https://example.com/broken", Depth: 1, Error: "client error: status 404"},
	}
	report.Documents = []model.Document{
		{URL: "https://example.com/guide.pdf", Extension: ".pdf", SourcePage: "https://example.com/"},
	}
	report.HiddenResources = []model.HiddenResource{
		{URL: "https://example.com/admin", StatusCode: 200, ContentType: "text/html", Size: 128},
	}
	report.AddLocale("en", "https://example.com/en/about")
	return report
}

// TestJSONWriter tests JSON report output.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("produces valid JSON with report fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		n, err := w.Write(sampleReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}
		if !strings.HasSuffix(buf.String(), "\n") {
			t.Error("expected trailing newline")
		}

		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded["target"] != "https://example.com/" {
			t.Errorf("unexpected target %v", decoded["target"])
		}
		if pages, ok := decoded["pages"].([]any); !ok || len(pages) != 3 {
			t.Errorf("expected 3 pages in JSON, got %v", decoded["pages"])
		}
	})

	t.Run("pretty print indents output", func(t *testing.T) {
		t.Parallel()

		var compact, pretty bytes.Buffer
		if _, err := NewJSONWriter(&compact).Write(sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := NewJSONWriter(&pretty, WithPrettyPrint()).Write(sampleReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if pretty.Len() <= compact.Len() {
			t.Error("expected pretty output to be longer than compact")
		}
		if !strings.Contains(pretty.String(), "\n  ") {
			t.Error("expected indented lines in pretty output")
		}
	})

	t.Run("fatal error surfaces in JSON", func(t *testing.T) {
		t.Parallel()

		report := sampleReport()
		report.ErrorMessage = "seed unreachable"

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded["error"] != "seed unreachable" {
			t.Errorf("expected error field, got %v", decoded["error"])
		}
	})
}

// TestMultiWriter tests fan-out to multiple writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	mw := NewMultiWriter(NewJSONWriter(&a), NewSimpleWriter(&b))

	n, err := mw.Write(sampleReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Len() == 0 || b.Len() == 0 {
		t.Error("expected both writers to receive output")
	}
	if n != a.Len()+b.Len() {
		t.Errorf("expected total %d bytes, got %d", a.Len()+b.Len(), n)
	}
}
