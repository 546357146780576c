package scanner

import (
	"testing"

	"github.com/nao1215/sitescout/internal/model"
)

// TestLocalizerLocalize tests locale detection from URL paths.
func TestLocalizerLocalize(t *testing.T) {
	t.Parallel()

	t.Run("groups pages by locale segment", func(t *testing.T) {
		t.Parallel()

		report := model.NewScanReport("https://example.com/")
		report.Pages = []model.PageInfo{
			{URL: "https://example.com/en/about"},
			{URL: "https://example.com/en/contact"},
			{URL: "https://example.com/de/ueber"},
			{URL: "https://example.com/pricing"},
		}

		NewLocalizer().Localize(report)

		if len(report.Locales) != 2 {
			t.Fatalf("expected 2 locales, got %d: %v", len(report.Locales), report.Locales)
		}
		if got := len(report.Locales["en"]); got != 2 {
			t.Errorf("expected 2 English pages, got %d", got)
		}
		if got := len(report.Locales["de"]); got != 1 {
			t.Errorf("expected 1 German page, got %d", got)
		}
	})

	t.Run("canonicalizes region variants", func(t *testing.T) {
		t.Parallel()

		report := model.NewScanReport("https://example.com/")
		report.Pages = []model.PageInfo{
			{URL: "https://example.com/pt-br/inicio"},
			{URL: "https://example.com/pt_BR/contato"},
			{URL: "https://example.com/zh_CN/index"},
		}

		NewLocalizer().Localize(report)

		if got := len(report.Locales["pt-BR"]); got != 2 {
			t.Errorf("expected both spellings under pt-BR, got %v", report.Locales)
		}
		if got := len(report.Locales["zh-CN"]); got != 1 {
			t.Errorf("expected zh-CN entry, got %v", report.Locales)
		}
	})

	t.Run("ignores non-locale segments", func(t *testing.T) {
		t.Parallel()

		report := model.NewScanReport("https://example.com/")
		report.Pages = []model.PageInfo{
			{URL: "https://example.com/api/v1"},
			{URL: "https://example.com/blog/post"},
			{URL: "https://example.com/"},
			{URL: "https://example.com/abc/page"},
		}

		NewLocalizer().Localize(report)

		if len(report.Locales) != 0 {
			t.Errorf("expected no locales, got %v", report.Locales)
		}
	})

	t.Run("deduplicates repeated URLs", func(t *testing.T) {
		t.Parallel()

		report := model.NewScanReport("https://example.com/")
		report.Pages = []model.PageInfo{
			{URL: "https://example.com/fr/accueil"},
			{URL: "https://example.com/fr/accueil"},
		}

		NewLocalizer().Localize(report)

		if got := len(report.Locales["fr"]); got != 1 {
			t.Errorf("expected deduplicated URL list, got %v", report.Locales["fr"])
		}
	})
}
