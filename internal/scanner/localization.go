package scanner

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"github.com/nao1215/sitescout/internal/model"
)

// localePattern matches locale-looking path segments: a two-letter
// language code optionally followed by a region ("en", "de", "pt-br",
// "ru-RU", "zh_CN").
var localePattern = regexp.MustCompile(`^[a-z]{2}([-_][a-zA-Z]{2})?$`)

// Localizer groups crawled URLs by the locale code in their first path
// segment. Sites that publish translated sections under /en/, /de/ and
// so on reveal their language coverage this way.
type Localizer struct{}

// NewLocalizer creates a Localizer.
func NewLocalizer() *Localizer {
	return &Localizer{}
}

// Localize records every URL whose first path segment looks like a
// locale code into the report's locale map. The locale key is
// canonicalized to lower-case language and upper-case region.
func (l *Localizer) Localize(report *model.ScanReport) {
	for _, page := range report.Pages {
		locale, ok := localeOf(page.URL)
		if !ok {
			continue
		}
		report.AddLocale(locale, page.URL)
	}
}

// localeOf extracts a canonical locale code from a URL's first path
// segment, if it has one.
func localeOf(pageURL string) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", false
	}

	seg := segments[0]
	if !localePattern.MatchString(strings.ToLower(seg)) {
		return "", false
	}

	return canonicalLocale(seg), true
}

// canonicalLocale normalizes "pt-br" and "pt_BR" alike to "pt-BR".
func canonicalLocale(seg string) string {
	if tag, err := language.Parse(seg); err == nil {
		return tag.String()
	}

	// Well-formed but unknown codes keep the language/REGION shape.
	seg = strings.ReplaceAll(seg, "_", "-")
	parts := strings.SplitN(seg, "-", 2)
	lang := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return lang
	}
	return lang + "-" + strings.ToUpper(parts[1])
}
