package model

import (
	"encoding/json"
	"sort"
	"time"
)

// PageInfo is the per-page entry included in reports.
// It carries parsed metadata alongside the fetch outcome but drops the
// body, which would bloat serialized reports.
type PageInfo struct {
	// URL is the normalized page URL.
	URL string `json:"url"`

	// Depth is the crawl depth the page was fetched at.
	Depth int `json:"depth"`

	// StatusCode is the final HTTP status, 0 if no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Title is the HTML title, empty for non-HTML pages.
	Title string `json:"title,omitempty"`

	// ContentType is the response media type.
	ContentType string `json:"content_type,omitempty"`

	// Links are the outbound links extracted from the page.
	Links []string `json:"links,omitempty"`

	// Meta holds <meta> name/content pairs.
	Meta map[string]string `json:"meta,omitempty"`

	// Headings maps heading level (h1..h6) to heading texts.
	Headings map[string][]string `json:"headings,omitempty"`

	// Error is the terminal fetch error, empty on success.
	Error string `json:"error,omitempty"`
}

// Document is a downloadable document discovered during the crawl.
type Document struct {
	// URL is the document URL.
	URL string `json:"url"`

	// Extension is the lower-cased file extension including the dot.
	Extension string `json:"extension"`

	// SourcePage is the page the document was linked from.
	SourcePage string `json:"source_page"`
}

// HiddenResource is a path found by dictionary brute force that the
// crawl itself never discovered through links.
type HiddenResource struct {
	// URL is the probed URL.
	URL string `json:"url"`

	// StatusCode is the HTTP status the probe received.
	StatusCode int `json:"status_code"`

	// ContentType is the response media type, if any.
	ContentType string `json:"content_type,omitempty"`

	// Size is the response body length in bytes.
	Size int64 `json:"size,omitempty"`
}

// ScanReport is the aggregate result of scanning one target site.
// It is built up by pipeline steps: the crawl step fills Pages, and the
// analyzer steps append documents, hidden resources, and locales.
type ScanReport struct {
	// Target is the seed URL of the scan.
	Target string `json:"target"`

	// StartedAt and FinishedAt bound the scan duration.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Pages holds one entry per dispatched fetch, in depth order.
	Pages []PageInfo `json:"pages"`

	// Documents are downloadable documents found on crawled pages.
	Documents []Document `json:"documents,omitempty"`

	// HiddenResources are brute-forced paths that responded 2xx.
	HiddenResources []HiddenResource `json:"hidden_resources,omitempty"`

	// Locales maps a locale code (e.g. "en", "de", "ru-RU") to the URLs
	// living under that locale's path segment.
	Locales map[string][]string `json:"locales,omitempty"`

	// Results keeps the raw fetch results for analyzer steps.
	// Excluded from serialized reports.
	Results []*FetchResult `json:"-"`

	// TimedOut indicates the scan was cancelled before completion.
	TimedOut bool `json:"timed_out,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error holds the fatal error that aborted the scan, if any.
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// NewScanReport creates an empty report for the given target.
func NewScanReport(target string) *ScanReport {
	return &ScanReport{
		Target:    target,
		StartedAt: time.Now(),
		Pages:     make([]PageInfo, 0),
		Locales:   make(map[string][]string),
	}
}

// AddLocale records a URL under a locale code, keeping the URL list
// sorted and free of duplicates.
func (r *ScanReport) AddLocale(locale, url string) {
	urls := r.Locales[locale]
	for _, u := range urls {
		if u == url {
			return
		}
	}
	urls = append(urls, url)
	sort.Strings(urls)
	r.Locales[locale] = urls
}

// FetchedCount returns the number of pages fetched successfully.
func (r *ScanReport) FetchedCount() int {
	n := 0
	for _, p := range r.Pages {
		if p.Error == "" {
			n++
		}
	}
	return n
}

// FailedCount returns the number of pages with a terminal error.
func (r *ScanReport) FailedCount() int {
	return len(r.Pages) - r.FetchedCount()
}

// Duration returns the scan's wall-clock duration.
// Zero if the scan has not finished.
func (r *ScanReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// JSON serializes the report. When pretty is true the output is indented
// for human consumption.
func (r *ScanReport) JSON(pretty bool) ([]byte, error) {
	if r.Error != nil && r.ErrorMessage == "" {
		r.ErrorMessage = r.Error.Error()
	}
	if pretty {
		return json.MarshalIndent(r, "", "  ")
	}
	return json.Marshal(r)
}
