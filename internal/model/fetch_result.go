package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

// ContentKind classifies a response body as text or binary.
//
// Design decision: We resolve the text-vs-binary question exactly once,
// in the fetcher, and record the answer here. Downstream consumers
// (link extraction, document discovery, reporting) switch on Kind
// instead of re-inspecting Content-Type headers.
type ContentKind int

const (
	// ContentNone means no body was received (fetch failed or was skipped).
	ContentNone ContentKind = iota

	// ContentText means the body was decoded as text (HTML, JSON, text/*).
	ContentText

	// ContentBinary means the body is kept as opaque bytes (PDF, images,
	// unknown content types).
	ContentBinary
)

// String returns the human-readable name of the content kind.
func (k ContentKind) String() string {
	switch k {
	case ContentText:
		return "text"
	case ContentBinary:
		return "binary"
	default:
		return "none"
	}
}

// MaxBodyKeep is the maximum number of body bytes retained on a
// FetchResult. Larger bodies are truncated after hashing.
const MaxBodyKeep = 5 * 1024 * 1024 // 5 MB

// FetchResult holds the outcome of one logical fetch: either a page body
// or the error that remained after all retries were exhausted.
// A FetchResult is immutable once returned by the fetcher and is safely
// shared by reference among consumers.
type FetchResult struct {
	// URL is the normalized URL that was fetched.
	URL string `json:"url"`

	// Depth is the crawl depth at which the URL was discovered.
	// The seed URL has depth 0.
	Depth int `json:"depth"`

	// StatusCode is the HTTP response status code, or 0 if the request
	// never received a response.
	StatusCode int `json:"status_code,omitempty"`

	// Headers contains the HTTP response headers.
	// Keys are in canonical form as produced by net/http.
	Headers http.Header `json:"headers,omitempty"`

	// ContentType is the media type from the Content-Type header,
	// without parameters.
	ContentType string `json:"content_type,omitempty"`

	// Kind records whether the body was decoded as text or kept binary.
	Kind ContentKind `json:"-"`

	// Text is the decoded body when Kind is ContentText.
	Text string `json:"-"`

	// Raw is the body bytes when Kind is ContentBinary.
	// Excluded from JSON to keep reports small.
	Raw []byte `json:"-"`

	// Hash is the SHA-256 hash of the body, for deduplication and
	// change detection. Empty when no body was received.
	Hash string `json:"hash,omitempty"`

	// FetchedAt is when the final attempt completed.
	FetchedAt time.Time `json:"fetched_at"`

	// Err is the terminal error for this page, nil on success.
	// Per-page errors never abort a crawl; they travel with the result
	// so reporting can distinguish forbidden, failed, and fetched pages.
	Err error `json:"-"`

	// ErrorMessage mirrors Err for serialized reports.
	ErrorMessage string `json:"error,omitempty"`
}

// OK reports whether the fetch produced a usable response.
func (r *FetchResult) OK() bool {
	return r.Err == nil
}

// IsHTML reports whether the body should be treated as HTML.
func (r *FetchResult) IsHTML() bool {
	return r.ContentType == "text/html" || r.ContentType == "application/xhtml+xml"
}

// Body returns the body bytes regardless of kind.
func (r *FetchResult) Body() []byte {
	if r.Kind == ContentText {
		return []byte(r.Text)
	}
	return r.Raw
}

// ComputeHash calculates and sets the SHA-256 hash of the body.
// Call after the body fields are populated.
func (r *FetchResult) ComputeHash() {
	body := r.Body()
	if len(body) == 0 {
		r.Hash = ""
		return
	}
	sum := sha256.Sum256(body)
	r.Hash = hex.EncodeToString(sum[:])
}

// Truncate enforces MaxBodyKeep on the stored body.
// Call after ComputeHash so the hash covers the full body.
func (r *FetchResult) Truncate() {
	if len(r.Text) > MaxBodyKeep {
		r.Text = r.Text[:MaxBodyKeep]
	}
	if len(r.Raw) > MaxBodyKeep {
		r.Raw = r.Raw[:MaxBodyKeep]
	}
}

// GetHeader returns the first value of the named response header.
// Returns the empty string if the header is absent.
func (r *FetchResult) GetHeader(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// PathLabel returns the URL path portion, used by reports as a short
// page identifier when no HTML title is available.
func (r *FetchResult) PathLabel() string {
	u := r.URL
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	if i := strings.Index(u, "/"); i >= 0 {
		return u[i:]
	}
	return "/"
}
