package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/sitescout/internal/model"
)

// Fetcher performs one logical fetch: rate-limit acquisition, robots
// consultation, the HTTP GET itself, retries for transient failures,
// and text-vs-binary classification of the body.
//
// Design decision: We require an external http.Client rather than
// building one because timeout and transport configuration belong to
// the caller, and tests can inject httptest-backed clients.
type Fetcher struct {
	client  *http.Client
	limiter *RateLimiter
	robots  *RobotsGate
	logger  *slog.Logger

	// userAgent is sent with every request.
	userAgent string

	// retryTimes is the number of additional attempts after the first
	// for transient failures (5xx and network errors).
	retryTimes int

	// backoffBase is the delay before the first retry; each further
	// retry doubles it, capped at backoffMax.
	backoffBase time.Duration
	backoffMax  time.Duration

	// maxBodySize bounds how many response bytes are read.
	maxBodySize int64

	// cookie and headers are per-site extras from the config file.
	cookie  string
	headers map[string]string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithRetryTimes sets the number of retries for transient failures.
func WithRetryTimes(n int) FetcherOption {
	return func(f *Fetcher) {
		if n >= 0 {
			f.retryTimes = n
		}
	}
}

// WithBackoff sets the base and maximum retry delay.
func WithBackoff(base, max time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if base > 0 {
			f.backoffBase = base
		}
		if max > 0 {
			f.backoffMax = max
		}
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithCookie sets a Cookie header sent with every request.
func WithCookie(cookie string) FetcherOption {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(headers map[string]string) FetcherOption {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// NewFetcher creates a Fetcher. The robots gate may be nil, in which
// case no robots filtering is applied (used by the brute forcer, whose
// probes are expected to 404).
func NewFetcher(client *http.Client, limiter *RateLimiter, robots *RobotsGate, userAgent string, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}

	f := &Fetcher{
		client:      client,
		limiter:     limiter,
		robots:      robots,
		logger:      logger,
		userAgent:   userAgent,
		retryTimes:  2,
		backoffBase: 500 * time.Millisecond,
		backoffMax:  30 * time.Second,
		maxBodySize: model.MaxBodyKeep,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch performs one logical fetch of rawURL discovered at the given
// depth. The returned result always has either a usable payload or a
// populated Err describing the terminal failure; it is never nil.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, depth int) *model.FetchResult {
	result := &model.FetchResult{
		URL:   rawURL,
		Depth: depth,
	}

	var lastErr error

	for attempt := 0; attempt <= f.retryTimes; attempt++ {
		if attempt > 0 {
			if err := f.sleepBackoff(ctx, attempt); err != nil {
				lastErr = fmt.Errorf("%w: %v", ErrTransient, err)
				break
			}
		}

		// Budget is re-acquired for every attempt so retries cannot
		// exceed the configured ceiling either.
		if err := f.limiter.Acquire(ctx); err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrTransient, err)
			break
		}

		// The robots answer cannot change mid-run (the gate caches per
		// origin), so a disallowed URL short-circuits before any
		// network request is issued.
		if f.robots != nil && !f.robots.IsAllowed(ctx, rawURL) {
			result.Err = ErrForbidden
			result.ErrorMessage = ErrForbidden.Error()
			result.FetchedAt = time.Now()
			return result
		}

		done, err := f.attempt(ctx, rawURL, result)
		if done {
			result.FetchedAt = time.Now()
			return result
		}
		lastErr = err

		f.logger.Debug("fetch attempt failed",
			"url", rawURL,
			"attempt", attempt+1,
			"error", err,
		)
	}

	result.Err = lastErr
	if lastErr != nil {
		result.ErrorMessage = lastErr.Error()
	}
	result.FetchedAt = time.Now()
	return result
}

// attempt issues a single HTTP GET. It returns done=true when the
// outcome is terminal (success or a non-retryable error recorded on
// result), and done=false with a transient error otherwise.
func (f *Fetcher) attempt(ctx context.Context, rawURL string, result *model.FetchResult) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		// A URL that cannot form a request will never succeed.
		result.Err = fmt.Errorf("%w: %v", ErrClientError, err)
		result.ErrorMessage = result.Err.Error()
		return true, nil
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return false, fmt.Errorf("%w: status %d", ErrTransient, resp.StatusCode)
	}

	result.StatusCode = resp.StatusCode
	result.Headers = resp.Header

	if resp.StatusCode >= 400 {
		result.Err = fmt.Errorf("%w: status %d", ErrClientError, resp.StatusCode)
		result.ErrorMessage = result.Err.Error()
		return true, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return false, fmt.Errorf("%w: reading body: %v", ErrTransient, err)
	}

	f.classify(result, resp.Header.Get("Content-Type"), body)

	result.ComputeHash()
	result.Truncate()
	return true, nil
}

// classify resolves the text-vs-binary question once, here, based on
// the Content-Type header. Text bodies are decoded to UTF-8; everything
// else, including responses without a recognizable content type, is
// kept as opaque bytes for downstream document discovery.
func (f *Fetcher) classify(result *model.FetchResult, contentType string, body []byte) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}
	result.ContentType = mediaType

	if isTextType(mediaType) {
		result.Kind = model.ContentText
		result.Text = decodeText(body, contentType)
		return
	}

	if mediaType == "" {
		f.logger.Debug("unsupported content type, keeping binary",
			"url", result.URL,
			"contentType", contentType,
		)
	}
	result.Kind = model.ContentBinary
	result.Raw = body
}

// isTextType reports whether a media type is decoded as text.
func isTextType(mediaType string) bool {
	return mediaType == "text/html" ||
		mediaType == "application/json" ||
		mediaType == "application/xhtml+xml" ||
		strings.HasPrefix(mediaType, "text/")
}

// decodeText converts body bytes to UTF-8, honoring the charset from
// the Content-Type header or in-document markers. On any decoding
// problem the raw bytes are used as-is.
func decodeText(body []byte, contentType string) string {
	reader, err := charset.NewReader(strings.NewReader(string(body)), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// sleepBackoff waits base*2^(attempt-1), capped, or returns early when
// the context is cancelled. The exponent is clamped so high attempt
// counts cannot overflow the shift into a negative delay.
func (f *Fetcher) sleepBackoff(ctx context.Context, attempt int) error {
	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}
	delay := f.backoffBase << shift
	if delay > f.backoffMax || delay <= 0 {
		delay = f.backoffMax
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
