package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitescout/internal/model"
)

// ScanDB provides SQLite-based storage for crawl data and scan reports.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file covering all targets
// rather than separate files per site. This simplifies history queries
// and backup/restore operations.
type ScanDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ScanDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a ScanDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ScanDB, error) {
	dbPath := filepath.Join(dbDir, "sitescout.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite uses mode=rw to prevent creating new files and
	// mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; multiple connections don't help.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &ScanDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *ScanDB) Close() error {
	return sdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (sdb *ScanDB) createTables() error {
	schema := `
	-- Crawl records store individual page fetches
	CREATE TABLE IF NOT EXISTS crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		target TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		depth INTEGER DEFAULT 0,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		raw_hash TEXT,
		headers TEXT,
		UNIQUE(url, target)
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_url ON crawls(url);
	CREATE INDEX IF NOT EXISTS idx_crawls_target ON crawls(target);
	CREATE INDEX IF NOT EXISTS idx_crawls_timestamp ON crawls(timestamp);

	-- Scan reports store complete scan results as JSON
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL,
		page_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reports_target ON scan_reports(target);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON scan_reports(timestamp);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// CrawlRecord represents a stored crawl result.
type CrawlRecord struct {
	ID          int64
	URL         string
	Target      string
	Timestamp   time.Time
	Depth       int
	StatusCode  int
	ContentType string
	Title       string
	RawHash     string
	Headers     map[string][]string
}

// InsertCrawlRecord inserts or updates a crawl record.
// Uses UPSERT to handle duplicates (same URL + target).
func (sdb *ScanDB) InsertCrawlRecord(ctx context.Context, record *CrawlRecord) (int64, error) {
	headersJSON, err := json.Marshal(record.Headers)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize headers: %w", err)
	}

	query := `
	INSERT INTO crawls (url, target, depth, status_code, content_type, title, raw_hash, headers)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url, target) DO UPDATE SET
		depth = excluded.depth,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		title = excluded.title,
		raw_hash = excluded.raw_hash,
		headers = excluded.headers,
		timestamp = CURRENT_TIMESTAMP
	`

	result, err := sdb.db.ExecContext(ctx, query,
		record.URL,
		record.Target,
		record.Depth,
		record.StatusCode,
		record.ContentType,
		record.Title,
		record.RawHash,
		string(headersJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl record: %w", err)
	}

	return result.LastInsertId()
}

// GetCrawlRecord retrieves a crawl record by URL and target.
// Returns nil without error when no record exists.
func (sdb *ScanDB) GetCrawlRecord(ctx context.Context, url, target string) (*CrawlRecord, error) {
	query := `
	SELECT id, url, target, timestamp, depth, status_code, content_type, title, raw_hash, headers
	FROM crawls
	WHERE url = ? AND target = ?
	`

	var record CrawlRecord
	var headersJSON string
	var timestamp string

	err := sdb.db.QueryRowContext(ctx, query, url, target).Scan(
		&record.ID,
		&record.URL,
		&record.Target,
		&timestamp,
		&record.Depth,
		&record.StatusCode,
		&record.ContentType,
		&record.Title,
		&record.RawHash,
		&headersJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl record: %w", err)
	}

	record.Timestamp = parseTimestamp(timestamp)

	if headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &record.Headers); err != nil {
			return nil, fmt.Errorf("failed to parse headers: %w", err)
		}
	}

	return &record, nil
}

// SaveCrawlRecords persists one crawl record per successfully fetched
// page of the report and returns how many of those pages changed
// content (by body hash) since the previous scan of the same target.
func (sdb *ScanDB) SaveCrawlRecords(ctx context.Context, report *model.ScanReport) (int, error) {
	titles := make(map[string]string, len(report.Pages))
	for _, page := range report.Pages {
		titles[page.URL] = page.Title
	}

	changed := 0
	for _, res := range report.Results {
		if res == nil || !res.OK() {
			continue
		}

		existing, err := sdb.GetCrawlRecord(ctx, res.URL, report.Target)
		if err != nil {
			return changed, err
		}
		if existing != nil && existing.RawHash != res.Hash {
			changed++
		}

		record := &CrawlRecord{
			URL:         res.URL,
			Target:      report.Target,
			Depth:       res.Depth,
			StatusCode:  res.StatusCode,
			ContentType: res.ContentType,
			Title:       titles[res.URL],
			RawHash:     res.Hash,
			Headers:     res.Headers,
		}
		if _, err := sdb.InsertCrawlRecord(ctx, record); err != nil {
			return changed, err
		}
	}

	return changed, nil
}

// SaveScanReport saves a complete scan report as JSON.
func (sdb *ScanDB) SaveScanReport(ctx context.Context, report *model.ScanReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	pageSummary := map[string]int{
		"fetched":          report.FetchedCount(),
		"failed":           report.FailedCount(),
		"documents":        len(report.Documents),
		"hidden_resources": len(report.HiddenResources),
		"locales":          len(report.Locales),
	}
	summaryJSON, _ := json.Marshal(pageSummary) //nolint:errcheck,errchkjson // pageSummary is a simple map; Marshal won't fail

	query := `
	INSERT INTO scan_reports (target, report_json, page_summary)
	VALUES (?, ?, ?)
	`

	_, err = sdb.db.ExecContext(ctx, query,
		report.Target,
		string(reportJSON),
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	return nil
}

// GetLatestScanReport retrieves the most recent scan report for a target.
// Returns nil without error when the target has never been scanned.
func (sdb *ScanDB) GetLatestScanReport(ctx context.Context, target string) (*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC
	LIMIT 1
	`

	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, query, target).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// GetScanReportByID retrieves a scan report by its database ID.
// Returns nil without error when no report has that ID.
func (sdb *ScanDB) GetScanReportByID(ctx context.Context, id int64) (*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE id = ?
	`

	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListScannedTargets returns a list of all scanned targets.
func (sdb *ScanDB) ListScannedTargets(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT target FROM scan_reports
	ORDER BY target
	`

	rows, err := sdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

// GetScanHistory retrieves all scan reports for a target, newest first.
func (sdb *ScanDB) GetScanHistory(ctx context.Context, target string) ([]*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var reports []*model.ScanReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		var report model.ScanReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// ScanReportMetadata contains summary information about a scan report.
// This is used for displaying scan history without loading the full report.
type ScanReportMetadata struct {
	// ID is the unique identifier of the scan report in the database.
	ID int64

	// Target is the scanned site.
	Target string

	// Timestamp is when the scan was performed.
	Timestamp time.Time

	// PageSummary contains counts of findings by category.
	PageSummary map[string]int
}

// GetScanHistoryWithMetadata retrieves scan report metadata for a target.
// This is more efficient than GetScanHistory when only metadata is needed.
func (sdb *ScanDB) GetScanHistoryWithMetadata(ctx context.Context, target string) ([]ScanReportMetadata, error) {
	query := `
	SELECT id, target, timestamp, page_summary
	FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC
	`

	rows, err := sdb.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanReportMetadata
	for rows.Next() {
		var meta ScanReportMetadata
		var timestamp string
		var summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.Target, &timestamp, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)

		if summaryJSON.Valid && summaryJSON.String != "" {
			if err := json.Unmarshal([]byte(summaryJSON.String), &meta.PageSummary); err != nil {
				meta.PageSummary = nil
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
