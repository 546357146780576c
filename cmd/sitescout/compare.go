package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitescout/internal/config"
	"github.com/nao1215/sitescout/internal/database"
	"github.com/nao1215/sitescout/internal/model"
)

// NewCompareCmd creates the compare command.
// This command compares scan results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [url]",
		Short: "Compare scan results with historical data",
		Long: `Compare displays differences between the current and previous scan results.

This command retrieves historical scan data from the database and shows:
- Pages that appeared since the last scan
- Pages that are no longer reachable
- Status code changes for existing pages
- New and removed documents

The comparison requires at least two scans in the database for the
specified target. Use 'sitescout scan' to perform scans and save results.

Examples:
  # Compare latest two scans for a site
  sitescout compare https://example.com

  # List all scan history for a site
  sitescout compare --list https://example.com

  # Compare with a specific historical scan by ID
  sitescout compare --with-scan-id 5 https://example.com

  # Compare scans since a specific date
  sitescout compare --since "2026-01-01" https://example.com

  # Output comparison in JSON format
  sitescout compare --json https://example.com

  # List all scanned targets in the database
  sitescout compare --list-targets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List scan history for the specified target")
	cmd.Flags().BoolP("list-targets", "L", false,
		"List all scanned targets in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare with a specific scan by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first scan after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	listTargets, err := cmd.Flags().GetBool("list-targets")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database so that bad input
	// does not hold the database lock.
	var target string
	if !listTargets {
		if len(args) == 0 {
			return errors.New("target URL is required (use --list-targets to see available targets)")
		}

		target, err = normalizeTarget(args[0])
		if err != nil {
			return fmt.Errorf("invalid target: %w", err)
		}
	}

	// Use XDG data directory for database
	dbDir := config.XDGDataDir()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listTargets {
		return listScannedTargets(ctx, db)
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listScanHistory(ctx, db, target)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	withScanID, err := cmd.Flags().GetInt64("with-scan-id")
	if err != nil {
		return err
	}
	sinceDate, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}

	return runComparison(ctx, db, target, withScanID, sinceDate, jsonOutput, markdownOutput)
}

// listScannedTargets lists all targets that have scan records in the database.
func listScannedTargets(ctx context.Context, db *database.ScanDB) error {
	targets, err := db.ListScannedTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Println("No scanned targets found in the database.")
		fmt.Println("\nUse 'sitescout scan <url>' to scan a site.")
		return nil
	}

	fmt.Printf("Scanned targets (%d):\n\n", len(targets))
	for _, t := range targets {
		fmt.Printf("  • %s\n", t)
	}
	fmt.Println("\nUse 'sitescout compare --list <url>' to see scan history for a target.")

	return nil
}

// listScanHistory lists all scan records for a specific target.
func listScanHistory(ctx context.Context, db *database.ScanDB, target string) error {
	reports, err := db.GetScanHistoryWithMetadata(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		fmt.Printf("No scan history found for %s\n", target)
		fmt.Println("\nUse 'sitescout scan' to scan this site.")
		return nil
	}

	fmt.Printf("Scan history for %s (%d scans):\n\n", target, len(reports))
	fmt.Printf("  %-6s  %-20s  %s\n", "ID", "Date", "Summary")
	fmt.Println("  " + strings.Repeat("-", 60))

	for _, meta := range reports {
		fmt.Printf("  %-6d  %-20s  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			formatPageSummary(meta.PageSummary),
		)
	}

	fmt.Println("\nUse 'sitescout compare <url>' to compare the latest two scans.")
	fmt.Println("Use 'sitescout compare --with-scan-id <id> <url>' to compare with a specific scan.")

	return nil
}

// formatPageSummary formats the page summary map into a human-readable string.
func formatPageSummary(summary map[string]int) string {
	if summary == nil {
		return "N/A"
	}

	var parts []string
	if v := summary["fetched"]; v > 0 {
		parts = append(parts, fmt.Sprintf("pages:%d", v))
	}
	if v := summary["failed"]; v > 0 {
		parts = append(parts, fmt.Sprintf("failed:%d", v))
	}
	if v := summary["documents"]; v > 0 {
		parts = append(parts, fmt.Sprintf("docs:%d", v))
	}
	if v := summary["hidden_resources"]; v > 0 {
		parts = append(parts, fmt.Sprintf("hidden:%d", v))
	}

	if len(parts) == 0 {
		return "Empty scan"
	}
	return strings.Join(parts, " ")
}

// runComparison performs the actual comparison between scan reports.
func runComparison(ctx context.Context, db *database.ScanDB, target string, withScanID int64, sinceDate string, jsonOutput, markdownOutput bool) error {
	reports, err := db.GetScanHistory(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s", target)
	}

	if len(reports) < 2 && withScanID == 0 && sinceDate == "" {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
	}

	// Latest report is always the current one
	currentReport := reports[0]

	var previousReport *model.ScanReport
	switch {
	case withScanID > 0:
		previousReport, err = db.GetScanReportByID(ctx, withScanID)
		if err != nil {
			return fmt.Errorf("failed to get scan with ID %d: %w", withScanID, err)
		}
		if previousReport == nil {
			return fmt.Errorf("scan with ID %d not found", withScanID)
		}
		if previousReport.Target != target {
			return fmt.Errorf("scan ID %d belongs to %s, not %s", withScanID, previousReport.Target, target)
		}
	case sinceDate != "":
		parsedDate, err := time.Parse("2006-01-02", sinceDate)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Reports are sorted newest first, so iterate in reverse to find
		// the oldest report at or after the date.
		for i := len(reports) - 1; i >= 0; i-- {
			r := reports[i]
			if r.StartedAt.After(parsedDate) || r.StartedAt.Equal(parsedDate) {
				previousReport = r
				break
			}
		}
		if previousReport == nil {
			return fmt.Errorf("no scans found since %s", sinceDate)
		}
		if previousReport == currentReport {
			return fmt.Errorf("only one scan found since %s; at least 2 scans are required for comparison", sinceDate)
		}
	default:
		previousReport = reports[1]
	}

	comparison := compareReports(previousReport, currentReport)

	if jsonOutput {
		return outputComparisonJSON(comparison)
	}
	if markdownOutput {
		return outputComparisonMarkdown(comparison)
	}
	return outputComparisonText(comparison)
}

// ComparisonResult holds the result of comparing two scan reports.
type ComparisonResult struct {
	// Target is the scanned site.
	Target string `json:"target"`

	// PreviousScan contains metadata about the previous scan.
	PreviousScan ScanSummary `json:"previous_scan"`

	// CurrentScan contains metadata about the current scan.
	CurrentScan ScanSummary `json:"current_scan"`

	// NewPages lists URLs present in the current scan only.
	NewPages []string `json:"new_pages,omitempty"`

	// RemovedPages lists URLs present in the previous scan only.
	RemovedPages []string `json:"removed_pages,omitempty"`

	// StatusChanges lists pages whose HTTP status changed between scans.
	StatusChanges []StatusChange `json:"status_changes,omitempty"`

	// NewDocuments lists document URLs found only in the current scan.
	NewDocuments []string `json:"new_documents,omitempty"`

	// RemovedDocuments lists document URLs found only in the previous scan.
	RemovedDocuments []string `json:"removed_documents,omitempty"`

	// UnchangedCount is the number of pages present in both scans with
	// the same status code.
	UnchangedCount int `json:"unchanged_count"`
}

// ScanSummary contains metadata about one scan for comparison display.
type ScanSummary struct {
	// StartedAt is when the scan was performed.
	StartedAt time.Time `json:"started_at"`

	// PagesFetched is the number of successfully fetched pages.
	PagesFetched int `json:"pages_fetched"`

	// PagesFailed is the number of failed fetches.
	PagesFailed int `json:"pages_failed"`

	// Documents is the number of discovered documents.
	Documents int `json:"documents"`
}

// StatusChange records a page whose status code changed between scans.
type StatusChange struct {
	// URL is the page URL.
	URL string `json:"url"`

	// PreviousStatus is the HTTP status from the previous scan.
	PreviousStatus int `json:"previous_status"`

	// CurrentStatus is the HTTP status from the current scan.
	CurrentStatus int `json:"current_status"`
}

// compareReports builds a ComparisonResult from two scan reports.
func compareReports(previous, current *model.ScanReport) *ComparisonResult {
	result := &ComparisonResult{
		Target:       current.Target,
		PreviousScan: summarize(previous),
		CurrentScan:  summarize(current),
	}

	prevStatus := pageStatusMap(previous)
	currStatus := pageStatusMap(current)

	for url, status := range currStatus {
		prev, ok := prevStatus[url]
		switch {
		case !ok:
			result.NewPages = append(result.NewPages, url)
		case prev != status:
			result.StatusChanges = append(result.StatusChanges, StatusChange{
				URL:            url,
				PreviousStatus: prev,
				CurrentStatus:  status,
			})
		default:
			result.UnchangedCount++
		}
	}
	for url := range prevStatus {
		if _, ok := currStatus[url]; !ok {
			result.RemovedPages = append(result.RemovedPages, url)
		}
	}

	prevDocs := documentSet(previous)
	currDocs := documentSet(current)
	for url := range currDocs {
		if !prevDocs[url] {
			result.NewDocuments = append(result.NewDocuments, url)
		}
	}
	for url := range prevDocs {
		if !currDocs[url] {
			result.RemovedDocuments = append(result.RemovedDocuments, url)
		}
	}

	// Map iteration order is random; sort for stable output.
	sort.Strings(result.NewPages)
	sort.Strings(result.RemovedPages)
	sort.Strings(result.NewDocuments)
	sort.Strings(result.RemovedDocuments)
	sort.Slice(result.StatusChanges, func(i, j int) bool {
		return result.StatusChanges[i].URL < result.StatusChanges[j].URL
	})

	return result
}

// summarize extracts comparison metadata from a scan report.
func summarize(r *model.ScanReport) ScanSummary {
	return ScanSummary{
		StartedAt:    r.StartedAt,
		PagesFetched: r.FetchedCount(),
		PagesFailed:  r.FailedCount(),
		Documents:    len(r.Documents),
	}
}

// pageStatusMap builds a URL-to-status map from a report's pages.
func pageStatusMap(r *model.ScanReport) map[string]int {
	m := make(map[string]int, len(r.Pages))
	for _, page := range r.Pages {
		m[page.URL] = page.StatusCode
	}
	return m
}

// documentSet builds a set of document URLs from a report.
func documentSet(r *model.ScanReport) map[string]bool {
	m := make(map[string]bool, len(r.Documents))
	for _, doc := range r.Documents {
		m[doc.URL] = true
	}
	return m
}

// outputComparisonJSON writes the comparison result as indented JSON.
func outputComparisonJSON(result *ComparisonResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown writes the comparison result as Markdown.
func outputComparisonMarkdown(result *ComparisonResult) error {
	md := markdown.NewMarkdown(os.Stdout)

	md.H1("Scan Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Previous", "Current"},
		Rows: [][]string{
			{"Date", result.PreviousScan.StartedAt.Format("2006-01-02 15:04:05"), result.CurrentScan.StartedAt.Format("2006-01-02 15:04:05")},
			{"Pages Fetched", fmt.Sprintf("%d", result.PreviousScan.PagesFetched), fmt.Sprintf("%d", result.CurrentScan.PagesFetched)},
			{"Pages Failed", fmt.Sprintf("%d", result.PreviousScan.PagesFailed), fmt.Sprintf("%d", result.CurrentScan.PagesFailed)},
			{"Documents", fmt.Sprintf("%d", result.PreviousScan.Documents), fmt.Sprintf("%d", result.CurrentScan.Documents)},
		},
	})
	md.PlainText("")

	if len(result.NewPages) > 0 {
		md.H2("New Pages")
		md.PlainText("")
		md.BulletList(result.NewPages...)
		md.PlainText("")
	}
	if len(result.RemovedPages) > 0 {
		md.H2("Removed Pages")
		md.PlainText("")
		md.BulletList(result.RemovedPages...)
		md.PlainText("")
	}
	if len(result.StatusChanges) > 0 {
		md.H2("Status Changes")
		md.PlainText("")
		rows := make([][]string, 0, len(result.StatusChanges))
		for _, sc := range result.StatusChanges {
			rows = append(rows, []string{
				"`" + sc.URL + "`",
				fmt.Sprintf("%d", sc.PreviousStatus),
				fmt.Sprintf("%d", sc.CurrentStatus),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Previous", "Current"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return md.Build()
}

// outputComparisonText writes the comparison result as plain text.
func outputComparisonText(result *ComparisonResult) error {
	fmt.Printf("Comparison for %s\n", result.Target)
	fmt.Printf("  Previous: %s (%d pages, %d documents)\n",
		result.PreviousScan.StartedAt.Format("2006-01-02 15:04:05"),
		result.PreviousScan.PagesFetched,
		result.PreviousScan.Documents,
	)
	fmt.Printf("  Current:  %s (%d pages, %d documents)\n\n",
		result.CurrentScan.StartedAt.Format("2006-01-02 15:04:05"),
		result.CurrentScan.PagesFetched,
		result.CurrentScan.Documents,
	)

	if len(result.NewPages) > 0 {
		fmt.Printf("New pages (%d):\n", len(result.NewPages))
		for _, url := range result.NewPages {
			fmt.Printf("  + %s\n", url)
		}
		fmt.Println()
	}

	if len(result.RemovedPages) > 0 {
		fmt.Printf("Removed pages (%d):\n", len(result.RemovedPages))
		for _, url := range result.RemovedPages {
			fmt.Printf("  - %s\n", url)
		}
		fmt.Println()
	}

	if len(result.StatusChanges) > 0 {
		fmt.Printf("Status changes (%d):\n", len(result.StatusChanges))
		for _, sc := range result.StatusChanges {
			fmt.Printf("  ~ %s: %d -> %d\n", sc.URL, sc.PreviousStatus, sc.CurrentStatus)
		}
		fmt.Println()
	}

	if len(result.NewDocuments) > 0 {
		fmt.Printf("New documents (%d):\n", len(result.NewDocuments))
		for _, url := range result.NewDocuments {
			fmt.Printf("  + %s\n", url)
		}
		fmt.Println()
	}

	if len(result.RemovedDocuments) > 0 {
		fmt.Printf("Removed documents (%d):\n", len(result.RemovedDocuments))
		for _, url := range result.RemovedDocuments {
			fmt.Printf("  - %s\n", url)
		}
		fmt.Println()
	}

	fmt.Printf("%d page(s) unchanged.\n", result.UnchangedCount)

	if len(result.NewPages) == 0 && len(result.RemovedPages) == 0 &&
		len(result.StatusChanges) == 0 && len(result.NewDocuments) == 0 &&
		len(result.RemovedDocuments) == 0 {
		fmt.Println("No differences found between the two scans.")
	}

	return nil
}
