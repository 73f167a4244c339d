// Package reporter renders batch import results for people and machines.
//
// Supported output formats:
//   - Console: human-readable tables for terminal display
//   - JSON: structured output for programmatic consumption
//   - CSV: per-category rows for spreadsheet analysis
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"mpesa-ledger-service/internal/importer"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds report generation options.
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeReviewItems bool `json:"include_review_items"`
	IncludeSkipped     bool `json:"include_skipped"`
	IncludeCategories  bool `json:"include_categories"`

	// MaxListItems caps the review and skipped listings on console
	// output. Zero means no cap.
	MaxListItems int `json:"max_list_items"`

	CSVDelimiter rune `json:"csv_delimiter"`
}

// DefaultReportConfig returns the default report configuration.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeReviewItems: true,
		IncludeSkipped:     true,
		IncludeCategories:  true,
		MaxListItems:       20,
		CSVDelimiter:       ',',
	}
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative, got %d", c.MaxListItems)
	}
	return nil
}

// ReportGenerator renders import results.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a generator with the given configuration.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes the result in the configured format.
func (rg *ReportGenerator) GenerateReport(result *importer.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	switch rg.config.Format {
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return rg.generateConsoleReport(result, writer)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *importer.Result, writer io.Writer) error {
	fmt.Fprintln(writer, "SMS Import Report")
	fmt.Fprintln(writer, strings.Repeat("=", 50))
	fmt.Fprintln(writer)

	fmt.Fprintf(writer, "%-24s %d\n", "Messages:", result.TotalMessages)
	fmt.Fprintf(writer, "%-24s %d\n", "Parsed:", result.Parsed)
	fmt.Fprintf(writer, "%-24s %d\n", "Not recognized:", result.ParseFailures)
	fmt.Fprintf(writer, "%-24s %d\n", "Duplicates blocked:", result.Duplicates)
	fmt.Fprintf(writer, "%-24s %d\n", "Movements recorded:", result.MovementsEmitted)
	fmt.Fprintf(writer, "%-24s %d\n", "Flagged for review:", result.ReviewFlagged)
	fmt.Fprintf(writer, "%-24s %s\n", "Duration:", result.Duration.Round(1e6).String())
	fmt.Fprintln(writer)

	if len(result.DuplicateReasons) > 0 {
		fmt.Fprintln(writer, "Duplicate Reasons")
		fmt.Fprintln(writer, strings.Repeat("-", 50))
		for _, reason := range sortedKeys(result.DuplicateReasons) {
			fmt.Fprintf(writer, "%-40s %d\n", reason, result.DuplicateReasons[reason])
		}
		fmt.Fprintln(writer)
	}

	if rg.config.IncludeCategories && len(result.CategoryCounts) > 0 {
		fmt.Fprintln(writer, "Movements by Category")
		fmt.Fprintln(writer, strings.Repeat("-", 50))
		categories := make([]string, 0, len(result.CategoryCounts))
		for category := range result.CategoryCounts {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			fmt.Fprintf(writer, "%-40s %d\n", category, result.CategoryCounts[category])
		}
		fmt.Fprintln(writer)
	}

	if rg.config.IncludeReviewItems && len(result.ReviewItems) > 0 {
		fmt.Fprintln(writer, "Flagged for Review")
		fmt.Fprintln(writer, strings.Repeat("-", 50))
		items := result.ReviewItems
		if rg.config.MaxListItems > 0 && len(items) > rg.config.MaxListItems {
			items = items[:rg.config.MaxListItems]
		}
		for _, item := range items {
			fmt.Fprintf(writer, "line %-5d %-32s %.2f\n", item.Line, truncate(item.Description, 32), item.Confidence)
		}
		if len(result.ReviewItems) > len(items) {
			fmt.Fprintf(writer, "... and %d more\n", len(result.ReviewItems)-len(items))
		}
		fmt.Fprintln(writer)
	}

	if rg.config.IncludeSkipped && len(result.Skipped) > 0 {
		fmt.Fprintln(writer, "Not Recognized")
		fmt.Fprintln(writer, strings.Repeat("-", 50))
		skipped := result.Skipped
		if rg.config.MaxListItems > 0 && len(skipped) > rg.config.MaxListItems {
			skipped = skipped[:rg.config.MaxListItems]
		}
		for _, s := range skipped {
			fmt.Fprintf(writer, "line %-5d %s\n", s.Line, truncate(s.Text, 60))
		}
		if len(result.Skipped) > len(skipped) {
			fmt.Fprintf(writer, "... and %d more\n", len(result.Skipped)-len(skipped))
		}
		fmt.Fprintln(writer)
	}

	if len(result.Errors) > 0 {
		fmt.Fprintln(writer, "Errors")
		fmt.Fprintln(writer, strings.Repeat("-", 50))
		for _, e := range result.Errors {
			fmt.Fprintf(writer, "- %s\n", e.Error())
		}
	}

	return nil
}

func (rg *ReportGenerator) generateJSONReport(result *importer.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// generateCSVReport writes one row per category plus a totals section.
func (rg *ReportGenerator) generateCSVReport(result *importer.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	if rg.config.CSVDelimiter != 0 {
		csvWriter.Comma = rg.config.CSVDelimiter
	}
	defer csvWriter.Flush()

	if err := csvWriter.Write([]string{"section", "name", "count"}); err != nil {
		return err
	}

	totals := [][2]string{
		{"messages", strconv.Itoa(result.TotalMessages)},
		{"parsed", strconv.Itoa(result.Parsed)},
		{"parse_failures", strconv.Itoa(result.ParseFailures)},
		{"duplicates", strconv.Itoa(result.Duplicates)},
		{"movements", strconv.Itoa(result.MovementsEmitted)},
		{"review_flagged", strconv.Itoa(result.ReviewFlagged)},
	}
	for _, row := range totals {
		if err := csvWriter.Write([]string{"totals", row[0], row[1]}); err != nil {
			return err
		}
	}

	categories := make([]string, 0, len(result.CategoryCounts))
	for category := range result.CategoryCounts {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		if err := csvWriter.Write([]string{"category", category, strconv.Itoa(result.CategoryCounts[category])}); err != nil {
			return err
		}
	}

	for _, reason := range sortedKeys(result.DuplicateReasons) {
		if err := csvWriter.Write([]string{"duplicate_reason", string(reason), strconv.Itoa(result.DuplicateReasons[reason])}); err != nil {
			return err
		}
	}

	return csvWriter.Error()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
