package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"mpesa-ledger-service/internal/importer"
	"mpesa-ledger-service/internal/models"
)

func createTestResult() *importer.Result {
	return &importer.Result{
		TotalMessages:    10,
		Parsed:           8,
		ParseFailures:    2,
		Duplicates:       1,
		MovementsEmitted: 11,
		ReviewFlagged:    1,
		CategoryCounts: map[string]int{
			"Personal Transfer": 4,
			"Utilities":         2,
			"Loans & Credit":    1,
		},
		DuplicateReasons: map[models.DuplicateReason]int{
			models.ReasonExactMessage: 1,
		},
		ReviewItems: []importer.ReviewItem{
			{Line: 7, Description: "M-Pesa Transaction - 320.00", Category: "Other", Confidence: 0.4},
		},
		Skipped: []importer.SkippedMessage{
			{Line: 3, Text: "Your OTP code is 483920."},
			{Line: 9, Text: "Reminder: parents meeting on Friday."},
		},
		StartTime: time.Date(2025, 10, 6, 8, 0, 0, 0, time.UTC),
		Duration:  1234 * time.Millisecond,
	}
}

func TestNewReportGeneratorRejectsBadConfig(t *testing.T) {
	if _, err := NewReportGenerator(&ReportConfig{Format: "xml"}); err == nil {
		t.Error("Expected error for unknown format")
	}
	if _, err := NewReportGenerator(&ReportConfig{Format: FormatConsole, MaxListItems: -1}); err == nil {
		t.Error("Expected error for negative list cap")
	}
}

func TestGenerateReportRejectsNilResult(t *testing.T) {
	rg, _ := NewReportGenerator(nil)
	if err := rg.GenerateReport(nil, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for nil result")
	}
}

func TestConsoleReport(t *testing.T) {
	rg, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("NewReportGenerator failed: %v", err)
	}

	var buf bytes.Buffer
	if err := rg.GenerateReport(createTestResult(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"SMS Import Report",
		"Messages:",
		"Duplicates blocked:",
		"Movements recorded:",
		"exact_message_match",
		"Personal Transfer",
		"Flagged for Review",
		"Not Recognized",
		"Your OTP code",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Console report missing %q", want)
		}
	}
}

func TestConsoleReportCapsLists(t *testing.T) {
	result := createTestResult()
	result.Skipped = nil
	for i := 0; i < 30; i++ {
		result.Skipped = append(result.Skipped, importer.SkippedMessage{Line: i + 1, Text: "noise"})
	}

	rg, _ := NewReportGenerator(&ReportConfig{
		Format:         FormatConsole,
		IncludeSkipped: true,
		MaxListItems:   5,
	})

	var buf bytes.Buffer
	if err := rg.GenerateReport(result, &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	if !strings.Contains(buf.String(), "... and 25 more") {
		t.Error("Expected overflow marker for capped list")
	}
}

func TestJSONReport(t *testing.T) {
	rg, _ := NewReportGenerator(&ReportConfig{Format: FormatJSON})

	var buf bytes.Buffer
	if err := rg.GenerateReport(createTestResult(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	var decoded importer.Result
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON report is not valid JSON: %v", err)
	}
	if decoded.TotalMessages != 10 {
		t.Errorf("TotalMessages = %d, want 10", decoded.TotalMessages)
	}
	if decoded.CategoryCounts["Personal Transfer"] != 4 {
		t.Errorf("Category counts lost in JSON round trip: %v", decoded.CategoryCounts)
	}
}

func TestCSVReport(t *testing.T) {
	rg, _ := NewReportGenerator(&ReportConfig{Format: FormatCSV, CSVDelimiter: ','})

	var buf bytes.Buffer
	if err := rg.GenerateReport(createTestResult(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV report is not valid CSV: %v", err)
	}

	if len(records) == 0 || records[0][0] != "section" {
		t.Fatal("Expected a header row")
	}

	sections := make(map[string]int)
	for _, record := range records[1:] {
		if len(record) != 3 {
			t.Fatalf("Expected 3 columns, got %v", record)
		}
		sections[record[0]]++
	}
	if sections["totals"] != 6 {
		t.Errorf("Expected 6 totals rows, got %d", sections["totals"])
	}
	if sections["category"] != 3 {
		t.Errorf("Expected 3 category rows, got %d", sections["category"])
	}
	if sections["duplicate_reason"] != 1 {
		t.Errorf("Expected 1 duplicate reason row, got %d", sections["duplicate_reason"])
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten..", 13, "exactly ten.."},
		{"a long description that will not fit", 10, "a long ..."},
		{"abc", 2, "ab"},
	}

	for _, tt := range tests {
		if got := truncate(tt.input, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
	}
}
