// Package config builds component configurations from CLI flag values.
package config

import (
	"strings"
	"time"

	"mpesa-ledger-service/internal/categorize"
	"mpesa-ledger-service/internal/dedup"
	"mpesa-ledger-service/internal/importer"
	"mpesa-ledger-service/internal/loader"
	"mpesa-ledger-service/internal/reporter"
	"mpesa-ledger-service/internal/scorer"
)

// CreateScorerConfig creates scoring weights with the CLI override applied.
func CreateScorerConfig(reviewThreshold float64) *scorer.Config {
	config := scorer.DefaultConfig()
	if reviewThreshold > 0 {
		config.ReviewThreshold = reviewThreshold
	}
	return config
}

// CreateDedupConfig creates duplicate detection settings.
func CreateDedupConfig(windowHours int) *dedup.Config {
	config := dedup.DefaultConfig()
	if windowHours > 0 {
		config.Window = time.Duration(windowHours) * time.Hour
	}
	return config
}

// CreateImporterConfig creates batch import settings.
func CreateImporterConfig(userID string, workers int, continueOnError bool) *importer.Config {
	config := importer.DefaultConfig()
	config.UserID = userID
	if workers > 0 {
		config.Workers = workers
	}
	config.ContinueOnError = continueOnError
	config.CategoryIDs = DefaultCategoryIDs()
	return config
}

// CreateLoaderConfig creates batch loading settings.
func CreateLoaderConfig(format, messageColumn string) *loader.Config {
	config := loader.DefaultConfig()
	if format != "" {
		config.Format = loader.Format(strings.ToLower(format))
	}
	config.MessageColumn = messageColumn
	return config
}

// CreateReportConfig creates report generation settings.
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	if format != "" {
		config.Format = reporter.OutputFormat(strings.ToLower(format))
	}
	return config
}

// DefaultCategoryIDs maps suggested category names to ledger category ids.
// Local ledgers use the names themselves as ids; a server deployment would
// resolve these against its category table.
func DefaultCategoryIDs() map[string]string {
	names := []string{
		categorize.CategoryUtilities,
		categorize.CategoryTelecommunications,
		categorize.CategoryLoansCredit,
		categorize.CategoryTransport,
		categorize.CategoryFoodDining,
		categorize.CategoryShopping,
		categorize.CategoryHealth,
		categorize.CategoryEducation,
		categorize.CategoryEntertainment,
		categorize.CategoryFinancial,
		categorize.CategoryGovernment,
		categorize.CategoryPersonalTransfer,
		categorize.CategoryBillsFees,
		categorize.CategoryTransactionFees,
		categorize.CategoryOther,
	}

	ids := make(map[string]string, len(names)+1)
	for _, name := range names {
		ids[name] = name
	}
	ids["General"] = categorize.CategoryOther
	return ids
}
