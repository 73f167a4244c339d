package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"mpesa-ledger-service/cmd/smsledger/config"
	"mpesa-ledger-service/internal/dedup"
	"mpesa-ledger-service/internal/importer"
	"mpesa-ledger-service/internal/ledgerstore"
	"mpesa-ledger-service/internal/loader"
	"mpesa-ledger-service/internal/parser"
	"mpesa-ledger-service/internal/reporter"
	"mpesa-ledger-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the import command
var (
	importInput         string
	importLedger        string
	importUser          string
	importWorkers       int
	importDedupWindow   int
	importFormat        string
	importMessageColumn string
	importOutputFile    string
	importContinue      bool
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a batch of M-Pesa messages into a ledger",
	Long: `Import parses a batch of M-Pesa messages, checks each transaction
against the ledger for duplicates, decomposes new transactions into monetary
movements and persists them. A summary report is produced at the end.

Examples:
  # Basic import into the default ledger file
  smsledger import --input messages.txt

  # Import into a specific ledger with a JSON report
  smsledger import --input export.csv --ledger household.json --output-format json

  # Tighter duplicate window and more parse workers
  smsledger import --input messages.txt --dedup-window 6 --workers 8`,

	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "path to an SMS batch file (text or CSV) (required)")
	importCmd.Flags().StringVarP(&importLedger, "ledger", "l", "ledger.json", "path to the ledger file")
	importCmd.Flags().StringVarP(&importUser, "user", "u", "default", "user the imported movements belong to")
	importCmd.Flags().IntVarP(&importWorkers, "workers", "w", 4, "number of parse workers")
	importCmd.Flags().IntVar(&importDedupWindow, "dedup-window", 24, "duplicate proximity window in hours")
	importCmd.Flags().StringVar(&importFormat, "output-format", "console", "report format: console, json, csv")
	importCmd.Flags().StringVar(&importMessageColumn, "message-column", "", "CSV column holding the SMS text")
	importCmd.Flags().StringVarP(&importOutputFile, "output-file", "o", "", "write the report to a file instead of stdout")
	importCmd.Flags().BoolVar(&importContinue, "continue-on-error", true, "continue importing after per-message failures")

	importCmd.MarkFlagRequired("input")

	viper.BindPFlag("import.ledger", importCmd.Flags().Lookup("ledger"))
	viper.BindPFlag("import.workers", importCmd.Flags().Lookup("workers"))
	viper.BindPFlag("import.dedup-window", importCmd.Flags().Lookup("dedup-window"))
	viper.BindPFlag("import.output-format", importCmd.Flags().Lookup("output-format"))
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(importInput, "input"); err != nil {
		return err
	}

	switch strings.ToLower(importFormat) {
	case "console", "json", "csv":
	default:
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", importFormat)
	}

	if importWorkers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if importDedupWindow < 1 {
		return fmt.Errorf("dedup window must be at least 1 hour")
	}
	return nil
}

func validateFileExists(path, flagName string) error {
	if path == "" {
		return fmt.Errorf("--%s is required", flagName)
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s file does not exist: %s", flagName, path)
	}
	if err != nil {
		return fmt.Errorf("cannot access %s file: %s", flagName, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s path is a directory, not a file: %s", flagName, path)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := logger.GetGlobalLogger()

	log.WithFields(map[string]interface{}{
		"input":  importInput,
		"ledger": importLedger,
	}).Info("Starting import")

	l, err := loader.NewLoader(config.CreateLoaderConfig("auto", importMessageColumn))
	if err != nil {
		return err
	}
	messages, err := l.LoadMessages(importInput)
	if err != nil {
		return err
	}

	store, err := ledgerstore.Open(importLedger)
	if err != nil {
		return err
	}

	detector, err := dedup.NewDetector(store, store, config.CreateDedupConfig(importDedupWindow))
	if err != nil {
		return err
	}

	imp, err := importer.NewImporter(parser.New(), detector, store, config.CreateImporterConfig(importUser, importWorkers, importContinue))
	if err != nil {
		return err
	}

	if verbose {
		imp.AddProgressCallback(func(p *importer.Progress) {
			log.WithFields(map[string]interface{}{
				"step":      p.CurrentStep,
				"processed": p.Processed,
				"total":     p.TotalMessages,
			}).Debug("Import progress")
		})
	}

	result, err := imp.ImportBatch(ctx, messages)
	if err != nil {
		return err
	}

	reportCfg := config.CreateReportConfig(importFormat)
	gen, err := reporter.NewReportGenerator(reportCfg)
	if err != nil {
		return err
	}

	out := os.Stdout
	if importOutputFile != "" {
		f, ferr := os.Create(importOutputFile)
		if ferr != nil {
			return fmt.Errorf("cannot create output file: %w", ferr)
		}
		defer f.Close()
		out = f
	}
	if err := gen.GenerateReport(result, out); err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"imported":   result.MovementsEmitted,
		"duplicates": result.Duplicates,
		"duration":   result.Duration.Round(time.Millisecond).String(),
	}).Info("Import complete")

	return nil
}
