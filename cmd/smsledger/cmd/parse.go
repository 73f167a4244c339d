package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"mpesa-ledger-service/cmd/smsledger/config"
	"mpesa-ledger-service/internal/decomposer"
	"mpesa-ledger-service/internal/loader"
	"mpesa-ledger-service/internal/models"
	"mpesa-ledger-service/internal/parser"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the parse command
var (
	parseMessage       string
	parseInput         string
	parseFormat        string
	parseThreshold     float64
	parseShowMovements bool
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse M-Pesa messages without importing them",
	Long: `Parse extracts typed transactions from M-Pesa messages and prints them
together with the monetary movements each message decomposes into. Nothing
is persisted; use the import command to record movements in a ledger.

Examples:
  # Single message
  smsledger parse --message "TJ6CF6NDST Confirmed. Ksh30.00 sent to Simon Nderitu ..."

  # Batch file, JSON output
  smsledger parse --input messages.txt --format json

  # CSV batch with a custom review threshold
  smsledger parse --input export.csv --review-threshold 0.9`,

	PreRunE: validateParseFlags,
	RunE:    runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseMessage, "message", "m", "", "a single SMS to parse")
	parseCmd.Flags().StringVarP(&parseInput, "input", "i", "", "path to an SMS batch file (text or CSV)")
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "console", "output format: console, json")
	parseCmd.Flags().Float64Var(&parseThreshold, "review-threshold", 0, "override the review threshold (0..1)")
	parseCmd.Flags().BoolVar(&parseShowMovements, "movements", true, "show decomposed movements")

	viper.BindPFlag("parse.format", parseCmd.Flags().Lookup("format"))
	viper.BindPFlag("parse.review-threshold", parseCmd.Flags().Lookup("review-threshold"))
}

func validateParseFlags(cmd *cobra.Command, args []string) error {
	if parseMessage == "" && parseInput == "" {
		return fmt.Errorf("either --message or --input is required")
	}
	if parseMessage != "" && parseInput != "" {
		return fmt.Errorf("--message and --input are mutually exclusive")
	}

	switch strings.ToLower(parseFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json", parseFormat)
	}

	if parseThreshold < 0 || parseThreshold > 1 {
		return fmt.Errorf("review threshold must be between 0 and 1")
	}
	return nil
}

// parsedOutput pairs one input with its pipeline results for rendering.
type parsedOutput struct {
	Line      int                       `json:"line,omitempty"`
	Text      string                    `json:"text"`
	Parsed    *models.ParsedMessage     `json:"parsed,omitempty"`
	Movements []models.MonetaryMovement `json:"movements,omitempty"`
	Skipped   bool                      `json:"skipped"`
}

func runParse(cmd *cobra.Command, args []string) error {
	p := parser.NewWithConfig(config.CreateScorerConfig(parseThreshold))

	var messages []loader.Message
	if parseMessage != "" {
		messages = []loader.Message{{Line: 1, Text: parseMessage}}
	} else {
		l, err := loader.NewLoader(loader.DefaultConfig())
		if err != nil {
			return err
		}
		messages, err = l.LoadMessages(parseInput)
		if err != nil {
			return err
		}
	}

	outputs := make([]parsedOutput, 0, len(messages))
	for _, msg := range messages {
		out := parsedOutput{Line: msg.Line, Text: msg.Text}

		parsed, ok := p.Parse(msg.Text)
		if !ok {
			out.Skipped = true
			outputs = append(outputs, out)
			continue
		}
		out.Parsed = parsed
		if parseShowMovements {
			out.Movements = decomposer.Decompose(parsed, msg.Text, &decomposer.Options{
				CategoryIDs: config.DefaultCategoryIDs(),
			})
		}
		outputs = append(outputs, out)
	}

	if strings.ToLower(parseFormat) == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(outputs)
	}

	printParsedConsole(outputs)
	return nil
}

func printParsedConsole(outputs []parsedOutput) {
	for _, out := range outputs {
		if out.Skipped {
			fmt.Printf("line %d: not a mobile-money message\n\n", out.Line)
			continue
		}
		p := out.Parsed

		fmt.Printf("line %d: %s\n", out.Line, p.Description)
		fmt.Printf("  kind:        %s (%s)\n", p.Kind, p.Direction)
		fmt.Printf("  amount:      KSh %s\n", p.Amount.StringFixed(2))
		if p.Counterparty != "" {
			fmt.Printf("  counterparty: %s\n", p.Counterparty)
		}
		if p.ProviderReference != "" {
			fmt.Printf("  reference:   %s\n", p.ProviderReference)
		}
		if p.Timestamp != nil {
			fmt.Printf("  occurred:    %s\n", p.Timestamp.Format("2006-01-02 15:04"))
		}
		if p.BalanceAfter != nil {
			fmt.Printf("  balance:     KSh %s\n", p.BalanceAfter.StringFixed(2))
		}
		if p.TotalFees.IsPositive() || p.TransactionFee != nil {
			fmt.Printf("  total fees:  KSh %s\n", p.TotalFees.StringFixed(2))
		}
		fmt.Printf("  category:    %s\n", p.SuggestedCategory)
		fmt.Printf("  confidence:  %.2f", p.Confidence)
		if p.RequiresReview {
			fmt.Printf("  (needs review)")
		}
		fmt.Println()

		for _, m := range out.Movements {
			sign := "-"
			if m.Direction == models.DirectionCredit {
				sign = "+"
			}
			fmt.Printf("  movement [%s] %sKSh %s  %s\n", m.Role, sign, m.Amount.StringFixed(2), m.Description)
		}
		fmt.Println()
	}
}
