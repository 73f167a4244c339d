package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SMSGenerator generates synthetic M-Pesa notification batches for
// exercising the parser and importer.
type SMSGenerator struct {
	Count          int
	StartDate      time.Time
	EndDate        time.Time
	MinAmount      decimal.Decimal
	MaxAmount      decimal.Decimal
	DuplicateRatio float64
	NoiseRatio     float64
	Seed           int64

	rng *rand.Rand
}

var recipients = []string{
	"SIMON NDERITU", "JANE WANJIKU", "PETER KAMAU", "MARY AKINYI",
	"DAVID OTIENO", "GRACE MUTHONI", "JOHN MWANGI", "ESTHER NJERI",
}

var merchants = []string{
	"NAIVAS SUPERMARKET", "JAVA HOUSE", "QUICKMART LTD", "TOTAL ENERGIES",
	"CARREFOUR", "CHEMIST PHARMACY",
}

var noiseMessages = []string{
	"Your OTP code is 483920. Do not share it with anyone.",
	"Dear customer, your appointment is confirmed for tomorrow at 10 AM.",
	"CONGRATULATIONS! You have won a prize. Call now to claim.",
	"Reminder: parents meeting on Friday at the school hall.",
}

func main() {
	var (
		output         = flag.String("output", "generated_messages.txt", "Output file path (.txt or .csv)")
		count          = flag.Int("count", 200, "Number of messages to generate")
		startDate      = flag.String("start-date", "2025-01-01", "Start date (YYYY-MM-DD)")
		endDate        = flag.String("end-date", "2025-12-31", "End date (YYYY-MM-DD)")
		minAmount      = flag.Float64("min-amount", 10.00, "Minimum transaction amount")
		maxAmount      = flag.Float64("max-amount", 25000.00, "Maximum transaction amount")
		duplicateRatio = flag.Float64("duplicate-ratio", 0.05, "Fraction of messages repeated verbatim")
		noiseRatio     = flag.Float64("noise-ratio", 0.05, "Fraction of non-mobile-money messages")
		seed           = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}

	generator := &SMSGenerator{
		Count:          *count,
		StartDate:      start,
		EndDate:        end,
		MinAmount:      decimal.NewFromFloat(*minAmount),
		MaxAmount:      decimal.NewFromFloat(*maxAmount),
		DuplicateRatio: *duplicateRatio,
		NoiseRatio:     *noiseRatio,
		Seed:           *seed,
		rng:            rand.New(rand.NewSource(*seed)),
	}

	messages := generator.Generate()

	if err := generator.Write(*output, messages); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	fmt.Printf("Generated %d messages in %s\n", len(messages), *output)
	fmt.Printf("Date range: %s to %s\n", start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("Seed used: %d\n", *seed)
}

// Generate produces the batch: a mix of sent, received, paybill, till,
// withdrawal, airtime and Fuliza messages, with duplicates and noise
// injected at the configured ratios.
func (g *SMSGenerator) Generate() []string {
	messages := make([]string, 0, g.Count)

	for i := 0; i < g.Count; i++ {
		if g.rng.Float64() < g.NoiseRatio {
			messages = append(messages, noiseMessages[g.rng.Intn(len(noiseMessages))])
			continue
		}
		if g.rng.Float64() < g.DuplicateRatio && len(messages) > 0 {
			messages = append(messages, messages[g.rng.Intn(len(messages))])
			continue
		}
		messages = append(messages, g.generateOne(i))
	}

	return messages
}

func (g *SMSGenerator) generateOne(i int) string {
	ref := g.reference(i)
	amount := g.amount()
	balance := g.amount()
	fee := decimal.NewFromInt(int64(g.rng.Intn(35))).Round(2)
	at := g.timestamp()
	date := at.Format("2/1/06")
	clock := at.Format("3:04 PM")

	switch g.rng.Intn(7) {
	case 0:
		return fmt.Sprintf("%s Confirmed. Ksh%s sent to %s 0722%06d on %s at %s. New M-PESA balance is Ksh%s. Transaction cost, Ksh%s.",
			ref, amount.StringFixed(2), g.pick(recipients), g.rng.Intn(1000000), date, clock, balance.StringFixed(2), fee.StringFixed(2))
	case 1:
		return fmt.Sprintf("%s Confirmed. You have received Ksh%s from %s 0711%06d on %s at %s. New M-PESA balance is Ksh%s.",
			ref, amount.StringFixed(2), g.pick(recipients), g.rng.Intn(1000000), date, clock, balance.StringFixed(2))
	case 2:
		return fmt.Sprintf("%s Confirmed. Ksh%s paid to %s. on %s at %s. New M-PESA balance is Ksh%s. Transaction cost, Ksh%s.",
			ref, amount.StringFixed(2), g.pick(merchants), date, clock, balance.StringFixed(2), fee.StringFixed(2))
	case 3:
		return fmt.Sprintf("%s Confirmed. Ksh%s sent to KPLC PREPAID for account %d on %s at %s. New M-PESA balance is Ksh%s. Transaction cost, Ksh%s.",
			ref, amount.StringFixed(2), 10000000+g.rng.Intn(90000000), date, clock, balance.StringFixed(2), fee.StringFixed(2))
	case 4:
		return fmt.Sprintf("%s Confirmed. on %s at %s Withdraw Ksh%s from %d - AGENT %s. New M-PESA balance is Ksh%s. Transaction cost, Ksh%s.",
			ref, date, clock, amount.StringFixed(2), 100000+g.rng.Intn(900000), g.pick(merchants), balance.StringFixed(2), fee.StringFixed(2))
	case 5:
		return fmt.Sprintf("%s Confirmed. You bought Ksh%s of airtime on %s at %s. New M-PESA balance is Ksh%s.",
			ref, amount.Round(0).StringFixed(2), date, clock, balance.StringFixed(2))
	default:
		outstanding := amount.Add(decimal.NewFromInt(5))
		return fmt.Sprintf("%s Confirmed. Fuliza M-PESA amount is Ksh%s. Access fee charged Ksh5.00. Total Fuliza M-PESA outstanding amount is Ksh%s due on %s.",
			ref, amount.StringFixed(2), outstanding.StringFixed(2), at.AddDate(0, 0, 30).Format("02/01/06"))
	}
}

func (g *SMSGenerator) reference(i int) string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	for j := range b {
		b[j] = alphabet[g.rng.Intn(len(alphabet))]
	}
	return fmt.Sprintf("T%s%03d", string(b), i%1000)
}

func (g *SMSGenerator) amount() decimal.Decimal {
	span := g.MaxAmount.Sub(g.MinAmount)
	return decimal.NewFromFloat(g.rng.Float64()).Mul(span).Add(g.MinAmount).Round(2)
}

func (g *SMSGenerator) timestamp() time.Time {
	duration := g.EndDate.Sub(g.StartDate)
	return g.StartDate.Add(time.Duration(g.rng.Int63n(int64(duration))))
}

func (g *SMSGenerator) pick(list []string) string {
	return list[g.rng.Intn(len(list))]
}

// Write persists the batch, as one message per line for .txt or as a
// single-column CSV for .csv.
func (g *SMSGenerator) Write(path string, messages []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		writer := csv.NewWriter(file)
		defer writer.Flush()
		if err := writer.Write([]string{"message"}); err != nil {
			return err
		}
		for _, msg := range messages {
			if err := writer.Write([]string{msg}); err != nil {
				return err
			}
		}
		return nil
	}

	w := bufio.NewWriter(file)
	defer w.Flush()
	for _, msg := range messages {
		if _, err := fmt.Fprintln(w, msg); err != nil {
			return err
		}
	}
	return nil
}
