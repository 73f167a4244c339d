// Package categorize suggests a spending-category name for a parsed
// mobile-money transaction from its message text and counterparty.
// Suggestions are free-form names; mapping a name to a ledger category id
// is the caller's concern and happens at decomposition time.
package categorize

import (
	"regexp"
	"strings"
	"unicode"
)

// Category names the suggester can return.
const (
	CategoryUtilities          = "Utilities"
	CategoryTelecommunications = "Telecommunications"
	CategoryLoansCredit        = "Loans & Credit"
	CategoryTransport          = "Transport"
	CategoryFoodDining         = "Food & Dining"
	CategoryShopping           = "Shopping"
	CategoryHealth             = "Health"
	CategoryEducation          = "Education"
	CategoryEntertainment      = "Entertainment"
	CategoryFinancial          = "Financial Services"
	CategoryGovernment         = "Government & Services"
	CategoryPersonalTransfer   = "Personal Transfer"
	CategoryBillsFees          = "Bills & Fees"
	CategoryTransactionFees    = "Transaction Fees"
	CategoryOther              = "Other"
)

var paybillRe = regexp.MustCompile(`paybill\s+(\d+)`)

// Known Kenyan utility paybill numbers. An exact paybill hit wins over
// every keyword rule.
var paybillCategories = map[string]string{
	"888880": CategoryUtilities, // KPLC prepaid
	"888888": CategoryUtilities, // KPLC postpaid
	"444400": CategoryUtilities, // Nairobi Water
	"895500": CategoryUtilities, // Mombasa Water
	"517000": CategoryUtilities, // Kisumu Water
	"111444": CategoryUtilities, // Nakuru Water
	"511000": CategoryUtilities, // Eldoret Water
	"885100": CategoryUtilities, // Kiambu Water
	"880600": CategoryUtilities, // Garissa Water
	"363100": CategoryUtilities, // Mavoko Water
	"200200": CategoryTelecommunications,
}

// keywordRule pairs a category with its vocabulary. Rules are evaluated in
// order and the first hit wins, so broader vocabularies sit later.
type keywordRule struct {
	category string
	keywords []string
}

var keywordRules = []keywordRule{
	{CategoryUtilities, []string{
		"kplc", "kenya power", "electricity", "prepaid", "postpaid", "power",
		"water", "nairobi water", "mombasa water", "kisumu water", "nakuru water",
		"eldoret water", "kiambu water", "garissa water", "mavoko water", "ncwsc",
		"safaricom", "airtel", "telkom", "data bundles", "airtime", "bundles",
		"internet", "wifi", "broadband", "faiba", "zuku", "wananchi",
		"gas", "lpg", "cooking gas",
	}},
	{CategoryTransport, []string{
		"uber", "bolt", "taxi", "matatu", "boda", "boda boda", "fuel", "petrol",
		"parking", "transport", "bus", "travel", "fare", "sgr", "railway",
		"kenya airways", "jambojet", "fly540", "flight", "airline",
	}},
	{CategoryFoodDining, []string{
		"restaurant", "hotel", "food", "cafe", "kitchen", "meal",
		"lunch", "dinner", "breakfast", "snack", "delivery", "takeaway",
		"kfc", "pizza", "subway", "java", "artcaffe", "chicken inn",
	}},
	{CategoryShopping, []string{
		"shop", "store", "market", "supermarket", "mall", "outlet",
		"retail", "purchase", "buy", "nakumatt", "tuskys", "carrefour",
		"naivas", "chandarana", "quickmart", "cleanshelf", "eastmatt",
	}},
	{CategoryHealth, []string{
		"hospital", "clinic", "pharmacy", "medical", "doctor", "health",
		"medicine", "treatment", "consultation", "nhif", "aga khan",
		"nairobi hospital", "kenyatta hospital", "mater hospital",
	}},
	{CategoryEducation, []string{
		"school", "university", "college", "education", "tuition",
		"fees", "academic", "learning", "course", "uon", "ku", "mku",
		"strathmore", "usiu", "kabarak",
	}},
	{CategoryEntertainment, []string{
		"cinema", "movie", "game", "sport", "entertainment", "music",
		"concert", "show", "theatre", "fun", "betting", "sportpesa",
		"betin", "mcheza", "club", "disco",
	}},
	{CategoryFinancial, []string{
		"bank", "equity", "kcb", "cooperative", "barclays", "standard chartered",
		"family bank", "gt bank", "loan", "credit", "savings", "account",
		"ncba", "diamond trust", "i&m bank", "housing finance", "sidian bank",
		"centum", "sacco",
	}},
	{CategoryGovernment, []string{
		"government", "ministry", "county", "kra", "nhif", "nssf",
		"huduma", "license", "permit", "registration", "ntsa", "lands",
		"attorney general", "court", "police", "immigration",
	}},
}

// Suggest returns the category name for a message and its counterparty.
// Order matters: exact paybill codes, then Fuliza, then the keyword rules,
// then the person-name heuristic, then the paybill/till fallback, and
// finally Other. Deterministic and total.
func Suggest(message, recipient string) string {
	combined := strings.ToLower(message) + " " + strings.ToLower(recipient)

	if m := paybillRe.FindStringSubmatch(combined); m != nil {
		if category, ok := paybillCategories[m[1]]; ok {
			return category
		}
	}

	if strings.Contains(combined, "fuliza") {
		return CategoryLoansCredit
	}

	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(combined, kw) {
				return rule.category
			}
		}
	}

	if looksLikePersonName(recipient) {
		return CategoryPersonalTransfer
	}

	for _, kw := range []string{"paybill", "till", "bill payment"} {
		if strings.Contains(combined, kw) {
			return CategoryBillsFees
		}
	}

	return CategoryOther
}

// looksLikePersonName reports whether the counterparty reads like a
// person: at least two words, every word alphabetic, longer than one
// rune and starting with an upper-case letter.
func looksLikePersonName(recipient string) bool {
	words := strings.Fields(recipient)
	if len(words) < 2 {
		return false
	}

	for _, word := range words {
		runes := []rune(word)
		if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes {
			if !unicode.IsLetter(r) {
				return false
			}
		}
	}
	return true
}
