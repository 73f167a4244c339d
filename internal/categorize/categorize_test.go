package categorize

import "testing"

func TestSuggestPaybillCodes(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"kplc prepaid", "Ksh1,450.00 sent to KPLC paybill 888880 account 54401234", CategoryUtilities},
		{"kplc postpaid", "paid via paybill 888888 for account 1234", CategoryUtilities},
		{"nairobi water", "sent to paybill 444400 account A123", CategoryUtilities},
		{"telkom paybill", "sent via paybill 200200", CategoryTelecommunications},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Suggest(tt.message, ""); got != tt.want {
				t.Errorf("Suggest(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestSuggestFulizaWinsOverKeywords(t *testing.T) {
	// "loan" alone maps to Financial Services; a Fuliza mention takes
	// precedence regardless of other vocabulary.
	got := Suggest("Fuliza M-PESA loan of Ksh50.00 disbursed", "")
	if got != CategoryLoansCredit {
		t.Errorf("Expected %q, got %q", CategoryLoansCredit, got)
	}
}

func TestSuggestKeywordRules(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		recipient string
		want      string
	}{
		{"electricity", "payment for electricity token", "KPLC PREPAID", CategoryUtilities},
		{"airtime", "you bought airtime", "", CategoryUtilities},
		{"ride hailing", "payment confirmed", "UBER KENYA", CategoryTransport},
		{"fuel", "paid for petrol", "TOTAL ENERGIES", CategoryTransport},
		{"restaurant", "paid to JAVA HOUSE", "", CategoryFoodDining},
		{"supermarket", "paid to NAIVAS LIMITED", "", CategoryShopping},
		{"pharmacy", "sent to GOODLIFE PHARMACY", "", CategoryHealth},
		{"school fees", "tuition for term one", "GREENFIELDS SCHOOL", CategoryEducation},
		{"betting", "deposit to SPORTPESA", "", CategoryEntertainment},
		{"bank transfer", "sent to EQUITY BANK", "", CategoryFinancial},
		{"tax", "KRA PIN registration payment", "", CategoryGovernment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Suggest(tt.message, tt.recipient); got != tt.want {
				t.Errorf("Suggest(%q, %q) = %q, want %q", tt.message, tt.recipient, got, tt.want)
			}
		})
	}
}

func TestSuggestPersonNameFallsBackToPersonalTransfer(t *testing.T) {
	got := Suggest("Ksh30.00 moved on 6/10/25", "Simon Nderitu")
	if got != CategoryPersonalTransfer {
		t.Errorf("Expected %q, got %q", CategoryPersonalTransfer, got)
	}
}

func TestSuggestBillsFeesFallback(t *testing.T) {
	got := Suggest("Ksh200.00 via paybill 999999 done", "")
	if got != CategoryBillsFees {
		t.Errorf("Expected %q for unknown paybill, got %q", CategoryBillsFees, got)
	}
}

func TestSuggestOther(t *testing.T) {
	got := Suggest("Ksh200.00 moved", "X9")
	if got != CategoryOther {
		t.Errorf("Expected %q, got %q", CategoryOther, got)
	}
}

func TestLooksLikePersonName(t *testing.T) {
	tests := []struct {
		recipient string
		want      bool
	}{
		{"Simon Nderitu", true},
		{"Mary Jane Wanjiku", true},
		{"Simon", false},
		{"simon nderitu", false},
		{"Simon N1deritu", false},
		{"KPLC 888880", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := looksLikePersonName(tt.recipient); got != tt.want {
			t.Errorf("looksLikePersonName(%q) = %v, want %v", tt.recipient, got, tt.want)
		}
	}
}
