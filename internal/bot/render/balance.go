package render

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"monobot/internal/monobank"
)

// Markers appended to the chosen account's line. The selection list uses the
// primary marker, the /me view uses the current marker.
const (
	markerPrimary = "[ОСНОВНИЙ]"
	markerCurrent = "[ПОТОЧНИЙ]"
)

var hundred = decimal.NewFromInt(100)

// FormatAmount renders a minor-unit balance as a fixed two-decimal amount.
func FormatAmount(minor int64) string {
	return decimal.NewFromInt(minor).Div(hundred).StringFixed(2)
}

// CurrencyLabel maps an ISO 4217 numeric code to the label shown to the user.
// Only hryvnia gets a human name; everything else keeps the raw code.
func CurrencyLabel(code int) string {
	if code == 980 {
		return "грн"
	}
	return fmt.Sprintf("код валюти %d", code)
}

func accountLine(index int, acc monobank.Account, primaryID, marker string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. Баланс: %s %s", index, FormatAmount(acc.Balance), CurrencyLabel(acc.CurrencyCode))
	if len(acc.MaskedPan) > 0 && acc.MaskedPan[0] != "" {
		fmt.Fprintf(&b, " (%s)", acc.MaskedPan[0])
	}
	if primaryID != "" && acc.ID == primaryID {
		b.WriteString(" " + marker)
	}
	return b.String()
}

// AccountLine renders one numbered line of the account list. Index is
// 1-based. The first masked PAN, when present, follows the amount in
// parentheses, and the marker tail flags the primary account.
func AccountLine(index int, acc monobank.Account, primaryID string) string {
	return accountLine(index, acc, primaryID, markerPrimary)
}

// AccountList renders the numbered list of all accounts for the selection
// prompt, flagging the stored primary account when it is present.
func AccountList(accounts []monobank.Account, primaryID string) string {
	lines := make([]string, 0, len(accounts))
	for i, acc := range accounts {
		lines = append(lines, accountLine(i+1, acc, primaryID, markerPrimary))
	}
	return strings.Join(lines, "\n")
}

// PrimarySummary renders the balance view for /me: every account from the
// fresh snapshot, with the chosen primary flagged as current. A stored
// primary id that no longer appears in the snapshot simply goes unflagged.
func PrimarySummary(name string, accounts []monobank.Account, primaryID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s\n\n", name)
	lines := make([]string, 0, len(accounts))
	for i, acc := range accounts {
		lines = append(lines, accountLine(i+1, acc, primaryID, markerCurrent))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}
