package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"monobot/internal/monobank"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1500.00", FormatAmount(150000))
	assert.Equal(t, "5.00", FormatAmount(500))
	assert.Equal(t, "0.01", FormatAmount(1))
	assert.Equal(t, "-12.34", FormatAmount(-1234))
	assert.Equal(t, "0.00", FormatAmount(0))
}

func TestCurrencyLabel(t *testing.T) {
	assert.Equal(t, "грн", CurrencyLabel(980))
	assert.Equal(t, "код валюти 840", CurrencyLabel(840))
	assert.Equal(t, "код валюти 978", CurrencyLabel(978))
}

func TestAccountLine(t *testing.T) {
	acc := monobank.Account{
		ID:           "a1",
		Balance:      150000,
		CurrencyCode: 980,
		MaskedPan:    []string{"537541******1234"},
	}
	assert.Equal(t, "1. Баланс: 1500.00 грн (537541******1234)", AccountLine(1, acc, ""))
	assert.Equal(t, "1. Баланс: 1500.00 грн (537541******1234) [ОСНОВНИЙ]", AccountLine(1, acc, "a1"))

	noPan := monobank.Account{ID: "a2", Balance: 500, CurrencyCode: 840}
	assert.Equal(t, "2. Баланс: 5.00 код валюти 840", AccountLine(2, noPan, "a1"))
}

func TestAccountList(t *testing.T) {
	accounts := []monobank.Account{
		{ID: "a1", Balance: 150000, CurrencyCode: 980},
		{ID: "a2", Balance: 500, CurrencyCode: 840},
	}
	got := AccountList(accounts, "a2")
	want := "1. Баланс: 1500.00 грн\n2. Баланс: 5.00 код валюти 840 [ОСНОВНИЙ]"
	assert.Equal(t, want, got)
}

func TestPrimarySummaryAnnotatesPrimary(t *testing.T) {
	accounts := []monobank.Account{
		{ID: "a1", Balance: 150000, CurrencyCode: 980},
		{ID: "a2", Balance: 500, CurrencyCode: 840},
	}
	got := PrimarySummary("Тарас", accounts, "a2")
	want := "👤 Тарас\n\n1. Баланс: 1500.00 грн\n2. Баланс: 5.00 код валюти 840 [ПОТОЧНИЙ]"
	assert.Equal(t, want, got)
}

func TestPrimarySummaryStalePrimaryGoesUnflagged(t *testing.T) {
	accounts := []monobank.Account{
		{ID: "a1", Balance: 150000, CurrencyCode: 980},
	}
	got := PrimarySummary("Тарас", accounts, "gone")
	assert.Equal(t, "👤 Тарас\n\n1. Баланс: 1500.00 грн", got)
}

func TestPrimarySummaryNoPrimary(t *testing.T) {
	accounts := []monobank.Account{
		{ID: "a1", Balance: 100, CurrencyCode: 980},
		{ID: "a2", Balance: 200, CurrencyCode: 980},
	}
	got := PrimarySummary("Ім'я", accounts, "")
	assert.Equal(t, "👤 Ім'я\n\n1. Баланс: 1.00 грн\n2. Баланс: 2.00 грн", got)
}
