package models

import "time"

// User is the persisted record for a Telegram user of the bot.
//
// SequenceID is assigned by the database on insert and is stable for the
// lifetime of the record. AwaitingSelection marks that the user has been shown
// the numbered account list and the next free-text message is expected to be
// an account index.
type User struct {
	TelegramID        int64     `db:"telegram_id"`
	SequenceID        int64     `db:"sequence_id"`
	Username          string    `db:"username"`
	Name              string    `db:"name"`
	LanguageCode      string    `db:"language_code"`
	IsPremium         bool      `db:"is_premium"`
	MonobankToken     string    `db:"monobank_token"`
	MonobankName      string    `db:"monobank_name"`
	MainAccountID     string    `db:"main_account_id"`
	AwaitingSelection bool      `db:"awaiting_account_selection"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// HasToken reports whether the user has linked a bank token.
func (u *User) HasToken() bool {
	return u != nil && u.MonobankToken != ""
}
