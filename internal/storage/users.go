package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"monobot/core/logger"
	"monobot/internal/models"
)

// ErrUnavailable wraps any database failure so callers can treat the store as
// a single dependency that is either reachable or not.
var ErrUnavailable = errors.New("user store unavailable")

const userColumns = `telegram_id, sequence_id, username, name, language_code, is_premium,
	monobank_token, monobank_name, main_account_id, awaiting_account_selection,
	created_at, updated_at`

// CreateParams holds the fields required to insert a new user row.
type CreateParams struct {
	TelegramID   int64
	Username     string
	Name         string
	LanguageCode string
	IsPremium    bool
}

// Patch lists the updatable user fields. Nil pointers leave the stored value
// untouched, which keeps a partial update from clobbering concurrent writes.
type Patch struct {
	Username          *string
	Name              *string
	LanguageCode      *string
	IsPremium         *bool
	MonobankToken     *string
	MonobankName      *string
	MainAccountID     *string
	AwaitingSelection *bool
}

// Repo provides access to the users table.
type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// GetByTelegramID returns the user record, or (nil, nil) when no row exists.
func (r *Repo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	start := time.Now()
	var u models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	err := r.db.GetContext(ctx, &u, query, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logFailure(ctx, "users.get", telegramID, start, err)
		return nil, fmt.Errorf("%w: get telegram_id=%d: %v", ErrUnavailable, telegramID, err)
	}
	return &u, nil
}

// Create inserts a new user and returns the stored row, including the
// database-assigned sequence id.
func (r *Repo) Create(ctx context.Context, p CreateParams) (*models.User, error) {
	start := time.Now()
	var u models.User
	query := `INSERT INTO users (telegram_id, username, name, language_code, is_premium)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	err := r.db.GetContext(ctx, &u, query, p.TelegramID, p.Username, p.Name, p.LanguageCode, p.IsPremium)
	if err != nil {
		r.logFailure(ctx, "users.create", p.TelegramID, start, err)
		return nil, fmt.Errorf("%w: create telegram_id=%d: %v", ErrUnavailable, p.TelegramID, err)
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "users.create",
		slog.Int64("user_id", u.TelegramID),
		slog.Int64("sequence_id", u.SequenceID),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return &u, nil
}

// Update applies the non-nil fields of the patch and returns the stored row.
// Returns (nil, nil) when the user does not exist.
func (r *Repo) Update(ctx context.Context, telegramID int64, p Patch) (*models.User, error) {
	start := time.Now()
	var u models.User
	query := `UPDATE users SET
		username = COALESCE($2, username),
		name = COALESCE($3, name),
		language_code = COALESCE($4, language_code),
		is_premium = COALESCE($5, is_premium),
		monobank_token = COALESCE($6, monobank_token),
		monobank_name = COALESCE($7, monobank_name),
		main_account_id = COALESCE($8, main_account_id),
		awaiting_account_selection = COALESCE($9, awaiting_account_selection),
		updated_at = now()
		WHERE telegram_id = $1
		RETURNING ` + userColumns
	err := r.db.GetContext(ctx, &u, query, telegramID,
		p.Username, p.Name, p.LanguageCode, p.IsPremium,
		p.MonobankToken, p.MonobankName, p.MainAccountID, p.AwaitingSelection)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logFailure(ctx, "users.update", telegramID, start, err)
		return nil, fmt.Errorf("%w: update telegram_id=%d: %v", ErrUnavailable, telegramID, err)
	}
	return &u, nil
}

func (r *Repo) logFailure(ctx context.Context, event string, telegramID int64, start time.Time, err error) {
	logger.LogEvent(ctx, logger.DB, slog.LevelError, event,
		slog.String("status", "fail"),
		slog.Int64("user_id", telegramID),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.String("err_code", "STORE_UNAVAILABLE"),
	)
}
