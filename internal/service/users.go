package service

import (
	"context"
	"log/slog"
	"time"

	"monobot/core/logger"
	"monobot/internal/models"
	"monobot/internal/session"
	"monobot/internal/storage"
)

// UserStore is the persistence surface the service needs.
type UserStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	Create(ctx context.Context, p storage.CreateParams) (*models.User, error)
	Update(ctx context.Context, telegramID int64, p storage.Patch) (*models.User, error)
}

// Profile carries the Telegram-side identity fields of the current sender.
type Profile struct {
	TelegramID   int64
	Username     string
	Name         string
	LanguageCode string
	IsPremium    bool
}

// Users coordinates the store and the session cache. The cache is updated only
// after a confirmed store write, so a failed write never leaves the cache
// ahead of the database.
type Users struct {
	store UserStore
	cache *session.Cache
}

func NewUsers(store UserStore, cache *session.Cache) *Users {
	return &Users{store: store, cache: cache}
}

// Get returns the user record, via the cache. (nil, nil) means unknown user.
func (s *Users) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.cache.Get(ctx, telegramID)
}

// Ensure returns the stored user, creating the row on first contact and
// refreshing identity fields that changed on the Telegram side.
func (s *Users) Ensure(ctx context.Context, p Profile) (*models.User, error) {
	u, err := s.cache.Get(ctx, p.TelegramID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		created, err := s.store.Create(ctx, storage.CreateParams{
			TelegramID:   p.TelegramID,
			Username:     p.Username,
			Name:         p.Name,
			LanguageCode: p.LanguageCode,
			IsPremium:    p.IsPremium,
		})
		if err != nil {
			return nil, err
		}
		s.cache.Put(created)
		logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "user.created",
			slog.Int64("user_id", created.TelegramID),
			slog.Int64("sequence_id", created.SequenceID),
		)
		return created, nil
	}

	if u.Username != p.Username || u.Name != p.Name || u.LanguageCode != p.LanguageCode || u.IsPremium != p.IsPremium {
		updated, err := s.store.Update(ctx, p.TelegramID, storage.Patch{
			Username:     &p.Username,
			Name:         &p.Name,
			LanguageCode: &p.LanguageCode,
			IsPremium:    &p.IsPremium,
		})
		if err != nil {
			return nil, err
		}
		if updated != nil {
			s.cache.Put(updated)
			u = updated
		}
	}
	return u, nil
}

// SaveValidatedToken persists a token that the bank has already accepted,
// together with the bank-side profile name. Linking a token restarts account
// selection: the previous primary account is cleared and the user is put into
// selection when the account list is non-empty.
func (s *Users) SaveValidatedToken(ctx context.Context, p Profile, token, bankName string, awaitingSelection bool) (*models.User, error) {
	start := time.Now()

	if _, err := s.Ensure(ctx, p); err != nil {
		return nil, err
	}

	empty := ""
	updated, err := s.store.Update(ctx, p.TelegramID, storage.Patch{
		MonobankToken:     &token,
		MonobankName:      &bankName,
		MainAccountID:     &empty,
		AwaitingSelection: &awaitingSelection,
	})
	if err != nil {
		return nil, err
	}
	if updated != nil {
		s.cache.Put(updated)
	}

	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "token.linked",
		slog.Int64("user_id", p.TelegramID),
		slog.Bool("awaiting", awaitingSelection),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return updated, nil
}

// SetSelection records the chosen primary account and leaves selection mode.
func (s *Users) SetSelection(ctx context.Context, telegramID int64, accountID string) (*models.User, error) {
	awaiting := false
	updated, err := s.store.Update(ctx, telegramID, storage.Patch{
		MainAccountID:     &accountID,
		AwaitingSelection: &awaiting,
	})
	if err != nil {
		return nil, err
	}
	if updated != nil {
		s.cache.Put(updated)
		logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "selection.saved",
			slog.Int64("user_id", telegramID),
			slog.String("account_id", accountID),
		)
	}
	return updated, nil
}

// EnterSelection re-arms account selection without touching the stored token.
func (s *Users) EnterSelection(ctx context.Context, telegramID int64) (*models.User, error) {
	awaiting := true
	updated, err := s.store.Update(ctx, telegramID, storage.Patch{
		AwaitingSelection: &awaiting,
	})
	if err != nil {
		return nil, err
	}
	if updated != nil {
		s.cache.Put(updated)
	}
	return updated, nil
}
