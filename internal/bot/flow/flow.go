package flow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"monobot/core/logger"
	"monobot/internal/bot/render"
	"monobot/internal/models"
	"monobot/internal/monobank"
	"monobot/internal/service"
	"monobot/internal/storage"
)

// Users is the slice of the user service the conversation needs.
type Users interface {
	Get(ctx context.Context, telegramID int64) (*models.User, error)
	SaveValidatedToken(ctx context.Context, p service.Profile, token, bankName string, awaitingSelection bool) (*models.User, error)
	SetSelection(ctx context.Context, telegramID int64, accountID string) (*models.User, error)
	EnterSelection(ctx context.Context, telegramID int64) (*models.User, error)
}

// SnapshotFetcher fetches a fresh account snapshot for a token. Balances are
// never cached; every view reflects a live call.
type SnapshotFetcher interface {
	FetchClientInfo(ctx context.Context, token string) (*monobank.ClientInfo, error)
}

// Flow implements the conversation: linking a token, choosing a primary
// account and showing balances. It is transport-agnostic; handlers feed it
// the sender profile and the message text and send back the returned reply.
// Every inbound event produces exactly one reply.
//
// A user record is created only on the first successful token validation;
// read-only commands never write.
type Flow struct {
	users Users
	bank  SnapshotFetcher
}

func New(users Users, bank SnapshotFetcher) *Flow {
	return &Flow{users: users, bank: bank}
}

// Start handles /start.
func (f *Flow) Start(ctx context.Context) (string, error) {
	return msgStart, nil
}

// Connect handles /connect. The next free-text message will be treated as a
// token attempt.
func (f *Flow) Connect(ctx context.Context) (string, error) {
	return msgConnectPrompt, nil
}

// Me handles /me: a fresh snapshot of all accounts with the chosen primary
// flagged.
func (f *Flow) Me(ctx context.Context, telegramID int64) (string, error) {
	u, err := f.users.Get(ctx, telegramID)
	if err != nil {
		return f.storeFailure(ctx, err)
	}
	if !u.HasToken() {
		return msgConnectFirst, nil
	}

	info, err := f.bank.FetchClientInfo(ctx, u.MonobankToken)
	if err != nil {
		return msgFetchFailed, nil
	}
	if len(info.Accounts) == 0 {
		return msgNoAccounts, nil
	}
	return render.PrimarySummary(u.MonobankName, info.Accounts, u.MainAccountID), nil
}

// Select handles /select: re-enter account selection with the stored token,
// against a fresh snapshot.
func (f *Flow) Select(ctx context.Context, telegramID int64) (string, error) {
	u, err := f.users.Get(ctx, telegramID)
	if err != nil {
		return f.storeFailure(ctx, err)
	}
	if !u.HasToken() {
		return msgConnectFirst, nil
	}

	info, err := f.bank.FetchClientInfo(ctx, u.MonobankToken)
	if err != nil {
		return msgFetchFailed, nil
	}
	if len(info.Accounts) == 0 {
		return msgNoAccounts, nil
	}

	if _, err := f.users.EnterSelection(ctx, telegramID); err != nil {
		return f.storeFailure(ctx, err)
	}
	list := render.AccountList(info.Accounts, u.MainAccountID)
	return msgSelectionPrompt(len(info.Accounts), list), nil
}

// HandleText routes a free-text message. While the user is awaiting account
// selection the text is an index into the numbered list; otherwise it is a
// token attempt.
func (f *Flow) HandleText(ctx context.Context, p service.Profile, text string) (string, error) {
	u, err := f.users.Get(ctx, p.TelegramID)
	if err != nil {
		return f.storeFailure(ctx, err)
	}

	if u != nil && u.AwaitingSelection {
		return f.handleSelection(ctx, u, text)
	}
	return f.handleToken(ctx, p, text)
}

func (f *Flow) handleToken(ctx context.Context, p service.Profile, text string) (string, error) {
	token := strings.TrimSpace(text)
	if token == "" {
		return msgConnectPrompt, nil
	}

	info, err := f.bank.FetchClientInfo(ctx, token)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "token.rejected",
			slog.Int64("user_id", p.TelegramID),
		)
		return msgFetchFailed, nil
	}

	awaiting := len(info.Accounts) > 0
	if _, err := f.users.SaveValidatedToken(ctx, p, token, info.Name, awaiting); err != nil {
		return f.storeFailure(ctx, err)
	}

	if !awaiting {
		return msgTokenAccepted(info.Name) + "\n" + msgNoAccounts, nil
	}
	list := render.AccountList(info.Accounts, "")
	return msgTokenAccepted(info.Name) + "\n\n" + msgSelectionPrompt(len(info.Accounts), list), nil
}

func (f *Flow) handleSelection(ctx context.Context, u *models.User, text string) (string, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return msgEnterNumber, nil
	}

	// The snapshot may have changed since the list was shown, so the choice
	// is validated against a fresh one.
	info, err := f.bank.FetchClientInfo(ctx, u.MonobankToken)
	if err != nil {
		return msgFetchFailed, nil
	}
	if len(info.Accounts) == 0 {
		return msgNoAccounts, nil
	}
	if idx < 1 || idx > len(info.Accounts) {
		return msgOutOfRange(len(info.Accounts)), nil
	}

	chosen := info.Accounts[idx-1]
	if _, err := f.users.SetSelection(ctx, u.TelegramID, chosen.ID); err != nil {
		return f.storeFailure(ctx, err)
	}

	logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "selection.confirmed",
		slog.Int64("user_id", u.TelegramID),
		slog.String("account_id", chosen.ID),
	)
	return msgSelected(idx) + "\n" + render.AccountLine(idx, chosen, chosen.ID), nil
}

// storeFailure produces the user-facing reply for a failed store call. The
// original error is returned so the handler summary logs it.
func (f *Flow) storeFailure(ctx context.Context, err error) (string, error) {
	if !errors.Is(err, storage.ErrUnavailable) {
		logger.LogEvent(ctx, logger.SVCUsers, slog.LevelError, "store.unexpected_error",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	return msgStoreUnavailable, err
}
