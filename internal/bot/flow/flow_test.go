package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monobot/internal/models"
	"monobot/internal/monobank"
	"monobot/internal/service"
	"monobot/internal/session"
	"monobot/internal/storage"
)

type memStore struct {
	users   map[int64]*models.User
	nextSeq int64
	failing bool
	writes  int
}

func newMemStore() *memStore {
	return &memStore{users: make(map[int64]*models.User), nextSeq: 1}
}

func (m *memStore) GetByTelegramID(ctx context.Context, id int64) (*models.User, error) {
	if m.failing {
		return nil, fmt.Errorf("%w: get", storage.ErrUnavailable)
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) Create(ctx context.Context, p storage.CreateParams) (*models.User, error) {
	m.writes++
	if m.failing {
		return nil, fmt.Errorf("%w: create", storage.ErrUnavailable)
	}
	u := &models.User{
		TelegramID:   p.TelegramID,
		SequenceID:   m.nextSeq,
		Username:     p.Username,
		Name:         p.Name,
		LanguageCode: p.LanguageCode,
		IsPremium:    p.IsPremium,
	}
	m.nextSeq++
	m.users[p.TelegramID] = u
	cp := *u
	return &cp, nil
}

func (m *memStore) Update(ctx context.Context, id int64, p storage.Patch) (*models.User, error) {
	m.writes++
	if m.failing {
		return nil, fmt.Errorf("%w: update", storage.ErrUnavailable)
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.LanguageCode != nil {
		u.LanguageCode = *p.LanguageCode
	}
	if p.IsPremium != nil {
		u.IsPremium = *p.IsPremium
	}
	if p.MonobankToken != nil {
		u.MonobankToken = *p.MonobankToken
	}
	if p.MonobankName != nil {
		u.MonobankName = *p.MonobankName
	}
	if p.MainAccountID != nil {
		u.MainAccountID = *p.MainAccountID
	}
	if p.AwaitingSelection != nil {
		u.AwaitingSelection = *p.AwaitingSelection
	}
	cp := *u
	return &cp, nil
}

type fakeBank struct {
	infos   map[string]*monobank.ClientInfo
	err     error
	fetches int
}

func (f *fakeBank) FetchClientInfo(ctx context.Context, token string) (*monobank.ClientInfo, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.infos[token]
	if !ok {
		return nil, monobank.ErrInvalidOrUnreachable
	}
	return info, nil
}

func twoAccounts() *monobank.ClientInfo {
	return &monobank.ClientInfo{
		Name: "Леся Українка",
		Accounts: []monobank.Account{
			{ID: "uah", Balance: 150000, CurrencyCode: 980, MaskedPan: []string{"537541******1234"}},
			{ID: "usd", Balance: 500, CurrencyCode: 840},
		},
	}
}

func newFlow(store *memStore, bank *fakeBank) *Flow {
	cache := session.NewCache(store.GetByTelegramID)
	return New(service.NewUsers(store, cache), bank)
}

var alice = service.Profile{TelegramID: 100, Username: "lesya", Name: "Леся"}

func TestStartDoesNotWrite(t *testing.T) {
	store := newMemStore()
	f := newFlow(store, &fakeBank{})

	reply, err := f.Start(context.Background())
	require.NoError(t, err)
	assert.Contains(t, reply, "/connect")
	assert.Zero(t, store.writes)
}

func TestConnectThenValidTokenEntersSelection(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok-ok": twoAccounts()}}
	f := newFlow(store, bank)

	reply, err := f.Connect(context.Background())
	require.NoError(t, err)
	assert.Contains(t, reply, "api.monobank.ua")

	reply, err = f.HandleText(context.Background(), alice, "tok-ok")
	require.NoError(t, err)
	assert.Contains(t, reply, "Леся Українка")
	assert.Contains(t, reply, "1..2")
	assert.Contains(t, reply, "1. Баланс: 1500.00 грн (537541******1234)")
	assert.Contains(t, reply, "2. Баланс: 5.00 код валюти 840")

	u := store.users[100]
	require.NotNil(t, u, "record is created on first successful validation")
	assert.EqualValues(t, 1, u.SequenceID)
	assert.Equal(t, "tok-ok", u.MonobankToken)
	assert.Equal(t, "Леся Українка", u.MonobankName)
	assert.Equal(t, "lesya", u.Username)
	assert.True(t, u.AwaitingSelection)
}

func TestInvalidTokenWritesNothing(t *testing.T) {
	store := newMemStore()
	f := newFlow(store, &fakeBank{infos: map[string]*monobank.ClientInfo{}})

	reply, err := f.HandleText(context.Background(), alice, "garbage-token")
	require.NoError(t, err)
	assert.Equal(t, msgFetchFailed, reply)
	assert.Nil(t, store.users[100], "failed validation must not create a record")
	assert.Zero(t, store.writes)
}

func TestTokenWithNoAccountsSkipsSelection(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{
		"tok": {Name: "X", Accounts: []monobank.Account{}},
	}}
	f := newFlow(store, bank)

	reply, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)
	assert.Contains(t, reply, msgNoAccounts)
	assert.False(t, store.users[100].AwaitingSelection)
	assert.Equal(t, "tok", store.users[100].MonobankToken)
}

func TestSelectionHappyPath(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)

	_, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)

	reply, err := f.HandleText(context.Background(), alice, "2")
	require.NoError(t, err)
	assert.Contains(t, reply, "✅ Рахунок #2 обрано основним.")
	assert.Contains(t, reply, "5.00 код валюти 840")
	assert.Contains(t, reply, "[ОСНОВНИЙ]")

	u := store.users[100]
	assert.Equal(t, "usd", u.MainAccountID)
	assert.False(t, u.AwaitingSelection)
}

func TestSelectionNonNumericKeepsState(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)

	_, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)

	reply, err := f.HandleText(context.Background(), alice, "друге")
	require.NoError(t, err)
	assert.Equal(t, msgEnterNumber, reply)
	assert.True(t, store.users[100].AwaitingSelection)
}

func TestSelectionBoundaries(t *testing.T) {
	for _, tc := range []struct {
		input string
		ok    bool
	}{
		{"0", false},
		{"1", true},
		{"2", true},
		{"3", false},
		{"-1", false},
	} {
		t.Run(tc.input, func(t *testing.T) {
			store := newMemStore()
			bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
			f := newFlow(store, bank)

			_, err := f.HandleText(context.Background(), alice, "tok")
			require.NoError(t, err)

			reply, err := f.HandleText(context.Background(), alice, tc.input)
			require.NoError(t, err)
			if tc.ok {
				assert.True(t, strings.HasPrefix(reply, "✅ Рахунок #"))
				assert.False(t, store.users[100].AwaitingSelection)
			} else {
				assert.Equal(t, msgOutOfRange(2), reply)
				assert.True(t, store.users[100].AwaitingSelection, "out-of-range input must keep selection open")
			}
		})
	}
}

func TestOutOfRangeIsIdempotent(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)

	_, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		reply, err := f.HandleText(context.Background(), alice, "7")
		require.NoError(t, err)
		assert.Equal(t, msgOutOfRange(2), reply)
		assert.True(t, store.users[100].AwaitingSelection)
		assert.Empty(t, store.users[100].MainAccountID)
	}
}

func TestSelectionFetchFailureKeepsState(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)

	_, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)

	bank.err = monobank.ErrInvalidOrUnreachable
	reply, err := f.HandleText(context.Background(), alice, "1")
	require.NoError(t, err)
	assert.Equal(t, msgFetchFailed, reply)
	assert.True(t, store.users[100].AwaitingSelection)
	assert.Empty(t, store.users[100].MainAccountID)
}

func TestMeWithoutRecordDoesNotWrite(t *testing.T) {
	store := newMemStore()
	f := newFlow(store, &fakeBank{})

	reply, err := f.Me(context.Background(), alice.TelegramID)
	require.NoError(t, err)
	assert.Equal(t, msgConnectFirst, reply)
	assert.Zero(t, store.writes)
}

func TestMeAnnotatesPrimary(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)

	_, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)
	_, err = f.HandleText(context.Background(), alice, "1")
	require.NoError(t, err)

	reply, err := f.Me(context.Background(), alice.TelegramID)
	require.NoError(t, err)
	assert.Contains(t, reply, "Леся Українка")
	assert.Contains(t, reply, "1. Баланс: 1500.00 грн (537541******1234) [ПОТОЧНИЙ]")
	assert.Contains(t, reply, "2. Баланс: 5.00 код валюти 840")
	assert.NotContains(t, reply, "840 [ПОТОЧНИЙ]")
}

func TestConnectThenMeShowsSameAccounts(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)

	validation, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)

	me, err := f.Me(context.Background(), alice.TelegramID)
	require.NoError(t, err)

	for _, line := range []string{
		"1. Баланс: 1500.00 грн (537541******1234)",
		"2. Баланс: 5.00 код валюти 840",
	} {
		assert.Contains(t, validation, line)
		assert.Contains(t, me, line)
	}
}

func TestMeStalePrimaryGoesUnflagged(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)

	_, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)
	_, err = f.HandleText(context.Background(), alice, "2")
	require.NoError(t, err)

	// The chosen account disappears from the snapshot.
	bank.infos["tok"] = &monobank.ClientInfo{
		Name:     "Леся Українка",
		Accounts: []monobank.Account{{ID: "uah", Balance: 100, CurrencyCode: 980}},
	}

	reply, err := f.Me(context.Background(), alice.TelegramID)
	require.NoError(t, err)
	assert.NotContains(t, reply, "[ПОТОЧНИЙ]")
	assert.Contains(t, reply, "1. Баланс: 1.00 грн")
}

func TestSelectReentersSelection(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)

	_, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)
	_, err = f.HandleText(context.Background(), alice, "1")
	require.NoError(t, err)
	require.False(t, store.users[100].AwaitingSelection)

	reply, err := f.Select(context.Background(), alice.TelegramID)
	require.NoError(t, err)
	assert.Contains(t, reply, "1..2")
	assert.Contains(t, reply, "[ОСНОВНИЙ]")
	assert.True(t, store.users[100].AwaitingSelection)

	reply, err = f.HandleText(context.Background(), alice, "2")
	require.NoError(t, err)
	assert.Contains(t, reply, "✅ Рахунок #2 обрано основним.")
	assert.Equal(t, "usd", store.users[100].MainAccountID)
}

func TestSelectWithoutTokenPromptsConnect(t *testing.T) {
	store := newMemStore()
	f := newFlow(store, &fakeBank{})

	reply, err := f.Select(context.Background(), alice.TelegramID)
	require.NoError(t, err)
	assert.Equal(t, msgConnectFirst, reply)
}

func TestRelinkTokenClearsPreviousPrimary(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{
		"tok-a": twoAccounts(),
		"tok-b": {Name: "Інший", Accounts: []monobank.Account{{ID: "new", Balance: 1, CurrencyCode: 980}}},
	}}
	f := newFlow(store, bank)

	_, err := f.HandleText(context.Background(), alice, "tok-a")
	require.NoError(t, err)
	_, err = f.HandleText(context.Background(), alice, "1")
	require.NoError(t, err)
	require.Equal(t, "uah", store.users[100].MainAccountID)

	_, err = f.HandleText(context.Background(), alice, "tok-b")
	require.NoError(t, err)

	u := store.users[100]
	assert.Equal(t, "tok-b", u.MonobankToken)
	assert.Empty(t, u.MainAccountID)
	assert.True(t, u.AwaitingSelection)
	assert.EqualValues(t, 1, u.SequenceID, "sequence id is stable across relinks")
}

func TestSelectionRoundTripPersists(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)

	_, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)
	_, err = f.HandleText(context.Background(), alice, "2")
	require.NoError(t, err)

	// Re-read from the store, bypassing the cache.
	stored, err := store.GetByTelegramID(context.Background(), alice.TelegramID)
	require.NoError(t, err)
	assert.Equal(t, "usd", stored.MainAccountID)
	assert.False(t, stored.AwaitingSelection)
}

func TestStoreFailureRepliesAndReturnsError(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)
	store.failing = true

	reply, err := f.HandleText(context.Background(), alice, "tok")
	require.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Equal(t, msgStoreUnavailable, reply)
}

func TestSelectionUsesFreshSnapshot(t *testing.T) {
	store := newMemStore()
	bank := &fakeBank{infos: map[string]*monobank.ClientInfo{"tok": twoAccounts()}}
	f := newFlow(store, bank)

	_, err := f.HandleText(context.Background(), alice, "tok")
	require.NoError(t, err)

	// The list shrinks between showing it and the user's reply; "2" is now
	// out of range against the fresh snapshot.
	bank.infos["tok"] = &monobank.ClientInfo{
		Name:     "Леся Українка",
		Accounts: []monobank.Account{{ID: "uah", Balance: 100, CurrencyCode: 980}},
	}

	reply, err := f.HandleText(context.Background(), alice, "2")
	require.NoError(t, err)
	assert.Equal(t, msgOutOfRange(1), reply)
	assert.True(t, store.users[100].AwaitingSelection)
}
