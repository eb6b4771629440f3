package monobank

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchClientInfoOK(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Token")
		assert.Equal(t, "/personal/client-info", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "Тарас Шевченко",
			"accounts": [
				{"id": "acc-1", "balance": 150000, "currencyCode": 980, "maskedPan": ["537541******1234"]},
				{"id": "acc-2", "balance": 500, "currencyCode": 840, "maskedPan": []}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	info, err := c.FetchClientInfo(context.Background(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", gotToken)
	assert.Equal(t, "Тарас Шевченко", info.Name)
	require.Len(t, info.Accounts, 2)
	assert.Equal(t, "acc-1", info.Accounts[0].ID)
	assert.EqualValues(t, 150000, info.Accounts[0].Balance)
	assert.Equal(t, 980, info.Accounts[0].CurrencyCode)
}

func TestFetchClientInfoRejectedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errorDescription":"Unknown 'X-Token'"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.FetchClientInfo(context.Background(), "bad")
	require.ErrorIs(t, err, ErrInvalidOrUnreachable)
}

func TestFetchClientInfoUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.FetchClientInfo(context.Background(), "tok")
	require.ErrorIs(t, err, ErrInvalidOrUnreachable)
}

func TestFetchClientInfoMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.FetchClientInfo(context.Background(), "tok")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFetchClientInfoMissingAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "X"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.FetchClientInfo(context.Background(), "tok")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFetchClientInfoEmptyAccountsIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "X", "accounts": []}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	info, err := c.FetchClientInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, info.Accounts)
}
