package monobank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"monobot/core/logger"
)

// DefaultBaseURL is the production Monobank API endpoint.
const DefaultBaseURL = "https://api.monobank.ua"

var (
	// ErrInvalidOrUnreachable covers a rejected token, a non-2xx reply and
	// transport failures. Callers cannot tell these apart and must not retry
	// with the same token expecting a different class of failure.
	ErrInvalidOrUnreachable = errors.New("monobank: token rejected or API unreachable")

	// ErrMalformedResponse means the API answered 2xx but the body did not
	// match the expected client-info shape.
	ErrMalformedResponse = errors.New("monobank: malformed client-info response")
)

// Account is one bank account from the client-info payload.
type Account struct {
	ID           string   `json:"id"`
	Balance      int64    `json:"balance"`
	CurrencyCode int      `json:"currencyCode"`
	MaskedPan    []string `json:"maskedPan"`
}

// ClientInfo is the subset of the client-info payload the bot uses.
type ClientInfo struct {
	Name     string    `json:"name"`
	Accounts []Account `json:"accounts"`
}

// Client calls the Monobank personal API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient builds a client against the production API. Requests are made
// exactly once: the personal API is strictly rate limited per token, so a
// failed call surfaces to the user instead of being retried.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   5 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				MaxIdleConns:          10,
				IdleConnTimeout:       60 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchClientInfo validates the token against GET /personal/client-info and
// returns the client profile with its accounts.
func (c *Client) FetchClientInfo(ctx context.Context, token string) (*ClientInfo, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/personal/client-info", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrUnreachable, err)
	}
	req.Header.Set("X-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logResult(ctx, 0, start, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logResult(ctx, resp.StatusCode, start, nil)
		return nil, fmt.Errorf("%w: status %d", ErrInvalidOrUnreachable, resp.StatusCode)
	}

	var info ClientInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		c.logResult(ctx, resp.StatusCode, start, err)
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if info.Accounts == nil {
		c.logResult(ctx, resp.StatusCode, start, errors.New("missing accounts field"))
		return nil, fmt.Errorf("%w: missing accounts", ErrMalformedResponse)
	}

	logger.LogEvent(ctx, logger.Bank, slog.LevelInfo, "client_info.fetched",
		slog.Int("accounts", len(info.Accounts)),
		slog.Int("http_code", resp.StatusCode),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return &info, nil
}

func (c *Client) logResult(ctx context.Context, code int, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("status", "fail"),
		slog.Int("http_code", code),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	logger.LogEvent(ctx, logger.Bank, slog.LevelWarn, "client_info.failed", attrs...)
}
