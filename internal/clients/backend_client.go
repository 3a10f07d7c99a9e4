package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/novafi/novafi/internal/entity"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultTxFetchLimit   = 20
	restPathPrefix        = "/rest/v1"
	rpcPathPrefix         = "/rest/v1/rpc"
	maxErrorBodyBytes     = 4 << 10
	headerAPIKey          = "apikey"
	headerAuthorization   = "Authorization"
	headerContentType     = "Content-Type"
	headerRequestID       = "X-Request-Id"
	contentTypeJSON       = "application/json"
	transactionsOrderDesc = "created_at.desc"
)

// APIError is a structured rejection from the backend (validation,
// insufficient funds, anti-fraud block). The message is shown to the
// user verbatim.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend rejected request with status %d", e.StatusCode)
}

// BackendClient talks to the NovaFi backend: full-list reads per resource
// and named remote procedures for mutations. The backend's transactional
// guarantees are its own; this client only transports calls.
type BackendClient struct {
	baseURL      string
	apiKey       string
	accessToken  string
	txFetchLimit int
	httpClient   *http.Client
}

// BackendOption configures the client.
type BackendOption func(*BackendClient)

// WithTxFetchLimit overrides how many recent transactions one read returns.
func WithTxFetchLimit(limit int) BackendOption {
	return func(c *BackendClient) {
		if limit > 0 {
			c.txFetchLimit = limit
		}
	}
}

// WithHTTPClient replaces the underlying http client (tests).
func WithHTTPClient(hc *http.Client) BackendOption {
	return func(c *BackendClient) {
		c.httpClient = hc
	}
}

// NewBackendClient creates a client for the given backend endpoint.
// accessToken identifies the user session; apiKey identifies the app.
func NewBackendClient(baseURL, apiKey, accessToken string, opts ...BackendOption) *BackendClient {
	c := &BackendClient{
		baseURL:      baseURL,
		apiKey:       apiKey,
		accessToken:  accessToken,
		txFetchLimit: defaultTxFetchLimit,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchWallets reads every wallet of the current user.
func (c *BackendClient) FetchWallets(ctx context.Context) ([]entity.Wallet, error) {
	var wallets []entity.Wallet
	q := url.Values{"select": {"*"}}
	if err := c.get(ctx, "wallets", q, &wallets); err != nil {
		return nil, errors.Wrap(err, "fetch wallets")
	}
	return wallets, nil
}

// FetchTransactions reads the most recent transactions, newest first.
func (c *BackendClient) FetchTransactions(ctx context.Context) ([]entity.Transaction, error) {
	var txs []entity.Transaction
	q := url.Values{
		"select": {"*"},
		"order":  {transactionsOrderDesc},
		"limit":  {fmt.Sprintf("%d", c.txFetchLimit)},
	}
	if err := c.get(ctx, "transactions", q, &txs); err != nil {
		return nil, errors.Wrap(err, "fetch transactions")
	}
	return txs, nil
}

// FetchStakes reads the user's active stakes.
func (c *BackendClient) FetchStakes(ctx context.Context) ([]entity.Stake, error) {
	var stakes []entity.Stake
	q := url.Values{
		"select": {"*"},
		"status": {"eq." + string(entity.StakeStatusActive)},
	}
	if err := c.get(ctx, "stakes", q, &stakes); err != nil {
		return nil, errors.Wrap(err, "fetch stakes")
	}
	return stakes, nil
}

// FetchCards reads the user's saved payment cards.
func (c *BackendClient) FetchCards(ctx context.Context) ([]entity.Card, error) {
	var cards []entity.Card
	q := url.Values{"select": {"*"}}
	if err := c.get(ctx, "cards", q, &cards); err != nil {
		return nil, errors.Wrap(err, "fetch cards")
	}
	return cards, nil
}

// Invoke calls a named remote procedure with a parameter map. A nil error
// means the backend committed the operation atomically; any rejection is
// returned as *APIError with the backend's own message. requestID lets the
// backend deduplicate a resubmitted operation.
func (c *BackendClient) Invoke(ctx context.Context, name string, params map[string]any, requestID string) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return errors.Wrapf(err, "marshal params for %s", name)
	}

	endpoint := c.baseURL + rpcPathPrefix + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "build request for %s", name)
	}
	c.setHeaders(req)
	if requestID != "" {
		req.Header.Set(headerRequestID, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "call %s", name)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeAPIError(resp)
}

func (c *BackendClient) get(ctx context.Context, table string, query url.Values, out any) error {
	endpoint := c.baseURL + restPathPrefix + "/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (c *BackendClient) setHeaders(req *http.Request) {
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set(headerAuthorization, "Bearer "+c.accessToken)
	req.Header.Set(headerContentType, contentTypeJSON)
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("backend error (status %d): %s", resp.StatusCode, string(body))
	}
	return apiErr
}
