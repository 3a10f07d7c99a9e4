package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/novafi/novafi/internal/entity"
	"github.com/novafi/novafi/internal/services/view"
)

type stubReader struct{}

func (stubReader) FetchWallets(context.Context) ([]entity.Wallet, error)           { return nil, nil }
func (stubReader) FetchTransactions(context.Context) ([]entity.Transaction, error) { return nil, nil }
func (stubReader) FetchStakes(context.Context) ([]entity.Stake, error)             { return nil, nil }

func noSubscribe(context.Context, entity.Resource, func(entity.ChangeNotification)) (view.Handle, error) {
	return nil, errors.New("no feed in tests")
}

type recordedCall struct {
	name string
	args []string
}

type fakeGateway struct {
	calls []recordedCall
	err   error
}

func (g *fakeGateway) record(name string, args ...string) error {
	g.calls = append(g.calls, recordedCall{name: name, args: args})
	return g.err
}

func (g *fakeGateway) DepositFiat(_ context.Context, amount decimal.Decimal, card entity.Card) error {
	return g.record("deposit_fiat", amount.String(), card.PaymentMethod())
}

func (g *fakeGateway) DepositCrypto(_ context.Context, amount decimal.Decimal) error {
	return g.record("deposit_crypto", amount.String())
}

func (g *fakeGateway) Transfer(_ context.Context, recipientEmail string, amount decimal.Decimal) error {
	return g.record("transfer", recipientEmail, amount.String())
}

func (g *fakeGateway) Exchange(_ context.Context, from, to string, amount, rate decimal.Decimal) error {
	return g.record("exchange", from, to, amount.String(), rate.String())
}

func (g *fakeGateway) Stake(_ context.Context, currency string, amount, apy decimal.Decimal) error {
	return g.record("stake", currency, amount.String(), apy.String())
}

type fakeCards struct {
	cards []entity.Card
	err   error
}

func (f *fakeCards) FetchCards(context.Context) ([]entity.Card, error) {
	return f.cards, f.err
}

type fakeStore struct {
	records []entity.WalletSnapshotRecord
}

func (f *fakeStore) SnapshotsAfter(index uint64) ([]entity.WalletSnapshotRecord, error) {
	var out []entity.WalletSnapshotRecord
	for _, r := range f.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, gateway *fakeGateway) *Server {
	t.Helper()
	session := view.NewSession(stubReader{}, noSubscribe, nil, zap.NewNop())
	return NewServer("127.0.0.1:0", session, gateway, nil, nil)
}

func seedWallets(s *Server, wallets ...entity.Wallet) {
	seq := s.Session.Wallets.NextSeq()
	s.Session.Wallets.Commit(entity.Snapshot[entity.Wallet]{FetchSeq: seq, Items: wallets})
}

func TestWalletsEndpointReturnsCurrentSnapshot(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	seedWallets(s, entity.Wallet{ID: "w1", Currency: "USD", Type: entity.WalletTypeFiat, Balance: decimal.NewFromInt(50)})

	rec := httptest.NewRecorder()
	s.handleWallets(rec, httptest.NewRequest(http.MethodGet, "/api/wallets", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap entity.Snapshot[entity.Wallet]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Items, 1)
	require.Equal(t, "w1", snap.Items[0].ID)
}

func TestFinBrainAnswersFromCurrentState(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	seedWallets(s, entity.Wallet{ID: "w1", Currency: "USD", Type: entity.WalletTypeFiat, Balance: decimal.NewFromInt(500)})

	body := strings.NewReader(`{"prompt":"what is my balance?"}`)
	rec := httptest.NewRecorder()
	s.handleFinBrain(rec, httptest.NewRequest(http.MethodPost, "/api/finbrain", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp finBrainResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Reply, "$500.00")
	require.Contains(t, resp.Reply, "100% Fiat based")
}

func TestFinBrainRejectsGet(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	rec := httptest.NewRecorder()
	s.handleFinBrain(rec, httptest.NewRequest(http.MethodGet, "/api/finbrain", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTransferInvokesGateway(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestServer(t, gw)

	body := strings.NewReader(`{"recipient_email":"bob@example.com","amount":"25.50"}`)
	rec := httptest.NewRecorder()
	s.handleTransfer(rec, httptest.NewRequest(http.MethodPost, "/api/operations/transfer", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []recordedCall{{name: "transfer", args: []string{"bob@example.com", "25.5"}}}, gw.calls)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGatewayErrorIsReturnedVerbatim(t *testing.T) {
	gw := &fakeGateway{err: errors.New("Insufficient funds")}
	s := newTestServer(t, gw)

	body := strings.NewReader(`{"recipient_email":"bob@example.com","amount":"25.50"}`)
	rec := httptest.NewRecorder()
	s.handleTransfer(rec, httptest.NewRequest(http.MethodPost, "/api/operations/transfer", body))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.JSONEq(t, `{"error":"Insufficient funds"}`, rec.Body.String())
}

func TestDepositRoutesByMethod(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestServer(t, gw)
	s.Cards = &fakeCards{cards: []entity.Card{
		{ID: "c1", Brand: "visa", Last4: "4242"},
		{ID: "c2", Brand: "mastercard", Last4: "4444"},
	}}

	rec := httptest.NewRecorder()
	s.handleDeposit(rec, httptest.NewRequest(http.MethodPost, "/api/operations/deposit",
		strings.NewReader(`{"method":"card","amount":"100","card_id":"c2"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.handleDeposit(rec, httptest.NewRequest(http.MethodPost, "/api/operations/deposit",
		strings.NewReader(`{"method":"crypto","amount":"0.5"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, []recordedCall{
		{name: "deposit_fiat", args: []string{"100", "card_mastercard_4444"}},
		{name: "deposit_crypto", args: []string{"0.5"}},
	}, gw.calls)
}

func TestDepositWithoutLinkedCardFails(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestServer(t, gw)
	s.Cards = &fakeCards{}

	rec := httptest.NewRecorder()
	s.handleDeposit(rec, httptest.NewRequest(http.MethodPost, "/api/operations/deposit",
		strings.NewReader(`{"method":"card","amount":"100","card_id":"missing"}`)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.JSONEq(t, `{"error":"no cards found, link a card in Settings first"}`, rec.Body.String())
	require.Empty(t, gw.calls, "backend must not be called without a card")
}

func TestExchangeAndStakeInvokeGateway(t *testing.T) {
	gw := &fakeGateway{}
	s := newTestServer(t, gw)

	rec := httptest.NewRecorder()
	s.handleExchange(rec, httptest.NewRequest(http.MethodPost, "/api/operations/exchange",
		strings.NewReader(`{"from_currency":"USD","to_currency":"BTC","amount":"100","rate":"0.00002"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.handleStake(rec, httptest.NewRequest(http.MethodPost, "/api/operations/stake",
		strings.NewReader(`{"currency":"ETH","amount":"2","apy":"4.5"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, []recordedCall{
		{name: "exchange", args: []string{"USD", "BTC", "100", "0.00002"}},
		{name: "stake", args: []string{"ETH", "2", "4.5"}},
	}, gw.calls)
}

func TestInvalidBodyIsBadRequest(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	rec := httptest.NewRecorder()
	s.handleTransfer(rec, httptest.NewRequest(http.MethodPost, "/api/operations/transfer",
		strings.NewReader(`{broken`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolioStreamReplaysJournal(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	s.Store = &fakeStore{records: []entity.WalletSnapshotRecord{
		{Index: 1, Snapshot: entity.Snapshot[entity.Wallet]{FetchSeq: 1, Items: []entity.Wallet{{ID: "w1"}}}},
		{Index: 2, Snapshot: entity.Snapshot[entity.Wallet]{FetchSeq: 2, Items: []entity.Wallet{{ID: "w1"}}}},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/portfolio/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.handlePortfolioStream(rec, req)

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Equal(t, 2, strings.Count(rec.Body.String(), "event: portfolio"))
}

func TestPortfolioStreamWithoutStore(t *testing.T) {
	s := newTestServer(t, &fakeGateway{})
	rec := httptest.NewRecorder()
	s.handlePortfolioStream(rec, httptest.NewRequest(http.MethodGet, "/portfolio/stream", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
