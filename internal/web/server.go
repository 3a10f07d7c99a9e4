// Package web serves the synchronized state and the operation surface to
// the local UI over HTTP and SSE.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/novafi/novafi/internal/entity"
	"github.com/novafi/novafi/internal/services/advisor"
	"github.com/novafi/novafi/internal/services/view"
)

const snapshotPollInterval = 2 * time.Second

type portfolioSnapshotReader interface {
	SnapshotsAfter(index uint64) ([]entity.WalletSnapshotRecord, error)
}

type operationGateway interface {
	DepositFiat(ctx context.Context, amount decimal.Decimal, card entity.Card) error
	DepositCrypto(ctx context.Context, amount decimal.Decimal) error
	Transfer(ctx context.Context, recipientEmail string, amount decimal.Decimal) error
	Exchange(ctx context.Context, from, to string, amount, rate decimal.Decimal) error
	Stake(ctx context.Context, currency string, amount, apy decimal.Decimal) error
}

type cardSource interface {
	FetchCards(ctx context.Context) ([]entity.Card, error)
}

// Server exposes HTTP endpoints: snapshot reads, the FinBrain advisory
// endpoint, operation triggers, and an SSE portfolio stream.
type Server struct {
	Addr    string
	Session *view.Session
	Gateway operationGateway
	Store   portfolioSnapshotReader
	Cards   cardSource
}

// NewServer creates a new web server instance.
func NewServer(addr string, session *view.Session, gateway operationGateway, store portfolioSnapshotReader, cards cardSource) *Server {
	return &Server{Addr: addr, Session: session, Gateway: gateway, Store: store, Cards: cards}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/wallets", s.handleWallets)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/stakes", s.handleStakes)
	mux.HandleFunc("/api/finbrain", s.handleFinBrain)
	mux.HandleFunc("/api/operations/deposit", s.handleDeposit)
	mux.HandleFunc("/api/operations/transfer", s.handleTransfer)
	mux.HandleFunc("/api/operations/exchange", s.handleExchange)
	mux.HandleFunc("/api/operations/stake", s.handleStake)
	mux.HandleFunc("/portfolio/stream", s.handlePortfolioStream)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Session.Wallets.Current())
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Session.Transactions.Current())
}

func (s *Server) handleStakes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Session.Stakes.Current())
}

type finBrainRequest struct {
	Prompt string `json:"prompt"`
}

type finBrainResponse struct {
	Reply string `json:"reply"`
}

// handleFinBrain answers one advisory query from the current snapshots.
// Stateless: one request, one reply, no session.
func (s *Server) handleFinBrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req finBrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	reply := advisor.Advise(req.Prompt, s.Session.Wallets.Current(), s.Session.Transactions.Current())
	writeJSON(w, finBrainResponse{Reply: reply})
}

type depositRequest struct {
	Method string          `json:"method"` // "card" or "crypto"
	Amount decimal.Decimal `json:"amount"`
	CardID string          `json:"card_id,omitempty"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Method {
	case "crypto":
		s.runOperation(w, r, func(ctx context.Context) error {
			return s.Gateway.DepositCrypto(ctx, req.Amount)
		})
	default:
		card, err := s.findCard(r.Context(), req.CardID)
		if err != nil {
			writeOperationError(w, err)
			return
		}
		s.runOperation(w, r, func(ctx context.Context) error {
			return s.Gateway.DepositFiat(ctx, req.Amount, card)
		})
	}
}

type transferRequest struct {
	RecipientEmail string          `json:"recipient_email"`
	Amount         decimal.Decimal `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.runOperation(w, r, func(ctx context.Context) error {
		return s.Gateway.Transfer(ctx, req.RecipientEmail, req.Amount)
	})
}

type exchangeRequest struct {
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Amount       decimal.Decimal `json:"amount"`
	Rate         decimal.Decimal `json:"rate"`
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.runOperation(w, r, func(ctx context.Context) error {
		return s.Gateway.Exchange(ctx, req.FromCurrency, req.ToCurrency, req.Amount, req.Rate)
	})
}

type stakeRequest struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	APY      decimal.Decimal `json:"apy"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.runOperation(w, r, func(ctx context.Context) error {
		return s.Gateway.Stake(ctx, req.Currency, req.Amount, req.APY)
	})
}

func (s *Server) runOperation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context) error) {
	if err := op(r.Context()); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) findCard(ctx context.Context, cardID string) (entity.Card, error) {
	if s.Cards == nil {
		return entity.Card{}, errors.New("no cards found, link a card in Settings first")
	}
	cards, err := s.Cards.FetchCards(ctx)
	if err != nil {
		return entity.Card{}, err
	}
	for _, c := range cards {
		if c.ID == cardID {
			return c, nil
		}
	}
	return entity.Card{}, errors.New("no cards found, link a card in Settings first")
}

// handlePortfolioStream replays journaled wallet snapshots over SSE and
// keeps polling the journal for new commits.
func (s *Server) handlePortfolioStream(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "snapshot store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// comment heartbeat every 30s so proxies keep the connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendSnapshots := func() error {
		records, err := s.Store.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: portfolio\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendSnapshots(); err != nil {
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		log.Printf("portfolio stream initial load: %v", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				log.Printf("portfolio stream poll err: %v", err)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeOperationError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
