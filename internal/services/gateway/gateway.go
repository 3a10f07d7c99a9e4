// Package gateway executes financial operations against the backend.
//
// The gateway never touches a resource cache and never does balance
// arithmetic: the authoritative state change exists only on the backend,
// and the local view catches up through reconciliation triggers fired
// after a confirmed success. A failed operation is therefore a strict
// no-op on the client.
package gateway

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/novafi/novafi/internal/entity"
)

// ErrUnknownOperation is returned for an operation name the backend
// does not expose.
var ErrUnknownOperation = errors.New("unknown operation")

// ErrNoFunder is returned when a crypto deposit is requested without a
// configured web3 funder.
var ErrNoFunder = errors.New("web3 funder is not configured")

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var knownCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "BTC": {}, "ETH": {}, "USDT": {}, "SOL": {},
}

// OperationError carries the backend's rejection verbatim so the UI can
// show it to the user (validation, insufficient funds, anti-fraud block).
type OperationError struct {
	Op      entity.OperationName
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// RPCInvoker calls a named remote procedure on the backend. requestID
// deduplicates retried submissions of the same operation.
type RPCInvoker interface {
	Invoke(ctx context.Context, name string, params map[string]any, requestID string) error
}

// Triggerer schedules reconciliation of the given resources.
type Triggerer interface {
	TriggerAll(ctx context.Context, resources ...entity.Resource)
}

// DepositFunder proves a crypto deposit on-chain and returns the tx hash.
type DepositFunder interface {
	SendDeposit(ctx context.Context, amount decimal.Decimal) (string, error)
}

// Gateway validates operation parameters locally, invokes the backend,
// and on success triggers a re-read of every cache the operation could
// have affected.
type Gateway struct {
	rpc       RPCInvoker
	refresher Triggerer
	funder    DepositFunder
	logger    *zap.Logger
}

// Option configures the gateway.
type Option func(*Gateway)

// WithFunder enables on-chain crypto deposits.
func WithFunder(f DepositFunder) Option {
	return func(g *Gateway) { g.funder = f }
}

// New creates a gateway over the given backend invoker and coordinator.
func New(rpc RPCInvoker, refresher Triggerer, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{rpc: rpc, refresher: refresher, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Execute runs a named operation with a parameter map. On success the
// affected resources are triggered for reconciliation; on failure nothing
// is triggered and no state is modified.
func (g *Gateway) Execute(ctx context.Context, op entity.OperationName, params map[string]any) error {
	validate, ok := validators[op]
	if !ok {
		return errors.Wrapf(ErrUnknownOperation, "%s", op)
	}
	if err := validate(params); err != nil {
		return &OperationError{Op: op, Message: err.Error()}
	}

	requestID := uuid.NewString()
	log := g.logger.With(zap.String("op", string(op)), zap.String("request_id", requestID))

	if err := g.rpc.Invoke(ctx, string(op), params, requestID); err != nil {
		log.Info("operation rejected by backend", zap.Error(err))
		return &OperationError{Op: op, Message: err.Error()}
	}

	affected := entity.AffectedResources[op]
	log.Info("operation committed, reconciling", zap.Any("resources", affected))
	g.refresher.TriggerAll(ctx, affected...)
	return nil
}

// DepositFiat charges a saved card and credits the fiat wallet.
func (g *Gateway) DepositFiat(ctx context.Context, amount decimal.Decimal, card entity.Card) error {
	return g.Execute(ctx, entity.OpDepositFunds, map[string]any{
		"currency_code":  "USD",
		"amount":         amount,
		"payment_method": card.PaymentMethod(),
	})
}

// DepositCrypto sends the deposit on-chain first and records it on the
// backend with the transaction hash as the payment method tag.
func (g *Gateway) DepositCrypto(ctx context.Context, amount decimal.Decimal) error {
	if g.funder == nil {
		return ErrNoFunder
	}
	hash, err := g.funder.SendDeposit(ctx, amount)
	if err != nil {
		return &OperationError{Op: entity.OpDepositFunds, Message: err.Error()}
	}
	tag := hash
	if len(tag) > 6 {
		tag = tag[:6]
	}
	return g.Execute(ctx, entity.OpDepositFunds, map[string]any{
		"currency_code":  "ETH",
		"amount":         amount,
		"payment_method": "web3_tx_" + tag,
	})
}

// Transfer sends funds to another user by email.
func (g *Gateway) Transfer(ctx context.Context, recipientEmail string, amount decimal.Decimal) error {
	return g.Execute(ctx, entity.OpP2PTransfer, map[string]any{
		"recipient_email": recipientEmail,
		"amount":          amount,
		"currency_type":   "USD",
	})
}

// Exchange converts between two currencies at a quoted rate.
func (g *Gateway) Exchange(ctx context.Context, from, to string, amount, rate decimal.Decimal) error {
	return g.Execute(ctx, entity.OpExchangeCurrency, map[string]any{
		"from_currency": from,
		"to_currency":   to,
		"amount":        amount,
		"rate":          rate,
	})
}

// Stake locks an amount at the given APY.
func (g *Gateway) Stake(ctx context.Context, currency string, amount, apy decimal.Decimal) error {
	return g.Execute(ctx, entity.OpCreateStake, map[string]any{
		"currency_code": currency,
		"stake_amount":  amount,
		"apy_rate":      apy,
	})
}

type validator func(params map[string]any) error

var validators = map[entity.OperationName]validator{
	entity.OpDepositFunds:     validateDeposit,
	entity.OpP2PTransfer:      validateTransfer,
	entity.OpExchangeCurrency: validateExchange,
	entity.OpCreateStake:      validateStake,
}

func validateDeposit(params map[string]any) error {
	if err := validatePositiveAmount(params, "amount"); err != nil {
		return err
	}
	if err := validateCurrency(params, "currency_code"); err != nil {
		return err
	}
	method, _ := params["payment_method"].(string)
	if method == "" {
		return errors.New("payment method is required")
	}
	return nil
}

func validateTransfer(params map[string]any) error {
	if err := validatePositiveAmount(params, "amount"); err != nil {
		return err
	}
	email, _ := params["recipient_email"].(string)
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid recipient email %q", email)
	}
	return nil
}

func validateExchange(params map[string]any) error {
	if err := validatePositiveAmount(params, "amount"); err != nil {
		return err
	}
	rate, err := amountParam(params, "rate")
	if err != nil {
		return err
	}
	if !rate.IsPositive() {
		return errors.New("a positive quoted rate is required")
	}
	from, _ := params["from_currency"].(string)
	to, _ := params["to_currency"].(string)
	if from == "" || to == "" {
		return errors.New("both currencies are required")
	}
	if from == to {
		return errors.New("cannot exchange a currency for itself")
	}
	return nil
}

func validateStake(params map[string]any) error {
	if err := validatePositiveAmount(params, "stake_amount"); err != nil {
		return err
	}
	if err := validateCurrency(params, "currency_code"); err != nil {
		return err
	}
	apy, err := amountParam(params, "apy_rate")
	if err != nil {
		return err
	}
	if apy.IsNegative() {
		return errors.New("apy rate cannot be negative")
	}
	return nil
}

func validatePositiveAmount(params map[string]any, key string) error {
	amount, err := amountParam(params, key)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%s must be greater than zero", key)
	}
	return nil
}

func validateCurrency(params map[string]any, key string) error {
	code, _ := params[key].(string)
	if _, ok := knownCurrencies[code]; !ok {
		return fmt.Errorf("unknown currency %q", code)
	}
	return nil
}

func amountParam(params map[string]any, key string) (decimal.Decimal, error) {
	raw, ok := params[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s is required", key)
	}
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid %s: %q", key, v)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported %s type %T", key, raw)
	}
}
