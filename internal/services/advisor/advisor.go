// Package advisor answers natural-language financial queries from the
// synchronized state. It is a pure function over its inputs: no I/O, no
// randomness, no wall-clock branching, so identical inputs always produce
// byte-identical replies. The only time use is formatting a transaction's
// recorded timestamp for display.
package advisor

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/novafi/novafi/internal/entity"
)

var (
	stakingHintThreshold   = decimal.NewFromInt(10000)
	largeMovementThreshold = decimal.NewFromInt(1000)
)

// Fallback is returned when no rule matches the query.
const Fallback = "I processed your query, but my neural context is limited to financial data.\n" +
	"Try asking about:\n" +
	"- \"Check my balance status\"\n" +
	"- \"Give me investment advice\"\n" +
	"- \"Show last transaction\""

// Greeting introduces the engine.
const Greeting = "Greetings. I am FinBrain v1.0, your personal automated financial analyst. " +
	"I monitor your assets and market trends securely."

type portfolio struct {
	total         decimal.Decimal
	cryptoWallets []entity.Wallet
	lastTx        *entity.Transaction
}

type rule struct {
	keywords []string
	reply    func(p portfolio) string
}

// Ordered; first match wins.
var rules = []rule{
	{
		keywords: []string{"balance", "status", "how much", "состояние", "баланс"},
		reply:    balanceReply,
	},
	{
		keywords: []string{"advice", "invest", "buy", "sell", "совет"},
		reply:    adviceReply,
	},
	{
		keywords: []string{"transaction", "history", "last", "spent", "история"},
		reply:    historyReply,
	},
	{
		keywords: []string{"hello", "hi", "who are you", "привет"},
		reply:    func(portfolio) string { return Greeting },
	},
}

// Advise evaluates the query against the ordered rule list and computes the
// reply from simple aggregates over the snapshots.
func Advise(query string, wallets entity.Snapshot[entity.Wallet], transactions entity.Snapshot[entity.Transaction]) string {
	text := strings.ToLower(query)
	p := analyze(wallets, transactions)

	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.reply(p)
			}
		}
	}
	return Fallback
}

func analyze(wallets entity.Snapshot[entity.Wallet], transactions entity.Snapshot[entity.Transaction]) portfolio {
	p := portfolio{total: decimal.Zero}
	for _, w := range wallets.Items {
		p.total = p.total.Add(w.Balance)
		if w.IsCrypto() {
			p.cryptoWallets = append(p.cryptoWallets, w)
		}
	}
	if len(transactions.Items) > 0 {
		// Transactions arrive newest first.
		p.lastTx = &transactions.Items[0]
	}
	return p
}

func balanceReply(p portfolio) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis Complete. Your total liquidity is $%s.", p.total.StringFixed(2))

	if len(p.cryptoWallets) > 0 {
		names := make([]string, 0, len(p.cryptoWallets))
		for _, w := range p.cryptoWallets {
			names = append(names, w.Currency)
		}
		fmt.Fprintf(&b, " You have active positions in: %s.", strings.Join(names, ", "))
	} else {
		b.WriteString(" Your portfolio is currently 100% Fiat based.")
	}

	switch {
	case p.total.GreaterThan(stakingHintThreshold):
		b.WriteString(" You are in the top 5% of users. Consider staking your excess liquidity.")
	case p.total.IsZero():
		b.WriteString(" Your vault is empty. Try depositing funds via the Operations menu.")
	}
	return b.String()
}

func adviceReply(p portfolio) string {
	switch {
	case len(p.cryptoWallets) == 0:
		return "Strategic Advice: Your portfolio lacks exposure to digital assets. " +
			"Consider allocating 5-10% to Bitcoin (BTC) or Ethereum (ETH) to hedge against fiat inflation."
	case len(p.cryptoWallets) == 1 && p.cryptoWallets[0].Currency == "BTC":
		return "Diversification Alert: You are heavily exposed to Bitcoin. " +
			"Consider diversifying into ETH or SOL to balance your risk profile."
	default:
		return "Market Outlook: Current volatility suggests a 'Hold' strategy. " +
			"If you have excess USDT, staking it in the Vault offers a stable 12% APY."
	}
}

func historyReply(p portfolio) string {
	if p.lastTx == nil {
		return "No transaction history found on the blockchain ledger."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last recorded activity: %s of $%s on %s.",
		strings.ToUpper(string(p.lastTx.Type)),
		p.lastTx.Amount.String(),
		p.lastTx.CreatedAt.Format("1/2/2006"))

	if p.lastTx.Amount.GreaterThan(largeMovementThreshold) {
		b.WriteString(" This was a significant movement. Ensure this was authorized.")
	}
	return b.String()
}
