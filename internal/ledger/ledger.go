package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"relay-lounge/internal/registry"
	"relay-lounge/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places every amount is rounded to.
const Precision = 2

// MaxAmount bounds any single amount; nothing in the lounge legitimately
// moves more.
var MaxAmount = decimal.New(1, 15)

// amountPattern admits plain decimals only. Exponent notation is refused
// because rounding a huge exponent costs unbounded CPU and memory.
var amountPattern = regexp.MustCompile(`^[0-9]{1,15}(\.[0-9]{1,8})?$`)

// HouseAccount is the logical counterparty of house games. It holds no balance.
const HouseAccount = "house"

var (
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrSelfTransfer      = errors.New("self_transfer")
	ErrUnknownAccount    = errors.New("unknown_account")
	ErrInsufficientFunds = errors.New("insufficient_funds")
)

// Ledger is the only component that mutates balances.
type Ledger struct {
	reg *registry.Registry
	now func() time.Time
}

func New(reg *registry.Registry) *Ledger {
	return &Ledger{reg: reg, now: time.Now}
}

// NormalizeAmount rounds to Precision and rejects anything not positive or
// above MaxAmount.
func NormalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.GreaterThan(MaxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}
	amount = amount.Round(Precision)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// ParseAmount reads user input such as "25" or "12.50".
func ParseAmount(raw string) (decimal.Decimal, error) {
	if !amountPattern.MatchString(raw) {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return NormalizeAmount(d)
}

type Receipt struct {
	Transaction store.Transaction
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// Transfer moves amount between two accounts. Any rejection leaves both
// accounts untouched. A live recipient is notified.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount decimal.Decimal, description string) (Receipt, error) {
	amount, err := NormalizeAmount(amount)
	if err != nil {
		return Receipt{}, err
	}
	if registry.Key(from) == registry.Key(to) {
		return Receipt{}, ErrSelfTransfer
	}
	var receipt Receipt
	err = l.reg.UpdateAccounts(ctx, func(set registry.AccountSet) error {
		src, ok := set.Get(from)
		if !ok {
			return ErrUnknownAccount
		}
		dst, ok := set.Get(to)
		if !ok {
			return ErrUnknownAccount
		}
		if src.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		tx := store.Transaction{
			ID:          store.NewID(),
			Kind:        store.KindTransfer,
			From:        src.Username,
			To:          dst.Username,
			Amount:      amount,
			Description: description,
			CreatedAt:   l.now(),
		}
		src.Balance = src.Balance.Sub(amount)
		dst.Balance = dst.Balance.Add(amount)
		src.Transactions = append(src.Transactions, tx)
		dst.Transactions = append(dst.Transactions, tx)
		receipt = Receipt{Transaction: tx, FromBalance: src.Balance, ToBalance: dst.Balance}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	tx := receipt.Transaction
	log.Info().
		Str("tx_id", tx.ID).
		Str("from", tx.From).
		Str("to", tx.To).
		Str("amount", tx.Amount.String()).
		Msg("transfer committed")

	line := fmt.Sprintf("System: %s sent you %s credits", tx.From, FormatCredits(amount))
	if description != "" {
		line += " (" + description + ")"
	}
	l.reg.SendToUser(tx.To, line)
	return receipt, nil
}

func (l *Ledger) BalanceOf(username string) (decimal.Decimal, error) {
	acc, ok := l.reg.Account(username)
	if !ok {
		return decimal.Zero, ErrUnknownAccount
	}
	return acc.Balance, nil
}

// Grant credits an account from outside the economy (admin top-ups).
func (l *Ledger) Grant(ctx context.Context, username string, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	amount, err := NormalizeAmount(amount)
	if err != nil {
		return decimal.Zero, err
	}
	var balance decimal.Decimal
	err = l.reg.UpdateAccounts(ctx, func(set registry.AccountSet) error {
		acc, ok := set.Get(username)
		if !ok {
			return ErrUnknownAccount
		}
		acc.Balance = acc.Balance.Add(amount)
		acc.Transactions = append(acc.Transactions, store.Transaction{
			ID:          store.NewID(),
			Kind:        store.KindAdminGrant,
			From:        HouseAccount,
			To:          acc.Username,
			Amount:      amount,
			Description: description,
			CreatedAt:   l.now(),
		})
		balance = acc.Balance
		return nil
	})
	return balance, err
}

// History returns up to limit transactions, newest first.
func (l *Ledger) History(username string, limit int) ([]store.Transaction, error) {
	acc, ok := l.reg.Account(username)
	if !ok {
		return nil, ErrUnknownAccount
	}
	txs := acc.Transactions
	if limit > 0 && len(txs) > limit {
		txs = txs[len(txs)-limit:]
	}
	out := make([]store.Transaction, len(txs))
	for i, tx := range txs {
		out[len(txs)-1-i] = tx
	}
	return out, nil
}

func (l *Ledger) Stats(username string) (store.GameStats, error) {
	acc, ok := l.reg.Account(username)
	if !ok {
		return store.GameStats{}, ErrUnknownAccount
	}
	return acc.Stats, nil
}

type Standing struct {
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}

// Leaderboard ranks accounts by balance, ties broken by username.
func (l *Ledger) Leaderboard(limit int) []Standing {
	accounts := l.reg.Accounts()
	out := make([]Standing, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, Standing{Username: acc.Username, Balance: acc.Balance})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Balance.Cmp(out[j].Balance); c != 0 {
			return c > 0
		}
		return registry.Key(out[i].Username) < registry.Key(out[j].Username)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// FormatCredits renders an amount at ledger precision without trailing zeros.
func FormatCredits(d decimal.Decimal) string {
	return d.Round(Precision).String()
}
