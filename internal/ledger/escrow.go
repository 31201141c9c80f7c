package ledger

import (
	"context"

	"relay-lounge/internal/registry"
	"relay-lounge/internal/store"

	"github.com/shopspring/decimal"
)

// PotCounterparty names a pot in transaction records.
func PotCounterparty(potID string) string {
	return "pot:" + potID
}

// Escrow debits amount from username into a pot. reserve runs with the
// accounts lock held after the funds check; it returns the transaction
// description, or an error that aborts the debit. Callers that take the pots
// lock inside reserve get the accounts → pots order.
func (l *Ledger) Escrow(ctx context.Context, username, potID string, amount decimal.Decimal, reserve func(username string) (string, error)) (decimal.Decimal, error) {
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
		if acc.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		description, err := reserve(acc.Username)
		if err != nil {
			return err
		}
		acc.Balance = acc.Balance.Sub(amount)
		acc.Transactions = append(acc.Transactions, store.Transaction{
			ID:          store.NewID(),
			Kind:        store.KindPotBet,
			From:        acc.Username,
			To:          PotCounterparty(potID),
			Amount:      amount,
			Description: description,
			CreatedAt:   l.now(),
		})
		balance = acc.Balance
		return nil
	})
	return balance, err
}

// Payout credits a resolved pot's total to its winner.
func (l *Ledger) Payout(ctx context.Context, username, potID string, amount decimal.Decimal, description string) (decimal.Decimal, error) {
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
			Kind:        store.KindPotPayout,
			From:        PotCounterparty(potID),
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

type Settlement struct {
	Balance decimal.Decimal
	Net     decimal.Decimal
}

// SettleGame applies a house game outcome: the stake is taken and payout
// returned in one step, lifetime stats updated, and the net movement recorded
// against HouseAccount. A player who cannot cover bet is rejected untouched.
func (l *Ledger) SettleGame(ctx context.Context, username, game string, bet, payout decimal.Decimal, won bool) (Settlement, error) {
	bet, err := NormalizeAmount(bet)
	if err != nil {
		return Settlement{}, err
	}
	payout = payout.Round(Precision)
	if payout.IsNegative() {
		return Settlement{}, ErrInvalidAmount
	}
	net := payout.Sub(bet)
	var out Settlement
	err = l.reg.UpdateAccounts(ctx, func(set registry.AccountSet) error {
		acc, ok := set.Get(username)
		if !ok {
			return ErrUnknownAccount
		}
		if acc.Balance.LessThan(bet) {
			return ErrInsufficientFunds
		}
		acc.Balance = acc.Balance.Add(net)
		acc.Stats.GamesPlayed++
		if won {
			acc.Stats.GamesWon++
		}
		switch {
		case net.IsPositive():
			acc.Stats.TotalWinnings = acc.Stats.TotalWinnings.Add(net)
			acc.Transactions = append(acc.Transactions, store.Transaction{
				ID: store.NewID(), Kind: store.KindGameWin,
				From: HouseAccount, To: acc.Username, Amount: net,
				Description: game + " win", CreatedAt: l.now(),
			})
		case net.IsNegative():
			loss := net.Neg()
			acc.Stats.TotalLosses = acc.Stats.TotalLosses.Add(loss)
			acc.Transactions = append(acc.Transactions, store.Transaction{
				ID: store.NewID(), Kind: store.KindGameLoss,
				From: acc.Username, To: HouseAccount, Amount: loss,
				Description: game + " loss", CreatedAt: l.now(),
			})
		}
		out = Settlement{Balance: acc.Balance, Net: net}
		return nil
	})
	return out, err
}
