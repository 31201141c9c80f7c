package store

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindTransfer   TransactionKind = "transfer"
	KindPotBet     TransactionKind = "pot_bet"
	KindPotPayout  TransactionKind = "pot_payout"
	KindGameWin    TransactionKind = "game_win"
	KindGameLoss   TransactionKind = "game_loss"
	KindAdminGrant TransactionKind = "admin_grant"
)

type Transaction struct {
	ID          string          `json:"id"`
	Kind        TransactionKind `json:"kind"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type GameStats struct {
	GamesPlayed   int             `json:"games_played"`
	GamesWon      int             `json:"games_won"`
	TotalWinnings decimal.Decimal `json:"total_winnings"`
	TotalLosses   decimal.Decimal `json:"total_losses"`
}

type Account struct {
	Username     string          `json:"username"`
	PasswordHash string          `json:"password_hash"`
	Email        string          `json:"email"`
	Balance      decimal.Decimal `json:"balance"`
	RegisteredAt time.Time       `json:"registered_at"`
	LastLoginAt  *time.Time      `json:"last_login_at,omitempty"`
	Transactions []Transaction   `json:"transactions"`
	Stats        GameStats       `json:"stats"`
}

// Clone copies the account so the caller can read it without holding locks.
func (a Account) Clone() Account {
	a.Transactions = slices.Clone(a.Transactions)
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		a.LastLoginAt = &t
	}
	return a
}

type Room struct {
	Name        string    `json:"name"`
	Owner       string    `json:"owner"`
	Description string    `json:"description,omitempty"`
	Private     bool      `json:"private"`
	Allowed     []string  `json:"allowed,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r Room) Clone() Room {
	r.Allowed = slices.Clone(r.Allowed)
	return r
}

type ShoutboxMessage struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Stake struct {
	Username string          `json:"username"`
	Amount   decimal.Decimal `json:"amount"`
}

// OpenPot is an active pot as persisted, so escrowed stakes survive a restart.
type OpenPot struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	EndsAt       time.Time `json:"ends_at"`
	Participants []Stake   `json:"participants"`
}

type PotHistory struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	ResolvedAt   time.Time       `json:"resolved_at"`
	Reason       string          `json:"reason"`
	Total        decimal.Decimal `json:"total"`
	Participants []Stake         `json:"participants"`
	Winner       string          `json:"winner,omitempty"`
}

type GameResult struct {
	ID         string          `json:"id"`
	Game       string          `json:"game"`
	Username   string          `json:"username"`
	Bet        decimal.Decimal `json:"bet"`
	Payout     decimal.Decimal `json:"payout"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Won        bool            `json:"won"`
	Detail     string          `json:"detail"`
	PlayedAt   time.Time       `json:"played_at"`

	// Game payload; only the fields of the played game are set.
	Dice   []int    `json:"dice,omitempty"`
	Target int      `json:"target,omitempty"`
	Call   string   `json:"call,omitempty"`
	Side   string   `json:"side,omitempty"`
	Reels  []string `json:"reels,omitempty"`
}

// Snapshot is everything loaded at startup.
type Snapshot struct {
	Accounts    []Account
	Rooms       []Room
	Shoutbox    []ShoutboxMessage
	OpenPots    []OpenPot
	PotHistory  []PotHistory
	GameResults []GameResult
}
