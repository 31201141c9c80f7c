package gambling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"relay-lounge/internal/ledger"
	"relay-lounge/internal/registry"
	"relay-lounge/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Game string

const (
	GameDice  Game = "dice"
	GameFlip  Game = "flip"
	GameSlots Game = "slots"
)

var (
	ErrInvalidTarget = errors.New("invalid_target")
	ErrInvalidCall   = errors.New("invalid_call")
)

var (
	diceWinMultiplier = decimal.RequireFromString("1.9")
	pushMultiplier    = decimal.RequireFromString("0.5")
	houseEdgeFactor   = decimal.RequireFromString("0.98")
	maxDiceMultiplier = decimal.NewFromInt(10)
	flipMultiplier    = decimal.RequireFromString("1.95")
)

type Symbol struct {
	Name       string
	Multiplier decimal.Decimal
}

// SlotSymbols is ordered from most to least common payout; reels draw uniformly.
var SlotSymbols = []Symbol{
	{"Cherry", decimal.NewFromInt(3)},
	{"Lemon", decimal.NewFromInt(4)},
	{"Orange", decimal.NewFromInt(5)},
	{"Plum", decimal.NewFromInt(8)},
	{"Bell", decimal.NewFromInt(10)},
	{"Bar", decimal.NewFromInt(20)},
	{"Seven", decimal.NewFromInt(50)},
	{"Diamond", decimal.NewFromInt(100)},
}

const (
	Heads = "HEADS"
	Tails = "TAILS"
)

// Outcome is one settled play.
type Outcome struct {
	Game       Game
	Bet        decimal.Decimal
	Multiplier decimal.Decimal
	Payout     decimal.Decimal
	Won        bool
	Net        decimal.Decimal
	Balance    decimal.Decimal

	Dice   [2]int
	Target int
	Call   string
	Side   string
	Reels  [3]string
}

// DiceMultiplier is the payout for hitting target exactly: fair odds less a
// 2% edge, capped at 10x.
func DiceMultiplier(target int) (decimal.Decimal, error) {
	if target < 2 || target > 12 {
		return decimal.Zero, ErrInvalidTarget
	}
	diff := 7 - target
	if diff < 0 {
		diff = -diff
	}
	ways := int64(6 - diff)
	m := decimal.NewFromInt(36).Div(decimal.NewFromInt(ways)).Mul(houseEdgeFactor)
	if m.GreaterThan(maxDiceMultiplier) {
		m = maxDiceMultiplier
	}
	return m, nil
}

// diceMultiplier scores a roll. target 0 selects the default table.
func diceMultiplier(sum, target int) decimal.Decimal {
	if target != 0 {
		if sum != target {
			return decimal.Zero
		}
		m, _ := DiceMultiplier(target)
		return m
	}
	switch sum {
	case 7, 11:
		return diceWinMultiplier
	case 2, 3, 12:
		return decimal.Zero
	default:
		return pushMultiplier
	}
}

func slotsMultiplier(reels [3]int) decimal.Decimal {
	a, b, c := reels[0], reels[1], reels[2]
	switch {
	case a == b && b == c:
		return SlotSymbols[a].Multiplier
	case a == b || b == c || a == c:
		return pushMultiplier
	default:
		return decimal.Zero
	}
}

// NormalizeCall accepts HEADS/TAILS or H/T in any case.
func NormalizeCall(call string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(call)) {
	case "HEADS", "H":
		return Heads, nil
	case "TAILS", "T":
		return Tails, nil
	default:
		return "", ErrInvalidCall
	}
}

// PlayDice rolls two dice. target 0 plays the default table.
func (e *Engine) PlayDice(ctx context.Context, username string, bet decimal.Decimal, target int) (Outcome, error) {
	bet, err := ledger.NormalizeAmount(bet)
	if err != nil {
		return Outcome{}, err
	}
	if target != 0 {
		if _, err := DiceMultiplier(target); err != nil {
			return Outcome{}, err
		}
	}
	d1, d2 := e.rng.IntN(6)+1, e.rng.IntN(6)+1
	o := Outcome{
		Game:       GameDice,
		Bet:        bet,
		Dice:       [2]int{d1, d2},
		Target:     target,
		Multiplier: diceMultiplier(d1+d2, target),
	}
	detail := fmt.Sprintf("%d+%d=%d", d1, d2, d1+d2)
	if target != 0 {
		detail += fmt.Sprintf(" target %d", target)
	}
	return e.settle(ctx, username, o, detail)
}

func (e *Engine) PlayFlip(ctx context.Context, username string, bet decimal.Decimal, call string) (Outcome, error) {
	bet, err := ledger.NormalizeAmount(bet)
	if err != nil {
		return Outcome{}, err
	}
	call, err = NormalizeCall(call)
	if err != nil {
		return Outcome{}, err
	}
	side := Heads
	if e.rng.IntN(2) == 1 {
		side = Tails
	}
	o := Outcome{Game: GameFlip, Bet: bet, Call: call, Side: side, Multiplier: decimal.Zero}
	if side == call {
		o.Multiplier = flipMultiplier
	}
	return e.settle(ctx, username, o, fmt.Sprintf("called %s got %s", call, side))
}

func (e *Engine) PlaySlots(ctx context.Context, username string, bet decimal.Decimal) (Outcome, error) {
	bet, err := ledger.NormalizeAmount(bet)
	if err != nil {
		return Outcome{}, err
	}
	var idx [3]int
	var reels [3]string
	for i := range idx {
		idx[i] = e.rng.IntN(len(SlotSymbols))
		reels[i] = SlotSymbols[idx[i]].Name
	}
	o := Outcome{Game: GameSlots, Bet: bet, Reels: reels, Multiplier: slotsMultiplier(idx)}
	return e.settle(ctx, username, o, strings.Join(reels[:], " | "))
}

// settle pays the outcome through the ledger. A rejected settlement leaves
// no trace: no stats, no result record, no announcement.
func (e *Engine) settle(ctx context.Context, username string, o Outcome, detail string) (Outcome, error) {
	o.Payout = o.Bet.Mul(o.Multiplier).Round(ledger.Precision)
	o.Won = o.Payout.GreaterThan(o.Bet)
	st, err := e.ledger.SettleGame(ctx, username, string(o.Game), o.Bet, o.Payout, o.Won)
	if err != nil {
		return Outcome{}, err
	}
	o.Balance, o.Net = st.Balance, st.Net

	result := store.GameResult{
		ID:         store.NewID(),
		Game:       string(o.Game),
		Username:   username,
		Bet:        o.Bet,
		Payout:     o.Payout,
		Multiplier: o.Multiplier,
		Won:        o.Won,
		Detail:     detail,
		PlayedAt:   e.now(),
		Target:     o.Target,
		Call:       o.Call,
		Side:       o.Side,
	}
	switch o.Game {
	case GameDice:
		result.Dice = []int{o.Dice[0], o.Dice[1]}
	case GameSlots:
		result.Reels = append([]string(nil), o.Reels[:]...)
	}
	e.resultsMu.Lock()
	e.results = append(e.results, result)
	e.resultsMu.Unlock()
	e.saveResults(ctx)

	gamesPlayedTotal.Add(string(o.Game), 1)
	log.Debug().Str("username", username).Str("game", string(o.Game)).Str("bet", o.Bet.String()).Str("payout", o.Payout.String()).Str("detail", detail).Msg("game settled")

	if o.Won && o.Payout.GreaterThanOrEqual(e.bigWin) {
		bigWinsTotal.Add(1)
		e.announce.BroadcastAll(fmt.Sprintf("[GAMBLING] BIG WIN! %s won %s credits on %s!",
			username, ledger.FormatCredits(o.Payout), strings.ToUpper(string(o.Game))))
		e.publish(Event{Type: EventBigWin, Username: username, Game: string(o.Game), Amount: o.Payout})
	}
	return o, nil
}

// Results returns up to limit game results for username, newest first.
// An empty username matches everyone.
func (e *Engine) Results(username string, limit int) []store.GameResult {
	key := registry.Key(username)
	e.resultsMu.Lock()
	defer e.resultsMu.Unlock()
	out := make([]store.GameResult, 0)
	for i := len(e.results) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if key == "" || registry.Key(e.results[i].Username) == key {
			out = append(out, e.results[i])
		}
	}
	return out
}

func (e *Engine) saveResults(ctx context.Context) {
	if e.persist == nil {
		return
	}
	e.resultsSaveMu.Lock()
	defer e.resultsSaveMu.Unlock()
	e.resultsMu.Lock()
	snapshot := append([]store.GameResult(nil), e.results...)
	e.resultsMu.Unlock()
	if err := e.persist.SaveGameResults(ctx, snapshot); err != nil {
		log.Error().Err(err).Msg("persist game results failed")
	}
}
