package gambling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"relay-lounge/internal/ledger"
	"relay-lounge/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrPotNotFound     = errors.New("pot_not_found")
	ErrPotClosed       = errors.New("pot_closed")
	ErrNoActivePot     = errors.New("no_active_pot")
	ErrInvalidDuration = errors.New("invalid_duration")
	ErrInvalidPotName  = errors.New("invalid_pot_name")
	ErrEngineStopped   = errors.New("engine_stopped")
)

const maxPotNameLen = 64

type Persister interface {
	SaveOpenPots(ctx context.Context, v []store.OpenPot) error
	SavePotHistory(ctx context.Context, v []store.PotHistory) error
	SaveGameResults(ctx context.Context, v []store.GameResult) error
}

type Announcer interface {
	BroadcastAll(line string) int
}

type Options struct {
	RNG             RNG
	Now             func() time.Time
	BigWinThreshold decimal.Decimal
	MaxDuration     time.Duration
	Events          EventSink
}

// Engine runs pots and house games. Pot state is guarded by potsMu; when a
// balance change is involved the accounts lock is always taken first.
type Engine struct {
	ledger      *ledger.Ledger
	announce    Announcer
	persist     Persister
	events      EventSink
	rng         RNG
	now         func() time.Time
	bigWin      decimal.Decimal
	maxDuration time.Duration

	potsMu  sync.Mutex
	pots    map[string]*pot
	lastSeq int64
	history []store.PotHistory
	stopped bool

	openSaveMu    sync.Mutex
	historySaveMu sync.Mutex

	resultsMu     sync.Mutex
	results       []store.GameResult
	resultsSaveMu sync.Mutex
}

// NewEngine restores history, results and open pots from snap. Open pots get
// fresh timers; overdue ones resolve right away.
func NewEngine(led *ledger.Ledger, announce Announcer, persist Persister, snap store.Snapshot, opts Options) *Engine {
	if opts.RNG == nil {
		opts.RNG = defaultRNG()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 24 * time.Hour
	}
	if !opts.BigWinThreshold.IsPositive() {
		opts.BigWinThreshold = decimal.NewFromInt(100)
	}
	e := &Engine{
		ledger:      led,
		announce:    announce,
		persist:     persist,
		events:      opts.Events,
		rng:         opts.RNG,
		now:         opts.Now,
		bigWin:      opts.BigWinThreshold,
		maxDuration: opts.MaxDuration,
		pots:        make(map[string]*pot),
		history:     append([]store.PotHistory(nil), snap.PotHistory...),
		results:     append([]store.GameResult(nil), snap.GameResults...),
	}
	for _, h := range e.history {
		e.bumpSeq(h.ID)
	}
	for _, op := range snap.OpenPots {
		e.bumpSeq(op.ID)
	}
	restore := e.unsettledPots(snap)

	e.potsMu.Lock()
	defer e.potsMu.Unlock()
	for _, op := range restore {
		seq, _ := strconv.ParseInt(op.ID, 10, 64)
		p := newPot(op.ID, seq, op.Name, op.Description, op.CreatedBy, op.CreatedAt, op.EndsAt)
		for _, s := range op.Participants {
			p.addStake(s.Username, s.Amount)
		}
		e.pots[p.id] = p
		e.schedule(p, op.EndsAt.Sub(e.now()))
		log.Info().Str("pot_id", p.id).Str("total", p.total.String()).Msg("pot restored")
	}
	return e
}

// unsettledPots drops saved open pots that were already paid out. The
// payout is persisted with the accounts before the pot leaves open_pots, so
// a crash in between must not pay the pot twice. A paid pot missing from
// history is archived from its payout transaction.
func (e *Engine) unsettledPots(snap store.Snapshot) []store.OpenPot {
	archived := make(map[string]bool, len(e.history))
	for _, h := range e.history {
		archived[h.ID] = true
	}
	payouts := make(map[string]store.Transaction)
	for _, acc := range snap.Accounts {
		for _, tx := range acc.Transactions {
			if tx.Kind == store.KindPotPayout {
				payouts[tx.From] = tx
			}
		}
	}

	out := make([]store.OpenPot, 0, len(snap.OpenPots))
	for _, op := range snap.OpenPots {
		if archived[op.ID] {
			log.Warn().Str("pot_id", op.ID).Msg("open pot already in history, skipped")
			continue
		}
		tx, paid := payouts[ledger.PotCounterparty(op.ID)]
		if !paid {
			out = append(out, op)
			continue
		}
		total := decimal.Zero
		for _, s := range op.Participants {
			total = total.Add(s.Amount)
		}
		e.history = append(e.history, store.PotHistory{
			ID:           op.ID,
			Name:         op.Name,
			CreatedBy:    op.CreatedBy,
			CreatedAt:    op.CreatedAt,
			ResolvedAt:   tx.CreatedAt,
			Reason:       ReasonRecovered,
			Total:        total,
			Participants: op.Participants,
			Winner:       tx.To,
		})
		archived[op.ID] = true
		log.Warn().Str("pot_id", op.ID).Str("winner", tx.To).Msg("open pot already paid, archived")
	}
	return out
}

func (e *Engine) bumpSeq(id string) {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && n > e.lastSeq {
		e.lastSeq = n
	}
}

// schedule arms the expiry timer. Caller holds potsMu.
func (e *Engine) schedule(p *pot, d time.Duration) {
	if d < 0 {
		d = 0
	}
	id := p.id
	p.timer = time.AfterFunc(d, func() {
		if _, err := e.ResolvePot(context.Background(), id, ReasonExpired); err != nil && !errors.Is(err, ErrPotClosed) && !errors.Is(err, ErrPotNotFound) {
			log.Error().Err(err).Str("pot_id", id).Msg("pot expiry failed")
		}
	})
}

// PotDuration turns a minute count from user input into a pot duration.
// The bound is checked before multiplying so huge counts cannot wrap.
func (e *Engine) PotDuration(minutes int64) (time.Duration, error) {
	if minutes <= 0 || minutes > int64(e.maxDuration/time.Minute) {
		return 0, ErrInvalidDuration
	}
	return time.Duration(minutes) * time.Minute, nil
}

func (e *Engine) CreatePot(ctx context.Context, name, description, createdBy string, d time.Duration) (PotView, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxPotNameLen {
		return PotView{}, ErrInvalidPotName
	}
	if d <= 0 || d > e.maxDuration {
		return PotView{}, ErrInvalidDuration
	}
	now := e.now()

	e.potsMu.Lock()
	if e.stopped {
		e.potsMu.Unlock()
		return PotView{}, ErrEngineStopped
	}
	e.lastSeq++
	p := newPot(strconv.FormatInt(e.lastSeq, 10), e.lastSeq, name, strings.TrimSpace(description), createdBy, now, now.Add(d))
	e.pots[p.id] = p
	e.schedule(p, d)
	view := p.view()
	e.potsMu.Unlock()

	potsCreatedTotal.Add(1)
	log.Info().Str("pot_id", view.ID).Str("name", view.Name).Str("created_by", createdBy).Dur("duration", d).Msg("pot created")
	e.saveOpenPots(ctx)
	line := fmt.Sprintf("[GAMBLING] New pot #%s %q is open for %s! Use GAMBLE bet <amount> %s to join.", view.ID, view.Name, formatDuration(d), view.ID)
	if view.Description != "" {
		line += " " + view.Description
	}
	e.announce.BroadcastAll(line)
	e.publish(Event{Type: EventPotCreated, PotID: view.ID, PotName: view.Name, Username: createdBy, EndsAt: view.EndsAt})
	return view, nil
}

type BetReceipt struct {
	Pot     PotView
	Stake   decimal.Decimal
	Odds    decimal.Decimal
	Balance decimal.Decimal
}

// PlaceBet escrows amount from username into the pot.
func (e *Engine) PlaceBet(ctx context.Context, username, potID string, amount decimal.Decimal) (BetReceipt, error) {
	var receipt BetReceipt
	balance, err := e.ledger.Escrow(ctx, username, potID, amount, func(canonical string) (string, error) {
		e.potsMu.Lock()
		defer e.potsMu.Unlock()
		p, ok := e.pots[potID]
		if !ok {
			return "", ErrPotNotFound
		}
		if p.State() != PotActive {
			return "", ErrPotClosed
		}
		stake := p.addStake(canonical, amount.Round(ledger.Precision))
		receipt.Pot = p.view()
		receipt.Stake = stake
		receipt.Odds = receipt.Pot.Odds(canonical)
		return fmt.Sprintf("Bet on pot #%s %s", p.id, p.name), nil
	})
	if err != nil {
		return BetReceipt{}, err
	}
	receipt.Balance = balance
	potBetsTotal.Add(1)
	log.Info().Str("pot_id", potID).Str("username", username).Str("amount", amount.String()).Msg("pot bet placed")
	e.saveOpenPots(ctx)
	return receipt, nil
}

// PlaceBetCurrent bets on the most recently created active pot.
func (e *Engine) PlaceBetCurrent(ctx context.Context, username string, amount decimal.Decimal) (BetReceipt, error) {
	current, ok := e.CurrentPot()
	if !ok {
		return BetReceipt{}, ErrNoActivePot
	}
	return e.PlaceBet(ctx, username, current.ID, amount)
}

// EndEarly resolves a pot before its timer fires.
func (e *Engine) EndEarly(ctx context.Context, potID string) (store.PotHistory, error) {
	return e.ResolvePot(ctx, potID, ReasonEndedEarly)
}

// ResolvePot settles a pot exactly once. The Active→Resolving swap and the
// timer stop happen under potsMu, so a racing expiry or early end loses.
func (e *Engine) ResolvePot(ctx context.Context, potID, reason string) (store.PotHistory, error) {
	e.potsMu.Lock()
	p, ok := e.pots[potID]
	if !ok {
		e.potsMu.Unlock()
		return store.PotHistory{}, ErrPotNotFound
	}
	if !p.state.CompareAndSwap(int32(PotActive), int32(PotResolving)) {
		e.potsMu.Unlock()
		return store.PotHistory{}, ErrPotClosed
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	participants := p.participants()
	total := p.total
	e.potsMu.Unlock()

	winner := pickWinner(e.rng, participants, total)
	if winner != "" {
		desc := fmt.Sprintf("Won pot #%s %s", p.id, p.name)
		if _, err := e.ledger.Payout(ctx, winner, p.id, total, desc); err != nil {
			log.Error().Err(err).Str("pot_id", p.id).Str("winner", winner).Str("total", total.String()).Msg("pot payout failed")
		}
	}

	entry := store.PotHistory{
		ID:           p.id,
		Name:         p.name,
		CreatedBy:    p.createdBy,
		CreatedAt:    p.createdAt,
		ResolvedAt:   e.now(),
		Reason:       reason,
		Total:        total,
		Participants: participants,
		Winner:       winner,
	}
	e.potsMu.Lock()
	p.state.Store(int32(PotResolved))
	delete(e.pots, p.id)
	e.history = append(e.history, entry)
	e.potsMu.Unlock()

	potsResolvedTotal.Add(1)
	log.Info().Str("pot_id", p.id).Str("winner", winner).Str("total", total.String()).Str("reason", reason).Int("participants", len(participants)).Msg("pot resolved")
	e.saveOpenPots(ctx)
	e.saveHistory(ctx)

	if winner == "" {
		e.announce.BroadcastAll(fmt.Sprintf("[GAMBLING] Pot #%s %q closed with no bets.", p.id, p.name))
	} else {
		e.announce.BroadcastAll(fmt.Sprintf("[GAMBLING] %s won pot #%s %q worth %s credits (%d participants)!",
			winner, p.id, p.name, ledger.FormatCredits(total), len(participants)))
	}
	e.publish(Event{Type: EventPotResolved, PotID: p.id, PotName: p.name, Username: winner, Amount: total, Participants: len(participants)})
	return entry, nil
}

// ActivePots lists open pots oldest first.
func (e *Engine) ActivePots() []PotView {
	e.potsMu.Lock()
	out := make([]PotView, 0, len(e.pots))
	seqs := make(map[string]int64, len(e.pots))
	for _, p := range e.pots {
		if p.State() == PotActive {
			out = append(out, p.view())
			seqs[p.id] = p.seq
		}
	}
	e.potsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return seqs[out[i].ID] < seqs[out[j].ID] })
	return out
}

func (e *Engine) Pot(id string) (PotView, bool) {
	e.potsMu.Lock()
	defer e.potsMu.Unlock()
	p, ok := e.pots[id]
	if !ok {
		return PotView{}, false
	}
	return p.view(), true
}

// CurrentPot is the most recently created active pot.
func (e *Engine) CurrentPot() (PotView, bool) {
	e.potsMu.Lock()
	defer e.potsMu.Unlock()
	var latest *pot
	for _, p := range e.pots {
		if p.State() == PotActive && (latest == nil || p.seq > latest.seq) {
			latest = p
		}
	}
	if latest == nil {
		return PotView{}, false
	}
	return latest.view(), true
}

// History returns up to limit resolved pots, newest first.
func (e *Engine) History(limit int) []store.PotHistory {
	e.potsMu.Lock()
	defer e.potsMu.Unlock()
	n := len(e.history)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]store.PotHistory, 0, n)
	for i := len(e.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, e.history[i])
	}
	return out
}

func (e *Engine) HistoryEntry(id string) (store.PotHistory, bool) {
	e.potsMu.Lock()
	defer e.potsMu.Unlock()
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].ID == id {
			return e.history[i], true
		}
	}
	return store.PotHistory{}, false
}

// Stop disarms every pot timer. Open pots stay persisted and are re-armed
// by the next NewEngine.
func (e *Engine) Stop() {
	e.potsMu.Lock()
	defer e.potsMu.Unlock()
	e.stopped = true
	for _, p := range e.pots {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
}

// Flush writes every engine collection.
func (e *Engine) Flush(ctx context.Context) {
	e.saveOpenPots(ctx)
	e.saveHistory(ctx)
	e.saveResults(ctx)
}

func (e *Engine) saveOpenPots(ctx context.Context) {
	if e.persist == nil {
		return
	}
	e.openSaveMu.Lock()
	defer e.openSaveMu.Unlock()
	e.potsMu.Lock()
	open := make([]store.OpenPot, 0, len(e.pots))
	seqs := make(map[string]int64, len(e.pots))
	for _, p := range e.pots {
		if p.State() == PotActive {
			open = append(open, p.record())
			seqs[p.id] = p.seq
		}
	}
	e.potsMu.Unlock()
	sort.Slice(open, func(i, j int) bool { return seqs[open[i].ID] < seqs[open[j].ID] })
	if err := e.persist.SaveOpenPots(ctx, open); err != nil {
		log.Error().Err(err).Msg("persist open pots failed")
	}
}

func (e *Engine) saveHistory(ctx context.Context) {
	if e.persist == nil {
		return
	}
	e.historySaveMu.Lock()
	defer e.historySaveMu.Unlock()
	e.potsMu.Lock()
	snapshot := append([]store.PotHistory(nil), e.history...)
	e.potsMu.Unlock()
	if err := e.persist.SavePotHistory(ctx, snapshot); err != nil {
		log.Error().Err(err).Msg("persist pot history failed")
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d == time.Minute:
		return "1 minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
