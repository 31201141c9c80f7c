package gambling

import (
	"sync/atomic"
	"time"

	"relay-lounge/internal/registry"
	"relay-lounge/internal/store"

	"github.com/shopspring/decimal"
)

type PotState int32

const (
	PotActive PotState = iota
	PotResolving
	PotResolved
)

func (s PotState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s PotState) String() string {
	switch s {
	case PotActive:
		return "active"
	case PotResolving:
		return "resolving"
	default:
		return "resolved"
	}
}

const (
	ReasonExpired    = "expired"
	ReasonEndedEarly = "ended_early"
	// ReasonRecovered marks a pot found paid at startup but never archived.
	ReasonRecovered = "recovered"
)

// pot is guarded by Engine.potsMu except for state, which only moves forward
// through compare-and-swap.
type pot struct {
	id          string
	seq         int64
	name        string
	description string
	createdBy   string
	createdAt   time.Time
	endsAt      time.Time

	state  atomic.Int32
	total  decimal.Decimal
	stakes map[string]decimal.Decimal
	order  []string
	timer  *time.Timer
}

func newPot(id string, seq int64, name, description, createdBy string, createdAt, endsAt time.Time) *pot {
	p := &pot{
		id:          id,
		seq:         seq,
		name:        name,
		description: description,
		createdBy:   createdBy,
		createdAt:   createdAt,
		endsAt:      endsAt,
		stakes:      make(map[string]decimal.Decimal),
	}
	p.state.Store(int32(PotActive))
	return p
}

func (p *pot) State() PotState { return PotState(p.state.Load()) }

// addStake keeps total equal to the sum of stakes. order holds display names
// in join order.
func (p *pot) addStake(username string, amount decimal.Decimal) decimal.Decimal {
	key := registry.Key(username)
	prev, ok := p.stakes[key]
	if !ok {
		p.order = append(p.order, username)
	}
	p.stakes[key] = prev.Add(amount)
	p.total = p.total.Add(amount)
	return p.stakes[key]
}

func (p *pot) participants() []store.Stake {
	out := make([]store.Stake, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, store.Stake{Username: name, Amount: p.stakes[registry.Key(name)]})
	}
	return out
}

func (p *pot) view() PotView {
	return PotView{
		ID:           p.id,
		Name:         p.name,
		Description:  p.description,
		CreatedBy:    p.createdBy,
		CreatedAt:    p.createdAt,
		EndsAt:       p.endsAt,
		State:        p.State(),
		Total:        p.total,
		Participants: p.participants(),
	}
}

func (p *pot) record() store.OpenPot {
	return store.OpenPot{
		ID:           p.id,
		Name:         p.name,
		Description:  p.description,
		CreatedBy:    p.createdBy,
		CreatedAt:    p.createdAt,
		EndsAt:       p.endsAt,
		Participants: p.participants(),
	}
}

// PotView is a point-in-time copy of a pot.
type PotView struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	CreatedBy    string          `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	EndsAt       time.Time       `json:"ends_at"`
	State        PotState        `json:"state"`
	Total        decimal.Decimal `json:"total"`
	Participants []store.Stake   `json:"participants"`
}

// Odds returns username's share of the pot as a fraction in [0, 1].
func (v PotView) Odds(username string) decimal.Decimal {
	if !v.Total.IsPositive() {
		return decimal.Zero
	}
	key := registry.Key(username)
	for _, s := range v.Participants {
		if registry.Key(s.Username) == key {
			return s.Amount.Div(v.Total)
		}
	}
	return decimal.Zero
}

// pickWinner draws uniformly in [0, total) cents and walks stakes in join
// order; the first cumulative stake past the draw wins.
func pickWinner(rng RNG, stakes []store.Stake, total decimal.Decimal) string {
	cents := total.Shift(2).IntPart()
	if cents <= 0 || len(stakes) == 0 {
		return ""
	}
	draw := rng.Int64N(cents)
	var acc int64
	for _, s := range stakes {
		acc += s.Amount.Shift(2).IntPart()
		if acc > draw {
			return s.Username
		}
	}
	return stakes[len(stakes)-1].Username
}
