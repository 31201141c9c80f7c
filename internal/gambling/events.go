package gambling

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventPotCreated  EventType = "pot_created"
	EventPotResolved EventType = "pot_resolved"
	EventBigWin      EventType = "big_win"
)

// Event describes something players outside the lounge may want to hear
// about. Unused fields are zero.
type Event struct {
	Type         EventType       `json:"type"`
	PotID        string          `json:"pot_id,omitempty"`
	PotName      string          `json:"pot_name,omitempty"`
	Username     string          `json:"username,omitempty"`
	Game         string          `json:"game,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Participants int             `json:"participants,omitempty"`
	EndsAt       time.Time       `json:"ends_at,omitzero"`
	At           time.Time       `json:"at"`
}

// EventSink receives engine events. Publish must not block.
type EventSink interface {
	Publish(ev Event)
}

func (e *Engine) publish(ev Event) {
	if e.events == nil {
		return
	}
	ev.At = e.now()
	e.events.Publish(ev)
}
