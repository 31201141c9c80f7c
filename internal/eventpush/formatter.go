package eventpush

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"
)

const (
	colorPotOpen   = 0x5865F2
	colorPotClosed = 0x3BA55D
	colorPotEmpty  = 0xFEE75C
	colorBigWin    = 0xED4245

	defaultFooter = "relay-lounge"
)

func FormatMessage(ev gambling.Event) (FormattedMessage, bool) {
	msg := FormattedMessage{
		Timestamp: eventTimestamp(ev.At),
		Footer:    defaultFooter,
	}

	switch ev.Type {
	case gambling.EventPotCreated:
		msg.Title = fmt.Sprintf("Pot #%s opened", ev.PotID)
		msg.Content = fmt.Sprintf("pot #%s %q is open", ev.PotID, ev.PotName)
		msg.Description = fmt.Sprintf("%s opened %q.", fallback(ev.Username, "house"), ev.PotName)
		msg.Color = colorPotOpen
		msg.Fields = []MessageField{
			{Name: "Pot", Value: ev.PotID, Inline: true},
			{Name: "Opened by", Value: fallback(ev.Username, "house"), Inline: true},
		}
		if !ev.EndsAt.IsZero() {
			msg.Fields = append(msg.Fields, MessageField{Name: "Closes", Value: eventTimestamp(ev.EndsAt), Inline: true})
		}
	case gambling.EventPotResolved:
		msg.Title = fmt.Sprintf("Pot #%s resolved", ev.PotID)
		if ev.Username == "" {
			msg.Content = fmt.Sprintf("pot #%s %q closed with no bets", ev.PotID, ev.PotName)
			msg.Description = "No bets were placed."
			msg.Color = colorPotEmpty
		} else {
			msg.Content = fmt.Sprintf("%s won pot #%s", ev.Username, ev.PotID)
			msg.Description = fmt.Sprintf("%s won %s credits.", ev.Username, ledger.FormatCredits(ev.Amount))
			msg.Color = colorPotClosed
		}
		msg.Fields = []MessageField{
			{Name: "Pot", Value: ev.PotID, Inline: true},
			{Name: "Total", Value: ledger.FormatCredits(ev.Amount), Inline: true},
			{Name: "Participants", Value: strconv.Itoa(ev.Participants), Inline: true},
			{Name: "Winner", Value: fallback(ev.Username, "-"), Inline: true},
		}
	case gambling.EventBigWin:
		game := strings.ToUpper(fallback(ev.Game, "game"))
		msg.Title = "BIG WIN"
		msg.Content = fmt.Sprintf("%s won %s credits on %s", ev.Username, ledger.FormatCredits(ev.Amount), game)
		msg.Description = msg.Content + "!"
		msg.Color = colorBigWin
		msg.Fields = []MessageField{
			{Name: "Player", Value: ev.Username, Inline: true},
			{Name: "Game", Value: game, Inline: true},
			{Name: "Payout", Value: ledger.FormatCredits(ev.Amount), Inline: true},
		}
	default:
		return FormattedMessage{}, false
	}
	return msg, true
}

func eventTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
