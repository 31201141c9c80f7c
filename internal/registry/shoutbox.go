package registry

import (
	"context"

	"relay-lounge/internal/store"

	"github.com/rs/zerolog/log"
)

// Shout appends to the shoutbox, keeping the most recent ShoutboxCapacity entries.
func (r *Registry) Shout(ctx context.Context, author, text string) store.ShoutboxMessage {
	msg := store.ShoutboxMessage{Author: author, Text: text, CreatedAt: r.now()}
	r.shoutMu.Lock()
	r.shouts = append(r.shouts, msg)
	if over := len(r.shouts) - ShoutboxCapacity; over > 0 {
		r.shouts = append(r.shouts[:0:0], r.shouts[over:]...)
	}
	r.shoutMu.Unlock()

	r.saveShoutbox(ctx)
	return msg
}

// Shouts returns up to limit of the most recent entries, oldest first.
// limit <= 0 returns everything.
func (r *Registry) Shouts(limit int) []store.ShoutboxMessage {
	r.shoutMu.Lock()
	defer r.shoutMu.Unlock()
	from := 0
	if limit > 0 && len(r.shouts) > limit {
		from = len(r.shouts) - limit
	}
	return append([]store.ShoutboxMessage(nil), r.shouts[from:]...)
}

func (r *Registry) saveShoutbox(ctx context.Context) {
	if r.persist == nil {
		return
	}
	r.shoutSaveMu.Lock()
	defer r.shoutSaveMu.Unlock()
	snapshot := r.Shouts(0)
	if err := r.persist.SaveShoutbox(ctx, snapshot); err != nil {
		log.Error().Err(err).Msg("persist shoutbox failed")
	}
}
