package registry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"relay-lounge/internal/store"
)

const (
	LobbyRoom        = "lobby"
	SystemOwner      = "system"
	ShoutboxCapacity = 50
)

var (
	ErrAccountExists   = errors.New("account_exists")
	ErrUnknownAccount  = errors.New("unknown_account")
	ErrRoomExists      = errors.New("room_exists")
	ErrUnknownRoom     = errors.New("unknown_room")
	ErrInvalidRoomName = errors.New("invalid_room_name")
	ErrNotRoomOwner    = errors.New("not_room_owner")
	ErrRoomForbidden   = errors.New("room_forbidden")
	ErrAlreadyOnline   = errors.New("already_online")
	ErrUnknownSession  = errors.New("unknown_session")
)

// Persister receives full-collection snapshots after each mutation.
type Persister interface {
	SaveAccounts(ctx context.Context, v []store.Account) error
	SaveRooms(ctx context.Context, v []store.Room) error
	SaveShoutbox(ctx context.Context, v []store.ShoutboxMessage) error
}

// Registry owns sessions, accounts, rooms and the shoutbox. Each collection
// has its own mutex and no method holds two of them at once.
type Registry struct {
	persist Persister
	now     func() time.Time

	sessionsMu sync.Mutex
	sessions   map[uint64]*Member
	byUser     map[string]uint64

	accountsMu     sync.Mutex
	accounts       map[string]*store.Account
	accountsSaveMu sync.Mutex

	roomsMu     sync.Mutex
	rooms       map[string]*store.Room
	roomsSaveMu sync.Mutex

	shoutMu     sync.Mutex
	shouts      []store.ShoutboxMessage
	shoutSaveMu sync.Mutex
}

// New builds a registry from a loaded snapshot. persist may be nil.
func New(persist Persister, snap store.Snapshot) *Registry {
	r := &Registry{
		persist:  persist,
		now:      time.Now,
		sessions: make(map[uint64]*Member),
		byUser:   make(map[string]uint64),
		accounts: make(map[string]*store.Account, len(snap.Accounts)),
		rooms:    make(map[string]*store.Room, len(snap.Rooms)+1),
	}
	for i := range snap.Accounts {
		acc := snap.Accounts[i].Clone()
		if acc.Username == "" {
			continue
		}
		r.accounts[Key(acc.Username)] = &acc
	}
	for i := range snap.Rooms {
		room := snap.Rooms[i].Clone()
		if !ValidRoomName(room.Name) {
			continue
		}
		r.rooms[Key(room.Name)] = &room
	}
	if _, ok := r.rooms[LobbyRoom]; !ok {
		r.rooms[LobbyRoom] = &store.Room{
			Name:        LobbyRoom,
			Owner:       SystemOwner,
			Description: "Default room",
			CreatedAt:   r.now(),
		}
	}
	shouts := snap.Shoutbox
	if len(shouts) > ShoutboxCapacity {
		shouts = shouts[len(shouts)-ShoutboxCapacity:]
	}
	r.shouts = append([]store.ShoutboxMessage(nil), shouts...)
	return r
}

// Key normalizes usernames and room names for lookups.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Flush writes every registry collection, used for periodic and final snapshots.
func (r *Registry) Flush(ctx context.Context) {
	r.saveAccounts(ctx)
	r.saveRooms(ctx)
	r.saveShoutbox(ctx)
}
