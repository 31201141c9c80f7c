package registry

import (
	"context"
	"regexp"
	"slices"
	"sort"

	"relay-lounge/internal/store"

	"github.com/rs/zerolog/log"
)

var roomNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

func ValidRoomName(name string) bool {
	return roomNamePattern.MatchString(name)
}

// RoomView is a room plus its live occupancy.
type RoomView struct {
	store.Room
	Online int
}

func (r *Registry) CreateRoom(ctx context.Context, room store.Room) error {
	if !ValidRoomName(room.Name) {
		return ErrInvalidRoomName
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = r.now()
	}
	key := Key(room.Name)
	r.roomsMu.Lock()
	if _, ok := r.rooms[key]; ok {
		r.roomsMu.Unlock()
		return ErrRoomExists
	}
	stored := room.Clone()
	r.rooms[key] = &stored
	r.roomsMu.Unlock()

	r.saveRooms(ctx)
	return nil
}

func (r *Registry) Room(name string) (store.Room, bool) {
	r.roomsMu.Lock()
	defer r.roomsMu.Unlock()
	room, ok := r.rooms[Key(name)]
	if !ok {
		return store.Room{}, false
	}
	return room.Clone(), true
}

// CanEnter reports whether username may join room.
func CanEnter(room store.Room, username string) bool {
	if !room.Private {
		return true
	}
	key := Key(username)
	if Key(room.Owner) == key {
		return true
	}
	return slices.ContainsFunc(room.Allowed, func(u string) bool { return Key(u) == key })
}

// EnterableRoom resolves a room for a join attempt.
func (r *Registry) EnterableRoom(name, username string) (store.Room, error) {
	room, ok := r.Room(name)
	if !ok {
		return store.Room{}, ErrUnknownRoom
	}
	if !CanEnter(room, username) {
		return store.Room{}, ErrRoomForbidden
	}
	return room, nil
}

// RoomsFor lists the rooms visible to username with live occupancy. Rooms are
// snapshotted before sessions are consulted.
func (r *Registry) RoomsFor(username string) []RoomView {
	r.roomsMu.Lock()
	rooms := make([]store.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if CanEnter(*room, username) {
			rooms = append(rooms, room.Clone())
		}
	}
	r.roomsMu.Unlock()

	occupancy := r.roomOccupancy()
	out := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, RoomView{Room: room, Online: occupancy[Key(room.Name)]})
	}
	sort.Slice(out, func(i, j int) bool { return Key(out[i].Name) < Key(out[j].Name) })
	return out
}

// Invite adds username to a private room's allow-list. Only the owner may invite.
func (r *Registry) Invite(ctx context.Context, roomName, owner, username string) error {
	r.roomsMu.Lock()
	room, ok := r.rooms[Key(roomName)]
	if !ok {
		r.roomsMu.Unlock()
		return ErrUnknownRoom
	}
	if Key(room.Owner) != Key(owner) {
		r.roomsMu.Unlock()
		return ErrNotRoomOwner
	}
	if CanEnter(*room, username) {
		r.roomsMu.Unlock()
		return nil
	}
	room.Allowed = append(room.Allowed, username)
	r.roomsMu.Unlock()

	r.saveRooms(ctx)
	return nil
}

func (r *Registry) saveRooms(ctx context.Context) {
	if r.persist == nil {
		return
	}
	r.roomsSaveMu.Lock()
	defer r.roomsSaveMu.Unlock()
	r.roomsMu.Lock()
	snapshot := make([]store.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		snapshot = append(snapshot, room.Clone())
	}
	r.roomsMu.Unlock()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].CreatedAt.Before(snapshot[j].CreatedAt) })
	if err := r.persist.SaveRooms(ctx, snapshot); err != nil {
		log.Error().Err(err).Int("rooms", len(snapshot)).Msg("persist rooms failed")
	}
}
