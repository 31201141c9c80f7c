package registry

import (
	"sort"
	"time"
)

// Sender delivers one protocol line to a connection without blocking.
type Sender interface {
	Send(line string) bool
}

// Member is an authenticated session as seen by other sessions.
type Member struct {
	ConnID      uint64
	Username    string
	Room        string
	ConnectedAt time.Time
	Sender      Sender
}

// AddSession binds an authenticated connection. A username may only be bound
// to one live connection.
func (r *Registry) AddSession(m Member) error {
	if m.Room == "" {
		m.Room = LobbyRoom
	}
	key := Key(m.Username)
	r.sessionsMu.Lock()
	defer r.sessionsMu.Unlock()
	if _, ok := r.byUser[key]; ok {
		return ErrAlreadyOnline
	}
	r.sessions[m.ConnID] = &m
	r.byUser[key] = m.ConnID
	return nil
}

// RemoveSession unbinds a connection and returns its last state.
func (r *Registry) RemoveSession(connID uint64) (Member, bool) {
	r.sessionsMu.Lock()
	defer r.sessionsMu.Unlock()
	m, ok := r.sessions[connID]
	if !ok {
		return Member{}, false
	}
	delete(r.sessions, connID)
	if r.byUser[Key(m.Username)] == connID {
		delete(r.byUser, Key(m.Username))
	}
	return *m, true
}

func (r *Registry) Session(connID uint64) (Member, bool) {
	r.sessionsMu.Lock()
	defer r.sessionsMu.Unlock()
	m, ok := r.sessions[connID]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

func (r *Registry) SessionByUser(username string) (Member, bool) {
	r.sessionsMu.Lock()
	defer r.sessionsMu.Unlock()
	id, ok := r.byUser[Key(username)]
	if !ok {
		return Member{}, false
	}
	return *r.sessions[id], true
}

// SetSessionRoom moves a session and returns the room it left.
func (r *Registry) SetSessionRoom(connID uint64, room string) (string, error) {
	r.sessionsMu.Lock()
	defer r.sessionsMu.Unlock()
	m, ok := r.sessions[connID]
	if !ok {
		return "", ErrUnknownSession
	}
	prev := m.Room
	m.Room = room
	return prev, nil
}

// Sessions lists authenticated sessions ordered by username.
func (r *Registry) Sessions() []Member {
	r.sessionsMu.Lock()
	out := make([]Member, 0, len(r.sessions))
	for _, m := range r.sessions {
		out = append(out, *m)
	}
	r.sessionsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return Key(out[i].Username) < Key(out[j].Username) })
	return out
}

func (r *Registry) RoomMembers(room string) []Member {
	key := Key(room)
	r.sessionsMu.Lock()
	out := make([]Member, 0)
	for _, m := range r.sessions {
		if Key(m.Room) == key {
			out = append(out, *m)
		}
	}
	r.sessionsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return Key(out[i].Username) < Key(out[j].Username) })
	return out
}

func (r *Registry) roomOccupancy() map[string]int {
	r.sessionsMu.Lock()
	defer r.sessionsMu.Unlock()
	out := make(map[string]int)
	for _, m := range r.sessions {
		out[Key(m.Room)]++
	}
	return out
}

// SendToUser delivers a line to the user's live session, if any.
func (r *Registry) SendToUser(username, line string) bool {
	m, ok := r.SessionByUser(username)
	if !ok {
		return false
	}
	return m.Sender.Send(line)
}

// BroadcastRoom sends to everyone currently in room except the given
// connection (0 excludes nobody). Returns the number of queued deliveries.
func (r *Registry) BroadcastRoom(room, line string, except uint64) int {
	key := Key(room)
	r.sessionsMu.Lock()
	targets := make([]Sender, 0)
	for id, m := range r.sessions {
		if id != except && Key(m.Room) == key {
			targets = append(targets, m.Sender)
		}
	}
	r.sessionsMu.Unlock()
	return deliver(targets, line)
}

func (r *Registry) BroadcastAll(line string) int {
	r.sessionsMu.Lock()
	targets := make([]Sender, 0, len(r.sessions))
	for _, m := range r.sessions {
		targets = append(targets, m.Sender)
	}
	r.sessionsMu.Unlock()
	return deliver(targets, line)
}

func deliver(targets []Sender, line string) int {
	n := 0
	for _, s := range targets {
		if s.Send(line) {
			n++
		}
	}
	return n
}
