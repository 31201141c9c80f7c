package registry

import (
	"context"
	"sort"
	"time"

	"relay-lounge/internal/store"

	"github.com/rs/zerolog/log"
)

// AccountSet is the mutable view handed to UpdateAccounts callbacks.
type AccountSet struct {
	m map[string]*store.Account
}

// Get returns the live account pointer. Only valid inside the callback.
func (s AccountSet) Get(username string) (*store.Account, bool) {
	acc, ok := s.m[Key(username)]
	return acc, ok
}

func (r *Registry) CreateAccount(ctx context.Context, acc store.Account) error {
	key := Key(acc.Username)
	r.accountsMu.Lock()
	if _, ok := r.accounts[key]; ok {
		r.accountsMu.Unlock()
		return ErrAccountExists
	}
	stored := acc.Clone()
	r.accounts[key] = &stored
	r.accountsMu.Unlock()

	r.saveAccounts(ctx)
	return nil
}

func (r *Registry) Account(username string) (store.Account, bool) {
	r.accountsMu.Lock()
	defer r.accountsMu.Unlock()
	acc, ok := r.accounts[Key(username)]
	if !ok {
		return store.Account{}, false
	}
	return acc.Clone(), true
}

func (r *Registry) AccountExists(username string) bool {
	r.accountsMu.Lock()
	defer r.accountsMu.Unlock()
	_, ok := r.accounts[Key(username)]
	return ok
}

// Accounts returns copies of all accounts ordered by username.
func (r *Registry) Accounts() []store.Account {
	r.accountsMu.Lock()
	out := make([]store.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		out = append(out, acc.Clone())
	}
	r.accountsMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return Key(out[i].Username) < Key(out[j].Username) })
	return out
}

// UpdateAccounts runs fn with the accounts lock held. fn must leave accounts
// untouched when it returns an error; on success the collection is persisted.
func (r *Registry) UpdateAccounts(ctx context.Context, fn func(AccountSet) error) error {
	r.accountsMu.Lock()
	err := fn(AccountSet{m: r.accounts})
	r.accountsMu.Unlock()
	if err != nil {
		return err
	}
	r.saveAccounts(ctx)
	return nil
}

func (r *Registry) TouchLogin(ctx context.Context, username string, at time.Time) error {
	return r.UpdateAccounts(ctx, func(set AccountSet) error {
		acc, ok := set.Get(username)
		if !ok {
			return ErrUnknownAccount
		}
		acc.LastLoginAt = &at
		return nil
	})
}

// saveAccounts snapshots under the data lock and writes under the save lock,
// so a later snapshot can never be overwritten by an earlier one.
func (r *Registry) saveAccounts(ctx context.Context) {
	if r.persist == nil {
		return
	}
	r.accountsSaveMu.Lock()
	defer r.accountsSaveMu.Unlock()
	r.accountsMu.Lock()
	snapshot := make([]store.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		snapshot = append(snapshot, acc.Clone())
	}
	r.accountsMu.Unlock()
	sort.Slice(snapshot, func(i, j int) bool { return Key(snapshot[i].Username) < Key(snapshot[j].Username) })
	if err := r.persist.SaveAccounts(ctx, snapshot); err != nil {
		log.Error().Err(err).Int("accounts", len(snapshot)).Msg("persist accounts failed")
	}
}
