package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"
	"relay-lounge/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const houseCreator = "house"

type AdminHandlers struct {
	deps Deps
}

func NewAdminHandlers(deps Deps) *AdminHandlers {
	return &AdminHandlers{deps: deps}
}

type accountJSON struct {
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	Balance      decimal.Decimal `json:"balance"`
	RegisteredAt time.Time       `json:"registered_at"`
	LastLoginAt  *time.Time      `json:"last_login_at,omitempty"`
	Online       bool            `json:"online"`
	Stats        store.GameStats `json:"stats"`
}

func (h *AdminHandlers) toAccountJSON(acc store.Account) accountJSON {
	_, online := h.deps.Registry.SessionByUser(acc.Username)
	return accountJSON{
		Username:     acc.Username,
		Email:        acc.Email,
		Balance:      acc.Balance,
		RegisteredAt: acc.RegisteredAt,
		LastLoginAt:  acc.LastLoginAt,
		Online:       online,
		Stats:        acc.Stats,
	}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.deps.Store != nil {
			if err := h.deps.Store.Ping(r.Context()); err != nil {
				log.Warn().Err(err).Msg("health ping failed")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "store": "down"})
				return
			}
		}
		writeJSON(w, map[string]any{
			"ok":       true,
			"store":    "up",
			"sessions": len(h.deps.Registry.Sessions()),
			"pots":     len(h.deps.Gambling.ActivePots()),
		})
	}
}

func (h *AdminHandlers) Leaderboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := ParsePagination(r)
		writeJSON(w, map[string]any{"items": h.deps.Ledger.Leaderboard(limit)})
	}
}

func (h *AdminHandlers) Accounts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		all := h.deps.Registry.Accounts()
		items := make([]accountJSON, 0, limit)
		for i := offset; i < len(all) && len(items) < limit; i++ {
			items = append(items, h.toAccountJSON(all[i]))
		}
		writeJSON(w, map[string]any{"items": items, "total": len(all), "limit": limit, "offset": offset})
	}
}

func (h *AdminHandlers) Account() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, ok := h.deps.Registry.Account(chi.URLParam(r, "username"))
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "account_not_found")
			return
		}
		history, _ := h.deps.Ledger.History(acc.Username, 20)
		writeJSON(w, map[string]any{
			"account":      h.toAccountJSON(acc),
			"transactions": history,
			"games":        h.deps.Gambling.Results(acc.Username, 20),
		})
	}
}

func (h *AdminHandlers) Grant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Amount      decimal.Decimal `json:"amount"`
			Description string          `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		username := chi.URLParam(r, "username")
		desc := strings.TrimSpace(body.Description)
		if desc == "" {
			desc = "admin grant"
		}
		balance, err := h.deps.Ledger.Grant(r.Context(), username, body.Amount, desc)
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			WriteHTTPError(w, http.StatusBadRequest, "invalid_amount")
			return
		case errors.Is(err, ledger.ErrUnknownAccount):
			WriteHTTPError(w, http.StatusNotFound, "account_not_found")
			return
		case err != nil:
			log.Error().Err(err).Str("username", username).Msg("grant failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		metricGrantsTotal.Add(1)
		log.Info().Str("username", username).Str("amount", body.Amount.String()).Msg("admin grant")
		h.deps.Registry.SendToUser(username, "System: You received "+ledger.FormatCredits(body.Amount)+" credits ("+desc+").")
		writeJSON(w, map[string]any{"ok": true, "balance": balance})
	}
}

func (h *AdminHandlers) Pots() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"items": h.deps.Gambling.ActivePots()})
	}
}

func (h *AdminHandlers) CreatePot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Minutes     int64  `json:"minutes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		d, err := h.deps.Gambling.PotDuration(body.Minutes)
		if err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_duration")
			return
		}
		view, err := h.deps.Gambling.CreatePot(r.Context(), body.Name, body.Description, houseCreator, d)
		switch {
		case errors.Is(err, gambling.ErrInvalidPotName):
			WriteHTTPError(w, http.StatusBadRequest, "invalid_name")
			return
		case errors.Is(err, gambling.ErrInvalidDuration):
			WriteHTTPError(w, http.StatusBadRequest, "invalid_duration")
			return
		case errors.Is(err, gambling.ErrEngineStopped):
			WriteHTTPError(w, http.StatusServiceUnavailable, "shutting_down")
			return
		case err != nil:
			log.Error().Err(err).Msg("create pot failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(view)
	}
}

func (h *AdminHandlers) EndPot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := h.deps.Gambling.EndEarly(r.Context(), chi.URLParam(r, "pot_id"))
		switch {
		case errors.Is(err, gambling.ErrPotNotFound):
			WriteHTTPError(w, http.StatusNotFound, "pot_not_found")
			return
		case errors.Is(err, gambling.ErrPotClosed):
			WriteHTTPError(w, http.StatusConflict, "pot_closed")
			return
		case err != nil:
			log.Error().Err(err).Msg("end pot failed")
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		metricPotsEndedTotal.Add(1)
		writeJSON(w, entry)
	}
}

func (h *AdminHandlers) PotHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := ParsePagination(r)
		writeJSON(w, map[string]any{"items": h.deps.Gambling.History(limit)})
	}
}

func (h *AdminHandlers) GameResults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := ParsePagination(r)
		writeJSON(w, map[string]any{"items": h.deps.Gambling.Results(r.URL.Query().Get("username"), limit)})
	}
}

func (h *AdminHandlers) Broadcast() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		msg := strings.TrimSpace(body.Message)
		if msg == "" || strings.ContainsAny(msg, "\r\n") {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_message")
			return
		}
		if h.deps.Relay == nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "relay_unavailable")
			return
		}
		n := h.deps.Relay.Announce(msg)
		metricBroadcastsTotal.Add(1)
		log.Info().Int("recipients", n).Msg("admin broadcast")
		writeJSON(w, map[string]any{"ok": true, "recipients": n})
	}
}
