package httptransport

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"relay-lounge/internal/config"
	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"
	"relay-lounge/internal/registry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Relay is the part of the line server the admin API drives.
type Relay interface {
	Announce(text string) int
	HandleWS(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Store    Pinger
	Registry *registry.Registry
	Ledger   *ledger.Ledger
	Gambling *gambling.Engine
	Relay    Relay
	// MCP serves /mcp when set.
	MCP http.Handler
}

func NewRouter(deps Deps, cfg config.ServerConfig) *chi.Mux {
	admin := NewAdminHandlers(deps)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", admin.Health())
	if cfg.WSEnabled && deps.Relay != nil {
		r.With(APILogMiddleware()).Get("/ws", deps.Relay.HandleWS)
	}
	if deps.MCP != nil {
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", deps.MCP)
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", deps.MCP)
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", deps.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/public/leaderboard", admin.Leaderboard())
		r.Get("/public/pots", admin.Pots())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Use(BodyCaptureMiddleware(4096))
			r.Get("/accounts", admin.Accounts())
			r.Get("/accounts/{username}", admin.Account())
			r.Post("/accounts/{username}/grant", admin.Grant())
			r.Get("/pots", admin.Pots())
			r.Post("/pots", admin.CreatePot())
			r.Get("/pots/history", admin.PotHistory())
			r.Post("/pots/{pot_id}/end", admin.EndPot())
			r.Get("/games", admin.GameResults())
			r.Post("/broadcast", admin.Broadcast())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	fmt.Fprintf(&b, "Registered routes (%d):\n", len(routes))
	for _, rt := range routes {
		fmt.Fprintf(&b, "  %-6s %s\n", rt.Method, rt.Path)
	}
	log.Info().Msg(strings.TrimRight(b.String(), "\n"))
}
