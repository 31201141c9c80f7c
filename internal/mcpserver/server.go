// Package mcpserver exposes the lounge to MCP clients: read-only views of
// rooms, pots and standings, plus credential-checked play for registered
// accounts.
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"relay-lounge/internal/auth"
	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"
	"relay-lounge/internal/registry"
	"relay-lounge/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Deps struct {
	Registry *registry.Registry
	Ledger   *ledger.Ledger
	Gambling *gambling.Engine
	Hasher   *auth.Hasher
}

type Server struct {
	reg    *registry.Registry
	led    *ledger.Ledger
	games  *gambling.Engine
	hasher *auth.Hasher

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(deps Deps) *Server {
	mcpSrv := server.NewMCPServer(
		"relay-lounge",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		reg:        deps.Registry,
		led:        deps.Ledger,
		games:      deps.Gambling,
		hasher:     deps.Hasher,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerPublicTools()
	s.registerGameplayTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"pot://{pot_id}/state",
			"pot_state",
			mcp.WithTemplateDescription("Active or resolved pot by id"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := request.Params.URI
			if !strings.HasPrefix(raw, "pot://") || !strings.HasSuffix(raw, "/state") {
				return nil, nil
			}
			potID := strings.TrimSuffix(strings.TrimPrefix(raw, "pot://"), "/state")
			if potID == "" {
				return nil, nil
			}
			state, err := s.potState(potID)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(state)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

// potState finds a pot among the active ones first, then in history.
func (s *Server) potState(potID string) (map[string]any, error) {
	potID = strings.TrimPrefix(strings.TrimSpace(potID), "#")
	if view, ok := s.games.Pot(potID); ok {
		return map[string]any{"pot_id": potID, "active": true, "pot": view}, nil
	}
	if entry, ok := s.games.HistoryEntry(potID); ok {
		return map[string]any{"pot_id": potID, "active": false, "pot": entry}, nil
	}
	return nil, gambling.ErrPotNotFound
}

// authPlayer checks an account's password the same way LOGIN does.
func (s *Server) authPlayer(username, password string) (store.Account, *mcp.CallToolResult) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return store.Account{}, toolError("invalid_request", "username and password are required")
	}
	acc, ok := s.reg.Account(username)
	if !ok {
		return store.Account{}, toolError("unauthorized", "invalid username or password")
	}
	valid, err := s.hasher.Verify(password, acc.PasswordHash)
	if err != nil || !valid {
		return store.Account{}, toolError("unauthorized", "invalid username or password")
	}
	return acc, nil
}
