package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPublicTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_rooms",
			mcp.WithDescription("List public rooms with live occupancy"),
		),
		s.handleListRooms,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_pots",
			mcp.WithDescription("List active pots, oldest first"),
		),
		s.handleListPots,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_pot",
			mcp.WithDescription("Get an active or resolved pot by id"),
			mcp.WithString("pot_id", mcp.Required(), mcp.Description("Pot id")),
		),
		s.handleGetPot,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"pot_history",
			mcp.WithDescription("Recently resolved pots, newest first"),
			mcp.WithNumber("limit", mcp.Description("Page size, default 10, max 100")),
		),
		s.handlePotHistory,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_leaderboard",
			mcp.WithDescription("Accounts ranked by balance"),
			mcp.WithNumber("limit", mcp.Description("Page size, default 10, max 50")),
		),
		s.handleGetLeaderboard,
	)
}

func (s *Server) handleListRooms(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	views := s.reg.RoomsFor("")
	items := make([]map[string]any, 0, len(views))
	for _, v := range views {
		items = append(items, map[string]any{
			"name":        v.Name,
			"owner":       v.Owner,
			"description": v.Description,
			"online":      v.Online,
		})
	}
	return toolResult(map[string]any{"items": items}), nil
}

func (s *Server) handleListPots(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(map[string]any{"items": s.games.ActivePots()}), nil
}

func (s *Server) handleGetPot(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	potID, err := request.RequireString("pot_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	state, err := s.potState(potID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(state), nil
}

func (s *Server) handlePotHistory(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clampLimit(request.GetInt("limit", defaultPageLimit), maxPageLimit)
	return toolResult(map[string]any{"items": s.games.History(limit)}), nil
}

func (s *Server) handleGetLeaderboard(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clampLimit(request.GetInt("limit", defaultPageLimit), maxLeaderboardLimit)
	return toolResult(map[string]any{"items": s.led.Leaderboard(limit)}), nil
}
