package mcpserver

import (
	"errors"
	"fmt"

	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

var domainCodes = []struct {
	err  error
	code string
}{
	{ledger.ErrInvalidAmount, "invalid_amount"},
	{ledger.ErrInsufficientFunds, "insufficient_funds"},
	{ledger.ErrUnknownAccount, "account_not_found"},
	{ledger.ErrSelfTransfer, "invalid_request"},
	{gambling.ErrPotNotFound, "pot_not_found"},
	{gambling.ErrPotClosed, "pot_closed"},
	{gambling.ErrNoActivePot, "no_active_pot"},
	{gambling.ErrInvalidTarget, "invalid_target"},
	{gambling.ErrInvalidCall, "invalid_call"},
	{gambling.ErrEngineStopped, "shutting_down"},
}

func mapDomainError(err error) *mcp.CallToolResult {
	if err == nil {
		return toolError("internal_error", "unknown error")
	}
	for _, d := range domainCodes {
		if errors.Is(err, d.err) {
			return toolError(d.code, err.Error())
		}
	}
	return toolError("internal_error", err.Error())
}
