package mcpserver

const (
	defaultPageLimit    = 10
	maxPageLimit        = 100
	maxLeaderboardLimit = 50
)

func clampLimit(limit, maxLimit int) int {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	return min(limit, maxLimit)
}

func isAllowedGame(v string) bool {
	return v == "dice" || v == "flip" || v == "slots"
}
