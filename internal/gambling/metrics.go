package gambling

import "expvar"

var (
	potsCreatedTotal  = expvar.NewInt("gambling_pots_created_total")
	potsResolvedTotal = expvar.NewInt("gambling_pots_resolved_total")
	potBetsTotal      = expvar.NewInt("gambling_pot_bets_total")
	gamesPlayedTotal  = expvar.NewMap("gambling_games_played_total")
	bigWinsTotal      = expvar.NewInt("gambling_big_wins_total")
)
