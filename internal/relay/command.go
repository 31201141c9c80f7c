package relay

import (
	"strings"
)

// Command is one tokenized protocol line.
type Command struct {
	Verb string
	Args []string
	Line string
}

// ParseCommand splits a line into an upper-cased verb and arguments.
// Blank lines yield ok == false.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{
		Verb: strings.ToUpper(fields[0]),
		Args: fields[1:],
		Line: line,
	}, true
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Rest joins the arguments from i onwards.
func (c Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

type usageError string

func (u usageError) Error() string { return "usage: " + string(u) }

type helpEntry struct {
	usage   string
	summary string
}

var helpEntries = []helpEntry{
	{"HELP", "show this list"},
	{"USERS", "list online users"},
	{"BALANCE", "show your credit balance"},
	{"ROOMS", "list rooms you can join"},
	{"CREATEROOM <name> [description]", "create a public room"},
	{"PRIVATEROOM <name> [description]", "create an invite-only room"},
	{"INVITE <user>", "let a user into your current private room"},
	{"JOIN <room>", "move to a room"},
	{"LEAVE", "return to the lobby"},
	{"WHISPER <user> <message>", "send a private message"},
	{"TRANSFER <user> <amount> [description]", "send credits"},
	{"SHOUT <message>", "post to the shoutbox"},
	{"SHOUTBOX", "show recent shoutbox messages"},
	{"TRANSACTIONS [count]", "show recent transactions"},
	{"GAMBLE bet <amount> [potId]", "bet on the newest pot, or a given pot"},
	{"GAMBLE create <minutes> <name> [description]", "open a new pot"},
	{"GAMBLE info", "show the current pot"},
	{"POTS", "list active pots"},
	{"POTINFO <potId>", "show one pot"},
	{"GAMBLINGHISTORY", "show recently resolved pots"},
	{"DICE <amount> [target]", "roll two dice, optionally on an exact sum"},
	{"FLIP <amount> HEADS|TAILS", "flip a coin"},
	{"SLOTS <amount>", "spin three reels"},
	{"STATS", "show your game statistics"},
	{"LEADERBOARD", "show the richest players"},
	{"QUIT", "disconnect"},
}

const (
	loginHint        = "Please LOGIN <username> <password> or REGISTER <username> <password> <email>"
	genericErrorLine = "System: Something went wrong handling that command. Please try again."
)
