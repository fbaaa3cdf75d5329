package bot

import (
	"strings"
	"unicode"
)

type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdNickname
	CmdRename
	CmdPayer
	CmdDashboard
	CmdHelp
	CmdUndo
	// CmdOtherBot is a command addressed to a different bot with "/cmd@name".
	CmdOtherBot
)

var commandNames = map[CommandKind]string{
	CmdNone:      "none",
	CmdNickname:  "nick",
	CmdRename:    "rename",
	CmdPayer:     "payer",
	CmdDashboard: "stats",
	CmdHelp:      "help",
	CmdUndo:      "undo",
	CmdOtherBot:  "other_bot",
}

func (k CommandKind) String() string {
	return commandNames[k]
}

type Command struct {
	Kind CommandKind
	Arg  string
}

// Prefix commands take the rest of the message as their argument.
var prefixCommands = []struct {
	prefix string
	kind   CommandKind
}{
	{"/nick ", CmdNickname},
	{"/rename ", CmdRename},
	{"/payer ", CmdPayer},
}

var literalCommands = map[string]CommandKind{
	"/stats":  CmdDashboard,
	"/help":   CmdHelp,
	"/start":  CmdHelp,
	"/undo":   CmdUndo,
	"/delete": CmdUndo,
}

// Route classifies a trimmed message. Prefix commands win over literals; a
// prefix with nothing after it is not a command. botName is this bot's
// username; when empty any "@name" suffix is accepted.
func Route(text, botName string) Command {
	text, ok := stripBotName(strings.TrimSpace(text), botName)
	if !ok {
		return Command{Kind: CmdOtherBot}
	}

	for _, pc := range prefixCommands {
		if rest, ok := strings.CutPrefix(text, pc.prefix); ok {
			if arg := strings.TrimSpace(rest); arg != "" {
				return Command{Kind: pc.kind, Arg: arg}
			}
		}
	}

	if kind, ok := literalCommands[text]; ok {
		return Command{Kind: kind}
	}
	return Command{Kind: CmdNone}
}

// stripBotName turns "/stats@ledger_bot ..." into "/stats ...". It reports
// false when the suffix names another bot.
func stripBotName(text, botName string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return text, true
	}
	end := strings.IndexFunc(text, unicode.IsSpace)
	if end == -1 {
		end = len(text)
	}
	at := strings.IndexByte(text[:end], '@')
	if at == -1 {
		return text, true
	}
	if botName != "" && !strings.EqualFold(text[at+1:end], botName) {
		return text, false
	}
	return text[:at] + text[end:], true
}

// HasDigit reports whether s contains any decimal digit, full-width ones included.
func HasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) != -1
}
