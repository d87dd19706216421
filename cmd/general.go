package commands

import (
	"fmt"
	"strings"
)

// HelpEntry describes one slash command for /help.
type HelpEntry struct {
	Usage       string
	Description string
}

func (cmd *BotCommand) Ping() Response {
	if cmd.Latency == nil {
		return private("🏓 Pong!")
	}
	return private(fmt.Sprintf("🏓 Pong! %dms", cmd.Latency().Milliseconds()))
}

func (cmd *BotCommand) Help(entries []HelpEntry) Response {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "`%s` - %s\n", e.Usage, e.Description)
	}
	return private(strings.TrimRight(b.String(), "\n"))
}
