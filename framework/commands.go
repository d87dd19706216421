package framework

import (
	"fmt"
	"strings"

	commands "jukebox/cmd"

	"github.com/bwmarrin/discordgo"
)

var minPosition = 1.0

func choice(name string) *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name}
}

// slashCommands lists every command the bot registers.
var slashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "play",
		Description: "Play a song from a URL or search terms",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "query", Description: "YouTube URL or search terms", Required: true},
		},
	},
	{
		Name:        "playlist",
		Description: "Queue the songs of a playlist",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "url", Description: "Playlist URL", Required: true},
		},
	},
	{Name: "skip", Description: "Skip the current song"},
	{Name: "pause", Description: "Pause playback"},
	{Name: "resume", Description: "Resume playback"},
	{Name: "nowplaying", Description: "Show the current song"},
	{
		Name:        "queue",
		Description: "Show the upcoming songs",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "page", Description: "Page number", MinValue: &minPosition},
		},
	},
	{
		Name:        "remove",
		Description: "Remove a song from the queue",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "position", Description: "Position in the queue", Required: true, MinValue: &minPosition},
		},
	},
	{Name: "clear", Description: "Clear the queue"},
	{Name: "shuffle", Description: "Shuffle the queue"},
	{
		Name:        "autoplay",
		Description: "Queue related songs when the queue runs out",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type: discordgo.ApplicationCommandOptionString, Name: "mode", Description: "on or off", Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{choice("on"), choice("off")},
			},
		},
	},
	{
		Name:        "loop",
		Description: "Repeat the current song or the whole queue",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type: discordgo.ApplicationCommandOptionString, Name: "mode", Description: "off, current or queue", Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{choice("off"), choice("current"), choice("queue")},
			},
		},
	},
	{Name: "leave", Description: "Stop playback and leave the voice channel"},
	{Name: "ping", Description: "Check the bot's latency"},
	{Name: "help", Description: "List the available commands"},
}

// helpEntries renders slashCommands for /help.
func helpEntries() []commands.HelpEntry {
	entries := make([]commands.HelpEntry, 0, len(slashCommands))
	for _, c := range slashCommands {
		usage := "/" + c.Name
		var args []string
		for _, o := range c.Options {
			if o.Required {
				args = append(args, fmt.Sprintf("<%s>", o.Name))
			} else {
				args = append(args, fmt.Sprintf("[%s]", o.Name))
			}
		}
		if len(args) > 0 {
			usage += " " + strings.Join(args, " ")
		}
		entries = append(entries, commands.HelpEntry{Usage: usage, Description: c.Description})
	}
	return entries
}
