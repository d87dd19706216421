package framework

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"jukebox/audio"
	commands "jukebox/cmd"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func newTestCommand(t *testing.T) (*commands.BotCommand, *audio.Registry) {
	t.Helper()
	logger := zap.NewNop()
	registry := audio.NewRegistry(30, 20, nil)
	coordinator := audio.NewCoordinator(registry,
		audio.NewPreparer(nil, time.Second, logger, nil),
		audio.NewAutoplay(nil, 0, logger, nil),
		audio.DefaultReconnectPolicy(), logger, nil)
	t.Cleanup(coordinator.Close)

	deps := &commands.Deps{
		Coordinator: coordinator,
		Logger:      logger,
		Latency:     func() time.Duration { return 42 * time.Millisecond },
	}
	return commands.NewBotCommand(deps, commands.Request{GuildID: "g1", UserID: "u1"}), registry
}

func stringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func intOpt(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	// Interaction payloads decode numbers as float64.
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		opts      options
		want      string
		ephemeral bool
	}{
		{"ping", "ping", nil, "🏓 Pong! 42ms", true},
		{"unknown", "dance", nil, "Unknown command. Type `/help` for available commands.", true},
		{"loop", "loop", options{"mode": stringOpt("mode", "queue")}, "🔂 Loop mode set to 'queue'.", false},
		{"autoplay", "autoplay", options{"mode": stringOpt("mode", "off")}, "⏹️ Autoplay is now off.", false},
		{"empty queue", "clear", nil, "🕳️ The queue is already empty.", true},
		{"remove missing", "remove", options{"position": intOpt("position", 3)}, "❌ Invalid position.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := newTestCommand(t)
			got := dispatch(context.Background(), cmd, tt.command, tt.opts)
			if got.Content != tt.want {
				t.Errorf("Content = %q, want %q", got.Content, tt.want)
			}
			if got.Ephemeral != tt.ephemeral {
				t.Errorf("Ephemeral = %v, want %v", got.Ephemeral, tt.ephemeral)
			}
		})
	}
}

func TestDispatchLoopUpdatesState(t *testing.T) {
	cmd, registry := newTestCommand(t)
	dispatch(context.Background(), cmd, "loop", options{"mode": stringOpt("mode", "current")})

	state, ok := registry.Lookup("g1")
	if !ok {
		t.Fatal("guild state was not created")
	}
	if state.LoopMode() != audio.LoopCurrent {
		t.Errorf("LoopMode = %v, want current", state.LoopMode())
	}
}

func TestDispatchHelpListsEveryCommand(t *testing.T) {
	cmd, _ := newTestCommand(t)
	got := dispatch(context.Background(), cmd, "help", nil)
	for _, c := range slashCommands {
		if !strings.Contains(got.Content, "`/"+c.Name) {
			t.Errorf("help is missing /%s", c.Name)
		}
	}
}

func TestHelpEntriesUsage(t *testing.T) {
	usage := make(map[string]string)
	for _, e := range helpEntries() {
		name := strings.Fields(e.Usage)[0]
		usage[name] = e.Usage
	}

	tests := map[string]string{
		"/play":   "/play <query>",
		"/queue":  "/queue [page]",
		"/remove": "/remove <position>",
		"/skip":   "/skip",
	}
	for name, want := range tests {
		if usage[name] != want {
			t.Errorf("usage of %s = %q, want %q", name, usage[name], want)
		}
	}
}

func TestOptions(t *testing.T) {
	opts := options{
		"query": stringOpt("query", "lofi beats"),
		"page":  intOpt("page", 2),
	}
	if got := opts.str("query"); got != "lofi beats" {
		t.Errorf("str(query) = %q", got)
	}
	if got := opts.str("missing"); got != "" {
		t.Errorf("str(missing) = %q", got)
	}
	if got := opts.integer("page", 1); got != 2 {
		t.Errorf("integer(page) = %d", got)
	}
	if got := opts.integer("missing", 1); got != 1 {
		t.Errorf("integer(missing) = %d", got)
	}
}

func TestSelectionButtons(t *testing.T) {
	rows := selectionButtons(&commands.SelectionPrompt{ID: "g1.7", Choices: 5})
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}

	choices := rows[0].(discordgo.ActionsRow).Components
	if len(choices) != 5 {
		t.Fatalf("choice buttons = %d, want 5", len(choices))
	}
	for n, c := range choices {
		button := c.(discordgo.Button)
		id, index, ok := commands.ParseChoiceID(button.CustomID)
		if !ok || id != "g1.7" || index != n {
			t.Errorf("button %d custom id %q parsed to %q, %d, %v", n, button.CustomID, id, index, ok)
		}
		if button.Label != strconv.Itoa(n+1) {
			t.Errorf("button %d label = %q", n, button.Label)
		}
	}

	cancel := rows[1].(discordgo.ActionsRow).Components[0].(discordgo.Button)
	if _, index, ok := commands.ParseChoiceID(cancel.CustomID); !ok || index != commands.CancelChoice {
		t.Errorf("cancel custom id %q", cancel.CustomID)
	}
	if cancel.Style != discordgo.DangerButton {
		t.Errorf("cancel style = %v", cancel.Style)
	}
}

func TestInteractionUser(t *testing.T) {
	member := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "m1"}},
	}}
	direct := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "d1"},
	}}
	if got := interactionUser(member); got != "m1" {
		t.Errorf("member user = %q", got)
	}
	if got := interactionUser(direct); got != "d1" {
		t.Errorf("direct user = %q", got)
	}
	if got := interactionUser(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}); got != "" {
		t.Errorf("anonymous user = %q", got)
	}
}
