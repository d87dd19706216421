package commands

import (
	"github.com/bwmarrin/discordgo"
)

// ChannelNotifier sends status messages to a text channel.
type ChannelNotifier struct {
	Session   *discordgo.Session
	ChannelID string
}

func NewChannelNotifier(s *discordgo.Session, channelID string) *ChannelNotifier {
	return &ChannelNotifier{Session: s, ChannelID: channelID}
}

func (n *ChannelNotifier) SendMessage(text string) error {
	_, err := n.Session.ChannelMessageSend(n.ChannelID, text)
	return err
}
