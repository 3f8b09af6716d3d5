package notifier

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// rankColors maps ranks to embed colours.
var rankColors = map[string]int{
	"S":        0xF1C40F,
	"A":        0xE67E22,
	"B":        0x9B59B6,
	"C":        0x3498DB,
	"D":        0x2ECC71,
	"E":        0x95A5A6,
	"Unranked": 0x7F8C8D,
}

type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier opens a bot session. An empty token or channel yields
// an error so callers can run without Discord.
func NewDiscordNotifier(botToken, channelID string) (*DiscordNotifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}
	if channelID == "" {
		return nil, fmt.Errorf("discord channel ID is empty")
	}
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID}, nil
}

func (n *DiscordNotifier) NotifyAchievement(ctx context.Context, event Event) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	_, err := n.session.ChannelMessageSendEmbed(n.channelID, achievementEmbed(event), discordgo.WithContext(ctx))
	return err
}

func achievementEmbed(event Event) *discordgo.MessageEmbed {
	who := event.Username
	if who == "" {
		who = fmt.Sprintf("user #%d", event.UserID)
	}
	color, ok := rankColors[event.Rank]
	if !ok {
		color = rankColors["Unranked"]
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🏆 %s unlocked %s", who, event.Title),
		Description: event.Description,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Rank", Value: event.Rank, Inline: true},
			{Name: "Points", Value: fmt.Sprintf("%d", event.Points), Inline: true},
			{Name: "XP", Value: fmt.Sprintf("+%d", event.XPReward), Inline: true},
		},
		Timestamp: event.UnlockedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
