package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"github.com/vigil-bot/vigil/vigil/utils"
)

// colorReport is the fallback for actions without a dedicated color.
const colorReport = 0x95A5A6

// ModLogSource resolves the configured moderation log channel.
type ModLogSource interface {
	GetModLogChannel(ctx context.Context, guildID snowflake.ID) (snowflake.ID, error)
}

// ActionReport describes one moderation action for the guild's mod log.
type ActionReport struct {
	GuildID   snowflake.ID
	UserID    snowflake.ID
	Moderator snowflake.ID // zero when automatic
	Action    string
	Reason    string
	Duration  time.Duration // zero when indefinite or not applicable
}

// Reporter posts moderation actions to the guild's configured log
// channel. Guilds without one simply get no reports.
type Reporter struct {
	client  bot.Client
	configs ModLogSource
}

func NewReporter(client bot.Client, configs ModLogSource) *Reporter {
	return &Reporter{client: client, configs: configs}
}

func (r *Reporter) Report(ctx context.Context, report ActionReport) error {
	channelID, err := r.configs.GetModLogChannel(ctx, report.GuildID)
	if err != nil {
		return err
	}

	moderator := "automatic"
	if report.Moderator != 0 {
		moderator = fmt.Sprintf("<@%d>", report.Moderator)
	}
	reason := report.Reason
	if reason == "" {
		reason = "No reason specified."
	}

	fields := []discord.EmbedField{
		{Name: "User", Value: fmt.Sprintf("<@%d> (%d)", report.UserID, report.UserID)},
		{Name: "Reason", Value: reason},
		{Name: "Moderator", Value: moderator},
	}
	if report.Duration > 0 {
		fields = append(fields, discord.EmbedField{
			Name:  "Duration",
			Value: report.Duration.String(),
		})
	}

	embed := discord.Embed{
		Title:  actionTitle(report.Action),
		Color:  actionColor(report.Action),
		Fields: fields,
	}

	_, err = r.client.Rest().CreateMessage(channelID,
		discord.MessageCreate{Embeds: []discord.Embed{embed}},
		rest.WithCtx(ctx))
	return err
}

func actionTitle(action string) string {
	switch action {
	case "warn":
		return "Warning"
	case "kick":
		return "Kick"
	case "ban":
		return "Ban"
	case "mute":
		return "Mute"
	case "silence":
		return "Automatic silence"
	default:
		return action
	}
}

func actionColor(action string) int {
	switch action {
	case "warn":
		return utils.WarningColor
	case "kick":
		return utils.KickColor
	case "ban":
		return utils.ErrorColor
	case "mute", "silence":
		return utils.MuteColor
	default:
		return colorReport
	}
}
