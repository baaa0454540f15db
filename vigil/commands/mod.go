package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"

	"github.com/vigil-bot/vigil/vigil"
	"github.com/vigil-bot/vigil/vigil/moderation"
	"github.com/vigil-bot/vigil/vigil/utils"
)

// Bounds for moderator-supplied action durations. Anything shorter than
// a minute is treated as a typo; anything past a century is effectively
// permanent and stored as such rather than overflowing the schedule.
const (
	minActionDuration = time.Minute
	maxActionDuration = 100 * 365 * 24 * time.Hour
)

var Mod = discord.SlashCommandCreate{
	Name:        "mod",
	Description: "Moderator actions",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "warn",
			Description: "Warn a user via the mod log",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to warn",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Why the user is being warned",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "mute",
			Description: "Mute a user, optionally for a limited time",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to mute",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "duration",
					Description: "How long to mute for, e.g. 30m or 12h; omit for indefinite",
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Why the user is being muted",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "kick",
			Description: "Kick a user from the guild",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to kick",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Why the user is being kicked",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "ban",
			Description: "Ban a user, optionally for a limited time",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to ban",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "duration",
					Description: "How long to ban for, e.g. 7d as 168h; omit for permanent",
				},
				discord.ApplicationCommandOptionInt{
					Name:        "delete_days",
					Description: "Days of the user's messages to delete (0-7)",
					MinValue:    intPtr(0),
					MaxValue:    intPtr(7),
				},
				discord.ApplicationCommandOptionString{
					Name:        "reason",
					Description: "Why the user is being banned",
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "purge",
			Description: "Bulk delete recent messages in this channel",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "count",
					Description: "How many recent messages to delete",
					Required:    true,
					MinValue:    intPtr(1),
					MaxValue:    intPtr(100),
				},
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "Only delete messages from this user",
				},
			},
		},
	},
}

func ModHandler(b *vigil.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		guildID := e.GuildID()
		if guildID == nil {
			return utils.EH.CreateError(e, "Error", "This command must be run in a guild")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		user := data.User("user")
		reason, _ := data.OptString("reason")

		var duration time.Duration
		if raw, ok := data.OptString("duration"); ok {
			var err error
			duration, err = parseActionDuration(raw)
			if err != nil {
				return utils.EH.CreateError(e, "Invalid duration", err.Error())
			}
		}

		action := *data.SubCommandName
		if action == "purge" {
			return purgeMessages(ctx, b, e)
		}

		switch action {
		case "warn":
			// A warning is only its mod log entry.
			if err := b.Reporter.Report(ctx, moderation.ActionReport{
				GuildID:   *guildID,
				UserID:    user.ID,
				Moderator: e.User().ID,
				Action:    "warn",
				Reason:    reason,
			}); err != nil {
				return utils.EH.CreateError(e, "No mod log",
					"Set the `mod_log_channel` config key so warnings have somewhere to go")
			}
			return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("Warned <@%d>.", user.ID))

		case "mute":
			var err error
			if duration > 0 {
				err = b.Dispatcher.ApplyTimedMute(ctx, *guildID, user.ID, duration)
			} else {
				err = b.Executor.Mute(ctx, *guildID, user.ID)
			}
			if err != nil {
				return utils.EH.CreateError(e, "Mute failed", actionFailureMessage(err))
			}

		case "kick":
			if err := b.Executor.Kick(ctx, *guildID, user.ID, reason); err != nil {
				return utils.EH.CreateError(e, "Kick failed", actionFailureMessage(err))
			}

		case "ban":
			deleteDays, _ := data.OptInt("delete_days")
			deleteMessages := time.Duration(deleteDays) * 24 * time.Hour

			var err error
			if duration > 0 {
				err = b.Dispatcher.ApplyTimedBan(ctx, *guildID, user.ID, duration, deleteMessages, reason)
			} else {
				err = b.Executor.Ban(ctx, *guildID, user.ID, deleteMessages, reason)
			}
			if err != nil {
				return utils.EH.CreateError(e, "Ban failed", actionFailureMessage(err))
			}
		}

		reportAction(ctx, b, *guildID, user.ID, e.User().ID, action, reason, duration)

		msg := fmt.Sprintf("Applied %s to <@%d>.", action, user.ID)
		if duration > 0 {
			msg = fmt.Sprintf("Applied %s to <@%d> for %s.", action, user.ID, duration)
		}
		return utils.EH.CreateSuccessEmbed(e, msg)
	}
}

// purgeMessages bulk deletes recent channel messages, optionally only
// those from one user. Messages past Discord's 14 day bulk delete window
// are skipped rather than failing the whole call.
func purgeMessages(ctx context.Context, b *vigil.Bot, e *handler.CommandEvent) error {
	data := e.SlashCommandInteractionData()
	count := data.Int("count")
	channelID := e.Channel().ID()

	messages, err := b.Client.Rest().GetMessages(channelID, 0, 0, 0, count)
	if err != nil {
		return utils.EH.CreateError(e, "Purge failed", "Failed to fetch channel messages")
	}

	filterUser, filtered := data.OptUser("user")
	cutoff := time.Now().Add(-14 * 24 * time.Hour)

	var ids []snowflake.ID
	for _, msg := range messages {
		if filtered && msg.Author.ID != filterUser.ID {
			continue
		}
		if msg.ID.Time().Before(cutoff) {
			continue
		}
		ids = append(ids, msg.ID)
	}
	if len(ids) == 0 {
		return utils.EH.CreateInfoEmbed(e, "No matching messages to delete.")
	}

	if err := b.Executor.DeleteMessages(ctx, channelID, ids); err != nil {
		return utils.EH.CreateError(e, "Purge failed", actionFailureMessage(err))
	}
	return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("Deleted %d messages.", len(ids)))
}

// reportAction posts to the mod log on a best-effort basis. Guilds
// without a configured channel just get no report.
func reportAction(ctx context.Context, b *vigil.Bot, guildID, userID, moderator snowflake.ID, action, reason string, duration time.Duration) {
	if err := b.Reporter.Report(ctx, moderation.ActionReport{
		GuildID:   guildID,
		UserID:    userID,
		Moderator: moderator,
		Action:    action,
		Reason:    reason,
		Duration:  duration,
	}); err != nil {
		slog.Debug("Mod log report skipped",
			slog.String("type", "mod"),
			slog.Int64("guild_id", int64(guildID)),
			slog.Any("error", err))
	}
}

func parseActionDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q; use Go duration syntax like 30m or 12h", raw)
	}
	if d < minActionDuration {
		return 0, fmt.Errorf("duration must be at least %s", minActionDuration)
	}
	if d > maxActionDuration {
		d = maxActionDuration
	}
	return d, nil
}

func actionFailureMessage(err error) string {
	if moderation.IsRetryable(err) {
		return "The platform rejected the action; try again shortly"
	}
	return err.Error()
}

func intPtr(v int) *int {
	return &v
}
