package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/sahilm/fuzzy"

	"github.com/vigil-bot/vigil/vigil"
	"github.com/vigil-bot/vigil/vigil/guildconfig"
	"github.com/vigil-bot/vigil/vigil/utils"
)

var Config = discord.SlashCommandCreate{
	Name:        "config",
	Description: "Manage per-guild bot configuration",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "get",
			Description: "Show a config value",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "The config key to show",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "set",
			Description: "Set a config value",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "The config key to set",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "value",
					Description: "The value to set it to",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List the available config keys",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "info",
			Description: "Show help for a config key",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "The config key to describe",
					Required:    true,
				},
			},
		},
	},
}

func ConfigHandler(b *vigil.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		guildID := e.GuildID()
		if guildID == nil {
			return utils.EH.CreateError(e, "Error", "This command must be run in a guild")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "get":
			name := data.String("name")
			raw, err := b.ConfigStore.Get(ctx, *guildID, name)
			if err != nil {
				return renderConfigError(e, name, err)
			}
			if raw == nil {
				return utils.EH.CreateInfoEmbed(e,
					fmt.Sprintf("`%s` is unset; the compiled-in default applies.", name))
			}
			return utils.EH.CreateInfoEmbed(e, fmt.Sprintf("`%s` = ```json\n%s\n```", name, raw))

		case "set":
			name := data.String("name")
			if err := b.ConfigStore.Set(ctx, *guildID, name, data.String("value")); err != nil {
				return renderConfigError(e, name, err)
			}
			return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("Set `%s` to the specified value.", name))

		case "list":
			stored, err := b.ConfigStore.List(ctx, *guildID)
			if err != nil {
				return utils.EH.CreateError(e, "Error", "Failed to list guild configuration")
			}
			var sb strings.Builder
			for _, name := range guildconfig.Keys() {
				if _, ok := stored[name]; ok {
					fmt.Fprintf(&sb, "`%s` (set)\n", name)
				} else {
					fmt.Fprintf(&sb, "`%s` (default)\n", name)
				}
			}
			return utils.EH.CreateInfoEmbed(e, sb.String())

		case "info":
			name := data.String("name")
			help, ok := guildconfig.Help(name)
			if !ok {
				return renderConfigError(e, name,
					&guildconfig.ValidationError{Key: name, Reason: "unknown config key"})
			}
			return utils.EH.CreateInfoEmbed(e, fmt.Sprintf("`%s`: %s", name, help))
		}
		return nil
	}
}

// renderConfigError reports a config failure, suggesting close key names
// when the key itself was unknown.
func renderConfigError(e *handler.CommandEvent, name string, err error) error {
	var verr *guildconfig.ValidationError
	if errors.As(err, &verr) {
		msg := verr.Error()
		if strings.Contains(verr.Reason, "unknown config key") {
			if matches := fuzzy.Find(name, guildconfig.Keys()); len(matches) > 0 {
				msg = fmt.Sprintf("%s. Did you mean `%s`?", msg, matches[0].Str)
			}
		}
		return utils.EH.CreateError(e, "Invalid config", msg)
	}
	return utils.EH.CreateError(e, "Error", "Failed to access guild configuration")
}
