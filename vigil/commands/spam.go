package commands

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/vigil-bot/vigil/vigil"
	"github.com/vigil-bot/vigil/vigil/utils"
)

var Spam = discord.SlashCommandCreate{
	Name:        "spam",
	Description: "Inspect and manage spam pressure",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "pressure",
			Description: "Show a user's current pressure",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to inspect",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "clear-pressure",
			Description: "Reset a user's pressure to zero",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "The user to clear",
					Required:    true,
				},
			},
		},
	},
}

func SpamHandler(b *vigil.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		guildID := e.GuildID()
		if guildID == nil {
			return utils.EH.CreateError(e, "Error", "This command must be run in a guild")
		}

		data := e.SlashCommandInteractionData()
		user := data.User("user")

		switch *data.SubCommandName {
		case "pressure":
			p := b.Tracker.Pressure(*guildID, user.ID)
			return utils.EH.CreateInfoEmbed(e,
				fmt.Sprintf("Current pressure for <@%d>: `%.3f`", user.ID, p))

		case "clear-pressure":
			b.Tracker.Reset(*guildID, user.ID)
			return utils.EH.CreateSuccessEmbed(e,
				fmt.Sprintf("Cleared pressure for <@%d>.", user.ID))
		}
		return nil
	}
}
