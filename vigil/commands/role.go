package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/paginator"

	"github.com/vigil-bot/vigil/vigil"
	"github.com/vigil-bot/vigil/vigil/database/models"
	"github.com/vigil-bot/vigil/vigil/roles"
	"github.com/vigil-bot/vigil/vigil/utils"
)

const rolesPerPage = 10

var Role = discord.SlashCommandCreate{
	Name:        "role",
	Description: "Self-assignable role management",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "join",
			Description: "Give yourself a self-assignable role",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionRole{
					Name:        "role",
					Description: "The role to join",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "leave",
			Description: "Remove a self-assignable role from yourself",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionRole{
					Name:        "role",
					Description: "The role to leave",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "List this guild's self-assignable roles",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "Mark a role as self-assignable",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionRole{
					Name:        "role",
					Description: "The role to mark",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "remove",
			Description: "Unmark a self-assignable role",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionRole{
					Name:        "role",
					Description: "The role to unmark",
					Required:    true,
				},
			},
		},
	},
}

func RoleHandler(b *vigil.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		guildID := e.GuildID()
		if guildID == nil {
			return utils.EH.CreateError(e, "Error", "This command must be run in a guild")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "join":
			role := data.Role("role")
			if err := b.Roles.EnsureJoinable(ctx, *guildID, role.ID); err != nil {
				if errors.Is(err, roles.ErrNotJoinable) {
					return utils.EH.CreateError(e, "Not joinable",
						fmt.Sprintf("%s is not self-assignable", role.Name))
				}
				return utils.EH.CreateError(e, "Error", "Failed to check the role")
			}
			if err := b.Client.Rest().AddMemberRole(*guildID, e.User().ID, role.ID, rest.WithCtx(ctx)); err != nil {
				return utils.EH.CreateError(e, "Error", "Failed to assign the role")
			}
			return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("You now have %s.", role.Name))

		case "leave":
			role := data.Role("role")
			if err := b.Roles.EnsureJoinable(ctx, *guildID, role.ID); err != nil {
				if errors.Is(err, roles.ErrNotJoinable) {
					return utils.EH.CreateError(e, "Not joinable",
						fmt.Sprintf("%s is not self-assignable", role.Name))
				}
				return utils.EH.CreateError(e, "Error", "Failed to check the role")
			}
			if err := b.Client.Rest().RemoveMemberRole(*guildID, e.User().ID, role.ID, rest.WithCtx(ctx)); err != nil {
				return utils.EH.CreateError(e, "Error", "Failed to remove the role")
			}
			return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("You no longer have %s.", role.Name))

		case "list":
			ids, err := b.Roles.List(ctx, *guildID)
			if err != nil {
				return utils.EH.CreateError(e, "Error", "Failed to list roles")
			}
			if len(ids) == 0 {
				return utils.EH.CreateInfoEmbed(e, "This guild has no self-assignable roles.")
			}

			pages := (len(ids) + rolesPerPage - 1) / rolesPerPage
			return b.Paginator.Create(e.Respond, paginator.Pages{
				ID:      e.ID().String(),
				Creator: e.User().ID,
				PageFunc: func(page int, embed *discord.EmbedBuilder) {
					start := page * rolesPerPage
					end := start + rolesPerPage
					if end > len(ids) {
						end = len(ids)
					}
					desc := ""
					for _, id := range ids[start:end] {
						desc += fmt.Sprintf("<@&%d>\n", id)
					}
					embed.
						SetTitle(fmt.Sprintf("Self-assignable roles (%d/%d)", len(ids), models.MaxJoinableRoles)).
						SetDescription(desc).
						SetColor(utils.InfoColor)
				},
				Pages:      pages,
				ExpireMode: paginator.ExpireModeAfterLastUsage,
			}, false)

		case "add":
			role := data.Role("role")
			if err := b.Roles.MakeJoinable(ctx, *guildID, role.ID); err != nil {
				if errors.Is(err, roles.ErrCapacityExceeded) {
					return utils.EH.CreateError(e, "Capacity exceeded",
						fmt.Sprintf("This guild already has %d self-assignable roles", models.MaxJoinableRoles))
				}
				return utils.EH.CreateError(e, "Error", "Failed to mark the role")
			}
			return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("%s is now self-assignable.", role.Name))

		case "remove":
			role := data.Role("role")
			if err := b.Roles.RevokeJoinable(ctx, *guildID, role.ID); err != nil {
				return utils.EH.CreateError(e, "Error", "Failed to unmark the role")
			}
			return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("%s is no longer self-assignable.", role.Name))
		}
		return nil
	}
}
