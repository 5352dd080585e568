// Package command adapts pkg/cmd commands to Discord interactions: the
// context handed to a command, the reply helpers and the middleware.
package command

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/domme-music/pkg/cmd"
)

// SlashContext is the Invocation.Data of a slash command run.
type SlashContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
}

// SlashProvider is implemented by commands registered as slash commands.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// DiscordMeta exposes grouping details middleware may read.
type DiscordMeta interface {
	Group() string
	Category() string
}

// Definition returns the slash definition of c, looking through wrappers.
func Definition(c cmd.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.Root(c).(SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

// User returns the invoking user of an interaction.
func User(e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	if e.User != nil {
		return e.User
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}

// DescribeOptions flattens the options of a slash interaction to
// "sub key=value" form.
func DescribeOptions(e *discordgo.InteractionCreate) string {
	if e.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	var parts []string
	var walk func(opts []*discordgo.ApplicationCommandInteractionDataOption)
	walk = func(opts []*discordgo.ApplicationCommandInteractionDataOption) {
		for _, o := range opts {
			switch o.Type {
			case discordgo.ApplicationCommandOptionSubCommand, discordgo.ApplicationCommandOptionSubCommandGroup:
				parts = append(parts, o.Name)
				walk(o.Options)
			default:
				parts = append(parts, o.Name+"="+optionText(o))
			}
		}
	}
	walk(e.ApplicationCommandData().Options)
	return strings.Join(parts, " ")
}

func optionText(o *discordgo.ApplicationCommandInteractionDataOption) string {
	if o.Type == discordgo.ApplicationCommandOptionString {
		return o.StringValue()
	}
	if o.Value == nil {
		return ""
	}
	return fmt.Sprint(o.Value)
}
