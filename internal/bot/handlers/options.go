package handlers

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// commandOptions indexes the top level options of a slash command by name.
// Accessors check the option type first since discordgo panics on a mismatch.
type commandOptions map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionsOf(i *discordgo.InteractionCreate) commandOptions {
	opts := commandOptions{}
	if i.Type != discordgo.InteractionApplicationCommand {
		return opts
	}
	for _, o := range i.ApplicationCommandData().Options {
		opts[o.Name] = o
	}
	return opts
}

func (o commandOptions) get(name string, typ discordgo.ApplicationCommandOptionType) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	opt, ok := o[name]
	if !ok || opt == nil || opt.Type != typ || opt.Value == nil {
		return nil, false
	}
	return opt, true
}

// str returns a trimmed string option; blank values count as missing.
func (o commandOptions) str(name string) (string, bool) {
	opt, ok := o.get(name, discordgo.ApplicationCommandOptionString)
	if !ok {
		return "", false
	}
	v, _ := opt.Value.(string)
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (o commandOptions) integer(name string) (int64, bool) {
	opt, ok := o.get(name, discordgo.ApplicationCommandOptionInteger)
	if !ok {
		return 0, false
	}
	v, ok := opt.Value.(float64)
	return int64(v), ok
}

func (o commandOptions) number(name string) (float64, bool) {
	opt, ok := o.get(name, discordgo.ApplicationCommandOptionNumber)
	if !ok {
		return 0, false
	}
	v, ok := opt.Value.(float64)
	return v, ok
}

func (o commandOptions) boolean(name string) (bool, bool) {
	opt, ok := o.get(name, discordgo.ApplicationCommandOptionBoolean)
	if !ok {
		return false, false
	}
	v, ok := opt.Value.(bool)
	return v, ok
}

// user returns the id of a user option.
func (o commandOptions) user(name string) (string, bool) {
	opt, ok := o.get(name, discordgo.ApplicationCommandOptionUser)
	if !ok {
		return "", false
	}
	v, ok := opt.Value.(string)
	return v, ok && v != ""
}

// channel returns the id of a channel option.
func (o commandOptions) channel(name string) (string, bool) {
	opt, ok := o.get(name, discordgo.ApplicationCommandOptionChannel)
	if !ok {
		return "", false
	}
	v, ok := opt.Value.(string)
	return v, ok && v != ""
}
