package discord

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// CommandHashStore remembers what was last registered per guild.
type CommandHashStore interface {
	CommandHashes(guildID string) (map[string]string, error)
	SetCommandHashes(guildID string, hashes map[string]string) error
}

// commandAPI is the part of discordgo used to sync guild commands.
type commandAPI interface {
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

// commandSync makes a guild's slash commands match the local definitions:
// obsolete ones are deleted, changed or missing ones are (re)created.
type commandSync struct {
	api    commandAPI
	hashes CommandHashStore
	pause  time.Duration
	log    *zap.Logger
}

func (c *commandSync) sync(appID, guildID string, defs []*discordgo.ApplicationCommand) error {
	remote, err := c.api.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("failed to list commands: %w", err)
	}

	cached, err := c.hashes.CommandHashes(guildID)
	if err != nil {
		c.log.Warn("Failed to load command hashes", zap.String("guild", guildID), zap.Error(err))
		cached = map[string]string{}
	}

	wanted := make(map[string]string, len(defs))
	for _, d := range defs {
		wanted[d.Name] = commandFingerprint(d)
	}

	registered := make(map[string]bool, len(remote))
	for _, rc := range remote {
		if _, ok := wanted[rc.Name]; ok {
			registered[rc.Name] = true
			continue
		}
		c.log.Info("Deleting obsolete command", zap.String("guild", guildID), zap.String("command", rc.Name))
		if err := c.api.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			c.log.Error("Failed to delete command", zap.String("command", rc.Name), zap.Error(err))
		}
		delete(cached, rc.Name)
	}

	created := 0
	for _, d := range defs {
		if registered[d.Name] && cached[d.Name] == wanted[d.Name] {
			continue
		}
		if created > 0 && c.pause > 0 {
			time.Sleep(c.pause)
		}
		if _, err := c.api.ApplicationCommandCreate(appID, guildID, d); err != nil {
			c.log.Error("Failed to register command", zap.String("guild", guildID), zap.String("command", d.Name), zap.Error(err))
			delete(cached, d.Name)
			continue
		}
		cached[d.Name] = wanted[d.Name]
		created++
	}

	for name := range cached {
		if _, ok := wanted[name]; !ok {
			delete(cached, name)
		}
	}
	if created > 0 {
		c.log.Info("Registered commands", zap.String("guild", guildID), zap.Int("count", created))
	}
	return c.hashes.SetCommandHashes(guildID, cached)
}

// commandShape is the part of a slash definition Discord stores. IDs and
// versions are left out so a fetched command matches its local definition.
type commandShape struct {
	Name        string                           `json:"name"`
	Description string                           `json:"description"`
	Type        discordgo.ApplicationCommandType `json:"type"`
	Permissions *int64                           `json:"default_member_permissions,omitempty"`
	Options     []optionShape                    `json:"options,omitempty"`
}

type optionShape struct {
	Name        string                                 `json:"name"`
	Description string                                 `json:"description"`
	Type        discordgo.ApplicationCommandOptionType `json:"type"`
	Required    bool                                   `json:"required"`
	MinValue    *float64                               `json:"min_value,omitempty"`
	MaxValue    float64                                `json:"max_value,omitempty"`
	Choices     []string                               `json:"choices,omitempty"`
	Options     []optionShape                          `json:"options,omitempty"`
}

// commandFingerprint identifies a slash definition independent of option
// order. Commands whose fingerprint is unchanged are not re-registered.
func commandFingerprint(cmd *discordgo.ApplicationCommand) string {
	shape := commandShape{
		Name:        cmd.Name,
		Description: cmd.Description,
		Type:        cmd.Type,
		Permissions: cmd.DefaultMemberPermissions,
		Options:     optionShapes(cmd.Options),
	}
	data, _ := json.Marshal(shape)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func optionShapes(opts []*discordgo.ApplicationCommandOption) []optionShape {
	if len(opts) == 0 {
		return nil
	}
	shapes := make([]optionShape, 0, len(opts))
	for _, o := range opts {
		shape := optionShape{
			Name:        o.Name,
			Description: o.Description,
			Type:        o.Type,
			Required:    o.Required,
			MinValue:    o.MinValue,
			MaxValue:    o.MaxValue,
			Options:     optionShapes(o.Options),
		}
		for _, c := range o.Choices {
			shape.Choices = append(shape.Choices, fmt.Sprintf("%s=%v", c.Name, c.Value))
		}
		shapes = append(shapes, shape)
	}
	slices.SortFunc(shapes, func(a, b optionShape) int { return strings.Compare(a.Name, b.Name) })
	return shapes
}
