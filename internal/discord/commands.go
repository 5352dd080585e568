package discord

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/command"
)

// registerCommands syncs the guild's slash commands with the registry:
// obsolete ones are deleted, changed ones are created again.
func (b *Bot) registerCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	remote, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return errors.Wrap(err, "failed to list commands")
	}
	local := b.definitions()
	cached := b.hashes.load(guildID)

	localNames := make(map[string]struct{}, len(local))
	for _, d := range local {
		localNames[d.Name] = struct{}{}
	}
	for _, rc := range remote {
		if _, ok := localNames[rc.Name]; ok {
			continue
		}
		b.log.Info().Str("guild", guildID).Str("command", rc.Name).Msg("deleting obsolete command")
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", rc.Name).Msg("failed to delete command")
			continue
		}
		delete(cached, rc.Name)
	}

	registered := make(map[string]bool, len(remote))
	for _, rc := range remote {
		registered[rc.Name] = true
	}
	for _, d := range local {
		h := hashCommand(d)
		if cached[d.Name] == h && registered[d.Name] {
			continue
		}
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, d); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", d.Name).Msg("failed to register command")
			continue
		}
		cached[d.Name] = h
		b.log.Info().Str("guild", guildID).Str("command", d.Name).Msg("registered command")
		time.Sleep(25 * time.Millisecond) // stay under the rate limit
	}

	return b.hashes.save(guildID, cached)
}

func (b *Bot) definitions() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range b.registry.GetAll() {
		if def := command.Definition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// appID returns the bot's application ID, fetching it when State has none.
func (b *Bot) appID() (string, error) {
	if b.dg.State != nil && b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch bot user")
	}
	return u.ID, nil
}

// hashCache remembers, per guild, the hash of each registered definition.
type hashCache struct {
	dir string
	mu  sync.Mutex
}

func newHashCache(dir string) *hashCache {
	return &hashCache{dir: dir}
}

func (c *hashCache) path(guildID string) string {
	return filepath.Join(c.dir, guildID+".json")
}

func (c *hashCache) load(guildID string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string)
	if data, err := os.ReadFile(c.path(guildID)); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	return out
}

func (c *hashCache) save(guildID string, hashes map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create command cache dir")
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(guildID), data, 0o644)
}

// hashCommand is a deterministic SHA-1 of the fields Discord compares.
func hashCommand(c *discordgo.ApplicationCommand) string {
	stable := map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
			"max":         o.MaxValue,
		}
		if o.MinValue != nil {
			entry["min"] = *o.MinValue
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, ch := range o.Choices {
				choices[j] = map[string]any{"name": ch.Name, "value": ch.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	slices.SortFunc(out, func(a, b map[string]any) int {
		return strings.Compare(a["name"].(string), b["name"].(string))
	})
	return out
}
