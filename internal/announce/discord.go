package announce

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/pulpit/internal/fusion"
	"github.com/MrWong99/pulpit/internal/resolve"
)

// embedColorGold is the sidebar color of verse embeds.
const embedColorGold = 0xC9A227

// Discord embed limits.
const (
	maxEmbedFields   = 25
	maxFieldValueLen = 1024
)

// defaultRepeatWindow suppresses re-posting a reference that was announced
// recently; preachers repeat a citation several times while reading it.
const defaultRepeatWindow = 2 * time.Minute

// MessageSender is the subset of *discordgo.Session used to post embeds.
type MessageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordConfig configures a Discord sink.
type DiscordConfig struct {
	Sender    MessageSender
	ChannelID string

	// RepeatWindow is how long a posted reference is suppressed. Default: 2m.
	RepeatWindow time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Discord posts resolved verses to a text channel as embeds. Results without
// verses are not posted.
//
// Thread-safe for concurrent use.
type Discord struct {
	sender    MessageSender
	channelID string
	window    time.Duration
	now       func() time.Time

	mu     sync.Mutex
	recent map[string]time.Time
}

// NewDiscord creates a Discord sink.
func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.RepeatWindow <= 0 {
		cfg.RepeatWindow = defaultRepeatWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Discord{
		sender:    cfg.Sender,
		channelID: cfg.ChannelID,
		window:    cfg.RepeatWindow,
		now:       cfg.Now,
		recent:    make(map[string]time.Time),
	}
}

// DialDiscord opens a bot session for token and returns a sink configured by
// cfg, plus a function that closes the session. cfg.Sender is replaced by the
// session.
func DialDiscord(token string, cfg DiscordConfig) (*Discord, func() error, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, nil, fmt.Errorf("announce: create discord session: %w", err)
	}
	if err := s.Open(); err != nil {
		return nil, nil, fmt.Errorf("announce: open discord session: %w", err)
	}
	cfg.Sender = s
	return NewDiscord(cfg), s.Close, nil
}

// Name implements Sink.
func (d *Discord) Name() string { return "discord" }

// Announce implements Sink.
func (d *Discord) Announce(_ context.Context, res resolve.Result) error {
	verses := d.fresh(res.Verses)
	if len(verses) == 0 {
		return nil
	}
	if _, err := d.sender.ChannelMessageSendEmbed(d.channelID, buildVerseEmbed(res.Text, verses, d.now())); err != nil {
		return fmt.Errorf("announce: post to channel %s: %w", d.channelID, err)
	}
	return nil
}

// fresh returns the verses not announced within the repeat window and marks
// them as announced.
func (d *Discord) fresh(verses []fusion.Match) []fusion.Match {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for ref, at := range d.recent {
		if now.Sub(at) >= d.window {
			delete(d.recent, ref)
		}
	}
	var out []fusion.Match
	for _, v := range verses {
		if _, seen := d.recent[v.Reference]; seen {
			continue
		}
		d.recent[v.Reference] = now
		out = append(out, v)
	}
	return out
}

func buildVerseEmbed(heard string, verses []fusion.Match, at time.Time) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, min(len(verses), maxEmbedFields))
	for _, v := range verses[:min(len(verses), maxEmbedFields)] {
		name := v.Reference
		if v.Score != nil {
			name = fmt.Sprintf("%s (%.0f%%)", v.Reference, *v.Score*100)
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  name,
			Value: truncate(v.Text, maxFieldValueLen),
		})
	}
	return &discordgo.MessageEmbed{
		Title:       referenceTitle(verses),
		Description: truncate("> "+heard, 2048),
		Color:       embedColorGold,
		Fields:      fields,
		Timestamp:   at.UTC().Format(time.RFC3339),
	}
}

func referenceTitle(verses []fusion.Match) string {
	refs := make([]string, 0, 3)
	for _, v := range verses {
		if len(refs) == 3 {
			refs = append(refs, "…")
			break
		}
		refs = append(refs, v.Reference)
	}
	return strings.Join(refs, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
