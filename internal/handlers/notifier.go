package handlers

import (
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/iz7n/music-discord-bot/internal/media"
	"github.com/iz7n/music-discord-bot/internal/utils"
)

// channelRegistry remembers the text channel each guild last commanded the
// bot from, so player-originated notices land where the conversation is.
type channelRegistry struct {
	mu sync.Mutex
	m  map[string]string
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{m: make(map[string]string)}
}

func (r *channelRegistry) Set(guildID, channelID string) {
	r.mu.Lock()
	r.m[guildID] = channelID
	r.mu.Unlock()
}

func (r *channelRegistry) Get(guildID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[guildID]
}

// notifier posts player notices to the guild's active text channel. The
// previous transient notice is deleted before a new one goes out so the
// channel never fills with stale player chatter.
type notifier struct {
	s        *discordgo.Session
	guildID  string
	channels *channelRegistry

	mu         sync.Mutex
	lastNotice string
	lastNow    string
}

func newNotifier(s *discordgo.Session, guildID string, channels *channelRegistry) *notifier {
	return &notifier{s: s, guildID: guildID, channels: channels}
}

func (n *notifier) Notify(text string) {
	chID := n.channels.Get(n.guildID)
	if chID == "" {
		return
	}
	n.mu.Lock()
	prev := n.lastNotice
	n.mu.Unlock()
	if prev != "" {
		if err := n.s.ChannelMessageDelete(chID, prev); err != nil {
			slog.Debug("deleting superseded notice failed", "guildID", n.guildID, "err", err)
		}
	}
	msg, err := n.s.ChannelMessageSend(chID, text)
	if err != nil {
		slog.Warn("notify failed", "guildID", n.guildID, "err", err)
		return
	}
	n.mu.Lock()
	n.lastNotice = msg.ID
	n.mu.Unlock()
}

func (n *notifier) NowPlaying(m media.Media) {
	chID := n.channels.Get(n.guildID)
	if chID == "" {
		return
	}
	n.mu.Lock()
	prev := n.lastNow
	n.mu.Unlock()
	if prev != "" {
		if err := n.s.ChannelMessageDelete(chID, prev); err != nil {
			slog.Debug("deleting old now-playing failed", "guildID", n.guildID, "err", err)
		}
	}
	msg, err := n.s.ChannelMessageSendEmbed(chID, nowPlayingEmbed(m))
	if err != nil {
		slog.Warn("now-playing send failed", "guildID", n.guildID, "err", err)
		return
	}
	n.mu.Lock()
	n.lastNow = msg.ID
	n.mu.Unlock()
}

func nowPlayingEmbed(m media.Media) *discordgo.MessageEmbed {
	desc := ""
	if m.Artist != "" {
		desc = "by " + utils.EscapeMd(m.Artist)
	}
	footer := ""
	if m.Duration > 0 {
		footer = utils.PrettyTime(m.Duration)
	}
	e := &discordgo.MessageEmbed{
		Title:       "Now playing: " + utils.EscapeMd(m.Title),
		Description: desc,
		Color:       0x2ecc71,
	}
	if m.URL != "" {
		e.URL = m.URL
	}
	if footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	}
	if m.Requester.DisplayName != "" {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   "Requested by",
			Value:  m.Requester.DisplayName,
			Inline: true,
		})
	}
	return e
}
