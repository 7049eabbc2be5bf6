package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/iz7n/music-discord-bot/internal/media"
	"github.com/iz7n/music-discord-bot/internal/sound"
)

const (
	soundboardButtons = 20
	buttonsPerRow     = 5
)

func (h *commandHandler) cmdSoundboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	names, err := h.sounds.RandomNames(soundboardButtons)
	if err != nil {
		slog.Error("soundboard listing failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "couldn't read the soundboard directory", true)
		return
	}
	if len(names) == 0 {
		h.reply(s, i, "no sounds available", true)
		return
	}

	rows := soundboardRows(names, false)
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "pick a sound",
			Components: rows,
		},
	}); err != nil {
		slog.Warn("soundboard reply failed", "guildID", i.GuildID, "err", err)
		return
	}

	p := h.pm.GetOrCreate(i.GuildID)
	interaction := i.Interaction
	var once sync.Once
	disable := func() {
		once.Do(func() {
			content := "soundboard closed"
			disabled := soundboardRows(names, true)
			if _, err := s.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{
				Content:    &content,
				Components: &disabled,
			}); err != nil {
				slog.Debug("soundboard disable failed", "guildID", i.GuildID, "err", err)
			}
		})
	}
	timer := time.AfterFunc(time.Duration(h.cfg.UITimeoutSeconds)*time.Second, func() {
		disable()
		p.ClearPanel()
	})
	p.SetPanel(func() {
		timer.Stop()
		disable()
	})
}

func soundboardRows(names []string, disabled bool) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(names); start += buttonsPerRow {
		end := start + buttonsPerRow
		if end > len(names) {
			end = len(names)
		}
		var row discordgo.ActionsRow
		for _, name := range names[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    name,
				Style:    discordgo.SecondaryButton,
				CustomID: "sb:" + name,
				Disabled: disabled,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

func (h *commandHandler) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := i.MessageComponentData().CustomID
	if rest, ok := strings.CutPrefix(id, "plb:"); ok {
		h.handlePlaylistPage(s, i, rest)
		return
	}
	name, ok := strings.CutPrefix(id, "sb:")
	if !ok {
		return
	}

	chID, inVoice := userInVoice(s, i.GuildID, userIDOf(i))
	if !inVoice {
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}

	path, err := h.sounds.Path(name)
	if err != nil {
		if errors.Is(err, sound.ErrUnknownSound) {
			h.reply(s, i, "that sound is gone", true)
			return
		}
		slog.Error("soundboard lookup failed", "guildID", i.GuildID, "sound", name, "err", err)
		h.reply(s, i, "couldn't load that sound", true)
		return
	}

	p := h.pm.GetOrCreate(i.GuildID)
	m := media.NewFile(path, requesterOf(i))
	if err := p.PlayMedia(context.Background(), m, chID); err != nil {
		h.reply(s, i, playErrorText(err), true)
		return
	}

	// ack without posting a message
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		slog.Debug("component ack failed", "guildID", i.GuildID, "err", err)
	}
}
