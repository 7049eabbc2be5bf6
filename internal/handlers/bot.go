// Package handlers is the discord front end: slash-command registration,
// interaction dispatch to the per-guild player, and the notification sink.
package handlers

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/iz7n/music-discord-bot/internal/config"
	"github.com/iz7n/music-discord-bot/internal/lyrics"
	"github.com/iz7n/music-discord-bot/internal/player"
	"github.com/iz7n/music-discord-bot/internal/repository"
	"github.com/iz7n/music-discord-bot/internal/resolver"
	"github.com/iz7n/music-discord-bot/internal/sound"
	"github.com/iz7n/music-discord-bot/internal/stream"
	"github.com/iz7n/music-discord-bot/internal/voice"
)

type Bot struct {
	cfg     *config.Config
	repo    *repository.Repo
	sounds  *sound.Board
	res     *resolver.Resolver
	streams *stream.Provider
	lyrics  *lyrics.Client
}

func NewBot(cfg *config.Config, repo *repository.Repo) *Bot {
	return &Bot{
		cfg:     cfg,
		repo:    repo,
		sounds:  sound.NewBoard(cfg.SoundsDir),
		res:     resolver.New(cfg),
		streams: stream.NewProvider(),
		lyrics:  lyrics.NewClient(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	channels := newChannelRegistry()
	connector := voice.NewConnector(dg)
	presence := presenceReporter{s: dg}

	pm := player.NewManager(func(sessionID string, onStop func()) *player.Player {
		return player.New(b.cfg, sessionID, player.Deps{
			Resolver: b.res,
			Streams:  b.streams,
			Voice:    voiceConnector{c: connector},
			Notify:   newNotifier(dg, sessionID, channels),
			Presence: presence,
			Store:    b.repo,
			Lyrics:   b.lyrics,
		}, onStop)
	})
	cmd := newCommandHandler(b.cfg, pm, b.sounds, channels)

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username)
		appID := s.State.User.ID
		if err := cmd.registerCommands(s, appID, ""); err != nil {
			slog.Error("register global commands", "err", err)
			return
		}
		slog.Info("registered global application commands")
	})

	dg.AddHandler(cmd.handleInteraction)

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	pm.StopAll()
	return nil
}

// voiceConnector adapts voice.Connector to the player's interface.
type voiceConnector struct {
	c *voice.Connector
}

func (v voiceConnector) Connect(ctx context.Context, guildID, channelID string) (player.VoiceSession, error) {
	s, err := v.c.Connect(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// presenceReporter mirrors the current track into the bot presence. Shared
// between guilds and racy on purpose.
type presenceReporter struct {
	s *discordgo.Session
}

func (p presenceReporter) NowPlaying(title string) {
	if err := p.s.UpdateGameStatus(0, title); err != nil {
		slog.Debug("presence update failed", "err", err)
	}
}

func (p presenceReporter) Clear() {
	if err := p.s.UpdateGameStatus(0, ""); err != nil {
		slog.Debug("presence clear failed", "err", err)
	}
}
