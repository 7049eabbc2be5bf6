package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/iz7n/music-discord-bot/internal/autocomplete"
	"github.com/iz7n/music-discord-bot/internal/config"
	"github.com/iz7n/music-discord-bot/internal/lyrics"
	"github.com/iz7n/music-discord-bot/internal/media"
	plib "github.com/iz7n/music-discord-bot/internal/player"
	"github.com/iz7n/music-discord-bot/internal/resolver"
	"github.com/iz7n/music-discord-bot/internal/sound"
	"github.com/iz7n/music-discord-bot/internal/utils"
)

const queuePageSize = 10

type commandHandler struct {
	cfg      *config.Config
	pm       *plib.Manager
	sounds   *sound.Board
	channels *channelRegistry
}

func newCommandHandler(cfg *config.Config, pm *plib.Manager, sounds *sound.Board, channels *channelRegistry) *commandHandler {
	return &commandHandler{cfg: cfg, pm: pm, sounds: sounds, channels: channels}
}

func (h *commandHandler) registerCommands(s *discordgo.Session, appID, guildID string) error {
	start := time.Now()
	slog.Info("registering application commands", "appID", appID, "guildID", guildID)

	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a song (URL, playlist, album, or search)",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "URLs or search text", Type: discordgo.ApplicationCommandOptionString, Autocomplete: true},
				{Name: "file", Description: "audio attachment", Type: discordgo.ApplicationCommandOptionAttachment},
				{Name: "immediate", Description: "play it now, skipping the current track", Type: discordgo.ApplicationCommandOptionBoolean},
				{Name: "shuffle", Description: "shuffle the queue after adding", Type: discordgo.ApplicationCommandOptionBoolean},
			},
		},
		{Name: "next", Description: "Skip to the next song"},
		{
			Name:        "seek",
			Description: "Seek within the current song",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "time", Description: "seconds, 1m30s, or 1:30", Type: discordgo.ApplicationCommandOptionString, Required: true},
			},
		},
		{Name: "pause", Description: "Pause the current song"},
		{Name: "resume", Description: "Resume playback"},
		{Name: "loop", Description: "Toggle looping the queue"},
		{Name: "shuffle", Description: "Shuffle the queue"},
		{
			Name:        "move",
			Description: "Move a song within the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "from", Description: "position of the song to move", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				{Name: "to", Description: "position to move it to", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{
			Name:        "remove",
			Description: "Remove songs from the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "position", Description: "position of the song to remove [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
				{Name: "range", Description: "number of songs to remove [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
			},
		},
		{Name: "clear", Description: "Clear the queue"},
		{Name: "stop", Description: "Stop playback, clear the queue and leave"},
		{
			Name:        "queue",
			Description: "Show the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "page", Description: "page to show [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
			},
		},
		{Name: "now-playing", Description: "Show the current song"},
		{
			Name:        "lyrics",
			Description: "Fetch lyrics for the current song or a query",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "song to look up [default: current song]", Type: discordgo.ApplicationCommandOptionString},
			},
		},
		{
			Name:        "playlist",
			Description: "Manage saved playlists",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "save", Description: "save the queue as a playlist", Options: []*discordgo.ApplicationCommandOption{
					{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "add", Description: "add songs to a playlist", Options: []*discordgo.ApplicationCommandOption{
					{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "query", Description: "URLs or search text", Type: discordgo.ApplicationCommandOptionString, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "load", Description: "enqueue a playlist", Options: []*discordgo.ApplicationCommandOption{
					{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "shuffle", Description: "shuffle while loading", Type: discordgo.ApplicationCommandOptionBoolean},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "show a playlist's songs", Options: []*discordgo.ApplicationCommandOption{
					{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "remove", Description: "remove a song or a whole playlist", Options: []*discordgo.ApplicationCommandOption{
					{Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString, Required: true},
					{Name: "position", Description: "song to remove; omit to delete the playlist", Type: discordgo.ApplicationCommandOptionInteger},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "list your playlists"},
			},
		},
		{Name: "soundboard", Description: "Show the soundboard"},
		{
			Name:        "hz",
			Description: "Play a sine tone",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "frequency", Description: "frequency in Hz", Type: discordgo.ApplicationCommandOptionNumber, Required: true},
				{Name: "seconds", Description: "duration in seconds [default: 1]", Type: discordgo.ApplicationCommandOptionNumber},
			},
		},
	}

	for _, c := range cmds {
		if _, err := s.ApplicationCommandCreate(appID, guildID, c); err != nil {
			slog.Error("failed to create application command", "command", c.Name, "err", err)
			return err
		}
		slog.Debug("registered command", "command", c.Name)
	}

	slog.Info("finished registering commands", "count", len(cmds), "took", time.Since(start))
	return nil
}

func (h *commandHandler) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.handleAutocomplete(s, i)
	case discordgo.InteractionMessageComponent:
		h.handleComponent(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (h *commandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		h.reply(s, i, "commands only work in a server", true)
		return
	}
	h.channels.Set(i.GuildID, i.ChannelID)

	data := i.ApplicationCommandData()
	switch data.Name {
	case "play":
		h.cmdPlay(s, i)
	case "next":
		h.cmdNext(s, i)
	case "seek":
		h.cmdSeek(s, i)
	case "pause":
		h.cmdPause(s, i)
	case "resume":
		h.cmdResume(s, i)
	case "loop":
		h.cmdLoop(s, i)
	case "shuffle":
		h.cmdShuffle(s, i)
	case "move":
		h.cmdMove(s, i)
	case "remove":
		h.cmdRemove(s, i)
	case "clear":
		h.cmdClear(s, i)
	case "stop":
		h.cmdStop(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "now-playing":
		h.cmdNowPlaying(s, i)
	case "lyrics":
		h.cmdLyrics(s, i)
	case "playlist":
		h.cmdPlaylist(s, i)
	case "soundboard":
		h.cmdSoundboard(s, i)
	case "hz":
		h.cmdHz(s, i)
	default:
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID)
	}
}

func (h *commandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "play" {
		return
	}
	var query string
	for _, opt := range data.Options {
		if opt.Name == "query" && opt.Focused {
			query = opt.StringValue()
		}
	}
	if strings.TrimSpace(query) == "" {
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionApplicationCommandAutocompleteResult,
			Data: &discordgo.InteractionResponseData{Choices: []*discordgo.ApplicationCommandOptionChoice{}},
		})
		return
	}
	choices, err := autocomplete.GetSuggestions(context.Background(), h.cfg, query, 10)
	if err != nil {
		slog.Warn("autocomplete suggestions error", "guildID", i.GuildID, "err", err)
	}
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
}

func (h *commandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	var query string
	var immediate, shuffleAdd bool
	var attachments []string
	for _, o := range data.Options {
		switch o.Name {
		case "query":
			query = o.StringValue()
		case "immediate":
			immediate = o.BoolValue()
		case "shuffle":
			shuffleAdd = o.BoolValue()
		case "file":
			if id, ok := o.Value.(string); ok {
				if att, ok := data.Resolved.Attachments[id]; ok && att != nil {
					attachments = append(attachments, att.URL)
				}
			}
		}
	}
	if query == "" && len(attachments) == 0 {
		h.reply(s, i, "give me something to play", true)
		return
	}

	chID, ok := userInVoice(s, i.GuildID, userIDOf(i))
	if !ok {
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}

	h.deferReply(s, i, false)
	p := h.pm.GetOrCreate(i.GuildID)
	req := plib.AddRequest{
		Query:          query,
		Attachments:    attachments,
		Requester:      requesterOf(i),
		VoiceChannelID: chID,
		ShuffleAfter:   shuffleAdd,
	}

	ctx := context.Background()
	var added int
	var notices []resolver.Notice
	var err error
	if immediate {
		added, notices, err = p.PlayNow(ctx, req)
	} else {
		added, notices, err = p.Add(ctx, req)
	}
	if err != nil {
		slog.Warn("play failed", "guildID", i.GuildID, "query", query, "err", err)
		h.editReply(s, i, playErrorText(err))
		return
	}
	h.editReply(s, i, addedText(added, notices, immediate))
}

func addedText(added int, notices []resolver.Notice, immediate bool) string {
	if added == 0 {
		return "no songs found"
	}
	msg := fmt.Sprintf("added %d song(s) to the queue", added)
	if added == 1 {
		msg = "added to the queue"
	}
	if immediate {
		msg += ", playing now"
	}
	for _, n := range notices {
		msg += fmt.Sprintf("\ncouldn't resolve %s: %v", utils.EscapeMd(n.Phrase), n.Err)
	}
	return msg
}

func playErrorText(err error) string {
	switch {
	case errors.Is(err, plib.ErrNoVoiceChannel):
		return "gotta be in a voice channel"
	case errors.Is(err, plib.ErrStopped):
		return "that player is gone, try again"
	default:
		return "couldn't start playback"
	}
}

func (h *commandHandler) cmdNext(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "nothing is playing", true)
		return
	}
	next, ok, err := p.Next(context.Background())
	if err != nil {
		h.reply(s, i, "nothing to skip to", true)
		return
	}
	if !ok {
		h.reply(s, i, "skipped, queue is empty now", false)
		return
	}
	h.reply(s, i, "skipped to "+utils.EscapeMd(next.Title), false)
}

func (h *commandHandler) cmdSeek(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "nothing is playing", true)
		return
	}
	var tstr string
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "time" {
			tstr = o.StringValue()
		}
	}
	sec := utils.ParseDurationString(tstr)
	if sec < 0 {
		h.reply(s, i, "invalid time", true)
		return
	}
	if err := p.Seek(context.Background(), sec); err != nil {
		h.reply(s, i, seekErrorText(err), true)
		return
	}
	h.reply(s, i, "seeked to "+utils.PrettyTime(sec), false)
}

func seekErrorText(err error) string {
	switch {
	case errors.Is(err, plib.ErrNotSeekable):
		return "this track can't be seeked"
	case errors.Is(err, plib.ErrSeekPastEnd):
		return "can't seek past the end of the song"
	case errors.Is(err, plib.ErrNothingPlaying):
		return "nothing is playing"
	default:
		return "seek failed"
	}
}

func (h *commandHandler) cmdPause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "nothing is playing", true)
		return
	}
	if err := p.Pause(); err != nil {
		h.reply(s, i, "not currently playing", true)
		return
	}
	h.reply(s, i, "paused at "+utils.PrettyTime(p.Position()), false)
}

func (h *commandHandler) cmdResume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "nothing to resume", true)
		return
	}
	if err := p.Resume(); err != nil {
		if errors.Is(err, plib.ErrAlreadyPlaying) {
			h.reply(s, i, "already playing", true)
			return
		}
		h.reply(s, i, "nothing to resume", true)
		return
	}
	h.reply(s, i, "resumed", false)
}

func (h *commandHandler) cmdLoop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "nothing is playing", true)
		return
	}
	on, err := p.ToggleLoop()
	if err != nil {
		h.reply(s, i, "nothing is playing", true)
		return
	}
	if on {
		h.reply(s, i, "looping the queue", false)
		return
	}
	h.reply(s, i, "loop off", false)
}

func (h *commandHandler) cmdShuffle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil || p.QueueLen() == 0 {
		h.reply(s, i, "nothing queued to shuffle", true)
		return
	}
	p.Shuffle()
	h.reply(s, i, "shuffled", false)
}

func (h *commandHandler) cmdMove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "the queue is empty", true)
		return
	}
	var from, to int
	for _, o := range i.ApplicationCommandData().Options {
		switch o.Name {
		case "from":
			from = int(o.IntValue())
		case "to":
			to = int(o.IntValue())
		}
	}
	// queue positions are 1-based in chat
	if err := p.Move(from-1, to-1); err != nil {
		h.reply(s, i, "those positions aren't in the queue", true)
		return
	}
	h.reply(s, i, fmt.Sprintf("moved song %d to position %d", from, to), false)
}

func (h *commandHandler) cmdRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "the queue is empty", true)
		return
	}
	pos, count := 1, 1
	for _, o := range i.ApplicationCommandData().Options {
		switch o.Name {
		case "position":
			pos = int(o.IntValue())
		case "range":
			count = int(o.IntValue())
		}
	}
	if pos < 1 || count < 1 {
		h.reply(s, i, "position and range must be at least 1", true)
		return
	}
	indices := make([]int, count)
	for k := range indices {
		indices[k] = pos - 1 + k
	}
	removed := p.Remove(indices...)
	if removed == 0 {
		h.reply(s, i, "nothing at that position", true)
		return
	}
	h.reply(s, i, fmt.Sprintf("removed %d song(s)", removed), false)
}

func (h *commandHandler) cmdClear(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "the queue is already empty", true)
		return
	}
	n := p.ClearQueue()
	h.reply(s, i, fmt.Sprintf("cleared %d song(s)", n), false)
}

func (h *commandHandler) cmdStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "not playing anything", true)
		return
	}
	p.Stop()
	h.reply(s, i, "stopped and cleared the queue", false)
}

func (h *commandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "the queue is empty", true)
		return
	}
	page := 1
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "page" {
			page = int(o.IntValue())
		}
	}
	if page < 1 {
		page = 1
	}

	var b strings.Builder
	if cur, ok := p.Current(); ok {
		fmt.Fprintf(&b, "**%s** %s [%s]\n\n", utils.EscapeMd(cur.Title), p.State(), utils.PrettyTime(p.Position()))
	}
	items := p.QueueSnapshot()
	if len(items) == 0 {
		b.WriteString("nothing else queued")
		h.reply(s, i, b.String(), false)
		return
	}
	start := (page - 1) * queuePageSize
	if start >= len(items) {
		h.reply(s, i, "no such page", true)
		return
	}
	end := start + queuePageSize
	if end > len(items) {
		end = len(items)
	}
	for idx := start; idx < end; idx++ {
		m := items[idx]
		dur := ""
		if m.Duration > 0 {
			dur = " (" + utils.PrettyTime(m.Duration) + ")"
		}
		fmt.Fprintf(&b, "%d. %s%s\n", idx+1, utils.EscapeMd(m.Title), dur)
	}
	totalPages := (len(items) + queuePageSize - 1) / queuePageSize
	fmt.Fprintf(&b, "\npage %d of %d, %d song(s) queued", page, totalPages, len(items))
	h.reply(s, i, b.String(), false)
}

func (h *commandHandler) cmdNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "nothing is currently playing", true)
		return
	}
	cur, ok := p.Current()
	if !ok {
		h.reply(s, i, "nothing is currently playing", true)
		return
	}
	text := fmt.Sprintf("**%s** [%s", utils.EscapeMd(cur.Title), utils.PrettyTime(p.Position()))
	if cur.Duration > 0 {
		text += " / " + utils.PrettyTime(cur.Duration)
	}
	text += "]"
	if p.State() == plib.StatusPaused {
		text += " (paused)"
	}
	h.reply(s, i, text, false)
}

func (h *commandHandler) cmdLyrics(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.GetOrCreate(i.GuildID)
	var query string
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "query" {
			query = o.StringValue()
		}
	}
	h.deferReply(s, i, false)
	text, err := p.Lyrics(context.Background(), query)
	if err != nil {
		if errors.Is(err, lyrics.ErrNotFound) {
			h.editReply(s, i, "no lyrics found")
			return
		}
		if errors.Is(err, plib.ErrNothingPlaying) {
			h.editReply(s, i, "nothing is playing, give me a song name")
			return
		}
		slog.Warn("lyrics fetch failed", "guildID", i.GuildID, "err", err)
		h.editReply(s, i, "couldn't fetch lyrics")
		return
	}
	if len(text) > 1900 {
		text = text[:1900] + "…"
	}
	h.editReply(s, i, text)
}

func (h *commandHandler) cmdHz(s *discordgo.Session, i *discordgo.InteractionCreate) {
	chID, ok := userInVoice(s, i.GuildID, userIDOf(i))
	if !ok {
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}
	freq := 0.0
	seconds := 1.0
	for _, o := range i.ApplicationCommandData().Options {
		switch o.Name {
		case "frequency":
			freq = o.FloatValue()
		case "seconds":
			seconds = o.FloatValue()
		}
	}
	if freq <= 0 || seconds <= 0 || seconds > 60 {
		h.reply(s, i, "frequency must be positive and seconds between 0 and 60", true)
		return
	}
	p := h.pm.GetOrCreate(i.GuildID)
	m := media.NewTone(freq, seconds, requesterOf(i))
	if err := p.PlayMedia(context.Background(), m, chID); err != nil {
		h.reply(s, i, playErrorText(err), true)
		return
	}
	h.reply(s, i, fmt.Sprintf("playing %gHz for %gs", freq, seconds), false)
}

func (h *commandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *commandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *commandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "err", err)
	}
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func requesterOf(i *discordgo.InteractionCreate) media.Requester {
	if i.Member != nil && i.Member.User != nil {
		name := i.Member.Nick
		if name == "" {
			name = i.Member.User.Username
		}
		return media.Requester{ID: i.Member.User.ID, DisplayName: name}
	}
	if i.User != nil {
		return media.Requester{ID: i.User.ID, DisplayName: i.User.Username}
	}
	return media.Requester{}
}

func userInVoice(s *discordgo.Session, guildID, userID string) (channelID string, ok bool) {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		g, _ = s.Guild(guildID)
	}
	if g == nil {
		return "", false
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}
