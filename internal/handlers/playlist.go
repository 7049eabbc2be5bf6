package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/iz7n/music-discord-bot/internal/media"
	plib "github.com/iz7n/music-discord-bot/internal/player"
	"github.com/iz7n/music-discord-bot/internal/repository"
	"github.com/iz7n/music-discord-bot/internal/utils"
)

func (h *commandHandler) cmdPlaylist(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	switch sub.Name {
	case "save":
		h.playlistSave(s, i, sub)
	case "add":
		h.playlistAdd(s, i, sub)
	case "load":
		h.playlistLoad(s, i, sub)
	case "show":
		h.playlistShow(s, i, sub)
	case "remove":
		h.playlistRemove(s, i, sub)
	case "list":
		h.playlistList(s, i)
	}
}

func subString(sub *discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range sub.Options {
		if o.Name == name {
			return o.StringValue()
		}
	}
	return ""
}

func (h *commandHandler) playlistSave(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	name := subString(sub, "name")
	p := h.pm.Peek(i.GuildID)
	if p == nil {
		h.reply(s, i, "nothing to save", true)
		return
	}
	n, err := p.SavePlaylist(context.Background(), userIDOf(i), name)
	if err != nil {
		if errors.Is(err, plib.ErrQueueEmpty) {
			h.reply(s, i, "nothing to save", true)
			return
		}
		slog.Error("playlist save failed", "guildID", i.GuildID, "name", name, "err", err)
		h.reply(s, i, "couldn't save the playlist", true)
		return
	}
	h.reply(s, i, fmt.Sprintf("saved %d song(s) to **%s**", n, utils.EscapeMd(name)), false)
}

func (h *commandHandler) playlistAdd(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	name := subString(sub, "name")
	query := subString(sub, "query")
	h.deferReply(s, i, false)
	p := h.pm.GetOrCreate(i.GuildID)
	n, notices, err := p.AddToPlaylist(context.Background(), userIDOf(i), name, query, requesterOf(i))
	if err != nil {
		slog.Error("playlist add failed", "guildID", i.GuildID, "name", name, "err", err)
		h.editReply(s, i, "couldn't add to the playlist")
		return
	}
	msg := fmt.Sprintf("added %d song(s) to **%s**", n, utils.EscapeMd(name))
	for _, nc := range notices {
		msg += fmt.Sprintf("\ncouldn't resolve %s: %v", utils.EscapeMd(nc.Phrase), nc.Err)
	}
	h.editReply(s, i, msg)
}

func (h *commandHandler) playlistLoad(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	name := subString(sub, "name")
	var shuffle bool
	for _, o := range sub.Options {
		if o.Name == "shuffle" {
			shuffle = o.BoolValue()
		}
	}
	chID, ok := userInVoice(s, i.GuildID, userIDOf(i))
	if !ok {
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}
	h.deferReply(s, i, false)
	p := h.pm.GetOrCreate(i.GuildID)
	n, err := p.LoadPlaylist(context.Background(), userIDOf(i), name, shuffle, chID)
	if err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			h.editReply(s, i, "no playlist named **"+utils.EscapeMd(name)+"**")
			return
		}
		slog.Error("playlist load failed", "guildID", i.GuildID, "name", name, "err", err)
		h.editReply(s, i, "couldn't load the playlist")
		return
	}
	h.editReply(s, i, fmt.Sprintf("queued %d song(s) from **%s**", n, utils.EscapeMd(name)))
}

const playlistPageSize = 10

func (h *commandHandler) playlistShow(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	name := subString(sub, "name")
	userID := userIDOf(i)
	p := h.pm.GetOrCreate(i.GuildID)
	tracks, err := p.PlaylistTracks(context.Background(), userID, name)
	if err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			h.reply(s, i, "no playlist named **"+utils.EscapeMd(name)+"**", true)
			return
		}
		slog.Error("playlist show failed", "guildID", i.GuildID, "name", name, "err", err)
		h.reply(s, i, "couldn't read the playlist", true)
		return
	}
	if len(tracks) == 0 {
		h.reply(s, i, "**"+utils.EscapeMd(name)+"** is empty", false)
		return
	}

	content := renderPlaylistPage(name, tracks, 0)
	rows := playlistPagerRows(userID, name, 0, len(tracks), false)
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: rows,
		},
	}); err != nil {
		slog.Warn("playlist show reply failed", "guildID", i.GuildID, "err", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	// page buttons stop working after the UI timeout or when another
	// panel takes over
	interaction := i.Interaction
	var once sync.Once
	disable := func() {
		once.Do(func() {
			disabled := playlistPagerRows(userID, name, 0, len(tracks), true)
			if _, err := s.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{
				Components: &disabled,
			}); err != nil {
				slog.Debug("playlist pager disable failed", "guildID", i.GuildID, "err", err)
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

func renderPlaylistPage(name string, tracks []media.Persisted, page int) string {
	totalPages := (len(tracks) + playlistPageSize - 1) / playlistPageSize
	if page < 0 {
		page = 0
	}
	if page >= totalPages {
		page = totalPages - 1
	}
	start := page * playlistPageSize
	end := start + playlistPageSize
	if end > len(tracks) {
		end = len(tracks)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", utils.EscapeMd(name))
	for idx := start; idx < end; idx++ {
		t := tracks[idx]
		dur := ""
		if t.Duration > 0 {
			dur = " (" + utils.PrettyTime(t.Duration) + ")"
		}
		fmt.Fprintf(&b, "%d. %s%s\n", idx+1, utils.EscapeMd(t.Title), dur)
	}
	if totalPages > 1 {
		fmt.Fprintf(&b, "\npage %d of %d, %d song(s)", page+1, totalPages, len(tracks))
	}
	return b.String()
}

func playlistPagerRows(userID, name string, page, total int, disabled bool) []discordgo.MessageComponent {
	if total <= playlistPageSize {
		return nil
	}
	totalPages := (total + playlistPageSize - 1) / playlistPageSize
	prev := page - 1
	next := page + 1
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "prev",
				Style:    discordgo.SecondaryButton,
				CustomID: fmt.Sprintf("plb:%s:%d:%s", userID, prev, name),
				Disabled: disabled || page == 0,
			},
			discordgo.Button{
				Label:    "next",
				Style:    discordgo.SecondaryButton,
				CustomID: fmt.Sprintf("plb:%s:%d:%s", userID, next, name),
				Disabled: disabled || page >= totalPages-1,
			},
		}},
	}
}

// handlePlaylistPage flips the playlist browser to the page encoded in the
// button id: plb:<userID>:<page>:<name>.
func (h *commandHandler) handlePlaylistPage(s *discordgo.Session, i *discordgo.InteractionCreate, id string) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 {
		return
	}
	userID := parts[0]
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return
	}
	name := parts[2]

	if userIDOf(i) != userID {
		h.reply(s, i, "that's someone else's playlist browser", true)
		return
	}

	p := h.pm.GetOrCreate(i.GuildID)
	tracks, err := p.PlaylistTracks(context.Background(), userID, name)
	if err != nil || len(tracks) == 0 {
		h.reply(s, i, "that playlist is gone", true)
		return
	}

	totalPages := (len(tracks) + playlistPageSize - 1) / playlistPageSize
	if page < 0 {
		page = 0
	}
	if page >= totalPages {
		page = totalPages - 1
	}
	content := renderPlaylistPage(name, tracks, page)
	rows := playlistPagerRows(userID, name, page, len(tracks), false)
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: rows,
		},
	}); err != nil {
		slog.Debug("playlist page update failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *commandHandler) playlistRemove(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	name := subString(sub, "name")
	var index *int
	for _, o := range sub.Options {
		if o.Name == "position" {
			v := int(o.IntValue()) - 1
			index = &v
		}
	}
	p := h.pm.GetOrCreate(i.GuildID)
	if err := p.RemoveFromPlaylist(context.Background(), userIDOf(i), name, index); err != nil {
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			h.reply(s, i, "no playlist named **"+utils.EscapeMd(name)+"**", true)
			return
		}
		h.reply(s, i, "couldn't remove: "+err.Error(), true)
		return
	}
	if index == nil {
		h.reply(s, i, "deleted **"+utils.EscapeMd(name)+"**", false)
		return
	}
	h.reply(s, i, fmt.Sprintf("removed song %d from **%s**", *index+1, utils.EscapeMd(name)), false)
}

func (h *commandHandler) playlistList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := h.pm.GetOrCreate(i.GuildID)
	names, err := p.ListPlaylists(context.Background(), userIDOf(i))
	if err != nil {
		slog.Error("playlist list failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "couldn't list playlists", true)
		return
	}
	if len(names) == 0 {
		h.reply(s, i, "you have no playlists", true)
		return
	}
	var b strings.Builder
	b.WriteString("your playlists:\n")
	for _, n := range names {
		b.WriteString("- " + utils.EscapeMd(n) + "\n")
	}
	h.reply(s, i, b.String(), false)
}
