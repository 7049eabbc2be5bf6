package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
)

type Format struct {
	Url string `json:"url"`
	Ext string `json:"ext"`
}

type Entry struct {
	Id       string  `json:"id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Duration float64 `json:"duration"`
	IsLive   bool    `json:"is_live"`
	Url      string  `json:"url"`
}

type Info struct {
	Id               string   `json:"id"`
	Title            string   `json:"title"`
	Uploader         string   `json:"uploader"`
	Duration         float64  `json:"duration"`
	IsLive           bool     `json:"is_live"`
	WebpageUrl       string   `json:"webpage_url"`
	Ext              string   `json:"ext"`
	Formats          []Format `json:"formats"`
	RequestedFormats []Format `json:"requested_formats"`
	Url              string   `json:"url"`

	Entries []Entry `json:"entries"`
}

var installOnce sync.Once

// helpers to safely read pointer fields with defaults
func s(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
func f(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}
func b(ptr *bool) bool {
	if ptr == nil {
		return false
	}
	return *ptr
}

func mapFormats(fs []*ytdlp.ExtractedFormat) []Format {
	if len(fs) == 0 {
		return nil
	}
	out := make([]Format, 0, len(fs))
	for _, fm := range fs {
		if fm == nil {
			continue
		}
		out = append(out, Format{Url: fm.URL, Ext: s(fm.Extension)})
	}
	return out
}

// GetInfo runs yt-dlp -J with a best-audio format preference against the URL
// (or a ytsearch1: expression).
func GetInfo(ctx context.Context, url string) (*Info, error) {
	installOnce.Do(func() {
		ytdlp.MustInstall(ctx, nil)
	})

	cmd := ytdlp.New().
		Format("ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best").
		NoCheckCertificates().
		DumpJSON()

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}

	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, fmt.Errorf("parse yt-dlp json: no info returned")
	}
	ext := infos[0]
	out := &Info{
		Id:               ext.ID,
		Title:            s(ext.Title),
		Uploader:         s(ext.Uploader),
		Duration:         f(ext.Duration),
		IsLive:           b(ext.IsLive),
		WebpageUrl:       s(ext.WebpageURL),
		Ext:              ext.Extension,
		Url:              s(ext.URL),
		Formats:          mapFormats(ext.Formats),
		RequestedFormats: mapFormats(ext.RequestedFormats),
	}

	if len(ext.Entries) > 0 {
		out.Entries = make([]Entry, 0, len(ext.Entries))
		for _, e := range ext.Entries {
			if e == nil {
				continue
			}
			out.Entries = append(out.Entries, Entry{
				Id:       e.ID,
				Title:    s(e.Title),
				Uploader: s(e.Uploader),
				Duration: f(e.Duration),
				IsLive:   b(e.IsLive),
				Url:      s(e.URL),
			})
		}
	}

	return out, nil
}

// FlatPlaylist lists a playlist, set or channel without resolving each entry.
func FlatPlaylist(ctx context.Context, url string) (*Info, error) {
	installOnce.Do(func() {
		ytdlp.MustInstall(ctx, nil)
	})

	cmd := ytdlp.New().
		FlatPlaylist().
		DumpJSON()

	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp playlist fetch failed for %s: %w", url, err)
	}

	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp playlist json for %s: %w", url, err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, fmt.Errorf("yt-dlp returned empty playlist info for %s", url)
	}

	pl := infos[0]
	out := &Info{
		Id:         pl.ID,
		Title:      s(pl.Title),
		WebpageUrl: s(pl.WebpageURL),
	}
	out.Entries = make([]Entry, 0, len(pl.Entries))
	for _, e := range pl.Entries {
		if e == nil {
			continue
		}
		out.Entries = append(out.Entries, Entry{
			Id:       e.ID,
			Title:    s(e.Title),
			Uploader: s(e.Uploader),
			Duration: f(e.Duration),
			IsLive:   b(e.IsLive),
			Url:      s(e.URL),
		})
	}
	return out, nil
}

// AudioURL returns the best playable URL from an info dump.
// Preferred order: requested_formats, top-level url, then formats[].
func AudioURL(info *Info) string {
	for _, rf := range info.RequestedFormats {
		if strings.HasPrefix(rf.Url, "http") {
			return rf.Url
		}
	}
	if strings.HasPrefix(info.Url, "http") {
		return info.Url
	}
	for _, fm := range info.Formats {
		if strings.HasPrefix(fm.Url, "http") {
			return fm.Url
		}
	}
	return ""
}
