package stream

import (
	"testing"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(v string) *string { return &v }

func TestMapFormatsReadsExtension(t *testing.T) {
	fs := []*ytdlp.ExtractedFormat{
		{URL: "https://cdn.example.com/a", Extension: strp("webm")},
		nil,
		{URL: "https://cdn.example.com/b"},
	}
	out := mapFormats(fs)
	require.Len(t, out, 2)
	assert.Equal(t, "https://cdn.example.com/a", out[0].Url)
	assert.Equal(t, "webm", out[0].Ext)
	assert.Equal(t, "", out[1].Ext)
}

func TestAudioURLPreferenceOrder(t *testing.T) {
	info := &Info{
		Url:              "https://cdn.example.com/top",
		Formats:          []Format{{Url: "https://cdn.example.com/fmt"}},
		RequestedFormats: []Format{{Url: "https://cdn.example.com/req"}},
	}
	assert.Equal(t, "https://cdn.example.com/req", AudioURL(info))

	info.RequestedFormats = nil
	assert.Equal(t, "https://cdn.example.com/top", AudioURL(info))

	info.Url = ""
	assert.Equal(t, "https://cdn.example.com/fmt", AudioURL(info))

	info.Formats = nil
	assert.Equal(t, "", AudioURL(info))
}

func TestExtOf(t *testing.T) {
	assert.Equal(t, "mp3", extOf("https://example.com/song.mp3?sig=abc"))
	assert.Equal(t, "ogg", extOf("/srv/sounds/airhorn.ogg"))
	assert.Equal(t, "", extOf("https://example.com/stream"))
}
