package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func LoadConfig() (*Config, error) {
	// best-effort: a missing .env just means plain env vars
	_ = godotenv.Load()

	dataDir := getenv("DATA_DIR", "./data")

	cfg := &Config{
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		DataDir:             dataDir,
		DBPath:              filepath.Join(dataDir, "playlists.db"),
		SoundsDir:           getenv("SOUNDS_DIR", "./sounds"),
		MaxPlaybackFailures: getenvInt("MAX_PLAYBACK_FAILURES", 3),
		MaxVoiceReconnects:  getenvInt("MAX_VOICE_RECONNECTS", 3),
		UITimeoutSeconds:    getenvInt("UI_TIMEOUT", 60),
		ChannelVideoLimit:   getenvInt("CHANNEL_VIDEO_LIMIT", 100),
	}

	if cfg.DiscordToken == "" {
		return nil, ErrConfig("DISCORD_TOKEN required")
	}
	if cfg.MaxPlaybackFailures < 1 {
		cfg.MaxPlaybackFailures = 1
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)
	return cfg, nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
