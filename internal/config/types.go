package config

type Config struct {
	DiscordToken        string
	SpotifyClientID     string
	SpotifyClientSecret string
	DataDir             string
	DBPath              string
	SoundsDir           string
	MaxPlaybackFailures int
	MaxVoiceReconnects  int
	UITimeoutSeconds    int
	ChannelVideoLimit   int
}
