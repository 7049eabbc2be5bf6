// Package voice owns the Discord voice transport: joining channels, feeding
// opus packets at a 20ms cadence and surfacing lost connections.
package voice

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"

	"github.com/iz7n/music-discord-bot/internal/stream"
)

const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960 // 20ms at 48k
	bitrate    = 160000

	readyTimeout = 5 * time.Second
)

// Connector joins guild voice channels over one discord session.
type Connector struct {
	session *discordgo.Session
}

func NewConnector(s *discordgo.Session) *Connector {
	return &Connector{session: s}
}

// Connect joins the channel and waits for the connection to become ready.
func (c *Connector) Connect(ctx context.Context, guildID, channelID string) (*Session, error) {
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("voice join: %w", err)
	}

	// This prevents the panic in Kill() when channels are closed
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}

	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) && !vc.Ready {
		select {
		case <-ctx.Done():
			_ = safeDisconnect(vc)
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	if !vc.Ready {
		_ = safeDisconnect(vc)
		return nil, fmt.Errorf("voice connection not ready")
	}

	s := &Session{
		vc:           vc,
		guildID:      guildID,
		disconnected: make(chan struct{}),
		closed:       make(chan struct{}),
	}
	go s.watch()
	return s, nil
}

// Session is one live voice connection.
type Session struct {
	vc      *discordgo.VoiceConnection
	guildID string

	disconnected chan struct{}
	closed       chan struct{}
	once         sync.Once
	discOnce     sync.Once
}

// Disconnected is closed when the transport drops unexpectedly.
func (s *Session) Disconnected() <-chan struct{} {
	return s.disconnected
}

func (s *Session) Disconnect() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = safeDisconnect(s.vc)
	})
	return err
}

// watch flags the session as disconnected when the connection stays not
// ready past a grace period.
func (s *Session) watch() {
	notReady := 0
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			if s.vc.Ready {
				notReady = 0
				continue
			}
			notReady++
			if notReady >= 5 {
				s.discOnce.Do(func() { close(s.disconnected) })
				return
			}
		}
	}
}

// Play decodes the source with ffmpeg to raw PCM, encodes 20ms opus frames
// and paces them into the connection. It blocks until the source ends,
// errors, or ctx is cancelled.
func (s *Session) Play(ctx context.Context, src *stream.Stream) error {
	pcm, err := startPCM(ctx, src)
	if err != nil {
		return err
	}
	defer pcm.Close()

	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}
	enc.SetBitrate(bitrate)

	_ = s.vc.Speaking(true)
	defer s.vc.Speaking(false)

	// Each 20ms frame is 960 samples/ch * 2 ch * 2 bytes
	const frameBytes = frameSize * channels * 2
	pcmBuf := make([]byte, frameBytes)
	shorts := make([]int16, frameSize*channels)

	reader := bufio.NewReaderSize(pcm.Stdout(), 64*1024)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := io.ReadFull(reader, pcmBuf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return pcm.Wait(ctx)
			}
			return fmt.Errorf("read pcm: %w", err)
		}
		for i := 0; i < len(shorts); i++ {
			j := i * 2
			shorts[i] = int16(pcmBuf[j]) | int16(int8(pcmBuf[j+1]))<<8
		}
		packet, err := enc.Encode(shorts, frameSize, 4000)
		if err != nil {
			return fmt.Errorf("opus encode: %w", err)
		}
		if len(packet) == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.disconnected:
			return fmt.Errorf("voice connection lost")
		case <-ticker.C:
		}
		select {
		case s.vc.OpusSend <- packet:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.disconnected:
			return fmt.Errorf("voice connection lost")
		case <-time.After(200 * time.Millisecond):
			slog.Debug("dropped opus packet", "guildID", s.guildID)
		}
	}
}

// safeDisconnect tears a connection down without tripping the panic paths
// in discordgo's Kill when channels are nil.
func safeDisconnect(vc *discordgo.VoiceConnection) error {
	if vc == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("voice disconnect panic recovered", "panic", r)
		}
	}()
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
	_ = vc.Speaking(false)
	time.Sleep(150 * time.Millisecond)
	return vc.Disconnect()
}

// pcmStream manages ffmpeg PCM decoding (s16le, 48k, stereo).
type pcmStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	cancel context.CancelFunc
	waited bool
}

func startPCM(ctx context.Context, src *stream.Stream) (*pcmStream, error) {
	ctx2, cancel := context.WithCancel(ctx)

	args := []string{"-hide_banner", "-loglevel", "error"}
	input := src.Input
	switch {
	case src.Reader != nil:
		input = "pipe:0"
	case strings.HasPrefix(input, "http"):
		args = append(args,
			"-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
	}
	// Input-side seek is fast and accurate enough for audio
	if src.Seek > 0 {
		args = append(args, "-ss", fmt.Sprint(src.Seek))
	}
	args = append(args, "-i", input,
		"-vn",
		"-ac", "2",
		"-ar", "48000",
		"-f", "s16le",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx2, "ffmpeg", args...)
	if src.Reader != nil {
		cmd.Stdin = src.Reader
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start: %w (stderr: %s)", err, stderr.String())
	}

	return &pcmStream{cmd: cmd, stdout: stdout, stderr: stderr, cancel: cancel}, nil
}

func (s *pcmStream) Stdout() io.Reader {
	return s.stdout
}

// Wait distinguishes a clean end of stream from a decoder failure.
func (s *pcmStream) Wait(ctx context.Context) error {
	s.waited = true
	err := s.cmd.Wait()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ffmpeg: %w (stderr: %s)", err, s.stderr.String())
	}
	return nil
}

func (s *pcmStream) Close() {
	s.cancel()
	if !s.waited {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
}
