// Package tone renders sine tones as WAV streams for the hz command.
package tone

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const (
	sampleRate    = 48000
	bitsPerSample = 16
	channels      = 1
)

var (
	ErrBadFrequency = errors.New("frequency must be positive")
	ErrBadDuration  = errors.New("duration must be positive")
)

// Generate returns a mono 16-bit PCM WAV stream containing a sine tone of the
// given frequency and length in seconds.
func Generate(freq, seconds float64) (io.Reader, error) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return nil, ErrBadFrequency
	}
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, ErrBadDuration
	}

	n := int(seconds * sampleRate)
	dataLen := n * channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + dataLen)
	writeHeader(&buf, dataLen)

	const amplitude = 0.6 * math.MaxInt16
	step := 2 * math.Pi * freq / sampleRate
	var sample [2]byte
	for i := 0; i < n; i++ {
		v := int16(amplitude * math.Sin(step*float64(i)))
		binary.LittleEndian.PutUint16(sample[:], uint16(v))
		buf.Write(sample[:])
	}
	return &buf, nil
}

func writeHeader(buf *bytes.Buffer, dataLen int) {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
}
