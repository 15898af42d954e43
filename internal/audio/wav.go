// Package audio packages synthesized speech for playback.
package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/rehearse/internal/llm"
)

const bitsPerSample = 16

// EncodeWAV wraps raw signed 16-bit little-endian PCM in a 44-byte RIFF header.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// SpeechWAV encodes provider speech output at its fixed format.
func SpeechWAV(pcm []byte) []byte {
	return EncodeWAV(pcm, llm.SpeechSampleRate, llm.SpeechChannels)
}

// DecodeBase64PCM decodes speech that arrived base64-encoded in transit.
func DecodeBase64PCM(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("decode pcm: odd byte count %d for 16-bit samples", len(b))
	}
	return b, nil
}

// Duration is the playback length of speech PCM.
func Duration(pcm []byte) time.Duration {
	frames := len(pcm) / (llm.SpeechChannels * bitsPerSample / 8)
	return time.Duration(frames) * time.Second / time.Duration(llm.SpeechSampleRate)
}
