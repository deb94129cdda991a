// Package audio implements the RIFF/WAVE envelope for 16-bit mono PCM. The
// synthesis endpoint serves EncodeWAV output; ParseWAV is the inverse, used
// by provider adapters and tests.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// wavHeaderSize is the size of the canonical RIFF/WAVE header produced by
// EncodeWAV: "RIFF" chunk, "fmt " chunk (PCM), and the "data" chunk header.
const wavHeaderSize = 44

// ErrNotWAV is returned by ParseWAV for data that is not a RIFF/WAVE stream.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

// EncodeWAV wraps 16-bit little-endian mono PCM in a 44-byte RIFF/WAVE
// envelope. An empty pcm slice produces a valid zero-length clip.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))

	byteRate := sampleRate * 2 // mono, 16-bit

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(out[22:24], 1)  // mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))

	copy(out[wavHeaderSize:], pcm)
	return out
}

// ParseWAV extracts the PCM payload and sample rate from a RIFF/WAVE stream.
// It walks the chunk list, so extra chunks (LIST, fact) before the data chunk
// are tolerated. A data chunk whose declared length disagrees with the actual
// payload — common when the encoder wrote to a pipe and could not seek back —
// yields whatever bytes follow the chunk header.
func ParseWAV(b []byte) (pcm []byte, sampleRate int, err error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, 0, ErrNotWAV
	}

	var haveFmt bool
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8

		switch id {
		case "fmt ":
			if body+16 > len(b) {
				return nil, 0, fmt.Errorf("audio: truncated fmt chunk")
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("audio: unsupported WAV format %d, want PCM", format)
			}
			sampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("audio: data chunk before fmt chunk")
			}
			end := body + size
			if size <= 0 || end > len(b) {
				end = len(b)
			}
			return b[body:end], sampleRate, nil
		}

		if size < 0 {
			return nil, 0, fmt.Errorf("audio: negative chunk size")
		}
		off = body + size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}
	return nil, 0, fmt.Errorf("audio: no data chunk found")
}
