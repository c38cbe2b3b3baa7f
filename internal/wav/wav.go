// Package wav writes and inspects canonical 44-byte-header PCM WAV files.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size of the canonical RIFF/WAVE header written by Encode.
const HeaderSize = 44

const formatPCM = 1

var (
	ErrShortHeader = errors.New("wav: header shorter than 44 bytes")
	ErrNotRIFF     = errors.New("wav: missing RIFF/WAVE markers")
	ErrNotPCM      = errors.New("wav: not an uncompressed PCM stream")
)

// Format describes the PCM layout carried by a WAV container.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// ByteRate returns bytes per second of audio.
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// BlockAlign returns bytes per sample frame (all channels).
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// Header is the decoded form of a canonical WAV header.
type Header struct {
	ChunkSize     uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Encode wraps 16-bit samples in a WAV container. The payload is written
// little-endian; the header sizes always describe exactly len(pcm)*2 bytes.
func Encode(pcm []int16, f Format) []byte {
	buf := make([]byte, HeaderSize+len(pcm)*2)
	putHeader(buf, f, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[HeaderSize+i*2:], uint16(s))
	}
	return buf
}

// EncodeBytes wraps an already packed PCM payload in a WAV container.
func EncodeBytes(pcm []byte, f Format) []byte {
	buf := make([]byte, HeaderSize+len(pcm))
	putHeader(buf, f, len(pcm))
	copy(buf[HeaderSize:], pcm)
	return buf
}

func putHeader(buf []byte, f Format, dataSize int) {
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(HeaderSize+dataSize-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(f.BitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
}

// ReadHeader parses the first 44 bytes of b as a canonical PCM WAV header.
func ReadHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" ||
		string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return Header{}, ErrNotRIFF
	}

	h := Header{
		ChunkSize:     binary.LittleEndian.Uint32(b[4:8]),
		AudioFormat:   binary.LittleEndian.Uint16(b[20:22]),
		Channels:      binary.LittleEndian.Uint16(b[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(b[24:28]),
		ByteRate:      binary.LittleEndian.Uint32(b[28:32]),
		BlockAlign:    binary.LittleEndian.Uint16(b[32:34]),
		BitsPerSample: binary.LittleEndian.Uint16(b[34:36]),
		DataSize:      binary.LittleEndian.Uint32(b[40:44]),
	}
	if h.AudioFormat != formatPCM {
		return h, fmt.Errorf("%w: format tag %d", ErrNotPCM, h.AudioFormat)
	}
	return h, nil
}

// Format returns the PCM layout declared by the header.
func (h Header) Format() Format {
	return Format{
		SampleRate:    int(h.SampleRate),
		Channels:      int(h.Channels),
		BitsPerSample: int(h.BitsPerSample),
	}
}
