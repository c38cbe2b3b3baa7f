package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	gowav "github.com/youpy/go-wav"
)

// ErrUnsupportedFormat is returned for WAV files that are not 16-bit PCM
// mono or stereo.
var ErrUnsupportedFormat = errors.New("unsupported wav format")

// DecodeFile reads a stored WAV track and converts it to the stream format:
// interleaved stereo int16 at 48kHz.
func DecodeFile(path string) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	left, right, rate, err := readWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	left = Resample(left, rate, SampleRate)
	if right == nil {
		return UpmixStereo(left), nil
	}
	return Interleave(left, Resample(right, rate, SampleRate)), nil
}

// readWAV returns per-channel samples; right is nil for mono input.
func readWAV(r gowavSource) (left, right []int16, rate int, err error) {
	reader := gowav.NewReader(r)
	format, err := reader.Format()
	if err != nil {
		return nil, nil, 0, err
	}
	if format.AudioFormat != gowav.AudioFormatPCM || format.BitsPerSample != 16 ||
		format.NumChannels < 1 || format.NumChannels > 2 {
		return nil, nil, 0, fmt.Errorf("%w: format=%d bits=%d channels=%d",
			ErrUnsupportedFormat, format.AudioFormat, format.BitsPerSample, format.NumChannels)
	}

	stereo := format.NumChannels == 2
	for {
		samples, err := reader.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, 0, err
		}
		for _, s := range samples {
			left = append(left, int16(reader.IntValue(s, 0)))
			if stereo {
				right = append(right, int16(reader.IntValue(s, 1)))
			}
		}
	}
	return left, right, int(format.SampleRate), nil
}

// gowavSource is what the go-wav reader needs from its input.
type gowavSource interface {
	io.Reader
	io.ReaderAt
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
