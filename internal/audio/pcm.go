package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// WAVHeaderSize is the size of the canonical mono 16-bit RIFF header.
const WAVHeaderSize = 44

type Format string

const (
	FormatFloat32 Format = "f32"
	FormatInt16   Format = "i16"
)

var (
	ErrUnknownFormat = errors.New("unknown pcm format")
	ErrMisalignedPCM = errors.New("pcm payload is not a whole number of samples")
)

// ParseFormat maps a wire format tag to a Format. An empty tag means f32.
func ParseFormat(tag string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "", "f32", "float32":
		return FormatFloat32, nil
	case "i16", "int16":
		return FormatInt16, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, tag)
	}
}

func (f Format) bytesPerSample() int {
	if f == FormatInt16 {
		return 2
	}
	return 4
}

// DecodeBase64 decodes a base64 PCM payload into canonical float samples.
func DecodeBase64(payload string, format Format) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 pcm: %w", err)
	}
	return DecodePCM(raw, format)
}

// DecodePCM converts little-endian PCM bytes into float samples.
// int16 samples are divided by 32768 without clamping; float32 samples are taken as-is.
func DecodePCM(raw []byte, format Format) ([]float32, error) {
	width := format.bytesPerSample()
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes for %s", ErrMisalignedPCM, len(raw), format)
	}
	samples := make([]float32, len(raw)/width)
	switch format {
	case FormatInt16:
		for i := range samples {
			v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			samples[i] = float32(v) / 32768
		}
	case FormatFloat32:
		for i := range samples {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return samples, nil
}

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV wraps samples in a mono 16-bit RIFF/WAVE container of exactly 44+2N bytes.
// Samples are clamped to [-1, 1]; negatives scale by 32768 and non-negatives by 32767.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataSize := uint32(len(samples) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(samples)*2))
	// bytes.Buffer writes never fail.
	_ = binary.Write(buf, binary.LittleEndian, header)
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(quantize(s)))
	}
	buf.Write(pcm)
	return buf.Bytes()
}

func quantize(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}
