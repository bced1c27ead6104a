package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// SampleRate is the canonical rate every chunk is normalized to before
// transcription.
const SampleRate = 16000

// ErrInvalidFormat is returned when the payload does not carry a valid
// RIFF/WAVE container. It fires before any decoding work is attempted.
var ErrInvalidFormat = errors.New("not a valid WAV container")

// header is the canonical 44-byte PCM WAV header layout.
type header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16 // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// ValidateHeader checks the 12-byte RIFF/WAVE signature without touching
// codec internals.
func ValidateHeader(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("%w: %d bytes is too short for a RIFF header", ErrInvalidFormat, len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("%w: missing RIFF marker", ErrInvalidFormat)
	}
	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("%w: missing WAVE marker", ErrInvalidFormat)
	}
	return nil
}

// Decode parses a 16-bit PCM WAV file and returns the interleaved samples
// together with the sample rate and channel count.
func Decode(data []byte) ([]int16, int, int, error) {
	if err := ValidateHeader(data); err != nil {
		return nil, 0, 0, err
	}
	if len(data) < 44 {
		return nil, 0, 0, fmt.Errorf("%w: %d bytes is too short for a PCM header", ErrInvalidFormat, len(data))
	}

	buf := bytes.NewReader(data)
	var h header
	if err := binary.Read(buf, binary.LittleEndian, &h); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if string(h.Subchunk1ID[:]) != "fmt " {
		return nil, 0, 0, fmt.Errorf("%w: missing fmt chunk", ErrInvalidFormat)
	}
	if string(h.Subchunk2ID[:]) != "data" {
		return nil, 0, 0, fmt.Errorf("%w: missing data chunk", ErrInvalidFormat)
	}
	if h.AudioFormat != 1 {
		return nil, 0, 0, fmt.Errorf("unsupported audio format %d: only PCM is supported", h.AudioFormat)
	}
	if h.BitsPerSample != 16 {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d: only 16-bit is supported", h.BitsPerSample)
	}
	if h.NumChannels == 0 {
		return nil, 0, 0, fmt.Errorf("%w: zero channels", ErrInvalidFormat)
	}

	numSamples := int(h.Subchunk2Size) / 2
	if remaining := len(data) - 44; numSamples > remaining/2 {
		numSamples = remaining / 2
	}
	if numSamples <= 0 {
		return nil, 0, 0, fmt.Errorf("%w: no audio data", ErrInvalidFormat)
	}

	samples := make([]int16, numSamples)
	if err := binary.Read(buf, binary.LittleEndian, samples); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return samples, int(h.SampleRate), int(h.NumChannels), nil
}

// Encode serializes mono PCM-16 samples into a WAV container.
func Encode(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, errors.New("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	h := header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	return buf.Bytes(), nil
}

// Downmix averages interleaved multi-channel samples into mono.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += int(samples[i*channels+ch])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

// Resample converts mono samples between sample rates using linear
// interpolation. Good enough ahead of speech recognition; the provider
// re-quantizes anyway.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	ratio := float64(from) / float64(to)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		outLen = 1
	}
	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}

// Normalize converts any 16-bit PCM WAV payload into the canonical
// 16 kHz mono container. Already-canonical input is passed through
// untouched.
func Normalize(data []byte) ([]byte, error) {
	samples, rate, channels, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if rate == SampleRate && channels == 1 {
		return data, nil
	}
	mono := Downmix(samples, channels)
	mono = Resample(mono, rate, SampleRate)
	return Encode(mono, SampleRate)
}

// RMS computes the root-mean-square energy of the samples, used by the
// silence gate.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
