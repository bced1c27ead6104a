package audio

import (
	"bytes"
	"math"
	"testing"
)

func tone(n int, amplitude float64, period int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*float64(i)/float64(period)))
	}
	return samples
}

func TestValidateHeader(t *testing.T) {
	valid, err := Encode(tone(1600, 5000, 100), SampleRate)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"valid wav", valid, false},
		{"empty", nil, true},
		{"too short", []byte("RIFF"), true},
		{"wrong magic", []byte("NOTAWAVFILE!"), true},
		{"riff without wave", append([]byte("RIFF\x00\x00\x00\x00"), []byte("AIFF")...), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeader(tt.data)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	original := tone(1600, 5000, 100)
	data, err := Encode(original, SampleRate)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	samples, rate, channels, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if rate != SampleRate {
		t.Errorf("rate = %d, want %d", rate, SampleRate)
	}
	if channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
	if len(samples) != len(original) {
		t.Fatalf("got %d samples, want %d", len(samples), len(original))
	}
	for i := range samples {
		if samples[i] != original[i] {
			t.Fatalf("sample %d = %d, want %d", i, samples[i], original[i])
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, _, _, err := Decode([]byte("definitely not audio data, not even close")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestNormalizePassthrough(t *testing.T) {
	data, err := Encode(tone(1600, 5000, 100), SampleRate)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	normalized, err := Normalize(data)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !bytes.Equal(normalized, data) {
		t.Error("canonical input should pass through unchanged")
	}
}

func TestNormalizeResamples(t *testing.T) {
	// One second of 48 kHz audio should come out as one second of 16 kHz.
	data, err := Encode(tone(48000, 5000, 100), 48000)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	normalized, err := Normalize(data)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	samples, rate, channels, err := Decode(normalized)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if rate != SampleRate {
		t.Errorf("rate = %d, want %d", rate, SampleRate)
	}
	if channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
	if len(samples) < 15900 || len(samples) > 16100 {
		t.Errorf("got %d samples, want ~16000", len(samples))
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	if _, err := Normalize([]byte("junk")); err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestDownmix(t *testing.T) {
	stereo := []int16{100, 200, -100, -200, 0, 50}
	mono := Downmix(stereo, 2)
	want := []int16{150, -150, 25}
	if len(mono) != len(want) {
		t.Fatalf("got %d frames, want %d", len(mono), len(want))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("frame %d = %d, want %d", i, mono[i], want[i])
		}
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %f, want 0", got)
	}
	if got := RMS(make([]int16, 1000)); got != 0 {
		t.Errorf("RMS(silence) = %f, want 0", got)
	}
	if got := RMS([]int16{1000, -1000, 1000, -1000}); got != 1000 {
		t.Errorf("RMS(square wave) = %f, want 1000", got)
	}
}
