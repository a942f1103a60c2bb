package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// sinePCM generates little-endian PCM-16 for a sine wave
func sinePCM(sampleRate int, seconds, frequency, amplitude float64) []byte {
	numSamples := int(float64(sampleRate) * seconds)
	buf := new(bytes.Buffer)
	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(sampleRate)
		sample := int16(amplitude * math.Sin(2*math.Pi*frequency*t))
		binary.Write(buf, binary.LittleEndian, sample)
	}
	return buf.Bytes()
}

func TestEncodeWAV(t *testing.T) {
	sampleRate := 16000
	pcm := sinePCM(sampleRate, 0.1, 440, 16383)

	wavData, err := EncodeWAV(pcm, sampleRate, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	expectedSize := 44 + len(pcm)
	if len(wavData) != expectedSize {
		t.Errorf("Expected WAV size %d, got %d", expectedSize, len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Generated WAV is invalid: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Failed to get WAV info: %v", err)
	}

	if info.SampleRate != uint32(sampleRate) {
		t.Errorf("Expected sample rate %d, got %d", sampleRate, info.SampleRate)
	}

	if info.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.Channels)
	}

	if info.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", info.BitsPerSample)
	}

	if math.Abs(info.Duration-0.1) > 0.001 {
		t.Errorf("Expected duration 0.100, got %.3f", info.Duration)
	}
}

func TestDecodeWAV(t *testing.T) {
	pcm := []byte{0x64, 0x00, 0x38, 0xff, 0x2c, 0x01}

	wavData, err := EncodeWAV(pcm, 8000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, sampleRate, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if sampleRate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", sampleRate)
	}

	if !bytes.Equal(decoded, pcm) {
		t.Errorf("Expected PCM %v, got %v", pcm, decoded)
	}
}

func TestEncodeWAVInvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		pcm        []byte
		sampleRate int
		channels   int
	}{
		{"empty data", []byte{}, 16000, 1},
		{"odd length", []byte{1, 2, 3}, 16000, 1},
		{"zero sample rate", []byte{1, 2}, 0, 1},
		{"negative sample rate", []byte{1, 2}, -1000, 1},
		{"zero channels", []byte{1, 2}, 16000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeWAV(tt.pcm, tt.sampleRate, tt.channels); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestValidateWAV(t *testing.T) {
	if err := ValidateWAV([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for too short WAV data")
	}

	invalidWAV := make([]byte, 50)
	copy(invalidWAV[0:4], []byte("FAKE"))
	if err := ValidateWAV(invalidWAV); err == nil {
		t.Error("Expected error for invalid RIFF header")
	}
}

func TestGetWAVInfoOneSecond(t *testing.T) {
	sampleRate := 16000
	pcm := make([]byte, sampleRate*2) // 1 second of silence

	wavData, err := EncodeWAV(pcm, sampleRate, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("GetWAVInfo failed: %v", err)
	}

	if info.NumSamples != uint32(sampleRate) {
		t.Errorf("Expected %d samples, got %d", sampleRate, info.NumSamples)
	}

	if math.Abs(info.Duration-1.0) > 0.001 {
		t.Errorf("Expected duration 1.000, got %.3f", info.Duration)
	}
}
