package encoder

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

func TestEncodeBlockRoundTrip(t *testing.T) {
	block := make([]float32, BlockSize)
	for i := range block {
		block[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / SampleRate))
	}

	f := EncodeBlock(block)

	pcm, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if len(pcm) != BlockSize*2 {
		t.Fatalf("payload = %d bytes, want %d", len(pcm), BlockSize*2)
	}

	for i, s := range block {
		got := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		want := Sample(s)
		if got != want {
			t.Fatalf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestEncodeBlockMIMETag(t *testing.T) {
	f := EncodeBlock([]float32{0})
	if f.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("MIMEType = %q, want %q", f.MIMEType, "audio/pcm;rate=16000")
	}
	if !strings.Contains(f.MIMEType, "16000") {
		t.Error("MIME tag should carry the sample rate")
	}
}

func TestSampleClamping(t *testing.T) {
	for _, tt := range []struct {
		input float32
		want  int16
	}{
		{0, 0},
		{0.5, 16384},
		{-0.5, -16384},
		{-1.0, -32768},
		{1.0, 32767},  // 32768 is out of range, clamps
		{1.5, 32767},  // beyond full scale
		{-1.5, -32768},
	} {
		if got := Sample(tt.input); got != tt.want {
			t.Errorf("Sample(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestEncodeBlockOneFramePerBlock(t *testing.T) {
	// A short block produces a short frame, never padding to BlockSize.
	short := make([]float32, 100)
	f := EncodeBlock(short)
	pcm, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if len(pcm) != 200 {
		t.Errorf("payload = %d bytes, want 200", len(pcm))
	}
}
