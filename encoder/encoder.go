package encoder

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// MIMEType tags every frame with the PCM layout the transcription service
// expects alongside the payload.
var MIMEType = fmt.Sprintf("audio/pcm;rate=%d", SampleRate)

// Frame is one capture block encoded for transport: base64 of the
// little-endian 16-bit samples plus the MIME tag. Frames are values;
// nothing retains them after they are sent.
type Frame struct {
	Data     string
	MIMEType string
}

// Sample converts one float sample in [-1, 1] to 16-bit PCM. Out-of-range
// input is clamped rather than wrapped.
func Sample(s float32) int16 {
	v := int32(s * 32768)
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// Samples converts a whole block to its integer representation.
func Samples(block []float32) []int16 {
	out := make([]int16, len(block))
	for i, s := range block {
		out[i] = Sample(s)
	}
	return out
}

// EncodeBlock turns one capture block into exactly one Frame. Blocks are
// never buffered, split, or coalesced across calls.
func EncodeBlock(block []float32) Frame {
	pcm := make([]byte, len(block)*2)
	for i, s := range block {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(Sample(s)))
	}
	return Frame{
		Data:     base64.StdEncoding.EncodeToString(pcm),
		MIMEType: MIMEType,
	}
}
