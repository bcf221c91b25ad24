package encoder

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// Dump losslessly records the capture stream for diagnostics. It receives
// the same integer blocks the framer encodes for transport.
type Dump struct {
	buf          bytes.Buffer
	enc          *flac.Encoder
	totalSamples uint64
	mu           sync.Mutex
}

func NewDump() (*Dump, error) {
	d := &Dump{}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
		NSamples:      0,
	}
	enc, err := flac.NewEncoder(&d.buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	d.enc = enc
	return d, nil
}

func (d *Dump) WriteBlock(block []int16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	samples32 := make([]int32, len(block))
	for i, s := range block {
		samples32[i] = int32(s)
	}

	subframe := &frame.Subframe{
		SubHeader: frame.SubHeader{
			Pred: frame.PredVerbatim,
		},
		Samples:  samples32,
		NSamples: len(block),
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{subframe},
	}

	if err := d.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	d.totalSamples += uint64(len(block))
	return nil
}

func (d *Dump) Close() error {
	return d.enc.Close()
}

func (d *Dump) Bytes() []byte {
	return d.buf.Bytes()
}

func (d *Dump) TotalSamples() uint64 {
	return d.totalSamples
}
