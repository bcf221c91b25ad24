package encoder

import (
	"math"
	"testing"
)

func TestDump(t *testing.T) {
	d, err := NewDump()
	if err != nil {
		t.Fatalf("NewDump: %v", err)
	}

	block := make([]float32, BlockSize)
	for i := range block {
		block[i] = 0.25 * float32(math.Sin(2*math.Pi*220*float64(i)/SampleRate))
	}

	var totalFed uint64
	for range 4 {
		samples := Samples(block)
		if err := d.WriteBlock(samples); err != nil {
			t.Fatalf("WriteBlock: %v", err)
		}
		totalFed += uint64(len(samples))
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if d.TotalSamples() != totalFed {
		t.Errorf("TotalSamples = %d, want %d", d.TotalSamples(), totalFed)
	}

	flacData := d.Bytes()
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestDumpEmpty(t *testing.T) {
	d, err := NewDump()
	if err != nil {
		t.Fatalf("NewDump: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close on empty dump: %v", err)
	}
	if d.TotalSamples() != 0 {
		t.Errorf("TotalSamples = %d, want 0", d.TotalSamples())
	}
	if len(d.Bytes()) == 0 {
		t.Error("expected non-empty output (at least header)")
	}
}

func TestDumpPartialBlock(t *testing.T) {
	d, err := NewDump()
	if err != nil {
		t.Fatalf("NewDump: %v", err)
	}

	partial := make([]int16, BlockSize/4)
	for i := range partial {
		partial[i] = int16(i % 1000)
	}

	if err := d.WriteBlock(partial); err != nil {
		t.Fatalf("WriteBlock partial: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d.TotalSamples() != uint64(len(partial)) {
		t.Errorf("TotalSamples = %d, want %d", d.TotalSamples(), len(partial))
	}
}
