package audio

// Blocker re-slices the variable-length buffers a capture backend delivers
// into fixed-size blocks. Each full block is handed to fn exactly once, in
// order; the tail remainder waits for the next push.
type Blocker struct {
	size int
	buf  []float32
	fn   BlockFunc
}

func NewBlocker(size int, fn BlockFunc) *Blocker {
	return &Blocker{size: size, fn: fn}
}

func (b *Blocker) Push(samples []float32) {
	b.buf = append(b.buf, samples...)
	for len(b.buf) >= b.size {
		block := make([]float32, b.size)
		copy(block, b.buf[:b.size])
		b.buf = b.buf[b.size:]
		b.fn(block)
	}
}

// Flush emits any buffered remainder as one short block.
func (b *Blocker) Flush() {
	if len(b.buf) == 0 {
		return
	}
	block := make([]float32, len(b.buf))
	copy(block, b.buf)
	b.buf = b.buf[:0]
	b.fn(block)
}
