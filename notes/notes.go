package notes

import (
	"strings"
	"sync"
)

// Notebook accumulates per-turn summaries. Summarization requests complete
// in arbitrary order, so results are keyed by turn index and appended to the
// buffer only once every earlier turn has either arrived or been skipped.
type Notebook struct {
	mu      sync.Mutex
	buf     strings.Builder
	pending map[int]string
	skipped map[int]bool
	next    int
}

func New() *Notebook {
	return &Notebook{
		pending: make(map[int]string),
		skipped: make(map[int]bool),
	}
}

// Add records the summary for one turn and appends every newly-contiguous
// result to the buffer in turn order.
func (n *Notebook) Add(turn int, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending[turn] = text
	n.drain()
}

// Skip marks a turn whose summarization failed so later turns are not held
// back waiting for it.
func (n *Notebook) Skip(turn int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.skipped[turn] = true
	n.drain()
}

func (n *Notebook) drain() {
	for {
		if n.skipped[n.next] {
			delete(n.skipped, n.next)
			n.next++
			continue
		}
		text, ok := n.pending[n.next]
		if !ok {
			return
		}
		delete(n.pending, n.next)
		if n.buf.Len() > 0 {
			n.buf.WriteString("\n")
		}
		n.buf.WriteString(strings.TrimRight(text, " \t\r\n"))
		n.next++
	}
}

// Text returns the notes accumulated so far, in turn order.
func (n *Notebook) Text() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.buf.String()
}

// Reset clears all state for a fresh session attempt.
func (n *Notebook) Reset() {
	n.mu.Lock()
	n.buf.Reset()
	n.pending = make(map[int]string)
	n.skipped = make(map[int]bool)
	n.next = 0
	n.mu.Unlock()
}
