package transcript

import (
	"strings"
	"sync"
)

// Separator ends every committed turn.
const Separator = "\n\n"

// Aggregator accumulates transcript fragments for the turn in progress and
// commits them when the service signals a turn boundary. Fragments are
// appended in arrival order; a boundary commits the trimmed turn text plus
// one separator exactly once.
type Aggregator struct {
	mu        sync.Mutex
	live      strings.Builder
	committed strings.Builder
	turns     int
}

func New() *Aggregator {
	return &Aggregator{}
}

// OnFragment appends one fragment to the live buffer.
func (a *Aggregator) OnFragment(text string) {
	a.mu.Lock()
	a.live.WriteString(text)
	a.mu.Unlock()
}

// OnTurnComplete commits the live buffer and returns the trimmed turn text
// for summarization, along with its zero-based turn index. An empty turn
// (no fragments, or a duplicate boundary) still appends a separator but
// returns ok=false so nothing is summarized twice.
func (a *Aggregator) OnTurnComplete() (chunk string, turn int, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	chunk = strings.TrimRight(a.live.String(), " \t\r\n")
	a.committed.WriteString(chunk)
	a.committed.WriteString(Separator)
	a.live.Reset()

	if chunk == "" {
		return "", 0, false
	}
	turn = a.turns
	a.turns++
	return chunk, turn, true
}

// Flush moves any partially-accumulated live text into the committed
// transcript without marking a turn. Used when a session stops mid-turn.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.live.Len() == 0 {
		return
	}
	a.committed.WriteString(strings.TrimRight(a.live.String(), " \t\r\n"))
	a.committed.WriteString(Separator)
	a.live.Reset()
}

// Reset clears all state for a fresh session attempt.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.live.Reset()
	a.committed.Reset()
	a.turns = 0
	a.mu.Unlock()
}

// Live returns the text of the turn in progress.
func (a *Aggregator) Live() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live.String()
}

// Committed returns the transcript of all completed turns.
func (a *Aggregator) Committed() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed.String()
}

// Display returns the committed transcript with the live turn appended,
// which is what the UI shows while recording.
func (a *Aggregator) Display() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed.String() + a.live.String()
}

// Turns returns the number of non-empty turns committed so far.
func (a *Aggregator) Turns() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.turns
}
