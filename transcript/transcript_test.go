package transcript

import "testing"

func TestFragmentsThenTurnComplete(t *testing.T) {
	a := New()
	for _, f := range []string{"Hello ", "world", "."} {
		a.OnFragment(f)
	}

	chunk, turn, ok := a.OnTurnComplete()
	if !ok {
		t.Fatal("expected a non-empty turn")
	}
	if chunk != "Hello world." {
		t.Errorf("chunk = %q, want %q", chunk, "Hello world.")
	}
	if turn != 0 {
		t.Errorf("turn = %d, want 0", turn)
	}
	if got := a.Committed(); got != "Hello world.\n\n" {
		t.Errorf("Committed() = %q, want %q", got, "Hello world.\n\n")
	}
	if a.Live() != "" {
		t.Errorf("live buffer not empty after commit: %q", a.Live())
	}
}

func TestTrailingWhitespaceTrimmed(t *testing.T) {
	a := New()
	a.OnFragment("word ")
	a.OnFragment("  \n")

	chunk, _, ok := a.OnTurnComplete()
	if !ok {
		t.Fatal("expected a non-empty turn")
	}
	if chunk != "word" {
		t.Errorf("chunk = %q, want %q", chunk, "word")
	}
	if got := a.Committed(); got != "word\n\n" {
		t.Errorf("Committed() = %q, want %q", got, "word\n\n")
	}
}

func TestDuplicateTurnBoundary(t *testing.T) {
	a := New()
	a.OnFragment("once")
	if _, _, ok := a.OnTurnComplete(); !ok {
		t.Fatal("first boundary should commit a turn")
	}

	// Back-to-back boundary with no fragments: separator only, no chunk.
	chunk, _, ok := a.OnTurnComplete()
	if ok {
		t.Errorf("second boundary produced chunk %q, want none", chunk)
	}
	if got := a.Committed(); got != "once\n\n\n\n" {
		t.Errorf("Committed() = %q, want %q", got, "once\n\n\n\n")
	}
	if a.Turns() != 1 {
		t.Errorf("Turns() = %d, want 1", a.Turns())
	}
}

func TestTurnIndicesIncrement(t *testing.T) {
	a := New()
	for i := range 3 {
		a.OnFragment("turn")
		_, turn, ok := a.OnTurnComplete()
		if !ok {
			t.Fatalf("turn %d did not commit", i)
		}
		if turn != i {
			t.Errorf("turn index = %d, want %d", turn, i)
		}
	}
}

func TestFlushMidTurn(t *testing.T) {
	a := New()
	a.OnFragment("first")
	a.OnTurnComplete()
	a.OnFragment("partial ")

	a.Flush()
	if got := a.Committed(); got != "first\n\npartial\n\n" {
		t.Errorf("Committed() = %q, want %q", got, "first\n\npartial\n\n")
	}
	if a.Live() != "" {
		t.Error("live buffer should be empty after flush")
	}

	// Flushing an empty live buffer changes nothing.
	before := a.Committed()
	a.Flush()
	if a.Committed() != before {
		t.Error("empty flush modified the committed transcript")
	}
}

func TestDisplayShowsLiveTurn(t *testing.T) {
	a := New()
	a.OnFragment("done")
	a.OnTurnComplete()
	a.OnFragment("in progress")

	if got := a.Display(); got != "done\n\nin progress" {
		t.Errorf("Display() = %q, want %q", got, "done\n\nin progress")
	}
}

func TestReset(t *testing.T) {
	a := New()
	a.OnFragment("old")
	a.OnTurnComplete()
	a.Reset()

	if a.Committed() != "" || a.Live() != "" || a.Turns() != 0 {
		t.Error("Reset did not clear all state")
	}
}
