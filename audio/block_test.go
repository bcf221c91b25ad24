package audio

import "testing"

func TestBlockerReslicesInOrder(t *testing.T) {
	var blocks [][]float32
	b := NewBlocker(4, func(block []float32) {
		blocks = append(blocks, block)
	})

	b.Push([]float32{1, 2})
	if len(blocks) != 0 {
		t.Fatal("emitted before a full block accumulated")
	}

	b.Push([]float32{3, 4, 5, 6, 7, 8, 9})
	if len(blocks) != 2 {
		t.Fatalf("emitted %d blocks, want 2", len(blocks))
	}
	for i, want := range [][]float32{{1, 2, 3, 4}, {5, 6, 7, 8}} {
		for j := range want {
			if blocks[i][j] != want[j] {
				t.Errorf("block %d = %v, want %v", i, blocks[i], want)
			}
		}
	}

	b.Flush()
	if len(blocks) != 3 || len(blocks[2]) != 1 || blocks[2][0] != 9 {
		t.Errorf("flush emitted %v, want remainder [9]", blocks[2:])
	}

	// Flushing again emits nothing.
	b.Flush()
	if len(blocks) != 3 {
		t.Error("second flush emitted a block")
	}
}

func TestBlockerExactMultiple(t *testing.T) {
	count := 0
	b := NewBlocker(2, func(block []float32) { count++ })
	b.Push([]float32{1, 2, 3, 4})
	if count != 2 {
		t.Errorf("emitted %d blocks, want 2", count)
	}
	b.Flush()
	if count != 2 {
		t.Error("flush after exact multiple emitted a block")
	}
}
