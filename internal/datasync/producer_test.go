package datasync

import "testing"

func TestDrainToNewestHeader(t *testing.T) {
	ch := make(chan BlockHeader, 4)
	ch <- BlockHeader{Number: 101}
	ch <- BlockHeader{Number: 99}
	ch <- BlockHeader{Number: 103}

	got := drainToNewestHeader(ch, BlockHeader{Number: 100})
	if got.Number != 103 {
		t.Errorf("Number = %d, want 103", got.Number)
	}
	if len(ch) != 0 {
		t.Errorf("channel still holds %d headers", len(ch))
	}
}

func TestDrainToNewestHeader_EmptyChannel(t *testing.T) {
	ch := make(chan BlockHeader, 1)
	got := drainToNewestHeader(ch, BlockHeader{Number: 5})
	if got.Number != 5 {
		t.Errorf("Number = %d, want 5", got.Number)
	}
}
