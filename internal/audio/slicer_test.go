package audio

import (
	"bytes"
	"testing"
)

func TestSlicerCutAligned(t *testing.T) {
	slicer := NewSlicer(2)

	slicer.Write([]byte{1, 2, 3})

	got := slicer.Cut()
	if !bytes.Equal(got, []byte{1, 2}) {
		t.Errorf("Expected [1 2], got %v", got)
	}

	if !slicer.HasPending() {
		t.Error("Expected odd byte to stay pending")
	}

	slicer.Write([]byte{4})
	got = slicer.Cut()
	if !bytes.Equal(got, []byte{3, 4}) {
		t.Errorf("Expected [3 4], got %v", got)
	}
}

func TestSlicerCutEmpty(t *testing.T) {
	slicer := NewSlicer(2)

	if got := slicer.Cut(); got != nil {
		t.Errorf("Expected nil cut on empty slicer, got %v", got)
	}

	slicer.Write([]byte{1})
	if got := slicer.Cut(); got != nil {
		t.Errorf("Expected nil cut with only a partial frame, got %v", got)
	}
}

func TestSlicerFlush(t *testing.T) {
	slicer := NewSlicer(4)
	slicer.Write([]byte{1, 2, 3, 4, 5})

	slicer.Cut()
	got := slicer.Flush()
	if !bytes.Equal(got, []byte{5}) {
		t.Errorf("Expected flush [5], got %v", got)
	}

	if slicer.Flush() != nil {
		t.Error("Expected nil on second flush")
	}

	stats := slicer.GetStats()
	if stats.Slices != 2 || stats.TotalBytes != 5 || stats.Pending != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestSlicerCutIsIndependentCopy(t *testing.T) {
	slicer := NewSlicer(1)
	slicer.Write([]byte{1, 2})
	first := slicer.Cut()

	slicer.Write([]byte{3, 4})
	second := slicer.Cut()

	if !bytes.Equal(first, []byte{1, 2}) {
		t.Errorf("First cut changed after later writes: %v", first)
	}
	if !bytes.Equal(second, []byte{3, 4}) {
		t.Errorf("Expected second cut [3 4], got %v", second)
	}
}
