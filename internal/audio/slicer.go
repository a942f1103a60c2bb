package audio

import "sync"

// Slicer accumulates a continuous byte stream and cuts it into timeslices.
// Writes come from the device reader, cuts from the emission timer.
type Slicer struct {
	pending []byte
	align   int // Cut boundary in bytes; 1 for compressed containers

	slices     uint64
	totalBytes uint64

	mu sync.Mutex
}

// SlicerStats represents slicer statistics
type SlicerStats struct {
	Slices     uint64 `json:"slices"`
	TotalBytes uint64 `json:"total_bytes"`
	Pending    int    `json:"pending_bytes"`
}

// NewSlicer creates a slicer whose cuts are multiples of align bytes.
// PCM-16 mono uses 2 so every slice holds whole samples.
func NewSlicer(align int) *Slicer {
	if align <= 0 {
		align = 1
	}
	return &Slicer{align: align}
}

// Write appends stream data
func (s *Slicer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, p...)
	return len(p), nil
}

// Cut returns the aligned part of the pending data, or nil if there is none.
// A partial frame stays pending for the next cut.
func (s *Slicer) Cut() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.pending) - len(s.pending)%s.align
	if n == 0 {
		return nil
	}

	return s.take(n)
}

// Flush returns everything still pending, aligned or not
func (s *Slicer) Flush() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	return s.take(len(s.pending))
}

func (s *Slicer) take(n int) []byte {
	out := make([]byte, n)
	copy(out, s.pending[:n])

	rest := copy(s.pending, s.pending[n:])
	s.pending = s.pending[:rest]

	s.slices++
	s.totalBytes += uint64(n)
	return out
}

// HasPending reports whether data is waiting for the next cut
func (s *Slicer) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// GetStats returns slicer statistics
func (s *Slicer) GetStats() SlicerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SlicerStats{
		Slices:     s.slices,
		TotalBytes: s.totalBytes,
		Pending:    len(s.pending),
	}
}
