package audio

import (
	"fmt"
	"sync"
	"time"
)

// Chunk is one contiguous segment of captured audio
type Chunk struct {
	Data          []byte    `json:"-"`
	SequenceIndex int       `json:"sequence_index"`
	CapturedAt    time.Time `json:"-"`
	SizeBytes     int       `json:"size_bytes"`
	Encoding      string    `json:"encoding"`
}

// CapturedAtMillis returns the capture wall-clock time in Unix milliseconds
func (c Chunk) CapturedAtMillis() int64 {
	return c.CapturedAt.UnixMilli()
}

// ChunkInfo is the read-only projection of a chunk handed to presentation
type ChunkInfo struct {
	SequenceIndex    int     `json:"sequence_index"`
	CapturedAtMillis int64   `json:"captured_at_millis"`
	SizeBytes        int     `json:"size_bytes"`
	Encoding         string  `json:"encoding"`
	PeakAmplitude    float64 `json:"peak_amplitude,omitempty"`
}

// ChunkBuffer holds the chunks of one recording in strict capture order
type ChunkBuffer struct {
	chunks     []Chunk
	nextSeq    int // Next expected sequence index
	totalBytes int

	lastUpdate time.Time // When the last chunk was appended; zero when empty

	mu sync.RWMutex
}

// BufferStats represents buffer statistics for monitoring
type BufferStats struct {
	Chunks     int       `json:"chunks"`
	TotalBytes int       `json:"total_bytes"`
	NextSeq    int       `json:"next_sequence"`
	LastUpdate time.Time `json:"last_update"`
}

// NewChunkBuffer creates an empty chunk buffer
func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{
		chunks: make([]Chunk, 0, 64),
	}
}

// Next returns the sequence index the next appended chunk must carry
func (b *ChunkBuffer) Next() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Append adds a chunk to the end of the buffer. The chunk must carry the next
// expected sequence index; anything else is rejected so order is never broken.
func (b *ChunkBuffer) Append(chunk Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if chunk.SequenceIndex != b.nextSeq {
		return fmt.Errorf("out of order chunk: seq=%d, expected=%d", chunk.SequenceIndex, b.nextSeq)
	}

	if len(chunk.Data) == 0 {
		return fmt.Errorf("chunk %d has no data", chunk.SequenceIndex)
	}

	// Own the payload; device buffers are often reused
	data := make([]byte, len(chunk.Data))
	copy(data, chunk.Data)
	chunk.Data = data
	chunk.SizeBytes = len(data)

	b.chunks = append(b.chunks, chunk)
	b.nextSeq++
	b.totalBytes += chunk.SizeBytes
	b.lastUpdate = time.Now()

	return nil
}

// Len returns the number of buffered chunks
func (b *ChunkBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chunks)
}

// TotalBytes returns the aggregate payload size
func (b *ChunkBuffer) TotalBytes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.totalBytes
}

// Get returns a copy of the chunk with the given sequence index
func (b *ChunkBuffer) Get(index int) (Chunk, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if index < 0 || index >= len(b.chunks) {
		return Chunk{}, false
	}

	c := b.chunks[index]
	c.Data = append([]byte(nil), c.Data...)
	return c, true
}

// Chunks returns a copy of all chunks in capture order
func (b *ChunkBuffer) Chunks() []Chunk {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Chunk, len(b.chunks))
	for i, c := range b.chunks {
		c.Data = append([]byte(nil), c.Data...)
		out[i] = c
	}
	return out
}

// Infos returns metadata for every chunk without copying payloads
func (b *ChunkBuffer) Infos() []ChunkInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]ChunkInfo, 0, len(b.chunks))
	for _, c := range b.chunks {
		info := ChunkInfo{
			SequenceIndex:    c.SequenceIndex,
			CapturedAtMillis: c.CapturedAtMillis(),
			SizeBytes:        c.SizeBytes,
			Encoding:         c.Encoding,
		}
		if IsPCM(c.Encoding) {
			info.PeakAmplitude = MeasureLevel(c.Data).Peak
		}
		infos = append(infos, info)
	}
	return infos
}

// Concat joins all payloads in sequence order
func (b *ChunkBuffer) Concat() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]byte, 0, b.totalBytes)
	for _, c := range b.chunks {
		out = append(out, c.Data...)
	}
	return out
}

// Clear drops every chunk and restarts sequence numbering at zero
func (b *ChunkBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = b.chunks[:0:0]
	b.nextSeq = 0
	b.totalBytes = 0
	b.lastUpdate = time.Time{}
}

// GetStats returns current buffer statistics
func (b *ChunkBuffer) GetStats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BufferStats{
		Chunks:     len(b.chunks),
		TotalBytes: b.totalBytes,
		NextSeq:    b.nextSeq,
		LastUpdate: b.lastUpdate,
	}
}
