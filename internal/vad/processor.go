package vad

import (
	"fmt"
	"math"
	"time"
)

// Processor estimates voice activity in PCM-16 audio from windowed RMS
// energy. It is stateless between calls and safe for concurrent use.
type Processor struct {
	threshold   float64 // Voice probability at or above which a window counts as voice
	windowSize  int     // Samples per window
	overlapSize int     // Overlap samples between consecutive windows
	sampleRate  int
	smoothing   float64 // Weight of the current window against the previous result
	fullScale   float64 // RMS that maps to probability 1
}

// Config contains detection parameters
type Config struct {
	Threshold  float64       // 0..1, default 0.5
	Window     time.Duration // default 32ms
	SampleRate int           // Hz
}

// Result summarises the voice activity of one buffer
type Result struct {
	Windows      int       `json:"windows"`
	VoiceWindows int       `json:"voice_windows"`
	VoiceRatio   float64   `json:"voice_ratio"`
	Segments     []Segment `json:"segments,omitempty"`
}

// Segment is a continuous run of voice windows
type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Duration returns the length of the segment
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// HasVoice reports whether any window was classified as voice
func (r Result) HasVoice() bool {
	return r.VoiceWindows > 0
}

// SpeechDuration returns the total length of all segments
func (r Result) SpeechDuration() time.Duration {
	var total time.Duration
	for _, s := range r.Segments {
		total += s.Duration()
	}
	return total
}

// NewProcessor creates a voice activity processor
func NewProcessor(cfg Config) (*Processor, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.5
	}
	if cfg.Window == 0 {
		cfg.Window = 32 * time.Millisecond
	}

	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %f", cfg.Threshold)
	}

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}

	windowSize := int(cfg.Window.Seconds() * float64(cfg.SampleRate))
	if windowSize < 2 {
		return nil, fmt.Errorf("window of %v is too short at %d Hz", cfg.Window, cfg.SampleRate)
	}

	return &Processor{
		threshold:   cfg.Threshold,
		windowSize:  windowSize,
		overlapSize: windowSize / 2, // 50% overlap
		sampleRate:  cfg.SampleRate,
		smoothing:   0.5,
		fullScale:   2000,
	}, nil
}

// Process classifies overlapping windows of little-endian PCM-16 audio and
// merges consecutive voice windows into segments. A trailing partial window
// is ignored.
func (p *Processor) Process(pcm []byte) Result {
	samples := len(pcm) / 2
	step := p.windowSize - p.overlapSize

	var (
		result  Result
		last    float64
		current *Segment
	)

	for start := 0; start+p.windowSize <= samples; start += step {
		probability := p.probability(pcm[2*start : 2*(start+p.windowSize)])
		if result.Windows > 0 {
			probability = p.smoothing*probability + (1-p.smoothing)*last
		}
		last = probability
		result.Windows++

		at := p.offset(start)
		if probability >= p.threshold {
			result.VoiceWindows++
			if current == nil {
				current = &Segment{Start: at}
			}
			current.End = p.offset(start + p.windowSize)
			continue
		}

		if current != nil {
			result.Segments = append(result.Segments, *current)
			current = nil
		}
	}

	if current != nil {
		result.Segments = append(result.Segments, *current)
	}

	if result.Windows > 0 {
		result.VoiceRatio = float64(result.VoiceWindows) / float64(result.Windows)
	}

	return result
}

// probability maps the RMS energy of one window onto 0..1
func (p *Processor) probability(window []byte) float64 {
	n := len(window) / 2
	var energy float64
	for i := 0; i < n; i++ {
		s := float64(int16(uint16(window[2*i]) | uint16(window[2*i+1])<<8))
		energy += s * s
	}
	rms := math.Sqrt(energy / float64(n))
	return math.Min(rms/p.fullScale, 1)
}

func (p *Processor) offset(sample int) time.Duration {
	return time.Duration(sample) * time.Second / time.Duration(p.sampleRate)
}

// GetThreshold returns the voice detection threshold
func (p *Processor) GetThreshold() float64 {
	return p.threshold
}

// GetWindowSize returns the window size in samples
func (p *Processor) GetWindowSize() int {
	return p.windowSize
}

// GetOverlapSize returns the overlap size in samples
func (p *Processor) GetOverlapSize() int {
	return p.overlapSize
}
