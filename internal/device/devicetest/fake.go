// Package devicetest provides an in-memory device whose emissions are driven
// by the caller. It backs the session tests and the --fake-device demo mode.
package devicetest

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/naveensnsgroups/ai-powered-mom/internal/device"
)

// Device is a scripted audio input
type Device struct {
	// Supported lists the encodings the device accepts. Empty means all.
	Supported []string

	// OpenErr, when set, is returned by Open
	OpenErr error

	// OpenHook runs inside Open before the stream is created. Tests use it to
	// hold the device in the acquiring phase.
	OpenHook func(ctx context.Context) error

	// StartErr, when set, is returned by Stream.Start
	StartErr error

	// ReleaseErr, when set, is returned by every Stream.Release
	ReleaseErr error

	// Tail is delivered through the callback when a stream stops
	Tail []byte

	// Generate, when set, is called every interval after Start and its
	// result emitted. Used for demos without a microphone.
	Generate func(seq int) []byte

	opens       int
	constraints device.Constraints
	streams     []*Stream

	mu sync.Mutex
}

// New creates a fake device supporting the given encodings
func New(supported ...string) *Device {
	return &Device{Supported: supported}
}

// Name returns "fake"
func (d *Device) Name() string {
	return "fake"
}

// Supports reports whether encoding is in Supported
func (d *Device) Supports(encoding string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.Supported) == 0 {
		return true
	}
	for _, s := range d.Supported {
		if s == encoding {
			return true
		}
	}
	return false
}

// Open returns a new stream unless OpenErr or OpenHook fail
func (d *Device) Open(ctx context.Context, c device.Constraints) (device.Stream, error) {
	d.mu.Lock()
	d.opens++
	d.constraints = c
	hook := d.OpenHook
	openErr := d.OpenErr
	d.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if openErr != nil {
		return nil, openErr
	}

	s := &Stream{device: d}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

// Opens returns how many times Open was called
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Constraints returns the constraints passed to the last Open
func (d *Device) Constraints() device.Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.constraints
}

// Streams returns every stream opened so far
func (d *Device) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Stream(nil), d.streams...)
}

// LastStream returns the most recently opened stream or nil
func (d *Device) LastStream() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// Stream is a fake input handle
type Stream struct {
	device *Device

	onData   func([]byte)
	encoding string
	interval time.Duration

	started  bool
	stopped  bool
	releases int

	genStop chan struct{}
	genDone chan struct{}

	mu sync.Mutex
}

// Start records the callback. It never emits on its own unless the device
// has a Generate function.
func (s *Stream) Start(encoding string, interval time.Duration, onData func([]byte)) error {
	s.device.mu.Lock()
	startErr := s.device.StartErr
	generate := s.device.Generate
	s.device.mu.Unlock()

	if startErr != nil {
		return startErr
	}

	s.mu.Lock()
	s.onData = onData
	s.encoding = encoding
	s.interval = interval
	s.started = true
	s.mu.Unlock()

	if generate != nil {
		s.genStop = make(chan struct{})
		s.genDone = make(chan struct{})
		go s.generate(generate, interval)
	}
	return nil
}

func (s *Stream) generate(fn func(int) []byte, interval time.Duration) {
	defer close(s.genDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		select {
		case <-ticker.C:
			s.Emit(fn(seq))
		case <-s.genStop:
			return
		}
	}
}

// Emit calls the registered callback with data, regardless of whether the
// stream was stopped or released. This is how tests reproduce late
// callbacks. It returns false if Start was never called.
func (s *Stream) Emit(data []byte) bool {
	s.mu.Lock()
	cb := s.onData
	s.mu.Unlock()

	if cb == nil {
		return false
	}
	cb(data)
	return true
}

// Stop halts generation and delivers the device Tail
func (s *Stream) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	if s.genStop != nil {
		close(s.genStop)
		<-s.genDone
	}

	s.device.mu.Lock()
	tail := s.device.Tail
	s.device.mu.Unlock()

	if len(tail) > 0 {
		s.Emit(tail)
	}
	return nil
}

// Release counts releases and halts generation without waiting for it, so
// it may be called while the callback's owner holds its own lock
func (s *Stream) Release() error {
	s.mu.Lock()
	s.releases++
	stopGen := s.genStop != nil && !s.stopped
	s.stopped = true
	s.mu.Unlock()

	if stopGen {
		close(s.genStop)
	}
	return s.device.ReleaseErr
}

// Started reports whether Start succeeded
func (s *Stream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stopped reports whether Stop or Release was called
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Released reports whether Release was called at least once
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases > 0
}

// Encoding returns the encoding passed to Start
func (s *Stream) Encoding() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoding
}

// Interval returns the interval passed to Start
func (s *Stream) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Tone returns a Generate function producing interval-long PCM-16 sine
// segments at the given sample rate
func Tone(sampleRate int, frequency float64, interval time.Duration) func(int) []byte {
	samples := int(float64(sampleRate) * interval.Seconds())
	return func(seq int) []byte {
		out := make([]byte, samples*2)
		offset := seq * samples
		for i := 0; i < samples; i++ {
			t := float64(offset+i) / float64(sampleRate)
			v := int16(8000 * math.Sin(2*math.Pi*frequency*t))
			binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
		}
		return out
	}
}
