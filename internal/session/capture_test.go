package session

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveensnsgroups/ai-powered-mom/internal/device"
	"github.com/naveensnsgroups/ai-powered-mom/internal/device/devicetest"
	"github.com/naveensnsgroups/ai-powered-mom/internal/transcription"
)

func TestLateCallbackAfterStopIsIgnored(t *testing.T) {
	dev := devicetest.New()
	s, m := newTestSession(t, dev, &fakeTranscriber{})

	record(t, s, dev, payload(600, 1), payload(600, 2))
	stream := dev.LastStream()
	before := s.Snapshot()

	stream.Emit(payload(600, 3))

	after := s.Snapshot()
	assert.Equal(t, before.Chunks, after.Chunks)
	assert.Equal(t, before.TotalBytes, after.TotalBytes)
	assert.Equal(t, Stopped, after.State)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LateChunksDropped))
}

func TestLateCallbackFromPreviousStreamIsIgnored(t *testing.T) {
	dev := devicetest.New()
	s, _ := newTestSession(t, dev, &fakeTranscriber{})

	record(t, s, dev, payload(600, 1))
	old := dev.LastStream()

	require.NoError(t, s.StartRecording(context.Background()))
	current := dev.LastStream()
	require.NotSame(t, old, current)

	old.Emit(payload(600, 2))
	current.Emit(payload(10, 3))

	snap := s.Snapshot()
	require.Len(t, snap.Chunks, 1)
	assert.Equal(t, 0, snap.Chunks[0].SequenceIndex)
	assert.Equal(t, 10, snap.Chunks[0].SizeBytes)
}

func TestLateCallbackAfterResetIsIgnored(t *testing.T) {
	dev := devicetest.New()
	s, _ := newTestSession(t, dev, &fakeTranscriber{})

	require.NoError(t, s.StartRecording(context.Background()))
	stream := dev.LastStream()
	stream.Emit(payload(100, 1))

	s.Reset()
	stream.Emit(payload(100, 2))

	assertPristine(t, s)
	assert.True(t, stream.Released())
}

func TestEmptyPayloadIsIgnored(t *testing.T) {
	dev := devicetest.New()
	s, _ := newTestSession(t, dev, &fakeTranscriber{})

	require.NoError(t, s.StartRecording(context.Background()))
	dev.LastStream().Emit(nil)
	dev.LastStream().Emit([]byte{})
	dev.LastStream().Emit([]byte{1})

	snap := s.Snapshot()
	require.Len(t, snap.Chunks, 1)
	assert.Equal(t, 0, snap.Chunks[0].SequenceIndex)
}

func TestStopIsNoOpUnlessRecording(t *testing.T) {
	dev := devicetest.New()
	s, _ := newTestSession(t, dev, &fakeTranscriber{})

	require.NoError(t, s.StopRecording(context.Background()))
	assert.Equal(t, Idle, s.State())

	record(t, s, dev, payload(10, 1))
	require.NoError(t, s.StopRecording(context.Background()))
	assert.Equal(t, Stopped, s.State())
	assert.Len(t, s.Snapshot().Chunks, 1)
}

func TestStartFromTerminalStateClearsPreviousRecording(t *testing.T) {
	dev := devicetest.New()
	client := &fakeTranscriber{result: speechResult()}
	s, _ := newTestSession(t, dev, client)

	record(t, s, dev, payload(1200, 1))
	require.NoError(t, s.Submit(context.Background()))
	completed := s.Snapshot()
	require.Equal(t, Completed, completed.State)

	require.NoError(t, s.StartRecording(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, Recording, snap.State)
	assert.NotEqual(t, completed.ID, snap.ID)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Chunks)
	assert.Nil(t, snap.StoppedAt)
}

func TestStartFromFailedState(t *testing.T) {
	dev := devicetest.New()
	dev.OpenErr = device.ErrPermissionDenied
	s, _ := newTestSession(t, dev, &fakeTranscriber{})

	require.Error(t, s.StartRecording(context.Background()))
	require.Equal(t, Failed, s.State())

	dev.OpenErr = nil
	require.NoError(t, s.StartRecording(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, Recording, snap.State)
	assert.Empty(t, snap.ErrorMessage)
	assert.Equal(t, FailureNone, snap.Failure)
}

func TestTestDeviceAccess(t *testing.T) {
	dev := devicetest.New()
	s, _ := newTestSession(t, dev, &fakeTranscriber{})

	require.NoError(t, s.TestDeviceAccess(context.Background()))

	assertPristine(t, s)
	assert.Equal(t, 1, dev.Opens())
	assert.True(t, dev.LastStream().Released())
	assert.False(t, dev.LastStream().Started())
}

func TestTestDeviceAccessFailureLeavesSessionIdle(t *testing.T) {
	dev := devicetest.New()
	dev.OpenErr = device.ErrPermissionDenied
	s, _ := newTestSession(t, dev, &fakeTranscriber{})

	err := s.TestDeviceAccess(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assertPristine(t, s)
}

func TestTestDeviceAccessPassesThroughMicrophoneTesting(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	dev := devicetest.New()
	dev.OpenHook = func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}
	s, _ := newTestSession(t, dev, &fakeTranscriber{})

	done := make(chan error, 1)
	go func() { done <- s.TestDeviceAccess(context.Background()) }()
	<-entered

	assert.Equal(t, MicrophoneTesting, s.State())
	assert.ErrorIs(t, s.StartRecording(context.Background()), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Idle, s.State())
}

func TestTestDeviceAccessRejectedWhileRecording(t *testing.T) {
	dev := devicetest.New()
	s, _ := newTestSession(t, dev, &fakeTranscriber{})

	require.NoError(t, s.StartRecording(context.Background()))
	assert.ErrorIs(t, s.TestDeviceAccess(context.Background()), ErrBusy)
	assert.Equal(t, 1, dev.Opens())
}

// reachState drives a fresh session into the wanted state. Blocking states
// return a cleanup that unblocks the pending operation.
func reachState(t *testing.T, want State) (*Session, *devicetest.Device, func()) {
	t.Helper()
	dev := devicetest.New()
	client := &fakeTranscriber{result: speechResult()}
	noop := func() {}

	switch want {
	case Idle:
		s, _ := newTestSession(t, dev, client)
		return s, dev, noop

	case MicrophoneTesting:
		entered := make(chan struct{})
		release := make(chan struct{})
		dev.OpenHook = func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		}
		s, _ := newTestSession(t, dev, client)
		done := make(chan struct{})
		go func() {
			s.TestDeviceAccess(context.Background())
			close(done)
		}()
		<-entered
		return s, dev, func() { close(release); <-done }

	case Recording:
		s, _ := newTestSession(t, dev, client)
		require.NoError(t, s.StartRecording(context.Background()))
		dev.LastStream().Emit(payload(1500, 1))
		return s, dev, noop

	case Stopped:
		s, _ := newTestSession(t, dev, client)
		record(t, s, dev, payload(1500, 1))
		return s, dev, noop

	case Submitting:
		client.entered = make(chan struct{})
		client.release = make(chan struct{})
		s, _ := newTestSession(t, dev, client)
		record(t, s, dev, payload(1500, 1))
		done := make(chan struct{})
		go func() {
			s.Submit(context.Background())
			close(done)
		}()
		<-client.entered
		return s, dev, func() { close(client.release); <-done }

	case Completed:
		s, _ := newTestSession(t, dev, client)
		record(t, s, dev, payload(1500, 1))
		require.NoError(t, s.Submit(context.Background()))
		return s, dev, noop

	case Failed:
		client.result = &transcription.Result{Transcript: "  "}
		s, _ := newTestSession(t, dev, client)
		record(t, s, dev, payload(1500, 1))
		require.ErrorIs(t, s.Submit(context.Background()), ErrNoSpeechDetected)
		return s, dev, noop
	}

	t.Fatalf("unhandled state %s", want)
	return nil, nil, nil
}

func TestResetFromEveryState(t *testing.T) {
	for _, state := range AllStates {
		t.Run(state.String(), func(t *testing.T) {
			s, dev, unblock := reachState(t, state)
			require.Equal(t, state, s.State())

			s.Reset()
			assertPristine(t, s)

			// Idempotent
			s.Reset()
			assertPristine(t, s)

			unblock()
			assertPristine(t, s)

			for _, stream := range dev.Streams() {
				assert.True(t, stream.Released(), "every device handle is released")
			}
		})
	}
}
