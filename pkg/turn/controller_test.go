package turn

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-voicechat/internal/log"
	"github.com/teslashibe/go-voicechat/internal/metrics"
	"github.com/teslashibe/go-voicechat/pkg/audioio"
	"github.com/teslashibe/go-voicechat/pkg/clipstore"
	"github.com/teslashibe/go-voicechat/pkg/dialogue"
	"github.com/teslashibe/go-voicechat/pkg/speech"
	"github.com/teslashibe/go-voicechat/pkg/stt"
	"github.com/teslashibe/go-voicechat/pkg/tts"
)

type fakeRecorder struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{}
}

func (f *fakeRecorder) Capture(ctx context.Context, d time.Duration) (audioio.Clip, error) {
	f.mu.Lock()
	f.calls++
	block, err := f.block, f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return audioio.Clip{}, &audioio.DeviceError{Op: "start", Backend: "fake", Err: err}
	}
	n := audioio.SampleCount(d, audioio.DefaultSampleRate)
	return audioio.Clip{Samples: make([]int16, n), SampleRate: audioio.DefaultSampleRate, Channels: 1}, nil
}

func (f *fakeRecorder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, ev := range r.events {
		if ev.Kind == EventState {
			out = append(out, ev.State)
		}
	}
	return out
}

func (r *recorder) failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Kind == EventFailure {
			out = append(out, ev.Failure)
		}
	}
	return out
}

type harness struct {
	ctl     *Controller
	rec     *fakeRecorder
	stt     *stt.Mock
	session *dialogue.Mock
	tts     *tts.Mock
	sink    *audioio.MockSink
	events  *recorder
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	clip    string
}

func newHarness(t *testing.T, heard ...any) *harness {
	t.Helper()

	h := &harness{
		rec:     &fakeRecorder{},
		stt:     stt.NewMock(heard...),
		session: dialogue.NewMock(),
		tts:     tts.NewMock(),
		events:  &recorder{},
		reg:     prometheus.NewRegistry(),
		clip:    filepath.Join(t.TempDir(), clipstore.DefaultPath),
	}
	h.metrics = metrics.New(h.reg)

	cfg := audioio.DefaultConfig()
	cfg.SampleRate = tts.MockRate
	h.sink = audioio.NewMockSink(cfg, log.Discard())
	require.NoError(t, h.sink.Start(context.Background()))

	tc := DefaultConfig()
	tc.CaptureDuration = 100 * time.Millisecond
	tc.RetryPause = time.Millisecond

	ctl, err := New(tc, Components{
		Recorder:    h.rec,
		Store:       clipstore.New(h.clip, clipstore.WithLogger(log.Discard())),
		Transcriber: stt.NewTranscriber(h.stt, log.Discard()),
		Session:     h.session,
		Speaker:     speech.New(h.tts, h.sink, log.Discard()),
	}, WithLogger(log.Discard()), WithMetrics(h.metrics))
	require.NoError(t, err)
	ctl.OnEvent(h.events.handle)
	h.ctl = ctl
	return h
}

func TestRunTurnSequencesSteps(t *testing.T) {
	h := newHarness(t, "hello there")

	outcome, err := h.ctl.RunTurn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Continue, outcome)
	assert.Equal(t, StateIdle, h.ctl.State())

	assert.Equal(t, []State{
		StateCapturing, StatePersisting, StateTranscribing, StateExitCheck,
		StateDialoguing, StateSynthesizing, StateIdle,
	}, h.events.states())

	history := h.ctl.History()
	require.Len(t, history, 2)
	assert.Equal(t, Entry{Role: dialogue.RoleUser, Text: "hello there"}, Entry{Role: history[0].Role, Text: history[0].Text})
	assert.Equal(t, dialogue.RoleAssistant, history[1].Role)
	assert.Equal(t, "You said: hello there", history[1].Text)

	assert.Equal(t, []string{"hello there"}, h.session.Sent())
	assert.Equal(t, []string{"You said hello there"}, h.tts.Texts())
	assert.Equal(t, 1, h.sink.Flushes())

	require.Len(t, h.stt.Calls(), 1)
	assert.Equal(t, h.clip, h.stt.Calls()[0].Path)
	assert.Equal(t, audioio.DefaultSampleRate, h.stt.Calls()[0].SampleRate)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TurnsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TurnOutcomes.WithLabelValues("continue")))
}

func TestStateEventsCarryLabelsAndTurnID(t *testing.T) {
	h := newHarness(t, "hi")
	_, err := h.ctl.RunTurn(context.Background())
	require.NoError(t, err)

	labels := map[State]string{}
	ids := map[string]bool{}
	for _, ev := range h.events.events {
		ids[ev.TurnID.String()] = true
		if ev.Kind == EventState {
			labels[ev.State] = ev.Label
		}
	}
	assert.Len(t, ids, 1)
	assert.Equal(t, "Recording...", labels[StateCapturing])
	assert.Equal(t, "Processing...", labels[StateTranscribing])
	assert.Equal(t, "AI is thinking...", labels[StateDialoguing])
	assert.Equal(t, "Speaking...", labels[StateSynthesizing])
	assert.Equal(t, "Ready", labels[StateIdle])

	last := h.events.events[len(h.events.events)-1]
	assert.Equal(t, EventTurnDone, last.Kind)
	assert.Equal(t, Continue, last.Outcome)
}

func TestIsExit(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"close", true},
		{"Close", true},
		{"CLOSE", true},
		{"  close \n", true},
		{"please close", false},
		{"closed", false},
		{"close.", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsExit(tt.in, DefaultExitPhrase), "IsExit(%q)", tt.in)
	}
}

func TestCloseAfterTurnEndsConversation(t *testing.T) {
	h := newHarness(t, "what time is it", "Close")

	require.NoError(t, h.ctl.Run(context.Background()))
	assert.Equal(t, StateClosed, h.ctl.State())
	assert.Equal(t, 2, h.rec.Calls())

	history := h.ctl.History()
	require.Len(t, history, 4)
	assert.Equal(t, "Close", history[2].Text)
	assert.Equal(t, DefaultFarewell, history[3].Text)

	// The farewell is spoken; the exit phrase never reaches the session.
	assert.Equal(t, []string{"what time is it"}, h.session.Sent())
	assert.Equal(t, []string{"You said what time is it", "Goodbye!"}, h.tts.Texts())

	states := h.events.states()
	assert.Equal(t, StateExitCheck, states[len(states)-2])
	assert.Equal(t, StateClosed, states[len(states)-1])

	_, err := h.ctl.Capture(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	outcome, err := h.ctl.RunTurn(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, ExitRequested, outcome)
	assert.Equal(t, 2, h.rec.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TurnOutcomes.WithLabelValues("exit_requested")))
}

func TestNotUnderstoodFeedsPlaceholder(t *testing.T) {
	h := newHarness(t, stt.ErrNoSpeech)

	outcome, err := h.ctl.RunTurn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Continue, outcome)

	assert.Equal(t, []string{stt.NotUnderstoodText}, h.session.Sent())
	require.Len(t, h.tts.Texts(), 1)
	assert.NotEmpty(t, h.sink.Played())
	assert.Empty(t, h.events.failures())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Failures.WithLabelValues(metrics.FailureTranscriptionEmpty)))
}

func TestTranscriptionUnavailableFeedsPlaceholder(t *testing.T) {
	h := newHarness(t, errors.New("dial tcp: connection refused"))

	outcome, err := h.ctl.RunTurn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Continue, outcome)

	sent := h.session.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], stt.UnavailablePrefix)
	assert.Contains(t, sent[0], "connection refused")
	assert.Equal(t, []string{metrics.FailureTranscriptionUnavailable}, h.events.failures())
	assert.Equal(t, StateIdle, h.ctl.State())
}

func TestDialogueTimeoutThenRecovery(t *testing.T) {
	h := newHarness(t, "first", "second")
	var calls int
	h.session.ReplyFunc = func(ctx context.Context, text string, turn int) (string, error) {
		calls++
		if calls == 1 {
			return "", context.DeadlineExceeded
		}
		return "reply to " + text, nil
	}

	_, err := h.ctl.RunTurn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, h.ctl.State())

	history := h.ctl.History()
	require.Len(t, history, 2)
	assert.NotEmpty(t, history[1].Text)
	assert.Equal(t, dialogue.Describe(&dialogue.Error{Kind: dialogue.KindTimeout, Err: context.DeadlineExceeded}), history[1].Text)
	assert.Equal(t, []string{metrics.FailureDialogue}, h.events.failures())
	require.Len(t, h.tts.Texts(), 1)

	_, err = h.ctl.RunTurn(context.Background())
	require.NoError(t, err)
	history = h.ctl.History()
	require.Len(t, history, 4)
	assert.Equal(t, "reply to second", history[3].Text)

	// Only the successful exchange is in the session's context.
	sessionHistory := h.session.History()
	require.Len(t, sessionHistory, 2)
	assert.Equal(t, "second", sessionHistory[0].Content)
}

func TestDeviceErrorAbortsToIdle(t *testing.T) {
	h := newHarness(t, "unused")
	h.rec.err = audioio.ErrNoDevice

	_, err := h.ctl.RunTurn(context.Background())
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StateCapturing, stepErr.State)
	assert.ErrorIs(t, err, audioio.ErrNoDevice)

	assert.Equal(t, StateIdle, h.ctl.State())
	assert.Empty(t, h.ctl.History())
	assert.Empty(t, h.stt.Calls())
	assert.Equal(t, []string{metrics.FailureDevice}, h.events.failures())
	assert.Equal(t, []State{StateCapturing, StateIdle}, h.events.states())

	h.rec.mu.Lock()
	h.rec.err = nil
	h.rec.mu.Unlock()
	_, err = h.ctl.RunTurn(context.Background())
	assert.NoError(t, err)
}

func TestPersistErrorAbortsToIdle(t *testing.T) {
	h := newHarness(t, "unused")
	h.ctl.c.Store = clipstore.New(filepath.Join(t.TempDir(), "missing", "temp.wav"))

	_, err := h.ctl.RunTurn(context.Background())
	var ioErr *clipstore.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, StateIdle, h.ctl.State())
	assert.Empty(t, h.stt.Calls())
	assert.Equal(t, []string{metrics.FailureIO}, h.events.failures())
}

func TestSynthesisFailureIsContained(t *testing.T) {
	h := newHarness(t, "hello")
	h.sink.FailWrites(errors.New("no output device"))

	outcome, err := h.ctl.RunTurn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Continue, outcome)
	assert.Equal(t, StateIdle, h.ctl.State())
	assert.Len(t, h.ctl.History(), 2)
	assert.Equal(t, []string{metrics.FailureSynthesis}, h.events.failures())
}

func TestCaptureRejectedWhileInFlight(t *testing.T) {
	h := newHarness(t, "hello")
	h.rec.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.ctl.Capture(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.rec.Calls() == 1 }, time.Second, time.Millisecond)
	_, err := h.ctl.Capture(context.Background())
	assert.ErrorIs(t, err, ErrNotIdle)

	close(h.rec.block)
	require.NoError(t, <-done)
	assert.Equal(t, StatePersisting, h.ctl.State())
	assert.Equal(t, 1, h.rec.Calls())

	_, err = h.ctl.Process(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, h.ctl.State())
}

func TestProcessWithoutCapture(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.Process(context.Background(), "temp.wav")
	assert.ErrorIs(t, err, ErrNoClip)
	assert.Empty(t, h.events.events)
}

func TestTurnIgnoresCallerCancellation(t *testing.T) {
	h := newHarness(t, "hello")
	ctx, cancel := context.WithCancel(context.Background())

	path, err := h.ctl.Capture(ctx)
	require.NoError(t, err)
	cancel()

	outcome, err := h.ctl.Process(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, Continue, outcome)
	assert.Len(t, h.tts.Texts(), 1)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	h := newHarness(t, "hello")
	ctx, cancel := context.WithCancel(context.Background())
	h.ctl.OnEvent(func(ev Event) {
		if ev.Kind == EventTurnDone {
			cancel()
		}
	})

	err := h.ctl.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.rec.Calls())
	assert.Equal(t, StateIdle, h.ctl.State())
}

func TestRecorderIntegration(t *testing.T) {
	h := newHarness(t, "hello")
	cfg := audioio.DefaultConfig()
	src := audioio.NewMockSource(cfg, log.Discard(), audioio.WithSineWave(440, 0.3))
	h.ctl.c.Recorder = audioio.NewRecorder(src, 0, log.Discard())

	_, err := h.ctl.RunTurn(context.Background())
	require.NoError(t, err)

	clip, err := clipstore.Load(h.clip)
	require.NoError(t, err)
	assert.Len(t, clip.Samples, int(audioio.SampleCount(100*time.Millisecond, cfg.SampleRate)))
	assert.Greater(t, clip.RMS(), 0.0)
}

func TestNewRequiresComponents(t *testing.T) {
	_, err := New(DefaultConfig(), Components{})
	assert.Error(t, err)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "exit_check", StateExitCheck.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.Equal(t, "Closed", StateClosed.Label())
	text, err := ExitRequested.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "exit_requested", string(text))
}
