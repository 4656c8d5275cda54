package attempt

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/proctor"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop() { f.stopped.Store(true) }

type fakeRecorder struct {
	mu         sync.Mutex
	completed  []Completion
	exits      []Completion
	violations []model.ViolationEvent
	persistOK  bool
}

func (f *fakeRecorder) Complete(_ context.Context, c Completion) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, c)
	return f.persistOK
}

func (f *fakeRecorder) RecordExit(_ context.Context, c Completion) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exits = append(f.exits, c)
	return f.persistOK
}

func (f *fakeRecorder) RecordViolation(_ context.Context, ev model.ViolationEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.violations = append(f.violations, ev)
}

func (f *fakeRecorder) counts() (completed, exits, violations int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completed), len(f.exits), len(f.violations)
}

type harness struct {
	runner  *Runner
	rec     *fakeRecorder
	tickers chan *fakeTicker
	clock   time.Time
}

func newHarness(t *testing.T, questions, seconds int) *harness {
	t.Helper()
	h := &harness{
		rec:     &fakeRecorder{persistOK: true},
		tickers: make(chan *fakeTicker, 4),
		clock:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	a := newTestAttempt(t, questions, seconds)
	h.runner = NewRunner(a, Owner{ApplicantID: 7, Token: "jwt"}, h.rec,
		WithTicker(func(time.Duration) Ticker {
			ft := &fakeTicker{c: make(chan time.Time)}
			h.tickers <- ft
			return ft
		}),
		WithClock(func() time.Time { return h.clock }),
	)
	h.runner.Start(context.Background())
	t.Cleanup(h.runner.Close)
	return h
}

func (h *harness) do(t *testing.T, act Action) model.Snapshot {
	t.Helper()
	snap, err := h.runner.Do(context.Background(), act)
	require.NoError(t, err)
	return snap
}

func (h *harness) ticker(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case ft := <-h.tickers:
		return ft
	case <-time.After(2 * time.Second):
		t.Fatal("ticker was not started")
		return nil
	}
}

func signal(s proctor.Signal) Action {
	return Action{Type: ActionSignal, Signal: &s}
}

func TestRunnerCountdownExpiresIntoTimesUp(t *testing.T) {
	h := newHarness(t, 2, 2)
	h.do(t, Action{Type: ActionStart})
	ft := h.ticker(t)

	ft.c <- h.clock
	require.Equal(t, 1, h.do(t, Action{Type: ActionSnapshot}).RemainingSeconds)

	ft.c <- h.clock
	snap := h.do(t, Action{Type: ActionSnapshot})
	require.Equal(t, 0, snap.RemainingSeconds)
	require.Equal(t, model.PageTimesUp, snap.Page)
	require.True(t, ft.stopped.Load())

	completed, _, _ := h.rec.counts()
	require.Zero(t, completed, "results are recorded only when viewed")

	snap = h.do(t, Action{Type: ActionViewResults})
	require.Equal(t, model.PageFailAcknowledgment, snap.Page)
	require.Len(t, h.rec.completed, 1)
	require.Equal(t, model.TriggerTimeUp, h.rec.completed[0].Trigger)
}

func TestRunnerSimultaneousSignalsCountOnce(t *testing.T) {
	h := newHarness(t, 3, 60)
	h.do(t, Action{Type: ActionStart})

	h.do(t, signal(proctor.Signal{Type: proctor.SignalBlur}))
	snap := h.do(t, signal(proctor.Signal{Type: proctor.SignalVisibilityChange, Hidden: true}))

	require.Equal(t, 1, snap.Violation.Count)
	require.True(t, snap.Violation.Detected)
	_, _, violations := h.rec.counts()
	require.Equal(t, 1, violations)
}

func TestRunnerSecondViolationForcesSubmissionOnce(t *testing.T) {
	h := newHarness(t, 10, 60)
	h.do(t, Action{Type: ActionStart})
	for i := 0; i < 7; i++ {
		h.do(t, Action{Type: ActionSelect, Option: "A"})
		h.do(t, Action{Type: ActionNext})
	}

	updates, cancel, err := h.runner.Subscribe()
	require.NoError(t, err)
	defer cancel()
	<-updates

	h.do(t, signal(proctor.Signal{Type: proctor.SignalFullscreenChange}))
	h.do(t, Action{Type: ActionGoBack})

	h.clock = h.clock.Add(5 * time.Second)
	snap := h.do(t, signal(proctor.Signal{Type: proctor.SignalKeyDown, Key: "Tab", Alt: true}))

	require.Equal(t, model.PagePassAcknowledgment, snap.Page)
	require.NotNil(t, snap.Result)
	require.InDelta(t, 70.0, snap.Result.Score, 1e-9)

	h.clock = h.clock.Add(5 * time.Second)
	h.do(t, signal(proctor.Signal{Type: proctor.SignalBlur}))
	h.do(t, Action{Type: ActionSubmit})

	completed, _, violations := h.rec.counts()
	require.Equal(t, 1, completed)
	require.Equal(t, 2, violations)
	require.Equal(t, model.TriggerViolation, h.rec.completed[0].Trigger)
	require.Equal(t, 2, h.rec.completed[0].Violations)

	// The overlay with auto_submitting is published before the result.
	sawOverlay := false
	for {
		select {
		case s := <-updates:
			if s.Violation.AutoSubmitting && s.Page == model.PageTest {
				sawOverlay = true
			}
			if s.Page == model.PagePassAcknowledgment {
				require.True(t, sawOverlay)
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no acknowledgment snapshot published")
		}
	}
}

func TestRunnerDoubleSubmitPersistsOnce(t *testing.T) {
	h := newHarness(t, 1, 60)
	h.do(t, Action{Type: ActionStart})
	h.do(t, Action{Type: ActionSelect, Option: "A"})

	first := h.do(t, Action{Type: ActionSubmit})
	_, err := h.runner.Do(context.Background(), Action{Type: ActionSubmit})

	require.Equal(t, model.PagePassAcknowledgment, first.Page)
	require.NoError(t, err)
	completed, _, _ := h.rec.counts()
	require.Equal(t, 1, completed)
}

func TestRunnerPersistFailureStillTransitions(t *testing.T) {
	h := newHarness(t, 1, 60)
	h.rec.persistOK = false
	h.do(t, Action{Type: ActionStart})

	snap := h.do(t, Action{Type: ActionSubmit})
	require.Equal(t, model.PageFailAcknowledgment, snap.Page)
}

func TestRunnerExitRecordsZero(t *testing.T) {
	h := newHarness(t, 10, 60)
	h.do(t, Action{Type: ActionStart})
	h.do(t, Action{Type: ActionSelect, Option: "A"})
	h.do(t, Action{Type: ActionNext})
	h.do(t, Action{Type: ActionSelect, Option: "A"})
	h.do(t, Action{Type: ActionNext})

	snap := h.do(t, Action{Type: ActionConfirmExit})

	require.Equal(t, model.PageExitConfirmed, snap.Page)
	completed, exits, _ := h.rec.counts()
	require.Zero(t, completed)
	require.Equal(t, 1, exits)
	require.Zero(t, h.rec.exits[0].Result.Score)
	require.Equal(t, model.TestStatusFail, h.rec.exits[0].Result.Status)
}

func TestRunnerOfflineInterruptsWithoutPersisting(t *testing.T) {
	h := newHarness(t, 3, 60)
	h.do(t, Action{Type: ActionStart})
	ft := h.ticker(t)

	snap := h.do(t, signal(proctor.Signal{Type: proctor.SignalOffline}))
	require.Equal(t, model.PageInterrupted, snap.Page)

	h.do(t, Action{Type: ActionSnapshot})
	require.True(t, ft.stopped.Load())
	completed, exits, _ := h.rec.counts()
	require.Zero(t, completed)
	require.Zero(t, exits)

	_, err := h.runner.Do(context.Background(), Action{Type: ActionConfirmExit})
	require.ErrorIs(t, err, ErrNotActive)
}

func TestRunnerClosedRejectsActions(t *testing.T) {
	h := newHarness(t, 1, 60)
	h.runner.Close()

	_, err := h.runner.Do(context.Background(), Action{Type: ActionStart})
	require.ErrorIs(t, err, ErrClosed)
	_, _, err = h.runner.Subscribe()
	require.ErrorIs(t, err, ErrClosed)
}
