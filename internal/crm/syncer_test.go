package crm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/upstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type scriptedUpdater struct {
	mu       sync.Mutex
	errs     []error
	fallback error
	calls    int
	payloads []any
}

func (s *scriptedUpdater) UpdateCRM(_ context.Context, _, _ string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.payloads = append(s.payloads, payload)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	return s.fallback
}

func status(code int) error {
	return &upstream.StatusError{Method: http.MethodPut, Path: "/zoho/update/z", Code: code}
}

func newTestSyncer(up Updater) (*Syncer, *[]time.Duration) {
	var sleeps []time.Duration
	s := NewSyncer(up, 50, 2*time.Second, zerolog.Nop())
	s.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return s, &sleeps
}

var passed = model.ScoreResult{Correct: 8, Total: 10, Score: 80, Status: model.TestStatusPass}

func TestSyncExhaustsAfterFiftyServerErrors(t *testing.T) {
	up := &scriptedUpdater{fallback: status(http.StatusInternalServerError)}
	s, sleeps := newTestSyncer(up)

	rep := s.Sync(context.Background(), "tok", "zoho-1", model.TestNameTechnical, passed)

	require.Equal(t, OutcomeExhausted, rep.Outcome)
	require.Equal(t, 50, rep.Attempts)
	require.Equal(t, 50, up.calls)
	require.Len(t, *sleeps, 49)
	for _, d := range *sleeps {
		require.Equal(t, 2*time.Second, d)
	}
}

func TestSyncStopsOnUnauthorized(t *testing.T) {
	up := &scriptedUpdater{errs: []error{status(403), status(500), status(401)}, fallback: nil}
	s, sleeps := newTestSyncer(up)

	rep := s.Sync(context.Background(), "tok", "zoho-1", model.TestNameGeneralAptitude, passed)

	require.Equal(t, OutcomeUnauthorized, rep.Outcome)
	require.Equal(t, 3, up.calls)
	require.Len(t, *sleeps, 2)
}

func TestSyncStopsOnOtherErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "bad request", err: status(http.StatusBadRequest)},
		{name: "not found", err: status(http.StatusNotFound)},
		{name: "transport", err: errors.New("connection reset")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			up := &scriptedUpdater{fallback: tc.err}
			s, sleeps := newTestSyncer(up)

			rep := s.Sync(context.Background(), "tok", "zoho-1", model.TestNameTechnical, passed)

			require.Equal(t, OutcomeFailed, rep.Outcome)
			require.Equal(t, 1, up.calls)
			require.Empty(t, *sleeps)
		})
	}
}

func TestSyncRecoversAfterRetry(t *testing.T) {
	up := &scriptedUpdater{errs: []error{status(500), status(403)}}
	s, _ := newTestSyncer(up)

	rep := s.Sync(context.Background(), "tok", "zoho-1", model.TestNameTechnical, passed)

	require.Equal(t, OutcomeSynced, rep.Outcome)
	require.Equal(t, 3, rep.Attempts)
	require.Equal(t, map[string]any{"TT": "P", "TT_Score": 80.0}, up.payloads[2])
}

func TestSyncSkipsBadgesAndMissingUser(t *testing.T) {
	up := &scriptedUpdater{}
	s, _ := newTestSyncer(up)

	require.Equal(t, OutcomeSkipped, s.Sync(context.Background(), "tok", "zoho-1", "Java", passed).Outcome)
	require.Equal(t, OutcomeSkipped, s.Sync(context.Background(), "tok", "", model.TestNameTechnical, passed).Outcome)
	require.Zero(t, up.calls)
}

func TestSyncCancelledDuringDelay(t *testing.T) {
	up := &scriptedUpdater{fallback: status(http.StatusInternalServerError)}
	s := NewSyncer(up, 50, time.Hour, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := s.Sync(ctx, "tok", "zoho-1", model.TestNameTechnical, passed)

	require.Equal(t, OutcomeCancelled, rep.Outcome)
	require.Equal(t, 1, up.calls)
}

func TestPayloadShapes(t *testing.T) {
	p, ok := Payload(model.TestNameGeneralAptitude, model.ScoreResult{Score: 40, Status: model.TestStatusFail})
	require.True(t, ok)
	require.Equal(t, map[string]any{"GAT": "F", "GAT_Score": 40.0}, p)

	_, ok = Payload("Python", passed)
	require.False(t, ok)
}
