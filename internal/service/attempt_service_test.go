package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bitlabs/talentstream-proctor/internal/attempt"
	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type attemptHarness struct {
	svc     *AttemptService
	backend *fakeBackend
	mr      *miniredis.Miniredis
}

func newAttemptHarness(t *testing.T, questions int) *attemptHarness {
	t.Helper()
	mr, rdb := newMiniredis(t)
	backend := &fakeBackend{def: definition(questions)}
	pipeline := NewSubmissionPipeline(backend, &fakeCRM{}, NewMemorySessionStore(), rdb, &fakePublisher{}, zerolog.Nop())

	loader := NewTestLoader(backend, 30*time.Minute, zerolog.Nop())
	loader.shuffle = func(int, func(i, j int)) {}

	manager := attempt.NewManager(time.Hour, zerolog.Nop())
	t.Cleanup(manager.Shutdown)

	svc := NewAttemptService(loader, manager, pipeline, rdb, AttemptSettings{
		MaxViolations:  2,
		DebounceWindow: time.Second,
		IdleTTL:        time.Hour,
	}, zerolog.Nop())
	return &attemptHarness{svc: svc, backend: backend, mr: mr}
}

var learner = attempt.Owner{ApplicantID: 21, Token: "learner-jwt"}

func TestCreateAttempt(t *testing.T) {
	h := newAttemptHarness(t, 3)

	snap, err := h.svc.Create(context.Background(), learner, model.TestNameGeneralAptitude)
	require.NoError(t, err)
	require.Equal(t, model.PageInstructions, snap.Page)
	require.Equal(t, 1800, snap.RemainingSeconds)
	require.Equal(t, 3, snap.Stats.NumberOfQuestions)
	require.Nil(t, snap.Current)

	active, err := h.mr.Get(config.CacheKey.ActiveAttemptKey(21))
	require.NoError(t, err)
	require.Equal(t, snap.AttemptID.String(), active)
}

func TestActDrivesAttemptToResult(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t, 2)
	snap, err := h.svc.Create(ctx, learner, model.TestNameTechnical)
	require.NoError(t, err)
	id := snap.AttemptID

	steps := []attempt.Action{
		{Type: attempt.ActionStart},
		{Type: attempt.ActionSelect, Option: "A"},
		{Type: attempt.ActionNext},
		{Type: attempt.ActionSelect, Option: "A"},
		{Type: attempt.ActionSubmit},
	}
	for _, act := range steps {
		snap, err = h.svc.Act(ctx, 21, id, act)
		require.NoError(t, err, act.Type)
	}

	require.Equal(t, model.PagePassAcknowledgment, snap.Page)
	require.InDelta(t, 100.0, snap.Result.Score, 1e-9)
	require.Len(t, h.backend.results, 1)
}

func TestActOwnershipAndLookup(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t, 1)
	snap, err := h.svc.Create(ctx, learner, "Java")
	require.NoError(t, err)

	_, err = h.svc.Act(ctx, 99, snap.AttemptID, attempt.Action{Type: attempt.ActionStart})
	require.ErrorIs(t, err, ErrAttemptForbidden)

	_, err = h.svc.Snapshot(ctx, 21, uuid.New())
	require.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = h.svc.Act(ctx, 21, snap.AttemptID, attempt.Action{Type: attempt.ActionNext})
	require.ErrorIs(t, err, attempt.ErrNotActive)
}

func TestCreateReplacesPreviousAttempt(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t, 1)

	first, err := h.svc.Create(ctx, learner, "Java")
	require.NoError(t, err)
	second, err := h.svc.Create(ctx, learner, "Python")
	require.NoError(t, err)

	_, err = h.svc.Snapshot(ctx, 21, first.AttemptID)
	require.ErrorIs(t, err, ErrAttemptNotFound)

	active, err := h.svc.Active(ctx, 21)
	require.NoError(t, err)
	require.Equal(t, second.AttemptID, active.AttemptID)
}

func TestAbandonDiscardsAttempt(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t, 2)
	snap, err := h.svc.Create(ctx, learner, model.TestNameTechnical)
	require.NoError(t, err)
	_, err = h.svc.Act(ctx, 21, snap.AttemptID, attempt.Action{Type: attempt.ActionStart})
	require.NoError(t, err)

	require.NoError(t, h.svc.Abandon(ctx, 21, snap.AttemptID))

	_, err = h.svc.Snapshot(ctx, 21, snap.AttemptID)
	require.ErrorIs(t, err, ErrAttemptNotFound)
	require.False(t, h.mr.Exists(config.CacheKey.ActiveAttemptKey(21)))
	require.Empty(t, h.backend.results)

	_, err = h.svc.Active(ctx, 21)
	require.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestSubscribeReceivesCurrentSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newAttemptHarness(t, 2)
	snap, err := h.svc.Create(ctx, learner, model.TestNameTechnical)
	require.NoError(t, err)

	updates, cancel, err := h.svc.Subscribe(21, snap.AttemptID)
	require.NoError(t, err)
	defer cancel()

	first := <-updates
	require.Equal(t, model.PageInstructions, first.Page)

	_, err = h.svc.Act(ctx, 21, snap.AttemptID, attempt.Action{Type: attempt.ActionStart})
	require.NoError(t, err)
	select {
	case next := <-updates:
		require.Equal(t, model.PageTest, next.Page)
		require.Equal(t, model.FullscreenEnter, next.Fullscreen)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after start")
	}
}
