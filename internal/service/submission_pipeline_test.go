package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bitlabs/talentstream-proctor/internal/attempt"
	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/bitlabs/talentstream-proctor/internal/events"
	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type pipelineHarness struct {
	pipeline *SubmissionPipeline
	backend  *fakeBackend
	crm      *fakeCRM
	sessions *MemorySessionStore
	pub      *fakePublisher
	mr       *miniredis.Miniredis
}

func newPipelineHarness(t *testing.T) *pipelineHarness {
	t.Helper()
	mr, rdb := newMiniredis(t)
	h := &pipelineHarness{
		backend:  &fakeBackend{},
		crm:      &fakeCRM{},
		sessions: NewMemorySessionStore(),
		pub:      &fakePublisher{},
		mr:       mr,
	}
	h.pipeline = NewSubmissionPipeline(h.backend, h.crm, h.sessions, rdb, h.pub, zerolog.Nop())
	return h
}

func completion(testName string, online bool) attempt.Completion {
	return attempt.Completion{
		AttemptID:  uuid.New(),
		Owner:      attempt.Owner{ApplicantID: 11, Token: "learner-jwt"},
		TestName:   testName,
		Result:     model.ScoreResult{Correct: 7, Total: 10, Score: 70, Status: model.TestStatusPass},
		Trigger:    model.TriggerManual,
		Violations: 1,
		Online:     online,
	}
}

func waitSyncs(t *testing.T, p *SubmissionPipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
}

func TestCompleteScoredTestSavesResultAndSyncsCRM(t *testing.T) {
	h := newPipelineHarness(t)
	require.NoError(t, h.sessions.Set(context.Background(), 11, SessionKeyZohoUserID, "zoho-11"))

	c := completion(model.TestNameTechnical, true)
	require.True(t, h.pipeline.Complete(context.Background(), c))
	waitSyncs(t, h.pipeline)

	require.Len(t, h.backend.results, 1)
	require.Equal(t, model.TestResultRecord{
		TestName:   model.TestNameTechnical,
		TestScore:  70,
		TestStatus: model.TestStatusPass,
		Applicant:  model.ApplicantRef{ID: 11},
	}, h.backend.results[0])
	require.Equal(t, []string{"learner-jwt"}, h.backend.tokens)

	require.Equal(t, 1, h.crm.count())
	require.Equal(t, "zoho-11", h.crm.calls[0].ZohoUserID)

	items, err := h.mr.List(config.WorkerKey.PersistOutcomesQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)
	var out model.Outcome
	require.NoError(t, json.Unmarshal([]byte(items[0]), &out))
	require.Equal(t, c.AttemptID, out.AttemptID)
	require.True(t, out.Persisted)
	require.Equal(t, 1, out.Violations)

	require.Equal(t, []string{events.RoutingAttemptCompleted}, h.pub.keys())
}

func TestCompleteSkillBadgeNeverSyncsCRM(t *testing.T) {
	h := newPipelineHarness(t)
	require.NoError(t, h.sessions.Set(context.Background(), 11, SessionKeyZohoUserID, "zoho-11"))

	c := completion("Java", true)
	c.Result = model.ScoreResult{Correct: 2, Total: 10, Score: 20, Status: model.TestStatusFail}
	require.True(t, h.pipeline.Complete(context.Background(), c))
	waitSyncs(t, h.pipeline)

	results, badges := h.backend.saved()
	require.Zero(t, results)
	require.Equal(t, 1, badges)
	require.Equal(t, model.SkillBadgeRecord{ApplicantID: 11, SkillBadgeName: "Java", Status: model.BadgeStatusFailed}, h.backend.badges[0])
	require.Zero(t, h.crm.count())
}

func TestCompleteSkipsCRMWhenOfflineOrUnknown(t *testing.T) {
	h := newPipelineHarness(t)

	require.True(t, h.pipeline.Complete(context.Background(), completion(model.TestNameGeneralAptitude, true)))
	require.NoError(t, h.sessions.Set(context.Background(), 11, SessionKeyZohoUserID, "zoho-11"))
	require.True(t, h.pipeline.Complete(context.Background(), completion(model.TestNameGeneralAptitude, false)))
	waitSyncs(t, h.pipeline)

	require.Zero(t, h.crm.count())
}

func TestCompletePersistFailure(t *testing.T) {
	h := newPipelineHarness(t)
	h.backend.saveErr = errors.New("backend down")

	require.False(t, h.pipeline.Complete(context.Background(), completion(model.TestNameTechnical, false)))

	items, err := h.mr.List(config.WorkerKey.PersistOutcomesQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)
	var out model.Outcome
	require.NoError(t, json.Unmarshal([]byte(items[0]), &out))
	require.False(t, out.Persisted)
}

func TestRecordExitPersistsWithoutCRM(t *testing.T) {
	h := newPipelineHarness(t)
	require.NoError(t, h.sessions.Set(context.Background(), 11, SessionKeyZohoUserID, "zoho-11"))

	c := completion(model.TestNameTechnical, true)
	c.Trigger = model.TriggerExit
	c.Result = attempt.ExitResult(10)
	require.True(t, h.pipeline.RecordExit(context.Background(), c))
	waitSyncs(t, h.pipeline)

	require.Len(t, h.backend.results, 1)
	require.Zero(t, h.backend.results[0].TestScore)
	require.Equal(t, model.TestStatusFail, h.backend.results[0].TestStatus)
	require.Zero(t, h.crm.count())
	require.Equal(t, []string{events.RoutingAttemptExited}, h.pub.keys())
}

func TestRecordViolationQueues(t *testing.T) {
	h := newPipelineHarness(t)
	ev := model.ViolationEvent{
		AttemptID:   uuid.New(),
		ApplicantID: 11,
		TestName:    model.TestNameTechnical,
		Kind:        model.ViolationTabHidden,
		Count:       1,
		RecordedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	h.pipeline.RecordViolation(context.Background(), ev)

	items, err := h.mr.List(config.WorkerKey.PersistViolationsQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)
	var got model.ViolationEvent
	require.NoError(t, json.Unmarshal([]byte(items[0]), &got))
	require.Equal(t, ev, got)
	require.Equal(t, []string{events.RoutingViolation}, h.pub.keys())
}

func TestWaitCancelsPendingSyncs(t *testing.T) {
	h := newPipelineHarness(t)
	h.crm.block = true
	require.NoError(t, h.sessions.Set(context.Background(), 11, SessionKeyZohoUserID, "zoho-11"))

	h.pipeline.Complete(context.Background(), completion(model.TestNameTechnical, true))
	require.Eventually(t, func() bool { return h.crm.count() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, h.pipeline.Wait(ctx), context.DeadlineExceeded)
}
