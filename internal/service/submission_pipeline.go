package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/attempt"
	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/bitlabs/talentstream-proctor/internal/events"
	"github.com/bitlabs/talentstream-proctor/internal/logger"
	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SubmissionPipeline persists finished attempts. Backend persistence is
// synchronous; the CRM sync runs in the background and never affects the
// learner-visible outcome.
type SubmissionPipeline struct {
	backend  Backend
	crm      CRMSyncer
	sessions SessionStore
	rdb      *redis.Client
	events   events.Publisher
	log      zerolog.Logger
	now      func() time.Time

	syncCtx    context.Context
	syncCancel context.CancelFunc
	syncs      sync.WaitGroup
}

var _ attempt.Recorder = (*SubmissionPipeline)(nil)

// NewSubmissionPipeline creates a new SubmissionPipeline.
func NewSubmissionPipeline(
	backend Backend,
	crm CRMSyncer,
	sessions SessionStore,
	rdb *redis.Client,
	pub events.Publisher,
	log zerolog.Logger,
) *SubmissionPipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &SubmissionPipeline{
		backend:    backend,
		crm:        crm,
		sessions:   sessions,
		rdb:        rdb,
		events:     pub,
		log:        log.With().Str("component", "submission").Logger(),
		now:        time.Now,
		syncCtx:    ctx,
		syncCancel: cancel,
	}
}

// Complete persists a scored attempt and starts the CRM sync when the
// learner is online and known to the CRM.
func (p *SubmissionPipeline) Complete(ctx context.Context, c attempt.Completion) bool {
	log := logger.ForAttempt(p.log, c.AttemptID.String(), c.Owner.ApplicantID, c.TestName)

	persisted := p.persist(ctx, c, log)
	p.record(ctx, c, persisted, events.RoutingAttemptCompleted, log)

	if c.Online && model.IsScoredTest(c.TestName) {
		p.startCRMSync(ctx, c, log)
	}
	return persisted
}

// RecordExit persists an abandoned attempt. It never syncs to the CRM.
func (p *SubmissionPipeline) RecordExit(ctx context.Context, c attempt.Completion) bool {
	log := logger.ForAttempt(p.log, c.AttemptID.String(), c.Owner.ApplicantID, c.TestName)

	persisted := p.persist(ctx, c, log)
	p.record(ctx, c, persisted, events.RoutingAttemptExited, log)
	return persisted
}

// RecordViolation queues a violation for the audit table.
func (p *SubmissionPipeline) RecordViolation(ctx context.Context, ev model.ViolationEvent) {
	p.enqueue(ctx, config.WorkerKey.PersistViolationsQueue, ev)
	if err := p.events.Publish(ctx, events.RoutingViolation, ev); err != nil {
		p.log.Warn().Err(err).Str("attempt_id", ev.AttemptID.String()).Msg("Violation event not published")
	}
}

func (p *SubmissionPipeline) persist(ctx context.Context, c attempt.Completion, log zerolog.Logger) bool {
	var err error
	if model.IsScoredTest(c.TestName) {
		err = p.backend.SaveTestResult(ctx, c.Owner.Token, c.Owner.ApplicantID, model.TestResultRecord{
			TestName:   c.TestName,
			TestScore:  c.Result.Score,
			TestStatus: c.Result.Status,
			Applicant:  model.ApplicantRef{ID: c.Owner.ApplicantID},
		})
	} else {
		err = p.backend.SaveSkillBadge(ctx, c.Owner.Token, model.SkillBadgeRecord{
			ApplicantID:    c.Owner.ApplicantID,
			SkillBadgeName: c.TestName,
			Status:         c.Result.Status.Badge(),
		})
	}

	if err != nil {
		log.Error().Err(err).Str("trigger", string(c.Trigger)).Msg("Result not saved")
		return false
	}
	log.Info().
		Float64("score", c.Result.Score).
		Str("status", string(c.Result.Status)).
		Msg("Result saved")
	return true
}

func (p *SubmissionPipeline) record(ctx context.Context, c attempt.Completion, persisted bool, routingKey string, log zerolog.Logger) {
	out := model.Outcome{
		AttemptID:   c.AttemptID,
		ApplicantID: c.Owner.ApplicantID,
		TestName:    c.TestName,
		Score:       c.Result.Score,
		Status:      c.Result.Status,
		Trigger:     c.Trigger,
		Violations:  c.Violations,
		Persisted:   persisted,
		FinishedAt:  p.now().UTC(),
	}
	p.enqueue(ctx, config.WorkerKey.PersistOutcomesQueue, out)
	if err := p.events.Publish(ctx, routingKey, out); err != nil {
		log.Warn().Err(err).Msg("Outcome event not published")
	}
}

func (p *SubmissionPipeline) enqueue(ctx context.Context, queue string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Error().Err(err).Str("queue", queue).Msg("Queue payload not encodable")
		return
	}
	if err := p.rdb.RPush(ctx, queue, data).Err(); err != nil {
		p.log.Error().Err(err).Str("queue", queue).Msg("Failed to enqueue")
	}
}

func (p *SubmissionPipeline) startCRMSync(ctx context.Context, c attempt.Completion, log zerolog.Logger) {
	zohoUserID, ok, err := p.sessions.Get(ctx, c.Owner.ApplicantID, SessionKeyZohoUserID)
	if err != nil {
		log.Warn().Err(err).Msg("CRM user lookup failed, sync skipped")
		return
	}
	if !ok || zohoUserID == "" {
		log.Debug().Msg("No CRM user in session, sync skipped")
		return
	}

	p.syncs.Add(1)
	go func() {
		defer p.syncs.Done()
		rep := p.crm.Sync(p.syncCtx, c.Owner.Token, zohoUserID, c.TestName, c.Result)
		log.Debug().Str("outcome", string(rep.Outcome)).Int("attempts", rep.Attempts).Msg("CRM sync finished")
	}()
}

// Wait blocks until every background CRM sync has finished. When ctx ends
// first the remaining syncs are cancelled.
func (p *SubmissionPipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.syncs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.syncCancel()
		<-done
		return ctx.Err()
	}
}
