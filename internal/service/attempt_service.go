package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/attempt"
	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/bitlabs/talentstream-proctor/internal/logger"
	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/proctor"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptForbidden = errors.New("attempt belongs to another applicant")
)

// AttemptSettings tunes the proctoring of new attempts.
type AttemptSettings struct {
	MaxViolations  int
	DebounceWindow time.Duration
	IdleTTL        time.Duration
}

// AttemptService creates attempts and routes learner actions to their runner.
type AttemptService struct {
	loader   *TestLoader
	manager  *attempt.Manager
	recorder attempt.Recorder
	rdb      *redis.Client
	settings AttemptSettings
	log      zerolog.Logger

	runnerOpts []attempt.RunnerOption
	baseCtx    context.Context
}

// NewAttemptService creates a new AttemptService. Runners live until the
// manager drops them, independent of any request context.
func NewAttemptService(
	loader *TestLoader,
	manager *attempt.Manager,
	recorder attempt.Recorder,
	rdb *redis.Client,
	settings AttemptSettings,
	log zerolog.Logger,
	opts ...attempt.RunnerOption,
) *AttemptService {
	return &AttemptService{
		loader:     loader,
		manager:    manager,
		recorder:   recorder,
		rdb:        rdb,
		settings:   settings,
		log:        log,
		runnerOpts: opts,
		baseCtx:    context.Background(),
	}
}

// Create loads the named test and registers a fresh attempt on the
// instructions page. Any previous live attempt of the applicant is dropped.
func (s *AttemptService) Create(ctx context.Context, owner attempt.Owner, testName string) (model.Snapshot, error) {
	lt, err := s.loader.Load(ctx, owner.Token, testName)
	if err != nil {
		return model.Snapshot{}, err
	}

	id := uuid.New()
	a := attempt.New(id, lt.Definition, lt.DurationSeconds,
		proctor.NewMonitor(s.settings.MaxViolations, s.settings.DebounceWindow))

	log := logger.ForAttempt(s.log, id.String(), owner.ApplicantID, lt.Definition.TestName)
	opts := append([]attempt.RunnerOption{attempt.WithLogger(log)}, s.runnerOpts...)
	r := attempt.NewRunner(a, owner, s.recorder, opts...)
	r.Start(s.baseCtx)
	s.manager.Register(r)

	key := config.CacheKey.ActiveAttemptKey(owner.ApplicantID)
	if err := s.rdb.Set(ctx, key, id.String(), s.settings.IdleTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("Active attempt not cached")
	}

	log.Info().Int("questions", len(lt.Definition.Questions)).Msg("Attempt created")
	return r.Snapshot(ctx)
}

func (s *AttemptService) runner(applicantID int, id uuid.UUID) (*attempt.Runner, error) {
	r, ok := s.manager.Get(id)
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if r.Owner().ApplicantID != applicantID {
		return nil, ErrAttemptForbidden
	}
	return r, nil
}

// Snapshot returns the current state of an attempt.
func (s *AttemptService) Snapshot(ctx context.Context, applicantID int, id uuid.UUID) (model.Snapshot, error) {
	r, err := s.runner(applicantID, id)
	if err != nil {
		return model.Snapshot{}, err
	}
	return s.wrap(r.Snapshot(ctx))
}

// Act applies one learner action or browser signal.
func (s *AttemptService) Act(ctx context.Context, applicantID int, id uuid.UUID, act attempt.Action) (model.Snapshot, error) {
	r, err := s.runner(applicantID, id)
	if err != nil {
		return model.Snapshot{}, err
	}
	snap, err := r.Do(ctx, act)
	if err == nil && !snap.Page.Terminal() {
		s.rdb.Expire(ctx, config.CacheKey.ActiveAttemptKey(applicantID), s.settings.IdleTTL)
	}
	return s.wrap(snap, err)
}

// Subscribe streams snapshots of an attempt.
func (s *AttemptService) Subscribe(applicantID int, id uuid.UUID) (<-chan model.Snapshot, func(), error) {
	r, err := s.runner(applicantID, id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel, err := r.Subscribe()
	if errors.Is(err, attempt.ErrClosed) {
		return nil, nil, ErrAttemptNotFound
	}
	return ch, cancel, err
}

// Active returns the applicant's live attempt, if this process owns it.
func (s *AttemptService) Active(ctx context.Context, applicantID int) (model.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ActiveAttemptKey(applicantID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return model.Snapshot{}, fmt.Errorf("get active attempt: %w", err)
	}
	if id, perr := uuid.Parse(raw); perr == nil {
		if snap, err := s.Snapshot(ctx, applicantID, id); err == nil {
			return snap, nil
		}
	}

	r, ok := s.manager.ActiveFor(applicantID)
	if !ok {
		return model.Snapshot{}, ErrAttemptNotFound
	}
	return s.wrap(r.Snapshot(ctx))
}

// Abandon discards an attempt. Unfinished attempts are not persisted, the
// same as reloading the page.
func (s *AttemptService) Abandon(ctx context.Context, applicantID int, id uuid.UUID) error {
	r, err := s.runner(applicantID, id)
	if err != nil {
		return err
	}
	snap, err := r.Snapshot(ctx)
	if err == nil && !snap.Page.Terminal() {
		s.log.Info().
			Str("attempt_id", id.String()).
			Int("applicant_id", applicantID).
			Str("page", string(snap.Page)).
			Msg("Attempt abandoned")
	}

	s.manager.Remove(id)
	s.clearActive(ctx, applicantID, id)
	return nil
}

// clearActive drops the active-attempt pointer unless a newer attempt
// already replaced it.
func (s *AttemptService) clearActive(ctx context.Context, applicantID int, id uuid.UUID) {
	key := config.CacheKey.ActiveAttemptKey(applicantID)
	current, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("Active attempt key not read")
		}
		return
	}
	if current != id.String() {
		return
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Active attempt key not cleared")
	}
}

func (s *AttemptService) wrap(snap model.Snapshot, err error) (model.Snapshot, error) {
	if errors.Is(err, attempt.ErrClosed) {
		return model.Snapshot{}, ErrAttemptNotFound
	}
	return snap, err
}
