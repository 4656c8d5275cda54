package crm

import (
	"context"
	"net/http"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/upstream"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 50
	DefaultRetryDelay  = 2 * time.Second
)

// Updater is the CRM endpoint of the backend.
type Updater interface {
	UpdateCRM(ctx context.Context, token, zohoUserID string, payload any) error
}

// Outcome classifies how a sync ended.
type Outcome string

const (
	OutcomeSynced       Outcome = "synced"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeFailed       Outcome = "failed"
	OutcomeExhausted    Outcome = "exhausted"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeCancelled    Outcome = "cancelled"
)

// Report describes one sync run.
type Report struct {
	Attempts int
	Outcome  Outcome
	Err      error
}

// Syncer propagates test outcomes to the CRM with a bounded fixed-delay
// retry. It never returns errors to its caller.
type Syncer struct {
	up          Updater
	maxAttempts int
	delay       time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	log         zerolog.Logger
}

// NewSyncer creates a Syncer. Non-positive limits fall back to defaults.
func NewSyncer(up Updater, maxAttempts int, delay time.Duration, log zerolog.Logger) *Syncer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &Syncer{
		up:          up,
		maxAttempts: maxAttempts,
		delay:       delay,
		sleep:       sleepCtx,
		log:         log.With().Str("component", "crm_sync").Logger(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Payload builds the CRM body for a test. Only the two scored tests are
// mapped to CRM fields.
func Payload(testName string, res model.ScoreResult) (map[string]any, bool) {
	switch testName {
	case model.TestNameGeneralAptitude:
		return map[string]any{"GAT": string(res.Status), "GAT_Score": res.Score}, true
	case model.TestNameTechnical:
		return map[string]any{"TT": string(res.Status), "TT_Score": res.Score}, true
	}
	return nil, false
}

func retryable(code int) bool {
	return code == http.StatusForbidden || code == http.StatusInternalServerError
}

// Sync pushes the outcome. 403 and 500 are retried; 401 and every other
// error end the run immediately.
func (s *Syncer) Sync(ctx context.Context, token, zohoUserID, testName string, res model.ScoreResult) Report {
	log := s.log.With().Str("zoho_user_id", zohoUserID).Str("test_name", testName).Logger()

	payload, ok := Payload(testName, res)
	if !ok || zohoUserID == "" {
		return Report{Outcome: OutcomeSkipped}
	}

	var rep Report
	for rep.Attempts < s.maxAttempts {
		rep.Attempts++
		err := s.up.UpdateCRM(ctx, token, zohoUserID, payload)
		if err == nil {
			rep.Outcome, rep.Err = OutcomeSynced, nil
			log.Info().Int("attempts", rep.Attempts).Msg("CRM updated")
			return rep
		}
		rep.Err = err

		code, isStatus := upstream.StatusCode(err)
		switch {
		case isStatus && code == http.StatusUnauthorized:
			rep.Outcome = OutcomeUnauthorized
			log.Warn().Err(err).Msg("CRM sync unauthorized, giving up")
			return rep
		case !isStatus || !retryable(code):
			rep.Outcome = OutcomeFailed
			log.Error().Err(err).Msg("CRM sync failed")
			return rep
		}

		if rep.Attempts == s.maxAttempts {
			break
		}
		log.Debug().Int("attempt", rep.Attempts).Int("status", code).Msg("CRM sync retrying")
		if err := s.sleep(ctx, s.delay); err != nil {
			rep.Outcome, rep.Err = OutcomeCancelled, err
			log.Warn().Err(err).Msg("CRM sync cancelled")
			return rep
		}
	}

	rep.Outcome = OutcomeExhausted
	log.Error().Err(rep.Err).Int("attempts", rep.Attempts).Msg("CRM sync retries exhausted")
	return rep
}
