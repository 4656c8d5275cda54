package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// OutcomeStore is the write side of *repository.OutcomeRepository.
type OutcomeStore interface {
	UpsertBatch(ctx context.Context, batch []model.Outcome) error
	Upsert(ctx context.Context, o model.Outcome) error
}

// OutcomeWorker drains finished attempts into attempt_outcomes.
type OutcomeWorker struct {
	store   OutcomeStore
	rdb     *redis.Client
	log     zerolog.Logger
	queue   string
	backoff time.Duration
	flushAt time.Duration
}

func NewOutcomeWorker(store OutcomeStore, rdb *redis.Client, log zerolog.Logger) *OutcomeWorker {
	return &OutcomeWorker{
		store:   store,
		rdb:     rdb,
		log:     log.With().Str("component", "outcome_worker").Logger(),
		queue:   config.WorkerKey.PersistOutcomesQueue,
		backoff: requeueBackoff,
		flushAt: BatchTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *OutcomeWorker) Start(ctx context.Context) {
	w.log.Info().Msg("OutcomeWorker started")

	batch := make([]model.Outcome, 0, BatchSize)
	lastFlush := time.Now()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlush)
			w.flushSafe(flushCtx, batch)
			cancel()
			return

		default:
			if len(batch) > 0 &&
				(len(batch) >= BatchSize || time.Since(lastFlush) >= w.flushAt) {

				w.flushSafe(ctx, batch)
				batch = batch[:0]
				lastFlush = time.Now()
				continue
			}

			item, err := w.rdb.BLPop(ctx, PollTimeout, w.queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					sleepCtx(ctx, redisErrorBackoff)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var o model.Outcome
			if err := json.Unmarshal([]byte(item[1]), &o); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, o)
		}
	}
}

// ----------------------------------------------------------------
// Batch upsert with single-row fallback
// ----------------------------------------------------------------

func (w *OutcomeWorker) flushSafe(ctx context.Context, batch []model.Outcome) {
	if len(batch) == 0 {
		return
	}

	if err := w.store.UpsertBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk outcome upsert failed, using fallback")

		var requeue []model.Outcome
		for _, o := range batch {
			if err := w.store.Upsert(ctx, o); err != nil {
				w.log.Error().Err(err).Str("attempt_id", o.AttemptID.String()).Msg("Upsert failed, requeueing")
				requeue = append(requeue, o)
			}
		}
		if len(requeue) > 0 {
			pushBack(ctx, w.rdb, w.queue, requeue, w.log)
			sleepCtx(ctx, w.backoff)
		}
		return
	}
	w.log.Debug().Int("count", len(batch)).Msg("Outcomes flushed")
}
