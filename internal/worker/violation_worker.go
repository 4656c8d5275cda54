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

// ViolationStore is the write side of *repository.ViolationRepository.
type ViolationStore interface {
	CopyBatch(ctx context.Context, batch []model.ViolationEvent) error
	Insert(ctx context.Context, ev model.ViolationEvent) error
}

// ViolationWorker drains the violation queue into the audit table.
type ViolationWorker struct {
	store   ViolationStore
	rdb     *redis.Client
	log     zerolog.Logger
	queue   string
	backoff time.Duration
	flushAt time.Duration
}

func NewViolationWorker(store ViolationStore, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		store:   store,
		rdb:     rdb,
		log:     log.With().Str("component", "violation_worker").Logger(),
		queue:   config.WorkerKey.PersistViolationsQueue,
		backoff: requeueBackoff,
		flushAt: BatchTimeout,
	}
}

func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")

	buffer := make([]model.ViolationEvent, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Graceful shutdown, before any flush on the cancelled context
		select {
		case <-ctx.Done():
			w.shutdown(ctx, buffer)
			return
		default:
		}

		// 2. Check flush conditions (time or size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= w.flushAt {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
				continue
			}
		}

		// 3. Fetch from Redis. BLPop returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, w.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, backing off")
			sleepCtx(ctx, redisErrorBackoff)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var ev model.ViolationEvent
		if err := json.Unmarshal([]byte(result[1]), &ev); err != nil {
			// Malformed JSON cannot be retried.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, ev)
	}
}

// flushSafe attempts a bulk copy, then row inserts, then requeue.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []model.ViolationEvent) {
	if len(batch) == 0 {
		return
	}
	if err := w.store.CopyBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk copy failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}
	w.log.Debug().Int("count", len(batch)).Msg("Violations flushed")
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []model.ViolationEvent) {
	var requeue []model.ViolationEvent
	for _, ev := range batch {
		if err := w.store.Insert(ctx, ev); err != nil {
			w.log.Error().Err(err).Str("attempt_id", ev.AttemptID.String()).Msg("Insert failed, requeueing")
			requeue = append(requeue, ev)
		}
	}
	if len(requeue) > 0 {
		pushBack(ctx, w.rdb, w.queue, requeue, w.log)
		sleepCtx(ctx, w.backoff)
	}
}

func (w *ViolationWorker) shutdown(parent context.Context, buffer []model.ViolationEvent) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), shutdownFlush)
	defer cancel()
	w.flushSafe(ctx, buffer)
}
