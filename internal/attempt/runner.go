package attempt

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/proctor"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Owner identifies the learner driving an attempt.
type Owner struct {
	ApplicantID int
	// Token is the learner's bearer JWT, forwarded to the backend.
	Token string
}

// Completion is handed to the Recorder once an attempt is scored.
type Completion struct {
	AttemptID  uuid.UUID
	Owner      Owner
	TestName   string
	Result     model.ScoreResult
	Trigger    model.SubmitTrigger
	Violations int
	Online     bool
}

// Recorder persists what an attempt produces. Complete and RecordExit return
// once the write has settled and report whether it succeeded; failures are
// the Recorder's to log.
type Recorder interface {
	Complete(ctx context.Context, c Completion) bool
	RecordExit(ctx context.Context, c Completion) bool
	RecordViolation(ctx context.Context, ev model.ViolationEvent)
}

// Ticker is the subset of time.Ticker the Runner needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop() { r.t.Stop() }

// RealTicker is the production TickerFunc.
func RealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

const subscriberBuffer = 16

type command struct {
	action Action
	reply  chan reply
}

type reply struct {
	snap model.Snapshot
	err  error
}

type subscription struct {
	ch chan model.Snapshot
	id chan int
}

// Runner owns one Attempt in a single goroutine. Commands, countdown ticks and
// proctoring signals are applied strictly one after another.
type Runner struct {
	attempt   *Attempt
	owner     Owner
	rec       Recorder
	log       zerolog.Logger
	newTicker TickerFunc
	now       func() time.Time

	cmds      chan command
	subs      chan subscription
	unsubs    chan int
	done      chan struct{}
	cancel    context.CancelFunc
	started   atomic.Bool
	closeOnce sync.Once

	lastActive atomic.Int64

	// Loop-owned.
	ticker      Ticker
	subscribers map[int]chan model.Snapshot
	nextSubID   int
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

func WithTicker(f TickerFunc) RunnerOption {
	return func(r *Runner) { r.newTicker = f }
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func WithLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner wraps an attempt. Call Start before sending actions.
func NewRunner(a *Attempt, owner Owner, rec Recorder, opts ...RunnerOption) *Runner {
	r := &Runner{
		attempt:     a,
		owner:       owner,
		rec:         rec,
		log:         zerolog.Nop(),
		newTicker:   RealTicker,
		now:         time.Now,
		cmds:        make(chan command),
		subs:        make(chan subscription),
		unsubs:      make(chan int),
		done:        make(chan struct{}),
		subscribers: make(map[int]chan model.Snapshot),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.touch()
	return r
}

func (r *Runner) ID() uuid.UUID { return r.attempt.ID() }
func (r *Runner) Owner() Owner { return r.owner }

// LastActive is the time of the last learner action.
func (r *Runner) LastActive() time.Time {
	return time.Unix(0, r.lastActive.Load())
}

func (r *Runner) touch() {
	r.lastActive.Store(r.now().UnixNano())
}

// Start launches the loop. It stops when ctx is done or Close is called.
func (r *Runner) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
}

// Close stops the loop and waits for it to exit.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
	})
}

// Done is closed when the loop has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Do applies one action and returns the resulting snapshot.
func (r *Runner) Do(ctx context.Context, act Action) (model.Snapshot, error) {
	cmd := command{action: act, reply: make(chan reply, 1)}
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return model.Snapshot{}, ErrClosed
	case <-ctx.Done():
		return model.Snapshot{}, ctx.Err()
	}

	select {
	case rep := <-cmd.reply:
		return rep.snap, rep.err
	case <-r.done:
		return model.Snapshot{}, ErrClosed
	}
}

// Snapshot returns the current state without changing it.
func (r *Runner) Snapshot(ctx context.Context) (model.Snapshot, error) {
	return r.Do(ctx, Action{Type: ActionSnapshot})
}

// Subscribe streams every published snapshot until cancel is called or the
// runner stops. Slow subscribers miss intermediate snapshots.
func (r *Runner) Subscribe() (<-chan model.Snapshot, func(), error) {
	sub := subscription{
		ch: make(chan model.Snapshot, subscriberBuffer),
		id: make(chan int, 1),
	}
	select {
	case r.subs <- sub:
	case <-r.done:
		return nil, func() {}, ErrClosed
	}
	subID := <-sub.id

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			select {
			case r.unsubs <- subID:
			case <-r.done:
			}
		})
	}
	return sub.ch, cancel, nil
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	defer r.stopTicker()
	defer func() {
		for id, ch := range r.subscribers {
			close(ch)
			delete(r.subscribers, id)
		}
	}()

	for {
		var tickC <-chan time.Time
		if r.ticker != nil {
			tickC = r.ticker.C()
		}

		select {
		case <-ctx.Done():
			return

		case cmd := <-r.cmds:
			if cmd.action.Type != ActionSnapshot {
				r.touch()
			}
			err := r.apply(ctx, cmd.action)
			snap := r.attempt.Snapshot()
			cmd.reply <- reply{snap: snap, err: err}
			if cmd.action.Type != ActionSnapshot {
				r.publish()
			}

		case <-tickC:
			if r.attempt.Tick() {
				r.log.Info().Msg("Attempt timed out")
			}
			r.publish()

		case sub := <-r.subs:
			r.nextSubID++
			r.subscribers[r.nextSubID] = sub.ch
			sub.id <- r.nextSubID
			sub.ch <- r.attempt.Snapshot()

		case id := <-r.unsubs:
			if ch, ok := r.subscribers[id]; ok {
				close(ch)
				delete(r.subscribers, id)
			}
		}

		r.syncTicker()
	}
}

func (r *Runner) syncTicker() {
	switch {
	case r.attempt.Ticking() && r.ticker == nil:
		r.ticker = r.newTicker(time.Second)
	case !r.attempt.Ticking() && r.ticker != nil:
		r.stopTicker()
	}
}

func (r *Runner) stopTicker() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

// publish fans out the current snapshot and then drops the delivered
// fullscreen directive.
func (r *Runner) publish() {
	snap := r.attempt.Snapshot()
	for id, ch := range r.subscribers {
		select {
		case ch <- snap:
		default:
			r.log.Debug().Int("subscriber", id).Msg("Subscriber lagging, snapshot dropped")
		}
	}
	r.attempt.ClearDirective()
}

func (r *Runner) apply(ctx context.Context, act Action) error {
	a := r.attempt
	switch act.Type {
	case ActionSnapshot:
		return nil
	case ActionStart:
		if err := a.Start(); err != nil {
			return err
		}
		r.log.Info().Int("remaining", a.Remaining()).Msg("Attempt started")
		return nil
	case ActionSelect:
		return a.Select(act.Option)
	case ActionNext:
		return a.Next()
	case ActionPrev:
		return a.Prev()
	case ActionJump:
		if act.Index == nil {
			return ErrIndexOutOfRange
		}
		return a.Jump(*act.Index)
	case ActionGoBack:
		return a.GoBack()
	case ActionSubmit:
		return r.submit(ctx, model.TriggerManual)
	case ActionViewResults:
		return r.submit(ctx, model.TriggerTimeUp)
	case ActionConfirmExit:
		return r.exit(ctx)
	case ActionSignal:
		if act.Signal == nil {
			return ErrUnknownAction
		}
		r.signal(ctx, *act.Signal)
		return nil
	default:
		return ErrUnknownAction
	}
}

func (r *Runner) signal(ctx context.Context, s proctor.Signal) {
	a := r.attempt
	switch s.Type {
	case proctor.SignalOffline:
		if a.Offline() {
			r.log.Warn().Msg("Connection lost, attempt interrupted")
		}
		return
	case proctor.SignalOnline:
		a.SetOnline()
		return
	}

	kind, ok := proctor.Classify(s)
	if !ok {
		return
	}

	v := a.Violation(kind, r.now())
	if !v.Accepted {
		return
	}

	r.log.Warn().Str("kind", string(kind)).Int("count", v.Count).Msg("Proctoring violation")
	r.rec.RecordViolation(ctx, model.ViolationEvent{
		AttemptID:   a.ID(),
		ApplicantID: r.owner.ApplicantID,
		TestName:    a.TestName(),
		Kind:        kind,
		Count:       v.Count,
		RecordedAt:  r.now(),
	})

	if !v.Escalate {
		return
	}

	// The overlay reaches subscribers before the forced submission starts.
	r.publish()
	if err := r.submit(ctx, model.TriggerViolation); err != nil {
		r.log.Error().Err(err).Msg("Forced submission failed")
	}
}

func (r *Runner) completion(res model.ScoreResult, trigger model.SubmitTrigger) Completion {
	return Completion{
		AttemptID:  r.attempt.ID(),
		Owner:      r.owner,
		TestName:   r.attempt.TestName(),
		Result:     res,
		Trigger:    trigger,
		Violations: r.attempt.Violations(),
		Online:     r.attempt.Online(),
	}
}

func (r *Runner) submit(ctx context.Context, trigger model.SubmitTrigger) error {
	a := r.attempt
	ok, err := a.BeginSubmit(trigger)
	if err != nil || !ok {
		return err
	}
	r.publish()

	res := a.Grade()
	persisted := r.rec.Complete(ctx, r.completion(res, trigger))

	r.log.Info().
		Str("trigger", string(trigger)).
		Float64("score", res.Score).
		Str("status", string(res.Status)).
		Bool("persisted", persisted).
		Msg("Attempt submitted")

	return a.Finish(res)
}

func (r *Runner) exit(ctx context.Context) error {
	a := r.attempt
	ok, err := a.BeginSubmit(model.TriggerExit)
	if err != nil || !ok {
		return err
	}

	res := ExitResult(len(a.Questions()))
	persisted := r.rec.RecordExit(ctx, r.completion(res, model.TriggerExit))

	r.log.Info().Bool("persisted", persisted).Msg("Attempt exited before finishing")
	return a.FinishExit(res)
}
