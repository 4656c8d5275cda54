package attempt

import (
	"slices"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/proctor"
	"github.com/google/uuid"
)

const (
	msgLastQuestion  = "You are on the last question."
	msgFirstQuestion = "You are on the first question."
)

// Attempt is the state of one run through a named test. It is not safe for
// concurrent use; a Runner owns it.
type Attempt struct {
	id        uuid.UUID
	testName  string
	stats     model.TestStats
	questions []model.Question
	duration  int

	page      model.Page
	started   bool
	completed bool
	online    bool

	current   int
	selected  map[int]string
	visited   map[int]bool
	remaining int

	monitor        *proctor.Monitor
	autoSubmitting bool
	submitting     bool
	submitted      bool
	result         *model.ScoreResult

	validation string
	fullscreen model.FullscreenDirective
}

// New creates an attempt on the instructions page. questions are used in the
// given order; durationSeconds is the length of the countdown.
func New(id uuid.UUID, def model.TestDefinition, durationSeconds int, monitor *proctor.Monitor) *Attempt {
	stats := model.TestStats{
		TestName:          def.TestName,
		NumberOfQuestions: def.NumberOfQuestions,
		BackendDuration:   def.Duration,
		DurationSeconds:   durationSeconds,
		TopicsCovered:     def.TopicsCovered,
	}
	if stats.NumberOfQuestions == 0 {
		stats.NumberOfQuestions = len(def.Questions)
	}

	return &Attempt{
		id:        id,
		testName:  def.TestName,
		stats:     stats,
		questions: def.Questions,
		duration:  durationSeconds,
		page:      model.PageInstructions,
		online:    true,
		selected:  make(map[int]string),
		visited:   make(map[int]bool),
		remaining: durationSeconds,
		monitor:   monitor,
	}
}

func (a *Attempt) ID() uuid.UUID { return a.id }
func (a *Attempt) TestName() string { return a.testName }
func (a *Attempt) Page() model.Page { return a.page }
func (a *Attempt) Remaining() int { return a.remaining }
func (a *Attempt) Online() bool { return a.online }
func (a *Attempt) Violations() int { return a.monitor.Count() }
func (a *Attempt) Result() *model.ScoreResult { return a.result }
func (a *Attempt) Questions() []model.Question { return a.questions }

// Active is true between Start and completion.
func (a *Attempt) Active() bool {
	return a.started && !a.completed
}

// Ticking reports whether the countdown should be running.
func (a *Attempt) Ticking() bool {
	return a.Active() && a.remaining > 0
}

func (a *Attempt) moveTo(p model.Page) error {
	if err := checkTransition(a.page, p); err != nil {
		return err
	}
	a.page = p
	return nil
}

func (a *Attempt) setCurrent(i int) {
	a.current = i
	a.visited[i] = true
}

func (a *Attempt) interactive() error {
	if !a.Active() {
		return ErrNotActive
	}
	if a.monitor.Detected() {
		return ErrViolationPending
	}
	return nil
}

// Start leaves the instructions page and requests fullscreen.
func (a *Attempt) Start() error {
	if len(a.questions) == 0 {
		return ErrNoQuestions
	}
	if err := a.moveTo(model.PageTest); err != nil {
		return err
	}
	a.started = true
	a.remaining = a.duration
	a.setCurrent(0)
	a.fullscreen = model.FullscreenEnter
	return nil
}

// Select records the option for the current question, replacing any earlier
// choice.
func (a *Attempt) Select(option string) error {
	if err := a.interactive(); err != nil {
		return err
	}
	if !slices.Contains(a.questions[a.current].Options, option) {
		return ErrInvalidOption
	}
	a.selected[a.current] = option
	return nil
}

func (a *Attempt) Next() error {
	if err := a.interactive(); err != nil {
		return err
	}
	if a.current == len(a.questions)-1 {
		a.validation = msgLastQuestion
		return nil
	}
	a.setCurrent(a.current + 1)
	a.validation = ""
	return nil
}

func (a *Attempt) Prev() error {
	if err := a.interactive(); err != nil {
		return err
	}
	if a.current == 0 {
		a.validation = msgFirstQuestion
		return nil
	}
	a.setCurrent(a.current - 1)
	a.validation = ""
	return nil
}

// Jump navigates directly from the question grid.
func (a *Attempt) Jump(i int) error {
	if err := a.interactive(); err != nil {
		return err
	}
	if i < 0 || i >= len(a.questions) {
		return ErrIndexOutOfRange
	}
	a.setCurrent(i)
	a.validation = ""
	return nil
}

// Tick advances the countdown by one second. It returns true on the single
// tick that expires the attempt.
func (a *Attempt) Tick() bool {
	if !a.Ticking() {
		return false
	}
	a.remaining--
	if a.remaining > 0 {
		return false
	}
	a.remaining = 0
	a.completed = true
	a.fullscreen = model.FullscreenExit
	_ = a.moveTo(model.PageTimesUp)
	return true
}

// Violation feeds a classified breach to the monitor.
func (a *Attempt) Violation(kind model.ViolationKind, now time.Time) proctor.Verdict {
	v := a.monitor.Handle(kind, now, a.Active() && !a.submitting)
	if !v.Accepted {
		return v
	}
	a.fullscreen = model.FullscreenExit
	if v.Escalate {
		a.autoSubmitting = true
	}
	return v
}

// GoBack dismisses the violation overlay and re-enters fullscreen.
func (a *Attempt) GoBack() error {
	if !a.Active() {
		return ErrNotActive
	}
	if a.autoSubmitting {
		return ErrAutoSubmitting
	}
	if !a.monitor.Resume() {
		return ErrNoViolation
	}
	a.fullscreen = model.FullscreenEnter
	return nil
}

// Offline halts an active attempt without scoring it. It returns true when
// the attempt was interrupted.
func (a *Attempt) Offline() bool {
	a.online = false
	if !a.Active() || a.submitting {
		return false
	}
	a.completed = true
	a.fullscreen = model.FullscreenExit
	_ = a.moveTo(model.PageInterrupted)
	return true
}

func (a *Attempt) SetOnline() {
	a.online = true
}

// BeginSubmit is the re-entrancy guard of the submission pipeline. It returns
// false without error when a submission already ran or is running.
func (a *Attempt) BeginSubmit(trigger model.SubmitTrigger) (bool, error) {
	if a.submitting || a.submitted {
		return false, nil
	}

	switch trigger {
	case model.TriggerManual:
		if err := a.interactive(); err != nil {
			return false, err
		}
		if a.current != len(a.questions)-1 {
			return false, ErrNotLastQuestion
		}
	case model.TriggerViolation, model.TriggerExit:
		if !a.Active() {
			return false, ErrNotActive
		}
	case model.TriggerTimeUp:
		if a.page != model.PageTimesUp {
			return false, ErrNotActive
		}
	default:
		return false, ErrUnknownAction
	}

	a.submitting = true
	a.completed = true
	return true, nil
}

// Grade scores the current selections.
func (a *Attempt) Grade() model.ScoreResult {
	return Score(a.questions, a.selected)
}

// Finish records the result and moves to the acknowledgment page.
func (a *Attempt) Finish(res model.ScoreResult) error {
	a.submitting = false
	a.submitted = true
	a.autoSubmitting = false
	a.result = &res
	a.fullscreen = model.FullscreenExit

	if res.Status == model.TestStatusPass {
		return a.moveTo(model.PagePassAcknowledgment)
	}
	return a.moveTo(model.PageFailAcknowledgment)
}

// FinishExit ends an attempt abandoned through the exit dialog.
func (a *Attempt) FinishExit(res model.ScoreResult) error {
	a.submitting = false
	a.submitted = true
	a.result = &res
	a.fullscreen = model.FullscreenExit
	return a.moveTo(model.PageExitConfirmed)
}

// ClearDirective drops the pending fullscreen directive once delivered.
func (a *Attempt) ClearDirective() {
	a.fullscreen = model.FullscreenNone
}

// Snapshot renders the learner-visible state. Question classes are computed
// fresh on every call.
func (a *Attempt) Snapshot() model.Snapshot {
	snap := model.Snapshot{
		AttemptID:        a.id,
		TestName:         a.testName,
		Page:             a.page,
		Stats:            a.stats,
		CurrentIndex:     a.current,
		RemainingSeconds: a.remaining,
		Violation: model.ViolationView{
			Count:          a.monitor.Count(),
			Detected:       a.monitor.Detected(),
			LastKind:       a.monitor.LastKind(),
			AutoSubmitting: a.autoSubmitting,
		},
		ValidationMessage: a.validation,
		Fullscreen:        a.fullscreen,
		Submitting:        a.submitting,
		Result:            a.result,
	}

	if !a.started {
		return snap
	}

	snap.Questions = make([]model.QuestionView, len(a.questions))
	for i := range a.questions {
		snap.Questions[i] = model.QuestionView{
			Index:    i,
			State:    Classify(i, a.current, a.selected, a.visited),
			Selected: a.selected[i],
		}
	}

	if a.page == model.PageTest {
		q := a.questions[a.current]
		snap.Current = &model.QuestionForLearner{
			Index:    a.current,
			Question: q.Question,
			Options:  q.Options,
		}
	}
	return snap
}
