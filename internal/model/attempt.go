package model

import (
	"time"

	"github.com/google/uuid"
)

// Page enumerates the screens of one attempt.
type Page string

const (
	PageInstructions       Page = "instructions"
	PageTest               Page = "test"
	PagePassAcknowledgment Page = "passAcknowledgment"
	PageFailAcknowledgment Page = "failAcknowledgment"
	PageTimesUp            Page = "timesup"
	PageInterrupted        Page = "interrupted"
	PageExitConfirmed      Page = "exitConfirmed"
)

// Terminal reports whether no further transition leaves the page.
func (p Page) Terminal() bool {
	switch p {
	case PagePassAcknowledgment, PageFailAcknowledgment, PageInterrupted, PageExitConfirmed:
		return true
	}
	return false
}

// QuestionState is the visual class of a question in the navigation grid.
type QuestionState string

const (
	QuestionCurrent     QuestionState = "current"
	QuestionAnswered    QuestionState = "answered"
	QuestionNotAnswered QuestionState = "not_answered"
	QuestionNotVisited  QuestionState = "not_visited"
)

// ViolationKind names a detected proctoring breach.
type ViolationKind string

const (
	ViolationFullscreenExit ViolationKind = "fullscreen_exit"
	ViolationTabHidden      ViolationKind = "tab_hidden"
	ViolationWindowBlur     ViolationKind = "window_blur"
	ViolationProhibitedKey  ViolationKind = "prohibited_key"
)

// SubmitTrigger records why the submission pipeline ran.
type SubmitTrigger string

const (
	TriggerManual    SubmitTrigger = "manual"
	TriggerTimeUp    SubmitTrigger = "time_up"
	TriggerViolation SubmitTrigger = "violation"
	TriggerExit      SubmitTrigger = "exit"
)

// TestStatus is the scored-test verdict.
type TestStatus string

const (
	TestStatusPass TestStatus = "P"
	TestStatusFail TestStatus = "F"
)

// BadgeStatus is the skill-badge verdict.
type BadgeStatus string

const (
	BadgeStatusPassed BadgeStatus = "PASSED"
	BadgeStatusFailed BadgeStatus = "FAILED"
)

// Badge maps a test status onto the skill-badge vocabulary.
func (s TestStatus) Badge() BadgeStatus {
	if s == TestStatusPass {
		return BadgeStatusPassed
	}
	return BadgeStatusFailed
}

// ScoreResult is computed once at submission time.
type ScoreResult struct {
	Correct int        `json:"correct"`
	Total   int        `json:"total"`
	Score   float64    `json:"score"`
	Status  TestStatus `json:"status"`
}

// Fullscreen directives pushed to the browser.
type FullscreenDirective string

const (
	FullscreenNone  FullscreenDirective = ""
	FullscreenEnter FullscreenDirective = "enter"
	FullscreenExit  FullscreenDirective = "exit"
)

// QuestionView is one cell of the question grid.
type QuestionView struct {
	Index    int           `json:"index"`
	State    QuestionState `json:"state"`
	Selected string        `json:"selected,omitempty"`
}

// ViolationView mirrors the overlay shown after a breach.
type ViolationView struct {
	Count          int           `json:"count"`
	Detected       bool          `json:"detected"`
	LastKind       ViolationKind `json:"last_kind,omitempty"`
	AutoSubmitting bool          `json:"auto_submitting"`
}

// Snapshot is the learner-visible state of an attempt.
type Snapshot struct {
	AttemptID         uuid.UUID           `json:"attempt_id"`
	TestName          string              `json:"test_name"`
	Page              Page                `json:"page"`
	Stats             TestStats           `json:"stats"`
	CurrentIndex      int                 `json:"current_index"`
	Current           *QuestionForLearner `json:"current,omitempty"`
	Questions         []QuestionView      `json:"questions"`
	RemainingSeconds  int                 `json:"remaining_seconds"`
	Violation         ViolationView       `json:"violation"`
	ValidationMessage string              `json:"validation_message,omitempty"`
	Fullscreen        FullscreenDirective `json:"fullscreen,omitempty"`
	Submitting        bool                `json:"submitting"`
	Result            *ScoreResult        `json:"result,omitempty"`
}

// Outcome is the durable record of a finished attempt.
type Outcome struct {
	AttemptID   uuid.UUID     `json:"attempt_id"`
	ApplicantID int           `json:"applicant_id"`
	TestName    string        `json:"test_name"`
	Score       float64       `json:"score"`
	Status      TestStatus    `json:"status"`
	Trigger     SubmitTrigger `json:"trigger"`
	Violations  int           `json:"violations"`
	Persisted   bool          `json:"persisted"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// ViolationEvent is the audit row of a single accepted breach.
type ViolationEvent struct {
	AttemptID   uuid.UUID     `json:"attempt_id"`
	ApplicantID int           `json:"applicant_id"`
	TestName    string        `json:"test_name"`
	Kind        ViolationKind `json:"kind"`
	Count       int           `json:"count"`
	RecordedAt  time.Time     `json:"recorded_at"`
}
