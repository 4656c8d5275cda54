package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/bitlabs/talentstream-proctor/internal/model"
	"github.com/bitlabs/talentstream-proctor/internal/upstream"
	"github.com/rs/zerolog"
)

// ErrTestNotFound is returned when the backend has no test by that name.
var ErrTestNotFound = errors.New("test not found")

// ErrTestEmpty is returned for a test without questions.
var ErrTestEmpty = errors.New("test has no questions")

// LoadedTest is a question set ready to be attempted.
type LoadedTest struct {
	Definition      model.TestDefinition
	DurationSeconds int
}

// TestLoader fetches question sets and prepares them for an attempt.
type TestLoader struct {
	backend  Backend
	duration time.Duration
	shuffle  func(n int, swap func(i, j int))
	log      zerolog.Logger
}

// NewTestLoader creates a loader applying a fixed attempt window. The
// backend's own duration is kept for display only.
func NewTestLoader(backend Backend, duration time.Duration, log zerolog.Logger) *TestLoader {
	return &TestLoader{
		backend:  backend,
		duration: duration,
		shuffle:  rand.Shuffle,
		log:      log.With().Str("component", "test_loader").Logger(),
	}
}

// Load performs one authenticated GET and shuffles the questions.
func (l *TestLoader) Load(ctx context.Context, token, testName string) (*LoadedTest, error) {
	testName = strings.TrimSpace(testName)
	def, err := l.backend.GetTestByName(ctx, token, testName)
	if err != nil {
		if code, ok := upstream.StatusCode(err); ok && code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrTestNotFound, testName)
		}
		return nil, fmt.Errorf("load test %q: %w", testName, err)
	}
	if len(def.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTestEmpty, testName)
	}

	questions := make([]model.Question, len(def.Questions))
	copy(questions, def.Questions)
	l.shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	def.Questions = questions

	l.log.Debug().
		Str("test_name", def.TestName).
		Int("questions", len(questions)).
		Int("backend_duration", def.Duration).
		Msg("Test loaded")

	return &LoadedTest{
		Definition:      *def,
		DurationSeconds: int(l.duration / time.Second),
	}, nil
}
